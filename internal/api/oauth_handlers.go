package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/textbot/internal/authflow"
)

const (
	calendarConnectedMessage = "Your calendar is connected. Text me an event any time."
	calendarLinkMessage      = "Connect your Google Calendar: "
)

// CalendarLinkRequest names the user to text a calendar authorization link to.
type CalendarLinkRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// sendCalendarLink texts a signed start link to the user's own phone. The link itself is
// never returned to the caller.
func (s *Server) sendCalendarLink(c echo.Context) error {
	if s.deps.Calendar == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "calendar authorization is not configured")
	}
	var req CalendarLinkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	user := normalizePhone(req.PhoneNumber)
	if user == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "phone_number is required")
	}

	link, err := s.deps.Calendar.LinkURL(user)
	if err != nil {
		log.Error().Err(err).Msg("Calendar link not issued")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue authorization link")
	}
	if err := s.deps.Notifier.Send(c.Request().Context(), user, calendarLinkMessage+link); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) calendarStart(c echo.Context) error {
	if s.deps.Calendar == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "calendar authorization is not configured")
	}
	url, err := s.deps.Calendar.AuthURL(c.QueryParam("token"))
	if errors.Is(err, authflow.ErrInvalidLink) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired authorization link")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to start authorization")
	}
	return c.Redirect(http.StatusFound, url)
}

func (s *Server) calendarCallback(c echo.Context) error {
	if s.deps.Calendar == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "calendar authorization is not configured")
	}
	if denied := c.QueryParam("error"); denied != "" {
		return echo.NewHTTPError(http.StatusBadRequest, "authorization denied: "+denied)
	}

	ctx := c.Request().Context()
	user, err := s.deps.Calendar.Complete(ctx, c.QueryParam("state"), c.QueryParam("code"))
	if errors.Is(err, authflow.ErrInvalidState) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired authorization link")
	}
	if err != nil {
		log.Error().Err(err).Msg("Calendar authorization failed")
		return echo.NewHTTPError(http.StatusBadGateway, "calendar authorization failed")
	}

	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.Send(context.WithoutCancel(ctx), user, calendarConnectedMessage); err != nil {
			log.Warn().Err(err).Msg("Calendar confirmation not sent")
		}
	}
	return c.String(http.StatusOK, "Calendar connected. You can close this window.")
}
