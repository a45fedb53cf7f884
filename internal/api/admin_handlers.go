package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/credentials"
	"github.com/textbot/internal/users"
)

// RegisterCredentialRequest registers a static credential.
type RegisterCredentialRequest struct {
	UserID  string `json:"user_id"`
	Kind    string `json:"kind"`
	Token   string `json:"token"`
	Account string `json:"account,omitempty"`
}

func (s *Server) registerCredential(c echo.Context) error {
	var req RegisterCredentialRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	user := normalizePhone(req.UserID)
	if user == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	kind := actions.ParseKind(req.Kind)
	if kind == actions.KindUnknown {
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be one of NOTE, CALENDAR, HABIT")
	}

	err := s.deps.Credentials.Register(c.Request().Context(), user, kind, credentials.Static(req.Token, req.Account))
	if errors.Is(err, credentials.ErrInvalidCredential) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store credential")
	}
	return c.JSON(http.StatusCreated, map[string]string{"user_id": string(user), "kind": kind.String()})
}

func (s *Server) listUsers(c echo.Context) error {
	if s.deps.Users == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "user directory is not configured")
	}
	list, err := s.deps.Users.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list users")
	}
	if list == nil {
		list = []users.User{}
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) upsertUser(c echo.Context) error {
	if s.deps.Users == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "user directory is not configured")
	}
	var u users.User
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	u.ID = normalizePhone(string(u.ID))
	u.Persona = strings.TrimSpace(u.Persona)
	if err := u.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.deps.Users.Upsert(c.Request().Context(), u); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store user")
	}
	return c.JSON(http.StatusOK, u)
}
