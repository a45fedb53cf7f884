package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/logging"
	"github.com/textbot/internal/notifier"
)

// maxReplyBody caps the webhook body read before the signature is checked.
const maxReplyBody = 64 << 10

// SMSReplyPayload is what the SMS gateway posts when a user texts back.
type SMSReplyPayload struct {
	TextID     string `json:"textId"`
	FromNumber string `json:"fromNumber"`
	Text       string `json:"text"`
}

// SendSMSRequest is a direct outbound message.
type SendSMSRequest struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
}

// BroadcastRequest optionally limits a broadcast to one user.
type BroadcastRequest struct {
	Only string `json:"only,omitempty"`
}

// handleSmsReply acknowledges the reply at once and processes it in the background. The
// gateway retries slow webhooks, so nothing here waits on the model or external services.
func (s *Server) handleSmsReply(c echo.Context) error {
	if s.deps.WebhookKey == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "reply webhook is not configured")
	}

	req := c.Request()
	body, err := io.ReadAll(io.LimitReader(req.Body, maxReplyBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	err = notifier.VerifyReply(
		s.deps.WebhookKey,
		req.Header.Get(notifier.SignatureHeader),
		req.Header.Get(notifier.TimestampHeader),
		body,
		s.now(),
	)
	if err != nil {
		log.Warn().Err(err).Str("remote_ip", c.RealIP()).Msg("Rejected SMS reply webhook")
		if errors.Is(err, notifier.ErrStaleTimestamp) {
			return echo.NewHTTPError(http.StatusUnauthorized, "stale request")
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	var payload SMSReplyPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	user := normalizePhone(payload.FromNumber)
	if user == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "fromNumber is required")
	}

	log.Info().
		Str("text_id", payload.TextID).
		Str("user_id", logging.MaskPhone(string(user))).
		Msg("SMS reply received")

	s.accept(c.Request().Context(), user, payload.Text, payload.TextID)
	return c.JSON(http.StatusOK, map[string]string{"status": "received"})
}

// accept queues the message, falling back to in-process handling when no queue is
// configured or the insert fails.
func (s *Server) accept(ctx context.Context, user actions.UserID, text, textID string) {
	if s.deps.Queue != nil {
		err := s.deps.Queue.Enqueue(ctx, user, text, textID)
		if err == nil {
			return
		}
		log.Error().Err(err).Str("text_id", textID).Msg("Queue insert failed, handling in-process")
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.RequestTimeout)
		defer cancel()
		s.deps.Handler.Handle(ctx, user, text)
	}()
}

func (s *Server) sendSMS(c echo.Context) error {
	var req SendSMSRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	user := normalizePhone(req.PhoneNumber)
	if user == "" || strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "phone_number and message are required")
	}

	if err := s.deps.Notifier.Send(c.Request().Context(), user, req.Message); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) textAllUsers(c echo.Context) error {
	if s.deps.Broadcaster == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "broadcast is not configured")
	}
	var req BroadcastRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	res, err := s.deps.Broadcaster.Run(c.Request().Context(), normalizePhone(req.Only))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

// normalizePhone trims the number and restores the leading + some gateways drop.
func normalizePhone(raw string) actions.UserID {
	phone := strings.TrimSpace(raw)
	if phone == "" {
		return ""
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return actions.UserID(phone)
}
