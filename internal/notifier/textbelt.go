// Package notifier sends outbound text messages.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/logging"
	"github.com/textbot/internal/metrics"
)

// Notifier delivers one message to a user. Delivery confirmation is not tracked.
type Notifier interface {
	Send(ctx context.Context, user actions.UserID, message string) error
}

// TextbeltConfig configures the Textbelt client.
type TextbeltConfig struct {
	URL             string
	Key             string
	ReplyWebhookURL string
	RatePerSecond   float64
	Burst           int
}

// Textbelt sends SMS through the Textbelt HTTP API.
type Textbelt struct {
	cfg         TextbeltConfig
	httpClient  *http.Client
	RateLimiter *rate.Limiter
}

// NewTextbelt creates a Textbelt notifier. A non-positive rate disables limiting.
func NewTextbelt(cfg TextbeltConfig) *Textbelt {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Textbelt{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		RateLimiter: rate.NewLimiter(limit, burst),
	}
}

type textbeltResponse struct {
	Success        bool   `json:"success"`
	TextID         string `json:"textId"`
	QuotaRemaining int    `json:"quotaRemaining"`
	Error          string `json:"error"`
}

// Send posts the message. The leading '+' is stripped from the number.
func (t *Textbelt) Send(ctx context.Context, user actions.UserID, message string) (err error) {
	defer func() { metrics.RecordNotification(err) }()

	phone := strings.TrimPrefix(strings.TrimSpace(string(user)), "+")
	if phone == "" {
		return errors.New("phone number is required")
	}
	if message == "" {
		return errors.New("message cannot be empty")
	}

	if err := t.RateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	form := url.Values{}
	form.Set("phone", phone)
	form.Set("message", message)
	form.Set("key", t.cfg.Key)
	if t.cfg.ReplyWebhookURL != "" {
		form.Set("replyWebhookUrl", t.cfg.ReplyWebhookURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("textbelt request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var tr textbeltResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return fmt.Errorf("textbelt returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if !tr.Success {
		return &actions.ServiceError{Service: "textbelt", Status: resp.StatusCode, Message: tr.Error}
	}

	log.Debug().
		Str("user_id", logging.MaskPhone(string(user))).
		Str("text_id", tr.TextID).
		Int("quota_remaining", tr.QuotaRemaining).
		Msg("SMS sent")
	return nil
}
