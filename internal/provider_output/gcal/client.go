package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/textbot/internal/actions"
)

const serviceName = "google calendar"

// Client inserts events into a Google calendar on behalf of a user.
type Client struct {
	calendarID string
	timeZone   string
	endpoint   string
	// httpClient is the base transport; the user's bearer token is layered on top.
	httpClient *http.Client
}

// NewClient creates a calendar client. An empty endpoint means the public Google API.
func NewClient(calendarID, timeZone, endpoint string) *Client {
	return &Client{
		calendarID: calendarID,
		timeZone:   timeZone,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Event is the created event's identity.
type Event struct {
	ID       string
	HTMLLink string
}

// InsertEvent creates one event with the given access token.
func (c *Client) InsertEvent(ctx context.Context, accessToken string, in actions.CalendarInput) (Event, error) {
	if accessToken == "" {
		return Event{}, errors.New("access token is required")
	}

	baseCtx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	authed := oauth2.NewClient(baseCtx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	opts := []option.ClientOption{option.WithHTTPClient(authed)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return Event{}, fmt.Errorf("failed to create calendar service: %w", err)
	}

	event := &calendar.Event{
		Summary:     in.Summary,
		Description: in.Description,
		Start: &calendar.EventDateTime{
			DateTime: in.Start.Format(time.RFC3339),
			TimeZone: c.timeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: in.End.Format(time.RFC3339),
			TimeZone: c.timeZone,
		},
	}

	created, err := svc.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return Event{}, &actions.ServiceError{Service: serviceName, Status: apiErr.Code, Message: apiErr.Message}
		}
		return Event{}, fmt.Errorf("calendar insert failed: %w", err)
	}
	return Event{ID: created.Id, HTMLLink: created.HtmlLink}, nil
}
