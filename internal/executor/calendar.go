package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/credentials"
	"github.com/textbot/internal/provider_output/gcal"
)

// CalendarExtractor turns text into an event. It never fails.
type CalendarExtractor interface {
	ExtractCalendar(ctx context.Context, text string) actions.CalendarInput
}

// EventInserter creates calendar events.
type EventInserter interface {
	InsertEvent(ctx context.Context, accessToken string, in actions.CalendarInput) (gcal.Event, error)
}

// CalendarExecutor creates one event in the user's Google calendar.
type CalendarExecutor struct {
	extractor CalendarExtractor
	events    EventInserter
}

// NewCalendarExecutor creates a CalendarExecutor.
func NewCalendarExecutor(extractor CalendarExtractor, events EventInserter) *CalendarExecutor {
	return &CalendarExecutor{extractor: extractor, events: events}
}

func (e *CalendarExecutor) Execute(ctx context.Context, rawText string, cred credentials.Credential) (actions.Outcome, error) {
	if !cred.IsRenewable() {
		return actions.Outcome{}, errors.New("calendar access needs an authorized Google account")
	}

	input := e.extractor.ExtractCalendar(ctx, rawText)
	event, err := e.events.InsertEvent(ctx, cred.Token, input)
	if err != nil {
		return actions.Outcome{}, err
	}

	message := fmt.Sprintf("Added %q on %s", input.Summary, input.Start.Format("Mon Jan 2 3:04 PM"))
	if event.HTMLLink != "" {
		message += ": " + event.HTMLLink
	}
	return actions.Outcome{Success: true, Message: message, ExternalRef: event.HTMLLink}, nil
}
