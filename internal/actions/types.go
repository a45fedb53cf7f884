package actions

import (
	"fmt"
	"strings"
	"time"
)

// UserID identifies a registered user. In practice it is the E.164 phone number
// the user texts from.
type UserID string

// Kind is the closed set of actions a message can be routed to.
type Kind int

const (
	// KindUnknown means no action applies; no executor runs for it.
	KindUnknown Kind = iota
	// KindNote appends a note to the user's workspace.
	KindNote
	// KindCalendar creates a calendar event.
	KindCalendar
	// KindHabit logs a habit action.
	KindHabit
)

// Kinds lists every actionable kind, in the order they are offered to the classifier.
var Kinds = []Kind{KindNote, KindCalendar, KindHabit}

// String returns the label used on the wire, in storage and in classifier prompts.
func (k Kind) String() string {
	switch k {
	case KindNote:
		return "NOTE"
	case KindCalendar:
		return "CALENDAR"
	case KindHabit:
		return "HABIT"
	default:
		return "UNKNOWN"
	}
}

// ParseKind maps a label back to a Kind. Anything that is not exactly one of the
// known labels (case-insensitive, surrounding space ignored) is KindUnknown.
func ParseKind(label string) Kind {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "NOTE":
		return KindNote
	case "CALENDAR":
		return KindCalendar
	case "HABIT":
		return KindHabit
	default:
		return KindUnknown
	}
}

// NoteInput is what the note executor writes to the workspace.
type NoteInput struct {
	Title   string
	Tag     string
	Content string
}

// CalendarInput is the structured event extracted from a message.
type CalendarInput struct {
	Summary     string    `json:"summary"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description"`
}

// HabitInput names the habit picked from the user's habit list.
type HabitInput struct {
	SelectedAction string
}

// Outcome is the result of handling one message. Message is what the user is texted back.
type Outcome struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	ExternalRef string `json:"external_ref,omitempty"`
}

// Failed builds an unsuccessful outcome.
func Failed(message string) Outcome {
	return Outcome{Success: false, Message: message}
}

// ServiceError is returned when a target service rejected or failed a call. Its
// Message is shown to the user as is.
type ServiceError struct {
	Service string
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Service, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Service, e.Message)
}
