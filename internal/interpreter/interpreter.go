// Package interpreter turns free text into action kinds and structured inputs using a
// text generation model.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/metrics"
)

// ErrEmptyCompletion is returned when the model answers with nothing.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// Generator produces one completion for a system instruction and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Interpreter wraps a Generator with the classification and extraction prompts.
// It never retries and never caches.
type Interpreter struct {
	gen     Generator
	loc     *time.Location
	timeout time.Duration
	now     func() time.Time
}

// New creates an Interpreter. A nil location means UTC; a zero timeout means the
// caller's context is the only bound.
func New(gen Generator, loc *time.Location, timeout time.Duration) *Interpreter {
	if loc == nil {
		loc = time.UTC
	}
	return &Interpreter{gen: gen, loc: loc, timeout: timeout, now: time.Now}
}

func (in *Interpreter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if in.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, in.timeout)
}

// Classify asks the model which action the text calls for. Transport errors, empty
// output and anything that is not exactly one label are KindUnknown.
func (in *Interpreter) Classify(ctx context.Context, text string) actions.Kind {
	start := time.Now()
	defer func() { metrics.ClassifyDuration.Observe(time.Since(start).Seconds()) }()

	ctx, cancel := in.withTimeout(ctx)
	defer cancel()

	out, err := in.gen.Generate(ctx, classifySystemPrompt(), text)
	if err != nil {
		log.Warn().Err(err).Msg("Classification call failed")
		return actions.KindUnknown
	}

	label := normalizeLabel(out)
	kind := actions.ParseKind(label)
	if kind == actions.KindUnknown && label != actions.KindUnknown.String() {
		log.Warn().Str("output", truncateRunes(out, 80)).Msg("Classifier returned an unrecognized label")
	}
	return kind
}

// ExtractCalendar pulls an event out of the text. It never fails: unusable model output
// yields the deterministic fallback event.
func (in *Interpreter) ExtractCalendar(ctx context.Context, text string) actions.CalendarInput {
	now := in.now().In(in.loc)

	ctx, cancel := in.withTimeout(ctx)
	defer cancel()

	out, err := in.gen.Generate(ctx, calendarSystemPrompt, calendarPrompt(text, now))
	if err != nil {
		log.Warn().Err(err).Msg("Calendar extraction call failed, using fallback event")
		return fallbackCalendar(text, now)
	}

	input, err := parseCalendar(out, in.loc)
	if err != nil {
		log.Warn().Err(err).Msg("Calendar extraction output unusable, using fallback event")
		return fallbackCalendar(text, now)
	}
	if input.Summary == "" {
		input.Summary = truncateRunes(text, fallbackSummaryRunes)
	}
	if input.Description == "" {
		input.Description = text
	}
	return input
}

// GenerateText runs a free-form prompt in the given persona's voice.
func (in *Interpreter) GenerateText(ctx context.Context, prompt string, persona Persona) (string, error) {
	ctx, cancel := in.withTimeout(ctx)
	defer cancel()

	out, err := in.gen.Generate(ctx, persona.SystemPrompt(), prompt)
	if err != nil {
		return "", fmt.Errorf("generate text: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyCompletion
	}
	return out, nil
}

// normalizeLabel strips the decoration models like to add around a bare label.
func normalizeLabel(out string) string {
	return strings.ToUpper(strings.Trim(out, " \t\r\n\"'`.!?,;:*"))
}

func classifySystemPrompt() string {
	var b strings.Builder
	b.WriteString("You route text messages to actions. Reply with exactly one label and nothing else.\n")
	b.WriteString("Labels:\n")
	for _, kind := range actions.Kinds {
		fmt.Fprintf(&b, "- %s: %s\n", kind, kindDescriptions[kind])
	}
	fmt.Fprintf(&b, "- %s: anything else\n", actions.KindUnknown)
	return b.String()
}

var kindDescriptions = map[actions.Kind]string{
	actions.KindNote:     "a thought, idea, prayer, reflection, joke or journal entry to save as a note",
	actions.KindCalendar: "something to schedule at a date or time",
	actions.KindHabit:    "a report of having done a habit or daily task",
}

const calendarSystemPrompt = `You extract calendar events from text messages.
Reply with a single JSON object and nothing else:
{"summary": "...", "start": "YYYY-MM-DDTHH:MM:SS", "end": "YYYY-MM-DDTHH:MM:SS", "description": "..."}
Use local time without a zone offset. If no end is given, make the event one hour long.`

func calendarPrompt(text string, now time.Time) string {
	return fmt.Sprintf("Current date and time: %s (%s)\nMessage: %s",
		now.Format("2006-01-02T15:04:05"), now.Format("Monday"), text)
}
