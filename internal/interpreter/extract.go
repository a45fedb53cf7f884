package interpreter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/textbot/internal/actions"
)

const fallbackSummaryRunes = 50

var errNoJSONObject = errors.New("no JSON object in model output")

type calendarPayload struct {
	Summary     string `json:"summary"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description"`
}

// extractJSONObject returns the text between the first '{' and the last '}'. Models tend
// to wrap the object in prose or code fences.
func extractJSONObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", errNoJSONObject
	}
	return raw[start : end+1], nil
}

// decodeObject unmarshals obj into target, running it through jsonrepair once when the
// first attempt fails.
func decodeObject(obj string, target interface{}) error {
	firstErr := json.Unmarshal([]byte(obj), target)
	if firstErr == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(obj)
	if err != nil {
		return fmt.Errorf("decode: %v; repair: %w", firstErr, err)
	}
	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return fmt.Errorf("decode repaired object: %w", err)
	}
	return nil
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseTimestamp accepts RFC 3339 or a zone-less local timestamp, which is read in loc.
func parseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// parseCalendar turns raw model output into a CalendarInput. Any failure is returned so
// the caller can fall back.
func parseCalendar(raw string, loc *time.Location) (actions.CalendarInput, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return actions.CalendarInput{}, err
	}
	var payload calendarPayload
	if err := decodeObject(obj, &payload); err != nil {
		return actions.CalendarInput{}, err
	}

	start, err := parseTimestamp(payload.Start, loc)
	if err != nil {
		return actions.CalendarInput{}, fmt.Errorf("start: %w", err)
	}
	end, err := parseTimestamp(payload.End, loc)
	if err != nil {
		return actions.CalendarInput{}, fmt.Errorf("end: %w", err)
	}
	if !end.After(start) {
		end = start.Add(time.Hour)
	}

	return actions.CalendarInput{
		Summary:     strings.TrimSpace(payload.Summary),
		Start:       start,
		End:         end,
		Description: strings.TrimSpace(payload.Description),
	}, nil
}

// fallbackCalendar is the deterministic event used when extraction fails: a one hour
// slot starting an hour from now, titled with the start of the message.
func fallbackCalendar(text string, now time.Time) actions.CalendarInput {
	start := now.Add(time.Hour)
	return actions.CalendarInput{
		Summary:     truncateRunes(text, fallbackSummaryRunes),
		Start:       start,
		End:         start.Add(time.Hour),
		Description: text,
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
