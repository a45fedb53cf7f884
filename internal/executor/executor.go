// Package executor performs the real-world action a message was classified as.
package executor

import (
	"context"
	"strings"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/credentials"
	"github.com/textbot/internal/interpreter"
)

// Executor runs one action for one message. Service failures come back as
// *actions.ServiceError; a failed outcome with a nil error means the action was
// deliberately not attempted.
type Executor interface {
	Execute(ctx context.Context, rawText string, cred credentials.Credential) (actions.Outcome, error)
}

// TextGenerator is the free-form half of the interpreter.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, persona interpreter.Persona) (string, error)
}

// cleanChoice strips the quoting and trailing punctuation models wrap short answers in,
// and keeps only the first line.
func cleanChoice(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(s, " \t\"'`.*")
}
