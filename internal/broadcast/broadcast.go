// Package broadcast texts every user a conversation opener written from their interests.
package broadcast

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/executor"
	"github.com/textbot/internal/interpreter"
	"github.com/textbot/internal/logging"
	"github.com/textbot/internal/notifier"
	"github.com/textbot/internal/retry"
	"github.com/textbot/internal/users"
)

// maxOpenerRunes keeps an opener inside one SMS segment.
const maxOpenerRunes = 160

// Result counts how a broadcast went.
type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Broadcaster writes and sends openers.
type Broadcaster struct {
	directory users.Directory
	gen       executor.TextGenerator
	notifier  notifier.Notifier
	retry     retry.RetryConfig
}

// New creates a Broadcaster. Opener generation is retried on transient model failures;
// sending is not.
func New(directory users.Directory, gen executor.TextGenerator, n notifier.Notifier) *Broadcaster {
	return &Broadcaster{directory: directory, gen: gen, notifier: n, retry: retry.LLMRetryConfig()}
}

// Run sends an opener to every user, or only to the given one when only is set. A failure
// for one user is logged and the loop moves on.
func (b *Broadcaster) Run(ctx context.Context, only actions.UserID) (Result, error) {
	var targets []users.User
	if only != "" {
		u, err := b.directory.Get(ctx, only)
		if err != nil {
			return Result{}, fmt.Errorf("load user: %w", err)
		}
		targets = []users.User{u}
	} else {
		all, err := b.directory.List(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("list users: %w", err)
		}
		targets = all
	}

	var res Result
	for _, u := range targets {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := b.SendOpener(ctx, u); err != nil {
			res.Failed++
			log.Warn().Err(err).Str("user_id", logging.MaskPhone(string(u.ID))).Msg("Opener not sent")
			continue
		}
		res.Sent++
	}

	log.Info().Int("sent", res.Sent).Int("failed", res.Failed).Msg("Broadcast finished")
	return res, nil
}

// SendOpener writes one opener in the user's persona and texts it.
func (b *Broadcaster) SendOpener(ctx context.Context, u users.User) error {
	interests := "everyday life"
	if len(u.Interests) > 0 {
		interests = strings.Join(u.Interests, ", ")
	}
	prompt := fmt.Sprintf("Based on the user's interests: %s. Generate a friendly, engaging question to ask them "+
		"about their day or activities. Keep it conversational and under 100 characters. "+
		"Return only the question, nothing else.", interests)

	persona := interpreter.ParsePersona(u.Persona)
	var opener string
	result := retry.RetryWithBackoff(ctx, b.retry, func(ctx context.Context) error {
		var err error
		opener, err = b.gen.GenerateText(ctx, prompt, persona)
		return err
	})
	if !result.Success {
		return result.LastError
	}
	if r := []rune(opener); len(r) > maxOpenerRunes {
		opener = string(r[:maxOpenerRunes])
	}
	return b.notifier.Send(ctx, u.ID, opener)
}
