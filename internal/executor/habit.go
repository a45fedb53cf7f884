package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/credentials"
	"github.com/textbot/internal/interpreter"
	"github.com/textbot/internal/provider_output/habitica"
)

// HabitTracker is the habit service the habit executor scores against.
type HabitTracker interface {
	ListHabits(ctx context.Context, userID, apiToken string) ([]habitica.Task, error)
	ScoreUp(ctx context.Context, userID, apiToken, taskID string) (habitica.ScoreResult, error)
}

// HabitExecutor scores up the habit the message reports.
type HabitExecutor struct {
	tracker HabitTracker
	gen     TextGenerator
}

// NewHabitExecutor creates a HabitExecutor.
func NewHabitExecutor(tracker HabitTracker, gen TextGenerator) *HabitExecutor {
	return &HabitExecutor{tracker: tracker, gen: gen}
}

func (e *HabitExecutor) Execute(ctx context.Context, rawText string, cred credentials.Credential) (actions.Outcome, error) {
	tasks, err := e.tracker.ListHabits(ctx, cred.Account, cred.Token)
	if err != nil {
		return actions.Outcome{}, err
	}
	if len(tasks) == 0 {
		return actions.Failed("no habits found to log against"), nil
	}

	names := make([]string, len(tasks))
	for i, task := range tasks {
		names[i] = task.Text
	}
	prompt := fmt.Sprintf("Which of these habits does the message report doing?\nHabits:\n- %s\n"+
		"Message: %q\nReturn only the habit name exactly as listed, or NONE.", strings.Join(names, "\n- "), rawText)

	out, err := e.gen.GenerateText(ctx, prompt, interpreter.PersonaNone)
	if err != nil {
		return actions.Outcome{}, fmt.Errorf("choose habit: %w", err)
	}
	selection := actions.HabitInput{SelectedAction: cleanChoice(out)}

	var matched *habitica.Task
	for i := range tasks {
		if strings.EqualFold(strings.TrimSpace(tasks[i].Text), selection.SelectedAction) {
			matched = &tasks[i]
			break
		}
	}
	if matched == nil {
		log.Debug().Str("selection", selection.SelectedAction).Msg("No habit matched")
		return actions.Failed("couldn't match that to one of your habits"), nil
	}

	if _, err := e.tracker.ScoreUp(ctx, cred.Account, cred.Token, matched.ID); err != nil {
		return actions.Outcome{}, err
	}
	return actions.Outcome{
		Success:     true,
		Message:     fmt.Sprintf("Logged %q", matched.Text),
		ExternalRef: matched.ID,
	}, nil
}
