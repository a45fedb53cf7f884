// Package dispatch routes one inbound message through classify, resolve, execute and
// notify. It is the only fault boundary in the pipeline.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/credentials"
	"github.com/textbot/internal/executor"
	"github.com/textbot/internal/logging"
	"github.com/textbot/internal/metrics"
	"github.com/textbot/internal/notifier"
)

// User-facing messages for outcomes that never reach an executor.
const (
	MsgUnrecognized    = "unsupported or unrecognized request"
	MsgNoCredential    = "no credential registered for this action"
	MsgInternalFailure = "something went wrong while handling your message"
)

// Classifier decides which action a message is.
type Classifier interface {
	Classify(ctx context.Context, text string) actions.Kind
}

// CredentialResolver hands out usable credentials.
type CredentialResolver interface {
	Resolve(ctx context.Context, user actions.UserID, kind actions.Kind) (credentials.Credential, bool)
}

// Executors holds one executor per actionable kind.
type Executors struct {
	Note     executor.Executor
	Calendar executor.Executor
	Habit    executor.Executor
}

// Timeouts bound the executor and notifier calls. Zero means no extra bound.
type Timeouts struct {
	Action time.Duration
	Notify time.Duration
}

// Dispatcher handles inbound messages.
type Dispatcher struct {
	classifier Classifier
	creds      CredentialResolver
	executors  Executors
	notifier   notifier.Notifier
	timeouts   Timeouts
}

// New creates a Dispatcher.
func New(classifier Classifier, creds CredentialResolver, executors Executors, n notifier.Notifier, timeouts Timeouts) *Dispatcher {
	return &Dispatcher{
		classifier: classifier,
		creds:      creds,
		executors:  executors,
		notifier:   n,
		timeouts:   timeouts,
	}
}

// Handle processes one message and texts the outcome back to the user exactly once.
// It never panics and never returns an error.
func (d *Dispatcher) Handle(ctx context.Context, user actions.UserID, rawText string) actions.Outcome {
	logger := log.With().
		Str("request_id", uuid.NewString()).
		Str("user_id", logging.MaskPhone(string(user))).
		Logger()
	ctx = logger.WithContext(ctx)

	kind, outcome := d.decide(ctx, user, rawText)
	if outcome.Message == "" {
		outcome.Message = MsgInternalFailure
	}

	logger.Info().
		Str("kind", kind.String()).
		Bool("success", outcome.Success).
		Str("external_ref", outcome.ExternalRef).
		Msg("Message handled")
	metrics.RecordMessage(kind.String(), outcome.Success)

	d.notify(ctx, user, outcome.Message)
	return outcome
}

// decide runs classify, resolve and execute, converting every failure, panics included,
// into an outcome.
func (d *Dispatcher) decide(ctx context.Context, user actions.UserID, rawText string) (kind actions.Kind, outcome actions.Outcome) {
	logger := zerolog.Ctx(ctx)
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("kind", kind.String()).
				Str("panic", fmt.Sprint(r)).
				Msg("Recovered from panic while handling message")
			outcome = actions.Failed(MsgInternalFailure)
		}
	}()

	kind = d.classify(ctx, rawText)
	if kind == actions.KindUnknown {
		return kind, actions.Failed(MsgUnrecognized)
	}

	cred, ok := d.creds.Resolve(ctx, user, kind)
	if !ok {
		return kind, actions.Failed(MsgNoCredential)
	}

	out, err := d.execute(ctx, kind, rawText, cred)
	if err != nil {
		logger.Warn().Err(err).Str("kind", kind.String()).Msg("Action failed")
		return kind, actions.Failed(failureMessage(err))
	}
	return kind, out
}

// classify treats a classifier fault like an unrecognized label.
func (d *Dispatcher) classify(ctx context.Context, rawText string) (kind actions.Kind) {
	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Error().Str("panic", fmt.Sprint(r)).Msg("Recovered from panic while classifying")
			kind = actions.KindUnknown
		}
	}()
	return d.classifier.Classify(ctx, rawText)
}

func (d *Dispatcher) execute(ctx context.Context, kind actions.Kind, rawText string, cred credentials.Credential) (actions.Outcome, error) {
	var exec executor.Executor
	switch kind {
	case actions.KindNote:
		exec = d.executors.Note
	case actions.KindCalendar:
		exec = d.executors.Calendar
	case actions.KindHabit:
		exec = d.executors.Habit
	case actions.KindUnknown:
		return actions.Failed(MsgUnrecognized), nil
	default:
		return actions.Outcome{}, fmt.Errorf("unhandled action kind %d", kind)
	}
	if exec == nil {
		return actions.Outcome{}, fmt.Errorf("%s actions are not enabled", kind)
	}

	if d.timeouts.Action > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeouts.Action)
		defer cancel()
	}
	return exec.Execute(ctx, rawText, cred)
}

func (d *Dispatcher) notify(ctx context.Context, user actions.UserID, message string) {
	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Error().Str("panic", fmt.Sprint(r)).Msg("Recovered from panic while notifying")
		}
	}()
	if d.timeouts.Notify > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeouts.Notify)
		defer cancel()
	}
	if err := d.notifier.Send(ctx, user, message); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to send outcome notification")
	}
}

// failureMessage is what the user reads when an action fails. Service errors carry the
// service's own message.
func failureMessage(err error) string {
	var svcErr *actions.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Error()
	}
	return err.Error()
}
