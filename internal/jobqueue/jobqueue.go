/*
Package jobqueue hands inbound text messages to a River queue so they survive a restart
between the webhook acknowledging them and the dispatcher finishing.

Tuning parameters live in queue_config.go.
*/
package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/logging"
)

// Handler processes one message. dispatch.Dispatcher satisfies it.
type Handler interface {
	Handle(ctx context.Context, user actions.UserID, rawText string) actions.Outcome
}

// MessageJobArgs is one inbound text message.
type MessageJobArgs struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
	TextID string `json:"text_id,omitempty"`
}

// Kind returns the job kind for River
func (MessageJobArgs) Kind() string {
	return "sms_message"
}

// MessageWorker runs queued messages through the Handler.
type MessageWorker struct {
	river.WorkerDefaults[MessageJobArgs]
	handler Handler
	config  *QueueConfig
}

// NewMessageWorker creates a worker.
func NewMessageWorker(handler Handler, config *QueueConfig) *MessageWorker {
	if config == nil {
		config = DefaultQueueConfig()
	}
	return &MessageWorker{handler: handler, config: config}
}

// Timeout bounds a single job.
func (w *MessageWorker) Timeout(*river.Job[MessageJobArgs]) time.Duration {
	return w.config.JobTimeout
}

// Work handles the message. Failures have already been reported to the user by the
// handler, so Work only errors on malformed arguments.
func (w *MessageWorker) Work(ctx context.Context, job *river.Job[MessageJobArgs]) error {
	args := job.Args
	if args.UserID == "" {
		return fmt.Errorf("job %d has no user id", job.ID)
	}

	outcome := w.handler.Handle(ctx, actions.UserID(args.UserID), args.Text)
	log.Debug().
		Int64("job_id", job.ID).
		Str("text_id", args.TextID).
		Str("user_id", logging.MaskPhone(args.UserID)).
		Bool("success", outcome.Success).
		Msg("Message job finished")
	return nil
}

// JobQueue manages the River job queue
type JobQueue struct {
	client *river.Client[pgx.Tx]
	config *QueueConfig
}

// NewJobQueue creates a job queue on an existing pool.
func NewJobQueue(pool *pgxpool.Pool, handler Handler, config *QueueConfig) (*JobQueue, error) {
	if config == nil {
		config = DefaultQueueConfig()
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewMessageWorker(handler, config))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  config.RiverQueueConfig(),
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{client: client, config: config}, nil
}

// Start starts the job queue workers
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop stops the job queue workers, letting running jobs finish.
func (jq *JobQueue) Stop(ctx context.Context) error {
	return jq.client.Stop(ctx)
}

// Enqueue queues a message for handling.
func (jq *JobQueue) Enqueue(ctx context.Context, user actions.UserID, text, textID string) error {
	args := MessageJobArgs{UserID: string(user), Text: text, TextID: textID}
	if _, err := jq.client.Insert(ctx, args, InsertOpts(jq.config)); err != nil {
		return fmt.Errorf("failed to queue message job: %w", err)
	}
	return nil
}

// InsertOpts are the options every message job is inserted with.
func InsertOpts(config *QueueConfig) *river.InsertOpts {
	return &river.InsertOpts{MaxAttempts: config.MaxAttempts}
}
