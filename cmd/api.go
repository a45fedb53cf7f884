package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/textbot/internal/api"
	"github.com/textbot/internal/database"
	"github.com/textbot/internal/jobqueue"
)

// ServeCommand returns the CLI command for starting the API server and queue workers
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the SMS webhook and admin API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides server.port)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	port := cfg.Server.Port
	if c.IsSet("port") {
		port = c.Int("port")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	deps := api.Deps{
		Handler:        app.dispatcher,
		Notifier:       app.notifier,
		Broadcaster:    app.broadcaster,
		Users:          app.users,
		Credentials:    app.store,
		Calendar:       app.calendar,
		Tokens:         app.tokens,
		WebhookKey:     cfg.Textbelt.Key,
		RequestTimeout: cfg.Timeouts.Request,
	}

	if cfg.Queue.Enabled {
		queue, err := startQueue(ctx, app)
		if err != nil {
			return err
		}
		deps.Queue = queue
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Request)
			defer cancel()
			if err := queue.Stop(stopCtx); err != nil {
				log.Error().Err(err).Msg("Queue did not stop cleanly")
			}
		}()
	}

	return api.NewServer(port, deps).Run(ctx)
}

func startQueue(ctx context.Context, app *application) (*jobqueue.JobQueue, error) {
	if err := database.MigrateQueue(ctx, app.pool); err != nil {
		return nil, err
	}

	qcfg := jobqueue.DefaultQueueConfig()
	if app.cfg.Queue.MaxWorkers > 0 {
		qcfg.MaxWorkers = app.cfg.Queue.MaxWorkers
	}
	// a job covers classification, the action and the reply
	qcfg.JobTimeout = app.cfg.Timeouts.Request + 10*time.Second

	queue, err := jobqueue.NewJobQueue(app.pool, app.dispatcher, qcfg)
	if err != nil {
		return nil, err
	}
	// stopped explicitly so running jobs can finish after the signal
	if err := queue.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, fmt.Errorf("failed to start queue: %w", err)
	}
	log.Info().Int("max_workers", qcfg.MaxWorkers).Msg("Message queue started")
	return queue, nil
}
