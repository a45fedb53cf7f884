package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/textbot/internal/api/auth"
	"github.com/textbot/internal/authflow"
	"github.com/textbot/internal/broadcast"
	"github.com/textbot/internal/config"
	"github.com/textbot/internal/credentials"
	"github.com/textbot/internal/database"
	"github.com/textbot/internal/dispatch"
	"github.com/textbot/internal/executor"
	"github.com/textbot/internal/interpreter"
	"github.com/textbot/internal/logging"
	"github.com/textbot/internal/notifier"
	"github.com/textbot/internal/provider_output/gcal"
	"github.com/textbot/internal/provider_output/habitica"
	"github.com/textbot/internal/provider_output/notion"
	"github.com/textbot/internal/users"
)

// application is every long-lived component, built once from the configuration.
type application struct {
	cfg *config.Config

	db   *sql.DB
	pool *pgxpool.Pool

	interpreter *interpreter.Interpreter
	store       *credentials.Store
	users       users.Directory
	notifier    *notifier.Textbelt
	dispatcher  *dispatch.Dispatcher
	broadcaster *broadcast.Broadcaster
	tokens      *auth.TokenService
	calendar    *authflow.CalendarFlow
}

// loadConfig loads and validates the configuration named by the global --config flag and
// sets up logging from it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Pretty)
	return cfg, nil
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	app := &application{cfg: cfg, tokens: auth.NewTokenService(cfg.Auth.JWTSecret)}

	if cfg.Database.URL != "" {
		if err := app.openDatabase(ctx); err != nil {
			app.Close()
			return nil, err
		}
	}

	connector, err := interpreter.NewConnector(ctx, interpreter.ConnectorOptions{
		Provider:    interpreter.Provider(cfg.AI.Provider),
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create AI connector: %w", err)
	}
	app.interpreter = interpreter.New(connector, cfg.Location(), cfg.Timeouts.Interpreter)

	backend, err := app.credentialBackend()
	if err != nil {
		app.Close()
		return nil, err
	}
	app.store = credentials.NewStore(backend, &credentials.OAuthRefresher{
		ClientID:     cfg.Calendar.ClientID,
		ClientSecret: cfg.Calendar.ClientSecret,
	}, cfg.Credentials.RefreshSkew, cfg.Timeouts.Refresh)

	if app.db != nil {
		app.users = users.NewPostgresDirectory(app.db)
	} else {
		app.users = users.NewMemoryDirectory()
	}

	app.notifier = notifier.NewTextbelt(notifier.TextbeltConfig{
		URL:             cfg.Textbelt.URL,
		Key:             cfg.Textbelt.Key,
		ReplyWebhookURL: cfg.ReplyWebhookURL(),
		RatePerSecond:   cfg.Textbelt.RatePerSecond,
		Burst:           cfg.Textbelt.Burst,
	})

	executors := dispatch.Executors{
		Note: executor.NewNoteExecutor(
			notion.NewAPIClient(cfg.Notion.Version),
			app.interpreter, cfg.Notion.DatabaseID, cfg.Notion.DefaultTags, cfg.Location()),
		Calendar: executor.NewCalendarExecutor(
			app.interpreter,
			gcal.NewClient(cfg.Calendar.CalendarID, cfg.Calendar.TimeZone, cfg.Calendar.Endpoint)),
		Habit: executor.NewHabitExecutor(
			habitica.NewAPIClient(cfg.Habitica.BaseURL, cfg.Habitica.ClientID), app.interpreter),
	}
	app.dispatcher = dispatch.New(app.interpreter, app.store, executors, app.notifier, dispatch.Timeouts{
		Action: cfg.Timeouts.Action,
		Notify: cfg.Timeouts.Notify,
	})

	app.broadcaster = broadcast.New(app.users, app.interpreter, app.notifier)

	if cfg.Calendar.ClientID != "" {
		app.calendar = authflow.NewCalendarFlow(authflow.OAuthConfig{
			ClientID:     cfg.Calendar.ClientID,
			ClientSecret: cfg.Calendar.ClientSecret,
			AuthURL:      cfg.Calendar.AuthURL,
			TokenURL:     cfg.Calendar.TokenURL,
			RedirectURL:  cfg.Calendar.RedirectURL,
			StartURL:     cfg.CalendarStartURL(),
		}, app.tokens, app.store)
	}

	log.Info().
		Str("ai_provider", string(connector.GetProvider())).
		Str("model", connector.GetModel()).
		Str("credential_backend", cfg.Credentials.Backend).
		Bool("database", app.db != nil).
		Msg("Application initialized")
	return app, nil
}

func (a *application) openDatabase(ctx context.Context) error {
	db, err := database.NewDB(a.cfg.Database.URL)
	if err != nil {
		return err
	}
	a.db = db
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	pool, err := database.NewPool(ctx, a.cfg.Database.URL)
	if err != nil {
		return err
	}
	a.pool = pool
	return nil
}

func (a *application) credentialBackend() (credentials.Backend, error) {
	if a.cfg.Credentials.Backend != "postgres" {
		log.Warn().Msg("Using the in-memory credential backend; credentials are lost on restart")
		return credentials.NewMemoryBackend(), nil
	}
	if a.pool == nil {
		return nil, fmt.Errorf("postgres credential backend needs a database")
	}
	sealer, err := credentials.NewSealer(a.cfg.Credentials.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials encryption key: %w", err)
	}
	if sealer == nil {
		log.Warn().Msg("credentials.encryption_key is empty; tokens are stored unencrypted")
	}
	return credentials.NewPostgresBackend(a.pool, sealer), nil
}

// Close releases database handles.
func (a *application) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
