package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/api/auth"
	"github.com/textbot/internal/authflow"
	"github.com/textbot/internal/broadcast"
	"github.com/textbot/internal/credentials"
	"github.com/textbot/internal/notifier"
	"github.com/textbot/internal/users"
)

// MessageHandler processes one inbound message end to end. dispatch.Dispatcher satisfies it.
type MessageHandler interface {
	Handle(ctx context.Context, user actions.UserID, rawText string) actions.Outcome
}

// MessageQueue persists inbound messages for a worker. jobqueue.JobQueue satisfies it.
type MessageQueue interface {
	Enqueue(ctx context.Context, user actions.UserID, text, textID string) error
}

// CredentialRegistrar stores credentials. credentials.Store satisfies it.
type CredentialRegistrar interface {
	Register(ctx context.Context, user actions.UserID, kind actions.Kind, cred credentials.Credential) error
}

// Deps are the components the server routes to. Queue, Broadcaster and Calendar are
// optional; their routes answer 503 when unset.
type Deps struct {
	Handler     MessageHandler
	Queue       MessageQueue
	Notifier    notifier.Notifier
	Broadcaster *broadcast.Broadcaster
	Users       users.Directory
	Credentials CredentialRegistrar
	Calendar    *authflow.CalendarFlow
	Tokens      *auth.TokenService

	// WebhookKey verifies signed reply webhooks. Replies are refused while it is empty.
	WebhookKey string

	// RequestTimeout bounds a message handled in-process when no queue is configured.
	RequestTimeout time.Duration
}

// Server represents the API server
type Server struct {
	echo *echo.Echo
	port int
	deps Deps
	now  func() time.Time

	// inflight tracks messages handled in-process so shutdown can wait for them.
	inflight sync.WaitGroup
}

// NewServer creates a new API server
func NewServer(port int, deps Deps) *Server {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 2 * time.Minute
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/health" || path == "/metrics"
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				AnErr("error", v.Error).
				Msg("HTTP request completed")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo: e,
		port: port,
		deps: deps,
		now:  time.Now,
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiGroup := s.echo.Group("/api")
	apiGroup.POST("/handleSmsReply", s.handleSmsReply)

	admin := apiGroup.Group("", auth.RequireAdmin(s.deps.Tokens))
	admin.POST("/send_sms", s.sendSMS)
	admin.POST("/text_all_users", s.textAllUsers)
	admin.POST("/credentials", s.registerCredential)
	admin.GET("/users", s.listUsers)
	admin.POST("/users", s.upsertUser)
	admin.POST("/calendar/link", s.sendCalendarLink)

	oauth := s.echo.Group("/oauth/calendar")
	oauth.GET("/start", s.calendarStart)
	oauth.GET("/callback", s.calendarCallback)
}

// ServeHTTP lets the server be mounted or exercised without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully and waits for messages
// still being handled in-process.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.port).Msg("API server listening")
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.echo.Shutdown(shutdownCtx)
	s.inflight.Wait()
	log.Info().Msg("API server stopped")
	return err
}
