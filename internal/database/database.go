package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/textbot/internal/retry"
)

// Pool limits for the pgx pool shared by the credential backend and the job queue.
const (
	maxConns        = int32(10)
	minConns        = int32(1)
	maxConnLifetime = time.Hour
	maxConnIdleTime = 30 * time.Minute
)

// NewDB opens a database/sql connection.
func NewDB(url string) (*sql.DB, error) {
	dbURL, err := requireURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to get database URL: %w", err)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return db, nil
}

// NewPool opens a pgx connection pool.
func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	dbURL, err := requireURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to get database URL: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConns = maxConns
	poolConfig.MinConns = minConns
	poolConfig.MaxConnLifetime = maxConnLifetime
	poolConfig.MaxConnIdleTime = maxConnIdleTime

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	// the database may still be starting next to us
	ping := retry.RetryWithBackoff(ctx, retry.DefaultRetryConfig(), pool.Ping)
	if !ping.Success {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database after %d attempts: %w", ping.Attempts, ping.LastError)
	}

	log.Info().Int32("max_conns", poolConfig.MaxConns).Msg("Database pool ready")
	return pool, nil
}

func requireURL(url string) (string, error) {
	if direct := strings.TrimSpace(url); direct != "" {
		return direct, nil
	}
	return "", errors.New("database url is empty; set database.url or TEXTBOT_DATABASE__URL")
}
