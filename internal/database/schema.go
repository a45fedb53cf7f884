package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/zerolog/log"
)

// Schema creates the tables the bot owns. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        phone_number TEXT PRIMARY KEY,
        interests TEXT[] NOT NULL DEFAULT '{}',
        persona TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS credentials (
        user_id TEXT NOT NULL,
        kind TEXT NOT NULL,
        cred_type TEXT NOT NULL,
        token TEXT NOT NULL DEFAULT '',
        account TEXT NOT NULL DEFAULT '',
        refresh_token TEXT NOT NULL DEFAULT '',
        token_url TEXT NOT NULL DEFAULT '',
        expires_at TIMESTAMPTZ,
        unusable BOOLEAN NOT NULL DEFAULT false,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (user_id, kind)
    )`,
}

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	log.Info().Int("statements", len(Schema)).Msg("Schema up to date")
	return nil
}

// MigrateQueue brings River's own tables up to date.
func MigrateQueue(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create river migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("failed to migrate river schema: %w", err)
	}
	log.Info().Int("versions", len(res.Versions)).Msg("Queue schema up to date")
	return nil
}
