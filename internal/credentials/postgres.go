package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/textbot/internal/actions"
)

// Querier is the subset of *pgxpool.Pool the Postgres backend needs.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PostgresBackend stores credentials in the credentials table. Token material is sealed
// when a Sealer is configured.
type PostgresBackend struct {
	db     Querier
	sealer *Sealer
}

// NewPostgresBackend wraps a pgx pool.
func NewPostgresBackend(db Querier, sealer *Sealer) *PostgresBackend {
	return &PostgresBackend{db: db, sealer: sealer}
}

const selectCredentialSQL = `SELECT cred_type, token, account, refresh_token, token_url, expires_at, unusable, updated_at
FROM credentials WHERE user_id = $1 AND kind = $2`

const upsertCredentialSQL = `INSERT INTO credentials
	(user_id, kind, cred_type, token, account, refresh_token, token_url, expires_at, unusable, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (user_id, kind) DO UPDATE SET
	cred_type = EXCLUDED.cred_type,
	token = EXCLUDED.token,
	account = EXCLUDED.account,
	refresh_token = EXCLUDED.refresh_token,
	token_url = EXCLUDED.token_url,
	expires_at = EXCLUDED.expires_at,
	unusable = EXCLUDED.unusable,
	updated_at = EXCLUDED.updated_at`

func (p *PostgresBackend) Get(ctx context.Context, user actions.UserID, kind actions.Kind) (Credential, error) {
	var (
		cred      Credential
		credType  string
		expiresAt *time.Time
	)
	err := p.db.QueryRow(ctx, selectCredentialSQL, string(user), kind.String()).Scan(
		&credType,
		&cred.Token,
		&cred.Account,
		&cred.RefreshToken,
		&cred.TokenURL,
		&expiresAt,
		&cred.Unusable,
		&cred.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		return Credential{}, fmt.Errorf("query credential: %w", err)
	}

	cred.Type = Type(credType)
	if expiresAt != nil {
		cred.Expiry = *expiresAt
	}
	if cred.Token, err = p.sealer.Open(cred.Token); err != nil {
		return Credential{}, fmt.Errorf("open token: %w", err)
	}
	if cred.RefreshToken, err = p.sealer.Open(cred.RefreshToken); err != nil {
		return Credential{}, fmt.Errorf("open refresh token: %w", err)
	}
	return cred, nil
}

func (p *PostgresBackend) Put(ctx context.Context, user actions.UserID, kind actions.Kind, cred Credential) error {
	token, err := p.sealer.Seal(cred.Token)
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}
	refresh, err := p.sealer.Seal(cred.RefreshToken)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}

	var expiresAt interface{}
	if !cred.Expiry.IsZero() {
		expiresAt = cred.Expiry
	}
	updatedAt := cred.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = p.db.Exec(ctx, upsertCredentialSQL,
		string(user),
		kind.String(),
		string(cred.Type),
		token,
		cred.Account,
		refresh,
		cred.TokenURL,
		expiresAt,
		cred.Unusable,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}
