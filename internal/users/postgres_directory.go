package users

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/textbot/internal/actions"
)

// PostgresDirectory stores users in the users table.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory { return &PostgresDirectory{db: db} }

func (d *PostgresDirectory) List(ctx context.Context) ([]User, error) {
	rows, err := d.db.QueryContext(ctx, `
        SELECT phone_number, interests, persona, created_at
        FROM users ORDER BY phone_number
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (d *PostgresDirectory) Get(ctx context.Context, id actions.UserID) (User, error) {
	row := d.db.QueryRowContext(ctx, `
        SELECT phone_number, interests, persona, created_at
        FROM users WHERE phone_number=$1
    `, string(id))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (d *PostgresDirectory) Upsert(ctx context.Context, u User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := d.db.ExecContext(ctx, `
        INSERT INTO users (phone_number, interests, persona)
        VALUES ($1,$2,$3)
        ON CONFLICT (phone_number) DO UPDATE SET interests=EXCLUDED.interests, persona=EXCLUDED.persona, updated_at=now()
    `, string(u.ID), pq.Array(ensureSliceNotNil(u.Interests)), u.Persona)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(scanner rowScanner) (User, error) {
	var (
		u         User
		id        string
		interests []string
	)
	if err := scanner.Scan(&id, pq.Array(&interests), &u.Persona, &u.CreatedAt); err != nil {
		return User{}, err
	}
	u.ID = actions.UserID(id)
	u.Interests = interests
	return u, nil
}

func ensureSliceNotNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
