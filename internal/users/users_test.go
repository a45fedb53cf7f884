package users

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textbot/internal/actions"
)

func TestMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory(User{ID: "+15550000002", Persona: "schmidt"})

	require.NoError(t, dir.Upsert(ctx, User{ID: "+15550000001", Interests: []string{"running"}}))
	first, err := dir.Get(ctx, "+15550000001")
	require.NoError(t, err)
	assert.False(t, first.CreatedAt.IsZero())

	require.NoError(t, dir.Upsert(ctx, User{ID: "+15550000001", Interests: []string{"running", "chess"}}))
	updated, err := dir.Get(ctx, "+15550000001")
	require.NoError(t, err)
	assert.Equal(t, []string{"running", "chess"}, updated.Interests)
	assert.Equal(t, first.CreatedAt, updated.CreatedAt)

	list, err := dir.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, actions.UserID("+15550000001"), list[0].ID)

	_, err = dir.Get(ctx, "+19999999999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserValidate(t *testing.T) {
	assert.Error(t, User{}.Validate())
	assert.Error(t, User{ID: "5551234"}.Validate())
	assert.NoError(t, User{ID: "+15551234567"}.Validate())
}

// TestPostgresDirectory runs against a real database when TEXTBOT_TEST_DATABASE_URL is set.
func TestPostgresDirectory(t *testing.T) {
	dsn := os.Getenv("TEXTBOT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEXTBOT_TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()
	// temp tables live on one connection
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE TEMP TABLE users (
        phone_number TEXT PRIMARY KEY,
        interests TEXT[] NOT NULL DEFAULT '{}',
        persona TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`)
	require.NoError(t, err)

	dir := NewPostgresDirectory(db)
	require.NoError(t, dir.Upsert(ctx, User{ID: "+15550000001", Interests: []string{"hiking"}, Persona: "uncle_iroh"}))
	require.NoError(t, dir.Upsert(ctx, User{ID: "+15550000001", Interests: []string{"hiking", "tea"}, Persona: "uncle_iroh"}))

	u, err := dir.Get(ctx, "+15550000001")
	require.NoError(t, err)
	assert.Equal(t, []string{"hiking", "tea"}, u.Interests)

	_, err = dir.Get(ctx, "+15550000009")
	assert.ErrorIs(t, err, ErrNotFound)
}
