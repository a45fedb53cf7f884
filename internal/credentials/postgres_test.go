package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textbot/internal/actions"
)

var credentialColumns = []string{
	"cred_type", "token", "account", "refresh_token", "token_url", "expires_at", "unusable", "updated_at",
}

func testSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)
	return s
}

func TestPostgresBackendGetNotFound(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	mockDB.ExpectQuery(`(?is)SELECT cred_type, .* FROM credentials WHERE user_id = \$1 AND kind = \$2`).
		WithArgs("+15551234567", "NOTE").
		WillReturnRows(pgxmock.NewRows(credentialColumns))

	backend := NewPostgresBackend(mockDB, nil)
	_, err = backend.Get(context.Background(), testUser, actions.KindNote)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresBackendGetOpensSealedTokens(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	sealer := testSealer(t)
	sealedAccess, err := sealer.Seal("access-1")
	require.NoError(t, err)
	sealedRefresh, err := sealer.Seal("refresh-1")
	require.NoError(t, err)

	expiry := time.Date(2025, 11, 24, 15, 0, 0, 0, time.UTC)
	updated := expiry.Add(-time.Hour)
	mockDB.ExpectQuery(`(?is)SELECT cred_type, .* FROM credentials`).
		WithArgs("+15551234567", "CALENDAR").
		WillReturnRows(pgxmock.NewRows(credentialColumns).
			AddRow("renewable", sealedAccess, "", sealedRefresh, "https://oauth2.example/token", &expiry, false, updated))

	backend := NewPostgresBackend(mockDB, sealer)
	cred, err := backend.Get(context.Background(), testUser, actions.KindCalendar)
	require.NoError(t, err)

	assert.Equal(t, TypeRenewable, cred.Type)
	assert.Equal(t, "access-1", cred.Token)
	assert.Equal(t, "refresh-1", cred.RefreshToken)
	assert.Equal(t, expiry, cred.Expiry)
	assert.Equal(t, updated, cred.UpdatedAt)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresBackendGetStaticWithoutExpiry(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	updated := time.Date(2025, 11, 24, 12, 0, 0, 0, time.UTC)
	mockDB.ExpectQuery(`(?is)SELECT cred_type, .* FROM credentials`).
		WithArgs("+15551234567", "NOTE").
		WillReturnRows(pgxmock.NewRows(credentialColumns).
			AddRow("static", "secret_notion", "db-1", "", "", nil, false, updated))

	backend := NewPostgresBackend(mockDB, nil)
	cred, err := backend.Get(context.Background(), testUser, actions.KindNote)
	require.NoError(t, err)
	assert.Equal(t, Static("secret_notion", "db-1").Token, cred.Token)
	assert.Equal(t, "db-1", cred.Account)
	assert.True(t, cred.Expiry.IsZero())
}

func TestPostgresBackendPutUpserts(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	expiry := time.Date(2025, 11, 24, 15, 0, 0, 0, time.UTC)
	mockDB.ExpectExec(`(?is)INSERT INTO credentials .* ON CONFLICT \(user_id, kind\) DO UPDATE`).
		WithArgs("+15551234567", "CALENDAR", "renewable",
			pgxmock.AnyArg(), "", pgxmock.AnyArg(), "https://oauth2.example/token",
			expiry, false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	backend := NewPostgresBackend(mockDB, testSealer(t))
	err = backend.Put(context.Background(), testUser, actions.KindCalendar,
		Renewable("access-1", "refresh-1", "https://oauth2.example/token", expiry))
	require.NoError(t, err)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestSealer(t *testing.T) {
	s := testSealer(t)

	sealed, err := s.Seal("secret")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "secret")

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "secret", opened)

	plain, err := s.Open("legacy-plain")
	require.NoError(t, err)
	assert.Equal(t, "legacy-plain", plain)

	var none *Sealer
	_, err = none.Open(sealed)
	assert.Error(t, err)

	_, err = NewSealer("abcd")
	assert.Error(t, err)

	nilSealer, err := NewSealer("")
	require.NoError(t, err)
	assert.Nil(t, nilSealer)
}
