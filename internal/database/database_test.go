package database

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireURLTrims(t *testing.T) {
	url, err := requireURL("  postgres://explicit ")
	require.NoError(t, err)
	assert.Equal(t, "postgres://explicit", url)
}

func TestEmptyURLIsRejected(t *testing.T) {
	// the process environment is never consulted directly; koanf owns configuration
	t.Setenv("DATABASE_URL", "postgres://env")

	_, err := requireURL(" ")
	assert.ErrorContains(t, err, "TEXTBOT_DATABASE__URL")

	_, err = NewDB("")
	assert.Error(t, err)

	_, err = NewPool(context.Background(), "")
	assert.Error(t, err)
}

func TestSchemaIsIdempotent(t *testing.T) {
	for _, stmt := range Schema {
		assert.True(t, strings.HasPrefix(stmt, "CREATE TABLE IF NOT EXISTS"), stmt)
	}
}
