package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "memory", cfg.Credentials.Backend)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Interpreter)
	assert.Equal(t, time.Minute, cfg.Credentials.RefreshSkew)
	assert.Contains(t, cfg.Notion.DefaultTags, "daily_log")
	assert.Equal(t, "primary", cfg.Calendar.CalendarID)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "textbot.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 8080
public_url = "https://bot.example.com/"

[ai]
provider = "gemini"
api_key = "from-file"
`), 0644))

	t.Setenv("TEXTBOT_AI__API_KEY", "from-env")
	t.Setenv("TEXTBOT_SERVER__PUBLIC_URL", "https://env.example.com")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, "from-env", cfg.AI.APIKey)
	assert.Equal(t, "https://env.example.com/api/handleSmsReply", cfg.ReplyWebhookURL())
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitConfigRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textbot.toml")
	require.NoError(t, InitConfig(path))
	assert.Error(t, InitConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Credentials.Backend)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.ErrorContains(t, Validate(cfg), "api_key")

	cfg.AI.APIKey = "k"
	assert.ErrorContains(t, Validate(cfg), "jwt_secret")

	cfg.Auth.JWTSecret = "s"
	assert.NoError(t, Validate(cfg))

	cfg.Credentials.Backend = "postgres"
	assert.ErrorContains(t, Validate(cfg), "database url")

	cfg.Credentials.Backend = "redis"
	assert.ErrorContains(t, Validate(cfg), "unsupported credential backend")

	cfg.Credentials.Backend = "memory"
	cfg.Calendar.ClientID = "client"
	assert.ErrorContains(t, Validate(cfg), "public_url")

	cfg.Server.PublicURL = "https://bot.example.com"
	assert.NoError(t, Validate(cfg))

	cfg.Calendar.TimeZone = "Mars/Olympus"
	assert.ErrorContains(t, Validate(cfg), "timezone")
}

func TestPublicURLsEmptyWithoutPublicURL(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Empty(t, cfg.ReplyWebhookURL())
	assert.Empty(t, cfg.CalendarStartURL())

	cfg.Server.PublicURL = " https://bot.example.com/ "
	assert.Equal(t, "https://bot.example.com/api/handleSmsReply", cfg.ReplyWebhookURL())
	assert.Equal(t, "https://bot.example.com/oauth/calendar/start", cfg.CalendarStartURL())
}
