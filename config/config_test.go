package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("OAF_DISCORD_BOT_TOKEN", "token-123")
	t.Setenv("OAF_DISCORD_APP_ID", "app-456")
	t.Setenv("OAF_KOL_USERNAME", "oaf")
	t.Setenv("OAF_KOL_PASSWORD", "hunter2")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, "token-123", cfg.Discord.BotToken)
	assert.Equal(t, "app-456", cfg.Discord.AppID)
	assert.Equal(t, "oaf", cfg.Kol.Username)
	assert.Equal(t, "hunter2", cfg.Kol.Password)
}

func TestDefaultsApply(t *testing.T) {
	t.Setenv("OAF_DISCORD_BOT_TOKEN", "token-123")
	t.Setenv("OAF_KOL_USERNAME", "oaf")
	t.Setenv("OAF_KOL_PASSWORD", "hunter2")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, "./dbfiles", cfg.Database.Directory, "default database directory applies when unset")
}

func TestEnvOverridesDefault(t *testing.T) {
	t.Setenv("OAF_DISCORD_BOT_TOKEN", "token-123")
	t.Setenv("OAF_KOL_USERNAME", "oaf")
	t.Setenv("OAF_KOL_PASSWORD", "hunter2")
	t.Setenv("OAF_DATABASE_DIRECTORY", "/var/lib/oaf")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/oaf", cfg.Database.Directory)
}

func TestMissingCredentialsRejected(t *testing.T) {
	t.Setenv("OAF_DISCORD_BOT_TOKEN", "token-123")
	t.Setenv("OAF_KOL_USERNAME", "")
	t.Setenv("OAF_KOL_PASSWORD", "")

	_, err := load()
	assert.Error(t, err)
}
