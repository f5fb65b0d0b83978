package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads. Viper treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range env {
		t.Setenv(name, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3010", cfg.Stats.BaseURL)
	assert.Equal(t, "/api/completed", cfg.Stats.CompletedEndpoint)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval())
	assert.Equal(t, 24*time.Hour, cfg.SeriesRefresh())
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 3, cfg.Stats.FetchRetries)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, "/data/state.db", cfg.StateDBPath)
	assert.Equal(t, "./data/achievements.points.json", cfg.AchievementsPath)
	assert.Empty(t, cfg.Discord.ProxyURL)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "trophycase.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stats:
  base_url: http://stats.internal:3000/
  fetch_retries: 5
engine:
  poll_seconds: 60
  timezone: Europe/London
discord:
  user_aliases: "alice:Alice A."
`), 0o644))

	t.Setenv("POLL_SECONDS", "120")
	t.Setenv("DISCORD_PROXY_URL", "http://stats.internal:3000/api/discord-notify")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://stats.internal:3000", cfg.Stats.BaseURL, "trailing slash trimmed")
	assert.Equal(t, 5, cfg.Stats.FetchRetries)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval(), "env beats file")
	assert.Equal(t, "Europe/London", cfg.Engine.Timezone)
	assert.Equal(t, "alice:Alice A.", cfg.Discord.UserAliases)
	assert.Equal(t, "http://stats.internal:3000/api/discord-notify", cfg.Discord.ProxyURL)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"bad timezone":  {"TIMEZONE": "Mars/Olympus_Mons"},
		"zero interval": {"POLL_SECONDS": "0"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Chdir(t.TempDir())
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
