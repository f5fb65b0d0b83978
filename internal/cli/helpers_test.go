package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// testEnv writes a config file pointing at a fresh ledger and the fixture
// definitions, and blanks the environment variables that would override it.
func testEnv(t *testing.T) (configPath, dbPath string) {
	t.Helper()
	for _, name := range []string{
		"ABSSTATS_BASE_URL", "STATE_DB_PATH", "ACHIEVEMENTS_PATH", "POLL_SECONDS",
		"DISCORD_PROXY_URL", "USER_ALIASES", "TIMEZONE", "WORKERS",
	} {
		t.Setenv(name, "")
	}

	rules, err := filepath.Abs(filepath.Join("testdata", "achievements.yaml"))
	require.NoError(t, err)

	dir := t.TempDir()
	dbPath = filepath.Join(dir, "state.db")
	configPath = filepath.Join(dir, "trophycase.yaml")
	cfg := "state_db_path: " + dbPath + "\n" +
		"achievements_path: " + rules + "\n" +
		"engine:\n  timezone: UTC\n  workers: 2\n"
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))
	return configPath, dbPath
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func historyPath(t *testing.T) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("testdata", "history.yaml"))
	require.NoError(t, err)
	return p
}
