package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMissingConfigFile(t *testing.T) {
	testEnv(t)
	_, err := execute(t, NewRootCommand(), "--config", "/nonexistent/trophycase.yaml", "run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestRunNegativeInterval(t *testing.T) {
	configPath, _ := testEnv(t)
	_, err := execute(t, NewRootCommand(), "--config", configPath, "run", "--interval", "-1s")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	configPath, dbPath := testEnv(t)

	// The stats service is down; cycles fail and are retried, and the loop
	// still exits cleanly when the context ends.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	t.Setenv("ABSSTATS_BASE_URL", srv.URL)
	t.Setenv("FETCH_RETRIES", "0")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	cmd := NewRootCommand()
	cmd.SetContext(ctx)
	out, err := execute(t, cmd, "--config", configPath, "run", "--interval", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "Engine started")

	_, statErr := os.Stat(dbPath)
	assert.NoError(t, statErr, "ledger created on first run")
}
