package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type evaluateResponse struct {
	Status string    `json:"status"`
	Data   cycleView `json:"data"`
}

func evaluateHistory(t *testing.T, configPath string) evaluateResponse {
	t.Helper()
	out, err := execute(t, NewRootCommand(), "--config", configPath, "--format", "json",
		"evaluate", "--history", historyPath(t))
	require.NoError(t, err, out)

	var resp evaluateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp
}

func TestEvaluateHistory_RecordsOnce(t *testing.T) {
	configPath, _ := testEnv(t)

	first := evaluateHistory(t, configPath)
	assert.Equal(t, "ok", first.Status)
	assert.Equal(t, 3, first.Data.Users)
	assert.Equal(t, 6, first.Data.Rules)
	assert.Equal(t, 1, first.Data.Issues)
	assert.Len(t, first.Data.NewAwards, 10)
	assert.Empty(t, first.Data.Failures)

	second := evaluateHistory(t, configPath)
	assert.Empty(t, second.Data.NewAwards, "already-held awards are not recorded again")
	assert.NotEqual(t, first.Data.ID, second.Data.ID)
}

func TestEvaluateHistory_TextOutput(t *testing.T) {
	configPath, _ := testEnv(t)

	out, err := execute(t, NewRootCommand(), "--config", configPath, "evaluate", "--history", historyPath(t))
	require.NoError(t, err)
	assert.Contains(t, out, "3 user(s), 6 rule(s), 10 new award(s)")
	assert.Contains(t, out, "1 definition(s) skipped")
	assert.Contains(t, out, "2024-01-10T20:00:00Z  u1           first_book")
}

func TestEvaluate_MissingHistory(t *testing.T) {
	configPath, _ := testEnv(t)

	out, err := execute(t, NewRootCommand(), "--config", configPath, "evaluate", "--history", "/nonexistent/history.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
}

func TestEvaluate_MissingRulesAbortsCycle(t *testing.T) {
	configPath, _ := testEnv(t)

	out, err := execute(t, NewRootCommand(), "--config", configPath, "--format", "json",
		"evaluate", "--history", historyPath(t), "--rules", "/nonexistent/achievements.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCycle, resp.Error.Code)
	assert.Equal(t, "RULES_UNAVAILABLE", resp.Error.Details)
}
