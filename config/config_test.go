package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/go-orchestra/core"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, "asi1-mini", cfg.LLM.Model)
	assert.Equal(t, "https://api.asi1.ai/v1", cfg.LLM.BaseURL)
	assert.Zero(t, cfg.LLM.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.LLM.RetryBackoff)
	assert.Equal(t, "http://localhost:5001", cfg.Backends.SmartAgentsURL)
	assert.Equal(t, "http://localhost:8020", cfg.Backends.SupremeURL)
	assert.Equal(t, "https://agentverse.ai", cfg.Agentverse.BaseURL)
	assert.Empty(t, cfg.Database.DSN)
	assert.Equal(t, 4, cfg.Session.MaxParallelTools)
	assert.Equal(t, 60*time.Second, cfg.Timeouts.Completion)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Persistence)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ASI1_API_KEY", "sk-asi")
	t.Setenv("AGENTVERSE_API_KEY", "av-key")
	t.Setenv("PYTHON_SERVER_URL", "http://agents:5001")
	t.Setenv("SUPREME_ORCHESTRATOR_URL", "http://supreme:8020")
	t.Setenv("DATABASE_DSN", "postgres://u:p@db/orchestra")
	t.Setenv("ORCHESTRA_TIMEOUTS_TOOL", "3s")
	t.Setenv("ORCHESTRA_SESSION_MAX_PARALLEL_TOOLS", "8")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-asi", cfg.LLM.APIKey)
	assert.Equal(t, "av-key", cfg.Agentverse.APIKey)
	assert.Equal(t, "http://agents:5001", cfg.Backends.SmartAgentsURL)
	assert.Equal(t, "http://supreme:8020", cfg.Backends.SupremeURL)
	assert.Equal(t, "postgres://u:p@db/orchestra", cfg.Database.DSN)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Tool)
	assert.Equal(t, 8, cfg.Session.MaxParallelTools)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "orchestra.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
llm:
  model: asi1-extended
  max_retries: 2
timeouts:
  completion: 15s
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "asi1-extended", cfg.LLM.Model)
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
	assert.Equal(t, 15*time.Second, cfg.Timeouts.Completion)

	client := cfg.ClientConfig()
	assert.Equal(t, "asi1-extended", client.Model.Name)
	assert.Equal(t, 15*time.Second, client.Timeout)
	assert.Equal(t, 2, client.MaxRetries)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ORCHESTRA_SESSION_MAX_PARALLEL_TOOLS", "0")

	_, err := Load("")

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "session.max_parallel_tools", verr.Field)
}
