package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 8780, cfg.Gateway.Port)
	assert.Equal(t, time.Minute, cfg.Scheduler.PollInterval)
	assert.Equal(t, 10, cfg.Conductor.DedupWindow)
	assert.Equal(t, 20, cfg.Conductor.SuppressWindow)
	assert.Equal(t, 8, cfg.Conductor.MaxToolIterations)
	assert.Equal(t, 40, cfg.Conductor.SummarizeAfter)
	assert.Equal(t, 5*time.Minute, cfg.Email.CheckInterval)
	assert.Equal(t, 3, cfg.Worker.MaxStepRetries)
	assert.Equal(t, 20, cfg.Worker.MaxSteps)
	assert.NoError(t, Validate(cfg))
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Gateway.Port, cfg.Gateway.Port)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "valet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gateway:
  port: 9999
scheduler:
  pollInterval: 30s
email:
  imapHost: imap.example.com
  checkInterval: 90s
logging:
  level: debug
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Gateway.Port)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, 90*time.Second, cfg.Email.CheckInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections and fields keep defaults.
	assert.Equal(t, 10, cfg.Conductor.DedupWindow)
	assert.Equal(t, 993, cfg.Email.IMAPPort)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "valet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scheduler:
  pollInterval: soon
`), 0o600))

	_, err := Load(path)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestLoadExpandsEnvInSecrets(t *testing.T) {
	t.Setenv("TEST_VALET_KEY", "sk-123")
	path := filepath.Join(t.TempDir(), "valet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  apiKey: ${TEST_VALET_KEY}
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-123", cfg.LLM.APIKey)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "valet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway: [not a map"), 0o600))

	_, err := Load(path)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VALET_DB_PATH", "/tmp/other.db")
	t.Setenv("VALET_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Store.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidateBounds(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Port = 70000
	assert.Error(t, Validate(cfg))

	cfg = Defaults()
	cfg.Scheduler.PollInterval = time.Millisecond
	assert.Error(t, Validate(cfg))

	cfg = Defaults()
	cfg.Conductor.DedupWindow = 0
	assert.Error(t, Validate(cfg))

	cfg = Defaults()
	cfg.Worker.MaxStepRetries = 0
	assert.Error(t, Validate(cfg))

	cfg = Defaults()
	cfg.Conductor.SummarizeAfter = 0
	assert.Error(t, Validate(cfg))

	cfg = Defaults()
	cfg.Email.CheckInterval = time.Millisecond
	assert.Error(t, Validate(cfg))
}
