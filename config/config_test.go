package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1000, cfg.Bus.HistorySize)
	assert.Equal(t, 500, cfg.Replay.Capacity)
	assert.Equal(t, 3, cfg.Agents.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Agents.DefaultTimeout.Std())
	assert.Equal(t, "category", cfg.Agents.AssistMatch)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Bus, cfg.Bus)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "army.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bus:
  history_size: 50
agents:
  failure_threshold: 5
  default_timeout: 2s
  assist_match: capability
archive:
  enabled: true
  path: /tmp/army.db
logging:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Bus.HistorySize)
	assert.Equal(t, 500, cfg.Replay.Capacity, "unset groups keep defaults")
	assert.Equal(t, 5, cfg.Agents.FailureThreshold)
	assert.Equal(t, 2*time.Second, cfg.Agents.DefaultTimeout.Std())
	assert.Equal(t, "capability", cfg.Agents.AssistMatch)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "army.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bus:\n  history_size: 50\n"), 0o600))

	t.Setenv("AGENTARMY_BUS_HISTORY_SIZE", "7")
	t.Setenv("AGENTARMY_AGENTS_DEFAULT_TIMEOUT", "500ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Bus.HistorySize)
	assert.Equal(t, 500*time.Millisecond, cfg.Agents.DefaultTimeout.Std())
}

func TestLoadProviderKeyFallback(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("OPENAI_API_KEY", "sk-oai-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", cfg.Providers.Anthropic.APIKey)
	assert.Equal(t, "sk-oai-test", cfg.Providers.OpenAI.APIKey)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bus: [not a map"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero history size", func(c *Config) { c.Bus.HistorySize = 0 }},
		{"negative replay capacity", func(c *Config) { c.Replay.Capacity = -1 }},
		{"zero failure threshold", func(c *Config) { c.Agents.FailureThreshold = 0 }},
		{"negative timeout", func(c *Config) { c.Agents.DefaultTimeout = Duration(-time.Second) }},
		{"bad assist match", func(c *Config) { c.Agents.AssistMatch = "psychic" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
