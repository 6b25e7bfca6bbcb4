// Package config loads framework configuration from an optional YAML file
// with environment variable overrides. Priority: environment > file >
// defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for all environment overrides, e.g.
// AGENTARMY_BUS_HISTORY_SIZE.
const EnvPrefix = "AGENTARMY"

// BusConfig tunes the communication bus.
type BusConfig struct {
	// HistorySize bounds the retained event history.
	HistorySize int `yaml:"history_size" envconfig:"HISTORY_SIZE"`
}

// ReplayConfig tunes the experience replay buffer.
type ReplayConfig struct {
	// Capacity is the fixed size of the FIFO ring.
	Capacity int `yaml:"capacity" envconfig:"CAPACITY"`
}

// Duration is a time.Duration that unmarshals from "30s"-style strings in
// both YAML and environment variables.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Decode implements envconfig.Decoder.
func (d *Duration) Decode(value string) error {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// AgentsConfig tunes the agent manager.
type AgentsConfig struct {
	// FailureThreshold is the consecutive failure count that trips an agent
	// into error status.
	FailureThreshold int `yaml:"failure_threshold" envconfig:"FAILURE_THRESHOLD"`
	// DefaultTimeout bounds a single delegation; zero disables the bound.
	DefaultTimeout Duration `yaml:"default_timeout" envconfig:"DEFAULT_TIMEOUT"`
	// AssistMatch selects the assistance match policy: "category" (default)
	// or "capability".
	AssistMatch string `yaml:"assist_match" envconfig:"ASSIST_MATCH"`
}

// ArchiveConfig tunes the SQLite event archive.
type ArchiveConfig struct {
	// Enabled turns event archival on.
	Enabled bool `yaml:"enabled" envconfig:"ENABLED"`
	// Path is the SQLite database file; empty means in-memory.
	Path string `yaml:"path" envconfig:"PATH"`
}

// LoggingConfig tunes structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" envconfig:"LEVEL"`
	// Format is "text" or "json".
	Format string `yaml:"format" envconfig:"FORMAT"`
}

// ProvidersConfig carries LLM provider credentials and model selection.
type ProvidersConfig struct {
	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
}

// AnthropicConfig configures the Anthropic advisor provider.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key" envconfig:"API_KEY"`
	Model  string `yaml:"model" envconfig:"MODEL"`
}

// OpenAIConfig configures the OpenAI advisor provider.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key" envconfig:"API_KEY"`
	Model  string `yaml:"model" envconfig:"MODEL"`
}

// Config is the root configuration object.
type Config struct {
	Bus       BusConfig       `yaml:"bus"`
	Replay    ReplayConfig    `yaml:"replay"`
	Agents    AgentsConfig    `yaml:"agents"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Logging   LoggingConfig   `yaml:"logging"`
	Providers ProvidersConfig `yaml:"providers"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() *Config {
	return &Config{
		Bus:    BusConfig{HistorySize: 1000},
		Replay: ReplayConfig{Capacity: 500},
		Agents: AgentsConfig{
			FailureThreshold: 3,
			DefaultTimeout:   Duration(30 * time.Second),
			AssistMatch:      "category",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from the YAML file at path (skipped when path is
// empty or the file does not exist), then applies environment overrides per
// group, then validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	for prefix, target := range map[string]any{
		EnvPrefix + "_BUS":       &cfg.Bus,
		EnvPrefix + "_REPLAY":    &cfg.Replay,
		EnvPrefix + "_AGENTS":    &cfg.Agents,
		EnvPrefix + "_ARCHIVE":   &cfg.Archive,
		EnvPrefix + "_LOGGING":   &cfg.Logging,
		EnvPrefix + "_ANTHROPIC": &cfg.Providers.Anthropic,
		EnvPrefix + "_OPENAI":    &cfg.Providers.OpenAI,
	} {
		if err := envconfig.Process(prefix, target); err != nil {
			return nil, fmt.Errorf("apply %s environment overrides: %w", prefix, err)
		}
	}

	// Fallback to the SDKs' conventional key variables.
	if cfg.Providers.Anthropic.APIKey == "" {
		cfg.Providers.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.Providers.OpenAI.APIKey == "" {
		cfg.Providers.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the framework cannot run with.
func (c *Config) Validate() error {
	if c.Bus.HistorySize <= 0 {
		return fmt.Errorf("bus.history_size must be positive, got %d", c.Bus.HistorySize)
	}
	if c.Replay.Capacity <= 0 {
		return fmt.Errorf("replay.capacity must be positive, got %d", c.Replay.Capacity)
	}
	if c.Agents.FailureThreshold <= 0 {
		return fmt.Errorf("agents.failure_threshold must be positive, got %d", c.Agents.FailureThreshold)
	}
	if c.Agents.DefaultTimeout < 0 {
		return fmt.Errorf("agents.default_timeout must not be negative, got %s", c.Agents.DefaultTimeout)
	}
	switch c.Agents.AssistMatch {
	case "category", "capability":
	default:
		return fmt.Errorf("agents.assist_match must be %q or %q, got %q", "category", "capability", c.Agents.AssistMatch)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be %q or %q, got %q", "text", "json", c.Logging.Format)
	}
	return nil
}
