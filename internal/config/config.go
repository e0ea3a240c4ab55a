// Package config defines the sprintd configuration schema and loads it via
// viper from a YAML file, environment variables (SPRINTD_ prefix), or both.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete sprintd configuration.
type Config struct {
	Sprint    SprintConfig     `mapstructure:"sprint"`
	Providers []ProviderConfig `mapstructure:"providers"`
	Judge     JudgeConfig      `mapstructure:"judge"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Paths     PathsConfig      `mapstructure:"paths"`
}

// SprintConfig controls phase execution behavior.
type SprintConfig struct {
	// PhaseTimeoutSeconds is the deadline for one phase attempt's candidate
	// fan-out. Never infinite: zero or negative falls back to the default.
	PhaseTimeoutSeconds int `mapstructure:"phase_timeout_seconds"`
	// MaxAttempts is how many times a phase may run before it is failed.
	MaxAttempts int `mapstructure:"max_attempts"`
	// Workspace is an opaque reference recorded in checkpoints so external
	// collaborators can locate run materials.
	Workspace string `mapstructure:"workspace"`
}

// PhaseTimeout returns the configured phase deadline as a duration.
func (s SprintConfig) PhaseTimeout() time.Duration {
	secs := s.PhaseTimeoutSeconds
	if secs <= 0 {
		secs = DefaultPhaseTimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}

// ProviderConfig describes one candidate provider. Type selects the
// implementation; the remaining fields apply per type.
type ProviderConfig struct {
	// Name identifies the provider in candidate records and events.
	Name string `mapstructure:"name"`
	// Type is one of "http", "command", "static".
	Type string `mapstructure:"type"`
	// Model is the model identifier reported on candidates.
	Model string `mapstructure:"model"`

	// Endpoint is the URL an http provider posts to.
	Endpoint string `mapstructure:"endpoint"`
	// APIKeyEnv names the environment variable holding the bearer token
	// for an http provider. The key itself never lives in config files.
	APIKeyEnv string `mapstructure:"api_key_env"`

	// Command and Args define the executable a command provider runs; the
	// phase input is written to its stdin and stdout becomes the output.
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`

	// Output is the fixed response of a static provider (dry runs, tests).
	Output string `mapstructure:"output"`
}

// JudgeConfig selects the arbitration strategy for every phase.
type JudgeConfig struct {
	// Type is "heuristic" (deterministic, no external call) or "provider"
	// (a provider call whose output carries the decision).
	Type string `mapstructure:"type"`
	// Provider configures the judge's provider when Type is "provider".
	Provider ProviderConfig `mapstructure:"provider"`
}

// LoggingConfig controls debug log output.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level"`
	// Dir is where sprintd.log is written; empty logs to stderr.
	Dir string `mapstructure:"dir"`
}

// PathsConfig controls where sprint state lives on disk.
type PathsConfig struct {
	// DataDir holds per-sprint checkpoints, artifacts, and timelines.
	DataDir string `mapstructure:"data_dir"`
}

// Defaults applied by SetDefaults when the config file omits a value.
const (
	DefaultPhaseTimeoutSeconds = 600
	DefaultMaxAttempts         = 2
	DefaultLogLevel            = "INFO"
)

// SetDefaults registers default values with viper. Call before reading the
// config file so defaults apply even without one.
func SetDefaults() {
	viper.SetDefault("sprint.phase_timeout_seconds", DefaultPhaseTimeoutSeconds)
	viper.SetDefault("sprint.max_attempts", DefaultMaxAttempts)
	viper.SetDefault("judge.type", "heuristic")
	viper.SetDefault("logging.level", DefaultLogLevel)
	viper.SetDefault("paths.data_dir", DefaultDataDir())
}

// Load unmarshals the current viper state into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigDir returns the sprintd config directory, honoring XDG_CONFIG_HOME.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sprintd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sprintd"
	}
	return filepath.Join(home, ".config", "sprintd")
}

// DefaultDataDir returns the default location for sprint state.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sprintd-data"
	}
	return filepath.Join(home, ".local", "share", "sprintd")
}

// ProviderByName returns the named provider config, or false.
func (c *Config) ProviderByName(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return ProviderConfig{}, false
}
