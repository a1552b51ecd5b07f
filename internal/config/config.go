// Package config loads thinkgraph settings from an optional YAML file and
// THINKING_GRAPH_* environment variables. Environment variables override
// the file; command-line flags, applied by the caller, override both.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvDatabase = "THINKING_GRAPH_DB"
	EnvActor    = "THINKING_GRAPH_ACTOR"
	EnvLogLevel = "THINKING_GRAPH_LOG_LEVEL"
	EnvLogMode  = "THINKING_GRAPH_LOG_MODE"
)

// Defaults.
const (
	DefaultDatabasePath = "data/thinking_graph.db"
	DefaultActor        = "cli-user"
	DefaultLogLevel     = "warn"
	DefaultLogMode      = "production"
)

// Config holds all thinkgraph configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`

	// Actor is recorded on every audit entry written by this process.
	Actor string `yaml:"actor"`

	Log LogConfig `yaml:"log"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level string `yaml:"level"`
	Mode  string `yaml:"mode"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: DefaultDatabasePath},
		Actor:    DefaultActor,
		Log:      LogConfig{Level: DefaultLogLevel, Mode: DefaultLogMode},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Strict decoding catches misspelled keys.
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Database.Path = getEnv(EnvDatabase, cfg.Database.Path)
	cfg.Actor = getEnv(EnvActor, cfg.Actor)
	cfg.Log.Level = getEnv(EnvLogLevel, cfg.Log.Level)
	cfg.Log.Mode = getEnv(EnvLogMode, cfg.Log.Mode)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and well-formed.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database path is required")
	}
	if strings.TrimSpace(c.Actor) == "" {
		return fmt.Errorf("actor is required")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Mode) {
	case "production", "prod", "development", "dev", "nop":
	default:
		return fmt.Errorf("invalid log mode %q (expected production, development or nop)", c.Log.Mode)
	}
	return nil
}

// getEnv returns the trimmed value of key, or def when it is unset or blank.
func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
