// Package config provides configuration loading for jobflow.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/jobflow/internal/extractor"
	"github.com/fyrsmithlabs/jobflow/internal/logging"
)

// Config is the root configuration for the daemon and the CLI.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Extraction extractor.Config `koanf:"extraction"`
	Checkpoint CheckpointConfig `koanf:"checkpoint"`
	Retry      RetryConfig      `koanf:"retry"`
	Logging    logging.Config   `koanf:"logging"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Checkpoint backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// CheckpointConfig selects where workflow state is persisted.
type CheckpointConfig struct {
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"` // sqlite database file
}

// RetryConfig tunes the quality-gated retry wrapper around each step.
type RetryConfig struct {
	MaxRetries  int           `koanf:"max_retries"`
	MinScore    float64       `koanf:"min_score"`
	BaseBackoff time.Duration `koanf:"base_backoff"`
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Checkpoint.Backend {
	case BackendSQLite:
		if c.Checkpoint.Path == "" {
			return fmt.Errorf("checkpoint.path required for sqlite backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.Checkpoint.Backend)
	}
	if c.Retry.MinScore < 0 || c.Retry.MinScore > 1 {
		return fmt.Errorf("retry.min_score %v out of range [0,1]", c.Retry.MinScore)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative")
	}
	return nil
}
