package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/jobflow/internal/extractor"
	"github.com/fyrsmithlabs/jobflow/internal/logging"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// envPrefix scopes which environment variables the loader reads.
const envPrefix = "JOBFLOW_"

// Load loads configuration from a YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (JOBFLOW_SERVER_PORT, JOBFLOW_EXTRACTION_API_KEY, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// An empty configPath skips the file step entirely.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	// JOBFLOW_SERVER_PORT -> server.port
	// JOBFLOW_EXTRACTION_API_KEY -> extraction.api_key
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8084
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	def := extractor.DefaultConfig()
	if cfg.Extraction.Provider == "" {
		cfg.Extraction.Provider = def.Provider
	}
	if cfg.Extraction.Model == "" {
		cfg.Extraction.Model = def.Model
	}
	if cfg.Extraction.MaxTokens == 0 {
		cfg.Extraction.MaxTokens = def.MaxTokens
	}
	if cfg.Extraction.RateLimit == 0 {
		cfg.Extraction.RateLimit = def.RateLimit
	}

	if cfg.Checkpoint.Backend == "" {
		cfg.Checkpoint.Backend = BackendSQLite
	}
	if cfg.Checkpoint.Backend == BackendSQLite && cfg.Checkpoint.Path == "" {
		cfg.Checkpoint.Path = "jobflow.db"
	}

	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 2
	}
	if cfg.Retry.MinScore == 0 {
		cfg.Retry.MinScore = 0.7
	}
	if cfg.Retry.BaseBackoff == 0 {
		cfg.Retry.BaseBackoff = time.Second
	}

	logDef := logging.NewDefaultConfig()
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = logDef.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = logDef.Format
	}
}
