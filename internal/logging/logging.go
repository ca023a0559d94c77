// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" or "console"
}

// NewDefaultConfig returns production-ready defaults.
func NewDefaultConfig() Config {
	return Config{Level: "info", Format: "json"}
}

// NewLogger creates a logger from config.
func NewLogger(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	core := zapcore.NewCore(
		newEncoder(cfg.Format),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core, zap.AddCaller()), nil
}

// newEncoder creates JSON or console encoder.
func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}
