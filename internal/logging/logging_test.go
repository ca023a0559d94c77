package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Run("defaults build a logger", func(t *testing.T) {
		logger, err := NewLogger(NewDefaultConfig())
		require.NoError(t, err)
		require.NotNil(t, logger)
		logger.Info("hello")
	})

	t.Run("console format", func(t *testing.T) {
		logger, err := NewLogger(Config{Level: "debug", Format: "console"})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("invalid level rejected", func(t *testing.T) {
		_, err := NewLogger(Config{Level: "shouty", Format: "json"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}
