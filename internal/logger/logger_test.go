package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("should write JSON to the console writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "info", Console: true, Output: &buf})
		require.NoError(t, err)
		defer logger.Close()

		zl := logger.Zerolog()
		zl.Info().Str("tool", "read_file").Msg("Tool dispatched")

		var event map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
		assert.Equal(t, "info", event["level"])
		assert.Equal(t, "read_file", event["tool"])
		assert.Equal(t, "Tool dispatched", event["message"])
		assert.Contains(t, event, "time")
	})

	t.Run("should install the global logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "debug", Console: true, Output: &buf})
		require.NoError(t, err)
		defer logger.Close()

		log.Debug().Msg("from global")
		assert.Contains(t, buf.String(), "from global")
	})

	t.Run("should filter below the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "warn", Console: true, Output: &buf})
		require.NoError(t, err)
		defer logger.Close()

		zl := logger.Zerolog()
		zl.Info().Msg("hidden")
		zl.Warn().Msg("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("should fall back to info on an unknown level", func(t *testing.T) {
		logger, err := New(Config{Level: "chatty"})
		require.NoError(t, err)
		defer logger.Close()
		assert.Equal(t, zerolog.InfoLevel, logger.Zerolog().GetLevel())
	})

	t.Run("should write to a rotating file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "penelope.log")
		logger, err := New(Config{Level: "info", File: logFile, MaxSize: 1})
		require.NoError(t, err)

		zl := logger.Zerolog()
		zl.Info().Msg("file message")
		require.NoError(t, logger.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "file message")
	})

	t.Run("should redact keys before they reach any sink", func(t *testing.T) {
		var buf bytes.Buffer
		logFile := filepath.Join(t.TempDir(), "penelope.log")
		logger, err := New(Config{Level: "info", Console: true, Output: &buf, File: logFile, Redaction: true})
		require.NoError(t, err)
		require.NotNil(t, logger.redactor)

		key := "sk-ant-api03-" + strings.Repeat("x", 40)
		zl := logger.Zerolog()
		zl.Warn().Str("key", key).Msg("Rotating API key")
		require.NoError(t, logger.Close())

		assert.NotContains(t, buf.String(), key)
		assert.Contains(t, buf.String(), redacted)

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.NotContains(t, string(data), key)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "warn", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Redaction)
	assert.True(t, cfg.Compress)
	assert.Positive(t, cfg.MaxSize)
}
