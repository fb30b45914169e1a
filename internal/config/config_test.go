package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "claude-3-haiku-20240307", cfg.Model)
	assert.Equal(t, 4000, cfg.MaxTokens)
	assert.Equal(t, 10, cfg.MaxIterations)
	assert.Equal(t, 120, cfg.ToolTimeoutSeconds)
	assert.Zero(t, cfg.SessionTimeoutSeconds)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)
	assert.NoError(t, cfg.Validate())
}

func TestConfigDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SessionTimeoutSeconds = 90

	assert.Equal(t, 120*time.Second, cfg.ToolTimeout())
	assert.Equal(t, 90*time.Second, cfg.SessionTimeout())
}

func TestConfigPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data/penelope"

	assert.Equal(t, filepath.Join("/data/penelope", "sessions"), cfg.SessionsDir())
	assert.Equal(t, filepath.Join("/data/penelope", "crash_logs"), cfg.CrashDir())
	assert.Equal(t, filepath.Join("/data/penelope", "audit.log"), cfg.AuditLogPath())
}

func TestConfigLookupEnv(t *testing.T) {
	cfg := DefaultConfig()
	cfg.env = map[string]string{
		"PENELOPE_TEST_FROM_FILE": "file",
		"PENELOPE_TEST_SHADOWED":  "file",
	}
	t.Setenv("PENELOPE_TEST_SHADOWED", "process")

	t.Run("should prefer the process environment", func(t *testing.T) {
		value, ok := cfg.LookupEnv("PENELOPE_TEST_SHADOWED")
		require.True(t, ok)
		assert.Equal(t, "process", value)
	})

	t.Run("should fall back to the env file", func(t *testing.T) {
		value, ok := cfg.LookupEnv("PENELOPE_TEST_FROM_FILE")
		require.True(t, ok)
		assert.Equal(t, "file", value)
	})

	t.Run("should report missing variables", func(t *testing.T) {
		_, ok := cfg.LookupEnv("PENELOPE_TEST_MISSING")
		assert.False(t, ok)
	})

	assert.Equal(t, 2, cfg.EnvFileValues())
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	out := cfg.String()
	assert.Contains(t, out, `"provider": "anthropic"`)
	assert.Contains(t, out, `"max_iterations": 10`)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "gemini"
	cfg.MaxIterations = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid provider")
	assert.Contains(t, err.Error(), "max iterations")
}
