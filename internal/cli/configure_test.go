package cli

import (
	"testing"

	"github.com/harun/penelope/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureCommand(t *testing.T) {
	t.Run("should show help text", func(t *testing.T) {
		env := newTestEnv(t)
		out, err := env.run(t, "", "configure", "--help")
		require.NoError(t, err)
		assert.Contains(t, out, "interactive configuration wizard")
	})

	t.Run("should save settings and keys separately", func(t *testing.T) {
		env := newTestEnv(t)
		out, err := env.run(t, "anthropic\nsk-ant-one, sk-ant-two\nclaude-3-5-sonnet\nJane\njane@example.com\ninfo\n", "configure")
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration saved to: "+env.configPath)

		cfg, err := config.Load(env.configPath)
		require.NoError(t, err)
		assert.Equal(t, "claude-3-5-sonnet", cfg.Model)
		assert.Equal(t, "Jane", cfg.Git.AuthorName)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, env.envFile, cfg.EnvFile)

		keys, err := config.ReadEnvFile(env.envFile)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"ANTHROPIC_API_KEY_1": "sk-ant-one",
			"ANTHROPIC_API_KEY_2": "sk-ant-two",
		}, keys)
		assert.NotContains(t, cfg.String(), "sk-ant-one")
	})
}
