package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearModelEnv(t *testing.T) {
	t.Setenv("PENELOPE_MODEL", "")
	t.Setenv("ANTHROPIC_MODEL", "")
	t.Setenv("PENELOPE_PROVIDER", "")
	t.Setenv("PENELOPE_MAX_ITERATIONS", "")
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	clearModelEnv(t)

	t.Run("should load defaults when the file does not exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		cfg, err := NewLoader(filepath.Join(tmpDir, "missing.json")).Load()

		require.NoError(t, err)
		assert.Equal(t, ProviderAnthropic, cfg.Provider)
		assert.Equal(t, "claude-3-haiku-20240307", cfg.Model)
		assert.NotEmpty(t, cfg.DataDir)
		assert.Equal(t, filepath.Join(cfg.DataDir, "penelope.log"), cfg.Logging.File)
	})

	t.Run("should load values from the file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "penelope.json")
		testConfig := `{
			"provider": "openai",
			"model": "gpt-4o-mini",
			"max_iterations": 4,
			"data_dir": "` + filepath.ToSlash(tmpDir) + `",
			"logging": {"level": "debug"},
			"git": {"author_name": "Jane"}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, cfg.Provider)
		assert.Equal(t, "gpt-4o-mini", cfg.Model)
		assert.Equal(t, 4, cfg.MaxIterations)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "Jane", cfg.Git.AuthorName)
		assert.Equal(t, "penelope@localhost", cfg.Git.AuthorEmail)
		assert.Equal(t, 4000, cfg.MaxTokens)
	})

	t.Run("should fail on a malformed file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "penelope.json")
		require.NoError(t, os.WriteFile(configPath, []byte("{not json"), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoaderLoad_Environment(t *testing.T) {
	clearModelEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "penelope.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"model": "from-file", "max_iterations": 3}`), 0644))

	t.Run("should let PENELOPE_ variables override the file", func(t *testing.T) {
		t.Setenv("PENELOPE_MAX_ITERATIONS", "7")
		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.MaxIterations)
	})

	t.Run("should honour ANTHROPIC_MODEL", func(t *testing.T) {
		t.Setenv("ANTHROPIC_MODEL", "claude-from-env")
		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, "claude-from-env", cfg.Model)
	})
}

func TestLoaderLoad_EnvFile(t *testing.T) {
	clearModelEnv(t)
	t.Setenv("ANTHROPIC_API_KEY_1", "")

	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, "keys.env")
	require.NoError(t, os.WriteFile(envPath, []byte("ANTHROPIC_API_KEY_1=sk-ant-one\nANTHROPIC_MODEL=claude-dotenv\n"), 0600))

	configPath := filepath.Join(tmpDir, "penelope.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"env_file": "`+filepath.ToSlash(envPath)+`"}`), 0644))

	cfg, err := NewLoader(configPath).Load()
	require.NoError(t, err)

	key, ok := cfg.LookupEnv("ANTHROPIC_API_KEY_1")
	require.True(t, ok)
	assert.Equal(t, "sk-ant-one", key)
	assert.Equal(t, "claude-dotenv", cfg.Model)
}

func TestEnvFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", ".env")

	values, err := ReadEnvFile(path)
	require.NoError(t, err)
	assert.Empty(t, values)

	require.NoError(t, WriteEnvFile(path, map[string]string{"ANTHROPIC_API_KEY": "sk-ant-a"}))
	require.NoError(t, WriteEnvFile(path, map[string]string{"openai_api_key": "sk-b"}))

	values, err = ReadEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"ANTHROPIC_API_KEY": "sk-ant-a",
		"OPENAI_API_KEY":    "sk-b",
	}, values)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoaderSave(t *testing.T) {
	clearModelEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "penelope.json")

	cfg := DefaultConfig()
	cfg.Provider = ProviderOpenAI
	cfg.Model = "gpt-4o"
	cfg.DataDir = tmpDir
	cfg.Git.AuthorName = "Jane"

	loader := NewLoader(configPath)
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, loaded.Provider)
	assert.Equal(t, "gpt-4o", loaded.Model)
	assert.Equal(t, "Jane", loaded.Git.AuthorName)
	assert.Equal(t, tmpDir, loaded.DataDir)
}
