package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix      = "PENELOPE"
	defaultEnvFile = ".env"
	configFileName = "penelope.json"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads defaults, then the JSON config file when present, then PENELOPE_* environment
// variables. ANTHROPIC_MODEL is honoured for the model name. API keys are not part of the
// file: they come from the environment or the env file and are read through LookupEnv.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	if err := v.BindEnv("model", envPrefix+"_MODEL", "ANTHROPIC_MODEL"); err != nil {
		return nil, fmt.Errorf("failed to bind model env: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".penelope")
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "penelope.log")
	}

	if cfg.EnvFile == "" {
		cfg.EnvFile = filepath.Join(cfg.WorkingDir, defaultEnvFile)
	}
	env, err := ReadEnvFile(cfg.EnvFile)
	if err != nil {
		return nil, err
	}
	cfg.env = env

	// .env is the last resort for the model, after the config file and the process env.
	if !v.InConfig("model") && os.Getenv(envPrefix+"_MODEL") == "" && os.Getenv("ANTHROPIC_MODEL") == "" {
		if model, ok := env["ANTHROPIC_MODEL"]; ok && model != "" {
			cfg.Model = model
		}
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("provider", cfg.Provider)
	v.SetDefault("model", cfg.Model)
	v.SetDefault("base_url", cfg.BaseURL)
	v.SetDefault("max_tokens", cfg.MaxTokens)
	v.SetDefault("temperature", cfg.Temperature)
	v.SetDefault("max_iterations", cfg.MaxIterations)
	v.SetDefault("tool_timeout_seconds", cfg.ToolTimeoutSeconds)
	v.SetDefault("session_timeout_seconds", cfg.SessionTimeoutSeconds)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("working_dir", cfg.WorkingDir)
	v.SetDefault("env_file", cfg.EnvFile)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_age", cfg.Logging.MaxAge)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
	v.SetDefault("logging.compress", cfg.Logging.Compress)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("git.author_name", cfg.Git.AuthorName)
	v.SetDefault("git.author_email", cfg.Git.AuthorEmail)
}

// ReadEnvFile parses a dotenv file into upper-cased keys. A missing file yields an empty map.
func ReadEnvFile(path string) (map[string]string, error) {
	values := map[string]string{}
	if path == "" {
		return values, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}

	ev := viper.New()
	ev.SetConfigFile(path)
	ev.SetConfigType("env")
	if err := ev.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	for _, key := range ev.AllKeys() {
		values[strings.ToUpper(key)] = ev.GetString(key)
	}
	return values, nil
}

// WriteEnvFile merges values into the dotenv file at path, keeping existing entries.
func WriteEnvFile(path string, values map[string]string) error {
	merged, err := ReadEnvFile(path)
	if err != nil {
		return err
	}
	for key, value := range values {
		merged[strings.ToUpper(key)] = value
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%s=%s\n", key, merged[key])
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create env file directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write env file: %w", err)
	}
	return nil
}

// Save writes the configuration file as JSON
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to resolve config path")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.Set("provider", cfg.Provider)
	v.Set("model", cfg.Model)
	v.Set("base_url", cfg.BaseURL)
	v.Set("max_tokens", cfg.MaxTokens)
	v.Set("temperature", cfg.Temperature)
	v.Set("max_iterations", cfg.MaxIterations)
	v.Set("tool_timeout_seconds", cfg.ToolTimeoutSeconds)
	v.Set("session_timeout_seconds", cfg.SessionTimeoutSeconds)
	v.Set("data_dir", cfg.DataDir)
	v.Set("working_dir", cfg.WorkingDir)
	v.Set("env_file", cfg.EnvFile)
	v.Set("logging", cfg.Logging)
	v.Set("metrics", cfg.Metrics)
	v.Set("tracing", cfg.Tracing)
	v.Set("git", cfg.Git)

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the config file path, ~/.penelope/penelope.json by default.
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".penelope", configFileName)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
