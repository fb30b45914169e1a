package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// Config represents the Penelope configuration
type Config struct {
	// Provider selects the model backend: anthropic or openai.
	Provider string `json:"provider" mapstructure:"provider"`
	Model    string `json:"model" mapstructure:"model"`
	// BaseURL points the provider client at a compatible endpoint.
	BaseURL     string  `json:"base_url" mapstructure:"base_url"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// Agent loop
	MaxIterations         int `json:"max_iterations" mapstructure:"max_iterations"`
	ToolTimeoutSeconds    int `json:"tool_timeout_seconds" mapstructure:"tool_timeout_seconds"`
	SessionTimeoutSeconds int `json:"session_timeout_seconds" mapstructure:"session_timeout_seconds"`

	// Data directory for sessions, crash logs and the audit trail
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
	// WorkingDir is where tools resolve relative paths, the current directory when empty.
	WorkingDir string `json:"working_dir" mapstructure:"working_dir"`
	// EnvFile holds API keys; .env in the current directory when empty.
	EnvFile string `json:"env_file" mapstructure:"env_file"`

	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
	Git     GitConfig     `json:"git" mapstructure:"git"`

	env map[string]string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	File       string `json:"file" mapstructure:"file"`
	MaxSize    int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge     int    `json:"max_age" mapstructure:"max_age"`   // days
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
	Redaction  bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds the Prometheus endpoint address; empty disables it.
type MetricsConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

// TracingConfig toggles OpenTelemetry spans.
type TracingConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// GitConfig signs commits made by the git tool.
type GitConfig struct {
	AuthorName  string `json:"author_name" mapstructure:"author_name"`
	AuthorEmail string `json:"author_email" mapstructure:"author_email"`
}

// Supported providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Provider:              ProviderAnthropic,
		Model:                 "claude-3-haiku-20240307",
		MaxTokens:             4000,
		Temperature:           0,
		MaxIterations:         10,
		ToolTimeoutSeconds:    120,
		SessionTimeoutSeconds: 0,
		Logging: LoggingConfig{
			Level:      "warn",
			MaxSize:    10,
			MaxAge:     7,
			MaxBackups: 5,
			Compress:   true,
			Redaction:  true,
		},
		Git: GitConfig{
			AuthorName:  "Penelope",
			AuthorEmail: "penelope@localhost",
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate joins every problem the Validator finds.
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}

// LookupEnv reads a variable from the process environment, falling back to the env file.
func (c *Config) LookupEnv(key string) (string, bool) {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value, true
	}
	value, ok := c.env[key]
	return value, ok
}

// EnvFileValues returns how many variables were read from the env file.
func (c *Config) EnvFileValues() int {
	return len(c.env)
}

// ToolTimeout is the per-dispatch cap applied on top of each tool's own timeout.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSeconds) * time.Second
}

// SessionTimeout is the wall-clock budget for one chat turn; zero disables it.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

// SessionsDir returns where transcripts are stored.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.DataDir, "sessions")
}

// CrashDir returns where crash logs are written.
func (c *Config) CrashDir() string {
	return filepath.Join(c.DataDir, "crash_logs")
}

// AuditLogPath returns the tool audit trail location.
func (c *Config) AuditLogPath() string {
	return filepath.Join(c.DataDir, "audit.log")
}
