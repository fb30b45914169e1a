package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateProvider validates the model provider name
func (v *Validator) ValidateProvider(provider string) error {
	switch provider {
	case ProviderAnthropic, ProviderOpenAI:
		return nil
	}
	return fmt.Errorf("invalid provider: %s (must be one of: %s, %s)", provider, ProviderAnthropic, ProviderOpenAI)
}

// ValidateAPIKey validates an API key format after normalization
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case ProviderAnthropic:
		if !strings.HasPrefix(key, "sk-ant-") && !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case ProviderOpenAI:
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateModel validates a model name
func (v *Validator) ValidateModel(model string) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	return nil
}

// ValidateBaseURL accepts an empty value or an absolute http(s) URL.
func (v *Validator) ValidateBaseURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid base_url: %s", raw)
	}
	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateMaxIterations validates the agent loop bound
func (v *Validator) ValidateMaxIterations(n int) error {
	if n <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", n)
	}
	if n > 100 {
		return fmt.Errorf("max iterations too large (max 100), got %d", n)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	if err := v.ValidateProvider(cfg.Provider); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateModel(cfg.Model); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateBaseURL(cfg.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateTemperature(cfg.Temperature); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateMaxTokens(cfg.MaxTokens); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateMaxIterations(cfg.MaxIterations); err != nil {
		errs = append(errs, err)
	}
	if cfg.ToolTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("tool_timeout_seconds must be >= 0"))
	}
	if cfg.SessionTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("session_timeout_seconds must be >= 0"))
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	return errs
}
