package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/harun/penelope/pkg/keypool"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// WizardResult is what the wizard collected: the config file contents and the API key
// variables destined for the env file.
type WizardResult struct {
	Config *Config
	Env    map[string]string
}

// NewWizard creates a new configuration wizard
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run runs the interactive configuration wizard
func (w *Wizard) Run() (*WizardResult, error) {
	fmt.Fprintln(w.out, "=== Penelope Configuration Wizard ===")
	fmt.Fprintln(w.out)

	cfg := DefaultConfig()
	validator := NewValidator()

	for {
		provider, err := w.ask("Provider (anthropic/openai)", cfg.Provider)
		if err != nil {
			return nil, err
		}
		if err := validator.ValidateProvider(provider); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Provider = provider
		break
	}
	if cfg.Provider == ProviderOpenAI {
		cfg.Model = "gpt-4o-mini"
	}

	prefix, err := keypool.EnvPrefix(cfg.Provider)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(w.out)
	fmt.Fprintf(w.out, "API keys are stored in the env file as %s or %s_1..%d.\n", prefix, prefix, keypool.MaxNumberedKeys)

	env := map[string]string{}
	for {
		line, err := w.ask("API keys, comma separated", "")
		if err != nil {
			return nil, err
		}
		keys := splitKeys(line)
		if len(keys) == 0 {
			fmt.Fprintln(w.out, "Error: at least one API key is required")
			continue
		}
		if len(keys) > keypool.MaxNumberedKeys {
			fmt.Fprintf(w.out, "Error: at most %d keys are supported\n", keypool.MaxNumberedKeys)
			continue
		}

		var invalid error
		for _, key := range keys {
			normalized := keypool.Normalize(cfg.Provider, key, len(keys) == 1)
			if err := validator.ValidateAPIKey(normalized, cfg.Provider); err != nil {
				invalid = err
				break
			}
		}
		if invalid != nil {
			fmt.Fprintf(w.out, "Error: %v\n", invalid)
			continue
		}

		if len(keys) == 1 {
			env[prefix] = keys[0]
		} else {
			for i, key := range keys {
				env[fmt.Sprintf("%s_%d", prefix, i+1)] = key
			}
		}
		break
	}

	fmt.Fprintln(w.out)
	model, err := w.ask("Model name", cfg.Model)
	if err != nil {
		return nil, err
	}
	cfg.Model = model

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Git commits made by Penelope:")
	if cfg.Git.AuthorName, err = w.ask("Author name", cfg.Git.AuthorName); err != nil {
		return nil, err
	}
	if cfg.Git.AuthorEmail, err = w.ask("Author email", cfg.Git.AuthorEmail); err != nil {
		return nil, err
	}

	fmt.Fprintln(w.out)
	level, err := w.ask("Log level (debug/info/warn/error)", cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateLogLevel(level); err != nil {
		fmt.Fprintf(w.out, "Warning: %v, using default (%s)\n", err, cfg.Logging.Level)
	} else {
		cfg.Logging.Level = level
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return &WizardResult{Config: cfg, Env: env}, nil
}

func (w *Wizard) ask(prompt, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(w.out, "%s [%s]: ", prompt, def)
	} else {
		fmt.Fprintf(w.out, "%s: ", prompt)
	}
	answer, err := w.readLine()
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func splitKeys(line string) []string {
	var keys []string
	for _, part := range strings.Split(line, ",") {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
