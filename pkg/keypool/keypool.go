// Package keypool holds provider credentials and rotates between them when a key is
// rejected or throttled.
//
// A Pool is an explicit value injected into the agent; several agents may share one
// pool, the cursor is guarded by a mutex.
package keypool

import (
	"fmt"
	"strings"
	"sync"
)

// Provider names understood by FromEnv.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// MaxNumberedKeys is how many numbered variables (<PREFIX>_1 .. <PREFIX>_N) FromEnv reads.
const MaxNumberedKeys = 5

// ConfigurationError reports that no usable credentials were found.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("credential configuration: %s", e.Reason)
	}
	return fmt.Sprintf("credential configuration for %s: %s", e.Provider, e.Reason)
}

// LookupFunc resolves an environment-style variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Pool is an ordered, round-robin set of API keys.
type Pool struct {
	provider string
	keys     []string
	current  int
	mu       sync.Mutex
}

// New builds a pool from already-normalized keys. Empty and duplicate entries are dropped.
func New(keys ...string) (*Pool, error) {
	return newPool("", keys)
}

func newPool(provider string, keys []string) (*Pool, error) {
	unique := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, k)
	}

	if len(unique) == 0 {
		return nil, &ConfigurationError{Provider: provider, Reason: "no API keys configured"}
	}

	return &Pool{provider: provider, keys: unique}, nil
}

// FromEnv loads <PREFIX>_1 .. <PREFIX>_5 followed by the unnumbered <PREFIX> default, where
// PREFIX is ANTHROPIC_API_KEY or OPENAI_API_KEY depending on provider.
func FromEnv(lookup LookupFunc, provider string) (*Pool, error) {
	prefix, err := EnvPrefix(provider)
	if err != nil {
		return nil, err
	}

	var keys []string
	for i := 1; i <= MaxNumberedKeys; i++ {
		if v, ok := lookup(fmt.Sprintf("%s_%d", prefix, i)); ok && strings.TrimSpace(v) != "" {
			keys = append(keys, Normalize(provider, v, false))
		}
	}
	if v, ok := lookup(prefix); ok && strings.TrimSpace(v) != "" {
		keys = append(keys, Normalize(provider, v, true))
	}

	if len(keys) == 0 {
		return nil, &ConfigurationError{
			Provider: provider,
			Reason:   fmt.Sprintf("no API keys configured, set %s or %s_1..%s_%d", prefix, prefix, prefix, MaxNumberedKeys),
		}
	}
	return newPool(provider, keys)
}

// EnvPrefix returns the variable name holding keys for provider.
func EnvPrefix(provider string) (string, error) {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY", nil
	case ProviderOpenAI:
		return "OPENAI_API_KEY", nil
	default:
		return "", &ConfigurationError{Provider: provider, Reason: "unsupported provider"}
	}
}

// Normalize prefixes a raw key with the provider's expected format. Anthropic keys that
// come from numbered variables get sk-ant- when short and sk- when long; the unnumbered
// default always gets sk-ant-.
func Normalize(provider, key string, isDefault bool) string {
	key = strings.TrimSpace(key)
	if strings.HasPrefix(key, "sk-") {
		return key
	}

	switch provider {
	case ProviderAnthropic:
		if isDefault || len(key) < 100 {
			return "sk-ant-" + key
		}
		return "sk-" + key
	default:
		return "sk-" + key
	}
}

// Current returns the active key.
func (p *Pool) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keys[p.current]
}

// Rotate advances to the next key, wrapping to the first after the last. It reports false,
// leaving the cursor untouched, when the pool holds a single key.
func (p *Pool) Rotate() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) < 2 {
		return false
	}
	p.current = (p.current + 1) % len(p.keys)
	return true
}

// Len returns the number of keys in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Index returns the cursor position.
func (p *Pool) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Provider returns the provider name the pool was loaded for, empty for New.
func (p *Pool) Provider() string {
	return p.provider
}

// Masked returns the active key with only its first and last four characters visible.
func (p *Pool) Masked() string {
	key := p.Current()
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
