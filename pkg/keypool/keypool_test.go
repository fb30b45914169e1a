package keypool

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestNew(t *testing.T) {
	t.Run("should fail with configuration error when empty", func(t *testing.T) {
		_, err := New()
		require.Error(t, err)

		var cfgErr *ConfigurationError
		assert.True(t, errors.As(err, &cfgErr))
	})

	t.Run("should drop blanks and duplicates", func(t *testing.T) {
		pool, err := New("sk-a", " ", "sk-b", "sk-a")
		require.NoError(t, err)
		assert.Equal(t, 2, pool.Len())
		assert.Equal(t, "sk-a", pool.Current())
	})
}

func TestRotate(t *testing.T) {
	t.Run("should return to the original key after N rotations", func(t *testing.T) {
		pool, err := New("sk-1", "sk-2", "sk-3")
		require.NoError(t, err)

		original := pool.Current()
		seen := []string{original}
		for i := 0; i < pool.Len(); i++ {
			require.True(t, pool.Rotate())
			seen = append(seen, pool.Current())
		}

		assert.Equal(t, original, pool.Current())
		assert.Equal(t, []string{"sk-1", "sk-2", "sk-3", "sk-1"}, seen)
	})

	t.Run("should refuse to rotate a single key", func(t *testing.T) {
		pool, err := New("sk-only")
		require.NoError(t, err)

		assert.False(t, pool.Rotate())
		assert.Equal(t, "sk-only", pool.Current())
		assert.Equal(t, 0, pool.Index())
	})

	t.Run("should be safe for concurrent use", func(t *testing.T) {
		pool, err := New("sk-1", "sk-2", "sk-3", "sk-4")
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				pool.Rotate()
				_ = pool.Current()
			}()
		}
		wg.Wait()

		// 40 rotations over 4 keys wraps back to the start.
		assert.Equal(t, 0, pool.Index())
	})
}

func TestFromEnv(t *testing.T) {
	t.Run("should load numbered keys then the default", func(t *testing.T) {
		pool, err := FromEnv(mapLookup(map[string]string{
			"ANTHROPIC_API_KEY_1": "sk-ant-one",
			"ANTHROPIC_API_KEY_3": "sk-ant-three",
			"ANTHROPIC_API_KEY":   "sk-ant-default",
		}), ProviderAnthropic)
		require.NoError(t, err)

		assert.Equal(t, 3, pool.Len())
		assert.Equal(t, "sk-ant-one", pool.Current())
		pool.Rotate()
		assert.Equal(t, "sk-ant-three", pool.Current())
		pool.Rotate()
		assert.Equal(t, "sk-ant-default", pool.Current())
		assert.Equal(t, ProviderAnthropic, pool.Provider())
	})

	t.Run("should de-duplicate the default against numbered keys", func(t *testing.T) {
		pool, err := FromEnv(mapLookup(map[string]string{
			"ANTHROPIC_API_KEY_1": "abc123",
			"ANTHROPIC_API_KEY":   "abc123",
		}), ProviderAnthropic)
		require.NoError(t, err)

		assert.Equal(t, 1, pool.Len())
		assert.Equal(t, "sk-ant-abc123", pool.Current())
	})

	t.Run("should ignore keys beyond the fifth", func(t *testing.T) {
		pool, err := FromEnv(mapLookup(map[string]string{
			"OPENAI_API_KEY_5": "five",
			"OPENAI_API_KEY_6": "six",
		}), ProviderOpenAI)
		require.NoError(t, err)

		assert.Equal(t, 1, pool.Len())
		assert.Equal(t, "sk-five", pool.Current())
	})

	t.Run("should fail when nothing is configured", func(t *testing.T) {
		_, err := FromEnv(mapLookup(map[string]string{"ANTHROPIC_API_KEY_1": "  "}), ProviderAnthropic)

		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, ProviderAnthropic, cfgErr.Provider)
	})

	t.Run("should reject unknown providers", func(t *testing.T) {
		_, err := FromEnv(mapLookup(nil), "gemini")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported provider")
	})
}

func TestNormalize(t *testing.T) {
	long := strings.Repeat("x", 120)

	tests := []struct {
		name      string
		provider  string
		key       string
		isDefault bool
		want      string
	}{
		{"already prefixed", ProviderAnthropic, "sk-ant-abc", false, "sk-ant-abc"},
		{"short numbered anthropic", ProviderAnthropic, "abc", false, "sk-ant-abc"},
		{"long numbered anthropic", ProviderAnthropic, long, false, "sk-" + long},
		{"long default anthropic", ProviderAnthropic, long, true, "sk-ant-" + long},
		{"openai", ProviderOpenAI, "proj-abc", false, "sk-proj-abc"},
		{"trims whitespace", ProviderOpenAI, "  sk-x \n", false, "sk-x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.provider, tt.key, tt.isDefault))
		})
	}
}

func TestMasked(t *testing.T) {
	pool, err := New("sk-ant-1234567890abcd")
	require.NoError(t, err)

	masked := pool.Masked()
	assert.True(t, strings.HasPrefix(masked, "sk-a"))
	assert.True(t, strings.HasSuffix(masked, "abcd"))
	assert.NotContains(t, masked, "567890")
}
