package agent

import (
	"context"
	"fmt"

	"github.com/harun/penelope/pkg/keypool"
)

// LLMProvider is an interface for LLM API providers
type LLMProvider interface {
	// Call makes an LLM API call
	Call(ctx context.Context, request LLMRequest) (*LLMResponse, error)

	// Provider returns the provider name
	Provider() string
}

// LLMRequest contains the request parameters for LLM call
type LLMRequest struct {
	Model        string
	Messages     []AgentMessage
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// LLMResponse contains the response from LLM
type LLMResponse struct {
	Content    string
	StopReason string
	Usage      *TokenUsage
}

// ProviderCreator builds a provider bound to one API key. The agent asks for a new
// provider whenever the key pool rotates.
type ProviderCreator interface {
	NewProvider(apiKey string) (LLMProvider, error)
}

// ProviderCreatorFunc adapts a function to ProviderCreator.
type ProviderCreatorFunc func(apiKey string) (LLMProvider, error)

// NewProvider calls f.
func (f ProviderCreatorFunc) NewProvider(apiKey string) (LLMProvider, error) {
	return f(apiKey)
}

// ProviderFactory creates SDK-backed providers.
type ProviderFactory struct {
	Provider string
	BaseURL  string
}

// NewProvider creates a provider for f.Provider authenticated with apiKey.
func (f ProviderFactory) NewProvider(apiKey string) (LLMProvider, error) {
	switch f.Provider {
	case "", keypool.ProviderAnthropic:
		return NewAnthropicProvider(apiKey, f.BaseURL), nil
	case keypool.ProviderOpenAI:
		return NewOpenAIProvider(apiKey, f.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", f.Provider)
	}
}

// mergeConsecutive folds adjacent turns with the same role into one, separated by a blank
// line. Both chat APIs expect roles to alternate, which breaks when a failed Chat leaves a
// user turn behind and the next Chat adds another. Empty turns are dropped since Anthropic
// rejects empty text blocks.
func mergeConsecutive(messages []AgentMessage) []AgentMessage {
	merged := make([]AgentMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].Role == msg.Role {
			merged[n-1].Content += "\n\n" + msg.Content
			continue
		}
		merged = append(merged, msg)
	}
	return merged
}
