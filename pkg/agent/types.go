package agent

import (
	"fmt"
	"time"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	// DefaultMaxIterations bounds model-call/tool-dispatch cycles per Chat.
	DefaultMaxIterations = 10

	// DefaultMaxTokens is the completion budget for each model call.
	DefaultMaxTokens = 4000

	// DefaultModel is used when neither config nor ANTHROPIC_MODEL names one.
	DefaultModel = "claude-3-haiku-20240307"

	// IterationLimitMessage is returned when the loop runs out of iterations.
	IterationLimitMessage = "I've reached my iteration limit. How should we proceed?"
)

// AgentMessage is one turn of the conversation. Tool results are user turns with Tool set.
type AgentMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Tool      string    `json:"tool,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IsToolResult reports whether the turn carries a tool's output.
func (m AgentMessage) IsToolResult() bool {
	return m.Tool != ""
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates u into t.
func (t *TokenUsage) Add(u *TokenUsage) {
	if u == nil {
		return
	}
	t.InputTokens += u.InputTokens
	t.OutputTokens += u.OutputTokens
}

// ToolCall records one dispatched action and what it produced.
type ToolCall struct {
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
	Rationale  string                 `json:"rationale,omitempty"`
	Output     string                 `json:"output"`
	Failed     bool                   `json:"failed,omitempty"`
	Duration   time.Duration          `json:"duration"`
}

// Result is the outcome of one Run.
type Result struct {
	Response     string     `json:"response"`
	Iterations   int        `json:"iterations"`
	ModelCalls   int        `json:"model_calls"`
	Actions      []ToolCall `json:"actions,omitempty"`
	Usage        TokenUsage `json:"usage"`
	LimitReached bool       `json:"limit_reached,omitempty"`
}

// FormatToolResult renders a tool's output as the user turn fed back to the model.
func FormatToolResult(tool, output string) string {
	return fmt.Sprintf("Tool Result (%s):\n%s", tool, output)
}
