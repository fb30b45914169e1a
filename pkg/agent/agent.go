package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/penelope/internal/observability"
	"github.com/harun/penelope/internal/tracing"
	"github.com/harun/penelope/pkg/action"
	"github.com/harun/penelope/pkg/keypool"
	"github.com/harun/penelope/pkg/toolexecutor"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Agent drives the model/parse/dispatch loop for one conversation.
type Agent struct {
	cfg          Config
	registry     *toolexecutor.Registry
	keys         *keypool.Pool
	providers    ProviderCreator
	systemPrompt string
	logger       zerolog.Logger

	mu           sync.Mutex
	conversation *Conversation
	provider     LLMProvider
	providerKey  string
}

// Config holds agent configuration
type Config struct {
	Registry  *toolexecutor.Registry
	Keys      *keypool.Pool
	Providers ProviderCreator

	Model         string
	MaxTokens     int
	Temperature   float64
	MaxIterations int
	SystemPrompt  string

	// SessionTimeout bounds a whole Chat call. Zero disables it.
	SessionTimeout time.Duration
	// ToolTimeout caps each tool dispatch on top of the tool's own timeout.
	ToolTimeout time.Duration
	WorkingDir  string
	SessionKey  string
	History     []AgentMessage

	// OnAction is called before each tool dispatch.
	OnAction func(action.Action)
	Logger   zerolog.Logger
}

// New creates an agent. The registry and key pool are required; the provider creator
// defaults to the SDK-backed factory for the pool's provider.
func New(cfg Config) (*Agent, error) {
	observability.EnsureRegistered()

	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if cfg.Keys == nil {
		return nil, fmt.Errorf("key pool is required")
	}
	if cfg.MaxIterations < 0 {
		return nil, fmt.Errorf("max iterations cannot be negative")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}

	providers := cfg.Providers
	if providers == nil {
		providers = ProviderFactory{Provider: cfg.Keys.Provider()}
	}

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = BuildSystemPrompt(cfg.Registry.Definitions())
	}

	return &Agent{
		cfg:          cfg,
		registry:     cfg.Registry,
		keys:         cfg.Keys,
		providers:    providers,
		systemPrompt: systemPrompt,
		logger:       cfg.Logger,
		conversation: NewConversation(cfg.History...),
	}, nil
}

// Chat answers one user query and returns the final text.
func (a *Agent) Chat(ctx context.Context, text string) (string, error) {
	result, err := a.Run(ctx, text)
	if err != nil {
		return "", err
	}
	return result.Response, nil
}

// Run answers one user query. It returns when the model replies without a registered
// action, when the iteration bound is spent (LimitReached), or when a model call fails
// in a way key rotation cannot fix. Tool failures never end the run.
func (a *Agent) Run(ctx context.Context, text string) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	ctx = tracing.NewRunContext(ctx)
	ctx = tracing.WithSessionKey(ctx, a.cfg.SessionKey)
	ctx, span := tracing.StartSpan(
		ctx,
		"penelope.agent",
		"agent.chat",
		attribute.String("model", a.cfg.Model),
		attribute.Int("max_iterations", a.cfg.MaxIterations),
	)
	defer span.End()

	if a.cfg.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.SessionTimeout)
		defer cancel()
	}

	logger := tracing.LoggerFromContext(ctx, a.logger)

	if pending, ok := a.conversation.PendingUser(); !ok || pending != text {
		a.conversation.AppendUser(text)
	} else {
		logger.Debug().Msg("Reusing pending user turn")
	}

	var result Result
	for result.Iterations < a.cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			err = fmt.Errorf("chat interrupted: %w", err)
			a.finish(start, &result, observability.OutcomeError)
			tracing.RecordError(span, err)
			return result, err
		}

		result.Iterations++
		resp, calls, err := a.callModel(ctx, logger)
		result.ModelCalls += calls
		if err != nil {
			logger.Error().Err(err).Int("iteration", result.Iterations).Msg("Model call failed")
			a.finish(start, &result, observability.OutcomeError)
			tracing.RecordError(span, err)
			return result, err
		}
		result.Usage.Add(resp.Usage)

		a.conversation.AppendAssistant(resp.Content)

		act, ok := action.Parse(resp.Content)
		if !ok {
			result.Response = resp.Content
			a.finish(start, &result, observability.OutcomeAnswered)
			return result, nil
		}

		call, err := a.dispatch(ctx, logger, act)
		var unknown *toolexecutor.UnknownToolError
		if errors.As(err, &unknown) {
			logger.Info().Str("tool", act.Name).Msg("Model requested an unknown tool, returning its reply")
			result.Response = resp.Content
			a.finish(start, &result, observability.OutcomeAnswered)
			return result, nil
		}

		result.Actions = append(result.Actions, call)
		a.conversation.AppendToolResult(act.Name, call.Output)
	}

	logger.Warn().Int("iterations", result.Iterations).Msg("Iteration limit reached")
	result.Response = IterationLimitMessage
	result.LimitReached = true
	span.SetAttributes(attribute.Bool("limit_reached", true))
	a.finish(start, &result, observability.OutcomeLimitReached)
	return result, nil
}

func (a *Agent) finish(start time.Time, result *Result, outcome string) {
	observability.RecordChatRun(time.Since(start), result.Iterations, outcome)
}

// callModel performs one logical model call. Auth and rate-limit failures rotate the key
// and retry, trying each key at most once; the retries do not count as iterations.
func (a *Agent) callModel(ctx context.Context, logger zerolog.Logger) (*LLMResponse, int, error) {
	request := LLMRequest{
		Model:        a.cfg.Model,
		Messages:     a.conversation.Turns(),
		Temperature:  a.cfg.Temperature,
		MaxTokens:    a.cfg.MaxTokens,
		SystemPrompt: a.systemPrompt,
	}

	calls := 0
	for {
		provider, err := a.currentProvider()
		if err != nil {
			return nil, calls, err
		}

		calls++
		callCtx, span := tracing.StartSpan(
			ctx,
			"penelope.agent",
			"agent.model_call",
			attribute.String("provider", provider.Provider()),
			attribute.Int("key_index", a.keys.Index()),
		)
		callStart := time.Now()
		resp, err := provider.Call(callCtx, request)
		observability.RecordModelCall(provider.Provider(), time.Since(callStart), err == nil)
		tracing.RecordError(span, err)
		span.End()

		if err == nil {
			return resp, calls, nil
		}

		kind := Classify(err)
		if !kind.Rotatable() {
			return nil, calls, &ProviderError{Provider: provider.Provider(), Kind: kind, Err: err}
		}

		if calls >= a.keys.Len() || !a.keys.Rotate() {
			observability.RecordKeyRotation(kind.String(), false)
			observability.RecordCredentialAudit(ctx, "credentials_exhausted", a.actor(), "failure", map[string]interface{}{
				"reason": kind.String(),
				"keys":   a.keys.Len(),
			})
			return nil, calls, &ProviderError{Provider: provider.Provider(), Kind: kind, Exhausted: true, Err: err}
		}

		observability.RecordKeyRotation(kind.String(), true)
		observability.RecordCredentialAudit(ctx, "rotate", a.actor(), "success", map[string]interface{}{
			"reason":    kind.String(),
			"key_index": a.keys.Index(),
		})
		logger.Warn().
			Str("reason", kind.String()).
			Int("key_index", a.keys.Index()).
			Err(err).
			Msg("Rotating API key")
	}
}

// currentProvider returns a provider for the pool's active key, rebuilding it after a
// rotation. Pools may be shared, so the key is re-read on every call.
func (a *Agent) currentProvider() (LLMProvider, error) {
	key := a.keys.Current()
	if a.provider != nil && a.providerKey == key {
		return a.provider, nil
	}

	provider, err := a.providers.NewProvider(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	a.provider = provider
	a.providerKey = key
	return provider, nil
}

// dispatch runs one action through the registry. The only error it returns is the
// registry's UnknownToolError.
func (a *Agent) dispatch(ctx context.Context, logger zerolog.Logger, act action.Action) (ToolCall, error) {
	if !a.registry.Has(act.Name) {
		return ToolCall{}, &toolexecutor.UnknownToolError{Name: act.Name}
	}

	if a.cfg.OnAction != nil {
		a.cfg.OnAction(act)
	}

	ctx, span := tracing.StartSpan(ctx, "penelope.agent", "agent.tool", attribute.String("tool", act.Name))
	defer span.End()

	ctx = toolexecutor.ContextWithExecContext(ctx, &toolexecutor.ExecutionContext{
		SessionKey: a.cfg.SessionKey,
		WorkingDir: a.cfg.WorkingDir,
		Timeout:    a.cfg.ToolTimeout,
	})

	start := time.Now()
	output, err := a.registry.Dispatch(ctx, act.Name, act.Parameters)
	if err != nil {
		return ToolCall{}, err
	}
	duration := time.Since(start)
	failed := toolexecutor.IsErrorResult(output)

	observability.RecordToolExecution(act.Name, duration, !failed)
	status := "success"
	if failed {
		status = "failure"
		span.SetAttributes(attribute.Bool("tool.failed", true))
	}
	observability.RecordToolAudit(ctx, act.Name, a.actor(), status, map[string]interface{}{
		"duration_ms": duration.Milliseconds(),
		"params":      act.Parameters,
	})

	logger.Info().
		Str("tool", act.Name).
		Str("thought", act.Rationale).
		Dur("duration", duration).
		Bool("failed", failed).
		Msg("Tool dispatched")

	return ToolCall{
		Name:       act.Name,
		Parameters: act.Parameters,
		Rationale:  act.Rationale,
		Output:     output,
		Failed:     failed,
		Duration:   duration,
	}, nil
}

func (a *Agent) actor() string {
	if a.cfg.SessionKey != "" {
		return a.cfg.SessionKey
	}
	return "cli"
}

// History returns a copy of the conversation so far.
func (a *Agent) History() []AgentMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conversation.Turns()
}

// HistorySince returns the turns appended after the first n.
func (a *Agent) HistorySince(n int) []AgentMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conversation.Since(n)
}

// Reset clears the conversation.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conversation.Reset()
}

// SystemPrompt returns the instruction sent with every model call.
func (a *Agent) SystemPrompt() string {
	return a.systemPrompt
}
