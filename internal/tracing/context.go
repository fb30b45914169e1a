package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RunIDKey identifies one Chat call
	RunIDKey ContextKey = "run_id"
	// SessionKeyKey is the context key for session key
	SessionKeyKey ContextKey = "session_key"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID    string
	RunID      string
	SessionKey string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRunID generates a new run ID
func NewRunID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithSessionKey adds a session key to the context
func WithSessionKey(ctx context.Context, sessionKey string) context.Context {
	if sessionKey == "" {
		return ctx
	}
	return context.WithValue(ctx, SessionKeyKey, sessionKey)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetRunID retrieves the run ID from the context
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// GetSessionKey retrieves the session key from the context
func GetSessionKey(ctx context.Context) string {
	if sessionKey, ok := ctx.Value(SessionKeyKey).(string); ok {
		return sessionKey
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:    GetTraceID(ctx),
		RunID:      GetRunID(ctx),
		SessionKey: GetSessionKey(ctx),
	}
}

// NewRequestContext creates a new context for a request with a new trace ID
func NewRequestContext(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}

// NewRunContext tags ctx with a fresh run ID, adding a trace ID if none is present yet.
func NewRunContext(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = NewRequestContext(ctx)
	}
	return WithRunID(ctx, NewRunID())
}
