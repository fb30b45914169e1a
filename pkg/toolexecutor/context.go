package toolexecutor

import (
	"context"
	"path/filepath"
	"time"
)

// ExecutionContext provides runtime information for tool execution
type ExecutionContext struct {
	SessionKey string
	WorkingDir string
	Timeout    time.Duration
}

type execContextKey struct{}

// ContextWithExecContext attaches the execution context to a context.Context for tool handlers.
func ContextWithExecContext(ctx context.Context, execCtx *ExecutionContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if execCtx == nil {
		return ctx
	}
	return context.WithValue(ctx, execContextKey{}, execCtx)
}

// ExecContextFromContext extracts the execution context from a context.Context.
func ExecContextFromContext(ctx context.Context) *ExecutionContext {
	if ctx == nil {
		return nil
	}
	if execCtx, ok := ctx.Value(execContextKey{}).(*ExecutionContext); ok {
		return execCtx
	}
	return nil
}

// ResolvePath makes path absolute against the execution context's working directory.
// Absolute paths and contexts without a working directory are returned unchanged.
func ResolvePath(ctx context.Context, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if execCtx := ExecContextFromContext(ctx); execCtx != nil && execCtx.WorkingDir != "" {
		return filepath.Join(execCtx.WorkingDir, path)
	}
	return path
}
