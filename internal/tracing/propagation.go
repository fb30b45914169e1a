package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// LoggerFromContext returns baseLogger annotated with whatever trace, run and session
// identifiers ctx carries.
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)
	if tc.TraceID == "" && tc.RunID == "" && tc.SessionKey == "" {
		return baseLogger
	}

	lc := baseLogger.With()
	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.RunID != "" {
		lc = lc.Str("run_id", tc.RunID)
	}
	if tc.SessionKey != "" {
		lc = lc.Str("session_key", tc.SessionKey)
	}
	return lc.Logger()
}

// Detach copies the tracing identifiers of ctx onto a background context, for work that
// must outlive ctx's cancellation such as persisting a transcript after an interrupt.
func Detach(ctx context.Context) context.Context {
	tc := FromContext(ctx)
	out := context.Background()
	if tc.TraceID != "" {
		out = WithTraceID(out, tc.TraceID)
	}
	if tc.RunID != "" {
		out = WithRunID(out, tc.RunID)
	}
	return WithSessionKey(out, tc.SessionKey)
}
