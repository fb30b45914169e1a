package tracing

import (
	"context"
	"testing"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	if id1 == "" {
		t.Error("NewTraceID returned empty string")
	}
	if id1 == id2 {
		t.Error("NewTraceID returned duplicate IDs")
	}
}

func TestWithSessionKey(t *testing.T) {
	ctx := WithSessionKey(context.Background(), "test-session")

	if got := GetSessionKey(ctx); got != "test-session" {
		t.Errorf("Expected session key test-session, got %s", got)
	}
}

func TestWithSessionKeyEmptyIsNoop(t *testing.T) {
	base := context.Background()
	if WithSessionKey(base, "") != base {
		t.Error("Empty session key should leave the context untouched")
	}
}

func TestGettersOnEmptyContext(t *testing.T) {
	ctx := context.Background()

	if GetTraceID(ctx) != "" {
		t.Error("Expected empty trace ID")
	}
	if GetRunID(ctx) != "" {
		t.Error("Expected empty run ID")
	}
	if GetSessionKey(ctx) != "" {
		t.Error("Expected empty session key")
	}
}

func TestFromContext(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-123")
	ctx = WithRunID(ctx, "run-456")
	ctx = WithSessionKey(ctx, "session-abc")

	tc := FromContext(ctx)

	if tc.TraceID != "trace-123" {
		t.Errorf("Expected trace ID trace-123, got %s", tc.TraceID)
	}
	if tc.RunID != "run-456" {
		t.Errorf("Expected run ID run-456, got %s", tc.RunID)
	}
	if tc.SessionKey != "session-abc" {
		t.Errorf("Expected session key session-abc, got %s", tc.SessionKey)
	}
}

func TestNewRequestContext(t *testing.T) {
	ctx := NewRequestContext(context.Background())

	traceID := GetTraceID(ctx)
	if len(traceID) != 36 {
		t.Errorf("Expected UUID format (36 chars), got %q", traceID)
	}
}

func TestNewRunContext(t *testing.T) {
	t.Run("keeps an existing trace ID", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "trace-parent")
		ctx = NewRunContext(ctx)

		if GetTraceID(ctx) != "trace-parent" {
			t.Error("Trace ID should be preserved")
		}
		if GetRunID(ctx) == "" {
			t.Error("Run ID not generated")
		}
	})

	t.Run("adds a trace ID when missing", func(t *testing.T) {
		ctx := NewRunContext(context.Background())

		if GetTraceID(ctx) == "" {
			t.Error("Trace ID not generated")
		}
	})

	t.Run("produces a new run ID per call", func(t *testing.T) {
		base := WithTraceID(context.Background(), "trace")
		if GetRunID(NewRunContext(base)) == GetRunID(NewRunContext(base)) {
			t.Error("Run IDs should differ between runs")
		}
	})
}
