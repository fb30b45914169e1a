package observability

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuditEvent represents a structured event for the audit log
type AuditEvent struct {
	Type      string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Actor     string                 `json:"actor,omitempty"` // session id, "cli" otherwise
	Action    string                 `json:"action"`          // e.g. "execute:list_dir"
	Status    string                 `json:"status"`          // "success", "failure"
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

// AuditLogger handles recording and persisting audit events
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	closer io.Closer
}

var (
	auditMu   sync.Mutex
	auditInst *AuditLogger
)

// GetAuditLogger returns the process audit logger. Until InitAuditLogger is called events
// are discarded.
func GetAuditLogger() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditInst == nil {
		auditInst = NewAuditLogger(io.Discard)
	}
	return auditInst
}

// NewAuditLogger writes JSON audit lines to w.
func NewAuditLogger(w io.Writer) *AuditLogger {
	a := &AuditLogger{logger: zerolog.New(w).With().Timestamp().Logger()}
	if c, ok := w.(io.Closer); ok {
		a.closer = c
	}
	return a
}

// InitAuditLogger points the process audit logger at an append-only file.
func InitAuditLogger(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}

	auditMu.Lock()
	prev := auditInst
	auditInst = NewAuditLogger(file)
	auditMu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Record emits an audit event and mirrors it as an event on the active span.
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		event.TraceID = span.SpanContext().TraceID().String()

		span.AddEvent(event.Action, trace.WithAttributes(
			attribute.String("audit.type", event.Type),
			attribute.String("audit.status", event.Status),
			attribute.String("audit.actor", event.Actor),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("type", event.Type).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("status", event.Status).
		Time("event_time", event.Timestamp)

	if event.TraceID != "" {
		entry.Str("trace_id", event.TraceID)
	}
	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Close closes the audit logger's file handle
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closer != nil {
		err := a.closer.Close()
		a.closer = nil
		return err
	}
	return nil
}

// RecordToolAudit logs one tool dispatch.
func RecordToolAudit(ctx context.Context, toolName, actor, status string, metadata map[string]interface{}) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     "tool",
		Actor:    actor,
		Action:   "execute:" + toolName,
		Status:   status,
		Metadata: metadata,
	})
}

// RecordCredentialAudit logs a key rotation or exhaustion. Keys are never included.
func RecordCredentialAudit(ctx context.Context, action, actor, status string, metadata map[string]interface{}) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     "credential",
		Actor:    actor,
		Action:   action,
		Status:   status,
		Metadata: metadata,
	})
}
