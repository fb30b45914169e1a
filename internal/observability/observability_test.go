package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordChatRun(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.chatRunTotal.WithLabelValues(OutcomeLimitReached))

	RecordChatRun(2*time.Second, 10, OutcomeLimitReached)

	after := testutil.ToFloat64(m.chatRunTotal.WithLabelValues(OutcomeLimitReached))
	assert.Equal(t, before+1, after)
}

func TestRecordModelCall(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.modelCallTotal.WithLabelValues("anthropic", "error"))

	RecordModelCall("anthropic", 100*time.Millisecond, false)

	assert.Equal(t, before+1, testutil.ToFloat64(m.modelCallTotal.WithLabelValues("anthropic", "error")))
}

func TestRecordKeyRotation(t *testing.T) {
	m := getMetrics()
	rotated := testutil.ToFloat64(m.keyRotationTotal.WithLabelValues("auth", "rotated"))
	exhausted := testutil.ToFloat64(m.keyRotationTotal.WithLabelValues("auth", "exhausted"))

	RecordKeyRotation("auth", true)
	RecordKeyRotation("auth", false)

	assert.Equal(t, rotated+1, testutil.ToFloat64(m.keyRotationTotal.WithLabelValues("auth", "rotated")))
	assert.Equal(t, exhausted+1, testutil.ToFloat64(m.keyRotationTotal.WithLabelValues("auth", "exhausted")))
}

func TestRecordToolExecution(t *testing.T) {
	m := getMetrics()
	errorsBefore := testutil.ToFloat64(m.toolErrorsTotal.WithLabelValues("read_file"))
	okBefore := testutil.ToFloat64(m.toolExecutionTotal.WithLabelValues("read_file", "success"))

	RecordToolExecution("read_file", time.Millisecond, true)
	RecordToolExecution("read_file", time.Millisecond, false)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(m.toolExecutionTotal.WithLabelValues("read_file", "success")))
	assert.Equal(t, errorsBefore+1, testutil.ToFloat64(m.toolErrorsTotal.WithLabelValues("read_file")))
}

func TestMetricsHandler(t *testing.T) {
	RecordChatRun(time.Second, 1, OutcomeAnswered)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "penelope_chat_run_total")
}

func TestAuditLogger(t *testing.T) {
	t.Run("should write one JSON line per event", func(t *testing.T) {
		var buf bytes.Buffer
		a := NewAuditLogger(&buf)

		a.Record(context.Background(), AuditEvent{
			Type:     "tool",
			Actor:    "session-1",
			Action:   "execute:list_dir",
			Status:   "success",
			Metadata: map[string]interface{}{"duration_ms": 3},
		})

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "tool", entry["type"])
		assert.Equal(t, "execute:list_dir", entry["action"])
		assert.Equal(t, "session-1", entry["actor"])
		assert.NotContains(t, entry, "trace_id")
	})

	t.Run("should append to the configured file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "audit", "audit.log")
		require.NoError(t, InitAuditLogger(path))
		defer func() { _ = GetAuditLogger().Close() }()

		RecordToolAudit(context.Background(), "read_file", "cli", "failure", nil)
		RecordCredentialAudit(context.Background(), "rotate", "cli", "success", map[string]interface{}{"reason": "rate_limit"})

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "execute:read_file")
		assert.Contains(t, lines[1], "rate_limit")
	})
}
