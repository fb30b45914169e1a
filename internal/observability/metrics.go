package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "penelope"

// Chat outcomes recorded by RecordChatRun.
const (
	OutcomeAnswered     = "answered"
	OutcomeLimitReached = "limit_reached"
	OutcomeError        = "error"
)

type moduleMetrics struct {
	chatRunTotal      *prometheus.CounterVec
	chatRunDuration   prometheus.Histogram
	chatIterations    prometheus.Histogram
	modelCallTotal    *prometheus.CounterVec
	modelCallDuration *prometheus.HistogramVec
	keyRotationTotal  *prometheus.CounterVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolErrorsTotal       *prometheus.CounterVec

	sessionLoadDuration prometheus.Histogram
	sessionSaveDuration prometheus.Histogram
	storedSessions      prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			chatRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "chat_run_total",
					Help:      "Total chat runs by outcome.",
				},
				[]string{"outcome"},
			),
			chatRunDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "chat_run_duration_seconds",
					Help:      "Chat run duration in seconds.",
					Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
				},
			),
			chatIterations: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "chat_iterations",
					Help:      "Loop iterations consumed per chat run.",
					Buckets:   prometheus.LinearBuckets(1, 1, 10),
				},
			),
			modelCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "model_call_total",
					Help:      "Total model calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			modelCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "model_call_duration_seconds",
					Help:      "Model call duration in seconds by provider.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			keyRotationTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "key_rotation_total",
					Help:      "Credential rotations by failure reason and outcome.",
				},
				[]string{"reason", "outcome"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "tool_execution_total",
					Help:      "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "tool_execution_duration_seconds",
					Help:      "Tool execution duration in seconds by tool.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "tool_errors_total",
					Help:      "Total tool execution errors by tool.",
				},
				[]string{"tool"},
			),
			sessionLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "session_load_duration_seconds",
					Help:      "Session transcript load duration in seconds.",
					Buckets:   prometheus.DefBuckets,
				},
			),
			sessionSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "session_save_duration_seconds",
					Help:      "Session transcript append duration in seconds.",
					Buckets:   prometheus.DefBuckets,
				},
			),
			storedSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "stored_sessions",
					Help:      "Number of session transcripts on disk.",
				},
			),
		}

		prometheus.MustRegister(
			m.chatRunTotal,
			m.chatRunDuration,
			m.chatIterations,
			m.modelCallTotal,
			m.modelCallDuration,
			m.keyRotationTotal,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolErrorsTotal,
			m.sessionLoadDuration,
			m.sessionSaveDuration,
			m.storedSessions,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordChatRun(duration time.Duration, iterations int, outcome string) {
	m := getMetrics()
	m.chatRunTotal.WithLabelValues(outcome).Inc()
	m.chatRunDuration.Observe(duration.Seconds())
	m.chatIterations.Observe(float64(iterations))
}

func RecordModelCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.modelCallTotal.WithLabelValues(provider, statusLabel(success)).Inc()
	m.modelCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordKeyRotation counts a rotation attempt; rotated is false when the pool had no
// untried key left.
func RecordKeyRotation(reason string, rotated bool) {
	outcome := "exhausted"
	if rotated {
		outcome = "rotated"
	}
	getMetrics().keyRotationTotal.WithLabelValues(reason, outcome).Inc()
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if !success {
		m.toolErrorsTotal.WithLabelValues(tool).Inc()
	}
}

func RecordSessionLoad(duration time.Duration) {
	getMetrics().sessionLoadDuration.Observe(duration.Seconds())
}

func RecordSessionSave(duration time.Duration) {
	getMetrics().sessionSaveDuration.Observe(duration.Seconds())
}

func SetStoredSessions(count int) {
	getMetrics().storedSessions.Set(float64(count))
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
