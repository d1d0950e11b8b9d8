package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for cmdguard.
// Uses a custom registry — no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Execution metrics.
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	ActiveExecutions  prometheus.Gauge

	// Security metrics.
	BlockedTotal     *prometheus.CounterVec
	TruncationsTotal *prometheus.CounterVec

	// Audit metrics.
	AuditWriteFailures prometheus.Counter

	// HTTP metrics for the observability endpoints themselves.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cmdguard",
			Subsystem: "executor",
			Name:      "executions_total",
			Help:      "Total command execution attempts by base command and terminal status.",
		}, []string{"base", "status"}),

		ExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cmdguard",
			Subsystem: "executor",
			Name:      "execution_duration_seconds",
			Help:      "Command execution duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"base"}),

		ActiveExecutions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cmdguard",
			Subsystem: "executor",
			Name:      "active_executions",
			Help:      "Number of commands currently executing.",
		}),

		BlockedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cmdguard",
			Subsystem: "security",
			Name:      "blocked_total",
			Help:      "Total attempts blocked by policy, by base command.",
		}, []string{"base"}),

		TruncationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cmdguard",
			Subsystem: "executor",
			Name:      "truncations_total",
			Help:      "Output streams clipped at the byte cap.",
		}, []string{"stream"}),

		AuditWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cmdguard",
			Subsystem: "audit",
			Name:      "write_failures_total",
			Help:      "Audit records that could not be persisted.",
		}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cmdguard",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests to the observability endpoints.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cmdguard",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	// Register all collectors.
	reg.MustRegister(
		m.ExecutionsTotal,
		m.ExecutionDuration,
		m.ActiveExecutions,
		m.BlockedTotal,
		m.TruncationsTotal,
		m.AuditWriteFailures,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}
