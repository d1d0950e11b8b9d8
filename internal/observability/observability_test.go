package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jkaninda/cmdguard/internal/config"
	"github.com/jkaninda/cmdguard/internal/executor"
)

type stubExecutor struct {
	result *executor.Result
}

func (s *stubExecutor) Execute(_ context.Context, _ executor.Request) *executor.Result {
	return s.result
}

func TestInstrumentedExecutorCounts(t *testing.T) {
	metrics := NewMetricsCollector()
	code := 0
	inner := &stubExecutor{result: &executor.Result{
		Status:          executor.StatusSuccess,
		ReturnCode:      &code,
		DurationSeconds: 0.2,
		TruncatedStdout: true,
	}}
	wrapped := NewInstrumentedExecutor(inner, metrics, nil, nil)

	wrapped.Execute(context.Background(), executor.Request{Command: "git status"})
	wrapped.Execute(context.Background(), executor.Request{Command: "git status"})

	if got := testutil.ToFloat64(metrics.ExecutionsTotal.WithLabelValues("git", "success")); got != 2 {
		t.Errorf("executions_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.TruncationsTotal.WithLabelValues("stdout")); got != 2 {
		t.Errorf("truncations_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.BlockedTotal.WithLabelValues("git")); got != 0 {
		t.Errorf("blocked_total = %v, want 0", got)
	}
}

func TestInstrumentedExecutorBlockedCounter(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &stubExecutor{result: &executor.Result{
		Status:  executor.StatusBlocked,
		Message: "no policy registered for command \"curl\"",
	}}
	wrapped := NewInstrumentedExecutor(inner, metrics, nil, nil)

	wrapped.Execute(context.Background(), executor.Request{Command: "curl http://x"})

	if got := testutil.ToFloat64(metrics.BlockedTotal.WithLabelValues("curl")); got != 1 {
		t.Errorf("blocked_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ExecutionsTotal.WithLabelValues("curl", "blocked")); got != 1 {
		t.Errorf("executions_total{status=blocked} = %v, want 1", got)
	}
}

func TestBlockRateMonitorWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	m := NewBlockRateMonitor(time.Minute, 0.5, logger)

	for i := 0; i < 6; i++ {
		m.RecordBlocked("git")
	}

	if !strings.Contains(buf.String(), "high block rate") {
		t.Errorf("no warning logged: %q", buf.String())
	}
}

func TestBlockRateMonitorQuietUnderThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	m := NewBlockRateMonitor(time.Minute, 0.5, logger)

	for i := 0; i < 10; i++ {
		m.RecordExecuted("git")
	}
	m.RecordBlocked("git")

	if strings.Contains(buf.String(), "high block rate") {
		t.Errorf("spurious warning: %q", buf.String())
	}
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker(nil)

	if status := h.CheckReady(context.Background()); status.Status != "ok" {
		t.Errorf("no checks registered, status = %q", status.Status)
	}

	h.AddCheck("audit_store", func(context.Context) error { return nil })
	h.AddCheck("workspace", func(context.Context) error { return errors.New("root missing") })

	status := h.CheckReady(context.Background())
	if status.Status != "degraded" {
		t.Errorf("status = %q, want degraded", status.Status)
	}
	if status.Checks["audit_store"].Status != "ok" || status.Checks["workspace"].Status != "fail" {
		t.Errorf("checks = %+v", status.Checks)
	}
}

func TestNewDisabled(t *testing.T) {
	obs, err := New(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if obs != nil {
		t.Error("nil config must disable observability")
	}

	inner := &stubExecutor{result: &executor.Result{Status: executor.StatusSuccess}}
	if got := obs.Instrument(inner); got != CommandExecutor(inner) {
		t.Error("disabled observability must return the engine unchanged")
	}
}

func TestNewMetricsOnly(t *testing.T) {
	obs, err := New(&config.ObservabilityConfig{
		Metrics: &config.MetricsConfig{Enabled: true},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if obs.Metrics == nil {
		t.Fatal("metrics not created")
	}
	if obs.Tracer != nil {
		t.Error("tracer created without tracing config")
	}
	if obs.Monitor == nil {
		t.Error("block-rate monitor not created alongside metrics")
	}
}
