package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/cmdguard/internal/executor"
)

// CommandExecutor is the narrow execution surface the wrapper instruments.
// *executor.Engine satisfies it.
type CommandExecutor interface {
	Execute(ctx context.Context, req executor.Request) *executor.Result
}

// InstrumentedExecutor wraps a CommandExecutor with metrics, tracing, and
// block-rate monitoring. Any of the three may be nil.
type InstrumentedExecutor struct {
	inner   CommandExecutor
	metrics *MetricsCollector
	tracer  trace.Tracer
	monitor *BlockRateMonitor
}

var _ CommandExecutor = (*InstrumentedExecutor)(nil)

// NewInstrumentedExecutor wraps an execution engine with observability.
func NewInstrumentedExecutor(inner CommandExecutor, metrics *MetricsCollector, ts *TracerSetup, monitor *BlockRateMonitor) *InstrumentedExecutor {
	var tracer trace.Tracer
	if ts != nil {
		tracer = ts.Tracer()
	}
	return &InstrumentedExecutor{
		inner:   inner,
		metrics: metrics,
		tracer:  tracer,
		monitor: monitor,
	}
}

func (e *InstrumentedExecutor) Execute(ctx context.Context, req executor.Request) *executor.Result {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "executor.execute",
			trace.WithAttributes(
				attribute.String("command.work_dir", req.WorkDir),
			))
		defer span.End()
	}

	if e.metrics != nil {
		e.metrics.ActiveExecutions.Inc()
		defer e.metrics.ActiveExecutions.Dec()
	}

	result := e.inner.Execute(ctx, req)
	base := firstToken(req.Command)

	if e.tracer != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.String("command.status", string(result.Status)))
		if result.Status == executor.StatusBlocked {
			span.SetStatus(codes.Error, result.Message)
		}
		if result.ReturnCode != nil {
			span.SetAttributes(attribute.Int("command.return_code", *result.ReturnCode))
		}
	}

	if e.metrics != nil {
		e.metrics.ExecutionsTotal.WithLabelValues(base, string(result.Status)).Inc()
		e.metrics.ExecutionDuration.WithLabelValues(base).Observe(result.DurationSeconds)
		if result.Status == executor.StatusBlocked {
			e.metrics.BlockedTotal.WithLabelValues(base).Inc()
		}
		if result.TruncatedStdout {
			e.metrics.TruncationsTotal.WithLabelValues("stdout").Inc()
		}
		if result.TruncatedStderr {
			e.metrics.TruncationsTotal.WithLabelValues("stderr").Inc()
		}
	}

	if e.monitor != nil {
		if result.Status == executor.StatusBlocked {
			e.monitor.RecordBlocked(base)
		} else {
			e.monitor.RecordExecuted(base)
		}
	}

	return result
}

// firstToken is a label-only approximation of the base command; the engine
// does the real resolution. Metric labels must stay low-cardinality, so the
// raw first word is enough.
func firstToken(command string) string {
	for i := 0; i < len(command); i++ {
		if command[i] == ' ' || command[i] == '\t' {
			return command[:i]
		}
	}
	return command
}
