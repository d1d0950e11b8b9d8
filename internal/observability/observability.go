// Package observability provides Prometheus metrics, OpenTelemetry tracing,
// health checks, and block-rate monitoring for cmdguard.
// All components are optional and nil-safe — when disabled, wrappers skip
// recording with a single nil check per operation.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jkaninda/cmdguard/internal/config"
)

// Observability is the top-level facade holding all observability
// components. Any field may be nil when that feature is disabled.
type Observability struct {
	Metrics *MetricsCollector
	Tracer  *TracerSetup
	Monitor *BlockRateMonitor
	Health  *HealthChecker
}

// New creates an Observability instance from config.
// Returns nil when the config is nil (all features disabled).
func New(cfg *config.ObservabilityConfig, logger *slog.Logger) (*Observability, error) {
	if cfg == nil {
		return nil, nil
	}

	obs := &Observability{}

	// Metrics.
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		obs.Metrics = NewMetricsCollector()
	}

	// Tracing.
	if cfg.Tracing != nil && cfg.Tracing.Enabled {
		ts, err := NewTracerSetup(cfg.Tracing)
		if err != nil {
			return nil, fmt.Errorf("initializing tracing: %w", err)
		}
		obs.Tracer = ts
	}

	// Block-rate monitoring piggybacks on metrics being enabled.
	if obs.Metrics != nil {
		obs.Monitor = NewBlockRateMonitor(0, 0, logger)
	}

	// Health checker (always created, checks added by the caller).
	obs.Health = NewHealthChecker(logger)

	return obs, nil
}

// Instrument wraps an execution engine with whatever components are enabled.
// Returns the engine unchanged when observability is disabled.
func (o *Observability) Instrument(inner CommandExecutor) CommandExecutor {
	if o == nil {
		return inner
	}
	return NewInstrumentedExecutor(inner, o.Metrics, o.Tracer, o.Monitor)
}

// Shutdown releases observability resources.
func (o *Observability) Shutdown(ctx context.Context) {
	if o == nil {
		return
	}
	if o.Tracer != nil {
		_ = o.Tracer.Shutdown(ctx)
	}
}
