package observability

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// perCheckTimeout bounds each dependency check so one stuck backend cannot
// hold the readiness endpoint open.
const perCheckTimeout = 3 * time.Second

// HealthChecker aggregates readiness from the engine's dependencies: the
// audit store and the fenced workspace root. Liveness is unconditional.
type HealthChecker struct {
	mu     sync.Mutex
	checks map[string]func(ctx context.Context) error
	logger *slog.Logger
}

// HealthStatus is the JSON response for the health and readiness endpoints.
type HealthStatus struct {
	Status string                 `json:"status"` // "ok" or "degraded"
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Status    string `json:"status"`            // "ok" or "fail"
	Message   string `json:"message,omitempty"` // Error message on failure.
	LatencyMS int64  `json:"latency_ms"`
}

// NewHealthChecker creates a HealthChecker with no checks registered.
func NewHealthChecker(logger *slog.Logger) *HealthChecker {
	return &HealthChecker{
		checks: make(map[string]func(ctx context.Context) error),
		logger: logger,
	}
}

// AddCheck registers a named dependency check. Re-registering a name
// replaces the previous check.
func (h *HealthChecker) AddCheck(name string, check func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// CheckHealth reports liveness: "ok" whenever the process is running.
func (h *HealthChecker) CheckHealth() HealthStatus {
	return HealthStatus{Status: "ok"}
}

// CheckReady runs every registered check, each under its own timeout, and
// reports "degraded" if any fail. Checks run in registration-name order so
// the response is stable.
func (h *HealthChecker) CheckReady(ctx context.Context) HealthStatus {
	h.mu.Lock()
	names := make([]string, 0, len(h.checks))
	checks := make(map[string]func(ctx context.Context) error, len(h.checks))
	for name, check := range h.checks {
		names = append(names, name)
		checks[name] = check
	}
	h.mu.Unlock()

	if len(names) == 0 {
		return HealthStatus{Status: "ok"}
	}
	sort.Strings(names)

	status := HealthStatus{
		Status: "ok",
		Checks: make(map[string]CheckResult, len(names)),
	}
	for _, name := range names {
		status.Checks[name] = h.runCheck(ctx, name, checks[name])
		if status.Checks[name].Status != "ok" {
			status.Status = "degraded"
		}
	}
	return status
}

func (h *HealthChecker) runCheck(ctx context.Context, name string, check func(ctx context.Context) error) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, perCheckTimeout)
	defer cancel()

	start := time.Now()
	err := check(checkCtx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		if h.logger != nil {
			h.logger.Warn("readiness check failed",
				slog.String("check", name),
				slog.String("error", err.Error()),
			)
		}
		return CheckResult{Status: "fail", Message: err.Error(), LatencyMS: latency}
	}
	return CheckResult{Status: "ok", LatencyMS: latency}
}
