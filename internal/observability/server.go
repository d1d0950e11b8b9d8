package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jkaninda/okapi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/cmdguard/internal/config"
)

// Server exposes the observability endpoints: /metrics, /healthz, /readyz.
// Unauthenticated — bind it to a loopback or cluster-internal address.
type Server struct {
	cfg    *config.MetricsConfig
	obs    *Observability
	logger *slog.Logger
	app    *okapi.Okapi
	server *http.Server
}

// NewServer builds the metrics/health server. Returns nil when metrics are
// disabled.
func NewServer(cfg *config.MetricsConfig, obs *Observability, logger *slog.Logger) *Server {
	if cfg == nil || !cfg.Enabled || obs == nil {
		return nil
	}
	return &Server{cfg: cfg, obs: obs, logger: logger}
}

// Start serves until the context is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}

	app := okapi.New()
	app.Use(requestMetrics(s.obs.Metrics, s.obs.Tracer.Tracer()))

	app.Get("/healthz", s.handleLiveness)
	app.Get("/readyz", s.handleReadiness)
	if s.obs.Metrics != nil {
		app.HandleStd("GET", s.cfg.MetricsPath(),
			promhttp.HandlerFor(s.obs.Metrics.Registry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	s.app = app

	s.server = &http.Server{
		Addr:              s.cfg.ListenAddr(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	s.logger.Info("observability server starting", slog.String("addr", s.cfg.ListenAddr()))
	return app.StartServer(s.server)
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	s.logger.Info("observability server stopping")
	return s.app.Shutdown(s.server)
}

func (s *Server) handleLiveness(c *okapi.Context) error {
	return c.OK(s.obs.Health.CheckHealth())
}

func (s *Server) handleReadiness(c *okapi.Context) error {
	status := s.obs.Health.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// requestMetrics instruments the observability endpoints themselves.
func requestMetrics(metrics *MetricsCollector, tracer trace.Tracer) okapi.Middleware {
	return func(next okapi.HandlerFunc) okapi.HandlerFunc {
		return func(c *okapi.Context) error {
			r := c.Request()

			if tracer != nil {
				_, span := tracer.Start(r.Context(), "http.request",
					trace.WithAttributes(
						attribute.String("http.method", r.Method),
						attribute.String("http.path", r.URL.Path),
					))
				defer span.End()
			}

			start := time.Now()
			err := next(c)
			duration := time.Since(start).Seconds()

			if metrics != nil {
				code := c.Response().StatusCode()
				if code == 0 {
					code = http.StatusOK
				}
				metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(code)).Inc()
				metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			}

			return err
		}
	}
}
