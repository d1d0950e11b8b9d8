// Package config handles loading and validating cmdguard configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for cmdguard.
type Config struct {
	// Workspace is the fenced project root commands run inside.
	// Default: the current directory. Override: CMDGUARD_WORKSPACE env var.
	Workspace string `json:"workspace,omitempty" yaml:"workspace,omitempty"`

	// StateHome holds engine state (policies, logs, audit trails).
	// Default: ~/.cmdguard. Override: CMDGUARD_HOME env var.
	StateHome string `json:"state_home,omitempty" yaml:"state_home,omitempty"`

	// PolicyFile points at a policy catalog YAML. Empty = the built-in
	// vetted catalog. Override: CMDGUARD_POLICIES env var.
	PolicyFile string `json:"policy_file,omitempty" yaml:"policy_file,omitempty"`

	Execution     ExecutionConfig      `json:"execution" yaml:"execution"`
	Audit         AuditConfig          `json:"audit" yaml:"audit"`
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled
}

// ExecutionConfig tunes the execution engine.
type ExecutionConfig struct {
	DefaultTimeoutSeconds int  `json:"default_timeout_seconds" yaml:"default_timeout_seconds"` // Default: 60
	MaxStreamBytes        int  `json:"max_stream_bytes" yaml:"max_stream_bytes"`               // Per-stream cap. Default: 1 MB
	ShowWindows           bool `json:"show_windows" yaml:"show_windows"`                       // Windows console visibility

	// ExecutionsPerMinute throttles executions per base command in serve
	// mode. 0 = unlimited.
	ExecutionsPerMinute int `json:"executions_per_minute" yaml:"executions_per_minute"`
	// BurstSize caps the throttle bucket. 0 = defaults to ExecutionsPerMinute.
	BurstSize int `json:"burst_size" yaml:"burst_size"`
}

// Timeout returns the default execution timeout.
func (e *ExecutionConfig) Timeout() time.Duration {
	if e.DefaultTimeoutSeconds > 0 {
		return time.Duration(e.DefaultTimeoutSeconds) * time.Second
	}
	return 60 * time.Second
}

// StreamCap returns the per-stream byte ceiling.
func (e *ExecutionConfig) StreamCap() int {
	if e.MaxStreamBytes > 0 {
		return e.MaxStreamBytes
	}
	return 1 << 20
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	// Storage selects the queryable backend. nil = SQLite under the state
	// home.
	Storage *StorageConfig `json:"storage,omitempty" yaml:"storage,omitempty"`

	// DisableJSONL turns off the append-only JSONL trail.
	DisableJSONL bool `json:"disable_jsonl" yaml:"disable_jsonl"`

	RetentionDays int    `json:"retention_days" yaml:"retention_days"` // Default: 30
	SweepSchedule string `json:"sweep_schedule" yaml:"sweep_schedule"` // Five-field cron. Default: nightly
}

// Retention returns the audit retention window.
func (a *AuditConfig) Retention() time.Duration {
	days := a.RetentionDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// StorageConfig configures the audit persistence backend.
type StorageConfig struct {
	Driver   string                 `json:"driver" yaml:"driver"`                         // "sqlite" (default) or "postgres".
	SQLite   *SQLiteStorageConfig   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`     // SQLite-specific settings.
	Postgres *PostgresStorageConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"` // PostgreSQL-specific settings.
}

// StorageDriver returns the configured driver, defaulting to "sqlite".
func (s *StorageConfig) StorageDriver() string {
	if s != nil && s.Driver != "" {
		return s.Driver
	}
	return "sqlite"
}

// SQLiteStorageConfig holds SQLite-specific settings.
type SQLiteStorageConfig struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"` // Database file path. Default: derived from the state home.
}

// PostgresStorageConfig holds PostgreSQL-specific settings.
type PostgresStorageConfig struct {
	DSN string `json:"dsn" yaml:"dsn"` // Override: CMDGUARD_DB_DSN env var.
}

// ObservabilityConfig enables metrics exposition and tracing.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"` // Default: ":9090". Override: CMDGUARD_METRICS_ADDR.
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// ListenAddr returns the metrics server bind address.
func (m *MetricsConfig) ListenAddr() string {
	if m.Addr != "" {
		return m.Addr
	}
	return ":9090"
}

// MetricsPath returns the exposition path.
func (m *MetricsConfig) MetricsPath() string {
	if m.Path != "" {
		return m.Path
	}
	return "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "cmdguard"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
}

// Default returns the zero-config defaults: current directory as the fenced
// workspace, built-in policy catalog, SQLite audit under ~/.cmdguard.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	return cfg
}

// Load reads a JSON or YAML config file and returns a validated Config. The
// format is detected by file extension: .yml/.yaml for YAML, everything else
// for JSON. Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv layers environment variable overrides on top of file values.
func (c *Config) applyEnv() {
	if ws := os.Getenv("CMDGUARD_WORKSPACE"); ws != "" {
		c.Workspace = ws
	}
	if home := os.Getenv("CMDGUARD_HOME"); home != "" {
		c.StateHome = home
	}
	if policies := os.Getenv("CMDGUARD_POLICIES"); policies != "" {
		c.PolicyFile = policies
	}
	if dsn := os.Getenv("CMDGUARD_DB_DSN"); dsn != "" {
		if c.Audit.Storage == nil {
			c.Audit.Storage = &StorageConfig{Driver: "postgres"}
		}
		if c.Audit.Storage.Postgres == nil {
			c.Audit.Storage.Postgres = &PostgresStorageConfig{}
		}
		c.Audit.Storage.Postgres.DSN = dsn
	}
	if addr := os.Getenv("CMDGUARD_METRICS_ADDR"); addr != "" {
		if c.Observability == nil {
			c.Observability = &ObservabilityConfig{}
		}
		if c.Observability.Metrics == nil {
			c.Observability.Metrics = &MetricsConfig{Enabled: true}
		}
		c.Observability.Metrics.Addr = addr
	}
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.Execution.DefaultTimeoutSeconds < 0 {
		return fmt.Errorf("execution.default_timeout_seconds must not be negative")
	}
	if c.Execution.MaxStreamBytes < 0 {
		return fmt.Errorf("execution.max_stream_bytes must not be negative")
	}
	if c.Execution.ExecutionsPerMinute < 0 {
		return fmt.Errorf("execution.executions_per_minute must not be negative")
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days must not be negative")
	}
	if s := c.Audit.Storage; s != nil {
		switch s.StorageDriver() {
		case "sqlite":
		case "postgres":
			if s.Postgres == nil || s.Postgres.DSN == "" {
				return fmt.Errorf("audit.storage.postgres.dsn is required for the postgres driver")
			}
		default:
			return fmt.Errorf("unknown audit storage driver %q", s.Driver)
		}
	}
	if t := c.tracing(); t != nil && t.Enabled {
		if t.Endpoint == "" {
			return fmt.Errorf("observability.tracing.endpoint is required when tracing is enabled")
		}
		switch t.Protocol {
		case "", "grpc", "http":
		default:
			return fmt.Errorf("unknown tracing protocol %q", t.Protocol)
		}
	}
	return nil
}

func (c *Config) tracing() *TracingConfig {
	if c.Observability == nil {
		return nil
	}
	return c.Observability.Tracing
}

// resolvePath expands ~ to the user home directory and returns an absolute
// path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}
