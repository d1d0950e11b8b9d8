package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	goutils "github.com/jkaninda/go-utils"

	"github.com/jkaninda/cmdguard/internal/audit"
	"github.com/jkaninda/cmdguard/internal/config"
	"github.com/jkaninda/cmdguard/internal/executor"
	"github.com/jkaninda/cmdguard/internal/observability"
	"github.com/jkaninda/cmdguard/internal/policy"
	"github.com/jkaninda/cmdguard/internal/validator"
	"github.com/jkaninda/cmdguard/internal/workspace"
)

var (
	configFile string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (or CMDGUARD_CONFIG env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

// components holds the initialized subsystems shared by the run and serve
// commands. Built once by initComponents, torn down by Cleanup.
type components struct {
	Config  *config.Config
	Logger  *slog.Logger
	Catalog *policy.Catalog
	Engine  observability.CommandExecutor
	Obs     *observability.Observability
	Store   audit.Store // nil when the queryable backend is disabled
	Sweeper *audit.Sweeper

	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (c *components) Cleanup() {
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		c.cleanups[i]()
	}
}

func (c *components) addCleanup(fn func()) {
	c.cleanups = append(c.cleanups, fn)
}

// newLogger builds the process logger. Logs go to stderr so that stdio
// transports (MCP) keep stdout clean for protocol frames.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// loadConfig resolves the config file from the flag, the CMDGUARD_CONFIG env
// var, or the state home, falling back to built-in defaults.
func loadConfig() (*config.Config, error) {
	path := goutils.Env("CMDGUARD_CONFIG", configFile)
	if path != "" {
		return config.Load(path)
	}

	ws, err := workspace.Default()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(ws.ConfigPath()); statErr == nil {
		return config.Load(ws.ConfigPath())
	}
	return config.Default(), nil
}

// initComponents performs the common initialization: workspace, policy
// catalog, audit sinks, observability and the execution engine.
// Callers must call Cleanup when done.
func initComponents(cfg *config.Config, logger *slog.Logger) (*components, error) {
	c := &components{Config: cfg, Logger: logger}

	// Workspace state home.
	ws, err := initStateHome(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing state home: %w", err)
	}
	logger.Debug("state home initialized", slog.String("root", ws.Root))

	// Fenced workspace root.
	root := cfg.Workspace
	if root == "" {
		root, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
	}
	root, err = workspace.ResolveRoot(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root %s: %w", cfg.Workspace, err)
	}

	// Policy catalog: explicit file or the built-in vetted set.
	catalog, err := initCatalog(cfg, root)
	if err != nil {
		return nil, fmt.Errorf("loading policy catalog: %w", err)
	}
	c.Catalog = catalog
	logger.Debug("policy catalog loaded",
		slog.Int("commands", len(catalog.Bases())),
		slog.String("workspace", root),
	)

	// Audit sinks: JSONL trail plus the queryable store.
	sink, store, err := initAudit(cfg, ws, logger, c)
	if err != nil {
		c.Cleanup()
		return nil, fmt.Errorf("initializing audit: %w", err)
	}
	c.Store = store
	if store != nil {
		c.Sweeper = audit.NewSweeper(store, cfg.Audit.Retention(), cfg.Audit.SweepSchedule, logger)
	}

	// Observability.
	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		c.Cleanup()
		return nil, fmt.Errorf("initializing observability: %w", err)
	}
	c.Obs = obs
	c.addCleanup(func() {
		if obs != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		}
	})

	// Readiness checks: the audit store must answer and the fenced root
	// must still exist.
	if obs != nil && obs.Health != nil {
		if store := c.Store; store != nil {
			obs.Health.AddCheck("audit_store", func(ctx context.Context) error {
				_, err := store.Recent(ctx, 1)
				return err
			})
		}
		obs.Health.AddCheck("workspace_root", func(_ context.Context) error {
			_, err := os.Stat(root)
			return err
		})
	}

	// Execution engine.
	engine := executor.New(catalog, validator.Default(), logger, executor.Options{
		DefaultTimeout: cfg.Execution.Timeout(),
		MaxStreamBytes: cfg.Execution.StreamCap(),
		Audit:          sink,
	})
	c.Engine = obs.Instrument(engine)

	return c, nil
}

// initStateHome creates the ~/.cmdguard directory tree, honoring the
// configured override.
func initStateHome(cfg *config.Config) (*workspace.Workspace, error) {
	var ws *workspace.Workspace
	var err error
	if cfg.StateHome != "" {
		ws, err = workspace.New(cfg.StateHome)
	} else {
		ws, err = workspace.Default()
	}
	if err != nil {
		return nil, err
	}
	if err := ws.EnsureAll(); err != nil {
		return nil, err
	}
	return ws, nil
}

func initCatalog(cfg *config.Config, root string) (*policy.Catalog, error) {
	if cfg.PolicyFile != "" {
		return policy.Load(cfg.PolicyFile, root)
	}
	return policy.Default(root)
}

// initAudit builds the audit fan-out: the append-only JSONL trail and the
// queryable SQLite/PostgreSQL store. Both are optional; audit failures are
// logged, never surfaced to the execution path.
func initAudit(cfg *config.Config, ws *workspace.Workspace, logger *slog.Logger, c *components) (executor.AuditSink, audit.Store, error) {
	var sinks audit.Multi

	if !cfg.Audit.DisableJSONL {
		jsonl, err := audit.NewLogger(ws.AuditLogPath(), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening audit log %s: %w", ws.AuditLogPath(), err)
		}
		c.addCleanup(func() {
			if err := jsonl.Close(); err != nil {
				logger.Error("closing audit log", slog.String("error", err.Error()))
			}
		})
		sinks = append(sinks, jsonl)
	}

	store, err := initStore(cfg, ws, logger)
	if err != nil {
		return nil, nil, err
	}
	if store != nil {
		c.addCleanup(func() {
			if err := store.Close(); err != nil {
				logger.Error("closing audit store", slog.String("error", err.Error()))
			}
		})
		sinks = append(sinks, audit.NewStoreSink(store, logger))
	}

	if len(sinks) == 0 {
		return nil, nil, nil
	}
	return sinks, store, nil
}

// initStore opens the queryable audit backend from config.
func initStore(cfg *config.Config, ws *workspace.Workspace, logger *slog.Logger) (audit.Store, error) {
	driver := cfg.Audit.Storage.StorageDriver()

	switch driver {
	case "postgres":
		var dsn string
		if cfg.Audit.Storage != nil && cfg.Audit.Storage.Postgres != nil {
			dsn = cfg.Audit.Storage.Postgres.DSN
		}
		if dsn == "" {
			return nil, fmt.Errorf("postgres DSN is required (set audit.storage.postgres.dsn or CMDGUARD_DB_DSN)")
		}
		return audit.OpenPostgres(dsn, logger)
	case "sqlite":
		path := ws.AuditDBPath()
		if cfg.Audit.Storage != nil && cfg.Audit.Storage.SQLite != nil && cfg.Audit.Storage.SQLite.Path != "" {
			path = cfg.Audit.Storage.SQLite.Path
		}
		return audit.OpenSQLite(path, logger)
	default:
		return nil, fmt.Errorf("unknown audit storage driver: %q", driver)
	}
}
