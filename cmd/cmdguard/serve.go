package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/jkaninda/cmdguard/internal/executor"
	"github.com/jkaninda/cmdguard/internal/observability"
	"github.com/jkaninda/cmdguard/internal/ratelimit"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine as an MCP stdio tool",
	Long: `Expose the execution engine over the Model Context Protocol on
stdin/stdout, for use as a tool server by agent frameworks. A single
run_command tool takes a raw command line and returns the execution result;
blocked commands come back as tool errors with the policy reason.

Logs go to stderr. When metrics are enabled the /metrics and health
endpoints are served on the configured address.`,
	RunE: runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(logLevel)

	c, err := initComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Audit retention sweeper.
	if c.Sweeper != nil {
		stopSweeper, err := c.Sweeper.Start(ctx)
		if err != nil {
			return fmt.Errorf("starting retention sweeper: %w", err)
		}
		defer stopSweeper()
	}

	// Metrics and health endpoints.
	if cfg.Observability != nil {
		if srv := observability.NewServer(cfg.Observability.Metrics, c.Obs, logger); srv != nil {
			go func() {
				if err := srv.Start(ctx); err != nil {
					logger.Error("metrics server failed", slog.String("error", err.Error()))
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Stop(shutdownCtx)
			}()
		}
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		ExecutionsPerMinute: cfg.Execution.ExecutionsPerMinute,
		BurstSize:           cfg.Execution.BurstSize,
	})

	mcpServer := server.NewMCPServer("cmdguard", version,
		server.WithToolCapabilities(false),
	)
	mcpServer.AddTool(runCommandTool(), runCommandHandler(c.Engine, limiter, cfg.Execution.ShowWindows))

	logger.Info("serving MCP on stdio",
		slog.Int("commands", len(c.Catalog.Bases())),
		slog.String("workspace", c.Catalog.WorkspaceRoot()),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ServeStdio(mcpServer) }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("stdio server: %w", err)
		}
		return nil
	}
}

func runCommandTool() mcp.Tool {
	return mcp.NewTool("run_command",
		mcp.WithDescription("Run a developer command (git, npm, pytest, dotnet, ...) inside the "+
			"policy-fenced workspace. Shell operators are not supported; pass a single "+
			"plain command line."),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("The command line to run, e.g. \"git status\" or \"npm run build\""),
		),
		mcp.WithString("working_directory",
			mcp.Description("Working directory relative to the workspace root"),
		),
		mcp.WithNumber("timeout_seconds",
			mcp.Description("Execution timeout in seconds (0 = policy default)"),
		),
	)
}

func runCommandHandler(engine observability.CommandExecutor, limiter *ratelimit.Limiter, showWindow bool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		command, _ := args["command"].(string)
		if command == "" {
			return mcp.NewToolResultError("command is required"), nil
		}
		if err := limiter.Allow(firstField(command)); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%v; retry shortly", err)), nil
		}
		workDir, _ := args["working_directory"].(string)

		var timeout time.Duration
		if secs, ok := args["timeout_seconds"].(float64); ok && secs > 0 {
			timeout = time.Duration(secs * float64(time.Second))
		}

		res := engine.Execute(ctx, executor.Request{
			Command:    command,
			WorkDir:    workDir,
			Timeout:    timeout,
			ShowWindow: showWindow,
		})

		if res.Status == executor.StatusBlocked {
			return mcp.NewToolResultError(res.FriendlyString()), nil
		}
		return mcp.NewToolResultText(res.FriendlyString()), nil
	}
}

// firstField returns the leading whitespace-delimited token of a command
// line, used as the throttle key before full tokenization.
func firstField(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
