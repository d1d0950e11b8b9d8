package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkaninda/cmdguard/internal/executor"
)

// Exit codes for the run command.
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitBlocked = 2
	ExitTimeout = 3
)

var (
	runWorkDir   string
	runTimeout   int
	runYAML      bool
	runMaxTokens int
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command line>",
	Short: "Run one command through the policy engine",
	Long: `Run a single command line through parsing, policy validation and bounded
execution, then print the result.

The command line is taken verbatim after "--" and tokenized by the engine;
shell operators (pipes, redirection, substitution) are rejected.

Examples:
  cmdguard run -- git status
  cmdguard run --workdir services/api -- npm run build
  cmdguard run --timeout 300 -- pytest tests/test_auth.py -x

Exit codes:
  0  command succeeded
  1  command failed
  2  blocked by policy
  3  timed out`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runWorkDir, "workdir", "w", "", "working directory, relative to the workspace root")
	runCmd.Flags().IntVarP(&runTimeout, "timeout", "t", 0, "timeout in seconds (0 = policy default)")
	runCmd.Flags().BoolVar(&runYAML, "yaml", false, "emit the full structured result as YAML")
	runCmd.Flags().IntVar(&runMaxTokens, "max-tokens", 0, "token budget for --yaml output (0 = unlimited)")
}

func runRun(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(logLevel)

	c, err := initComponents(cfg, logger)
	if err != nil {
		return err
	}

	req := executor.Request{
		Command:    strings.Join(args, " "),
		WorkDir:    runWorkDir,
		Timeout:    time.Duration(runTimeout) * time.Second,
		ShowWindow: cfg.Execution.ShowWindows,
	}

	res := c.Engine.Execute(context.Background(), req)

	if runYAML {
		budget := runMaxTokens
		if budget <= 0 {
			budget = 1 << 30
		}
		fmt.Print(res.YAMLCapped(budget, approxTokens, executor.CapConfig{}))
	} else {
		fmt.Println(res.FriendlyString())
	}

	// Flush audit sinks before exiting with the status-derived code.
	c.Cleanup()
	os.Exit(exitCode(res))
	return nil
}

func exitCode(res *executor.Result) int {
	switch res.Status {
	case executor.StatusSuccess:
		return ExitSuccess
	case executor.StatusBlocked:
		return ExitBlocked
	case executor.StatusTimeout:
		return ExitTimeout
	default:
		return ExitFailure
	}
}

// approxTokens estimates the token cost of a string for output budgeting.
// Four bytes per token tracks common tokenizers closely enough for caps.
func approxTokens(s string) int {
	return (len(s) + 3) / 4
}
