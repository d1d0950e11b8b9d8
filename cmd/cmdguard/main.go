// Cmdguard — policy-driven secure command execution for agent tooling.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cmdguard",
	Short: "Cmdguard — a policy-fenced executor for developer commands.",
	Long: `Cmdguard runs a vetted set of developer commands (git, npm, pytest, dotnet,
PowerShell, OS utilities) behind per-command security policies: allowlisted
subcommands and flags, workspace path fencing, environment sanitization and
bounded subprocess execution. Every invocation, executed or blocked, is
written to the audit trail.`,
	RunE:          runServe, // Default to MCP stdio mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(runCmd, policiesCmd, serveCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
