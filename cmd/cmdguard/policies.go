package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var policiesCmd = &cobra.Command{
	Use:   "policies [base]",
	Short: "Inspect the active policy catalog",
	Long: `List the base commands the active catalog governs, or show the full
policy for one base command as YAML.

Examples:
  cmdguard policies
  cmdguard policies git`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPolicies,
}

func runPolicies(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	root := cfg.Workspace
	if root == "" {
		if root, err = os.Getwd(); err != nil {
			return err
		}
	}
	catalog, err := initCatalog(cfg, root)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		for _, base := range catalog.Bases() {
			fmt.Println(base)
		}
		return nil
	}

	pol, ok := catalog.Lookup(args[0])
	if !ok {
		return fmt.Errorf("no policy for %q", args[0])
	}
	out, err := yaml.Marshal(pol)
	if err != nil {
		return fmt.Errorf("marshaling policy: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
