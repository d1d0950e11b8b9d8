package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultCatalog(t *testing.T) {
	cat, err := Default("/repo")
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	for _, base := range []string{"git", "npm", "pnpm", "npx", "node", "dotnet", "pytest", "powershell", "ls", "find"} {
		if !cat.Governs(base) {
			t.Errorf("default catalog missing policy for %q", base)
		}
	}
	if cat.Governs("rm") {
		t.Error("default catalog must not govern rm")
	}

	git, _ := cat.Lookup("git")
	if git.WorkspaceRoot != "/repo" {
		t.Errorf("WorkspaceRoot = %q, want /repo", git.WorkspaceRoot)
	}
	if git.Validator() != "git" {
		t.Errorf("git validator key = %q", git.Validator())
	}
	ls, _ := cat.Lookup("ls")
	if ls.Validator() != "osutil" {
		t.Errorf("ls validator key = %q, want osutil (explicit override)", ls.Validator())
	}
}

func TestCatalogTimeouts(t *testing.T) {
	cat, err := New("/repo", 10*time.Second, []*CommandPolicy{
		{Base: "a"},
		{Base: "b", TimeoutSeconds: 90},
	})
	if err != nil {
		t.Fatal(err)
	}

	a, _ := cat.Lookup("a")
	if got := a.Timeout(); got != 10*time.Second {
		t.Errorf("inherited timeout = %v, want 10s", got)
	}
	b, _ := cat.Lookup("b")
	if got := b.Timeout(); got != 90*time.Second {
		t.Errorf("override timeout = %v, want 90s", got)
	}
}

func TestNewRejectsMalformedPolicies(t *testing.T) {
	tests := []struct {
		name     string
		policies []*CommandPolicy
	}{
		{"empty base", []*CommandPolicy{{Base: ""}}},
		{"duplicate base", []*CommandPolicy{{Base: "git"}, {Base: "git"}}},
		{"bad deny pattern", []*CommandPolicy{{Base: "x", DenyPatterns: []string{"("}}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New("/repo", 0, tc.policies); err == nil {
				t.Error("expected a load-time error, got nil")
			}
		})
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	data := `
default_timeout_seconds: 20
commands:
  - base: git
    deny_flags: ["-c"]
    subcommands:
      status:
        flags: ["--porcelain", "-s"]
  - base: echo
    validator: basic
    root_flags: ["-n"]
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cat, err := Load(path, "/repo")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cat.DefaultTimeout() != 20*time.Second {
		t.Errorf("DefaultTimeout = %v, want 20s", cat.DefaultTimeout())
	}

	git, ok := cat.Lookup("git")
	if !ok {
		t.Fatal("git policy not loaded")
	}
	sub, ok := git.Subcommand("status")
	if !ok {
		t.Fatal("status subcommand not loaded")
	}
	if len(sub.Flags) != 2 {
		t.Errorf("status flags = %v", sub.Flags)
	}

	echo, _ := cat.Lookup("echo")
	if echo.Validator() != "basic" {
		t.Errorf("echo validator = %q, want basic", echo.Validator())
	}

	bases := cat.Bases()
	if len(bases) != 2 || bases[0] != "echo" || bases[1] != "git" {
		t.Errorf("Bases() = %v", bases)
	}
}

func TestLoadRejectsEmptyCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(path, []byte("commands: []\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, "/repo"); err == nil {
		t.Error("expected error for empty catalog")
	}
}

func TestBareSubcommandEntriesNormalized(t *testing.T) {
	cat, err := New("/repo", 0, []*CommandPolicy{
		{Base: "dotnet", Subcommands: map[string]*SubcommandPolicy{"--info": nil}},
	})
	if err != nil {
		t.Fatal(err)
	}
	p, _ := cat.Lookup("dotnet")
	sub, ok := p.Subcommand("--info")
	if !ok || sub == nil {
		t.Fatal("nil subcommand entry not normalized to empty policy")
	}
}
