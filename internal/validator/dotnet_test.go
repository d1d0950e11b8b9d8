package validator

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jkaninda/cmdguard/internal/policy"
)

func dotnetFixture(t *testing.T, root string) *policy.CommandPolicy {
	t.Helper()
	cat := mustCatalog(t, root, &policy.CommandPolicy{
		Base:      "dotnet",
		DenyFlags: []string{"--interactive"},
		Subcommands: map[string]*policy.SubcommandPolicy{
			"test": {
				Flags:         []string{"--filter", "--verbosity", "-v", "--logger", "--results-directory", "--nologo"},
				RequiredFlags: []string{"--nologo"},
				ValueFlags:    []string{"--filter", "--verbosity", "-v", "--logger", "--results-directory"},
				PathFlags:     []string{"--results-directory"},
				FencePaths:    true,
			},
			"build":  {Flags: []string{"--no-restore", "--nologo"}},
			"--info": {},
		},
	})
	return lookup(t, cat, "dotnet")
}

func TestDotnetValidate(t *testing.T) {
	root := t.TempDir()
	pol := dotnetFixture(t, root)
	d := &Dotnet{}

	proj := filepath.Join(root, "app", "app.csproj")
	results := filepath.Join(root, "artifacts")

	tests := []struct {
		name    string
		argv    []string
		allowed bool
		reason  string
	}{
		{"info pseudo-subcommand", []string{"dotnet", "--info"}, true, ""},
		{"bare dotnet", []string{"dotnet"}, false, "requires a subcommand"},
		{"unknown subcommand", []string{"dotnet", "publish"}, false, `"publish"`},
		{"test in workspace", []string{"dotnet", "test", proj, "--nologo"}, true, ""},
		{"test project outside workspace", []string{"dotnet", "test", "/srv/other.csproj"}, false, "outside the workspace"},
		{"deny flag", []string{"dotnet", "test", "--interactive"}, false, "--interactive"},
		{"unknown flag", []string{"dotnet", "build", "--output"}, false, "--output"},
		{"path flag value fenced", []string{"dotnet", "test", "--results-directory", results}, true, ""},
		{"path flag value escape", []string{"dotnet", "test", "--results-directory", "/tmp/out"}, false, "--results-directory"},
		{"path flag attached escape", []string{"dotnet", "test", "--results-directory=/tmp/out"}, false, "--results-directory"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := d.Validate(tc.argv, pol)
			if out.Allowed != tc.allowed {
				t.Fatalf("Validate(%v) allowed = %v (reason %q), want %v", tc.argv, out.Allowed, out.Reason, tc.allowed)
			}
			if tc.reason != "" && !strings.Contains(out.Reason, tc.reason) {
				t.Errorf("reason %q does not mention %q", out.Reason, tc.reason)
			}
		})
	}
}

func TestDotnetAdjustArguments(t *testing.T) {
	pol := dotnetFixture(t, t.TempDir())
	d := &Dotnet{}

	tests := []struct {
		name string
		argv []string
		want []string
	}{
		{
			"injects required flag",
			[]string{"dotnet", "test"},
			[]string{"dotnet", "test", "--nologo"},
		},
		{
			"short alias rewritten",
			[]string{"dotnet", "test", "-v", "quiet", "--nologo"},
			[]string{"dotnet", "test", "--verbosity", "quiet", "--nologo"},
		},
		{
			"chatty verbosity clamped",
			[]string{"dotnet", "test", "--verbosity", "diagnostic", "--nologo"},
			[]string{"dotnet", "test", "--verbosity", "minimal", "--nologo"},
		},
		{
			"attached form normalized",
			[]string{"dotnet", "test", "--verbosity=detailed", "--nologo"},
			[]string{"dotnet", "test", "--verbosity", "minimal", "--nologo"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := d.AdjustArguments(tc.argv, pol)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("AdjustArguments(%v) = %v, want %v", tc.argv, got, tc.want)
			}
			again := d.AdjustArguments(got, pol)
			if !reflect.DeepEqual(again, got) {
				t.Errorf("second adjustment changed argv: %v != %v", again, got)
			}
		})
	}
}
