package validator

import (
	"reflect"
	"strings"
	"testing"

	"github.com/jkaninda/cmdguard/internal/policy"
)

func powershellFixture(t *testing.T) *policy.CommandPolicy {
	t.Helper()
	cat := mustCatalog(t, t.TempDir(), &policy.CommandPolicy{
		Base:          "pwsh",
		ValidatorKey:  "powershell",
		RootFlags:     []string{"-NoLogo", "-Command", "-c"},
		RequiredFlags: []string{"-NoProfile", "-NonInteractive"},
		DenyFlags:     []string{"-encodedcommand", "-e", "-ec", "-enc", "-file", "-windowstyle"},
		Cmdlets:       []string{"Get-ChildItem", "Get-Content", "Get-Location"},
		DenyPatterns:  []string{`[;&|]`, `\$\(`, "`", `(?i)invoke-(expression|webrequest)`},
	})
	return lookup(t, cat, "pwsh")
}

func TestPowerShellValidate(t *testing.T) {
	pol := powershellFixture(t)
	p := &PowerShell{}

	tests := []struct {
		name    string
		argv    []string
		allowed bool
		reason  string
	}{
		{"allowed cmdlet", []string{"pwsh", "-NoProfile", "-Command", "Get-ChildItem ."}, true, ""},
		{"cmdlet case folded", []string{"pwsh", "-Command", "get-content notes.txt"}, true, ""},
		{"unlisted cmdlet", []string{"pwsh", "-Command", "Remove-Item x"}, false, `"Remove-Item"`},
		{"encoded command denied", []string{"pwsh", "-EncodedCommand", "ZQBjAGgAbwA="}, false, "-EncodedCommand"},
		{"short encoded alias denied", []string{"pwsh", "-e", "ZQBjAGgAbwA="}, false, "-e"},
		{"script file denied", []string{"pwsh", "-File", "evil.ps1"}, false, "-File"},
		{"unknown flag", []string{"pwsh", "-ExecutionPolicy"}, false, "-ExecutionPolicy"},
		{"pipe pattern", []string{"pwsh", "-Command", "Get-Content a | sort"}, false, "denied pattern"},
		{"subexpression pattern", []string{"pwsh", "-Command", "Get-Content $(whoami)"}, false, "denied pattern"},
		{"backtick pattern", []string{"pwsh", "-Command", "Get-Content a`nb"}, false, "denied pattern"},
		{"download helper pattern", []string{"pwsh", "-Command", "Invoke-WebRequest http://x"}, false, "denied pattern"},
		{"bare host", []string{"pwsh"}, true, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := p.Validate(tc.argv, pol)
			if out.Allowed != tc.allowed {
				t.Fatalf("Validate(%v) allowed = %v (reason %q), want %v", tc.argv, out.Allowed, out.Reason, tc.allowed)
			}
			if tc.reason != "" && !strings.Contains(out.Reason, tc.reason) {
				t.Errorf("reason %q does not mention %q", out.Reason, tc.reason)
			}
		})
	}
}

func TestPowerShellAdjustArguments(t *testing.T) {
	pol := powershellFixture(t)
	p := &PowerShell{}

	got := p.AdjustArguments([]string{"pwsh", "-Command", "Get-Location"}, pol)
	want := []string{"pwsh", "-NoProfile", "-NonInteractive", "-Command", "Get-Location"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("AdjustArguments = %v, want %v", got, want)
	}

	again := p.AdjustArguments(got, pol)
	if !reflect.DeepEqual(again, got) {
		t.Errorf("second adjustment changed argv: %v != %v", again, got)
	}

	// Case variants of the required flags count as present.
	preset := p.AdjustArguments([]string{"pwsh", "-noprofile", "-noninteractive", "-Command", "Get-Location"}, pol)
	if len(preset) != 5 {
		t.Errorf("case-variant required flags duplicated: %v", preset)
	}
}

func TestPowerShellAdjustEnvironment(t *testing.T) {
	pol := powershellFixture(t)
	p := &PowerShell{}

	env := p.AdjustEnvironment(map[string]string{"LANG": "C"}, []string{"pwsh"}, pol)
	if env["POWERSHELL_TELEMETRY_OPTOUT"] != "1" || env["POWERSHELL_UPDATECHECK"] != "Off" {
		t.Errorf("telemetry opt-outs missing: %v", env)
	}
	if env["LANG"] != "C" {
		t.Error("caller environment lost")
	}
}
