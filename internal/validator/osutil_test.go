package validator

import (
	"strings"
	"testing"

	"github.com/jkaninda/cmdguard/internal/policy"
)

func TestOSUtilValidate(t *testing.T) {
	cat := mustCatalog(t, t.TempDir(),
		&policy.CommandPolicy{
			Base:      "ls",
			RootFlags: []string{"-l", "-a", "-h", "--color"},
		},
		&policy.CommandPolicy{
			Base:       "find",
			RootFlags:  []string{"-name", "-type", "-maxdepth"},
			DenyTokens: []string{"-exec", "-execdir", "-ok", "-okdir", "-delete"},
		},
	)
	o := &OSUtil{}

	tests := []struct {
		name    string
		base    string
		argv    []string
		allowed bool
		reason  string
	}{
		{"bare ls", "ls", []string{"ls"}, true, ""},
		{"ls with flags", "ls", []string{"ls", "-la", "."}, false, "-la"},
		{"ls allowed flags", "ls", []string{"ls", "-l", "-a", "src"}, true, ""},
		{"ls unknown flag", "ls", []string{"ls", "-R"}, false, "-R"},
		{"find safe", "find", []string{"find", ".", "-name", "*.go"}, true, ""},
		{"find exec denied", "find", []string{"find", ".", "-exec", "rm", "{}", ";"}, false, "-exec"},
		{"find delete denied", "find", []string{"find", ".", "-delete"}, false, "-delete"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pol := lookup(t, cat, tc.base)
			out := o.Validate(tc.argv, pol)
			if out.Allowed != tc.allowed {
				t.Fatalf("Validate(%v) allowed = %v (reason %q), want %v", tc.argv, out.Allowed, out.Reason, tc.allowed)
			}
			if tc.reason != "" && !strings.Contains(out.Reason, tc.reason) {
				t.Errorf("reason %q does not mention %q", out.Reason, tc.reason)
			}
		})
	}
}
