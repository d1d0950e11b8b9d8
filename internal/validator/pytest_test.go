package validator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jkaninda/cmdguard/internal/policy"
)

func pytestFixture(t *testing.T, root string) *policy.CommandPolicy {
	t.Helper()
	cat := mustCatalog(t, root, &policy.CommandPolicy{
		Base:         "pytest",
		RootFlags:    []string{"-q", "-v", "-x", "-k", "-m", "--collect-only", "--maxfail", "--tb"},
		ValueFlags:   []string{"-k", "-m", "--maxfail", "--tb"},
		MaxArgLength: 2048,
		MaxSelectors: 3,
	})
	return lookup(t, cat, "pytest")
}

func TestPytestValidate(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "tests"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "tests", "test_x.py"), []byte("def test_a(): pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pol := pytestFixture(t, root)
	p := &Pytest{}

	nodeID := filepath.Join(root, "tests", "test_x.py") + "::TestX::test_a"

	tests := []struct {
		name    string
		argv    []string
		allowed bool
		reason  string
	}{
		{"bare pytest", []string{"pytest"}, true, ""},
		{"safe flags", []string{"pytest", "-q", "-x"}, true, ""},
		{"unsafe flag", []string{"pytest", "--rootdir"}, false, "--rootdir"},
		{"node id in workspace", []string{"pytest", nodeID}, true, ""},
		{"relative selector", []string{"pytest", "tests/test_x.py::test_a"}, true, ""},
		{"selector escape", []string{"pytest", "/etc/passwd::TestY::test_z"}, false, "outside the workspace"},
		{"keyword expression not fenced", []string{"pytest", "-k", "not slow"}, true, ""},
		{"line suffix selector", []string{"pytest", "tests/test_x.py:17"}, true, ""},
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

func TestPytestCaps(t *testing.T) {
	pol := pytestFixture(t, t.TempDir())
	p := &Pytest{}

	if out := p.Validate([]string{"pytest", strings.Repeat("a", 2049)}, pol); out.Allowed {
		t.Error("argument byte cap not enforced")
	} else if !strings.Contains(out.Reason, "2048") {
		t.Errorf("cap reason %q does not name the limit", out.Reason)
	}

	out := p.Validate([]string{"pytest", "a", "b", "c", "d"}, pol)
	if out.Allowed {
		t.Error("selector count cap not enforced")
	} else if !strings.Contains(out.Reason, "selector count") {
		t.Errorf("selector cap reason: %q", out.Reason)
	}
}
