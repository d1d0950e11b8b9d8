package argv

import (
	"errors"
	"reflect"
	"testing"
)

func TestSplitPosix(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"plain", "git status --porcelain -s", []string{"git", "status", "--porcelain", "-s"}},
		{"single quotes", "grep 'hello world' src", []string{"grep", "hello world", "src"}},
		{"double quotes", `git log --author="Jane Doe"`, []string{"git", "log", "--author=Jane Doe"}},
		{"escaped space", `ls foo\ bar`, []string{"ls", "foo bar"}},
		{"dollar stays literal in single quotes", `grep '$HOME' f.txt`, []string{"grep", "$HOME", "f.txt"}},
		{"collapsed whitespace", "  git   status  ", []string{"git", "status"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Split(tc.raw, false)
			if err != nil {
				t.Fatalf("Split(%q): %v", tc.raw, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Split(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestSplitPosixRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"unterminated single quote", "git 'status", ErrParse},
		{"unterminated double quote", `git "status`, ErrParse},
		{"command substitution", "git $(rm -rf /)", ErrParse},
		{"backtick substitution", "git `whoami`", ErrParse},
		{"parameter expansion", "git $HOME", ErrParse},
		{"empty", "   ", ErrEmpty},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Split(tc.raw, false)
			if !errors.Is(err, tc.want) {
				t.Errorf("Split(%q) error = %v, want %v", tc.raw, err, tc.want)
			}
		})
	}
}

func TestSplitWindows(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"plain", `git status -s`, []string{"git", "status", "-s"}},
		{"quoted path", `type "C:\Program Files\x.txt"`, []string{"type", `C:\Program Files\x.txt`}},
		{"escaped quote", `echo \"hi\"`, []string{"echo", `"hi"`}},
		{"backslashes before quote", `x "a\\" b`, []string{"x", `a\`, "b"}},
		{"doubled quote inside span", `x "a""b"`, []string{"x", `a"b`}},
		{"trailing backslashes literal", `dir c:\tmp\`, []string{"dir", `c:\tmp\`}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Split(tc.raw, true)
			if err != nil {
				t.Fatalf("Split(%q): %v", tc.raw, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Split(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}

	if _, err := Split(`git "status`, true); !errors.Is(err, ErrParse) {
		t.Errorf("unterminated quote error = %v, want ErrParse", err)
	}
}

func TestCanonicalBase(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"git", "git"},
		{"GIT.EXE", "git"},
		{"Npm.CMD", "npm"},
		{`C:\tools\git.exe`, "git"},
		{"/usr/bin/pytest", "pytest"},
		{"powershell.ps1", "powershell"},
		{".exe", ".exe"}, // a bare suffix is not a name to strip
	}

	for _, tc := range tests {
		t.Run(tc.token, func(t *testing.T) {
			if got := CanonicalBase(tc.token); got != tc.want {
				t.Errorf("CanonicalBase(%q) = %q, want %q", tc.token, got, tc.want)
			}
		})
	}
}

func TestResolveBase(t *testing.T) {
	governs := func(base string) bool { return base == "pytest" }

	tests := []struct {
		name   string
		tokens []string
		want   []string
	}{
		{"direct", []string{"git", "status"}, []string{"git", "status"}},
		{"suffix stripped", []string{"git.exe", "status"}, []string{"git", "status"}},
		{"module runner collapses", []string{"python", "-m", "pytest", "tests/"}, []string{"pytest", "tests/"}},
		{"module runner ungoverned module", []string{"python", "-m", "http.server"}, []string{"python", "-m", "http.server"}},
		{"dash-m needs a module", []string{"python", "-m"}, []string{"python", "-m"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveBase(tc.tokens, governs)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ResolveBase(%v) = %v, want %v", tc.tokens, got, tc.want)
			}
		})
	}

	if _, err := ResolveBase(nil, governs); !errors.Is(err, ErrEmpty) {
		t.Errorf("ResolveBase(nil) error = %v, want ErrEmpty", err)
	}
}
