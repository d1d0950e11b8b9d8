package pathsafety

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestIsWithinWorkspace(t *testing.T) {
	root := t.TempDir()

	inside := filepath.Join(root, "src", "main.py")
	if err := os.MkdirAll(filepath.Dir(inside), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(inside, []byte("pass\n"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{"root itself", root, true},
		{"existing file", inside, true},
		{"existing dir", filepath.Join(root, "src"), true},
		{"not yet created", filepath.Join(root, "src", "new_file.py"), true},
		{"relative escape", filepath.Join(root, "src", "..", "..", "etc"), false},
		{"outside", string(filepath.Separator) + "etc", false},
		{"empty", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsWithinWorkspace(root, tc.candidate); got != tc.want {
				t.Errorf("IsWithinWorkspace(%q, %q) = %v, want %v", root, tc.candidate, got, tc.want)
			}
		})
	}
}

// A sibling directory sharing the root's name as a string prefix must never
// count as inside. Naive prefix matching gets this wrong.
func TestIsWithinWorkspaceSiblingPrefix(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "work")
	sibling := filepath.Join(parent, "work2")
	for _, d := range []string{root, sibling} {
		if err := os.Mkdir(d, 0750); err != nil {
			t.Fatal(err)
		}
	}

	if IsWithinWorkspace(root, filepath.Join(sibling, "evil")) {
		t.Errorf("sibling %q accepted against root %q", sibling, root)
	}
}

func TestIsWithinWorkspaceSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}

	outside := t.TempDir()
	root := t.TempDir()

	link := filepath.Join(root, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatal(err)
	}

	if IsWithinWorkspace(root, filepath.Join(link, "secret.txt")) {
		t.Error("symlink pointing outside the workspace accepted")
	}
}

func TestLooksLikePath(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"tests/test_x.py", true},
		{`src\main.cs`, true},
		{"tests/test_x.py::TestY::test_z", true},
		{"main.go", true},
		{"Project.csproj", true},
		{"c:temp", true},
		{"main.py:42", true},
		{"--watch", false},
		{"-k", false},
		{"build", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.token, func(t *testing.T) {
			if got := LooksLikePath(tc.token); got != tc.want {
				t.Errorf("LooksLikePath(%q) = %v, want %v", tc.token, got, tc.want)
			}
		})
	}
}

func TestExtractFilePart(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"tests/test_x.py::TestY::test_z", "tests/test_x.py"},
		{"tests/test_x.py:12", "tests/test_x.py"},
		{"tests/test_x.py:12:3", "tests/test_x.py"},
		{`C:\repo\tests\test_x.py::TestY`, `C:\repo\tests\test_x.py`},
		{`C:\repo\a.py:7`, `C:\repo\a.py`},
		{"c:", "c:"},
		{"plain.py", "plain.py"},
		{"no_suffix", "no_suffix"},
	}

	for _, tc := range tests {
		t.Run(tc.token, func(t *testing.T) {
			if got := ExtractFilePart(tc.token); got != tc.want {
				t.Errorf("ExtractFilePart(%q) = %q, want %q", tc.token, got, tc.want)
			}
		})
	}
}
