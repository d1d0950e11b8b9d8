// Package pathsafety provides pure helpers for workspace confinement checks.
// Validators use these to decide whether a path-like command argument is
// allowed to leave the engine: every fenced path must resolve inside the
// declared workspace root, symlinks included.
package pathsafety

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// File suffixes that mark a token as path-like even without a separator.
// Covers the source, project and config files the governed tools operate on.
var pathLikeSuffixes = []string{
	".py", ".pyi", ".go", ".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx",
	".cs", ".csproj", ".sln", ".fsproj", ".vbproj", ".props", ".targets",
	".json", ".yaml", ".yml", ".toml", ".ini", ".cfg", ".conf",
	".txt", ".md", ".xml", ".html", ".css", ".scss", ".sql", ".sh", ".ps1",
	".lock", ".mod", ".sum",
}

// IsWithinWorkspace reports whether candidate resolves to the workspace root
// itself or a path below it. Both sides are resolved through symlinks before
// comparison and the check walks path components, so a sibling such as
// /work2/evil never passes against root /work.
func IsWithinWorkspace(root, candidate string) bool {
	return isWithin(root, candidate, foldCase())
}

func isWithin(root, candidate string, fold bool) bool {
	if root == "" || candidate == "" {
		return false
	}

	resolvedRoot, err := resolve(root)
	if err != nil {
		return false
	}
	resolvedCand, err := resolve(candidate)
	if err != nil {
		return false
	}

	if fold {
		resolvedRoot = strings.ToLower(resolvedRoot)
		resolvedCand = strings.ToLower(resolvedCand)
	}

	rel, err := filepath.Rel(resolvedRoot, resolvedCand)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	// A descendant relative path never starts with a parent step and is
	// never absolute. This is component-wise, not string-prefix, matching.
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

// resolve returns the symlink-free absolute form of path. When the path does
// not exist yet (fenced arguments may name files a tool will create), the
// deepest existing ancestor is resolved and the remaining components are
// re-joined lexically.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	if r, err := filepath.EvalSymlinks(abs); err == nil {
		return r, nil
	}

	dir := abs
	var tail []string
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		tail = append([]string{filepath.Base(dir)}, tail...)
		dir = parent
		if r, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(append([]string{r}, tail...)...), nil
		}
		if !os.IsNotExist(statErr(dir)) {
			break
		}
	}
	return filepath.Clean(abs), nil
}

func statErr(path string) error {
	_, err := os.Lstat(path)
	return err
}

// LooksLikePath reports whether a token plausibly names a filesystem path:
// it contains a separator, a test node-id separator ("::"), a known file
// suffix, or a drive-letter / file:line colon. Flag tokens never count.
func LooksLikePath(token string) bool {
	if token == "" || strings.HasPrefix(token, "-") {
		return false
	}
	if strings.ContainsAny(token, `/\`) {
		return true
	}
	if strings.Contains(token, "::") {
		return true
	}
	lower := strings.ToLower(token)
	for _, suffix := range pathLikeSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	if i := strings.IndexByte(token, ':'); i > 0 {
		// Either a drive letter ("c:...") or a file:line selector.
		if i == 1 && isDriveLetter(token[0]) {
			return true
		}
		for _, suffix := range pathLikeSuffixes {
			if strings.HasSuffix(strings.ToLower(token[:i]), suffix) {
				return true
			}
		}
	}
	return false
}

// ExtractFilePart strips test-selector decorations from a token: everything
// after the first "::" (pytest node ids) and a trailing ":<line>" suffix.
// Drive-letter colons are preserved.
func ExtractFilePart(token string) string {
	if i := strings.Index(token, "::"); i >= 0 {
		token = token[:i]
	}
	// Strip trailing :<digits> (possibly repeated, e.g. file.py:12:3),
	// but never the colon of a Windows drive letter.
	for {
		i := strings.LastIndexByte(token, ':')
		if i <= 0 {
			break
		}
		if i == 1 && isDriveLetter(token[0]) {
			break
		}
		if !allDigits(token[i+1:]) {
			break
		}
		token = token[:i]
	}
	return token
}

func isDriveLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// foldCase reports whether path comparison should be case-insensitive on
// this platform.
func foldCase() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}
