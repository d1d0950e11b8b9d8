// Package workspace manages the cmdguard runtime directory structure. All
// engine state (policy files, audit trails, logs) lives under a single state
// home, keeping installs portable.
//
// Default state home: ~/.cmdguard (configurable via config or the
// CMDGUARD_HOME env var). The fenced project root that commands run inside
// is a separate path resolved with ResolveRoot.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Default state home relative to the user home directory.
const defaultRelativePath = ".cmdguard"

// Workspace manages the cmdguard state home and its derived paths.
type Workspace struct {
	Root string

	mu      sync.Mutex
	created map[string]bool // tracks which directories have been ensured
}

// New creates a Workspace rooted at the given path. It resolves ~ to the
// user's home directory and creates the root directory if it does not exist.
func New(root string) (*Workspace, error) {
	resolved, err := ResolveRoot(root)
	if err != nil {
		return nil, fmt.Errorf("resolving state home %q: %w", root, err)
	}

	w := &Workspace{
		Root:    resolved,
		created: make(map[string]bool),
	}

	if err := w.ensureDir(resolved, 0750); err != nil {
		return nil, fmt.Errorf("creating state home: %w", err)
	}

	return w, nil
}

// Default creates a Workspace at ~/.cmdguard.
func Default() (*Workspace, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("determining home directory: %w", err)
	}
	return New(filepath.Join(home, defaultRelativePath))
}

// --- Top-level directory accessors ---

// PoliciesDir returns <root>/policies/. Stores policy catalog YAML files.
func (w *Workspace) PoliciesDir() string {
	return w.dir("policies")
}

// LogsDir returns <root>/logs/. Engine log and JSONL audit trail files.
func (w *Workspace) LogsDir() string {
	return w.dir("logs")
}

// StateDir returns <root>/state/ with 0700 permissions. Holds the audit
// database.
func (w *Workspace) StateDir() string {
	return w.restrictedDir("state")
}

// --- Derived paths ---

// ConfigPath returns <root>/config.yaml.
func (w *Workspace) ConfigPath() string {
	return filepath.Join(w.Root, "config.yaml")
}

// AuditLogPath returns <root>/logs/audit.jsonl.
func (w *Workspace) AuditLogPath() string {
	return filepath.Join(w.LogsDir(), "audit.jsonl")
}

// AuditDBPath returns <root>/state/audit.db.
func (w *Workspace) AuditDBPath() string {
	return filepath.Join(w.StateDir(), "audit.db")
}

// PolicyPath returns <root>/policies/<name>.yaml.
func (w *Workspace) PolicyPath(name string) string {
	return filepath.Join(w.PoliciesDir(), sanitizeName(name)+".yaml")
}

// EnsureAll creates the standard state home directories. Call during first
// startup.
func (w *Workspace) EnsureAll() error {
	for _, d := range []string{w.PoliciesDir(), w.LogsDir()} {
		if err := w.ensureDir(d, 0750); err != nil {
			return err
		}
	}
	// Restricted directory (0700).
	_ = w.StateDir()
	return nil
}

// --- Internal helpers ---

// dir returns an absolute path under the state home and ensures the
// directory exists.
func (w *Workspace) dir(name string) string {
	p := filepath.Join(w.Root, name)
	_ = w.ensureDir(p, 0750)
	return p
}

// restrictedDir is like dir but uses 0700 permissions.
func (w *Workspace) restrictedDir(name string) string {
	p := filepath.Join(w.Root, name)
	_ = w.ensureDir(p, 0700)
	return p
}

// ensureDir creates a directory if it doesn't already exist. Uses a cache
// to avoid redundant stat/mkdir calls.
func (w *Workspace) ensureDir(path string, perm os.FileMode) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.created[path] {
		return nil
	}

	if err := os.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	w.created[path] = true
	return nil
}

// ResolveRoot expands ~ to the user home directory and returns an absolute
// path. Used for both the state home and the fenced project root.
func ResolveRoot(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

// sanitizeName replaces path separator characters to prevent directory
// traversal through policy file names.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" {
		name = "_"
	}
	return name
}
