package executor

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var errExecutableNotFound = errors.New("executable not found")

// resolveExecutable finds the binary for argv[0] against the assembled child
// environment rather than the engine's own process environment, so a
// validator's PATH prepend (project-local tool directories) takes effect.
// Windows resolution honors PATHEXT the way the system loader does.
func resolveExecutable(name string, env map[string]string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) || strings.ContainsRune(name, '/') {
		if isExecutable(name) {
			return name, nil
		}
		return "", errExecutableNotFound
	}

	for _, dir := range filepath.SplitList(env[pathKey()]) {
		if dir == "" {
			continue
		}
		for _, candidate := range candidateNames(name, env) {
			full := filepath.Join(dir, candidate)
			if isExecutable(full) {
				return full, nil
			}
		}
	}
	return "", errExecutableNotFound
}

func candidateNames(name string, env map[string]string) []string {
	if runtime.GOOS != "windows" {
		return []string{name}
	}
	exts := env["PATHEXT"]
	if exts == "" {
		exts = ".COM;.EXE;.BAT;.CMD"
	}
	if filepath.Ext(name) != "" {
		return []string{name}
	}
	names := make([]string, 0, 8)
	for _, ext := range strings.Split(exts, ";") {
		if ext == "" {
			continue
		}
		names = append(names, name+strings.ToLower(ext))
	}
	return names
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0o111 != 0
}
