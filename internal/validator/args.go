package validator

import (
	"path/filepath"
	"strings"

	"github.com/jkaninda/cmdguard/internal/pathsafety"
)

// isFlag reports whether a token is a flag. "-" (stdin convention) and "--"
// (the forwarding separator) are not flags.
func isFlag(token string) bool {
	return len(token) > 1 && token[0] == '-' && token != "--"
}

// flagName strips an attached "=value" so "--depth=2" matches "--depth".
func flagName(token string) string {
	if i := strings.IndexByte(token, '='); i >= 0 {
		return token[:i]
	}
	return token
}

// inList reports exact membership.
func inList(list []string, token string) bool {
	for _, item := range list {
		if item == token {
			return true
		}
	}
	return false
}

// inListFold reports case-insensitive membership (PowerShell flags).
func inListFold(list []string, token string) bool {
	for _, item := range list {
		if strings.EqualFold(item, token) {
			return true
		}
	}
	return false
}

// ddState drives the explicit before/after "--" state machine for argument
// forwarding. Kept as a real state machine so the edge cases (missing "--",
// repeated "--") stay enumerable.
type ddState int

const (
	beforeDoubleDash ddState = iota
	afterDoubleDash
)

// splitDoubleDash partitions arguments around the first "--" separator.
// Tokens after the first separator — including any later "--" — are forwarded
// verbatim.
func splitDoubleDash(args []string) (head, tail []string, seen bool) {
	state := beforeDoubleDash
	for _, token := range args {
		switch state {
		case beforeDoubleDash:
			if token == "--" {
				state = afterDoubleDash
				seen = true
				continue
			}
			head = append(head, token)
		case afterDoubleDash:
			tail = append(tail, token)
		}
	}
	return head, tail, seen
}

// fencePath checks one candidate against the workspace root. Relative
// candidates are anchored at the root (the executor separately confines the
// working directory to the root, so a relative path that stays put cannot
// escape). Selector decorations are stripped first.
func fencePath(root, candidate string) bool {
	file := pathsafety.ExtractFilePart(candidate)
	if file == "" {
		return false
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(root, file)
	}
	return pathsafety.IsWithinWorkspace(root, file)
}

// fencePathLike verifies every path-like token resolves inside root and
// returns the first offender.
func fencePathLike(root string, tokens []string) (string, bool) {
	for _, token := range tokens {
		if !pathsafety.LooksLikePath(token) {
			continue
		}
		if !fencePath(root, token) {
			return token, false
		}
	}
	return "", true
}

// mergeEnv copies base and lays extra over it. Neither input is mutated.
func mergeEnv(base, extra map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// firstPositional returns the index of the first non-flag token, or -1.
func firstPositional(args []string) int {
	for i, token := range args {
		if !isFlag(token) && token != "--" {
			return i
		}
	}
	return -1
}
