package validator

import (
	"github.com/jkaninda/cmdguard/internal/pathsafety"
	"github.com/jkaninda/cmdguard/internal/policy"
)

// Pytest validates test-runner invocations, whether direct or reached
// through "interpreter -m pytest" (base resolution collapses the latter
// before validation). It enforces the safe-flag allowlist, caps the total
// argument length and the selector count, and workspace-fences every
// path-like selector after stripping node-id and line suffixes.
type Pytest struct{}

var _ Validator = (*Pytest)(nil)

func (p *Pytest) Validate(argv []string, pol *policy.CommandPolicy) Outcome {
	args := argv[1:]

	if pol.MaxArgLength > 0 {
		total := 0
		for _, token := range args {
			total += len(token)
		}
		if total > pol.MaxArgLength {
			return Block("argument list exceeds %d bytes", pol.MaxArgLength)
		}
	}

	selectors := 0
	for i := 0; i < len(args); i++ {
		token := args[i]
		if isFlag(token) {
			fn := flagName(token)
			if inList(pol.DenyFlags, fn) {
				return Block("pytest flag %q is denied", fn)
			}
			if !inList(pol.RootFlags, fn) {
				return Block("pytest flag %q is not on the safe-flag list", fn)
			}
			if inList(pol.ValueFlags, fn) && fn == token && i+1 < len(args) {
				i++ // the flag's value is not a selector
			}
			continue
		}

		selectors++
		if pol.MaxSelectors > 0 && selectors > pol.MaxSelectors {
			return Block("selector count exceeds %d", pol.MaxSelectors)
		}
		if pathsafety.LooksLikePath(token) && !fencePath(pol.WorkspaceRoot, token) {
			return Block("selector %q resolves outside the workspace", token)
		}
	}

	return Allow(nil)
}

func (p *Pytest) AdjustEnvironment(env map[string]string, _ []string, pol *policy.CommandPolicy) map[string]string {
	return mergeEnv(env, pol.SafeEnv)
}
