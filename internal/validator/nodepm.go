package validator

import (
	"path/filepath"

	"github.com/jkaninda/cmdguard/internal/policy"
)

// NodePM validates the npm-shaped package managers (npm, pnpm, lerna).
// Two modes: root-flag-only ("npm --version") and subcommand mode. The
// sensitive subcommands get dedicated treatment: "run" scripts come from an
// explicit allowlist with per-script argument policies, "install"/"ci" are
// gated behind an opt-in and never accept package names, and "config" is
// limited to read-only sub-actions.
type NodePM struct{}

var (
	_ Validator        = (*NodePM)(nil)
	_ ArgumentAdjuster = (*NodePM)(nil)
)

func (n *NodePM) Validate(argv []string, pol *policy.CommandPolicy) Outcome {
	args := argv[1:]

	for _, token := range args {
		if isFlag(token) && inList(pol.DenyFlags, flagName(token)) {
			return Block("flag %q is denied by policy", flagName(token))
		}
	}

	pos := firstPositional(args)
	if pos < 0 {
		// Root-flag-only mode.
		if len(args) == 0 {
			return Block("%s requires a subcommand or flags", pol.Base)
		}
		for _, token := range args {
			if !inList(pol.RootFlags, flagName(token)) {
				return Block("flag %q is not allowed on bare %s", flagName(token), pol.Base)
			}
		}
		return Allow(nil)
	}

	for _, token := range args[:pos] {
		if !inList(pol.RootFlags, flagName(token)) {
			return Block("flag %q is not allowed before the %s subcommand", flagName(token), pol.Base)
		}
	}

	name := args[pos]
	sub, ok := pol.Subcommand(name)
	if !ok {
		return Block("%s subcommand %q is not allowed", pol.Base, name)
	}
	rest := args[pos+1:]

	switch name {
	case "run":
		return n.validateRun(rest, sub, pol)
	case "install", "ci", "add":
		return n.validateInstall(name, rest, sub, pol)
	case "config":
		return n.validateConfig(rest, sub, pol)
	default:
		return n.validateGeneric(name, rest, sub, pol)
	}
}

// validateRun enforces the allowed-scripts map and its per-script argument
// policy. Everything after the script name — on either side of "--" — counts
// as an extra argument.
func (n *NodePM) validateRun(rest []string, sub *policy.SubcommandPolicy, pol *policy.CommandPolicy) Outcome {
	head, tail, _ := splitDoubleDash(rest)

	scriptIdx := firstPositional(head)
	if scriptIdx < 0 {
		return Block("%s run requires a script name", pol.Base)
	}
	for _, token := range head[:scriptIdx] {
		if !inList(sub.Flags, flagName(token)) {
			return Block("flag %q is not allowed for %s run", flagName(token), pol.Base)
		}
	}

	script := head[scriptIdx]
	sp, ok := sub.Scripts[script]
	if !ok {
		return Block("script %q is not in the allowed scripts for %s run", script, pol.Base)
	}

	extra := append(append([]string{}, head[scriptIdx+1:]...), tail...)
	if sp.DenyArgs && len(extra) > 0 {
		return Block("script %q does not accept extra arguments", script)
	}
	if sp.FencePaths {
		if offender, ok := fencePathLike(pol.WorkspaceRoot, extra); !ok {
			return Block("script argument %q resolves outside the workspace", offender)
		}
	}
	return Allow(sub)
}

// validateInstall gates dependency installation: it must be enabled on the
// policy, and bare installs only — naming packages on the command line is
// never allowed. Safety flags are injected later by AdjustArguments.
func (n *NodePM) validateInstall(name string, rest []string, sub *policy.SubcommandPolicy, pol *policy.CommandPolicy) Outcome {
	if !pol.AllowInstall {
		return Block("%s %s is disabled by policy", pol.Base, name)
	}
	for _, token := range rest {
		if !isFlag(token) {
			return Block("%s %s does not accept package arguments (got %q)", pol.Base, name, token)
		}
		fn := flagName(token)
		if !inList(sub.Flags, fn) && !inList(sub.RequiredFlags, fn) {
			return Block("flag %q is not allowed for %s %s", fn, pol.Base, name)
		}
	}
	return Allow(sub)
}

// validateConfig restricts config to its read-only sub-actions.
func (n *NodePM) validateConfig(rest []string, sub *policy.SubcommandPolicy, pol *policy.CommandPolicy) Outcome {
	idx := firstPositional(rest)
	if idx < 0 {
		return Block("%s config requires a sub-action", pol.Base)
	}
	action := rest[idx]
	if !inList(sub.Actions, action) {
		return Block("%s config action %q is not allowed (read-only actions only)", pol.Base, action)
	}
	for _, token := range rest {
		if isFlag(token) && !inList(sub.Flags, flagName(token)) && flagName(token) != "--json" {
			return Block("flag %q is not allowed for %s config", flagName(token), pol.Base)
		}
	}
	return Allow(sub)
}

func (n *NodePM) validateGeneric(name string, rest []string, sub *policy.SubcommandPolicy, pol *policy.CommandPolicy) Outcome {
	for i := 0; i < len(rest); i++ {
		token := rest[i]
		if !isFlag(token) {
			continue
		}
		fn := flagName(token)
		if inList(sub.DenyFlags, fn) {
			return Block("flag %q is denied for %s %s", fn, pol.Base, name)
		}
		if !inList(sub.Flags, fn) {
			return Block("flag %q is not allowed for %s %s", fn, pol.Base, name)
		}
		if inList(sub.ValueFlags, fn) && fn == token && i+1 < len(rest) {
			i++
		}
	}
	if sub.FencePaths {
		if offender, ok := fencePathLike(pol.WorkspaceRoot, rest); !ok {
			return Block("path %q resolves outside the workspace", offender)
		}
	}
	return Allow(sub)
}

// AdjustArguments injects the required safety flags for install-type
// subcommands. Flags already present are not duplicated, and untouched
// tokens keep their order, so the adjustment is idempotent.
func (n *NodePM) AdjustArguments(argv []string, pol *policy.CommandPolicy) []string {
	if len(argv) < 2 {
		return argv
	}
	pos := firstPositional(argv[1:])
	if pos < 0 {
		return argv
	}
	name := argv[1+pos]
	sub, ok := pol.Subcommand(name)
	if !ok || len(sub.RequiredFlags) == 0 {
		return argv
	}

	adjusted := append([]string{}, argv...)
	for _, required := range sub.RequiredFlags {
		if !hasFlag(adjusted, required) {
			adjusted = append(adjusted, required)
		}
	}
	return adjusted
}

// AdjustEnvironment merges the policy safe-env and hands the executor the
// project-local tool directory to prepend to PATH at resolution time.
func (n *NodePM) AdjustEnvironment(env map[string]string, _ []string, pol *policy.CommandPolicy) map[string]string {
	merged := mergeEnv(env, pol.SafeEnv)
	if workDir := merged[WorkDirKey]; workDir != "" {
		merged[PathPrependKey] = filepath.Join(workDir, "node_modules", ".bin")
	}
	return merged
}

func hasFlag(argv []string, flag string) bool {
	for _, token := range argv {
		if flagName(token) == flag {
			return true
		}
	}
	return false
}
