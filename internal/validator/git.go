package validator

import (
	"os"

	"github.com/jkaninda/cmdguard/internal/policy"
)

// Git validates git invocations: a subcommand allowlist, per-subcommand flag
// allowlists, and a global deny list that blocks the config-injection flags
// wherever they appear. Read-only subcommands additionally run with global
// and system git configuration pointed at the null device, so user dotfiles
// cannot change their behavior.
type Git struct{}

var _ Validator = (*Git)(nil)

func (g *Git) Validate(argv []string, pol *policy.CommandPolicy) Outcome {
	args := argv[1:]

	// The deny list is absolute: -c and friends are rejected anywhere in
	// the argument list, before and after the subcommand.
	for _, token := range args {
		if isFlag(token) && inList(pol.DenyFlags, flagName(token)) {
			return Block("git flag %q is denied by policy", flagName(token))
		}
	}

	pos := firstPositional(args)
	if pos < 0 {
		return Block("git requires a subcommand")
	}
	for _, token := range args[:pos] {
		if !inList(pol.RootFlags, flagName(token)) {
			return Block("flag %q is not allowed before the git subcommand", flagName(token))
		}
	}

	name := args[pos]
	sub, ok := pol.Subcommand(name)
	if !ok {
		return Block("git subcommand %q is not allowed", name)
	}

	rest := args[pos+1:]
	for i := 0; i < len(rest); i++ {
		token := rest[i]
		if token == "--" {
			continue // pathspec separator; following tokens are paths
		}
		if !isFlag(token) {
			continue
		}
		fn := flagName(token)
		if inList(sub.DenyFlags, fn) {
			return Block("git flag %q is denied for %q", fn, name)
		}
		if !inList(sub.Flags, fn) {
			return Block("git flag %q is not allowed for %q", fn, name)
		}
		if inList(sub.ValueFlags, fn) && fn == token && i+1 < len(rest) {
			i++ // detached value consumed
		}
	}

	if sub.FencePaths {
		if offender, ok := fencePathLike(pol.WorkspaceRoot, rest); !ok {
			return Block("path %q resolves outside the workspace", offender)
		}
	}

	return Allow(sub)
}

func (g *Git) AdjustEnvironment(env map[string]string, argv []string, pol *policy.CommandPolicy) map[string]string {
	merged := mergeEnv(env, pol.SafeEnv)

	if name, ok := gitSubcommand(argv); ok && pol.IsReadOnly(name) {
		merged["GIT_CONFIG_GLOBAL"] = os.DevNull
		merged["GIT_CONFIG_SYSTEM"] = os.DevNull
	}
	return merged
}

func gitSubcommand(argv []string) (string, bool) {
	if len(argv) < 2 {
		return "", false
	}
	pos := firstPositional(argv[1:])
	if pos < 0 {
		return "", false
	}
	return argv[1+pos], true
}
