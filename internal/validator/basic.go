package validator

import "github.com/jkaninda/cmdguard/internal/policy"

// Basic is the generic fallback validator: subcommand presence when the
// policy defines subcommands, plus a flag allowlist checked per subcommand
// or globally. It must be wired to a base command explicitly — no command
// falls back to it implicitly.
type Basic struct{}

var _ Validator = (*Basic)(nil)

func (b *Basic) Validate(argv []string, pol *policy.CommandPolicy) Outcome {
	args := argv[1:]

	for _, token := range args {
		if inList(pol.DenyTokens, token) {
			return Block("token %q is denied", token)
		}
		if isFlag(token) && inList(pol.DenyFlags, flagName(token)) {
			return Block("flag %q is denied", flagName(token))
		}
	}

	if len(pol.Subcommands) == 0 {
		// No subcommand model: every flag must be on the global allowlist.
		for _, token := range args {
			if isFlag(token) && !inList(pol.RootFlags, flagName(token)) {
				return Block("flag %q is not allowed for %s", flagName(token), pol.Base)
			}
		}
		return Allow(nil)
	}

	pos := firstPositional(args)
	if pos < 0 {
		return Block("%s requires a subcommand", pol.Base)
	}
	for _, token := range args[:pos] {
		if !inList(pol.RootFlags, flagName(token)) {
			return Block("flag %q is not allowed before a subcommand", flagName(token))
		}
	}

	name := args[pos]
	sub, ok := pol.Subcommand(name)
	if !ok {
		return Block("subcommand %q is not allowed for %s", name, pol.Base)
	}

	for _, token := range args[pos+1:] {
		if !isFlag(token) {
			continue
		}
		fn := flagName(token)
		if inList(sub.DenyFlags, fn) {
			return Block("flag %q is denied for %s %s", fn, pol.Base, name)
		}
		if !inList(sub.Flags, fn) && !inList(pol.RootFlags, fn) {
			return Block("flag %q is not allowed for %s %s", fn, pol.Base, name)
		}
	}

	if sub.FencePaths {
		if offender, ok := fencePathLike(pol.WorkspaceRoot, args[pos+1:]); !ok {
			return Block("path %q resolves outside the workspace", offender)
		}
	}

	return Allow(sub)
}

func (b *Basic) AdjustEnvironment(env map[string]string, _ []string, pol *policy.CommandPolicy) map[string]string {
	return mergeEnv(env, pol.SafeEnv)
}
