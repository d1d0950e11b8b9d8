package validator

import "github.com/jkaninda/cmdguard/internal/policy"

// OSUtil validates the simple read-only operating system utilities (ls,
// cat, find, grep, ...). The hard token denylist runs before the flag
// allowlist: a denied token blocks the command even if it would otherwise
// parse as an allowed flag or a positional.
type OSUtil struct{}

var _ Validator = (*OSUtil)(nil)

func (o *OSUtil) Validate(argv []string, pol *policy.CommandPolicy) Outcome {
	args := argv[1:]

	for _, token := range args {
		if inList(pol.DenyTokens, token) {
			return Block("%s token %q is denied by policy", pol.Base, token)
		}
	}

	for _, token := range args {
		if !isFlag(token) {
			continue
		}
		fn := flagName(token)
		if inList(pol.DenyFlags, fn) {
			return Block("%s flag %q is denied", pol.Base, fn)
		}
		if !inList(pol.RootFlags, fn) {
			return Block("%s flag %q is not allowed", pol.Base, fn)
		}
	}

	return Allow(nil)
}

func (o *OSUtil) AdjustEnvironment(env map[string]string, _ []string, pol *policy.CommandPolicy) map[string]string {
	return mergeEnv(env, pol.SafeEnv)
}
