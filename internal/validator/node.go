package validator

import "github.com/jkaninda/cmdguard/internal/policy"

// Node permits only metadata queries against the runtime itself. Any
// non-flag argument is a script (or stdin/eval trick) and is blocked
// outright — arbitrary JavaScript execution never passes.
type Node struct{}

var _ Validator = (*Node)(nil)

func (n *Node) Validate(argv []string, pol *policy.CommandPolicy) Outcome {
	args := argv[1:]
	if len(args) == 0 {
		return Block("bare %s starts a REPL, which is not allowed", pol.Base)
	}
	for _, token := range args {
		if !isFlag(token) {
			return Block("%s does not accept script arguments (got %q)", pol.Base, token)
		}
		if !inList(pol.RootFlags, flagName(token)) {
			return Block("%s flag %q is not allowed", pol.Base, flagName(token))
		}
	}
	return Allow(nil)
}

func (n *Node) AdjustEnvironment(env map[string]string, _ []string, pol *policy.CommandPolicy) map[string]string {
	return mergeEnv(env, pol.SafeEnv)
}
