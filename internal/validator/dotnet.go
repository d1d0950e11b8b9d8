package validator

import "github.com/jkaninda/cmdguard/internal/policy"

// Dotnet validates dotnet CLI invocations. The subcommand allowlist includes
// flag-style pseudo-subcommands such as "--info". For fenced subcommands
// (test, build) every positional project/solution/directory argument and
// every path-valued flag is confined to the workspace. Verbosity flags are
// canonicalized by AdjustArguments so only the enforced value set reaches
// the child process.
type Dotnet struct{}

var (
	_ Validator        = (*Dotnet)(nil)
	_ ArgumentAdjuster = (*Dotnet)(nil)
)

// Verbosity values allowed through unchanged; anything chattier or unknown
// collapses to canonicalVerbosity.
var allowedVerbosity = []string{"q", "quiet", "m", "minimal"}

const canonicalVerbosity = "minimal"

func (d *Dotnet) Validate(argv []string, pol *policy.CommandPolicy) Outcome {
	args := argv[1:]
	if len(args) == 0 {
		return Block("dotnet requires a subcommand")
	}

	// The first token is the subcommand slot: either a real subcommand or
	// a pseudo-subcommand like --info. Both come from the same allowlist.
	name := args[0]
	sub, ok := pol.Subcommand(name)
	if !ok {
		return Block("dotnet subcommand %q is not allowed", name)
	}

	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		token := rest[i]
		if token == "--" {
			continue
		}
		if !isFlag(token) {
			if sub.FencePaths && !fencePath(pol.WorkspaceRoot, token) {
				return Block("path %q resolves outside the workspace", token)
			}
			continue
		}

		fn := flagName(token)
		if inList(pol.DenyFlags, fn) || inList(sub.DenyFlags, fn) {
			return Block("dotnet flag %q is denied for %q", fn, name)
		}
		if !inList(sub.Flags, fn) && !inList(sub.RequiredFlags, fn) {
			return Block("dotnet flag %q is not allowed for %q", fn, name)
		}

		value := ""
		if fn != token {
			value = token[len(fn)+1:]
		} else if inList(sub.ValueFlags, fn) && i+1 < len(rest) {
			i++
			value = rest[i]
		}
		if value != "" && sub.FencePaths && inList(sub.PathFlags, fn) {
			if !fencePath(pol.WorkspaceRoot, value) {
				return Block("value of %q resolves outside the workspace", fn)
			}
		}
	}

	return Allow(sub)
}

// AdjustArguments injects the subcommand's required flags and rewrites
// verbosity flags: every "-v"/"--verbosity" alias becomes "--verbosity"
// with a value from the allowed set. Idempotent — normalized argv passes
// through unchanged.
func (d *Dotnet) AdjustArguments(argv []string, pol *policy.CommandPolicy) []string {
	if len(argv) < 2 {
		return argv
	}
	sub, ok := pol.Subcommand(argv[1])
	if !ok {
		return argv
	}

	adjusted := make([]string, 0, len(argv))
	adjusted = append(adjusted, argv[0], argv[1])

	rest := argv[2:]
	for i := 0; i < len(rest); i++ {
		token := rest[i]
		fn := flagName(token)
		if fn != "-v" && fn != "--verbosity" {
			adjusted = append(adjusted, token)
			continue
		}

		value := ""
		if fn != token {
			value = token[len(fn)+1:]
		} else if i+1 < len(rest) {
			i++
			value = rest[i]
		}
		if !inList(allowedVerbosity, value) {
			value = canonicalVerbosity
		}
		adjusted = append(adjusted, "--verbosity", value)
	}

	for _, required := range sub.RequiredFlags {
		if !hasFlag(adjusted, required) {
			adjusted = append(adjusted, required)
		}
	}
	return adjusted
}

func (d *Dotnet) AdjustEnvironment(env map[string]string, _ []string, pol *policy.CommandPolicy) map[string]string {
	return mergeEnv(env, pol.SafeEnv)
}
