// Package validator implements the per-command-family validators that
// interpret a policy against a concrete tokenized command. Every family
// implements the same closed contract; an optional argument-adjustment
// capability is expressed as a second interface rather than probed
// dynamically. Validators are stateless and safe for concurrent use.
package validator

import (
	"fmt"
	"sort"
	"time"

	"github.com/jkaninda/cmdguard/internal/policy"
)

// PathPrependKey is a reserved environment key validators use to hand the
// executor a directory to prepend to PATH before executable resolution
// (project-local tool directories such as node_modules/.bin). The executor
// consumes and removes it; it never reaches the child process.
const PathPrependKey = "CMDGUARD_PATH_PREPEND"

// WorkDirKey carries the effective working directory into environment
// adjustment, following the POSIX convention.
const WorkDirKey = "PWD"

// Outcome is the verdict of a validation pass.
type Outcome struct {
	// Allowed is false when the command must not execute.
	Allowed bool

	// Reason explains a block in one line. Empty when allowed.
	Reason string

	// Timeout is a validator-level override. Zero = no override.
	Timeout time.Duration

	// Env are additional environment overrides for this invocation.
	Env map[string]string

	// Matched is the subcommand policy fragment that matched, if any.
	Matched *policy.SubcommandPolicy
}

// Allow builds a permitting outcome for the matched policy fragment.
func Allow(matched *policy.SubcommandPolicy) Outcome {
	out := Outcome{Allowed: true, Matched: matched}
	if matched != nil {
		out.Timeout = matched.Timeout()
	}
	return out
}

// Block builds a rejecting outcome with a formatted reason.
func Block(format string, args ...any) Outcome {
	return Outcome{Reason: fmt.Sprintf(format, args...)}
}

// Validator is the contract every command family implements.
type Validator interface {
	// Validate decides whether the tokenized command (canonical base at
	// index 0) may execute under the policy.
	Validate(argv []string, pol *policy.CommandPolicy) Outcome

	// AdjustEnvironment returns a derived environment for the child:
	// policy safe-env merged in, family-specific fixups applied. The
	// input map is never mutated.
	AdjustEnvironment(env map[string]string, argv []string, pol *policy.CommandPolicy) map[string]string
}

// ArgumentAdjuster is the optional argument-normalization capability.
// Implementations must be idempotent and must preserve the order of tokens
// they do not touch.
type ArgumentAdjuster interface {
	AdjustArguments(argv []string, pol *policy.CommandPolicy) []string
}

// Registry maps validator keys to implementations. It is populated once at
// startup and read-only afterwards; there is no implicit default entry, so
// a policy referencing an unregistered key yields a blocked result.
type Registry struct {
	validators map[string]Validator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]Validator)}
}

// Register binds a validator to a key, replacing any previous binding.
func (r *Registry) Register(key string, v Validator) {
	r.validators[key] = v
}

// Lookup returns the validator for a key.
func (r *Registry) Lookup(key string) (Validator, bool) {
	v, ok := r.validators[key]
	return v, ok
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.validators))
	for k := range r.validators {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Default builds the standard registry with every built-in family bound to
// its conventional key. The generic fallback is registered under "basic"
// only — a base command uses it solely when its policy names that key.
func Default() *Registry {
	r := NewRegistry()
	r.Register("basic", &Basic{})
	r.Register("git", &Git{})
	r.Register("npm", &NodePM{})
	r.Register("pnpm", &NodePM{})
	r.Register("lerna", &NodePM{})
	r.Register("npx", &Npx{})
	r.Register("node", &Node{})
	r.Register("dotnet", &Dotnet{})
	r.Register("pytest", &Pytest{})
	r.Register("osutil", &OSUtil{})
	r.Register("powershell", &PowerShell{})
	return r
}
