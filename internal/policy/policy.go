// Package policy defines the typed per-command execution policies and the
// immutable catalog that holds them. A policy declares what a base command
// may do: which subcommands, flags and scripts are permitted, which flags are
// denied outright, what environment it receives and how long it may run.
//
// Policies are data, not behavior — the validator family in
// internal/validator interprets them against concrete tokenized commands.
// Catalogs are validated once at load time and never mutated afterwards, so
// malformed policy fails at startup rather than mid-request.
package policy

import (
	"fmt"
	"regexp"
	"time"
)

// CommandPolicy configures a single base command (git, npm, pytest, ...).
type CommandPolicy struct {
	// Base is the canonical command name this policy governs.
	Base string `json:"base" yaml:"base"`

	// ValidatorKey selects the validator implementation. Empty = Base.
	ValidatorKey string `json:"validator,omitempty" yaml:"validator,omitempty"`

	// RootFlags are the flags permitted directly on the base command,
	// outside any subcommand (e.g. "npm --version").
	RootFlags []string `json:"root_flags,omitempty" yaml:"root_flags,omitempty"`

	// RequiredFlags are auto-injected on the base command when absent
	// (e.g. PowerShell's -NoProfile). Always permitted.
	RequiredFlags []string `json:"required_flags,omitempty" yaml:"required_flags,omitempty"`

	// Subcommands maps permitted subcommand names to their policies.
	// A nil map means the command has no subcommand model at all.
	Subcommands map[string]*SubcommandPolicy `json:"subcommands,omitempty" yaml:"subcommands,omitempty"`

	// DenyFlags are blocked everywhere on this command, before any
	// allowlist is consulted (e.g. git's config-injection flags).
	DenyFlags []string `json:"deny_flags,omitempty" yaml:"deny_flags,omitempty"`

	// DenyTokens are blocked as whole tokens anywhere in the argument
	// list, flag or not (e.g. find's -exec action).
	DenyTokens []string `json:"deny_tokens,omitempty" yaml:"deny_tokens,omitempty"`

	// DenyPatterns are regular expressions matched against every free-text
	// argument. Compiled once at catalog load.
	DenyPatterns []string `json:"deny_patterns,omitempty" yaml:"deny_patterns,omitempty"`

	// SafeEnv is merged into the child environment for this command.
	SafeEnv map[string]string `json:"safe_env,omitempty" yaml:"safe_env,omitempty"`

	// TimeoutSeconds overrides the catalog default timeout. Zero = inherit.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`

	// AllowInstall gates package-installing subcommands (npm install/ci).
	// Off by default: installs must be opted into explicitly.
	AllowInstall bool `json:"allow_install,omitempty" yaml:"allow_install,omitempty"`

	// Packages is the invokable-package allowlist for runner commands
	// such as npx.
	Packages []string `json:"packages,omitempty" yaml:"packages,omitempty"`

	// Cmdlets is the allowlisted cmdlet set for shell hosts (PowerShell).
	Cmdlets []string `json:"cmdlets,omitempty" yaml:"cmdlets,omitempty"`

	// ReadOnlySubcommands lists subcommands that must not see user or
	// system configuration (git read-only operations).
	ReadOnlySubcommands []string `json:"read_only_subcommands,omitempty" yaml:"read_only_subcommands,omitempty"`

	// ValueFlags are flags that consume the following token as their value
	// (e.g. pytest's -k EXPR). The value token is never treated as a
	// positional selector.
	ValueFlags []string `json:"value_flags,omitempty" yaml:"value_flags,omitempty"`

	// MaxArgLength caps the combined argument length in bytes. Zero = no cap.
	MaxArgLength int `json:"max_arg_length,omitempty" yaml:"max_arg_length,omitempty"`

	// MaxSelectors caps the number of positional selectors. Zero = no cap.
	MaxSelectors int `json:"max_selectors,omitempty" yaml:"max_selectors,omitempty"`

	// WorkspaceRoot is stamped by the catalog at load time. Path-fenced
	// arguments must resolve inside it.
	WorkspaceRoot string `json:"-" yaml:"-"`

	defaultTimeout time.Duration    // inherited from the catalog
	denyPatterns   []*regexp.Regexp // compiled form of DenyPatterns
}

// SubcommandPolicy configures one subcommand of a base command.
type SubcommandPolicy struct {
	// Flags is the allowlist for this subcommand. "--flag=value" tokens
	// match on the part before "=".
	Flags []string `json:"flags,omitempty" yaml:"flags,omitempty"`

	// RequiredFlags are auto-injected when absent (idempotently).
	RequiredFlags []string `json:"required_flags,omitempty" yaml:"required_flags,omitempty"`

	// DenyFlags extend the command-level deny list for this subcommand.
	DenyFlags []string `json:"deny_flags,omitempty" yaml:"deny_flags,omitempty"`

	// ValueFlags consume the following token as their value.
	ValueFlags []string `json:"value_flags,omitempty" yaml:"value_flags,omitempty"`

	// PathFlags are value flags whose values are filesystem paths and are
	// therefore workspace-fenced when FencePaths is set.
	PathFlags []string `json:"path_flags,omitempty" yaml:"path_flags,omitempty"`

	// Actions restricts the first positional argument to a fixed set of
	// read-only sub-actions (e.g. "npm config get").
	Actions []string `json:"actions,omitempty" yaml:"actions,omitempty"`

	// Scripts maps allowed script names to their argument policies
	// ("npm run <script>"). A subcommand with a nil Scripts map accepts
	// no script argument.
	Scripts map[string]*ScriptPolicy `json:"scripts,omitempty" yaml:"scripts,omitempty"`

	// FencePaths requires every path-like positional (and every PathFlags
	// value) to resolve inside the workspace root.
	FencePaths bool `json:"fence_paths,omitempty" yaml:"fence_paths,omitempty"`

	// TimeoutSeconds overrides the command timeout for this subcommand.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// ScriptPolicy configures the arguments a named package script may receive.
type ScriptPolicy struct {
	// DenyArgs blocks any extra argument after the script name, including
	// everything forwarded past "--".
	DenyArgs bool `json:"deny_args,omitempty" yaml:"deny_args,omitempty"`

	// FencePaths workspace-fences path-like forwarded arguments.
	FencePaths bool `json:"fence_paths,omitempty" yaml:"fence_paths,omitempty"`
}

// Validator returns the validator key for this policy: the explicit override
// or the base name itself.
func (p *CommandPolicy) Validator() string {
	if p.ValidatorKey != "" {
		return p.ValidatorKey
	}
	return p.Base
}

// Timeout resolves the effective default timeout for this command.
func (p *CommandPolicy) Timeout() time.Duration {
	if p.TimeoutSeconds > 0 {
		return time.Duration(p.TimeoutSeconds) * time.Second
	}
	return p.defaultTimeout
}

// Timeout returns the subcommand timeout override, or zero when inheriting.
func (s *SubcommandPolicy) Timeout() time.Duration {
	if s == nil || s.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Subcommand looks up a subcommand policy by name.
func (p *CommandPolicy) Subcommand(name string) (*SubcommandPolicy, bool) {
	s, ok := p.Subcommands[name]
	return s, ok
}

// IsReadOnly reports whether the subcommand is on the read-only list.
func (p *CommandPolicy) IsReadOnly(subcommand string) bool {
	for _, s := range p.ReadOnlySubcommands {
		if s == subcommand {
			return true
		}
	}
	return false
}

// CompiledDenyPatterns returns the deny patterns compiled at load time.
func (p *CommandPolicy) CompiledDenyPatterns() []*regexp.Regexp {
	return p.denyPatterns
}

// compile validates the policy structure and prepares derived state.
func (p *CommandPolicy) compile(root string, defaultTimeout time.Duration) error {
	if p.Base == "" {
		return fmt.Errorf("policy with empty base")
	}
	p.WorkspaceRoot = root
	p.defaultTimeout = defaultTimeout

	p.denyPatterns = p.denyPatterns[:0]
	for _, pat := range p.DenyPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return fmt.Errorf("policy %q: deny pattern %q: %w", p.Base, pat, err)
		}
		p.denyPatterns = append(p.denyPatterns, re)
	}

	for name, sub := range p.Subcommands {
		if name == "" {
			return fmt.Errorf("policy %q: subcommand with empty name", p.Base)
		}
		if sub == nil {
			// Bare "name:" entries in YAML are legal: subcommand allowed
			// with no flags. Normalize to an empty policy.
			p.Subcommands[name] = &SubcommandPolicy{}
			continue
		}
		for script, sp := range sub.Scripts {
			if script == "" {
				return fmt.Errorf("policy %q: subcommand %q: script with empty name", p.Base, name)
			}
			if sp == nil {
				sub.Scripts[script] = &ScriptPolicy{}
			}
		}
	}
	return nil
}
