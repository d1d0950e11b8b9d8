package policy

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTimeout applies when neither the catalog file nor a policy sets one.
const DefaultTimeout = 60 * time.Second

// Catalog is the immutable set of command policies the engine enforces.
// Build it once at startup with New, Load or Default; it is safe for
// concurrent readers and never mutated afterwards.
type Catalog struct {
	workspaceRoot  string
	defaultTimeout time.Duration
	commands       map[string]*CommandPolicy
}

// catalogFile is the on-disk YAML shape of a policy catalog.
type catalogFile struct {
	DefaultTimeoutSeconds int              `json:"default_timeout_seconds,omitempty" yaml:"default_timeout_seconds,omitempty"`
	Commands              []*CommandPolicy `json:"commands" yaml:"commands"`
}

// New builds a catalog from a list of policies, validating every policy.
// The workspace root is stamped onto each policy for path fencing.
func New(workspaceRoot string, defaultTimeout time.Duration, policies []*CommandPolicy) (*Catalog, error) {
	if workspaceRoot == "" {
		return nil, fmt.Errorf("catalog requires a workspace root")
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}

	commands := make(map[string]*CommandPolicy, len(policies))
	for _, p := range policies {
		if err := p.compile(workspaceRoot, defaultTimeout); err != nil {
			return nil, err
		}
		if _, dup := commands[p.Base]; dup {
			return nil, fmt.Errorf("duplicate policy for base %q", p.Base)
		}
		commands[p.Base] = p
	}

	return &Catalog{
		workspaceRoot:  workspaceRoot,
		defaultTimeout: defaultTimeout,
		commands:       commands,
	}, nil
}

// Load reads a catalog from a YAML file and validates it.
func Load(path, workspaceRoot string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing policy catalog %s: %w", path, err)
	}
	if len(file.Commands) == 0 {
		return nil, fmt.Errorf("policy catalog %s defines no commands", path)
	}

	timeout := time.Duration(file.DefaultTimeoutSeconds) * time.Second
	return New(workspaceRoot, timeout, file.Commands)
}

// Lookup returns the policy for a canonical base command.
func (c *Catalog) Lookup(base string) (*CommandPolicy, bool) {
	p, ok := c.commands[base]
	return p, ok
}

// Governs reports whether the catalog has a policy for the base. Used by
// base resolution to decide whether "interpreter -m module" collapses to
// the module's own identity.
func (c *Catalog) Governs(base string) bool {
	_, ok := c.commands[base]
	return ok
}

// Bases returns the governed base commands in sorted order.
func (c *Catalog) Bases() []string {
	bases := make([]string, 0, len(c.commands))
	for b := range c.commands {
		bases = append(bases, b)
	}
	sort.Strings(bases)
	return bases
}

// WorkspaceRoot returns the root all fenced paths must resolve under.
func (c *Catalog) WorkspaceRoot() string { return c.workspaceRoot }

// DefaultTimeout returns the catalog-wide execution timeout.
func (c *Catalog) DefaultTimeout() time.Duration { return c.defaultTimeout }
