package validator

import (
	"reflect"
	"testing"

	"github.com/jkaninda/cmdguard/internal/policy"
)

func mustCatalog(t *testing.T, root string, policies ...*policy.CommandPolicy) *policy.Catalog {
	t.Helper()
	cat, err := policy.New(root, 0, policies)
	if err != nil {
		t.Fatalf("building catalog: %v", err)
	}
	return cat
}

func lookup(t *testing.T, cat *policy.Catalog, base string) *policy.CommandPolicy {
	t.Helper()
	p, ok := cat.Lookup(base)
	if !ok {
		t.Fatalf("no policy for %q", base)
	}
	return p
}

func TestDefaultRegistryKeys(t *testing.T) {
	reg := Default()
	for _, key := range []string{"basic", "git", "npm", "pnpm", "lerna", "npx", "node", "dotnet", "pytest", "osutil", "powershell"} {
		if _, ok := reg.Lookup(key); !ok {
			t.Errorf("default registry missing %q", key)
		}
	}
	if _, ok := reg.Lookup("nope"); ok {
		t.Error("unexpected validator for unregistered key")
	}
}

func TestRegistryHasNoImplicitFallback(t *testing.T) {
	reg := NewRegistry()
	reg.Register("git", &Git{})
	if _, ok := reg.Lookup("mystery"); ok {
		t.Error("registry must not fall back for unknown keys")
	}
}

func TestSplitDoubleDash(t *testing.T) {
	tests := []struct {
		name string
		args []string
		head []string
		tail []string
		seen bool
	}{
		{"no separator", []string{"a", "b"}, []string{"a", "b"}, nil, false},
		{"separator", []string{"a", "--", "b", "c"}, []string{"a"}, []string{"b", "c"}, true},
		{"leading separator", []string{"--", "x"}, nil, []string{"x"}, true},
		{"repeated separator forwarded", []string{"a", "--", "b", "--", "c"}, []string{"a"}, []string{"b", "--", "c"}, true},
		{"trailing separator", []string{"a", "--"}, []string{"a"}, nil, true},
		{"empty", nil, nil, nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			head, tail, seen := splitDoubleDash(tc.args)
			if !reflect.DeepEqual(head, tc.head) || !reflect.DeepEqual(tail, tc.tail) || seen != tc.seen {
				t.Errorf("splitDoubleDash(%v) = (%v, %v, %v), want (%v, %v, %v)",
					tc.args, head, tail, seen, tc.head, tc.tail, tc.seen)
			}
		})
	}
}

func TestBasicValidator(t *testing.T) {
	cat := mustCatalog(t, "/repo",
		&policy.CommandPolicy{Base: "echo", ValidatorKey: "basic", RootFlags: []string{"-n"}},
		&policy.CommandPolicy{
			Base:         "tool",
			ValidatorKey: "basic",
			Subcommands: map[string]*policy.SubcommandPolicy{
				"check": {Flags: []string{"--fast"}},
			},
		},
	)
	b := &Basic{}

	tests := []struct {
		name    string
		base    string
		argv    []string
		allowed bool
	}{
		{"flat allowed", "echo", []string{"echo", "-n", "hi"}, true},
		{"flat bad flag", "echo", []string{"echo", "-e", "hi"}, false},
		{"subcommand allowed", "tool", []string{"tool", "check", "--fast"}, true},
		{"subcommand missing", "tool", []string{"tool"}, false},
		{"subcommand unknown", "tool", []string{"tool", "deploy"}, false},
		{"subcommand bad flag", "tool", []string{"tool", "check", "--force"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := b.Validate(tc.argv, lookup(t, cat, tc.base))
			if out.Allowed != tc.allowed {
				t.Errorf("Validate(%v) allowed = %v (reason %q), want %v", tc.argv, out.Allowed, out.Reason, tc.allowed)
			}
		})
	}
}
