package validator

import (
	"path/filepath"
	"strings"

	"github.com/jkaninda/cmdguard/internal/policy"
)

// Npx validates package-runner invocations. The invoked package must be on
// the policy's explicit allowlist, any -p/--package preinstall values must
// be allowlisted too, and positional arguments handed to the package are
// workspace-fenced.
type Npx struct{}

var _ Validator = (*Npx)(nil)

func (x *Npx) Validate(argv []string, pol *policy.CommandPolicy) Outcome {
	if len(pol.Packages) == 0 {
		return Block("npx has no allowed packages configured")
	}

	args := argv[1:]
	var invoked string
	var forwarded []string

	for i := 0; i < len(args); i++ {
		token := args[i]
		if invoked == "" && isFlag(token) {
			fn := flagName(token)
			if inList(pol.DenyFlags, fn) {
				return Block("npx flag %q is denied", fn)
			}
			if fn == "-p" || fn == "--package" {
				value := ""
				if fn != token {
					value = token[len(fn)+1:]
				} else if i+1 < len(args) {
					i++
					value = args[i]
				}
				if value == "" {
					return Block("npx %s requires a package value", fn)
				}
				if !packageAllowed(pol.Packages, value) {
					return Block("npx package %q is not allowlisted", value)
				}
				continue
			}
			if !inList(pol.RootFlags, fn) {
				return Block("npx flag %q is not allowed", fn)
			}
			continue
		}
		if invoked == "" {
			invoked = token
			continue
		}
		forwarded = append(forwarded, token)
	}

	if invoked == "" {
		return Block("npx requires a package to invoke")
	}
	if !packageAllowed(pol.Packages, invoked) {
		return Block("npx package %q is not allowlisted", invoked)
	}
	if offender, ok := fencePathLike(pol.WorkspaceRoot, forwarded); !ok {
		return Block("argument %q resolves outside the workspace", offender)
	}
	return Allow(nil)
}

func (x *Npx) AdjustEnvironment(env map[string]string, _ []string, pol *policy.CommandPolicy) map[string]string {
	merged := mergeEnv(env, pol.SafeEnv)
	if workDir := merged[WorkDirKey]; workDir != "" {
		merged[PathPrependKey] = filepath.Join(workDir, "node_modules", ".bin")
	}
	return merged
}

// packageAllowed compares against the allowlist ignoring a pinned version
// suffix ("eslint@9" matches "eslint"). Scoped names keep their scope.
func packageAllowed(allowed []string, name string) bool {
	base := name
	if i := strings.LastIndexByte(base, '@'); i > 0 {
		base = base[:i]
	}
	return inList(allowed, base) || inList(allowed, name)
}
