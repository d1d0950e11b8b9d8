package executor

import (
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/jkaninda/cmdguard/internal/policy"
	"github.com/jkaninda/cmdguard/internal/validator"
)

const defaultUnixPath = "/usr/local/bin:/usr/bin:/bin"

// assembleEnvironment builds the child environment in layers: the host
// environment, then the policy safe-env, then caller overrides, then the
// validator's adjustments. The working directory rides along under
// validator.WorkDirKey so validators can compute project-local paths, and
// any validator.PathPrependKey entry is popped off and folded into PATH
// before the map is handed to the spawn step.
func assembleEnvironment(pol *policy.CommandPolicy, v validator.Validator, argv []string, workDir string, overrides map[string]string) map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, val, ok := strings.Cut(kv, "="); ok {
			env[k] = val
		}
	}
	for k, val := range pol.SafeEnv {
		env[k] = val
	}
	for k, val := range overrides {
		env[k] = val
	}
	env[validator.WorkDirKey] = workDir

	env = v.AdjustEnvironment(env, argv, pol)

	if env[pathKey()] == "" && runtime.GOOS != "windows" {
		env[pathKey()] = defaultUnixPath
	}
	if prepend := env[validator.PathPrependKey]; prepend != "" {
		delete(env, validator.PathPrependKey)
		key := pathKey()
		if current := env[key]; current != "" {
			env[key] = prepend + string(os.PathListSeparator) + current
		} else {
			env[key] = prepend
		}
	}
	return env
}

// pathKey returns the canonical PATH variable name. Windows environment
// variables are case-insensitive but exec wants one spelling.
func pathKey() string {
	if runtime.GOOS == "windows" {
		return "Path"
	}
	return "PATH"
}

// flattenEnv renders the map in the KEY=VALUE form exec expects, sorted for
// deterministic spawns.
func flattenEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
