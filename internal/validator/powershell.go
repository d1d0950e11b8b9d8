package validator

import (
	"strings"

	"github.com/jkaninda/cmdguard/internal/policy"
)

// PowerShell validates PowerShell host invocations. Script and encoded-eval
// flags are denied outright, the safety flags are auto-injected, free-text
// arguments must start with an allowlisted cmdlet, and every free-text token
// is scanned against the policy's deny patterns (sub-expressions, pipes,
// download helpers and the like).
type PowerShell struct{}

var (
	_ Validator        = (*PowerShell)(nil)
	_ ArgumentAdjuster = (*PowerShell)(nil)
)

func (p *PowerShell) Validate(argv []string, pol *policy.CommandPolicy) Outcome {
	args := argv[1:]

	var freeText []string
	for _, token := range args {
		if isFlag(token) {
			fn := strings.ToLower(flagName(token))
			if inList(pol.DenyFlags, fn) {
				return Block("powershell flag %q is denied (script or encoded execution)", flagName(token))
			}
			if !inListFold(pol.RootFlags, flagName(token)) && !inListFold(pol.RequiredFlags, flagName(token)) {
				return Block("powershell flag %q is not allowed", flagName(token))
			}
			continue
		}
		freeText = append(freeText, token)
	}

	patterns := pol.CompiledDenyPatterns()
	for _, text := range freeText {
		for _, re := range patterns {
			if re.MatchString(text) {
				return Block("argument matches a denied pattern (%s)", re.String())
			}
		}
	}

	if len(freeText) > 0 {
		first := strings.Fields(freeText[0])
		if len(first) == 0 || !inListFold(pol.Cmdlets, first[0]) {
			name := ""
			if len(first) > 0 {
				name = first[0]
			}
			return Block("cmdlet %q is not on the allowlist", name)
		}
	}

	return Allow(nil)
}

// AdjustArguments injects the required safety flags immediately after the
// base token when absent. Repeated application is a no-op.
func (p *PowerShell) AdjustArguments(argv []string, pol *policy.CommandPolicy) []string {
	if len(argv) == 0 || len(pol.RequiredFlags) == 0 {
		return argv
	}

	var missing []string
	for _, required := range pol.RequiredFlags {
		found := false
		for _, token := range argv[1:] {
			if strings.EqualFold(flagName(token), required) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, required)
		}
	}
	if len(missing) == 0 {
		return argv
	}

	adjusted := make([]string, 0, len(argv)+len(missing))
	adjusted = append(adjusted, argv[0])
	adjusted = append(adjusted, missing...)
	adjusted = append(adjusted, argv[1:]...)
	return adjusted
}

func (p *PowerShell) AdjustEnvironment(env map[string]string, _ []string, pol *policy.CommandPolicy) map[string]string {
	merged := mergeEnv(env, pol.SafeEnv)
	merged["POWERSHELL_TELEMETRY_OPTOUT"] = "1"
	merged["POWERSHELL_UPDATECHECK"] = "Off"
	return merged
}
