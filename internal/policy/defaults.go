package policy

// Default returns the built-in vetted catalog: the command set an agent tool
// layer needs for everyday repository work, locked down to read-mostly
// operations. Deployments extend or replace it with a YAML catalog.
func Default(workspaceRoot string) (*Catalog, error) {
	return New(workspaceRoot, DefaultTimeout, []*CommandPolicy{
		gitPolicy(),
		npmPolicy(),
		pnpmPolicy(),
		lernaPolicy(),
		npxPolicy(),
		nodePolicy(),
		dotnetPolicy(),
		pytestPolicy(),
		powershellPolicy("powershell"),
		powershellPolicy("pwsh"),
		osUtilPolicy("ls", "-l", "-la", "-lh", "-a", "--all", "-h", "-R", "-1", "-t", "-r"),
		osUtilPolicy("cat", "-n", "--number", "-b", "-s"),
		osUtilPolicy("head", "-n", "-c", "-q"),
		osUtilPolicy("tail", "-n", "-c", "-q"),
		osUtilPolicy("wc", "-l", "-w", "-c", "-m"),
		osUtilPolicy("pwd"),
		osUtilPolicy("whoami"),
		osUtilPolicy("uname", "-a", "-s", "-r", "-m"),
		osUtilPolicy("which", "-a"),
		findPolicy(),
		grepPolicy(),
	})
}

func gitPolicy() *CommandPolicy {
	return &CommandPolicy{
		Base: "git",
		// Config-injection flags are denied before any allowlist runs:
		// each of these lets a "read-only" invocation execute arbitrary
		// code or read arbitrary trees.
		DenyFlags: []string{
			"-c", "-C", "--exec-path", "--git-dir", "--work-tree",
			"--namespace", "--config-env", "--super-prefix",
		},
		ReadOnlySubcommands: []string{
			"status", "log", "diff", "show", "branch", "rev-parse", "remote", "blame",
		},
		SafeEnv: map[string]string{
			"GIT_TERMINAL_PROMPT": "0",
			"GIT_PAGER":           "cat",
			"PAGER":               "cat",
		},
		Subcommands: map[string]*SubcommandPolicy{
			"status": {Flags: []string{
				"--porcelain", "-s", "--short", "-b", "--branch", "-z",
				"-u", "--untracked-files", "--no-renames",
			}},
			"log": {Flags: []string{
				"--oneline", "-n", "--max-count", "--graph", "--decorate",
				"--pretty", "--format", "--stat", "--follow", "-p", "--patch",
				"--all", "--no-color", "--since", "--until", "--author",
			}, ValueFlags: []string{"-n", "--max-count", "--since", "--until", "--author"}},
			"diff": {Flags: []string{
				"--stat", "--cached", "--staged", "--name-only", "--name-status",
				"-U", "--unified", "--no-color", "--numstat",
			}},
			"show": {Flags: []string{
				"--stat", "--name-only", "--oneline", "--no-patch", "-s",
				"--pretty", "--format", "--no-color",
			}},
			"branch": {Flags: []string{
				"-a", "--all", "-r", "--remotes", "--show-current",
				"-v", "--verbose", "--list", "--merged", "--no-merged",
			}},
			"rev-parse": {Flags: []string{
				"--abbrev-ref", "--short", "--show-toplevel", "--git-dir",
				"--is-inside-work-tree", "--verify",
			}},
			"remote": {Flags: []string{"-v", "--verbose"}},
			"blame":  {Flags: []string{"-L", "-l", "-t", "--porcelain"}, ValueFlags: []string{"-L"}, FencePaths: true},
		},
	}
}

func npmPolicy() *CommandPolicy {
	return &CommandPolicy{
		Base:      "npm",
		RootFlags: []string{"--version", "-v", "--help"},
		SafeEnv:   nodeSafeEnv(),
		Subcommands: map[string]*SubcommandPolicy{
			"run": {
				Scripts: map[string]*ScriptPolicy{
					"build": {FencePaths: true},
					"test":  {FencePaths: true},
					"lint":  {FencePaths: true},
				},
			},
			"install": {RequiredFlags: []string{"--ignore-scripts", "--no-audit", "--no-fund"}},
			"ci":      {RequiredFlags: []string{"--ignore-scripts", "--no-audit", "--no-fund"}},
			"config":  {Actions: []string{"get", "list", "ls"}},
			"ls":      {Flags: []string{"--depth", "--json", "--all"}, ValueFlags: []string{"--depth"}},
			"outdated": {Flags: []string{"--json"}},
			"ping":     {},
		},
	}
}

func pnpmPolicy() *CommandPolicy {
	return &CommandPolicy{
		Base:      "pnpm",
		RootFlags: []string{"--version", "-v", "--help"},
		SafeEnv:   nodeSafeEnv(),
		Subcommands: map[string]*SubcommandPolicy{
			"run": {
				Scripts: map[string]*ScriptPolicy{
					"build": {FencePaths: true},
					"test":  {FencePaths: true},
					"lint":  {FencePaths: true},
				},
			},
			"install": {RequiredFlags: []string{"--ignore-scripts"}},
			"config":  {Actions: []string{"get", "list", "ls"}},
			"ls":      {Flags: []string{"--depth", "--json"}, ValueFlags: []string{"--depth"}},
		},
	}
}

func lernaPolicy() *CommandPolicy {
	return &CommandPolicy{
		Base:      "lerna",
		RootFlags: []string{"--version", "-v", "--help"},
		SafeEnv:      nodeSafeEnv(),
		Subcommands: map[string]*SubcommandPolicy{
			"run": {
				Flags: []string{"--stream", "--parallel", "--scope", "--concurrency"},
				ValueFlags: []string{"--scope", "--concurrency"},
				Scripts: map[string]*ScriptPolicy{
					"build": {FencePaths: true},
					"test":  {FencePaths: true},
					"lint":  {FencePaths: true},
				},
			},
			"list":    {Flags: []string{"--json", "--all", "--long"}},
			"changed": {Flags: []string{"--json"}},
		},
	}
}

func npxPolicy() *CommandPolicy {
	return &CommandPolicy{
		Base:      "npx",
		RootFlags: []string{"--no-install", "--quiet", "-q"},
		Packages: []string{
			"tsc", "eslint", "prettier", "jest", "vitest", "mocha", "tsx",
		},
		SafeEnv: nodeSafeEnv(),
	}
}

func nodePolicy() *CommandPolicy {
	return &CommandPolicy{
		Base:      "node",
		RootFlags: []string{"--version", "-v", "--help", "-h"},
		SafeEnv:   nodeSafeEnv(),
	}
}

func dotnetPolicy() *CommandPolicy {
	return &CommandPolicy{
		Base: "dotnet",
		SafeEnv: map[string]string{
			"DOTNET_CLI_TELEMETRY_OPTOUT": "1",
			"DOTNET_NOLOGO":               "1",
		},
		Subcommands: map[string]*SubcommandPolicy{
			"test": {
				FencePaths:    true,
				RequiredFlags: []string{"--nologo"},
				Flags: []string{
					"--no-build", "--no-restore", "--filter", "--logger",
					"--configuration", "-c", "--framework", "-f",
					"--verbosity", "-v", "--settings", "-s",
					"--results-directory", "--collect", "--nologo", "--blame",
				},
				ValueFlags: []string{
					"--filter", "--logger", "--configuration", "-c",
					"--framework", "-f", "--verbosity", "-v",
					"--settings", "-s", "--results-directory", "--collect",
				},
				PathFlags: []string{"--settings", "-s", "--results-directory"},
			},
			"build": {
				Flags: []string{
					"--no-restore", "--configuration", "-c", "--framework", "-f",
					"--verbosity", "-v", "--nologo",
				},
				ValueFlags: []string{"--configuration", "-c", "--framework", "-f", "--verbosity", "-v"},
				FencePaths: true,
			},
			"restore": {
				Flags:      []string{"--verbosity", "-v", "--nologo"},
				ValueFlags: []string{"--verbosity", "-v"},
				FencePaths: true,
			},
			// Flag-style pseudo-subcommands: informational, no arguments.
			"--info":          {},
			"--version":       {},
			"--list-sdks":     {},
			"--list-runtimes": {},
		},
	}
}

func pytestPolicy() *CommandPolicy {
	return &CommandPolicy{
		Base: "pytest",
		RootFlags: []string{
			"-q", "--quiet", "-v", "--verbose", "-x", "--exitfirst",
			"-k", "-m", "--collect-only", "--co", "--maxfail", "--tb",
			"--no-header", "--disable-warnings", "--lf", "--last-failed",
			"--ff", "--failed-first", "-p", "--color",
		},
		ValueFlags:   []string{"-k", "-m", "--maxfail", "--tb", "-p", "--color"},
		MaxArgLength: 2048,
		MaxSelectors: 24,
		SafeEnv: map[string]string{
			"PYTHONDONTWRITEBYTECODE": "1",
			"PY_COLORS":               "0",
		},
	}
}

func powershellPolicy(base string) *CommandPolicy {
	return &CommandPolicy{
		Base:         base,
		ValidatorKey: "powershell",
		DenyFlags: []string{
			"-encodedcommand", "-e", "-ec", "-enc", "-file", "-windowstyle",
		},
		RequiredFlags: []string{"-NoProfile", "-NonInteractive"},
		RootFlags:     []string{"-NoLogo", "-Command", "-c"},
		Cmdlets: []string{
			"Get-ChildItem", "Get-Content", "Get-Location", "Get-Item",
			"Get-Date", "Test-Path", "Select-String", "Resolve-Path",
		},
		DenyPatterns: []string{
			`(?i)invoke-expression`,
			`(?i)\biex\b`,
			`(?i)invoke-webrequest`,
			`(?i)invoke-restmethod`,
			`(?i)downloadstring`,
			`(?i)start-process`,
			`(?i)set-executionpolicy`,
			`(?i)add-type`,
			"[;&|]",
			`\$\(`,
			"`",
		},
	}
}

// osUtilPolicy builds a policy for a simple read-only utility: just a flag
// allowlist interpreted by the osutil validator.
func osUtilPolicy(base string, flags ...string) *CommandPolicy {
	return &CommandPolicy{
		Base:         base,
		ValidatorKey: "osutil",
		RootFlags:    flags,
	}
}

func findPolicy() *CommandPolicy {
	p := osUtilPolicy("find",
		"-name", "-iname", "-type", "-maxdepth", "-mindepth", "-size",
		"-mtime", "-newer", "-path", "-not", "-print", "-print0",
	)
	// Action primaries that execute or mutate. Checked as whole tokens
	// before the flag allowlist.
	p.DenyTokens = []string{
		"-exec", "-execdir", "-ok", "-okdir", "-delete",
		"-fprint", "-fprint0", "-fprintf", "-fls",
	}
	return p
}

func grepPolicy() *CommandPolicy {
	return osUtilPolicy("grep",
		"-r", "-R", "-n", "-i", "-l", "-L", "-c", "-v", "-w", "-x",
		"-E", "-F", "-e", "--include", "--exclude", "--exclude-dir", "-m",
	)
}

func nodeSafeEnv() map[string]string {
	return map[string]string{
		"NO_UPDATE_NOTIFIER":  "1",
		"NPM_CONFIG_FUND":     "false",
		"NPM_CONFIG_AUDIT":    "false",
		"NPM_CONFIG_LOGLEVEL": "error",
	}
}
