package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/jkaninda/cmdguard/internal/argv"
	"github.com/jkaninda/cmdguard/internal/pathsafety"
	"github.com/jkaninda/cmdguard/internal/policy"
	"github.com/jkaninda/cmdguard/internal/validator"
)

const (
	// DefaultMaxStreamBytes caps each of stdout/stderr to prevent OOM from
	// chatty commands.
	DefaultMaxStreamBytes = 1 << 20 // 1 MB

	// DefaultTimeout is the last-resort bound when neither validator,
	// caller nor policy supplies one.
	DefaultTimeout = 60 * time.Second

	// waitDelay bounds the drain after a kill so a grandchild holding the
	// pipes open cannot stall Wait forever.
	waitDelay = 3 * time.Second
)

// Request is one execution attempt: a raw command line plus optional
// overrides. No structured argv is accepted at this boundary.
type Request struct {
	Command    string
	WorkDir    string
	Env        map[string]string
	Timeout    time.Duration
	ShowWindow bool
}

// AuditRecord is the structured record emitted once per invocation, executed
// and blocked attempts alike.
type AuditRecord struct {
	ID              string
	Command         string
	Base            string
	WorkDir         string
	Status          Status
	Reason          string
	ReturnCode      *int
	Duration        time.Duration
	TruncatedStdout bool
	TruncatedStderr bool
}

// AuditSink receives one record per invocation. Implementations must not
// block the execution path for long.
type AuditSink interface {
	RecordExecution(ctx context.Context, rec AuditRecord)
}

// Options tunes an Engine.
type Options struct {
	DefaultTimeout time.Duration
	MaxStreamBytes int
	Audit          AuditSink
	Windows        bool // tokenization and resolution rules; defaults to the host platform
}

// Engine is the secure command executor: it takes a raw command line through
// parsing, policy lookup, validation, environment assembly and bounded
// subprocess execution. Every terminal state, including policy blocks and
// spawn failures, is a typed Result; Execute never returns an error.
type Engine struct {
	catalog    *policy.Catalog
	validators *validator.Registry
	logger     *slog.Logger
	opts       Options
	windows    bool
}

// New builds an engine over an immutable policy catalog and validator
// registry. Neither is mutated after this point.
func New(catalog *policy.Catalog, validators *validator.Registry, logger *slog.Logger, opts Options) *Engine {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	if opts.MaxStreamBytes <= 0 {
		opts.MaxStreamBytes = DefaultMaxStreamBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		catalog:    catalog,
		validators: validators,
		logger:     logger,
		opts:       opts,
		windows:    opts.Windows || runtime.GOOS == "windows",
	}
}

// Execute runs one command through the full pipeline. The context bounds the
// whole call in addition to the per-command timeout.
func (e *Engine) Execute(ctx context.Context, req Request) *Result {
	start := time.Now()
	result := e.execute(ctx, req)
	if result.DurationSeconds == 0 {
		result.DurationSeconds = durationSeconds(time.Since(start))
	}
	e.record(ctx, req, result)
	return result
}

func (e *Engine) execute(ctx context.Context, req Request) *Result {
	workDir, err := e.resolveWorkDir(req.WorkDir)
	if err != nil {
		return blocked(req.Command, req.WorkDir, "working directory: %v", err)
	}

	tokens, err := argv.Split(req.Command, e.windows)
	if err != nil {
		return blocked(req.Command, workDir, "cannot parse command: %v", err)
	}

	resolved, err := argv.ResolveBase(tokens, e.catalog.Governs)
	if err != nil {
		return blocked(req.Command, workDir, "cannot resolve command base: %v", err)
	}
	base := resolved[0]

	pol, ok := e.catalog.Lookup(base)
	if !ok {
		return blocked(req.Command, workDir, "no policy registered for command %q", base)
	}

	v, ok := e.validators.Lookup(pol.Validator())
	if !ok {
		return blocked(req.Command, workDir, "no validator registered for key %q", pol.Validator())
	}

	outcome := v.Validate(resolved, pol)
	if !outcome.Allowed {
		return blocked(req.Command, workDir, "%s", outcome.Reason)
	}

	if adjuster, ok := v.(validator.ArgumentAdjuster); ok {
		resolved = adjuster.AdjustArguments(resolved, pol)
	}

	overrides := make(map[string]string, len(req.Env)+len(outcome.Env))
	for k, val := range req.Env {
		overrides[k] = val
	}
	for k, val := range outcome.Env {
		overrides[k] = val
	}
	env := assembleEnvironment(pol, v, resolved, workDir, overrides)

	exe, err := resolveExecutable(resolved[0], env)
	if err != nil {
		return blocked(req.Command, workDir, "executable %q not found on the sanitized PATH", resolved[0])
	}

	timeout := e.determineTimeout(outcome, req, pol)
	return e.spawn(ctx, req, resolved, exe, env, workDir, timeout)
}

// determineTimeout applies the override precedence: validator outcome, then
// caller, then policy default, then the engine's own default.
func (e *Engine) determineTimeout(outcome validator.Outcome, req Request, pol *policy.CommandPolicy) time.Duration {
	switch {
	case outcome.Timeout > 0:
		return outcome.Timeout
	case req.Timeout > 0:
		return req.Timeout
	case pol.Timeout() > 0:
		return pol.Timeout()
	default:
		return e.opts.DefaultTimeout
	}
}

// resolveWorkDir confines the effective working directory to the workspace
// root; an unset request directory means the root itself.
func (e *Engine) resolveWorkDir(dir string) (string, error) {
	root := e.catalog.WorkspaceRoot()
	if dir == "" {
		return root, nil
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	if !pathsafety.IsWithinWorkspace(root, dir) {
		return "", errors.New("directory resolves outside the workspace root")
	}
	return dir, nil
}

// spawn runs the validated argv as a list, never shell-concatenated, with
// both streams drained concurrently into capped buffers and the whole
// drain-and-wait sequence bounded by the timeout.
func (e *Engine) spawn(ctx context.Context, req Request, argvList []string, exe string, env map[string]string, workDir string, timeout time.Duration) *Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, exe, argvList[1:]...)
	cmd.Dir = workDir
	cmd.Env = flattenEnv(env)
	cmd.WaitDelay = waitDelay
	configureSysProc(cmd, req.ShowWindow)

	stdout := newCappedBuffer(e.opts.MaxStreamBytes)
	stderr := newCappedBuffer(e.opts.MaxStreamBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	e.logger.Info("executing command",
		slog.String("base", argvList[0]),
		slog.String("dir", workDir),
		slog.Duration("timeout", timeout),
	)

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := &Result{
		Command:         req.Command,
		WorkDir:         workDir,
		Stdout:          stdout.Contents(),
		Stderr:          stderr.Contents(),
		DurationSeconds: durationSeconds(duration),
		TruncatedStdout: stdout.Truncated(),
		TruncatedStderr: stderr.Truncated(),
	}

	switch {
	case runErr == nil:
		code := 0
		result.Status = StatusSuccess
		result.ReturnCode = &code
	case ctx.Err() != nil:
		result.Status = StatusTimeout
		result.Message = "command timed out after " + timeout.String()
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			code := exitErr.ExitCode()
			result.Status = StatusError
			result.ReturnCode = &code
			result.Message = fmt.Sprintf("command exited with code %d", code)
		} else {
			result.Status = StatusError
			result.Message = runErr.Error()
		}
	}
	return result
}

// record emits the structured audit record, blocked attempts included, and
// mirrors it to the engine log.
func (e *Engine) record(ctx context.Context, req Request, result *Result) {
	base := ""
	if tokens, err := argv.Split(req.Command, e.windows); err == nil {
		if resolved, err := argv.ResolveBase(tokens, e.catalog.Governs); err == nil {
			base = resolved[0]
		}
	}

	level := slog.LevelInfo
	if result.Status == StatusBlocked {
		level = slog.LevelWarn
	}
	e.logger.Log(ctx, level, "command finished",
		slog.String("base", base),
		slog.String("status", string(result.Status)),
		slog.String("reason", result.Message),
		slog.Bool("truncated_stdout", result.TruncatedStdout),
		slog.Bool("truncated_stderr", result.TruncatedStderr),
	)

	if e.opts.Audit == nil {
		return
	}
	e.opts.Audit.RecordExecution(ctx, AuditRecord{
		ID:              uuid.NewString(),
		Command:         req.Command,
		Base:            base,
		WorkDir:         result.WorkDir,
		Status:          result.Status,
		Reason:          result.Message,
		ReturnCode:      result.ReturnCode,
		Duration:        time.Duration(result.DurationSeconds * float64(time.Second)),
		TruncatedStdout: result.TruncatedStdout,
		TruncatedStderr: result.TruncatedStderr,
	})
}
