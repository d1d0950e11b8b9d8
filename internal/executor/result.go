package executor

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Status classifies the terminal state of an execution attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
	StatusBlocked Status = "blocked"
)

// Result is the immutable outcome of a single execution attempt. Every
// terminal state of the engine, including policy blocks and spawn failures,
// produces one of these; nothing escapes the engine as an error.
type Result struct {
	Status          Status  `yaml:"status" json:"status"`
	ReturnCode      *int    `yaml:"return_code,omitempty" json:"return_code,omitempty"`
	Stdout          string  `yaml:"stdout,omitempty" json:"stdout,omitempty"`
	Stderr          string  `yaml:"stderr,omitempty" json:"stderr,omitempty"`
	Command         string  `yaml:"command" json:"command"`
	WorkDir         string  `yaml:"work_dir,omitempty" json:"work_dir,omitempty"`
	Message         string  `yaml:"message,omitempty" json:"message,omitempty"`
	DurationSeconds float64 `yaml:"duration_seconds,omitempty" json:"duration_seconds,omitempty"`
	TruncatedStdout bool    `yaml:"truncated_stdout,omitempty" json:"truncated_stdout,omitempty"`
	TruncatedStderr bool    `yaml:"truncated_stderr,omitempty" json:"truncated_stderr,omitempty"`
}

func blocked(command, workDir, format string, args ...any) *Result {
	return &Result{
		Status:  StatusBlocked,
		Command: command,
		WorkDir: workDir,
		Message: fmt.Sprintf(format, args...),
	}
}

// FriendlyString renders a compact, status-dependent summary suitable for
// returning to a conversational caller.
func (r *Result) FriendlyString() string {
	switch r.Status {
	case StatusBlocked:
		return fmt.Sprintf("Command blocked by security policy: %s", r.Message)
	case StatusTimeout:
		if r.Message != "" {
			return r.Message
		}
		return "Command timed out"
	case StatusSuccess:
		if strings.TrimSpace(r.Stdout) == "" {
			return "Command completed with no output"
		}
		return r.Stdout
	default:
		var b strings.Builder
		if r.ReturnCode != nil {
			fmt.Fprintf(&b, "Command failed with exit code %d", *r.ReturnCode)
		} else {
			b.WriteString("Command failed")
		}
		if r.Message != "" {
			b.WriteString(": ")
			b.WriteString(r.Message)
		}
		if tail := lastLines(r.Stderr, 10); tail != "" {
			b.WriteString("\n")
			b.WriteString(tail)
		}
		return b.String()
	}
}

// TokenCounter measures a string against the caller's token budget. The
// engine is agnostic to what a token means; callers inject whatever counting
// their context window uses.
type TokenCounter func(string) int

// CapConfig tunes the head/tail clipping windows used by YAMLCapped. Zero
// values take the defaults; the minimums are the floor below which the
// windows are never shrunk.
type CapConfig struct {
	HeadLines int
	TailLines int
	MinHead   int
	MinTail   int
}

const (
	defaultHeadLines = 50
	defaultTailLines = 30
	defaultMinHead   = 5
	defaultMinTail   = 3
)

func (c CapConfig) withDefaults() CapConfig {
	if c.HeadLines <= 0 {
		c.HeadLines = defaultHeadLines
	}
	if c.TailLines <= 0 {
		c.TailLines = defaultTailLines
	}
	if c.MinHead <= 0 {
		c.MinHead = defaultMinHead
	}
	if c.MinTail <= 0 {
		c.MinTail = defaultMinTail
	}
	return c
}

// YAMLCapped serializes the result as YAML within a token budget. The full
// serialization is returned untouched when it fits. Otherwise each stream is
// clipped to a head window plus a tail window (stderr gets half of stdout's
// windows) with a "showing X of Y lines" note, the windows halving on every
// re-measure that still exceeds the budget. Once the windows reach their
// floor the stream bodies are replaced with a short placeholder, which bounds
// the worst-case output size regardless of how much the child printed.
func (r *Result) YAMLCapped(maxTokens int, count TokenCounter, cfg CapConfig) string {
	if count == nil {
		count = func(s string) int { return len(s) }
	}
	cfg = cfg.withDefaults()

	full := marshalResult(r)
	if count(full) <= maxTokens {
		return full
	}

	head, tail := cfg.HeadLines, cfg.TailLines
	for {
		clipped := *r
		clipped.Stdout = clipStream(r.Stdout, head, tail)
		clipped.Stderr = clipStream(r.Stderr, halve(head, cfg.MinHead), halve(tail, cfg.MinTail))

		out := marshalResult(&clipped)
		if count(out) <= maxTokens {
			return out
		}
		if head <= cfg.MinHead && tail <= cfg.MinTail {
			break
		}
		head = halve(head, cfg.MinHead)
		tail = halve(tail, cfg.MinTail)
	}

	placeholder := *r
	if placeholder.Stdout != "" {
		placeholder.Stdout = "output omitted; exceeded token budget"
	}
	if placeholder.Stderr != "" {
		placeholder.Stderr = "output omitted; exceeded token budget"
	}
	return marshalResult(&placeholder)
}

func marshalResult(r *Result) string {
	out, err := yaml.Marshal(r)
	if err != nil {
		// Result fields are plain scalars; marshalling cannot fail in
		// practice, but never let a serialization error escape.
		return fmt.Sprintf("status: %s\nmessage: %q\n", r.Status, err.Error())
	}
	return string(out)
}

// clipStream keeps the first head and last tail lines of a stream, marking
// the elision with a line-count note. Streams already inside the window pass
// through unchanged.
func clipStream(s string, head, tail int) string {
	if s == "" {
		return s
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= head+tail {
		return s
	}
	kept := make([]string, 0, head+tail+1)
	kept = append(kept, lines[:head]...)
	kept = append(kept, fmt.Sprintf("... (showing %d of %d lines) ...", head+tail, len(lines)))
	kept = append(kept, lines[len(lines)-tail:]...)
	return strings.Join(kept, "\n")
}

func halve(n, floor int) int {
	n /= 2
	if n < floor {
		return floor
	}
	return n
}

func lastLines(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func durationSeconds(d time.Duration) float64 {
	return float64(d) / float64(time.Second)
}
