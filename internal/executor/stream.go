package executor

import (
	"bytes"
	"regexp"
	"sync"
)

// ansiEscape matches CSI/OSC terminal control sequences so captured output
// stays clean even when a child believes it is writing to a TTY.
var ansiEscape = regexp.MustCompile(`\x1b(?:\[[0-9;?]*[a-zA-Z]|\][^\x07\x1b]*(?:\x07|\x1b\\))`)

// cappedBuffer collects a stream up to a byte ceiling. Excess bytes are
// discarded, not errored, so the child keeps running; the truncation is
// recorded for the result. Safe for the single writer goroutine the exec
// package drives per stream, with reads taken after Wait returns.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	remaining int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{remaining: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	chunk := p
	if len(chunk) > b.remaining {
		chunk = chunk[:b.remaining]
		b.truncated = true
	}
	n, err := b.buf.Write(chunk)
	b.remaining -= n
	if err != nil {
		return n, err
	}
	return len(p), nil
}

// Contents returns the captured stream with terminal escapes stripped.
func (b *cappedBuffer) Contents() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ansiEscape.ReplaceAllString(b.buf.String(), "")
}

func (b *cappedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
