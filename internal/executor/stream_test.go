package executor

import (
	"strings"
	"testing"
)

func TestCappedBufferTruncates(t *testing.T) {
	buf := newCappedBuffer(1 << 20)

	chunk := strings.Repeat("x", 64*1024)
	for i := 0; i < 160; i++ { // 10 MB total against a 1 MB cap
		if _, err := buf.Write([]byte(chunk)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	if !buf.Truncated() {
		t.Error("truncation flag not set")
	}
	if got := len(buf.Contents()); got > 1<<20 {
		t.Errorf("captured %d bytes, cap is %d", got, 1<<20)
	}
}

func TestCappedBufferUnderLimit(t *testing.T) {
	buf := newCappedBuffer(1024)
	if _, err := buf.Write([]byte("hello\n")); err != nil {
		t.Fatal(err)
	}
	if buf.Truncated() {
		t.Error("truncation flag set below the cap")
	}
	if buf.Contents() != "hello\n" {
		t.Errorf("contents = %q", buf.Contents())
	}
}

func TestCappedBufferExactBoundary(t *testing.T) {
	buf := newCappedBuffer(5)
	if _, err := buf.Write([]byte("12345")); err != nil {
		t.Fatal(err)
	}
	if buf.Truncated() {
		t.Error("exact fill must not flag truncation")
	}
	if _, err := buf.Write([]byte("6")); err != nil {
		t.Fatal(err)
	}
	if !buf.Truncated() {
		t.Error("overflow past an exact fill must flag truncation")
	}
	if buf.Contents() != "12345" {
		t.Errorf("contents = %q", buf.Contents())
	}
}

func TestCappedBufferStripsANSI(t *testing.T) {
	buf := newCappedBuffer(1024)
	if _, err := buf.Write([]byte("\x1b[32mPASS\x1b[0m all tests\n")); err != nil {
		t.Fatal(err)
	}
	if got := buf.Contents(); got != "PASS all tests\n" {
		t.Errorf("Contents() = %q", got)
	}
}
