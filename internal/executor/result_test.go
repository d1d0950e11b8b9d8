package executor

import (
	"fmt"
	"strings"
	"testing"
)

func intPtr(n int) *int { return &n }

func TestFriendlyString(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{
			"blocked",
			Result{Status: StatusBlocked, Message: "flag \"-c\" is denied"},
			"Command blocked by security policy: flag \"-c\" is denied",
		},
		{
			"success with output",
			Result{Status: StatusSuccess, Stdout: "ok\n"},
			"ok\n",
		},
		{
			"success without output",
			Result{Status: StatusSuccess, Stdout: "  \n"},
			"Command completed with no output",
		},
		{
			"timeout",
			Result{Status: StatusTimeout, Message: "command timed out after 5s"},
			"command timed out after 5s",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.result.FriendlyString(); got != tc.want {
				t.Errorf("FriendlyString() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFriendlyStringErrorTail(t *testing.T) {
	var stderr strings.Builder
	for i := 1; i <= 20; i++ {
		fmt.Fprintf(&stderr, "line %d\n", i)
	}
	r := Result{Status: StatusError, ReturnCode: intPtr(2), Message: "command exited with code 2", Stderr: stderr.String()}

	got := r.FriendlyString()
	if !strings.Contains(got, "exit code 2") {
		t.Errorf("missing exit code: %q", got)
	}
	if strings.Contains(got, "line 10\n") || !strings.Contains(got, "line 11") || !strings.Contains(got, "line 20") {
		t.Errorf("expected only the last ten stderr lines, got %q", got)
	}
}

func byteCounter(s string) int { return len(s) }

func TestYAMLCappedUnderBudgetUnchanged(t *testing.T) {
	r := Result{Status: StatusSuccess, Command: "git status", Stdout: "clean\n"}
	full := marshalResult(&r)

	got := r.YAMLCapped(len(full)+10, byteCounter, CapConfig{})
	if got != full {
		t.Errorf("budget fits but serialization changed:\n%q\nvs\n%q", got, full)
	}
}

func TestYAMLCappedClipsAndNotes(t *testing.T) {
	var stdout strings.Builder
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&stdout, "stdout line %d\n", i)
	}
	r := Result{Status: StatusSuccess, Command: "npm run build", Stdout: stdout.String()}

	got := r.YAMLCapped(2000, byteCounter, CapConfig{})
	if len(got) > 2000 {
		t.Fatalf("capped output is %d bytes, budget 2000", len(got))
	}
	if !strings.Contains(got, "of 500 lines") {
		t.Errorf("missing clip note: %q", got)
	}
	if !strings.Contains(got, "stdout line 0") || !strings.Contains(got, "stdout line 499") {
		t.Error("head or tail window lost")
	}
}

func TestYAMLCappedNeverExceedsBudget(t *testing.T) {
	var stdout, stderr strings.Builder
	for i := 0; i < 5000; i++ {
		fmt.Fprintf(&stdout, "a very long stdout line number %d with padding\n", i)
		fmt.Fprintf(&stderr, "stderr noise %d\n", i)
	}
	r := Result{Status: StatusError, Command: "dotnet test", Stdout: stdout.String(), Stderr: stderr.String()}

	for _, budget := range []int{500, 1000, 4000, 20000} {
		if got := r.YAMLCapped(budget, byteCounter, CapConfig{}); len(got) > budget {
			t.Errorf("budget %d exceeded: %d bytes", budget, len(got))
		}
	}
}

func TestYAMLCappedFloorPlaceholder(t *testing.T) {
	r := Result{Status: StatusSuccess, Command: "x", Stdout: strings.Repeat(strings.Repeat("y", 200)+"\n", 100)}

	got := r.YAMLCapped(300, byteCounter, CapConfig{})
	if !strings.Contains(got, "omitted") {
		t.Errorf("expected placeholder at the window floor, got %q", got)
	}
	if strings.Contains(got, "yyyy") {
		t.Error("raw stream body leaked past the floor")
	}
}

func TestClipStreamWithinWindow(t *testing.T) {
	s := "one\ntwo\nthree\n"
	if got := clipStream(s, 5, 3); got != s {
		t.Errorf("short stream was modified: %q", got)
	}
}
