package linear_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.trai.ch/dslhost/internal/adapters/linear"
	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestRenderer_RunLifecycle(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	startTime := time.Now()
	r.OnRunStart("/s/main.dsl", "main.dsl", startTime)

	if !strings.Contains(stderr.String(), "[main.dsl]") || !strings.Contains(stderr.String(), "Running...") {
		t.Errorf("Expected run start message, got: %s", stderr.String())
	}

	out := r.Output("/s/main.dsl")
	_, _ = fmt.Fprintln(out, "first line")
	_, _ = fmt.Fprintln(out, "second line")

	want := "[main.dsl] first line\n[main.dsl] second line\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}

	r.OnRunComplete("/s/main.dsl", startTime.Add(100*time.Millisecond), nil)

	if !strings.Contains(stderr.String(), "Completed in 100ms") {
		t.Errorf("Expected completion message, got: %s", stderr.String())
	}

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestRenderer_PartialLines(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	startTime := time.Now()
	r.OnRunStart("a", "a.dsl", startTime)
	out := r.Output("a")

	_, _ = out.Write([]byte("partial"))
	if strings.Contains(stdout.String(), "partial") {
		t.Errorf("Partial line should not be printed immediately")
	}

	_, _ = out.Write([]byte(" line\n"))
	if !strings.Contains(stdout.String(), "[a.dsl] partial line") {
		t.Errorf("Expected complete line, got: %s", stdout.String())
	}

	_, _ = out.Write([]byte("unflushed"))
	r.OnRunComplete("a", startTime.Add(50*time.Millisecond), nil)

	if !strings.Contains(stdout.String(), "[a.dsl] unflushed") {
		t.Errorf("Expected flushed partial line on complete, got: %s", stdout.String())
	}
}

func TestRenderer_RunError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	startTime := time.Now()
	r.OnRunStart("a", "failing.dsl", startTime)
	r.OnRunComplete("a", startTime.Add(50*time.Millisecond), zerr.New("script failed"))

	stderrStr := stderr.String()
	if !strings.Contains(stderrStr, "Failed after 50ms") {
		t.Errorf("Expected failure message, got: %s", stderrStr)
	}
	if !strings.Contains(stderrStr, "script failed") {
		t.Errorf("Expected error message, got: %s", stderrStr)
	}
}

func TestRenderer_ConcurrentRuns(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	startTime := time.Now()
	r.OnRunStart("1", "one", startTime)
	r.OnRunStart("2", "two", startTime)

	one, two := r.Output("1"), r.Output("2")
	_, _ = one.Write([]byte("one line 1\n"))
	_, _ = two.Write([]byte("two line 1\n"))
	_, _ = one.Write([]byte("one line 2\n"))
	_, _ = two.Write([]byte("two line 2\n"))

	want := "[one] one line 1\n[two] two line 1\n[one] one line 2\n[two] two line 2\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
}

func TestRenderer_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	startTime := time.Now()
	r.OnRunStart("a", "a.dsl", startTime)
	r.OnRunComplete("a", startTime.Add(50*time.Millisecond), nil)

	if strings.Contains(stderr.String(), "\x1b[") {
		t.Errorf("Expected no ANSI codes with NO_COLOR, got: %s", stderr.String())
	}
}

func TestRenderer_OnRecompilation(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	r.OnRecompilation(domain.CompilationEvent{Engine: "console", URLs: []string{"/s/a.dsl", "/s/b.dsl"}})

	if got := stderr.String(); got != "Recompiled 2 script(s): a.dsl, b.dsl\n" {
		t.Errorf("unexpected recompilation message: %q", got)
	}
}

func TestRenderer_UnknownRun(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	_, _ = r.Output("unknown").Write([]byte("should be ignored\n"))
	r.OnRunComplete("unknown", time.Now(), nil)

	if stdout.Len() != 0 || stderr.Len() != 0 {
		t.Errorf("Expected no output for an unknown run, got: %q %q", stdout.String(), stderr.String())
	}
}

func TestRenderer_EmptyLines(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	r.OnRunStart("a", "a.dsl", time.Now())
	_, _ = r.Output("a").Write([]byte("\n\r\n"))

	if stdout.Len() != 0 {
		t.Errorf("Expected no output for empty lines, got: %s", stdout.String())
	}
}

func TestRenderer_StopFlushesBuffers(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	startTime := time.Now()
	r.OnRunStart("1", "one", startTime)
	r.OnRunStart("2", "two", startTime)
	_, _ = r.Output("1").Write([]byte("partial1"))
	_, _ = r.Output("2").Write([]byte("partial2"))

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if !strings.Contains(stdout.String(), "partial1") || !strings.Contains(stdout.String(), "partial2") {
		t.Errorf("Expected flushed partial lines, got: %s", stdout.String())
	}
}

func TestRenderer_NilWriters(_ *testing.T) {
	r := linear.NewRenderer(nil, nil)

	startTime := time.Now()
	r.OnRunStart("a", "a.dsl", startTime)
	_, _ = r.Output("a").Write([]byte("test\n"))
	r.OnRunComplete("a", startTime.Add(time.Second), nil)
}
