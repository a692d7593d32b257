// Package linear prints the runs of watched scripts as chronological,
// line-buffered output.
package linear

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/dslhost/internal/core/domain"
)

// Renderer writes script output to stdout with a per-script prefix and
// run status lines to stderr.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	output *termenv.Output

	mu   sync.Mutex
	runs map[string]*runState // url -> run in progress
}

type runState struct {
	name      string
	startTime time.Time
	buf       *bytes.Buffer
}

// NewRenderer creates a new Renderer. Nil writers select the process streams.
func NewRenderer(stdout, stderr io.Writer) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	return &Renderer{
		stdout: stdout,
		stderr: stderr,
		output: termenv.NewOutput(stderr, termenv.WithProfile(colorProfile())),
		runs:   make(map[string]*runState),
	}
}

// colorProfile returns the color profile based on environment.
func colorProfile() termenv.Profile {
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	return termenv.ANSI
}

// OnRecompilation prints which scripts a recompilation covered.
func (r *Renderer) OnRecompilation(ev domain.CompilationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(ev.URLs))
	for i, url := range ev.URLs {
		names[i] = filepath.Base(url)
	}
	_, _ = fmt.Fprintf(r.stderr, "Recompiled %d script(s): %s\n", len(names), strings.Join(names, ", "))
}

// OnRunStart begins a run of the script at url, shown as name.
func (r *Renderer) OnRunStart(url, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[url] = &runState{
		name:      name,
		startTime: startTime,
		buf:       new(bytes.Buffer),
	}

	prefix := r.output.String(fmt.Sprintf("[%s]", name)).Faint().String()
	_, _ = fmt.Fprintf(r.stderr, "%s Running...\n", prefix)
}

// Output returns the writer the script at url prints to. Writes for a
// script that is not running are dropped.
func (r *Renderer) Output(url string) io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		r.onRunLog(url, p)
		return len(p), nil
	})
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// onRunLog buffers data and prints complete lines with the script prefix.
func (r *Renderer) onRunLog(url string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[url]
	if !ok {
		return
	}

	run.buf.Write(data)
	for {
		line, err := run.buf.ReadBytes('\n')
		if err != nil {
			// Incomplete line, keep it for the next write.
			if len(line) > 0 {
				run.buf = bytes.NewBuffer(line)
			}
			break
		}
		r.printLineLocked(run.name, line)
	}
}

// OnRunComplete flushes the remaining output and prints how the run ended.
func (r *Renderer) OnRunComplete(url string, endTime time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[url]
	if !ok {
		return
	}
	r.flushLocked(run)

	duration := endTime.Sub(run.startTime)
	prefix := fmt.Sprintf("[%s]", run.name)
	if err != nil {
		symbol := r.output.String("✗").Foreground(termenv.ANSIRed).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Failed after %v: %v\n", prefix, symbol, duration, err)
	} else {
		symbol := r.output.String("✓").Foreground(termenv.ANSIGreen).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Completed in %v\n", prefix, symbol, duration)
	}

	delete(r.runs, url)
}

// Stop flushes the output of every run still in progress.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, run := range r.runs {
		r.flushLocked(run)
	}
	return nil
}

// flushLocked must be called with r.mu held.
func (r *Renderer) flushLocked(run *runState) {
	if run.buf.Len() > 0 {
		r.printLineLocked(run.name, run.buf.Bytes())
		run.buf.Reset()
	}
}

// printLineLocked must be called with r.mu held.
func (r *Renderer) printLineLocked(name string, line []byte) {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))

	if len(line) == 0 {
		return
	}

	_, _ = fmt.Fprintf(r.stdout, "[%s] %s\n", name, string(line))
}
