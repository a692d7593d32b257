package logger_test

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/zerr"

	"go.trai.ch/dslhost/internal/adapters/logger"
)

// newTestLogger creates a logger writing to a buffer without colors.
func newTestLogger(t *testing.T) (*logger.Logger, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	buf := &bytes.Buffer{}
	lg, ok := logger.New().(*logger.Logger)
	require.True(t, ok)
	lg.SetOutput(buf)
	return lg, buf
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name       string
		log        func(*logger.Logger)
		goldenName string
	}{
		{
			name:       "info",
			log:        func(l *logger.Logger) { l.Info("compiling /s/a.dsl") },
			goldenName: "info_basic",
		},
		{
			name:       "warn",
			log:        func(l *logger.Logger) { l.Warn("discarding corrupt module /tmp/x.cache") },
			goldenName: "warn_basic",
		},
		{
			name: "debug when verbose",
			log: func(l *logger.Logger) {
				l.SetVerbose(true)
				l.Debug("loaded module abc")
			},
			goldenName: "debug_verbose",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg, buf := newTestLogger(t)
			tt.log(lg)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestLogger_DebugHiddenByDefault(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Debug("loaded module abc")
	assert.Empty(t, buf.String())

	lg.SetVerbose(true)
	lg.SetVerbose(false)
	lg.Debug("loaded module abc")
	assert.Empty(t, buf.String())
}

func TestLogger_ErrorChain(t *testing.T) {
	err := zerr.With(
		zerr.Wrap(
			zerr.With(zerr.Wrap(errors.New("no such file or directory"), "failed to read script"), "url", "/s/a.dsl"),
			"failed to read input",
		),
		"engine", "console",
	)

	lg, buf := newTestLogger(t)
	lg.Error(err)

	g := goldie.New(t)
	g.Assert(t, "error_chain", buf.Bytes())
}

func TestLogger_ErrorNil(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Error(nil)

	assert.Empty(t, buf.String())
}

func TestLogger_JSON(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.SetJSON(true)
	lg.Error(zerr.With(zerr.Wrap(errors.New("boom"), "failed to load module"), "key", "abc"))

	out := buf.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, "failed to load module")
	assert.Contains(t, out, "abc")
	assert.NotContains(t, out, "✗")

	buf.Reset()
	lg.SetJSON(false)
	lg.Error(errors.New("back to pretty"))
	assert.Equal(t, "✗ Error: back to pretty\n", buf.String())
}

func TestLogger_SetOutputNil(t *testing.T) {
	lg, ok := logger.New().(*logger.Logger)
	require.True(t, ok)
	require.NotPanics(t, func() { lg.SetOutput(nil) })
}

// lockedWriter serializes writes from concurrent log calls.
type lockedWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func TestLogger_ConcurrentAccess(t *testing.T) {
	lg, _ := newTestLogger(t)
	lg.SetOutput(&lockedWriter{})

	var wg sync.WaitGroup
	wg.Go(func() { lg.Info("info") })
	wg.Go(func() { lg.Warn("warn") })
	wg.Go(func() { lg.Debug("debug") })
	wg.Go(func() { lg.Error(errors.New("error")) })
	wg.Go(func() { lg.SetJSON(true) })
	wg.Go(func() { lg.SetVerbose(true) })
	wg.Go(func() { lg.SetOutput(&lockedWriter{}) })
	wg.Wait()
}
