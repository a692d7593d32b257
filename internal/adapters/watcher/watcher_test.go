package watcher_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.trai.ch/dslhost/internal/adapters/watcher"
	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/core/ports"
)

// next returns the first event for path, failing after a timeout.
func next(t *testing.T, events <-chan ports.WatchEvent, path string) ports.WatchEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "watcher stopped before an event for %s", path)
			if ev.Path == path {
				return ev
			}
		case <-timeout:
			require.FailNow(t, "no event", path)
		}
	}
}

func start(t *testing.T) (*watcher.Watcher, <-chan ports.WatchEvent) {
	t.Helper()
	w, err := watcher.NewWatcher(nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(t.Context()))
	t.Cleanup(func() { _ = w.Stop() })

	out := make(chan ports.WatchEvent, 64)
	go func() {
		defer close(out)
		for ev := range w.Events() {
			out <- ev
		}
	}()
	return w, out
}

func TestWatcher_ReportsWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.dsl")
	require.NoError(t, os.WriteFile(path, []byte("print 1\n"), domain.FilePerm))

	w, events := start(t)
	require.NoError(t, w.Watch(dir))
	require.NoError(t, w.Watch(dir), "watching twice is a no-op")

	require.NoError(t, os.WriteFile(path, []byte("print 2\n"), domain.FilePerm))
	ev := next(t, events, path)
	require.Contains(t, []ports.WatchOp{ports.OpWrite, ports.OpCreate}, ev.Operation)
}

func TestWatcher_MissingDirectory(t *testing.T) {
	t.Parallel()

	w, err := watcher.NewWatcher(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	err = w.Watch(filepath.Join(t.TempDir(), "missing"))
	require.ErrorContains(t, err, domain.ErrWatchFailed.Error())
}
