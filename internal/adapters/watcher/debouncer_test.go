package watcher_test

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/dslhost/internal/adapters/watcher"
)

// recorder collects debouncer batches.
type recorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recorder) record(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, paths)
}

func (r *recorder) get() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.batches...)
}

func TestDebouncer_Coalesces(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  []string
	}{
		{
			name:  "single path",
			paths: []string{"/s/a.dsl"},
			want:  []string{"/s/a.dsl"},
		},
		{
			name:  "several paths sorted",
			paths: []string{"/s/c.dsl", "/s/a.dsl", "/s/b.dsl"},
			want:  []string{"/s/a.dsl", "/s/b.dsl", "/s/c.dsl"},
		},
		{
			name:  "repeated writes",
			paths: []string{"/s/a.dsl", "/s/a.dsl", "/s/a.dsl"},
			want:  []string{"/s/a.dsl"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synctest.Test(t, func(t *testing.T) {
				var r recorder
				d := watcher.NewDebouncer(100*time.Millisecond, r.record)

				for _, p := range tt.paths {
					d.Add(p)
				}
				time.Sleep(150 * time.Millisecond)
				synctest.Wait()

				assert.Equal(t, [][]string{tt.want}, r.get())
			})
		})
	}
}

func TestDebouncer_WindowRestarts(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var r recorder
		d := watcher.NewDebouncer(100*time.Millisecond, r.record)

		d.Add("/s/a.dsl")
		time.Sleep(60 * time.Millisecond)
		d.Add("/s/b.dsl")
		time.Sleep(60 * time.Millisecond)
		synctest.Wait()
		assert.Empty(t, r.get(), "the second add restarted the window")

		time.Sleep(60 * time.Millisecond)
		synctest.Wait()
		assert.Equal(t, [][]string{{"/s/a.dsl", "/s/b.dsl"}}, r.get())
	})
}

func TestDebouncer_SeparateBursts(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var r recorder
		d := watcher.NewDebouncer(50*time.Millisecond, r.record)

		d.Add("/s/a.dsl")
		time.Sleep(100 * time.Millisecond)
		d.Add("/s/b.dsl")
		time.Sleep(100 * time.Millisecond)
		synctest.Wait()

		assert.Equal(t, [][]string{{"/s/a.dsl"}, {"/s/b.dsl"}}, r.get())
	})
}

func TestDebouncer_Flush(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var r recorder
		d := watcher.NewDebouncer(100*time.Millisecond, r.record)

		d.Add("/s/b.dsl")
		d.Add("/s/a.dsl")
		d.Flush()
		require.Equal(t, [][]string{{"/s/a.dsl", "/s/b.dsl"}}, r.get(), "flush runs synchronously")

		time.Sleep(150 * time.Millisecond)
		synctest.Wait()
		assert.Len(t, r.get(), 1, "the stopped timer never fires")
	})
}

func TestDebouncer_FlushEmpty(t *testing.T) {
	var r recorder
	d := watcher.NewDebouncer(100*time.Millisecond, r.record)

	d.Flush()

	assert.Empty(t, r.get())
}

func TestDebouncer_FlushAfterFire(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var r recorder
		d := watcher.NewDebouncer(50*time.Millisecond, r.record)

		d.Add("/s/a.dsl")
		time.Sleep(100 * time.Millisecond)
		synctest.Wait()
		d.Flush()

		assert.Len(t, r.get(), 1)
	})
}

func TestDebouncer_Stop(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var r recorder
		d := watcher.NewDebouncer(50*time.Millisecond, r.record)

		d.Add("/s/a.dsl")
		d.Stop()
		d.Add("/s/b.dsl")
		time.Sleep(100 * time.Millisecond)
		synctest.Wait()
		d.Flush()

		assert.Empty(t, r.get())
	})
}

func TestDebouncer_NilCallback(t *testing.T) {
	synctest.Test(t, func(_ *testing.T) {
		d := watcher.NewDebouncer(50*time.Millisecond, nil)

		d.Add("/s/a.dsl")
		time.Sleep(100 * time.Millisecond)
		synctest.Wait()
		d.Add("/s/b.dsl")
		d.Flush()
	})
}
