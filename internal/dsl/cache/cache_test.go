package cache_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/core/ports/mocks"
	"go.trai.ch/dslhost/internal/dsl/cache"
	"go.trai.ch/dslhost/internal/dsl/engine"
	"go.trai.ch/dslhost/internal/host/runtime"
)

func TestTypeCache_GetSetRemove(t *testing.T) {
	t.Parallel()

	c := cache.NewTypeCache()
	cls := &runtime.Class{Name: "a"}

	_, ok := c.Get("/s/a.dsl")
	assert.False(t, ok)

	c.Set("/s/a.dsl", cls)
	got, ok := c.Get("/s/a.dsl")
	require.True(t, ok)
	assert.Same(t, cls, got)
	assert.Equal(t, 1, c.Len())

	assert.True(t, c.Remove("/s/a.dsl"))
	assert.False(t, c.Remove("/s/a.dsl"))
	assert.Equal(t, 0, c.Len())
}

func TestTypeCache_LoadPopulatesBatch(t *testing.T) {
	t.Parallel()

	c := cache.NewTypeCache()
	a, b := &runtime.Class{Name: "a"}, &runtime.Class{Name: "b"}

	got, err := c.Load("/s/a.dsl", func() (map[string]*runtime.Class, error) {
		return map[string]*runtime.Class{"/s/a.dsl": a, "/s/b.dsl": b}, nil
	})
	require.NoError(t, err)
	assert.Same(t, a, got)

	got, ok := c.Get("/s/b.dsl")
	require.True(t, ok)
	assert.Same(t, b, got)
}

func TestTypeCache_LoadErrors(t *testing.T) {
	t.Parallel()

	c := cache.NewTypeCache()
	boom := errors.New("boom")

	_, err := c.Load("/s/a.dsl", func() (map[string]*runtime.Class, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	_, err = c.Load("/s/a.dsl", func() (map[string]*runtime.Class, error) {
		return map[string]*runtime.Class{"/s/b.dsl": {Name: "b"}}, nil
	})
	require.ErrorIs(t, err, domain.ErrMissingGeneratedType)
	assert.Equal(t, 0, c.Len(), "a partial batch is never cached")
}

func TestTypeCache_LoadOnce(t *testing.T) {
	t.Parallel()

	c := cache.NewTypeCache()
	cls := &runtime.Class{Name: "a"}
	var loads atomic.Int32

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			got, err := c.Load("/s/a.dsl", func() (map[string]*runtime.Class, error) {
				loads.Add(1)
				return map[string]*runtime.Class{"/s/a.dsl": cls}, nil
			})
			assert.NoError(t, err)
			assert.Same(t, cls, got)
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
}

func TestTypeCache_RemoveDuringLoad(t *testing.T) {
	t.Parallel()

	c := cache.NewTypeCache()
	a, b := &runtime.Class{Name: "a"}, &runtime.Class{Name: "b"}

	got, err := c.Load("/s/a.dsl", func() (map[string]*runtime.Class, error) {
		c.Remove("/s/b.dsl")
		return map[string]*runtime.Class{"/s/a.dsl": a, "/s/b.dsl": b}, nil
	})
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, ok := c.Get("/s/b.dsl")
	assert.False(t, ok, "a url evicted while its batch compiled stays evicted")
	_, ok = c.Get("/s/a.dsl")
	assert.True(t, ok)

	got, err = c.Load("/s/a.dsl", func() (map[string]*runtime.Class, error) {
		c.Remove("/s/a.dsl")
		return map[string]*runtime.Class{"/s/a.dsl": {Name: "stale"}}, nil
	})
	require.NoError(t, err)
	assert.Same(t, a, got, "served from the cache without loading")

	c.Remove("/s/a.dsl")
	got, err = c.Load("/s/a.dsl", func() (map[string]*runtime.Class, error) {
		c.Remove("/s/a.dsl")
		return map[string]*runtime.Class{"/s/a.dsl": {Name: "stale"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "stale", got.Name)
	assert.Equal(t, 0, c.Len())

	got, err = c.Load("/s/a.dsl", func() (map[string]*runtime.Class, error) {
		return map[string]*runtime.Class{"/s/a.dsl": a}, nil
	})
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Equal(t, 1, c.Len(), "later loads cache again")
}

type Job struct {
	runtime.Script
}

type fixture struct {
	engine  *engine.Engine
	store   *mocks.MockModuleStore
	dir     string
	version atomic.Int32
}

// newFixture builds an engine over a single in-memory script and a module
// store backed by a temp directory. The batch key changes with version.
func newFixture(t *testing.T, text string) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{dir: t.TempDir()}

	storage := mocks.NewMockStorage(ctrl)
	storage.EXPECT().ChecksumForURLs(gomock.Any(), gomock.Any()).DoAndReturn(func(engineType string, urls []string) (string, error) {
		return engineType + "-" + strings.Repeat("v", int(f.version.Load())+1), nil
	}).AnyTimes()
	storage.EXPECT().CreateInput(gomock.Any()).DoAndReturn(func(url string) (domain.ScriptUnit, error) {
		return domain.ScriptUnit{URL: url, Text: text}, nil
	}).AnyTimes()
	storage.EXPECT().TypeNameFromURL(gomock.Any()).DoAndReturn(domain.TypeNameFromPath).AnyTimes()

	f.store = mocks.NewMockModuleStore(ctrl)
	f.store.EXPECT().Path(gomock.Any()).DoAndReturn(func(key string) string {
		return filepath.Join(f.dir, domain.ModuleFileName(key))
	}).AnyTimes()
	f.store.EXPECT().Exists(gomock.Any()).DoAndReturn(func(key string) bool {
		_, err := os.Stat(filepath.Join(f.dir, domain.ModuleFileName(key)))
		return err == nil
	}).AnyTimes()
	f.store.EXPECT().Read(gomock.Any()).DoAndReturn(func(key string) ([]byte, error) {
		return os.ReadFile(filepath.Join(f.dir, domain.ModuleFileName(key)))
	}).AnyTimes()

	lib := runtime.NewLibrary("jobs", "jobs").AddType(runtime.MustDescribe[Job](
		runtime.WithConstructor(func() *Job { return &Job{} }),
	))
	e, err := engine.New("jobs", engine.WithStorage(storage), engine.WithLibraries(lib))
	require.NoError(t, err)
	f.engine = e
	return f
}

type loadEvent struct {
	key       string
	fromCache bool
}

func record(c *cache.ModuleCache) func() []loadEvent {
	var (
		mu     sync.Mutex
		events []loadEvent
	)
	c.OnModuleLoaded(func(key string, mod *runtime.Module, fromCache bool) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, loadEvent{key, fromCache})
	})
	return func() []loadEvent {
		mu.Lock()
		defer mu.Unlock()
		return append([]loadEvent(nil), events...)
	}
}

func TestModuleCache_Idempotence(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "print 'job'\n")
	urls := []string{"/s/job.dsl"}

	c := cache.NewModuleCache(f.store, nil)
	events := record(c)

	first, err := c.Get(t.Context(), f.engine, urls)
	require.NoError(t, err)
	assert.NotNil(t, first.Module.Class("jobModule"))

	second, err := c.Get(t.Context(), f.engine, urls)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, []loadEvent{{"jobs-v", false}}, events())

	// A new cache reads the persisted module instead of compiling.
	restarted := cache.NewModuleCache(f.store, nil)
	restartedEvents := record(restarted)
	res, err := restarted.Get(t.Context(), f.engine, urls)
	require.NoError(t, err)
	assert.NotNil(t, res.Module.Class("jobModule"))
	assert.Equal(t, []loadEvent{{"jobs-v", true}}, restartedEvents())
}

func TestModuleCache_ChangedKeyRecompiles(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "print 'job'\n")
	c := cache.NewModuleCache(f.store, nil)
	events := record(c)

	_, err := c.Get(t.Context(), f.engine, []string{"/s/job.dsl"})
	require.NoError(t, err)

	f.version.Add(1)
	_, err = c.Get(t.Context(), f.engine, []string{"/s/job.dsl"})
	require.NoError(t, err)

	assert.Equal(t, []loadEvent{{"jobs-v", false}, {"jobs-vv", false}}, events())
}

func TestModuleCache_CorruptModuleIsRecompiled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "print 'job'\n")
	path := filepath.Join(f.dir, domain.ModuleFileName("jobs-v"))
	require.NoError(t, os.WriteFile(path, []byte("garbage"), domain.FilePerm))

	f.store.EXPECT().Remove("jobs-v").DoAndReturn(func(key string) error {
		return os.Remove(path)
	})
	logger := mocks.NewMockLogger(gomock.NewController(t))
	logger.EXPECT().Warn("discarding corrupt module " + path)
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()

	c := cache.NewModuleCache(f.store, logger)
	events := record(c)

	res, err := c.Get(t.Context(), f.engine, []string{"/s/job.dsl"})
	require.NoError(t, err)
	assert.NotNil(t, res.Module)
	assert.Equal(t, []loadEvent{{"jobs-v", false}}, events())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, res.Image, data)
}

func TestModuleCache_CompileErrorsAreNotCached(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "print(\n")
	c := cache.NewModuleCache(f.store, nil)
	events := record(c)

	_, err := c.Get(t.Context(), f.engine, []string{"/s/job.dsl"})
	require.ErrorIs(t, err, domain.ErrCompilationFailed)
	assert.Empty(t, events())

	_, err = os.Stat(filepath.Join(f.dir, domain.ModuleFileName("jobs-v")))
	assert.True(t, os.IsNotExist(err))
}

func TestModuleCache_ConcurrentLoadsShareOneCompile(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "print 'job'\n")
	c := cache.NewModuleCache(f.store, nil)
	events := record(c)

	results := make([]*engine.Result, 8)
	var wg sync.WaitGroup
	for i := range results {
		wg.Go(func() {
			res, err := c.Get(t.Context(), f.engine, []string{"/s/job.dsl"})
			assert.NoError(t, err)
			results[i] = res
		})
	}
	wg.Wait()

	for _, res := range results[1:] {
		assert.Same(t, results[0], res)
	}
	assert.Len(t, events(), 1)
}
