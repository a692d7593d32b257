package factory_test

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"

	"go.trai.ch/dslhost/internal/adapters/modstore"
	"go.trai.ch/dslhost/internal/adapters/storage"
	"go.trai.ch/dslhost/internal/adapters/watcher"
	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/core/ports"
	"go.trai.ch/dslhost/internal/core/ports/mocks"
	"go.trai.ch/dslhost/internal/dsl/cache"
	"go.trai.ch/dslhost/internal/dsl/engine"
	"go.trai.ch/dslhost/internal/dsl/factory"
	"go.trai.ch/dslhost/internal/dsl/synth"
	"go.trai.ch/dslhost/internal/host/compiler"
	"go.trai.ch/dslhost/internal/host/runtime"
)

var now = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

// Scheduler is the base type of scheduling scripts. Prepare runs the
// script body, which configures the task through the methods below.
type Scheduler struct {
	runtime.Script
	Threshold int

	Name           string
	Repetition     time.Duration
	StartsAt       time.Time
	ActionExecuted bool
	Log            []string

	condition bool
	action    func() error
}

func (s *Scheduler) Prepare() error {
	_, err := s.Call("Prepare")
	return err
}

func (s *Scheduler) Task(name string, body func() error) error {
	s.Name = name
	return body()
}

func (s *Scheduler) Every(d time.Duration) { s.Repetition = d }

func (s *Scheduler) Starting(t time.Time) { s.StartsAt = t }

func (s *Scheduler) When(cond bool) { s.condition = cond }

func (s *Scheduler) Then(action func() error) { s.action = action }

func (s *Scheduler) Record(msg string) { s.Log = append(s.Log, msg) }

// Run executes the action when the condition held.
func (s *Scheduler) Run() error {
	if !s.condition || s.action == nil {
		return nil
	}
	if err := s.action(); err != nil {
		return err
	}
	s.ActionExecuted = true
	return nil
}

type Unregistered struct {
	runtime.Script
}

func scheduling() *runtime.Library {
	return runtime.NewLibrary("scheduling", "scheduling").
		AddType(runtime.MustDescribe[Scheduler](
			runtime.WithConstructor(func(threshold int) *Scheduler { return &Scheduler{Threshold: threshold} }, "threshold"),
			runtime.WithConstructor(func() *Scheduler { return &Scheduler{} }),
			runtime.WithHooks("Prepare"),
		)).
		AddExtension("Minutes", func(n int) time.Duration { return time.Duration(n) * time.Minute }).
		AddValue("now", now)
}

const task = `task "x":
    every 3.minutes
    starting now
    when threshold > 2
    then:
        record "fired"
`

func schedulingEngine(t *testing.T, s ports.Storage) *engine.Engine {
	t.Helper()
	lib := scheduling()
	step, err := synth.ImplicitBaseClass(lib, "Scheduler", "Prepare", synth.WithNamespaces("scheduling"))
	require.NoError(t, err)

	e, err := engine.New("scheduling",
		engine.WithStorage(s),
		engine.WithLibraries(lib),
		engine.WithCustomizer(func(p *compiler.Parameters, _ []string) error {
			return p.Pipeline.InsertAfter(compiler.StepParse, step)
		}),
	)
	require.NoError(t, err)
	return e
}

func write(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, text := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), domain.FilePerm))
	}
}

type events struct {
	mu  sync.Mutex
	all []domain.CompilationEvent
}

func (e *events) add(ev domain.CompilationEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, ev)
}

func (e *events) get() []domain.CompilationEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.CompilationEvent(nil), e.all...)
}

func newFactory(t *testing.T, s ports.Storage, opts ...factory.Option) (*factory.Factory, *events) {
	t.Helper()
	f := factory.New(opts...)
	require.NoError(t, factory.Register[Scheduler](f, schedulingEngine(t, s)))
	t.Cleanup(func() { _ = f.Close() })

	ev := &events{}
	f.OnCompilation(ev.add)
	return f, ev
}

func TestCreate_Scheduling(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, map[string]string{"job.dsl": task})
	f, _ := newFactory(t, storage.New(nil), factory.WithBaseDirectory(dir))

	tests := []struct {
		name      string
		threshold int
		executed  bool
	}{
		{name: "condition holds", threshold: 5, executed: true},
		{name: "condition fails", threshold: 1, executed: false},
	}
	for _, tt := range tests {
		s, err := factory.Create[Scheduler](t.Context(), f, "job.dsl", tt.threshold)
		require.NoError(t, err, tt.name)

		require.NoError(t, s.Prepare(), tt.name)
		require.NoError(t, s.Run(), tt.name)

		assert.Equal(t, "x", s.Name, tt.name)
		assert.Equal(t, 3*time.Minute, s.Repetition, tt.name)
		assert.Equal(t, now, s.StartsAt, tt.name)
		assert.Equal(t, tt.executed, s.ActionExecuted, tt.name)
		if tt.executed {
			assert.Equal(t, []string{"fired"}, s.Log, tt.name)
		} else {
			assert.Empty(t, s.Log, tt.name)
		}
	}
}

func TestCreate_RegistersWholeBatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, map[string]string{
		"a.dsl":     `record "a"`,
		"b.dsl":     `record "b"`,
		"notes.txt": "ignored",
	})
	f, ev := newFactory(t, storage.New(nil), factory.WithBaseDirectory(dir))

	a, err := factory.Create[Scheduler](t.Context(), f, "a.dsl")
	require.NoError(t, err)
	b, err := factory.Create[Scheduler](t.Context(), f, filepath.Join(dir, "b.dsl"))
	require.NoError(t, err)

	require.NoError(t, a.Prepare())
	require.NoError(t, b.Prepare())
	assert.Equal(t, []string{"a"}, a.Log)
	assert.Equal(t, []string{"b"}, b.Log)

	got := ev.get()
	require.Len(t, got, 1, "b was compiled with a")
	assert.Equal(t, domain.CompilationEvent{
		Engine: "scheduling",
		URLs:   []string{filepath.Join(dir, "a.dsl"), filepath.Join(dir, "b.dsl")},
	}, got[0])
}

func TestCreate_ScriptOutsidePattern(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, map[string]string{"a.dsl": `record "a"`, "extra.task": `record "extra"`})
	f, ev := newFactory(t, storage.New(nil), factory.WithBaseDirectory(dir))

	s, err := factory.Create[Scheduler](t.Context(), f, "extra.task")
	require.NoError(t, err)
	require.NoError(t, s.Prepare())
	assert.Equal(t, []string{"extra"}, s.Log)

	got := ev.get()
	require.Len(t, got, 1)
	assert.Equal(t, []string{filepath.Join(dir, "a.dsl"), filepath.Join(dir, "extra.task")}, got[0].URLs)
}

func TestCreate_BatchFallback(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, map[string]string{"bad.dsl": "record(\n", "good.dsl": `record "ok"`})

	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Info(gomock.Any()).AnyTimes()
	logger.EXPECT().Warn("batch compilation failed, compiling " + filepath.Join(dir, "good.dsl") + " alone")

	f, ev := newFactory(t, storage.New(nil), factory.WithBaseDirectory(dir), factory.WithLogger(logger))

	s, err := factory.Create[Scheduler](t.Context(), f, "good.dsl")
	require.NoError(t, err)
	require.NoError(t, s.Prepare())
	assert.Equal(t, []string{"ok"}, s.Log)

	got := ev.get()
	require.Len(t, got, 1)
	assert.Equal(t, []string{filepath.Join(dir, "good.dsl")}, got[0].URLs)
}

func TestCreate_CompilationError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, map[string]string{"bad.dsl": "record(\n"})
	f, ev := newFactory(t, storage.New(nil), factory.WithBaseDirectory(dir))

	_, err := factory.Create[Scheduler](t.Context(), f, "bad.dsl")
	require.ErrorIs(t, err, domain.ErrCompilationFailed)
	assert.Empty(t, ev.get())
}

func TestTryCreate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, map[string]string{"a.dsl": `record "a"`, "bad.dsl": "record(\n"})
	f, _ := newFactory(t, storage.New(nil), factory.WithBaseDirectory(dir))

	s, err := factory.TryCreate[Scheduler](t.Context(), f, "missing.dsl")
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = factory.TryCreate[Scheduler](t.Context(), f, filepath.Join(dir, "nowhere", "x.dsl"))
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = factory.TryCreate[Scheduler](t.Context(), f, "bad.dsl")
	require.ErrorIs(t, err, domain.ErrCompilationFailed)

	s, err = factory.TryCreate[Scheduler](t.Context(), f, "a.dsl")
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestCreateAll(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, map[string]string{"a.dsl": `record "a"`, "b.dsl": `record "b"`})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), domain.DirPerm))
	write(t, filepath.Join(dir, "sub"), map[string]string{"c.dsl": `record "c"`})

	f, _ := newFactory(t, storage.New(nil), factory.WithBaseDirectory(dir))

	all, err := factory.CreateAll[Scheduler](t.Context(), f, ".")
	require.NoError(t, err)
	require.Len(t, all, 2)

	var logs []string
	for _, s := range all {
		require.NoError(t, s.Prepare())
		logs = append(logs, s.Log...)
	}
	assert.Equal(t, []string{"a", "b"}, logs)

	nested, err := factory.CreateAll[Scheduler](t.Context(), f, "sub")
	require.NoError(t, err)
	require.Len(t, nested, 1)
	require.NoError(t, nested[0].Prepare())
	assert.Equal(t, []string{"c"}, nested[0].Log)
}

func TestCreate_ConstructorArguments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, map[string]string{"a.dsl": `record str(threshold)`})
	f, _ := newFactory(t, storage.New(nil), factory.WithBaseDirectory(dir))

	s, err := factory.Create[Scheduler](t.Context(), f, "a.dsl", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, s.Threshold)
	assert.Same(t, s, s.Self().Base().(*Scheduler))

	require.NoError(t, s.Prepare())
	assert.Equal(t, []string{"7"}, s.Log)

	s, err = factory.Create[Scheduler](t.Context(), f, "a.dsl")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Threshold)

	_, err = factory.Create[Scheduler](t.Context(), f, "a.dsl", 1, 2)
	require.ErrorIs(t, err, runtime.ErrNoConstructor)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	f := factory.New()
	e := schedulingEngine(t, storage.New(nil))

	assert.False(t, factory.IsRegistered[Scheduler](f))
	require.NoError(t, factory.Register[Scheduler](f, e))
	assert.True(t, factory.IsRegistered[Scheduler](f))

	err := factory.Register[Scheduler](f, e)
	require.ErrorIs(t, err, domain.ErrEngineAlreadyRegistered)

	err = factory.Register[Unregistered](f, nil)
	require.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = factory.Create[Unregistered](t.Context(), f, "a.dsl")
	require.ErrorIs(t, err, domain.ErrEngineNotRegistered)

	_, err = factory.CreateAll[Unregistered](t.Context(), f, ".")
	require.ErrorIs(t, err, domain.ErrEngineNotRegistered)
}

func TestCreate_Concurrent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, map[string]string{"a.dsl": `record "a"`, "b.dsl": `record "b"`})
	f, ev := newFactory(t, storage.New(nil), factory.WithBaseDirectory(dir))

	var g errgroup.Group
	for i := range 16 {
		url := "a.dsl"
		if i%2 == 1 {
			url = "b.dsl"
		}
		g.Go(func() error {
			s, err := factory.Create[Scheduler](t.Context(), f, url)
			if err != nil {
				return err
			}
			return s.Prepare()
		})
	}
	require.NoError(t, g.Wait())

	assert.LessOrEqual(t, len(ev.get()), 2)
	assert.NotEmpty(t, ev.get())
}

func TestCreate_ModuleCache(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, map[string]string{"a.dsl": `record "a"`})
	store := modstore.New(filepath.Join(dir, domain.HostDirName))

	type load struct {
		key       string
		fromCache bool
	}
	create := func() []load {
		var loads []load
		modules := cache.NewModuleCache(store, nil)
		modules.OnModuleLoaded(func(key string, _ *runtime.Module, fromCache bool) {
			loads = append(loads, load{key, fromCache})
		})

		f, _ := newFactory(t, storage.New(nil), factory.WithBaseDirectory(dir), factory.WithModuleCache(modules))
		s, err := factory.Create[Scheduler](t.Context(), f, "a.dsl")
		require.NoError(t, err)
		require.NoError(t, s.Prepare())
		assert.Equal(t, []string{"a"}, s.Log)
		return loads
	}

	first := create()
	require.Len(t, first, 1)
	assert.False(t, first[0].fromCache)
	assert.True(t, store.Exists(first[0].key))

	second := create()
	require.Len(t, second, 1)
	assert.Equal(t, first[0].key, second[0].key)
	assert.True(t, second[0].fromCache)
}

func TestCreate_RecompilesChangedScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, map[string]string{"a.dsl": `record "v1"`, "b.dsl": `record "b"`})

	w, err := watcher.NewWatcher(nil)
	require.NoError(t, err)
	s := storage.New(w, storage.WithDebounce(10*time.Millisecond))
	f, ev := newFactory(t, s, factory.WithBaseDirectory(dir))

	var recompiled atomic.Int32
	f.OnRecompilation(func(domain.CompilationEvent) { recompiled.Add(1) })

	first, err := factory.Create[Scheduler](t.Context(), f, "a.dsl")
	require.NoError(t, err)
	require.NoError(t, first.Prepare())
	assert.Equal(t, []string{"v1"}, first.Log)

	write(t, dir, map[string]string{"a.dsl": `record "v2"`})

	require.Eventually(t, func() bool {
		sc, err := factory.Create[Scheduler](t.Context(), f, "a.dsl")
		if err != nil || sc.Prepare() != nil {
			return false
		}
		return len(sc.Log) == 1 && sc.Log[0] == "v2"
	}, 5*time.Second, 20*time.Millisecond)

	assert.Positive(t, recompiled.Load())
	last := ev.get()[len(ev.get())-1]
	assert.True(t, last.Recompilation)
	assert.Equal(t, []string{filepath.Join(dir, "a.dsl")}, last.URLs)

	// The untouched sibling is still served from the type cache.
	before := len(ev.get())
	_, err = factory.Create[Scheduler](t.Context(), f, "b.dsl")
	require.NoError(t, err)
	assert.Len(t, ev.get(), before)
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, map[string]string{"a.dsl": `record "v1"`, "b.dsl": `record "b"`})
	f, ev := newFactory(t, storage.New(nil), factory.WithBaseDirectory(dir))

	_, err := factory.Create[Scheduler](t.Context(), f, "a.dsl")
	require.NoError(t, err)

	write(t, dir, map[string]string{"a.dsl": `record "v2"`})
	require.NoError(t, factory.Invalidate[Scheduler](f, "a.dsl"))

	s, err := factory.Create[Scheduler](t.Context(), f, "a.dsl")
	require.NoError(t, err)
	require.NoError(t, s.Prepare())
	assert.Equal(t, []string{"v2"}, s.Log)

	got := ev.get()
	require.Len(t, got, 2)
	assert.Equal(t, domain.CompilationEvent{
		Engine:        "scheduling",
		URLs:          []string{filepath.Join(dir, "a.dsl")},
		Recompilation: true,
	}, got[1])

	require.ErrorIs(t, factory.Invalidate[Unregistered](f, "a.dsl"), domain.ErrEngineNotRegistered)
}

// gatedStorage holds the first read of gate until release is closed.
type gatedStorage struct {
	*storage.Storage
	gate    string
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedStorage) CreateInput(url string) (domain.ScriptUnit, error) {
	unit, err := s.Storage.CreateInput(url)
	if url == s.gate {
		s.once.Do(func() {
			close(s.read)
			<-s.release
		})
	}
	return unit, err
}

func TestInvalidate_DuringCompilation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, map[string]string{"a.dsl": `record "v1"`, "b.dsl": `record "b"`})
	s := &gatedStorage{
		Storage: storage.New(nil),
		gate:    filepath.Join(dir, "a.dsl"),
		read:    make(chan struct{}),
		release: make(chan struct{}),
	}
	f, ev := newFactory(t, s, factory.WithBaseDirectory(dir))

	var g errgroup.Group
	g.Go(func() error {
		_, err := factory.Create[Scheduler](t.Context(), f, "a.dsl")
		return err
	})

	<-s.read
	write(t, dir, map[string]string{"a.dsl": `record "v2"`})
	require.NoError(t, factory.Invalidate[Scheduler](f, "a.dsl"))
	close(s.release)
	require.NoError(t, g.Wait())

	sc, err := factory.Create[Scheduler](t.Context(), f, "a.dsl")
	require.NoError(t, err)
	require.NoError(t, sc.Prepare())
	assert.Equal(t, []string{"v2"}, sc.Log)

	got := ev.get()
	require.Len(t, got, 2)
	assert.True(t, got[1].Recompilation)
	assert.Equal(t, []string{filepath.Join(dir, "a.dsl")}, got[1].URLs)

	// The sibling compiled in the first batch was not evicted.
	_, err = factory.Create[Scheduler](t.Context(), f, "b.dsl")
	require.NoError(t, err)
	assert.Len(t, ev.get(), 2)
}

func TestInvalidate_ModuleCache(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, map[string]string{"a.dsl": `record "v1"`, "b.dsl": `record "b"`})

	type load struct {
		key       string
		fromCache bool
	}
	var (
		mu    sync.Mutex
		loads []load
	)
	modules := cache.NewModuleCache(modstore.New(filepath.Join(dir, domain.HostDirName)), nil)
	modules.OnModuleLoaded(func(key string, _ *runtime.Module, fromCache bool) {
		mu.Lock()
		defer mu.Unlock()
		loads = append(loads, load{key, fromCache})
	})

	f, _ := newFactory(t, storage.New(nil), factory.WithBaseDirectory(dir), factory.WithModuleCache(modules))
	var recompiled []domain.CompilationEvent
	f.OnRecompilation(func(ev domain.CompilationEvent) { recompiled = append(recompiled, ev) })

	_, err := factory.Create[Scheduler](t.Context(), f, "a.dsl")
	require.NoError(t, err)
	require.Len(t, loads, 1)
	assert.False(t, loads[0].fromCache)
	assert.Empty(t, recompiled)

	write(t, dir, map[string]string{"a.dsl": `record "v2"`})
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "a.dsl"), later, later))
	require.NoError(t, factory.Invalidate[Scheduler](f, "a.dsl"))

	sc, err := factory.Create[Scheduler](t.Context(), f, "a.dsl")
	require.NoError(t, err)
	require.NoError(t, sc.Prepare())
	assert.Equal(t, []string{"v2"}, sc.Log)

	require.Len(t, loads, 2)
	assert.False(t, loads[1].fromCache)
	assert.NotEqual(t, loads[0].key, loads[1].key)
	require.Len(t, recompiled, 1)
	assert.Equal(t, []string{filepath.Join(dir, "a.dsl")}, recompiled[0].URLs)
}

func TestCreate_URLCaseDiffers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, map[string]string{"job.dsl": `record "job"`, "other.dsl": `record "other"`})
	f, ev := newFactory(t, storage.New(nil), factory.WithBaseDirectory(dir))

	s, err := factory.Create[Scheduler](t.Context(), f, "JOB.dsl")
	require.NoError(t, err)
	require.NoError(t, s.Prepare())
	assert.Equal(t, []string{"job"}, s.Log)

	got := ev.get()
	require.Len(t, got, 1)
	assert.Equal(t, []string{filepath.Join(dir, "job.dsl"), filepath.Join(dir, "other.dsl")}, got[0].URLs,
		"the request joins its batch instead of being appended")
}

func TestBaseDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, map[string]string{"a.dsl": `record "a"`})
	f, _ := newFactory(t, storage.New(nil))

	f.SetBaseDirectory(dir)
	assert.Equal(t, dir, f.BaseDirectory())

	s, err := factory.Create[Scheduler](t.Context(), f, "a.dsl")
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestClose(t *testing.T) {
	t.Parallel()

	w, err := watcher.NewWatcher(nil)
	require.NoError(t, err)
	f := factory.New()
	require.NoError(t, factory.Register[Scheduler](f, schedulingEngine(t, storage.New(w))))

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}
