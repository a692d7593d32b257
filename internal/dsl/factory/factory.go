// Package factory is the entry point for embedding applications: it maps
// Go base types to engines and turns script urls into instances.
package factory

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/core/ports"
	"go.trai.ch/dslhost/internal/dsl/cache"
	"go.trai.ch/dslhost/internal/dsl/engine"
	"go.trai.ch/dslhost/internal/host/runtime"
	"go.trai.ch/zerr"
)

// Option configures a Factory.
type Option func(*Factory)

// WithBaseDirectory sets the directory relative urls resolve against.
func WithBaseDirectory(dir string) Option {
	return func(f *Factory) { f.baseDir = dir }
}

// WithModuleCache routes every compilation through a persisted module cache.
func WithModuleCache(c *cache.ModuleCache) Option {
	return func(f *Factory) { f.modules = c }
}

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// WithTracer sets the tracer.
func WithTracer(t ports.Tracer) Option {
	return func(f *Factory) { f.tracer = t }
}

// registration is the engine serving one base type and the classes it
// produced so far.
type registration struct {
	engine *engine.Engine
	types  *cache.TypeCache

	mu      sync.Mutex
	watched map[domain.ScriptURL]struct{}
}

// Factory creates script instances. It owns its engines, caches and
// observers; nothing is shared between factories.
type Factory struct {
	modules *cache.ModuleCache
	logger  ports.Logger
	tracer  ports.Tracer

	mu         sync.RWMutex
	baseDir    string
	engines    map[reflect.Type]*registration
	standalone map[domain.ScriptURL]struct{}
	compiled   []func(domain.CompilationEvent)
	recompiled []func(domain.CompilationEvent)
	closed     bool
}

// New returns a factory without engines.
func New(opts ...Option) *Factory {
	f := &Factory{
		logger:     ports.NopLogger{},
		tracer:     ports.NopTracer{},
		engines:    make(map[reflect.Type]*registration),
		standalone: make(map[domain.ScriptURL]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BaseDirectory returns the directory relative urls resolve against.
func (f *Factory) BaseDirectory() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.baseDir
}

// SetBaseDirectory changes the directory relative urls resolve against.
func (f *Factory) SetBaseDirectory(dir string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baseDir = dir
}

// OnCompilation registers fn to run after every compilation.
func (f *Factory) OnCompilation(fn func(domain.CompilationEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compiled = append(f.compiled, fn)
}

// OnRecompilation registers fn to run after a changed script was
// compiled on its own.
func (f *Factory) OnRecompilation(fn func(domain.CompilationEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recompiled = append(f.recompiled, fn)
}

// Close stops the change notifications of every registered engine.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true

	var errs []error
	seen := make(map[ports.Storage]bool)
	for _, reg := range f.engines {
		s := reg.engine.Storage()
		if seen[s] {
			continue
		}
		seen[s] = true
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Register makes e the engine for scripts deriving from T. Each base type
// has exactly one engine.
func Register[T any](f *Factory, e *engine.Engine) error {
	typ := reflect.TypeFor[T]()
	if e == nil {
		return zerr.With(zerr.Wrap(domain.ErrInvalidConfiguration, "engine is nil"), "type", typ.String())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.engines[typ]; ok {
		return zerr.With(zerr.Wrap(domain.ErrEngineAlreadyRegistered, typ.String()), "type", typ.String())
	}
	f.engines[typ] = &registration{
		engine:  e,
		types:   cache.NewTypeCache(),
		watched: make(map[domain.ScriptURL]struct{}),
	}
	return nil
}

// IsRegistered reports whether an engine serves T.
func IsRegistered[T any](f *Factory) bool {
	_, err := f.registration(reflect.TypeFor[T]())
	return err == nil
}

// Create compiles the script at url if needed and returns a new instance
// of its class. args are forwarded to the script's constructor.
func Create[T any](ctx context.Context, f *Factory, url string, args ...any) (*T, error) {
	obj, err := f.CreateObject(ctx, reflect.TypeFor[T](), url, args...)
	if err != nil {
		return nil, err
	}
	return instance[T](obj)
}

// TryCreate is Create returning nil instead of an error when no script
// exists at url.
func TryCreate[T any](ctx context.Context, f *Factory, url string, args ...any) (*T, error) {
	v, err := Create[T](ctx, f, url, args...)
	if errors.Is(err, domain.ErrScriptNotFound) {
		return nil, nil
	}
	return v, err
}

// CreateAll creates an instance of every script directly inside dir.
func CreateAll[T any](ctx context.Context, f *Factory, dir string, args ...any) ([]*T, error) {
	reg, err := f.registration(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	urls, err := reg.engine.Storage().GetMatchingURLsIn(f.BaseDirectory(), dir)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to list scripts"), "dir", dir)
	}

	out := make([]*T, 0, len(urls))
	for _, url := range urls {
		v, err := Create[T](ctx, f, url, args...)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func instance[T any](obj *runtime.Object) (*T, error) {
	v, ok := obj.Base().(*T)
	if !ok {
		return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrInvalidInstance, obj.Class().Name),
			"class", obj.Class().Name), "want", reflect.TypeFor[T]().String())
	}
	return v, nil
}

func (f *Factory) registration(typ reflect.Type) (*registration, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	reg, ok := f.engines[typ]
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrEngineNotRegistered, typ.String()), "type", typ.String())
	}
	return reg, nil
}

// CreateObject is Create for a base type known only at run time. It
// returns the script object rather than its Go base value.
func (f *Factory) CreateObject(ctx context.Context, base reflect.Type, url string, args ...any) (*runtime.Object, error) {
	reg, err := f.registration(base)
	if err != nil {
		return nil, err
	}

	ctx, span := f.tracer.Start(ctx, "factory.create", ports.WithAttribute("url", url))
	defer span.End()

	canonical := reg.engine.CanonizeURL(f.BaseDirectory(), url)
	cls, err := reg.types.Load(canonical, func() (map[string]*runtime.Class, error) {
		return f.compileFor(ctx, reg, canonical)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return reg.engine.CreateInstance(cls, args...)
}

// compileFor compiles the batch url belongs to and returns the class of
// every url in it. A url marked by a change notification is compiled on
// its own.
func (f *Factory) compileFor(ctx context.Context, reg *registration, url string) (map[string]*runtime.Class, error) {
	recompilation := f.takeStandalone(url)

	urls, target := []string{url}, url
	if !recompilation {
		var err error
		if urls, target, err = f.batchFor(reg.engine, url); err != nil {
			return nil, err
		}
	}

	res, err := f.compile(ctx, reg.engine, urls)
	if err != nil && len(urls) > 1 {
		f.logger.Warn("batch compilation failed, compiling " + target + " alone")
		urls = []string{target}
		res, err = f.compile(ctx, reg.engine, urls)
	}
	if err != nil {
		return nil, err
	}

	batch := make(map[string]*runtime.Class, len(urls))
	for _, u := range urls {
		cls := res.TypeForURL(u)
		if cls == nil {
			return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrMissingGeneratedType, u),
				"url", u), "type", reg.engine.Storage().TypeNameFromURL(u))
		}
		batch[u] = cls
	}
	batch[url] = batch[target]

	if err := f.watch(reg, urls); err != nil {
		return nil, err
	}
	f.notify(domain.CompilationEvent{Engine: reg.engine.Name(), URLs: urls, Recompilation: recompilation})
	return batch, nil
}

// batchFor returns the scripts compiled together with url: its siblings
// matching the engine's pattern, plus url itself when it is a valid script
// outside the pattern. target is url as spelled in the batch, which may
// differ in case from the request.
func (f *Factory) batchFor(e *engine.Engine, url string) (urls []string, target string, err error) {
	storage := e.Storage()
	base := f.BaseDirectory()

	urls, err = storage.GetMatchingURLsIn(base, url)
	if err != nil {
		return nil, "", zerr.With(zerr.Wrap(err, "failed to list scripts"), "url", url)
	}
	if storage.IsURLIncludedIn(urls, base, url) {
		i := slices.IndexFunc(urls, func(u string) bool { return strings.EqualFold(u, url) })
		if i < 0 {
			return urls, url, nil
		}
		return urls, urls[i], nil
	}
	if !storage.IsValidScriptURL(url) {
		return nil, "", zerr.With(zerr.Wrap(domain.ErrScriptNotFound, url), "url", url)
	}
	return append(urls, url), url, nil
}

func (f *Factory) compile(ctx context.Context, e *engine.Engine, urls []string) (*engine.Result, error) {
	if f.modules != nil {
		return f.modules.Get(ctx, e, urls)
	}
	return e.Compile(ctx, urls)
}

// watch registers change notifications for the urls not watched yet.
func (f *Factory) watch(reg *registration, urls []string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var fresh []string
	for _, u := range urls {
		key := domain.NewScriptURL(u)
		if _, ok := reg.watched[key]; !ok {
			reg.watched[key] = struct{}{}
			fresh = append(fresh, u)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	return reg.engine.Storage().NotifyOnChange(fresh, func(changed string) {
		f.invalidate(reg, changed)
	})
}

// Invalidate evicts url from the classes created for T, as a change
// notification would. The next Create compiles url on its own.
func Invalidate[T any](f *Factory, url string) error {
	reg, err := f.registration(reflect.TypeFor[T]())
	if err != nil {
		return err
	}
	f.invalidate(reg, reg.engine.CanonizeURL(f.BaseDirectory(), url))
	return nil
}

// invalidate evicts a changed script and marks it for a standalone
// compilation on its next request.
func (f *Factory) invalidate(reg *registration, url string) {
	reg.types.Remove(url)

	f.mu.Lock()
	f.standalone[domain.NewScriptURL(url)] = struct{}{}
	f.mu.Unlock()

	f.logger.Info("invalidated " + url)
}

func (f *Factory) takeStandalone(url string) bool {
	key := domain.NewScriptURL(url)

	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.standalone[key]
	delete(f.standalone, key)
	return ok
}

func (f *Factory) notify(ev domain.CompilationEvent) {
	f.mu.RLock()
	compiled := f.compiled
	recompiled := f.recompiled
	f.mu.RUnlock()

	for _, fn := range compiled {
		fn(ev)
	}
	if ev.Recompilation {
		for _, fn := range recompiled {
			fn(ev)
		}
	}
}
