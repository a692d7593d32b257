// Package engine compiles batches of scripts into runtime modules.
package engine

import (
	"context"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/core/ports"
	"go.trai.ch/dslhost/internal/host/compiler"
	"go.trai.ch/dslhost/internal/host/runtime"
	"go.trai.ch/zerr"
)

// Customizer adjusts the parameters of a compilation before it runs. It
// typically inserts steps into p.Pipeline relative to a named anchor.
type Customizer func(p *compiler.Parameters, urls []string) error

// TypeResolver projects the class generated for url out of a module.
type TypeResolver func(storage ports.Storage, mod *runtime.Module, url string) *runtime.Class

// Option configures an Engine.
type Option func(*Engine)

// WithStorage sets the storage scripts are read from. It is required.
func WithStorage(s ports.Storage) Option {
	return func(e *Engine) { e.storage = s }
}

// WithLibraries references libs from every compilation.
func WithLibraries(libs ...*runtime.Library) Option {
	return func(e *Engine) { e.libraries = append(e.libraries, libs...) }
}

// WithOutputType selects the output of ForceCompile. Executable output
// also requires a Main method from Compile.
func WithOutputType(t compiler.OutputType) Option {
	return func(e *Engine) { e.output = t }
}

// WithCustomizer adds a pipeline customization. Customizers run in the
// order they were added.
func WithCustomizer(c Customizer) Option {
	return func(e *Engine) { e.customizers = append(e.customizers, c) }
}

// WithTypeResolver overrides how the class for a url is found.
func WithTypeResolver(r TypeResolver) Option {
	return func(e *Engine) { e.resolve = r }
}

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer sets the tracer.
func WithTracer(t ports.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// Engine drives compilations for one kind of script. Every compilation
// uses a fresh compiler instance, so an Engine is safe for concurrent use.
type Engine struct {
	name        string
	storage     ports.Storage
	libraries   []*runtime.Library
	output      compiler.OutputType
	customizers []Customizer
	resolve     TypeResolver
	logger      ports.Logger
	tracer      ports.Tracer

	mu    sync.Mutex
	state domain.EngineState

	files fileReferences
}

// New returns an engine identified by name. The name takes part in the
// persisted-module key, so it must change when the engine's output does.
func New(name string, opts ...Option) (*Engine, error) {
	e := &Engine{
		name:    name,
		output:  compiler.OutputLibrary,
		resolve: DefaultTypeResolver,
		logger:  ports.NopLogger{},
		tracer:  ports.NopTracer{},
		state:   domain.EngineStateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.files.engine = e

	if name == "" {
		return nil, zerr.Wrap(domain.ErrInvalidConfiguration, "engine requires a name")
	}
	if e.storage == nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfiguration, "engine requires a storage"), "engine", name)
	}
	return e, nil
}

// DefaultTypeResolver returns the class named after the url's file name,
// ignoring case.
func DefaultTypeResolver(storage ports.Storage, mod *runtime.Module, url string) *runtime.Class {
	return mod.FindClass(storage.TypeNameFromURL(url))
}

// Name returns the engine name.
func (e *Engine) Name() string { return e.name }

// Storage returns the storage scripts are read from.
func (e *Engine) Storage() ports.Storage { return e.storage }

// OutputType returns the output of ForceCompile.
func (e *Engine) OutputType() compiler.OutputType { return e.output }

// References returns every library a module compiled by this engine may
// reference, including the modules compiled for `import file` directives.
func (e *Engine) References() []*runtime.Library {
	return append(slices.Clone(e.libraries), e.files.libraries()...)
}

// State returns the state of the most recent compilation.
func (e *Engine) State() domain.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s domain.EngineState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}

// CanonizeURL resolves url against parentDir through the storage.
func (e *Engine) CanonizeURL(parentDir, url string) string {
	return e.storage.CanonizeURL(parentDir, url)
}

// TypeForURL returns the class generated for url, or nil.
func (e *Engine) TypeForURL(mod *runtime.Module, url string) *runtime.Class {
	return e.resolve(e.storage, mod, url)
}

// CreateInstance instantiates cls with args forwarded to its constructor.
func (e *Engine) CreateInstance(cls *runtime.Class, args ...any) (*runtime.Object, error) {
	obj, err := cls.New(args...)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create instance"), "class", cls.Name)
	}
	return obj, nil
}

// Compile compiles urls together into an in-memory module.
func (e *Engine) Compile(ctx context.Context, urls []string) (*Result, error) {
	return e.compile(ctx, urls, compiler.CompileToMemory(), "")
}

// ForceCompile compiles urls and writes the module image to path.
func (e *Engine) ForceCompile(ctx context.Context, urls []string, path string) (*Result, error) {
	return e.compile(ctx, urls, compiler.CompileToFile(), path)
}

// Load links a module image written by ForceCompile.
func (e *Engine) Load(data []byte, urls []string) (*Result, error) {
	mod, err := compiler.DecodeModule(data, e.References())
	if err != nil {
		return nil, err
	}
	return &Result{Module: mod, URLs: slices.Clone(urls), engine: e}, nil
}

func (e *Engine) compile(ctx context.Context, urls []string, pipeline *compiler.Pipeline, path string) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "engine.compile",
		ports.WithAttribute("engine", e.name),
		ports.WithAttribute("urls", len(urls)),
	)
	defer span.End()

	e.setState(domain.EngineStateCompiling)
	e.logger.Debug("compiling " + strings.Join(urls, ", "))

	cc, err := e.run(ctx, urls, nil, pipeline, path)
	if err != nil {
		e.setState(domain.EngineStateFailed)
		span.RecordError(err)
		return nil, err
	}

	e.setState(domain.EngineStateSucceeded)
	return &Result{Module: cc.Module, URLs: slices.Clone(urls), Image: cc.Image, engine: e}, nil
}

// run performs one compilation. ancestors lists the scripts whose
// `import file` directives led to this one.
func (e *Engine) run(
	ctx context.Context,
	urls []string,
	ancestors []string,
	pipeline *compiler.Pipeline,
	path string,
) (*compiler.Context, error) {
	c := compiler.New()
	p := c.Parameters()
	p.OutputType = e.output
	p.OutputPath = path
	p.Pipeline = pipeline
	for _, lib := range e.libraries {
		p.AddReference(lib)
	}

	for _, url := range urls {
		in, err := e.storage.CreateInput(url)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to read input"), "url", url)
		}
		p.AddInput(in.URL, in.Text)
	}

	if err := pipeline.InsertAfter(compiler.StepParse, e.files.step(ctx, ancestors)); err != nil {
		return nil, err
	}
	for _, customize := range e.customizers {
		if err := customize(p, slices.Clone(urls)); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to customize compilation"), "engine", e.name)
		}
	}

	cc, err := c.Run(ctx)
	if err != nil {
		return nil, err
	}
	if cc.Failed() {
		return nil, &CompilationError{URLs: slices.Clone(urls), Errors: cc.Errors}
	}
	return cc, nil
}

// Result is a successfully compiled batch.
type Result struct {
	Module *runtime.Module
	URLs   []string
	// Image is the encoded module when the result was written to a file.
	Image []byte

	engine *Engine
}

// TypeForURL returns the class generated for url, or nil.
func (r *Result) TypeForURL(url string) *runtime.Class {
	return r.engine.TypeForURL(r.Module, url)
}

// CompilationError carries every diagnostic of a failed compilation. It
// matches domain.ErrCompilationFailed with errors.Is.
type CompilationError struct {
	URLs   []string
	Errors compiler.Errors
}

func (e *CompilationError) Error() string {
	return domain.ErrCompilationFailed.Error() + ":\n" + e.Errors.Error()
}

// Unwrap exposes the sentinel and the diagnostics.
func (e *CompilationError) Unwrap() []error {
	return []error{domain.ErrCompilationFailed, e.Errors}
}
