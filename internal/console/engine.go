package console

import (
	"go.trai.ch/dslhost/internal/core/ports"
	"go.trai.ch/dslhost/internal/dsl/engine"
	"go.trai.ch/dslhost/internal/dsl/synth"
	"go.trai.ch/dslhost/internal/dsl/transform"
	"go.trai.ch/dslhost/internal/host/compiler"
	"go.trai.ch/dslhost/internal/host/runtime"
)

// EngineName names the console engine. It is part of the persisted module
// key.
const EngineName = "console"

type options struct {
	forward bool
	engine  []engine.Option
}

// Option configures the console engine.
type Option func(*options)

// WithConstructorForwarding sets whether Program constructors are mirrored
// on every script class.
func WithConstructorForwarding(enabled bool) Option {
	return func(o *options) { o.forward = enabled }
}

// WithEngineOptions passes opts to the underlying engine.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *options) { o.engine = append(o.engine, opts...) }
}

// NewEngine returns the engine compiling console scripts read from s.
func NewEngine(s ports.Storage, opts ...Option) (*engine.Engine, error) {
	o := options{forward: true}
	for _, opt := range opts {
		opt(&o)
	}

	lib := Library()
	steps, err := pipeline(lib, o.forward)
	if err != nil {
		return nil, err
	}

	name := EngineName
	if !o.forward {
		name += "-noforward"
	}
	return engine.New(name, append([]engine.Option{
		engine.WithStorage(s),
		engine.WithLibraries(lib),
		engine.WithCustomizer(func(p *compiler.Parameters, _ []string) error {
			return p.Pipeline.InsertAfter(compiler.StepParse, steps...)
		}),
	}, o.engine...)...)
}

// pipeline returns the steps run right after parsing: symbol and naming
// rewrites, echo blocks turned into arguments, then the Program class.
func pipeline(lib *runtime.Library, forward bool) ([]compiler.Step, error) {
	echo, err := transform.NewBlockToArguments("echo")
	if err != nil {
		return nil, err
	}
	blocks, err := transform.NewStep(echo)
	if err != nil {
		return nil, err
	}
	base, err := synth.ImplicitBaseClass(lib, "Program", "Main",
		synth.WithNamespaces(Namespace),
		synth.WithConstructorForwarding(forward),
		synth.WithExtension(synth.PropertyExtension(map[string]string{"describe": DescriptionProperty})),
	)
	if err != nil {
		return nil, err
	}
	return []compiler.Step{
		transform.UseSymbolsStep(),
		transform.UnderscoreNamingStep(),
		blocks,
		base,
	}, nil
}
