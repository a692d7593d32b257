package compiler

import (
	"slices"

	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/zerr"
)

// Names of the built-in steps. Custom steps are positioned relative to
// these names, never by index.
const (
	StepParse        = "parse"
	StepExpandMacros = "expand-macros"
	StepResolve      = "resolve"
	StepEmit         = "emit"
	StepSave         = "save"
)

// Step is one named pass of a compilation. Steps report problems through
// Context.Errors rather than returning them.
type Step interface {
	Name() string
	Run(c *Context)
}

type stepFunc struct {
	name string
	run  func(c *Context)
}

func (s stepFunc) Name() string   { return s.name }
func (s stepFunc) Run(c *Context) { s.run(c) }

// NewStep adapts a function to the Step interface.
func NewStep(name string, run func(c *Context)) Step {
	return stepFunc{name: name, run: run}
}

// Pipeline is an ordered list of uniquely named steps.
type Pipeline struct {
	steps []Step
}

// NewPipeline returns a pipeline running steps in order.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: slices.Clone(steps)}
}

// CompileToMemory parses, expands, resolves and links a module in memory.
func CompileToMemory() *Pipeline {
	return NewPipeline(
		NewStep(StepParse, parseStep),
		NewStep(StepExpandMacros, expandMacrosStep),
		NewStep(StepResolve, resolveStep),
		NewStep(StepEmit, emitStep),
	)
}

// CompileToFile is CompileToMemory followed by writing the module image.
func CompileToFile() *Pipeline {
	p := CompileToMemory()
	p.Append(NewStep(StepSave, saveStep))
	return p
}

// PipelineFor returns the default pipeline for an output type.
func PipelineFor(t OutputType) *Pipeline {
	if t == OutputMemory {
		return CompileToMemory()
	}
	return CompileToFile()
}

// Steps returns the steps in execution order.
func (p *Pipeline) Steps() []Step {
	return slices.Clone(p.steps)
}

// Names returns the step names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Find returns the index of the step called name, or -1.
func (p *Pipeline) Find(name string) int {
	return slices.IndexFunc(p.steps, func(s Step) bool { return s.Name() == name })
}

// Append adds steps at the end.
func (p *Pipeline) Append(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// InsertAfter inserts steps immediately after the step called anchor.
func (p *Pipeline) InsertAfter(anchor string, steps ...Step) error {
	i, err := p.anchor(anchor)
	if err != nil {
		return err
	}
	p.steps = slices.Insert(p.steps, i+1, steps...)
	return nil
}

// InsertBefore inserts steps immediately before the step called anchor.
func (p *Pipeline) InsertBefore(anchor string, steps ...Step) error {
	i, err := p.anchor(anchor)
	if err != nil {
		return err
	}
	p.steps = slices.Insert(p.steps, i, steps...)
	return nil
}

// Replace swaps the step called name for step.
func (p *Pipeline) Replace(name string, step Step) error {
	i, err := p.anchor(name)
	if err != nil {
		return err
	}
	p.steps[i] = step
	return nil
}

// Remove drops the step called name.
func (p *Pipeline) Remove(name string) error {
	i, err := p.anchor(name)
	if err != nil {
		return err
	}
	p.steps = slices.Delete(p.steps, i, i+1)
	return nil
}

func (p *Pipeline) anchor(name string) (int, error) {
	i := p.Find(name)
	if i < 0 {
		return -1, zerr.With(zerr.Wrap(domain.ErrAnchorNotFound, name), "anchor", name)
	}
	return i, nil
}
