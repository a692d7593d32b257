// Package compiler drives the host language from source text to a linked
// runtime module through a pipeline of named steps.
package compiler

import (
	"context"
	"slices"
	"sync/atomic"

	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/dslhost/internal/host/runtime"
)

// OutputType selects what a compilation produces.
type OutputType int

const (
	// OutputMemory links the module in memory only.
	OutputMemory OutputType = iota
	// OutputLibrary also writes the module image to Parameters.OutputPath.
	OutputLibrary
	// OutputExe is OutputLibrary with a required Main entry point.
	OutputExe
)

func (t OutputType) String() string {
	switch t {
	case OutputMemory:
		return "memory"
	case OutputLibrary:
		return "library"
	case OutputExe:
		return "exe"
	default:
		return "unknown"
	}
}

// Input is one named source text.
type Input struct {
	Name string
	Text string
}

// Parameters configure a single compilation.
type Parameters struct {
	// Name is the module name. It defaults to the name of the first unit.
	Name       string
	Inputs     []Input
	References []*runtime.Library
	// Macros are expanded in addition to the macros of References.
	Macros     map[string]ast.Macro
	OutputType OutputType
	OutputPath string
	// Pipeline defaults to PipelineFor(OutputType) when nil.
	Pipeline *Pipeline
}

// AddInput adds a source text.
func (p *Parameters) AddInput(name, text string) {
	p.Inputs = append(p.Inputs, Input{Name: name, Text: text})
}

// AddReference references lib unless a library with the same name already is.
func (p *Parameters) AddReference(lib *runtime.Library) {
	if p.Reference(lib.Name) == nil {
		p.References = append(p.References, lib)
	}
}

// Reference returns the referenced library called name, or nil.
func (p *Parameters) Reference(name string) *runtime.Library {
	i := slices.IndexFunc(p.References, func(l *runtime.Library) bool { return l.Name == name })
	if i < 0 {
		return nil
	}
	return p.References[i]
}

// Compiler runs one compilation. Instances are single-use so concurrent
// compilations never share state.
type Compiler struct {
	params Parameters
	used   atomic.Bool
}

// New returns a compiler with empty parameters.
func New() *Compiler {
	return &Compiler{}
}

// Parameters returns the parameters to configure before Run.
func (c *Compiler) Parameters() *Parameters {
	return &c.params
}

// Run executes the pipeline. Compile errors are reported in the returned
// context's Errors; the error result is only set when the compiler was
// already used or ctx ended.
func (c *Compiler) Run(ctx context.Context) (*Context, error) {
	if !c.used.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	p := &c.params
	if p.Pipeline == nil {
		p.Pipeline = PipelineFor(p.OutputType)
	}

	cc := newContext(p)
	for _, step := range p.Pipeline.Steps() {
		if err := ctx.Err(); err != nil {
			return cc, err
		}
		step.Run(cc)
		if len(cc.Errors) > 0 {
			cc.Module = nil
			break
		}
	}
	return cc, nil
}
