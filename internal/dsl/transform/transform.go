// Package transform holds the AST rewrites DSL engines compose into the
// host compiler pipeline.
package transform

import (
	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/dslhost/internal/host/compiler"
	"go.trai.ch/zerr"
)

// Step names used when engines insert these steps into a pipeline.
const (
	StepTransform        = "transform"
	StepAutoImport       = "auto-import"
	StepUnderscoreNaming = "underscore-naming"
	StepUseSymbols       = "use-symbols"
)

// Transformer rewrites a parsed unit in place.
type Transformer interface {
	Transform(unit *ast.Module) error
}

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc func(unit *ast.Module) error

// Transform implements Transformer.
func (f TransformerFunc) Transform(unit *ast.Module) error { return f(unit) }

// NewStep returns a compiler step applying transformers, in order, to every
// unit. Transformer failures are reported as compile errors.
func NewStep(transformers ...Transformer) (compiler.Step, error) {
	if len(transformers) == 0 {
		return nil, zerr.With(zerr.Wrap(domain.ErrTransformerArgs, "transformer step"), "step", StepTransform)
	}
	return compiler.NewStep(StepTransform, func(c *compiler.Context) {
		for _, unit := range c.Units {
			for _, t := range transformers {
				if err := t.Transform(unit); err != nil {
					c.Errors.AddError(unit.Pos(), err)
				}
			}
		}
	}), nil
}

// AutoImport returns a step importing namespaces into every unit.
func AutoImport(namespaces ...string) compiler.Step {
	return compiler.NewStep(StepAutoImport, func(c *compiler.Context) {
		for _, unit := range c.Units {
			for _, ns := range namespaces {
				unit.AddImport(ns)
			}
		}
	})
}
