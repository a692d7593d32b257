package compiler

import (
	"maps"

	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/dslhost/internal/host/runtime"
)

// Context is the state shared by the steps of one compilation.
type Context struct {
	Parameters *Parameters
	// Units holds one parsed module per input.
	Units  []*ast.Module
	Errors Errors
	// Module is set by the emit step and cleared when any step fails.
	Module *runtime.Module
	// Image is the encoded module written by the save step.
	Image []byte

	items map[string]any
}

func newContext(p *Parameters) *Context {
	return &Context{Parameters: p, items: make(map[string]any)}
}

// Set stores a value for later steps.
func (c *Context) Set(key string, v any) {
	c.items[key] = v
}

// Get returns a value stored by an earlier step.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.items[key]
	return v, ok
}

// Failed reports whether any step reported an error.
func (c *Context) Failed() bool {
	return len(c.Errors) > 0
}

// References returns the referenced libraries.
func (c *Context) References() []*runtime.Library {
	return c.Parameters.References
}

// AddReference references lib for the rest of the compilation.
func (c *Context) AddReference(lib *runtime.Library) {
	c.Parameters.AddReference(lib)
}

// Macros returns every macro in scope: those of referenced libraries,
// overridden by Parameters.Macros.
func (c *Context) Macros() map[string]ast.Macro {
	out := make(map[string]ast.Macro)
	for _, lib := range c.Parameters.References {
		maps.Copy(out, lib.Macros())
	}
	maps.Copy(out, c.Parameters.Macros)
	return out
}

// Imports returns the namespaces unit imports without a source file.
func Imports(unit *ast.Module) []string {
	var out []string
	for _, imp := range unit.Imports {
		if imp.From == "" {
			out = append(out, imp.Namespace)
		}
	}
	return out
}
