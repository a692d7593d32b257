package compiler

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/dslhost/internal/host/parser"
	"go.trai.ch/dslhost/internal/host/runtime"
)

// EntryMethod is the method executable output starts in.
const EntryMethod = "Main"

// ModuleClassSuffix is appended to a unit name for the class holding
// statements no step moved into a class.
const ModuleClassSuffix = "Module"

const maxMacroDepth = 32

func parseStep(c *Context) {
	for _, in := range c.Parameters.Inputs {
		mod, err := parser.Parse(in.Name, in.Text)
		if err != nil {
			c.Errors.AddError(ast.Position{File: in.Name}, err)
			continue
		}
		c.Units = append(c.Units, mod)
	}
}

// ----------------------------------------------------------------------------
// expand-macros

type expander struct {
	c      *Context
	mc     *ast.MacroContext
	macros map[string]ast.Macro
	depth  int
}

func expandMacrosStep(c *Context) {
	macros := c.Macros()
	for _, unit := range c.Units {
		x := &expander{c: c, macros: macros, mc: &ast.MacroContext{Module: unit}}
		ast.Rewrite(unit.Globals, x)

		for _, cls := range unit.Classes {
			for _, m := range slices.Clone(cls.Members) {
				x.mc = &ast.MacroContext{Module: unit, Class: cls, Member: m}
				ast.Rewrite(m, x)
			}
		}
	}
}

// Rewrite implements ast.Rewriter. Registered macros are expanded; any
// other macro statement becomes an invocation of its name with its block
// as a trailing closure argument.
func (x *expander) Rewrite(n ast.Node) ast.Node {
	m, ok := n.(*ast.MacroStatement)
	if !ok {
		return n
	}

	macro, ok := x.macros[m.Name]
	if !ok {
		return Invocation(m)
	}
	if x.depth >= maxMacroDepth {
		x.c.Errors.Add(m.Pos(), "macro %q expands recursively", m.Name)
		return m
	}

	st, err := macro(x.mc, m)
	if err != nil {
		x.c.Errors.AddError(m.Pos(), err)
		return m
	}
	if st == nil {
		return nil
	}

	x.depth++
	defer func() { x.depth-- }()
	return ast.Rewrite(st, x)
}

// Invocation turns `name a, b: block` into `name(a, b, { block })`.
func Invocation(m *ast.MacroStatement) *ast.ExpressionStatement {
	args := slices.Clone(m.Args)
	if m.Body != nil {
		args = append(args, ast.Closure(m.Body))
	}
	return ast.ExprStmt(ast.Call(m.Pos(), ast.Ref(m.Pos(), m.Name), args...))
}

// ----------------------------------------------------------------------------
// resolve

// scope is the set of names visible to one unit.
type scope struct {
	libs    []*runtime.Library
	classes map[string]bool
	base    runtime.TypeDescriptor
	members []string
}

func (s *scope) knows(name string, locals map[string]bool) bool {
	if locals[name] || s.classes[name] {
		return true
	}
	if slices.ContainsFunc(s.members, func(m string) bool { return strings.EqualFold(m, name) }) {
		return true
	}
	if s.base != nil && s.base.HasMember(name) {
		return true
	}
	for _, lib := range s.libs {
		if lib.Has(name) {
			return true
		}
	}
	return slices.Contains(runtime.Builtins(), name)
}

func resolveStep(c *Context) {
	classes := make(map[string]bool)
	for _, unit := range c.Units {
		for _, cls := range unit.Classes {
			classes[cls.Name] = true
		}
	}

	for _, unit := range c.Units {
		imports := Imports(unit)
		var libs []*runtime.Library
		for _, lib := range c.References() {
			if lib.Visible(imports) {
				libs = append(libs, lib)
			}
		}

		global := &scope{libs: libs, classes: classes}
		resolveBody(c, global, nil, unit.Globals)

		for _, cls := range unit.Classes {
			s := &scope{libs: libs, classes: classes}
			for _, m := range cls.Members {
				s.members = append(s.members, m.MemberName())
			}
			if len(cls.BaseTypes) == 1 {
				if d, ok := runtime.ResolveType(c.References(), cls.BaseTypes[0].Name); ok {
					s.base = d
				}
			}
			for _, m := range cls.Members {
				switch mm := m.(type) {
				case *ast.Method:
					resolveBody(c, s, mm.Params, mm.Body)
				case *ast.Constructor:
					resolveBody(c, s, mm.Params, mm.Body)
				case *ast.Property:
					resolveBody(c, s, nil, mm.Getter)
				case *ast.Field:
					if mm.Initializer != nil {
						resolveBody(c, s, nil, mm.Initializer)
					}
				}
			}
		}
	}
}

// resolveBody reports references in body that no scope provides. Every
// name assigned anywhere in the body counts as a local.
func resolveBody(c *Context, s *scope, params []*ast.Parameter, body ast.Node) {
	if body == nil {
		return
	}
	if b, ok := body.(*ast.Block); ok && b == nil {
		return
	}
	locals := make(map[string]bool)
	for _, p := range params {
		locals[p.Name] = true
	}
	ast.Inspect(body, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.BinaryExpression:
			if ref, ok := x.Left.(*ast.ReferenceExpression); ok && x.Op == ast.OpAssign {
				locals[ref.Name] = true
			}
		case *ast.ForStatement:
			locals[x.Var] = true
		case *ast.BlockExpression:
			for _, p := range x.Params {
				locals[p.Name] = true
			}
		}
		return true
	})

	ast.Inspect(body, func(n ast.Node) bool {
		ref, ok := n.(*ast.ReferenceExpression)
		if !ok || s.knows(ref.Name, locals) {
			return true
		}
		if strings.HasPrefix(ref.Name, "@") {
			c.Errors.Add(ref.Pos(), "unknown symbol '%s'", ref.Name)
			return true
		}
		c.Errors.Add(ref.Pos(), "unknown identifier '%s'", ref.Name)
		return true
	})
}

// ----------------------------------------------------------------------------
// emit

func emitStep(c *Context) {
	p := c.Parameters
	name := p.Name
	if name == "" && len(c.Units) > 0 {
		name = c.Units[0].Name
	}
	mod := runtime.NewModule(name, p.References)

	for _, unit := range c.Units {
		if !unit.Globals.IsEmpty() {
			unit.Classes = append(unit.Classes, &ast.ClassDefinition{
				Loc:  unit.Loc,
				Name: unit.Name + ModuleClassSuffix,
				Members: []ast.Member{&ast.Method{
					Loc:  unit.Globals.Loc,
					Name: EntryMethod,
					Body: &ast.Block{Loc: unit.Globals.Loc, Stmts: unit.Globals.Stmts},
				}},
			})
			unit.Globals.Stmts = nil
		}

		imports := Imports(unit)
		for _, def := range unit.Classes {
			if _, err := mod.Define(def, imports); err != nil {
				c.Errors.AddError(def.Pos(), err)
			}
		}
	}
	if c.Failed() {
		return
	}

	if p.OutputType == OutputExe {
		for _, cls := range mod.Classes() {
			if cls.Method(EntryMethod) != nil {
				mod.Entry = cls.Name
				break
			}
		}
		if mod.Entry == "" {
			c.Errors.Add(ast.Position{File: name}, "executable output requires a %s method", EntryMethod)
			return
		}
	}
	c.Module = mod
}

// ----------------------------------------------------------------------------
// save

func saveStep(c *Context) {
	if c.Module == nil {
		return
	}
	path := c.Parameters.OutputPath
	if path == "" {
		c.Errors.AddError(ast.Position{File: c.Module.Name}, ErrNoOutputPath)
		return
	}

	data, err := EncodeModule(c.Module)
	if err != nil {
		c.Errors.AddError(ast.Position{File: path}, err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		c.Errors.AddError(ast.Position{File: path}, err)
		return
	}
	if err := os.WriteFile(path, data, domain.FilePerm); err != nil {
		c.Errors.AddError(ast.Position{File: path}, err)
		return
	}
	c.Image = data
}
