// Package synth turns the top-level statements of a script into a class
// deriving from a Go base type.
package synth

import (
	"slices"
	"strings"

	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/dslhost/internal/host/compiler"
	"go.trai.ch/dslhost/internal/host/runtime"
	"go.trai.ch/zerr"
)

// StepBaseClass is the name of every step in this package.
const StepBaseClass = "base-class"

// Extension adds members to a synthesized class. It runs after the class
// has its constructors and, for implicit base classes, its method.
type Extension func(c *compiler.Context, unit *ast.Module, def *ast.ClassDefinition) error

// Option configures a base class step.
type Option func(*BaseClass)

// WithNamespaces imports namespaces into every unit.
func WithNamespaces(namespaces ...string) Option {
	return func(b *BaseClass) { b.namespaces = append(b.namespaces, namespaces...) }
}

// WithParameters declares the parameters of the synthesized method.
func WithParameters(params ...*ast.Parameter) Option {
	return func(b *BaseClass) { b.params = append(b.params, params...) }
}

// WithConstructorForwarding sets whether base constructors are mirrored on
// the synthesized class. It is enabled by default.
func WithConstructorForwarding(enabled bool) Option {
	return func(b *BaseClass) { b.forward = enabled }
}

// WithExtension registers a hook run for every synthesized class.
func WithExtension(ext Extension) Option {
	return func(b *BaseClass) { b.extensions = append(b.extensions, ext) }
}

// WithReferences references additional libraries from the compilation.
func WithReferences(libs ...*runtime.Library) Option {
	return func(b *BaseClass) { b.refs = append(b.refs, libs...) }
}

// BaseClass is the compiler step that wraps each unit in a class deriving
// from a Go type. Build one with ImplicitBaseClass, AnonymousBaseClass or
// MethodSubstitution.
type BaseClass struct {
	lib  *runtime.Library
	base runtime.TypeDescriptor

	namespaces []string
	params     []*ast.Parameter
	forward    bool
	extensions []Extension
	refs       []*runtime.Library

	// members fills the class from the unit's statements.
	members func(unit *ast.Module, def *ast.ClassDefinition)
}

func newBaseClass(lib *runtime.Library, typeName string, opts []Option) (*BaseClass, error) {
	if lib == nil || typeName == "" {
		return nil, zerr.Wrap(domain.ErrTransformerArgs, "base class step requires a library and a type name")
	}
	d, ok := lib.Type(typeName)
	if !ok {
		return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrInvalidConfiguration, "unknown base type"), "type", typeName), "library", lib.Name)
	}

	b := &BaseClass{lib: lib, base: d, forward: true}
	for _, opt := range opts {
		opt(b)
	}
	if b.forward {
		if err := checkArities(d); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// checkArities rejects base types with two forwardable constructors taking
// the same number of parameters: script constructors are chosen by arity.
func checkArities(d runtime.TypeDescriptor) error {
	seen := make(map[int]bool)
	for _, ctor := range d.Constructors() {
		if ctor.Visibility == runtime.Private {
			continue
		}
		n := len(ctor.Params)
		if seen[n] {
			return zerr.With(zerr.With(zerr.Wrap(domain.ErrInvalidConfiguration, "base constructors share an arity"),
				"type", d.Name()), "arity", n)
		}
		seen[n] = true
	}
	return nil
}

// Name implements compiler.Step.
func (b *BaseClass) Name() string { return StepBaseClass }

// Base returns the descriptor of the base type.
func (b *BaseClass) Base() runtime.TypeDescriptor { return b.base }

// Run implements compiler.Step.
func (b *BaseClass) Run(c *compiler.Context) {
	c.AddReference(b.lib)
	for _, lib := range b.refs {
		c.AddReference(lib)
	}

	for _, unit := range c.Units {
		for _, ns := range b.namespaces {
			unit.AddImport(ns)
		}

		def := &ast.ClassDefinition{
			Loc:       unit.Loc,
			Name:      unit.Name,
			BaseTypes: []*ast.TypeReference{{Loc: unit.Loc, Name: b.baseTypeName()}},
		}
		if b.forward {
			def.Members = append(def.Members, b.constructors(unit.Pos())...)
		}
		b.members(unit, def)
		unit.Globals = &ast.Block{Loc: unit.Loc}
		unit.Classes = append(unit.Classes, def)

		for _, ext := range b.extensions {
			if err := ext(c, unit, def); err != nil {
				c.Errors.AddError(def.Pos(), err)
			}
		}
	}
}

func (b *BaseClass) baseTypeName() string {
	if b.lib.Namespace == "" {
		return b.base.Name()
	}
	return b.lib.Namespace + "." + b.base.Name()
}

// constructors mirrors every non-private base constructor as a script
// constructor forwarding its parameters to super.
func (b *BaseClass) constructors(pos ast.Position) []ast.Member {
	var out []ast.Member
	for _, ctor := range b.base.Constructors() {
		if ctor.Visibility == runtime.Private {
			continue
		}

		super := ast.Call(pos, &ast.SuperLiteral{Loc: ast.At(pos)})
		gen := &ast.Constructor{Loc: ast.At(pos), Body: &ast.Block{Loc: ast.At(pos)}}
		for _, p := range ctor.Params {
			gen.Params = append(gen.Params, &ast.Parameter{
				Loc:  ast.At(pos),
				Name: p.Name,
				Type: &ast.TypeReference{Loc: ast.At(pos), Name: p.Type.String()},
			})
			super.Args = append(super.Args, ast.Ref(pos, p.Name))
		}
		gen.Body.Add(ast.ExprStmt(super))
		out = append(out, gen)
	}
	return out
}

// ImplicitBaseClass returns a step moving each unit's top-level statements
// into method of a class deriving from the library type typeName.
func ImplicitBaseClass(lib *runtime.Library, typeName, method string, opts ...Option) (*BaseClass, error) {
	b, err := newBaseClass(lib, typeName, opts)
	if err != nil {
		return nil, err
	}
	if method == "" {
		return nil, zerr.Wrap(domain.ErrTransformerArgs, "base class step requires a method name")
	}
	override := runtime.IsOverridable(b.base, method)
	if b.base.HasMember(method) && !override {
		return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrMethodNameCollision, method), "method", method), "type", b.base.Name())
	}

	b.members = func(unit *ast.Module, def *ast.ClassDefinition) {
		body := unit.Globals
		if body == nil {
			body = &ast.Block{Loc: unit.Loc}
		}
		def.Members = append(def.Members, &ast.Method{
			Loc:      body.Loc,
			Name:     method,
			Params:   slices.Clone(b.params),
			Body:     body,
			Override: override,
		})
	}
	return b, nil
}

// AnonymousBaseClass is ImplicitBaseClass without constructor forwarding.
// Every library given through WithReferences is referenced.
func AnonymousBaseClass(lib *runtime.Library, typeName, method string, opts ...Option) (*BaseClass, error) {
	return ImplicitBaseClass(lib, typeName, method, append(slices.Clone(opts), WithConstructorForwarding(false))...)
}

// MethodSubstitution returns a step that overrides base hooks instead of
// filling a single method. A top-level `hook:` block becomes an override of
// the overridable member hook and `name = expr` becomes a field. Other
// top-level statements are dropped.
func MethodSubstitution(lib *runtime.Library, typeName string, opts ...Option) (*BaseClass, error) {
	b, err := newBaseClass(lib, typeName, opts)
	if err != nil {
		return nil, err
	}

	b.members = func(unit *ast.Module, def *ast.ClassDefinition) {
		if unit.Globals == nil {
			return
		}
		for _, s := range unit.Globals.Stmts {
			switch st := s.(type) {
			case *ast.MacroStatement:
				hook, ok := b.hook(st.Name)
				if !ok {
					continue
				}
				body := st.Body
				if body == nil {
					body = &ast.Block{Loc: st.Loc}
				}
				def.Members = append(def.Members, &ast.Method{Loc: st.Loc, Name: hook, Body: body, Override: true})
			case *ast.ExpressionStatement:
				be, ok := st.X.(*ast.BinaryExpression)
				if !ok || be.Op != ast.OpAssign {
					continue
				}
				if ref, ok := be.Left.(*ast.ReferenceExpression); ok {
					def.Members = append(def.Members, &ast.Field{Loc: ref.Loc, Name: ref.Name, Initializer: be.Right})
				}
			}
		}
	}
	return b, nil
}

func (b *BaseClass) hook(name string) (string, bool) {
	for _, h := range b.base.OverridableMembers() {
		if strings.EqualFold(h, name) {
			return h, true
		}
	}
	return "", false
}
