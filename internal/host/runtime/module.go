package runtime

import (
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/zerr"
)

// Module is a linked, loadable compilation result: the classes of every
// unit of a batch together with the libraries they reference.
type Module struct {
	Name string
	// Entry names the class holding Main for executable output.
	Entry string

	refs    []*Library
	classes []*Class

	mu  sync.RWMutex
	out io.Writer
}

// NewModule returns an empty module referencing refs.
func NewModule(name string, refs []*Library) *Module {
	return &Module{Name: name, refs: slices.Clone(refs), out: os.Stdout}
}

// References returns the libraries the module was linked against.
func (m *Module) References() []*Library {
	return slices.Clone(m.refs)
}

// Classes returns the module classes in definition order.
func (m *Module) Classes() []*Class {
	return slices.Clone(m.classes)
}

// Class returns the class called name, or nil.
func (m *Module) Class(name string) *Class {
	for _, c := range m.classes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FindClass returns the class called name ignoring case, or nil.
func (m *Module) FindClass(name string) *Class {
	if c := m.Class(name); c != nil {
		return c
	}
	for _, c := range m.classes {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// SetOutput sets the writer the print builtin writes to.
func (m *Module) SetOutput(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = w
}

func (m *Module) output() io.Writer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.out
}

// Define links a class definition into the module. imports are the
// namespaces the defining unit imported.
func (m *Module) Define(def *ast.ClassDefinition, imports []string) (*Class, error) {
	if m.Class(def.Name) != nil {
		return nil, errorAt(def.Pos(), zerr.With(zerr.Wrap(ErrDuplicateClass, def.Name), "class", def.Name))
	}

	c := &Class{
		Name:    def.Name,
		Def:     def,
		Module:  m,
		Imports: slices.Clone(imports),
		methods: make(map[string]*ast.Method),
		props:   make(map[string]*ast.Property),
	}

	switch len(def.BaseTypes) {
	case 0:
	case 1:
		ref := def.BaseTypes[0]
		base, ok := ResolveType(m.refs, ref.Name)
		if !ok {
			return nil, errorAt(ref.Pos(), zerr.With(zerr.Wrap(ErrUnknownType, ref.Name), "type", ref.Name))
		}
		c.Base = base
	default:
		return nil, errorAt(def.BaseTypes[1].Pos(), zerr.Wrap(ErrUnknownType, "a class has at most one base type"))
	}

	for _, member := range def.Members {
		switch mm := member.(type) {
		case *ast.Method:
			c.methods[mm.Name] = mm
		case *ast.Constructor:
			c.ctors = append(c.ctors, mm)
		case *ast.Field:
			c.fields = append(c.fields, mm)
		case *ast.Property:
			c.props[mm.Name] = mm
		}
	}

	m.classes = append(m.classes, c)
	return c, nil
}

// ResolveType finds a type by simple or namespace-qualified name in refs.
func ResolveType(refs []*Library, name string) (TypeDescriptor, bool) {
	for _, lib := range refs {
		if d, ok := lib.Type(name); ok {
			return d, true
		}
		if ns, short, ok := cutLast(name); ok && ns == lib.Namespace {
			if d, ok := lib.Type(short); ok {
				return d, true
			}
		}
	}
	return nil, false
}

func cutLast(name string) (string, string, bool) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

// Class is a script class linked into a module.
type Class struct {
	Name string
	Def  *ast.ClassDefinition
	// Base is nil for classes without a Go base type.
	Base    TypeDescriptor
	Module  *Module
	Imports []string

	methods map[string]*ast.Method
	props   map[string]*ast.Property
	fields  []*ast.Field
	ctors   []*ast.Constructor
}

// Method returns the script method called name, matching case-insensitively
// when there is no exact match.
func (c *Class) Method(name string) *ast.Method {
	if m, ok := c.methods[name]; ok {
		return m
	}
	for n, m := range c.methods {
		if strings.EqualFold(n, name) {
			return m
		}
	}
	return nil
}

// Constructors returns the script constructors.
func (c *Class) Constructors() []*ast.Constructor {
	return slices.Clone(c.ctors)
}

// New creates an instance. With script constructors the one whose arity
// matches args runs; otherwise the base type's parameterless constructor
// is used.
func (c *Class) New(args ...any) (*Object, error) {
	obj := newObject(c)
	in := &interp{class: c}

	if c.Base == nil {
		if err := in.initFields(obj); err != nil {
			return nil, err
		}
	}

	switch {
	case len(c.ctors) > 0:
		ctor := c.constructorFor(len(args))
		if ctor == nil {
			return nil, zerr.With(zerr.With(zerr.Wrap(ErrNoConstructor, c.Name), "class", c.Name), "args", len(args))
		}
		f := newFrame(obj, nil)
		if err := bindParams(f, ctor.Params, args); err != nil {
			return nil, errorAt(ctor.Pos(), err)
		}
		if _, _, err := in.execBlock(f, ctor.Body); err != nil {
			return nil, err
		}
	case len(args) > 0:
		return nil, zerr.With(zerr.With(zerr.Wrap(ErrNoConstructor, c.Name), "class", c.Name), "args", len(args))
	}

	if c.Base != nil && !obj.base.IsValid() {
		if err := in.initBase(obj, nil); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func (c *Class) constructorFor(n int) *ast.Constructor {
	for _, ctor := range c.ctors {
		if len(ctor.Params) == n {
			return ctor
		}
	}
	return nil
}
