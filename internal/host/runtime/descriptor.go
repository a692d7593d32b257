package runtime

import (
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.trai.ch/zerr"
)

// Visibility is the access level of a constructor.
type Visibility uint8

const (
	// Public constructors can be called by anyone.
	Public Visibility = iota
	// Protected constructors can only be called by derived classes.
	Protected
	// Private constructors are invisible to derived classes.
	Private
)

// Param is one constructor parameter.
type Param struct {
	Name string
	Type reflect.Type
}

// Constructor builds a new instance of a described type.
type Constructor struct {
	Params     []Param
	Visibility Visibility
	fn         reflect.Value
}

// Invoke calls the constructor with args converted to the parameter types.
func (c Constructor) Invoke(args []any) (reflect.Value, error) {
	in, err := convertArgs(c.fn.Type(), args)
	if err != nil {
		return reflect.Value{}, err
	}
	out := c.fn.Call(in)
	if len(out) == 2 && !out[1].IsNil() {
		err, _ := out[1].Interface().(error)
		return reflect.Value{}, err
	}
	return out[0], nil
}

// Accepts reports whether args can be passed to the constructor.
func (c Constructor) Accepts(args []any) bool {
	if len(args) != len(c.Params) {
		return false
	}
	for i, p := range c.Params {
		if !convertible(args[i], p.Type) {
			return false
		}
	}
	return true
}

// TypeDescriptor exposes what synthesis and the interpreter need to know
// about a base type.
type TypeDescriptor interface {
	// Name is the type name scripts use to refer to the type.
	Name() string
	// Library is the name of the library that provides the type.
	Library() string
	// Type is the pointer type of instances.
	Type() reflect.Type
	// Constructors lists every constructor, private ones included.
	Constructors() []Constructor
	// OverridableMembers lists the hooks a script may override.
	OverridableMembers() []string
	// HasMember reports whether the type has a field or method called name.
	HasMember(name string) bool
}

// GoType describes a Go struct type usable as a script base type.
type GoType struct {
	name    string
	library string
	typ     reflect.Type
	ctors   []Constructor
	hooks   []string
}

var _ TypeDescriptor = (*GoType)(nil)

// DescribeOption configures a GoType.
type DescribeOption func(*GoType) error

// Describe builds a descriptor for *T. Without constructor options the type
// gets a public parameterless constructor returning new(T).
func Describe[T any](opts ...DescribeOption) (*GoType, error) {
	typ := reflect.TypeFor[*T]()
	if typ.Elem().Kind() != reflect.Struct {
		return nil, zerr.With(zerr.New("base types must be structs"), "type", typ.String())
	}
	g := &GoType{name: typ.Elem().Name(), typ: typ}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, zerr.With(err, "type", g.name)
		}
	}
	if len(g.ctors) == 0 {
		g.ctors = []Constructor{{fn: reflect.ValueOf(func() *T { return new(T) })}}
	}
	return g, nil
}

// MustDescribe is like Describe but panics on an invalid option.
func MustDescribe[T any](opts ...DescribeOption) *GoType {
	g, err := Describe[T](opts...)
	if err != nil {
		panic(err)
	}
	return g
}

// WithConstructor adds a public constructor. fn must return *T, optionally
// followed by an error; names label its parameters.
func WithConstructor(fn any, names ...string) DescribeOption {
	return withConstructor(Public, fn, names)
}

// WithProtectedConstructor adds a constructor visible only to derived classes.
func WithProtectedConstructor(fn any, names ...string) DescribeOption {
	return withConstructor(Protected, fn, names)
}

// WithPrivateConstructor adds a constructor derived classes cannot call.
func WithPrivateConstructor(fn any, names ...string) DescribeOption {
	return withConstructor(Private, fn, names)
}

func withConstructor(vis Visibility, fn any, names []string) DescribeOption {
	return func(g *GoType) error {
		v := reflect.ValueOf(fn)
		t := v.Type()
		if t.Kind() != reflect.Func || t.NumOut() == 0 || t.Out(0) != g.typ ||
			t.NumOut() > 2 || (t.NumOut() == 2 && t.Out(1) != errorType) {
			return zerr.With(zerr.New("constructor must return the described pointer type"), "constructor", t.String())
		}
		params := make([]Param, t.NumIn())
		for i := range params {
			params[i] = Param{Name: "arg" + strconv.Itoa(i), Type: t.In(i)}
			if i < len(names) {
				params[i].Name = names[i]
			}
		}
		g.ctors = append(g.ctors, Constructor{Params: params, Visibility: vis, fn: v})
		return nil
	}
}

// WithHooks declares the members scripts may override.
func WithHooks(names ...string) DescribeOption {
	return func(g *GoType) error {
		g.hooks = append(g.hooks, names...)
		return nil
	}
}

// InLibrary sets the name of the providing library.
func InLibrary(name string) DescribeOption {
	return func(g *GoType) error {
		g.library = name
		return nil
	}
}

// Named overrides the type name scripts use.
func Named(name string) DescribeOption {
	return func(g *GoType) error {
		g.name = name
		return nil
	}
}

// Name implements TypeDescriptor.
func (g *GoType) Name() string { return g.name }

// Library implements TypeDescriptor.
func (g *GoType) Library() string { return g.library }

// Type implements TypeDescriptor.
func (g *GoType) Type() reflect.Type { return g.typ }

// Constructors implements TypeDescriptor.
func (g *GoType) Constructors() []Constructor { return slices.Clone(g.ctors) }

// OverridableMembers implements TypeDescriptor.
func (g *GoType) OverridableMembers() []string { return slices.Clone(g.hooks) }

// HasMember implements TypeDescriptor.
func (g *GoType) HasMember(name string) bool {
	for _, n := range candidates(name) {
		if _, ok := g.typ.MethodByName(n); ok {
			return true
		}
		if f, ok := g.typ.Elem().FieldByName(n); ok && f.IsExported() {
			return true
		}
	}
	return false
}

// candidates returns the Go spellings tried for a script name: the name
// itself, then the name with its first letter upper-cased.
func candidates(name string) []string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return []string{name}
	}
	return []string{name, string(unicode.ToUpper(r)) + name[size:]}
}

// Capitalize upper-cases the first letter of name.
func Capitalize(name string) string {
	c := candidates(name)
	return c[len(c)-1]
}

// IsOverridable reports whether name is one of d's hooks, ignoring case.
func IsOverridable(d TypeDescriptor, name string) bool {
	for _, h := range d.OverridableMembers() {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}
