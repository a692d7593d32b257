package runtime

import (
	"reflect"
	"sync"

	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/zerr"
)

// Object is an instance of a script class. Its Go base value, when the
// class has one, is created by the base type's constructor.
type Object struct {
	class *Class
	base  reflect.Value

	mu     sync.RWMutex
	fields map[string]any
}

func newObject(c *Class) *Object {
	return &Object{class: c, fields: make(map[string]any)}
}

// Class returns the object's class.
func (o *Object) Class() *Class { return o.class }

// Base returns the Go base value, or nil when the class has no base type.
func (o *Object) Base() any {
	if !o.base.IsValid() {
		return nil
	}
	return o.base.Interface()
}

// HasMethod reports whether the class defines a script method called name.
func (o *Object) HasMethod(name string) bool {
	return o.class.Method(name) != nil
}

// Call invokes the script method called name.
func (o *Object) Call(name string, args ...any) (any, error) {
	m := o.class.Method(name)
	if m == nil {
		return nil, noMember(o.class.Name, name)
	}
	return (&interp{class: o.class}).invoke(o, m, args)
}

// Get reads a member by name.
func (o *Object) Get(name string) (any, error) {
	v, ok, err := (&interp{class: o.class}).member(o, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, noMember(o.class.Name, name)
	}
	return v, nil
}

// Set assigns a script field or a settable Go base field.
func (o *Object) Set(name string, v any) error {
	ok, err := o.set(name, v)
	if err != nil {
		return err
	}
	if !ok {
		return noMember(o.class.Name, name)
	}
	return nil
}

func (o *Object) set(name string, v any) (bool, error) {
	o.mu.Lock()
	if _, ok := o.fields[name]; ok {
		o.fields[name] = v
		o.mu.Unlock()
		return true, nil
	}
	o.mu.Unlock()

	if o.base.IsValid() {
		return setGoMember(o.base.Interface(), name, v)
	}
	return false, nil
}

func (o *Object) field(name string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.fields[name]
	return v, ok
}

func (o *Object) setField(name string, v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fields[name] = v
}

// Binder is implemented by base types that embed Script.
type Binder interface {
	BindScript(o *Object)
}

// Script is embedded by Go base types so their methods can dispatch into
// the script class that extends them.
type Script struct {
	self *Object
}

// BindScript implements Binder.
func (s *Script) BindScript(o *Object) { s.self = o }

// Self returns the bound script object.
func (s *Script) Self() *Object { return s.self }

// Call invokes the script method called name on the bound object.
func (s *Script) Call(name string, args ...any) (any, error) {
	if s.self == nil {
		return nil, zerr.With(zerr.Wrap(ErrNotBound, name), "method", name)
	}
	return s.self.Call(name, args...)
}

// Has reports whether the bound script defines a method called name.
func (s *Script) Has(name string) bool {
	return s.self != nil && s.self.HasMethod(name)
}

// BoundMethod is a script method bound to its receiver.
type BoundMethod struct {
	obj    *Object
	method *ast.Method
}

// Call invokes the method.
func (b *BoundMethod) Call(args ...any) (any, error) {
	return (&interp{class: b.obj.class}).invoke(b.obj, b.method, args)
}

// Closure is a script block expression together with the scope it was
// created in.
type Closure struct {
	in  *interp
	def *ast.BlockExpression
	env *frame
}

// Call runs the closure. A closure whose body is a single expression
// returns that expression's value.
func (c *Closure) Call(args ...any) (any, error) {
	f := newFrame(c.env.self, c.env)
	if err := bindParams(f, c.def.Params, args); err != nil {
		return nil, errorAt(c.def.Pos(), err)
	}

	body := c.def.Body
	if body != nil && len(body.Stmts) == 1 {
		if es, ok := body.Stmts[0].(*ast.ExpressionStatement); ok {
			return c.in.eval(f, es.X)
		}
	}
	v, _, err := c.in.execBlock(f, body)
	return v, err
}
