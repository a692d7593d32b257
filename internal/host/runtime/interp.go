package runtime

import (
	"reflect"

	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/zerr"
)

// frame is one lexical scope.
type frame struct {
	self   *Object
	vars   map[string]any
	parent *frame
}

func newFrame(self *Object, parent *frame) *frame {
	return &frame{self: self, vars: make(map[string]any), parent: parent}
}

func (f *frame) lookup(name string) (any, bool) {
	for s := f; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (f *frame) assign(name string, v any) bool {
	for s := f; s != nil; s = s.parent {
		if _, ok := s.vars[name]; ok {
			s.vars[name] = v
			return true
		}
	}
	return false
}

func bindParams(f *frame, params []*ast.Parameter, args []any) error {
	if len(args) > len(params) {
		return zerr.With(zerr.With(zerr.Wrap(ErrConversion, "too many arguments"), "want", len(params)), "got", len(args))
	}
	for i, p := range params {
		var v any
		if i < len(args) {
			v = args[i]
		}
		f.vars[p.Name] = v
	}
	return nil
}

// interp evaluates the members of one class.
type interp struct {
	class *Class
}

func (in *interp) invoke(obj *Object, m *ast.Method, args []any) (any, error) {
	f := newFrame(obj, nil)
	if err := bindParams(f, m.Params, args); err != nil {
		return nil, errorAt(m.Pos(), zerr.With(err, "method", m.Name))
	}
	v, _, err := in.execBlock(f, m.Body)
	return v, err
}

func (in *interp) initFields(obj *Object) error {
	for _, fd := range in.class.fields {
		var v any
		if fd.Initializer != nil {
			var err error
			if v, err = in.eval(newFrame(obj, nil), fd.Initializer); err != nil {
				return err
			}
		}
		obj.setField(fd.Name, v)
	}
	return nil
}

// initBase runs the first non-private base constructor accepting args,
// binds the script to the new base value and initializes fields.
func (in *interp) initBase(obj *Object, args []any) error {
	base := in.class.Base
	if base == nil {
		return zerr.With(zerr.Wrap(ErrNoConstructor, in.class.Name+" has no base type"), "class", in.class.Name)
	}
	if obj.base.IsValid() {
		return zerr.With(zerr.Wrap(ErrNoConstructor, "base constructor already called"), "class", in.class.Name)
	}

	for _, ctor := range base.Constructors() {
		if ctor.Visibility == Private || !ctor.Accepts(args) {
			continue
		}
		v, err := ctor.Invoke(args)
		if err != nil {
			return zerr.With(err, "type", base.Name())
		}
		obj.base = v
		if b, ok := v.Interface().(Binder); ok {
			b.BindScript(obj)
		}
		return in.initFields(obj)
	}
	return zerr.With(zerr.With(zerr.Wrap(ErrNoConstructor, base.Name()), "type", base.Name()), "args", len(args))
}

// execBlock runs b. returned reports whether a return statement ran.
func (in *interp) execBlock(f *frame, b *ast.Block) (any, bool, error) {
	if b == nil {
		return nil, false, nil
	}
	for _, s := range b.Stmts {
		v, returned, err := in.exec(f, s)
		if err != nil || returned {
			return v, returned, err
		}
	}
	return nil, false, nil
}

//nolint:cyclop // one case per statement kind
func (in *interp) exec(f *frame, s ast.Stmt) (any, bool, error) {
	switch n := s.(type) {
	case *ast.ExpressionStatement:
		_, err := in.eval(f, n.X)
		return nil, false, err
	case *ast.ReturnStatement:
		if n.Value == nil {
			return nil, true, nil
		}
		v, err := in.eval(f, n.Value)
		return v, true, err
	case *ast.IfStatement:
		cond, err := in.eval(f, n.Cond)
		if err != nil {
			return nil, false, err
		}
		if Truthy(cond) {
			return in.execBlock(f, n.Then)
		}
		return in.execBlock(f, n.Else)
	case *ast.ForStatement:
		return in.execFor(f, n)
	case *ast.MacroStatement:
		// Macros left after expansion behave like calls.
		args := append([]ast.Expr(nil), n.Args...)
		if n.Body != nil {
			args = append(args, ast.Closure(n.Body))
		}
		_, err := in.eval(f, ast.Call(n.Pos(), ast.Ref(n.Pos(), n.Name), args...))
		return nil, false, err
	}
	return nil, false, errorAt(s.Pos(), zerr.Wrap(ErrOperands, "unsupported statement"))
}

func (in *interp) execFor(f *frame, n *ast.ForStatement) (any, bool, error) {
	iter, err := in.eval(f, n.Iter)
	if err != nil {
		return nil, false, err
	}
	rv := reflect.ValueOf(iter)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
	default:
		return nil, false, errorAt(n.Iter.Pos(), zerr.Wrap(ErrNotIterable, toString(iter)))
	}
	for i := range rv.Len() {
		f.vars[n.Var] = fromGo(rv.Index(i))
		v, returned, err := in.execBlock(f, n.Body)
		if err != nil || returned {
			return v, returned, err
		}
	}
	return nil, false, nil
}

func (in *interp) eval(f *frame, e ast.Expr) (any, error) {
	v, err := in.evalRaw(f, e)
	if err != nil {
		return nil, errorAt(e.Pos(), err)
	}
	if gf, ok := v.(*goFunc); ok && gf.isGetter() {
		switch e.(type) {
		case *ast.ReferenceExpression, *ast.MemberReferenceExpression:
			v, err = gf.call(nil)
			return v, errorAt(e.Pos(), err)
		}
	}
	return v, nil
}

//nolint:cyclop,gocyclo // one case per expression kind
func (in *interp) evalRaw(f *frame, e ast.Expr) (any, error) {
	switch n := e.(type) {
	case *ast.IntegerLiteral:
		return n.Value, nil
	case *ast.FloatLiteral:
		return n.Value, nil
	case *ast.StringLiteral:
		return n.Value, nil
	case *ast.BoolLiteral:
		return n.Value, nil
	case *ast.NullLiteral:
		return nil, nil
	case *ast.SelfLiteral:
		if f.self == nil {
			return nil, unknownName("self")
		}
		return f.self, nil
	case *ast.SuperLiteral:
		return nil, zerr.Wrap(ErrNotCallable, "super can only be called or dereferenced")
	case *ast.ReferenceExpression:
		return in.lookup(f, n.Name)
	case *ast.MemberReferenceExpression:
		if _, ok := n.Target.(*ast.SuperLiteral); ok {
			return in.superMember(f, n.Name)
		}
		target, err := in.eval(f, n.Target)
		if err != nil {
			return nil, err
		}
		return in.memberOf(target, n.Name)
	case *ast.MethodInvocationExpression:
		return in.evalCall(f, n)
	case *ast.ListLiteral:
		items := make([]any, len(n.Items))
		for i, it := range n.Items {
			v, err := in.eval(f, it)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil
	case *ast.IndexExpression:
		target, err := in.eval(f, n.Target)
		if err != nil {
			return nil, err
		}
		idx, err := in.eval(f, n.Index)
		if err != nil {
			return nil, err
		}
		return index(target, idx)
	case *ast.BinaryExpression:
		return in.evalBinary(f, n)
	case *ast.UnaryExpression:
		x, err := in.eval(f, n.X)
		if err != nil {
			return nil, err
		}
		if n.Op == ast.OpNot {
			return !Truthy(x), nil
		}
		return negate(x)
	case *ast.BlockExpression:
		return &Closure{in: in, def: n, env: f}, nil
	}
	return nil, zerr.Wrap(ErrOperands, "unsupported expression "+ast.FormatExpr(e))
}

func (in *interp) evalBinary(f *frame, n *ast.BinaryExpression) (any, error) {
	switch n.Op {
	case ast.OpAssign:
		v, err := in.eval(f, n.Right)
		if err != nil {
			return nil, err
		}
		return v, in.assign(f, n.Left, v)
	case ast.OpAnd, ast.OpOr:
		l, err := in.eval(f, n.Left)
		if err != nil {
			return nil, err
		}
		if Truthy(l) == (n.Op == ast.OpOr) {
			return Truthy(l), nil
		}
		r, err := in.eval(f, n.Right)
		if err != nil {
			return nil, err
		}
		return Truthy(r), nil
	}

	l, err := in.eval(f, n.Left)
	if err != nil {
		return nil, err
	}
	r, err := in.eval(f, n.Right)
	if err != nil {
		return nil, err
	}
	return binary(n.Op, l, r)
}

func (in *interp) evalCall(f *frame, n *ast.MethodInvocationExpression) (any, error) {
	args := make([]any, len(n.Args))
	for i, a := range n.Args {
		v, err := in.eval(f, a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	if _, ok := n.Target.(*ast.SuperLiteral); ok {
		if f.self == nil {
			return nil, unknownName("super")
		}
		return nil, in.initBase(f.self, args)
	}

	callee, err := in.evalRaw(f, n.Target)
	if err != nil {
		return nil, errorAt(n.Target.Pos(), err)
	}
	return in.call(callee, args)
}

func (in *interp) call(callee any, args []any) (any, error) {
	switch c := callee.(type) {
	case *BoundMethod:
		return c.Call(args...)
	case *Closure:
		return c.Call(args...)
	case *goFunc:
		return c.call(args)
	case *Class:
		return c.New(args...)
	case TypeDescriptor:
		return newGoValue(c, args)
	case builtin:
		return c(in, args)
	}

	rv := reflect.ValueOf(callee)
	if rv.Kind() == reflect.Func && !rv.IsNil() {
		return (&goFunc{name: rv.Type().String(), fn: rv}).call(args)
	}
	return nil, zerr.Wrap(ErrNotCallable, toString(callee))
}

func newGoValue(d TypeDescriptor, args []any) (any, error) {
	for _, ctor := range d.Constructors() {
		if ctor.Visibility != Public || !ctor.Accepts(args) {
			continue
		}
		v, err := ctor.Invoke(args)
		if err != nil {
			return nil, err
		}
		return v.Interface(), nil
	}
	return nil, zerr.With(zerr.Wrap(ErrNoConstructor, d.Name()), "args", len(args))
}

// lookup resolves a bare name: locals, then members of self, then symbols
// of visible libraries, then module classes, then builtins.
func (in *interp) lookup(f *frame, name string) (any, error) {
	if v, ok := f.lookup(name); ok {
		return v, nil
	}
	if f.self != nil {
		v, ok, err := in.member(f.self, name)
		if err != nil || ok {
			return v, err
		}
	}
	for _, lib := range in.class.Module.refs {
		if !lib.Visible(in.class.Imports) {
			continue
		}
		if v, ok := lib.lookup(name); ok {
			return v, nil
		}
	}
	if c := in.class.Module.Class(name); c != nil {
		return c, nil
	}
	if b, ok := builtins[name]; ok {
		return b, nil
	}
	return nil, unknownName(name)
}

// member resolves name on a script object: fields, properties, script
// methods, then members of the Go base value.
func (in *interp) member(obj *Object, name string) (any, bool, error) {
	if v, ok := obj.field(name); ok {
		return v, true, nil
	}
	if p, ok := obj.class.props[name]; ok {
		v, _, err := (&interp{class: obj.class}).execBlock(newFrame(obj, nil), p.Getter)
		return v, true, err
	}
	if m := obj.class.Method(name); m != nil {
		return &BoundMethod{obj: obj, method: m}, true, nil
	}
	if obj.base.IsValid() {
		if v, ok := goMember(obj.base.Interface(), name); ok {
			return v, true, nil
		}
	}
	return nil, false, nil
}

func (in *interp) superMember(f *frame, name string) (any, error) {
	if f.self == nil || !f.self.base.IsValid() {
		return nil, unknownName("super")
	}
	if v, ok := goMember(f.self.base.Interface(), name); ok {
		return v, nil
	}
	return nil, noMember(in.class.Base.Name(), name)
}

// memberOf resolves target.name. Go values fall back to extension methods
// of visible libraries.
func (in *interp) memberOf(target any, name string) (any, error) {
	if target == nil {
		return nil, noMember("null", name)
	}
	if obj, ok := target.(*Object); ok {
		v, ok, err := in.member(obj, name)
		if err != nil {
			return nil, err
		}
		if ok {
			return v, nil
		}
		return nil, noMember(obj.class.Name, name)
	}
	if v, ok := goMember(target, name); ok {
		return v, nil
	}
	for _, lib := range in.class.Module.refs {
		if !lib.Visible(in.class.Imports) {
			continue
		}
		if fn, ok := lib.extension(name, target); ok {
			return &goFunc{name: name, fn: fn, recv: target, hasRecv: true}, nil
		}
	}
	return nil, noMember(reflect.TypeOf(target).String(), name)
}

// assign stores v into a reference, member or index target. An unknown
// bare name becomes a local of the current frame.
func (in *interp) assign(f *frame, target ast.Expr, v any) error {
	switch t := target.(type) {
	case *ast.ReferenceExpression:
		if f.assign(t.Name, v) {
			return nil
		}
		if f.self != nil {
			ok, err := f.self.set(t.Name, v)
			if err != nil || ok {
				return err
			}
		}
		f.vars[t.Name] = v
		return nil
	case *ast.MemberReferenceExpression:
		obj, err := in.eval(f, t.Target)
		if err != nil {
			return err
		}
		if o, ok := obj.(*Object); ok {
			if ok, err := o.set(t.Name, v); err != nil || ok {
				return err
			}
			o.setField(t.Name, v)
			return nil
		}
		ok, err := setGoMember(obj, t.Name, v)
		if err != nil {
			return err
		}
		if !ok {
			return noMember(toString(obj), t.Name)
		}
		return nil
	case *ast.IndexExpression:
		obj, err := in.eval(f, t.Target)
		if err != nil {
			return err
		}
		idx, err := in.eval(f, t.Index)
		if err != nil {
			return err
		}
		return setIndex(obj, idx, v)
	}
	return zerr.Wrap(ErrOperands, "cannot assign to "+ast.FormatExpr(target))
}

func index(target, idx any) (any, error) {
	rv := reflect.ValueOf(target)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		i, err := intIndex(idx, rv.Len())
		if err != nil {
			return nil, err
		}
		return fromGo(rv.Index(i)), nil
	case reflect.Map:
		k, err := convert(idx, rv.Type().Key())
		if err != nil {
			return nil, err
		}
		return fromGo(rv.MapIndex(k)), nil
	}
	return nil, zerr.Wrap(ErrOperands, "cannot index "+toString(target))
}

func setIndex(target, idx, v any) error {
	rv := reflect.ValueOf(target)
	switch rv.Kind() {
	case reflect.Slice:
		i, err := intIndex(idx, rv.Len())
		if err != nil {
			return err
		}
		cv, err := convert(v, rv.Type().Elem())
		if err != nil {
			return err
		}
		rv.Index(i).Set(cv)
		return nil
	case reflect.Map:
		k, err := convert(idx, rv.Type().Key())
		if err != nil {
			return err
		}
		cv, err := convert(v, rv.Type().Elem())
		if err != nil {
			return err
		}
		rv.SetMapIndex(k, cv)
		return nil
	}
	return zerr.Wrap(ErrOperands, "cannot index "+toString(target))
}

func intIndex(idx any, n int) (int, error) {
	rv := reflect.ValueOf(idx)
	if !rv.IsValid() || !(isInt(rv.Kind()) || isUint(rv.Kind())) {
		return 0, zerr.Wrap(ErrOperands, "index must be an integer")
	}
	i := int(toInt(rv))
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, zerr.With(zerr.Wrap(ErrOperands, "index out of range"), "index", i)
	}
	return i, nil
}
