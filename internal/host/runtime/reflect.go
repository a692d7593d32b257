package runtime

import (
	"reflect"

	"go.trai.ch/zerr"
)

var (
	errorType = reflect.TypeFor[error]()
	anyType   = reflect.TypeFor[any]()
)

// scriptPanic carries a script error out of a Go func created by MakeFunc
// whose signature has no error result.
type scriptPanic struct{ err error }

// goFunc is a Go function, method value or extension bound to its receiver.
type goFunc struct {
	name    string
	fn      reflect.Value
	recv    any
	hasRecv bool
}

// arity is the number of arguments the script has to supply.
func (f *goFunc) arity() int {
	n := f.fn.Type().NumIn()
	if f.hasRecv {
		n--
	}
	return n
}

// isGetter reports whether a reference to f without a call reads a value.
func (f *goFunc) isGetter() bool {
	t := f.fn.Type()
	return f.arity() == 0 && !t.IsVariadic() && t.NumOut() > 0 && t.Out(0) != errorType
}

func (f *goFunc) call(args []any) (res any, err error) {
	if f.hasRecv {
		args = append([]any{f.recv}, args...)
	}
	in, err := convertArgs(f.fn.Type(), args)
	if err != nil {
		return nil, zerr.With(err, "func", f.name)
	}

	defer func() {
		if r := recover(); r != nil {
			sp, ok := r.(scriptPanic)
			if !ok {
				panic(r)
			}
			res, err = nil, sp.err
		}
	}()
	return results(f.fn.Call(in))
}

// results maps Go return values to a script value. A trailing non-nil
// error becomes the call's error.
func results(out []reflect.Value) (any, error) {
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if !out[n-1].IsNil() {
			err, _ := out[n-1].Interface().(error)
			return nil, err
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return fromGo(out[0]), nil
	}
	vals := make([]any, len(out))
	for i, v := range out {
		vals[i] = fromGo(v)
	}
	return vals, nil
}

func fromGo(v reflect.Value) any {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return nil
	}
	return v.Interface()
}

func convertArgs(t reflect.Type, args []any) ([]reflect.Value, error) {
	n := t.NumIn()
	if t.IsVariadic() {
		if len(args) < n-1 {
			return nil, zerr.With(zerr.Wrap(ErrConversion, "not enough arguments"), "want", n-1)
		}
	} else if len(args) != n {
		return nil, zerr.With(zerr.With(zerr.Wrap(ErrConversion, "wrong number of arguments"), "want", n), "got", len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		pt := variadicParam(t, i)
		v, err := convert(a, pt)
		if err != nil {
			return nil, zerr.With(err, "arg", i)
		}
		in[i] = v
	}
	return in, nil
}

func variadicParam(t reflect.Type, i int) reflect.Type {
	if t.IsVariadic() && i >= t.NumIn()-1 {
		return t.In(t.NumIn() - 1).Elem()
	}
	return t.In(i)
}

// convert turns a script value into a Go value of type t.
//
//nolint:cyclop // one case per script value kind
func convert(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}

	switch x := v.(type) {
	case *Closure:
		if t.Kind() == reflect.Func {
			return makeFunc(t, x.Call), nil
		}
	case *BoundMethod:
		if t.Kind() == reflect.Func {
			return makeFunc(t, x.Call), nil
		}
	case *goFunc:
		if !x.hasRecv && x.fn.Type().AssignableTo(t) {
			return x.fn, nil
		}
		if t.Kind() == reflect.Func {
			return makeFunc(t, func(args ...any) (any, error) { return x.call(args) }), nil
		}
	case *Object:
		if rv := reflect.ValueOf(x); rv.Type().AssignableTo(t) {
			return rv, nil
		}
		if x.base.IsValid() && x.base.Type().AssignableTo(t) {
			return x.base, nil
		}
	case []any:
		if t.Kind() == reflect.Slice && t.Elem() != anyType {
			out := reflect.MakeSlice(t, len(x), len(x))
			for i, item := range x {
				ev, err := convert(item, t.Elem())
				if err != nil {
					return reflect.Value{}, err
				}
				out.Index(i).Set(ev)
			}
			return out, nil
		}
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if isNumber(rv.Kind()) && isNumber(t.Kind()) {
		return rv.Convert(t), nil
	}
	if rv.Kind() == reflect.String && t.Kind() == reflect.String {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, zerr.Wrap(ErrConversion, rv.Type().String()+" to "+t.String())
}

func convertible(v any, t reflect.Type) bool {
	_, err := convert(v, t)
	return err == nil
}

// makeFunc adapts a script callable to the Go func type t. A script error
// is returned through a trailing error result when t has one and raised
// as a panic otherwise.
func makeFunc(t reflect.Type, call func(args ...any) (any, error)) reflect.Value {
	returnsErr := t.NumOut() > 0 && t.Out(t.NumOut()-1) == errorType

	return reflect.MakeFunc(t, func(in []reflect.Value) []reflect.Value {
		args := make([]any, len(in))
		for i, v := range in {
			args[i] = fromGo(v)
		}

		out := make([]reflect.Value, t.NumOut())
		for i := range out {
			out[i] = reflect.Zero(t.Out(i))
		}
		fail := func(err error) []reflect.Value {
			if !returnsErr {
				panic(scriptPanic{err: err})
			}
			out[len(out)-1] = reflect.ValueOf(&err).Elem()
			return out
		}

		res, err := call(args...)
		if err != nil {
			return fail(err)
		}
		values := t.NumOut()
		if returnsErr {
			values--
		}
		if values > 0 {
			cv, err := convert(res, t.Out(0))
			if err != nil {
				return fail(err)
			}
			out[0] = cv
		}
		return out
	})
}

func isNumber(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || isFloat(k)
}

func isInt(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}

func isUint(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	default:
		return false
	}
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

// indirect follows pointers and interfaces down to a concrete value.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// goMember reads the field or method name of a Go value.
func goMember(v any, name string) (any, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, false
	}
	for _, n := range candidates(name) {
		if m := rv.MethodByName(n); m.IsValid() {
			return &goFunc{name: n, fn: m}, true
		}
		ev := indirect(rv)
		switch ev.Kind() {
		case reflect.Struct:
			if sf, ok := ev.Type().FieldByName(n); ok && sf.IsExported() {
				return fromGo(ev.FieldByIndex(sf.Index)), true
			}
		case reflect.Map:
			if ev.Type().Key().Kind() == reflect.String {
				if mv := ev.MapIndex(reflect.ValueOf(n).Convert(ev.Type().Key())); mv.IsValid() {
					return fromGo(mv), true
				}
			}
		}
	}
	return nil, false
}

// setGoMember assigns val to the exported field name of a Go pointer value.
func setGoMember(v any, name string, val any) (bool, error) {
	ev := indirect(reflect.ValueOf(v))
	if ev.Kind() != reflect.Struct {
		return false, nil
	}
	for _, n := range candidates(name) {
		sf, ok := ev.Type().FieldByName(n)
		if !ok || !sf.IsExported() {
			continue
		}
		f := ev.FieldByIndex(sf.Index)
		if !f.CanSet() {
			return false, nil
		}
		cv, err := convert(val, f.Type())
		if err != nil {
			return true, zerr.With(err, "field", n)
		}
		f.Set(cv)
		return true, nil
	}
	return false, nil
}
