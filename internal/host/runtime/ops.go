package runtime

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/zerr"
)

func operands(op ast.BinaryOp, l, r any) error {
	return zerr.Wrap(ErrOperands, fmt.Sprintf("%T %s %T", l, op, r))
}

// binary applies a non-short-circuit binary operator.
func binary(op ast.BinaryOp, l, r any) (any, error) {
	switch op {
	case ast.OpEq:
		return equal(l, r), nil
	case ast.OpNe:
		return !equal(l, r), nil
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		c, err := compare(l, r)
		if err != nil {
			return nil, operands(op, l, r)
		}
		switch op {
		case ast.OpLt:
			return c < 0, nil
		case ast.OpLe:
			return c <= 0, nil
		case ast.OpGt:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	default:
		return arith(op, l, r)
	}
}

//nolint:cyclop // concatenation, time and numeric arithmetic
func arith(op ast.BinaryOp, l, r any) (any, error) {
	if op == ast.OpAdd {
		ls, lok := l.(string)
		rs, rok := r.(string)
		switch {
		case lok:
			return ls + toString(r), nil
		case rok:
			return toString(l) + rs, nil
		}
		if ll, ok := l.([]any); ok {
			if rl, ok := r.([]any); ok {
				return append(append(make([]any, 0, len(ll)+len(rl)), ll...), rl...), nil
			}
		}
	}

	if t, ok := l.(time.Time); ok {
		switch rv := r.(type) {
		case time.Duration:
			switch op {
			case ast.OpAdd:
				return t.Add(rv), nil
			case ast.OpSub:
				return t.Add(-rv), nil
			}
		case time.Time:
			if op == ast.OpSub {
				return t.Sub(rv), nil
			}
		}
		return nil, operands(op, l, r)
	}

	lv, rv := reflect.ValueOf(l), reflect.ValueOf(r)
	if !lv.IsValid() || !rv.IsValid() || !isNumber(lv.Kind()) || !isNumber(rv.Kind()) {
		return nil, operands(op, l, r)
	}

	var (
		res any
		err error
	)
	if isFloat(lv.Kind()) || isFloat(rv.Kind()) {
		res, err = floatArith(op, toFloat(lv), toFloat(rv))
	} else {
		res, err = intArith(op, toInt(lv), toInt(rv))
	}
	if err != nil {
		return nil, err
	}
	if named := namedType(lv.Type(), rv.Type()); named != nil {
		return reflect.ValueOf(res).Convert(named).Interface(), nil
	}
	return res, nil
}

// namedType returns the defined numeric type a result keeps, such as
// time.Duration, when exactly one named type takes part.
func namedType(l, r reflect.Type) reflect.Type {
	ln, rn := l.PkgPath() != "", r.PkgPath() != ""
	switch {
	case ln && rn && l == r:
		return l
	case ln && !rn:
		return l
	case rn && !ln:
		return r
	}
	return nil
}

func intArith(op ast.BinaryOp, a, b int64) (any, error) {
	switch op {
	case ast.OpAdd:
		return a + b, nil
	case ast.OpSub:
		return a - b, nil
	case ast.OpMul:
		return a * b, nil
	case ast.OpDiv, ast.OpMod:
		if b == 0 {
			return nil, ErrDivideByZero
		}
		if op == ast.OpDiv {
			return a / b, nil
		}
		return a % b, nil
	}
	return nil, operands(op, a, b)
}

func floatArith(op ast.BinaryOp, a, b float64) (any, error) {
	switch op {
	case ast.OpAdd:
		return a + b, nil
	case ast.OpSub:
		return a - b, nil
	case ast.OpMul:
		return a * b, nil
	case ast.OpDiv:
		return a / b, nil
	case ast.OpMod:
		return math.Mod(a, b), nil
	}
	return nil, operands(op, a, b)
}

func toFloat(v reflect.Value) float64 {
	switch {
	case isInt(v.Kind()):
		return float64(v.Int())
	case isUint(v.Kind()):
		return float64(v.Uint())
	default:
		return v.Float()
	}
}

func toInt(v reflect.Value) int64 {
	if isUint(v.Kind()) {
		return int64(v.Uint()) //nolint:gosec // script integers are int64
	}
	return v.Int()
}

func negate(v any) (any, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || !isNumber(rv.Kind()) {
		return nil, zerr.Wrap(ErrOperands, fmt.Sprintf("-%T", v))
	}
	var res any
	if isFloat(rv.Kind()) {
		res = -toFloat(rv)
	} else {
		res = -toInt(rv)
	}
	if rv.Type().PkgPath() != "" {
		return reflect.ValueOf(res).Convert(rv.Type()).Interface(), nil
	}
	return res, nil
}

// equal compares numbers by value, uses an Equal method when the left
// operand has one, and falls back to deep equality.
func equal(l, r any) bool {
	if l == nil || r == nil {
		return isNil(l) && isNil(r)
	}
	if lo, ok := l.(*Object); ok {
		ro, ok := r.(*Object)
		return ok && lo == ro
	}

	lv, rv := reflect.ValueOf(l), reflect.ValueOf(r)
	if isNumber(lv.Kind()) && isNumber(rv.Kind()) {
		if isFloat(lv.Kind()) || isFloat(rv.Kind()) {
			return toFloat(lv) == toFloat(rv)
		}
		if isUint(lv.Kind()) && isUint(rv.Kind()) {
			return lv.Uint() == rv.Uint()
		}
		return toInt(lv) == toInt(rv)
	}
	if m := lv.MethodByName("Equal"); m.IsValid() {
		t := m.Type()
		if t.NumIn() == 1 && t.NumOut() == 1 && t.Out(0).Kind() == reflect.Bool && rv.Type().AssignableTo(t.In(0)) {
			return m.Call([]reflect.Value{rv})[0].Bool()
		}
	}
	return reflect.DeepEqual(l, r)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

// compare orders numbers, strings and values with a Compare method.
func compare(l, r any) (int, error) {
	lv, rv := reflect.ValueOf(l), reflect.ValueOf(r)
	if !lv.IsValid() || !rv.IsValid() {
		return 0, ErrOperands
	}
	if isNumber(lv.Kind()) && isNumber(rv.Kind()) {
		if isFloat(lv.Kind()) || isFloat(rv.Kind()) {
			return cmpOrdered(toFloat(lv), toFloat(rv)), nil
		}
		return cmpOrdered(toInt(lv), toInt(rv)), nil
	}
	if lv.Kind() == reflect.String && rv.Kind() == reflect.String {
		return cmpOrdered(lv.String(), rv.String()), nil
	}
	if m := lv.MethodByName("Compare"); m.IsValid() {
		t := m.Type()
		if t.NumIn() == 1 && t.NumOut() == 1 && t.Out(0).Kind() == reflect.Int && rv.Type().AssignableTo(t.In(0)) {
			return int(m.Call([]reflect.Value{rv})[0].Int()), nil
		}
	}
	return 0, ErrOperands
}

func cmpOrdered[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Truthy reports whether v counts as true in a condition.
func Truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	rv := reflect.ValueOf(v)
	switch {
	case isInt(rv.Kind()):
		return rv.Int() != 0
	case isUint(rv.Kind()):
		return rv.Uint() != 0
	case isFloat(rv.Kind()):
		return rv.Float() != 0
	}
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface, reflect.Func:
		return !rv.IsNil()
	default:
		return true
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case *Object:
		return x.class.Name
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []any:
		s := "["
		for i, item := range x {
			if i > 0 {
				s += ", "
			}
			s += toString(item)
		}
		return s + "]"
	default:
		return fmt.Sprint(v)
	}
}
