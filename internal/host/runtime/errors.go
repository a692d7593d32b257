package runtime

import (
	"errors"

	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/zerr"
)

var (
	// ErrUnknownName is returned when a reference resolves to nothing.
	ErrUnknownName = zerr.New("unknown name")

	// ErrUnknownType is returned when a class names a base type no library provides.
	ErrUnknownType = zerr.New("unknown type")

	// ErrDuplicateClass is returned when two classes of a module share a name.
	ErrDuplicateClass = zerr.New("class is already defined")

	// ErrNoMember is returned when a member lookup fails on a value.
	ErrNoMember = zerr.New("no such member")

	// ErrNotCallable is returned when a value that is not a function is invoked.
	ErrNotCallable = zerr.New("value is not callable")

	// ErrNoConstructor is returned when no constructor accepts the given arguments.
	ErrNoConstructor = zerr.New("no constructor matches the arguments")

	// ErrConversion is returned when a script value cannot be passed to Go.
	ErrConversion = zerr.New("cannot convert value")

	// ErrNotBound is returned when a Script hook is called before an instance was bound.
	ErrNotBound = zerr.New("script is not bound to an instance")

	// ErrOperands is returned when an operator does not support its operand types.
	ErrOperands = zerr.New("invalid operands")

	// ErrDivideByZero is returned on integer division by zero.
	ErrDivideByZero = zerr.New("division by zero")

	// ErrNotIterable is returned when a for statement iterates a non-list value.
	ErrNotIterable = zerr.New("value is not iterable")
)

// Error is a runtime failure at a source position.
type Error struct {
	Pos ast.Position
	Err error
}

func (e *Error) Error() string {
	if e.Pos.File == "" && e.Pos.Line == 0 {
		return e.Err.Error()
	}
	return e.Pos.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// errorAt attaches pos to err unless err already carries a position.
func errorAt(pos ast.Position, err error) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	return &Error{Pos: pos, Err: err}
}

func unknownName(name string) error {
	return zerr.With(zerr.Wrap(ErrUnknownName, name), "name", name)
}

func noMember(owner, name string) error {
	return zerr.With(zerr.Wrap(ErrNoMember, owner+"."+name), "member", name)
}
