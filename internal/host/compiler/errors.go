package compiler

import (
	"errors"
	"fmt"
	"strings"

	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/dslhost/internal/host/parser"
	"go.trai.ch/dslhost/internal/host/runtime"
	"go.trai.ch/zerr"
)

var (
	// ErrAlreadyRun is returned when a compiler instance is run twice.
	ErrAlreadyRun = zerr.New("compiler instances are single-use")

	// ErrMissingReference is returned when a persisted module names a library that is not available.
	ErrMissingReference = zerr.New("module references an unknown library")

	// ErrNoOutputPath is returned when file output is requested without a path.
	ErrNoOutputPath = zerr.New("output path is required for file output")
)

// Error is one diagnostic reported by a compiler step.
type Error struct {
	Pos ast.Position
	Msg string
}

func (e *Error) Error() string {
	if e.Pos.File == "" && e.Pos.Line == 0 {
		return e.Msg
	}
	return e.Pos.String() + ": " + e.Msg
}

// Errorf returns a diagnostic at pos. Steps and transformers return it
// when the failure belongs to a specific node.
func Errorf(pos ast.Position, format string, args ...any) *Error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Errors is the ordered list of diagnostics of one compilation.
type Errors []*Error

func (l Errors) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Err returns nil for an empty list and the list otherwise.
func (l Errors) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Add records a diagnostic at pos.
func (l *Errors) Add(pos ast.Position, format string, args ...any) {
	*l = append(*l, Errorf(pos, format, args...))
}

// AddError records err. Compiler, parser and runtime errors keep their own
// positions; anything else is reported at pos.
func (l *Errors) AddError(pos ast.Position, err error) {
	var (
		list parser.ErrorList
		perr *parser.Error
		rerr *runtime.Error
		cerr *Error
	)
	switch {
	case errors.As(err, &cerr):
		*l = append(*l, cerr)
	case errors.As(err, &list):
		for _, e := range list {
			*l = append(*l, &Error{Pos: ast.Position{File: e.File, Line: e.Line, Col: e.Col}, Msg: e.Msg})
		}
	case errors.As(err, &perr):
		*l = append(*l, &Error{Pos: ast.Position{File: perr.File, Line: perr.Line, Col: perr.Col}, Msg: perr.Msg})
	case errors.As(err, &rerr):
		*l = append(*l, &Error{Pos: rerr.Pos, Msg: rerr.Err.Error()})
	default:
		*l = append(*l, &Error{Pos: pos, Msg: err.Error()})
	}
}
