package runtime

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

type builtin func(in *interp, args []any) (any, error)

var builtins = map[string]builtin{
	"print": func(in *interp, args []any) (any, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = toString(a)
		}
		_, err := fmt.Fprintln(in.class.Module.output(), strings.Join(parts, " "))
		return nil, err
	},
	"len": func(_ *interp, args []any) (any, error) {
		if len(args) != 1 {
			return nil, zerr.Wrap(ErrConversion, "len takes one argument")
		}
		rv := reflect.ValueOf(args[0])
		switch rv.Kind() {
		case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
			return int64(rv.Len()), nil
		}
		return nil, zerr.Wrap(ErrOperands, "len of "+toString(args[0]))
	},
	"str": func(_ *interp, args []any) (any, error) {
		if len(args) != 1 {
			return nil, zerr.Wrap(ErrConversion, "str takes one argument")
		}
		return toString(args[0]), nil
	},
}

// Builtins returns the names every script can reference without an import.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
