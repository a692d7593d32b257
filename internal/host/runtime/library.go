package runtime

import (
	"reflect"
	"slices"
	"sort"

	"go.trai.ch/dslhost/internal/host/ast"
)

// Library is a named bundle of Go symbols scripts can reference: types,
// functions, values, extension methods and macros. A compiled module keeps
// its libraries by name so a persisted module can be relinked.
type Library struct {
	// Name identifies the library across processes.
	Name string
	// Namespace is the import path that brings the symbols into scope.
	Namespace string
	// Global libraries are in scope without an import.
	Global bool

	types      map[string]TypeDescriptor
	funcs      map[string]reflect.Value
	values     map[string]any
	extensions map[string][]reflect.Value
	macros     map[string]ast.Macro
}

// NewLibrary returns an empty library.
func NewLibrary(name, namespace string) *Library {
	return &Library{
		Name:       name,
		Namespace:  namespace,
		types:      make(map[string]TypeDescriptor),
		funcs:      make(map[string]reflect.Value),
		values:     make(map[string]any),
		extensions: make(map[string][]reflect.Value),
		macros:     make(map[string]ast.Macro),
	}
}

// AddType makes d available under its name.
func (l *Library) AddType(d TypeDescriptor) *Library {
	l.types[d.Name()] = d
	return l
}

// AddFunc makes the Go function fn callable as name.
func (l *Library) AddFunc(name string, fn any) *Library {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic("runtime: AddFunc requires a function, got " + v.Type().String())
	}
	l.funcs[name] = v
	return l
}

// AddValue makes v available as name.
func (l *Library) AddValue(name string, v any) *Library {
	l.values[name] = v
	return l
}

// AddExtension makes fn callable as a method on values assignable to its
// first parameter. Extensions without further parameters read like
// properties: `3.minutes`.
func (l *Library) AddExtension(name string, fn any) *Library {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.Type().NumIn() == 0 {
		panic("runtime: AddExtension requires a function with a receiver parameter")
	}
	l.extensions[name] = append(l.extensions[name], v)
	return l
}

// AddMacro registers a macro expanded at compile time.
func (l *Library) AddMacro(name string, m ast.Macro) *Library {
	l.macros[name] = m
	return l
}

// Type returns the type called name.
func (l *Library) Type(name string) (TypeDescriptor, bool) {
	d, ok := l.types[name]
	return d, ok
}

// Types returns the library types sorted by name.
func (l *Library) Types() []TypeDescriptor {
	names := make([]string, 0, len(l.types))
	for n := range l.types {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]TypeDescriptor, len(names))
	for i, n := range names {
		out[i] = l.types[n]
	}
	return out
}

// Macros returns the library macros.
func (l *Library) Macros() map[string]ast.Macro {
	return l.macros
}

// Has reports whether name resolves to a type, function or value.
func (l *Library) Has(name string) bool {
	_, ok := l.lookup(name)
	return ok
}

// Symbols returns the names of every type, function and value, sorted.
func (l *Library) Symbols() []string {
	var out []string
	for n := range l.types {
		out = append(out, n)
	}
	for n := range l.funcs {
		out = append(out, n)
	}
	for n := range l.values {
		out = append(out, n)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (l *Library) lookup(name string) (any, bool) {
	for _, n := range candidates(name) {
		if d, ok := l.types[n]; ok {
			return d, true
		}
		if fn, ok := l.funcs[n]; ok {
			return &goFunc{name: n, fn: fn}, true
		}
		if v, ok := l.values[n]; ok {
			return v, true
		}
	}
	return nil, false
}

// extension returns the extension name whose receiver accepts recv.
func (l *Library) extension(name string, recv any) (reflect.Value, bool) {
	for _, n := range candidates(name) {
		for _, fn := range l.extensions[n] {
			if convertible(recv, fn.Type().In(0)) {
				return fn, true
			}
		}
	}
	return reflect.Value{}, false
}

// Visible reports whether l is in scope for a unit importing imports.
func (l *Library) Visible(imports []string) bool {
	return l.Global || slices.Contains(imports, l.Namespace)
}

// ModuleLibrary exposes the classes of a compiled module as values of a
// global library, so another compilation can instantiate them by name.
func ModuleLibrary(name string, m *Module) *Library {
	lib := NewLibrary(name, "")
	lib.Global = true
	for _, c := range m.Classes() {
		lib.AddValue(c.Name, c)
	}
	return lib
}
