package engine

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/dslhost/internal/host/compiler"
	"go.trai.ch/dslhost/internal/host/parser"
	"go.trai.ch/dslhost/internal/host/runtime"
)

// StepFileReferences resolves `import file from` and `import namespaces
// from` directives. It runs right after parsing.
const StepFileReferences = "file-references"

const (
	importFile       = "file"
	importNamespaces = "namespaces"

	fileLibraryPrefix = "file:"
)

type compiledFile struct {
	modTime time.Time
	lib     *runtime.Library
}

// fileReferences compiles the scripts named by `import file from "x"` once
// per path and modification time and references them as libraries.
type fileReferences struct {
	engine *Engine

	mu    sync.Mutex
	files map[string]compiledFile
}

func (r *fileReferences) libraries() []*runtime.Library {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := make([]string, 0, len(r.files))
	for p := range r.files {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	out := make([]*runtime.Library, len(paths))
	for i, p := range paths {
		out[i] = r.files[p].lib
	}
	return out
}

func (r *fileReferences) step(ctx context.Context, ancestors []string) compiler.Step {
	return compiler.NewStep(StepFileReferences, func(c *compiler.Context) {
		for _, unit := range c.Units {
			r.resolve(ctx, c, unit, ancestors)
		}
	})
}

func (r *fileReferences) resolve(ctx context.Context, c *compiler.Context, unit *ast.Module, ancestors []string) {
	self := unit.Pos().File
	chain := append(slices.Clone(ancestors), self)

	var namespaces []string
	kept := unit.Imports[:0]
	for _, imp := range unit.Imports {
		if imp.From == "" {
			kept = append(kept, imp)
			continue
		}
		path := r.engine.CanonizeURL(filepath.Dir(self), imp.From)

		switch imp.Namespace {
		case importFile:
			if slices.Contains(chain, path) {
				c.Errors.Add(imp.Pos(), "recursive file reference: %s", strings.Join(append(chain, path), " -> "))
				continue
			}
			lib, err := r.compile(ctx, path, chain)
			if err != nil {
				c.Errors.AddError(imp.Pos(), err)
				continue
			}
			c.AddReference(lib)
		case importNamespaces:
			ns, err := r.namespacesOf(path)
			if err != nil {
				c.Errors.AddError(imp.Pos(), err)
				continue
			}
			namespaces = append(namespaces, ns...)
		default:
			c.Errors.Add(imp.Pos(), "cannot import %s from a file", imp.Namespace)
		}
	}
	unit.Imports = kept

	for _, ns := range namespaces {
		unit.AddImport(ns)
	}
}

func (r *fileReferences) compile(ctx context.Context, path string, chain []string) (*runtime.Library, error) {
	in, err := r.engine.storage.CreateInput(path)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	f, ok := r.files[path]
	r.mu.Unlock()
	if ok && f.modTime.Equal(in.ModTime) {
		return f.lib, nil
	}

	cc, err := r.engine.run(ctx, []string{path}, chain, compiler.CompileToMemory(), "")
	if err != nil {
		return nil, err
	}
	lib := runtime.ModuleLibrary(fileLibraryPrefix+path, cc.Module)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.files == nil {
		r.files = make(map[string]compiledFile)
	}
	r.files[path] = compiledFile{modTime: in.ModTime, lib: lib}
	return lib, nil
}

// namespacesOf parses the script at path and returns the namespaces it
// imports. The script itself is neither compiled nor referenced.
func (r *fileReferences) namespacesOf(path string) ([]string, error) {
	in, err := r.engine.storage.CreateInput(path)
	if err != nil {
		return nil, err
	}
	mod, err := parser.Parse(in.URL, in.Text)
	if err != nil {
		return nil, err
	}
	return compiler.Imports(mod), nil
}
