package transform

import (
	"fmt"
	"slices"

	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/dslhost/internal/host/compiler"
	"go.trai.ch/zerr"
)

// BlockToArguments moves the block of the named macros into their
// argument list:
//
//	when:              when(a > b, notify("x"), done)
//	    a > b
//	    notify "x"
//	    done
type BlockToArguments struct {
	names []string
}

// NewBlockToArguments returns a transformer for the named macros.
func NewBlockToArguments(names ...string) (*BlockToArguments, error) {
	if len(names) == 0 {
		return nil, zerr.With(zerr.Wrap(domain.ErrTransformerArgs, "block to arguments"), "transformer", "BlockToArguments")
	}
	return &BlockToArguments{names: slices.Clone(names)}, nil
}

// Transform implements Transformer.
func (t *BlockToArguments) Transform(unit *ast.Module) error {
	var err error
	ast.Inspect(unit, func(n ast.Node) bool {
		if err != nil {
			return false
		}
		if m, ok := n.(*ast.MacroStatement); ok {
			err = t.Apply(m)
		}
		return true
	})
	return err
}

// Apply rewrites a single macro statement when its name was selected.
// The block is cleared on success.
func (t *BlockToArguments) Apply(m *ast.MacroStatement) error {
	if !slices.Contains(t.names, m.Name) || m.Body == nil {
		return nil
	}
	args, err := blockArguments(m.Body)
	if err != nil {
		return err
	}
	m.Args = append(m.Args, args...)
	m.Body = nil
	return nil
}

func blockArguments(b *ast.Block) ([]ast.Expr, error) {
	args := make([]ast.Expr, 0, len(b.Stmts))
	for _, s := range b.Stmts {
		switch st := s.(type) {
		case *ast.ExpressionStatement:
			args = append(args, st.X)
		case *ast.MacroStatement:
			args = append(args, macroExpr(st))
		default:
			return nil, compiler.Errorf(s.Pos(), "cannot transform block with %s into argument", kind(s))
		}
	}
	return args, nil
}

// macroExpr turns a nested macro into a reference when it is bare and
// into an invocation otherwise.
func macroExpr(m *ast.MacroStatement) ast.Expr {
	if len(m.Args) == 0 && m.Body.IsEmpty() {
		return ast.Ref(m.Pos(), m.Name)
	}
	args := slices.Clone(m.Args)
	if !m.Body.IsEmpty() {
		args = append(args, ast.Closure(m.Body))
	}
	return ast.Call(m.Pos(), ast.Ref(m.Pos(), m.Name), args...)
}

func kind(n ast.Node) string {
	return fmt.Sprintf("%T", n)[len("*ast."):]
}

// MacroBlockToParameters rewrites the direct statements of the named
// macros into arguments. Nested macros become invocations and expression
// statements their expression; other statements are dropped with the block.
type MacroBlockToParameters struct {
	names []string
}

// NewMacroBlockToParameters returns a transformer for the named macros.
func NewMacroBlockToParameters(names ...string) (*MacroBlockToParameters, error) {
	if len(names) == 0 {
		return nil, zerr.With(zerr.Wrap(domain.ErrTransformerArgs, "macro block to parameters"), "transformer", "MacroBlockToParameters")
	}
	return &MacroBlockToParameters{names: slices.Clone(names)}, nil
}

// Transform implements Transformer.
func (t *MacroBlockToParameters) Transform(unit *ast.Module) error {
	ast.Inspect(unit, func(n ast.Node) bool {
		m, ok := n.(*ast.MacroStatement)
		if !ok || !slices.Contains(t.names, m.Name) || m.Body == nil {
			return true
		}
		for _, s := range m.Body.Stmts {
			switch st := s.(type) {
			case *ast.MacroStatement:
				m.Args = append(m.Args, ast.Call(st.Pos(), ast.Ref(st.Pos(), st.Name), st.Args...))
			case *ast.ExpressionStatement:
				m.Args = append(m.Args, st.X)
			}
		}
		m.Body = nil
		return false
	})
	return nil
}
