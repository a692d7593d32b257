package synth

import (
	"maps"

	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/dslhost/internal/host/compiler"
)

// PropertyMacro returns a macro that turns `name expr` or `name: block`
// into a read-only property called property on the enclosing class.
func PropertyMacro(property string) ast.Macro {
	return func(mc *ast.MacroContext, m *ast.MacroStatement) (ast.Stmt, error) {
		var getter *ast.Block
		switch {
		case len(m.Args) == 1 && m.Body.IsEmpty():
			getter = &ast.Block{Loc: m.Loc, Stmts: []ast.Stmt{ast.Return(m.Args[0])}}
		case len(m.Args) == 0 && !m.Body.IsEmpty():
			getter = m.Body
		default:
			return nil, compiler.Errorf(m.Pos(), "%s must have a single expression argument or a block", m.Name)
		}
		if mc.Class == nil {
			return nil, compiler.Errorf(m.Pos(), "%s can only be used inside a class", m.Name)
		}

		mc.Class.Members = append(mc.Class.Members, &ast.Property{Loc: m.Loc, Name: property, Getter: getter})
		return nil, nil
	}
}

// PropertyExtension registers PropertyMacro under each macro name for the
// compilation, mapping macro names to property names.
func PropertyExtension(properties map[string]string) Extension {
	return func(c *compiler.Context, _ *ast.Module, _ *ast.ClassDefinition) error {
		macros := maps.Clone(c.Parameters.Macros)
		if macros == nil {
			macros = make(map[string]ast.Macro, len(properties))
		}
		for macro, property := range properties {
			if _, ok := macros[macro]; !ok {
				macros[macro] = PropertyMacro(property)
			}
		}
		c.Parameters.Macros = macros
		return nil
	}
}
