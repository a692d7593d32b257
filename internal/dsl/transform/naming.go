package transform

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/dslhost/internal/host/compiler"
)

// PascalCase joins the underscore separated parts of name, upper-casing
// the first letter of each. Names without underscores are returned as is.
func PascalCase(name string) string {
	if !strings.Contains(name, "_") {
		return name
	}
	var b strings.Builder
	for part := range strings.SplitSeq(name, "_") {
		if part == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(part[size:])
	}
	return b.String()
}

// UnderscoreNaming rewrites every reference and member name written
// with underscores to PascalCase, so `send_mail` binds to SendMail.
var UnderscoreNaming = TransformerFunc(func(unit *ast.Module) error {
	ast.Inspect(unit, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.ReferenceExpression:
			x.Name = PascalCase(x.Name)
		case *ast.MemberReferenceExpression:
			x.Name = PascalCase(x.Name)
		}
		return true
	})
	return nil
})

// UseSymbols replaces every `@name` reference with the string "name".
var UseSymbols = TransformerFunc(func(unit *ast.Module) error {
	ast.Rewrite(unit, ast.RewriteFunc(func(n ast.Node) ast.Node {
		ref, ok := n.(*ast.ReferenceExpression)
		if !ok || !strings.HasPrefix(ref.Name, "@") {
			return n
		}
		return ast.Str(ref.Pos(), ref.Name[1:])
	}))
	return nil
})

// UnderscoreNamingStep returns UnderscoreNaming as a named compiler step.
func UnderscoreNamingStep() compiler.Step {
	return unitStep(StepUnderscoreNaming, UnderscoreNaming)
}

// UseSymbolsStep returns UseSymbols as a named compiler step.
func UseSymbolsStep() compiler.Step {
	return unitStep(StepUseSymbols, UseSymbols)
}

func unitStep(name string, t Transformer) compiler.Step {
	return compiler.NewStep(name, func(c *compiler.Context) {
		for _, unit := range c.Units {
			if err := t.Transform(unit); err != nil {
				c.Errors.AddError(unit.Pos(), err)
			}
		}
	})
}
