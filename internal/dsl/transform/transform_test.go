package transform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/dsl/transform"
	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/dslhost/internal/host/compiler"
	"go.trai.ch/dslhost/internal/host/parser"
)

func parse(t *testing.T, src string) *ast.Module {
	t.Helper()
	mod, err := parser.Parse("test.dsl", src)
	require.NoError(t, err)
	return mod
}

func exprs(es []ast.Expr) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = ast.FormatExpr(e)
	}
	return out
}

func macroAt(t *testing.T, mod *ast.Module, i int) *ast.MacroStatement {
	t.Helper()
	m, ok := mod.Globals.Stmts[i].(*ast.MacroStatement)
	require.True(t, ok, "statement %d is %T", i, mod.Globals.Stmts[i])
	return m
}

func TestBlockToArguments_ExpressionStatement(t *testing.T) {
	t.Parallel()

	arg := ast.Str(ast.Position{File: "test", Line: 1, Col: 1}, "arg1")
	m := &ast.MacroStatement{Name: "DoStuff", Body: &ast.Block{Stmts: []ast.Stmt{ast.ExprStmt(arg)}}}

	tr, err := transform.NewBlockToArguments("DoStuff")
	require.NoError(t, err)
	require.NoError(t, tr.Apply(m))

	require.Len(t, m.Args, 1)
	assert.Same(t, arg, m.Args[0])
	assert.True(t, m.Body.IsEmpty())
}

func TestBlockToArguments_NestedStatements(t *testing.T) {
	t.Parallel()

	mod := parse(t, `
when:
    a > b
    notify "x"
    done
    every 3:
        tick
`)
	tr, err := transform.NewBlockToArguments("when", "every")
	require.NoError(t, err)
	require.NoError(t, tr.Transform(mod))

	m := macroAt(t, mod, 0)
	assert.Nil(t, m.Body)
	assert.Equal(t, []string{"(a > b)", `notify("x")`, "done", "every(3, { tick })"}, exprs(m.Args))

	ref, ok := m.Args[2].(*ast.ReferenceExpression)
	require.True(t, ok)
	assert.Equal(t, "done", ref.Name)

	call, ok := m.Args[3].(*ast.MethodInvocationExpression)
	require.True(t, ok)
	_, ok = call.Args[1].(*ast.BlockExpression)
	assert.True(t, ok)
}

func TestBlockToArguments_Unselected(t *testing.T) {
	t.Parallel()

	mod := parse(t, "other:\n    1\n")
	tr, err := transform.NewBlockToArguments("when")
	require.NoError(t, err)
	require.NoError(t, tr.Transform(mod))

	m := macroAt(t, mod, 0)
	assert.Empty(t, m.Args)
	assert.False(t, m.Body.IsEmpty())
}

func TestBlockToArguments_UnsupportedStatement(t *testing.T) {
	t.Parallel()

	mod := parse(t, "when:\n    return 1\n")
	tr, err := transform.NewBlockToArguments("when")
	require.NoError(t, err)

	err = tr.Transform(mod)
	require.Error(t, err)
	assert.Equal(t, "test.dsl(2,5): cannot transform block with ReturnStatement into argument", err.Error())
}

func TestTransformers_RequireArguments(t *testing.T) {
	t.Parallel()

	_, err := transform.NewBlockToArguments()
	require.ErrorIs(t, err, domain.ErrTransformerArgs)

	_, err = transform.NewMacroBlockToParameters()
	require.ErrorIs(t, err, domain.ErrTransformerArgs)

	_, err = transform.NewStep()
	require.ErrorIs(t, err, domain.ErrTransformerArgs)
}

func TestMacroBlockToParameters(t *testing.T) {
	t.Parallel()

	mod := parse(t, `
rule "a":
    when x, 2
    42
    if x:
        pass
`)
	tr, err := transform.NewMacroBlockToParameters("rule")
	require.NoError(t, err)
	require.NoError(t, tr.Transform(mod))

	m := macroAt(t, mod, 0)
	assert.Nil(t, m.Body)
	assert.Equal(t, []string{`"a"`, "when(x, 2)", "42"}, exprs(m.Args))
}

func TestPascalCase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"foo_bar_baz", "FooBarBaz"},
		{"FooBarBaz", "FooBarBaz"},
		{"plain", "plain"},
		{"_leading__double_", "LeadingDouble"},
		{"send_mail", "SendMail"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := transform.PascalCase(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, transform.PascalCase(got))
		})
	}
}

func TestUnderscoreNaming(t *testing.T) {
	t.Parallel()

	mod := parse(t, "x = send_mail(to_whom.first_name, plain)\n")
	require.NoError(t, transform.UnderscoreNaming.Transform(mod))

	st, ok := mod.Globals.Stmts[0].(*ast.ExpressionStatement)
	require.True(t, ok)
	assert.Equal(t, "(x = SendMail(ToWhom.FirstName, plain))", ast.FormatExpr(st.X))
}

func TestUseSymbols(t *testing.T) {
	t.Parallel()

	mod := parse(t, "x = [@foo, bar]\ngo @home\n")
	require.NoError(t, transform.UseSymbols.Transform(mod))

	st, ok := mod.Globals.Stmts[0].(*ast.ExpressionStatement)
	require.True(t, ok)
	assert.Equal(t, `(x = ["foo", bar])`, ast.FormatExpr(st.X))
	assert.Equal(t, []string{`"home"`}, exprs(macroAt(t, mod, 1).Args))
}

func TestStep_ReportsErrors(t *testing.T) {
	t.Parallel()

	tr, err := transform.NewBlockToArguments("when")
	require.NoError(t, err)

	var seen []string
	record := transform.TransformerFunc(func(unit *ast.Module) error {
		seen = append(seen, unit.Name)
		return nil
	})
	step, err := transform.NewStep(record, tr)
	require.NoError(t, err)
	assert.Equal(t, transform.StepTransform, step.Name())

	pipeline := compiler.CompileToMemory()
	require.NoError(t, pipeline.InsertAfter(compiler.StepParse, step))

	c := compiler.New()
	c.Parameters().Pipeline = pipeline
	c.Parameters().AddInput("bad.dsl", "when:\n    for x in y:\n        pass\n")
	cc, err := c.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []string{"bad"}, seen)
	assert.Equal(t, "bad.dsl(2,5): cannot transform block with ForStatement into argument", cc.Errors.Error())
}

func TestAutoImport(t *testing.T) {
	t.Parallel()

	pipeline := compiler.CompileToMemory()
	require.NoError(t, pipeline.InsertAfter(compiler.StepParse, transform.AutoImport("a", "b")))
	require.NoError(t, pipeline.Remove(compiler.StepResolve))

	c := compiler.New()
	c.Parameters().Pipeline = pipeline
	c.Parameters().AddInput("u.dsl", "import a\n")
	cc, err := c.Run(t.Context())
	require.NoError(t, err)
	require.NoError(t, cc.Errors.Err())

	assert.Equal(t, []string{"a", "b"}, compiler.Imports(cc.Units[0]))
}
