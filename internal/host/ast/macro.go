package ast

// MacroContext is the scope a macro statement is expanded in.
type MacroContext struct {
	Module *Module
	// Class is nil for statements that are still module globals.
	Class *ClassDefinition
	// Member is the method, constructor or property holding the statement.
	Member Member
}

// Macro expands a macro statement into its replacement. Returning a nil
// statement removes the macro from its block.
type Macro func(mc *MacroContext, m *MacroStatement) (Stmt, error)

// Assign returns the statement `target = value`.
func Assign(target, value Expr) *ExpressionStatement {
	return ExprStmt(&BinaryExpression{Loc: At(target.Pos()), Op: OpAssign, Left: target, Right: value})
}

// Return returns `return value`.
func Return(value Expr) *ReturnStatement {
	return &ReturnStatement{Loc: At(value.Pos()), Value: value}
}
