// Package ast declares the syntax tree of the host language.
//
// The hierarchy is closed: every node is defined in this package and
// belongs to exactly one of the Expr, Stmt or Member families. Nodes are
// mutable so compiler steps can rewrite a tree in place.
package ast

import "fmt"

// ----------------------------------------------------------------------------
// Interfaces

// Node is the interface implemented by all AST nodes.
type Node interface {
	Pos() Position
	aNode()
}

// Expr is the interface for all expression nodes.
type Expr interface {
	Node
	aExpr()
}

// Stmt is the interface for all statement nodes.
type Stmt interface {
	Node
	aStmt()
}

// Member is the interface for nodes declared inside a class.
type Member interface {
	Node
	MemberName() string
	aMember()
}

// ----------------------------------------------------------------------------
// Positions

// Position is a location in a source file. Lines and columns are 1-based.
type Position struct {
	File string
	Line int
	Col  int
}

// String formats the position as file(line,col).
func (p Position) String() string {
	if p.Line == 0 {
		return p.File
	}
	return fmt.Sprintf("%s(%d,%d)", p.File, p.Line, p.Col)
}

// Loc is embedded in every node and carries its source position.
type Loc struct {
	At Position
}

// Pos returns the position of the first token of the node.
func (l Loc) Pos() Position { return l.At }

func (Loc) aNode() {}

// At returns a Loc for the given position.
func At(p Position) Loc { return Loc{At: p} }

type exprNode struct{}

func (exprNode) aExpr() {}

type stmtNode struct{}

func (stmtNode) aStmt() {}

type memberNode struct{}

func (memberNode) aMember() {}

// ----------------------------------------------------------------------------
// Modules and declarations

// Module is one compiled source unit.
type Module struct {
	Loc
	// Name is the unit's canonical name, the file name without extension.
	Name    string
	Imports []*Import
	Classes []*ClassDefinition
	// Globals holds top-level statements not yet placed in a method.
	Globals *Block
}

// NewModule returns an empty module for the given file.
func NewModule(name, file string) *Module {
	pos := Position{File: file}
	return &Module{Loc: At(pos), Name: name, Globals: &Block{Loc: At(pos)}}
}

// Class returns the class with the given name, or nil.
func (m *Module) Class(name string) *ClassDefinition {
	for _, c := range m.Classes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// AddImport adds an import for namespace unless one is already present.
func (m *Module) AddImport(namespace string) {
	for _, imp := range m.Imports {
		if imp.Namespace == namespace && imp.From == "" {
			return
		}
	}
	m.Imports = append(m.Imports, &Import{Loc: m.Loc, Namespace: namespace})
}

// Import is `import ns` or `import ns from "path"`.
type Import struct {
	Loc
	Namespace string
	From      string
}

// ClassDefinition declares a class.
type ClassDefinition struct {
	Loc
	Name      string
	BaseTypes []*TypeReference
	Members   []Member
}

// Member returns the first member with the given name, or nil.
func (c *ClassDefinition) Member(name string) Member {
	for _, m := range c.Members {
		if m.MemberName() == name {
			return m
		}
	}
	return nil
}

// Constructors returns the class constructors in declaration order.
func (c *ClassDefinition) Constructors() []*Constructor {
	var ctors []*Constructor
	for _, m := range c.Members {
		if ctor, ok := m.(*Constructor); ok {
			ctors = append(ctors, ctor)
		}
	}
	return ctors
}

// TypeReference names a type.
type TypeReference struct {
	Loc
	Name string
}

// Parameter is a method, constructor or closure parameter.
type Parameter struct {
	Loc
	Name string
	// Type is nil for untyped parameters.
	Type *TypeReference
}

// Method declares a method.
type Method struct {
	Loc
	memberNode
	Name     string
	Params   []*Parameter
	Body     *Block
	Override bool
}

// MemberName implements Member.
func (m *Method) MemberName() string { return m.Name }

// ConstructorName is the member name shared by all constructors.
const ConstructorName = "constructor"

// Constructor declares a constructor.
type Constructor struct {
	Loc
	memberNode
	Params []*Parameter
	Body   *Block
}

// MemberName implements Member.
func (*Constructor) MemberName() string { return ConstructorName }

// Field declares a field with an optional initializer.
type Field struct {
	Loc
	memberNode
	Name        string
	Initializer Expr
}

// MemberName implements Member.
func (f *Field) MemberName() string { return f.Name }

// Property declares a read-only property.
type Property struct {
	Loc
	memberNode
	Name   string
	Getter *Block
}

// MemberName implements Member.
func (p *Property) MemberName() string { return p.Name }

// ----------------------------------------------------------------------------
// Statements

// Block is an ordered statement list.
type Block struct {
	Loc
	Stmts []Stmt
}

// IsEmpty reports whether the block has no statements.
func (b *Block) IsEmpty() bool { return b == nil || len(b.Stmts) == 0 }

// Add appends s to the block.
func (b *Block) Add(s Stmt) { b.Stmts = append(b.Stmts, s) }

// ExpressionStatement evaluates an expression for its effect.
type ExpressionStatement struct {
	Loc
	stmtNode
	X Expr
}

// MacroStatement is a pseudo-call: `name arg, arg` optionally followed by a block.
type MacroStatement struct {
	Loc
	stmtNode
	Name string
	Args []Expr
	// Body is nil when the macro has no block.
	Body *Block
}

// ReturnStatement returns from the enclosing method or closure.
type ReturnStatement struct {
	Loc
	stmtNode
	// Value is nil for a bare return.
	Value Expr
}

// IfStatement is a conditional with an optional else block.
type IfStatement struct {
	Loc
	stmtNode
	Cond Expr
	Then *Block
	Else *Block
}

// ForStatement iterates over a list.
type ForStatement struct {
	Loc
	stmtNode
	Var  string
	Iter Expr
	Body *Block
}

// ----------------------------------------------------------------------------
// Expressions

// ReferenceExpression is a bare or dotted identifier.
type ReferenceExpression struct {
	Loc
	exprNode
	Name string
}

// MemberReferenceExpression is `target.name`.
type MemberReferenceExpression struct {
	Loc
	exprNode
	Target Expr
	Name   string
}

// MethodInvocationExpression is `target(args)`.
type MethodInvocationExpression struct {
	Loc
	exprNode
	Target Expr
	Args   []Expr
}

// StringLiteral is a quoted string.
type StringLiteral struct {
	Loc
	exprNode
	Value string
}

// IntegerLiteral is an integer.
type IntegerLiteral struct {
	Loc
	exprNode
	Value int64
}

// FloatLiteral is a floating point number.
type FloatLiteral struct {
	Loc
	exprNode
	Value float64
}

// BoolLiteral is true or false.
type BoolLiteral struct {
	Loc
	exprNode
	Value bool
}

// NullLiteral is null.
type NullLiteral struct {
	Loc
	exprNode
}

// SelfLiteral is the current instance.
type SelfLiteral struct {
	Loc
	exprNode
}

// SuperLiteral refers to the base type. Invoking it calls the base constructor.
type SuperLiteral struct {
	Loc
	exprNode
}

// ListLiteral is `[a, b]`.
type ListLiteral struct {
	Loc
	exprNode
	Items []Expr
}

// IndexExpression is `target[index]`.
type IndexExpression struct {
	Loc
	exprNode
	Target Expr
	Index  Expr
}

// BinaryOp is a binary operator.
type BinaryOp string

// Binary operators.
const (
	OpAssign BinaryOp = "="
	OpOr     BinaryOp = "or"
	OpAnd    BinaryOp = "and"
	OpEq     BinaryOp = "=="
	OpNe     BinaryOp = "!="
	OpLt     BinaryOp = "<"
	OpLe     BinaryOp = "<="
	OpGt     BinaryOp = ">"
	OpGe     BinaryOp = ">="
	OpAdd    BinaryOp = "+"
	OpSub    BinaryOp = "-"
	OpMul    BinaryOp = "*"
	OpDiv    BinaryOp = "/"
	OpMod    BinaryOp = "%"
)

// BinaryExpression is `left op right`. Assignment is a binary expression
// whose left side is a reference, member reference or index.
type BinaryExpression struct {
	Loc
	exprNode
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// UnaryOp is a prefix operator.
type UnaryOp string

// Unary operators.
const (
	OpNot UnaryOp = "not"
	OpNeg UnaryOp = "-"
)

// UnaryExpression is `op x`.
type UnaryExpression struct {
	Loc
	exprNode
	Op UnaryOp
	X  Expr
}

// BlockExpression is a closure: `{ a, b | stmt; stmt }`.
type BlockExpression struct {
	Loc
	exprNode
	Params []*Parameter
	Body   *Block
}

// ----------------------------------------------------------------------------
// Constructors used by compiler steps.

// Ref returns a reference expression at p.
func Ref(p Position, name string) *ReferenceExpression {
	return &ReferenceExpression{Loc: At(p), Name: name}
}

// Call returns an invocation of target at p.
func Call(p Position, target Expr, args ...Expr) *MethodInvocationExpression {
	return &MethodInvocationExpression{Loc: At(p), Target: target, Args: args}
}

// ExprStmt wraps x in an expression statement.
func ExprStmt(x Expr) *ExpressionStatement {
	return &ExpressionStatement{Loc: At(x.Pos()), X: x}
}

// Str returns a string literal at p.
func Str(p Position, v string) *StringLiteral {
	return &StringLiteral{Loc: At(p), Value: v}
}

// Closure wraps body in a parameterless block expression.
func Closure(body *Block) *BlockExpression {
	return &BlockExpression{Loc: body.Loc, Body: body}
}
