package ast

import (
	"strconv"
	"strings"
)

const indentUnit = "    "

// Format renders node as host-language source. Class members render in
// declaration syntax that the parser does not accept; the output is meant
// for inspection and golden tests.
func Format(node Node) string {
	p := &printer{}
	p.node(node)
	return p.String()
}

type printer struct {
	strings.Builder
	depth int
}

func (p *printer) line(s string) {
	p.WriteString(strings.Repeat(indentUnit, p.depth))
	p.WriteString(s)
	p.WriteByte('\n')
}

func (p *printer) indented(f func()) {
	p.depth++
	f()
	p.depth--
}

//nolint:cyclop // one case per declaration kind
func (p *printer) node(node Node) {
	switch n := node.(type) {
	case *Module:
		for _, imp := range n.Imports {
			p.node(imp)
		}
		for _, c := range n.Classes {
			p.node(c)
		}
		if n.Globals != nil {
			p.stmts(n.Globals)
		}
	case *Import:
		if n.From != "" {
			p.line("import " + n.Namespace + " from " + strconv.Quote(n.From))
			return
		}
		p.line("import " + n.Namespace)
	case *ClassDefinition:
		bases := make([]string, len(n.BaseTypes))
		for i, b := range n.BaseTypes {
			bases[i] = b.Name
		}
		p.line("class " + n.Name + "(" + strings.Join(bases, ", ") + "):")
		p.indented(func() {
			if len(n.Members) == 0 {
				p.line("pass")
			}
			for _, m := range n.Members {
				p.node(m)
			}
		})
	case *Method:
		prefix := "def "
		if n.Override {
			prefix = "override def "
		}
		p.line(prefix + n.Name + "(" + params(n.Params) + "):")
		p.body(n.Body)
	case *Constructor:
		p.line("def constructor(" + params(n.Params) + "):")
		p.body(n.Body)
	case *Field:
		if n.Initializer == nil {
			p.line(n.Name)
			return
		}
		p.line(n.Name + " = " + FormatExpr(n.Initializer))
	case *Property:
		p.line(n.Name + ":")
		p.indented(func() {
			p.line("get:")
			p.body(n.Getter)
		})
	case *Block:
		p.stmts(n)
	case Stmt:
		p.stmt(n)
	case Expr:
		p.WriteString(FormatExpr(n))
	}
}

func (p *printer) body(b *Block) {
	p.indented(func() {
		if b.IsEmpty() {
			p.line("pass")
			return
		}
		p.stmts(b)
	})
}

func (p *printer) stmts(b *Block) {
	for _, s := range b.Stmts {
		p.stmt(s)
	}
}

func (p *printer) stmt(s Stmt) {
	switch n := s.(type) {
	case *ExpressionStatement:
		p.line(FormatExpr(n.X))
	case *MacroStatement:
		head := n.Name
		if len(n.Args) > 0 {
			head += " " + exprList(n.Args)
		}
		if n.Body == nil {
			p.line(head)
			return
		}
		p.line(head + ":")
		p.body(n.Body)
	case *ReturnStatement:
		if n.Value == nil {
			p.line("return")
			return
		}
		p.line("return " + FormatExpr(n.Value))
	case *IfStatement:
		p.line("if " + FormatExpr(n.Cond) + ":")
		p.body(n.Then)
		if n.Else != nil {
			p.line("else:")
			p.body(n.Else)
		}
	case *ForStatement:
		p.line("for " + n.Var + " in " + FormatExpr(n.Iter) + ":")
		p.body(n.Body)
	}
}

// FormatExpr renders a single expression on one line.
//
//nolint:cyclop // one case per expression kind
func FormatExpr(e Expr) string {
	switch n := e.(type) {
	case nil:
		return ""
	case *ReferenceExpression:
		return n.Name
	case *MemberReferenceExpression:
		return FormatExpr(n.Target) + "." + n.Name
	case *MethodInvocationExpression:
		return FormatExpr(n.Target) + "(" + exprList(n.Args) + ")"
	case *StringLiteral:
		return strconv.Quote(n.Value)
	case *IntegerLiteral:
		return strconv.FormatInt(n.Value, 10)
	case *FloatLiteral:
		s := strconv.FormatFloat(n.Value, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case *BoolLiteral:
		return strconv.FormatBool(n.Value)
	case *NullLiteral:
		return "null"
	case *SelfLiteral:
		return "self"
	case *SuperLiteral:
		return "super"
	case *ListLiteral:
		return "[" + exprList(n.Items) + "]"
	case *IndexExpression:
		return FormatExpr(n.Target) + "[" + FormatExpr(n.Index) + "]"
	case *BinaryExpression:
		return "(" + FormatExpr(n.Left) + " " + string(n.Op) + " " + FormatExpr(n.Right) + ")"
	case *UnaryExpression:
		if n.Op == OpNot {
			return "not " + FormatExpr(n.X)
		}
		return string(n.Op) + FormatExpr(n.X)
	case *BlockExpression:
		return formatClosure(n)
	}
	return "<?>"
}

func formatClosure(n *BlockExpression) string {
	var b strings.Builder
	b.WriteString("{")
	if len(n.Params) > 0 {
		b.WriteString(" " + params(n.Params) + " |")
	}
	if n.Body != nil {
		parts := make([]string, 0, len(n.Body.Stmts))
		for _, s := range n.Body.Stmts {
			parts = append(parts, strings.TrimSpace(inlineStmt(s)))
		}
		if len(parts) > 0 {
			b.WriteString(" " + strings.Join(parts, "; "))
		}
	}
	b.WriteString(" }")
	return b.String()
}

// inlineStmt renders a statement nested in a closure. Compound statements
// keep their indented form joined onto one line.
func inlineStmt(s Stmt) string {
	p := &printer{}
	p.stmt(s)
	lines := strings.Split(strings.TrimRight(p.String(), "\n"), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, " ")
}

func exprList(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = FormatExpr(e)
	}
	return strings.Join(parts, ", ")
}

func params(ps []*Parameter) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		if p.Type != nil {
			parts[i] = p.Name + " as " + p.Type.Name
			continue
		}
		parts[i] = p.Name
	}
	return strings.Join(parts, ", ")
}
