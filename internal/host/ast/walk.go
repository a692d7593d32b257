package ast

// A Visitor's Visit method is invoked for each node encountered by Walk.
// If the result visitor w is not nil, Walk visits each of the children of
// node with w, followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(node Node) (w Visitor)
}

// Walk traverses the tree rooted at node in depth-first order.
func Walk(v Visitor, node Node) {
	if v = v.Visit(node); v == nil {
		return
	}
	for _, child := range Children(node) {
		Walk(v, child)
	}
	v.Visit(nil)
}

type inspector func(Node) bool

func (f inspector) Visit(node Node) Visitor {
	if f(node) {
		return f
	}
	return nil
}

// Inspect traverses the tree rooted at node, calling f for every node.
// Children are skipped when f returns false.
func Inspect(node Node, f func(Node) bool) {
	Walk(inspector(func(n Node) bool {
		if n == nil {
			return true
		}
		return f(n)
	}), node)
}

// Children returns the direct, non-nil children of node in source order.
//
//nolint:cyclop,gocyclo // one case per node kind
func Children(node Node) []Node {
	var out []Node
	add := func(n Node) {
		if !isNil(n) {
			out = append(out, n)
		}
	}

	switch n := node.(type) {
	case *Module:
		for _, imp := range n.Imports {
			add(imp)
		}
		for _, c := range n.Classes {
			add(c)
		}
		add(n.Globals)
	case *ClassDefinition:
		for _, b := range n.BaseTypes {
			add(b)
		}
		for _, m := range n.Members {
			add(m)
		}
	case *Method:
		for _, p := range n.Params {
			add(p)
		}
		add(n.Body)
	case *Constructor:
		for _, p := range n.Params {
			add(p)
		}
		add(n.Body)
	case *Field:
		add(n.Initializer)
	case *Property:
		add(n.Getter)
	case *Parameter:
		add(n.Type)
	case *Block:
		for _, s := range n.Stmts {
			add(s)
		}
	case *ExpressionStatement:
		add(n.X)
	case *MacroStatement:
		for _, a := range n.Args {
			add(a)
		}
		add(n.Body)
	case *ReturnStatement:
		add(n.Value)
	case *IfStatement:
		add(n.Cond)
		add(n.Then)
		add(n.Else)
	case *ForStatement:
		add(n.Iter)
		add(n.Body)
	case *MemberReferenceExpression:
		add(n.Target)
	case *MethodInvocationExpression:
		add(n.Target)
		for _, a := range n.Args {
			add(a)
		}
	case *ListLiteral:
		for _, it := range n.Items {
			add(it)
		}
	case *IndexExpression:
		add(n.Target)
		add(n.Index)
	case *BinaryExpression:
		add(n.Left)
		add(n.Right)
	case *UnaryExpression:
		add(n.X)
	case *BlockExpression:
		for _, p := range n.Params {
			add(p)
		}
		add(n.Body)
	}
	return out
}

// isNil reports whether n is nil or a typed nil pointer.
func isNil(n Node) bool {
	switch v := n.(type) {
	case nil:
		return true
	case *Block:
		return v == nil
	case *TypeReference:
		return v == nil
	case *Parameter:
		return v == nil
	}
	return false
}

// Rewriter replaces nodes during a post-order walk.
type Rewriter interface {
	// Rewrite is called once the children of n have been rewritten. The
	// returned node replaces n when it fits the slot n occupied; returning
	// nil for a statement removes it from its block.
	Rewrite(n Node) Node
}

// RewriteFunc adapts a function to the Rewriter interface.
type RewriteFunc func(Node) Node

// Rewrite implements Rewriter.
func (f RewriteFunc) Rewrite(n Node) Node { return f(n) }

// Rewrite rewrites the tree rooted at node bottom-up and returns the
// replacement for node itself.
//
//nolint:cyclop,gocyclo // one case per node kind
func Rewrite(node Node, r Rewriter) Node {
	if isNil(node) {
		return node
	}

	switch n := node.(type) {
	case *Module:
		for _, c := range n.Classes {
			Rewrite(c, r)
		}
		rewriteBlock(n.Globals, r)
	case *ClassDefinition:
		members := n.Members[:0]
		for _, m := range n.Members {
			if nm, ok := Rewrite(m, r).(Member); ok {
				members = append(members, nm)
			}
		}
		n.Members = members
	case *Method:
		rewriteBlock(n.Body, r)
	case *Constructor:
		rewriteBlock(n.Body, r)
	case *Field:
		n.Initializer = rewriteExpr(n.Initializer, r)
	case *Property:
		rewriteBlock(n.Getter, r)
	case *Block:
		rewriteBlock(n, r)
	case *ExpressionStatement:
		n.X = rewriteExpr(n.X, r)
	case *MacroStatement:
		n.Args = rewriteExprs(n.Args, r)
		rewriteBlock(n.Body, r)
	case *ReturnStatement:
		n.Value = rewriteExpr(n.Value, r)
	case *IfStatement:
		n.Cond = rewriteExpr(n.Cond, r)
		rewriteBlock(n.Then, r)
		rewriteBlock(n.Else, r)
	case *ForStatement:
		n.Iter = rewriteExpr(n.Iter, r)
		rewriteBlock(n.Body, r)
	case *MemberReferenceExpression:
		n.Target = rewriteExpr(n.Target, r)
	case *MethodInvocationExpression:
		n.Target = rewriteExpr(n.Target, r)
		n.Args = rewriteExprs(n.Args, r)
	case *ListLiteral:
		n.Items = rewriteExprs(n.Items, r)
	case *IndexExpression:
		n.Target = rewriteExpr(n.Target, r)
		n.Index = rewriteExpr(n.Index, r)
	case *BinaryExpression:
		n.Left = rewriteExpr(n.Left, r)
		n.Right = rewriteExpr(n.Right, r)
	case *UnaryExpression:
		n.X = rewriteExpr(n.X, r)
	case *BlockExpression:
		rewriteBlock(n.Body, r)
	}

	return r.Rewrite(node)
}

func rewriteBlock(b *Block, r Rewriter) {
	if b == nil {
		return
	}
	stmts := make([]Stmt, 0, len(b.Stmts))
	for _, s := range b.Stmts {
		res := Rewrite(s, r)
		if res == nil {
			continue
		}
		if ns, ok := res.(Stmt); ok {
			stmts = append(stmts, ns)
			continue
		}
		stmts = append(stmts, s)
	}
	b.Stmts = stmts
}

func rewriteExpr(e Expr, r Rewriter) Expr {
	if e == nil {
		return nil
	}
	if ne, ok := Rewrite(e, r).(Expr); ok {
		return ne
	}
	return e
}

func rewriteExprs(es []Expr, r Rewriter) []Expr {
	for i, e := range es {
		es[i] = rewriteExpr(e, r)
	}
	return es
}
