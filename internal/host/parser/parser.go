package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.trai.ch/dslhost/internal/host/ast"
)

// Parse parses src into a module named after file.
// On failure it returns the partial module together with an ErrorList.
func Parse(file, src string) (*ast.Module, error) {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	mod := ast.NewModule(name, file)

	tokens, err := NewLexer(file, src).Scan()
	if err != nil {
		return mod, err
	}

	p := &Parser{tokens: tokens, file: file}
	p.module(mod)
	return mod, p.errs.Err()
}

// ParseExpr parses a single expression. It is used by tests and tooling.
func ParseExpr(src string) (ast.Expr, error) {
	tokens, err := NewLexer("<expr>", src).Scan()
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens, file: "<expr>"}
	var x ast.Expr
	p.guard(func() {
		x = p.expr(precAssign)
		p.skip(NEWLINE)
		p.expect(EOF)
	})
	return x, p.errs.Err()
}

// Parser is a recursive-descent parser with Pratt-style binary expressions.
type Parser struct {
	tokens []Token
	pos    int
	file   string
	errs   ErrorList
}

// bailout unwinds the current statement after a syntax error.
type bailout struct{}

func (p *Parser) peek() Token { return p.tokens[p.pos] }

func (p *Parser) peekAt(n int) Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) next() Token {
	tok := p.tokens[p.pos]
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) at(types ...TokenType) bool {
	tt := p.peek().Type
	for _, t := range types {
		if t == tt {
			return true
		}
	}
	return false
}

func (p *Parser) skip(tt TokenType) bool {
	if p.at(tt) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(tt TokenType) Token {
	if !p.at(tt) {
		p.fail(p.peek(), "expected %s, found %s", tt, describe(p.peek()))
	}
	return p.next()
}

func (p *Parser) fail(tok Token, format string, args ...any) {
	p.errs = append(p.errs, &Error{File: p.file, Line: tok.Line, Col: tok.Col, Msg: fmt.Sprintf(format, args...)})
	panic(bailout{})
}

func (p *Parser) position(tok Token) ast.Position {
	return ast.Position{File: p.file, Line: tok.Line, Col: tok.Col}
}

func describe(tok Token) string {
	if tok.Lexeme != "" {
		return fmt.Sprintf("%q", tok.Lexeme)
	}
	return tok.Type.String()
}

// guard runs f and turns a bailout into a recorded error.
func (p *Parser) guard(f func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, isBailout := r.(bailout); !isBailout {
				panic(r)
			}
			ok = false
		}
	}()
	f()
	return true
}

// sync skips to the start of the next statement.
func (p *Parser) sync() {
	depth := 0
	for !p.at(EOF) {
		switch p.peek().Type {
		case INDENT:
			depth++
		case DEDENT:
			if depth == 0 {
				return
			}
			depth--
		case NEWLINE:
			if depth == 0 {
				p.next()
				return
			}
		}
		p.next()
	}
}

// ----------------------------------------------------------------------------
// Module and statements

func (p *Parser) module(mod *ast.Module) {
	for !p.at(EOF) {
		if p.skip(NEWLINE) {
			continue
		}
		if p.at(INDENT) {
			p.errs = append(p.errs, &Error{File: p.file, Line: p.peek().Line, Col: p.peek().Col, Msg: "unexpected indent"})
			p.next()
			continue
		}
		if p.at(DEDENT) {
			p.next()
			continue
		}
		start := p.pos
		ok := p.guard(func() {
			if p.at(IMPORT) {
				mod.Imports = append(mod.Imports, p.importDecl())
				return
			}
			if s := p.statement(); s != nil {
				mod.Globals.Add(s)
			}
		})
		if !ok {
			p.sync()
		}
		if p.pos == start {
			p.next()
		}
	}
}

func (p *Parser) importDecl() *ast.Import {
	tok := p.expect(IMPORT)
	imp := &ast.Import{Loc: ast.At(p.position(tok)), Namespace: p.dotted()}
	if p.skip(FROM) {
		if p.at(STRING) {
			imp.From, _ = p.next().Literal.(string)
		} else {
			imp.From = p.dotted()
		}
	}
	p.endStatement()
	return imp
}

func (p *Parser) dotted() string {
	parts := []string{p.expect(ID).Lexeme}
	for p.skip(PERIOD) {
		parts = append(parts, p.expect(ID).Lexeme)
	}
	return strings.Join(parts, ".")
}

// endStatement consumes a statement terminator. A closing brace or a
// dedent also ends a statement but is left for the caller.
func (p *Parser) endStatement() {
	switch p.peek().Type {
	case NEWLINE, SEMI:
		p.next()
	case RCURLY, DEDENT, EOF:
	default:
		p.fail(p.peek(), "expected end of statement, found %s", describe(p.peek()))
	}
}

//nolint:cyclop // one case per statement keyword
func (p *Parser) statement() ast.Stmt {
	tok := p.peek()
	pos := ast.At(p.position(tok))

	switch tok.Type {
	case PASS:
		p.next()
		p.endStatement()
		return nil
	case RETURN:
		p.next()
		ret := &ast.ReturnStatement{Loc: pos}
		if !p.at(NEWLINE, SEMI, RCURLY, DEDENT, EOF) {
			ret.Value = p.expr(precAssign)
		}
		p.endStatement()
		return ret
	case IF:
		p.next()
		stmt := &ast.IfStatement{Loc: pos, Cond: p.expr(precAssign)}
		stmt.Then = p.suite()
		if p.skip(ELSE) {
			stmt.Else = p.suite()
		}
		return stmt
	case FOR:
		p.next()
		stmt := &ast.ForStatement{Loc: pos, Var: p.expect(ID).Lexeme}
		p.expect(IN)
		stmt.Iter = p.expr(precAssign)
		stmt.Body = p.suite()
		return stmt
	case ID:
		if p.isMacroStart() {
			return p.macro()
		}
	}

	x := p.expr(precAssign)
	p.endStatement()
	return &ast.ExpressionStatement{Loc: ast.At(x.Pos()), X: x}
}

// isMacroStart reports whether the identifier at the cursor begins a
// pseudo-call rather than an expression.
func (p *Parser) isMacroStart() bool {
	switch p.peekAt(1).Type {
	case ID, SYMBOL, STRING, INTEGER, FLOAT, TRUE, FALSE, NULL, SELF,
		LROUND, LSQUARE, NOT, COLON,
		NEWLINE, SEMI, RCURLY, DEDENT, EOF:
		return true
	}
	return false
}

func (p *Parser) macro() ast.Stmt {
	tok := p.expect(ID)
	m := &ast.MacroStatement{Loc: ast.At(p.position(tok)), Name: tok.Lexeme}
	if !p.at(COLON, NEWLINE, SEMI, RCURLY, DEDENT, EOF) {
		m.Args = append(m.Args, p.expr(precAssign))
		for p.skip(COMMA) {
			m.Args = append(m.Args, p.expr(precAssign))
		}
	}
	if p.at(COLON) {
		m.Body = p.suite()
		return m
	}
	p.endStatement()
	return m
}

// suite parses `: NEWLINE INDENT stmts DEDENT` or `: stmt` on one line.
func (p *Parser) suite() *ast.Block {
	colon := p.expect(COLON)
	block := &ast.Block{Loc: ast.At(p.position(colon))}

	if !p.skip(NEWLINE) {
		if s := p.statement(); s != nil {
			block.Add(s)
		}
		return block
	}

	p.expect(INDENT)
	for !p.at(DEDENT, EOF) {
		if p.skip(NEWLINE) {
			continue
		}
		if s := p.statement(); s != nil {
			block.Add(s)
		}
	}
	p.skip(DEDENT)
	return block
}

// ----------------------------------------------------------------------------
// Expressions

const (
	precAssign = iota + 1
	precOr
	precAnd
	precNot
	precCompare
	precSum
	precProduct
)

var binaryOps = map[TokenType]struct {
	op   ast.BinaryOp
	prec int
}{
	ASSIGN:     {ast.OpAssign, precAssign},
	OR:         {ast.OpOr, precOr},
	AND:        {ast.OpAnd, precAnd},
	EQ:         {ast.OpEq, precCompare},
	NEQ:        {ast.OpNe, precCompare},
	LESS:       {ast.OpLt, precCompare},
	LESS_EQ:    {ast.OpLe, precCompare},
	GREATER:    {ast.OpGt, precCompare},
	GREATER_EQ: {ast.OpGe, precCompare},
	PLUS:       {ast.OpAdd, precSum},
	MINUS:      {ast.OpSub, precSum},
	MULT:       {ast.OpMul, precProduct},
	DIV:        {ast.OpDiv, precProduct},
	MOD:        {ast.OpMod, precProduct},
}

func (p *Parser) expr(minPrec int) ast.Expr {
	left := p.unary(minPrec)
	for {
		tok := p.peek()
		info, ok := binaryOps[tok.Type]
		if !ok || info.prec < minPrec {
			return left
		}
		p.next()

		var right ast.Expr
		if info.op == ast.OpAssign {
			if !isAssignable(left) {
				p.fail(tok, "invalid assignment target %s", ast.FormatExpr(left))
			}
			right = p.expr(info.prec)
		} else {
			right = p.expr(info.prec + 1)
		}
		left = &ast.BinaryExpression{Loc: ast.At(left.Pos()), Op: info.op, Left: left, Right: right}
	}
}

func isAssignable(e ast.Expr) bool {
	switch e.(type) {
	case *ast.ReferenceExpression, *ast.MemberReferenceExpression, *ast.IndexExpression:
		return true
	}
	return false
}

func (p *Parser) unary(minPrec int) ast.Expr {
	tok := p.peek()
	switch tok.Type {
	case NOT:
		p.next()
		prec := precNot
		if minPrec > prec {
			prec = minPrec
		}
		return &ast.UnaryExpression{Loc: ast.At(p.position(tok)), Op: ast.OpNot, X: p.expr(prec)}
	case MINUS:
		p.next()
		return &ast.UnaryExpression{Loc: ast.At(p.position(tok)), Op: ast.OpNeg, X: p.unary(precProduct)}
	}
	return p.postfix(p.primary())
}

func (p *Parser) postfix(x ast.Expr) ast.Expr {
	for {
		tok := p.peek()
		switch tok.Type {
		case CLROUND:
			p.next()
			call := &ast.MethodInvocationExpression{Loc: ast.At(x.Pos()), Target: x, Args: p.exprList(RROUND)}
			p.expect(RROUND)
			x = call
		case PERIOD:
			p.next()
			name := p.expect(ID)
			x = &ast.MemberReferenceExpression{Loc: ast.At(x.Pos()), Target: x, Name: name.Lexeme}
		case CLSQUARE:
			p.next()
			idx := p.expr(precAssign)
			p.expect(RSQUARE)
			x = &ast.IndexExpression{Loc: ast.At(x.Pos()), Target: x, Index: idx}
		default:
			return x
		}
	}
}

func (p *Parser) exprList(end TokenType) []ast.Expr {
	var list []ast.Expr
	if p.at(end) {
		return list
	}
	list = append(list, p.expr(precAssign))
	for p.skip(COMMA) {
		if p.at(end) {
			break
		}
		list = append(list, p.expr(precAssign))
	}
	return list
}

//nolint:cyclop // one case per literal kind
func (p *Parser) primary() ast.Expr {
	tok := p.next()
	loc := ast.At(p.position(tok))

	switch tok.Type {
	case INTEGER:
		v, _ := tok.Literal.(int64)
		return &ast.IntegerLiteral{Loc: loc, Value: v}
	case FLOAT:
		v, _ := tok.Literal.(float64)
		return &ast.FloatLiteral{Loc: loc, Value: v}
	case STRING:
		v, _ := tok.Literal.(string)
		return &ast.StringLiteral{Loc: loc, Value: v}
	case TRUE, FALSE:
		return &ast.BoolLiteral{Loc: loc, Value: tok.Type == TRUE}
	case NULL:
		return &ast.NullLiteral{Loc: loc}
	case SELF:
		return &ast.SelfLiteral{Loc: loc}
	case SUPER:
		return &ast.SuperLiteral{Loc: loc}
	case ID, SYMBOL:
		return &ast.ReferenceExpression{Loc: loc, Name: tok.Lexeme}
	case LROUND, CLROUND:
		x := p.expr(precAssign)
		p.expect(RROUND)
		return x
	case LSQUARE, CLSQUARE:
		items := p.exprList(RSQUARE)
		p.expect(RSQUARE)
		return &ast.ListLiteral{Loc: loc, Items: items}
	case LCURLY:
		return p.closure(tok)
	}

	p.fail(tok, "unexpected %s", describe(tok))
	return nil
}

// closure parses `{ [params |] stmt; stmt }` after the opening brace.
func (p *Parser) closure(open Token) ast.Expr {
	be := &ast.BlockExpression{Loc: ast.At(p.position(open))}
	be.Params = p.closureParams()
	be.Body = &ast.Block{Loc: be.Loc}
	for !p.at(RCURLY, EOF) {
		if p.skip(SEMI) {
			continue
		}
		if s := p.statement(); s != nil {
			be.Body.Add(s)
		}
	}
	p.expect(RCURLY)
	return be
}

func (p *Parser) closureParams() []*ast.Parameter {
	i := 0
	for {
		if p.peekAt(i).Type != ID {
			return nil
		}
		i++
		switch p.peekAt(i).Type {
		case COMMA:
			i++
			continue
		case PIPE:
		default:
			return nil
		}
		break
	}

	var params []*ast.Parameter
	for !p.at(PIPE) {
		tok := p.expect(ID)
		params = append(params, &ast.Parameter{Loc: ast.At(p.position(tok)), Name: tok.Lexeme})
		p.skip(COMMA)
	}
	p.expect(PIPE)
	return params
}
