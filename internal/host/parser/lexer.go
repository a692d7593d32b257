// Package parser turns host-language source text into an ast.Module.
package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenType represents the kind of token.
type TokenType int

const (
	// Special
	EOF TokenType = iota
	ILLEGAL
	NEWLINE
	INDENT
	DEDENT

	// Punctuation
	LROUND   // "(" preceded by whitespace
	CLROUND  // "(" glued to the previous token (call)
	RROUND   // ")"
	LSQUARE  // "[" preceded by whitespace
	CLSQUARE // "[" glued to the previous token (index)
	RSQUARE  // "]"
	LCURLY   // "{"
	RCURLY   // "}"
	COLON    // ":"
	COMMA    // ","
	PERIOD   // "."
	SEMI     // ";"
	PIPE     // "|"

	// Operators
	PLUS
	MINUS
	MULT
	DIV
	MOD
	ASSIGN
	EQ
	NEQ
	LESS
	LESS_EQ
	GREATER
	GREATER_EQ

	// Literals & identifiers
	ID
	SYMBOL // "@name"
	STRING
	INTEGER
	FLOAT

	// Keywords
	IMPORT
	FROM
	IF
	ELSE
	FOR
	IN
	RETURN
	PASS
	AND
	OR
	NOT
	TRUE
	FALSE
	NULL
	SELF
	SUPER
)

var tokenNames = map[TokenType]string{
	EOF: "end of file", ILLEGAL: "illegal token", NEWLINE: "newline", INDENT: "indent", DEDENT: "dedent",
	LROUND: "(", CLROUND: "(", RROUND: ")", LSQUARE: "[", CLSQUARE: "[", RSQUARE: "]",
	LCURLY: "{", RCURLY: "}", COLON: ":", COMMA: ",", PERIOD: ".", SEMI: ";", PIPE: "|",
	PLUS: "+", MINUS: "-", MULT: "*", DIV: "/", MOD: "%", ASSIGN: "=", EQ: "==", NEQ: "!=",
	LESS: "<", LESS_EQ: "<=", GREATER: ">", GREATER_EQ: ">=",
	ID: "identifier", SYMBOL: "symbol", STRING: "string", INTEGER: "integer", FLOAT: "float",
}

// String returns a readable name for the token type.
func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	for k, v := range keywords {
		if v == t {
			return k
		}
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is a lexical token with optional literal value.
type Token struct {
	Type    TokenType
	Lexeme  string
	Literal any
	Line    int
	Col     int
}

var keywords = map[string]TokenType{
	"import": IMPORT,
	"from":   FROM,
	"if":     IF,
	"else":   ELSE,
	"for":    FOR,
	"in":     IN,
	"return": RETURN,
	"pass":   PASS,
	"and":    AND,
	"or":     OR,
	"not":    NOT,
	"true":   TRUE,
	"false":  FALSE,
	"null":   NULL,
	"self":   SELF,
	"super":  SUPER,
}

const tabWidth = 4

// Lexer scans source text into tokens, synthesizing NEWLINE, INDENT and
// DEDENT tokens from line structure. Line breaks inside brackets are ignored.
type Lexer struct {
	src    string
	cur    int
	line   int
	col    int
	tokens []Token
	indent []int
	depth  int
	errs   ErrorList
	file   string
}

// NewLexer creates a lexer for src. file is only used in error positions.
func NewLexer(file, src string) *Lexer {
	return &Lexer{
		src:    strings.ReplaceAll(src, "\r\n", "\n"),
		line:   1,
		col:    1,
		indent: []int{0},
		file:   file,
	}
}

// Scan tokenizes the whole input.
func (l *Lexer) Scan() ([]Token, error) {
	atLineStart := true
	for {
		if atLineStart && l.depth == 0 {
			if done := l.lineStart(); done {
				break
			}
			atLineStart = false
		}
		if l.cur >= len(l.src) {
			break
		}
		ch := l.src[l.cur]
		switch {
		case ch == '\n':
			l.advance()
			if l.depth == 0 {
				l.emitNewline()
				atLineStart = true
			}
		case ch == ' ' || ch == '\t' || ch == '\r':
			l.advance()
		case ch == '#':
			l.skipComment()
		default:
			l.scanToken()
		}
	}

	l.emitNewline()
	for len(l.indent) > 1 {
		l.indent = l.indent[:len(l.indent)-1]
		l.add(DEDENT, "", nil, l.line, l.col)
	}
	l.add(EOF, "", nil, l.line, l.col)

	return l.tokens, l.errs.Err()
}

// lineStart measures indentation and emits INDENT/DEDENT tokens.
// Blank and comment-only lines are skipped. It reports true at end of input.
func (l *Lexer) lineStart() bool {
	for {
		width := l.measureIndent()
		if l.cur >= len(l.src) {
			return true
		}
		switch l.src[l.cur] {
		case '\n':
			l.advance()
			continue
		case '#':
			l.skipComment()
			if l.cur < len(l.src) {
				l.advance()
			}
			continue
		}

		top := l.indent[len(l.indent)-1]
		switch {
		case width > top:
			l.indent = append(l.indent, width)
			l.add(INDENT, "", nil, l.line, 1)
		case width < top:
			for len(l.indent) > 1 && width < l.indent[len(l.indent)-1] {
				l.indent = l.indent[:len(l.indent)-1]
				l.add(DEDENT, "", nil, l.line, 1)
			}
			if width != l.indent[len(l.indent)-1] {
				l.errorf(l.line, 1, "inconsistent indentation")
			}
		}
		return false
	}
}

// measureIndent consumes leading blanks and returns their width.
func (l *Lexer) measureIndent() int {
	width := 0
	for l.cur < len(l.src) {
		switch l.src[l.cur] {
		case ' ':
			width++
		case '\t':
			width += tabWidth - width%tabWidth
		case '\r':
		default:
			return width
		}
		l.advance()
	}
	return width
}

func (l *Lexer) emitNewline() {
	if n := len(l.tokens); n == 0 || l.tokens[n-1].Type == NEWLINE || l.tokens[n-1].Type == INDENT || l.tokens[n-1].Type == DEDENT {
		return
	}
	l.add(NEWLINE, "", nil, l.line, l.col)
}

func (l *Lexer) skipComment() {
	for l.cur < len(l.src) && l.src[l.cur] != '\n' {
		l.advance()
	}
}

func (l *Lexer) advance() byte {
	ch := l.src[l.cur]
	l.cur++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

func (l *Lexer) peekAt(n int) byte {
	if l.cur+n >= len(l.src) {
		return 0
	}
	return l.src[l.cur+n]
}

func (l *Lexer) add(tt TokenType, lexeme string, lit any, line, col int) {
	l.tokens = append(l.tokens, Token{Type: tt, Lexeme: lexeme, Literal: lit, Line: line, Col: col})
}

func (l *Lexer) errorf(line, col int, format string, args ...any) {
	l.errs = append(l.errs, &Error{File: l.file, Line: line, Col: col, Msg: fmt.Sprintf(format, args...)})
}

// glued reports whether the previous source byte is not whitespace, so that
// `f(x)` lexes as a call while `f (x)` lexes as a macro argument.
func (l *Lexer) glued() bool {
	if l.cur == 0 {
		return false
	}
	switch l.src[l.cur-1] {
	case ' ', '\t', '\n', '\r':
		return false
	}
	n := len(l.tokens)
	if n == 0 {
		return false
	}
	switch l.tokens[n-1].Type {
	case ID, STRING, RROUND, RSQUARE, RCURLY, SELF, SUPER, SYMBOL:
		return true
	}
	return false
}

//nolint:cyclop,gocyclo // one case per token
func (l *Lexer) scanToken() {
	line, col := l.line, l.col
	start := l.cur
	ch := l.src[l.cur]

	single := func(tt TokenType) {
		l.advance()
		l.add(tt, l.src[start:l.cur], nil, line, col)
	}
	double := func(next byte, one, two TokenType) {
		l.advance()
		if l.peekAt(0) == next {
			l.advance()
			l.add(two, l.src[start:l.cur], nil, line, col)
			return
		}
		l.add(one, l.src[start:l.cur], nil, line, col)
	}

	switch {
	case ch == '(':
		tt := LROUND
		if l.glued() {
			tt = CLROUND
		}
		l.depth++
		single(tt)
	case ch == ')':
		l.closeBracket()
		single(RROUND)
	case ch == '[':
		tt := LSQUARE
		if l.glued() {
			tt = CLSQUARE
		}
		l.depth++
		single(tt)
	case ch == ']':
		l.closeBracket()
		single(RSQUARE)
	case ch == '{':
		l.depth++
		single(LCURLY)
	case ch == '}':
		l.closeBracket()
		single(RCURLY)
	case ch == ':':
		single(COLON)
	case ch == ',':
		single(COMMA)
	case ch == '.':
		single(PERIOD)
	case ch == ';':
		single(SEMI)
	case ch == '|':
		single(PIPE)
	case ch == '+':
		single(PLUS)
	case ch == '-':
		single(MINUS)
	case ch == '*':
		single(MULT)
	case ch == '/':
		single(DIV)
	case ch == '%':
		single(MOD)
	case ch == '=':
		double('=', ASSIGN, EQ)
	case ch == '<':
		double('=', LESS, LESS_EQ)
	case ch == '>':
		double('=', GREATER, GREATER_EQ)
	case ch == '!':
		if l.peekAt(1) == '=' {
			l.advance()
			l.advance()
			l.add(NEQ, "!=", nil, line, col)
			return
		}
		l.advance()
		l.errorf(line, col, "unexpected character %q", ch)
	case ch == '"' || ch == '\'':
		l.scanString(line, col)
	case isDigit(ch):
		l.scanNumber(line, col)
	case ch == '@' && isAlpha(l.peekAt(1)):
		l.advance()
		name := l.scanIdentifier()
		l.add(SYMBOL, "@"+name, name, line, col)
	case isAlpha(ch):
		name := l.scanIdentifier()
		if kw, ok := keywords[name]; ok {
			l.add(kw, name, nil, line, col)
			return
		}
		l.add(ID, name, name, line, col)
	default:
		l.advance()
		l.errorf(line, col, "unexpected character %q", ch)
	}
}

func (l *Lexer) closeBracket() {
	if l.depth > 0 {
		l.depth--
	}
}

func (l *Lexer) scanIdentifier() string {
	start := l.cur
	for l.cur < len(l.src) && isAlphaNum(l.src[l.cur]) {
		l.advance()
	}
	return l.src[start:l.cur]
}

// scanNumber reads an integer or float. A dot is only part of the number
// when a digit follows it, so `3.minutes` is INTEGER PERIOD ID.
func (l *Lexer) scanNumber(line, col int) {
	start := l.cur
	for l.cur < len(l.src) && isDigit(l.src[l.cur]) {
		l.advance()
	}
	if l.peekAt(0) == '.' && isDigit(l.peekAt(1)) {
		l.advance()
		for l.cur < len(l.src) && isDigit(l.src[l.cur]) {
			l.advance()
		}
		text := l.src[start:l.cur]
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			l.errorf(line, col, "invalid float %q", text)
		}
		l.add(FLOAT, text, v, line, col)
		return
	}
	text := l.src[start:l.cur]
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		l.errorf(line, col, "invalid integer %q", text)
	}
	l.add(INTEGER, text, v, line, col)
}

func (l *Lexer) scanString(line, col int) {
	start := l.cur
	del := l.advance()
	var out strings.Builder
	for l.cur < len(l.src) {
		ch := l.advance()
		switch ch {
		case del:
			l.add(STRING, l.src[start:l.cur], out.String(), line, col)
			return
		case '\n':
			l.errorf(line, col, "string was not terminated")
			return
		case '\\':
			if l.cur >= len(l.src) {
				continue
			}
			esc := l.advance()
			switch esc {
			case 'n':
				out.WriteByte('\n')
			case 't':
				out.WriteByte('\t')
			case 'r':
				out.WriteByte('\r')
			case '\\', '"', '\'':
				out.WriteByte(esc)
			default:
				l.errorf(l.line, l.col-2, "invalid escape sequence: \\%c", esc)
			}
		default:
			out.WriteByte(ch)
		}
	}
	l.errorf(line, col, "string was not terminated")
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' }
func isAlphaNum(b byte) bool {
	return isAlpha(b) || isDigit(b)
}
