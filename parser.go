// parser.go — recursive-descent / Pratt parser for the business-rule
// language, producing compact S-expressions.
//
// The parser consumes the token stream from the indentation-sensitive lexer
// (lexer.go) and builds a Lisp-style S-expression AST.
//
// Node shapes. The AST is a tree of S-expressions: []any whose first element
// is a string tag. **This list is the most important reference.**
//
// Literals & identifiers:
//
//	("id",   string)
//	("int",  int64)
//	("num",  float64)
//	("str",  string)
//	("bool", bool)
//	("none")
//
// Operators / expressions:
//
//	("unop",  op, rhs)            // prefix "-" or "not"
//	("binop", op, lhs, rhs)       // "+","-","*","/","%", comparisons, "and","or","in"
//
// Property / call / index:
//
//	("call", callee, arg1, ...)   // args may be ("kw", ("str", name), value)
//	("get",  obj, ("str", name))  // obj.name
//	("idx",  obj, indexExpr)      // obj[expr]
//
// Collections:
//
//	("array", e1, e2, ...)
//	("map",   ("pair", keyExpr, value)*)
//
// Statements:
//
//	("block",  s1, s2, ...)
//	("assign", t1, ..., tn, value)          // n >= 1 targets, value last
//	("if",     ("pair", cond, thenBlk)..., elseBlk?)
//	("for",    ("id", var), iterExpr, bodyBlk, elseBlk?)
//	("break")
//	("class",  ("str", name), bodyBlk)      // body holds field defaults
//	("noop")                                // pass
//
// SPAN EMISSION INVARIANT
// -----------------------
// Every AST node is constructed through the mk* helpers, which atomically
// append exactly one span for that node. Spans are appended in strict
// post-order of the final AST (children first, then parent, left-to-right
// among siblings); multi-target assignment is kept *flat* so parse order and
// post-order coincide. ParseSExprWithSpans binds the recorded spans back to
// node paths via BuildSpanIndexPostOrder (spans.go).
package ruledbg

import (
	"fmt"
)

// S is the S-expression node type: a []any whose first element is the tag.
type S = []any

// L builds an S-expression node without span bookkeeping. Host code (e.g.
// the instrumenter) uses it for synthetic nodes that are re-rendered before
// they are ever executed.
func L(tag string, parts ...any) S { return append([]any{tag}, parts...) }

// ParseError reports a syntactic failure at a 1-based line and 0-based
// column.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Col+1, e.Msg)
}

// ParseSExpr parses rule source into an S-expression AST.
func ParseSExpr(src string) (S, error) {
	ast, _, err := ParseSExprWithSpans(src)
	return ast, err
}

// ParseSExprWithSpans parses rule source and returns the AST together with a
// sidecar SpanIndex resolving nodes back to source byte intervals.
func ParseSExprWithSpans(src string) (S, *SpanIndex, error) {
	toks, err := NewLexer(src).Tokenize()
	if err != nil {
		return nil, nil, err
	}
	p := &parser{toks: toks}
	ast, err := p.parseProgram()
	if err != nil {
		return nil, nil, err
	}
	return ast, BuildSpanIndexPostOrder(ast, p.spans), nil
}

type parser struct {
	toks  []Token
	i     int
	prev  Token
	spans []Span
}

func (p *parser) cur() Token  { return p.toks[p.i] }
func (p *parser) peek() Token {
	if p.i+1 < len(p.toks) {
		return p.toks[p.i+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() Token {
	t := p.toks[p.i]
	if t.Type != EOF {
		p.i++
	}
	p.prev = t
	return t
}

func (p *parser) check(tt TokenType) bool { return p.cur().Type == tt }

func (p *parser) match(tt TokenType) bool {
	if p.check(tt) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(tt TokenType, what string) (Token, error) {
	if p.check(tt) {
		return p.advance(), nil
	}
	return Token{}, p.errHere("expected %s", what)
}

func (p *parser) errHere(format string, args ...any) *ParseError {
	t := p.cur()
	return &ParseError{Line: t.Line, Col: t.Col, Msg: fmt.Sprintf(format, args...)}
}

// mk appends one span and returns the node. All node construction funnels
// through here to preserve the post-order span invariant.
func (p *parser) mk(sp Span, tag string, parts ...any) S {
	p.spans = append(p.spans, sp)
	return append([]any{tag}, parts...)
}

// mkTok builds a node whose span is exactly one token.
func (p *parser) mkTok(tok Token, tag string, parts ...any) S {
	return p.mk(Span{StartByte: tok.StartByte, EndByte: tok.EndByte}, tag, parts...)
}

// mkFrom builds a node spanning from a start token through the most recently
// consumed token.
func (p *parser) mkFrom(start Token, tag string, parts ...any) S {
	return p.mk(Span{StartByte: start.StartByte, EndByte: p.prev.EndByte}, tag, parts...)
}

// ---------------------------------------------------------------------------
// statements
// ---------------------------------------------------------------------------

func (p *parser) parseProgram() (S, error) {
	first := p.cur()
	var stmts []any
	for !p.check(EOF) {
		if p.match(NEWLINE) {
			continue
		}
		st, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
	}
	return p.mkFrom(first, "block", stmts...), nil
}

func (p *parser) parseStmt() (S, error) {
	switch p.cur().Type {
	case IF:
		return p.parseIf()
	case FOR:
		return p.parseFor()
	case BREAK:
		tok := p.advance()
		if err := p.endStmt(); err != nil {
			return nil, err
		}
		return p.mkTok(tok, "break"), nil
	case PASS:
		tok := p.advance()
		if err := p.endStmt(); err != nil {
			return nil, err
		}
		return p.mkTok(tok, "noop"), nil
	case CLASS:
		return p.parseClass()
	default:
		return p.parseSimple()
	}
}

// endStmt consumes the statement terminator. EOF and DEDENT terminate a
// statement implicitly (last line of a file or block without a trailing
// newline).
func (p *parser) endStmt() error {
	if p.match(NEWLINE) {
		return nil
	}
	if p.check(EOF) || p.check(DEDENT) {
		return nil
	}
	return p.errHere("expected end of statement")
}

// parseSimple parses an expression statement or a (possibly multi-target)
// assignment: `a = b = expr` binds expr to both a and b.
func (p *parser) parseSimple() (S, error) {
	start := p.cur()
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.check(ASSIGN) {
		if err := p.endStmt(); err != nil {
			return nil, err
		}
		return first, nil
	}
	chain := []any{first}
	for p.match(ASSIGN) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		chain = append(chain, e)
	}
	if err := p.endStmt(); err != nil {
		return nil, err
	}
	for _, t := range chain[:len(chain)-1] {
		if !isAssignable(t.(S)) {
			return nil, &ParseError{Line: start.Line, Col: start.Col, Msg: "cannot assign to this expression"}
		}
	}
	return p.mkFrom(start, "assign", chain...), nil
}

func isAssignable(n S) bool {
	switch n[0].(string) {
	case "id", "get", "idx":
		return true
	}
	return false
}

func (p *parser) parseIf() (S, error) {
	start := p.advance() // IF
	var parts []any

	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	parts = append(parts, p.mkFrom(start, "pair", cond, body))

	for p.check(ELIF) {
		et := p.advance()
		c, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		b, err := p.parseSuite()
		if err != nil {
			return nil, err
		}
		parts = append(parts, p.mkFrom(et, "pair", c, b))
	}
	if p.check(ELSE) {
		p.advance()
		b, err := p.parseSuite()
		if err != nil {
			return nil, err
		}
		parts = append(parts, b)
	}
	return p.mkFrom(start, "if", parts...), nil
}

func (p *parser) parseFor() (S, error) {
	start := p.advance() // FOR
	nameTok, err := p.expect(ID, "loop variable name")
	if err != nil {
		return nil, err
	}
	loopVar := p.mkTok(nameTok, "id", nameTok.Lexeme)
	if _, err := p.expect(IN, "'in'"); err != nil {
		return nil, err
	}
	iter, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	parts := []any{loopVar, iter, body}
	if p.check(ELSE) {
		p.advance()
		orelse, err := p.parseSuite()
		if err != nil {
			return nil, err
		}
		parts = append(parts, orelse)
	}
	return p.mkFrom(start, "for", parts...), nil
}

func (p *parser) parseClass() (S, error) {
	start := p.advance() // CLASS
	nameTok, err := p.expect(ID, "class name")
	if err != nil {
		return nil, err
	}
	name := p.mkTok(nameTok, "str", nameTok.Lexeme)
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	return p.mkFrom(start, "class", name, body), nil
}

// parseSuite parses `: NEWLINE INDENT stmt+ DEDENT` into a block node.
func (p *parser) parseSuite() (S, error) {
	if _, err := p.expect(COLON, "':'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(NEWLINE, "newline after ':'"); err != nil {
		return nil, err
	}
	indent, err := p.expect(INDENT, "indented block")
	if err != nil {
		return nil, err
	}
	var stmts []any
	for !p.check(DEDENT) && !p.check(EOF) {
		if p.match(NEWLINE) {
			continue
		}
		st, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
	}
	p.match(DEDENT)
	if len(stmts) == 0 {
		return nil, p.errHere("empty block")
	}
	return p.mkFrom(indent, "block", stmts...), nil
}

// ---------------------------------------------------------------------------
// expressions (precedence climbing)
// ---------------------------------------------------------------------------

func (p *parser) parseExpr() (S, error) { return p.parseOr() }

func (p *parser) parseOr() (S, error) {
	start := p.cur()
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.check(OR) {
		p.advance()
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = p.mkFrom(start, "binop", "or", lhs, rhs)
	}
	return lhs, nil
}

func (p *parser) parseAnd() (S, error) {
	start := p.cur()
	lhs, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.check(AND) {
		p.advance()
		rhs, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		lhs = p.mkFrom(start, "binop", "and", lhs, rhs)
	}
	return lhs, nil
}

func (p *parser) parseNot() (S, error) {
	if p.check(NOT) {
		start := p.advance()
		rhs, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return p.mkFrom(start, "unop", "not", rhs), nil
	}
	return p.parseComparison()
}

var comparisonOps = map[TokenType]string{
	EQ:         "==",
	NEQ:        "!=",
	LESS:       "<",
	LESS_EQ:    "<=",
	GREATER:    ">",
	GREATER_EQ: ">=",
	IN:         "in",
}

func (p *parser) parseComparison() (S, error) {
	start := p.cur()
	lhs, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := comparisonOps[p.cur().Type]
		if !ok {
			return lhs, nil
		}
		p.advance()
		rhs, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		lhs = p.mkFrom(start, "binop", op, lhs, rhs)
	}
}

func (p *parser) parseAdditive() (S, error) {
	start := p.cur()
	lhs, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.check(PLUS) || p.check(MINUS) {
		op := "+"
		if p.cur().Type == MINUS {
			op = "-"
		}
		p.advance()
		rhs, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		lhs = p.mkFrom(start, "binop", op, lhs, rhs)
	}
	return lhs, nil
}

func (p *parser) parseMultiplicative() (S, error) {
	start := p.cur()
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.check(MULT) || p.check(DIV) || p.check(MOD) {
		var op string
		switch p.cur().Type {
		case MULT:
			op = "*"
		case DIV:
			op = "/"
		default:
			op = "%"
		}
		p.advance()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = p.mkFrom(start, "binop", op, lhs, rhs)
	}
	return lhs, nil
}

func (p *parser) parseUnary() (S, error) {
	if p.check(MINUS) {
		start := p.advance()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return p.mkFrom(start, "unop", "-", rhs), nil
	}
	return p.parsePostfix()
}

// parsePostfix handles chained calls, attribute access and indexing.
func (p *parser) parsePostfix() (S, error) {
	start := p.cur()
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Type {
		case LROUND:
			p.advance()
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			node = p.mkFrom(start, "call", append([]any{node}, args...)...)
		case PERIOD:
			p.advance()
			nameTok, err := p.expect(ID, "attribute name after '.'")
			if err != nil {
				return nil, err
			}
			name := p.mkTok(nameTok, "str", nameTok.Lexeme)
			node = p.mkFrom(start, "get", node, name)
		case LSQUARE:
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RSQUARE, "']'"); err != nil {
				return nil, err
			}
			node = p.mkFrom(start, "idx", node, idx)
		default:
			return node, nil
		}
	}
}

// parseCallArgs parses a comma-separated argument list after '('. Keyword
// arguments take the form name=value and become ("kw", ("str", name), value)
// children; they must follow all positional arguments.
func (p *parser) parseCallArgs() ([]any, error) {
	var args []any
	sawKeyword := false
	for !p.check(RROUND) {
		if p.check(ID) && p.peek().Type == ASSIGN {
			nameTok := p.advance()
			p.advance() // '='
			name := p.mkTok(nameTok, "str", nameTok.Lexeme)
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, p.mkFrom(nameTok, "kw", name, val))
			sawKeyword = true
		} else {
			if sawKeyword {
				return nil, p.errHere("positional argument after keyword argument")
			}
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		if !p.match(COMMA) {
			break
		}
	}
	if _, err := p.expect(RROUND, "')'"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *parser) parsePrimary() (S, error) {
	tok := p.cur()
	switch tok.Type {
	case ID:
		p.advance()
		return p.mkTok(tok, "id", tok.Lexeme), nil
	case INTEGER:
		p.advance()
		return p.mkTok(tok, "int", tok.Literal.(int64)), nil
	case NUMBER:
		p.advance()
		return p.mkTok(tok, "num", tok.Literal.(float64)), nil
	case STRING:
		p.advance()
		return p.mkTok(tok, "str", tok.Literal.(string)), nil
	case BOOLEAN:
		p.advance()
		return p.mkTok(tok, "bool", tok.Literal.(bool)), nil
	case NONE:
		p.advance()
		return p.mkTok(tok, "none"), nil
	case LROUND:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RROUND, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case LSQUARE:
		return p.parseArray()
	case LCURLY:
		return p.parseMap()
	}
	return nil, p.errHere("unexpected token %q", tok.Lexeme)
}

func (p *parser) parseArray() (S, error) {
	start := p.advance() // '['
	var items []any
	for !p.check(RSQUARE) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, e)
		if !p.match(COMMA) {
			break
		}
	}
	if _, err := p.expect(RSQUARE, "']'"); err != nil {
		return nil, err
	}
	return p.mkFrom(start, "array", items...), nil
}

func (p *parser) parseMap() (S, error) {
	start := p.advance() // '{'
	var pairs []any
	for !p.check(RCURLY) {
		kt := p.cur()
		k, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(COLON, "':' in map literal"); err != nil {
			return nil, err
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p.mkFrom(kt, "pair", k, v))
		if !p.match(COMMA) {
			break
		}
	}
	if _, err := p.expect(RCURLY, "'}'"); err != nil {
		return nil, err
	}
	return p.mkFrom(start, "map", pairs...), nil
}
