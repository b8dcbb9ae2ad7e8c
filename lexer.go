// lexer.go — whitespace-sensitive lexer for the business-rule language.
//
// The rule language is indentation-delimited (Python-style). The lexer emits
// NEWLINE at the end of each logical line and INDENT/DEDENT tokens as the
// leading-whitespace column of a line grows or shrinks relative to an
// indentation stack. Newlines inside (), [] and {} are suppressed so
// multi-line collection literals read naturally. '#' starts a comment that
// runs to end of line; blank and comment-only lines produce no tokens.
//
// Every token carries 1-based Line, 0-based Col and the byte interval
// [StartByte, EndByte) it occupies, which the parser turns into sidecar
// spans (spans.go).
package ruledbg

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
	LROUND   // "("
	RROUND   // ")"
	LSQUARE  // "["
	RSQUARE  // "]"
	LCURLY   // "{"
	RCURLY   // "}"
	COLON    // ":"
	COMMA    // ","
	PERIOD   // "."

	// Operators
	PLUS
	MINUS
	MULT
	DIV
	MOD
	ASSIGN // "="
	EQ     // "=="
	NEQ    // "!="
	LESS
	LESS_EQ
	GREATER
	GREATER_EQ

	// Literals & identifiers
	ID
	STRING
	INTEGER
	NUMBER
	BOOLEAN
	NONE

	// Keywords
	AND
	OR
	NOT
	IN
	IF
	ELIF
	ELSE
	FOR
	BREAK
	CLASS
	PASS
)

// Token is a lexical token with optional literal value.
type Token struct {
	Type      TokenType
	Lexeme    string
	Literal   interface{} // parsed value for STRING/INTEGER/NUMBER/BOOLEAN
	Line      int         // 1-based
	Col       int         // 0-based
	StartByte int
	EndByte   int
}

var keywords = map[string]TokenType{
	"True":  BOOLEAN,
	"False": BOOLEAN,
	"None":  NONE,
	"and":   AND,
	"or":    OR,
	"not":   NOT,
	"in":    IN,
	"if":    IF,
	"elif":  ELIF,
	"else":  ELSE,
	"for":   FOR,
	"break": BREAK,
	"class": CLASS,
	"pass":  PASS,
}

// LexError reports a lexical failure at a 1-based line and 0-based column.
type LexError struct {
	Line int
	Col  int
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %d:%d: %s", e.Line, e.Col+1, e.Msg)
}

// Lexer scans rule source into tokens.
type Lexer struct {
	src  string
	pos  int // next byte to read
	line int
	col  int // 0-based column of pos

	indents  []int // indentation stack; always starts with 0
	brackets int   // () [] {} nesting depth; newlines suppressed when > 0
	atBOL    bool  // at beginning of a logical line
	toks     []Token
}

// NewLexer creates a lexer over src.
func NewLexer(src string) *Lexer {
	// Normalize line endings up front so offsets stay byte-accurate.
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	return &Lexer{src: src, line: 1, indents: []int{0}, atBOL: true}
}

// Tokenize scans the whole source. On failure it returns the tokens scanned
// so far plus a *LexError.
func (lx *Lexer) Tokenize() ([]Token, error) {
	for {
		tok, err := lx.next()
		if err != nil {
			return lx.toks, err
		}
		lx.toks = append(lx.toks, tok)
		if tok.Type == EOF {
			return lx.toks, nil
		}
	}
}

func (lx *Lexer) errf(format string, args ...interface{}) *LexError {
	return &LexError{Line: lx.line, Col: lx.col, Msg: fmt.Sprintf(format, args...)}
}

func (lx *Lexer) peek() byte {
	if lx.pos >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos]
}

func (lx *Lexer) peekAt(n int) byte {
	if lx.pos+n >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos+n]
}

func (lx *Lexer) advance() byte {
	c := lx.src[lx.pos]
	lx.pos++
	if c == '\n' {
		lx.line++
		lx.col = 0
	} else {
		lx.col++
	}
	return c
}

func (lx *Lexer) make(t TokenType, start int, lit interface{}) Token {
	lex := lx.src[start:lx.pos]
	return Token{
		Type:      t,
		Lexeme:    lex,
		Literal:   lit,
		Line:      lx.line,
		Col:       lx.col - len(lex),
		StartByte: start,
		EndByte:   lx.pos,
	}
}

// next produces the next token, handling indentation bookkeeping at the
// start of each logical line.
func (lx *Lexer) next() (Token, error) {
	if lx.atBOL && lx.brackets == 0 {
		if tok, emitted, err := lx.handleIndent(); err != nil {
			return Token{}, err
		} else if emitted {
			return tok, nil
		}
	}

	// Skip intra-line whitespace and comments.
	for {
		c := lx.peek()
		if c == ' ' || c == '\t' {
			lx.advance()
			continue
		}
		if c == '#' {
			for lx.peek() != '\n' && lx.peek() != 0 {
				lx.advance()
			}
			continue
		}
		break
	}

	start := lx.pos
	c := lx.peek()

	if c == 0 {
		// Close any pending dedents before EOF.
		if len(lx.indents) > 1 {
			lx.indents = lx.indents[:len(lx.indents)-1]
			return Token{Type: DEDENT, Line: lx.line, Col: 0, StartByte: lx.pos, EndByte: lx.pos}, nil
		}
		return Token{Type: EOF, Line: lx.line, Col: lx.col, StartByte: lx.pos, EndByte: lx.pos}, nil
	}

	if c == '\n' {
		lx.advance()
		if lx.brackets > 0 {
			return lx.next() // newline inside brackets is plain whitespace
		}
		lx.atBOL = true
		return Token{Type: NEWLINE, Lexeme: "\n", Line: lx.line - 1, Col: lx.col, StartByte: start, EndByte: lx.pos}, nil
	}

	switch {
	case isIdentStart(c):
		return lx.scanIdent(start), nil
	case c >= '0' && c <= '9':
		return lx.scanNumber(start)
	case c == '"' || c == '\'':
		return lx.scanString(start)
	}

	lx.advance()
	switch c {
	case '(':
		lx.brackets++
		return lx.make(LROUND, start, nil), nil
	case ')':
		lx.brackets--
		return lx.make(RROUND, start, nil), nil
	case '[':
		lx.brackets++
		return lx.make(LSQUARE, start, nil), nil
	case ']':
		lx.brackets--
		return lx.make(RSQUARE, start, nil), nil
	case '{':
		lx.brackets++
		return lx.make(LCURLY, start, nil), nil
	case '}':
		lx.brackets--
		return lx.make(RCURLY, start, nil), nil
	case ':':
		return lx.make(COLON, start, nil), nil
	case ',':
		return lx.make(COMMA, start, nil), nil
	case '.':
		return lx.make(PERIOD, start, nil), nil
	case '+':
		return lx.make(PLUS, start, nil), nil
	case '-':
		return lx.make(MINUS, start, nil), nil
	case '*':
		return lx.make(MULT, start, nil), nil
	case '/':
		return lx.make(DIV, start, nil), nil
	case '%':
		return lx.make(MOD, start, nil), nil
	case '=':
		if lx.peek() == '=' {
			lx.advance()
			return lx.make(EQ, start, nil), nil
		}
		return lx.make(ASSIGN, start, nil), nil
	case '!':
		if lx.peek() == '=' {
			lx.advance()
			return lx.make(NEQ, start, nil), nil
		}
		return Token{}, lx.errf("unexpected character %q", "!")
	case '<':
		if lx.peek() == '=' {
			lx.advance()
			return lx.make(LESS_EQ, start, nil), nil
		}
		return lx.make(LESS, start, nil), nil
	case '>':
		if lx.peek() == '=' {
			lx.advance()
			return lx.make(GREATER_EQ, start, nil), nil
		}
		return lx.make(GREATER, start, nil), nil
	}
	return Token{}, lx.errf("unexpected character %q", string(c))
}

// handleIndent measures the leading whitespace of the upcoming line and
// emits at most one INDENT or DEDENT token per call. Blank and comment-only
// lines are consumed without affecting the indentation stack.
func (lx *Lexer) handleIndent() (Token, bool, error) {
	for {
		mark := lx.pos
		width := 0
		for {
			switch lx.peek() {
			case ' ':
				width++
				lx.advance()
				continue
			case '\t':
				width += 4
				lx.advance()
				continue
			}
			break
		}
		c := lx.peek()
		if c == '\n' {
			lx.advance() // blank line
			continue
		}
		if c == '#' {
			for lx.peek() != '\n' && lx.peek() != 0 {
				lx.advance()
			}
			continue
		}
		if c == 0 {
			lx.atBOL = false
			return Token{}, false, nil // EOF path emits the dedents
		}

		top := lx.indents[len(lx.indents)-1]
		switch {
		case width > top:
			lx.indents = append(lx.indents, width)
			lx.atBOL = false
			return Token{Type: INDENT, Line: lx.line, Col: 0, StartByte: mark, EndByte: lx.pos}, true, nil
		case width < top:
			lx.indents = lx.indents[:len(lx.indents)-1]
			if lx.indents[len(lx.indents)-1] < width {
				return Token{}, false, lx.errf("unindent does not match any outer indentation level")
			}
			// Leave pos where it is: if further dedents are owed the next
			// call re-measures the same line and pops again.
			lx.pos = mark
			lx.col = 0
			return Token{Type: DEDENT, Line: lx.line, Col: 0, StartByte: mark, EndByte: mark}, true, nil
		default:
			lx.atBOL = false
			return Token{}, false, nil
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (lx *Lexer) scanIdent(start int) Token {
	for isIdentPart(lx.peek()) {
		lx.advance()
	}
	word := lx.src[start:lx.pos]
	if t, ok := keywords[word]; ok {
		switch t {
		case BOOLEAN:
			return lx.make(BOOLEAN, start, word == "True")
		default:
			return lx.make(t, start, nil)
		}
	}
	return lx.make(ID, start, nil)
}

func (lx *Lexer) scanNumber(start int) (Token, error) {
	for lx.peek() >= '0' && lx.peek() <= '9' {
		lx.advance()
	}
	isFloat := false
	if lx.peek() == '.' && lx.peekAt(1) >= '0' && lx.peekAt(1) <= '9' {
		isFloat = true
		lx.advance()
		for lx.peek() >= '0' && lx.peek() <= '9' {
			lx.advance()
		}
	}
	text := lx.src[start:lx.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Token{}, lx.errf("bad number literal %q", text)
		}
		return lx.make(NUMBER, start, f), nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return Token{}, lx.errf("bad integer literal %q", text)
	}
	return lx.make(INTEGER, start, n), nil
}

func (lx *Lexer) scanString(start int) (Token, error) {
	quote := lx.advance()
	var sb strings.Builder
	for {
		c := lx.peek()
		if c == 0 || c == '\n' {
			return Token{}, lx.errf("unterminated string literal")
		}
		lx.advance()
		if c == quote {
			return lx.make(STRING, start, sb.String()), nil
		}
		if c == '\\' {
			esc := lx.peek()
			if esc == 0 {
				return Token{}, lx.errf("unterminated string literal")
			}
			lx.advance()
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\':
				sb.WriteByte('\\')
			case '\'':
				sb.WriteByte('\'')
			case '"':
				sb.WriteByte('"')
			default:
				return Token{}, lx.errf("unsupported escape \\%s", string(esc))
			}
			continue
		}
		sb.WriteByte(c)
	}
}
