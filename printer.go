// printer.go — unparser for rule-language S-expressions.
//
// Renders an AST back to canonical rule source: 4-space indentation, double
// quoted strings, one statement per line. FormatExpr produces the
// single-line reconstruction used for step descriptions and instrumentation
// marker payloads; FormatSExpr renders whole programs.
//
// The printer is deterministic: pretty(parse(pretty(parse(src)))) equals
// pretty(parse(src)).
package ruledbg

import (
	"fmt"
	"strconv"
	"strings"
)

const indentUnit = "    "

// Pretty parses src and renders its canonical form.
func Pretty(src string) (string, error) {
	ast, err := ParseSExpr(src)
	if err != nil {
		return "", WrapErrorWithSource(err, src)
	}
	return FormatSExpr(ast), nil
}

// FormatSExpr renders a program or block node as full source text.
func FormatSExpr(n S) string {
	o := &out{b: &strings.Builder{}}
	o.stmts(n)
	return o.b.String()
}

// FormatExpr renders an expression or simple statement on a single line.
func FormatExpr(n S) string {
	switch n[0].(string) {
	case "assign":
		parts := make([]string, 0, len(n)-1)
		for _, c := range n[1:] {
			parts = append(parts, FormatExpr(c.(S)))
		}
		return strings.Join(parts, " = ")
	case "break":
		return "break"
	case "noop":
		return "pass"
	case "id":
		return n[1].(string)
	case "int":
		return strconv.FormatInt(n[1].(int64), 10)
	case "num":
		return strconv.FormatFloat(n[1].(float64), 'g', -1, 64)
	case "str":
		return strconv.Quote(n[1].(string))
	case "bool":
		if n[1].(bool) {
			return "True"
		}
		return "False"
	case "none":
		return "None"
	case "unop":
		op := n[1].(string)
		rhs := FormatExpr(n[2].(S))
		if op == "not" {
			return "not " + rhs
		}
		return op + rhs
	case "binop":
		return fmt.Sprintf("%s %s %s", FormatExpr(n[2].(S)), n[1].(string), FormatExpr(n[3].(S)))
	case "get":
		return FormatExpr(n[1].(S)) + "." + n[2].(S)[1].(string)
	case "idx":
		return FormatExpr(n[1].(S)) + "[" + FormatExpr(n[2].(S)) + "]"
	case "call":
		args := make([]string, 0, len(n)-2)
		for _, a := range n[2:] {
			args = append(args, FormatExpr(a.(S)))
		}
		return FormatExpr(n[1].(S)) + "(" + strings.Join(args, ", ") + ")"
	case "kw":
		return n[1].(S)[1].(string) + "=" + FormatExpr(n[2].(S))
	case "array":
		items := make([]string, 0, len(n)-1)
		for _, e := range n[1:] {
			items = append(items, FormatExpr(e.(S)))
		}
		return "[" + strings.Join(items, ", ") + "]"
	case "map":
		pairs := make([]string, 0, len(n)-1)
		for _, pr := range n[1:] {
			p := pr.(S)
			pairs = append(pairs, FormatExpr(p[1].(S))+": "+FormatExpr(p[2].(S)))
		}
		return "{" + strings.Join(pairs, ", ") + "}"
	default:
		return "<" + n[0].(string) + ">"
	}
}

// FormatValue renders a runtime value's display form.
func FormatValue(v Value) string { return v.String() }

// ---------------------------------------------------------------------------
// writer
// ---------------------------------------------------------------------------

type out struct {
	b     *strings.Builder
	depth int
}

func (o *out) pad() {
	for i := 0; i < o.depth; i++ {
		o.b.WriteString(indentUnit)
	}
}

func (o *out) line(s string) {
	o.pad()
	o.b.WriteString(s)
	o.b.WriteByte('\n')
}

func (o *out) withIndent(fn func()) {
	o.depth++
	fn()
	o.depth--
}

// stmts renders the children of a block node.
func (o *out) stmts(block S) {
	for _, c := range block[1:] {
		o.stmt(c.(S))
	}
}

func (o *out) stmt(n S) {
	switch n[0].(string) {
	case "if":
		first := true
		var elseBlk S
		for _, part := range n[1:] {
			p := part.(S)
			if p[0].(string) != "pair" {
				elseBlk = p
				continue
			}
			kw := "if"
			if !first {
				kw = "elif"
			}
			first = false
			o.line(kw + " " + FormatExpr(p[1].(S)) + ":")
			o.withIndent(func() { o.stmts(p[2].(S)) })
		}
		if elseBlk != nil {
			o.line("else:")
			o.withIndent(func() { o.stmts(elseBlk) })
		}
	case "for":
		o.line("for " + n[1].(S)[1].(string) + " in " + FormatExpr(n[2].(S)) + ":")
		o.withIndent(func() { o.stmts(n[3].(S)) })
		if len(n) > 4 {
			o.line("else:")
			o.withIndent(func() { o.stmts(n[4].(S)) })
		}
	case "class":
		o.line("class " + n[1].(S)[1].(string) + ":")
		o.withIndent(func() { o.stmts(n[2].(S)) })
	default:
		o.line(FormatExpr(n))
	}
}
