package ruledbg

import (
	"strings"
	"testing"
)

func TestNodePathChildIsFresh(t *testing.T) {
	base := NodePath{1, 2}
	a := base.Child(3)
	b := base.Child(4)
	if a[2] != 3 || b[2] != 4 {
		t.Fatalf("sibling paths share storage: %v %v", a, b)
	}
	if len(base) != 2 {
		t.Fatalf("base mutated: %v", base)
	}
}

func TestSpanIndexNilSafe(t *testing.T) {
	var si *SpanIndex
	if _, ok := si.Get(NodePath{0}); ok {
		t.Fatal("nil index resolved a span")
	}
}

func TestLineOfByte(t *testing.T) {
	src := "ab\ncd\nef"
	cases := []struct{ off, line int }{
		{0, 1}, {2, 1}, {3, 2}, {5, 2}, {6, 3},
		{-1, 1},   // clamped low
		{100, 3},  // clamped high
	}
	for _, c := range cases {
		if got := LineOfByte(src, c.off); got != c.line {
			t.Fatalf("offset %d: want line %d, got %d", c.off, c.line, got)
		}
	}
}

func TestBuildSpanIndexBindsPostOrder(t *testing.T) {
	src := "a = 1\n"
	ast, spans, err := ParseSExprWithSpans(src)
	if err != nil {
		t.Fatal(err)
	}
	if tag(ast) != "block" {
		t.Fatalf("root: %v", ast)
	}
	// The assign statement's span covers the whole line.
	sp, ok := spans.Get(NodePath{0})
	if !ok {
		t.Fatal("no span for the statement")
	}
	if got := strings.TrimRight(src[sp.StartByte:sp.EndByte], "\n"); got != "a = 1" {
		t.Fatalf("statement span: %q", got)
	}
	// Its value child spans just the literal.
	sp, ok = spans.Get(NodePath{0, 1})
	if !ok {
		t.Fatal("no span for the literal")
	}
	if src[sp.StartByte:sp.EndByte] != "1" {
		t.Fatalf("literal span: %q", src[sp.StartByte:sp.EndByte])
	}
}
