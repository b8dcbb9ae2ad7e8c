// spans.go — Sidecar spans for rule ASTs (S-expressions)
//
// Associates source byte spans with nodes of a parsed rule AST (the
// S-expression type S from parser.go) without modifying the AST itself.
// Spans are half-open byte intervals [StartByte, EndByte) into the original
// UTF-8 source. Line numbers are derived on demand from the source text.
//
// The parser constructs every node through its mk* helpers, which append
// exactly one span per node in strict post-order (children first, then
// parent, left-to-right among siblings). BuildSpanIndexPostOrder replays the
// same walk over the finished AST and binds each span to the node's
// structural path.
package ruledbg

import (
	"strconv"
	"strings"
)

// Span is a half-open byte interval [StartByte, EndByte) in the original
// source text. EndByte is exclusive.
type Span struct {
	StartByte int
	EndByte   int
}

// NodePath is a stable structural address into an S-expression AST. Each
// element k selects the child at S[k+1] (S[0] is the string tag).
type NodePath []int

// Child extends a path by one child index. The result is a fresh slice, safe
// to retain across recursive walks.
func (p NodePath) Child(i int) NodePath {
	out := make(NodePath, len(p)+1)
	copy(out, p)
	out[len(p)] = i
	return out
}

// SpanIndex is a read-only sidecar mapping from NodePath to Span.
type SpanIndex struct {
	byPath map[string]Span
}

// Get returns the span recorded for path, if any. A nil index resolves
// nothing.
func (si *SpanIndex) Get(p NodePath) (Span, bool) {
	if si == nil {
		return Span{}, false
	}
	sp, ok := si.byPath[pathKey(p)]
	return sp, ok
}

// BuildSpanIndexPostOrder binds one span per AST node by walking root in
// post-order. If postorder is shorter than the node count, remaining nodes
// are left unindexed; extras are ignored.
func BuildSpanIndexPostOrder(root S, postorder []Span) *SpanIndex {
	si := &SpanIndex{byPath: make(map[string]Span, len(postorder))}
	i := 0
	var walk func(n S, path NodePath)
	walk = func(n S, path NodePath) {
		for ci := 1; ci < len(n); ci++ {
			if child, ok := n[ci].(S); ok {
				walk(child, append(path, ci-1))
			}
		}
		if i < len(postorder) {
			si.byPath[pathKey(path)] = postorder[i]
			i++
		}
	}
	walk(root, nil)
	return si
}

// LineOfByte converts a byte offset into a 1-based line number in src.
// Offsets past the end land on the last line.
func LineOfByte(src string, off int) int {
	if off < 0 {
		off = 0
	}
	if off > len(src) {
		off = len(src)
	}
	return 1 + strings.Count(src[:off], "\n")
}

func pathKey(p NodePath) string {
	if len(p) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, x := range p {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.Itoa(x))
	}
	return sb.String()
}
