// errors.go — user-facing error wrapping and caret-snippet rendering.
//
// Turns low-level lexer/parser/runtime diagnostics into readable snippets
// with a caret pointing at the offending column:
//
//	PARSE ERROR at 3:12: expected ':'
//
//	   2 | if flag
//	   3 |     log_message("x")
//	     |            ^
//
// Internally, runtime failures propagate by panic(rtErr{...}) raised through
// fail/failf and are recovered once, at the engine's error boundary
// (interp.go). Nothing outside this package ever sees the panic.
package ruledbg

import (
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// RuntimeError is an execution-time failure with a 1-based source line.
type RuntimeError struct {
	Line int
	Msg  string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at line %d: %s", e.Line, e.Msg)
}

// rtErr is the internal panic payload for runtime failures. line may be 0
// when the failing statement is not known at the raise site; the boundary
// fills it in from the statement being executed.
type rtErr struct {
	msg  string
	line int
}

func fail(msg string)                        { panic(rtErr{msg: msg}) }
func failf(format string, args ...interface{}) { panic(rtErr{msg: fmt.Sprintf(format, args...)}) }

// failUnknownName raises the unknown-identifier error, with "did you mean"
// candidates ranked by normalized fuzzy match against the visible names.
func failUnknownName(name string, visible []string) {
	msg := fmt.Sprintf("name %q is not defined", name)
	ranks := fuzzy.RankFindNormalizedFold(name, visible)
	if len(ranks) > 0 {
		best := ranks[0]
		for _, r := range ranks[1:] {
			if r.Distance < best.Distance {
				best = r
			}
		}
		msg += fmt.Sprintf(" (did you mean %q?)", best.Target)
	}
	panic(rtErr{msg: msg})
}

// WrapErrorWithSource returns an error whose message is a caret-annotated
// snippet of src when err is a *LexError, *ParseError or *RuntimeError.
// Other errors are returned unchanged.
func WrapErrorWithSource(err error, src string) error {
	switch e := err.(type) {
	case *LexError:
		return fmt.Errorf("%s", prettyErrorString(src, "LEXICAL ERROR", e.Line, e.Col+1, e.Msg))
	case *ParseError:
		return fmt.Errorf("%s", prettyErrorString(src, "PARSE ERROR", e.Line, e.Col+1, e.Msg))
	case *RuntimeError:
		return fmt.Errorf("%s", prettyErrorString(src, "RUNTIME ERROR", e.Line, 1, e.Msg))
	default:
		return err
	}
}

// FormatTrace renders the diagnostic trace attached to a terminal error
// step: the pretty snippet when the error carries a location, otherwise the
// bare message.
func FormatTrace(err error, src string) string {
	wrapped := WrapErrorWithSource(err, src)
	return wrapped.Error()
}

// errorLine extracts the 1-based source line from a known error kind, or 0.
func errorLine(err error) int {
	switch e := err.(type) {
	case *LexError:
		return e.Line
	case *ParseError:
		return e.Line
	case *RuntimeError:
		return e.Line
	default:
		return 0
	}
}

// prettyErrorString builds a Python-like snippet with a header and a caret.
// It shows at most one previous and one next line when available.
// Coordinates are treated as 1-based and clamped to the source bounds.
func prettyErrorString(src, header string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	if line > len(lines) {
		line = len(lines)
	}
	lineTxt := lines[line-1]

	var b strings.Builder
	fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", header, line, col, msg)
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lineTxt)
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", col-1))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
