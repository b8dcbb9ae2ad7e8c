package ruledbg

import (
	"strings"
	"testing"
)

func TestWrapParseErrorSnippet(t *testing.T) {
	src := "a = 1\nif x\n    b = 2\n"
	_, err := ParseSExpr(src)
	if err == nil {
		t.Fatal("want parse error")
	}
	wrapped := WrapErrorWithSource(err, src)
	msg := wrapped.Error()
	for _, part := range []string{"PARSE ERROR at 2:", "':'", "if x", "^"} {
		if !strings.Contains(msg, part) {
			t.Fatalf("snippet missing %q:\n%s", part, msg)
		}
	}
	// Context lines around the failure.
	if !strings.Contains(msg, "1 | a = 1") || !strings.Contains(msg, "3 |     b = 2") {
		t.Fatalf("missing context lines:\n%s", msg)
	}
}

func TestWrapLexErrorSnippet(t *testing.T) {
	src := "s = \"oops\n"
	_, err := NewLexer(src).Tokenize()
	if err == nil {
		t.Fatal("want lex error")
	}
	msg := WrapErrorWithSource(err, src).Error()
	if !strings.Contains(msg, "LEXICAL ERROR") || !strings.Contains(msg, "unterminated string") {
		t.Fatalf("got:\n%s", msg)
	}
}

func TestWrapUnknownErrorPassesThrough(t *testing.T) {
	plain := &ParseError{Line: 1, Col: 0, Msg: "x"}
	if got := WrapErrorWithSource(plain, "a\n"); got == nil {
		t.Fatal("nil")
	}
	other := errDummy("untouched")
	if got := WrapErrorWithSource(other, "a\n"); got != other {
		t.Fatalf("unknown error kinds must pass through, got %v", got)
	}
}

type errDummy string

func (e errDummy) Error() string { return string(e) }

func TestFormatTraceRuntime(t *testing.T) {
	src := "a = 1\nb = a / 0\n"
	trace := FormatTrace(&RuntimeError{Line: 2, Msg: "division by zero"}, src)
	for _, part := range []string{"RUNTIME ERROR at 2:1", "division by zero", "b = a / 0"} {
		if !strings.Contains(trace, part) {
			t.Fatalf("trace missing %q:\n%s", part, trace)
		}
	}
}

func TestErrorLineExtraction(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&LexError{Line: 3}, 3},
		{&ParseError{Line: 5}, 5},
		{&RuntimeError{Line: 7}, 7},
		{errDummy("x"), 0},
	}
	for _, c := range cases {
		if got := errorLine(c.err); got != c.want {
			t.Fatalf("errorLine(%v): want %d, got %d", c.err, c.want, got)
		}
	}
}

func TestUnknownNameSuggestion(t *testing.T) {
	// Misspelled builtin: the terminal step should point at the real name.
	steps := runSteps(t, "log_mesage(\"x\")\n")
	last := steps[len(steps)-1]
	if last.Error == "" {
		t.Fatalf("want terminal error step, got %v", stepOutputs(steps))
	}
	if !strings.Contains(last.Error, `name "log_mesage" is not defined`) {
		t.Fatalf("message: %q", last.Error)
	}
	if !strings.Contains(last.Error, `did you mean "log_message"?`) {
		t.Fatalf("suggestion missing: %q", last.Error)
	}
}

func TestUnknownNameWithoutCandidates(t *testing.T) {
	steps := runSteps(t, "zzqqy\n")
	last := steps[len(steps)-1]
	if !strings.Contains(last.Error, `name "zzqqy" is not defined`) {
		t.Fatalf("message: %q", last.Error)
	}
	if strings.Contains(last.Error, "did you mean") {
		t.Fatalf("no candidate should be suggested: %q", last.Error)
	}
}

func TestPrettyErrorClampsCoordinates(t *testing.T) {
	// Out-of-range positions must not panic.
	msg := prettyErrorString("a = 1\n", "RUNTIME ERROR", 99, 99, "boom")
	if !strings.Contains(msg, "boom") {
		t.Fatalf("got:\n%s", msg)
	}
	msg = prettyErrorString("", "PARSE ERROR", 0, 0, "empty")
	if !strings.Contains(msg, "empty") {
		t.Fatalf("got:\n%s", msg)
	}
}
