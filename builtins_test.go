package ruledbg

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestLenBuiltin(t *testing.T) {
	steps := runSteps(t, "a = len(\"abc\")\nb = len([1, 2])\nc = len({\"k\": 1})\n")
	last := steps[len(steps)-1]
	if last.Variables["a"] != int64(3) || last.Variables["b"] != int64(2) || last.Variables["c"] != int64(1) {
		t.Fatalf("len results: %v", last.Variables)
	}
}

func TestLenRejectsNumbers(t *testing.T) {
	steps := runSteps(t, "a = len(5)\n")
	last := steps[len(steps)-1]
	if !strings.Contains(last.Error, "has no len()") {
		t.Fatalf("want len type error, got %q", last.Error)
	}
}

func TestStrBuiltin(t *testing.T) {
	steps := runSteps(t, "a = str(5)\nb = str(True)\nc = str(\"x\")\n")
	last := steps[len(steps)-1]
	if last.Variables["a"] != "5" || last.Variables["b"] != "True" {
		t.Fatalf("str results: %v", last.Variables)
	}
	// Strings pass through without re-quoting.
	if last.Variables["c"] != "x" {
		t.Fatalf("str of string: %v", last.Variables["c"])
	}
}

func TestAbsAndRange(t *testing.T) {
	steps := runSteps(t, "a = abs(-3)\nb = abs(2.5)\nxs = range(3)\nys = range(2, 4)\n")
	last := steps[len(steps)-1]
	if last.Variables["a"] != int64(3) || last.Variables["b"] != 2.5 {
		t.Fatalf("abs results: %v", last.Variables)
	}
	wantXs := []interface{}{int64(0), int64(1), int64(2)}
	gotXs := last.Variables["xs"].([]interface{})
	if len(gotXs) != len(wantXs) || gotXs[0] != wantXs[0] || gotXs[2] != wantXs[2] {
		t.Fatalf("range(3): %v", gotXs)
	}
	gotYs := last.Variables["ys"].([]interface{})
	if len(gotYs) != 2 || gotYs[0] != int64(2) || gotYs[1] != int64(3) {
		t.Fatalf("range(2, 4): %v", gotYs)
	}
}

func TestUpperLower(t *testing.T) {
	steps := runSteps(t, "a = upper(\"abc\")\nb = lower(\"ABC\")\n")
	last := steps[len(steps)-1]
	if last.Variables["a"] != "ABC" || last.Variables["b"] != "abc" {
		t.Fatalf("case builtins: %v", last.Variables)
	}
}

func TestLogAliasSharesImplementation(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder()
	sink := NewLogSink(&buf)
	ip := NewInterp(rec, sink)
	if err := ip.Run("log(\"one\")\nlog_message(\"two\")\n"); err != nil {
		t.Fatal(err)
	}
	sink.Close()
	if got := buf.String(); got != "LOG: one\nLOG: two\n" {
		t.Fatalf("sink got %q", got)
	}
}

func TestLogMessageStringifiesNonStrings(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder()
	sink := NewLogSink(&buf)
	ip := NewInterp(rec, sink)
	if err := ip.Run("log_message([1, 2])\n"); err != nil {
		t.Fatal(err)
	}
	sink.Close()
	if got := buf.String(); got != "LOG: [1, 2]\n" {
		t.Fatalf("sink got %q", got)
	}
}

func TestLogSinkPreservesOrder(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(&buf)
	for i := 0; i < 20; i++ {
		sink.Emit(fmt.Sprintf("LOG: %d", i))
	}
	sink.Close()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 20 {
		t.Fatalf("want 20 lines, got %d", len(lines))
	}
	for i, line := range lines {
		if line != fmt.Sprintf("LOG: %d", i) {
			t.Fatalf("line %d: %q", i, line)
		}
	}
}

func TestLogSinkCloseIsIdempotent(t *testing.T) {
	sink := NewLogSink(&bytes.Buffer{})
	sink.Close()
	sink.Close()
}
