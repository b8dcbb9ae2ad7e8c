package ruledbg

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

// --- helpers ---------------------------------------------------------------

func runSteps(t *testing.T, src string) []StepRecord {
	t.Helper()
	rec := NewRecorder()
	sink := NewLogSink(io.Discard)
	defer sink.Close()
	ip := NewInterp(rec, sink)
	if err := ip.Run(src); err != nil {
		t.Fatalf("run error: %v\nsource:\n%s", err, src)
	}
	return rec.Steps()
}

func wantOutputs(t *testing.T, steps []StepRecord, outputs ...string) {
	t.Helper()
	if len(steps) != len(outputs) {
		t.Fatalf("want %d steps, got %d: %v", len(outputs), len(steps), stepOutputs(steps))
	}
	for i, want := range outputs {
		if steps[i].Output != want {
			t.Fatalf("step %d: want output %q, got %q", i, want, steps[i].Output)
		}
	}
}

func stepOutputs(steps []StepRecord) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Output
	}
	return out
}

func noStepContains(t *testing.T, steps []StepRecord, substr string) {
	t.Helper()
	for i, s := range steps {
		if strings.Contains(s.Output, substr) {
			t.Fatalf("step %d unexpectedly contains %q: %q", i, substr, s.Output)
		}
	}
}

// --- assignments -----------------------------------------------------------

func TestAssignmentStepPerTarget(t *testing.T) {
	steps := runSteps(t, "x = 1\ny = 2\n")
	wantOutputs(t, steps, `x = 1`, `y = 2`)
	if steps[0].Line != 1 || steps[1].Line != 2 {
		t.Fatalf("want lines 1,2, got %d,%d", steps[0].Line, steps[1].Line)
	}
}

func TestMultiTargetAssignment(t *testing.T) {
	// One step per target, value evaluated once.
	steps := runSteps(t, "a = b = 5\n")
	wantOutputs(t, steps, `a = 5`, `b = 5`)
	if steps[1].Variables["a"] != int64(5) || steps[1].Variables["b"] != int64(5) {
		t.Fatalf("both targets should be bound: %v", steps[1].Variables)
	}
}

func TestAttributeAndIndexTargets(t *testing.T) {
	src := strings.Join([]string{
		"class Test:",
		"    age = 12",
		"t = Test()",
		"t.age = 4",
		"xs = [1, 2]",
		"xs[0] = 9",
	}, "\n")
	steps := runSteps(t, src)
	last := steps[len(steps)-1]
	if last.Output != `xs[0] = 9` {
		t.Fatalf("want index-target step, got %q", last.Output)
	}
	got := last.Variables["xs"].([]interface{})
	if got[0] != int64(9) {
		t.Fatalf("xs[0] should be 9 in snapshot, got %v", got[0])
	}
}

// --- conditionals ----------------------------------------------------------

func TestBranchSelectionTrue(t *testing.T) {
	src := strings.Join([]string{
		"x = True",
		"if x:",
		"    taken = \"A\"",
		"else:",
		"    taken = \"B\"",
	}, "\n")
	steps := runSteps(t, src)
	wantOutputs(t, steps, `x = True`, `if x: # True`, `taken = "A"`)
	noStepContains(t, steps, `"B"`)
}

func TestBranchSelectionFalse(t *testing.T) {
	// Regression for the source bug where both arms executed the else list.
	src := strings.Join([]string{
		"new_bool = True",
		"new_bool = False",
		"if new_bool:",
		"    log_message(\"m\")",
		"else:",
		"    log_message(\"b\")",
	}, "\n")
	steps := runSteps(t, src)
	wantOutputs(t, steps,
		`new_bool = True`,
		`new_bool = False`,
		`if new_bool: # False`,
		`Expression result: "b"`,
	)
	noStepContains(t, steps, `"m"`)
}

func TestElifChain(t *testing.T) {
	src := strings.Join([]string{
		"n = 2",
		"if n == 1:",
		"    r = \"one\"",
		"elif n == 2:",
		"    r = \"two\"",
		"else:",
		"    r = \"many\"",
	}, "\n")
	steps := runSteps(t, src)
	wantOutputs(t, steps,
		`n = 2`,
		`if n == 1: # False`,
		`if n == 2: # True`,
		`r = "two"`,
	)
}

func TestTruthinessCoercion(t *testing.T) {
	src := strings.Join([]string{
		"s = \"\"",
		"if s:",
		"    r = 1",
		"else:",
		"    r = 2",
	}, "\n")
	steps := runSteps(t, src)
	last := steps[len(steps)-1]
	if last.Output != `r = 2` {
		t.Fatalf("empty string should be falsy, got %q", last.Output)
	}
}

// --- loops -----------------------------------------------------------------

func TestLoopCompletionBranchRuns(t *testing.T) {
	src := strings.Join([]string{
		"for x in [1, 2]:",
		"    if x == 9:",
		"        break",
		"else:",
		"    done = \"completed\"",
	}, "\n")
	steps := runSteps(t, src)
	last := steps[len(steps)-1]
	if last.Output != `done = "completed"` {
		t.Fatalf("completion branch should run, got %q", last.Output)
	}
	noStepContains(t, steps, "break")
}

func TestBreakSkipsCompletionBranch(t *testing.T) {
	src := strings.Join([]string{
		"for x in [1, 2, 3]:",
		"    if x == 2:",
		"        break",
		"else:",
		"    done = \"completed\"",
	}, "\n")
	steps := runSteps(t, src)
	found := false
	for _, s := range steps {
		if s.Output == "break" {
			found = true
		}
	}
	if !found {
		t.Fatalf("break step missing: %v", stepOutputs(steps))
	}
	noStepContains(t, steps, "completed")
	// The loop stops: x == 3 is never tested.
	noStepContains(t, steps, "x == 3")
}

func TestBreakOnlyExitsInnermostLoop(t *testing.T) {
	src := strings.Join([]string{
		"count = 0",
		"for x in [1, 2]:",
		"    for y in [1, 2]:",
		"        break",
		"    count = count + 1",
	}, "\n")
	steps := runSteps(t, src)
	last := steps[len(steps)-1]
	if last.Variables["count"] != int64(2) {
		t.Fatalf("outer loop should run both iterations: %v", last.Variables)
	}
}

func TestLoopVariableVisibleAfterLoop(t *testing.T) {
	steps := runSteps(t, "for x in [1, 2]:\n    y = x\nz = x\n")
	last := steps[len(steps)-1]
	if last.Variables["z"] != int64(2) {
		t.Fatalf("loop variable should persist: %v", last.Variables)
	}
}

// --- records & aliasing ----------------------------------------------------

func TestRecordAliasing(t *testing.T) {
	src := strings.Join([]string{
		"class Test:",
		"    age = 12",
		"newCls = Test()",
		"testClasses = [newCls]",
		"newCls.age = 4",
		"probe = testClasses[0].age",
	}, "\n")
	steps := runSteps(t, src)
	last := steps[len(steps)-1]
	if last.Variables["probe"] != int64(4) {
		t.Fatalf("field write must be visible through the alias: %v", last.Variables)
	}
}

func TestRecordFieldCreatedOnFirstAssignment(t *testing.T) {
	src := strings.Join([]string{
		"class Test:",
		"    age = 1",
		"t = Test()",
		"t.name = \"ger\"",
		"probe = t.name",
	}, "\n")
	steps := runSteps(t, src)
	last := steps[len(steps)-1]
	if last.Variables["probe"] != "ger" {
		t.Fatalf("new field should be readable: %v", last.Variables)
	}
}

// --- expressions & builtins ------------------------------------------------

func TestLogMessageReturnsMessage(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder()
	sink := NewLogSink(&buf)
	ip := NewInterp(rec, sink)
	if err := ip.Run("r = log_message(\"hello\", level=\"info\")\n"); err != nil {
		t.Fatalf("run error: %v", err)
	}
	sink.Close()
	steps := rec.Steps()
	if steps[0].Variables["r"] != "hello" {
		t.Fatalf("log_message should return its message: %v", steps[0].Variables)
	}
	if got := buf.String(); got != "LOG: hello\n" {
		t.Fatalf("sink got %q", got)
	}
}

func TestArithmeticAndComparison(t *testing.T) {
	steps := runSteps(t, "a = 2 + 3 * 4\nb = 10 / 4\nc = 7 % 3\nd = 1 < 2\n")
	last := steps[len(steps)-1]
	if last.Variables["a"] != int64(14) {
		t.Fatalf("precedence: want 14, got %v", last.Variables["a"])
	}
	if last.Variables["b"] != 2.5 {
		t.Fatalf("division is float: want 2.5, got %v", last.Variables["b"])
	}
	if last.Variables["c"] != int64(1) {
		t.Fatalf("modulo: want 1, got %v", last.Variables["c"])
	}
	if last.Variables["d"] != true {
		t.Fatalf("comparison: want true, got %v", last.Variables["d"])
	}
}

func TestMembershipOperator(t *testing.T) {
	steps := runSteps(t, "a = 2 in [1, 2]\nb = \"el\" in \"hello\"\nc = \"k\" in {\"k\": 1}\n")
	last := steps[len(steps)-1]
	for _, name := range []string{"a", "b", "c"} {
		if last.Variables[name] != true {
			t.Fatalf("%s should be true: %v", name, last.Variables)
		}
	}
}

// --- error boundary --------------------------------------------------------

func TestErrorContainment(t *testing.T) {
	steps := runSteps(t, "a = 1\nb = 2\nc = a / 0\n")
	if len(steps) != 3 {
		t.Fatalf("want 2 intact steps plus terminal, got %v", stepOutputs(steps))
	}
	if steps[0].Error != "" || steps[1].Error != "" {
		t.Fatalf("prior steps must be error-free")
	}
	last := steps[2]
	if last.Error == "" || !strings.Contains(last.Error, "division by zero") {
		t.Fatalf("terminal step should carry the error, got %q", last.Error)
	}
	if last.Line != 3 {
		t.Fatalf("error attributed to line 3, got %d", last.Line)
	}
	if !strings.Contains(last.Traceback, "RUNTIME ERROR") {
		t.Fatalf("terminal step should carry a formatted trace, got %q", last.Traceback)
	}
	if !strings.HasPrefix(last.Output, "Error: ") {
		t.Fatalf("terminal output should be the error text, got %q", last.Output)
	}
}

func TestUnknownNameAborts(t *testing.T) {
	steps := runSteps(t, "a = 1\nb = missing_name\nc = 2\n")
	if len(steps) != 2 {
		t.Fatalf("execution should stop at the failure: %v", stepOutputs(steps))
	}
	if !strings.Contains(steps[1].Error, "is not defined") {
		t.Fatalf("want unknown-name error, got %q", steps[1].Error)
	}
}

func TestBuiltinsAreShadowableNotMutable(t *testing.T) {
	// Assigning over a builtin shadows it for this run only.
	steps := runSteps(t, "len = 3\nx = len\n")
	if steps[1].Variables["x"] != int64(3) {
		t.Fatalf("shadowing failed: %v", steps[1].Variables)
	}
	// A fresh run sees the builtin again.
	steps = runSteps(t, "n = len(\"abc\")\n")
	if steps[0].Variables["n"] != int64(3) {
		t.Fatalf("fresh run should see builtin len: %v", steps[0].Variables)
	}
}
