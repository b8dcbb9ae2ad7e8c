// instrument.go — source instrumentation engine.
//
// Instrument rewrites a rule into augmented source with a
// __step_control__(step_id, instr_line, orig_line, description) marker
// statement after every statement at every nesting depth (loop bodies, both
// conditional branches, class field defaults) and immediately before each
// break. The rewrite is a tree transformation: the original program is
// parsed, walked statement by statement, and re-rendered from the AST with
// synthesized marker call nodes interleaved — no textual splicing of the
// original source. Rendering also produces the Line Map resolving augmented
// line numbers back to original ones.
//
// RunInstrumented executes the augmented form with recording handed entirely
// to the markers: each marker invocation captures its own step and consults
// the per-run Controller, which can end the run early (run-to-target) via a
// cooperative stop signal. A synthetic COMPLETE step (line 0) is always
// appended, whether the run finished by success or error.
package ruledbg

import (
	"fmt"
	"strconv"
	"strings"
)

// MarkerName is the identifier the rewriter inserts and the instrumented
// engine registers.
const MarkerName = "__step_control__"

// Instrumented is the product of a rewrite: augmented source plus the line
// map from instrumented line numbers to original ones. The map is read-only
// after construction.
type Instrumented struct {
	Source  string
	LineMap map[int]int
}

// OriginalLine resolves an augmented-source line back to its original line,
// or 0 when the line holds only instrumentation.
func (in *Instrumented) OriginalLine(instrLine int) int {
	return in.LineMap[instrLine]
}

// Instrument parses src and produces the augmented source and Line Map.
func Instrument(src string) (*Instrumented, error) {
	ast, spans, err := ParseSExprWithSpans(src)
	if err != nil {
		return nil, err
	}
	em := &emitter{
		src:     src,
		spans:   spans,
		b:       &strings.Builder{},
		line:    1,
		lineMap: map[int]int{},
	}
	em.block(ast, nil)
	return &Instrumented{Source: em.b.String(), LineMap: em.lineMap}, nil
}

// emitter renders the transformed statement sequence, tracking the current
// augmented line number so each marker can carry it.
type emitter struct {
	src     string
	spans   *SpanIndex
	b       *strings.Builder
	depth   int
	line    int // next line to be written, 1-based
	lineMap map[int]int
}

// emit writes one line at the current depth and maps it to origLine (0 for
// lines that exist only in the augmented form).
func (em *emitter) emit(s string, origLine int) {
	for i := 0; i < em.depth; i++ {
		em.b.WriteString(indentUnit)
	}
	em.b.WriteString(s)
	em.b.WriteByte('\n')
	if origLine > 0 {
		em.lineMap[em.line] = origLine
	}
	em.line++
}

func (em *emitter) origLine(path NodePath) int {
	if sp, ok := em.spans.Get(path); ok {
		return LineOfByte(em.src, sp.StartByte)
	}
	return 0
}

// marker synthesizes the marker call node for a statement that was just
// emitted and renders it. stmtInstrLine is the augmented line the statement
// landed on.
func (em *emitter) marker(stmtInstrLine, origLine int, desc string) {
	node := L("call", L("id", MarkerName),
		L("str", "STMT_"+strconv.Itoa(origLine)),
		L("int", int64(stmtInstrLine)),
		L("int", int64(origLine)),
		L("str", desc))
	em.emit(FormatExpr(node), 0)
}

func (em *emitter) block(blk S, path NodePath) {
	for i := 1; i < len(blk); i++ {
		em.stmt(blk[i].(S), path.Child(i-1))
	}
}

func (em *emitter) stmt(n S, path NodePath) {
	orig := em.origLine(path)
	switch n[0].(string) {
	case "if":
		first := true
		elseIdx := -1
		for i := 1; i < len(n); i++ {
			p := n[i].(S)
			if p[0].(string) != "pair" {
				elseIdx = i - 1
				continue
			}
			kw := "if"
			if !first {
				kw = "elif"
			}
			first = false
			em.emit(kw+" "+FormatExpr(p[1].(S))+":", em.origLine(path.Child(i-1)))
			em.indented(func() { em.block(p[2].(S), path.Child(i-1).Child(1)) })
		}
		if elseIdx >= 0 {
			em.emit("else:", 0)
			em.indented(func() { em.block(n[elseIdx+1].(S), path.Child(elseIdx)) })
		}

	case "for":
		em.emit("for "+n[1].(S)[1].(string)+" in "+FormatExpr(n[2].(S))+":", orig)
		em.indented(func() { em.block(n[3].(S), path.Child(2)) })
		if len(n) > 4 {
			em.emit("else:", 0)
			em.indented(func() { em.block(n[4].(S), path.Child(3)) })
		}

	case "class":
		em.emit("class "+n[1].(S)[1].(string)+":", orig)
		em.indented(func() { em.block(n[2].(S), path.Child(1)) })

	case "break":
		// The marker precedes the break so the step is reported before the
		// loop unwinds; it never affects the break's reachability.
		em.marker(em.line, orig, "break")
		em.emit("break", orig)

	default:
		stmtLine := em.line
		em.emit(FormatExpr(n), orig)
		em.marker(stmtLine, orig, FormatExpr(n))
	}
}

func (em *emitter) indented(fn func()) {
	em.depth++
	fn()
	em.depth--
}

// stopRun is the cooperative stop signal raised by a marker whose Report
// answers false. It unwinds to RunInstrumented without touching the error
// boundary.
type stopRun struct{}

// RunInstrumented rewrites src, executes the augmented form and records one
// step per marker invocation into rec. ctl is consulted on every marker; a
// false continue signal ends the run early. Returns the Instrumented rewrite
// for callers that want the Line Map; parse failures are returned before any
// step is produced.
func RunInstrumented(src string, rec *Recorder, ctl *Controller, sink *LogSink) (*Instrumented, error) {
	inst, err := Instrument(src)
	if err != nil {
		return nil, err
	}
	ast, spans, err := ParseSExprWithSpans(inst.Source)
	if err != nil {
		// The rewriter emitting unparseable source is an internal defect.
		return nil, fmt.Errorf("instrumented source failed to parse: %w", err)
	}

	ctl.Reset()
	ip := NewInterp(rec, sink)
	ip.quiet = true
	ip.core.Define(MarkerName, NativeVal(&Native{
		Name: MarkerName,
		Doc:  "Instrumentation marker; reports one step and returns the continue signal.",
		Impl: func(args []Value, _ map[string]Value) Value {
			if len(args) != 4 {
				fail(MarkerName + " expects (step_id, instr_line, orig_line, description)")
			}
			stepID := args[0].Data.(string)
			instrLine := int(args[1].Data.(int64))
			origLine := int(args[2].Data.(int64))
			desc := args[3].Data.(string)
			rec.Capture(origLine, instrLine, ip.env, desc)
			if !ctl.Report(stepID, instrLine, origLine, desc) {
				panic(stopRun{})
			}
			return Bool(true)
		},
	}))

	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(stopRun); !ok {
					panic(r)
				}
			}
		}()
		ip.RunAST(ast, inst.Source, spans)
	}()

	// A runtime failure was captured against the augmented source; resolve
	// its line back to the original rule.
	steps := rec.steps
	if len(steps) > 0 && steps[len(steps)-1].Error != "" {
		last := &steps[len(steps)-1]
		last.InstrumentedLine = last.Line
		last.Line = inst.OriginalLine(last.Line)
	}

	rec.Capture(0, 0, ip.env, "Execution completed")
	return inst, nil
}
