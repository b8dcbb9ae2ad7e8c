// interp.go — tree-walking execution engine.
//
// Executes a parsed rule statement-by-statement against one Env, capturing a
// step after each statement through the Recorder. Runtime failures are
// raised internally with fail()/failf() (errors.go) and recovered exactly
// once, at the error boundary in runTop: remaining statements are skipped
// and one terminal error step is appended, preserving every step captured so
// far.
//
// break propagates as a control result from statement execution to the
// innermost enclosing loop; conditionals pass it through untouched.
package ruledbg

import (
	"fmt"
	"math"
	"strings"
)

type ctrl int

const (
	ctrlNone ctrl = iota
	ctrlBreak
)

// Interp is the tree-walking engine for one execution. Each run gets its own
// instance; nothing here is shared across concurrent runs.
type Interp struct {
	core *Env
	env  *Env
	rec  *Recorder

	src   string
	spans *SpanIndex
	line  int // line of the statement currently executing

	// quiet suppresses per-statement capture; the instrumented engine sets
	// it so markers are the only source of steps.
	quiet bool
}

// NewInterp builds an engine around a fresh execution frame. Builtins land
// in a Core frame beneath it, so rule assignments shadow rather than mutate
// the registry.
func NewInterp(rec *Recorder, sink *LogSink) *Interp {
	core := NewCoreEnv(sink)
	return &Interp{core: core, env: NewEnv(core), rec: rec}
}

// Env exposes the execution frame (instrumentation wires markers through
// it).
func (ip *Interp) Env() *Env { return ip.env }

// Run parses and executes src under the error boundary. A lex/parse failure
// is returned to the caller before any step is produced; runtime failures
// are converted into a terminal step and reported as nil.
func (ip *Interp) Run(src string) error {
	ast, spans, err := ParseSExprWithSpans(src)
	if err != nil {
		return err
	}
	ip.src = src
	ip.spans = spans
	ip.runTop(ast)
	return nil
}

// RunAST executes an already parsed program (the instrumented engine path).
func (ip *Interp) RunAST(ast S, src string, spans *SpanIndex) {
	ip.src = src
	ip.spans = spans
	ip.runTop(ast)
}

// runTop is the error boundary: any evaluation failure below becomes the
// terminal error step.
func (ip *Interp) runTop(ast S) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(rtErr)
			if !ok {
				panic(r)
			}
			line := e.line
			if line == 0 {
				line = ip.line
			}
			trace := FormatTrace(&RuntimeError{Line: line, Msg: e.msg}, ip.src)
			ip.rec.CaptureError(line, ip.env, e.msg, trace)
		}
	}()
	ip.execBlock(ast, nil)
}

// execBlock runs the statements of a block node, stopping early when a break
// bubbles up.
func (ip *Interp) execBlock(block S, path NodePath) ctrl {
	for i := 1; i < len(block); i++ {
		if c := ip.execStmt(block[i].(S), path.Child(i-1)); c != ctrlNone {
			return c
		}
	}
	return ctrlNone
}

// capture records a step unless the engine is running quietly.
func (ip *Interp) capture(line int, desc string) {
	if !ip.quiet {
		ip.rec.Capture(line, line, ip.env, desc)
	}
}

func (ip *Interp) lineFor(path NodePath) int {
	if sp, ok := ip.spans.Get(path); ok {
		return LineOfByte(ip.src, sp.StartByte)
	}
	return ip.line
}

func (ip *Interp) execStmt(n S, path NodePath) ctrl {
	ip.line = ip.lineFor(path)
	switch n[0].(string) {
	case "assign":
		value := ip.eval(n[len(n)-1].(S))
		for _, t := range n[1 : len(n)-1] {
			target := t.(S)
			ip.assignTo(target, value)
			ip.capture(ip.line, FormatExpr(target)+" = "+value.String())
		}
		return ctrlNone

	case "if":
		var elseBlk S
		elseIdx := -1
		for i := 1; i < len(n); i++ {
			p := n[i].(S)
			if p[0].(string) != "pair" {
				elseBlk = p
				elseIdx = i - 1
				continue
			}
			pairLine := ip.lineFor(path.Child(i - 1))
			cond := ip.eval(p[1].(S))
			truth := Truthy(cond)
			ip.capture(pairLine,
				fmt.Sprintf("if %s: # %s", FormatExpr(p[1].(S)), Bool(truth).String()))
			if truth {
				return ip.execBlock(p[2].(S), path.Child(i-1).Child(1))
			}
		}
		if elseBlk != nil {
			return ip.execBlock(elseBlk, path.Child(elseIdx))
		}
		return ctrlNone

	case "for":
		name := n[1].(S)[1].(string)
		seq := ip.eval(n[2].(S))
		if seq.Tag != VTArray {
			failf("%s object is not iterable", TypeName(seq))
		}
		bodyPath := path.Child(2)
		broke := false
		for _, elem := range seq.Data.([]Value) {
			ip.env.Define(name, elem)
			if c := ip.execBlock(n[3].(S), bodyPath); c == ctrlBreak {
				broke = true
				break
			}
		}
		if !broke && len(n) > 4 {
			return ip.execBlock(n[4].(S), path.Child(3))
		}
		return ctrlNone

	case "break":
		ip.capture(ip.line, "break")
		return ctrlBreak

	case "noop":
		ip.capture(ip.line, "pass")
		return ctrlNone

	case "class":
		name := n[1].(S)[1].(string)
		cls := &Class{Name: name, Defaults: NewMapObject()}
		body := n[2].(S)
		for _, st := range body[1:] {
			s := st.(S)
			if s[0].(string) == "noop" {
				continue
			}
			if s[0].(string) != "assign" {
				// Class bodies are executable scope; a bare call (e.g. an
				// instrumentation marker) just evaluates.
				ip.eval(s)
				continue
			}
			v := ip.eval(s[len(s)-1].(S))
			for _, t := range s[1 : len(s)-1] {
				tn := t.(S)
				if tn[0].(string) != "id" {
					fail("class field defaults must assign to plain names")
				}
				cls.Defaults.Set(tn[1].(string), v)
			}
		}
		ip.env.Define(name, Value{Tag: VTClass, Data: cls})
		ip.capture(ip.line, "class "+name)
		return ctrlNone

	default:
		// Expression statement (bare call etc.).
		result := ip.eval(n)
		ip.capture(ip.line, "Expression result: "+result.String())
		return ctrlNone
	}
}

// assignTo binds value to an assignment target: a plain name, an attribute
// path or an index expression.
func (ip *Interp) assignTo(target S, v Value) {
	switch target[0].(string) {
	case "id":
		ip.env.Define(target[1].(string), v)
	case "get":
		obj := ip.eval(target[1].(S))
		if obj.Tag != VTRecord {
			failf("%s object has no settable attributes", TypeName(obj))
		}
		obj.Data.(*Record).Fields.Set(target[2].(S)[1].(string), v)
	case "idx":
		obj := ip.eval(target[1].(S))
		idx := ip.eval(target[2].(S))
		switch obj.Tag {
		case VTArray:
			xs := obj.Data.([]Value)
			i := normalizeIndex(idx, len(xs))
			xs[i] = v
		case VTMap:
			if idx.Tag != VTStr {
				failf("dict keys must be strings, got %s", TypeName(idx))
			}
			obj.Data.(*MapObject).Set(idx.Data.(string), v)
		default:
			failf("%s object does not support item assignment", TypeName(obj))
		}
	default:
		fail("cannot assign to this expression")
	}
}

// ---------------------------------------------------------------------------
// expression evaluation
// ---------------------------------------------------------------------------

func (ip *Interp) eval(n S) Value {
	switch n[0].(string) {
	case "id":
		name := n[1].(string)
		if v, ok := ip.env.Get(name); ok {
			return v
		}
		failUnknownName(name, ip.env.Names())
	case "int":
		return Int(n[1].(int64))
	case "num":
		return Num(n[1].(float64))
	case "str":
		return Str(n[1].(string))
	case "bool":
		return Bool(n[1].(bool))
	case "none":
		return Null
	case "array":
		xs := make([]Value, 0, len(n)-1)
		for _, e := range n[1:] {
			xs = append(xs, ip.eval(e.(S)))
		}
		return Arr(xs)
	case "map":
		m := NewMapObject()
		for _, pr := range n[1:] {
			p := pr.(S)
			k := ip.eval(p[1].(S))
			if k.Tag != VTStr {
				failf("dict keys must be strings, got %s", TypeName(k))
			}
			m.Set(k.Data.(string), ip.eval(p[2].(S)))
		}
		return MapVal(m)
	case "unop":
		return ip.evalUnop(n[1].(string), n[2].(S))
	case "binop":
		return ip.evalBinop(n[1].(string), n[2].(S), n[3].(S))
	case "get":
		return ip.evalGet(n)
	case "idx":
		return ip.evalIdx(n)
	case "call":
		return ip.evalCall(n)
	}
	failf("cannot evaluate %s node", n[0].(string))
	return Null
}

func (ip *Interp) evalUnop(op string, rhsN S) Value {
	rhs := ip.eval(rhsN)
	switch op {
	case "not":
		return Bool(!Truthy(rhs))
	case "-":
		switch rhs.Tag {
		case VTInt:
			return Int(-rhs.Data.(int64))
		case VTNum:
			return Num(-rhs.Data.(float64))
		}
		failf("bad operand type for unary -: %s", TypeName(rhs))
	}
	failf("unknown unary operator %q", op)
	return Null
}

func (ip *Interp) evalBinop(op string, lhsN, rhsN S) Value {
	// and/or short-circuit and yield the deciding operand, as the rule
	// language does.
	if op == "and" {
		lhs := ip.eval(lhsN)
		if !Truthy(lhs) {
			return lhs
		}
		return ip.eval(rhsN)
	}
	if op == "or" {
		lhs := ip.eval(lhsN)
		if Truthy(lhs) {
			return lhs
		}
		return ip.eval(rhsN)
	}

	lhs := ip.eval(lhsN)
	rhs := ip.eval(rhsN)
	switch op {
	case "==":
		return Bool(valueEquals(lhs, rhs))
	case "!=":
		return Bool(!valueEquals(lhs, rhs))
	case "in":
		return Bool(contains(lhs, rhs))
	case "<", "<=", ">", ">=":
		return compareOrdered(op, lhs, rhs)
	case "+":
		if lhs.Tag == VTStr && rhs.Tag == VTStr {
			return Str(lhs.Data.(string) + rhs.Data.(string))
		}
		if lhs.Tag == VTArray && rhs.Tag == VTArray {
			out := append(append([]Value{}, lhs.Data.([]Value)...), rhs.Data.([]Value)...)
			return Arr(out)
		}
		return arith(op, lhs, rhs)
	case "-", "*", "/", "%":
		return arith(op, lhs, rhs)
	}
	failf("unknown operator %q", op)
	return Null
}

func (ip *Interp) evalGet(n S) Value {
	obj := ip.eval(n[1].(S))
	name := n[2].(S)[1].(string)
	switch obj.Tag {
	case VTRecord:
		r := obj.Data.(*Record)
		if v, ok := r.Fields.Get(name); ok {
			return v
		}
		failf("%s record has no attribute %q", r.Class, name)
	case VTClass:
		c := obj.Data.(*Class)
		if v, ok := c.Defaults.Get(name); ok {
			return v
		}
		failf("class %s has no attribute %q", c.Name, name)
	}
	failf("%s object has no attribute %q", TypeName(obj), name)
	return Null
}

func (ip *Interp) evalIdx(n S) Value {
	obj := ip.eval(n[1].(S))
	idx := ip.eval(n[2].(S))
	switch obj.Tag {
	case VTArray:
		xs := obj.Data.([]Value)
		return xs[normalizeIndex(idx, len(xs))]
	case VTStr:
		s := obj.Data.(string)
		i := normalizeIndex(idx, len(s))
		return Str(s[i : i+1])
	case VTMap:
		if idx.Tag != VTStr {
			failf("dict keys must be strings, got %s", TypeName(idx))
		}
		m := obj.Data.(*MapObject)
		if v, ok := m.Get(idx.Data.(string)); ok {
			return v
		}
		failf("key %q not found", idx.Data.(string))
	}
	failf("%s object is not subscriptable", TypeName(obj))
	return Null
}

func (ip *Interp) evalCall(n S) Value {
	callee := ip.eval(n[1].(S))
	var args []Value
	kwargs := map[string]Value{}
	for _, a := range n[2:] {
		arg := a.(S)
		if arg[0].(string) == "kw" {
			kwargs[arg[1].(S)[1].(string)] = ip.eval(arg[2].(S))
			continue
		}
		args = append(args, ip.eval(arg))
	}
	switch callee.Tag {
	case VTNative:
		return callee.Data.(*Native).Impl(args, kwargs)
	case VTClass:
		if len(args) > 0 || len(kwargs) > 0 {
			failf("%s() takes no arguments", callee.Data.(*Class).Name)
		}
		return Value{Tag: VTRecord, Data: NewRecord(callee.Data.(*Class))}
	}
	failf("%s object is not callable", TypeName(callee))
	return Null
}

// ---------------------------------------------------------------------------
// operator helpers
// ---------------------------------------------------------------------------

func normalizeIndex(idx Value, length int) int {
	if idx.Tag != VTInt {
		failf("indices must be integers, got %s", TypeName(idx))
	}
	i := int(idx.Data.(int64))
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		failf("index %d out of range", int(idx.Data.(int64)))
	}
	return i
}

func numOf(v Value) (float64, bool) {
	switch v.Tag {
	case VTInt:
		return float64(v.Data.(int64)), true
	case VTNum:
		return v.Data.(float64), true
	}
	return 0, false
}

func arith(op string, lhs, rhs Value) Value {
	lf, lok := numOf(lhs)
	rf, rok := numOf(rhs)
	if !lok || !rok {
		failf("unsupported operand type(s) for %s: %s and %s", op, TypeName(lhs), TypeName(rhs))
	}
	bothInt := lhs.Tag == VTInt && rhs.Tag == VTInt
	switch op {
	case "+":
		if bothInt {
			return Int(lhs.Data.(int64) + rhs.Data.(int64))
		}
		return Num(lf + rf)
	case "-":
		if bothInt {
			return Int(lhs.Data.(int64) - rhs.Data.(int64))
		}
		return Num(lf - rf)
	case "*":
		if bothInt {
			return Int(lhs.Data.(int64) * rhs.Data.(int64))
		}
		return Num(lf * rf)
	case "/":
		if rf == 0 {
			fail("division by zero")
		}
		return Num(lf / rf)
	case "%":
		if bothInt {
			if rhs.Data.(int64) == 0 {
				fail("integer modulo by zero")
			}
			return Int(lhs.Data.(int64) % rhs.Data.(int64))
		}
		if rf == 0 {
			fail("float modulo by zero")
		}
		return Num(math.Mod(lf, rf))
	}
	failf("unknown arithmetic operator %q", op)
	return Null
}

func compareOrdered(op string, lhs, rhs Value) Value {
	if lhs.Tag == VTStr && rhs.Tag == VTStr {
		a, b := lhs.Data.(string), rhs.Data.(string)
		switch op {
		case "<":
			return Bool(a < b)
		case "<=":
			return Bool(a <= b)
		case ">":
			return Bool(a > b)
		default:
			return Bool(a >= b)
		}
	}
	lf, lok := numOf(lhs)
	rf, rok := numOf(rhs)
	if !lok || !rok {
		failf("%q not supported between %s and %s", op, TypeName(lhs), TypeName(rhs))
	}
	switch op {
	case "<":
		return Bool(lf < rf)
	case "<=":
		return Bool(lf <= rf)
	case ">":
		return Bool(lf > rf)
	default:
		return Bool(lf >= rf)
	}
}

// valueEquals is deep structural equality, with int/float comparing by
// numeric value. Records compare by handle identity (aliases are equal, two
// distinct records with equal fields are not), matching reference semantics.
func valueEquals(a, b Value) bool {
	if af, aok := numOf(a); aok {
		if bf, bok := numOf(b); bok {
			return af == bf
		}
		return false
	}
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case VTNull:
		return true
	case VTBool:
		return a.Data.(bool) == b.Data.(bool)
	case VTStr:
		return a.Data.(string) == b.Data.(string)
	case VTArray:
		xs, ys := a.Data.([]Value), b.Data.([]Value)
		if len(xs) != len(ys) {
			return false
		}
		for i := range xs {
			if !valueEquals(xs[i], ys[i]) {
				return false
			}
		}
		return true
	case VTMap:
		ma, mb := a.Data.(*MapObject), b.Data.(*MapObject)
		if len(ma.Keys) != len(mb.Keys) {
			return false
		}
		for _, k := range ma.Keys {
			bv, ok := mb.Get(k)
			if !ok || !valueEquals(ma.Entries[k], bv) {
				return false
			}
		}
		return true
	case VTRecord:
		return a.Data.(*Record) == b.Data.(*Record)
	case VTClass:
		return a.Data.(*Class) == b.Data.(*Class)
	case VTNative:
		return a.Data.(*Native) == b.Data.(*Native)
	}
	return false
}

// contains implements the `in` operator: element of a list, key of a dict,
// substring of a string.
func contains(needle, hay Value) bool {
	switch hay.Tag {
	case VTArray:
		for _, x := range hay.Data.([]Value) {
			if valueEquals(needle, x) {
				return true
			}
		}
		return false
	case VTMap:
		if needle.Tag != VTStr {
			return false
		}
		_, ok := hay.Data.(*MapObject).Get(needle.Data.(string))
		return ok
	case VTStr:
		if needle.Tag != VTStr {
			failf("'in <str>' requires a string operand, got %s", TypeName(needle))
		}
		return strings.Contains(hay.Data.(string), needle.Data.(string))
	}
	failf("%s object is not a container", TypeName(hay))
	return false
}
