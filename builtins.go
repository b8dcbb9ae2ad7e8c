// builtins.go — the closed registry of builtins available to rule code.
//
// Rule expressions can reach exactly two kinds of names: previously-bound
// identifiers and this registry. There is no other capability: no host
// reflection, no imports, no file or network access. The registry lives in a
// Core environment frame beneath each run's execution frame, so user
// assignments shadow builtins without mutating the registry.
package ruledbg

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// defaultLogBuffer bounds the log sink queue. Writes beyond it are dropped
// rather than blocking evaluation.
const defaultLogBuffer = 256

// LogSink receives log_message output. Emit is non-blocking: messages are
// queued to a bounded buffer drained by a single goroutine, and dropped when
// the buffer is full, so a slow writer can never stall evaluation.
type LogSink struct {
	ch   chan string
	done chan struct{}
	once sync.Once
}

// NewLogSink starts a sink draining to w. Pass nil for os.Stdout.
func NewLogSink(w io.Writer) *LogSink {
	if w == nil {
		w = os.Stdout
	}
	s := &LogSink{ch: make(chan string, defaultLogBuffer), done: make(chan struct{})}
	go func() {
		defer close(s.done)
		for msg := range s.ch {
			fmt.Fprintln(w, msg)
		}
	}()
	return s
}

// Emit queues a line, dropping it if the buffer is full.
func (s *LogSink) Emit(line string) {
	select {
	case s.ch <- line:
	default:
	}
}

// Close flushes queued messages and stops the drain goroutine.
func (s *LogSink) Close() {
	s.once.Do(func() { close(s.ch) })
	<-s.done
}

// NewCoreEnv builds the builtin registry frame. sink receives log_message
// output.
func NewCoreEnv(sink *LogSink) *Env {
	core := NewEnv(nil)

	logImpl := func(args []Value, kwargs map[string]Value) Value {
		if len(args) < 1 {
			fail("log_message expects a message argument")
		}
		msg := args[0]
		text := ""
		if msg.Tag == VTStr {
			text = msg.Data.(string)
		} else {
			text = msg.String()
		}
		sink.Emit("LOG: " + text)
		// Keyword metadata is accepted and ignored by the sink contract.
		_ = kwargs
		return Str(text)
	}
	core.Define("log_message", NativeVal(&Native{
		Name: "log_message",
		Doc:  "log_message(message, **metadata) -> str: emit 'LOG: <message>' and return the message.",
		Impl: logImpl,
	}))
	core.Define("log", NativeVal(&Native{
		Name: "log",
		Doc:  "Alias of log_message.",
		Impl: logImpl,
	}))

	core.Define("len", NativeVal(&Native{
		Name: "len",
		Doc:  "len(x) -> int: length of a string, list or dict.",
		Impl: func(args []Value, _ map[string]Value) Value {
			if len(args) != 1 {
				fail("len expects exactly one argument")
			}
			switch args[0].Tag {
			case VTStr:
				return Int(int64(len(args[0].Data.(string))))
			case VTArray:
				return Int(int64(len(args[0].Data.([]Value))))
			case VTMap:
				return Int(int64(len(args[0].Data.(*MapObject).Keys)))
			}
			failf("object of type %s has no len()", TypeName(args[0]))
			return Null
		},
	}))

	core.Define("str", NativeVal(&Native{
		Name: "str",
		Doc:  "str(x) -> str: display form of any value; bare text for strings.",
		Impl: func(args []Value, _ map[string]Value) Value {
			if len(args) != 1 {
				fail("str expects exactly one argument")
			}
			if args[0].Tag == VTStr {
				return args[0]
			}
			return Str(args[0].String())
		},
	}))

	core.Define("abs", NativeVal(&Native{
		Name: "abs",
		Doc:  "abs(n) -> number: absolute value.",
		Impl: func(args []Value, _ map[string]Value) Value {
			if len(args) != 1 {
				fail("abs expects exactly one argument")
			}
			switch args[0].Tag {
			case VTInt:
				n := args[0].Data.(int64)
				if n < 0 {
					n = -n
				}
				return Int(n)
			case VTNum:
				f := args[0].Data.(float64)
				if f < 0 {
					f = -f
				}
				return Num(f)
			}
			failf("bad operand type for abs(): %s", TypeName(args[0]))
			return Null
		},
	}))

	core.Define("range", NativeVal(&Native{
		Name: "range",
		Doc:  "range(stop) or range(start, stop) -> list of ints.",
		Impl: func(args []Value, _ map[string]Value) Value {
			var start, stop int64
			switch len(args) {
			case 1:
				stop = argInt(args[0], "range")
			case 2:
				start = argInt(args[0], "range")
				stop = argInt(args[1], "range")
			default:
				fail("range expects one or two arguments")
			}
			var xs []Value
			for i := start; i < stop; i++ {
				xs = append(xs, Int(i))
			}
			return Arr(xs)
		},
	}))

	core.Define("upper", NativeVal(&Native{
		Name: "upper",
		Doc:  "upper(s) -> str: uppercase copy.",
		Impl: func(args []Value, _ map[string]Value) Value {
			return Str(strings.ToUpper(argStr1(args, "upper")))
		},
	}))
	core.Define("lower", NativeVal(&Native{
		Name: "lower",
		Doc:  "lower(s) -> str: lowercase copy.",
		Impl: func(args []Value, _ map[string]Value) Value {
			return Str(strings.ToLower(argStr1(args, "lower")))
		},
	}))

	return core
}

func argInt(v Value, who string) int64 {
	if v.Tag != VTInt {
		failf("%s expects an int, got %s", who, TypeName(v))
	}
	return v.Data.(int64)
}

func argStr1(args []Value, who string) string {
	if len(args) != 1 || args[0].Tag != VTStr {
		failf("%s expects a single string argument", who)
	}
	return args[0].Data.(string)
}
