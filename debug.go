// debug.go — public entry point for debugging a business rule.
//
// Each call builds a fully isolated run: its own Env, Recorder and
// Controller. Nothing is shared across concurrent calls, so hosts may debug
// many rules in parallel.
package ruledbg

// Engine selects the execution strategy.
type Engine int

const (
	// EngineTreeWalk evaluates the syntax tree directly, recording a step
	// after each statement.
	EngineTreeWalk Engine = iota
	// EngineInstrument rewrites the rule with step markers and runs the
	// augmented form; each marker reports its own step.
	EngineInstrument
)

// Result is the serialized outcome of a debug run.
//
// Success reports that the debugger itself ran, not that the rule executed
// without error: a rule that failed mid-run still yields Success true, with
// the failure in the last step's error field.
type Result struct {
	Success    bool         `json:"success"`
	DebugSteps []StepRecord `json:"debugSteps"`
}

// Options configures a debug run. The zero value tree-walks with a stdout
// log sink and a fresh ModeStep controller.
type Options struct {
	Engine     Engine
	Sink       *LogSink    // log_message destination; nil for stdout
	Controller *Controller // consulted by markers (EngineInstrument); nil for ModeStep
}

// DebugBusinessRule executes a rule's source and returns its ordered debug
// steps, tree-walking with default options.
func DebugBusinessRule(source string) Result {
	return DebugBusinessRuleWith(source, Options{})
}

// DebugBusinessRuleWith executes a rule under explicit options. The caller
// always receives a well-formed step list: a source that fails to parse
// yields a single line-0 error step.
func DebugBusinessRuleWith(source string, opts Options) Result {
	rec := NewRecorder()

	sink := opts.Sink
	if sink == nil {
		sink = NewLogSink(nil)
		defer sink.Close()
	}

	switch opts.Engine {
	case EngineInstrument:
		ctl := opts.Controller
		if ctl == nil {
			ctl = NewController()
		}
		if _, err := RunInstrumented(source, rec, ctl, sink); err != nil {
			rec.CaptureError(0, nil, err.Error(), FormatTrace(err, source))
		}
	default:
		ip := NewInterp(rec, sink)
		if err := ip.Run(source); err != nil {
			rec.CaptureError(0, nil, err.Error(), FormatTrace(err, source))
		}
	}

	return Result{Success: true, DebugSteps: rec.Steps()}
}
