// record.go — step records and JSON-safe variable snapshots.
//
// A StepRecord pairs a source line with a point-in-time copy of every
// binding in the execution frame plus a human-readable description. The
// snapshot is a deep, independent copy: mutating a record instance after a
// step is captured never changes the snapshot already stored.
package ruledbg

import "encoding/json"

// StepRecord is one recorded unit of execution progress.
//
// Wire shape: { line, variables, output, error?, traceback? }.
// InstrumentedLine is the line in the augmented source when the
// instrumentation engine produced the step; it equals Line when no rewrite
// occurred and is not part of the wire shape.
type StepRecord struct {
	Line             int                    `json:"line"`
	Variables        map[string]interface{} `json:"variables"`
	Output           string                 `json:"output"`
	Error            string                 `json:"error,omitempty"`
	Traceback        string                 `json:"traceback,omitempty"`
	InstrumentedLine int                    `json:"-"`
}

// Recorder accumulates step records for one execution. One Recorder per run;
// never shared across concurrent executions.
type Recorder struct {
	steps []StepRecord
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Capture appends a step for the statement that just executed.
func (r *Recorder) Capture(line, instrLine int, env *Env, desc string) {
	r.steps = append(r.steps, StepRecord{
		Line:             line,
		InstrumentedLine: instrLine,
		Variables:        SnapshotEnv(env),
		Output:           desc,
	})
}

// CaptureError appends the terminal error step. All previously captured
// steps stay intact.
func (r *Recorder) CaptureError(line int, env *Env, msg, trace string) {
	r.steps = append(r.steps, StepRecord{
		Line:             line,
		InstrumentedLine: line,
		Variables:        SnapshotEnv(env),
		Output:           "Error: " + msg,
		Error:            msg,
		Traceback:        trace,
	})
}

// Steps returns the records captured so far, in order.
func (r *Recorder) Steps() []StepRecord {
	if r.steps == nil {
		return []StepRecord{}
	}
	return r.steps
}

// SnapshotEnv deep-copies the execution frame's bindings into a JSON-safe
// map. Each binding is normalized independently: one unencodable value falls
// back to its display string without disturbing the others, and nothing here
// can abort capture.
func SnapshotEnv(env *Env) map[string]interface{} {
	if env == nil {
		return map[string]interface{}{}
	}
	local := env.Local()
	out := make(map[string]interface{}, len(local))
	for name, v := range local {
		out[name] = jsonSafe(v)
	}
	return out
}

// jsonSafe converts a runtime value to a JSON-encodable Go value, falling
// back to the display-string form for kinds the serializer does not support
// natively (records, classes, builtins).
func jsonSafe(v Value) interface{} {
	var converted interface{}
	switch v.Tag {
	case VTNull:
		converted = nil
	case VTBool, VTInt, VTNum, VTStr:
		converted = v.Data
	case VTArray:
		xs := v.Data.([]Value)
		arr := make([]interface{}, len(xs))
		for i, x := range xs {
			arr[i] = jsonSafe(x)
		}
		converted = arr
	case VTMap:
		m := v.Data.(*MapObject)
		obj := make(map[string]interface{}, len(m.Keys))
		for _, k := range m.Keys {
			obj[k] = jsonSafe(m.Entries[k])
		}
		converted = obj
	default:
		return v.String()
	}
	// Probe the encoder the way the original capture path does; degrade to
	// the display string rather than letting a failure escape.
	if _, err := json.Marshal(converted); err != nil {
		return v.String()
	}
	return converted
}
