package ruledbg

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func debugQuiet(src string, opts Options) Result {
	if opts.Sink == nil {
		sink := NewLogSink(io.Discard)
		defer sink.Close()
		opts.Sink = sink
	}
	return DebugBusinessRuleWith(src, opts)
}

func TestDebugSuccessIsAlwaysTrue(t *testing.T) {
	// Success reports that the debugger ran, not that the rule succeeded.
	res := debugQuiet("a = 1\nb = a / 0\n", Options{})
	assert.True(t, res.Success)
	require.NotEmpty(t, res.DebugSteps)
	last := res.DebugSteps[len(res.DebugSteps)-1]
	assert.Contains(t, last.Error, "division by zero")
}

func TestDebugParseFailureSingleStep(t *testing.T) {
	res := debugQuiet("if x\n", Options{})
	assert.True(t, res.Success)
	require.Len(t, res.DebugSteps, 1)

	step := res.DebugSteps[0]
	assert.Equal(t, 0, step.Line)
	assert.NotEmpty(t, step.Error)
	assert.True(t, strings.HasPrefix(step.Output, "Error: "))
	assert.Contains(t, step.Traceback, "PARSE ERROR")
	assert.NotNil(t, step.Variables)
}

func TestDebugEnginesAgreeOnScenario(t *testing.T) {
	src := strings.Join([]string{
		"new_bool = True",
		"new_bool = False",
		"if new_bool:",
		"    log_message(\"m\")",
		"else:",
		"    log_message(\"b\")",
	}, "\n")

	walk := debugQuiet(src, Options{Engine: EngineTreeWalk})
	instr := debugQuiet(src, Options{Engine: EngineInstrument})

	// Both engines agree on the branch taken and on final variable state.
	for _, res := range []Result{walk, instr} {
		for _, s := range res.DebugSteps {
			assert.NotContains(t, s.Output, `"m"`)
		}
	}
	walkLast := walk.DebugSteps[len(walk.DebugSteps)-1]
	instrLast := instr.DebugSteps[len(instr.DebugSteps)-1]
	assert.Equal(t, walkLast.Variables, instrLast.Variables)
	assert.Equal(t, "Execution completed", instrLast.Output)
	assert.Equal(t, 0, instrLast.Line)
}

func TestDebugDefaultEngineIsTreeWalk(t *testing.T) {
	res := debugQuiet("a = 1\n", Options{})
	require.Len(t, res.DebugSteps, 1, "no completion step on the tree-walk engine")
	assert.Equal(t, "a = 1", res.DebugSteps[0].Output)
}

func TestDebugResultJSONShape(t *testing.T) {
	res := debugQuiet("a = 1\n", Options{})
	data, err := json.Marshal(res)
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, `"success":true`)
	assert.Contains(t, s, `"debugSteps"`)
	assert.Contains(t, s, `"variables":{"a":1}`)
}

func TestDebugConcurrentRunsAreIsolated(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]Result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sink := NewLogSink(io.Discard)
			defer sink.Close()
			src := fmt.Sprintf("v%d = %d\nout = v%d + 1\n", i, i, i)
			results[i] = DebugBusinessRuleWith(src, Options{Sink: sink})
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		require.Len(t, res.DebugSteps, 2, "run %d", i)
		last := res.DebugSteps[1]
		assert.Equal(t, int64(i+1), last.Variables["out"], "run %d", i)
		// No bindings from any other run leaked in.
		assert.Len(t, last.Variables, 2, "run %d saw %v", i, last.Variables)
	}
}

func TestDebugWithControllerRunToTarget(t *testing.T) {
	ctl := NewController()
	ctl.SetMode(ModeRunToTarget, 1)
	res := debugQuiet("a = 1\nb = 2\n", Options{Engine: EngineInstrument, Controller: ctl})
	require.Len(t, res.DebugSteps, 2)
	assert.Equal(t, "a = 1", res.DebugSteps[0].Output)
	assert.Equal(t, "Execution completed", res.DebugSteps[1].Output)
}
