// stepctl.go — per-run step control state.
//
// A Controller is created at the start of an execution, consulted by every
// marker report, and discarded when the run ends. It is never shared between
// concurrent runs; there is no process-wide counter.
package ruledbg

// StepMode selects how marker reports answer the continue question.
type StepMode int

const (
	// ModeStep reports every step and always continues.
	ModeStep StepMode = iota
	// ModeContinue runs freely until a registered breakpoint line is
	// reached, then drops into ModeStep.
	ModeContinue
	// ModeRunToTarget continues until the running counter reaches the
	// target step index.
	ModeRunToTarget
)

// Controller holds the running step counter, mode and target for one
// execution.
type Controller struct {
	counter     int
	mode        StepMode
	target      int
	breakpoints map[int]bool
}

// NewController returns a controller in ModeStep with the counter at zero.
func NewController() *Controller {
	return &Controller{mode: ModeStep, breakpoints: map[int]bool{}}
}

// SetMode switches the stepping mode. target is only consulted in
// ModeRunToTarget.
func (c *Controller) SetMode(mode StepMode, target int) {
	c.mode = mode
	c.target = target
}

// AddBreakpoint registers an original-source line for ModeContinue.
func (c *Controller) AddBreakpoint(line int) { c.breakpoints[line] = true }

// Count returns the number of reports so far.
func (c *Controller) Count() int { return c.counter }

// Reset zeroes the counter for a fresh run. Mode, target and breakpoints
// survive so a configured controller can be reused for the next run of the
// same rule.
func (c *Controller) Reset() { c.counter = 0 }

// Report records one marker invocation and answers whether execution should
// keep going.
func (c *Controller) Report(stepID string, instrLine, origLine int, desc string) bool {
	c.counter++
	switch c.mode {
	case ModeContinue:
		if c.breakpoints[origLine] {
			c.mode = ModeStep
		}
		return true
	case ModeRunToTarget:
		return c.counter < c.target
	default:
		return true
	}
}
