package sequencer

import "fmt"

// EvaluationError reports a symbolic expression that failed to evaluate
// during lane compilation. It carries enough context to point the
// experimenter at the offending cell.
type EvaluationError struct {
	Lane       string
	Step       string
	Expression string
	Cause      error
}

func (e *EvaluationError) Error() string {
	where := ""
	if e.Step != "" {
		where = fmt.Sprintf(" (step %q)", e.Step)
	}
	if e.Lane != "" {
		where += fmt.Sprintf(" (lane %q)", e.Lane)
	}
	return fmt.Sprintf("evaluating %q%s: %v", e.Expression, where, e.Cause)
}

func (e *EvaluationError) Unwrap() error { return e.Cause }

// UnitMismatchError reports an analog value whose dimension does not match
// the lane's declared unit.
type UnitMismatchError struct {
	Lane     string
	Declared string
	Got      string
}

func (e *UnitMismatchError) Error() string {
	return fmt.Sprintf("lane %q: value dimension %s does not match declared unit %q", e.Lane, e.Got, e.Declared)
}

// InvalidBlinkParameterError reports a blink whose period, duty cycle or
// phase is outside its valid range.
type InvalidBlinkParameterError struct {
	Lane      string
	Parameter string
	Value     float64
}

func (e *InvalidBlinkParameterError) Error() string {
	return fmt.Sprintf("lane %q: invalid blink %s %g", e.Lane, e.Parameter, e.Value)
}

// RampBoundaryError reports a ramp cell that is not bounded by a concrete
// value on both sides.
type RampBoundaryError struct {
	Lane string
	Cell int
}

func (e *RampBoundaryError) Error() string {
	return fmt.Sprintf("lane %q: ramp cell %d must have a concrete value on each side", e.Lane, e.Cell)
}
