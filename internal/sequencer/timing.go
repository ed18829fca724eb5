// Package sequencer compiles one lane of a shot timeline into a
// tick-quantized instruction for its target device.
package sequencer

import (
	"fmt"
	"math"

	"github.com/light-scattering-iogs/caqtus-sub004/internal/expression"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/timeline"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/units"
)

// Timing holds the evaluated step boundaries of a shot quantized to one
// device's ticks. It is shared by every lane compiled for that device.
type Timing struct {
	// TimeStep is the device quantization unit in nanoseconds per tick.
	TimeStep uint64
	// stepNames keeps the declared step order for error context.
	stepNames []string
	// boundariesNs[s] is the real-time end of step s-1 in nanoseconds;
	// boundariesNs[0] is zero.
	boundariesNs []float64
	// boundaryTicks are the same boundaries quantized to ticks. Each
	// boundary is rounded from the cumulative time, never from per-step
	// durations, so rounding error does not accumulate across steps.
	boundaryTicks []uint64
}

// ComputeTiming evaluates every step duration against the variables and
// quantizes the cumulative boundaries to the device time step.
func ComputeTiming(steps []timeline.Step, vars expression.Namespace, timeStep uint64) (*Timing, error) {
	if timeStep == 0 {
		return nil, fmt.Errorf("time step must be positive")
	}
	t := &Timing{
		TimeStep:      timeStep,
		stepNames:     make([]string, len(steps)),
		boundariesNs:  make([]float64, len(steps)+1),
		boundaryTicks: make([]uint64, len(steps)+1),
	}

	elapsed := 0.0
	for i, step := range steps {
		t.stepNames[i] = step.Name
		value, err := step.Duration.Evaluate(vars)
		if err != nil {
			return nil, &EvaluationError{Step: step.Name, Expression: step.Duration.Text(), Cause: err}
		}
		q, ok := value.Quantity()
		if !ok {
			return nil, &EvaluationError{
				Step:       step.Name,
				Expression: step.Duration.Text(),
				Cause:      fmt.Errorf("duration must be a time quantity, got %s", value),
			}
		}
		ns, err := q.Nanoseconds()
		if err != nil {
			return nil, &EvaluationError{Step: step.Name, Expression: step.Duration.Text(), Cause: err}
		}
		if ns < 0 {
			return nil, &EvaluationError{
				Step:       step.Name,
				Expression: step.Duration.Text(),
				Cause:      fmt.Errorf("duration must not be negative, got %s", q),
			}
		}
		elapsed += ns
		t.boundariesNs[i+1] = elapsed
		t.boundaryTicks[i+1] = uint64(math.Round(elapsed / float64(timeStep)))
	}

	if t.TotalTicks() == 0 {
		return nil, fmt.Errorf("shot duration rounds to zero ticks at a %d ns time step", timeStep)
	}
	return t, nil
}

// TotalTicks is the tick length every lane of the device must compile to.
func (t *Timing) TotalTicks() uint64 {
	return t.boundaryTicks[len(t.boundaryTicks)-1]
}

// StepCount returns the number of steps.
func (t *Timing) StepCount() int {
	return len(t.stepNames)
}

// TickRange returns the half-open tick interval covered by steps
// [start, start+span).
func (t *Timing) TickRange(start, span uint64) (from, to uint64) {
	return t.boundaryTicks[start], t.boundaryTicks[start+span]
}

// Duration converts a tick count back to a real-time quantity in base
// seconds.
func (t *Timing) Duration(ticks uint64) units.Quantity {
	return units.Quantity{
		Magnitude: float64(ticks) * float64(t.TimeStep) * 1e-9,
		Dimension: units.Time,
	}
}
