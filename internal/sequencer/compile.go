package sequencer

import (
	"context"
	"fmt"
	"math"

	"github.com/light-scattering-iogs/caqtus-sub004/internal/ctxlog"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/expression"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/instruction"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/timeline"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/units"
)

// Exposure is one picture taken by a camera lane, with its real-time
// duration. Exposure lists ride alongside the boolean instruction; they are
// not part of the instruction tree.
type Exposure struct {
	Picture  string
	Ticks    uint64
	Duration units.Quantity
}

// CompiledLane is the result of compiling one lane: the per-channel
// instruction and, for camera lanes, the picture exposure list.
type CompiledLane struct {
	Instruction instruction.Instruction
	Exposures   []Exposure
}

// CompileLane turns one lane into an instruction of exactly
// timing.TotalTicks() ticks. Compilation is pure; failures abort the lane
// with no partial result.
func CompileLane(ctx context.Context, lane *timeline.Lane, timing *Timing, vars expression.Namespace) (*CompiledLane, error) {
	logger := ctxlog.FromContext(ctx)

	// Lane structure is validated upstream when the shot file is loaded,
	// and re-checked here because a malformed lane must never reach
	// hardware.
	if err := lane.Validate(uint64(timing.StepCount())); err != nil {
		return nil, err
	}

	var (
		compiled *CompiledLane
		err      error
	)
	switch {
	case lane.Digital != nil:
		compiled, err = compileDigital(lane, timing, vars)
	case lane.Analog != nil:
		compiled, err = compileAnalog(lane, timing, vars)
	case lane.Camera != nil:
		compiled, err = compileCamera(lane, timing)
	}
	if err != nil {
		return nil, err
	}

	if got := compiled.Instruction.Length(); got != timing.TotalTicks() {
		return nil, fmt.Errorf("lane %q: compiled to %d ticks, expected %d", lane.Name, got, timing.TotalTicks())
	}
	logger.Debug("Compiled lane.", "lane", lane.Name, "channel", lane.Channel, "ticks", compiled.Instruction.Length())
	return compiled, nil
}

// effectiveCell is one cell after zero-span absorption, with its tick
// range resolved.
type effectiveCell[V any] struct {
	value V
	from  uint64
	to    uint64
}

// resolveCells drops absorbed (zero-span) cells and attaches tick ranges.
func resolveCells[V any](values []V, spans []uint64, timing *Timing) []effectiveCell[V] {
	out := make([]effectiveCell[V], 0, len(values))
	step := uint64(0)
	for i, span := range spans {
		if span == 0 {
			continue
		}
		from, to := timing.TickRange(step, span)
		step += span
		out = append(out, effectiveCell[V]{value: values[i], from: from, to: to})
	}
	return out
}

func compileDigital(lane *timeline.Lane, timing *Timing, vars expression.Namespace) (*CompiledLane, error) {
	values := make([]timeline.DigitalValue, len(lane.Digital.Cells))
	spans := make([]uint64, len(lane.Digital.Cells))
	for i, c := range lane.Digital.Cells {
		values[i], spans[i] = c.Value, c.Span
	}

	asm := newAssembler(lane.Channel)
	for _, cell := range resolveCells(values, spans, timing) {
		n := cell.to - cell.from
		if n == 0 {
			continue
		}
		switch v := cell.value.(type) {
		case timeline.Level:
			if err := asm.constantBool(v.High, n); err != nil {
				return nil, err
			}
		case timeline.Blink:
			blink, err := compileBlink(lane, v, n, timing, vars)
			if err != nil {
				return nil, err
			}
			if err := asm.add(blink); err != nil {
				return nil, err
			}
		}
	}
	instr, err := asm.result()
	if err != nil {
		return nil, err
	}
	return &CompiledLane{Instruction: instr}, nil
}

// compileBlink builds Repeat(high+low cycle) for the whole cycles of the
// cell, a partial final cycle for the remainder, and rotates the starting
// point by the phase.
func compileBlink(lane *timeline.Lane, blink timeline.Blink, n uint64, timing *Timing, vars expression.Namespace) (instruction.Instruction, error) {
	periodNs, err := evalTimeNs(lane, blink.Period, vars)
	if err != nil {
		return nil, err
	}
	duty, err := evalRatio(lane, blink.DutyCycle, vars)
	if err != nil {
		return nil, err
	}
	phaseNs := 0.0
	if blink.Phase != nil {
		phaseNs, err = evalTimeNs(lane, blink.Phase, vars)
		if err != nil {
			return nil, err
		}
	}

	if periodNs <= 0 {
		return nil, &InvalidBlinkParameterError{Lane: lane.Name, Parameter: "period", Value: periodNs * 1e-9}
	}
	if duty <= 0 || duty > 1 {
		return nil, &InvalidBlinkParameterError{Lane: lane.Name, Parameter: "duty_cycle", Value: duty}
	}

	dt := float64(timing.TimeStep)
	periodTicks := uint64(math.Round(periodNs / dt))
	if periodTicks == 0 {
		return nil, &InvalidBlinkParameterError{Lane: lane.Name, Parameter: "period", Value: periodNs * 1e-9}
	}
	high := uint64(math.Round(duty * periodNs / dt))
	if high > periodTicks {
		high = periodTicks
	}
	low := periodTicks - high

	var parts []instruction.Instruction
	if high > 0 {
		run, err := instruction.ConstantBool(lane.Channel, true, high)
		if err != nil {
			return nil, err
		}
		parts = append(parts, run)
	}
	if low > 0 {
		run, err := instruction.ConstantBool(lane.Channel, false, low)
		if err != nil {
			return nil, err
		}
		parts = append(parts, run)
	}
	cycle, err := instruction.Concat(parts...)
	if err != nil {
		return nil, err
	}

	// Signed modulo so a negative phase rotates backwards instead of going
	// through an out-of-range float to uint64 conversion.
	offset := int64(math.Round(phaseNs/dt)) % int64(periodTicks)
	if offset < 0 {
		offset += int64(periodTicks)
	}
	if offset > 0 {
		head, tail, err := instruction.Split(cycle, uint64(offset))
		if err != nil {
			return nil, err
		}
		cycle, err = instruction.Concat(tail, head)
		if err != nil {
			return nil, err
		}
	}

	whole, rem := n/periodTicks, n%periodTicks
	var out []instruction.Instruction
	if whole > 0 {
		rep, err := instruction.NewRepeat(cycle, whole)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	if rem > 0 {
		partial := cycle
		if rem < periodTicks {
			partial, _, err = instruction.Split(cycle, rem)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, partial)
	}
	return instruction.Concat(out...)
}

func compileAnalog(lane *timeline.Lane, timing *Timing, vars expression.Namespace) (*CompiledLane, error) {
	declared, err := units.DimensionOf(lane.Analog.Unit)
	if err != nil {
		return nil, &timeline.LaneStructureError{Lane: lane.Name, Detail: err.Error()}
	}

	values := make([]timeline.AnalogValue, len(lane.Analog.Cells))
	spans := make([]uint64, len(lane.Analog.Cells))
	for i, c := range lane.Analog.Cells {
		values[i], spans[i] = c.Value, c.Span
	}
	cells := resolveCells(values, spans, timing)

	// Constants are evaluated once per cell, up front, because ramp cells
	// interpolate between their neighbors' values.
	levels := make([]float64, len(cells))
	isRamp := make([]bool, len(cells))
	for i, cell := range cells {
		switch v := cell.value.(type) {
		case timeline.Constant:
			levels[i], err = evalAnalogValue(lane, declared, v.Expression, vars)
			if err != nil {
				return nil, err
			}
		case timeline.Ramp:
			isRamp[i] = true
		}
	}
	for i := range cells {
		if !isRamp[i] {
			continue
		}
		if i == 0 || i == len(cells)-1 || isRamp[i-1] || isRamp[i+1] {
			return nil, &RampBoundaryError{Lane: lane.Name, Cell: i}
		}
	}

	asm := newAssembler(lane.Channel)
	for i, cell := range cells {
		n := cell.to - cell.from
		if n == 0 {
			continue
		}
		if !isRamp[i] {
			if err := asm.constantFloat(levels[i], n); err != nil {
				return nil, err
			}
			continue
		}
		start, end := levels[i-1], levels[i+1]
		samples := make([]float64, n)
		for t := uint64(0); t < n; t++ {
			samples[t] = start + (end-start)*float64(t)/float64(n)
		}
		ramp, err := instruction.NewFloatPattern(lane.Channel, samples)
		if err != nil {
			return nil, err
		}
		if err := asm.add(ramp); err != nil {
			return nil, err
		}
	}
	instr, err := asm.result()
	if err != nil {
		return nil, err
	}
	return &CompiledLane{Instruction: instr}, nil
}

func compileCamera(lane *timeline.Lane, timing *Timing) (*CompiledLane, error) {
	values := make([]string, len(lane.Camera.Cells))
	spans := make([]uint64, len(lane.Camera.Cells))
	for i, c := range lane.Camera.Cells {
		values[i], spans[i] = c.Picture, c.Span
	}
	cells := resolveCells(values, spans, timing)

	// Adjacent cells naming the same picture are one continuous exposure.
	// The same name reappearing later in the lane is rejected upstream and
	// re-checked here.
	type run struct {
		picture string
		ticks   uint64
	}
	var runs []run
	for _, cell := range cells {
		n := cell.to - cell.from
		if len(runs) > 0 && runs[len(runs)-1].picture == cell.value {
			runs[len(runs)-1].ticks += n
			continue
		}
		runs = append(runs, run{picture: cell.value, ticks: n})
	}
	seen := make(map[string]bool)
	for _, r := range runs {
		if r.picture == "" {
			continue
		}
		if seen[r.picture] {
			return nil, &timeline.LaneStructureError{
				Lane:   lane.Name,
				Detail: fmt.Sprintf("picture %q appears in two separate exposures", r.picture),
			}
		}
		seen[r.picture] = true
	}

	asm := newAssembler(lane.Channel)
	var exposures []Exposure
	for _, r := range runs {
		if r.ticks == 0 {
			continue
		}
		if err := asm.constantBool(r.picture != "", r.ticks); err != nil {
			return nil, err
		}
		if r.picture != "" {
			exposures = append(exposures, Exposure{
				Picture:  r.picture,
				Ticks:    r.ticks,
				Duration: timing.Duration(r.ticks),
			})
		}
	}
	instr, err := asm.result()
	if err != nil {
		return nil, err
	}
	return &CompiledLane{Instruction: instr, Exposures: exposures}, nil
}

// evalTimeNs evaluates an expression expected to produce a time quantity
// and returns nanoseconds.
func evalTimeNs(lane *timeline.Lane, expr *expression.Expression, vars expression.Namespace) (float64, error) {
	value, err := expr.Evaluate(vars)
	if err != nil {
		return 0, &EvaluationError{Lane: lane.Name, Expression: expr.Text(), Cause: err}
	}
	q, ok := value.Quantity()
	if !ok {
		return 0, &EvaluationError{
			Lane:       lane.Name,
			Expression: expr.Text(),
			Cause:      fmt.Errorf("expected a time quantity, got %s", value),
		}
	}
	ns, err := q.Nanoseconds()
	if err != nil {
		return 0, &EvaluationError{Lane: lane.Name, Expression: expr.Text(), Cause: err}
	}
	return ns, nil
}

// evalRatio evaluates an expression expected to produce a dimensionless
// ratio, such as a duty cycle.
func evalRatio(lane *timeline.Lane, expr *expression.Expression, vars expression.Namespace) (float64, error) {
	value, err := expr.Evaluate(vars)
	if err != nil {
		return 0, &EvaluationError{Lane: lane.Name, Expression: expr.Text(), Cause: err}
	}
	f, err := value.Float()
	if err != nil {
		return 0, &EvaluationError{Lane: lane.Name, Expression: expr.Text(), Cause: err}
	}
	return f, nil
}

// evalAnalogValue evaluates one analog cell and checks it against the
// lane's declared unit dimension.
func evalAnalogValue(lane *timeline.Lane, declared units.Dimension, expr *expression.Expression, vars expression.Namespace) (float64, error) {
	value, err := expr.Evaluate(vars)
	if err != nil {
		return 0, &EvaluationError{Lane: lane.Name, Expression: expr.Text(), Cause: err}
	}
	if q, ok := value.Quantity(); ok {
		if q.Dimension != declared {
			return 0, &UnitMismatchError{Lane: lane.Name, Declared: lane.Analog.Unit, Got: q.Dimension.String()}
		}
		return q.Magnitude, nil
	}
	// A bare number is dimensionless; it only fits a dimensionless lane.
	f, err := value.Float()
	if err != nil {
		return 0, &EvaluationError{Lane: lane.Name, Expression: expr.Text(), Cause: err}
	}
	if declared != units.Dimensionless {
		return 0, &UnitMismatchError{Lane: lane.Name, Declared: lane.Analog.Unit, Got: units.Dimensionless.String()}
	}
	return f, nil
}
