package sequencer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/light-scattering-iogs/caqtus-sub004/internal/expression"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/instruction"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/timeline"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/units"
)

func digitalLane(channel string, cells ...timeline.DigitalCell) *timeline.Lane {
	return &timeline.Lane{
		Name:    channel + " lane",
		Device:  "seq0",
		Channel: channel,
		Digital: &timeline.DigitalLane{Cells: cells},
	}
}

func analogLane(channel, unit string, cells ...timeline.AnalogCell) *timeline.Lane {
	return &timeline.Lane{
		Name:    channel + " lane",
		Device:  "seq0",
		Channel: channel,
		Analog:  &timeline.AnalogLane{Unit: unit, Cells: cells},
	}
}

func constCell(text string, span uint64) timeline.AnalogCell {
	return timeline.AnalogCell{Value: timeline.Constant{Expression: expression.MustNew(text)}, Span: span}
}

func mustTiming(t *testing.T, durations []string, timeStep uint64) *Timing {
	t.Helper()
	timing, err := ComputeTiming(steps(durations...), nil, timeStep)
	require.NoError(t, err)
	return timing
}

// A one-second-per-step digital lane at a nanosecond time step compiles to
// two billion ticks without materializing any of them.
func TestCompileLane_DigitalConstantHalves(t *testing.T) {
	lane := digitalLane("ttl0",
		timeline.DigitalCell{Value: timeline.Level{High: true}, Span: 1},
		timeline.DigitalCell{Value: timeline.Level{High: false}, Span: 1},
	)
	timing := mustTiming(t, []string{"1 s", "1 s"}, 1)

	compiled, err := CompileLane(context.Background(), lane, timing, nil)
	require.NoError(t, err)
	instr := compiled.Instruction
	require.Equal(t, uint64(2_000_000_000), instr.Length())

	for tick, want := range map[uint64]bool{
		0:               true,
		999_999_999:     true,
		1_000_000_000:   false,
		1_999_999_999:   false,
	} {
		row, err := instruction.At(instr, tick)
		require.NoError(t, err)
		require.Equal(t, want, row["ttl0"], "tick %d", tick)
	}
}

// Identical consecutive constant cells fold into one run.
func TestCompileLane_FoldsEqualConstantRuns(t *testing.T) {
	lane := digitalLane("ttl0",
		timeline.DigitalCell{Value: timeline.Level{High: true}, Span: 2},
		timeline.DigitalCell{Value: timeline.Level{High: false}, Span: 1},
	)
	timing := mustTiming(t, []string{"1 s", "1 s", "1 s"}, 1)

	compiled, err := CompileLane(context.Background(), lane, timing, nil)
	require.NoError(t, err)
	cat, ok := compiled.Instruction.(*instruction.Concatenate)
	require.True(t, ok)
	require.Len(t, cat.Children(), 2)

	high, ok := cat.Children()[0].(*instruction.Repeat)
	require.True(t, ok)
	require.Equal(t, uint64(2_000_000_000), high.Count())
	low, ok := cat.Children()[1].(*instruction.Repeat)
	require.True(t, ok)
	require.Equal(t, uint64(1_000_000_000), low.Count())
}

func TestCompileLane_ZeroSpanCellsAreAbsorbed(t *testing.T) {
	lane := digitalLane("ttl0",
		timeline.DigitalCell{Value: timeline.Level{High: true}, Span: 2},
		timeline.DigitalCell{Value: timeline.Level{High: false}, Span: 0},
		timeline.DigitalCell{Value: timeline.Level{High: false}, Span: 1},
	)
	timing := mustTiming(t, []string{"4 ns", "4 ns", "4 ns"}, 1)

	compiled, err := CompileLane(context.Background(), lane, timing, nil)
	require.NoError(t, err)
	bools, err := instruction.Flatten(compiled.Instruction).Bools("ttl0")
	require.NoError(t, err)
	require.Equal(t, []bool{
		true, true, true, true, true, true, true, true,
		false, false, false, false,
	}, bools)
}

func TestCompileLane_Blink(t *testing.T) {
	lane := digitalLane("ttl0", timeline.DigitalCell{
		Value: timeline.Blink{
			Period:    expression.MustNew("4 ns"),
			DutyCycle: expression.MustNew("50 %"),
		},
		Span: 1,
	})
	timing := mustTiming(t, []string{"10 ns"}, 1)

	compiled, err := CompileLane(context.Background(), lane, timing, nil)
	require.NoError(t, err)
	bools, err := instruction.Flatten(compiled.Instruction).Bools("ttl0")
	require.NoError(t, err)
	// Two whole TTFF cycles plus a partial TT.
	require.Equal(t, []bool{
		true, true, false, false,
		true, true, false, false,
		true, true,
	}, bools)
}

func TestCompileLane_BlinkPhaseRotatesFirstCycle(t *testing.T) {
	lane := digitalLane("ttl0", timeline.DigitalCell{
		Value: timeline.Blink{
			Period:    expression.MustNew("4 ns"),
			DutyCycle: expression.MustNew("0.5"),
			Phase:     expression.MustNew("2 ns"),
		},
		Span: 1,
	})
	timing := mustTiming(t, []string{"8 ns"}, 1)

	compiled, err := CompileLane(context.Background(), lane, timing, nil)
	require.NoError(t, err)
	bools, err := instruction.Flatten(compiled.Instruction).Bools("ttl0")
	require.NoError(t, err)
	require.Equal(t, []bool{
		false, false, true, true,
		false, false, true, true,
	}, bools)
}

func TestCompileLane_BlinkNegativePhaseRotatesBackwards(t *testing.T) {
	compile := func(phase string) []bool {
		lane := digitalLane("ttl0", timeline.DigitalCell{
			Value: timeline.Blink{
				Period:    expression.MustNew("3 ns"),
				DutyCycle: expression.MustNew("1.0 / 3"),
				Phase:     expression.MustNew(phase),
			},
			Span: 1,
		})
		timing := mustTiming(t, []string{"6 ns"}, 1)
		compiled, err := CompileLane(context.Background(), lane, timing, nil)
		require.NoError(t, err)
		bools, err := instruction.Flatten(compiled.Instruction).Bools("ttl0")
		require.NoError(t, err)
		return bools
	}

	// -2 ns is congruent to +1 ns modulo the 3-tick period.
	require.Equal(t, compile("1 ns"), compile("ns(0 - 2)"))
	require.Equal(t, []bool{
		false, false, true,
		false, false, true,
	}, compile("ns(0 - 2)"))
}

func TestCompileLane_BlinkParameterValidation(t *testing.T) {
	for name, blink := range map[string]timeline.Blink{
		"zero period": {
			Period:    expression.MustNew("0 s"),
			DutyCycle: expression.MustNew("0.5"),
		},
		"negative duty": {
			Period:    expression.MustNew("4 ns"),
			DutyCycle: expression.MustNew("0 - 0.5"),
		},
		"duty above one": {
			Period:    expression.MustNew("4 ns"),
			DutyCycle: expression.MustNew("1.5"),
		},
	} {
		lane := digitalLane("ttl0", timeline.DigitalCell{Value: blink, Span: 1})
		timing := mustTiming(t, []string{"10 ns"}, 1)
		_, err := CompileLane(context.Background(), lane, timing, nil)
		var blinkErr *InvalidBlinkParameterError
		require.ErrorAs(t, err, &blinkErr, name)
	}
}

// The dB scenario: 0 dB is unity, 10 dB is a power ratio of ten.
func TestCompileLane_AnalogDecibels(t *testing.T) {
	lane := analogLane("ao0", "dB", constCell("0 dB", 1), constCell("10 dB", 1))
	timing := mustTiming(t, []string{"10 ns", "10 ns"}, 1)

	compiled, err := CompileLane(context.Background(), lane, timing, nil)
	require.NoError(t, err)
	floats, err := instruction.Flatten(compiled.Instruction).Floats("ao0")
	require.NoError(t, err)
	require.Len(t, floats, 20)
	for i, f := range floats {
		if i < 10 {
			require.Equal(t, 1.0, f, "tick %d", i)
		} else {
			require.Equal(t, 10.0, f, "tick %d", i)
		}
	}
}

func TestCompileLane_AnalogRampInterpolates(t *testing.T) {
	lane := analogLane("ao0", "V",
		constCell("1 V", 1),
		timeline.AnalogCell{Value: timeline.Ramp{}, Span: 1},
		constCell("3 V", 1),
	)
	timing := mustTiming(t, []string{"2 ns", "4 ns", "2 ns"}, 1)

	compiled, err := CompileLane(context.Background(), lane, timing, nil)
	require.NoError(t, err)
	floats, err := instruction.Flatten(compiled.Instruction).Floats("ao0")
	require.NoError(t, err)
	require.Equal(t, []float64{1, 1, 1, 1.5, 2, 2.5, 3, 3}, floats)
}

func TestCompileLane_RampNeedsConcreteNeighbors(t *testing.T) {
	edge := analogLane("ao0", "V",
		timeline.AnalogCell{Value: timeline.Ramp{}, Span: 1},
		constCell("1 V", 1),
	)
	adjacent := analogLane("ao0", "V",
		constCell("1 V", 1),
		timeline.AnalogCell{Value: timeline.Ramp{}, Span: 1},
		timeline.AnalogCell{Value: timeline.Ramp{}, Span: 1},
		constCell("2 V", 1),
	)
	for name, lane := range map[string]*timeline.Lane{"edge": edge, "adjacent": adjacent} {
		timing := mustTiming(t, manyNs(len(lane.Analog.Cells)), 1)
		_, err := CompileLane(context.Background(), lane, timing, nil)
		var rampErr *RampBoundaryError
		require.ErrorAs(t, err, &rampErr, name)
	}
}

func manyNs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "4 ns"
	}
	return out
}

func TestCompileLane_UnitMismatch(t *testing.T) {
	lane := analogLane("ao0", "V", constCell("80 MHz", 1))
	timing := mustTiming(t, []string{"4 ns"}, 1)
	_, err := CompileLane(context.Background(), lane, timing, nil)
	var unitErr *UnitMismatchError
	require.ErrorAs(t, err, &unitErr)
	require.Equal(t, "V", unitErr.Declared)

	bare := analogLane("ao0", "V", constCell("2.5", 1))
	_, err = CompileLane(context.Background(), bare, timing, nil)
	require.ErrorAs(t, err, &unitErr)
}

func TestCompileLane_EvaluationErrorCarriesContext(t *testing.T) {
	lane := analogLane("ao0", "V", constCell("V(base + offset)", 1))
	timing := mustTiming(t, []string{"4 ns"}, 1)

	_, err := CompileLane(context.Background(), lane, timing, expression.Namespace{
		"base": expression.Number(1),
	})
	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	require.Equal(t, "ao0 lane", evalErr.Lane)
	require.Equal(t, "V(base + offset)", evalErr.Expression)
}

func TestCompileLane_CameraExposures(t *testing.T) {
	lane := &timeline.Lane{
		Name:    "imaging",
		Device:  "cam0",
		Channel: "exposure",
		Camera: &timeline.CameraLane{Cells: []timeline.CameraCell{
			{Picture: "", Span: 1},
			{Picture: "mot", Span: 2},
			{Picture: "", Span: 1},
			{Picture: "background", Span: 1},
		}},
	}
	timing := mustTiming(t, []string{"10 ns", "10 ns", "10 ns", "10 ns", "10 ns"}, 1)

	compiled, err := CompileLane(context.Background(), lane, timing, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(50), compiled.Instruction.Length())

	require.Len(t, compiled.Exposures, 2)
	require.Equal(t, "mot", compiled.Exposures[0].Picture)
	require.Equal(t, uint64(20), compiled.Exposures[0].Ticks)
	require.InEpsilon(t, 20e-9, compiled.Exposures[0].Duration.Magnitude, 1e-12)
	require.Equal(t, units.Time, compiled.Exposures[0].Duration.Dimension)
	require.Equal(t, "background", compiled.Exposures[1].Picture)

	bools, err := instruction.Flatten(compiled.Instruction).Bools("exposure")
	require.NoError(t, err)
	require.False(t, bools[0])
	require.True(t, bools[10])
	require.True(t, bools[29])
	require.False(t, bools[30])
	require.True(t, bools[49])
}

func TestCompileLane_CameraRejectsSplitPicture(t *testing.T) {
	lane := &timeline.Lane{
		Name:    "imaging",
		Device:  "cam0",
		Channel: "exposure",
		Camera: &timeline.CameraLane{Cells: []timeline.CameraCell{
			{Picture: "mot", Span: 1},
			{Picture: "", Span: 1},
			{Picture: "mot", Span: 1},
		}},
	}
	timing := mustTiming(t, []string{"10 ns", "10 ns", "10 ns"}, 1)

	_, err := CompileLane(context.Background(), lane, timing, nil)
	var laneErr *timeline.LaneStructureError
	require.ErrorAs(t, err, &laneErr)
}

func TestCompileLane_IsDeterministic(t *testing.T) {
	lane := analogLane("ao0", "V",
		constCell("V(amplitude)", 1),
		timeline.AnalogCell{Value: timeline.Ramp{}, Span: 1},
		constCell("0 V", 1),
	)
	timing := mustTiming(t, []string{"5 ns", "10 ns", "5 ns"}, 1)
	vars := expression.Namespace{"amplitude": expression.Number(2)}

	first, err := CompileLane(context.Background(), lane, timing, vars)
	require.NoError(t, err)
	second, err := CompileLane(context.Background(), lane, timing, vars)
	require.NoError(t, err)
	require.True(t, instruction.Equal(first.Instruction, second.Instruction))
}
