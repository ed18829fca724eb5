package shot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/light-scattering-iogs/caqtus-sub004/internal/instruction"
)

func clockBools(t *testing.T, instr instruction.Instruction, channel string) []bool {
	t.Helper()
	values, err := instruction.Flatten(instr).Bools(channel)
	require.NoError(t, err)
	return values
}

func TestSteadyClock_PulsesEveryFollowerTick(t *testing.T) {
	clock, err := steadyClock("__clock(f)", 3, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(6), clock.Length())
	require.Equal(t,
		[]bool{true, false, true, false, true, false},
		clockBools(t, clock, "__clock(f)"))
}

func TestSteadyClock_OddRatioKeepsAnEdge(t *testing.T) {
	clock, err := steadyClock("__clock(f)", 2, 3)
	require.NoError(t, err)
	require.Equal(t,
		[]bool{true, false, false, true, false, false},
		clockBools(t, clock, "__clock(f)"))
}

func TestChangeClock_PulsesOnValueChangesOnly(t *testing.T) {
	follower, err := instruction.NewBoolPattern("x", []bool{true, true, false})
	require.NoError(t, err)

	clock, err := changeClock(follower, "__clock(f)", 2)
	require.NoError(t, err)
	require.Equal(t, uint64(6), clock.Length())
	require.Equal(t,
		[]bool{true, false, false, false, true, false},
		clockBools(t, clock, "__clock(f)"))
}

func TestChangeClock_RepeatStaysCompressed(t *testing.T) {
	cycle, err := instruction.NewBoolPattern("x", []bool{true, false})
	require.NoError(t, err)
	follower, err := instruction.NewRepeat(cycle, 1_000_000)
	require.NoError(t, err)

	clock, err := changeClock(follower, "__clock(f)", 2)
	require.NoError(t, err)
	require.Equal(t, follower.Length()*2, clock.Length())
	// Iterations after the first share one compressed Repeat instead of a
	// materialized buffer.
	cat, ok := clock.(*instruction.Concatenate)
	require.True(t, ok)
	rep, ok := cat.Children()[len(cat.Children())-1].(*instruction.Repeat)
	require.True(t, ok)
	require.Equal(t, uint64(999_999), rep.Count())
}

func TestChangeClock_SteadySegmentPulsesOnceAtStart(t *testing.T) {
	follower, err := instruction.ConstantBool("x", true, 5)
	require.NoError(t, err)

	clock, err := changeClock(follower, "__clock(f)", 2)
	require.NoError(t, err)
	require.Equal(t, uint64(10), clock.Length())

	values := clockBools(t, clock, "__clock(f)")
	require.True(t, values[0])
	for _, v := range values[1:] {
		require.False(t, v)
	}
}
