package instruction

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func boolPattern(t *testing.T, channel string, values ...bool) *Pattern {
	t.Helper()
	p, err := NewBoolPattern(channel, values)
	require.NoError(t, err)
	return p
}

func floatPattern(t *testing.T, channel string, values ...float64) *Pattern {
	t.Helper()
	p, err := NewFloatPattern(channel, values)
	require.NoError(t, err)
	return p
}

func TestNewPattern_RejectsEmptyBuffer(t *testing.T) {
	_, err := NewBoolPattern("ttl0", nil)
	require.Error(t, err)
	require.IsType(t, &EmptyInstructionError{}, err)

	_, err = NewFloatPattern("ao0", []float64{})
	require.Error(t, err)
	require.IsType(t, &EmptyInstructionError{}, err)
}

func TestConcat_SplicesNestedConcatenates(t *testing.T) {
	a := boolPattern(t, "ttl0", true)
	b := boolPattern(t, "ttl0", false)
	c := boolPattern(t, "ttl0", true, true)

	inner, err := Concat(a, b)
	require.NoError(t, err)
	outer, err := Concat(inner, c)
	require.NoError(t, err)

	cat, ok := outer.(*Concatenate)
	require.True(t, ok)
	require.Len(t, cat.Children(), 3, "nested concatenate must be spliced")
	require.Equal(t, uint64(4), outer.Length())
	for _, child := range cat.Children() {
		_, nested := child.(*Concatenate)
		require.False(t, nested)
	}
}

func TestConcat_RejectsSchemaMismatch(t *testing.T) {
	a := boolPattern(t, "ttl0", true)
	b := boolPattern(t, "ttl1", false)

	_, err := Concat(a, b)
	require.Error(t, err)
	require.IsType(t, &SchemaMismatchError{}, err)
}

func TestNewRepeat_CountValidation(t *testing.T) {
	p := boolPattern(t, "ttl0", true, false)

	_, err := NewRepeat(p, 0)
	require.Error(t, err)
	require.IsType(t, &InvalidRepetitionError{}, err)

	same, err := NewRepeat(p, 1)
	require.NoError(t, err)
	require.Same(t, Instruction(p), same, "count of one returns the child unchanged")

	r, err := NewRepeat(p, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(6), r.Length())
}

func TestNewRepeat_CollapsesNestedRepeat(t *testing.T) {
	p := boolPattern(t, "ttl0", true)
	inner, err := NewRepeat(p, 4)
	require.NoError(t, err)
	outer, err := NewRepeat(inner, 5)
	require.NoError(t, err)

	r, ok := outer.(*Repeat)
	require.True(t, ok)
	require.Equal(t, uint64(20), r.Count())
	require.Equal(t, uint64(20), r.Length())
}

func TestSplit_RejectsBoundaryIndices(t *testing.T) {
	p := boolPattern(t, "ttl0", true, false, true)

	for _, i := range []uint64{0, 3, 4} {
		_, _, err := Split(p, i)
		require.Error(t, err, "index %d", i)
		require.IsType(t, &InvalidSplitError{}, err)
	}
}

// Split followed by Concat must reproduce the original, for every interior
// index and every tree shape.
func TestSplit_ConcatRoundTrip(t *testing.T) {
	p := boolPattern(t, "ttl0", true, false, true, true, false)
	rep, err := NewRepeat(p, 4)
	require.NoError(t, err)
	cat, err := Concat(p, rep, boolPattern(t, "ttl0", false, false))
	require.NoError(t, err)

	for name, instr := range map[string]Instruction{
		"pattern":     p,
		"repeat":      rep,
		"concatenate": cat,
	} {
		for i := uint64(1); i < instr.Length(); i++ {
			head, tail, err := Split(instr, i)
			require.NoError(t, err, "%s at %d", name, i)
			require.Equal(t, i, head.Length())
			require.Equal(t, instr.Length()-i, tail.Length())

			joined, err := Concat(head, tail)
			require.NoError(t, err)
			require.True(t, Equal(joined, instr), "%s split at %d", name, i)
		}
	}
}

// Splitting a Repeat mid-period must keep the remaining repetitions
// compressed instead of unrolling them.
func TestSplit_RepeatStaysCompressed(t *testing.T) {
	p := boolPattern(t, "ttl0", true, false)
	rep, err := NewRepeat(p, 1_000_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(2_000_000_000), rep.Length())

	head, tail, err := Split(rep, 999_999_999)
	require.NoError(t, err)
	require.Equal(t, uint64(999_999_999), head.Length())

	// Head is [Repeat(p, 499999999), Pattern(true)], tail starts with the
	// dangling false and keeps half a billion periods in one node.
	hc, ok := head.(*Concatenate)
	require.True(t, ok)
	require.Len(t, hc.Children(), 2)
	hr, ok := hc.Children()[0].(*Repeat)
	require.True(t, ok)
	require.Equal(t, uint64(499_999_999), hr.Count())

	tc, ok := tail.(*Concatenate)
	require.True(t, ok)
	require.Len(t, tc.Children(), 2)
	tr, ok := tc.Children()[1].(*Repeat)
	require.True(t, ok)
	require.Equal(t, uint64(500_000_000), tr.Count())
}

func TestSplit_RepeatOnPeriodBoundary(t *testing.T) {
	p := boolPattern(t, "ttl0", true, false)
	rep, err := NewRepeat(p, 10)
	require.NoError(t, err)

	head, tail, err := Split(rep, 6)
	require.NoError(t, err)
	hr, ok := head.(*Repeat)
	require.True(t, ok)
	require.Equal(t, uint64(3), hr.Count())
	tr, ok := tail.(*Repeat)
	require.True(t, ok)
	require.Equal(t, uint64(7), tr.Count())
}

func TestFlatten_RepeatEqualsExplicitRepetition(t *testing.T) {
	p := floatPattern(t, "ao0", 1.5, -2.25)
	rep, err := NewRepeat(p, 3)
	require.NoError(t, err)

	got, err := Flatten(rep).Floats("ao0")
	require.NoError(t, err)
	require.Equal(t, []float64{1.5, -2.25, 1.5, -2.25, 1.5, -2.25}, got)
}

func TestEqual_IsValueBasedNotStructural(t *testing.T) {
	explicit := boolPattern(t, "ttl0", true, false, true, false)
	rep, err := NewRepeat(boolPattern(t, "ttl0", true, false), 2)
	require.NoError(t, err)
	cat, err := Concat(
		boolPattern(t, "ttl0", true),
		boolPattern(t, "ttl0", false, true),
		boolPattern(t, "ttl0", false),
	)
	require.NoError(t, err)

	require.True(t, Equal(explicit, rep))
	require.True(t, Equal(explicit, cat))
	require.True(t, Equal(rep, cat))

	other := boolPattern(t, "ttl0", true, false, true, true)
	require.False(t, Equal(explicit, other))
}

func TestAt_SamplesWithoutFlattening(t *testing.T) {
	// A two-billion-tick constant signal: first half true, second half
	// false, built from two Repeats over one-tick patterns.
	const half = uint64(1_000_000_000)
	high, err := ConstantBool("ttl0", true, half)
	require.NoError(t, err)
	low, err := ConstantBool("ttl0", false, half)
	require.NoError(t, err)
	instr, err := Concat(high, low)
	require.NoError(t, err)
	require.Equal(t, 2*half, instr.Length())

	for tick, want := range map[uint64]bool{
		0:        true,
		half - 1: true,
		half:     false,
		2*half - 1: false,
	} {
		row, err := At(instr, tick)
		require.NoError(t, err)
		require.Equal(t, want, row["ttl0"], "tick %d", tick)
	}

	_, err = At(instr, 2*half)
	require.Error(t, err)
}
