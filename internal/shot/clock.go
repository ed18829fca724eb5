package shot

import (
	"fmt"

	"github.com/light-scattering-iogs/caqtus-sub004/internal/instruction"
)

// ClockChannelName is the reserved channel added to a leader's schema for
// pacing one follower. Lane channels may not start with "__".
func ClockChannelName(follower string) string {
	return fmt.Sprintf("__clock(%s)", follower)
}

// pulseCycle is one follower tick on the leader's time base: high for the
// first half, low for the rest. ratio is leader ticks per follower tick
// and must be at least 2 so the pulse has an edge.
func pulseCycle(channel string, ratio uint64) (instruction.Instruction, error) {
	high := ratio / 2
	low := ratio - high
	highRun, err := instruction.ConstantBool(channel, true, high)
	if err != nil {
		return nil, err
	}
	lowRun, err := instruction.ConstantBool(channel, false, low)
	if err != nil {
		return nil, err
	}
	return instruction.Concat(highRun, lowRun)
}

// steadyClock paces every follower tick: fTicks pulses of ratio leader
// ticks each.
func steadyClock(channel string, fTicks, ratio uint64) (instruction.Instruction, error) {
	cycle, err := pulseCycle(channel, ratio)
	if err != nil {
		return nil, err
	}
	return instruction.NewRepeat(cycle, fTicks)
}

// changeClock pulses only on follower ticks whose values differ from the
// previous tick, with the very first tick always pulsed. The clock is
// derived from the follower's tree without flattening it, so a repeated
// constant run produces one pulse followed by a compressed idle.
func changeClock(follower instruction.Instruction, channel string, ratio uint64) (instruction.Instruction, error) {
	return changeClockFrom(follower, channel, ratio, nil)
}

// changeClockFrom builds the clock for one subtree. prev is the follower
// row preceding the subtree, or nil at the start of the shot.
func changeClockFrom(instr instruction.Instruction, channel string, ratio uint64, prev instruction.Row) (instruction.Instruction, error) {
	switch n := instr.(type) {
	case *instruction.Pattern:
		return patternChangeClock(n, channel, ratio, prev)

	case *instruction.Concatenate:
		parts := make([]instruction.Instruction, 0, len(n.Children()))
		for _, child := range n.Children() {
			part, err := changeClockFrom(child, channel, ratio, prev)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
			prev, err = instruction.At(child, child.Length()-1)
			if err != nil {
				return nil, err
			}
		}
		return instruction.Concat(parts...)

	case *instruction.Repeat:
		first, err := changeClockFrom(n.Child(), channel, ratio, prev)
		if err != nil {
			return nil, err
		}
		if n.Count() == 1 {
			return first, nil
		}
		// Iterations after the first all follow the child's own last row,
		// so their clocks are identical and stay compressed as one Repeat.
		seam, err := instruction.At(n.Child(), n.Child().Length()-1)
		if err != nil {
			return nil, err
		}
		rest, err := changeClockFrom(n.Child(), channel, ratio, seam)
		if err != nil {
			return nil, err
		}
		restRun, err := instruction.NewRepeat(rest, n.Count()-1)
		if err != nil {
			return nil, err
		}
		return instruction.Concat(first, restRun)
	}
	return nil, fmt.Errorf("unknown instruction node %T", instr)
}

func patternChangeClock(p *instruction.Pattern, channel string, ratio uint64, prev instruction.Row) (instruction.Instruction, error) {
	var parts []instruction.Instruction
	idleTicks := uint64(0)
	flushIdle := func() error {
		if idleTicks == 0 {
			return nil
		}
		idle, err := instruction.ConstantBool(channel, false, idleTicks*ratio)
		if err != nil {
			return err
		}
		parts = append(parts, idle)
		idleTicks = 0
		return nil
	}

	for t := uint64(0); t < p.Length(); t++ {
		row := p.Row(t)
		if prev == nil || !rowsEqual(row, prev) {
			if err := flushIdle(); err != nil {
				return nil, err
			}
			pulse, err := pulseCycle(channel, ratio)
			if err != nil {
				return nil, err
			}
			parts = append(parts, pulse)
		} else {
			idleTicks++
		}
		prev = row
	}
	if err := flushIdle(); err != nil {
		return nil, err
	}
	return instruction.Concat(parts...)
}

func rowsEqual(a, b instruction.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for name, value := range a {
		if b[name] != value {
			return false
		}
	}
	return true
}
