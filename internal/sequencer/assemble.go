package sequencer

import (
	"github.com/light-scattering-iogs/caqtus-sub004/internal/instruction"
)

// assembler builds a lane instruction cell by cell, folding identical
// consecutive constant runs into a single Repeat so the tree stays small.
type assembler struct {
	channel string
	parts   []instruction.Instruction

	pending      pendingKind
	pendingBool  bool
	pendingFloat float64
	pendingTicks uint64
}

type pendingKind uint8

const (
	pendingNone pendingKind = iota
	pendingBoolRun
	pendingFloatRun
)

func newAssembler(channel string) *assembler {
	return &assembler{channel: channel}
}

// constantBool appends n ticks of a constant digital level, merging with a
// directly preceding run of the same level.
func (a *assembler) constantBool(value bool, n uint64) error {
	if n == 0 {
		return nil
	}
	if a.pending == pendingBoolRun && a.pendingBool == value {
		a.pendingTicks += n
		return nil
	}
	if err := a.flush(); err != nil {
		return err
	}
	a.pending = pendingBoolRun
	a.pendingBool = value
	a.pendingTicks = n
	return nil
}

// constantFloat appends n ticks of a constant analog value, merging with a
// directly preceding run of the same value.
func (a *assembler) constantFloat(value float64, n uint64) error {
	if n == 0 {
		return nil
	}
	if a.pending == pendingFloatRun && a.pendingFloat == value {
		a.pendingTicks += n
		return nil
	}
	if err := a.flush(); err != nil {
		return err
	}
	a.pending = pendingFloatRun
	a.pendingFloat = value
	a.pendingTicks = n
	return nil
}

// add appends an already-built instruction, ending any pending run.
func (a *assembler) add(instr instruction.Instruction) error {
	if err := a.flush(); err != nil {
		return err
	}
	a.parts = append(a.parts, instr)
	return nil
}

func (a *assembler) flush() error {
	switch a.pending {
	case pendingBoolRun:
		run, err := instruction.ConstantBool(a.channel, a.pendingBool, a.pendingTicks)
		if err != nil {
			return err
		}
		a.parts = append(a.parts, run)
	case pendingFloatRun:
		run, err := instruction.ConstantFloat(a.channel, a.pendingFloat, a.pendingTicks)
		if err != nil {
			return err
		}
		a.parts = append(a.parts, run)
	}
	a.pending = pendingNone
	a.pendingTicks = 0
	return nil
}

// result concatenates everything assembled so far into one instruction.
func (a *assembler) result() (instruction.Instruction, error) {
	if err := a.flush(); err != nil {
		return nil, err
	}
	return instruction.Concat(a.parts...)
}
