package instruction

import "fmt"

// InvalidSplitError reports a split index outside the open interval
// (0, length).
type InvalidSplitError struct {
	Index  uint64
	Length uint64
}

func (e *InvalidSplitError) Error() string {
	return fmt.Sprintf("split index %d outside (0, %d)", e.Index, e.Length)
}

// SchemaMismatchError reports an attempt to concatenate instructions whose
// schemas differ.
type SchemaMismatchError struct {
	Left  Schema
	Right Schema
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: %s vs %s", e.Left, e.Right)
}

// MergeLengthError reports an attempt to merge instructions of different
// tick lengths.
type MergeLengthError struct {
	LenA uint64
	LenB uint64
}

func (e *MergeLengthError) Error() string {
	return fmt.Sprintf("merge operands differ in length: %d vs %d ticks", e.LenA, e.LenB)
}

// SchemaConflictError reports an attempt to merge instructions that share a
// channel name.
type SchemaConflictError struct {
	Channel string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("channel %q present in both merge operands", e.Channel)
}

// InvalidRepetitionError reports a repetition count below one.
type InvalidRepetitionError struct {
	Count uint64
}

func (e *InvalidRepetitionError) Error() string {
	return fmt.Sprintf("repetition count must be >= 1, got %d", e.Count)
}

// UnknownChannelError reports a channel projection for a name the schema
// does not contain.
type UnknownChannelError struct {
	Channel string
	Schema  Schema
}

func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("channel %q not in schema %s", e.Channel, e.Schema)
}

// EmptyInstructionError reports an attempt to construct a zero-length
// instruction. Every instruction covers at least one tick.
type EmptyInstructionError struct{}

func (e *EmptyInstructionError) Error() string {
	return "instruction must cover at least one tick"
}
