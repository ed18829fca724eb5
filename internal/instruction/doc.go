// Package instruction implements the tick-quantized signal tree uploaded to
// hardware sequencers.
//
// An Instruction is a closed union over three node kinds: Pattern (an
// explicit per-tick value buffer), Concatenate (an ordered run of children)
// and Repeat (run-length compression of one child). Trees are immutable once
// built; every operation returns a new tree and may share unchanged subtrees
// with its inputs. Split and merge work on the tree structure and never
// materialize the full tick sequence, so instructions covering billions of
// ticks stay proportional in memory to the number of edits, not the
// duration. Flatten is the single exception and is only meant for the
// hardware-upload boundary.
//
// Two instructions are equal when their flattened forms agree tick for tick.
// Tree shape is never compared; differently shaped trees that produce the
// same output are the same instruction.
package instruction
