package instruction

import "fmt"

// MergeChannels combines two instructions of equal length and disjoint
// schemas into one instruction driving both channel sets. The two trees are
// walked in lock step: wherever one tree has a segment boundary the other
// lacks, the other is split there first, so aligned Pattern leaves can be
// merged field-wise while the surrounding Concatenate/Repeat shape is
// preserved. Projecting any channel of a back out of the result reproduces
// a exactly, and likewise for b.
func MergeChannels(a, b Instruction) (Instruction, error) {
	if a.Length() != b.Length() {
		return nil, &MergeLengthError{LenA: a.Length(), LenB: b.Length()}
	}
	sa := a.Schema()
	for _, ch := range b.Schema() {
		if sa.Index(ch.Name) >= 0 {
			return nil, &SchemaConflictError{Channel: ch.Name}
		}
	}
	return merge(a, b), nil
}

// merge assumes equal lengths and disjoint schemas. The merged schema lists
// a's channels before b's.
func merge(a, b Instruction) Instruction {
	pa, aIsPattern := a.(*Pattern)
	pb, bIsPattern := b.(*Pattern)
	if aIsPattern && bIsPattern {
		return mergePatterns(pa, pb)
	}

	// Two Repeats align on the least common multiple of their periods,
	// which divides the shared total length. This is what keeps merged
	// instructions compressed when both sides loop.
	ra, aIsRepeat := a.(*Repeat)
	rb, bIsRepeat := b.(*Repeat)
	if aIsRepeat && bIsRepeat {
		return mergeRepeats(ra, rb)
	}

	if ca, ok := a.(*Concatenate); ok {
		return mergeAlongConcat(ca, b, false)
	}
	if cb, ok := b.(*Concatenate); ok {
		return mergeAlongConcat(cb, a, true)
	}

	// Pattern against Repeat: one side is materialized already, so
	// flattening the other adds nothing asymptotically.
	return mergePatterns(Flatten(a), Flatten(b))
}

// mergeAlongConcat partitions other at c's child boundaries and merges the
// aligned pieces pairwise. swapped preserves operand order in the merged
// schema when c came in as the right operand.
func mergeAlongConcat(c *Concatenate, other Instruction, swapped bool) Instruction {
	parts := make([]Instruction, 0, len(c.children))
	rest := other
	for i, child := range c.children {
		piece := rest
		if i < len(c.children)-1 {
			piece, rest = split(rest, child.Length())
		}
		if swapped {
			parts = append(parts, merge(piece, child))
		} else {
			parts = append(parts, merge(child, piece))
		}
	}
	return concatNodes(parts)
}

func mergeRepeats(a, b *Repeat) Instruction {
	la, lb := a.child.Length(), b.child.Length()
	period := la / gcd(la, lb) * lb
	merged := merge(tile(a.child, period/la), tile(b.child, period/lb))
	return repeatN(merged, a.length/period)
}

// tile lays n references to child end to end. Structural sharing keeps this
// O(n) pointers, not O(n) ticks.
func tile(child Instruction, n uint64) Instruction {
	if n == 1 {
		return child
	}
	parts := make([]Instruction, n)
	for i := range parts {
		parts[i] = child
	}
	return concatNodes(parts)
}

func mergePatterns(a, b *Pattern) *Pattern {
	cols := make([]column, 0, len(a.cols)+len(b.cols))
	cols = append(cols, a.cols...)
	cols = append(cols, b.cols...)
	return &Pattern{
		schema: mergeSchemas(a.schema, b.schema),
		cols:   cols,
		length: a.length,
	}
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// GetChannel projects a single channel back out of a merged instruction.
// It is the inverse of MergeChannels for one operand.
func GetChannel(instr Instruction, name string) (Instruction, error) {
	if instr.Schema().Index(name) < 0 {
		return nil, &UnknownChannelError{Channel: name, Schema: instr.Schema()}
	}
	return project(instr, name), nil
}

func project(instr Instruction, name string) Instruction {
	switch n := instr.(type) {
	case *Pattern:
		i := n.schema.Index(name)
		return &Pattern{
			schema: Schema{n.schema[i]},
			cols:   []column{n.cols[i]},
			length: n.length,
		}
	case *Concatenate:
		parts := make([]Instruction, len(n.children))
		for i, child := range n.children {
			parts[i] = project(child, name)
		}
		return concatNodes(parts)
	case *Repeat:
		return repeatN(project(n.child, name), n.count)
	}
	panic(fmt.Sprintf("instruction: unknown node %T", instr))
}
