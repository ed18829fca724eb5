package instruction

import (
	"fmt"
	"sort"
)

// Split divides an instruction at tick i. The first result covers ticks
// [0, i), the second [i, length). i must lie strictly inside the
// instruction, otherwise an InvalidSplitError is returned.
//
// Splitting never materializes ticks: a Pattern is sliced, a Concatenate is
// partitioned at (or inside) the straddled child, and a Repeat yields at
// most one split of its child plus two shorter Repeats over the same child.
func Split(instr Instruction, i uint64) (Instruction, Instruction, error) {
	if i == 0 || i >= instr.Length() {
		return nil, nil, &InvalidSplitError{Index: i, Length: instr.Length()}
	}
	head, tail := split(instr, i)
	return head, tail, nil
}

// split assumes 0 < i < instr.Length().
func split(instr Instruction, i uint64) (Instruction, Instruction) {
	switch n := instr.(type) {
	case *Pattern:
		headCols := make([]column, len(n.cols))
		tailCols := make([]column, len(n.cols))
		for c, col := range n.cols {
			headCols[c] = col.slice(0, i)
			tailCols[c] = col.slice(i, n.length)
		}
		head := &Pattern{schema: n.schema, cols: headCols, length: i}
		tail := &Pattern{schema: n.schema, cols: tailCols, length: n.length - i}
		return head, tail

	case *Concatenate:
		// Largest idx with starts[idx] <= i.
		idx := sort.Search(len(n.starts), func(j int) bool { return n.starts[j] > i }) - 1
		if n.starts[idx] == i {
			return concatNodes(n.children[:idx]), concatNodes(n.children[idx:])
		}
		a, b := split(n.children[idx], i-n.starts[idx])
		head := make([]Instruction, 0, idx+1)
		head = append(head, n.children[:idx]...)
		head = append(head, a)
		tail := make([]Instruction, 0, len(n.children)-idx)
		tail = append(tail, b)
		tail = append(tail, n.children[idx+1:]...)
		return concatNodes(head), concatNodes(tail)

	case *Repeat:
		l := n.child.Length()
		k, r := i/l, i%l
		if r == 0 {
			return repeatN(n.child, k), repeatN(n.child, n.count-k)
		}
		a, b := split(n.child, r)
		var head, tail []Instruction
		if k > 0 {
			head = append(head, repeatN(n.child, k))
		}
		head = append(head, a)
		tail = append(tail, b)
		if rem := n.count - k - 1; rem > 0 {
			tail = append(tail, repeatN(n.child, rem))
		}
		return concatNodes(head), concatNodes(tail)
	}
	panic(fmt.Sprintf("instruction: unknown node %T", instr))
}

// concatNodes rebuilds a run of children whose schema equality is already
// established. It splices nested Concatenates like Concat does.
func concatNodes(parts []Instruction) Instruction {
	if len(parts) == 1 {
		return parts[0]
	}
	children := make([]Instruction, 0, len(parts))
	for _, part := range parts {
		if nested, ok := part.(*Concatenate); ok {
			children = append(children, nested.children...)
		} else {
			children = append(children, part)
		}
	}
	starts := make([]uint64, len(children))
	var total uint64
	for i, child := range children {
		starts[i] = total
		total += child.Length()
	}
	return &Concatenate{
		children: children,
		starts:   starts,
		length:   total,
		schema:   children[0].Schema(),
	}
}

// repeatN wraps NewRepeat for counts already known to be >= 1.
func repeatN(child Instruction, count uint64) Instruction {
	out, err := NewRepeat(child, count)
	if err != nil {
		panic(err)
	}
	return out
}

// Flatten materializes the full tick sequence as a single Pattern. Cost is
// O(length); it is intended only for the hardware-upload boundary and for
// equality checks on test-sized instructions.
func Flatten(instr Instruction) *Pattern {
	if p, ok := instr.(*Pattern); ok {
		return p
	}
	schema := instr.Schema()
	cols := make([]column, len(schema))
	for i, ch := range schema {
		cols[i] = newColumn(ch.Type, instr.Length())
	}
	fill(instr, cols, 0)
	return &Pattern{schema: schema, cols: cols, length: instr.Length()}
}

// fill writes instr's ticks into cols starting at offset off.
func fill(instr Instruction, cols []column, off uint64) {
	switch n := instr.(type) {
	case *Pattern:
		for i, col := range n.cols {
			copyInto(cols[i], col, off)
		}
	case *Concatenate:
		for i, child := range n.children {
			fill(child, cols, off+n.starts[i])
		}
	case *Repeat:
		// Materialize one period, then replicate it in place.
		l := n.child.Length()
		fill(n.child, cols, off)
		for k := uint64(1); k < n.count; k++ {
			for i := range cols {
				copyWithin(cols[i], off+k*l, off, l)
			}
		}
	}
}

func copyWithin(c column, dstOff, srcOff, n uint64) {
	switch col := c.(type) {
	case boolColumn:
		copy(col[dstOff:dstOff+n], col[srcOff:srcOff+n])
	case floatColumn:
		copy(col[dstOff:dstOff+n], col[srcOff:srcOff+n])
	}
}

// At samples the channel values at tick i without flattening. Cost is
// O(tree depth).
func At(instr Instruction, i uint64) (Row, error) {
	if i >= instr.Length() {
		return nil, fmt.Errorf("tick %d out of range [0, %d)", i, instr.Length())
	}
	for {
		switch n := instr.(type) {
		case *Pattern:
			return n.Row(i), nil
		case *Concatenate:
			idx := sort.Search(len(n.starts), func(j int) bool { return n.starts[j] > i }) - 1
			i -= n.starts[idx]
			instr = n.children[idx]
		case *Repeat:
			i %= n.child.Length()
			instr = n.child
		}
	}
}

// Equal reports canonical instruction equality: same length, same channel
// set, and tick-for-tick identical flattened values. Tree shape is
// irrelevant. Cost is O(length).
func Equal(a, b Instruction) bool {
	if a.Length() != b.Length() {
		return false
	}
	sa, sb := a.Schema(), b.Schema()
	if len(sa) != len(sb) {
		return false
	}
	fa, fb := Flatten(a), Flatten(b)
	for i, ch := range sa {
		j := sb.Index(ch.Name)
		if j < 0 || sb[j].Type != ch.Type {
			return false
		}
		if !fa.cols[i].equal(fb.cols[j]) {
			return false
		}
	}
	return true
}
