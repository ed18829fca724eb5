package instruction

// Instruction is the closed union over Pattern, Concatenate and Repeat.
// Implementations are immutable; operations on them live in this package as
// total functions over the three kinds.
type Instruction interface {
	// Length is the number of ticks the instruction covers. Always >= 1.
	Length() uint64
	// Schema is the ordered set of channels driven per tick.
	Schema() Schema

	isInstruction()
}

// Pattern is a leaf: an explicit per-tick value buffer, one column per
// channel.
type Pattern struct {
	schema Schema
	cols   []column
	length uint64
}

// Length implements Instruction.
func (p *Pattern) Length() uint64 { return p.length }

// Schema implements Instruction.
func (p *Pattern) Schema() Schema { return p.schema }

func (p *Pattern) isInstruction() {}

// Row is one tick's channel values keyed by channel name. Bool channels map
// to bool, float channels to float64.
type Row map[string]any

// Row returns the values at tick i. i must be < Length.
func (p *Pattern) Row(i uint64) Row {
	row := make(Row, len(p.schema))
	for c, ch := range p.schema {
		row[ch.Name] = p.cols[c].value(i)
	}
	return row
}

// Bools returns the raw boolean buffer of the named digital channel. The
// returned slice must not be modified.
func (p *Pattern) Bools(name string) ([]bool, error) {
	i := p.schema.Index(name)
	if i < 0 {
		return nil, &UnknownChannelError{Channel: name, Schema: p.schema}
	}
	col, ok := p.cols[i].(boolColumn)
	if !ok {
		return nil, &UnknownChannelError{Channel: name, Schema: p.schema}
	}
	return col, nil
}

// Floats returns the raw float buffer of the named analog channel. The
// returned slice must not be modified.
func (p *Pattern) Floats(name string) ([]float64, error) {
	i := p.schema.Index(name)
	if i < 0 {
		return nil, &UnknownChannelError{Channel: name, Schema: p.schema}
	}
	col, ok := p.cols[i].(floatColumn)
	if !ok {
		return nil, &UnknownChannelError{Channel: name, Schema: p.schema}
	}
	return col, nil
}

// NewBoolPattern builds a single-channel digital pattern from an explicit
// tick buffer. The buffer is copied.
func NewBoolPattern(channel string, values []bool) (*Pattern, error) {
	if len(values) == 0 {
		return nil, &EmptyInstructionError{}
	}
	buf := make(boolColumn, len(values))
	copy(buf, values)
	return &Pattern{
		schema: Schema{{Name: channel, Type: TypeBool}},
		cols:   []column{buf},
		length: uint64(len(values)),
	}, nil
}

// NewFloatPattern builds a single-channel analog pattern from an explicit
// tick buffer. The buffer is copied.
func NewFloatPattern(channel string, values []float64) (*Pattern, error) {
	if len(values) == 0 {
		return nil, &EmptyInstructionError{}
	}
	buf := make(floatColumn, len(values))
	copy(buf, values)
	return &Pattern{
		schema: Schema{{Name: channel, Type: TypeFloat}},
		cols:   []column{buf},
		length: uint64(len(values)),
	}, nil
}

// ConstantBool builds an n-tick constant digital signal as Repeat over a
// one-tick pattern, so n never inflates memory.
func ConstantBool(channel string, value bool, n uint64) (Instruction, error) {
	p, err := NewBoolPattern(channel, []bool{value})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &EmptyInstructionError{}
	}
	return NewRepeat(p, n)
}

// ConstantFloat builds an n-tick constant analog signal as Repeat over a
// one-tick pattern.
func ConstantFloat(channel string, value float64, n uint64) (Instruction, error) {
	p, err := NewFloatPattern(channel, []float64{value})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &EmptyInstructionError{}
	}
	return NewRepeat(p, n)
}

// Concatenate is an ordered run of child instructions sharing one schema.
// A Concatenate never directly contains another Concatenate; Concat splices
// nested child lists at construction so tree depth stays bounded.
type Concatenate struct {
	children []Instruction
	// starts[i] is the first tick of children[i]; kept as a prefix sum so
	// Split can binary-search the straddled child.
	starts []uint64
	length uint64
	schema Schema
}

// Length implements Instruction.
func (c *Concatenate) Length() uint64 { return c.length }

// Schema implements Instruction.
func (c *Concatenate) Schema() Schema { return c.schema }

func (c *Concatenate) isInstruction() {}

// Children returns the ordered child list. The returned slice must not be
// modified.
func (c *Concatenate) Children() []Instruction { return c.children }

// Concat joins the given instructions end to end. All parts must share one
// schema. A single part is returned unchanged; nested Concatenates are
// spliced.
func Concat(parts ...Instruction) (Instruction, error) {
	if len(parts) == 0 {
		return nil, &EmptyInstructionError{}
	}
	schema := parts[0].Schema()
	for _, part := range parts[1:] {
		if !schema.Equal(part.Schema()) {
			return nil, &SchemaMismatchError{Left: schema, Right: part.Schema()}
		}
	}
	if len(parts) == 1 {
		return parts[0], nil
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
		schema:   schema,
	}, nil
}

// Repeat is run-length compression: one child instruction replayed count
// times. The child is stored once regardless of count.
type Repeat struct {
	child  Instruction
	count  uint64
	length uint64
}

// Length implements Instruction.
func (r *Repeat) Length() uint64 { return r.length }

// Schema implements Instruction.
func (r *Repeat) Schema() Schema { return r.child.Schema() }

func (r *Repeat) isInstruction() {}

// Child returns the repeated instruction.
func (r *Repeat) Child() Instruction { return r.child }

// Count returns the repetition count. Always >= 2 for a constructed Repeat.
func (r *Repeat) Count() uint64 { return r.count }

// NewRepeat replays child count times. count must be >= 1; a count of one
// returns child unchanged, and repeating a Repeat collapses into a single
// node with multiplied count.
func NewRepeat(child Instruction, count uint64) (Instruction, error) {
	if count < 1 {
		return nil, &InvalidRepetitionError{Count: count}
	}
	if inner, ok := child.(*Repeat); ok {
		child = inner.child
		count *= inner.count
	}
	if count == 1 {
		return child, nil
	}
	return &Repeat{
		child:  child,
		count:  count,
		length: child.Length() * count,
	}, nil
}
