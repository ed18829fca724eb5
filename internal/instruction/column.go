package instruction

// column is one channel's value buffer inside a Pattern. Columns are never
// mutated after construction; slice shares the backing array.
type column interface {
	len() uint64
	slice(i, j uint64) column
	value(i uint64) any
	equal(other column) bool
}

type boolColumn []bool

func (c boolColumn) len() uint64 { return uint64(len(c)) }

func (c boolColumn) slice(i, j uint64) column { return c[i:j] }

func (c boolColumn) value(i uint64) any { return c[i] }

func (c boolColumn) equal(other column) bool {
	o, ok := other.(boolColumn)
	if !ok || len(o) != len(c) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

type floatColumn []float64

func (c floatColumn) len() uint64 { return uint64(len(c)) }

func (c floatColumn) slice(i, j uint64) column { return c[i:j] }

func (c floatColumn) value(i uint64) any { return c[i] }

func (c floatColumn) equal(other column) bool {
	o, ok := other.(floatColumn)
	if !ok || len(o) != len(c) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

// newColumn allocates an empty column of the right kind for a channel type.
func newColumn(t ChannelType, n uint64) column {
	switch t {
	case TypeBool:
		return make(boolColumn, n)
	default:
		return make(floatColumn, n)
	}
}

// copyInto writes src into dst starting at offset off. Both columns must be
// of the same kind.
func copyInto(dst, src column, off uint64) {
	switch d := dst.(type) {
	case boolColumn:
		copy(d[off:], src.(boolColumn))
	case floatColumn:
		copy(d[off:], src.(floatColumn))
	}
}
