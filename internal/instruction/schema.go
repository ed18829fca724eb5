package instruction

import (
	"fmt"
	"strings"
)

// ChannelType identifies the scalar type carried by one output line.
type ChannelType uint8

const (
	// TypeBool is a digital line: one boolean per tick.
	TypeBool ChannelType = iota
	// TypeFloat is an analog line: one float64 per tick.
	TypeFloat
)

// String returns the human-readable name of the channel type.
func (t ChannelType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeFloat:
		return "float"
	default:
		return fmt.Sprintf("ChannelType(%d)", uint8(t))
	}
}

// Channel is one named output line within an instruction's per-tick record.
type Channel struct {
	Name string
	Type ChannelType
}

// Schema is the ordered set of channels an instruction drives. It grows only
// through MergeChannels and never shrinks.
type Schema []Channel

// Index returns the position of the named channel, or -1 if absent.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Equal reports whether two schemas list the same channels in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// DisjointFrom reports whether no channel name is shared with other.
func (s Schema) DisjointFrom(other Schema) bool {
	for _, c := range other {
		if s.Index(c.Name) >= 0 {
			return false
		}
	}
	return true
}

// String renders the schema as "{name:type, ...}" for error messages.
func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = fmt.Sprintf("%s:%s", c.Name, c.Type)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// mergeSchemas appends the channels of b after those of a into a fresh slice.
func mergeSchemas(a, b Schema) Schema {
	merged := make(Schema, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return merged
}
