// Package units models the physical quantities that appear in timeline
// expressions: a magnitude in base SI units tagged with a dimension.
// The unit table is deliberately small; it covers what sequencer hardware
// configuration actually uses.
package units

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Dimension is the physical dimension of a quantity. Derived dimensions are
// not composed here; each supported unit maps to exactly one dimension.
type Dimension uint8

const (
	Dimensionless Dimension = iota
	Time
	Frequency
	Voltage
	Current
)

// String returns the dimension name used in error messages.
func (d Dimension) String() string {
	switch d {
	case Dimensionless:
		return "dimensionless"
	case Time:
		return "time"
	case Frequency:
		return "frequency"
	case Voltage:
		return "voltage"
	case Current:
		return "current"
	default:
		return fmt.Sprintf("Dimension(%d)", uint8(d))
	}
}

// Quantity is a scalar with a physical dimension. The magnitude is always
// stored in the base unit of its dimension (seconds, hertz, volts, amperes).
type Quantity struct {
	Magnitude float64
	Dimension Dimension
}

// String renders the quantity with its base unit symbol.
func (q Quantity) String() string {
	symbol := map[Dimension]string{
		Time:      " s",
		Frequency: " Hz",
		Voltage:   " V",
		Current:   " A",
	}[q.Dimension]
	return strconv.FormatFloat(q.Magnitude, 'g', -1, 64) + symbol
}

// In returns the magnitude if the quantity has the wanted dimension.
func (q Quantity) In(d Dimension) (float64, error) {
	if q.Dimension != d {
		return 0, fmt.Errorf("expected a %s quantity, got %s", d, q.Dimension)
	}
	return q.Magnitude, nil
}

// Nanoseconds returns a time quantity's magnitude in nanoseconds.
func (q Quantity) Nanoseconds() (float64, error) {
	seconds, err := q.In(Time)
	if err != nil {
		return 0, err
	}
	return seconds * 1e9, nil
}

// unit is one entry in the unit table. Logarithmic units (dB) convert
// through a power ratio instead of a linear scale.
type unit struct {
	dimension   Dimension
	scale       float64
	logarithmic bool
}

var unitTable = map[string]unit{
	"s":  {dimension: Time, scale: 1},
	"ms": {dimension: Time, scale: 1e-3},
	"us": {dimension: Time, scale: 1e-6},
	"µs": {dimension: Time, scale: 1e-6},
	"ns": {dimension: Time, scale: 1e-9},

	"Hz":  {dimension: Frequency, scale: 1},
	"kHz": {dimension: Frequency, scale: 1e3},
	"MHz": {dimension: Frequency, scale: 1e6},
	"GHz": {dimension: Frequency, scale: 1e9},

	"V":  {dimension: Voltage, scale: 1},
	"mV": {dimension: Voltage, scale: 1e-3},
	"uV": {dimension: Voltage, scale: 1e-6},

	"A":  {dimension: Current, scale: 1},
	"mA": {dimension: Current, scale: 1e-3},

	"percent": {dimension: Dimensionless, scale: 1e-2},
	"%":       {dimension: Dimensionless, scale: 1e-2},
	// dB is a power ratio: linear = 10^(dB/10), so 0 dB is 1.0.
	"dB": {dimension: Dimensionless, logarithmic: true},
}

// UnitNames lists every unit symbol the table knows, for exposing unit
// constructor functions to the expression evaluator.
func UnitNames() []string {
	names := make([]string, 0, len(unitTable))
	for name := range unitTable {
		names = append(names, name)
	}
	return names
}

// Apply converts a raw magnitude expressed in the named unit into a
// Quantity in base units.
func Apply(value float64, unitName string) (Quantity, error) {
	u, ok := unitTable[unitName]
	if !ok {
		return Quantity{}, fmt.Errorf("unknown unit %q", unitName)
	}
	if u.logarithmic {
		return Quantity{Magnitude: math.Pow(10, value/10), Dimension: u.dimension}, nil
	}
	return Quantity{Magnitude: value * u.scale, Dimension: u.dimension}, nil
}

// DimensionOf returns the dimension of the named unit.
func DimensionOf(unitName string) (Dimension, error) {
	u, ok := unitTable[unitName]
	if !ok {
		return Dimensionless, fmt.Errorf("unknown unit %q", unitName)
	}
	return u.dimension, nil
}

// quantityLiteral matches "<number> <unit>" with optional sign, decimals
// and exponent, e.g. "10 dB", "-0.5 V", "1e3 ns".
var quantityLiteral = regexp.MustCompile(`^([+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?)\s*([A-Za-zµ%]+)$`)

// IsLiteral reports whether text looks like a quantity literal. A true
// result does not guarantee the unit symbol is known.
func IsLiteral(text string) bool {
	return quantityLiteral.MatchString(strings.TrimSpace(text))
}

// ParseLiteral parses a quantity literal such as "10 dB" or "1 s".
func ParseLiteral(text string) (Quantity, error) {
	m := quantityLiteral.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Quantity{}, fmt.Errorf("not a quantity literal: %q", text)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Quantity{}, fmt.Errorf("bad magnitude in %q: %w", text, err)
	}
	return Apply(value, m[2])
}
