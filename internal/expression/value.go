// Package expression wraps the HCL expression engine behind the small
// surface the compiler consumes: parse once at construction, evaluate
// against a variable namespace, get back a scalar, boolean or physical
// quantity.
package expression

import (
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"

	"github.com/light-scattering-iogs/caqtus-sub004/internal/units"
)

// QuantityType is the cty capsule type carrying a units.Quantity through
// expression evaluation.
var QuantityType = cty.Capsule("quantity", reflect.TypeOf(units.Quantity{}))

// Value is an evaluation result: a plain cty value (number, bool, string)
// or a physical quantity.
type Value struct {
	raw      cty.Value
	quantity *units.Quantity
}

// Number wraps a plain float for use in a namespace.
func Number(v float64) Value {
	return Value{raw: cty.NumberFloatVal(v)}
}

// Bool wraps a boolean for use in a namespace.
func Bool(v bool) Value {
	return Value{raw: cty.BoolVal(v)}
}

// String wraps a string for use in a namespace.
func String(v string) Value {
	return Value{raw: cty.StringVal(v)}
}

// FromQuantity wraps a physical quantity for use in a namespace.
func FromQuantity(q units.Quantity) Value {
	return Value{quantity: &q}
}

// fromCty converts an evaluated cty value into a Value, unwrapping
// quantity capsules.
func fromCty(v cty.Value) (Value, error) {
	if v.IsNull() {
		return Value{}, fmt.Errorf("expression evaluated to null")
	}
	if v.Type().Equals(QuantityType) {
		q := v.EncapsulatedValue().(*units.Quantity)
		return Value{quantity: q}, nil
	}
	switch v.Type() {
	case cty.Number, cty.Bool, cty.String:
		return Value{raw: v}, nil
	}
	return Value{}, fmt.Errorf("unsupported expression result type %s", v.Type().FriendlyName())
}

// toCty converts a Value into its cty representation for an eval context.
func (v Value) toCty() cty.Value {
	if v.quantity != nil {
		q := *v.quantity
		return cty.CapsuleVal(QuantityType, &q)
	}
	return v.raw
}

// Quantity returns the physical quantity and true when the value carries
// one.
func (v Value) Quantity() (units.Quantity, bool) {
	if v.quantity != nil {
		return *v.quantity, true
	}
	return units.Quantity{}, false
}

// Float returns the value as a plain float64. A dimensionless quantity
// yields its magnitude; a dimensioned quantity is an error.
func (v Value) Float() (float64, error) {
	if v.quantity != nil {
		return v.quantity.In(units.Dimensionless)
	}
	if v.raw == cty.NilVal || v.raw.Type() != cty.Number {
		return 0, fmt.Errorf("value is not a number")
	}
	f, _ := v.raw.AsBigFloat().Float64()
	return f, nil
}

// Bool returns the value as a boolean.
func (v Value) Bool() (bool, error) {
	if v.quantity != nil || v.raw == cty.NilVal || v.raw.Type() != cty.Bool {
		return false, fmt.Errorf("value is not a boolean")
	}
	return v.raw.True(), nil
}

// String renders the value for error messages.
func (v Value) String() string {
	if v.quantity != nil {
		return v.quantity.String()
	}
	if v.raw == cty.NilVal {
		return "<nil>"
	}
	return v.raw.GoString()
}
