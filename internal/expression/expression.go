package expression

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/light-scattering-iogs/caqtus-sub004/internal/units"
)

// Expression is one symbolic value from a timeline: either a quantity
// literal ("10 dB", "1 s") or an HCL expression over the variable
// namespace ("mot.detuning * 2"). The text is parsed exactly once, at
// construction; an Expression owns its parsed form immutably.
type Expression struct {
	text     string
	quantity *units.Quantity
	parsed   hclsyntax.Expression
}

// New parses the given source text. Parse failures are reported here, not
// at evaluation time.
func New(text string) (*Expression, error) {
	if units.IsLiteral(text) {
		q, err := units.ParseLiteral(text)
		if err != nil {
			return nil, fmt.Errorf("expression %q: %w", text, err)
		}
		return &Expression{text: text, quantity: &q}, nil
	}

	parsed, diags := hclsyntax.ParseExpression([]byte(text), "<expression>", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("expression %q: %w", text, diags)
	}
	return &Expression{text: text, parsed: parsed}, nil
}

// MustNew is New for expressions known to be valid, mainly in tests and
// built-in defaults.
func MustNew(text string) *Expression {
	e, err := New(text)
	if err != nil {
		panic(err)
	}
	return e
}

// Text returns the original source text.
func (e *Expression) Text() string {
	return e.text
}

// Evaluate resolves the expression against the given variables. Evaluation
// is pure; the same inputs always produce the same value.
func (e *Expression) Evaluate(vars Namespace) (Value, error) {
	if e.quantity != nil {
		return Value{quantity: e.quantity}, nil
	}

	variables, err := vars.evalVariables()
	if err != nil {
		return Value{}, fmt.Errorf("expression %q: %w", e.text, err)
	}
	ctx := &hcl.EvalContext{
		Variables: variables,
		Functions: evalFunctions,
	}
	v, diags := e.parsed.Value(ctx)
	if diags.HasErrors() {
		return Value{}, fmt.Errorf("expression %q: %w", e.text, diags)
	}
	out, err := fromCty(v)
	if err != nil {
		return Value{}, fmt.Errorf("expression %q: %w", e.text, err)
	}
	return out, nil
}

// evalFunctions is the function table available inside expressions: one
// constructor per unit symbol (s, ms, ns, MHz, dB, ...) plus a few numeric
// helpers from the cty stdlib.
var evalFunctions = buildFunctions()

func buildFunctions() map[string]function.Function {
	funcs := map[string]function.Function{
		"min":   stdlib.MinFunc,
		"max":   stdlib.MaxFunc,
		"abs":   stdlib.AbsoluteFunc,
		"floor": stdlib.FloorFunc,
		"ceil":  stdlib.CeilFunc,
	}
	for _, name := range units.UnitNames() {
		if !hclsyntax.ValidIdentifier(name) {
			// "%" and friends cannot be called by name in HCL.
			continue
		}
		funcs[name] = unitFunc(name)
	}
	return funcs
}

// unitFunc builds a constructor like MHz(80) returning a quantity capsule.
func unitFunc(name string) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "value", Type: cty.Number}},
		Type:   function.StaticReturnType(QuantityType),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			f, _ := args[0].AsBigFloat().Float64()
			q, err := units.Apply(f, name)
			if err != nil {
				return cty.NilVal, err
			}
			return cty.CapsuleVal(QuantityType, &q), nil
		},
	})
}
