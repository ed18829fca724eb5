package expression

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Namespace maps dotted variable names to values, e.g. "mot.detuning" or
// "repetitions". Nested names become nested objects during evaluation, so
// expressions traverse them as mot.detuning.
type Namespace map[string]Value

// evalVariables builds the nested cty object tree an hcl.EvalContext
// expects. A name that is both a leaf and a prefix of another name (say
// "a" next to "a.b") is a conflict.
func (ns Namespace) evalVariables() (map[string]cty.Value, error) {
	root := map[string]any{}
	for name, value := range ns {
		parts := strings.Split(name, ".")
		node := root
		for i, part := range parts {
			if part == "" {
				return nil, fmt.Errorf("invalid variable name %q", name)
			}
			last := i == len(parts)-1
			existing, ok := node[part]
			if last {
				if ok {
					return nil, fmt.Errorf("variable %q conflicts with another namespace entry", name)
				}
				node[part] = value
				continue
			}
			if !ok {
				child := map[string]any{}
				node[part] = child
				node = child
				continue
			}
			child, isMap := existing.(map[string]any)
			if !isMap {
				return nil, fmt.Errorf("variable %q conflicts with another namespace entry", name)
			}
			node = child
		}
	}

	out := make(map[string]cty.Value, len(root))
	for name, node := range root {
		v, err := toCtyTree(node)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func toCtyTree(node any) (cty.Value, error) {
	switch n := node.(type) {
	case Value:
		return n.toCty(), nil
	case map[string]any:
		attrs := make(map[string]cty.Value, len(n))
		for name, child := range n {
			v, err := toCtyTree(child)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[name] = v
		}
		return cty.ObjectVal(attrs), nil
	}
	return cty.NilVal, fmt.Errorf("unsupported namespace node %T", node)
}
