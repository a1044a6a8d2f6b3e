package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// propertiesFromExpression evaluates a `properties` expression and
// converts it into a flat string map. Values may be strings, numbers or
// booleans; anything structured is rejected, since service-lifecycle
// properties are scalar key/value pairs.
func propertiesFromExpression(expr hcl.Expression) (map[string]string, error) {
	if expr == nil {
		return nil, nil
	}

	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}

	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("expected a map of primitive values, got %s", ty.FriendlyName())
	}
	if val.LengthInt() == 0 {
		return nil, nil
	}

	props := make(map[string]string, val.LengthInt())
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		s, err := primitiveToString(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k.AsString(), err)
		}
		props[k.AsString()] = s
	}
	return props, nil
}

// primitiveToString renders a primitive cty value in its canonical string
// form, the way it is written into the emitted service descriptor.
func primitiveToString(v cty.Value) (string, error) {
	if v.IsNull() {
		return "", fmt.Errorf("value is null")
	}
	switch v.Type() {
	case cty.String:
		return v.AsString(), nil
	case cty.Number:
		return v.AsBigFloat().Text('f', -1), nil
	case cty.Bool:
		if v.True() {
			return "true", nil
		}
		return "false", nil
	default:
		return "", fmt.Errorf("unsupported value type %s", v.Type().FriendlyName())
	}
}
