package functions

import (
	"fmt"
	"strings"

	"github.com/roach88/keycond/internal/ir"
)

func init() {
	register(
		&Definition{
			Name:       "toString",
			Arity:      1,
			ReturnType: fixedType(ir.TypeString, ir.TypeInt64, ir.TypeUInt64, ir.TypeFloat64, ir.TypeBool, ir.TypeDate, ir.TypeDateTime, ir.TypeString),
			Eval:       unary(toString),
		},
		&Definition{
			Name:       "lower",
			Arity:      1,
			ReturnType: fixedType(ir.TypeString, ir.TypeString),
			Eval:       stringMap(strings.ToLower),
		},
		&Definition{
			Name:       "upper",
			Arity:      1,
			ReturnType: fixedType(ir.TypeString, ir.TypeString),
			Eval:       stringMap(strings.ToUpper),
		},
	)
}

func toString(v ir.Value) (ir.Value, error) {
	if s, ok := v.(ir.String); ok {
		return s, nil
	}
	g := ir.ToGo(v)
	if g == nil {
		return nil, fmt.Errorf("cannot convert %s to String", ir.FormatValue(v))
	}
	return ir.String(fmt.Sprint(g)), nil
}

func stringMap(fn func(string) string) func([]ir.Value) (ir.Value, error) {
	return unary(func(v ir.Value) (ir.Value, error) {
		s, ok := v.(ir.String)
		if !ok {
			return nil, fmt.Errorf("expected String, got %s", ir.FormatValue(v))
		}
		return ir.String(fn(string(s))), nil
	})
}
