package functions

import (
	"fmt"

	"github.com/roach88/keycond/internal/ir"
)

// Monotonicity describes a unary function over an argument range.
type Monotonicity struct {
	// IsMonotonic is true when the function never changes direction on the
	// range.
	IsMonotonic bool
	// IsPositive is true for non-decreasing, false for non-increasing.
	IsPositive bool
	// IsAlways is true when the answer does not depend on the range.
	IsAlways bool
}

var (
	notMonotonic     = Monotonicity{}
	alwaysIncreasing = Monotonicity{IsMonotonic: true, IsPositive: true, IsAlways: true}
	alwaysDecreasing = Monotonicity{IsMonotonic: true, IsPositive: false, IsAlways: true}
	rangeIncreasing  = Monotonicity{IsMonotonic: true, IsPositive: true}
	rangeDecreasing  = Monotonicity{IsMonotonic: true, IsPositive: false}
)

// Definition describes one function.
type Definition struct {
	Name string
	// Arity is the exact number of arguments.
	Arity int
	// ReturnType computes the result type from argument types.
	ReturnType func(args []ir.Type) (ir.Type, error)
	// Eval computes the function on constant arguments.
	Eval func(args []ir.Value) (ir.Value, error)
	// Monotonicity, when set, describes the bound unary function b over the
	// argument range [left, right]. Nil means the function is never treated
	// as monotonic.
	Monotonicity func(b *Bound, left, right ir.ExtValue) Monotonicity
}

var registry = map[string]*Definition{}

func register(defs ...*Definition) {
	for _, d := range defs {
		if _, dup := registry[d.Name]; dup {
			panic(fmt.Sprintf("functions: duplicate definition %q", d.Name))
		}
		registry[d.Name] = d
	}
}

// Lookup returns the definition of a function by name.
func Lookup(name string) (*Definition, bool) {
	d, ok := registry[name]
	return d, ok
}

// Names returns the registered function names in no particular order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}

func checkArity(d *Definition, n int) error {
	if n != d.Arity {
		return fmt.Errorf("function %s takes %d arguments, got %d", d.Name, d.Arity, n)
	}
	return nil
}

// fixedType returns a ReturnType that accepts the listed argument types.
func fixedType(result ir.Type, accepted ...ir.Type) func([]ir.Type) (ir.Type, error) {
	return func(args []ir.Type) (ir.Type, error) {
		for _, a := range args {
			ok := false
			for _, t := range accepted {
				if a == t {
					ok = true
					break
				}
			}
			if !ok {
				return "", fmt.Errorf("illegal argument type %s", a)
			}
		}
		return result, nil
	}
}

// extSign returns the sign of an extended bound against zero.
func extSign(e ir.ExtValue) (int, bool) {
	switch e.Kind {
	case ir.MinusInfinity:
		return -1, true
	case ir.PlusInfinity:
		return 1, true
	}
	return ir.Compare(e.Value, ir.Int(0))
}

// valueSign returns the sign of a constant against zero.
func valueSign(v ir.Value) (int, bool) {
	return ir.Compare(v, ir.Int(0))
}
