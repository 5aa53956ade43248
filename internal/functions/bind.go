package functions

import (
	"fmt"

	"github.com/roach88/keycond/internal/ir"
)

// Bound is a function with every argument but one fixed to a constant.
// It is immutable and safe for concurrent use.
type Bound struct {
	def        *Definition
	args       []ir.Value // constants; args[varPos] is nil
	varPos     int
	argType    ir.Type
	resultType ir.Type
}

// Bind fixes the constant arguments of function name. args holds one entry
// per parameter; args[varPos] is ignored and replaced by the variable
// argument of type argType on every Apply.
func Bind(name string, args []ir.Value, varPos int, argType ir.Type) (*Bound, error) {
	def, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown function %q", name)
	}
	if err := checkArity(def, len(args)); err != nil {
		return nil, err
	}
	if varPos < 0 || varPos >= len(args) {
		return nil, fmt.Errorf("function %s: variable argument %d out of range", name, varPos)
	}
	fixed := make([]ir.Value, len(args))
	types := make([]ir.Type, len(args))
	for i, a := range args {
		if i == varPos {
			types[i] = argType
			continue
		}
		if a == nil {
			return nil, fmt.Errorf("function %s: argument %d is not constant", name, i)
		}
		fixed[i] = a
		types[i] = ir.TypeOf(a)
	}
	rt, err := def.ReturnType(types)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", name, err)
	}
	return &Bound{def: def, args: fixed, varPos: varPos, argType: argType, resultType: rt}, nil
}

// Name returns the function name.
func (b *Bound) Name() string {
	return b.def.Name
}

// ArgType is the type of the variable argument.
func (b *Bound) ArgType() ir.Type {
	return b.argType
}

// ResultType is the type Apply produces.
func (b *Bound) ResultType() ir.Type {
	return b.resultType
}

// VarPos is the position of the variable argument.
func (b *Bound) VarPos() int {
	return b.varPos
}

// Const returns the fixed argument at position i (nil at VarPos).
func (b *Bound) Const(i int) ir.Value {
	return b.args[i]
}

// HasMonotonicity reports whether the function can ever be monotonic.
func (b *Bound) HasMonotonicity() bool {
	return b.def.Monotonicity != nil
}

// Apply evaluates the function with v as the variable argument.
func (b *Bound) Apply(v ir.Value) (ir.Value, error) {
	args := make([]ir.Value, len(b.args))
	copy(args, b.args)
	args[b.varPos] = v
	out, err := b.def.Eval(args)
	if err != nil {
		return nil, err
	}
	// Results are normalized to the declared type so chained functions see
	// the type they were bound for.
	return ir.Convert(out, b.resultType)
}

// Monotonicity describes the function over the argument range
// [left, right].
func (b *Bound) Monotonicity(left, right ir.ExtValue) Monotonicity {
	if b.def.Monotonicity == nil {
		return notMonotonic
	}
	return b.def.Monotonicity(b, left, right)
}

// Render writes the call with arg in place of the variable argument.
func (b *Bound) Render(arg string) string {
	s := b.def.Name + "("
	for i, a := range b.args {
		if i > 0 {
			s += ", "
		}
		if i == b.varPos {
			s += arg
		} else {
			s += ir.FormatValue(a)
		}
	}
	return s + ")"
}

func (b *Bound) String() string {
	return b.Render("_")
}
