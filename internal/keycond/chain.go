package keycond

import (
	"github.com/roach88/keycond/internal/functions"
	"github.com/roach88/keycond/internal/ir"
)

// MonotonicChain lists the functions wrapping a key column, innermost
// first: for negate(toFloat64(toDayOfWeek(k))) it holds toDayOfWeek,
// toFloat64, negate.
type MonotonicChain []*functions.Bound

// ResultType is the type produced by the outermost function, or keyType
// for an empty chain.
func (c MonotonicChain) ResultType(keyType ir.Type) ir.Type {
	if len(c) == 0 {
		return keyType
	}
	return c[len(c)-1].ResultType()
}

// Render writes the chain applied to arg.
func (c MonotonicChain) Render(arg string) string {
	for _, fn := range c {
		arg = fn.Render(arg)
	}
	return arg
}

// ApplyChain maps a key column interval through the chain. It fails when a
// step is not monotonic on the interval it receives or a bound cannot be
// evaluated; callers must then treat the atom as unknown.
//
// Finite bounds of the result are closed: a non-strict function can map an
// open interval onto a single value.
func ApplyChain(r ir.Interval, chain MonotonicChain) (ir.Interval, bool) {
	for _, fn := range chain {
		if r.IsEmpty() {
			return r, true
		}
		left, ok := convertBound(r.Left, fn.ArgType())
		if !ok {
			return ir.Interval{}, false
		}
		right, ok := convertBound(r.Right, fn.ArgType())
		if !ok {
			return ir.Interval{}, false
		}

		m := fn.Monotonicity(left, right)
		if !m.IsMonotonic {
			return ir.Interval{}, false
		}

		newLeft, ok := image(fn, left, m.IsPositive)
		if !ok {
			return ir.Interval{}, false
		}
		newRight, ok := image(fn, right, m.IsPositive)
		if !ok {
			return ir.Interval{}, false
		}
		out := ir.NewInterval(newLeft, !newLeft.IsInfinite(), newRight, !newRight.IsInfinite())
		if !m.IsPositive {
			out = out.Flip()
		}
		r = out
	}
	return r, true
}

func convertBound(e ir.ExtValue, t ir.Type) (ir.ExtValue, bool) {
	if e.IsInfinite() {
		return e, true
	}
	v, err := ir.Convert(e.Value, t)
	if err != nil {
		return ir.ExtValue{}, false
	}
	return ir.Finite(v), true
}

// image maps one bound. A decreasing function sends -inf to +inf.
func image(fn *functions.Bound, e ir.ExtValue, increasing bool) (ir.ExtValue, bool) {
	if e.IsInfinite() {
		if increasing {
			return e, true
		}
		return ir.ExtValue{Kind: -e.Kind}, true
	}
	v, err := fn.Apply(e.Value)
	if err != nil {
		return ir.ExtValue{}, false
	}
	return ir.Finite(v), true
}
