package ir

import "fmt"

// ExtKind tags an ExtValue as a finite value or one of the two infinities.
type ExtKind int8

const (
	MinusInfinity ExtKind = -1
	Normal        ExtKind = 0
	PlusInfinity  ExtKind = 1
)

// ExtValue is a column value extended with -inf and +inf.
// -inf < every Normal value < +inf; two infinities of the same kind are equal.
type ExtValue struct {
	Kind  ExtKind
	Value Value // only for Kind == Normal
}

// Finite wraps an ordinary value.
func Finite(v Value) ExtValue {
	return ExtValue{Kind: Normal, Value: v}
}

// NegInf returns -inf.
func NegInf() ExtValue {
	return ExtValue{Kind: MinusInfinity}
}

// PosInf returns +inf.
func PosInf() ExtValue {
	return ExtValue{Kind: PlusInfinity}
}

// IsInfinite reports whether e is one of the sentinels.
func (e ExtValue) IsInfinite() bool {
	return e.Kind != Normal
}

// CompareExt orders extended values; ok is false only when two finite values
// are incomparable.
func CompareExt(a, b ExtValue) (int, bool) {
	if a.Kind != Normal || b.Kind != Normal {
		switch {
		case a.Kind < b.Kind:
			return -1, true
		case a.Kind > b.Kind:
			return 1, true
		default:
			return 0, true
		}
	}
	return Compare(a.Value, b.Value)
}

func (e ExtValue) String() string {
	switch e.Kind {
	case MinusInfinity:
		return "-inf"
	case PlusInfinity:
		return "+inf"
	default:
		return FormatValue(e.Value)
	}
}

// Interval is a one-dimensional range. Each side is a bound with its own
// inclusion flag; an infinite side ignores its flag.
//
// Intervals are values: every operation returns a new Interval.
type Interval struct {
	Left          ExtValue
	Right         ExtValue
	LeftIncluded  bool
	RightIncluded bool
}

// Whole is (-inf, +inf).
func Whole() Interval {
	return Interval{Left: NegInf(), Right: PosInf()}
}

// Point is [v, v].
func Point(v Value) Interval {
	return Interval{Left: Finite(v), Right: Finite(v), LeftIncluded: true, RightIncluded: true}
}

// LeftBounded is [v, +inf) or (v, +inf).
func LeftBounded(v Value, included bool) Interval {
	return Interval{Left: Finite(v), Right: PosInf(), LeftIncluded: included}
}

// RightBounded is (-inf, v] or (-inf, v).
func RightBounded(v Value, included bool) Interval {
	return Interval{Left: NegInf(), Right: Finite(v), RightIncluded: included}
}

// Closed is [left, right].
func Closed(left, right Value) Interval {
	return Interval{Left: Finite(left), Right: Finite(right), LeftIncluded: true, RightIncluded: true}
}

// NewInterval builds an interval from explicit bounds.
func NewInterval(left ExtValue, leftIncluded bool, right ExtValue, rightIncluded bool) Interval {
	return Interval{Left: left, Right: right, LeftIncluded: leftIncluded, RightIncluded: rightIncluded}
}

// IsWhole reports whether both sides are unbounded.
func (r Interval) IsWhole() bool {
	return r.Left.Kind == MinusInfinity && r.Right.Kind == PlusInfinity
}

// IsPoint reports whether r holds exactly one value.
func (r Interval) IsPoint() bool {
	if r.Left.IsInfinite() || r.Right.IsInfinite() || !r.LeftIncluded || !r.RightIncluded {
		return false
	}
	return Equal(r.Left.Value, r.Right.Value)
}

// IsEmpty reports whether r contains no value. Bounds that cannot be
// compared are assumed to leave the interval non-empty.
func (r Interval) IsEmpty() bool {
	if r.Left.Kind == PlusInfinity || r.Right.Kind == MinusInfinity {
		return true
	}
	c, ok := CompareExt(r.Left, r.Right)
	if !ok {
		return false
	}
	if c > 0 {
		return true
	}
	if c == 0 && !r.Left.IsInfinite() {
		return !(r.LeftIncluded && r.RightIncluded)
	}
	return false
}

// Intersect returns r ∩ o. ok is false when the bounds cannot be compared.
func (r Interval) Intersect(o Interval) (Interval, bool) {
	out := r
	c, ok := CompareExt(o.Left, r.Left)
	if !ok {
		return Interval{}, false
	}
	switch {
	case c > 0:
		out.Left, out.LeftIncluded = o.Left, o.LeftIncluded
	case c == 0:
		out.LeftIncluded = r.LeftIncluded && o.LeftIncluded
	}
	c, ok = CompareExt(o.Right, r.Right)
	if !ok {
		return Interval{}, false
	}
	switch {
	case c < 0:
		out.Right, out.RightIncluded = o.Right, o.RightIncluded
	case c == 0:
		out.RightIncluded = r.RightIncluded && o.RightIncluded
	}
	return out, true
}

// Intersects reports whether r and o share a value. It answers true when the
// bounds cannot be compared.
func (r Interval) Intersects(o Interval) bool {
	if r.IsEmpty() || o.IsEmpty() {
		return false
	}
	x, ok := r.Intersect(o)
	if !ok {
		return true
	}
	return !x.IsEmpty()
}

// Contains reports whether every value of inner lies in r. It answers false
// when the bounds cannot be compared. An empty inner is contained.
func (r Interval) Contains(inner Interval) bool {
	if inner.IsEmpty() {
		return true
	}
	c, ok := CompareExt(r.Left, inner.Left)
	if !ok || c > 0 {
		return false
	}
	if c == 0 && !r.Left.IsInfinite() && inner.LeftIncluded && !r.LeftIncluded {
		return false
	}
	c, ok = CompareExt(inner.Right, r.Right)
	if !ok || c > 0 {
		return false
	}
	if c == 0 && !r.Right.IsInfinite() && inner.RightIncluded && !r.RightIncluded {
		return false
	}
	return true
}

// Flip mirrors r for a decreasing map: bounds and their flags trade sides.
func (r Interval) Flip() Interval {
	return Interval{Left: r.Right, Right: r.Left, LeftIncluded: r.RightIncluded, RightIncluded: r.LeftIncluded}
}

func (r Interval) String() string {
	open, close := "(", ")"
	if r.LeftIncluded && !r.Left.IsInfinite() {
		open = "["
	}
	if r.RightIncluded && !r.Right.IsInfinite() {
		close = "]"
	}
	return fmt.Sprintf("%s%s, %s%s", open, r.Left, r.Right, close)
}
