package keycond

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/keycond/internal/ir"
)

// CheckInRange evaluates the condition over all key tuples t with
// left <= t <= right, compared lexicographically on the first n key
// columns. Columns after n are unconstrained.
//
// types optionally gives the type of each key column in the data being
// checked. When it differs from the type the condition was compiled for,
// atoms that apply functions to that column answer "unknown".
func (kc *KeyCondition) CheckInRange(n int, left, right []ir.Value, types []ir.Type) ir.BoolMask {
	n = min(n, len(left), len(right), len(kc.keyTypes))
	if kc.exactTuples {
		return kc.anyHyperrectangle(n, left, right, true, true, types)
	}
	return kc.CheckInParallelogram(boundingBox(kc.whole(), n, left, right, true), types)
}

// CheckAfter evaluates the condition over all key tuples t >= left on the
// first n key columns.
func (kc *KeyCondition) CheckAfter(n int, left []ir.Value, types []ir.Type) ir.BoolMask {
	n = min(n, len(left), len(kc.keyTypes))
	if kc.exactTuples {
		return kc.anyHyperrectangle(n, left, nil, true, false, types)
	}
	return kc.CheckInParallelogram(boundingBox(kc.whole(), n, left, nil, false), types)
}

// CheckInParallelogram evaluates the condition over the hyperrectangle with
// one interval per key column. Missing trailing intervals are unbounded.
func (kc *KeyCondition) CheckInParallelogram(p []ir.Interval, types []ir.Type) ir.BoolMask {
	stack := make([]ir.BoolMask, 0, len(kc.rpn))
	pop := func(op Op) ir.BoolMask {
		if len(stack) == 0 {
			panic(errors.AssertionFailedf("keycond: stack underflow at %s", op))
		}
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return m
	}

	for _, el := range kc.rpn {
		switch el.Op {
		case OpUnknown:
			stack = append(stack, ir.MaskUnknown)
		case OpAlwaysTrue:
			stack = append(stack, ir.MaskTrue)
		case OpAlwaysFalse:
			stack = append(stack, ir.MaskFalse)
		case OpInRange, OpNotInRange:
			m := kc.rangeMask(el, p, types)
			if el.Op == OpNotInRange {
				m = m.Not()
			}
			stack = append(stack, m)
		case OpInSet, OpNotInSet:
			m := kc.setMask(el, p, types)
			if el.Op == OpNotInSet {
				m = m.Not()
			}
			stack = append(stack, m)
		case OpNot:
			stack = append(stack, pop(el.Op).Not())
		case OpAnd:
			b, a := pop(el.Op), pop(el.Op)
			stack = append(stack, a.And(b))
		case OpOr:
			b, a := pop(el.Op), pop(el.Op)
			stack = append(stack, a.Or(b))
		default:
			panic(errors.AssertionFailedf("keycond: unexpected element %s", el.Op))
		}
	}
	if len(stack) != 1 {
		panic(errors.AssertionFailedf("keycond: %d values left on the stack", len(stack)))
	}
	return stack[0]
}

// MayBeTrueInRange reports whether some tuple in [left, right] may satisfy
// the condition.
func (kc *KeyCondition) MayBeTrueInRange(n int, left, right []ir.Value, types []ir.Type) bool {
	return kc.CheckInRange(n, left, right, types).CanBeTrue
}

// MayBeTrueAfter reports whether some tuple >= left may satisfy the
// condition.
func (kc *KeyCondition) MayBeTrueAfter(n int, left []ir.Value, types []ir.Type) bool {
	return kc.CheckAfter(n, left, types).CanBeTrue
}

// MayBeTrueInParallelogram reports whether some tuple of p may satisfy the
// condition.
func (kc *KeyCondition) MayBeTrueInParallelogram(p []ir.Interval, types []ir.Type) bool {
	return kc.CheckInParallelogram(p, types).CanBeTrue
}

func (kc *KeyCondition) whole() []ir.Interval {
	p := make([]ir.Interval, len(kc.keyTypes))
	for i := range p {
		p[i] = ir.Whole()
	}
	return p
}

// keyRange is the interval of key column col in p, or the whole line.
func keyRange(p []ir.Interval, col int) ir.Interval {
	if col < len(p) {
		return p[col]
	}
	return ir.Whole()
}

// typeChanged reports whether the checked data stores column col with a
// type other than the compiled one.
func (kc *KeyCondition) typeChanged(col int, types []ir.Type) bool {
	return col < len(types) && types[col] != "" && types[col] != kc.keyTypes[col]
}

func (kc *KeyCondition) rangeMask(el RPNElement, p []ir.Interval, types []ir.Type) ir.BoolMask {
	r := keyRange(p, el.KeyColumn)
	if len(el.Chain) > 0 {
		if kc.typeChanged(el.KeyColumn, types) {
			return ir.MaskUnknown
		}
		var ok bool
		if r, ok = ApplyChain(r, el.Chain); !ok {
			return ir.MaskUnknown
		}
	}
	return ir.BoolMask{
		CanBeTrue:  r.Intersects(el.Range),
		CanBeFalse: el.Relaxed || !el.Range.Contains(r),
	}
}

func (kc *KeyCondition) setMask(el RPNElement, p []ir.Interval, types []ir.Type) ir.BoolMask {
	if el.Set == nil {
		return ir.MaskUnknown
	}
	ranges := make([]ir.Interval, len(el.SetColumns))
	for i, sc := range el.SetColumns {
		r := keyRange(p, sc.KeyColumn)
		if len(sc.Chain) > 0 {
			if kc.typeChanged(sc.KeyColumn, types) {
				return ir.MaskUnknown
			}
			var ok bool
			if r, ok = ApplyChain(r, sc.Chain); !ok {
				return ir.MaskUnknown
			}
		}
		ranges[i] = r
	}
	return el.Set.MayIntersect(ranges)
}

// boundingBox narrows p to the smallest hyperrectangle holding every tuple
// between left and right (or after left when right is unbounded): the
// common prefix is pinned, the first differing column spans both values and
// later columns stay whole.
func boundingBox(p []ir.Interval, n int, left, right []ir.Value, rightBounded bool) []ir.Interval {
	for i := 0; i < n; i++ {
		if !rightBounded {
			p[i] = ir.LeftBounded(left[i], true)
			break
		}
		if ir.Equal(left[i], right[i]) {
			p[i] = ir.Point(left[i])
			continue
		}
		p[i] = ir.Closed(left[i], right[i])
		break
	}
	return p
}

// anyHyperrectangle covers the tuple range with disjoint hyperrectangles
// and merges their masks. For left = (x1, y1) and right = (x2, y2) the
// pieces are (x1, x2) x any, [x1] x [y1, +inf) and [x2] x (-inf, y2].
func (kc *KeyCondition) anyHyperrectangle(n int, left, right []ir.Value, leftBounded, rightBounded bool, types []ir.Type) ir.BoolMask {
	acc := ir.BoolMask{}
	visit := func(p []ir.Interval) bool {
		m := kc.CheckInParallelogram(p, types)
		acc.CanBeTrue = acc.CanBeTrue || m.CanBeTrue
		acc.CanBeFalse = acc.CanBeFalse || m.CanBeFalse
		return acc.CanBeTrue && acc.CanBeFalse
	}
	forEachHyperrectangle(n, left, right, leftBounded, rightBounded, kc.whole(), 0, visit)
	return acc
}

// forEachHyperrectangle calls visit for every piece until visit returns
// true.
func forEachHyperrectangle(n int, left, right []ir.Value, leftBounded, rightBounded bool, p []ir.Interval, prefix int, visit func([]ir.Interval) bool) bool {
	if !leftBounded && !rightBounded {
		return visit(p)
	}
	if leftBounded && rightBounded {
		for prefix < n && ir.Equal(left[prefix], right[prefix]) {
			p[prefix] = ir.Point(left[prefix])
			prefix++
		}
	}
	if prefix == n {
		return visit(p)
	}

	if prefix+1 == n {
		switch {
		case leftBounded && rightBounded:
			p[prefix] = ir.Closed(left[prefix], right[prefix])
		case leftBounded:
			p[prefix] = ir.LeftBounded(left[prefix], true)
		default:
			p[prefix] = ir.RightBounded(right[prefix], true)
		}
		return visit(p)
	}

	switch {
	case leftBounded && rightBounded:
		p[prefix] = ir.NewInterval(ir.Finite(left[prefix]), false, ir.Finite(right[prefix]), false)
	case leftBounded:
		p[prefix] = ir.LeftBounded(left[prefix], false)
	default:
		p[prefix] = ir.RightBounded(right[prefix], false)
	}
	for i := prefix + 1; i < len(p); i++ {
		p[i] = ir.Whole()
	}
	if visit(p) {
		return true
	}

	if leftBounded {
		p[prefix] = ir.Point(left[prefix])
		if forEachHyperrectangle(n, left, right, true, false, p, prefix+1, visit) {
			return true
		}
	}
	if rightBounded {
		p[prefix] = ir.Point(right[prefix])
		if forEachHyperrectangle(n, left, right, false, true, p, prefix+1, visit) {
			return true
		}
	}
	return false
}
