package sets

import (
	"fmt"
	"math"
	"slices"

	"github.com/google/btree"

	"github.com/roach88/keycond/internal/ir"
)

// btreeDegree matches the fan-out used for small in-memory indexes.
const btreeDegree = 16

type tuple []ir.Value

func lessTuple(a, b tuple) bool {
	c, ok := ir.CompareTuples(a, b)
	return ok && c < 0
}

// Set is an ordered set of typed tuples.
type Set struct {
	types       []ir.Type
	tree        *btree.BTreeG[tuple]
	fingerprint string
}

// Build converts every row to types and stores the distinct rows.
// Rows with an element that cannot be represented in its column type (or is
// NULL or NaN) are dropped: no column value can ever equal them.
func Build(types []ir.Type, rows [][]ir.Value) (*Set, error) {
	if len(types) == 0 {
		return nil, fmt.Errorf("set needs at least one column")
	}
	tree := btree.NewG[tuple](btreeDegree, lessTuple)
	for i, row := range rows {
		if len(row) != len(types) {
			return nil, fmt.Errorf("row %d has %d values, set has %d columns", i, len(row), len(types))
		}
		t, ok := convertRow(row, types)
		if !ok {
			continue
		}
		tree.ReplaceOrInsert(t)
	}

	elems := make([][]ir.Value, 0, tree.Len())
	tree.Ascend(func(t tuple) bool {
		elems = append(elems, t)
		return true
	})
	fp, err := ir.SetFingerprint(types, elems)
	if err != nil {
		return nil, err
	}
	return &Set{types: slices.Clone(types), tree: tree, fingerprint: fp}, nil
}

func convertRow(row []ir.Value, types []ir.Type) (tuple, bool) {
	t := make(tuple, len(row))
	for i, v := range row {
		if _, null := v.(ir.Null); null || v == nil {
			return nil, false
		}
		if f, ok := v.(ir.Float); ok && math.IsNaN(float64(f)) {
			return nil, false
		}
		cv, err := ir.Convert(v, types[i])
		if err != nil {
			return nil, false
		}
		t[i] = cv
	}
	return t, true
}

// Len is the number of distinct elements.
func (s *Set) Len() int {
	return s.tree.Len()
}

// Types returns the column types of the elements.
func (s *Set) Types() []ir.Type {
	return slices.Clone(s.types)
}

// Fingerprint identifies the set contents.
func (s *Set) Fingerprint() string {
	return s.fingerprint
}

// Has reports whether the tuple is an element.
func (s *Set) Has(values []ir.Value) bool {
	if len(values) != len(s.types) {
		return false
	}
	return s.tree.Has(tuple(values))
}

// Elements returns the elements in ascending order.
func (s *Set) Elements() [][]ir.Value {
	out := make([][]ir.Value, 0, s.tree.Len())
	s.tree.Ascend(func(t tuple) bool {
		out = append(out, slices.Clone(t))
		return true
	})
	return out
}

// MayIntersect tests the set against a hyperrectangle with one interval per
// set column.
//
// CanBeTrue is false when no element lies inside every interval.
// CanBeFalse is false only when every interval is a single point and that
// point is an element, i.e. every row in the rectangle is a member.
func (s *Set) MayIntersect(ranges []ir.Interval) ir.BoolMask {
	if len(ranges) != len(s.types) {
		return ir.MaskUnknown
	}
	return ir.BoolMask{
		CanBeTrue:  s.anyInside(ranges),
		CanBeFalse: !s.allMembers(ranges),
	}
}

func (s *Set) anyInside(ranges []ir.Interval) bool {
	for _, r := range ranges {
		if r.IsEmpty() {
			return false
		}
	}
	found := false
	visit := func(t tuple) bool {
		first := ranges[0]
		if !first.Right.IsInfinite() {
			if c, ok := ir.Compare(t[0], first.Right.Value); ok && c > 0 {
				return false // past the first column's upper bound
			}
		}
		for i, r := range ranges {
			if !r.Intersects(ir.Point(t[i])) {
				return true
			}
		}
		found = true
		return false
	}

	first := ranges[0]
	if first.Left.IsInfinite() {
		s.tree.Ascend(visit)
		return found
	}
	if _, ok := ir.Compare(first.Left.Value, s.sampleFirst()); !ok {
		// Bounds of another kind: no seek, test every element.
		s.tree.Ascend(func(t tuple) bool {
			for i, r := range ranges {
				if !r.Intersects(ir.Point(t[i])) {
					return true
				}
			}
			found = true
			return false
		})
		return found
	}
	s.tree.AscendGreaterOrEqual(tuple{first.Left.Value}, visit)
	return found
}

// sampleFirst returns some first-column value to test comparability.
func (s *Set) sampleFirst() ir.Value {
	if t, ok := s.tree.Min(); ok {
		return t[0]
	}
	return ir.Null{}
}

func (s *Set) allMembers(ranges []ir.Interval) bool {
	point := make([]ir.Value, len(ranges))
	for i, r := range ranges {
		if !r.IsPoint() {
			return false
		}
		cv, err := ir.Convert(r.Left.Value, s.types[i])
		if err != nil {
			return false
		}
		point[i] = cv
	}
	return s.tree.Has(tuple(point))
}

func (s *Set) String() string {
	return fmt.Sprintf("set(%d elements)", s.tree.Len())
}
