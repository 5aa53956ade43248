package keycond

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/keycond/internal/ir"
	q "github.com/roach88/keycond/internal/queryir"
)

func TestGreaterThanConstant(t *testing.T) {
	kc := mustBuild(t, q.Fn("greater", q.Col("k"), lit(ir.Int(10))), newKey(t, q.Col("k")))

	assert.True(t, kc.MayBeTrueInRange(1, ints(5), ints(20), nil))
	assert.False(t, kc.MayBeTrueInRange(1, ints(1), ints(9), nil))
	assert.False(t, kc.MayBeTrueInRange(1, ints(1), ints(10), nil))
	assert.Equal(t, ir.MaskTrue, kc.CheckInRange(1, ints(11), ints(20), nil))
}

func TestDateOfDateTimeKey(t *testing.T) {
	kc := mustBuild(t,
		q.Fn("equals", q.Fn("toDate", q.Col("ts")), lit(ir.String("2020-01-01"))),
		newKey(t, q.Col("ts")))

	jan2 := ir.DateTime(1577923200)
	jan3 := ir.DateTime(1578009600)
	assert.False(t, kc.MayBeTrueInRange(1, []ir.Value{jan2}, []ir.Value{jan3}, nil))

	before := ir.DateTime(1577833200) // 2019-12-31 23:00
	after := ir.DateTime(1577840400)  // 2020-01-01 01:00
	assert.True(t, kc.MayBeTrueInRange(1, []ir.Value{before}, []ir.Value{after}, nil))

	// One day only: every row matches.
	start := ir.DateTime(1577836800)
	end := ir.DateTime(1577836800 + 86399)
	assert.Equal(t, ir.MaskTrue, kc.CheckInRange(1, []ir.Value{start}, []ir.Value{end}, nil))
}

func TestInList(t *testing.T) {
	kc := mustBuild(t,
		q.Fn("in", q.Col("k"), q.Tup(lit(ir.Int(3)), lit(ir.Int(7)), lit(ir.Int(50)))),
		newKey(t, q.Col("k")))

	assert.True(t, kc.MayBeTrueInRange(1, ints(0), ints(10), nil))
	assert.False(t, kc.MayBeTrueInRange(1, ints(20), ints(30), nil))
	assert.True(t, kc.MayBeTrueAfter(1, ints(20), nil))
	assert.False(t, kc.MayBeTrueAfter(1, ints(51), nil))
	assert.Equal(t, ir.MaskTrue, kc.CheckInRange(1, ints(7), ints(7), nil))
}

func TestNegationIsNotComplement(t *testing.T) {
	ke := newKey(t, q.Col("k"))
	p := q.Fn("greater", q.Col("k"), lit(ir.Int(10)))
	kc := mustBuild(t, p, ke)
	notKC := mustBuild(t, q.Fn("not", p), ke)

	// Partial overlap: both the predicate and its negation may hold.
	assert.True(t, kc.MayBeTrueInRange(1, ints(5), ints(20), nil))
	assert.True(t, notKC.MayBeTrueInRange(1, ints(5), ints(20), nil))

	// Fully inside the predicate: only the negation is excluded.
	assert.True(t, kc.MayBeTrueInRange(1, ints(11), ints(20), nil))
	assert.False(t, notKC.MayBeTrueInRange(1, ints(11), ints(20), nil))

	// Fully outside.
	assert.False(t, kc.MayBeTrueInRange(1, ints(1), ints(9), nil))
	assert.True(t, notKC.MayBeTrueInRange(1, ints(1), ints(9), nil))
}

func TestNotInRangeAndNotInSet(t *testing.T) {
	ke := newKey(t, q.Col("k"))

	ne := mustBuild(t, q.Fn("notEquals", q.Col("k"), lit(ir.Int(5))), ke)
	assert.False(t, ne.MayBeTrueInRange(1, ints(5), ints(5), nil))
	assert.True(t, ne.MayBeTrueInRange(1, ints(4), ints(6), nil))
	assert.Equal(t, ir.MaskTrue, ne.CheckInRange(1, ints(6), ints(9), nil))

	notIn := mustBuild(t, q.Fn("notIn", q.Col("k"), q.Tup(lit(ir.Int(3)), lit(ir.Int(7)))), ke)
	assert.False(t, notIn.MayBeTrueInRange(1, ints(3), ints(3), nil))
	assert.True(t, notIn.MayBeTrueInRange(1, ints(3), ints(4), nil))
	assert.Equal(t, ir.MaskTrue, notIn.CheckInRange(1, ints(8), ints(9), nil))
}

func TestBoundingBox(t *testing.T) {
	whole := func() []ir.Interval { return []ir.Interval{ir.Whole(), ir.Whole(), ir.Whole()} }

	tests := []struct {
		name         string
		n            int
		left, right  []ir.Value
		rightBounded bool
		want         []ir.Interval
	}{
		{
			name: "shared prefix pinned",
			n:    2, left: ints(1, 5), right: ints(1, 9), rightBounded: true,
			want: []ir.Interval{ir.Point(ir.Int(1)), ir.Closed(ir.Int(5), ir.Int(9)), ir.Whole()},
		},
		{
			name: "first column differs",
			n:    2, left: ints(1, 5), right: ints(3, 2), rightBounded: true,
			want: []ir.Interval{ir.Closed(ir.Int(1), ir.Int(3)), ir.Whole(), ir.Whole()},
		},
		{
			name: "equal tuples",
			n:    2, left: ints(4, 4), right: ints(4, 4), rightBounded: true,
			want: []ir.Interval{ir.Point(ir.Int(4)), ir.Point(ir.Int(4)), ir.Whole()},
		},
		{
			name: "no key columns used",
			n:    0, left: ints(1, 5), right: ints(3, 2), rightBounded: true,
			want: whole(),
		},
		{
			name: "right unbounded",
			n:    2, left: ints(1, 5),
			want: []ir.Interval{ir.LeftBounded(ir.Int(1), true), ir.Whole(), ir.Whole()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := boundingBox(whole(), tt.n, tt.left, tt.right, tt.rightBounded)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTupleRanges(t *testing.T) {
	ke := newKey(t, q.Col("k"), q.Col("x"))
	kc := mustBuild(t, q.Fn("greater", q.Col("x"), lit(ir.Int(100))), ke)

	// Column 1 only varies inside [5, 9] while column 0 is pinned.
	assert.False(t, kc.MayBeTrueInRange(2, ints(1, 5), ints(1, 9), nil))
	// Once column 0 has room, column 1 is unconstrained.
	assert.True(t, kc.MayBeTrueInRange(2, ints(1, 5), ints(3, 2), nil))
	// Only the first column is known.
	assert.True(t, kc.MayBeTrueInRange(1, ints(1, 5), ints(1, 9), nil))
	// Short tuples leave later columns unbounded.
	assert.True(t, kc.MayBeTrueInRange(2, ints(1), ints(1), nil))
	// Nothing known at all.
	assert.True(t, kc.MayBeTrueInRange(0, nil, nil, nil))
}

func TestUsedKeySizeZeroStillFoldsConstants(t *testing.T) {
	kc := mustBuild(t, q.Fn("equals", lit(ir.Int(1)), lit(ir.Int(2))), newKey(t, q.Col("k")))
	assert.False(t, kc.MayBeTrueInRange(0, nil, nil, nil))
	assert.False(t, kc.MayBeTrueAfter(0, nil, nil))
}

func TestExactTupleRanges(t *testing.T) {
	ke := newKey(t, q.Col("k"), q.Col("x"))
	pred := q.Fn("and",
		q.Fn("equals", q.Col("k"), lit(ir.Int(1))),
		q.Fn("equals", q.Col("x"), lit(ir.Int(4))),
	)
	box := mustBuild(t, pred, ke)
	exact := mustBuild(t, pred, ke, WithExactTupleRanges())

	// (1, 5) .. (2, 2) holds (1, >=5) and (2, <=2) but never (1, 4).
	assert.True(t, box.MayBeTrueInRange(2, ints(1, 5), ints(2, 2), nil))
	assert.False(t, exact.MayBeTrueInRange(2, ints(1, 5), ints(2, 2), nil))

	assert.True(t, box.MayBeTrueAfter(2, ints(1, 5), nil))
	assert.False(t, exact.MayBeTrueAfter(2, ints(1, 5), nil))

	// (0, 9) .. (1, 4) reaches (1, 4) itself.
	assert.True(t, exact.MayBeTrueInRange(2, ints(0, 9), ints(1, 4), nil))
	assert.True(t, exact.MayBeTrueAfter(2, ints(0, 9), nil))
}

func TestExactTupleRangesMergeMasks(t *testing.T) {
	ke := newKey(t, q.Col("k"), q.Col("x"))
	exact := mustBuild(t, q.Fn("greaterOrEquals", q.Col("k"), lit(ir.Int(1))), ke, WithExactTupleRanges())

	assert.Equal(t, ir.MaskTrue, exact.CheckInRange(2, ints(1, 5), ints(2, 2), nil))
	assert.Equal(t, ir.MaskUnknown, exact.CheckInRange(2, ints(0, 5), ints(2, 2), nil))
	assert.Equal(t, ir.MaskFalse, exact.CheckInRange(2, ints(-5, 0), ints(0, 7), nil))
}

func TestDecreasingChain(t *testing.T) {
	kc := mustBuild(t, q.Fn("less", q.Fn("negate", q.Col("k")), lit(ir.Int(-3))), newKey(t, q.Col("k")))

	assert.False(t, kc.MayBeTrueInRange(1, ints(0), ints(3), nil))
	assert.True(t, kc.MayBeTrueInRange(1, ints(0), ints(4), nil))
	assert.True(t, kc.MayBeTrueAfter(1, ints(-100), nil))
}

func TestRangeDependentMonotonicity(t *testing.T) {
	kc := mustBuild(t, q.Fn("greater", q.Fn("abs", q.Col("k")), lit(ir.Int(5))), newKey(t, q.Col("k")))

	assert.True(t, kc.MayBeTrueInRange(1, ints(-10), ints(-8), nil))
	assert.False(t, kc.MayBeTrueInRange(1, ints(-4), ints(-1), nil))
	assert.False(t, kc.MayBeTrueInRange(1, ints(1), ints(4), nil))
	// abs is not monotonic across zero: no exclusion even though it would
	// be correct here.
	assert.True(t, kc.MayBeTrueInRange(1, ints(-3), ints(2), nil))
}

func TestChangedColumnTypeDisablesChains(t *testing.T) {
	kc := mustBuild(t,
		q.Fn("equals", q.Fn("toDate", q.Col("ts")), lit(ir.String("2020-01-01"))),
		newKey(t, q.Col("ts")))
	left := []ir.Value{ir.DateTime(1577923200)}
	right := []ir.Value{ir.DateTime(1578009600)}

	assert.False(t, kc.MayBeTrueInRange(1, left, right, []ir.Type{ir.TypeDateTime}))
	assert.True(t, kc.MayBeTrueInRange(1, left, right, []ir.Type{ir.TypeInt64}))
	assert.False(t, kc.MayBeTrueInRange(1, left, right, []ir.Type{""}))
}

func TestIncomparableBoundsAreConservative(t *testing.T) {
	kc := mustBuild(t, q.Fn("equals", q.Col("k"), lit(ir.Int(5))), newKey(t, q.Col("k")))
	left := []ir.Value{ir.String("a")}
	right := []ir.Value{ir.String("b")}
	assert.Equal(t, ir.MaskUnknown, kc.CheckInRange(1, left, right, nil))
}

func TestParallelogram(t *testing.T) {
	ke := newKey(t, q.Col("k"), q.Col("s"))
	kc := mustBuild(t, q.Fn("in", q.Tup(q.Col("k"), q.Col("s")), q.Tup(
		q.Tup(lit(ir.Int(1)), lit(ir.String("a"))),
		q.Tup(lit(ir.Int(5)), lit(ir.String("z"))),
	)), ke)

	assert.True(t, kc.MayBeTrueInParallelogram([]ir.Interval{ir.Closed(ir.Int(0), ir.Int(2)), ir.Whole()}, nil))
	assert.False(t, kc.MayBeTrueInParallelogram([]ir.Interval{ir.Closed(ir.Int(0), ir.Int(2)), ir.Point(ir.String("z"))}, nil))
	assert.True(t, kc.MayBeTrueInParallelogram([]ir.Interval{ir.Whole()}, nil))
	assert.Equal(t, ir.MaskTrue, kc.CheckInParallelogram([]ir.Interval{ir.Point(ir.Int(5)), ir.Point(ir.String("z"))}, nil))
}

func TestMalformedRPNPanics(t *testing.T) {
	underflow := &KeyCondition{rpn: []RPNElement{{Op: OpAnd}}}
	assert.Panics(t, func() { underflow.CheckInParallelogram(nil, nil) })
	assert.Panics(t, func() { underflow.AlwaysUnknownOrTrue() })
	assert.Panics(t, func() { _ = underflow.String() })

	leftover := &KeyCondition{rpn: []RPNElement{{Op: OpAlwaysTrue}, {Op: OpAlwaysFalse}}}
	assert.Panics(t, func() { leftover.CheckInParallelogram(nil, nil) })
	assert.Panics(t, func() { leftover.AlwaysUnknownOrTrue() })
}

func TestEvaluationIsIdempotentAndConcurrent(t *testing.T) {
	ke := newKey(t, q.Col("k"), q.Col("x"))
	kc := mustBuild(t, q.Fn("or",
		q.Fn("in", q.Col("k"), q.Tup(lit(ir.Int(3)), lit(ir.Int(7)))),
		q.Fn("and", q.Fn("greater", q.Col("x"), lit(ir.Int(10))), q.Fn("not", q.Fn("equals", q.Col("k"), lit(ir.Int(1))))),
	), ke, WithExactTupleRanges())

	type span struct{ left, right []ir.Value }
	spans := []span{
		{ints(0, 0), ints(2, 5)},
		{ints(3, 0), ints(3, 9)},
		{ints(1, 0), ints(1, 9)},
		{ints(8, 11), ints(20, 0)},
	}
	want := make([]ir.BoolMask, len(spans))
	for i, p := range spans {
		want[i] = kc.CheckInRange(2, p.left, p.right, nil)
		require.Equal(t, want[i], kc.CheckInRange(2, p.left, p.right, nil))
	}

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for iter := 0; iter < 200; iter++ {
				for i, p := range spans {
					if got := kc.CheckInRange(2, p.left, p.right, nil); got != want[i] {
						t.Errorf("span %d: got %v, want %v", i, got, want[i])
					}
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func strs(vs ...string) []ir.Value {
	out := make([]ir.Value, len(vs))
	for i, v := range vs {
		out[i] = ir.String(v)
	}
	return out
}

func TestLikeUnderNot(t *testing.T) {
	s := q.Col("s")
	ke := newKey(t, s)
	notLike := func(pattern string) *KeyCondition {
		return mustBuild(t, q.Fn("not", q.Fn("like", s, lit(ir.String(pattern)))), ke)
	}

	// 'abc5' does not match 'abc', so the negation holds for it.
	assert.True(t, notLike("abc").MayBeTrueInRange(1, strs("abc1"), strs("abc9"), nil))
	assert.False(t, notLike("abc").MayBeTrueInRange(1, strs("abc"), strs("abc"), nil))

	// 'axx' does not match 'a_c%'.
	assert.True(t, notLike("a_c%").MayBeTrueInRange(1, strs("axx"), strs("azz"), nil))
	assert.True(t, notLike("a%c").MayBeTrueInRange(1, strs("ab"), strs("ad"), nil))

	// A bare prefix pattern is exact.
	assert.False(t, notLike("ab%").MayBeTrueInRange(1, strs("ab1"), strs("ab9"), nil))
	starts := mustBuild(t, q.Fn("not", q.Fn("startsWith", s, lit(ir.String("ab")))), ke)
	assert.False(t, starts.MayBeTrueInRange(1, strs("ab1"), strs("ab9"), nil))
}

func TestLikeWithInnerWildcardStillPrunes(t *testing.T) {
	s := q.Col("s")
	kc := mustBuild(t, q.Fn("like", s, lit(ir.String("a_c%"))), newKey(t, s))

	assert.Equal(t, ir.MaskUnknown, kc.CheckInRange(1, strs("axx"), strs("azz"), nil))
	assert.False(t, kc.MayBeTrueInRange(1, strs("b"), strs("c"), nil))
	assert.False(t, kc.AlwaysUnknownOrTrue())
}

func TestWrappedConstantUnderNot(t *testing.T) {
	ke := newKey(t, q.Fn("toYYYYMM", q.Col("d")))
	jan := []ir.Value{ir.UInt(202001)}
	mid := lit(ir.String("2020-01-15"))

	for _, pred := range []q.Expr{
		q.Fn("greaterOrEquals", q.Col("d"), mid),
		q.Fn("equals", q.Col("d"), mid),
		q.Fn("less", q.Col("d"), mid),
	} {
		t.Run(q.ColumnName(pred), func(t *testing.T) {
			// 2020-01-03 and 2020-01-20 both sit in 202001.
			notKC := mustBuild(t, q.Fn("not", pred), ke)
			assert.True(t, notKC.MayBeTrueInRange(1, jan, jan, nil))
			assert.True(t, notKC.AlwaysUnknownOrTrue())

			kc := mustBuild(t, pred, ke)
			assert.True(t, kc.CheckInRange(1, jan, jan, nil).CanBeFalse)
			assert.False(t, kc.AlwaysUnknownOrTrue())
		})
	}

	// The implied month bound still excludes other months.
	kc := mustBuild(t, q.Fn("greaterOrEquals", q.Col("d"), mid), ke)
	dec := []ir.Value{ir.UInt(201912)}
	assert.False(t, kc.MayBeTrueInRange(1, dec, dec, nil))
}
