package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/keycond"
	"github.com/roach88/keycond/internal/queryir"
	"github.com/roach88/keycond/internal/querysql"
)

// tenMarks is an index whose mark i starts at key 10*i.
func tenMarks() [][]ir.Value {
	idx := make([][]ir.Value, 10)
	for i := range idx {
		idx[i] = []ir.Value{ir.Int(int64(10 * i))}
	}
	return idx
}

func searchFor(t *testing.T, pred string) rangeSearch {
	t.Helper()
	key, err := keycond.NewKeyExpression(
		[]queryir.Expr{queryir.Col("k")},
		map[string]ir.Type{"k": ir.TypeInt64},
	)
	require.NoError(t, err)
	kc, err := keycond.Build(querysql.MustParse(pred), []string{"k"}, key)
	require.NoError(t, err)
	return rangeSearch{
		cond:        kc,
		index:       tenMarks(),
		keyTypes:    key.Types(),
		usedKeySize: kc.MaxKeyColumn() + 1,
		granularity: DefaultCoarseIndexGranularity,
	}
}

func TestSelectMarkRanges(t *testing.T) {
	tests := []struct {
		name string
		pred string
		want []MarkRange
	}{
		{"inner range", "k >= 35 && k < 52", []MarkRange{{3, 6}}},
		{"point on a boundary", "k == 40", []MarkRange{{3, 5}}},
		{"last granule is open ended", "k == 95", []MarkRange{{9, 10}}},
		{"beyond the last mark", "k > 1000", []MarkRange{{9, 10}}},
		{"before the first mark", "k < 0", nil},
		{"two islands", "k < 15 || k > 75", []MarkRange{{0, 2}, {7, 10}}},
		{"no key condition", "s == 'x'", []MarkRange{{0, 10}}},
		{"constant false", "1 == 2", nil},
		{"negation", "!(k >= 10)", []MarkRange{{0, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := searchFor(t, tt.pred).selectMarkRanges()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectMarkRangesMergesSmallGaps(t *testing.T) {
	s := searchFor(t, "k < 15 || k > 75")

	s.minGap = 4
	got, _ := s.selectMarkRanges()
	assert.Equal(t, []MarkRange{{0, 2}, {7, 10}}, got, "gap of 5 marks stays split")

	s.minGap = 5
	got, _ = s.selectMarkRanges()
	assert.Equal(t, []MarkRange{{0, 10}}, got)
}

func TestSelectMarkRangesGranularityDoesNotChangeResult(t *testing.T) {
	for _, g := range []int{2, 3, 8, 100} {
		s := searchFor(t, "k >= 35 && k < 52 || k == 81")
		s.granularity = g
		got, _ := s.selectMarkRanges()
		assert.Equal(t, []MarkRange{{3, 6}, {8, 9}}, got, "granularity %d", g)
	}
}

func TestSelectMarkRangesTrace(t *testing.T) {
	s := searchFor(t, "k == 95")
	s.trace = true

	got, steps := s.selectMarkRanges()
	require.Equal(t, []MarkRange{{9, 10}}, got)
	require.NotEmpty(t, steps)

	assert.Equal(t, MarkRange{0, 10}, steps[0].Range)
	assert.Equal(t, DecisionSplit, steps[0].Decision)

	last := steps[len(steps)-1]
	assert.Equal(t, MarkRange{9, 10}, last.Range)
	assert.Equal(t, DecisionSelect, last.Decision)

	for _, st := range steps {
		if st.Decision == DecisionSkip {
			assert.False(t, st.Mask.CanBeTrue, "skipped %v", st.Range)
		}
	}
}

func TestSelectMarkRangesNoTraceByDefault(t *testing.T) {
	_, steps := searchFor(t, "k == 95").selectMarkRanges()
	assert.Nil(t, steps)
}

func TestSelectMarkRangesEmptyIndex(t *testing.T) {
	s := searchFor(t, "k == 1")
	s.index = nil
	got, steps := s.selectMarkRanges()
	assert.Nil(t, got)
	assert.Nil(t, steps)
}

func TestMarkRangeMarks(t *testing.T) {
	assert.Equal(t, 3, MarkRange{Begin: 4, End: 7}.Marks())
}
