package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/queryir"
	"github.com/roach88/keycond/internal/querysql"
)

// quarter returns three monthly parts of 100 rows each; k runs 0..99 in
// January, 100..199 in February and 200..299 in March.
func quarter(t *testing.T, tbl *Table) []ir.Part {
	t.Helper()
	return []ir.Part{
		monthPart(t, tbl, "202401_1", "2024-01-15", 0, 100),
		monthPart(t, tbl, "202402_1", "2024-02-15", 100, 100),
		monthPart(t, tbl, "202403_1", "2024-03-15", 200, 100),
	}
}

func newTestPlanner(t *testing.T, opts ...Option) (*Planner, *Table) {
	t.Helper()
	tbl := mustTable(t, eventsSpec())
	ids := make([]string, 16)
	for i := range ids {
		ids[i] = fmt.Sprintf("q-%d", i+1)
	}
	base := []Option{WithLogger(discardLogger()), WithQueryIDGenerator(NewFixedGenerator(ids...))}
	p := NewPlanner(append(base, opts...)...)
	p.Register(tbl)
	return p, tbl
}

func TestPlanPrunesByPartitionAndKey(t *testing.T) {
	p, tbl := newTestPlanner(t)

	plan, err := p.Plan(context.Background(), "events", quarter(t, tbl), where(t, "d >= '2024-02-01' && k < 150"))
	require.NoError(t, err)

	assert.Equal(t, "q-1", plan.QueryID)
	assert.Equal(t, "events", plan.Table)
	assert.True(t, plan.PrimaryKeyUsed)
	assert.Equal(t, 1, plan.KeyColumnsUsed)
	assert.Equal(t, []string{"202401_1"}, plan.PrunedByPartition)
	assert.Equal(t, []string{"202403_1"}, plan.PrunedByKey)
	require.Len(t, plan.Parts, 1)
	assert.Equal(t, PartPlan{
		Name:        "202402_1",
		PartitionID: "202402",
		Ranges:      []MarkRange{{0, 5}},
		Marks:       5,
	}, plan.Parts[0])
	assert.Equal(t, 3, plan.TotalParts)
	assert.Equal(t, int64(30), plan.TotalMarks)
	assert.Equal(t, int64(5), plan.SelectedMarks)
	assert.Equal(t, []string{"202402_1"}, plan.SelectedParts())
	assert.NotEmpty(t, plan.Condition)
	assert.NotEmpty(t, plan.MinMaxCondition)
}

func TestPlanWithoutPredicateReadsEverything(t *testing.T) {
	p, tbl := newTestPlanner(t)

	plan, err := p.Plan(context.Background(), "events", quarter(t, tbl), Query{})
	require.NoError(t, err)

	assert.False(t, plan.PrimaryKeyUsed)
	assert.Len(t, plan.Parts, 3)
	assert.Empty(t, plan.PrunedByPartition)
	assert.Empty(t, plan.PrunedByKey)
	assert.Equal(t, plan.TotalMarks, plan.SelectedMarks)
}

func TestPlanPrewhereIsConjoined(t *testing.T) {
	p, tbl := newTestPlanner(t)

	q := where(t, "k < 150")
	q.Prewhere = querysql.MustParse("d >= '2024-02-01'")
	plan, err := p.Plan(context.Background(), "events", quarter(t, tbl), q)
	require.NoError(t, err)

	assert.Equal(t, []string{"202402_1"}, plan.SelectedParts())
	assert.Equal(t, []string{"202401_1"}, plan.PrunedByPartition)
}

func TestPlanIsIndependentOfThreads(t *testing.T) {
	queries := []string{
		"k >= 42 && k <= 242",
		"k == 7 || k == 155 || k == 299",
		"toYYYYMM(d) == 202402 && s == 'x'",
		"!(k < 250)",
	}
	for _, text := range queries {
		t.Run(text, func(t *testing.T) {
			seq, tbl := newTestPlanner(t, WithMaxThreads(1))
			par, _ := newTestPlanner(t, WithMaxThreads(8))
			parts := quarter(t, tbl)

			want, err := seq.Plan(context.Background(), "events", parts, where(t, text))
			require.NoError(t, err)
			got, err := par.Plan(context.Background(), "events", parts, where(t, text))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestPlanInSubquery(t *testing.T) {
	p, tbl := newTestPlanner(t)
	ids := queryir.Subquery{
		Name:  "ids",
		Types: []ir.Type{ir.TypeInt64},
		Rows:  [][]ir.Value{{ir.Int(105)}, {ir.Int(250)}},
	}
	e, err := querysql.Parse(`isIn(k, subquery("ids"))`, querysql.WithSubquery(ids))
	require.NoError(t, err)

	plan, err := p.Plan(context.Background(), "events", quarter(t, tbl), Query{Where: e})
	require.NoError(t, err)

	march, ok := plan.Part("202403_1")
	require.True(t, ok)
	assert.Equal(t, []MarkRange{{4, 6}}, march.Ranges)

	feb, ok := plan.Part("202402_1")
	require.True(t, ok)
	assert.Contains(t, feb.Ranges, MarkRange{0, 1})
}

func TestPlanForcePrimaryKey(t *testing.T) {
	p, tbl := newTestPlanner(t, WithForcePrimaryKey(true))

	_, err := p.Plan(context.Background(), "events", quarter(t, tbl), where(t, "d >= '2024-02-01'"))
	require.Error(t, err)
	assert.True(t, IsIndexNotUsed(err))

	var pe *PlanError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "q-1", pe.QueryID)
	assert.Equal(t, "primary key", pe.Details["index"])

	_, err = p.Plan(context.Background(), "events", quarter(t, tbl), where(t, "k == 3"))
	assert.NoError(t, err)
}

func TestPlanForceIndexByDate(t *testing.T) {
	p, tbl := newTestPlanner(t, WithForceIndexByDate(true))

	_, err := p.Plan(context.Background(), "events", quarter(t, tbl), where(t, "k < 5"))
	assert.True(t, IsIndexNotUsed(err), "got %v", err)

	_, err = p.Plan(context.Background(), "events", quarter(t, tbl), where(t, "d == '2024-03-15'"))
	assert.NoError(t, err)

	spec := eventsSpec()
	spec.Name = "flat"
	spec.PartitionBy = ""
	p.Register(mustTable(t, spec))
	_, err = p.Plan(context.Background(), "flat", nil, where(t, "d == '2024-03-15'"))
	assert.True(t, IsIndexNotUsed(err), "unpartitioned table has no date index")
}

func TestPlanMaxMarksToRead(t *testing.T) {
	q := "d >= '2024-02-01' && k < 150"

	p, tbl := newTestPlanner(t, WithMaxMarksToRead(4))
	_, err := p.Plan(context.Background(), "events", quarter(t, tbl), where(t, q))
	require.Error(t, err)
	assert.True(t, IsTooManyMarks(err))

	p, tbl = newTestPlanner(t, WithMaxMarksToRead(5))
	plan, err := p.Plan(context.Background(), "events", quarter(t, tbl), where(t, q))
	require.NoError(t, err)
	assert.Equal(t, int64(5), plan.SelectedMarks)
}

func TestPlanUnknownTable(t *testing.T) {
	p, _ := newTestPlanner(t)

	_, err := p.Plan(context.Background(), "nope", nil, Query{})
	assert.True(t, IsUnknownTable(err))
}

func TestPlanCanceledContext(t *testing.T) {
	p, tbl := newTestPlanner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Plan(ctx, "events", quarter(t, tbl), where(t, "k < 5"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlanTrace(t *testing.T) {
	p, tbl := newTestPlanner(t, WithTrace(true))

	plan, err := p.Plan(context.Background(), "events", quarter(t, tbl), where(t, "k == 155"))
	require.NoError(t, err)

	feb, ok := plan.Part("202402_1")
	require.True(t, ok)
	require.NotEmpty(t, feb.Trace)
	assert.Equal(t, DecisionSplit, feb.Trace[0].Decision)
}

func TestPlanReusesCompiledConditions(t *testing.T) {
	p, tbl := newTestPlanner(t)
	parts := quarter(t, tbl)

	for i := 0; i < 3; i++ {
		_, err := p.Plan(context.Background(), "events", parts, where(t, "k < 150"))
		require.NoError(t, err)
	}

	assert.Equal(t, 2, p.Cache().Len(), "primary and min/max condition")
	hits, misses := p.Cache().Stats()
	assert.Equal(t, int64(4), hits)
	assert.Equal(t, int64(2), misses)
}

func TestPlanCacheSeparatesSubqueryContents(t *testing.T) {
	p, tbl := newTestPlanner(t)
	parts := quarter(t, tbl)

	plan := func(v int64) *Plan {
		sq := queryir.Subquery{Name: "ids", Types: []ir.Type{ir.TypeInt64}, Rows: [][]ir.Value{{ir.Int(v)}}}
		e, err := querysql.Parse(`isIn(k, subquery("ids"))`, querysql.WithSubquery(sq))
		require.NoError(t, err)
		res, err := p.Plan(context.Background(), "events", parts, Query{Where: e})
		require.NoError(t, err)
		return res
	}

	first := plan(5)
	second := plan(255)
	assert.NotEqual(t, first.Parts, second.Parts)
}

func TestPlanMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, tbl := newTestPlanner(t, WithRegisterer(reg))
	// A second planner on the same registry shares the collectors.
	other, _ := newTestPlanner(t, WithRegisterer(reg))

	_, err := p.Plan(context.Background(), "events", quarter(t, tbl), where(t, "d >= '2024-02-01' && k < 150"))
	require.NoError(t, err)
	_, err = other.Plan(context.Background(), "events", quarter(t, tbl), where(t, "k < 5"))
	require.NoError(t, err)

	assert.Equal(t, 2.0, promtest.ToFloat64(p.metrics.plans.WithLabelValues("events", "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(p.metrics.partsPruned.WithLabelValues("events", reasonPartition)))
	assert.Equal(t, 3.0, promtest.ToFloat64(p.metrics.partsPruned.WithLabelValues("events", reasonKey)))
	assert.Equal(t, 6.0, promtest.ToFloat64(p.metrics.marksSelected.WithLabelValues("events")))
}

func TestNewPlannerNormalizesSettings(t *testing.T) {
	p := NewPlanner(WithMaxThreads(0), WithCoarseIndexGranularity(1), WithMinMarksForSeek(-3))
	s := p.Settings()

	assert.Equal(t, 1, s.MaxThreads)
	assert.Equal(t, 2, s.CoarseIndexGranularity)
	assert.Equal(t, 0, s.MinMarksForSeek)
}

func TestWithSettings(t *testing.T) {
	s := DefaultSettings()
	s.ForcePrimaryKey = true
	s.MaxMarksToRead = 10

	p := NewPlanner(WithSettings(s))
	assert.True(t, p.Settings().ForcePrimaryKey)
	assert.Equal(t, int64(10), p.Settings().MaxMarksToRead)
}
