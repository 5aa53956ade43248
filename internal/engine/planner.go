package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/keycond"
	"github.com/roach88/keycond/internal/queryir"
)

// Planner selects mark ranges for queries over registered tables.
//
// Thread-safety model:
//   - Register(), Plan(), Compile(): safe from any goroutine
//   - compiled conditions are immutable and shared by all goroutines
type Planner struct {
	settings   Settings
	logger     *slog.Logger
	registerer prometheus.Registerer
	ids        QueryIDGenerator
	cache      *ConditionCache
	metrics    *plannerMetrics

	mu     sync.RWMutex
	tables map[string]*Table
}

// NewPlanner creates a Planner. Options configure settings, logging,
// metrics and query IDs.
func NewPlanner(opts ...Option) *Planner {
	p := &Planner{
		settings: DefaultSettings(),
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
		tables:   make(map[string]*Table),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.settings = p.settings.normalized()
	if p.cache == nil {
		p.cache = NewConditionCache()
	}
	p.metrics = newPlannerMetrics(p.registerer)
	return p
}

// Settings returns the effective settings.
func (p *Planner) Settings() Settings {
	return p.settings
}

// Cache returns the compiled condition cache.
func (p *Planner) Cache() *ConditionCache {
	return p.cache
}

// Register makes a table known to Plan. Registering a table again under
// the same name replaces it.
func (p *Planner) Register(t *Table) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tables[t.Name()] = t
}

// Table returns a registered table.
func (p *Planner) Table(name string) (*Table, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.tables[name]
	return t, ok
}

// Conditions are the compiled forms of one query over one table.
type Conditions struct {
	Primary *keycond.KeyCondition
	MinMax  *keycond.KeyCondition // nil for unpartitioned tables
}

// Compile compiles (or fetches from the cache) the primary key and min/max
// conditions of q.
func (p *Planner) Compile(t *Table, q Query) (*Conditions, error) {
	tableFP, err := ir.TableFingerprint(t.Spec)
	if err != nil {
		return nil, errors.Wrapf(err, "table %s", t.Name())
	}
	pred := queryir.Conjunction(q.Where, q.Prewhere)

	primary, err := p.compileKey(tableFP, pred, t.PrimaryKey)
	if err != nil {
		return nil, errors.Wrapf(err, "primary key of %s", t.Name())
	}
	conds := &Conditions{Primary: primary}
	if t.Partitioned() {
		conds.MinMax, err = p.compileKey(tableFP, pred, t.MinMaxKey)
		if err != nil {
			return nil, errors.Wrapf(err, "partition key of %s", t.Name())
		}
	}
	return conds, nil
}

func (p *Planner) compileKey(tableFP string, pred queryir.Expr, key keycond.KeyExpression) (*keycond.KeyCondition, error) {
	names := key.Names()
	cacheKey, err := conditionKey(tableFP, names, pred, p.settings.ExactTupleRanges)
	if err != nil {
		return nil, err
	}
	kc, hit, err := p.cache.GetOrBuild(cacheKey, func() (*keycond.KeyCondition, error) {
		opts := []keycond.Option{keycond.WithSetCache(p.cache.Sets())}
		if p.settings.ExactTupleRanges {
			opts = append(opts, keycond.WithExactTupleRanges())
		}
		return keycond.Build(pred, names, key, opts...)
	})
	if err != nil {
		return nil, err
	}
	p.metrics.cacheLookups.WithLabelValues(lo.Ternary(hit, "hit", "miss")).Inc()
	return kc, nil
}

// Plan looks up a registered table and plans q over parts.
func (p *Planner) Plan(ctx context.Context, table string, parts []ir.Part, q Query) (*Plan, error) {
	t, ok := p.Table(table)
	if !ok {
		return nil, NewUnknownTableError(table)
	}
	return p.PlanTable(ctx, t, parts, q)
}

// partResult is what one goroutine learns about one part.
type partResult struct {
	plan          PartPlan
	prunedByIndex string // reasonPartition, reasonKey or ""
}

// PlanTable plans q over parts of t. Parts are examined concurrently, at
// most MaxThreads at a time; the plan lists them in input order.
func (p *Planner) PlanTable(ctx context.Context, t *Table, parts []ir.Part, q Query) (*Plan, error) {
	start := time.Now()
	queryID := p.ids.Generate()
	logger := p.logger.With("query_id", queryID, "table", t.Name())

	plan, err := p.planTable(ctx, logger, queryID, t, parts, q)
	status := "ok"
	if err != nil {
		status = "error"
		var pe *PlanError
		if errors.As(err, &pe) {
			pe.QueryID = queryID
			status = string(pe.Code)
		}
		logger.Warn("plan failed", "error", err)
	}
	p.metrics.plans.WithLabelValues(t.Name(), status).Inc()
	p.metrics.planLatency.WithLabelValues(t.Name()).Observe(time.Since(start).Seconds())
	return plan, err
}

func (p *Planner) planTable(ctx context.Context, logger *slog.Logger, queryID string, t *Table, parts []ir.Part, q Query) (*Plan, error) {
	conds, err := p.Compile(t, q)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		QueryID:           queryID,
		Table:             t.Name(),
		Condition:         conds.Primary.String(),
		KeyColumnsUsed:    conds.Primary.MaxKeyColumn() + 1,
		PrimaryKeyUsed:    !conds.Primary.AlwaysUnknownOrTrue(),
		Parts:             []PartPlan{},
		PrunedByPartition: []string{},
		PrunedByKey:       []string{},
		TotalParts:        len(parts),
	}
	if conds.MinMax != nil {
		plan.MinMaxCondition = conds.MinMax.String()
	}

	if p.settings.ForcePrimaryKey && !plan.PrimaryKeyUsed {
		return nil, NewIndexNotUsedError(t.Name(), "primary key", plan.Condition)
	}
	if p.settings.ForceIndexByDate && (conds.MinMax == nil || conds.MinMax.AlwaysUnknownOrTrue()) {
		return nil, NewIndexNotUsedError(t.Name(), "partition key", plan.MinMaxCondition)
	}

	logger.Debug("conditions compiled",
		"condition", plan.Condition,
		"minmax_condition", plan.MinMaxCondition,
		"key_columns_used", plan.KeyColumnsUsed)

	budget := NewMarkBudget(t.Name(), p.settings.MaxMarksToRead)
	results := make([]partResult, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.settings.MaxThreads)
	for i := range parts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := p.planPart(t, conds, parts[i])
			results[i] = res
			if res.prunedByIndex != "" {
				return nil
			}
			return budget.Spend(int64(res.plan.Marks))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, res := range results {
		plan.TotalMarks += int64(parts[i].MarksCount())
		switch res.prunedByIndex {
		case reasonPartition:
			plan.PrunedByPartition = append(plan.PrunedByPartition, res.plan.Name)
		case reasonKey:
			plan.PrunedByKey = append(plan.PrunedByKey, res.plan.Name)
		default:
			plan.Parts = append(plan.Parts, res.plan)
		}
	}
	plan.SelectedMarks = int64(lo.SumBy(plan.Parts, func(pp PartPlan) int { return pp.Marks }))

	p.metrics.partsSelected.WithLabelValues(t.Name()).Add(float64(len(plan.Parts)))
	p.metrics.partsPruned.WithLabelValues(t.Name(), reasonPartition).Add(float64(len(plan.PrunedByPartition)))
	p.metrics.partsPruned.WithLabelValues(t.Name(), reasonKey).Add(float64(len(plan.PrunedByKey)))
	p.metrics.marksTotal.WithLabelValues(t.Name()).Add(float64(plan.TotalMarks))
	p.metrics.marksSelected.WithLabelValues(t.Name()).Add(float64(plan.SelectedMarks))

	logger.Info("plan complete",
		"parts", len(plan.Parts),
		"pruned_by_partition", len(plan.PrunedByPartition),
		"pruned_by_key", len(plan.PrunedByKey),
		"marks", plan.SelectedMarks,
		"total_marks", plan.TotalMarks)
	return plan, nil
}

// planPart decides one part. It only reads shared state.
func (p *Planner) planPart(t *Table, conds *Conditions, part ir.Part) partResult {
	pp := PartPlan{Name: part.Name, PartitionID: part.PartitionID, Ranges: []MarkRange{}}

	if conds.MinMax != nil {
		box := minMaxBox(t.MinMaxKey, part)
		if !conds.MinMax.MayBeTrueInParallelogram(box, t.MinMaxKey.Types()) {
			p.logger.Debug("part pruned by partition", "part", part.Name)
			return partResult{plan: pp, prunedByIndex: reasonPartition}
		}
	}

	search := rangeSearch{
		cond:        conds.Primary,
		index:       part.Index,
		keyTypes:    t.PrimaryKey.Types(),
		usedKeySize: conds.Primary.MaxKeyColumn() + 1,
		granularity: p.settings.CoarseIndexGranularity,
		minGap:      p.settings.MinMarksForSeek,
		trace:       p.settings.Trace,
	}
	ranges, steps := search.selectMarkRanges()
	if ranges != nil {
		pp.Ranges = ranges
	}
	pp.Trace = steps
	pp.Marks = lo.SumBy(pp.Ranges, func(r MarkRange) int { return r.Marks() })

	if pp.Marks == 0 {
		p.logger.Debug("part pruned by primary key", "part", part.Name)
		return partResult{plan: pp, prunedByIndex: reasonKey}
	}
	p.logger.Debug("part planned", "part", part.Name, "ranges", len(pp.Ranges), "marks", pp.Marks)
	return partResult{plan: pp}
}

// minMaxBox turns a part's min/max ranges into one closed interval per
// min/max key column. Columns the part has no range for stay unbounded.
func minMaxBox(key keycond.KeyExpression, part ir.Part) []ir.Interval {
	box := make([]ir.Interval, len(key.Columns))
	for i, col := range key.Columns {
		box[i] = ir.Whole()
		mm, ok := lo.Find(part.MinMax, func(m ir.MinMaxColumn) bool { return m.Column == col.Name })
		if ok {
			box[i] = ir.Closed(mm.Min, mm.Max)
		}
	}
	return box
}
