package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"

	"github.com/roach88/keycond/internal/compiler"
	"github.com/roach88/keycond/internal/engine"
	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/queryir"
	"github.com/roach88/keycond/internal/querysql"
	"github.com/roach88/keycond/internal/store"
	"github.com/roach88/keycond/internal/testutil"
)

// Harness runs one scenario against a fresh store and planner.
type Harness struct {
	store   *store.Store
	planner *engine.Planner
	table   *engine.Table
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database, so parts pass through
// the same persistence path the CLI uses. Query IDs are fixed per
// scenario for reproducible golden files.
//
// Execution flow:
// 1. Compile the schema and pick the scenario's table
// 2. Build every part and write it to the store
// 3. Read the parts back and plan each query
// 4. Check each plan against the query's expectations
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	specs, err := compiler.CompileFile(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	spec, ok := lo.Find(specs, func(s *ir.TableSpec) bool { return s.Name == scenario.Table })
	if !ok {
		return nil, fmt.Errorf("table %q not declared in %s", scenario.Table, scenario.Schema)
	}
	tbl, err := engine.NewTable(*spec)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ids := make([]string, len(scenario.Queries))
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%d", scenario.Name, i+1)
	}
	settings := engine.DefaultSettings()
	if scenario.Settings != nil {
		settings = scenario.Settings.Apply(settings)
	}

	h := &Harness{
		store: st,
		planner: engine.NewPlanner(
			engine.WithSettings(settings),
			engine.WithLogger(logger),
			engine.WithRegisterer(prometheus.NewRegistry()),
			engine.WithQueryIDGenerator(engine.NewFixedGenerator(ids...)),
		),
		table:  tbl,
		logger: logger,
	}
	h.planner.Register(tbl)

	if err := h.loadParts(ctx, scenario.Parts); err != nil {
		return nil, fmt.Errorf("failed to load parts: %w", err)
	}
	parts, err := st.ReadParts(ctx, tbl.Name(), tbl.Layout())
	if err != nil {
		return nil, fmt.Errorf("failed to read parts: %w", err)
	}

	subqueries, err := BuildSubqueries(scenario.Subqueries)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for _, q := range scenario.Queries {
		qr, err := h.runQuery(ctx, q, parts, subqueries)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Name, err)
		}
		result.Queries = append(result.Queries, qr)
		for _, e := range CheckExpectation(q, qr) {
			result.AddError(e.Error())
		}
	}
	return result, nil
}

// Apply overrides the fields of s that the scenario sets.
func (ss *SettingsSpec) Apply(s engine.Settings) engine.Settings {
	if ss.MaxThreads > 0 {
		s.MaxThreads = ss.MaxThreads
	}
	if ss.CoarseIndexGranularity > 0 {
		s.CoarseIndexGranularity = ss.CoarseIndexGranularity
	}
	if ss.MinMarksForSeek > 0 {
		s.MinMarksForSeek = ss.MinMarksForSeek
	}
	if ss.MaxMarksToRead > 0 {
		s.MaxMarksToRead = ss.MaxMarksToRead
	}
	s.ForcePrimaryKey = s.ForcePrimaryKey || ss.ForcePrimaryKey
	s.ForceIndexByDate = s.ForceIndexByDate || ss.ForceIndexByDate
	s.ExactTupleRanges = s.ExactTupleRanges || ss.ExactTupleRanges
	s.Trace = s.Trace || ss.Trace
	return s
}

// loadParts builds every part and writes it through the store.
func (h *Harness) loadParts(ctx context.Context, specs []PartSpec) error {
	if err := h.store.WriteTable(ctx, h.table.Spec); err != nil {
		return err
	}
	for _, ps := range specs {
		rows, err := BuildRows(h.table.Spec, ps)
		if err != nil {
			return err
		}
		part, err := engine.BuildPart(h.table, ps.Name, rows)
		if err != nil {
			return err
		}
		if err := h.store.WritePart(ctx, h.table.Name(), part); err != nil {
			return err
		}
		h.logger.Debug("part loaded", "part", part.Name, "rows", part.Rows, "marks", part.MarksCount())
	}
	return nil
}

func (h *Harness) runQuery(ctx context.Context, q QuerySpec, parts []ir.Part, subqueries []queryir.Subquery) (QueryResult, error) {
	opts := lo.Map(subqueries, func(sq queryir.Subquery, _ int) querysql.Option { return querysql.WithSubquery(sq) })
	where, err := querysql.Parse(q.Where, opts...)
	if err != nil {
		return QueryResult{}, fmt.Errorf("where: %w", err)
	}
	prewhere, err := querysql.Parse(q.Prewhere, opts...)
	if err != nil {
		return QueryResult{}, fmt.Errorf("prewhere: %w", err)
	}

	qr := QueryResult{Name: q.Name}
	plan, err := h.planner.PlanTable(ctx, h.table, parts, engine.Query{Where: where, Prewhere: prewhere})
	if err != nil {
		qr.Error = err.Error()
		qr.ErrorCode = "ERROR"
		var pe *engine.PlanError
		if errors.As(err, &pe) {
			qr.ErrorCode = string(pe.Code)
		}
		return qr, nil
	}
	qr.Plan = plan
	return qr, nil
}

// BuildRows turns a part description into typed rows: literal rows first,
// then generated ones.
func BuildRows(spec ir.TableSpec, ps PartSpec) ([]map[string]ir.Value, error) {
	raw := append([]map[string]any{}, ps.Rows...)
	if ps.Generate != nil {
		gens, err := generators(spec, ps.Generate.Columns)
		if err != nil {
			return nil, fmt.Errorf("part %s: %w", ps.Name, err)
		}
		raw = append(raw, testutil.Rows(ps.Generate.Count, gens)...)
	}

	rows := make([]map[string]ir.Value, len(raw))
	for i, r := range raw {
		row := make(map[string]ir.Value, len(r))
		for name, v := range r {
			t, ok := spec.ColumnType(name)
			if !ok {
				return nil, fmt.Errorf("part %s row %d: unknown column %s", ps.Name, i, name)
			}
			if n, ok := v.(int64); ok {
				v = ir.Int(n)
			}
			val, err := ir.FromGo(v, t)
			if err != nil {
				return nil, fmt.Errorf("part %s row %d column %s: %w", ps.Name, i, name, err)
			}
			row[name] = val
		}
		rows[i] = row
	}
	return rows, nil
}

func generators(spec ir.TableSpec, cols map[string]ColumnGenSpec) (map[string]testutil.Generator, error) {
	out := make(map[string]testutil.Generator, len(cols))
	for name, c := range cols {
		t, ok := spec.ColumnType(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %s", name)
		}
		switch {
		case c.Value != nil:
			out[name] = testutil.Const{Value: c.Value}
		case len(c.Values) > 0:
			out[name] = testutil.Cycle{Values: c.Values}
		default:
			from, err := sequenceStart(c.From, t)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", name, err)
			}
			out[name] = testutil.Sequence{From: from, Step: c.Step, Every: c.Every}
		}
	}
	return out, nil
}

// sequenceStart converts a sequence start to the integer the sequence
// counts in: the value itself, days for Date, seconds for DateTime.
func sequenceStart(raw any, t ir.Type) (int64, error) {
	v, err := ir.FromGo(raw, t)
	if err != nil {
		return 0, err
	}
	switch val := v.(type) {
	case ir.Int:
		return int64(val), nil
	case ir.UInt:
		return int64(val), nil
	case ir.Date:
		return int64(val), nil
	case ir.DateTime:
		return int64(val), nil
	}
	return 0, fmt.Errorf("sequence needs an integer or temporal column, got %s", t)
}

// BuildSubqueries converts named subquery results, sorted by name.
func BuildSubqueries(specs map[string]SubquerySpec) ([]queryir.Subquery, error) {
	names := lo.Keys(specs)
	sort.Strings(names)
	out := make([]queryir.Subquery, 0, len(names))
	for _, name := range names {
		sq := specs[name]
		types := make([]ir.Type, len(sq.Types))
		for i, tn := range sq.Types {
			t, err := ir.ParseType(tn)
			if err != nil {
				return nil, fmt.Errorf("subquery %s: %w", name, err)
			}
			types[i] = t
		}
		rows := make([][]ir.Value, len(sq.Rows))
		for i, r := range sq.Rows {
			tuple, err := ir.TupleFromGo(r, types)
			if err != nil {
				return nil, fmt.Errorf("subquery %s row %d: %w", name, i, err)
			}
			rows[i] = tuple
		}
		out = append(out, queryir.Subquery{Name: name, Types: types, Rows: rows})
	}
	return out, nil
}
