package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/keycond/internal/engine"
	"github.com/roach88/keycond/internal/harness"
	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/querysql"
)

// QueryFlags select a table and the predicates of a query.
type QueryFlags struct {
	Table      string
	Where      string
	Prewhere   string
	Subqueries string
}

func (q *QueryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.Table, "table", "", "table name (optional when only one table is declared)")
	cmd.Flags().StringVar(&q.Where, "where", "", "WHERE predicate")
	cmd.Flags().StringVar(&q.Prewhere, "prewhere", "", "PREWHERE predicate")
	cmd.Flags().StringVar(&q.Subqueries, "subqueries", "", "YAML file of named subquery results usable in IN")
}

// selectTable picks the table the query runs against.
func (q *QueryFlags) selectTable(loadResult *LoadResult) (*ir.TableSpec, error) {
	if q.Table == "" {
		if len(loadResult.Tables) != 1 {
			return nil, errors.Newf("--table is required: schema declares %d tables", len(loadResult.Tables))
		}
		return loadResult.Tables[0], nil
	}
	spec, ok := loadResult.Table(q.Table)
	if !ok {
		return nil, errors.Newf("table %q not declared", q.Table)
	}
	return spec, nil
}

// parse turns the predicate flags into a query.
func (q *QueryFlags) parse() (engine.Query, error) {
	var opts []querysql.Option
	if q.Subqueries != "" {
		data, err := os.ReadFile(q.Subqueries)
		if err != nil {
			return engine.Query{}, errors.Wrap(err, "read subqueries")
		}
		var specs map[string]harness.SubquerySpec
		if err := yaml.Unmarshal(data, &specs); err != nil {
			return engine.Query{}, errors.Wrap(err, "parse subqueries")
		}
		subqueries, err := harness.BuildSubqueries(specs)
		if err != nil {
			return engine.Query{}, err
		}
		for _, sq := range subqueries {
			opts = append(opts, querysql.WithSubquery(sq))
		}
	}

	where, err := querysql.Parse(q.Where, opts...)
	if err != nil {
		return engine.Query{}, fmt.Errorf("where: %w", err)
	}
	prewhere, err := querysql.Parse(q.Prewhere, opts...)
	if err != nil {
		return engine.Query{}, fmt.Errorf("prewhere: %w", err)
	}
	return engine.Query{Where: where, Prewhere: prewhere}, nil
}

// registerSettingsFlags binds the planner settings to flags.
func registerSettingsFlags(cmd *cobra.Command, s *harness.SettingsSpec) {
	f := cmd.Flags()
	f.IntVar(&s.MaxThreads, "max-threads", 0, "parts planned concurrently (0 = GOMAXPROCS)")
	f.BoolVar(&s.ForcePrimaryKey, "force-primary-key", false, "fail when the primary key cannot narrow the scan")
	f.BoolVar(&s.ForceIndexByDate, "force-index-by-date", false, "fail when the partition key cannot narrow the scan")
	f.Int64Var(&s.MaxMarksToRead, "max-marks-to-read", 0, "fail when more marks are selected (0 = no limit)")
	f.IntVar(&s.CoarseIndexGranularity, "coarse-index-granularity", 0,
		fmt.Sprintf("split factor of the range search (default %d)", engine.DefaultCoarseIndexGranularity))
	f.IntVar(&s.MinMarksForSeek, "min-marks-for-seek", 0, "merge selected ranges separated by at most this many marks")
	f.BoolVar(&s.ExactTupleRanges, "exact", false, "evaluate key ranges with the exact tuple decomposition")
}

// compileConditions compiles the query against one table without any
// stored parts.
func compileConditions(spec *ir.TableSpec, q engine.Query, s engine.Settings) (*engine.Table, *engine.Conditions, error) {
	t, err := engine.NewTable(*spec)
	if err != nil {
		return nil, nil, err
	}
	planner := engine.NewPlanner(engine.WithSettings(s), engine.WithLogger(slog.Default()))
	conds, err := planner.Compile(t, q)
	if err != nil {
		return nil, nil, err
	}
	return t, conds, nil
}

// tableNames lists the table names of a load result.
func tableNames(loadResult *LoadResult) []string {
	return lo.Map(loadResult.Tables, func(t *ir.TableSpec, _ int) string { return t.Name })
}
