package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/keycond/internal/engine"
	"github.com/roach88/keycond/internal/harness"
	"github.com/roach88/keycond/internal/store"
)

// PruneOptions holds flags for the prune command.
type PruneOptions struct {
	*RootOptions
	Database string
	Query    QueryFlags
	Settings harness.SettingsSpec
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PruneOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Select the mark ranges a query reads from stored parts",
		Long: `Plan a query over the parts of a table in a part store.

Parts whose partition min/max ranges cannot satisfy the predicate are
pruned first; the primary index of every remaining part is then searched
for the mark ranges that may hold matching rows.

A query rejected by --force-primary-key, --force-index-by-date or
--max-marks-to-read exits with code 1.

Examples:
  keycond prune --db ./parts.db --table events --where "k >= 5 && k < 10"
  keycond prune --db ./parts.db --table events --where "d >= '2024-02-01'" --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	opts.Query.register(cmd)
	registerSettingsFlags(cmd, &opts.Settings)

	return cmd
}

func runPrune(ctx context.Context, opts *PruneOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	plan, err := planStored(ctx, opts.Database, &opts.Query, opts.Settings)
	if err != nil {
		return outputPlanFailure(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: plan, QueryID: plan.QueryID})
	}
	writePlan(formatter, plan)
	return nil
}

// storeError marks failures of the part store itself.
type storeError struct{ error }

func (e storeError) Unwrap() error { return e.error }

// queryError marks predicates that do not parse or compile.
type queryError struct{ error }

func (e queryError) Unwrap() error { return e.error }

// planStored reads a table and its parts from the store at dbPath and
// plans the query over them.
func planStored(ctx context.Context, dbPath string, q *QueryFlags, ss harness.SettingsSpec) (*engine.Plan, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, storeError{errors.Wrapf(err, "database %s", dbPath)}
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, storeError{err}
	}
	defer st.Close()

	name := q.Table
	if name == "" {
		names, err := st.ListTables(ctx)
		if err != nil {
			return nil, storeError{err}
		}
		if len(names) != 1 {
			return nil, storeError{errors.Newf("--table is required: store holds %d tables", len(names))}
		}
		name = names[0]
	}
	spec, err := st.ReadTable(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, engine.NewUnknownTableError(name)
	}
	if err != nil {
		return nil, storeError{err}
	}
	t, err := engine.NewTable(spec)
	if err != nil {
		return nil, storeError{err}
	}
	parts, err := st.ReadParts(ctx, t.Name(), t.Layout())
	if err != nil {
		return nil, storeError{err}
	}

	query, err := q.parse()
	if err != nil {
		return nil, queryError{err}
	}
	planner := engine.NewPlanner(
		engine.WithSettings(ss.Apply(engine.DefaultSettings())),
		engine.WithLogger(slog.Default()),
	)
	planner.Register(t)
	plan, err := planner.Plan(ctx, t.Name(), parts, query)
	if err != nil {
		var pe *engine.PlanError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, queryError{err}
	}
	return plan, nil
}

// outputPlanFailure maps a planStored error to output and an exit code.
func outputPlanFailure(formatter *OutputFormatter, err error) error {
	var se storeError
	if errors.As(err, &se) {
		return outputStoreError(formatter, se.error)
	}
	var qe queryError
	if errors.As(err, &qe) {
		return outputQueryError(formatter, qe.error)
	}
	return formatter.PlanError(err)
}

func writePlan(formatter *OutputFormatter, plan *engine.Plan) {
	w := formatter.Writer
	fmt.Fprintf(w, "query %s on %s\n", plan.QueryID, plan.Table)
	fmt.Fprintf(w, "  condition: %s\n", plan.Condition)
	if plan.MinMaxCondition != "" {
		fmt.Fprintf(w, "  minmax:    %s\n", plan.MinMaxCondition)
	}
	fmt.Fprintf(w, "  key columns used: %d, primary key used: %t\n", plan.KeyColumnsUsed, plan.PrimaryKeyUsed)
	fmt.Fprintf(w, "  parts: %d of %d selected (pruned by partition: %s; by key: %s)\n",
		len(plan.Parts), plan.TotalParts, listOrDash(plan.PrunedByPartition), listOrDash(plan.PrunedByKey))
	fmt.Fprintf(w, "  marks: %d of %d selected\n", plan.SelectedMarks, plan.TotalMarks)
	for _, pp := range plan.Parts {
		ranges := make([]string, len(pp.Ranges))
		for i, r := range pp.Ranges {
			ranges[i] = fmt.Sprintf("[%d, %d)", r.Begin, r.End)
		}
		fmt.Fprintf(w, "    %s: %s\n", pp.Name, strings.Join(ranges, " "))
	}
}

func listOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
