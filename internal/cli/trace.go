package cli

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/roach88/keycond/internal/engine"
	"github.com/roach88/keycond/internal/harness"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Query    QueryFlags
	Settings harness.SettingsSpec
	Parts    []string // optional - filter to specific parts
}

// TraceResult holds the range decisions of every selected part.
type TraceResult struct {
	QueryID string      `json:"query_id"`
	Table   string      `json:"table"`
	Parts   []PartTrace `json:"parts"`
	Stats   TraceStats  `json:"stats"`
}

// PartTrace is the decision log of one part.
type PartTrace struct {
	Name   string             `json:"name"`
	Marks  int                `json:"marks"`
	Steps  []engine.TraceStep `json:"steps"`
	Ranges []engine.MarkRange `json:"ranges"`
}

// TraceStats counts decisions over the traced parts.
type TraceStats struct {
	Checked  int `json:"checked"`
	Skipped  int `json:"skipped"`
	Selected int `json:"selected"`
	Split    int `json:"split"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show how the range search narrowed each part",
		Long: `Plan a query like prune and print every range the primary index
search examined: the mark range, what the condition may evaluate to over
it, and whether it was skipped, selected or split.

Parts pruned before the search (by partition or by key) have no steps.

Examples:
  keycond trace --db ./parts.db --table events --where "k == 7"
  keycond trace --db ./parts.db --table events --where "k == 7" --part 202401_1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringSliceVar(&opts.Parts, "part", nil, "only show these parts (repeatable)")
	opts.Query.register(cmd)
	registerSettingsFlags(cmd, &opts.Settings)

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	settings := opts.Settings
	settings.Trace = true
	plan, err := planStored(ctx, opts.Database, &opts.Query, settings)
	if err != nil {
		return outputPlanFailure(formatter, err)
	}

	result := buildTrace(plan, opts.Parts)
	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: result, QueryID: plan.QueryID})
	}
	writeTrace(formatter, result)
	return nil
}

func buildTrace(plan *engine.Plan, only []string) TraceResult {
	result := TraceResult{QueryID: plan.QueryID, Table: plan.Table, Parts: []PartTrace{}}
	for _, pp := range plan.Parts {
		if len(only) > 0 && !lo.Contains(only, pp.Name) {
			continue
		}
		result.Parts = append(result.Parts, PartTrace{
			Name:   pp.Name,
			Marks:  pp.Marks,
			Steps:  pp.Trace,
			Ranges: pp.Ranges,
		})
		for _, step := range pp.Trace {
			result.Stats.Checked++
			switch step.Decision {
			case engine.DecisionSkip:
				result.Stats.Skipped++
			case engine.DecisionSelect:
				result.Stats.Selected++
			case engine.DecisionSplit:
				result.Stats.Split++
			}
		}
	}
	return result
}

func writeTrace(formatter *OutputFormatter, result TraceResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "query %s on %s\n", result.QueryID, result.Table)
	if len(result.Parts) == 0 {
		fmt.Fprintln(w, "no parts searched")
		return
	}
	for _, pt := range result.Parts {
		fmt.Fprintf(w, "\npart %s (%d marks)\n", pt.Name, pt.Marks)
		for _, step := range pt.Steps {
			fmt.Fprintf(w, "  [%d, %d) %-6s true=%t false=%t\n",
				step.Range.Begin, step.Range.End, step.Decision, step.Mask.CanBeTrue, step.Mask.CanBeFalse)
		}
	}
	fmt.Fprintf(w, "\n%d range(s) checked: %d skipped, %d selected, %d split\n",
		result.Stats.Checked, result.Stats.Skipped, result.Stats.Selected, result.Stats.Split)
}
