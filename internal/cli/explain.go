package cli

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/keycond/internal/engine"
	"github.com/roach88/keycond/internal/harness"
	"github.com/roach88/keycond/internal/keycond"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Query QueryFlags
	Exact bool
}

// ExplainResult describes the compiled conditions of a query.
type ExplainResult struct {
	Table   string         `json:"table"`
	Primary KeyExplanation `json:"primary"`
	// MinMax is omitted for unpartitioned tables.
	MinMax *KeyExplanation `json:"minmax,omitempty"`
}

// KeyExplanation describes one compiled key condition.
type KeyExplanation struct {
	KeyColumns      []string `json:"key_columns"`
	Condition       string   `json:"condition"`
	RPN             []string `json:"rpn"`
	KeyColumnsUsed  int      `json:"key_columns_used"`
	UnknownOrTrue   bool     `json:"unknown_or_true"`
	MonotonicChains bool     `json:"monotonic_chains"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <schema>",
		Short: "Show the key conditions compiled from a predicate",
		Long: `Compile WHERE and PREWHERE against a table's primary key and, for
partitioned tables, its partition min/max key. Prints the condition in
infix and RPN form and what the planner can derive from it.

Examples:
  keycond explain schema.cue --table events --where "k >= 5 && k < 10"
  keycond explain schema.cue --where "toYYYYMM(d) == 202402" --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}
	opts.Query.register(cmd)
	cmd.Flags().BoolVar(&opts.Exact, "exact", false, "evaluate key ranges with the exact tuple decomposition")

	return cmd
}

func runExplain(opts *ExplainOptions, schemaPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadSchemas(schemaPath, LoadModeFailFast)
	if len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error())
	}

	spec, err := opts.Query.selectTable(loadResult)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error())
	}
	query, err := opts.Query.parse()
	if err != nil {
		return outputQueryError(formatter, err)
	}

	settings := (&harness.SettingsSpec{ExactTupleRanges: opts.Exact}).Apply(engine.DefaultSettings())
	t, conds, err := compileConditions(spec, query, settings)
	if err != nil {
		return outputQueryError(formatter, err)
	}

	result := ExplainResult{
		Table:   t.Name(),
		Primary: explainKey(t.PrimaryKey, conds.Primary),
	}
	if conds.MinMax != nil {
		mm := explainKey(t.MinMaxKey, conds.MinMax)
		result.MinMax = &mm
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	writeExplanation(formatter, "primary key", result.Primary)
	if result.MinMax != nil {
		fmt.Fprintln(formatter.Writer)
		writeExplanation(formatter, "partition min/max", *result.MinMax)
	}
	return nil
}

func explainKey(key keycond.KeyExpression, kc *keycond.KeyCondition) KeyExplanation {
	rpn := kc.RPN()
	steps := make([]string, len(rpn))
	for i, el := range rpn {
		steps[i] = el.String()
	}
	return KeyExplanation{
		KeyColumns:      key.Names(),
		Condition:       kc.String(),
		RPN:             steps,
		KeyColumnsUsed:  kc.MaxKeyColumn() + 1,
		UnknownOrTrue:   kc.AlwaysUnknownOrTrue(),
		MonotonicChains: kc.HasMonotonicChains(),
	}
}

func writeExplanation(formatter *OutputFormatter, title string, e KeyExplanation) {
	w := formatter.Writer
	fmt.Fprintf(w, "%s (%s)\n", title, joinKey(e.KeyColumns))
	fmt.Fprintf(w, "  condition:        %s\n", e.Condition)
	fmt.Fprintf(w, "  key columns used: %d\n", e.KeyColumnsUsed)
	fmt.Fprintf(w, "  unknown or true:  %t\n", e.UnknownOrTrue)
	fmt.Fprintf(w, "  monotonic chains: %t\n", e.MonotonicChains)
	fmt.Fprintln(w, "  rpn:")
	for i, step := range e.RPN {
		fmt.Fprintf(w, "    %d. %s\n", i+1, step)
	}
}

// outputQueryError reports a predicate that cannot be parsed or compiled.
func outputQueryError(formatter *OutputFormatter, err error) error {
	_ = formatter.Error(ErrCodeQuery, err.Error(), nil)
	return WrapExitError(ExitFailure, ErrCodeQuery, err)
}
