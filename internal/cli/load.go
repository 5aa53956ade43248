package cli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/keycond/internal/engine"
	"github.com/roach88/keycond/internal/harness"
	"github.com/roach88/keycond/internal/store"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Database  string
	Table     string
	Reset     bool
	DropParts []string
}

// LoadPartsResult summarizes a load.
type LoadPartsResult struct {
	Table      string       `json:"table"`
	Loaded     []LoadedPart `json:"loaded"`
	Dropped    []string     `json:"dropped,omitempty"`
	TotalParts int64        `json:"total_parts"`
	TotalMarks int64        `json:"total_marks"`
}

// LoadedPart describes one written part.
type LoadedPart struct {
	Name        string `json:"name"`
	PartitionID string `json:"partition_id"`
	Rows        int64  `json:"rows"`
	Marks       int    `json:"marks"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <schema> [parts.yaml]",
		Short: "Build parts from rows and write them to a part store",
		Long: `Register a table in a SQLite part store and write data parts to it.

The parts file is a YAML list in the scenario part format: each part has
a name and literal rows, generated rows, or both. Parts are sorted by
the primary key, indexed every index_granularity rows, and replace any
stored part of the same name.

Examples:
  keycond load schema.cue parts.yaml --db ./parts.db --table events
  keycond load schema.cue --db ./parts.db --table events --drop-part 202401_1`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			partsPath := ""
			if len(args) == 2 {
				partsPath = args[1]
			}
			return runLoad(cmd.Context(), opts, args[0], partsPath, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Table, "table", "", "table name (optional when only one table is declared)")
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "drop the stored table and its parts first")
	cmd.Flags().StringSliceVar(&opts.DropParts, "drop-part", nil, "remove a stored part (repeatable)")

	return cmd
}

func runLoad(ctx context.Context, opts *LoadOptions, schemaPath, partsPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadSchemas(schemaPath, LoadModeFailFast)
	if len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error())
	}
	spec, err := (&QueryFlags{Table: opts.Table}).selectTable(loadResult)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error())
	}
	t, err := engine.NewTable(*spec)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error())
	}

	var partSpecs []harness.PartSpec
	if partsPath != "" {
		partSpecs, err = readPartSpecs(partsPath)
		if err != nil {
			return outputCompileError(formatter, ErrCodeLoadFailed, err.Error())
		}
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return outputStoreError(formatter, err)
	}
	defer st.Close()

	if opts.Reset {
		if err := st.DeleteTable(ctx, t.Name()); err != nil {
			return outputStoreError(formatter, err)
		}
		formatter.VerboseLog("Dropped table %s", t.Name())
	}
	if err := st.WriteTable(ctx, t.Spec); err != nil {
		return outputStoreError(formatter, err)
	}

	result := LoadPartsResult{Table: t.Name(), Loaded: []LoadedPart{}}
	for _, name := range opts.DropParts {
		if err := st.DeletePart(ctx, t.Name(), name); err != nil {
			return outputStoreError(formatter, err)
		}
		result.Dropped = append(result.Dropped, name)
	}
	for _, ps := range partSpecs {
		rows, err := harness.BuildRows(t.Spec, ps)
		if err != nil {
			return outputCompileError(formatter, ErrCodeLoadFailed, err.Error())
		}
		part, err := engine.BuildPart(t, ps.Name, rows)
		if err != nil {
			return outputCompileError(formatter, ErrCodeLoadFailed, err.Error())
		}
		if err := st.WritePart(ctx, t.Name(), part); err != nil {
			return outputStoreError(formatter, err)
		}
		slog.Debug("part written", "table", t.Name(), "part", part.Name, "marks", part.MarksCount())
		result.Loaded = append(result.Loaded, LoadedPart{
			Name:        part.Name,
			PartitionID: part.PartitionID,
			Rows:        part.Rows,
			Marks:       part.MarksCount(),
		})
	}

	result.TotalParts, result.TotalMarks, err = st.CountParts(ctx, t.Name())
	if err != nil {
		return outputStoreError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	for _, name := range result.Dropped {
		fmt.Fprintf(formatter.Writer, "- %s\n", name)
	}
	for _, p := range result.Loaded {
		fmt.Fprintf(formatter.Writer, "+ %s (partition %q): %d row(s), %d mark(s)\n", p.Name, p.PartitionID, p.Rows, p.Marks)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s: %d part(s), %d mark(s) stored\n", result.Table, result.TotalParts, result.TotalMarks)
	return nil
}

// readPartSpecs decodes a YAML list of parts, rejecting unknown fields.
func readPartSpecs(path string) ([]harness.PartSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read parts file")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var specs []harness.PartSpec
	if err := dec.Decode(&specs); err != nil {
		return nil, errors.Wrap(err, "parse parts file")
	}
	for i, ps := range specs {
		if ps.Name == "" {
			return nil, errors.Newf("part %d: name is required", i)
		}
	}
	return specs, nil
}

// outputStoreError reports a part store failure.
func outputStoreError(formatter *OutputFormatter, err error) error {
	_ = formatter.Error(ErrCodeStore, err.Error(), nil)
	return WrapExitError(ExitCommandError, ErrCodeStore, err)
}
