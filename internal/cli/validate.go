package cli

import (
	"fmt"
	"io"

	"cuelang.org/go/cue/token"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/keycond/internal/compiler"
	"github.com/roach88/keycond/internal/engine"
	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/queryir"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Query QueryFlags
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Tables   []string                   `json:"tables"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []string                   `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <schema>",
		Short: "Validate table schemas and, optionally, a predicate",
		Long: `Validate CUE table schemas without writing any output.

With --where (and --table when the schema declares several tables) the
predicate is parsed, checked against the table's columns and compiled
against its primary and partition keys.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}
	opts.Query.register(cmd)

	return cmd
}

func runValidate(opts *ValidateOptions, schemaPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadSchemas(schemaPath, LoadModeCollectAll)
	if loadResult == nil {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error())
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, schemaPath)

	result := validateTables(loadResult, loadErrors, formatter)
	if opts.Query.Where != "" || opts.Query.Prewhere != "" {
		errs, warnings := validateQuery(loadResult, &opts.Query)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warnings...)
	}
	result.Valid = len(result.Errors) == 0

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// validateTables turns compile errors into validation errors and runs the
// schema rules on every compiled table.
func validateTables(loadResult *LoadResult, loadErrors []error, formatter *OutputFormatter) ValidationResult {
	result := ValidationResult{Tables: []string{}}
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    getLineFromCuePos(loadErr.Pos),
			})
		}
	}
	for _, spec := range loadResult.Tables {
		formatter.VerboseLog("Validating table: %s", spec.Name)
		result.Tables = append(result.Tables, spec.Name)
		result.Errors = append(result.Errors, compiler.Validate(spec)...)
	}
	return result
}

// validateQuery checks the predicates against the selected table.
// Structural problems in the tree are warnings; they only make the
// condition prune less.
func validateQuery(loadResult *LoadResult, q *QueryFlags) ([]compiler.ValidationError, []string) {
	spec, err := q.selectTable(loadResult)
	if err != nil {
		return []compiler.ValidationError{{Field: "table", Message: err.Error(), Code: ErrCodeGeneric}}, nil
	}

	query, err := q.parse()
	if err != nil {
		return []compiler.ValidationError{{Field: "where", Message: err.Error(), Code: ErrCodeQuery}}, nil
	}

	var errs []compiler.ValidationError
	var warnings []string
	for field, expr := range map[string]queryir.Expr{"where": query.Where, "prewhere": query.Prewhere} {
		if expr == nil {
			continue
		}
		for _, w := range queryir.Validate(expr).Warnings {
			warnings = append(warnings, field+": "+w)
		}
		errs = append(errs, unknownColumns(field, expr, spec)...)
	}
	if len(errs) > 0 {
		return errs, warnings
	}

	if _, _, err := compileConditions(spec, query, engine.DefaultSettings()); err != nil {
		errs = append(errs, compiler.ValidationError{Field: "where", Message: err.Error(), Code: ErrCodeQuery})
	}
	return errs, warnings
}

func unknownColumns(field string, expr queryir.Expr, spec *ir.TableSpec) []compiler.ValidationError {
	var errs []compiler.ValidationError
	for _, col := range queryir.Columns(expr) {
		if _, ok := spec.ColumnType(col); !ok {
			errs = append(errs, compiler.ValidationError{
				Field:   field,
				Message: fmt.Sprintf("unknown column %s in table %s", col, spec.Name),
				Code:    ErrCodeQuery,
			})
		}
	}
	return errs
}

// getLineFromCuePos extracts line number from a token.Pos.
func getLineFromCuePos(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %d table(s) valid\n", len(result.Tables))
	writeWarnings(formatter.Writer, result.Warnings)
	return nil
}

// outputValidateError reports a schema that could not be loaded at all.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	writeWarnings(formatter.Writer, result.Warnings)

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

func writeWarnings(w io.Writer, warnings []string) {
	for _, warn := range warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
}
