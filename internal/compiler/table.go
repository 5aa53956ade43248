package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/keycond/internal/ir"
)

// DefaultIndexGranularity is the number of rows per mark when a table does
// not set index_granularity.
const DefaultIndexGranularity = 8192

// CompileTable parses a CUE value into a TableSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the table struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`table: hits: { columns: {...}, order_by: [...] }`)
//	spec, err := CompileTable(v.LookupPath(cue.ParsePath("table.hits")))
func CompileTable(v cue.Value) (*ir.TableSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.TableSpec{IndexGranularity: DefaultIndexGranularity}

	// Table name comes from the struct label.
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	var err error
	spec.Columns, err = parseColumns(v)
	if err != nil {
		return nil, err
	}

	orderVal := v.LookupPath(cue.ParsePath("order_by"))
	if !orderVal.Exists() {
		return nil, &CompileError{
			Field:   "order_by",
			Message: "order_by is required",
			Pos:     v.Pos(),
		}
	}
	spec.OrderBy, err = parseStringList(orderVal, "order_by")
	if err != nil {
		return nil, err
	}

	partVal := v.LookupPath(cue.ParsePath("partition_by"))
	if partVal.Exists() {
		spec.PartitionBy, err = partVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
	}

	granVal := v.LookupPath(cue.ParsePath("index_granularity"))
	if granVal.Exists() {
		g, err := granVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if g <= 0 {
			return nil, &CompileError{
				Field:   "index_granularity",
				Message: fmt.Sprintf("must be positive, got %d", g),
				Pos:     granVal.Pos(),
			}
		}
		spec.IndexGranularity = int(g)
	}

	return spec, nil
}

// parseColumns reads the columns struct in declaration order.
func parseColumns(v cue.Value) ([]ir.ColumnDef, error) {
	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, &CompileError{
			Field:   "columns",
			Message: "columns are required",
			Pos:     v.Pos(),
		}
	}

	iter, err := colsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var cols []ir.ColumnDef
	for iter.Next() {
		name := iter.Label()
		typeName, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   "columns." + name,
				Message: "column type must be a string such as \"UInt64\"",
				Pos:     iter.Value().Pos(),
			}
		}
		t, err := ir.ParseType(typeName)
		if err != nil {
			return nil, &CompileError{
				Field:   "columns." + name,
				Message: err.Error(),
				Pos:     iter.Value().Pos(),
			}
		}
		cols = append(cols, ir.ColumnDef{Name: name, Type: t})
	}
	return cols, nil
}

func parseStringList(v cue.Value, field string) ([]string, error) {
	// A single expression may be written without brackets.
	if s, err := v.String(); err == nil {
		return []string{s}, nil
	}

	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: "must be a string or a list of strings",
			Pos:     v.Pos(),
		}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
