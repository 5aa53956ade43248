package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/keycond/internal/functions"
	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/queryir"
	"github.com/roach88/keycond/internal/querysql"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// TableSpec errors (E101-E109)
	ErrTableNameEmpty     = "E101" // table name is required
	ErrTableNoColumns     = "E102" // at least one column required
	ErrDuplicateColumn    = "E103" // duplicate column name
	ErrInvalidColumnType  = "E104" // unknown type name
	ErrOrderByEmpty       = "E105" // order_by needs at least one expression
	ErrInvalidOrderBy     = "E106" // order_by expression does not parse or type-check
	ErrDuplicateKey       = "E107" // same key expression listed twice
	ErrInvalidPartitionBy = "E108" // partition_by expression does not parse or type-check
	ErrInvalidGranularity = "E109" // index_granularity must be positive
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates a compiled table against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.TableSpec:
		return validateTableSpec(spec)
	case ir.TableSpec:
		return validateTableSpec(&spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateTableSpec(spec *ir.TableSpec) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "table name is required",
			Code:    ErrTableNameEmpty,
		})
	}

	if len(spec.Columns) == 0 {
		errs = append(errs, ValidationError{
			Field:   "columns",
			Message: "at least one column is required",
			Code:    ErrTableNoColumns,
		})
	}

	seen := make(map[string]bool, len(spec.Columns))
	for i, c := range spec.Columns {
		field := fmt.Sprintf("columns[%d]", i)
		if seen[c.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate column %q", c.Name),
				Code:    ErrDuplicateColumn,
			})
		}
		seen[c.Name] = true
		if _, err := ir.ParseType(string(c.Type)); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: err.Error(),
				Code:    ErrInvalidColumnType,
			})
		}
	}

	if len(spec.OrderBy) == 0 {
		errs = append(errs, ValidationError{
			Field:   "order_by",
			Message: "order_by needs at least one key expression",
			Code:    ErrOrderByEmpty,
		})
	}

	types := spec.ColumnTypes()
	keys := make(map[string]int, len(spec.OrderBy))
	for i, text := range spec.OrderBy {
		field := fmt.Sprintf("order_by[%d]", i)
		name, err := checkExpression(text, types)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: err.Error(),
				Code:    ErrInvalidOrderBy,
			})
			continue
		}
		if prev, dup := keys[name]; dup {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("key expression %s already listed at order_by[%d]", name, prev),
				Code:    ErrDuplicateKey,
			})
			continue
		}
		keys[name] = i
	}

	if spec.PartitionBy != "" {
		if _, err := checkExpression(spec.PartitionBy, types); err != nil {
			errs = append(errs, ValidationError{
				Field:   "partition_by",
				Message: err.Error(),
				Code:    ErrInvalidPartitionBy,
			})
		}
	}

	if spec.IndexGranularity <= 0 {
		errs = append(errs, ValidationError{
			Field:   "index_granularity",
			Message: fmt.Sprintf("must be positive, got %d", spec.IndexGranularity),
			Code:    ErrInvalidGranularity,
		})
	}

	return errs
}

// checkExpression parses a key expression and infers its type against the
// table columns. It returns the canonical column name of the expression.
func checkExpression(text string, types map[string]ir.Type) (string, error) {
	e, err := querysql.Parse(text)
	if err != nil {
		return "", err
	}
	if e == nil {
		return "", fmt.Errorf("empty expression")
	}
	if _, err := functions.TypeOf(e, types); err != nil {
		return "", err
	}
	return queryir.ColumnName(e), nil
}
