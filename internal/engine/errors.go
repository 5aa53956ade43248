package engine

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// PlanError represents an error detected while planning a query.
//
// Plan errors include:
//   - Index not used: a forced index cannot narrow the scan
//   - Too many marks: the plan exceeds the marks-to-read limit
//   - Unknown table: the query names a table the planner does not know
//
// PlanError includes structured fields for diagnostics.
type PlanError struct {
	// Code identifies the error category.
	Code PlanErrorCode

	// Message is a human-readable description.
	Message string

	// Table is the planned table.
	Table string

	// QueryID identifies the query being planned.
	QueryID string

	// Details contains additional context.
	Details map[string]string
}

// PlanErrorCode categorizes plan errors.
type PlanErrorCode string

const (
	// ErrCodeIndexNotUsed indicates a forced index does not restrict the scan.
	ErrCodeIndexNotUsed PlanErrorCode = "INDEX_NOT_USED"

	// ErrCodeTooManyMarks indicates the plan would read more marks than allowed.
	ErrCodeTooManyMarks PlanErrorCode = "TOO_MANY_MARKS"

	// ErrCodeUnknownTable indicates the table is not registered.
	ErrCodeUnknownTable PlanErrorCode = "UNKNOWN_TABLE"
)

// Error implements the error interface.
func (e *PlanError) Error() string {
	if e.Table != "" && e.QueryID != "" {
		return fmt.Sprintf("%s: %s (table=%s, query=%s)", e.Code, e.Message, e.Table, e.QueryID)
	}
	if e.Table != "" {
		return fmt.Sprintf("%s: %s (table=%s)", e.Code, e.Message, e.Table)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code PlanErrorCode) bool {
	var pe *PlanError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsIndexNotUsed returns true if a forced index could not be used.
// Uses errors.As to handle wrapped errors.
func IsIndexNotUsed(err error) bool {
	return hasCode(err, ErrCodeIndexNotUsed)
}

// IsTooManyMarks returns true if the plan exceeded the marks limit.
func IsTooManyMarks(err error) bool {
	return hasCode(err, ErrCodeTooManyMarks)
}

// IsUnknownTable returns true if the planned table was not found.
func IsUnknownTable(err error) bool {
	return hasCode(err, ErrCodeUnknownTable)
}

// NewIndexNotUsedError creates a PlanError for a forced index that the
// condition cannot use. index is "primary key" or "partition key".
func NewIndexNotUsedError(table, index, condition string) *PlanError {
	return &PlanError{
		Code:    ErrCodeIndexNotUsed,
		Message: fmt.Sprintf("%s is forced but the condition does not restrict it", index),
		Table:   table,
		Details: map[string]string{
			"index":     index,
			"condition": condition,
		},
	}
}

// NewTooManyMarksError creates a PlanError for the marks-to-read limit.
func NewTooManyMarksError(table string, marks, limit int64) *PlanError {
	return &PlanError{
		Code:    ErrCodeTooManyMarks,
		Message: fmt.Sprintf("plan reads too many marks (%d > %d)", marks, limit),
		Table:   table,
		Details: map[string]string{
			"marks": fmt.Sprintf("%d", marks),
			"limit": fmt.Sprintf("%d", limit),
		},
	}
}

// NewUnknownTableError creates a PlanError for a missing table.
func NewUnknownTableError(table string) *PlanError {
	return &PlanError{
		Code:    ErrCodeUnknownTable,
		Message: "table is not registered",
		Table:   table,
	}
}
