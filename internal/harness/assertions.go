package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/keycond/internal/engine"
)

// AssertionError is returned when an expectation does not hold.
type AssertionError struct {
	Query    string // Query name
	Field    string // Expectation field, e.g. "ranges[202401_1]"
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "query %s: %s mismatch\n", e.Query, e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// CheckExpectation compares a query outcome with the query's expectation
// and returns one error per mismatching field.
func CheckExpectation(q QuerySpec, qr QueryResult) []*AssertionError {
	exp := q.Expect
	fail := func(field string, expected, actual any) *AssertionError {
		return &AssertionError{
			Query:    q.Name,
			Field:    field,
			Expected: fmt.Sprint(expected),
			Actual:   fmt.Sprint(actual),
		}
	}

	if qr.Plan == nil {
		if exp.Error == "" {
			return []*AssertionError{fail("error", "no error", qr.Error)}
		}
		if exp.Error != qr.ErrorCode {
			return []*AssertionError{fail("error", exp.Error, qr.ErrorCode+": "+qr.Error)}
		}
		return nil
	}
	if exp.Error != "" {
		return []*AssertionError{fail("error", exp.Error, "no error")}
	}

	plan := qr.Plan
	var errs []*AssertionError
	if exp.Condition != nil && *exp.Condition != plan.Condition {
		errs = append(errs, fail("condition", *exp.Condition, plan.Condition))
	}
	if exp.UnknownOrTrue != nil && *exp.UnknownOrTrue != !plan.PrimaryKeyUsed {
		errs = append(errs, fail("unknown_or_true", *exp.UnknownOrTrue, !plan.PrimaryKeyUsed))
	}
	if exp.KeyColumnsUsed != nil && *exp.KeyColumnsUsed != plan.KeyColumnsUsed {
		errs = append(errs, fail("key_columns_used", *exp.KeyColumnsUsed, plan.KeyColumnsUsed))
	}
	if exp.SelectedMarks != nil && *exp.SelectedMarks != plan.SelectedMarks {
		errs = append(errs, fail("selected_marks", *exp.SelectedMarks, plan.SelectedMarks))
	}
	if exp.SelectedParts != nil && !slices.Equal(exp.SelectedParts, plan.SelectedParts()) {
		errs = append(errs, fail("selected_parts", exp.SelectedParts, plan.SelectedParts()))
	}
	if exp.PrunedByPartition != nil && !slices.Equal(exp.PrunedByPartition, plan.PrunedByPartition) {
		errs = append(errs, fail("pruned_by_partition", exp.PrunedByPartition, plan.PrunedByPartition))
	}
	if exp.PrunedByKey != nil && !slices.Equal(exp.PrunedByKey, plan.PrunedByKey) {
		errs = append(errs, fail("pruned_by_key", exp.PrunedByKey, plan.PrunedByKey))
	}

	parts := make([]string, 0, len(exp.Ranges))
	for name := range exp.Ranges {
		parts = append(parts, name)
	}
	slices.Sort(parts)
	for _, name := range parts {
		want := exp.Ranges[name]
		got := rangePairs(plan, name)
		if !slices.Equal(want, got) {
			errs = append(errs, fail("ranges["+name+"]", want, got))
		}
	}
	return errs
}

// rangePairs returns the selected ranges of a part as [begin, end) pairs.
// A part the plan does not read has none.
func rangePairs(plan *engine.Plan, part string) [][2]int {
	pp, ok := plan.Part(part)
	if !ok {
		return [][2]int{}
	}
	out := make([][2]int, len(pp.Ranges))
	for i, r := range pp.Ranges {
		out[i] = [2]int{r.Begin, r.End}
	}
	return out
}
