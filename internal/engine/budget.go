package engine

import "sync/atomic"

// MarkBudget enforces MaxMarksToRead across the parts of one plan.
//
// Parts are planned concurrently, so the counter is atomic. Once the
// budget is exceeded every later Spend fails too, which lets the errgroup
// stop the remaining parts early.
type MarkBudget struct {
	table string
	limit int64
	spent atomic.Int64
}

// NewMarkBudget creates a budget of limit marks. A limit of zero or less
// never fails.
func NewMarkBudget(table string, limit int64) *MarkBudget {
	return &MarkBudget{table: table, limit: limit}
}

// Spend adds marks to the running total and returns TOO_MANY_MARKS once
// the total exceeds the limit.
func (b *MarkBudget) Spend(marks int64) error {
	total := b.spent.Add(marks)
	if b.limit > 0 && total > b.limit {
		return NewTooManyMarksError(b.table, total, b.limit)
	}
	return nil
}

// Spent returns the marks accounted so far.
func (b *MarkBudget) Spent() int64 {
	return b.spent.Load()
}

// Limit returns the configured limit.
func (b *MarkBudget) Limit() int64 {
	return b.limit
}
