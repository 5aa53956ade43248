package engine

import (
	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/keycond"
)

// MarkRange is the half-open mark interval [Begin, End).
type MarkRange struct {
	Begin int `json:"begin"`
	End   int `json:"end"`
}

// Marks returns the number of marks in the range.
func (r MarkRange) Marks() int {
	return r.End - r.Begin
}

// TraceStep records one range decision of the search.
type TraceStep struct {
	Range    MarkRange   `json:"range"`
	Mask     ir.BoolMask `json:"mask"`
	Decision string      `json:"decision"`
}

// Range search decisions.
const (
	DecisionSkip   = "skip"
	DecisionSelect = "select"
	DecisionSplit  = "split"
)

// rangeSearch holds what selectMarkRanges needs about one part.
type rangeSearch struct {
	cond        *keycond.KeyCondition
	index       [][]ir.Value
	keyTypes    []ir.Type
	usedKeySize int
	granularity int
	minGap      int
	trace       bool
}

// selectMarkRanges narrows [0, marks) to the ranges that may hold rows
// matching the condition. Suspicious ranges are kept on a stack, checked
// against the key range between their boundary marks and split into
// granularity pieces until single marks remain. Selected single marks are
// appended in ascending order and merged with the previous range when the
// gap is at most minGap.
//
// The key of mark i is the first key of granule i, so granule i holds keys
// between index[i] and index[i+1]. The last granule has no upper mark and
// is checked with CheckAfter.
func (s rangeSearch) selectMarkRanges() ([]MarkRange, []TraceStep) {
	marks := len(s.index)
	if marks == 0 {
		return nil, nil
	}

	var (
		res   []MarkRange
		steps []TraceStep
	)
	record := func(r MarkRange, m ir.BoolMask, d string) {
		if s.trace {
			steps = append(steps, TraceStep{Range: r, Mask: m, Decision: d})
		}
	}

	if s.cond.AlwaysUnknownOrTrue() {
		all := MarkRange{Begin: 0, End: marks}
		record(all, ir.MaskUnknown, DecisionSelect)
		return []MarkRange{all}, steps
	}

	stack := []MarkRange{{Begin: 0, End: marks}}
	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var m ir.BoolMask
		if r.End == marks {
			m = s.cond.CheckAfter(s.usedKeySize, s.index[r.Begin], s.keyTypes)
		} else {
			m = s.cond.CheckInRange(s.usedKeySize, s.index[r.Begin], s.index[r.End], s.keyTypes)
		}

		if !m.CanBeTrue {
			record(r, m, DecisionSkip)
			continue
		}

		if r.End == r.Begin+1 {
			record(r, m, DecisionSelect)
			if len(res) == 0 || r.Begin-res[len(res)-1].End > s.minGap {
				res = append(res, r)
			} else {
				res[len(res)-1].End = r.End
			}
			continue
		}

		record(r, m, DecisionSplit)
		// Push pieces right to left so the leftmost is processed first.
		step := (r.End-r.Begin-1)/s.granularity + 1
		end := r.End
		for ; end > r.Begin+step; end -= step {
			stack = append(stack, MarkRange{Begin: end - step, End: end})
		}
		stack = append(stack, MarkRange{Begin: r.Begin, End: end})
	}
	return res, steps
}
