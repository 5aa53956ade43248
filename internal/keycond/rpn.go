package keycond

import (
	"fmt"
	"strings"

	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/sets"
)

// Op is the kind of an RPN element.
type Op uint8

const (
	OpUnknown Op = iota
	OpInRange
	OpNotInRange
	OpInSet
	OpNotInSet
	OpNot
	OpAnd
	OpOr
	OpAlwaysFalse
	OpAlwaysTrue
)

var opNames = [...]string{
	OpUnknown:     "unknown",
	OpInRange:     "in range",
	OpNotInRange:  "not in range",
	OpInSet:       "in set",
	OpNotInSet:    "not in set",
	OpNot:         "not",
	OpAnd:         "and",
	OpOr:          "or",
	OpAlwaysFalse: "false",
	OpAlwaysTrue:  "true",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", o)
}

// IsAtom reports whether o tests key columns.
func (o Op) IsAtom() bool {
	switch o {
	case OpInRange, OpNotInRange, OpInSet, OpNotInSet:
		return true
	}
	return false
}

// SetColumn binds one position of a set tuple to a key column.
type SetColumn struct {
	KeyColumn int
	Chain     MonotonicChain
}

// RPNElement is one step of a compiled key condition.
type RPNElement struct {
	Op Op

	// InRange / NotInRange
	KeyColumn int
	Range     ir.Interval
	Chain     MonotonicChain

	// Relaxed marks a Range that holds every matching value but may also
	// hold values that do not match, so it can never prove a whole range
	// true.
	Relaxed bool

	// InSet / NotInSet; SetColumns[i] feeds element i of each set tuple.
	Set        *sets.Set
	SetColumns []SetColumn
}

func (e RPNElement) String() string {
	switch e.Op {
	case OpInRange, OpNotInRange:
		verb := "in"
		if e.Op == OpNotInRange {
			verb = "not in"
		}
		return fmt.Sprintf("(%s %s %s)", e.Chain.Render(columnRef(e.KeyColumn)), verb, e.Range)
	case OpInSet, OpNotInSet:
		verb := "in"
		if e.Op == OpNotInSet {
			verb = "not in"
		}
		cols := make([]string, len(e.SetColumns))
		for i, c := range e.SetColumns {
			cols[i] = c.Chain.Render(columnRef(c.KeyColumn))
		}
		target := "set"
		if e.Set != nil {
			target = fmt.Sprintf("%d-element set", e.Set.Len())
		}
		if len(cols) == 1 {
			return fmt.Sprintf("(%s %s %s)", cols[0], verb, target)
		}
		return fmt.Sprintf("((%s) %s %s)", strings.Join(cols, ", "), verb, target)
	default:
		return e.Op.String()
	}
}

func columnRef(i int) string {
	return fmt.Sprintf("column %d", i)
}
