package ir

import "fmt"

// BoolMask describes what a predicate may evaluate to over a set of rows.
// CanBeTrue=false proves no row matches; CanBeFalse=false proves all rows
// match.
type BoolMask struct {
	CanBeTrue  bool `json:"can_be_true"`
	CanBeFalse bool `json:"can_be_false"`
}

var (
	MaskTrue    = BoolMask{CanBeTrue: true, CanBeFalse: false}
	MaskFalse   = BoolMask{CanBeTrue: false, CanBeFalse: true}
	MaskUnknown = BoolMask{CanBeTrue: true, CanBeFalse: true}
)

// And combines masks of two conjuncts.
func (m BoolMask) And(o BoolMask) BoolMask {
	return BoolMask{CanBeTrue: m.CanBeTrue && o.CanBeTrue, CanBeFalse: m.CanBeFalse || o.CanBeFalse}
}

// Or combines masks of two disjuncts.
func (m BoolMask) Or(o BoolMask) BoolMask {
	return BoolMask{CanBeTrue: m.CanBeTrue || o.CanBeTrue, CanBeFalse: m.CanBeFalse && o.CanBeFalse}
}

// Not is the mask of the negated predicate.
func (m BoolMask) Not() BoolMask {
	return BoolMask{CanBeTrue: m.CanBeFalse, CanBeFalse: m.CanBeTrue}
}

func (m BoolMask) String() string {
	return fmt.Sprintf("{can_be_true: %t, can_be_false: %t}", m.CanBeTrue, m.CanBeFalse)
}
