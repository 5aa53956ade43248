package keycond

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// knowledge is what static analysis can tell about a subexpression.
type knowledge uint8

const (
	knowAtom    knowledge = iota // depends on key values
	knowRelaxed                  // atom that can only prove a range false
	knowTrue
	knowFalse
	knowUnknown
)

// AlwaysUnknownOrTrue reports whether the condition can never exclude a
// range, so evaluating it is pointless.
func (kc *KeyCondition) AlwaysUnknownOrTrue() bool {
	var stack []knowledge
	pop := func(op Op) knowledge {
		if len(stack) == 0 {
			panic(errors.AssertionFailedf("keycond: stack underflow at %s", op))
		}
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return k
	}

	for _, el := range kc.rpn {
		switch el.Op {
		case OpUnknown:
			stack = append(stack, knowUnknown)
		case OpAlwaysTrue:
			stack = append(stack, knowTrue)
		case OpAlwaysFalse:
			stack = append(stack, knowFalse)
		case OpInRange, OpNotInRange, OpInSet, OpNotInSet:
			if el.Relaxed {
				stack = append(stack, knowRelaxed)
			} else {
				stack = append(stack, knowAtom)
			}
		case OpNot:
			switch k := pop(el.Op); k {
			case knowTrue:
				stack = append(stack, knowFalse)
			case knowFalse:
				stack = append(stack, knowTrue)
			case knowRelaxed:
				stack = append(stack, knowUnknown)
			default:
				stack = append(stack, k)
			}
		case OpAnd:
			b, a := pop(el.Op), pop(el.Op)
			switch {
			case a == knowFalse || b == knowFalse:
				stack = append(stack, knowFalse)
			case a == knowTrue:
				stack = append(stack, b)
			case b == knowTrue:
				stack = append(stack, a)
			case a == knowUnknown && b == knowUnknown:
				stack = append(stack, knowUnknown)
			default:
				// unknown and atom still prunes through the atom
				stack = append(stack, knowAtom)
			}
		case OpOr:
			b, a := pop(el.Op), pop(el.Op)
			switch {
			case a == knowTrue || b == knowTrue:
				stack = append(stack, knowTrue)
			case a == knowFalse:
				stack = append(stack, b)
			case b == knowFalse:
				stack = append(stack, a)
			case a == knowUnknown || b == knowUnknown:
				stack = append(stack, knowUnknown)
			default:
				stack = append(stack, knowAtom)
			}
		default:
			panic(errors.AssertionFailedf("keycond: unexpected element %s", el.Op))
		}
	}
	if len(stack) != 1 {
		panic(errors.AssertionFailedf("keycond: %d values left on the stack", len(stack)))
	}
	return stack[0] == knowTrue || stack[0] == knowUnknown
}

// MaxKeyColumn is the largest key column position any atom reads, or 0
// when no atom reads a key column.
func (kc *KeyCondition) MaxKeyColumn() int {
	res := 0
	for _, el := range kc.rpn {
		switch el.Op {
		case OpInRange, OpNotInRange:
			res = max(res, el.KeyColumn)
		case OpInSet, OpNotInSet:
			for _, sc := range el.SetColumns {
				res = max(res, sc.KeyColumn)
			}
		}
	}
	return res
}

// HasMonotonicChains reports whether some atom reads a key column through
// functions.
func (kc *KeyCondition) HasMonotonicChains() bool {
	for _, el := range kc.rpn {
		if len(el.Chain) > 0 {
			return true
		}
		for _, sc := range el.SetColumns {
			if len(sc.Chain) > 0 {
				return true
			}
		}
	}
	return false
}

// String renders the condition in infix form, e.g.
// "((column 0 in [10, +inf)) and not((column 1 in ['a', 'a'])))".
func (kc *KeyCondition) String() string {
	var stack []string
	pop := func(op Op) string {
		if len(stack) == 0 {
			panic(errors.AssertionFailedf("keycond: stack underflow at %s", op))
		}
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return s
	}
	for _, el := range kc.rpn {
		switch el.Op {
		case OpNot:
			stack = append(stack, "not("+pop(el.Op)+")")
		case OpAnd, OpOr:
			b, a := pop(el.Op), pop(el.Op)
			stack = append(stack, "("+a+" "+el.Op.String()+" "+b+")")
		default:
			stack = append(stack, el.String())
		}
	}
	return strings.Join(stack, ", ")
}
