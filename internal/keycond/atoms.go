package keycond

import (
	"strings"

	"github.com/roach88/keycond/internal/ir"
)

// atomFunc fills el for "key <relation> v". It returns false when the
// relation cannot be expressed as an interval for v.
type atomFunc func(el *RPNElement, v ir.Value) bool

var atomMap = map[string]atomFunc{
	"equals": func(el *RPNElement, v ir.Value) bool {
		el.Op, el.Range = OpInRange, ir.Point(v)
		return true
	},
	"notEquals": func(el *RPNElement, v ir.Value) bool {
		el.Op, el.Range = OpNotInRange, ir.Point(v)
		return true
	},
	"less": func(el *RPNElement, v ir.Value) bool {
		el.Op, el.Range = OpInRange, ir.RightBounded(v, false)
		return true
	},
	"greater": func(el *RPNElement, v ir.Value) bool {
		el.Op, el.Range = OpInRange, ir.LeftBounded(v, false)
		return true
	},
	"lessOrEquals": func(el *RPNElement, v ir.Value) bool {
		el.Op, el.Range = OpInRange, ir.RightBounded(v, true)
		return true
	},
	"greaterOrEquals": func(el *RPNElement, v ir.Value) bool {
		el.Op, el.Range = OpInRange, ir.LeftBounded(v, true)
		return true
	},
	"like": func(el *RPNElement, v ir.Value) bool {
		s, ok := v.(ir.String)
		if !ok {
			return false
		}
		prefix, rest := likePrefix(string(s))
		if rest == "" {
			el.Op, el.Range = OpInRange, ir.Point(ir.String(prefix))
			return true
		}
		r, ok := prefixRange(prefix)
		if !ok {
			return false
		}
		el.Op, el.Range = OpInRange, r
		el.Relaxed = rest != "%"
		return true
	},
	"startsWith": func(el *RPNElement, v ir.Value) bool {
		s, ok := v.(ir.String)
		if !ok {
			return false
		}
		r, ok := prefixRange(string(s))
		if !ok {
			return false
		}
		el.Op, el.Range = OpInRange, r
		return true
	},
}

// invertedRelation gives the relation that holds with operands swapped.
// like and startsWith are not symmetric and have no entry.
var invertedRelation = map[string]string{
	"equals":          "equals",
	"notEquals":       "notEquals",
	"less":            "greater",
	"greater":         "less",
	"lessOrEquals":    "greaterOrEquals",
	"greaterOrEquals": "lessOrEquals",
}

// relaxedRelation lists the relations preserved by a non-decreasing
// function, with strict comparisons weakened.
var relaxedRelation = map[string]string{
	"equals":          "equals",
	"less":            "lessOrEquals",
	"lessOrEquals":    "lessOrEquals",
	"greater":         "greaterOrEquals",
	"greaterOrEquals": "greaterOrEquals",
}

// likePrefix splits a LIKE pattern into the literal text before its first
// wildcard and the pattern from that wildcard on. A backslash escapes the
// next character.
func likePrefix(pattern string) (prefix, rest string) {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '%', '_':
			return b.String(), pattern[i:]
		case '\\':
			if i+1 < len(pattern) {
				i++
			}
		}
		b.WriteByte(pattern[i])
	}
	return b.String(), ""
}

// prefixRange is the interval of all strings starting with prefix.
func prefixRange(prefix string) (ir.Interval, bool) {
	if prefix == "" {
		return ir.Interval{}, false
	}
	next, ok := nextPrefix(prefix)
	if !ok {
		return ir.LeftBounded(ir.String(prefix), true), true
	}
	return ir.NewInterval(ir.Finite(ir.String(prefix)), true, ir.Finite(ir.String(next)), false), true
}

// nextPrefix returns the smallest string greater than every string with the
// given prefix, or false when the prefix is all 0xFF bytes.
func nextPrefix(prefix string) (string, bool) {
	b := []byte(prefix)
	for len(b) > 0 && b[len(b)-1] == 0xFF {
		b = b[:len(b)-1]
	}
	if len(b) == 0 {
		return "", false
	}
	b[len(b)-1]++
	return string(b), true
}

// coerce converts a constant to the type of the values it is compared
// with. A constant that does not convert exactly but still has a defined
// order against that type is kept as is.
func coerce(v ir.Value, t ir.Type) (ir.Value, bool) {
	if cv, err := ir.Convert(v, t); err == nil {
		return cv, true
	}
	if _, ok := ir.Compare(v, sampleOf(t)); ok {
		return v, true
	}
	return nil, false
}

func sampleOf(t ir.Type) ir.Value {
	switch t {
	case ir.TypeString:
		return ir.String("")
	case ir.TypeDate:
		return ir.Date(0)
	case ir.TypeDateTime:
		return ir.DateTime(0)
	case ir.TypeFloat64:
		return ir.Float(0)
	case ir.TypeUInt64:
		return ir.UInt(0)
	case ir.TypeBool:
		return ir.Bool(false)
	default:
		return ir.Int(0)
	}
}
