package ir

import (
	"cmp"
	"math"
	"strings"
)

// Compare orders two values. The boolean result is false when the values
// have no defined order (string against number, NaN, unknown kinds); callers
// must then assume nothing about their relation.
//
// Numbers of different kinds compare by mathematical value. Date and DateTime
// compare on a common seconds scale, and against plain numbers as their
// stored day or second count. NULL sorts before everything else.
func Compare(a, b Value) (int, bool) {
	_, aNull := a.(Null)
	_, bNull := b.(Null)
	switch {
	case aNull && bNull:
		return 0, true
	case aNull:
		return -1, true
	case bNull:
		return 1, true
	}

	if as, ok := a.(String); ok {
		bs, ok := b.(String)
		if !ok {
			return 0, false
		}
		return strings.Compare(string(as), string(bs)), true
	}
	if _, ok := b.(String); ok {
		return 0, false
	}

	// Dates against datetimes scale to seconds.
	if ad, ok := a.(Date); ok {
		if bt, ok := b.(DateTime); ok {
			return cmp.Compare(int64(ad)*secondsPerDay, int64(bt)), true
		}
	}
	if at, ok := a.(DateTime); ok {
		if bd, ok := b.(Date); ok {
			return cmp.Compare(int64(at), int64(bd)*secondsPerDay), true
		}
	}

	an, ok := toNumber(a)
	if !ok {
		return 0, false
	}
	bn, ok := toNumber(b)
	if !ok {
		return 0, false
	}
	return compareNumbers(an, bn)
}

// Less reports a < b, false when incomparable.
func Less(a, b Value) bool {
	c, ok := Compare(a, b)
	return ok && c < 0
}

// Equal reports a == b, false when incomparable.
func Equal(a, b Value) bool {
	c, ok := Compare(a, b)
	return ok && c == 0
}

// CompareTuples orders key tuples lexicographically. A shorter tuple that is
// a prefix of a longer one sorts first.
func CompareTuples(a, b []Value) (int, bool) {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		c, ok := Compare(a[i], b[i])
		if !ok {
			return 0, false
		}
		if c != 0 {
			return c, true
		}
	}
	return cmp.Compare(len(a), len(b)), true
}

type numKind uint8

const (
	numInt numKind = iota
	numUint
	numFloat
)

type number struct {
	kind numKind
	i    int64
	u    uint64
	f    float64
}

func toNumber(v Value) (number, bool) {
	switch val := v.(type) {
	case Int:
		return number{kind: numInt, i: int64(val)}, true
	case UInt:
		return number{kind: numUint, u: uint64(val)}, true
	case Float:
		if math.IsNaN(float64(val)) {
			return number{}, false
		}
		return number{kind: numFloat, f: float64(val)}, true
	case Bool:
		if val {
			return number{kind: numInt, i: 1}, true
		}
		return number{kind: numInt, i: 0}, true
	case Date:
		return number{kind: numInt, i: int64(val)}, true
	case DateTime:
		return number{kind: numInt, i: int64(val)}, true
	}
	return number{}, false
}

func compareNumbers(a, b number) (int, bool) {
	switch {
	case a.kind == numInt && b.kind == numInt:
		return cmp.Compare(a.i, b.i), true
	case a.kind == numUint && b.kind == numUint:
		return cmp.Compare(a.u, b.u), true
	case a.kind == numInt && b.kind == numUint:
		if a.i < 0 {
			return -1, true
		}
		return cmp.Compare(uint64(a.i), b.u), true
	case a.kind == numUint && b.kind == numInt:
		if b.i < 0 {
			return 1, true
		}
		return cmp.Compare(a.u, uint64(b.i)), true
	case a.kind == numFloat && b.kind == numFloat:
		return cmp.Compare(a.f, b.f), true
	case a.kind == numFloat:
		c, ok := compareNumbers(b, a)
		return -c, ok
	}

	// a is an integer, b a float.
	if math.IsInf(b.f, 1) {
		return -1, true
	}
	if math.IsInf(b.f, -1) {
		return 1, true
	}
	fl := math.Floor(b.f)
	// Integers beyond ±2^63 compare by magnitude.
	if fl >= 1<<63 {
		if a.kind == numUint && fl < 1<<64 {
			if c := cmp.Compare(a.u, uint64(fl)); c != 0 {
				return c, true
			}
			return cmpFraction(b.f, fl), true
		}
		return -1, true
	}
	if fl < -(1 << 63) {
		return 1, true
	}
	whole := int64(fl)
	var c int
	if a.kind == numUint {
		if whole < 0 {
			return 1, true
		}
		c = cmp.Compare(a.u, uint64(whole))
	} else {
		c = cmp.Compare(a.i, whole)
	}
	if c != 0 {
		return c, true
	}
	return cmpFraction(b.f, fl), true
}

// cmpFraction finishes an integer/float comparison whose integral parts are
// equal: the integer is smaller when the float has a fractional part.
func cmpFraction(f, floor float64) int {
	if f > floor {
		return -1
	}
	return 0
}
