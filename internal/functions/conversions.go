package functions

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roach88/keycond/internal/ir"
)

func init() {
	register(
		&Definition{
			Name:         "negate",
			Arity:        1,
			ReturnType:   negateType,
			Eval:         unary(negate),
			Monotonicity: func(*Bound, ir.ExtValue, ir.ExtValue) Monotonicity { return alwaysDecreasing },
		},
		&Definition{
			Name:         "abs",
			Arity:        1,
			ReturnType:   absType,
			Eval:         unary(abs),
			Monotonicity: absMonotonicity,
		},
		&Definition{
			Name:         "toInt64",
			Arity:        1,
			ReturnType:   fixedType(ir.TypeInt64, ir.TypeInt64, ir.TypeUInt64, ir.TypeFloat64, ir.TypeBool, ir.TypeDate, ir.TypeDateTime, ir.TypeString),
			Eval:         unary(toInt64),
			Monotonicity: toInt64Monotonicity,
		},
		&Definition{
			Name:         "toUInt64",
			Arity:        1,
			ReturnType:   fixedType(ir.TypeUInt64, ir.TypeInt64, ir.TypeUInt64, ir.TypeFloat64, ir.TypeBool, ir.TypeDate, ir.TypeDateTime, ir.TypeString),
			Eval:         unary(toUInt64),
			Monotonicity: toUInt64Monotonicity,
		},
		&Definition{
			Name:         "toFloat64",
			Arity:        1,
			ReturnType:   fixedType(ir.TypeFloat64, ir.TypeInt64, ir.TypeUInt64, ir.TypeFloat64, ir.TypeBool, ir.TypeDate, ir.TypeDateTime, ir.TypeString),
			Eval:         unary(toFloat64),
			Monotonicity: numericSourceMonotonicity,
		},
		&Definition{
			Name:         "toDate",
			Arity:        1,
			ReturnType:   fixedType(ir.TypeDate, ir.TypeDate, ir.TypeDateTime, ir.TypeString),
			Eval:         unary(toDate),
			Monotonicity: temporalSourceMonotonicity,
		},
		&Definition{
			Name:         "toDateTime",
			Arity:        1,
			ReturnType:   fixedType(ir.TypeDateTime, ir.TypeDate, ir.TypeDateTime, ir.TypeInt64, ir.TypeUInt64, ir.TypeString),
			Eval:         unary(toDateTime),
			Monotonicity: toDateTimeMonotonicity,
		},
		&Definition{
			Name:         "toStartOfMonth",
			Arity:        1,
			ReturnType:   fixedType(ir.TypeDate, ir.TypeDate, ir.TypeDateTime),
			Eval:         calendar(func(t time.Time) ir.Value { return ir.DateOf(time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)) }),
			Monotonicity: temporalSourceMonotonicity,
		},
		&Definition{
			Name:         "toYYYYMM",
			Arity:        1,
			ReturnType:   fixedType(ir.TypeUInt64, ir.TypeDate, ir.TypeDateTime),
			Eval:         calendar(func(t time.Time) ir.Value { return ir.UInt(t.Year()*100 + int(t.Month())) }),
			Monotonicity: temporalSourceMonotonicity,
		},
		&Definition{
			Name:         "toYear",
			Arity:        1,
			ReturnType:   fixedType(ir.TypeUInt64, ir.TypeDate, ir.TypeDateTime),
			Eval:         calendar(func(t time.Time) ir.Value { return ir.UInt(t.Year()) }),
			Monotonicity: temporalSourceMonotonicity,
		},
		&Definition{
			Name:         "toMonth",
			Arity:        1,
			ReturnType:   fixedType(ir.TypeUInt64, ir.TypeDate, ir.TypeDateTime),
			Eval:         calendar(func(t time.Time) ir.Value { return ir.UInt(t.Month()) }),
			Monotonicity: sameYearMonotonicity,
		},
		&Definition{
			Name:         "toDayOfWeek",
			Arity:        1,
			ReturnType:   fixedType(ir.TypeUInt64, ir.TypeDate, ir.TypeDateTime),
			Eval:         calendar(func(t time.Time) ir.Value { return ir.UInt(isoWeekday(t)) }),
			Monotonicity: sameWeekMonotonicity,
		},
	)
}

func unary(fn func(ir.Value) (ir.Value, error)) func([]ir.Value) (ir.Value, error) {
	return func(args []ir.Value) (ir.Value, error) {
		if len(args) != 1 {
			return nil, errors.New("function takes 1 argument")
		}
		return fn(args[0])
	}
}

func negateType(args []ir.Type) (ir.Type, error) {
	switch args[0] {
	case ir.TypeFloat64:
		return ir.TypeFloat64, nil
	case ir.TypeInt64, ir.TypeUInt64, ir.TypeBool:
		return ir.TypeInt64, nil
	}
	return "", fmt.Errorf("illegal type %s of argument of negate", args[0])
}

func negate(v ir.Value) (ir.Value, error) {
	if f, ok := v.(ir.Float); ok {
		return -f, nil
	}
	if u, ok := v.(ir.UInt); ok && uint64(u) == 1<<63 {
		return ir.Int(math.MinInt64), nil
	}
	n, err := asInt(v)
	if err != nil {
		return nil, err
	}
	if n == math.MinInt64 {
		return nil, errOverflow
	}
	return ir.Int(-n), nil
}

func absType(args []ir.Type) (ir.Type, error) {
	switch args[0] {
	case ir.TypeFloat64:
		return ir.TypeFloat64, nil
	case ir.TypeInt64, ir.TypeUInt64, ir.TypeBool:
		return ir.TypeUInt64, nil
	}
	return "", fmt.Errorf("illegal type %s of argument of abs", args[0])
}

func abs(v ir.Value) (ir.Value, error) {
	switch val := v.(type) {
	case ir.Float:
		return ir.Float(math.Abs(float64(val))), nil
	case ir.UInt:
		return val, nil
	case ir.Int:
		if val < 0 {
			return ir.UInt(uint64(-(val + 1)) + 1), nil
		}
		return ir.UInt(val), nil
	case ir.Bool:
		return ir.Convert(val, ir.TypeUInt64)
	}
	return nil, fmt.Errorf("illegal argument of abs: %s", ir.FormatValue(v))
}

// absMonotonicity: rising on [0, +inf), falling on (-inf, 0].
func absMonotonicity(b *Bound, left, right ir.ExtValue) Monotonicity {
	if isUnsigned(b.ArgType()) {
		return alwaysIncreasing
	}
	if s, ok := extSign(left); ok && s >= 0 {
		return rangeIncreasing
	}
	if s, ok := extSign(right); ok && s <= 0 {
		return rangeDecreasing
	}
	return notMonotonic
}

func toInt64(v ir.Value) (ir.Value, error) {
	switch val := v.(type) {
	case ir.Float:
		f := math.Trunc(float64(val))
		if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, errOverflow
		}
		return ir.Int(int64(f)), nil
	case ir.String:
		return ir.Convert(val, ir.TypeInt64)
	}
	n, err := asInt(v)
	if err != nil {
		return nil, err
	}
	return ir.Int(n), nil
}

func toUInt64(v ir.Value) (ir.Value, error) {
	switch val := v.(type) {
	case ir.Float:
		f := math.Trunc(float64(val))
		if math.IsNaN(f) || f < 0 || f >= math.MaxUint64 {
			return nil, errOverflow
		}
		return ir.UInt(uint64(f)), nil
	case ir.UInt:
		return val, nil
	case ir.String:
		return ir.Convert(val, ir.TypeUInt64)
	}
	n, err := asInt(v)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errOverflow
	}
	return ir.UInt(n), nil
}

func toFloat64(v ir.Value) (ir.Value, error) {
	if s, ok := v.(ir.String); ok {
		return ir.Convert(s, ir.TypeFloat64)
	}
	f, err := asFloat(v)
	if err != nil {
		return nil, err
	}
	return ir.Float(f), nil
}

func toDate(v ir.Value) (ir.Value, error) {
	switch val := v.(type) {
	case ir.Date:
		return val, nil
	case ir.DateTime:
		return ir.DateOf(val.Time()), nil
	case ir.String:
		return ir.ParseDate(string(val))
	}
	return nil, fmt.Errorf("illegal argument of toDate: %s", ir.FormatValue(v))
}

func toDateTime(v ir.Value) (ir.Value, error) {
	return ir.Convert(v, ir.TypeDateTime)
}

// numericSourceMonotonicity: conversions that preserve the order of any
// number; string sources sort differently from the numbers they parse to.
func numericSourceMonotonicity(b *Bound, _, _ ir.ExtValue) Monotonicity {
	if b.ArgType() == ir.TypeString {
		return notMonotonic
	}
	return alwaysIncreasing
}

func temporalSourceMonotonicity(b *Bound, _, _ ir.ExtValue) Monotonicity {
	if isTemporal(b.ArgType()) {
		return alwaysIncreasing
	}
	return notMonotonic
}

func toDateTimeMonotonicity(b *Bound, _, _ ir.ExtValue) Monotonicity {
	if b.ArgType() == ir.TypeString {
		return notMonotonic
	}
	return alwaysIncreasing
}

// inRange reports whether both bounds are finite and within [lo, hi].
func inRange(left, right ir.ExtValue, lo, hi ir.Value) bool {
	if left.IsInfinite() || right.IsInfinite() {
		return false
	}
	c1, ok1 := ir.Compare(left.Value, lo)
	c2, ok2 := ir.Compare(right.Value, hi)
	return ok1 && ok2 && c1 >= 0 && c2 <= 0
}

func toInt64Monotonicity(b *Bound, left, right ir.ExtValue) Monotonicity {
	switch b.ArgType() {
	case ir.TypeInt64, ir.TypeBool, ir.TypeDate, ir.TypeDateTime:
		return alwaysIncreasing
	case ir.TypeUInt64:
		if inRange(left, right, ir.UInt(0), ir.UInt(math.MaxInt64)) {
			return rangeIncreasing
		}
	case ir.TypeFloat64:
		if inRange(left, right, ir.Float(math.MinInt64), ir.Float(math.MaxInt64/2)) {
			return rangeIncreasing
		}
	}
	return notMonotonic
}

func toUInt64Monotonicity(b *Bound, left, right ir.ExtValue) Monotonicity {
	switch b.ArgType() {
	case ir.TypeUInt64, ir.TypeBool:
		return alwaysIncreasing
	case ir.TypeInt64, ir.TypeDate, ir.TypeDateTime:
		if s, ok := extSign(left); ok && s >= 0 {
			return rangeIncreasing
		}
	case ir.TypeFloat64:
		if inRange(left, right, ir.Float(0), ir.Float(math.MaxUint64/2)) {
			return rangeIncreasing
		}
	}
	return notMonotonic
}

func calendar(fn func(time.Time) ir.Value) func([]ir.Value) (ir.Value, error) {
	return unary(func(v ir.Value) (ir.Value, error) {
		t, ok := asTime(v)
		if !ok {
			return nil, fmt.Errorf("expected Date or DateTime, got %s", ir.FormatValue(v))
		}
		return fn(t), nil
	})
}

func asTime(v ir.Value) (time.Time, bool) {
	switch val := v.(type) {
	case ir.Date:
		return val.Time(), true
	case ir.DateTime:
		return val.Time(), true
	}
	return time.Time{}, false
}

// isoWeekday numbers Monday as 1 and Sunday as 7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func boundTimes(left, right ir.ExtValue) (time.Time, time.Time, bool) {
	if left.IsInfinite() || right.IsInfinite() {
		return time.Time{}, time.Time{}, false
	}
	l, ok1 := asTime(left.Value)
	r, ok2 := asTime(right.Value)
	return l, r, ok1 && ok2
}

// sameYearMonotonicity: the month number only rises within one year.
func sameYearMonotonicity(b *Bound, left, right ir.ExtValue) Monotonicity {
	l, r, ok := boundTimes(left, right)
	if !ok || l.Year() != r.Year() {
		return notMonotonic
	}
	return rangeIncreasing
}

// sameWeekMonotonicity: the weekday only rises within one Monday-based week.
func sameWeekMonotonicity(b *Bound, left, right ir.ExtValue) Monotonicity {
	l, r, ok := boundTimes(left, right)
	if !ok {
		return notMonotonic
	}
	weekStart := func(t time.Time) int64 {
		d := int64(ir.DateOf(t))
		return d - int64(isoWeekday(t)-1)
	}
	if weekStart(l) != weekStart(r) {
		return notMonotonic
	}
	return rangeIncreasing
}
