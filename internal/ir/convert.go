package ir

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/spf13/cast"
)

// Convert converts v to the column type t without losing information.
// Conversions that would round, truncate or overflow fail; a failed
// conversion means the engine cannot reason about the constant and must
// fall back to "unknown".
func Convert(v Value, t Type) (Value, error) {
	if _, ok := v.(Null); ok || v == nil {
		return nil, fmt.Errorf("cannot convert NULL to %s", t)
	}
	switch t {
	case TypeInt64:
		return toInt(v)
	case TypeUInt64:
		return toUInt(v)
	case TypeFloat64:
		return toFloat(v)
	case TypeString:
		if s, ok := v.(String); ok {
			return s, nil
		}
	case TypeBool:
		return toBool(v)
	case TypeDate:
		return toDate(v)
	case TypeDateTime:
		return toDateTime(v)
	}
	return nil, fmt.Errorf("cannot convert %s to %s", FormatValue(v), t)
}

func toInt(v Value) (Value, error) {
	switch val := v.(type) {
	case Int:
		return val, nil
	case UInt:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("value %d overflows Int64", val)
		}
		return Int(val), nil
	case Float:
		f := float64(val)
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, fmt.Errorf("value %v is not an exact Int64", f)
		}
		return Int(int64(f)), nil
	case Bool:
		if val {
			return Int(1), nil
		}
		return Int(0), nil
	case Date:
		return Int(val), nil
	case DateTime:
		return Int(val), nil
	case String:
		n, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as Int64", string(val))
		}
		return Int(n), nil
	}
	return nil, fmt.Errorf("cannot convert %T to Int64", v)
}

func toUInt(v Value) (Value, error) {
	switch val := v.(type) {
	case UInt:
		return val, nil
	case Int:
		if val < 0 {
			return nil, fmt.Errorf("value %d is negative", val)
		}
		return UInt(val), nil
	case Float:
		f := float64(val)
		if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
			return nil, fmt.Errorf("value %v is not an exact UInt64", f)
		}
		return UInt(uint64(f)), nil
	case Bool:
		if val {
			return UInt(1), nil
		}
		return UInt(0), nil
	case Date:
		if val < 0 {
			return nil, fmt.Errorf("date before epoch")
		}
		return UInt(val), nil
	case DateTime:
		if val < 0 {
			return nil, fmt.Errorf("datetime before epoch")
		}
		return UInt(val), nil
	case String:
		n, err := strconv.ParseUint(string(val), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as UInt64", string(val))
		}
		return UInt(n), nil
	}
	return nil, fmt.Errorf("cannot convert %T to UInt64", v)
}

const maxExactFloatInt = 1 << 53

func toFloat(v Value) (Value, error) {
	switch val := v.(type) {
	case Float:
		return val, nil
	case Int:
		if val > maxExactFloatInt || val < -maxExactFloatInt {
			return nil, fmt.Errorf("value %d is not exact in Float64", val)
		}
		return Float(val), nil
	case UInt:
		if val > maxExactFloatInt {
			return nil, fmt.Errorf("value %d is not exact in Float64", val)
		}
		return Float(val), nil
	case Bool:
		if val {
			return Float(1), nil
		}
		return Float(0), nil
	case String:
		f, err := strconv.ParseFloat(string(val), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as Float64", string(val))
		}
		return Float(f), nil
	}
	return nil, fmt.Errorf("cannot convert %T to Float64", v)
}

func toBool(v Value) (Value, error) {
	switch val := v.(type) {
	case Bool:
		return val, nil
	case Int:
		if val == 0 || val == 1 {
			return Bool(val == 1), nil
		}
	case UInt:
		if val == 0 || val == 1 {
			return Bool(val == 1), nil
		}
	case String:
		b, err := strconv.ParseBool(string(val))
		if err == nil {
			return Bool(b), nil
		}
	}
	return nil, fmt.Errorf("cannot convert %s to Bool", FormatValue(v))
}

func toDate(v Value) (Value, error) {
	switch val := v.(type) {
	case Date:
		return val, nil
	case DateTime:
		// Only midnight converts exactly.
		if int64(val)%secondsPerDay != 0 {
			return nil, fmt.Errorf("datetime %s is not a whole day", FormatValue(val))
		}
		return Date(int64(val) / secondsPerDay), nil
	case String:
		return ParseDate(string(val))
	case Int:
		if val < math.MinInt32 || val > math.MaxInt32 {
			return nil, fmt.Errorf("day number %d out of range", val)
		}
		return Date(val), nil
	case UInt:
		if val > math.MaxInt32 {
			return nil, fmt.Errorf("day number %d out of range", val)
		}
		return Date(val), nil
	}
	return nil, fmt.Errorf("cannot convert %T to Date", v)
}

func toDateTime(v Value) (Value, error) {
	switch val := v.(type) {
	case DateTime:
		return val, nil
	case Date:
		return DateTime(int64(val) * secondsPerDay), nil
	case String:
		return ParseDateTime(string(val))
	case Int:
		return DateTime(val), nil
	case UInt:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("timestamp %d out of range", val)
		}
		return DateTime(val), nil
	}
	return nil, fmt.Errorf("cannot convert %T to DateTime", v)
}

// FromGo converts a decoded YAML/JSON scalar into a Value of type t.
// Strings are parsed for numeric and temporal types; time.Time values are
// accepted for Date and DateTime.
func FromGo(raw any, t Type) (Value, error) {
	if raw == nil {
		return Null{}, nil
	}
	if v, ok := raw.(Value); ok {
		return Convert(v, t)
	}
	switch t {
	case TypeInt64:
		n, err := cast.ToInt64E(raw)
		if err != nil {
			return nil, err
		}
		return Int(n), nil
	case TypeUInt64:
		if n, ok := raw.(int); ok && n < 0 {
			return nil, fmt.Errorf("value %d is negative", n)
		}
		n, err := cast.ToUint64E(raw)
		if err != nil {
			return nil, err
		}
		return UInt(n), nil
	case TypeFloat64:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return nil, err
		}
		return Float(f), nil
	case TypeString:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case TypeBool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return nil, err
		}
		return Bool(b), nil
	case TypeDate:
		if s, ok := raw.(string); ok {
			return ParseDate(s)
		}
		tm, err := cast.ToTimeInDefaultLocationE(raw, time.UTC)
		if err != nil {
			return nil, err
		}
		return DateOf(tm), nil
	case TypeDateTime:
		if s, ok := raw.(string); ok {
			return ParseDateTime(s)
		}
		tm, err := cast.ToTimeInDefaultLocationE(raw, time.UTC)
		if err != nil {
			return nil, err
		}
		return DateTime(tm.Unix()), nil
	}
	return nil, fmt.Errorf("unsupported column type %q", t)
}

// TupleFromGo converts a decoded tuple column by column.
func TupleFromGo(raw []any, types []Type) ([]Value, error) {
	if len(raw) > len(types) {
		return nil, fmt.Errorf("tuple has %d elements, only %d types", len(raw), len(types))
	}
	out := make([]Value, len(raw))
	for i, r := range raw {
		v, err := FromGo(r, types[i])
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
