package ir

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Value is a sealed interface over the scalar column values the engine
// reasons about. Only Null, Int, UInt, Float, String, Bool, Date and
// DateTime implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null represents an SQL NULL literal.
type Null struct{}

func (Null) irValue() {}

// Int is a signed integer value.
type Int int64

func (Int) irValue() {}

// UInt is an unsigned integer value.
type UInt uint64

func (UInt) irValue() {}

// Float is a floating point value. NaN has no order and never compares.
type Float float64

func (Float) irValue() {}

// String is a byte string compared lexicographically.
type String string

func (String) irValue() {}

// Bool is a boolean value. It orders as 0/1 against numbers.
type Bool bool

func (Bool) irValue() {}

// Date is a calendar day stored as days since 1970-01-01.
type Date int32

func (Date) irValue() {}

// DateTime is a UTC instant stored as seconds since the Unix epoch.
type DateTime int64

func (DateTime) irValue() {}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
	secondsPerDay  = 86400
)

// DateOf returns the Date containing t (in UTC).
func DateOf(t time.Time) Date {
	secs := t.UTC().Unix()
	days := secs / secondsPerDay
	if secs%secondsPerDay < 0 {
		days--
	}
	return Date(days)
}

// ParseDate parses a YYYY-MM-DD literal.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// ParseDateTime parses a "YYYY-MM-DD hh:mm:ss" literal. A bare date is
// accepted as midnight.
func ParseDateTime(s string) (DateTime, error) {
	if t, err := time.ParseInLocation(dateTimeLayout, s, time.UTC); err == nil {
		return DateTime(t.Unix()), nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("invalid datetime %q", s)
	}
	return DateTime(t.Unix()), nil
}

// Time returns the midnight instant of the day.
func (d Date) Time() time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

// Time returns the instant as a UTC time.
func (dt DateTime) Time() time.Time {
	return time.Unix(int64(dt), 0).UTC()
}

// TypeOf reports the column type a value naturally belongs to.
func TypeOf(v Value) Type {
	switch v.(type) {
	case Int:
		return TypeInt64
	case UInt:
		return TypeUInt64
	case Float:
		return TypeFloat64
	case String:
		return TypeString
	case Bool:
		return TypeBool
	case Date:
		return TypeDate
	case DateTime:
		return TypeDateTime
	default:
		return TypeNothing
	}
}

// FormatValue renders a value as an SQL literal: numbers bare, strings and
// dates single-quoted.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "NULL"
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case UInt:
		return strconv.FormatUint(uint64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case String:
		return quote(string(val))
	case Bool:
		if val {
			return "true"
		}
		return "false"
	case Date:
		return quote(val.Time().Format(dateLayout))
	case DateTime:
		return quote(val.Time().Format(dateTimeLayout))
	default:
		return fmt.Sprintf("%v", v)
	}
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		if r == '\'' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
	return b.String()
}

// ToGo returns the plain Go representation used in JSON documents and the
// part store. Dates and datetimes become their text literals.
func ToGo(v Value) any {
	switch val := v.(type) {
	case Int:
		return int64(val)
	case UInt:
		return uint64(val)
	case Float:
		return float64(val)
	case String:
		return string(val)
	case Bool:
		return bool(val)
	case Date:
		return val.Time().Format(dateLayout)
	case DateTime:
		return val.Time().Format(dateTimeLayout)
	default:
		return nil
	}
}

// TupleToGo converts a key tuple with ToGo.
func TupleToGo(tuple []Value) []any {
	out := make([]any, len(tuple))
	for i, v := range tuple {
		out[i] = ToGo(v)
	}
	return out
}
