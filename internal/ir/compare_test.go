package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
		ok   bool
	}{
		{"ints", Int(1), Int(2), -1, true},
		{"int vs uint", Int(-1), UInt(0), -1, true},
		{"uint vs int", UInt(math.MaxUint64), Int(math.MaxInt64), 1, true},
		{"int vs float fraction", Int(10), Float(10.5), -1, true},
		{"int vs float equal", Int(10), Float(10), 0, true},
		{"float vs int", Float(10.5), Int(10), 1, true},
		{"int vs +inf float", Int(math.MaxInt64), Float(math.Inf(1)), -1, true},
		{"uint vs huge float", UInt(math.MaxUint64), Float(1e30), -1, true},
		{"bool vs int", Bool(true), Int(1), 0, true},
		{"strings", String("abc"), String("abd"), -1, true},
		{"date vs datetime", Date(1), DateTime(86400), 0, true},
		{"datetime vs date", DateTime(86401), Date(1), 1, true},
		{"date vs int", Date(5), Int(5), 0, true},
		{"null first", Null{}, Int(math.MinInt64), -1, true},
		{"string vs int", String("1"), Int(1), 0, false},
		{"nan", Float(math.NaN()), Float(1), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Compare(tt.a, tt.b)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCompareAntisymmetric(t *testing.T) {
	values := []Value{Int(-3), Int(0), UInt(2), Float(2.5), Float(-3), Bool(true), Date(3), DateTime(86400 * 2)}
	for _, a := range values {
		for _, b := range values {
			ab, ok1 := Compare(a, b)
			ba, ok2 := Compare(b, a)
			assert.True(t, ok1 && ok2)
			assert.Equal(t, ab, -ba, "%v vs %v", a, b)
		}
	}
}

func TestCompareTuples(t *testing.T) {
	c, ok := CompareTuples([]Value{Int(1), Int(5)}, []Value{Int(1), Int(9)})
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = CompareTuples([]Value{Int(1)}, []Value{Int(1), Int(0)})
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	_, ok = CompareTuples([]Value{String("x")}, []Value{Int(1)})
	assert.False(t, ok)
}

func TestLessEqual(t *testing.T) {
	assert.True(t, Less(Int(1), UInt(2)))
	assert.False(t, Less(String("a"), Int(2)))
	assert.True(t, Equal(UInt(3), Float(3)))
	assert.False(t, Equal(String("3"), Int(3)))
}
