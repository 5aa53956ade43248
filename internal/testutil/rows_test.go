package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequence_At(t *testing.T) {
	s := Sequence{From: 10, Step: 2}
	assert.Equal(t, int64(10), s.At(0))
	assert.Equal(t, int64(12), s.At(1))
	assert.Equal(t, int64(20), s.At(5))
}

func TestSequence_Every(t *testing.T) {
	s := Sequence{From: 0, Step: 1, Every: 3}
	got := make([]any, 7)
	for i := range got {
		got[i] = s.At(i)
	}
	assert.Equal(t, []any{int64(0), int64(0), int64(0), int64(1), int64(1), int64(1), int64(2)}, got)
}

func TestSequence_NegativeStep(t *testing.T) {
	s := Sequence{From: 5, Step: -5}
	assert.Equal(t, int64(-5), s.At(2))
}

func TestCycle_At(t *testing.T) {
	c := Cycle{Values: []any{"a", "b", "c"}}
	assert.Equal(t, "a", c.At(0))
	assert.Equal(t, "c", c.At(2))
	assert.Equal(t, "b", c.At(4))

	assert.Nil(t, Cycle{}.At(3))
}

func TestRows_Deterministic(t *testing.T) {
	cols := map[string]Generator{
		"k": Sequence{From: 1, Step: 1},
		"s": Cycle{Values: []any{"x", "y"}},
		"d": Const{Value: "2024-01-01"},
	}
	first := Rows(4, cols)
	second := Rows(4, cols)

	assert.Equal(t, first, second)
	assert.Len(t, first, 4)
	assert.Equal(t, map[string]any{"k": int64(4), "s": "y", "d": "2024-01-01"}, first[3])
}

func TestRows_Empty(t *testing.T) {
	assert.Empty(t, Rows(0, map[string]Generator{"k": Const{Value: 1}}))
}
