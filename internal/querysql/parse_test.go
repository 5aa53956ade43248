package querysql

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keycond/internal/ir"
	q "github.com/roach88/keycond/internal/queryir"
)

func TestParse(t *testing.T) {
	k, s, x := q.Col("k"), q.Col("s"), q.Col("x")
	i := func(v int64) q.Expr { return q.Lit(ir.Int(v)) }
	str := func(v string) q.Expr { return q.Lit(ir.String(v)) }

	tests := []struct {
		name string
		text string
		want q.Expr
	}{
		{"comparison", "k > 10", q.Fn("greater", k, i(10))},
		{"negative literal", "k >= -5", q.Fn("greaterOrEquals", k, i(-5))},
		{"not equals", `s != "a"`, q.Fn("notEquals", s, str("a"))},
		{"single quoted", `s == 'ab%'`, q.Fn("equals", s, str("ab%"))},
		{"flat and", `k == 1 && s == "a" && x < 3`, q.Fn("and", q.Fn("equals", k, i(1)), q.Fn("equals", s, str("a")), q.Fn("less", x, i(3)))},
		{"or", "k == 1 || k == 2", q.Fn("or", q.Fn("equals", k, i(1)), q.Fn("equals", k, i(2)))},
		{"precedence", "k == 1 || k == 2 && x < 3", q.Fn("or", q.Fn("equals", k, i(1)), q.Fn("and", q.Fn("equals", k, i(2)), q.Fn("less", x, i(3))))},
		{"parentheses", "(k == 1 || k == 2) && x < 3", q.Fn("and", q.Fn("or", q.Fn("equals", k, i(1)), q.Fn("equals", k, i(2))), q.Fn("less", x, i(3)))},
		{"not", "!(k == 1)", q.Fn("not", q.Fn("equals", k, i(1)))},
		{"call", `toDate(ts) == "2020-01-01"`, q.Fn("equals", q.Fn("toDate", q.Col("ts")), str("2020-01-01"))},
		{"arithmetic", "k * 2 + 1 > 10", q.Fn("greater", q.Fn("plus", q.Fn("multiply", k, i(2)), i(1)), i(10))},
		{"div and mod", "k div 3 == k mod 2", q.Fn("equals", q.Fn("intDiv", k, i(3)), q.Fn("modulo", k, i(2)))},
		{"negate column", "-k < 3", q.Fn("less", q.Fn("negate", k), i(3))},
		{"float", "1.5 < k", q.Fn("less", q.Lit(ir.Float(1.5)), k)},
		{"hex", "0x10 == k", q.Fn("equals", i(16), k)},
		{"unsigned", "18446744073709551615 == k", q.Fn("equals", q.Lit(ir.UInt(math.MaxUint64)), k)},
		{"null", "k == null", q.Fn("equals", k, q.Lit(ir.Null{}))},
		{"bool", "true", q.Lit(ir.Bool(true))},
		{"isIn", "isIn(k, [3, 7, 50])", q.Fn("in", k, q.Tup(i(3), i(7), i(50)))},
		{"notIn tuple", `notIn([k, s], [[1, "a"], [2, "b"]])`, q.Fn("notIn", q.Tup(k, s), q.Tup(q.Tup(i(1), str("a")), q.Tup(i(2), str("b"))))},
		{"like", `like(s, "ab%")`, q.Fn("like", s, str("ab%"))},
		{"qualified column", "t.k == 1", q.Fn("equals", q.Col("t.k"), i(1))},
		{"indexHint", "indexHint(k > 1)", q.Fn("indexHint", q.Fn("greater", k, i(1)))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	got, err := Parse("   ")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParseSubquery(t *testing.T) {
	banned := q.Subquery{Name: "banned", Types: []ir.Type{ir.TypeInt64}, Rows: [][]ir.Value{{ir.Int(1)}}}

	got, err := Parse(`notIn(k, subquery("banned"))`, WithSubquery(banned))
	require.NoError(t, err)
	assert.Equal(t, q.Fn("notIn", q.Col("k"), banned), got)

	_, err = Parse(`notIn(k, subquery("other"))`, WithSubquery(banned))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown subquery "other"`)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"unification", "k & 1"},
		{"incomplete", "k =="},
		{"struct", "{a: 1}"},
		{"integer overflow", "99999999999999999999999 == k"},
		{"subquery without name", "isIn(k, subquery())"},
		{"computed function", "(f)(k)"},
		{"deep selector", "a.b.c == 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			assert.Error(t, err)
		})
	}
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("k &") })
	assert.NotPanics(t, func() { MustParse("k > 1") })
}
