package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/keycond/internal/ir"
	q "github.com/roach88/keycond/internal/queryir"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"conjunction", "k > 10 && k < 20", "k > 10 AND k < 20"},
		{"and inside or", `k == 1 && s == "a" || x < 3`, "k = 1 AND s = 'a' OR x < 3"},
		{"or inside and", "(k == 1 || k == 2) && x < 3", "(k = 1 OR k = 2) AND x < 3"},
		{"not", "!(k == 1 && x == 2)", "NOT (k = 1 AND x = 2)"},
		{"not comparison", "!(k == 1)", "NOT k = 1"},
		{"right operand", "k - (x - 1) > 0", "k - (x - 1) > 0"},
		{"left operand", "(k - x) - 1 > 0", "k - x - 1 > 0"},
		{"product", "(k + 1) * 2 == 4", "(k + 1) * 2 = 4"},
		{"in", "isIn(k, [3, 7])", "k IN (3, 7)"},
		{"not in tuple", `notIn([k, s], [[1, "a"]])`, "(k, s) NOT IN ((1, 'a'))"},
		{"like", `like(s, "ab%")`, "s LIKE 'ab%'"},
		{"call", "toYYYYMM(d) == 202001", "toYYYYMM(d) = 202001"},
		{"negate", "-k > 3", "-k > 3"},
		{"negate sum", "-(k + 1) > 3", "-(k + 1) > 3"},
		{"function", `startsWith(s, "ab")`, "startsWith(s, 'ab')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(MustParse(tt.text)))
		})
	}
}

func TestFormatSubqueryAndNil(t *testing.T) {
	e := q.Fn("in", q.Col("k"), q.Subquery{Name: "ids", Types: []ir.Type{ir.TypeInt64}})
	assert.Equal(t, "k IN (SELECT ... FROM ids)", Format(e))
	assert.Equal(t, "", Format(nil))
}
