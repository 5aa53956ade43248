package keycond

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/keycond/internal/functions"
	"github.com/roach88/keycond/internal/ir"
	q "github.com/roach88/keycond/internal/queryir"
)

// predGen produces random predicates over key columns k and x.
type predGen struct {
	rng *rand.Rand
}

var relations = []string{"equals", "notEquals", "less", "lessOrEquals", "greater", "greaterOrEquals"}

func (g *predGen) constant() q.Expr {
	return lit(ir.Int(g.rng.Int64N(41) - 20))
}

func (g *predGen) keySide() q.Expr {
	col := q.Col("k")
	if g.rng.IntN(2) == 0 {
		col = q.Col("x")
	}
	switch g.rng.IntN(6) {
	case 0:
		return q.Fn("negate", col)
	case 1:
		return q.Fn("plus", col, lit(ir.Int(3)))
	case 2:
		return q.Fn("intDiv", col, lit(ir.Int(3)))
	case 3:
		return q.Fn("abs", col)
	default:
		return col
	}
}

func (g *predGen) atom() q.Expr {
	if g.rng.IntN(5) == 0 {
		n := 1 + g.rng.IntN(3)
		elems := make([]q.Expr, n)
		for i := range elems {
			elems[i] = g.constant()
		}
		op := "in"
		if g.rng.IntN(2) == 0 {
			op = "notIn"
		}
		return q.Fn(op, g.keySide(), q.Tup(elems...))
	}
	rel := relations[g.rng.IntN(len(relations))]
	if g.rng.IntN(4) == 0 {
		return q.Fn(rel, g.constant(), g.keySide())
	}
	return q.Fn(rel, g.keySide(), g.constant())
}

func (g *predGen) pred(depth int) q.Expr {
	if depth == 0 || g.rng.IntN(3) == 0 {
		return g.atom()
	}
	switch g.rng.IntN(3) {
	case 0:
		return q.Fn("not", g.pred(depth-1))
	case 1:
		return q.Fn("and", g.pred(depth-1), g.pred(depth-1))
	default:
		return q.Fn("or", g.pred(depth-1), g.pred(depth-1))
	}
}

// evalRow computes the predicate for one row.
func evalRow(t *testing.T, e q.Expr, row map[string]ir.Value) bool {
	t.Helper()
	if call, ok := e.(q.Call); ok {
		switch call.Name {
		case "and":
			return evalRow(t, call.Args[0], row) && evalRow(t, call.Args[1], row)
		case "or":
			return evalRow(t, call.Args[0], row) || evalRow(t, call.Args[1], row)
		case "not":
			return !evalRow(t, call.Args[0], row)
		case "in", "notIn":
			got := evalTuple(t, call.Args[0], row)
			found := false
			for _, el := range call.Args[1].(q.Tuple).Elems {
				want := evalTuple(t, el, nil)
				if slices.EqualFunc(got, want, ir.Equal) {
					found = true
				}
			}
			return found == (call.Name == "in")
		case "like", "startsWith":
			v, ok := functions.Eval(call.Args[0], row)
			require.True(t, ok)
			c, ok := functions.Fold(call.Args[1])
			require.True(t, ok)
			str, pattern := string(v.(ir.String)), string(c.(ir.String))
			if call.Name == "startsWith" {
				return strings.HasPrefix(str, pattern)
			}
			return likeMatch(str, pattern)
		}
	}
	v, ok := functions.Eval(e, row)
	require.True(t, ok, q.ColumnName(e))
	b, ok := functions.Truth(v)
	require.True(t, ok)
	return b
}

// evalTuple evaluates e, or each element of e when it is a tuple.
func evalTuple(t *testing.T, e q.Expr, row map[string]ir.Value) []ir.Value {
	t.Helper()
	elems := []q.Expr{e}
	if tup, ok := e.(q.Tuple); ok {
		elems = tup.Elems
	}
	out := make([]ir.Value, len(elems))
	for i, el := range elems {
		v, ok := functions.Eval(el, row)
		require.True(t, ok, q.ColumnName(el))
		out[i] = v
	}
	return out
}

// likeMatch matches s against a LIKE pattern without escapes.
func likeMatch(s, pattern string) bool {
	if pattern == "" {
		return s == ""
	}
	switch pattern[0] {
	case '%':
		for i := 0; i <= len(s); i++ {
			if likeMatch(s[i:], pattern[1:]) {
				return true
			}
		}
		return false
	case '_':
		return s != "" && likeMatch(s[1:], pattern[1:])
	}
	return s != "" && s[0] == pattern[0] && likeMatch(s[1:], pattern[1:])
}

func TestRandomizedSoundness(t *testing.T) {
	ke := newKey(t, q.Col("k"), q.Col("x"))
	rng := rand.New(rand.NewPCG(42, 7))
	gen := &predGen{rng: rng}

	for round := 0; round < 300; round++ {
		pred := gen.pred(3)
		box := mustBuild(t, pred, ke)
		exact := mustBuild(t, pred, ke, WithExactTupleRanges())

		rows := make([][]ir.Value, 40)
		for i := range rows {
			rows[i] = ints(rng.Int64N(41)-20, rng.Int64N(41)-20)
		}
		slices.SortFunc(rows, func(a, b []ir.Value) int {
			c, _ := ir.CompareTuples(a, b)
			return c
		})

		for check := 0; check < 20; check++ {
			i := rng.IntN(len(rows))
			j := i + rng.IntN(len(rows)-i)
			n := rng.IntN(3)
			after := rng.IntN(4) == 0

			anyTrue, anyFalse := false, false
			last := j
			if after {
				last = len(rows) - 1
			}
			for _, r := range rows[i : last+1] {
				if evalRow(t, pred, map[string]ir.Value{"k": r[0], "x": r[1]}) {
					anyTrue = true
				} else {
					anyFalse = true
				}
			}

			for name, kc := range map[string]*KeyCondition{"box": box, "exact": exact} {
				var m ir.BoolMask
				if after {
					m = kc.CheckAfter(n, rows[i], nil)
				} else {
					m = kc.CheckInRange(n, rows[i], rows[j], nil)
				}
				msg := fmt.Sprintf("%s: %s over %v..%v (n=%d, after=%t): %s", name, q.ColumnName(pred), rows[i], rows[j], n, after, kc)
				if anyTrue {
					require.True(t, m.CanBeTrue, msg)
				}
				if anyFalse {
					require.True(t, m.CanBeFalse, msg)
				}
			}
		}
	}
}

// soundnessLayout is a key over source columns together with the atoms
// that are drawn for it.
type soundnessLayout struct {
	name  string
	key   []q.Expr
	row   func(rng *rand.Rand) map[string]ir.Value
	atoms []func(rng *rand.Rand) q.Expr
}

func randRelation(rng *rand.Rand) string {
	return relations[rng.IntN(len(relations))]
}

func randString(rng *rand.Rand, alphabet string, minLen, maxLen int) string {
	b := make([]byte, minLen+rng.IntN(maxLen-minLen+1))
	for i := range b {
		b[i] = alphabet[rng.IntN(len(alphabet))]
	}
	return string(b)
}

// jan1 is 2020-01-01 in days.
const jan1 = 18262

func soundnessLayouts() []soundnessLayout {
	d, x, s := q.Col("d"), q.Col("x"), q.Col("s")
	month := q.Fn("toYYYYMM", d)
	third := q.Fn("intDiv", x, lit(ir.Int(3)))
	intConst := func(rng *rand.Rand) q.Expr { return lit(ir.Int(rng.Int64N(41) - 20)) }

	return []soundnessLayout{
		{
			name: "wrapped key",
			key:  []q.Expr{month, third},
			row: func(rng *rand.Rand) map[string]ir.Value {
				return map[string]ir.Value{"d": ir.Date(jan1 + rng.Int64N(91)), "x": ir.Int(rng.Int64N(41) - 20)}
			},
			atoms: []func(rng *rand.Rand) q.Expr{
				func(rng *rand.Rand) q.Expr {
					return q.Fn(randRelation(rng), d, lit(ir.Date(jan1+rng.Int64N(91))))
				},
				func(rng *rand.Rand) q.Expr { return q.Fn(randRelation(rng), x, intConst(rng)) },
				func(rng *rand.Rand) q.Expr { return q.Fn(randRelation(rng), intConst(rng), x) },
				func(rng *rand.Rand) q.Expr {
					return q.Fn(randRelation(rng), month, lit(ir.UInt(202001+rng.Uint64N(3))))
				},
				func(rng *rand.Rand) q.Expr {
					return q.Fn(randRelation(rng), third, lit(ir.Int(rng.Int64N(15)-7)))
				},
				func(rng *rand.Rand) q.Expr {
					rows := make([]q.Expr, 1+rng.IntN(3))
					for i := range rows {
						rows[i] = q.Tup(lit(ir.UInt(202001+rng.Uint64N(3))), lit(ir.Int(rng.Int64N(15)-7)))
					}
					op := "in"
					if rng.IntN(2) == 0 {
						op = "notIn"
					}
					return q.Fn(op, q.Tup(month, third), q.Tup(rows...))
				},
			},
		},
		{
			name: "string key",
			key:  []q.Expr{s},
			row: func(rng *rand.Rand) map[string]ir.Value {
				return map[string]ir.Value{"s": ir.String(randString(rng, "abc", 0, 3))}
			},
			atoms: []func(rng *rand.Rand) q.Expr{
				func(rng *rand.Rand) q.Expr {
					return q.Fn("like", s, lit(ir.String(randString(rng, "ab%_", 1, 4))))
				},
				func(rng *rand.Rand) q.Expr {
					return q.Fn("like", s, lit(ir.String(randString(rng, "abc", 1, 2)+"%")))
				},
				func(rng *rand.Rand) q.Expr {
					return q.Fn("startsWith", s, lit(ir.String(randString(rng, "abc", 1, 2))))
				},
				func(rng *rand.Rand) q.Expr {
					return q.Fn(randRelation(rng), s, lit(ir.String(randString(rng, "abc", 0, 3))))
				},
			},
		},
		{
			name: "range dependent",
			key:  []q.Expr{d, x},
			row: func(rng *rand.Rand) map[string]ir.Value {
				return map[string]ir.Value{"d": ir.Date(jan1 + rng.Int64N(21)), "x": ir.Int(rng.Int64N(41) - 20)}
			},
			atoms: []func(rng *rand.Rand) q.Expr{
				func(rng *rand.Rand) q.Expr {
					return q.Fn(randRelation(rng), q.Fn("toDayOfWeek", d), lit(ir.UInt(1+rng.Uint64N(7))))
				},
				func(rng *rand.Rand) q.Expr {
					return q.Fn(randRelation(rng), q.Fn("abs", x), lit(ir.UInt(rng.Uint64N(21))))
				},
				func(rng *rand.Rand) q.Expr { return q.Fn(randRelation(rng), q.Fn("negate", x), intConst(rng)) },
				func(rng *rand.Rand) q.Expr {
					return q.Fn(randRelation(rng), d, lit(ir.Date(jan1+rng.Int64N(21))))
				},
			},
		},
	}
}

func layoutPred(rng *rand.Rand, l soundnessLayout, depth int) q.Expr {
	if depth == 0 || rng.IntN(3) == 0 {
		return l.atoms[rng.IntN(len(l.atoms))](rng)
	}
	switch rng.IntN(3) {
	case 0:
		return q.Fn("not", layoutPred(rng, l, depth-1))
	case 1:
		return q.Fn("and", layoutPred(rng, l, depth-1), layoutPred(rng, l, depth-1))
	default:
		return q.Fn("or", layoutPred(rng, l, depth-1), layoutPred(rng, l, depth-1))
	}
}

func TestRandomizedSoundnessOverLayouts(t *testing.T) {
	for _, l := range soundnessLayouts() {
		t.Run(l.name, func(t *testing.T) {
			ke := newKey(t, l.key...)
			rng := rand.New(rand.NewPCG(7, 42))

			type keyedRow struct {
				key []ir.Value
				src map[string]ir.Value
			}
			for round := 0; round < 200; round++ {
				pred := layoutPred(rng, l, 3)
				// Half the rounds check the negated predicate.
				if rng.IntN(2) == 0 {
					pred = q.Fn("not", pred)
				}
				box := mustBuild(t, pred, ke)
				exact := mustBuild(t, pred, ke, WithExactTupleRanges())

				rows := make([]keyedRow, 40)
				for i := range rows {
					src := l.row(rng)
					key, err := ke.Evaluate(src)
					require.NoError(t, err)
					rows[i] = keyedRow{key: key, src: src}
				}
				slices.SortFunc(rows, func(a, b keyedRow) int {
					c, _ := ir.CompareTuples(a.key, b.key)
					return c
				})

				for check := 0; check < 20; check++ {
					i := rng.IntN(len(rows))
					j := i + rng.IntN(len(rows)-i)
					n := rng.IntN(len(l.key) + 1)
					after := rng.IntN(4) == 0

					anyTrue, anyFalse := false, false
					last := j
					if after {
						last = len(rows) - 1
					}
					for _, r := range rows[i : last+1] {
						if evalRow(t, pred, r.src) {
							anyTrue = true
						} else {
							anyFalse = true
						}
					}

					for name, kc := range map[string]*KeyCondition{"box": box, "exact": exact} {
						var m ir.BoolMask
						if after {
							m = kc.CheckAfter(n, rows[i].key, nil)
						} else {
							m = kc.CheckInRange(n, rows[i].key, rows[j].key, nil)
						}
						msg := fmt.Sprintf("%s: %s over %v..%v (n=%d, after=%t): %s",
							name, q.ColumnName(pred), rows[i].key, rows[j].key, n, after, kc)
						if anyTrue {
							require.True(t, m.CanBeTrue, msg)
						}
						if anyFalse {
							require.True(t, m.CanBeFalse, msg)
						}
					}
				}
			}
		})
	}
}
