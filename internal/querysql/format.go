package querysql

import (
	"strings"

	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/queryir"
)

type infixOp struct {
	symbol string
	prec   int
}

var infixOps = map[string]infixOp{
	"or":              {"OR", 1},
	"and":             {"AND", 2},
	"equals":          {"=", 4},
	"notEquals":       {"!=", 4},
	"less":            {"<", 4},
	"lessOrEquals":    {"<=", 4},
	"greater":         {">", 4},
	"greaterOrEquals": {">=", 4},
	"like":            {"LIKE", 4},
	"in":              {"IN", 4},
	"notIn":           {"NOT IN", 4},
	"plus":            {"+", 5},
	"minus":           {"-", 5},
	"multiply":        {"*", 6},
	"divide":          {"/", 6},
	"modulo":          {"%", 6},
}

const (
	precNot   = 3
	precUnary = 7
	precAtom  = 8
)

// Format renders e as SQL-like text, e.g.
// "CounterID = 42 AND toYYYYMM(EventDate) IN (202001, 202002)".
func Format(e queryir.Expr) string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	write(&b, e, 0)
	return b.String()
}

// write renders e, parenthesized when it binds looser than outer.
func write(b *strings.Builder, e queryir.Expr, outer int) {
	p := precedence(e)
	if p < outer {
		b.WriteByte('(')
		defer b.WriteByte(')')
	}

	switch n := e.(type) {
	case queryir.Ident:
		b.WriteString(n.Name)
	case queryir.Literal:
		b.WriteString(ir.FormatValue(n.Value))
	case queryir.Tuple:
		writeList(b, n.Elems)
	case queryir.Subquery:
		b.WriteString("(SELECT ... FROM ")
		b.WriteString(n.Name)
		b.WriteByte(')')
	case queryir.Call:
		writeCall(b, n, p)
	default:
		b.WriteString("<nil>")
	}
}

func writeCall(b *strings.Builder, c queryir.Call, p int) {
	if op, ok := infixOps[c.Name]; ok && len(c.Args) >= 2 && (len(c.Args) == 2 || c.Name == "and" || c.Name == "or") {
		for i, a := range c.Args {
			if i > 0 {
				b.WriteString(" " + op.symbol + " ")
			}
			// Left-associative: a right operand of equal precedence needs
			// parentheses, except for the associative connectives.
			outer := p
			if i > 0 && c.Name != "and" && c.Name != "or" {
				outer = p + 1
			}
			write(b, a, outer)
		}
		return
	}
	switch {
	case c.Name == "not" && len(c.Args) == 1:
		b.WriteString("NOT ")
		write(b, c.Args[0], p)
		return
	case c.Name == "negate" && len(c.Args) == 1:
		b.WriteByte('-')
		write(b, c.Args[0], p+1)
		return
	}
	b.WriteString(c.Name)
	writeList(b, c.Args)
}

func writeList(b *strings.Builder, elems []queryir.Expr) {
	b.WriteByte('(')
	for i, el := range elems {
		if i > 0 {
			b.WriteString(", ")
		}
		write(b, el, 0)
	}
	b.WriteByte(')')
}

func precedence(e queryir.Expr) int {
	c, ok := e.(queryir.Call)
	if !ok {
		return precAtom
	}
	if op, ok := infixOps[c.Name]; ok && len(c.Args) >= 2 && (len(c.Args) == 2 || c.Name == "and" || c.Name == "or") {
		return op.prec
	}
	switch {
	case c.Name == "not" && len(c.Args) == 1:
		return precNot
	case c.Name == "negate" && len(c.Args) == 1:
		return precUnary
	}
	return precAtom
}
