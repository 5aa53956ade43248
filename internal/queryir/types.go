package queryir

import (
	"slices"
	"strings"

	"github.com/roach88/keycond/internal/ir"
)

// Expr is a node of a predicate or key expression tree.
//
// This is a sealed interface - only types in this package implement it.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Ident references a table column by name.
type Ident struct {
	Name string
}

func (Ident) exprNode() {}

// Literal is a constant value.
type Literal struct {
	Value ir.Value
}

func (Literal) exprNode() {}

// Call applies a function (or operator) to arguments.
type Call struct {
	Name string
	Args []Expr
}

func (Call) exprNode() {}

// Tuple groups expressions, e.g. (CounterID, EventDate) or an IN list.
type Tuple struct {
	Elems []Expr
}

func (Tuple) exprNode() {}

// Subquery is a materialized subquery result: typed rows that an IN
// predicate can test membership against.
type Subquery struct {
	Name  string
	Types []ir.Type
	Rows  [][]ir.Value
}

func (Subquery) exprNode() {}

// Col is shorthand for Ident{Name: name}.
func Col(name string) Ident {
	return Ident{Name: name}
}

// Lit is shorthand for Literal{Value: v}.
func Lit(v ir.Value) Literal {
	return Literal{Value: v}
}

// Fn is shorthand for Call{Name: name, Args: args}.
func Fn(name string, args ...Expr) Call {
	return Call{Name: name, Args: args}
}

// Tup is shorthand for Tuple{Elems: elems}.
func Tup(elems ...Expr) Tuple {
	return Tuple{Elems: elems}
}

// ColumnName returns the canonical column name of an expression:
// identifiers by name, literals as SQL literals, calls as
// name(arg1, arg2), tuples as (a, b).
func ColumnName(e Expr) string {
	var b strings.Builder
	writeColumnName(&b, e)
	return b.String()
}

func writeColumnName(b *strings.Builder, e Expr) {
	switch n := e.(type) {
	case Ident:
		b.WriteString(n.Name)
	case Literal:
		b.WriteString(ir.FormatValue(n.Value))
	case Call:
		b.WriteString(n.Name)
		b.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			writeColumnName(b, a)
		}
		b.WriteByte(')')
	case Tuple:
		b.WriteByte('(')
		for i, el := range n.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			writeColumnName(b, el)
		}
		b.WriteByte(')')
	case Subquery:
		b.WriteString("_subquery")
		b.WriteString(n.Name)
	default:
		b.WriteString("<nil>")
	}
}

// Columns returns the sorted, distinct column names referenced by e.
func Columns(e Expr) []string {
	seen := map[string]struct{}{}
	Walk(e, func(n Expr) bool {
		if id, ok := n.(Ident); ok {
			seen[id.Name] = struct{}{}
		}
		return true
	})
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Walk visits e depth-first in pre-order. Returning false from fn skips the
// children of the current node.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case Call:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case Tuple:
		for _, el := range n.Elems {
			Walk(el, fn)
		}
	}
}

// Conjunction combines predicates with "and", skipping nils. It returns nil
// when nothing remains and the single predicate when only one does.
func Conjunction(preds ...Expr) Expr {
	var args []Expr
	for _, p := range preds {
		if p != nil {
			args = append(args, p)
		}
	}
	switch len(args) {
	case 0:
		return nil
	case 1:
		return args[0]
	default:
		return Call{Name: "and", Args: args}
	}
}
