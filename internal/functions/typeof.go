package functions

import (
	"fmt"

	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/queryir"
)

// TypeOf infers the result type of e given the types of table columns.
func TypeOf(e queryir.Expr, columns map[string]ir.Type) (ir.Type, error) {
	switch n := e.(type) {
	case queryir.Ident:
		t, ok := columns[n.Name]
		if !ok {
			return "", fmt.Errorf("unknown column %q", n.Name)
		}
		return t, nil
	case queryir.Literal:
		return ir.TypeOf(n.Value), nil
	case queryir.Call:
		if _, ok := comparisons[n.Name]; ok {
			return ir.TypeBool, nil
		}
		switch n.Name {
		case "and", "or", "not":
			return ir.TypeBool, nil
		}
		def, ok := Lookup(n.Name)
		if !ok {
			return "", fmt.Errorf("unknown function %q", n.Name)
		}
		if err := checkArity(def, len(n.Args)); err != nil {
			return "", err
		}
		types := make([]ir.Type, len(n.Args))
		for i, a := range n.Args {
			t, err := TypeOf(a, columns)
			if err != nil {
				return "", err
			}
			types[i] = t
		}
		return def.ReturnType(types)
	}
	return "", fmt.Errorf("cannot infer type of %s", queryir.ColumnName(e))
}
