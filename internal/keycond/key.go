package keycond

import (
	"fmt"

	"github.com/roach88/keycond/internal/functions"
	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/queryir"
)

// KeyColumn is one expression of the sort key.
type KeyColumn struct {
	Name string // canonical name, e.g. "toYYYYMM(EventDate)"
	Expr queryir.Expr
	Type ir.Type
}

// KeyExpression describes how key tuples are computed from table columns.
type KeyExpression struct {
	Columns     []KeyColumn
	SourceTypes map[string]ir.Type
}

// NewKeyExpression infers the type of every key expression from the table
// column types.
func NewKeyExpression(exprs []queryir.Expr, sourceTypes map[string]ir.Type) (KeyExpression, error) {
	cols := make([]KeyColumn, len(exprs))
	for i, e := range exprs {
		t, err := functions.TypeOf(e, sourceTypes)
		if err != nil {
			return KeyExpression{}, fmt.Errorf("key column %d (%s): %w", i, queryir.ColumnName(e), err)
		}
		cols[i] = KeyColumn{Name: queryir.ColumnName(e), Expr: e, Type: t}
	}
	return KeyExpression{Columns: cols, SourceTypes: sourceTypes}, nil
}

// Names returns the key column names in key order.
func (k KeyExpression) Names() []string {
	out := make([]string, len(k.Columns))
	for i, c := range k.Columns {
		out[i] = c.Name
	}
	return out
}

// Types returns the key column types in key order.
func (k KeyExpression) Types() []ir.Type {
	out := make([]ir.Type, len(k.Columns))
	for i, c := range k.Columns {
		out[i] = c.Type
	}
	return out
}

// Column returns the key column with the given name.
func (k KeyExpression) Column(name string) (KeyColumn, bool) {
	for _, c := range k.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return KeyColumn{}, false
}

// Evaluate materializes the key tuple of one row.
func (k KeyExpression) Evaluate(row map[string]ir.Value) ([]ir.Value, error) {
	out := make([]ir.Value, len(k.Columns))
	for i, c := range k.Columns {
		v, ok := functions.Eval(c.Expr, row)
		if !ok {
			return nil, fmt.Errorf("cannot evaluate key column %s", c.Name)
		}
		cv, err := ir.Convert(v, c.Type)
		if err != nil {
			return nil, fmt.Errorf("key column %s: %w", c.Name, err)
		}
		out[i] = cv
	}
	return out, nil
}
