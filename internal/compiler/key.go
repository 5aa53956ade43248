package compiler

import (
	"fmt"

	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/keycond"
	"github.com/roach88/keycond/internal/queryir"
	"github.com/roach88/keycond/internal/querysql"
)

// PrimaryKey parses the order_by expressions of a table into the key
// expression its parts are sorted by.
func PrimaryKey(spec *ir.TableSpec) (keycond.KeyExpression, error) {
	exprs := make([]queryir.Expr, 0, len(spec.OrderBy))
	for i, text := range spec.OrderBy {
		e, err := querysql.Parse(text)
		if err != nil {
			return keycond.KeyExpression{}, fmt.Errorf("order_by[%d]: %w", i, err)
		}
		if e == nil {
			return keycond.KeyExpression{}, fmt.Errorf("order_by[%d]: empty expression", i)
		}
		exprs = append(exprs, e)
	}
	return keycond.NewKeyExpression(exprs, spec.ColumnTypes())
}

// PartitionKey parses partition_by. It returns nil when the table is not
// partitioned.
func PartitionKey(spec *ir.TableSpec) (queryir.Expr, error) {
	if spec.PartitionBy == "" {
		return nil, nil
	}
	e, err := querysql.Parse(spec.PartitionBy)
	if err != nil {
		return nil, fmt.Errorf("partition_by: %w", err)
	}
	return e, nil
}

// MinMaxKey is the key expression over the plain columns the partition
// expression reads, in table column order. Every part stores the min and
// max of these columns.
func MinMaxKey(spec *ir.TableSpec) (keycond.KeyExpression, error) {
	part, err := PartitionKey(spec)
	if err != nil || part == nil {
		return keycond.KeyExpression{SourceTypes: spec.ColumnTypes()}, err
	}
	used := make(map[string]bool)
	for _, name := range queryir.Columns(part) {
		used[name] = true
	}
	var exprs []queryir.Expr
	for _, c := range spec.Columns {
		if used[c.Name] {
			exprs = append(exprs, queryir.Col(c.Name))
		}
	}
	return keycond.NewKeyExpression(exprs, spec.ColumnTypes())
}
