package engine

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/roach88/keycond/internal/compiler"
	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/keycond"
	"github.com/roach88/keycond/internal/queryir"
	"github.com/roach88/keycond/internal/store"
)

// Table is a table definition compiled for planning.
type Table struct {
	Spec       ir.TableSpec
	PrimaryKey keycond.KeyExpression
	MinMaxKey  keycond.KeyExpression
	Partition  queryir.Expr // nil when the table is not partitioned
}

// NewTable validates spec and compiles its key expressions.
func NewTable(spec ir.TableSpec) (*Table, error) {
	if errs := compiler.Validate(&spec); len(errs) > 0 {
		msgs := lo.Map(errs, func(e compiler.ValidationError, _ int) string { return e.Error() })
		return nil, errors.Newf("table %s: %s", spec.Name, strings.Join(msgs, "; "))
	}
	pk, err := compiler.PrimaryKey(&spec)
	if err != nil {
		return nil, errors.Wrapf(err, "table %s", spec.Name)
	}
	mm, err := compiler.MinMaxKey(&spec)
	if err != nil {
		return nil, errors.Wrapf(err, "table %s", spec.Name)
	}
	part, err := compiler.PartitionKey(&spec)
	if err != nil {
		return nil, errors.Wrapf(err, "table %s", spec.Name)
	}
	return &Table{Spec: spec, PrimaryKey: pk, MinMaxKey: mm, Partition: part}, nil
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.Spec.Name
}

// Partitioned reports whether the table has a partition key.
func (t *Table) Partitioned() bool {
	return t.Partition != nil
}

// Layout describes how the store converts this table's tuples.
func (t *Table) Layout() store.Layout {
	return store.Layout{
		KeyTypes:    t.PrimaryKey.Types(),
		ColumnTypes: t.Spec.ColumnTypes(),
	}
}
