package engine

import (
	"fmt"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/roach88/keycond/internal/functions"
	"github.com/roach88/keycond/internal/ir"
)

// UnpartitionedID is the partition ID of every part of a table without a
// partition key.
const UnpartitionedID = "all"

// BuildPart sorts rows by the primary key and builds the part's sparse
// index: one key tuple per IndexGranularity rows plus the min/max of every
// column the partition key reads. All rows must belong to one partition.
//
// Row values are converted to the column types; every column of the table
// must be present.
func BuildPart(t *Table, name string, rows []map[string]ir.Value) (ir.Part, error) {
	if len(rows) == 0 {
		return ir.Part{}, errors.Newf("part %s: no rows", name)
	}

	type keyed struct {
		row map[string]ir.Value
		key []ir.Value
	}
	sorted := make([]keyed, len(rows))
	for i, raw := range rows {
		row, err := t.convertRow(raw)
		if err != nil {
			return ir.Part{}, errors.Wrapf(err, "part %s row %d", name, i)
		}
		key, err := t.PrimaryKey.Evaluate(row)
		if err != nil {
			return ir.Part{}, errors.Wrapf(err, "part %s row %d", name, i)
		}
		sorted[i] = keyed{row: row, key: key}
	}

	var cmpErr error
	slices.SortStableFunc(sorted, func(a, b keyed) int {
		c, ok := ir.CompareTuples(a.key, b.key)
		if !ok && cmpErr == nil {
			cmpErr = fmt.Errorf("incomparable key tuples %v and %v", ir.TupleToGo(a.key), ir.TupleToGo(b.key))
		}
		return c
	})
	if cmpErr != nil {
		return ir.Part{}, errors.Wrapf(cmpErr, "part %s", name)
	}

	partitionID, err := t.partitionID(sorted[0].row)
	if err != nil {
		return ir.Part{}, errors.Wrapf(err, "part %s", name)
	}
	for i, r := range sorted[1:] {
		id, err := t.partitionID(r.row)
		if err != nil {
			return ir.Part{}, errors.Wrapf(err, "part %s", name)
		}
		if id != partitionID {
			return ir.Part{}, errors.Newf("part %s: row %d is in partition %s, part is in %s", name, i+1, id, partitionID)
		}
	}

	g := t.Spec.IndexGranularity
	part := ir.Part{
		Name:        name,
		PartitionID: partitionID,
		Rows:        int64(len(sorted)),
		Index:       make([][]ir.Value, 0, (len(sorted)+g-1)/g),
	}
	for i := 0; i < len(sorted); i += g {
		part.Index = append(part.Index, sorted[i].key)
	}

	for _, col := range t.MinMaxKey.Columns {
		low, high := sorted[0].row[col.Name], sorted[0].row[col.Name]
		for _, r := range sorted[1:] {
			v := r.row[col.Name]
			if ir.Less(v, low) {
				low = v
			}
			if ir.Less(high, v) {
				high = v
			}
		}
		part.MinMax = append(part.MinMax, ir.MinMaxColumn{Column: col.Name, Min: low, Max: high})
	}
	return part, nil
}

func (t *Table) convertRow(raw map[string]ir.Value) (map[string]ir.Value, error) {
	row := make(map[string]ir.Value, len(t.Spec.Columns))
	for _, c := range t.Spec.Columns {
		v, ok := raw[c.Name]
		if !ok {
			return nil, fmt.Errorf("missing column %s", c.Name)
		}
		cv, err := ir.Convert(v, c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		row[c.Name] = cv
	}
	for name := range raw {
		if _, ok := t.Spec.ColumnType(name); !ok {
			return nil, fmt.Errorf("unknown column %s", name)
		}
	}
	return row, nil
}

// partitionID renders the partition key value of a row, e.g. "202403" for
// toYYYYMM(EventDate).
func (t *Table) partitionID(row map[string]ir.Value) (string, error) {
	if t.Partition == nil {
		return UnpartitionedID, nil
	}
	v, ok := functions.Eval(t.Partition, row)
	if !ok {
		return "", fmt.Errorf("cannot evaluate partition key %s", t.Spec.PartitionBy)
	}
	return fmt.Sprint(ir.ToGo(v)), nil
}
