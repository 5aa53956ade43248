package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/keycond/internal/ir"
)

// ErrNotFound is returned when a table or part does not exist.
var ErrNotFound = errors.New("not found")

// Layout tells the reader how to convert stored tuples back to values.
type Layout struct {
	KeyTypes    []ir.Type          // primary key column types, in key order
	ColumnTypes map[string]ir.Type // table column types, for min/max ranges
}

// ReadTable returns a registered table definition.
func (s *Store) ReadTable(ctx context.Context, name string) (ir.TableSpec, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT spec FROM tables WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.TableSpec{}, fmt.Errorf("table %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return ir.TableSpec{}, fmt.Errorf("read table %s: %w", name, err)
	}
	return unmarshalSpec(data)
}

// ListTables returns the names of all registered tables in byte order.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM tables ORDER BY name COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return names, nil
}

type partRow struct {
	id          int64
	name        string
	partitionID string
	rows        int64
	marks       int
}

// ReadParts returns every part of a table ordered by name.
// Returns an empty slice (not nil) if the table has no parts.
func (s *Store) ReadParts(ctx context.Context, table string, layout Layout) ([]ir.Part, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, partition_id, rows, marks
		FROM parts
		WHERE table_name = ?
		ORDER BY name COLLATE BINARY ASC
	`, table)
	if err != nil {
		return nil, fmt.Errorf("query parts: %w", err)
	}

	var headers []partRow
	for rows.Next() {
		var h partRow
		if err := rows.Scan(&h.id, &h.name, &h.partitionID, &h.rows, &h.marks); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan part: %w", err)
		}
		headers = append(headers, h)
	}
	// Close before the per-part queries: the pool holds one connection.
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parts: %w", err)
	}

	parts := make([]ir.Part, 0, len(headers))
	for _, h := range headers {
		p, err := s.loadPart(ctx, h, layout)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// ReadPart returns one part of a table.
func (s *Store) ReadPart(ctx context.Context, table, name string, layout Layout) (ir.Part, error) {
	var h partRow
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, partition_id, rows, marks
		FROM parts
		WHERE table_name = ? AND name = ?
	`, table, name).Scan(&h.id, &h.name, &h.partitionID, &h.rows, &h.marks)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Part{}, fmt.Errorf("part %s of %s: %w", name, table, ErrNotFound)
	}
	if err != nil {
		return ir.Part{}, fmt.Errorf("read part %s: %w", name, err)
	}
	return s.loadPart(ctx, h, layout)
}

func (s *Store) loadPart(ctx context.Context, h partRow, layout Layout) (ir.Part, error) {
	p := ir.Part{
		Name:        h.name,
		PartitionID: h.partitionID,
		Rows:        h.rows,
		Index:       make([][]ir.Value, 0, h.marks),
	}

	marks, err := s.db.QueryContext(ctx, `
		SELECT mark, key_tuple FROM marks WHERE part_id = ? ORDER BY mark ASC
	`, h.id)
	if err != nil {
		return ir.Part{}, fmt.Errorf("query marks of %s: %w", h.name, err)
	}
	for marks.Next() {
		var (
			mark int
			data string
		)
		if err := marks.Scan(&mark, &data); err != nil {
			marks.Close()
			return ir.Part{}, fmt.Errorf("scan mark of %s: %w", h.name, err)
		}
		tuple, err := unmarshalTuple(data, layout.KeyTypes)
		if err != nil {
			marks.Close()
			return ir.Part{}, fmt.Errorf("part %s mark %d: %w", h.name, mark, err)
		}
		p.Index = append(p.Index, tuple)
	}
	marks.Close()
	if err := marks.Err(); err != nil {
		return ir.Part{}, fmt.Errorf("iterate marks of %s: %w", h.name, err)
	}
	if len(p.Index) != h.marks {
		return ir.Part{}, fmt.Errorf("part %s: %d marks stored, header says %d", h.name, len(p.Index), h.marks)
	}

	mm, err := s.db.QueryContext(ctx, `
		SELECT column_name, min_value, max_value
		FROM minmax WHERE part_id = ? ORDER BY position ASC
	`, h.id)
	if err != nil {
		return ir.Part{}, fmt.Errorf("query minmax of %s: %w", h.name, err)
	}
	defer mm.Close()
	for mm.Next() {
		var column, minJSON, maxJSON string
		if err := mm.Scan(&column, &minJSON, &maxJSON); err != nil {
			return ir.Part{}, fmt.Errorf("scan minmax of %s: %w", h.name, err)
		}
		t, ok := layout.ColumnTypes[column]
		if !ok {
			return ir.Part{}, fmt.Errorf("part %s: min/max of unknown column %s", h.name, column)
		}
		lo, err := unmarshalValue(minJSON, t)
		if err != nil {
			return ir.Part{}, fmt.Errorf("part %s min(%s): %w", h.name, column, err)
		}
		hi, err := unmarshalValue(maxJSON, t)
		if err != nil {
			return ir.Part{}, fmt.Errorf("part %s max(%s): %w", h.name, column, err)
		}
		p.MinMax = append(p.MinMax, ir.MinMaxColumn{Column: column, Min: lo, Max: hi})
	}
	if err := mm.Err(); err != nil {
		return ir.Part{}, fmt.Errorf("iterate minmax of %s: %w", h.name, err)
	}
	return p, nil
}

// CountParts returns the number of parts and marks stored for a table.
func (s *Store) CountParts(ctx context.Context, table string) (parts, marks int64, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(marks), 0) FROM parts WHERE table_name = ?
	`, table).Scan(&parts, &marks)
	if err != nil {
		return 0, 0, fmt.Errorf("count parts: %w", err)
	}
	return parts, marks, nil
}
