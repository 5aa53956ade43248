package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/keycond/internal/ir"
)

// ErrTableChanged is returned by WriteTable when a table of the same name
// is already registered with a different definition.
var ErrTableChanged = errors.New("table definition changed")

// WriteTable registers a table definition.
// Writing the same definition again is a no-op; a different definition
// under an existing name fails with ErrTableChanged so that stored key
// tuples never disagree with the key expressions.
func (s *Store) WriteTable(ctx context.Context, spec ir.TableSpec) error {
	fp, err := ir.TableFingerprint(spec)
	if err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	specJSON, err := marshalSpec(spec)
	if err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	var existing string
	err = s.db.QueryRowContext(ctx, `SELECT fingerprint FROM tables WHERE name = ?`, spec.Name).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("write table: %w", err)
	case existing == fp:
		return nil
	default:
		return fmt.Errorf("write table %s: %w", spec.Name, ErrTableChanged)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tables (name, fingerprint, spec)
		VALUES (?, ?, ?)
	`, spec.Name, fp, specJSON)
	if err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}

// WritePart stores a part with its marks and min/max ranges in one
// transaction. A part with the same name in the same table is replaced.
//
// Note: The table must have been registered with WriteTable (foreign key
// constraint).
func (s *Store) WritePart(ctx context.Context, table string, part ir.Part) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write part: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// ON DELETE CASCADE drops the old marks and min/max rows.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM parts WHERE table_name = ? AND name = ?
	`, table, part.Name); err != nil {
		return fmt.Errorf("write part %s: %w", part.Name, err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO parts (table_name, name, partition_id, rows, marks)
		VALUES (?, ?, ?, ?, ?)
	`, table, part.Name, part.PartitionID, part.Rows, part.MarksCount())
	if err != nil {
		return fmt.Errorf("write part %s: %w", part.Name, err)
	}
	partID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("write part %s: %w", part.Name, err)
	}

	markStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO marks (part_id, mark, key_tuple) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write part %s: %w", part.Name, err)
	}
	defer markStmt.Close()

	for i, tuple := range part.Index {
		data, err := marshalTuple(tuple)
		if err != nil {
			return fmt.Errorf("write part %s mark %d: %w", part.Name, i, err)
		}
		if _, err := markStmt.ExecContext(ctx, partID, i, data); err != nil {
			return fmt.Errorf("write part %s mark %d: %w", part.Name, i, err)
		}
	}

	for i, mm := range part.MinMax {
		minJSON, err := marshalValue(mm.Min)
		if err != nil {
			return fmt.Errorf("write part %s minmax %s: %w", part.Name, mm.Column, err)
		}
		maxJSON, err := marshalValue(mm.Max)
		if err != nil {
			return fmt.Errorf("write part %s minmax %s: %w", part.Name, mm.Column, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO minmax (part_id, position, column_name, min_value, max_value)
			VALUES (?, ?, ?, ?, ?)
		`, partID, i, mm.Column, minJSON, maxJSON); err != nil {
			return fmt.Errorf("write part %s minmax %s: %w", part.Name, mm.Column, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write part %s: commit: %w", part.Name, err)
	}
	return nil
}

// DeletePart removes one part. Deleting a missing part is not an error.
func (s *Store) DeletePart(ctx context.Context, table, name string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM parts WHERE table_name = ? AND name = ?
	`, table, name); err != nil {
		return fmt.Errorf("delete part %s: %w", name, err)
	}
	return nil
}

// DeleteTable removes a table definition together with all of its parts.
func (s *Store) DeleteTable(ctx context.Context, table string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tables WHERE name = ?`, table); err != nil {
		return fmt.Errorf("delete table %s: %w", table, err)
	}
	return nil
}
