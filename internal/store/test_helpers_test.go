package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/keycond/internal/ir"
)

// createTestStore creates a new file-backed store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testTable() ir.TableSpec {
	return ir.TableSpec{
		Name: "hits",
		Columns: []ir.ColumnDef{
			{Name: "CounterID", Type: ir.TypeUInt64},
			{Name: "EventDate", Type: ir.TypeDate},
			{Name: "Score", Type: ir.TypeFloat64},
		},
		OrderBy:          []string{"CounterID", "EventDate"},
		PartitionBy:      "toYYYYMM(EventDate)",
		IndexGranularity: 2,
	}
}

func testLayout() Layout {
	return Layout{
		KeyTypes:    []ir.Type{ir.TypeUInt64, ir.TypeDate},
		ColumnTypes: testTable().ColumnTypes(),
	}
}

func date(t *testing.T, s string) ir.Date {
	t.Helper()
	d, err := ir.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q) failed: %v", s, err)
	}
	return d
}

// createTestPart creates a two-mark part inside one month.
func createTestPart(t *testing.T, name string, counter uint64) ir.Part {
	t.Helper()
	return ir.Part{
		Name:        name,
		PartitionID: "202403",
		Rows:        4,
		Index: [][]ir.Value{
			{ir.UInt(counter), date(t, "2024-03-01")},
			{ir.UInt(counter + 1), date(t, "2024-03-05")},
		},
		MinMax: []ir.MinMaxColumn{
			{Column: "EventDate", Min: date(t, "2024-03-01"), Max: date(t, "2024-03-09")},
		},
	}
}

// setupTable registers the test table.
func setupTable(t *testing.T, s *Store) {
	t.Helper()
	if err := s.WriteTable(context.Background(), testTable()); err != nil {
		t.Fatalf("WriteTable() failed: %v", err)
	}
}
