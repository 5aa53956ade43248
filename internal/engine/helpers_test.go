package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/querysql"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// eventsSpec is a table sorted by (k, s) and partitioned by month.
func eventsSpec() ir.TableSpec {
	return ir.TableSpec{
		Name: "events",
		Columns: []ir.ColumnDef{
			{Name: "d", Type: ir.TypeDate},
			{Name: "k", Type: ir.TypeInt64},
			{Name: "s", Type: ir.TypeString},
		},
		OrderBy:          []string{"k", "s"},
		PartitionBy:      "toYYYYMM(d)",
		IndexGranularity: 10,
	}
}

func mustTable(t *testing.T, spec ir.TableSpec) *Table {
	t.Helper()
	tbl, err := NewTable(spec)
	require.NoError(t, err)
	return tbl
}

func day(t *testing.T, s string) ir.Date {
	t.Helper()
	d, err := ir.ParseDate(s)
	require.NoError(t, err)
	return d
}

// monthPart builds a part of n rows in the month of date with k running
// from kFrom upward.
func monthPart(t *testing.T, tbl *Table, name, date string, kFrom, n int) ir.Part {
	t.Helper()
	rows := make([]map[string]ir.Value, n)
	for i := range rows {
		rows[i] = map[string]ir.Value{
			"d": day(t, date),
			"k": ir.Int(int64(kFrom + i)),
			"s": ir.String("x"),
		}
	}
	p, err := BuildPart(tbl, name, rows)
	require.NoError(t, err)
	return p
}

func where(t *testing.T, text string) Query {
	t.Helper()
	e, err := querysql.Parse(text)
	require.NoError(t, err)
	return Query{Where: e}
}
