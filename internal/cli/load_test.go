package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const monthlyParts = `
- name: "202401_1"
  generate:
    count: 20
    columns:
      d: { value: "2024-01-10" }
      k: { from: 0, step: 1 }
      s: { values: [a, b] }
- name: "202402_1"
  generate:
    count: 20
    columns:
      d: { value: "2024-02-10" }
      k: { from: 100, step: 1 }
      s: { values: [a, b] }
`

// loadedStore loads the two monthly parts of events into a fresh store.
func loadedStore(t *testing.T) (schema, db string) {
	t.Helper()
	schema = writeSchema(t)
	parts := writeFile(t, "parts.yaml", monthlyParts)
	db = filepath.Join(t.TempDir(), "parts.db")

	out, err := execute(NewLoadCommand(&RootOptions{Format: "text"}), schema, parts, "--db", db, "--table", "events")
	require.NoError(t, err, out)
	return schema, db
}

func TestLoadParts(t *testing.T) {
	schema := writeSchema(t)
	parts := writeFile(t, "parts.yaml", monthlyParts)
	db := filepath.Join(t.TempDir(), "parts.db")

	out, err := execute(NewLoadCommand(&RootOptions{Format: "json"}), schema, parts, "--db", db, "--table", "events")
	require.NoError(t, err, out)

	var resp struct {
		Status string          `json:"status"`
		Data   LoadPartsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "events", resp.Data.Table)
	require.Len(t, resp.Data.Loaded, 2)
	assert.Equal(t, LoadedPart{Name: "202401_1", PartitionID: "202401", Rows: 20, Marks: 5}, resp.Data.Loaded[0])
	assert.Equal(t, int64(2), resp.Data.TotalParts)
	assert.Equal(t, int64(10), resp.Data.TotalMarks)
}

func TestLoadReplacesAndDropsParts(t *testing.T) {
	schema, db := loadedStore(t)

	// Reloading the same parts replaces them rather than adding more.
	parts := writeFile(t, "parts.yaml", monthlyParts)
	out, err := execute(NewLoadCommand(&RootOptions{Format: "text"}), schema, parts, "--db", db, "--table", "events")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ events: 2 part(s), 10 mark(s) stored")

	out, err = execute(NewLoadCommand(&RootOptions{Format: "text"}), schema, "--db", db, "--table", "events", "--drop-part", "202401_1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "- 202401_1")
	assert.Contains(t, out, "✓ events: 1 part(s), 5 mark(s) stored")

	out, err = execute(NewLoadCommand(&RootOptions{Format: "text"}), schema, "--db", db, "--table", "events", "--reset")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ events: 0 part(s), 0 mark(s) stored")
}

func TestLoadChangedSchemaNeedsReset(t *testing.T) {
	_, db := loadedStore(t)
	changed := writeFile(t, "schema.cue", `
table: events: {
	columns: { d: "Date", k: "Int64", s: "String" }
	order_by: ["s", "k"]
	partition_by: "toYYYYMM(d)"
}
`)

	out, err := execute(NewLoadCommand(&RootOptions{Format: "text"}), changed, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeStore)

	out, err = execute(NewLoadCommand(&RootOptions{Format: "text"}), changed, "--db", db, "--reset")
	require.NoError(t, err, out)
}

func TestLoadBadParts(t *testing.T) {
	tests := []struct {
		name    string
		parts   string
		wantMsg string
	}{
		{"unknown field", "- name: p\n  rowz: []\n", "parse parts file"},
		{"missing name", "- rows: [{k: 1, v: x}]\n", "name is required"},
		{"unknown column", "- name: p\n  rows: [{k: 1, nope: x}]\n", "unknown column nope"},
		{"no rows", "- name: p\n  rows: []\n", "no rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := writeFile(t, "parts.yaml", tt.parts)
			db := filepath.Join(t.TempDir(), "parts.db")

			out, err := execute(NewLoadCommand(&RootOptions{Format: "text"}), writeSchema(t), parts, "--db", db, "--table", "plain")
			require.Error(t, err)
			assert.Contains(t, out, tt.wantMsg)
		})
	}
}

func TestLoadRequiresDB(t *testing.T) {
	_, err := execute(NewLoadCommand(&RootOptions{Format: "text"}), writeSchema(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"db" not set`)
}
