package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileTablesCollectsAll(t *testing.T) {
	v := cuecontext.New().CompileString(`
		table: {
			a: { columns: { k: "Int64" }, order_by: "k" }
			b: { columns: { k: "Int64" } }
			c: { columns: { s: "String" }, order_by: ["s"] }
		}
	`)
	require.NoError(t, v.Err())

	specs, errs := CompileTables(v)
	require.Len(t, specs, 2)
	assert.Equal(t, "a", specs[0].Name)
	assert.Equal(t, "c", specs[1].Name)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "table.b")
	assert.Contains(t, errs[0].Error(), "order_by is required")
}

func TestCompileTablesMissingField(t *testing.T) {
	v := cuecontext.New().CompileString(`other: 1`)
	specs, errs := CompileTables(v)
	assert.Empty(t, specs)
	require.Len(t, errs, 1)
	var ce *CompileError
	require.ErrorAs(t, errs[0], &ce)
	assert.Equal(t, "table", ce.Field)
}

func TestCompileFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.cue")
	require.NoError(t, os.WriteFile(path, []byte(`
table: visits: {
	columns: {
		d: "Date"
		k: "Int64"
	}
	order_by: ["k"]
	partition_by: "toYYYYMM(d)"
}
`), 0o644))

	specs, err := CompileFile(path)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "visits", specs[0].Name)
	assert.Equal(t, DefaultIndexGranularity, specs[0].IndexGranularity)
}

func TestCompileFileSyntaxError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.cue")
	require.NoError(t, os.WriteFile(path, []byte("table: {"), 0o644))

	_, err := CompileFile(path)
	require.Error(t, err)
}

func TestCompileFileMissing(t *testing.T) {
	_, err := CompileFile(filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read schema")
}
