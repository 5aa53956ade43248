package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const eventsSchema = `
package schemas

table: events: {
	columns: {
		d: "Date"
		k: "Int64"
		s: "String"
	}
	order_by:          ["k", "s"]
	partition_by:      "toYYYYMM(d)"
	index_granularity: 4
}

table: plain: {
	columns: {
		k: "Int64"
		v: "String"
	}
	order_by:          "k"
	index_granularity: 2
}
`

// writeFile writes content under a fresh temp dir and returns its path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeSchema(t *testing.T) string {
	t.Helper()
	return writeFile(t, "schema.cue", eventsSchema)
}

// execute runs cmd with args and returns its stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
