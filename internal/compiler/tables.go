package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/keycond/internal/ir"
)

// CompileTables compiles every table declared under the top-level `table`
// field. Compilation continues past a broken table so that all problems
// are reported together.
func CompileTables(v cue.Value) ([]*ir.TableSpec, []error) {
	tablesVal := v.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, []error{&CompileError{Field: "table", Message: "no table field found", Pos: v.Pos()}}
	}
	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var specs []*ir.TableSpec
	var errs []error
	for iter.Next() {
		spec, err := CompileTable(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("table.%s: %w", iter.Label(), err))
			continue
		}
		specs = append(specs, spec)
	}
	return specs, errs
}

// CompileFile compiles the tables of a single CUE file.
func CompileFile(path string) ([]*ir.TableSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	specs, errs := CompileTables(v)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return specs, nil
}
