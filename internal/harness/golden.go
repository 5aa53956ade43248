package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/keycond/internal/engine"
	"github.com/roach88/keycond/internal/ir"
)

// Snapshot renders a result as canonical JSON. Query IDs and the rendered
// conditions are left out so that snapshots only change when selections
// do.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	queries := make([]any, len(result.Queries))
	for i, qr := range result.Queries {
		queries[i] = querySnapshot(qr)
	}
	return ir.MarshalCanonical(map[string]any{
		"scenario": scenarioName,
		"queries":  queries,
	})
}

func querySnapshot(qr QueryResult) map[string]any {
	m := map[string]any{"name": qr.Name}
	if qr.Plan == nil {
		m["error_code"] = qr.ErrorCode
		return m
	}
	plan := qr.Plan
	parts := make([]any, len(plan.Parts))
	for i, pp := range plan.Parts {
		parts[i] = map[string]any{
			"name":         pp.Name,
			"partition_id": pp.PartitionID,
			"ranges":       rangesSnapshot(pp.Ranges),
			"marks":        pp.Marks,
		}
	}
	m["parts"] = parts
	m["pruned_by_partition"] = plan.PrunedByPartition
	m["pruned_by_key"] = plan.PrunedByKey
	m["primary_key_used"] = plan.PrimaryKeyUsed
	m["key_columns_used"] = plan.KeyColumnsUsed
	m["selected_marks"] = plan.SelectedMarks
	m["total_marks"] = plan.TotalMarks
	return m
}

func rangesSnapshot(ranges []engine.MarkRange) []any {
	out := make([]any, len(ranges))
	for i, r := range ranges {
		out[i] = []any{r.Begin, r.End}
	}
	return out
}

// RunWithGolden executes a scenario and compares its plans against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the plans don't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
