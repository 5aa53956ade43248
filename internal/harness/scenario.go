package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a planning scenario: a table, the parts it holds and
// queries whose plans are checked.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the CUE file declaring the table. Relative paths are
	// resolved against the scenario file's directory.
	Schema string `yaml:"schema"`

	// Table selects the table of the schema the parts belong to.
	Table string `yaml:"table"`

	// Settings override the planner defaults.
	Settings *SettingsSpec `yaml:"settings,omitempty"`

	// Subqueries are named materialized results that queries refer to as
	// subquery("name").
	Subqueries map[string]SubquerySpec `yaml:"subqueries,omitempty"`

	// Parts are written to the store before any query runs.
	Parts []PartSpec `yaml:"parts"`

	// Queries are planned in order against all parts.
	Queries []QuerySpec `yaml:"queries"`
}

// SettingsSpec mirrors engine.Settings. Unset fields keep the defaults.
type SettingsSpec struct {
	MaxThreads             int   `yaml:"max_threads,omitempty"`
	ForcePrimaryKey        bool  `yaml:"force_primary_key,omitempty"`
	ForceIndexByDate       bool  `yaml:"force_index_by_date,omitempty"`
	MaxMarksToRead         int64 `yaml:"max_marks_to_read,omitempty"`
	CoarseIndexGranularity int   `yaml:"coarse_index_granularity,omitempty"`
	MinMarksForSeek        int   `yaml:"min_marks_for_seek,omitempty"`
	ExactTupleRanges       bool  `yaml:"exact_tuple_ranges,omitempty"`
	Trace                  bool  `yaml:"trace,omitempty"`
}

// SubquerySpec is a materialized subquery result.
type SubquerySpec struct {
	Types []string `yaml:"types"`
	Rows  [][]any  `yaml:"rows"`
}

// PartSpec describes one data part. Rows are listed literally, generated,
// or both (literal rows first).
type PartSpec struct {
	Name     string           `yaml:"name"`
	Rows     []map[string]any `yaml:"rows,omitempty"`
	Generate *GenerateSpec    `yaml:"generate,omitempty"`
}

// GenerateSpec produces Count rows from per-column generators.
type GenerateSpec struct {
	Count   int                      `yaml:"count"`
	Columns map[string]ColumnGenSpec `yaml:"columns"`
}

// ColumnGenSpec is exactly one of: a constant Value, a Sequence (From,
// Step, Every) or a Cycle over Values.
type ColumnGenSpec struct {
	Value  any   `yaml:"value,omitempty"`
	From   any   `yaml:"from,omitempty"`
	Step   int64 `yaml:"step,omitempty"`
	Every  int   `yaml:"every,omitempty"`
	Values []any `yaml:"values,omitempty"`
}

// QuerySpec is one query to plan and the expected outcome.
type QuerySpec struct {
	Name     string      `yaml:"name"`
	Where    string      `yaml:"where,omitempty"`
	Prewhere string      `yaml:"prewhere,omitempty"`
	Expect   Expectation `yaml:"expect"`
}

// Expectation lists what must hold for a query's plan. Only the fields
// that are set are checked.
type Expectation struct {
	// Error is the expected planner error code, e.g. INDEX_NOT_USED.
	Error string `yaml:"error,omitempty"`

	Condition         *string  `yaml:"condition,omitempty"`
	UnknownOrTrue     *bool    `yaml:"unknown_or_true,omitempty"`
	KeyColumnsUsed    *int     `yaml:"key_columns_used,omitempty"`
	SelectedMarks     *int64   `yaml:"selected_marks,omitempty"`
	SelectedParts     []string `yaml:"selected_parts,omitempty"`
	PrunedByPartition []string `yaml:"pruned_by_partition,omitempty"`
	PrunedByKey       []string `yaml:"pruned_by_key,omitempty"`

	// Ranges maps part names to [begin, end) mark pairs.
	Ranges map[string][][2]int `yaml:"ranges,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
		return fmt.Errorf("schema file not found: %s", s.Schema)
	}
	if s.Table == "" {
		return fmt.Errorf("table is required")
	}
	if len(s.Queries) == 0 {
		return fmt.Errorf("queries list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Parts))
	for i, p := range s.Parts {
		if p.Name == "" {
			return fmt.Errorf("parts[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("parts[%d]: duplicate part name %q", i, p.Name)
		}
		seen[p.Name] = true
		if len(p.Rows) == 0 && p.Generate == nil {
			return fmt.Errorf("parts[%d]: rows or generate is required", i)
		}
		if p.Generate != nil {
			if err := validateGenerate(p.Generate); err != nil {
				return fmt.Errorf("parts[%d].generate: %w", i, err)
			}
		}
	}

	for name, sq := range s.Subqueries {
		if len(sq.Types) == 0 {
			return fmt.Errorf("subqueries.%s: types is required", name)
		}
		for j, row := range sq.Rows {
			if len(row) != len(sq.Types) {
				return fmt.Errorf("subqueries.%s.rows[%d]: %d values for %d types", name, j, len(row), len(sq.Types))
			}
		}
	}

	names := make(map[string]bool, len(s.Queries))
	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if names[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate query name %q", i, q.Name)
		}
		names[q.Name] = true
		for part := range q.Expect.Ranges {
			if !seen[part] {
				return fmt.Errorf("queries[%d].expect.ranges: unknown part %q", i, part)
			}
		}
	}
	return nil
}

func validateGenerate(g *GenerateSpec) error {
	if g.Count <= 0 {
		return fmt.Errorf("count must be positive")
	}
	if len(g.Columns) == 0 {
		return fmt.Errorf("columns is required")
	}
	for name, c := range g.Columns {
		kinds := 0
		if c.Value != nil {
			kinds++
		}
		if c.From != nil {
			kinds++
		}
		if len(c.Values) > 0 {
			kinds++
		}
		if kinds != 1 {
			return fmt.Errorf("column %s: exactly one of value, from or values is required", name)
		}
	}
	return nil
}
