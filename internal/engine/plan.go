package engine

import (
	"github.com/roach88/keycond/internal/queryir"
)

// Query is the part of a SELECT the planner looks at.
type Query struct {
	Where    queryir.Expr
	Prewhere queryir.Expr
}

// Plan lists, per part, the mark ranges a query has to read.
type Plan struct {
	QueryID         string `json:"query_id"`
	Table           string `json:"table"`
	Condition       string `json:"condition"`
	MinMaxCondition string `json:"minmax_condition,omitempty"`

	// KeyColumnsUsed is the length of the primary key prefix the
	// condition reads.
	KeyColumnsUsed int `json:"key_columns_used"`

	// PrimaryKeyUsed is false when the condition cannot exclude anything
	// by the primary key.
	PrimaryKeyUsed bool `json:"primary_key_used"`

	Parts             []PartPlan `json:"parts"`
	PrunedByPartition []string   `json:"pruned_by_partition"`
	PrunedByKey       []string   `json:"pruned_by_key"`

	TotalParts    int   `json:"total_parts"`
	TotalMarks    int64 `json:"total_marks"`
	SelectedMarks int64 `json:"selected_marks"`
}

// PartPlan is the selection inside one part.
type PartPlan struct {
	Name        string      `json:"name"`
	PartitionID string      `json:"partition_id"`
	Ranges      []MarkRange `json:"ranges"`
	Marks       int         `json:"marks"`
	Trace       []TraceStep `json:"trace,omitempty"`
}

// SelectedParts returns the names of parts that are read.
func (p *Plan) SelectedParts() []string {
	out := make([]string, len(p.Parts))
	for i, pp := range p.Parts {
		out[i] = pp.Name
	}
	return out
}

// Part returns the plan of the named part.
func (p *Plan) Part(name string) (PartPlan, bool) {
	for _, pp := range p.Parts {
		if pp.Name == name {
			return pp, true
		}
	}
	return PartPlan{}, false
}
