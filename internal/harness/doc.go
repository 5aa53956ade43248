// Package harness runs planning scenarios: a table schema, a set of parts
// and queries whose plans are checked against expectations and golden
// files.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: month_pruning
//	description: "Parts outside the queried months are skipped"
//	schema: ../schemas/events.cue
//	table: events
//	settings:
//	  coarse_index_granularity: 8
//	subqueries:
//	  ids: { types: [Int64], rows: [[5], [6]] }
//	parts:
//	  - name: 202401_1
//	    generate:
//	      count: 20
//	      columns:
//	        d: { value: "2024-01-10" }
//	        k: { from: 0, step: 1 }
//	        s: { values: [a, b] }
//	queries:
//	  - name: k_range
//	    where: "k >= 5 && k < 10"
//	    expect:
//	      selected_parts: [202401_1]
//	      ranges: { 202401_1: [[1, 3]] }
//
// # Expectations
//
// Only the fields a query sets are checked:
//
//   - error: planner error code (INDEX_NOT_USED, TOO_MANY_MARKS)
//   - condition: rendered primary key condition
//   - unknown_or_true: the condition cannot exclude anything
//   - key_columns_used, selected_marks
//   - selected_parts, pruned_by_partition, pruned_by_key
//   - ranges: per part list of [begin, end) mark ranges
//
// # Determinism
//
// Every scenario runs in a fresh in-memory SQLite store, generated rows are
// reproducible, and query IDs are "<scenario>-<n>". Golden files hold the
// canonical JSON of all plans.
package harness
