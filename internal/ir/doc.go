// Package ir provides the value domain shared by every other keycond package.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// value domain the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Column values are a sealed set of scalar types (see Value)
//   - Comparison across types is checked: Compare reports when two values
//     have no defined order, and callers must treat that as "unknown"
//   - Ranges are expressed over ExtValue so unbounded sides compose with
//     ordinary bounds
//   - All JSON tags use snake_case
package ir
