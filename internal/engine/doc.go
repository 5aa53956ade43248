// Package engine plans which granules of a MergeTree-style table a query
// has to read.
//
// A table is a set of immutable parts. Every part is sorted by the primary
// key and carries a sparse primary index: the key tuple of the first row of
// each granule (a "mark"). Parts of partitioned tables also carry the
// min/max of every column the partition key reads.
//
// Planning a query:
//  1. Compile the predicate into two key conditions: one over the primary
//     key and one over the min/max columns. Compiled conditions are cached
//     by fingerprint and shared by all parts.
//  2. Drop parts whose min/max box cannot satisfy the predicate.
//  3. For each remaining part, narrow the mark range [0, marks) by
//     repeatedly splitting it and discarding pieces whose key range cannot
//     satisfy the predicate. Adjacent survivors close enough to each other
//     are merged so the reader does not seek for a handful of marks.
//
// Parts are planned concurrently (MaxThreads). Compiled conditions are
// read-only, so no locking happens on the hot path.
//
// The result is always a superset of the granules that hold matching rows.
package engine
