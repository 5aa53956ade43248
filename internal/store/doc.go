// Package store provides SQLite-backed storage for part indexes.
//
// A table registered with WriteTable owns any number of immutable parts.
// Each part keeps:
//   - Marks: one primary key tuple per mark, in mark order
//   - MinMax: the closed range of every column the partition key reads
//
// Tuples are stored as canonical JSON arrays (ir.MarshalCanonical) and
// converted back through the column types on read, so a part read from the
// store compares exactly like the part that was written.
//
// The database runs in WAL mode with synchronous=NORMAL, waits up to five
// seconds on a locked file, and enforces foreign keys so that DeleteTable
// cascades to parts, marks and min/max rows.
//
// Reads are deterministic: parts come back ordered by name, marks by
// mark number.
package store
