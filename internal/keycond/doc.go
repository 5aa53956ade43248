// Package keycond compiles filter predicates into key conditions: programs
// in reverse Polish notation over atoms on primary-key columns, evaluated
// against ranges of sorted key tuples to decide whether the range can hold
// matching rows.
//
// A KeyCondition is built once per query and is immutable afterwards
// (except for AddCondition, which callers must finish before sharing it).
// Every evaluation allocates its own stack, so one condition can be checked
// concurrently from any number of goroutines.
//
// Anything the compiler does not understand becomes an unknown atom, which
// never excludes a range. Exclusion only happens when it is proven.
package keycond
