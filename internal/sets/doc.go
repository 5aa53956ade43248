// Package sets builds the prepared sets behind IN and NOT IN predicates
// and answers range questions about them.
//
// A Set is immutable after Build and safe for concurrent use. Conditions
// that test membership in equal sets share one *Set through a Cache keyed
// by the set fingerprint; the garbage collector frees a set once no
// compiled condition references it.
package sets
