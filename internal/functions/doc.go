// Package functions implements the scalar functions the key-condition engine
// understands: their result types, their evaluation on constants, and, for
// the monotonic ones, how their monotonicity depends on the argument range.
//
// The registry is static and immutable. A function is used in two ways:
//
//   - Fold evaluates a constant subtree (no column references) to a value.
//   - Bind fixes every argument except one to a constant, producing a Bound
//     unary function of the remaining argument. Bound.Monotonicity answers
//     whether that function is monotonic over a concrete argument range.
//
// Monotonicity is non-strict: a function that maps a range to a single value
// is still monotonic. Functions without monotonicity information (modulo,
// toString, lower, upper) can be folded but never wrap a key column.
package functions
