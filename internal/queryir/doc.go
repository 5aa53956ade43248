// Package queryir provides the expression tree that filter predicates and
// key expressions are written in.
//
// The tree is the boundary between the text front-end (querysql) and the
// analysis packages (functions, keycond):
//
//	[predicate text] → [queryir.Expr] → [keycond RPN]
//	[ORDER BY text]  → [queryir.Expr] → [keycond key expression]
//
// NODE TYPES:
//
// Expr is a sealed interface with five node types:
//   - Ident: a column reference by name
//   - Literal: a constant column value (ir.Value)
//   - Call: a function application; operators are calls too
//     (equals, less, and, or, not, plus, in, ...)
//   - Tuple: an ordered list of expressions, used for multi-column keys and
//     IN lists
//   - Subquery: an already materialized subquery result, a typed row set
//
// Only types in this package implement Expr. Consumers use exhaustive type
// switches:
//
//	switch n := expr.(type) {
//	case Ident:
//	    // column
//	case Literal:
//	    // constant
//	case Call:
//	    // function or operator
//	case Tuple:
//	    // tuple
//	case Subquery:
//	    // row set
//	}
//
// COLUMN NAMES:
//
// ColumnName renders the canonical name of an expression, the same text the
// table schema uses for key expressions ("toYYYYMM(EventDate)"). Two trees
// with equal column names compute the same column, which is how the
// key-condition compiler recognizes a predicate subexpression as a key
// column.
//
// OPERATOR NAMES:
//
// Operators use the function names below. The text front-end produces
// them; hand-built trees must use them too.
//
//	=  equals           !=  notEquals
//	<  less             <=  lessOrEquals
//	>  greater          >=  greaterOrEquals
//	+  plus   -  minus   *  multiply   /  divide   unary -  negate
//	&& and    || or      !  not
//	IN in     NOT IN notIn
package queryir
