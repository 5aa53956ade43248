// Package querysql is the text front-end for predicates.
//
// Parse reads predicates written in the CUE expression grammar:
//
//	CounterID == 42 && EventDate >= "2020-01-15"
//	toYYYYMM(EventDate) <= 202002 || !startsWith(URL, "https://")
//	isIn([CounterID, UserID], [[1, 10], [2, 20]])
//	notIn(UserID, subquery("banned"))
//
// "in" is a CUE keyword, so membership uses isIn and notIn. Format renders
// an expression tree back as SQL-like text for diagnostics.
package querysql
