package queryir

import "fmt"

// ValidationResult reports structural problems in an expression tree.
//
// A tree with warnings is still usable: the key-condition compiler treats
// every malformed subtree as "unknown", so the warnings only explain why a
// predicate prunes less than expected.
type ValidationResult struct {
	// IsValid is true when no structural problem was found.
	IsValid bool

	// Warnings lists every problem found, in tree order.
	Warnings []string
}

// connectiveArity maps logical operators to their accepted arity;
// -1 means "two or more".
var connectiveArity = map[string]int{
	"and": -1,
	"or":  -1,
	"not": 1,
}

var comparisonOps = map[string]bool{
	"equals": true, "notEquals": true,
	"less": true, "lessOrEquals": true,
	"greater": true, "greaterOrEquals": true,
	"in": true, "notIn": true,
}

// Validate checks an expression tree for structural problems:
//  1. nil nodes and empty names
//  2. logical connectives with the wrong number of arguments
//  3. comparisons that are not binary
//  4. subqueries whose rows do not match their declared types
//
// Validate is a pure function with no side effects.
func Validate(e Expr) ValidationResult {
	v := &validator{warnings: []string{}}
	v.validate(e, "")
	return ValidationResult{
		IsValid:  len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validate(e Expr, path string) {
	if e == nil {
		v.addWarning("%s: nil expression", pathOrRoot(path))
		return
	}

	switch n := e.(type) {
	case Ident:
		if n.Name == "" {
			v.addWarning("%s: empty identifier", pathOrRoot(path))
		}
	case Literal:
		if n.Value == nil {
			v.addWarning("%s: literal without value", pathOrRoot(path))
		}
	case Call:
		v.validateCall(n, path)
	case Tuple:
		if len(n.Elems) == 0 {
			v.addWarning("%s: empty tuple", pathOrRoot(path))
		}
		for i, el := range n.Elems {
			v.validate(el, fmt.Sprintf("%s(%d)", path, i))
		}
	case Subquery:
		for i, row := range n.Rows {
			if len(row) != len(n.Types) {
				v.addWarning("%s: subquery row %d has %d values, want %d",
					pathOrRoot(path), i, len(row), len(n.Types))
			}
		}
	default:
		v.addWarning("%s: unknown expression type %T", pathOrRoot(path), e)
	}
}

func (v *validator) validateCall(c Call, path string) {
	here := path + "/" + c.Name
	if c.Name == "" {
		v.addWarning("%s: call without function name", pathOrRoot(path))
	}
	if want, ok := connectiveArity[c.Name]; ok {
		switch {
		case want == -1 && len(c.Args) < 2:
			v.addWarning("%s: %s needs at least 2 arguments, got %d", here, c.Name, len(c.Args))
		case want > 0 && len(c.Args) != want:
			v.addWarning("%s: %s needs %d argument, got %d", here, c.Name, want, len(c.Args))
		}
	}
	if comparisonOps[c.Name] && len(c.Args) != 2 {
		v.addWarning("%s: %s needs 2 arguments, got %d", here, c.Name, len(c.Args))
	}
	for i, a := range c.Args {
		v.validate(a, fmt.Sprintf("%s(%d)", here, i))
	}
}

func pathOrRoot(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
