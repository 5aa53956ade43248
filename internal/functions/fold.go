package functions

import (
	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/queryir"
)

var comparisons = map[string]func(c int) bool{
	"equals":          func(c int) bool { return c == 0 },
	"notEquals":       func(c int) bool { return c != 0 },
	"less":            func(c int) bool { return c < 0 },
	"lessOrEquals":    func(c int) bool { return c <= 0 },
	"greater":         func(c int) bool { return c > 0 },
	"greaterOrEquals": func(c int) bool { return c >= 0 },
}

// Fold evaluates e if it contains no column references. It reports false
// when e is not constant or cannot be evaluated (unknown function, type
// error, overflow).
func Fold(e queryir.Expr) (ir.Value, bool) {
	return Eval(e, nil)
}

// Eval evaluates e with column references resolved from env.
func Eval(e queryir.Expr, env map[string]ir.Value) (ir.Value, bool) {
	switch n := e.(type) {
	case queryir.Literal:
		if n.Value == nil {
			return nil, false
		}
		return n.Value, true
	case queryir.Ident:
		v, ok := env[n.Name]
		return v, ok
	case queryir.Call:
		return evalCall(n, env)
	}
	return nil, false
}

func evalCall(c queryir.Call, env map[string]ir.Value) (ir.Value, bool) {
	args := make([]ir.Value, len(c.Args))
	for i, a := range c.Args {
		v, ok := Eval(a, env)
		if !ok {
			return nil, false
		}
		args[i] = v
	}

	if cmp, ok := comparisons[c.Name]; ok {
		if len(args) != 2 || isNull(args[0]) || isNull(args[1]) {
			return nil, false
		}
		r, ok := ir.Compare(args[0], args[1])
		if !ok {
			return nil, false
		}
		return ir.Bool(cmp(r)), true
	}

	switch c.Name {
	case "and", "or":
		if len(args) == 0 {
			return nil, false
		}
		acc := c.Name == "and"
		for _, a := range args {
			b, ok := Truth(a)
			if !ok {
				return nil, false
			}
			if c.Name == "and" {
				acc = acc && b
			} else {
				acc = acc || b
			}
		}
		return ir.Bool(acc), true
	case "not":
		if len(args) != 1 {
			return nil, false
		}
		b, ok := Truth(args[0])
		if !ok {
			return nil, false
		}
		return ir.Bool(!b), true
	}

	def, ok := Lookup(c.Name)
	if !ok || checkArity(def, len(args)) != nil {
		return nil, false
	}
	types := make([]ir.Type, len(args))
	for i, a := range args {
		types[i] = ir.TypeOf(a)
	}
	rt, err := def.ReturnType(types)
	if err != nil {
		return nil, false
	}
	v, err := def.Eval(args)
	if err != nil {
		return nil, false
	}
	out, err := ir.Convert(v, rt)
	if err != nil {
		return nil, false
	}
	return out, true
}

// Truth interprets a constant as a condition: numbers are true when
// non-zero. Strings, dates and NULL have no truth value.
func Truth(v ir.Value) (bool, bool) {
	switch val := v.(type) {
	case ir.Bool:
		return bool(val), true
	case ir.Int:
		return val != 0, true
	case ir.UInt:
		return val != 0, true
	case ir.Float:
		return val != 0, true
	}
	return false, false
}

func isNull(v ir.Value) bool {
	_, ok := v.(ir.Null)
	return ok
}
