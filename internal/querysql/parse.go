package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/literal"
	"cuelang.org/go/cue/parser"
	"cuelang.org/go/cue/token"

	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/queryir"
)

var binaryOps = map[token.Token]string{
	token.LAND: "and",
	token.LOR:  "or",
	token.EQL:  "equals",
	token.NEQ:  "notEquals",
	token.LSS:  "less",
	token.LEQ:  "lessOrEquals",
	token.GTR:  "greater",
	token.GEQ:  "greaterOrEquals",
	token.ADD:  "plus",
	token.SUB:  "minus",
	token.MUL:  "multiply",
	token.QUO:  "divide",
	token.IDIV: "intDiv",
	token.IMOD: "modulo",
}

// callAliases maps names accepted in text to expression-tree names.
var callAliases = map[string]string{
	"isIn": "in",
}

// Option configures Parse.
type Option func(*parseState)

// WithSubquery makes subquery(name) resolve to the given materialized
// result.
func WithSubquery(sq queryir.Subquery) Option {
	return func(s *parseState) {
		s.subqueries[sq.Name] = sq
	}
}

type parseState struct {
	subqueries map[string]queryir.Subquery
}

// Parse converts predicate text into an expression tree. An empty text
// yields a nil expression.
func Parse(text string, opts ...Option) (queryir.Expr, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	s := &parseState{subqueries: map[string]queryir.Subquery{}}
	for _, opt := range opts {
		opt(s)
	}

	node, err := parser.ParseExpr("predicate", text)
	if err != nil {
		return nil, fmt.Errorf("parse predicate: %w", err)
	}
	return s.convert(node)
}

// MustParse is like Parse but panics on error. Use only in tests.
func MustParse(text string, opts ...Option) queryir.Expr {
	e, err := Parse(text, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

func (s *parseState) convert(node ast.Expr) (queryir.Expr, error) {
	switch n := node.(type) {
	case *ast.ParenExpr:
		return s.convert(n.X)
	case *ast.Ident:
		switch n.Name {
		case "true":
			return queryir.Lit(ir.Bool(true)), nil
		case "false":
			return queryir.Lit(ir.Bool(false)), nil
		case "null":
			return queryir.Lit(ir.Null{}), nil
		}
		return queryir.Col(n.Name), nil
	case *ast.BasicLit:
		v, err := basicLit(n)
		if err != nil {
			return nil, err
		}
		return queryir.Lit(v), nil
	case *ast.UnaryExpr:
		return s.unary(n)
	case *ast.BinaryExpr:
		name, ok := binaryOps[n.Op]
		if !ok {
			return nil, fmt.Errorf("%s: unsupported operator %s", n.Pos(), n.Op)
		}
		x, err := s.convert(n.X)
		if err != nil {
			return nil, err
		}
		y, err := s.convert(n.Y)
		if err != nil {
			return nil, err
		}
		// a && b && c arrives left-nested; keep connectives flat.
		if name == "and" || name == "or" {
			if c, ok := x.(queryir.Call); ok && c.Name == name {
				return queryir.Fn(name, append(c.Args, y)...), nil
			}
		}
		return queryir.Fn(name, x, y), nil
	case *ast.CallExpr:
		return s.call(n)
	case *ast.ListLit:
		elems := make([]queryir.Expr, len(n.Elts))
		for i, el := range n.Elts {
			e, err := s.convert(el)
			if err != nil {
				return nil, err
			}
			elems[i] = e
		}
		return queryir.Tup(elems...), nil
	case *ast.SelectorExpr:
		// t.column names the column itself.
		base, ok := n.X.(*ast.Ident)
		sel, ok2 := n.Sel.(*ast.Ident)
		if !ok || !ok2 {
			return nil, fmt.Errorf("%s: unsupported selector", n.Pos())
		}
		return queryir.Col(base.Name + "." + sel.Name), nil
	}
	return nil, fmt.Errorf("%s: unsupported expression %T", node.Pos(), node)
}

func (s *parseState) unary(n *ast.UnaryExpr) (queryir.Expr, error) {
	x, err := s.convert(n.X)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case token.NOT:
		return queryir.Fn("not", x), nil
	case token.ADD:
		return x, nil
	case token.SUB:
		// Negative numbers stay literals.
		if l, ok := x.(queryir.Literal); ok {
			switch v := l.Value.(type) {
			case ir.Int:
				return queryir.Lit(-v), nil
			case ir.Float:
				return queryir.Lit(-v), nil
			case ir.UInt:
				if v == 1<<63 {
					return queryir.Lit(ir.Int(-1 << 63)), nil
				}
			}
		}
		return queryir.Fn("negate", x), nil
	}
	return nil, fmt.Errorf("%s: unsupported unary operator %s", n.Pos(), n.Op)
}

func (s *parseState) call(n *ast.CallExpr) (queryir.Expr, error) {
	fn, ok := n.Fun.(*ast.Ident)
	if !ok {
		return nil, fmt.Errorf("%s: function name must be an identifier", n.Pos())
	}
	if fn.Name == "subquery" {
		return s.subquery(n)
	}
	args := make([]queryir.Expr, len(n.Args))
	for i, a := range n.Args {
		e, err := s.convert(a)
		if err != nil {
			return nil, err
		}
		args[i] = e
	}
	name := fn.Name
	if alias, ok := callAliases[name]; ok {
		name = alias
	}
	return queryir.Fn(name, args...), nil
}

func (s *parseState) subquery(n *ast.CallExpr) (queryir.Expr, error) {
	if len(n.Args) != 1 {
		return nil, fmt.Errorf("%s: subquery takes one name", n.Pos())
	}
	lit, ok := n.Args[0].(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return nil, fmt.Errorf("%s: subquery name must be a string", n.Pos())
	}
	name, err := literal.Unquote(lit.Value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", lit.Pos(), err)
	}
	sq, ok := s.subqueries[name]
	if !ok {
		return nil, fmt.Errorf("%s: unknown subquery %q", lit.Pos(), name)
	}
	return sq, nil
}

func basicLit(n *ast.BasicLit) (ir.Value, error) {
	switch n.Kind {
	case token.TRUE:
		return ir.Bool(true), nil
	case token.FALSE:
		return ir.Bool(false), nil
	case token.NULL:
		return ir.Null{}, nil
	case token.STRING:
		s, err := literal.Unquote(n.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.Pos(), err)
		}
		return ir.String(s), nil
	case token.INT, token.FLOAT:
		var info literal.NumInfo
		if err := literal.ParseNum(n.Value, &info); err != nil {
			return nil, fmt.Errorf("%s: %w", n.Pos(), err)
		}
		text := info.String()
		if info.IsInt() {
			if i, err := strconv.ParseInt(text, 10, 64); err == nil {
				return ir.Int(i), nil
			}
			if u, err := strconv.ParseUint(text, 10, 64); err == nil {
				return ir.UInt(u), nil
			}
			return nil, fmt.Errorf("%s: integer %s out of range", n.Pos(), n.Value)
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.Pos(), err)
		}
		return ir.Float(f), nil
	}
	return nil, fmt.Errorf("%s: unsupported literal %s", n.Pos(), n.Value)
}
