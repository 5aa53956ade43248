package keycond

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/keycond/internal/functions"
	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/queryir"
	"github.com/roach88/keycond/internal/sets"
)

// KeyCondition is a predicate compiled against the sort key of a table. It
// answers, for a hyperrectangle of key tuples, whether the predicate may be
// true somewhere inside it.
//
// A KeyCondition is immutable once built (AddCondition aside) and safe for
// concurrent evaluation.
type KeyCondition struct {
	rpn         []RPNElement
	keyColumns  []string
	keyTypes    []ir.Type
	keyIndex    map[string]int
	exactTuples bool
}

// Option configures Build.
type Option func(*options)

type options struct {
	setCache    *sets.Cache
	exactTuples bool
}

// WithSetCache shares prepared IN sets through c.
func WithSetCache(c *sets.Cache) Option {
	return func(o *options) {
		o.setCache = c
	}
}

// WithExactTupleRanges makes CheckInRange and CheckAfter split a tuple
// range into hyperrectangles instead of using its bounding box. It is
// slower and prunes more for multi-column keys.
func WithExactTupleRanges() Option {
	return func(o *options) {
		o.exactTuples = true
	}
}

// Build compiles pred against the key columns named in keyColumnNames.
// Every name must be a column of keyExpr; their order defines the key tuple
// positions used by the Check methods.
//
// Parts of pred that cannot be used for pruning compile to "unknown", so
// Build only fails on an inconsistent key description. A nil pred compiles
// to a condition that never prunes.
func Build(pred queryir.Expr, keyColumnNames []string, keyExpr KeyExpression, opts ...Option) (*KeyCondition, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	kc := &KeyCondition{
		keyColumns:  append([]string(nil), keyColumnNames...),
		keyTypes:    make([]ir.Type, len(keyColumnNames)),
		keyIndex:    make(map[string]int, len(keyColumnNames)),
		exactTuples: o.exactTuples,
	}
	for i, name := range keyColumnNames {
		col, ok := keyExpr.Column(name)
		if !ok {
			return nil, errors.Newf("key column %q is not part of the key expression", name)
		}
		if _, dup := kc.keyIndex[name]; dup {
			return nil, errors.Newf("key column %q listed twice", name)
		}
		kc.keyIndex[name] = i
		kc.keyTypes[i] = col.Type
	}

	if pred == nil {
		kc.rpn = []RPNElement{{Op: OpUnknown}}
		return kc, nil
	}
	c := &compiler{kc: kc, keyExpr: keyExpr, setCache: o.setCache}
	c.traverse(pred)
	return kc, nil
}

// BuildFromQuery compiles the conjunction of a WHERE and a PREWHERE clause.
// Either may be nil.
func BuildFromQuery(where, prewhere queryir.Expr, keyColumnNames []string, keyExpr KeyExpression, opts ...Option) (*KeyCondition, error) {
	return Build(queryir.Conjunction(where, prewhere), keyColumnNames, keyExpr, opts...)
}

// AddCondition narrows the condition with "column in r". It reports false,
// leaving the condition untouched, when column is not a key column.
func (kc *KeyCondition) AddCondition(column string, r ir.Interval) bool {
	idx, ok := kc.keyIndex[column]
	if !ok {
		return false
	}
	kc.rpn = append(kc.rpn,
		RPNElement{Op: OpInRange, KeyColumn: idx, Range: r},
		RPNElement{Op: OpAnd},
	)
	return true
}

// KeyColumns returns the key column names in tuple order.
func (kc *KeyCondition) KeyColumns() []string {
	return append([]string(nil), kc.keyColumns...)
}

// RPN returns a copy of the compiled program.
func (kc *KeyCondition) RPN() []RPNElement {
	return append([]RPNElement(nil), kc.rpn...)
}

type compiler struct {
	kc       *KeyCondition
	keyExpr  KeyExpression
	setCache *sets.Cache
}

func (c *compiler) emit(el RPNElement) {
	c.kc.rpn = append(c.kc.rpn, el)
}

func (c *compiler) traverse(e queryir.Expr) {
	if call, ok := e.(queryir.Call); ok {
		switch call.Name {
		case "and", "or", "indexHint":
			if len(call.Args) == 0 {
				c.emit(RPNElement{Op: OpUnknown})
				return
			}
			op := OpAnd
			if call.Name == "or" {
				op = OpOr
			}
			for i, arg := range call.Args {
				c.traverse(arg)
				if i > 0 {
					c.emit(RPNElement{Op: op})
				}
			}
			return
		case "not":
			if len(call.Args) != 1 {
				c.emit(RPNElement{Op: OpUnknown})
				return
			}
			c.traverse(call.Args[0])
			c.emit(RPNElement{Op: OpNot})
			return
		}
	}
	c.emit(c.atom(e))
}

func (c *compiler) atom(e queryir.Expr) RPNElement {
	if v, ok := functions.Fold(e); ok {
		if _, null := v.(ir.Null); null {
			return RPNElement{Op: OpAlwaysFalse}
		}
		if b, ok := functions.Truth(v); ok {
			if b {
				return RPNElement{Op: OpAlwaysTrue}
			}
			return RPNElement{Op: OpAlwaysFalse}
		}
		return RPNElement{Op: OpUnknown}
	}

	call, ok := e.(queryir.Call)
	if !ok || len(call.Args) != 2 {
		return RPNElement{Op: OpUnknown}
	}
	switch call.Name {
	case "in", "notIn":
		if el, ok := c.setAtom(call); ok {
			return el
		}
		return RPNElement{Op: OpUnknown}
	}
	if _, ok := atomMap[call.Name]; !ok {
		return RPNElement{Op: OpUnknown}
	}
	if el, ok := c.relationAtom(call.Name, call.Args[0], call.Args[1]); ok {
		return el
	}
	if inv, ok := invertedRelation[call.Name]; ok {
		if el, ok := c.relationAtom(inv, call.Args[1], call.Args[0]); ok {
			return el
		}
	}
	return RPNElement{Op: OpUnknown}
}

// relationAtom compiles "keySide <rel> constSide".
func (c *compiler) relationAtom(rel string, keySide, constSide queryir.Expr) (RPNElement, bool) {
	v, ok := functions.Fold(constSide)
	if !ok {
		return RPNElement{}, false
	}
	if _, null := v.(ir.Null); null {
		return RPNElement{}, false
	}

	if idx, chain, ok := c.matchKey(keySide); ok {
		cv, ok := coerce(v, chain.ResultType(c.kc.keyTypes[idx]))
		if !ok {
			return RPNElement{}, false
		}
		el := RPNElement{KeyColumn: idx, Chain: chain}
		if !atomMap[rel](&el, cv) {
			return RPNElement{}, false
		}
		return el, true
	}

	relaxed, ok := relaxedRelation[rel]
	if !ok {
		return RPNElement{}, false
	}
	idx, wrapped, ok := c.wrapConstant(keySide, v)
	if !ok {
		return RPNElement{}, false
	}
	// f(x) <rel> f(c) follows from x <rel> c but does not imply it.
	el := RPNElement{KeyColumn: idx}
	if !atomMap[relaxed](&el, wrapped) {
		return RPNElement{}, false
	}
	el.Relaxed = true
	return el, true
}

// callStep is one function application met while descending from a
// predicate operand towards a key column.
type callStep struct {
	name   string
	args   []ir.Value
	varPos int
}

// splitCall separates the single non-constant argument of a call from its
// constant ones.
func splitCall(call queryir.Call) (callStep, queryir.Expr, bool) {
	st := callStep{name: call.Name, args: make([]ir.Value, len(call.Args)), varPos: -1}
	var inner queryir.Expr
	for i, arg := range call.Args {
		if v, ok := functions.Fold(arg); ok {
			st.args[i] = v
			continue
		}
		if st.varPos >= 0 {
			return callStep{}, nil, false
		}
		st.varPos, inner = i, arg
	}
	if st.varPos < 0 {
		return callStep{}, nil, false
	}
	return st, inner, true
}

// matchKey finds the key column e is computed from, possibly through
// functions that may be monotonic. The chain is bound innermost first.
func (c *compiler) matchKey(e queryir.Expr) (int, MonotonicChain, bool) {
	var steps []callStep // outermost first
	cur := e
	for {
		if idx, ok := c.kc.keyIndex[queryir.ColumnName(cur)]; ok {
			chain, ok := bindChain(steps, c.kc.keyTypes[idx])
			if !ok {
				return 0, nil, false
			}
			return idx, chain, true
		}
		call, ok := cur.(queryir.Call)
		if !ok {
			return 0, nil, false
		}
		st, inner, ok := splitCall(call)
		if !ok {
			return 0, nil, false
		}
		steps = append(steps, st)
		cur = inner
	}
}

func bindChain(steps []callStep, argType ir.Type) (MonotonicChain, bool) {
	chain := make(MonotonicChain, 0, len(steps))
	for i := len(steps) - 1; i >= 0; i-- {
		st := steps[i]
		fn, err := functions.Bind(st.name, st.args, st.varPos, argType)
		if err != nil || !fn.HasMonotonicity() {
			return nil, false
		}
		chain = append(chain, fn)
		argType = fn.ResultType()
	}
	return chain, true
}

// wrapConstant handles predicates on an expression that a key column is
// computed from: "x = c" with key column f(x) becomes "f(x) = f(c)" when f
// is non-decreasing everywhere.
func (c *compiler) wrapConstant(e queryir.Expr, v ir.Value) (int, ir.Value, bool) {
	srcType, err := functions.TypeOf(e, c.keyExpr.SourceTypes)
	if err != nil {
		return 0, nil, false
	}
	cv, err := ir.Convert(v, srcType)
	if err != nil {
		return 0, nil, false
	}
	name := queryir.ColumnName(e)

	for idx, keyName := range c.kc.keyColumns {
		col, ok := c.keyExpr.Column(keyName)
		if !ok {
			continue
		}
		steps, ok := unwrapTo(col.Expr, name)
		if !ok || len(steps) == 0 {
			continue
		}
		chain, ok := bindChain(steps, srcType)
		if !ok || !alwaysIncreasing(chain) {
			continue
		}
		out := cv
		for _, fn := range chain {
			if out, err = fn.Apply(out); err != nil {
				break
			}
		}
		if err != nil {
			continue
		}
		return idx, out, true
	}
	return 0, nil, false
}

// unwrapTo descends through single-variable calls of key until it reaches
// the expression named target.
func unwrapTo(key queryir.Expr, target string) ([]callStep, bool) {
	var steps []callStep
	cur := key
	for queryir.ColumnName(cur) != target {
		call, ok := cur.(queryir.Call)
		if !ok {
			return nil, false
		}
		st, inner, ok := splitCall(call)
		if !ok {
			return nil, false
		}
		steps = append(steps, st)
		cur = inner
	}
	return steps, true
}

func alwaysIncreasing(chain MonotonicChain) bool {
	for _, fn := range chain {
		m := fn.Monotonicity(ir.NegInf(), ir.PosInf())
		if !m.IsMonotonic || !m.IsPositive || !m.IsAlways {
			return false
		}
	}
	return true
}

// setAtom compiles "lhs IN rhs" and "lhs NOT IN rhs" where every element of
// lhs is derived from a key column.
func (c *compiler) setAtom(call queryir.Call) (RPNElement, bool) {
	lhs, rhs := call.Args[0], call.Args[1]
	elems := []queryir.Expr{lhs}
	if t, ok := lhs.(queryir.Tuple); ok {
		elems = t.Elems
	}
	if len(elems) == 0 {
		return RPNElement{}, false
	}

	cols := make([]SetColumn, len(elems))
	types := make([]ir.Type, len(elems))
	for i, el := range elems {
		idx, chain, ok := c.matchKey(el)
		if !ok {
			return RPNElement{}, false
		}
		cols[i] = SetColumn{KeyColumn: idx, Chain: chain}
		types[i] = chain.ResultType(c.kc.keyTypes[idx])
	}

	rows, ok := setRows(rhs, len(elems))
	if !ok {
		return RPNElement{}, false
	}
	var (
		s   *sets.Set
		err error
	)
	if c.setCache != nil {
		s, err = c.setCache.GetOrBuild(types, rows)
	} else {
		s, err = sets.Build(types, rows)
	}
	if err != nil {
		return RPNElement{}, false
	}

	op := OpInSet
	if call.Name == "notIn" {
		op = OpNotInSet
	}
	return RPNElement{Op: op, Set: s, SetColumns: cols}, true
}

// setRows extracts constant rows of the given width from the right-hand
// side of IN.
func setRows(rhs queryir.Expr, width int) ([][]ir.Value, bool) {
	switch n := rhs.(type) {
	case queryir.Subquery:
		if len(n.Types) != width {
			return nil, false
		}
		for _, row := range n.Rows {
			if len(row) != width {
				return nil, false
			}
		}
		return n.Rows, true
	case queryir.Tuple:
		if width > 1 && len(n.Elems) == width && !anyTuple(n.Elems) {
			// (a, b) IN (1, 2) is a single row.
			row, ok := foldAll(n.Elems)
			if !ok {
				return nil, false
			}
			return [][]ir.Value{row}, true
		}
		rows := make([][]ir.Value, 0, len(n.Elems))
		for _, el := range n.Elems {
			var row []ir.Value
			if t, ok := el.(queryir.Tuple); ok {
				if row, ok = foldAll(t.Elems); !ok {
					return nil, false
				}
			} else {
				v, ok := functions.Fold(el)
				if !ok {
					return nil, false
				}
				row = []ir.Value{v}
			}
			if len(row) != width {
				return nil, false
			}
			rows = append(rows, row)
		}
		return rows, true
	default:
		if width != 1 {
			return nil, false
		}
		v, ok := functions.Fold(rhs)
		if !ok {
			return nil, false
		}
		return [][]ir.Value{{v}}, true
	}
}

func anyTuple(elems []queryir.Expr) bool {
	for _, el := range elems {
		if _, ok := el.(queryir.Tuple); ok {
			return true
		}
	}
	return false
}

func foldAll(elems []queryir.Expr) ([]ir.Value, bool) {
	out := make([]ir.Value, len(elems))
	for i, el := range elems {
		v, ok := functions.Fold(el)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
