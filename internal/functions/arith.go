package functions

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/roach88/keycond/internal/ir"
)

var errOverflow = errors.New("integer overflow")

type arithOp string

const (
	opPlus     arithOp = "plus"
	opMinus    arithOp = "minus"
	opMultiply arithOp = "multiply"
	opDivide   arithOp = "divide"
	opIntDiv   arithOp = "intDiv"
	opModulo   arithOp = "modulo"
)

func init() {
	register(
		&Definition{
			Name:         string(opPlus),
			Arity:        2,
			ReturnType:   arithReturnType(opPlus),
			Eval:         arithEval(opPlus),
			Monotonicity: plusMonotonicity,
		},
		&Definition{
			Name:         string(opMinus),
			Arity:        2,
			ReturnType:   arithReturnType(opMinus),
			Eval:         arithEval(opMinus),
			Monotonicity: minusMonotonicity,
		},
		&Definition{
			Name:         string(opMultiply),
			Arity:        2,
			ReturnType:   arithReturnType(opMultiply),
			Eval:         arithEval(opMultiply),
			Monotonicity: multiplyMonotonicity,
		},
		&Definition{
			Name:         string(opDivide),
			Arity:        2,
			ReturnType:   arithReturnType(opDivide),
			Eval:         arithEval(opDivide),
			Monotonicity: divideMonotonicity,
		},
		&Definition{
			Name:         string(opIntDiv),
			Arity:        2,
			ReturnType:   arithReturnType(opIntDiv),
			Eval:         arithEval(opIntDiv),
			Monotonicity: intDivMonotonicity,
		},
		&Definition{
			Name:       string(opModulo),
			Arity:      2,
			ReturnType: arithReturnType(opModulo),
			Eval:       arithEval(opModulo),
		},
	)
}

func isUnsigned(t ir.Type) bool {
	return t == ir.TypeUInt64 || t == ir.TypeBool
}

func isTemporal(t ir.Type) bool {
	return t == ir.TypeDate || t == ir.TypeDateTime
}

func isIntegral(t ir.Type) bool {
	return t == ir.TypeInt64 || isUnsigned(t)
}

// arithType decides the result type of a binary arithmetic operator.
// Unsigned minus unsigned is signed so that the result never wraps.
func arithType(op arithOp, a, b ir.Type) (ir.Type, error) {
	if !(a.IsNumeric() || isTemporal(a)) || !(b.IsNumeric() || isTemporal(b)) {
		return "", fmt.Errorf("illegal types %s and %s of arguments of %s", a, b, op)
	}
	if isTemporal(a) || isTemporal(b) {
		switch {
		case op == opPlus && isTemporal(a) && isIntegral(b):
			return a, nil
		case op == opPlus && isIntegral(a) && isTemporal(b):
			return b, nil
		case op == opMinus && isTemporal(a) && isIntegral(b):
			return a, nil
		case op == opMinus && a == b:
			return ir.TypeInt64, nil
		}
		return "", fmt.Errorf("illegal types %s and %s of arguments of %s", a, b, op)
	}
	if op == opDivide {
		return ir.TypeFloat64, nil
	}
	if a == ir.TypeFloat64 || b == ir.TypeFloat64 {
		if op == opIntDiv {
			return ir.TypeInt64, nil
		}
		return ir.TypeFloat64, nil
	}
	if isUnsigned(a) && isUnsigned(b) && op != opMinus {
		return ir.TypeUInt64, nil
	}
	return ir.TypeInt64, nil
}

func arithReturnType(op arithOp) func([]ir.Type) (ir.Type, error) {
	return func(args []ir.Type) (ir.Type, error) {
		if len(args) != 2 {
			return "", fmt.Errorf("%s takes 2 arguments", op)
		}
		return arithType(op, args[0], args[1])
	}
}

func arithEval(op arithOp) func([]ir.Value) (ir.Value, error) {
	return func(args []ir.Value) (ir.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s takes 2 arguments", op)
		}
		return arith(op, args[0], args[1])
	}
}

func arith(op arithOp, a, b ir.Value) (ir.Value, error) {
	rt, err := arithType(op, ir.TypeOf(a), ir.TypeOf(b))
	if err != nil {
		return nil, err
	}
	switch {
	case rt == ir.TypeFloat64 || (op == opIntDiv && (ir.TypeOf(a) == ir.TypeFloat64 || ir.TypeOf(b) == ir.TypeFloat64)):
		return floatArith(op, a, b)
	case isTemporal(rt):
		return temporalArith(op, a, b, rt)
	case rt == ir.TypeUInt64:
		x, _ := asUint(a)
		y, _ := asUint(b)
		return uintArith(op, x, y)
	default:
		x, err := asInt(a)
		if err != nil {
			return nil, err
		}
		y, err := asInt(b)
		if err != nil {
			return nil, err
		}
		return intArith(op, x, y)
	}
}

func asUint(v ir.Value) (uint64, bool) {
	switch val := v.(type) {
	case ir.UInt:
		return uint64(val), true
	case ir.Bool:
		if val {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asInt(v ir.Value) (int64, error) {
	switch val := v.(type) {
	case ir.Int:
		return int64(val), nil
	case ir.UInt:
		if val > math.MaxInt64 {
			return 0, errOverflow
		}
		return int64(val), nil
	case ir.Bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case ir.Date:
		return int64(val), nil
	case ir.DateTime:
		return int64(val), nil
	}
	return 0, fmt.Errorf("not an integer: %s", ir.FormatValue(v))
}

func asFloat(v ir.Value) (float64, error) {
	if f, ok := v.(ir.Float); ok {
		return float64(f), nil
	}
	if u, ok := v.(ir.UInt); ok {
		return float64(u), nil
	}
	n, err := asInt(v)
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}

func floatArith(op arithOp, a, b ir.Value) (ir.Value, error) {
	x, err := asFloat(a)
	if err != nil {
		return nil, err
	}
	y, err := asFloat(b)
	if err != nil {
		return nil, err
	}
	switch op {
	case opPlus:
		return ir.Float(x + y), nil
	case opMinus:
		return ir.Float(x - y), nil
	case opMultiply:
		return ir.Float(x * y), nil
	case opDivide:
		if y == 0 {
			return nil, errors.New("division by zero")
		}
		return ir.Float(x / y), nil
	case opIntDiv:
		if y == 0 {
			return nil, errors.New("division by zero")
		}
		q := math.Trunc(x / y)
		if math.IsNaN(q) || q < math.MinInt64 || q >= math.MaxInt64 {
			return nil, errOverflow
		}
		return ir.Int(int64(q)), nil
	case opModulo:
		if y == 0 {
			return nil, errors.New("division by zero")
		}
		return ir.Float(math.Mod(x, y)), nil
	}
	return nil, fmt.Errorf("unsupported operator %s", op)
}

func temporalArith(op arithOp, a, b ir.Value, rt ir.Type) (ir.Value, error) {
	base, offset := a, b
	if op == opPlus && isIntegral(ir.TypeOf(a)) {
		base, offset = b, a
	}
	x, err := asInt(base)
	if err != nil {
		return nil, err
	}
	y, err := asInt(offset)
	if err != nil {
		return nil, err
	}
	if op == opMinus {
		if y == math.MinInt64 {
			return nil, errOverflow
		}
		y = -y
	}
	sum, err := addInt(x, y)
	if err != nil {
		return nil, err
	}
	if rt == ir.TypeDate {
		if sum < math.MinInt32 || sum > math.MaxInt32 {
			return nil, errOverflow
		}
		return ir.Date(sum), nil
	}
	return ir.DateTime(sum), nil
}

func addInt(x, y int64) (int64, error) {
	s := x + y
	if (y > 0 && s < x) || (y < 0 && s > x) {
		return 0, errOverflow
	}
	return s, nil
}

func intArith(op arithOp, x, y int64) (ir.Value, error) {
	switch op {
	case opPlus:
		s, err := addInt(x, y)
		if err != nil {
			return nil, err
		}
		return ir.Int(s), nil
	case opMinus:
		if y == math.MinInt64 {
			if x >= 0 {
				return nil, errOverflow
			}
			return ir.Int(x - y), nil
		}
		s, err := addInt(x, -y)
		if err != nil {
			return nil, err
		}
		return ir.Int(s), nil
	case opMultiply:
		if x == 0 || y == 0 {
			return ir.Int(0), nil
		}
		p := x * y
		if p/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
			return nil, errOverflow
		}
		return ir.Int(p), nil
	case opIntDiv:
		if y == 0 {
			return nil, errors.New("division by zero")
		}
		if x == math.MinInt64 && y == -1 {
			return nil, errOverflow
		}
		return ir.Int(x / y), nil
	case opModulo:
		if y == 0 {
			return nil, errors.New("division by zero")
		}
		if y == -1 {
			return ir.Int(0), nil
		}
		return ir.Int(x % y), nil
	}
	return nil, fmt.Errorf("unsupported operator %s", op)
}

func uintArith(op arithOp, x, y uint64) (ir.Value, error) {
	switch op {
	case opPlus:
		s, carry := bits.Add64(x, y, 0)
		if carry != 0 {
			return nil, errOverflow
		}
		return ir.UInt(s), nil
	case opMultiply:
		hi, lo := bits.Mul64(x, y)
		if hi != 0 {
			return nil, errOverflow
		}
		return ir.UInt(lo), nil
	case opIntDiv:
		if y == 0 {
			return nil, errors.New("division by zero")
		}
		return ir.UInt(x / y), nil
	case opModulo:
		if y == 0 {
			return nil, errors.New("division by zero")
		}
		return ir.UInt(x % y), nil
	}
	return nil, fmt.Errorf("unsupported operator %s", op)
}

// constArg returns the fixed operand of a bound binary operator.
func constArg(b *Bound) ir.Value {
	return b.Const(1 - b.VarPos())
}

func plusMonotonicity(b *Bound, _, _ ir.ExtValue) Monotonicity {
	return alwaysIncreasing
}

func minusMonotonicity(b *Bound, _, _ ir.ExtValue) Monotonicity {
	// x - c rises with x, c - x falls.
	if b.VarPos() == 0 {
		return alwaysIncreasing
	}
	return alwaysDecreasing
}

func multiplyMonotonicity(b *Bound, _, _ ir.ExtValue) Monotonicity {
	s, ok := valueSign(constArg(b))
	switch {
	case !ok || s == 0:
		return notMonotonic
	case s > 0:
		return alwaysIncreasing
	default:
		return alwaysDecreasing
	}
}

func divideMonotonicity(b *Bound, left, right ir.ExtValue) Monotonicity {
	s, ok := valueSign(constArg(b))
	if !ok || s == 0 {
		return notMonotonic
	}
	if b.VarPos() == 0 {
		if s > 0 {
			return alwaysIncreasing
		}
		return alwaysDecreasing
	}
	// c / x is monotonic on each side of zero, falling for c > 0.
	ls, ok1 := extSign(left)
	rs, ok2 := extSign(right)
	if !ok1 || !ok2 || !(ls > 0 || rs < 0) {
		return notMonotonic
	}
	if s > 0 {
		return rangeDecreasing
	}
	return rangeIncreasing
}

func intDivMonotonicity(b *Bound, _, _ ir.ExtValue) Monotonicity {
	if b.VarPos() != 0 {
		return notMonotonic
	}
	s, ok := valueSign(constArg(b))
	switch {
	case !ok || s == 0:
		return notMonotonic
	case s > 0:
		return alwaysIncreasing
	default:
		return alwaysDecreasing
	}
}
