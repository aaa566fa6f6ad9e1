package troop

import (
	"fmt"
	"strconv"
	"strings"

	"monkeysim.dev/internal/sim/mathx"
)

type ExprKind uint8

const (
	ExprOld ExprKind = iota
	ExprLiteral
)

// Expression is an operand: the item's current value or a constant.
type Expression struct {
	Kind  ExprKind
	Value int64
}

func Old() Expression { return Expression{Kind: ExprOld} }

func Literal(v int64) Expression { return Expression{Kind: ExprLiteral, Value: v} }

func (e Expression) Eval(old int64) int64 {
	if e.Kind == ExprLiteral {
		return e.Value
	}
	return old
}

func (e Expression) String() string {
	if e.Kind == ExprLiteral {
		return strconv.FormatInt(e.Value, 10)
	}
	return "old"
}

type OpKind uint8

const (
	OpAdd OpKind = iota + 1
	OpMul
)

type Operation struct {
	Kind OpKind
	LHS  Expression
	RHS  Expression
}

func Add(lhs, rhs Expression) Operation { return Operation{Kind: OpAdd, LHS: lhs, RHS: rhs} }

func Multiply(lhs, rhs Expression) Operation { return Operation{Kind: OpMul, LHS: lhs, RHS: rhs} }

// Apply evaluates the operation for one item. It never returns a wrapped
// value: an out-of-range result is reported as ErrOverflow.
func (o Operation) Apply(old int64) (int64, error) {
	a, b := o.LHS.Eval(old), o.RHS.Eval(old)
	var (
		v  int64
		ok bool
	)
	switch o.Kind {
	case OpAdd:
		v, ok = mathx.AddChecked(a, b)
	case OpMul:
		v, ok = mathx.MulChecked(a, b)
	default:
		return 0, fmt.Errorf("%w: kind %d", ErrBadOperation, o.Kind)
	}
	if !ok {
		return 0, fmt.Errorf("%w: %d %s %d", ErrOverflow, a, o.symbol(), b)
	}
	return v, nil
}

func (o Operation) valid() bool {
	switch o.Kind {
	case OpAdd, OpMul:
	default:
		return false
	}
	return o.LHS.Kind <= ExprLiteral && o.RHS.Kind <= ExprLiteral
}

func (o Operation) symbol() string {
	switch o.Kind {
	case OpAdd:
		return "+"
	case OpMul:
		return "*"
	}
	return "?"
}

func (o Operation) String() string {
	return o.LHS.String() + " " + o.symbol() + " " + o.RHS.String()
}

// ParseOperation parses the right-hand side of "new = ...", e.g. "old * 19".
func ParseOperation(s string) (Operation, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return Operation{}, fmt.Errorf("%w: %q", ErrBadOperation, s)
	}
	lhs, err := parseExpression(fields[0])
	if err != nil {
		return Operation{}, err
	}
	rhs, err := parseExpression(fields[2])
	if err != nil {
		return Operation{}, err
	}
	switch fields[1] {
	case "+":
		return Add(lhs, rhs), nil
	case "*":
		return Multiply(lhs, rhs), nil
	default:
		return Operation{}, fmt.Errorf("%w: unknown operator %q", ErrBadOperation, fields[1])
	}
}

func parseExpression(s string) (Expression, error) {
	if s == "old" {
		return Old(), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Expression{}, fmt.Errorf("%w: operand %q", ErrBadOperation, s)
	}
	return Literal(n), nil
}
