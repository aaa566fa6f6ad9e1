package troop

import "errors"

var (
	ErrNoMonkeys     = errors.New("troop has no monkeys")
	ErrBadDivisor    = errors.New("divisor must be positive")
	ErrBadTarget     = errors.New("throw target out of range")
	ErrBadOperation  = errors.New("bad operation")
	ErrBadMode       = errors.New("unknown dampening mode")
	ErrOverflow      = errors.New("integer overflow")
	ErrTooFewMonkeys = errors.New("scoring needs at least two monkeys")
)
