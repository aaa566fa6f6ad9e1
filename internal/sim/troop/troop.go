package troop

import (
	"fmt"

	"monkeysim.dev/internal/sim/mathx"
)

// Troop is the whole population. Monkeys live in an arena indexed by id;
// throws address their destination by index.
type Troop struct {
	cfg     Config
	monkeys []*Monkey
	damp    dampener

	round uint64
	err   error
}

func New(defs []MonkeyDef, cfg Config) (*Troop, error) {
	cfg.applyDefaults()
	if len(defs) == 0 {
		return nil, ErrNoMonkeys
	}
	for i, d := range defs {
		if err := validateDef(i, d, len(defs)); err != nil {
			return nil, err
		}
	}
	t := &Troop{
		cfg:     cfg,
		monkeys: make([]*Monkey, 0, len(defs)),
	}
	for _, d := range defs {
		t.monkeys = append(t.monkeys, newMonkey(d))
	}
	damp, err := newDampener(cfg, defs)
	if err != nil {
		return nil, err
	}
	t.damp = damp
	return t, nil
}

func validateDef(i int, d MonkeyDef, n int) error {
	if d.Test.Divisor <= 0 {
		return fmt.Errorf("monkey %d: %w: %d", i, ErrBadDivisor, d.Test.Divisor)
	}
	if d.Test.IfTrue < 0 || d.Test.IfTrue >= n {
		return fmt.Errorf("monkey %d: %w: if true -> %d (have %d monkeys)", i, ErrBadTarget, d.Test.IfTrue, n)
	}
	if d.Test.IfFalse < 0 || d.Test.IfFalse >= n {
		return fmt.Errorf("monkey %d: %w: if false -> %d (have %d monkeys)", i, ErrBadTarget, d.Test.IfFalse, n)
	}
	if !d.Operation.valid() {
		return fmt.Errorf("monkey %d: %w", i, ErrBadOperation)
	}
	return nil
}

// Modulus returns the product of all divisors. It is computed once at
// construction and only used in ModeBounded.
func Modulus(defs []MonkeyDef) (int64, error) {
	m := int64(1)
	for i, d := range defs {
		if d.Test.Divisor <= 0 {
			return 0, fmt.Errorf("monkey %d: %w: %d", i, ErrBadDivisor, d.Test.Divisor)
		}
		next, ok := mathx.MulChecked(m, d.Test.Divisor)
		if !ok {
			return 0, fmt.Errorf("modulus at monkey %d: %w", i, ErrOverflow)
		}
		m = next
	}
	return m, nil
}

func (t *Troop) Config() Config       { return t.cfg }
func (t *Troop) Len() int             { return len(t.monkeys) }
func (t *Troop) Monkey(i int) *Monkey { return t.monkeys[i] }
func (t *Troop) CurrentRound() uint64 { return t.round }
func (t *Troop) Err() error           { return t.err }

// Modulus is the bounded-mode reduction modulus (0 in relief mode).
func (t *Troop) Modulus() int64 {
	if t.cfg.Mode != ModeBounded {
		return 0
	}
	return t.damp.arg
}

func (t *Troop) Inspections() []int64 {
	out := make([]int64, len(t.monkeys))
	for i, m := range t.monkeys {
		out[i] = m.inspected
	}
	return out
}

func (t *Troop) Held() []int {
	out := make([]int, len(t.monkeys))
	for i, m := range t.monkeys {
		out[i] = len(m.items)
	}
	return out
}

// TotalItems counts items across all queues.
func (t *Troop) TotalItems() int {
	n := 0
	for _, m := range t.monkeys {
		n += len(m.items)
	}
	return n
}
