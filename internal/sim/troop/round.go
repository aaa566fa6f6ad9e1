package troop

import "fmt"

// RoundLogEntry summarizes one completed round.
type RoundLogEntry struct {
	Round     uint64  `json:"round"`
	Digest    string  `json:"digest"`
	Inspected []int64 `json:"inspected"`
	Held      []int   `json:"held"`
	Throws    int     `json:"throws"`
}

// Round advances the troop by one round and describes the resulting state.
func (t *Troop) Round() (RoundLogEntry, error) {
	throws, err := t.step()
	if err != nil {
		return RoundLogEntry{}, err
	}
	return RoundLogEntry{
		Round:     t.round,
		Digest:    t.Digest(),
		Inspected: t.Inspections(),
		Held:      t.Held(),
		Throws:    throws,
	}, nil
}

// Run advances the troop by n rounds.
func (t *Troop) Run(n int) error {
	for i := 0; i < n; i++ {
		if _, err := t.step(); err != nil {
			return err
		}
	}
	return nil
}

// StepOnce runs one round and returns its number and the resulting digest.
// It is primarily intended for replays and tests.
func (t *Troop) StepOnce() (round uint64, digest string, err error) {
	if _, err := t.step(); err != nil {
		return 0, "", err
	}
	return t.round, t.Digest(), nil
}

// step runs one round. Monkeys take turns in id order and each drains
// whatever its queue holds when its turn starts, so items thrown to a later
// monkey are handled this round and items thrown to an earlier monkey (or
// back to the thrower) wait for the next one.
//
// An error leaves the troop unusable: every later call returns it again.
func (t *Troop) step() (throws int, err error) {
	if t.err != nil {
		return 0, t.err
	}
	for i, m := range t.monkeys {
		items := m.items
		m.items = m.spare[:0]
		for _, item := range items {
			m.inspected++
			v, err := m.op.Apply(item)
			if err != nil {
				t.err = fmt.Errorf("round %d monkey %d item %d: %w", t.round+1, i, item, err)
				return throws, t.err
			}
			v = t.damp.apply(v)
			dst := t.monkeys[m.test.Route(v)]
			dst.items = append(dst.items, v)
			throws++
		}
		m.spare = items[:0]
	}
	t.round++
	return throws, nil
}
