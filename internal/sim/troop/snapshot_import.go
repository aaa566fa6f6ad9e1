package troop

import (
	"fmt"

	"monkeysim.dev/internal/persistence/snapshot"
)

// FromSnapshot rebuilds a troop at the snapshot's round.
func FromSnapshot(snap snapshot.SnapshotV1) (*Troop, error) {
	mode, err := ParseMode(snap.Mode)
	if err != nil {
		return nil, err
	}
	defs := make([]MonkeyDef, 0, len(snap.Monkeys))
	for i, m := range snap.Monkeys {
		op, err := ParseOperation(m.Operation)
		if err != nil {
			return nil, fmt.Errorf("snapshot monkey %d: %w", i, err)
		}
		defs = append(defs, MonkeyDef{
			Items:     m.Items,
			Operation: op,
			Test:      Test{Divisor: m.Divisor, IfTrue: m.IfTrue, IfFalse: m.IfFalse},
		})
	}
	t, err := New(defs, Config{Mode: mode, ReliefDivisor: snap.ReliefDivisor})
	if err != nil {
		return nil, err
	}
	if mode == ModeBounded && snap.Modulus != 0 && snap.Modulus != t.Modulus() {
		return nil, fmt.Errorf("snapshot modulus %d does not match divisors (%d)", snap.Modulus, t.Modulus())
	}
	for i, m := range snap.Monkeys {
		t.monkeys[i].inspected = m.Inspected
	}
	t.round = snap.Header.Round
	return t, nil
}
