package troop

import "monkeysim.dev/internal/persistence/snapshot"

func (t *Troop) ExportSnapshot(runID string) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			RunID:   runID,
			Round:   t.round,
		},
		Mode:    string(t.cfg.Mode),
		Modulus: t.Modulus(),
		Monkeys: make([]snapshot.MonkeyV1, 0, len(t.monkeys)),
	}
	if t.cfg.Mode == ModeRelief {
		snap.ReliefDivisor = t.cfg.ReliefDivisor
	}
	for _, m := range t.monkeys {
		snap.Monkeys = append(snap.Monkeys, snapshot.MonkeyV1{
			Items:     m.Items(),
			Operation: m.op.String(),
			Divisor:   m.test.Divisor,
			IfTrue:    m.test.IfTrue,
			IfFalse:   m.test.IfFalse,
			Inspected: m.inspected,
		})
	}
	return snap
}
