package troop

import (
	"fmt"

	"monkeysim.dev/internal/sim/mathx"
)

// dampener keeps item values small after each operation.
type dampener struct {
	mode Mode
	arg  int64 // relief divisor or bounded modulus
}

func newDampener(cfg Config, defs []MonkeyDef) (dampener, error) {
	switch cfg.Mode {
	case ModeRelief:
		return dampener{mode: ModeRelief, arg: cfg.ReliefDivisor}, nil
	case ModeBounded:
		mod, err := Modulus(defs)
		if err != nil {
			return dampener{}, err
		}
		return dampener{mode: ModeBounded, arg: mod}, nil
	}
	return dampener{}, fmt.Errorf("%w: %q", ErrBadMode, cfg.Mode)
}

func (d dampener) apply(v int64) int64 {
	if d.mode == ModeBounded {
		return mathx.Mod(v, d.arg)
	}
	return mathx.FloorDiv(v, d.arg)
}
