package troop

import (
	"fmt"
	"sort"

	"monkeysim.dev/internal/sim/mathx"
)

// Score multiplies the two largest counts. Equal counts both take part.
func Score(counts []int64) (int64, error) {
	if len(counts) < 2 {
		return 0, fmt.Errorf("%w: have %d", ErrTooFewMonkeys, len(counts))
	}
	top := append([]int64(nil), counts...)
	sort.Slice(top, func(i, j int) bool { return top[i] > top[j] })
	v, ok := mathx.MulChecked(top[0], top[1])
	if !ok {
		return 0, fmt.Errorf("score %d * %d: %w", top[0], top[1], ErrOverflow)
	}
	return v, nil
}

// Score is the monkey business level of the current inspection counts.
func (t *Troop) Score() (int64, error) { return Score(t.Inspections()) }
