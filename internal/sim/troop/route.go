package troop

// Test routes an item by divisibility.
type Test struct {
	Divisor int64
	IfTrue  int
	IfFalse int
}

func (t Test) Route(v int64) int {
	if v%t.Divisor == 0 {
		return t.IfTrue
	}
	return t.IfFalse
}
