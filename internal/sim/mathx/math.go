package mathx

func FloorDiv(a, b int64) int64 {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int64) int64 {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// AddChecked returns a+b and false if the sum does not fit in an int64.
func AddChecked(a, b int64) (int64, bool) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return c, false
	}
	return c, true
}

// MulChecked returns a*b and false if the product does not fit in an int64.
func MulChecked(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if (c < 0) != ((a < 0) != (b < 0)) {
		return c, false
	}
	if c/b != a {
		return c, false
	}
	return c, true
}
