package troop

func sampleDefs() []MonkeyDef {
	return []MonkeyDef{
		{
			Items:     []int64{79, 98},
			Operation: Multiply(Old(), Literal(19)),
			Test:      Test{Divisor: 23, IfTrue: 2, IfFalse: 3},
		},
		{
			Items:     []int64{54, 65, 75, 74},
			Operation: Add(Old(), Literal(6)),
			Test:      Test{Divisor: 19, IfTrue: 2, IfFalse: 0},
		},
		{
			Items:     []int64{79, 60, 97},
			Operation: Multiply(Old(), Old()),
			Test:      Test{Divisor: 13, IfTrue: 1, IfFalse: 3},
		},
		{
			Items:     []int64{74},
			Operation: Add(Old(), Literal(3)),
			Test:      Test{Divisor: 17, IfTrue: 0, IfFalse: 1},
		},
	}
}

func mustNew(t interface {
	Helper()
	Fatalf(string, ...any)
}, defs []MonkeyDef, cfg Config) *Troop {
	t.Helper()
	tr, err := New(defs, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}
