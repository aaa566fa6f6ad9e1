package troop

// MonkeyDef is one decoded monkey record. Its position in the input
// establishes the monkey's id.
type MonkeyDef struct {
	Items     []int64
	Operation Operation
	Test      Test
}

type Monkey struct {
	items     []int64
	op        Operation
	test      Test
	inspected int64

	// spare is the drained buffer from the previous round, reused so the
	// queue being iterated never shares storage with the queue being filled.
	spare []int64
}

func newMonkey(def MonkeyDef) *Monkey {
	return &Monkey{
		items: append([]int64(nil), def.Items...),
		op:    def.Operation,
		test:  def.Test,
	}
}

func (m *Monkey) Items() []int64       { return append([]int64(nil), m.items...) }
func (m *Monkey) Operation() Operation { return m.op }
func (m *Monkey) Test() Test           { return m.test }
func (m *Monkey) Inspected() int64     { return m.inspected }
func (m *Monkey) Held() int            { return len(m.items) }
