package troop

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
)

// Digest hashes the full simulation state. Two troops built from the same
// input and advanced the same number of rounds always agree.
func (t *Troop) Digest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, t.round)
	digestWriteString(h, &tmp, string(t.cfg.Mode))
	digestWriteI64(h, &tmp, t.damp.arg)
	digestWriteU64(h, &tmp, uint64(len(t.monkeys)))
	for _, m := range t.monkeys {
		digestWriteString(h, &tmp, m.op.String())
		digestWriteI64(h, &tmp, m.test.Divisor)
		digestWriteU64(h, &tmp, uint64(m.test.IfTrue))
		digestWriteU64(h, &tmp, uint64(m.test.IfFalse))
		digestWriteI64(h, &tmp, m.inspected)
		digestWriteU64(h, &tmp, uint64(len(m.items)))
		for _, v := range m.items {
			digestWriteI64(h, &tmp, v)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h io.Writer, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h io.Writer, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

// digestWriteString length-prefixes s so adjacent strings cannot run together.
func digestWriteString(h io.Writer, tmp *[8]byte, s string) {
	digestWriteU64(h, tmp, uint64(len(s)))
	_, _ = io.WriteString(h, s)
}
