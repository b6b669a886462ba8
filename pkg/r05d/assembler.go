package r05d

// Bit is a decoded data bit. Start is the begin of the low half, End the
// end of the high half.
type Bit struct {
	Value int
	Start int64
	End   int64
}

// Byte is a group of 8 bits, MSB first.
type Byte struct {
	Value byte
	Bits  [8]Bit
	Start int64
	End   int64
}

// Span returns start and end of the bits first..last (MSB = 0).
func (b Byte) Span(first, last int) (start, end int64) {
	return b.Bits[first].Start, b.Bits[last].End
}

// Assembler packs bits MSB first into bytes.
type Assembler struct {
	bits [8]Bit
	n    int
}

// Push adds a bit and returns the completed byte after the 8th bit.
func (a *Assembler) Push(b Bit) (Byte, bool) {
	a.bits[a.n] = b
	a.n++
	if a.n < len(a.bits) {
		return Byte{}, false
	}

	out := Byte{Bits: a.bits, Start: a.bits[0].Start, End: a.bits[7].End}
	for _, bit := range a.bits {
		out.Value = out.Value<<1 | byte(bit.Value&1)
	}
	a.n = 0
	return out, true
}

// Pending returns the number of bits of the incomplete byte.
func (a *Assembler) Pending() int {
	return a.n
}

// Reset drops the bits of the incomplete byte.
func (a *Assembler) Reset() {
	a.n = 0
}
