package r05d

import (
	"fmt"
	"sort"
)

// Mismatch is a check byte that disagrees with the data it covers.
// Index is relative to the block.
type Mismatch struct {
	Index int
	Got   byte
	Want  byte
}

// Checksum is the integrity rule of a block.
type Checksum interface {
	// Name is the configuration name of the rule.
	Name() string
	// IsCheck reports whether byte i of a block of n bytes is a check byte.
	IsCheck(i, n int) bool
	// Verify checks a complete block.
	Verify(block []byte) []Mismatch
}

var checksums = map[string]Checksum{}

func registerChecksum(c Checksum) { checksums[c.Name()] = c }

func init() {
	registerChecksum(Complement{})
	registerChecksum(Sum8{})
	registerChecksum(XOR8{})
	registerChecksum(NoChecksum{})
}

// ChecksumByName returns the registered checksum rule.
func ChecksumByName(name string) (Checksum, error) {
	c, ok := checksums[name]
	if !ok {
		names := make([]string, 0, len(checksums))
		for n := range checksums {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("%w: unknown checksum %q (known: %v)", ErrInvalidConfig, name, names)
	}
	return c, nil
}

// Complement is the R05D rule: every byte is followed by its bitwise inverse
// (A A' B B' C C').
type Complement struct{}

func (Complement) Name() string { return "complement" }

func (Complement) IsCheck(i, _ int) bool { return i%2 == 1 }

func (Complement) Verify(block []byte) []Mismatch {
	var m []Mismatch
	for i := 1; i < len(block); i += 2 {
		if want := ^block[i-1]; block[i] != want {
			m = append(m, Mismatch{Index: i, Got: block[i], Want: want})
		}
	}
	return m
}

// Sum8 expects the last byte to be the sum of the other bytes modulo 256.
type Sum8 struct{}

func (Sum8) Name() string { return "sum8" }

func (Sum8) IsCheck(i, n int) bool { return i == n-1 }

func (Sum8) Verify(block []byte) []Mismatch {
	if len(block) < 2 {
		return nil
	}
	var sum byte
	for _, b := range block[:len(block)-1] {
		sum += b
	}
	if last := block[len(block)-1]; last != sum {
		return []Mismatch{{Index: len(block) - 1, Got: last, Want: sum}}
	}
	return nil
}

// XOR8 expects the last byte to be the xor of the other bytes.
type XOR8 struct{}

func (XOR8) Name() string { return "xor8" }

func (XOR8) IsCheck(i, n int) bool { return i == n-1 }

func (XOR8) Verify(block []byte) []Mismatch {
	if len(block) < 2 {
		return nil
	}
	var x byte
	for _, b := range block[:len(block)-1] {
		x ^= b
	}
	if last := block[len(block)-1]; last != x {
		return []Mismatch{{Index: len(block) - 1, Got: last, Want: x}}
	}
	return nil
}

// NoChecksum accepts every block.
type NoChecksum struct{}

func (NoChecksum) Name() string { return "none" }

func (NoChecksum) IsCheck(int, int) bool { return false }

func (NoChecksum) Verify([]byte) []Mismatch { return nil }
