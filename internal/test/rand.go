package test

import (
	"encoding/binary"
)

// ExponentReader returns a source of randomness for which sample.Exponent always
// yields n, for any modulus p with n ≤ p-2.
func ExponentReader(n uint64) *Repeat {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n-1)
	return &Repeat{pattern: buf[:]}
}

// Repeat is an io.Reader which repeats a fixed pattern.
type Repeat struct {
	pattern []byte
	offset  int
}

func (r *Repeat) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.pattern[r.offset]
		r.offset = (r.offset + 1) % len(r.pattern)
	}
	return len(p), nil
}
