package sample

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
)

const maxIterations = 255

var ErrMaxIterations = fmt.Errorf("sample: failed to generate after %d iterations", maxIterations)

// ErrModulusTooSmall is returned when no exponent exists for the modulus.
var ErrModulusTooSmall = errors.New("sample: modulus must be at least 3")

func readBits(rand io.Reader, buf []byte) error {
	var err error
	for i := 0; i < maxIterations; i++ {
		if _, err = io.ReadFull(rand, buf); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrMaxIterations, err)
}

// Uint64N samples an element of [0, bound) by rejection, so that every value is
// equally likely. bound must be positive.
func Uint64N(rand io.Reader, bound uint64) (uint64, error) {
	if bound == 0 {
		return 0, errors.New("sample: bound must be positive")
	}
	// a shift by 64 yields 0, so the mask is all ones for the largest bounds
	mask := uint64(1)<<bits.Len64(bound-1) - 1
	var buf [8]byte
	for {
		if err := readBits(rand, buf[:]); err != nil {
			return 0, err
		}
		out := binary.BigEndian.Uint64(buf[:]) & mask
		if out < bound {
			return out, nil
		}
	}
}

// Exponent samples an ephemeral exponent n uniformly from [1, p-2].
func Exponent(rand io.Reader, p uint64) (uint64, error) {
	if p < 3 {
		return 0, ErrModulusTooSmall
	}
	n, err := Uint64N(rand, p-2)
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}
