package sample

import (
	"bytes"
	"crypto/rand"
	"errors"
	"math/big"
	mrand "math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/elgamal-client/pkg/math/arith"
	"github.com/taurusgroup/elgamal-client/pkg/pool"
)

func TestExponent_Range(t *testing.T) {
	r := mrand.New(mrand.NewSource(0))
	for _, p := range []uint64{3, 4, 5, 23, 65519, 1 << 40, 1<<63 + 29} {
		for i := 0; i < 500; i++ {
			n, err := Exponent(r, p)
			require.NoError(t, err)
			require.GreaterOrEqual(t, n, uint64(1))
			require.LessOrEqual(t, n, p-2)
		}
	}
}

func TestExponent_Small(t *testing.T) {
	n, err := Exponent(rand.Reader, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n, "p = 3 admits a single exponent")

	_, err = Exponent(rand.Reader, 2)
	assert.ErrorIs(t, err, ErrModulusTooSmall)
	_, err = Exponent(rand.Reader, 0)
	assert.ErrorIs(t, err, ErrModulusTooSmall)
}

func TestExponent_Uniform(t *testing.T) {
	r := mrand.New(mrand.NewSource(1))
	const p = 23
	counts := make(map[uint64]int)
	for i := 0; i < 21000; i++ {
		n, err := Exponent(r, p)
		require.NoError(t, err)
		counts[n]++
	}
	assert.Len(t, counts, p-2, "every exponent in [1, p-2] should appear")
	for n, c := range counts {
		assert.InDelta(t, 1000, c, 200, "exponent %d", n)
	}
}

func TestExponent_Deterministic(t *testing.T) {
	a, err := Exponent(mrand.New(mrand.NewSource(42)), 1<<61)
	require.NoError(t, err)
	b, err := Exponent(mrand.New(mrand.NewSource(42)), 1<<61)
	require.NoError(t, err)
	assert.Equal(t, a, b, "the same seed should give the same exponent")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestUint64N_ReadFailure(t *testing.T) {
	_, err := Uint64N(failingReader{}, 10)
	assert.ErrorIs(t, err, ErrMaxIterations)

	// a short reader is retried until the buffer is full
	_, err = Uint64N(bytes.NewReader([]byte{1, 2, 3}), 10)
	assert.Error(t, err)

	_, err = Uint64N(rand.Reader, 0)
	assert.Error(t, err)
}

func TestSafePrime(t *testing.T) {
	r := mrand.New(mrand.NewSource(0))
	for _, bitSize := range []int{3, 4, 8, 16, 32, 48, 63} {
		p, err := SafePrime(r, bitSize, nil)
		require.NoError(t, err)
		assert.Equal(t, bitSize, new(big.Int).SetUint64(p).BitLen())
		assert.True(t, new(big.Int).SetUint64(p).ProbablyPrime(20), "SafePrime generated a non prime number: %d", p)
		assert.True(t, new(big.Int).SetUint64((p-1)/2).ProbablyPrime(20), "p isn't safe because (p - 1) / 2 isn't prime: %d", p)
	}

	_, err := SafePrime(r, 2, nil)
	assert.Error(t, err)
	_, err = SafePrime(r, 64, nil)
	assert.Error(t, err)
}

func TestSafePrimePool(t *testing.T) {
	pl := pool.NewPool(4)
	defer pl.TearDown()
	for i := 0; i < 10; i++ {
		p, err := SafePrime(rand.Reader, 40, pl)
		require.NoError(t, err)
		assert.Equal(t, 40, new(big.Int).SetUint64(p).BitLen())
		assert.True(t, new(big.Int).SetUint64((p-1)/2).ProbablyPrime(20))
	}

	_, err := SafePrime(failingReader{}, 40, pl)
	assert.ErrorIs(t, err, ErrMaxIterations)
}

func TestGenerator(t *testing.T) {
	r := mrand.New(mrand.NewSource(0))
	for _, p := range []uint64{3, 5, 7, 11, 23, 2039} {
		a, err := Generator(r, p)
		require.NoError(t, err)
		// a generates the whole group when its powers visit every element
		seen := make(map[uint64]bool)
		for e := uint64(1); e < p; e++ {
			seen[arith.ModPow(a, e, p)] = true
		}
		assert.Len(t, seen, int(p-1), "%d does not generate Z_%d", a, p)
	}

	_, err := Generator(r, 2)
	assert.Error(t, err)
}

// This exists to save the results of functions we want to benchmark, to avoid
// having them optimized away.
var resultUint uint64

func BenchmarkSafePrime(b *testing.B) {
	for i := 0; i < b.N; i++ {
		resultUint, _ = SafePrime(rand.Reader, 62, nil)
	}
}
