package sample

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync/atomic"

	"github.com/taurusgroup/elgamal-client/pkg/math/arith"
	"github.com/taurusgroup/elgamal-client/pkg/pool"
)

// trialPrimes contains the first odd prime numbers, used to discard most
// candidates before the expensive primality test.
var trialPrimes = []uint64{
	3, 5, 7, 11, 13, 17, 19, 23,
	29, 31, 37, 41, 43, 47, 53, 59,
	61, 67, 71, 73, 79, 83, 89, 97,
	101, 103, 107, 109, 113, 127, 131, 137,
}

// maxPrimeIterations is the number of times to try generating a new prime.
//
// This is substantially larger than the other max iterations we have for generation,
// because of the sparsity of safe primes.
const maxPrimeIterations = 1_000_000

// ErrMaxPrimeIterations is the error we return when we fail to generate a prime.
var ErrMaxPrimeIterations = fmt.Errorf("sample: failed to generate prime after %d iterations", maxPrimeIterations)

func isPrime(x uint64) bool {
	// ProbablyPrime is exact for inputs below 2⁶⁴.
	return new(big.Int).SetUint64(x).ProbablyPrime(0)
}

// potentialSafePrime returns a candidate p = 3 mod 4 of exactly the given bit size,
// such that neither p nor (p-1)/2 has a small factor.
func potentialSafePrime(rand io.Reader, bitSize int) (uint64, error) {
	top := uint64(1) << (bitSize - 1)
	x, err := Uint64N(rand, top)
	if err != nil {
		return 0, err
	}
	p := top | x | 3
	for _, prime := range trialPrimes {
		if p == prime || (p-1)/2 == prime {
			return p, nil
		}
		// p = 0 mod prime means p is not prime,
		// p = 1 mod prime means (p-1)/2 = 0 mod prime.
		if p%prime <= 1 {
			return 0, nil
		}
	}
	return p, nil
}

// SafePrime returns a safe prime p of exactly bitSize bits, with 3 ≤ bitSize ≤ 63.
//
// This means that q := (p - 1) / 2 is also a prime number. Candidates are tried
// on the workers of pl, which may be nil.
func SafePrime(rand io.Reader, bitSize int, pl *pool.Pool) (uint64, error) {
	if bitSize < 3 || bitSize > 63 {
		return 0, fmt.Errorf("sample: safe prime size %d must be between 3 and 63 bits", bitSize)
	}
	reader := pool.NewLockedReader(rand)
	var tries int64
	result := pl.Search(1, func() interface{} {
		if atomic.AddInt64(&tries, 1) > maxPrimeIterations {
			return ErrMaxPrimeIterations
		}
		p, err := potentialSafePrime(reader, bitSize)
		if err != nil {
			return err
		}
		// the check on q is the most likely to fail
		if p == 0 || !isPrime((p-1)/2) || !isPrime(p) {
			return nil
		}
		return p
	})[0]
	switch r := result.(type) {
	case uint64:
		return r, nil
	case error:
		return 0, r
	default:
		return 0, fmt.Errorf("sample: unexpected search result %T", result)
	}
}

// Generator returns a generator of ℤₚˣ for a safe prime p = 2q + 1.
//
// An element a is a generator exactly when a² ≠ 1 and a^q ≠ 1 (mod p).
func Generator(rand io.Reader, p uint64) (uint64, error) {
	if p < 5 {
		if p == 3 {
			return 2, nil
		}
		return 0, errors.New("sample: generator needs a safe prime p ≥ 3")
	}
	q := (p - 1) / 2
	for i := 0; i < maxIterations; i++ {
		a, err := Uint64N(rand, p-3)
		if err != nil {
			return 0, err
		}
		// a ∈ [2, p-2]
		a += 2
		if arith.ModPow(a, 2, p) != 1 && arith.ModPow(a, q, p) != 1 {
			return a, nil
		}
	}
	return 0, ErrMaxIterations
}
