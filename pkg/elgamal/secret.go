package elgamal

import (
	"fmt"
	"io"

	"github.com/taurusgroup/elgamal-client/pkg/math/sample"
)

// Secret is an ephemeral exponent n ∈ [1, p-2], bound to the parameters it was
// drawn for. It has no exported fields and no encoding, so it never leaves the
// process.
type Secret struct {
	params Parameters
	n      uint64
}

// GenerateSecret draws a fresh exponent for params from rand.
func GenerateSecret(rand io.Reader, params Parameters) (*Secret, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	n, err := sample.Exponent(rand, params.P)
	if err != nil {
		return nil, fmt.Errorf("elgamal: failed to sample secret: %w", err)
	}
	return &Secret{params: params, n: n}, nil
}

// NewSecret wraps a known exponent n, which must lie in [1, p-2].
func NewSecret(params Parameters, n uint64) (*Secret, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if n < 1 || n > params.P-2 {
		return nil, fmt.Errorf("elgamal: exponent outside of [1, %d]", params.P-2)
	}
	return &Secret{params: params, n: n}, nil
}

// Parameters returns the parameters this secret belongs to.
func (s *Secret) Parameters() Parameters { return s.params }

// PublicKey returns the public contribution b = aⁿ (mod p).
func (s *Secret) PublicKey() PublicKey {
	return PublicKey(s.params.Modulus().Exp(s.params.A, s.n))
}

// Decrypt recovers the message from c as y₂⋅y₁^(p-1-n) (mod p), reinterpreted
// as a signed integer.
//
// y₁ and y₂ are not range checked; values ≥ p are reduced.
func (s *Secret) Decrypt(c *Ciphertext) int64 {
	p := s.params.Modulus()
	// n ≤ p-2, so the exponent is at least 1
	exponent := s.params.P - 1 - s.n
	x := p.Mul(c.Y2, p.Exp(c.Y1, exponent))
	return int64(x)
}

// Erase clears the exponent. The Secret must not be used afterwards.
func (s *Secret) Erase() {
	s.n = 0
}
