// Package elgamal implements ElGamal encryption in the multiplicative group ℤₚˣ,
// for moduli that fit in 64 bits.
//
// The decrypting party draws an ephemeral Secret n for every exchange and
// publishes b = aⁿ (mod p). The encrypting party answers with the pair
//
//	y₁ = aᵏ (mod p), y₂ = m⋅bᵏ (mod p)
//
// from which the holder of n recovers m = y₂⋅y₁^(p-1-n) (mod p).
package elgamal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/taurusgroup/elgamal-client/pkg/math/arith"
	"github.com/taurusgroup/elgamal-client/pkg/math/sample"
)

// ErrInvalidParameters is returned for domain parameters that cannot define a round.
var ErrInvalidParameters = errors.New("elgamal: invalid parameters")

// Parameters are the public domain parameters used for one exchange.
type Parameters struct {
	// P is the prime modulus.
	P uint64 `cbor:"p" json:"p"`
	// A is the generator.
	A uint64 `cbor:"a" json:"a"`
}

// Validate checks the basic domain constraint p ≥ 3.
//
// Primality of p and the order of a are not verified.
func (p Parameters) Validate() error {
	if p.P < 3 {
		return fmt.Errorf("%w: p=%d", ErrInvalidParameters, p.P)
	}
	return nil
}

// Modulus returns p as an arith.Modulus.
func (p Parameters) Modulus() *arith.Modulus {
	return arith.ModulusFromUint64(p.P)
}

// WriteTo implements io.WriterTo.
func (p Parameters) WriteTo(w io.Writer) (int64, error) {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], p.P)
	binary.BigEndian.PutUint64(buf[8:], p.A)
	n, err := w.Write(buf[:])
	return int64(n), err
}

// Domain implements hash.WriterToWithDomain.
func (Parameters) Domain() string {
	return "ElGamal Parameters"
}

// PublicKey is the public contribution b = aⁿ (mod p).
type PublicKey uint64

// WriteTo implements io.WriterTo.
func (b PublicKey) WriteTo(w io.Writer) (int64, error) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(b))
	n, err := w.Write(buf[:])
	return int64(n), err
}

// Domain implements hash.WriterToWithDomain.
func (PublicKey) Domain() string {
	return "ElGamal Public Key"
}

// Ciphertext is the pair returned by the encrypting party.
type Ciphertext struct {
	// Y1 = aᵏ (mod p)
	Y1 uint64 `cbor:"y1" json:"y1"`
	// Y2 = m⋅bᵏ (mod p)
	Y2 uint64 `cbor:"y2" json:"y2"`
}

// WriteTo implements io.WriterTo.
func (c *Ciphertext) WriteTo(w io.Writer) (int64, error) {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], c.Y1)
	binary.BigEndian.PutUint64(buf[8:], c.Y2)
	n, err := w.Write(buf[:])
	return int64(n), err
}

// Domain implements hash.WriterToWithDomain.
func (Ciphertext) Domain() string {
	return "ElGamal Ciphertext"
}

// Encrypt encrypts message under public with the given nonce k.
func Encrypt(params Parameters, public PublicKey, message, nonce uint64) *Ciphertext {
	p := params.Modulus()
	return &Ciphertext{
		Y1: p.Exp(params.A, nonce),
		Y2: p.Mul(message, p.Exp(uint64(public), nonce)),
	}
}

// EncryptRandom is like Encrypt, but samples the nonce k ∈ [1, p-2] from rand.
// The nonce is returned alongside the ciphertext.
func EncryptRandom(rand io.Reader, params Parameters, public PublicKey, message uint64) (*Ciphertext, uint64, error) {
	if err := params.Validate(); err != nil {
		return nil, 0, err
	}
	nonce, err := sample.Exponent(rand, params.P)
	if err != nil {
		return nil, 0, err
	}
	return Encrypt(params, public, message, nonce), nonce, nil
}
