package arith

import (
	"github.com/cronokirby/saferith"
)

// Modulus wraps a saferith.Modulus built from a 64 bit modulus m.
//
// It offers both the variable time operations on uint64 (Mul, Pow) and a
// constant time exponentiation (Exp) for exponents derived from secrets.
type Modulus struct {
	// represents modulus m
	*saferith.Modulus
	m uint64
}

// ModulusFromUint64 creates a Modulus for m ≥ 1.
func ModulusFromUint64(m uint64) *Modulus {
	if m == 0 {
		panic("arith: modulus must be at least 1")
	}
	return &Modulus{
		Modulus: saferith.ModulusFromUint64(m),
		m:       m,
	}
}

// Uint64 returns m.
func (n *Modulus) Uint64() uint64 { return n.m }

// Mul returns x⋅y (mod m).
func (n *Modulus) Mul(x, y uint64) uint64 { return ModMul(x, y, n.m) }

// Pow returns xᵉ (mod m) in variable time.
func (n *Modulus) Pow(x, e uint64) uint64 { return ModPow(x, e, n.m) }

// Exp returns xᵉ (mod m).
//
// For odd m, the exponent is handled as a full 64 bit number, so the running
// time does not depend on its value. saferith's exponentiation requires an odd
// modulus, so even moduli fall back to ModPow.
func (n *Modulus) Exp(x, e uint64) uint64 {
	if n.m == 1 {
		return 0
	}
	if n.m&1 == 0 {
		return ModPow(x, e, n.m)
	}
	xNat := new(saferith.Nat).SetUint64(x % n.m)
	eNat := new(saferith.Nat).SetUint64(e)
	return new(saferith.Nat).Exp(xNat, eNat, n.Modulus).Big().Uint64()
}
