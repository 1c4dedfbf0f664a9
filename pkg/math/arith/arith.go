package arith

import "math/bits"

// ModMul returns x⋅y (mod m).
//
// The product is computed on 128 bits, so the result is exact for every
// x, y < 2⁶⁴. m must be at least 1.
func ModMul(x, y, m uint64) uint64 {
	hi, lo := bits.Mul64(x, y)
	return bits.Rem64(hi, lo, m)
}

// ModPow returns baseᵉˣᵖ (mod m) using square-and-multiply.
//
// ModPow(x, 0, m) = 1 (mod m). The running time depends on the bits of exp,
// use Modulus.Exp when the exponent is secret.
func ModPow(base, exp, m uint64) uint64 {
	result := 1 % m
	base %= m
	for exp > 0 {
		if exp&1 == 1 {
			result = ModMul(result, base, m)
		}
		base = ModMul(base, base, m)
		exp >>= 1
	}
	return result
}
