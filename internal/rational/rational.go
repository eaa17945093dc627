// Package rational turns floating point literals into rationals
package rational

import (
	"math"
	"math/big"
)

// MaxDenominator bounds the denominators Approximate produces
const MaxDenominator = 1_000_000_000

// Approximate returns the continued-fraction convergent of f closest to it
// whose denominator does not exceed maxDen. It returns nil for NaN and infinities.
func Approximate(f float64, maxDen int64) *big.Rat {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if maxDen < 1 {
		maxDen = 1
	}
	neg := f < 0
	x := math.Abs(f)

	// convergents h/k
	h0, h1 := int64(0), int64(1)
	k0, k1 := int64(1), int64(0)
	rem := x
	for i := 0; i < 64; i++ {
		a := math.Floor(rem)
		if a > math.MaxInt64/2 {
			break
		}
		ai := int64(a)
		h2 := ai*h1 + h0
		k2 := ai*k1 + k0
		if k2 > maxDen || h2 < 0 {
			break
		}
		h0, h1 = h1, h2
		k0, k1 = k1, k2
		frac := rem - a
		if frac < 1e-18 {
			break
		}
		rem = 1 / frac
	}
	if k1 == 0 {
		// x is too large for any convergent: fall back to its integer part
		r := new(big.Rat)
		r.SetFloat64(math.Trunc(x))
		if neg {
			r.Neg(r)
		}
		return r
	}
	r := big.NewRat(h1, k1)
	if neg {
		r.Neg(r)
	}
	return r
}
