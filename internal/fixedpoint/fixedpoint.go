// Package fixedpoint provides exact integer math for token and kWh amounts
// with 18 implied decimals. Amounts are *big.Int so arithmetic never drifts
// and intermediate products never overflow.
package fixedpoint

import (
	"fmt"
	"math/big"
)

// Decimals is the number of implied decimal places.
const Decimals = 18

// One is the scaling unit (1e18). Treat as read-only.
var One = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// Zero returns a fresh zero amount.
func Zero() *big.Int { return new(big.Int) }

// FromInt64 scales a whole-unit value to 18 decimals.
func FromInt64(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), One)
}

// Parse reads a base-10 integer amount already scaled to 18 decimals.
func Parse(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("fixedpoint: invalid amount %q", s)
	}
	return v, nil
}

// Clone returns an independent copy; nil maps to zero.
func Clone(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// Add returns a+b without touching the inputs.
func Add(a, b *big.Int) *big.Int { return new(big.Int).Add(a, b) }

// Sub returns a-b without touching the inputs.
func Sub(a, b *big.Int) *big.Int { return new(big.Int).Sub(a, b) }

// MulDiv returns a*b/den with the full-width intermediate product,
// truncating toward zero. den must be positive.
func MulDiv(a, b, den *big.Int) *big.Int {
	p := new(big.Int).Mul(a, b)
	return p.Quo(p, den)
}

// ScaleUp returns v*1e18.
func ScaleUp(v *big.Int) *big.Int { return new(big.Int).Mul(v, One) }

// MulBps returns v*bps/10000, truncating.
func MulBps(v *big.Int, bps int64) *big.Int {
	return MulDiv(v, big.NewInt(bps), big.NewInt(10000))
}

// IsZero reports v == 0 (nil counts as zero).
func IsZero(v *big.Int) bool { return v == nil || v.Sign() == 0 }

// IsPositive reports v > 0.
func IsPositive(v *big.Int) bool { return v != nil && v.Sign() > 0 }

// IsNegative reports v < 0.
func IsNegative(v *big.Int) bool { return v != nil && v.Sign() < 0 }

// Cmp compares a and b treating nil as zero.
func Cmp(a, b *big.Int) int {
	if a == nil {
		a = zeroConst
	}
	if b == nil {
		b = zeroConst
	}
	return a.Cmp(b)
}

// String renders the raw scaled integer; zero for nil.
func String(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

var zeroConst = new(big.Int)
