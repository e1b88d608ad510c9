package exchange

import (
	"math/big"

	"ento-core/internal/fixedpoint"
)

// Pool is the constant-product market maker over token and virtual kWh
// reserves. Integer truncation on outputs means the reserve product never
// decreases across a swap, net of the fee.
type Pool struct {
	TokenReserve *big.Int
	KWhReserve   *big.Int
}

// NewPool returns an unseeded pool.
func NewPool() *Pool {
	return &Pool{TokenReserve: new(big.Int), KWhReserve: new(big.Int)}
}

// Seeded reports whether both reserves are populated.
func (p *Pool) Seeded() bool {
	return fixedpoint.IsPositive(p.TokenReserve) && fixedpoint.IsPositive(p.KWhReserve)
}

// SpotPrice returns the kWh-per-token reference price (WAD).
func (p *Pool) SpotPrice() (*big.Int, error) {
	if !p.Seeded() {
		return nil, ErrPoolNotSeeded
	}
	return fixedpoint.MulDiv(p.KWhReserve, fixedpoint.One, p.TokenReserve), nil
}

// QuoteOut computes the constant-product output for amountIn against the
// given reserves with the fee (bps) taken from the input side:
//
//	out = in*(10000-fee)*reserveOut / (reserveIn*10000 + in*(10000-fee))
func QuoteOut(amountIn, reserveIn, reserveOut *big.Int, feeBps int64) (*big.Int, error) {
	if !fixedpoint.IsPositive(amountIn) {
		return nil, ErrInvalidAmount
	}
	if !fixedpoint.IsPositive(reserveIn) || !fixedpoint.IsPositive(reserveOut) {
		return nil, ErrPoolNotSeeded
	}
	inAfterFee := new(big.Int).Mul(amountIn, big.NewInt(10000-feeBps))
	numerator := new(big.Int).Mul(inAfterFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(10000))
	denominator.Add(denominator, inAfterFee)
	return numerator.Quo(numerator, denominator), nil
}

// Product returns tokenReserve*kWhReserve for invariant checks.
func (p *Pool) Product() *big.Int {
	return new(big.Int).Mul(p.TokenReserve, p.KWhReserve)
}

// Clone returns a detached copy.
func (p *Pool) Clone() *Pool {
	return &Pool{
		TokenReserve: fixedpoint.Clone(p.TokenReserve),
		KWhReserve:   fixedpoint.Clone(p.KWhReserve),
	}
}
