package packmarket

import (
	"errors"
	"math/big"
	"sync"

	"ento-core/internal/fixedpoint"
)

// BondingCurve prices kWh per token as a linear function of circulating
// supply:
//
//	price = floor + totalSupply*slope/genesisSupply
//
// All terms are WAD fixed point. The floor keeps the price strictly
// positive at zero supply and the non-negative slope keeps it monotonic
// non-decreasing in supply.
type BondingCurve struct {
	mu            sync.RWMutex
	floor         *big.Int
	slope         *big.Int
	genesisSupply *big.Int
}

// NewBondingCurve constructs a curve. floor must be positive, slope
// non-negative, genesisSupply positive.
func NewBondingCurve(floor, slope, genesisSupply *big.Int) (*BondingCurve, error) {
	if !fixedpoint.IsPositive(floor) {
		return nil, errors.New("bonding curve: floor must be positive")
	}
	if fixedpoint.IsNegative(slope) {
		return nil, errors.New("bonding curve: negative slope")
	}
	if !fixedpoint.IsPositive(genesisSupply) {
		return nil, errors.New("bonding curve: genesis supply must be positive")
	}
	return &BondingCurve{
		floor:         fixedpoint.Clone(floor),
		slope:         fixedpoint.Clone(slope),
		genesisSupply: fixedpoint.Clone(genesisSupply),
	}, nil
}

// UnitPrice returns the kWh-per-token price at the given total supply.
func (c *BondingCurve) UnitPrice(totalSupply *big.Int) *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	scaled := fixedpoint.MulDiv(fixedpoint.Clone(totalSupply), c.slope, c.genesisSupply)
	return fixedpoint.Add(c.floor, scaled)
}

// GenesisSupply returns the configured genesis supply.
func (c *BondingCurve) GenesisSupply() *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fixedpoint.Clone(c.genesisSupply)
}

// SetSlope updates the curve slope (governance parameter).
func (c *BondingCurve) SetSlope(slope *big.Int) error {
	if fixedpoint.IsNegative(slope) {
		return errors.New("bonding curve: negative slope")
	}
	c.mu.Lock()
	c.slope = fixedpoint.Clone(slope)
	c.mu.Unlock()
	return nil
}

// SetFloor updates the floor price (governance parameter).
func (c *BondingCurve) SetFloor(floor *big.Int) error {
	if !fixedpoint.IsPositive(floor) {
		return errors.New("bonding curve: floor must be positive")
	}
	c.mu.Lock()
	c.floor = fixedpoint.Clone(floor)
	c.mu.Unlock()
	return nil
}
