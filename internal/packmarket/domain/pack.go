package packmarket

import (
	"context"
	"math/big"

	"ento-core/internal/fixedpoint"
)

// EnergyPack is a month-scoped kWh allocation for one account.
// Mutated only by the pack market on purchase.
type EnergyPack struct {
	Month           MonthKey
	Account         string
	KWhPurchased    int64
	EnTokenPaid     *big.Int
	LockedUnitPrice *big.Int
}

// Accumulate folds a follow-up purchase into the pack. The locked unit
// price moves to the latest purchase price, matching the last-write rule
// for repeat monthly buys.
func (p *EnergyPack) Accumulate(kWh int64, tokensPaid, unitPrice *big.Int) {
	p.KWhPurchased += kWh
	p.EnTokenPaid = fixedpoint.Add(p.EnTokenPaid, tokensPaid)
	p.LockedUnitPrice = fixedpoint.Clone(unitPrice)
}

// Clone returns a detached copy.
func (p *EnergyPack) Clone() *EnergyPack {
	if p == nil {
		return nil
	}
	return &EnergyPack{
		Month:           p.Month,
		Account:         p.Account,
		KWhPurchased:    p.KWhPurchased,
		EnTokenPaid:     fixedpoint.Clone(p.EnTokenPaid),
		LockedUnitPrice: fixedpoint.Clone(p.LockedUnitPrice),
	}
}

// Repository stores packs keyed by (month, account).
type Repository interface {
	Find(ctx context.Context, month MonthKey, account string) (*EnergyPack, error)
	Save(ctx context.Context, pack *EnergyPack) error
	ListByMonth(ctx context.Context, month MonthKey) ([]*EnergyPack, error)
	ListByAccount(ctx context.Context, account string) ([]*EnergyPack, error)
}
