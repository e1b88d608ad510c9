// Package domain holds the governance aggregates: stake positions with
// unstake cooldowns, and timed parameter proposals.
package domain

import (
	"context"
	"math/big"
	"time"

	"ento-core/internal/fixedpoint"
)

// StakePosition tracks one account's stake in the governance vault.
// PendingUnstake holds tokens that left voting power but cannot be
// withdrawn until CooldownEnd.
type StakePosition struct {
	Account        string
	Staked         *big.Int
	PendingUnstake *big.Int
	CooldownEnd    time.Time
}

// Clone returns a deep copy.
func (p *StakePosition) Clone() *StakePosition {
	if p == nil {
		return nil
	}
	return &StakePosition{
		Account:        p.Account,
		Staked:         fixedpoint.Clone(p.Staked),
		PendingUnstake: fixedpoint.Clone(p.PendingUnstake),
		CooldownEnd:    p.CooldownEnd,
	}
}

// StakeRepository persists stake positions.
type StakeRepository interface {
	Find(ctx context.Context, account string) (*StakePosition, error)
	Save(ctx context.Context, position *StakePosition) error
	List(ctx context.Context) ([]*StakePosition, error)
	// TotalStaked sums Staked across all positions. Pending unstakes do
	// not count toward quorum.
	TotalStaked(ctx context.Context) (*big.Int, error)
}
