// Package exchange holds resting surplus orders and the constant-product
// pool that anchors their premium floor.
package exchange

import (
	"context"
	"math/big"

	"ento-core/internal/fixedpoint"
)

// Order is a resting sell of surplus kWh at a fixed kWh-per-token price.
// KWhRemaining only decreases; Active flips to false exactly once.
type Order struct {
	ID           int64
	Seller       string
	KWhRemaining int64
	Price        *big.Int
	Active       bool
}

// Clone returns a detached copy.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	return &Order{
		ID:           o.ID,
		Seller:       o.Seller,
		KWhRemaining: o.KWhRemaining,
		Price:        fixedpoint.Clone(o.Price),
		Active:       o.Active,
	}
}

// Fill reduces the remainder and deactivates at zero.
func (o *Order) Fill(kWh int64) error {
	if !o.Active {
		return ErrOrderInactive
	}
	if kWh <= 0 {
		return ErrInvalidAmount
	}
	if kWh > o.KWhRemaining {
		return ErrInsufficientRemaining
	}
	o.KWhRemaining -= kWh
	if o.KWhRemaining == 0 {
		o.Active = false
	}
	return nil
}

// Repository stores orders keyed by id.
type Repository interface {
	NextID(ctx context.Context) (int64, error)
	Find(ctx context.Context, id int64) (*Order, error)
	Save(ctx context.Context, order *Order) error
	ListActive(ctx context.Context) ([]*Order, error)
}
