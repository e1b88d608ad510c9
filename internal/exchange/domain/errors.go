package exchange

import (
	"fmt"

	"ento-core/internal/fault"
)

var (
	// ErrInvalidAmount is returned for non-positive amounts.
	ErrInvalidAmount = fmt.Errorf("%w: exchange: amount must be positive", fault.ErrValidation)
	// ErrEmptyAccount is returned when an account id is missing.
	ErrEmptyAccount = fmt.Errorf("%w: exchange: empty account", fault.ErrValidation)
	// ErrPremiumTooLow is returned when a listing undercuts the premium floor.
	ErrPremiumTooLow = fmt.Errorf("%w: exchange: price below premium floor", fault.ErrValidation)
	// ErrOrderNotFound is returned for an unknown order id.
	ErrOrderNotFound = fmt.Errorf("%w: exchange: order not found", fault.ErrState)
	// ErrOrderInactive is returned when filling or cancelling a closed order.
	ErrOrderInactive = fmt.Errorf("%w: exchange: order inactive", fault.ErrState)
	// ErrInsufficientRemaining is returned when the fill exceeds the order remainder.
	ErrInsufficientRemaining = fmt.Errorf("%w: exchange: fill exceeds remaining", fault.ErrState)
	// ErrNotSeller is returned when cancel is attempted by a non-owner.
	ErrNotSeller = fmt.Errorf("%w: exchange: caller does not own order", fault.ErrAuthorization)
	// ErrCostExceedsMax is returned when the computed cost breaks the buyer cap.
	ErrCostExceedsMax = fmt.Errorf("%w: exchange: cost exceeds max tokens in", fault.ErrSlippage)
	// ErrMinOutUnmet is returned when a swap output is below the caller minimum.
	ErrMinOutUnmet = fmt.Errorf("%w: exchange: output below minimum", fault.ErrSlippage)
	// ErrPoolSeeded is returned on a second pool initialization.
	ErrPoolSeeded = fmt.Errorf("%w: exchange: pool already seeded", fault.ErrState)
	// ErrPoolNotSeeded is returned when the pool is used before seeding.
	ErrPoolNotSeeded = fmt.Errorf("%w: exchange: pool not seeded", fault.ErrState)
	// ErrInsufficientKWhCredit is returned when a swap spends more virtual kWh than held.
	ErrInsufficientKWhCredit = fmt.Errorf("%w: exchange: kWh credit too low", fault.ErrInsufficientFunds)
	// ErrNilOrder is returned when saving a nil order.
	ErrNilOrder = fmt.Errorf("%w: exchange: nil order", fault.ErrValidation)
)
