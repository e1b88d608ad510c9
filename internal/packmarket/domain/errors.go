package packmarket

import (
	"fmt"

	"ento-core/internal/fault"
)

var (
	// ErrInvalidMonth is returned when a month key does not parse as YYYY-MM.
	ErrInvalidMonth = fmt.Errorf("%w: packmarket: invalid month key", fault.ErrValidation)
	// ErrInvalidKWh is returned for a non-positive kWh request.
	ErrInvalidKWh = fmt.Errorf("%w: packmarket: kWh must be positive", fault.ErrValidation)
	// ErrEmptyAccount is returned when the buyer account is empty.
	ErrEmptyAccount = fmt.Errorf("%w: packmarket: empty account", fault.ErrValidation)
	// ErrAlreadyPurchased is returned when the single-purchase toggle is on
	// and the account already holds a pack for the month.
	ErrAlreadyPurchased = fmt.Errorf("%w: packmarket: pack already purchased for month", fault.ErrValidation)
	// ErrNilPack is returned when saving a nil pack.
	ErrNilPack = fmt.Errorf("%w: packmarket: nil pack", fault.ErrValidation)
)
