package settlement

import (
	"fmt"

	"ento-core/internal/fault"
)

var (
	// ErrNoPackForMonth is returned when usage arrives for a month without a pack.
	ErrNoPackForMonth = fmt.Errorf("%w: settlement: no pack for month", fault.ErrState)
	// ErrAlreadySettled is returned on a second claim for the same month.
	ErrAlreadySettled = fmt.Errorf("%w: settlement: month already settled", fault.ErrState)
	// ErrNonceUsed is returned when a usage nonce is presented again.
	ErrNonceUsed = fmt.Errorf("%w: settlement: nonce already used", fault.ErrReplay)
	// ErrBadSignature is returned when a usage signature does not verify.
	ErrBadSignature = fmt.Errorf("%w: settlement: invalid usage signature", fault.ErrAuthorization)
	// ErrInvalidKWh is returned for a non-positive kWh reading.
	ErrInvalidKWh = fmt.Errorf("%w: settlement: kWh must be positive", fault.ErrValidation)
	// ErrEmptyNonce is returned when the nonce is missing.
	ErrEmptyNonce = fmt.Errorf("%w: settlement: empty nonce", fault.ErrValidation)
	// ErrEmptyAccount is returned when the account id is missing.
	ErrEmptyAccount = fmt.Errorf("%w: settlement: empty account", fault.ErrValidation)
	// ErrInvalidScore is returned for a credit score outside [0,100].
	ErrInvalidScore = fmt.Errorf("%w: settlement: score out of range", fault.ErrValidation)
	// ErrNilUsage is returned when saving a nil usage record.
	ErrNilUsage = fmt.Errorf("%w: settlement: nil usage record", fault.ErrValidation)
)
