package lending

import (
	"fmt"

	"ento-core/internal/fault"
)

var (
	// ErrInvalidAmount is returned for non-positive amounts.
	ErrInvalidAmount = fmt.Errorf("%w: lending: amount must be positive", fault.ErrValidation)
	// ErrEmptyAccount is returned when the borrower id is missing.
	ErrEmptyAccount = fmt.Errorf("%w: lending: empty account", fault.ErrValidation)
	// ErrActiveLoanExists is returned when a borrower already has an open loan.
	ErrActiveLoanExists = fmt.Errorf("%w: lending: active loan exists", fault.ErrState)
	// ErrNoActiveLoan is returned when no open loan exists for the borrower.
	ErrNoActiveLoan = fmt.Errorf("%w: lending: no active loan", fault.ErrState)
	// ErrScoreTooLow is returned when the credit score misses the minimum.
	ErrScoreTooLow = fmt.Errorf("%w: lending: credit score below minimum", fault.ErrValidation)
	// ErrUndercollateralized is returned when collateral misses the safety floor.
	ErrUndercollateralized = fmt.Errorf("%w: lending: collateral below safety threshold", fault.ErrInsufficientFunds)
	// ErrUnsafeWithdrawal is returned when a withdrawal would break the safety floor.
	ErrUnsafeWithdrawal = fmt.Errorf("%w: lending: withdrawal breaks safety threshold", fault.ErrState)
	// ErrOverRepayment is returned when a repayment exceeds outstanding debt.
	ErrOverRepayment = fmt.Errorf("%w: lending: repayment exceeds debt", fault.ErrValidation)
	// ErrNotLiquidatable is returned when the health ratio is above the trigger.
	ErrNotLiquidatable = fmt.Errorf("%w: lending: loan not below liquidation threshold", fault.ErrState)
	// ErrNilLoan is returned when saving a nil loan.
	ErrNilLoan = fmt.Errorf("%w: lending: nil loan", fault.ErrValidation)
)
