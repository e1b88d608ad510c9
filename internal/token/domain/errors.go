package token

import (
	"fmt"

	"ento-core/internal/fault"
)

var (
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = fmt.Errorf("%w: token: amount must be positive", fault.ErrValidation)
	// ErrEmptyAccount is returned when an account id is empty.
	ErrEmptyAccount = fmt.Errorf("%w: token: empty account", fault.ErrValidation)
	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = fmt.Errorf("%w: token: balance too low", fault.ErrInsufficientFunds)
	// ErrInsufficientAllowance is returned when a spender exceeds its allowance.
	ErrInsufficientAllowance = fmt.Errorf("%w: token: allowance too low", fault.ErrInsufficientFunds)
	// ErrSelfTransfer is returned when source and destination are the same account.
	ErrSelfTransfer = fmt.Errorf("%w: token: self transfer", fault.ErrValidation)
)
