// Package fault defines the shared failure taxonomy for the core modules.
// Module packages wrap these sentinels so callers can classify any failure
// with errors.Is regardless of which module produced it.
package fault

import "errors"

var (
	// ErrAuthorization is returned when the caller lacks a required role or permission.
	ErrAuthorization = errors.New("authorization")
	// ErrValidation is returned for malformed, zero, or out-of-bounds input.
	ErrValidation = errors.New("validation")
	// ErrState is returned when an operation arrives in the wrong phase.
	ErrState = errors.New("state")
	// ErrInsufficientFunds is returned on balance, allowance, or collateral shortfall.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrSlippage is returned when a minimum-output or maximum-input guard is violated.
	ErrSlippage = errors.New("slippage")
	// ErrReplay is returned when a single-use nonce is presented again.
	ErrReplay = errors.New("replay")
	// ErrTiming is returned when an operation is attempted outside its valid time window.
	ErrTiming = errors.New("timing")
)
