package domain

import (
	"fmt"

	"ento-core/internal/fault"
)

var (
	ErrInvalidAmount      = fmt.Errorf("%w: governance: amount must be positive", fault.ErrValidation)
	ErrEmptyAccount       = fmt.Errorf("%w: governance: empty account", fault.ErrValidation)
	ErrEmptyParam         = fmt.Errorf("%w: governance: empty parameter name", fault.ErrValidation)
	ErrInsufficientStake  = fmt.Errorf("%w: governance: insufficient staked balance", fault.ErrInsufficientFunds)
	ErrNoStake            = fmt.Errorf("%w: governance: no staked balance", fault.ErrState)
	ErrNoPendingUnstake   = fmt.Errorf("%w: governance: no pending unstake", fault.ErrState)
	ErrCooldownNotElapsed = fmt.Errorf("%w: governance: cooldown has not elapsed", fault.ErrTiming)
	ErrProposalNotFound   = fmt.Errorf("%w: governance: proposal not found", fault.ErrValidation)
	ErrVotingNotStarted   = fmt.Errorf("%w: governance: voting has not started", fault.ErrTiming)
	ErrVotingClosed       = fmt.Errorf("%w: governance: voting window has closed", fault.ErrTiming)
	ErrVotingNotEnded     = fmt.Errorf("%w: governance: voting window still open", fault.ErrTiming)
	ErrAlreadyVoted       = fmt.Errorf("%w: governance: account already voted", fault.ErrState)
	ErrInvalidVote        = fmt.Errorf("%w: governance: invalid vote choice", fault.ErrValidation)
	ErrNotSucceeded       = fmt.Errorf("%w: governance: proposal did not succeed", fault.ErrState)
	ErrNotQueued          = fmt.Errorf("%w: governance: proposal is not queued", fault.ErrState)
	ErrTimelockNotElapsed = fmt.Errorf("%w: governance: execution delay has not elapsed", fault.ErrTiming)
	ErrUnknownParam       = fmt.Errorf("%w: governance: unknown parameter", fault.ErrValidation)
	ErrNilProposal        = fmt.Errorf("%w: governance: nil proposal", fault.ErrValidation)
	ErrNilPosition        = fmt.Errorf("%w: governance: nil stake position", fault.ErrValidation)
)
