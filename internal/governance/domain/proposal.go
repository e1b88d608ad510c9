package domain

import (
	"context"
	"math/big"
	"time"

	"ento-core/internal/fixedpoint"
)

// ProposalState is the lifecycle position of a proposal.
type ProposalState string

const (
	// StatePending covers creation until the voting window opens.
	StatePending ProposalState = "pending"
	// StateActive covers the voting window.
	StateActive ProposalState = "active"
	// StateSucceeded means the window closed with quorum and a majority.
	StateSucceeded ProposalState = "succeeded"
	// StateDefeated means the window closed short of quorum or majority.
	StateDefeated ProposalState = "defeated"
	// StateQueued means the proposal cleared its tally and awaits the
	// execution delay.
	StateQueued ProposalState = "queued"
	// StateExecuted is terminal.
	StateExecuted ProposalState = "executed"
)

// VoteChoice is a ballot option.
type VoteChoice string

const (
	// VoteFor supports the proposal.
	VoteFor VoteChoice = "for"
	// VoteAgainst opposes the proposal.
	VoteAgainst VoteChoice = "against"
	// VoteAbstain counts toward turnout without taking a side.
	VoteAbstain VoteChoice = "abstain"
)

// ParseVoteChoice validates a ballot option string.
func ParseVoteChoice(value string) (VoteChoice, error) {
	switch VoteChoice(value) {
	case VoteFor, VoteAgainst, VoteAbstain:
		return VoteChoice(value), nil
	}
	return "", ErrInvalidVote
}

// Proposal is a single-parameter change put to a stake-weighted vote.
// Pending, active, succeeded, and defeated are derived from the clock and
// the tally; queued and executed are stored transitions.
type Proposal struct {
	ID          int64
	Proposer    string
	Param       string
	Value       string
	Description string

	VotingStart time.Time
	VotingEnd   time.Time
	ETA         time.Time

	ForVotes     *big.Int
	AgainstVotes *big.Int
	AbstainVotes *big.Int
	Voters       map[string]bool

	Queued   bool
	Executed bool
}

// Clone returns a deep copy.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	voters := make(map[string]bool, len(p.Voters))
	for k, v := range p.Voters {
		voters[k] = v
	}
	return &Proposal{
		ID:           p.ID,
		Proposer:     p.Proposer,
		Param:        p.Param,
		Value:        p.Value,
		Description:  p.Description,
		VotingStart:  p.VotingStart,
		VotingEnd:    p.VotingEnd,
		ETA:          p.ETA,
		ForVotes:     fixedpoint.Clone(p.ForVotes),
		AgainstVotes: fixedpoint.Clone(p.AgainstVotes),
		AbstainVotes: fixedpoint.Clone(p.AbstainVotes),
		Voters:       voters,
		Queued:       p.Queued,
		Executed:     p.Executed,
	}
}

// StateAt resolves the lifecycle state for a given instant. Queued and
// executed flags win over the clock-derived states.
func (p *Proposal) StateAt(now time.Time, quorum *big.Int) ProposalState {
	if p.Executed {
		return StateExecuted
	}
	if p.Queued {
		return StateQueued
	}
	if now.Before(p.VotingStart) {
		return StatePending
	}
	if now.Before(p.VotingEnd) {
		return StateActive
	}
	if p.TallyPassed(quorum) {
		return StateSucceeded
	}
	return StateDefeated
}

// TallyPassed reports whether for-votes beat against-votes and the
// combined turnout, abstentions included, reached quorum.
func (p *Proposal) TallyPassed(quorum *big.Int) bool {
	if fixedpoint.Cmp(p.ForVotes, p.AgainstVotes) <= 0 {
		return false
	}
	turnout := fixedpoint.Add(fixedpoint.Add(p.ForVotes, p.AgainstVotes), p.AbstainVotes)
	return turnout.Cmp(quorum) >= 0
}

// ProposalRepository persists proposals.
type ProposalRepository interface {
	Find(ctx context.Context, id int64) (*Proposal, error)
	Save(ctx context.Context, proposal *Proposal) error
	List(ctx context.Context) ([]*Proposal, error)
	NextID(ctx context.Context) (int64, error)
}
