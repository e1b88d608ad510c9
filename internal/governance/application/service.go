// Package application implements governance use cases: staking with an
// unstake cooldown and the timed proposal lifecycle that drives parameter
// changes across the other modules.
package application

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"ento-core/internal/access"
	"ento-core/internal/clock"
	"ento-core/internal/fixedpoint"
	governance "ento-core/internal/governance/domain"
	token "ento-core/internal/token/domain"
)

// Staked is emitted when tokens enter the vault.
type Staked struct {
	Account    string    `json:"account"`
	Amount     string    `json:"amount"`
	Staked     string    `json:"staked"`
	OccurredAt time.Time `json:"occurred_at"`
}

// UnstakeRequested is emitted when tokens enter cooldown.
type UnstakeRequested struct {
	Account     string    `json:"account"`
	Amount      string    `json:"amount"`
	CooldownEnd time.Time `json:"cooldown_end"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// UnstakeWithdrawn is emitted when cooled-down tokens leave the vault.
type UnstakeWithdrawn struct {
	Account    string    `json:"account"`
	Amount     string    `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ProposalCreated is emitted on Propose.
type ProposalCreated struct {
	ProposalID  int64     `json:"proposal_id"`
	Proposer    string    `json:"proposer"`
	Param       string    `json:"param"`
	Value       string    `json:"value"`
	VotingStart time.Time `json:"voting_start"`
	VotingEnd   time.Time `json:"voting_end"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// VoteCast is emitted on each accepted vote.
type VoteCast struct {
	ProposalID int64     `json:"proposal_id"`
	Voter      string    `json:"voter"`
	Choice     string    `json:"choice"`
	Weight     string    `json:"weight"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ProposalQueued is emitted when a passed proposal enters the timelock.
type ProposalQueued struct {
	ProposalID int64     `json:"proposal_id"`
	ETA        time.Time `json:"eta"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ProposalExecuted is emitted when the parameter change is applied.
type ProposalExecuted struct {
	ProposalID int64     `json:"proposal_id"`
	Executor   string    `json:"executor"`
	Param      string    `json:"param"`
	Value      string    `json:"value"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits governance events.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// ParamApplier applies an executed proposal's value to a live module
// parameter. Appliers parse and validate the raw value themselves.
type ParamApplier func(value string) error

// Params holds the governance timing and quorum configuration.
type Params struct {
	VotingDelay    time.Duration
	VotingPeriod   time.Duration
	ExecutionDelay time.Duration
	Cooldown       time.Duration
	QuorumBps      int64
}

// GovernanceService owns the staking vault and the proposal lifecycle.
type GovernanceService struct {
	mu sync.Mutex

	stakes    governance.StakeRepository
	proposals governance.ProposalRepository
	ledger    *token.Ledger
	registry  *access.Registry
	vault     string
	params    Params
	appliers  map[string]ParamApplier

	publisher Publisher
	clock     clock.Clock
}

// NewGovernanceService constructs the service.
func NewGovernanceService(
	stakes governance.StakeRepository,
	proposals governance.ProposalRepository,
	ledger *token.Ledger,
	registry *access.Registry,
	vault string,
	params Params,
	publisher Publisher,
	clk clock.Clock,
) (*GovernanceService, error) {
	if stakes == nil {
		return nil, errors.New("governance service: nil stake repository")
	}
	if proposals == nil {
		return nil, errors.New("governance service: nil proposal repository")
	}
	if ledger == nil {
		return nil, errors.New("governance service: nil ledger")
	}
	if registry == nil {
		return nil, errors.New("governance service: nil access registry")
	}
	if vault == "" {
		return nil, errors.New("governance service: empty vault account")
	}
	if params.QuorumBps < 0 || params.QuorumBps > 10000 {
		return nil, errors.New("governance service: quorum out of range")
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &GovernanceService{
		stakes:    stakes,
		proposals: proposals,
		ledger:    ledger,
		registry:  registry,
		vault:     vault,
		params:    params,
		appliers:  make(map[string]ParamApplier),
		publisher: publisher,
		clock:     clk,
	}, nil
}

// RegisterParam binds a parameter name to its applier. Called once at
// wiring time; unknown parameters are rejected at Propose.
func (s *GovernanceService) RegisterParam(name string, applier ParamApplier) {
	s.mu.Lock()
	s.appliers[name] = applier
	s.mu.Unlock()
}

// Stake moves tokens into the vault and adds them to voting power.
func (s *GovernanceService) Stake(ctx context.Context, account string, amount *big.Int) error {
	if account == "" {
		return governance.ErrEmptyAccount
	}
	if !fixedpoint.IsPositive(amount) {
		return governance.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.Transfer(account, s.vault, amount); err != nil {
		return err
	}

	position, err := s.stakes.Find(ctx, account)
	if err != nil {
		return err
	}
	if position == nil {
		position = &governance.StakePosition{
			Account:        account,
			Staked:         fixedpoint.Zero(),
			PendingUnstake: fixedpoint.Zero(),
		}
	}
	position.Staked = fixedpoint.Add(position.Staked, amount)
	if err := s.stakes.Save(ctx, position); err != nil {
		return err
	}

	s.publish(ctx, Staked{
		Account:    account,
		Amount:     fixedpoint.String(amount),
		Staked:     fixedpoint.String(position.Staked),
		OccurredAt: s.clock.Now(),
	})
	return nil
}

// RequestUnstake moves stake into cooldown. The tokens lose voting power
// immediately; a repeat request folds in and restarts the cooldown.
func (s *GovernanceService) RequestUnstake(ctx context.Context, account string, amount *big.Int) (time.Time, error) {
	if account == "" {
		return time.Time{}, governance.ErrEmptyAccount
	}
	if !fixedpoint.IsPositive(amount) {
		return time.Time{}, governance.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	position, err := s.stakes.Find(ctx, account)
	if err != nil {
		return time.Time{}, err
	}
	if position == nil || !fixedpoint.IsPositive(position.Staked) {
		return time.Time{}, governance.ErrNoStake
	}
	if amount.Cmp(position.Staked) > 0 {
		return time.Time{}, governance.ErrInsufficientStake
	}

	position.Staked = fixedpoint.Sub(position.Staked, amount)
	position.PendingUnstake = fixedpoint.Add(position.PendingUnstake, amount)
	position.CooldownEnd = s.clock.Now().Add(s.params.Cooldown)
	if err := s.stakes.Save(ctx, position); err != nil {
		return time.Time{}, err
	}

	s.publish(ctx, UnstakeRequested{
		Account:     account,
		Amount:      fixedpoint.String(amount),
		CooldownEnd: position.CooldownEnd,
		OccurredAt:  s.clock.Now(),
	})
	return position.CooldownEnd, nil
}

// WithdrawUnstaked releases the full pending amount after the cooldown.
func (s *GovernanceService) WithdrawUnstaked(ctx context.Context, account string) (*big.Int, error) {
	if account == "" {
		return nil, governance.ErrEmptyAccount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	position, err := s.stakes.Find(ctx, account)
	if err != nil {
		return nil, err
	}
	if position == nil || !fixedpoint.IsPositive(position.PendingUnstake) {
		return nil, governance.ErrNoPendingUnstake
	}
	if s.clock.Now().Before(position.CooldownEnd) {
		return nil, governance.ErrCooldownNotElapsed
	}

	amount := fixedpoint.Clone(position.PendingUnstake)
	if err := s.ledger.Transfer(s.vault, account, amount); err != nil {
		return nil, err
	}
	position.PendingUnstake = fixedpoint.Zero()
	position.CooldownEnd = time.Time{}
	if err := s.stakes.Save(ctx, position); err != nil {
		return nil, err
	}

	s.publish(ctx, UnstakeWithdrawn{
		Account:    account,
		Amount:     fixedpoint.String(amount),
		OccurredAt: s.clock.Now(),
	})
	return amount, nil
}

// Propose opens a parameter-change proposal. The proposer must hold
// stake, and the parameter must have a registered applier.
func (s *GovernanceService) Propose(ctx context.Context, proposer, param, value, description string) (*governance.Proposal, error) {
	if proposer == "" {
		return nil, governance.ErrEmptyAccount
	}
	if param == "" {
		return nil, governance.ErrEmptyParam
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.appliers[param]; !ok {
		return nil, governance.ErrUnknownParam
	}
	position, err := s.stakes.Find(ctx, proposer)
	if err != nil {
		return nil, err
	}
	if position == nil || !fixedpoint.IsPositive(position.Staked) {
		return nil, governance.ErrNoStake
	}

	id, err := s.proposals.NextID(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	proposal := &governance.Proposal{
		ID:           id,
		Proposer:     proposer,
		Param:        param,
		Value:        value,
		Description:  description,
		VotingStart:  now.Add(s.params.VotingDelay),
		VotingEnd:    now.Add(s.params.VotingDelay + s.params.VotingPeriod),
		ForVotes:     fixedpoint.Zero(),
		AgainstVotes: fixedpoint.Zero(),
		AbstainVotes: fixedpoint.Zero(),
		Voters:       make(map[string]bool),
	}
	if err := s.proposals.Save(ctx, proposal); err != nil {
		return nil, err
	}

	s.publish(ctx, ProposalCreated{
		ProposalID:  id,
		Proposer:    proposer,
		Param:       param,
		Value:       value,
		VotingStart: proposal.VotingStart,
		VotingEnd:   proposal.VotingEnd,
		OccurredAt:  now,
	})
	return proposal.Clone(), nil
}

// CastVote records a stake-weighted vote inside the voting window. Each
// account votes at most once per proposal; weight is the voter's current
// staked balance at cast time.
func (s *GovernanceService) CastVote(ctx context.Context, voter string, proposalID int64, choice governance.VoteChoice) error {
	if voter == "" {
		return governance.ErrEmptyAccount
	}
	if _, err := governance.ParseVoteChoice(string(choice)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, err := s.proposals.Find(ctx, proposalID)
	if err != nil {
		return err
	}
	if proposal == nil {
		return governance.ErrProposalNotFound
	}
	now := s.clock.Now()
	if now.Before(proposal.VotingStart) {
		return governance.ErrVotingNotStarted
	}
	if !now.Before(proposal.VotingEnd) {
		return governance.ErrVotingClosed
	}
	if proposal.Voters[voter] {
		return governance.ErrAlreadyVoted
	}

	position, err := s.stakes.Find(ctx, voter)
	if err != nil {
		return err
	}
	if position == nil || !fixedpoint.IsPositive(position.Staked) {
		return governance.ErrNoStake
	}

	weight := fixedpoint.Clone(position.Staked)
	switch choice {
	case governance.VoteFor:
		proposal.ForVotes = fixedpoint.Add(proposal.ForVotes, weight)
	case governance.VoteAgainst:
		proposal.AgainstVotes = fixedpoint.Add(proposal.AgainstVotes, weight)
	case governance.VoteAbstain:
		proposal.AbstainVotes = fixedpoint.Add(proposal.AbstainVotes, weight)
	}
	proposal.Voters[voter] = true
	if err := s.proposals.Save(ctx, proposal); err != nil {
		return err
	}

	s.publish(ctx, VoteCast{
		ProposalID: proposalID,
		Voter:      voter,
		Choice:     string(choice),
		Weight:     fixedpoint.String(weight),
		OccurredAt: now,
	})
	return nil
}

// Queue moves a succeeded proposal into the timelock. Quorum is measured
// against total staked balance at queue time.
func (s *GovernanceService) Queue(ctx context.Context, proposalID int64) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, err := s.proposals.Find(ctx, proposalID)
	if err != nil {
		return time.Time{}, err
	}
	if proposal == nil {
		return time.Time{}, governance.ErrProposalNotFound
	}
	now := s.clock.Now()
	if now.Before(proposal.VotingEnd) {
		return time.Time{}, governance.ErrVotingNotEnded
	}
	if proposal.Queued || proposal.Executed {
		return time.Time{}, governance.ErrNotSucceeded
	}

	quorum, err := s.quorum(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if !proposal.TallyPassed(quorum) {
		return time.Time{}, governance.ErrNotSucceeded
	}

	proposal.Queued = true
	proposal.ETA = now.Add(s.params.ExecutionDelay)
	if err := s.proposals.Save(ctx, proposal); err != nil {
		return time.Time{}, err
	}

	s.publish(ctx, ProposalQueued{
		ProposalID: proposalID,
		ETA:        proposal.ETA,
		OccurredAt: now,
	})
	return proposal.ETA, nil
}

// Execute applies a queued proposal at or after its ETA. Requires the
// executor role and runs exactly once.
func (s *GovernanceService) Execute(ctx context.Context, actor string, proposalID int64) error {
	if err := s.registry.Require(actor, access.RoleExecutor); err != nil {
		return err
	}

	s.mu.Lock()
	proposal, err := s.proposals.Find(ctx, proposalID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if proposal == nil {
		s.mu.Unlock()
		return governance.ErrProposalNotFound
	}
	if !proposal.Queued || proposal.Executed {
		s.mu.Unlock()
		return governance.ErrNotQueued
	}
	now := s.clock.Now()
	if now.Before(proposal.ETA) {
		s.mu.Unlock()
		return governance.ErrTimelockNotElapsed
	}

	applier, ok := s.appliers[proposal.Param]
	if !ok {
		s.mu.Unlock()
		return governance.ErrUnknownParam
	}

	// Mark the proposal executed before releasing the lock so a concurrent
	// Execute cannot apply it twice. Appliers for governance's own parameters
	// call back into this service and must run without the lock held.
	proposal.Executed = true
	if err := s.proposals.Save(ctx, proposal); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if err := applier(proposal.Value); err != nil {
		s.mu.Lock()
		proposal.Executed = false
		if saveErr := s.proposals.Save(ctx, proposal); saveErr != nil {
			s.mu.Unlock()
			return saveErr
		}
		s.mu.Unlock()
		return err
	}

	s.publish(ctx, ProposalExecuted{
		ProposalID: proposalID,
		Executor:   actor,
		Param:      proposal.Param,
		Value:      proposal.Value,
		OccurredAt: now,
	})
	return nil
}

// ProposalState resolves the lifecycle state at the injected clock's now.
func (s *GovernanceService) ProposalState(ctx context.Context, proposalID int64) (governance.ProposalState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, err := s.proposals.Find(ctx, proposalID)
	if err != nil {
		return "", err
	}
	if proposal == nil {
		return "", governance.ErrProposalNotFound
	}
	quorum, err := s.quorum(ctx)
	if err != nil {
		return "", err
	}
	return proposal.StateAt(s.clock.Now(), quorum), nil
}

// Position returns an account's stake position; nil when absent.
func (s *GovernanceService) Position(ctx context.Context, account string) (*governance.StakePosition, error) {
	return s.stakes.Find(ctx, account)
}

// Positions returns all stake positions.
func (s *GovernanceService) Positions(ctx context.Context) ([]*governance.StakePosition, error) {
	return s.stakes.List(ctx)
}

// Proposal returns a proposal by id; nil when absent.
func (s *GovernanceService) Proposal(ctx context.Context, id int64) (*governance.Proposal, error) {
	return s.proposals.Find(ctx, id)
}

// Proposals returns all proposals ordered by id.
func (s *GovernanceService) Proposals(ctx context.Context) ([]*governance.Proposal, error) {
	return s.proposals.List(ctx)
}

// TotalStaked returns the vault's voting-power total.
func (s *GovernanceService) TotalStaked(ctx context.Context) (*big.Int, error) {
	return s.stakes.TotalStaked(ctx)
}

// SetVotingPeriod updates the voting window length (governance parameter).
func (s *GovernanceService) SetVotingPeriod(d time.Duration) error {
	if d <= 0 {
		return governance.ErrInvalidAmount
	}
	s.mu.Lock()
	s.params.VotingPeriod = d
	s.mu.Unlock()
	return nil
}

// SetCooldown updates the unstake cooldown (governance parameter).
func (s *GovernanceService) SetCooldown(d time.Duration) error {
	if d < 0 {
		return governance.ErrInvalidAmount
	}
	s.mu.Lock()
	s.params.Cooldown = d
	s.mu.Unlock()
	return nil
}

func (s *GovernanceService) quorum(ctx context.Context) (*big.Int, error) {
	total, err := s.stakes.TotalStaked(ctx)
	if err != nil {
		return nil, err
	}
	return fixedpoint.MulBps(total, s.params.QuorumBps), nil
}

func (s *GovernanceService) publish(ctx context.Context, event any) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, event)
}
