// Package memory provides in-memory governance stores for tests and the
// single-node deployment.
package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"ento-core/internal/fixedpoint"
	"ento-core/internal/governance/domain"
)

// StakeRepository keeps stake positions keyed by account.
type StakeRepository struct {
	mu        sync.RWMutex
	positions map[string]*domain.StakePosition
}

// NewStakeRepository constructs an empty repository.
func NewStakeRepository() *StakeRepository {
	return &StakeRepository{positions: make(map[string]*domain.StakePosition)}
}

// Find returns the position for an account; nil when absent.
func (r *StakeRepository) Find(_ context.Context, account string) (*domain.StakePosition, error) {
	if account == "" {
		return nil, domain.ErrEmptyAccount
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.positions[account].Clone(), nil
}

// Save stores a copy of the position.
func (r *StakeRepository) Save(_ context.Context, position *domain.StakePosition) error {
	if position == nil {
		return domain.ErrNilPosition
	}
	if position.Account == "" {
		return domain.ErrEmptyAccount
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[position.Account] = position.Clone()
	return nil
}

// List returns all positions ordered by account.
func (r *StakeRepository) List(_ context.Context) ([]*domain.StakePosition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.StakePosition, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out, nil
}

// TotalStaked sums staked balances across all positions.
func (r *StakeRepository) TotalStaked(_ context.Context) (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := fixedpoint.Zero()
	for _, p := range r.positions {
		total.Add(total, p.Staked)
	}
	return total, nil
}

// ProposalRepository keeps proposals keyed by id.
type ProposalRepository struct {
	mu        sync.RWMutex
	proposals map[int64]*domain.Proposal
	nextID    int64
}

// NewProposalRepository constructs an empty repository. IDs start at 1.
func NewProposalRepository() *ProposalRepository {
	return &ProposalRepository{proposals: make(map[int64]*domain.Proposal), nextID: 1}
}

// Find returns the proposal with the given id; nil when absent.
func (r *ProposalRepository) Find(_ context.Context, id int64) (*domain.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.proposals[id].Clone(), nil
}

// Save stores a copy of the proposal.
func (r *ProposalRepository) Save(_ context.Context, proposal *domain.Proposal) error {
	if proposal == nil {
		return domain.ErrNilProposal
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.proposals[proposal.ID] = proposal.Clone()
	return nil
}

// List returns all proposals ordered by id.
func (r *ProposalRepository) List(_ context.Context) ([]*domain.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Proposal, 0, len(r.proposals))
	for _, p := range r.proposals {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// NextID allocates the next proposal id.
func (r *ProposalRepository) NextID(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	return id, nil
}
