// Package memory provides in-memory settlement stores.
package memory

import (
	"context"
	"sort"
	"sync"

	settlement "ento-core/internal/settlement/domain"
)

// UsageRepository is an in-memory repository for month usage records.
type UsageRepository struct {
	mu   sync.RWMutex
	data map[string]*settlement.MonthUsage
}

// NewUsageRepository constructs a repository.
func NewUsageRepository() *UsageRepository {
	return &UsageRepository{data: make(map[string]*settlement.MonthUsage)}
}

func usageKey(month, account string) string { return month + "|" + account }

// Find loads a usage record; nil when absent.
func (r *UsageRepository) Find(ctx context.Context, month, account string) (*settlement.MonthUsage, error) {
	_ = ctx
	r.mu.RLock()
	usage := r.data[usageKey(month, account)]
	r.mu.RUnlock()
	return usage.Clone(), nil
}

// Save persists a usage record (overwrites existing).
func (r *UsageRepository) Save(ctx context.Context, usage *settlement.MonthUsage) error {
	_ = ctx
	if usage == nil {
		return settlement.ErrNilUsage
	}
	copy := usage.Clone()
	r.mu.Lock()
	r.data[usageKey(usage.Month, usage.Account)] = copy
	r.mu.Unlock()
	return nil
}

// ListByMonth returns usage records for a month sorted by account.
func (r *UsageRepository) ListByMonth(ctx context.Context, month string) ([]*settlement.MonthUsage, error) {
	_ = ctx
	r.mu.RLock()
	var out []*settlement.MonthUsage
	for _, usage := range r.data {
		if usage.Month == month {
			out = append(out, usage.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out, nil
}

// ListByAccount returns usage records for an account sorted by month.
func (r *UsageRepository) ListByAccount(ctx context.Context, account string) ([]*settlement.MonthUsage, error) {
	_ = ctx
	r.mu.RLock()
	var out []*settlement.MonthUsage
	for _, usage := range r.data {
		if usage.Account == account {
			out = append(out, usage.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// NonceStore is the in-memory write-once nonce set.
type NonceStore struct {
	mu   sync.Mutex
	used map[string]struct{}
}

// NewNonceStore constructs an empty store.
func NewNonceStore() *NonceStore {
	return &NonceStore{used: make(map[string]struct{})}
}

// Use consumes a nonce; repeat use fails with ErrNonceUsed.
func (s *NonceStore) Use(ctx context.Context, nonce string) error {
	_ = ctx
	if nonce == "" {
		return settlement.ErrEmptyNonce
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.used[nonce]; ok {
		return settlement.ErrNonceUsed
	}
	s.used[nonce] = struct{}{}
	return nil
}

// ScoreStore holds credit scores in memory.
type ScoreStore struct {
	mu     sync.RWMutex
	scores map[string]int
}

// NewScoreStore constructs an empty store.
func NewScoreStore() *ScoreStore {
	return &ScoreStore{scores: make(map[string]int)}
}

// Set stores a score in [0,100].
func (s *ScoreStore) Set(ctx context.Context, account string, score int) error {
	_ = ctx
	if account == "" {
		return settlement.ErrEmptyAccount
	}
	if score < 0 || score > 100 {
		return settlement.ErrInvalidScore
	}
	s.mu.Lock()
	s.scores[account] = score
	s.mu.Unlock()
	return nil
}

// Get returns the score for an account; zero when unset.
func (s *ScoreStore) Get(ctx context.Context, account string) (int, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scores[account], nil
}
