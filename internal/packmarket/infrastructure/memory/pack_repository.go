// Package memory provides the in-memory pack store.
package memory

import (
	"context"
	"sort"
	"sync"

	packmarket "ento-core/internal/packmarket/domain"
)

// PackRepository is an in-memory repository for energy packs.
type PackRepository struct {
	mu   sync.RWMutex
	data map[string]*packmarket.EnergyPack
}

// NewPackRepository constructs a repository.
func NewPackRepository() *PackRepository {
	return &PackRepository{data: make(map[string]*packmarket.EnergyPack)}
}

func key(month packmarket.MonthKey, account string) string {
	return month.String() + "|" + account
}

// Find loads a pack; nil when absent.
func (r *PackRepository) Find(ctx context.Context, month packmarket.MonthKey, account string) (*packmarket.EnergyPack, error) {
	_ = ctx
	r.mu.RLock()
	pack := r.data[key(month, account)]
	r.mu.RUnlock()
	return pack.Clone(), nil
}

// Save persists a pack (overwrites existing).
func (r *PackRepository) Save(ctx context.Context, pack *packmarket.EnergyPack) error {
	_ = ctx
	if pack == nil {
		return packmarket.ErrNilPack
	}
	copy := pack.Clone()
	r.mu.Lock()
	r.data[key(pack.Month, pack.Account)] = copy
	r.mu.Unlock()
	return nil
}

// ListByMonth returns all packs for a month sorted by account.
func (r *PackRepository) ListByMonth(ctx context.Context, month packmarket.MonthKey) ([]*packmarket.EnergyPack, error) {
	_ = ctx
	r.mu.RLock()
	var out []*packmarket.EnergyPack
	for _, pack := range r.data {
		if pack.Month == month {
			out = append(out, pack.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out, nil
}

// ListByAccount returns all packs for an account sorted by month.
func (r *PackRepository) ListByAccount(ctx context.Context, account string) ([]*packmarket.EnergyPack, error) {
	_ = ctx
	r.mu.RLock()
	var out []*packmarket.EnergyPack
	for _, pack := range r.data {
		if pack.Account == account {
			out = append(out, pack.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}
