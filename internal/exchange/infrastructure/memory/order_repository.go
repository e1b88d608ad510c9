// Package memory provides the in-memory order store.
package memory

import (
	"context"
	"sort"
	"sync"

	exchange "ento-core/internal/exchange/domain"
)

// OrderRepository is an in-memory repository for resting orders.
type OrderRepository struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*exchange.Order
}

// NewOrderRepository constructs a repository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{nextID: 1, data: make(map[int64]*exchange.Order)}
}

// NextID allocates the next order id.
func (r *OrderRepository) NextID(ctx context.Context) (int64, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	return id, nil
}

// Find loads an order; nil when absent.
func (r *OrderRepository) Find(ctx context.Context, id int64) (*exchange.Order, error) {
	_ = ctx
	r.mu.RLock()
	order := r.data[id]
	r.mu.RUnlock()
	return order.Clone(), nil
}

// Save persists an order (overwrites existing).
func (r *OrderRepository) Save(ctx context.Context, order *exchange.Order) error {
	_ = ctx
	if order == nil {
		return exchange.ErrNilOrder
	}
	copy := order.Clone()
	r.mu.Lock()
	r.data[order.ID] = copy
	r.mu.Unlock()
	return nil
}

// ListActive returns active orders sorted by id.
func (r *OrderRepository) ListActive(ctx context.Context) ([]*exchange.Order, error) {
	_ = ctx
	r.mu.RLock()
	var out []*exchange.Order
	for _, order := range r.data {
		if order.Active {
			out = append(out, order.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
