// Package memory provides in-memory eventing stores for single-process runs
// and tests.
package memory

import (
	"context"
	"sync"

	"ento-core/internal/eventing"
)

// OutboxStore keeps outbox records in memory.
type OutboxStore struct {
	mu      sync.Mutex
	pending []eventing.OutboxRecord
	sent    map[string]eventing.OutboxRecord
	failed  map[string]eventing.OutboxRecord
}

// NewOutboxStore constructs an empty store.
func NewOutboxStore() *OutboxStore {
	return &OutboxStore{
		sent:   make(map[string]eventing.OutboxRecord),
		failed: make(map[string]eventing.OutboxRecord),
	}
}

// Insert queues an envelope for dispatch.
func (s *OutboxStore) Insert(ctx context.Context, env eventing.Envelope) (string, error) {
	_ = ctx
	id, err := eventing.NewEventID()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.pending = append(s.pending, eventing.OutboxRecord{ID: id, Envelope: env})
	s.mu.Unlock()
	return id, nil
}

// ListPending returns up to limit pending records.
func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]eventing.OutboxRecord, error) {
	_ = ctx
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.pending) {
		limit = len(s.pending)
	}
	out := make([]eventing.OutboxRecord, limit)
	copy(out, s.pending[:limit])
	return out, nil
}

// MarkSent removes the record from pending.
func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, record := range s.pending {
		if record.ID == id {
			s.sent[id] = record
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	return nil
}

// MarkFailed parks the record for inspection.
func (s *OutboxStore) MarkFailed(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, record := range s.pending {
		if record.ID == id {
			s.failed[id] = record
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	return nil
}

// SentCount reports how many records have been delivered.
func (s *OutboxStore) SentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// ProcessedStore is an in-memory idempotency store.
type ProcessedStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewProcessedStore constructs an empty processed store.
func NewProcessedStore() *ProcessedStore {
	return &ProcessedStore{seen: make(map[string]struct{})}
}

// HasProcessed reports whether the consumer already handled the event.
func (s *ProcessedStore) HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[eventID+"|"+consumerName]
	return ok, nil
}

// MarkProcessed records the delivery.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, eventID, consumerName string) error {
	_ = ctx
	s.mu.Lock()
	s.seen[eventID+"|"+consumerName] = struct{}{}
	s.mu.Unlock()
	return nil
}
