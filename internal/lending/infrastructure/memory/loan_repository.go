// Package memory provides the in-memory loan store.
package memory

import (
	"context"
	"sort"
	"sync"

	lending "ento-core/internal/lending/domain"
)

// LoanRepository is an in-memory repository for loans.
type LoanRepository struct {
	mu   sync.RWMutex
	data map[string]*lending.Loan
}

// NewLoanRepository constructs a repository.
func NewLoanRepository() *LoanRepository {
	return &LoanRepository{data: make(map[string]*lending.Loan)}
}

// Find loads the borrower's loan; nil when absent.
func (r *LoanRepository) Find(ctx context.Context, borrower string) (*lending.Loan, error) {
	_ = ctx
	r.mu.RLock()
	loan := r.data[borrower]
	r.mu.RUnlock()
	return loan.Clone(), nil
}

// Save persists a loan (overwrites existing).
func (r *LoanRepository) Save(ctx context.Context, loan *lending.Loan) error {
	_ = ctx
	if loan == nil {
		return lending.ErrNilLoan
	}
	copy := loan.Clone()
	r.mu.Lock()
	r.data[loan.Borrower] = copy
	r.mu.Unlock()
	return nil
}

// ListActive returns open loans sorted by borrower.
func (r *LoanRepository) ListActive(ctx context.Context) ([]*lending.Loan, error) {
	_ = ctx
	r.mu.RLock()
	var out []*lending.Loan
	for _, loan := range r.data {
		if loan.Active {
			out = append(out, loan.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Borrower < out[j].Borrower })
	return out, nil
}
