// Package settlement tracks metered usage against purchased packs and
// settles each month exactly once.
package settlement

import "context"

// MonthUsage accumulates consumption against the purchased allocation for
// one (month, account) pair. Sealed exactly once via Settled.
type MonthUsage struct {
	Month        string
	Account      string
	KWhPurchased int64
	KWhConsumed  int64
	Settled      bool
}

// Clone returns a detached copy.
func (u *MonthUsage) Clone() *MonthUsage {
	if u == nil {
		return nil
	}
	copy := *u
	return &copy
}

// Repository stores month usage records keyed by (month, account).
type Repository interface {
	Find(ctx context.Context, month, account string) (*MonthUsage, error)
	Save(ctx context.Context, usage *MonthUsage) error
	ListByMonth(ctx context.Context, month string) ([]*MonthUsage, error)
	ListByAccount(ctx context.Context, account string) ([]*MonthUsage, error)
}

// NonceStore is the permanent replay guard. Use is write-once: the first
// call for a nonce succeeds, every later call reports ErrNonceUsed.
type NonceStore interface {
	Use(ctx context.Context, nonce string) error
}

// ScoreStore holds admin-set credit scores in [0,100].
type ScoreStore interface {
	Set(ctx context.Context, account string, score int) error
	Get(ctx context.Context, account string) (int, error)
}
