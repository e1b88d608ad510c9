// Package lending holds token-collateralized loans with time-accrued
// simple interest.
package lending

import (
	"context"
	"math/big"
	"time"

	"ento-core/internal/fixedpoint"
)

// SecondsPerYear is the accrual base for the simple-interest formula.
const SecondsPerYear = 365 * 24 * 60 * 60

// Loan is one borrower's open position. One active loan per borrower.
type Loan struct {
	Borrower        string
	Principal       *big.Int
	Collateral      *big.Int
	RateBps         int64
	AccruedInterest *big.Int
	LastAccrual     time.Time
	Active          bool
}

// Clone returns a detached copy.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	return &Loan{
		Borrower:        l.Borrower,
		Principal:       fixedpoint.Clone(l.Principal),
		Collateral:      fixedpoint.Clone(l.Collateral),
		RateBps:         l.RateBps,
		AccruedInterest: fixedpoint.Clone(l.AccruedInterest),
		LastAccrual:     l.LastAccrual,
		Active:          l.Active,
	}
}

// Accrue folds simple interest since the last accrual into the carried
// balance: principal*rateBps*elapsedSeconds / (10000*secondsPerYear).
func (l *Loan) Accrue(now time.Time) {
	elapsed := int64(now.Sub(l.LastAccrual) / time.Second)
	if elapsed <= 0 {
		return
	}
	interest := new(big.Int).Mul(l.Principal, big.NewInt(l.RateBps))
	interest.Mul(interest, big.NewInt(elapsed))
	interest.Quo(interest, big.NewInt(10000*int64(SecondsPerYear)))
	l.AccruedInterest = fixedpoint.Add(l.AccruedInterest, interest)
	l.LastAccrual = now
}

// Debt returns principal plus carried interest.
func (l *Loan) Debt() *big.Int {
	return fixedpoint.Add(l.Principal, l.AccruedInterest)
}

// HealthBps returns collateral*10000/debt; a closed or debt-free loan is
// reported as fully healthy.
func (l *Loan) HealthBps() int64 {
	debt := l.Debt()
	if !fixedpoint.IsPositive(debt) {
		return 1 << 30
	}
	health := new(big.Int).Mul(l.Collateral, big.NewInt(10000))
	health.Quo(health, debt)
	if !health.IsInt64() {
		return 1 << 30
	}
	return health.Int64()
}

// RateForScore maps a credit score in [0,100] to a rate, monotonic
// decreasing: maxRateBps - score*(maxRateBps-minRateBps)/100.
func RateForScore(score int, minRateBps, maxRateBps int64) int64 {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return maxRateBps - int64(score)*(maxRateBps-minRateBps)/100
}

// Repository stores loans keyed by borrower.
type Repository interface {
	Find(ctx context.Context, borrower string) (*Loan, error)
	Save(ctx context.Context, loan *Loan) error
	ListActive(ctx context.Context) ([]*Loan, error)
}
