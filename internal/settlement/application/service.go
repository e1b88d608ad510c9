// Package application implements the settlement use cases: signed usage
// intake and once-per-month savings settlement.
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
	packmarket "ento-core/internal/packmarket/domain"
	settlement "ento-core/internal/settlement/domain"
	tokenapp "ento-core/internal/token/application"
)

// UsageRecorded is emitted after a signed reading is accepted.
type UsageRecorded struct {
	Account     string    `json:"account"`
	Month       string    `json:"month"`
	KWh         int64     `json:"kwh"`
	KWhConsumed int64     `json:"kwh_consumed_total"`
	Nonce       string    `json:"nonce"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// SavingsClaimed is emitted after a month is settled.
type SavingsClaimed struct {
	Account    string    `json:"account"`
	Month      string    `json:"month"`
	SurplusKWh int64     `json:"surplus_kwh"`
	Minted     string    `json:"minted"`
	Burned     string    `json:"burned"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CreditScoreSet is emitted when an admin updates a score.
type CreditScoreSet struct {
	Account    string    `json:"account"`
	Score      int       `json:"score"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PackReader is the narrow read-only view of the pack market.
type PackReader interface {
	Find(ctx context.Context, month packmarket.MonthKey, account string) (*packmarket.EnergyPack, error)
}

// Publisher emits settlement events.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Result captures the outcome of a savings claim.
type Result struct {
	SurplusKWh int64
	Minted     *big.Int
	Burned     *big.Int
}

// SettlementService verifies signed meter readings and settles months.
// The service's own module account carries the minter and burner roles so
// settlement payouts flow through the same gate as any other supply change.
type SettlementService struct {
	mu sync.Mutex

	usage    settlement.Repository
	nonces   settlement.NonceStore
	scores   settlement.ScoreStore
	packs    PackReader
	ledger   *tokenapp.LedgerService
	registry *access.Registry

	verifier      settlement.Verifier
	moduleAccount string

	publisher Publisher
	clock     clock.Clock
}

// NewSettlementService constructs the service.
func NewSettlementService(
	usage settlement.Repository,
	nonces settlement.NonceStore,
	scores settlement.ScoreStore,
	packs PackReader,
	ledger *tokenapp.LedgerService,
	registry *access.Registry,
	verifier settlement.Verifier,
	moduleAccount string,
	publisher Publisher,
	clk clock.Clock,
) (*SettlementService, error) {
	if usage == nil || nonces == nil || scores == nil {
		return nil, errors.New("settlement service: nil store")
	}
	if packs == nil {
		return nil, errors.New("settlement service: nil pack reader")
	}
	if ledger == nil {
		return nil, errors.New("settlement service: nil ledger service")
	}
	if registry == nil {
		return nil, errors.New("settlement service: nil access registry")
	}
	if moduleAccount == "" {
		return nil, errors.New("settlement service: empty module account")
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &SettlementService{
		usage:         usage,
		nonces:        nonces,
		scores:        scores,
		packs:         packs,
		ledger:        ledger,
		registry:      registry,
		verifier:      verifier,
		moduleAccount: moduleAccount,
		publisher:     publisher,
		clock:         clk,
	}, nil
}

// OpenMonth creates or tops up the month usage record on pack purchase.
func (s *SettlementService) OpenMonth(ctx context.Context, month, account string, kWhPurchased int64) error {
	if account == "" {
		return settlement.ErrEmptyAccount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	usage, err := s.usage.Find(ctx, month, account)
	if err != nil {
		return err
	}
	if usage == nil {
		usage = &settlement.MonthUsage{Month: month, Account: account}
	}
	usage.KWhPurchased += kWhPurchased
	return s.usage.Save(ctx, usage)
}

// RecordSignedUsage accepts a meter reading signed over the packed tuple.
// All checks run before the single mutation (consumed accumulator), and
// the nonce is consumed only after every other precondition holds.
func (s *SettlementService) RecordSignedUsage(ctx context.Context, account, month string, kWh int64, nonce, signature string) error {
	if account == "" {
		return settlement.ErrEmptyAccount
	}
	if kWh <= 0 {
		return settlement.ErrInvalidKWh
	}
	if nonce == "" {
		return settlement.ErrEmptyNonce
	}
	monthKey, err := packmarket.NewMonthKey(month)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	verifier := s.verifier
	if verifier == nil {
		return settlement.ErrBadSignature
	}
	if err := verifier.Verify(settlement.UsagePayload(account, monthKey.String(), kWh, nonce), signature); err != nil {
		return err
	}

	usage, err := s.usage.Find(ctx, monthKey.String(), account)
	if err != nil {
		return err
	}
	if usage == nil {
		return settlement.ErrNoPackForMonth
	}
	if usage.Settled {
		return settlement.ErrAlreadySettled
	}

	if err := s.nonces.Use(ctx, nonce); err != nil {
		return err
	}

	usage.KWhConsumed += kWh
	if err := s.usage.Save(ctx, usage); err != nil {
		return err
	}

	s.publish(ctx, UsageRecorded{
		Account:     account,
		Month:       monthKey.String(),
		KWh:         kWh,
		KWhConsumed: usage.KWhConsumed,
		Nonce:       nonce,
		OccurredAt:  s.clock.Now(),
	})
	return nil
}

// ClaimSavings settles a month exactly once. Surplus kWh (purchased minus
// consumed) valued at the pack's locked unit price is minted to the
// account; a deficit is burned from it. A burn shortfall aborts the claim
// with no state change.
func (s *SettlementService) ClaimSavings(ctx context.Context, account, month string) (*Result, error) {
	if account == "" {
		return nil, settlement.ErrEmptyAccount
	}
	monthKey, err := packmarket.NewMonthKey(month)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	usage, err := s.usage.Find(ctx, monthKey.String(), account)
	if err != nil {
		return nil, err
	}
	if usage == nil {
		return nil, settlement.ErrNoPackForMonth
	}
	if usage.Settled {
		return nil, settlement.ErrAlreadySettled
	}

	pack, err := s.packs.Find(ctx, monthKey, account)
	if err != nil {
		return nil, err
	}
	if pack == nil {
		return nil, settlement.ErrNoPackForMonth
	}

	surplusKWh := usage.KWhPurchased - usage.KWhConsumed
	result := &Result{SurplusKWh: surplusKWh, Minted: fixedpoint.Zero(), Burned: fixedpoint.Zero()}

	// tokens = |surplus| * 1e18 / lockedUnitPrice
	if surplusKWh > 0 {
		result.Minted = fixedpoint.MulDiv(fixedpoint.FromInt64(surplusKWh), fixedpoint.One, pack.LockedUnitPrice)
		if err := s.ledger.Mint(ctx, s.moduleAccount, account, result.Minted); err != nil {
			return nil, err
		}
	} else if surplusKWh < 0 {
		result.Burned = fixedpoint.MulDiv(fixedpoint.FromInt64(-surplusKWh), fixedpoint.One, pack.LockedUnitPrice)
		if err := s.ledger.Burn(ctx, s.moduleAccount, account, result.Burned); err != nil {
			return nil, err
		}
	}

	usage.Settled = true
	if err := s.usage.Save(ctx, usage); err != nil {
		return nil, err
	}

	s.publish(ctx, SavingsClaimed{
		Account:    account,
		Month:      monthKey.String(),
		SurplusKWh: surplusKWh,
		Minted:     fixedpoint.String(result.Minted),
		Burned:     fixedpoint.String(result.Burned),
		OccurredAt: s.clock.Now(),
	})
	return result, nil
}

// SetCreditScore stores an admin-set score in [0,100].
func (s *SettlementService) SetCreditScore(ctx context.Context, admin, account string, score int) error {
	if err := s.registry.Require(admin, access.RoleAdmin); err != nil {
		return err
	}
	if err := s.scores.Set(ctx, account, score); err != nil {
		return err
	}
	s.publish(ctx, CreditScoreSet{Account: account, Score: score, OccurredAt: s.clock.Now()})
	return nil
}

// CreditScore returns the stored score; zero when unset.
func (s *SettlementService) CreditScore(ctx context.Context, account string) (int, error) {
	return s.scores.Get(ctx, account)
}

// SetMeterSigner swaps the active signature verifier. Admin only.
func (s *SettlementService) SetMeterSigner(ctx context.Context, admin string, verifier settlement.Verifier) error {
	_ = ctx
	if err := s.registry.Require(admin, access.RoleAdmin); err != nil {
		return err
	}
	if verifier == nil {
		return errors.New("settlement service: nil verifier")
	}
	s.mu.Lock()
	s.verifier = verifier
	s.mu.Unlock()
	return nil
}

// Usage returns the record for (month, account); nil when absent.
func (s *SettlementService) Usage(ctx context.Context, month, account string) (*settlement.MonthUsage, error) {
	return s.usage.Find(ctx, month, account)
}

// ListMonth returns all usage records for a month.
func (s *SettlementService) ListMonth(ctx context.Context, month string) ([]*settlement.MonthUsage, error) {
	return s.usage.ListByMonth(ctx, month)
}

func (s *SettlementService) publish(ctx context.Context, event any) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, event)
}
