// Package application implements the lending use cases: score-gated
// origination, collateral management, repayment, and liquidation.
package application

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"ento-core/internal/clock"
	"ento-core/internal/fixedpoint"
	lending "ento-core/internal/lending/domain"
	token "ento-core/internal/token/domain"
)

// LoanRequested is emitted on origination.
type LoanRequested struct {
	Borrower   string    `json:"borrower"`
	Principal  string    `json:"principal"`
	Collateral string    `json:"collateral"`
	RateBps    int64     `json:"rate_bps"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LoanRepaid is emitted on each repayment.
type LoanRepaid struct {
	Borrower      string    `json:"borrower"`
	Amount        string    `json:"amount"`
	InterestPaid  string    `json:"interest_paid"`
	PrincipalPaid string    `json:"principal_paid"`
	Closed        bool      `json:"closed"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// CollateralChanged is emitted on deposit or withdrawal.
type CollateralChanged struct {
	Borrower   string    `json:"borrower"`
	Delta      string    `json:"delta"`
	Collateral string    `json:"collateral"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LoanLiquidated is emitted when a position is seized.
type LoanLiquidated struct {
	Borrower   string    `json:"borrower"`
	Liquidator string    `json:"liquidator"`
	Seized     string    `json:"seized"`
	Debt       string    `json:"debt"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ScoreReader is the narrow read-only view of settlement credit scores.
type ScoreReader interface {
	CreditScore(ctx context.Context, account string) (int, error)
}

// Publisher emits lending events.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Params holds the lending risk configuration.
type Params struct {
	MinCreditScore          int
	MinRateBps              int64
	MaxRateBps              int64
	SafetyThresholdBps      int64
	LiquidationThresholdBps int64
}

// LoanService manages collateralized loans against the funding pool
// account. Collateral and pool liquidity share the funding account on the
// ledger; per-loan records keep the split exact.
type LoanService struct {
	mu sync.Mutex

	loans   lending.Repository
	ledger  *token.Ledger
	scores  ScoreReader
	funding string
	params  Params

	publisher Publisher
	clock     clock.Clock
}

// NewLoanService constructs the service.
func NewLoanService(
	loans lending.Repository,
	ledger *token.Ledger,
	scores ScoreReader,
	funding string,
	params Params,
	publisher Publisher,
	clk clock.Clock,
) (*LoanService, error) {
	if loans == nil {
		return nil, errors.New("loan service: nil loan repository")
	}
	if ledger == nil {
		return nil, errors.New("loan service: nil ledger")
	}
	if scores == nil {
		return nil, errors.New("loan service: nil score reader")
	}
	if funding == "" {
		return nil, errors.New("loan service: empty funding account")
	}
	if params.MaxRateBps < params.MinRateBps {
		return nil, errors.New("loan service: max rate below min rate")
	}
	if params.LiquidationThresholdBps > params.SafetyThresholdBps {
		return nil, errors.New("loan service: liquidation threshold above safety threshold")
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &LoanService{
		loans:     loans,
		ledger:    ledger,
		scores:    scores,
		funding:   funding,
		params:    params,
		publisher: publisher,
		clock:     clk,
	}, nil
}

// SetMinCreditScore updates the origination gate (governance parameter).
func (s *LoanService) SetMinCreditScore(min int) error {
	if min < 0 || min > 100 {
		return lending.ErrInvalidAmount
	}
	s.mu.Lock()
	s.params.MinCreditScore = min
	s.mu.Unlock()
	return nil
}

// RequestLoan originates a loan. The collateral pull and principal payout
// run as one ledger batch so a shortfall on either side aborts cleanly.
func (s *LoanService) RequestLoan(ctx context.Context, borrower string, amount, collateral *big.Int) (*lending.Loan, error) {
	if borrower == "" {
		return nil, lending.ErrEmptyAccount
	}
	if !fixedpoint.IsPositive(amount) || !fixedpoint.IsPositive(collateral) {
		return nil, lending.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loans.Find(ctx, borrower)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Active {
		return nil, lending.ErrActiveLoanExists
	}

	score, err := s.scores.CreditScore(ctx, borrower)
	if err != nil {
		return nil, err
	}
	if score < s.params.MinCreditScore {
		return nil, lending.ErrScoreTooLow
	}

	health := new(big.Int).Mul(collateral, big.NewInt(10000))
	health.Quo(health, amount)
	if health.Cmp(big.NewInt(s.params.SafetyThresholdBps)) < 0 {
		return nil, lending.ErrUndercollateralized
	}

	rateBps := lending.RateForScore(score, s.params.MinRateBps, s.params.MaxRateBps)

	err = s.ledger.ApplyBatch([]token.Op{
		{Kind: token.OpTransfer, From: borrower, To: s.funding, Amount: collateral},
		{Kind: token.OpTransfer, From: s.funding, To: borrower, Amount: amount},
	})
	if err != nil {
		return nil, err
	}

	loan := &lending.Loan{
		Borrower:        borrower,
		Principal:       fixedpoint.Clone(amount),
		Collateral:      fixedpoint.Clone(collateral),
		RateBps:         rateBps,
		AccruedInterest: fixedpoint.Zero(),
		LastAccrual:     s.clock.Now(),
		Active:          true,
	}
	if err := s.loans.Save(ctx, loan); err != nil {
		return nil, err
	}

	s.publish(ctx, LoanRequested{
		Borrower:   borrower,
		Principal:  fixedpoint.String(amount),
		Collateral: fixedpoint.String(collateral),
		RateBps:    rateBps,
		OccurredAt: s.clock.Now(),
	})
	return loan.Clone(), nil
}

// PreviewAccruedInterest returns carried plus pending simple interest.
// Pure read against the injected clock.
func (s *LoanService) PreviewAccruedInterest(ctx context.Context, borrower string) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loan, err := s.activeLoan(ctx, borrower)
	if err != nil {
		return nil, err
	}
	loan.Accrue(s.clock.Now())
	return loan.AccruedInterest, nil
}

// DepositCollateral adds collateral to an open loan.
func (s *LoanService) DepositCollateral(ctx context.Context, borrower string, amount *big.Int) error {
	if !fixedpoint.IsPositive(amount) {
		return lending.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loan, err := s.activeLoan(ctx, borrower)
	if err != nil {
		return err
	}
	if err := s.ledger.Transfer(borrower, s.funding, amount); err != nil {
		return err
	}
	loan.Collateral = fixedpoint.Add(loan.Collateral, amount)
	if err := s.loans.Save(ctx, loan); err != nil {
		return err
	}

	s.publish(ctx, CollateralChanged{
		Borrower:   borrower,
		Delta:      fixedpoint.String(amount),
		Collateral: fixedpoint.String(loan.Collateral),
		OccurredAt: s.clock.Now(),
	})
	return nil
}

// WithdrawCollateral releases collateral while the loan stays at or above
// the safety threshold.
func (s *LoanService) WithdrawCollateral(ctx context.Context, borrower string, amount *big.Int) error {
	if !fixedpoint.IsPositive(amount) {
		return lending.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loan, err := s.activeLoan(ctx, borrower)
	if err != nil {
		return err
	}
	loan.Accrue(s.clock.Now())

	remaining := fixedpoint.Sub(loan.Collateral, amount)
	if fixedpoint.IsNegative(remaining) {
		return lending.ErrUnsafeWithdrawal
	}
	probe := loan.Clone()
	probe.Collateral = remaining
	if probe.HealthBps() < s.params.SafetyThresholdBps {
		return lending.ErrUnsafeWithdrawal
	}

	if err := s.ledger.Transfer(s.funding, borrower, amount); err != nil {
		return err
	}
	loan.Collateral = remaining
	if err := s.loans.Save(ctx, loan); err != nil {
		return err
	}

	s.publish(ctx, CollateralChanged{
		Borrower:   borrower,
		Delta:      "-" + fixedpoint.String(amount),
		Collateral: fixedpoint.String(loan.Collateral),
		OccurredAt: s.clock.Now(),
	})
	return nil
}

// Repay applies a payment to accrued interest first, then principal. When
// principal reaches zero the loan closes and collateral returns; the pay
// and return legs run as one ledger batch.
func (s *LoanService) Repay(ctx context.Context, borrower string, amount *big.Int) error {
	if !fixedpoint.IsPositive(amount) {
		return lending.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loan, err := s.activeLoan(ctx, borrower)
	if err != nil {
		return err
	}
	loan.Accrue(s.clock.Now())

	debt := loan.Debt()
	if amount.Cmp(debt) > 0 {
		return lending.ErrOverRepayment
	}

	interestPaid := fixedpoint.Clone(loan.AccruedInterest)
	if amount.Cmp(interestPaid) < 0 {
		interestPaid = fixedpoint.Clone(amount)
	}
	principalPaid := fixedpoint.Sub(amount, interestPaid)

	newPrincipal := fixedpoint.Sub(loan.Principal, principalPaid)
	closing := fixedpoint.IsZero(newPrincipal) && fixedpoint.Cmp(interestPaid, loan.AccruedInterest) == 0

	ops := []token.Op{{Kind: token.OpTransfer, From: borrower, To: s.funding, Amount: amount}}
	if closing && fixedpoint.IsPositive(loan.Collateral) {
		ops = append(ops, token.Op{Kind: token.OpTransfer, From: s.funding, To: borrower, Amount: loan.Collateral})
	}
	if err := s.ledger.ApplyBatch(ops); err != nil {
		return err
	}

	loan.AccruedInterest = fixedpoint.Sub(loan.AccruedInterest, interestPaid)
	loan.Principal = newPrincipal
	if closing {
		loan.Collateral = fixedpoint.Zero()
		loan.Active = false
	}
	if err := s.loans.Save(ctx, loan); err != nil {
		return err
	}

	s.publish(ctx, LoanRepaid{
		Borrower:      borrower,
		Amount:        fixedpoint.String(amount),
		InterestPaid:  fixedpoint.String(interestPaid),
		PrincipalPaid: fixedpoint.String(principalPaid),
		Closed:        closing,
		OccurredAt:    s.clock.Now(),
	})
	return nil
}

// Liquidate seizes an unhealthy position. Callable by anyone; the seized
// collateral stays in the funding pool.
func (s *LoanService) Liquidate(ctx context.Context, caller, borrower string) error {
	if caller == "" {
		return lending.ErrEmptyAccount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loan, err := s.activeLoan(ctx, borrower)
	if err != nil {
		return err
	}
	loan.Accrue(s.clock.Now())

	if loan.HealthBps() >= s.params.LiquidationThresholdBps {
		return lending.ErrNotLiquidatable
	}

	seized := fixedpoint.Clone(loan.Collateral)
	debt := loan.Debt()
	loan.Collateral = fixedpoint.Zero()
	loan.Principal = fixedpoint.Zero()
	loan.AccruedInterest = fixedpoint.Zero()
	loan.Active = false
	if err := s.loans.Save(ctx, loan); err != nil {
		return err
	}

	s.publish(ctx, LoanLiquidated{
		Borrower:   borrower,
		Liquidator: caller,
		Seized:     fixedpoint.String(seized),
		Debt:       fixedpoint.String(debt),
		OccurredAt: s.clock.Now(),
	})
	return nil
}

// Loan returns the borrower's record; nil when absent.
func (s *LoanService) Loan(ctx context.Context, borrower string) (*lending.Loan, error) {
	return s.loans.Find(ctx, borrower)
}

// ActiveLoans returns all open positions.
func (s *LoanService) ActiveLoans(ctx context.Context) ([]*lending.Loan, error) {
	return s.loans.ListActive(ctx)
}

func (s *LoanService) activeLoan(ctx context.Context, borrower string) (*lending.Loan, error) {
	if borrower == "" {
		return nil, lending.ErrEmptyAccount
	}
	loan, err := s.loans.Find(ctx, borrower)
	if err != nil {
		return nil, err
	}
	if loan == nil || !loan.Active {
		return nil, lending.ErrNoActiveLoan
	}
	return loan, nil
}

func (s *LoanService) publish(ctx context.Context, event any) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, event)
}
