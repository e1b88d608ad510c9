package application

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"ento-core/internal/clock"
	"ento-core/internal/fixedpoint"
	lending "ento-core/internal/lending/domain"
	lendingmemory "ento-core/internal/lending/infrastructure/memory"
	token "ento-core/internal/token/domain"
)

const fundingAccount = "sys.lending.funding"

type scoreMapStub map[string]int

func (s scoreMapStub) CreditScore(_ context.Context, account string) (int, error) {
	return s[account], nil
}

func newLoanFixture(t *testing.T) (*LoanService, *token.Ledger, *clock.ManualClock) {
	t.Helper()
	ledger := token.NewLedger()
	for _, seed := range []struct {
		account string
		units   int64
	}{
		{fundingAccount, 10000},
		{"alice", 5000},
		{"mallory", 5000},
	} {
		if err := ledger.Mint(seed.account, fixedpoint.FromInt64(seed.units)); err != nil {
			t.Fatalf("seed mint %s: %v", seed.account, err)
		}
	}
	scores := scoreMapStub{"alice": 80, "mallory": 10}
	clk := clock.NewManualClock(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	service, err := NewLoanService(
		lendingmemory.NewLoanRepository(),
		ledger,
		scores,
		fundingAccount,
		Params{
			MinCreditScore:          50,
			MinRateBps:              300,
			MaxRateBps:              1500,
			SafetyThresholdBps:      15000,
			LiquidationThresholdBps: 12000,
		},
		nil,
		clk,
	)
	if err != nil {
		t.Fatalf("new loan service: %v", err)
	}
	return service, ledger, clk
}

func TestRequestLoanMovesBothLegs(t *testing.T) {
	service, ledger, _ := newLoanFixture(t)
	ctx := context.Background()

	loan, err := service.RequestLoan(ctx, "alice", fixedpoint.FromInt64(1000), fixedpoint.FromInt64(2000))
	if err != nil {
		t.Fatalf("request loan: %v", err)
	}
	// score 80 maps to 1500 - 80*(1500-300)/100 = 540 bps.
	if loan.RateBps != 540 {
		t.Fatalf("expected 540 bps, got %d", loan.RateBps)
	}
	if ledger.BalanceOf("alice").Cmp(fixedpoint.FromInt64(4000)) != 0 {
		t.Fatalf("borrower balance %s, want 4000", ledger.BalanceOf("alice"))
	}
	if ledger.BalanceOf(fundingAccount).Cmp(fixedpoint.FromInt64(11000)) != 0 {
		t.Fatalf("funding balance %s, want 11000", ledger.BalanceOf(fundingAccount))
	}

	_, err = service.RequestLoan(ctx, "alice", fixedpoint.FromInt64(100), fixedpoint.FromInt64(200))
	if !errors.Is(err, lending.ErrActiveLoanExists) {
		t.Fatalf("expected second-loan rejection, got %v", err)
	}
}

func TestRequestLoanGates(t *testing.T) {
	service, ledger, _ := newLoanFixture(t)
	ctx := context.Background()

	_, err := service.RequestLoan(ctx, "mallory", fixedpoint.FromInt64(100), fixedpoint.FromInt64(200))
	if !errors.Is(err, lending.ErrScoreTooLow) {
		t.Fatalf("expected score gate, got %v", err)
	}

	// 1400 collateral on 1000 principal is 14000 bps, under the 15000 floor.
	_, err = service.RequestLoan(ctx, "alice", fixedpoint.FromInt64(1000), fixedpoint.FromInt64(1400))
	if !errors.Is(err, lending.ErrUndercollateralized) {
		t.Fatalf("expected collateral gate, got %v", err)
	}
	if ledger.BalanceOf("alice").Cmp(fixedpoint.FromInt64(5000)) != 0 {
		t.Fatal("rejected request must not move tokens")
	}
}

func TestInterestAccruesOverTime(t *testing.T) {
	service, _, clk := newLoanFixture(t)
	ctx := context.Background()

	if _, err := service.RequestLoan(ctx, "alice", fixedpoint.FromInt64(1000), fixedpoint.FromInt64(2000)); err != nil {
		t.Fatalf("request loan: %v", err)
	}

	clk.Advance(365 * 24 * time.Hour)
	// One year at 540 bps on 1000 is exactly 54 tokens.
	accrued, err := service.PreviewAccruedInterest(ctx, "alice")
	if err != nil {
		t.Fatalf("preview interest: %v", err)
	}
	if accrued.Cmp(fixedpoint.FromInt64(54)) != 0 {
		t.Fatalf("expected 54 accrued, got %s", accrued)
	}
}

func TestRepayInterestFirstThenCloses(t *testing.T) {
	service, ledger, clk := newLoanFixture(t)
	ctx := context.Background()

	if _, err := service.RequestLoan(ctx, "alice", fixedpoint.FromInt64(1000), fixedpoint.FromInt64(2000)); err != nil {
		t.Fatalf("request loan: %v", err)
	}
	clk.Advance(365 * 24 * time.Hour)

	if err := service.Repay(ctx, "alice", fixedpoint.FromInt64(2000)); !errors.Is(err, lending.ErrOverRepayment) {
		t.Fatalf("expected over-repayment rejection, got %v", err)
	}

	// 54 tokens clear the interest and leave the principal intact.
	if err := service.Repay(ctx, "alice", fixedpoint.FromInt64(54)); err != nil {
		t.Fatalf("repay interest: %v", err)
	}
	loan, err := service.Loan(ctx, "alice")
	if err != nil {
		t.Fatalf("loan: %v", err)
	}
	if !fixedpoint.IsZero(loan.AccruedInterest) {
		t.Fatalf("interest not cleared: %s", loan.AccruedInterest)
	}
	if loan.Principal.Cmp(fixedpoint.FromInt64(1000)) != 0 {
		t.Fatalf("principal changed: %s", loan.Principal)
	}

	// Clearing the principal closes the loan and returns the collateral.
	if err := service.Repay(ctx, "alice", fixedpoint.FromInt64(1000)); err != nil {
		t.Fatalf("repay principal: %v", err)
	}
	loan, _ = service.Loan(ctx, "alice")
	if loan.Active {
		t.Fatal("loan still active after full repayment")
	}
	// 5000 - 2000 + 1000 - 54 - 1000 + 2000 = 4946.
	if ledger.BalanceOf("alice").Cmp(fixedpoint.FromInt64(4946)) != 0 {
		t.Fatalf("borrower balance %s, want 4946", ledger.BalanceOf("alice"))
	}
}

func TestCollateralAdjustments(t *testing.T) {
	service, ledger, _ := newLoanFixture(t)
	ctx := context.Background()

	if _, err := service.RequestLoan(ctx, "alice", fixedpoint.FromInt64(1000), fixedpoint.FromInt64(2000)); err != nil {
		t.Fatalf("request loan: %v", err)
	}

	// 1400 collateral on 1000 debt would be 14000 bps, under the floor.
	err := service.WithdrawCollateral(ctx, "alice", fixedpoint.FromInt64(600))
	if !errors.Is(err, lending.ErrUnsafeWithdrawal) {
		t.Fatalf("expected unsafe withdrawal, got %v", err)
	}
	if err := service.WithdrawCollateral(ctx, "alice", fixedpoint.FromInt64(200)); err != nil {
		t.Fatalf("safe withdrawal: %v", err)
	}
	if err := service.DepositCollateral(ctx, "alice", fixedpoint.FromInt64(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	loan, _ := service.Loan(ctx, "alice")
	if loan.Collateral.Cmp(fixedpoint.FromInt64(2300)) != 0 {
		t.Fatalf("collateral %s, want 2300", loan.Collateral)
	}
	if ledger.BalanceOf("alice").Cmp(fixedpoint.FromInt64(3700)) != 0 {
		t.Fatalf("borrower balance %s, want 3700", ledger.BalanceOf("alice"))
	}
}

func TestLiquidateRequiresUnhealthyPosition(t *testing.T) {
	service, ledger, clk := newLoanFixture(t)
	ctx := context.Background()

	// Health starts at exactly the safety floor (15000 bps).
	if _, err := service.RequestLoan(ctx, "alice", fixedpoint.FromInt64(1000), fixedpoint.FromInt64(1500)); err != nil {
		t.Fatalf("request loan: %v", err)
	}

	clk.Advance(2 * 365 * 24 * time.Hour)
	// Debt 1108 against 1500 collateral is 13538 bps, above the trigger.
	err := service.Liquidate(ctx, "bob", "alice")
	if !errors.Is(err, lending.ErrNotLiquidatable) {
		t.Fatalf("expected healthy-position rejection, got %v", err)
	}

	clk.Advance(3 * 365 * 24 * time.Hour)
	// Debt 1270 drops health to 11811 bps, under 12000.
	fundingBefore := new(big.Int).Set(ledger.BalanceOf(fundingAccount))
	if err := service.Liquidate(ctx, "bob", "alice"); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	loan, _ := service.Loan(ctx, "alice")
	if loan.Active || !fixedpoint.IsZero(loan.Collateral) {
		t.Fatalf("loan not zeroed: %+v", loan)
	}
	// The seized collateral already sits in the funding pool.
	if ledger.BalanceOf(fundingAccount).Cmp(fundingBefore) != 0 {
		t.Fatal("liquidation must not move ledger tokens")
	}

	if err := service.Liquidate(ctx, "bob", "alice"); !errors.Is(err, lending.ErrNoActiveLoan) {
		t.Fatalf("expected closed-loan rejection, got %v", err)
	}
}
