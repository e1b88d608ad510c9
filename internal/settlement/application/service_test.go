package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"ento-core/internal/access"
	"ento-core/internal/clock"
	"ento-core/internal/fixedpoint"
	packmarket "ento-core/internal/packmarket/domain"
	packmarketmemory "ento-core/internal/packmarket/infrastructure/memory"
	settlement "ento-core/internal/settlement/domain"
	settlementmemory "ento-core/internal/settlement/infrastructure/memory"
	tokenapp "ento-core/internal/token/application"
	token "ento-core/internal/token/domain"
)

var meterSecret = []byte("test-meter-secret")

const moduleAccount = "sys.settlement.module"

type settlementFixture struct {
	service *SettlementService
	ledger  *token.Ledger
	packs   *packmarketmemory.PackRepository
	clock   *clock.ManualClock
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()
	ledger := token.NewLedger()
	registry := access.NewRegistry()
	registry.Grant(moduleAccount, access.RoleMinter)
	registry.Grant(moduleAccount, access.RoleBurner)
	registry.Grant("ops-admin", access.RoleAdmin)

	ledgerService, err := tokenapp.NewLedgerService(ledger, registry, nil, nil)
	if err != nil {
		t.Fatalf("new ledger service: %v", err)
	}

	packs := packmarketmemory.NewPackRepository()
	clk := clock.NewManualClock(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	service, err := NewSettlementService(
		settlementmemory.NewUsageRepository(),
		settlementmemory.NewNonceStore(),
		settlementmemory.NewScoreStore(),
		packs,
		ledgerService,
		registry,
		settlement.NewHMACVerifier(meterSecret),
		moduleAccount,
		nil,
		clk,
	)
	if err != nil {
		t.Fatalf("new settlement service: %v", err)
	}
	return &settlementFixture{service: service, ledger: ledger, packs: packs, clock: clk}
}

// openMonthWithPack sets up the state a pack purchase would leave behind:
// a saved pack and an opened month usage record.
func (f *settlementFixture) openMonthWithPack(t *testing.T, account string, kWh int64, lockedPrice int64) {
	t.Helper()
	ctx := context.Background()
	month, err := packmarket.NewMonthKey("2026-09")
	if err != nil {
		t.Fatalf("month key: %v", err)
	}
	pack := &packmarket.EnergyPack{
		Month:           month,
		Account:         account,
		KWhPurchased:    kWh,
		EnTokenPaid:     fixedpoint.MulDiv(fixedpoint.FromInt64(kWh), fixedpoint.One, fixedpoint.FromInt64(lockedPrice)),
		LockedUnitPrice: fixedpoint.FromInt64(lockedPrice),
	}
	if err := f.packs.Save(ctx, pack); err != nil {
		t.Fatalf("save pack: %v", err)
	}
	if err := f.service.OpenMonth(ctx, "2026-09", account, kWh); err != nil {
		t.Fatalf("open month: %v", err)
	}
}

func signReading(account, month string, kWh int64, nonce string) string {
	return settlement.SignUsage(meterSecret, settlement.UsagePayload(account, month, kWh, nonce))
}

func TestRecordSignedUsageAccumulates(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	f.openMonthWithPack(t, "alice", 2000, 2)

	sig := signReading("alice", "2026-09", 700, "n-1")
	if err := f.service.RecordSignedUsage(ctx, "alice", "2026-09", 700, "n-1", sig); err != nil {
		t.Fatalf("record usage: %v", err)
	}
	sig = signReading("alice", "2026-09", 500, "n-2")
	if err := f.service.RecordSignedUsage(ctx, "alice", "2026-09", 500, "n-2", sig); err != nil {
		t.Fatalf("second reading: %v", err)
	}

	usage, err := f.service.Usage(ctx, "2026-09", "alice")
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage.KWhConsumed != 1200 {
		t.Fatalf("expected 1200 kWh consumed, got %d", usage.KWhConsumed)
	}
}

func TestRecordSignedUsageRejectsBadSignature(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	f.openMonthWithPack(t, "alice", 2000, 2)

	// Signature over a different kWh value must not verify.
	sig := signReading("alice", "2026-09", 999, "n-1")
	err := f.service.RecordSignedUsage(ctx, "alice", "2026-09", 700, "n-1", sig)
	if !errors.Is(err, settlement.ErrBadSignature) {
		t.Fatalf("expected bad signature, got %v", err)
	}
	// The nonce is still fresh after a rejected reading.
	sig = signReading("alice", "2026-09", 700, "n-1")
	if err := f.service.RecordSignedUsage(ctx, "alice", "2026-09", 700, "n-1", sig); err != nil {
		t.Fatalf("retry with valid signature: %v", err)
	}
}

func TestRecordSignedUsageRejectsReplayedNonce(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	f.openMonthWithPack(t, "alice", 2000, 2)

	sig := signReading("alice", "2026-09", 700, "n-1")
	if err := f.service.RecordSignedUsage(ctx, "alice", "2026-09", 700, "n-1", sig); err != nil {
		t.Fatalf("record usage: %v", err)
	}
	err := f.service.RecordSignedUsage(ctx, "alice", "2026-09", 700, "n-1", sig)
	if !errors.Is(err, settlement.ErrNonceUsed) {
		t.Fatalf("expected nonce replay rejection, got %v", err)
	}

	usage, _ := f.service.Usage(ctx, "2026-09", "alice")
	if usage.KWhConsumed != 700 {
		t.Fatalf("replay must not change consumption: %d", usage.KWhConsumed)
	}
}

func TestRecordSignedUsageRequiresOpenMonth(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	sig := signReading("alice", "2026-09", 100, "n-1")
	err := f.service.RecordSignedUsage(ctx, "alice", "2026-09", 100, "n-1", sig)
	if !errors.Is(err, settlement.ErrNoPackForMonth) {
		t.Fatalf("expected no-pack rejection, got %v", err)
	}
}

func TestClaimSavingsMintsSurplusAtLockedPrice(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	f.openMonthWithPack(t, "alice", 2000, 2)

	sig := signReading("alice", "2026-09", 1200, "n-1")
	if err := f.service.RecordSignedUsage(ctx, "alice", "2026-09", 1200, "n-1", sig); err != nil {
		t.Fatalf("record usage: %v", err)
	}

	result, err := f.service.ClaimSavings(ctx, "alice", "2026-09")
	if err != nil {
		t.Fatalf("claim savings: %v", err)
	}
	if result.SurplusKWh != 800 {
		t.Fatalf("expected 800 kWh surplus, got %d", result.SurplusKWh)
	}
	// 800 kWh at 2.0 kWh/token mints 400 tokens.
	want := fixedpoint.FromInt64(400)
	if result.Minted.Cmp(want) != 0 {
		t.Fatalf("expected 400 minted, got %s", result.Minted)
	}
	if f.ledger.BalanceOf("alice").Cmp(want) != 0 {
		t.Fatalf("mint did not land: %s", f.ledger.BalanceOf("alice"))
	}
}

func TestClaimSavingsBurnsDeficit(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	f.openMonthWithPack(t, "alice", 1000, 2)
	if err := f.ledger.Mint("alice", fixedpoint.FromInt64(500)); err != nil {
		t.Fatalf("fund alice: %v", err)
	}

	sig := signReading("alice", "2026-09", 1400, "n-1")
	if err := f.service.RecordSignedUsage(ctx, "alice", "2026-09", 1400, "n-1", sig); err != nil {
		t.Fatalf("record usage: %v", err)
	}

	result, err := f.service.ClaimSavings(ctx, "alice", "2026-09")
	if err != nil {
		t.Fatalf("claim savings: %v", err)
	}
	if result.SurplusKWh != -400 {
		t.Fatalf("expected -400 kWh, got %d", result.SurplusKWh)
	}
	// 400 kWh deficit at 2.0 kWh/token burns 200 tokens.
	if result.Burned.Cmp(fixedpoint.FromInt64(200)) != 0 {
		t.Fatalf("expected 200 burned, got %s", result.Burned)
	}
	if f.ledger.BalanceOf("alice").Cmp(fixedpoint.FromInt64(300)) != 0 {
		t.Fatalf("burn did not land: %s", f.ledger.BalanceOf("alice"))
	}
}

func TestClaimSavingsBurnShortfallAbortsSettlement(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	f.openMonthWithPack(t, "alice", 1000, 2)

	sig := signReading("alice", "2026-09", 1400, "n-1")
	if err := f.service.RecordSignedUsage(ctx, "alice", "2026-09", 1400, "n-1", sig); err != nil {
		t.Fatalf("record usage: %v", err)
	}

	// alice holds nothing, so the 200-token deficit burn cannot settle.
	_, err := f.service.ClaimSavings(ctx, "alice", "2026-09")
	if !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("expected burn shortfall, got %v", err)
	}
	usage, _ := f.service.Usage(ctx, "2026-09", "alice")
	if usage.Settled {
		t.Fatal("failed claim must not mark the month settled")
	}
}

func TestClaimSavingsSettlesOnce(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	f.openMonthWithPack(t, "alice", 2000, 2)

	if _, err := f.service.ClaimSavings(ctx, "alice", "2026-09"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	_, err := f.service.ClaimSavings(ctx, "alice", "2026-09")
	if !errors.Is(err, settlement.ErrAlreadySettled) {
		t.Fatalf("expected repeat claim rejection, got %v", err)
	}

	// Settled months accept no further readings.
	sig := signReading("alice", "2026-09", 10, "late")
	err = f.service.RecordSignedUsage(ctx, "alice", "2026-09", 10, "late", sig)
	if !errors.Is(err, settlement.ErrAlreadySettled) {
		t.Fatalf("expected settled-month rejection, got %v", err)
	}
}

func TestSetCreditScoreRequiresAdmin(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	if err := f.service.SetCreditScore(ctx, "alice", "bob", 80); err == nil {
		t.Fatal("expected authorization failure")
	}
	if err := f.service.SetCreditScore(ctx, "ops-admin", "bob", 80); err != nil {
		t.Fatalf("admin set score: %v", err)
	}
	score, err := f.service.CreditScore(ctx, "bob")
	if err != nil {
		t.Fatalf("credit score: %v", err)
	}
	if score != 80 {
		t.Fatalf("expected score 80, got %d", score)
	}
	if err := f.service.SetCreditScore(ctx, "ops-admin", "bob", 101); !errors.Is(err, settlement.ErrInvalidScore) {
		t.Fatalf("expected range rejection, got %v", err)
	}
}
