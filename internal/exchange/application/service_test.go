package application

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"ento-core/internal/access"
	"ento-core/internal/clock"
	exchange "ento-core/internal/exchange/domain"
	exchangememory "ento-core/internal/exchange/infrastructure/memory"
	"ento-core/internal/fixedpoint"
	token "ento-core/internal/token/domain"
)

const poolAccount = "sys.exchange.pool"

func newExchangeFixture(t *testing.T) (*ExchangeService, *token.Ledger) {
	t.Helper()
	ledger := token.NewLedger()
	for _, seed := range []struct {
		account string
		units   int64
	}{
		{"ops-admin", 10000},
		{"alice", 2000},
		{"bob", 2000},
	} {
		if err := ledger.Mint(seed.account, fixedpoint.FromInt64(seed.units)); err != nil {
			t.Fatalf("seed mint %s: %v", seed.account, err)
		}
	}
	registry := access.NewRegistry()
	registry.Grant("ops-admin", access.RoleAdmin)

	clk := clock.NewManualClock(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	service, err := NewExchangeService(
		exchangememory.NewOrderRepository(),
		ledger,
		registry,
		poolAccount,
		30,
		500,
		nil,
		clk,
	)
	if err != nil {
		t.Fatalf("new exchange service: %v", err)
	}
	return service, ledger
}

func seedPool(t *testing.T, service *ExchangeService) {
	t.Helper()
	err := service.SeedAmmPool(context.Background(), "ops-admin", fixedpoint.FromInt64(5000), fixedpoint.FromInt64(5000))
	if err != nil {
		t.Fatalf("seed pool: %v", err)
	}
}

func TestSeedAmmPoolOnce(t *testing.T) {
	service, ledger := newExchangeFixture(t)
	ctx := context.Background()

	if err := service.SeedAmmPool(ctx, "alice", fixedpoint.FromInt64(100), fixedpoint.FromInt64(100)); err == nil {
		t.Fatal("expected authorization failure for non-admin seed")
	}
	seedPool(t, service)
	if ledger.BalanceOf(poolAccount).Cmp(fixedpoint.FromInt64(5000)) != 0 {
		t.Fatalf("pool account not funded: %s", ledger.BalanceOf(poolAccount))
	}
	err := service.SeedAmmPool(ctx, "ops-admin", fixedpoint.FromInt64(1), fixedpoint.FromInt64(1))
	if !errors.Is(err, exchange.ErrPoolSeeded) {
		t.Fatalf("expected reseed rejection, got %v", err)
	}
}

func TestListSurplusEnforcesPremiumFloor(t *testing.T) {
	service, _ := newExchangeFixture(t)
	ctx := context.Background()
	seedPool(t, service)

	// Spot is 1.0 kWh/token; the 500 bps floor is 1.05.
	_, err := service.ListSurplus(ctx, "alice", 500, fixedpoint.One)
	if !errors.Is(err, exchange.ErrPremiumTooLow) {
		t.Fatalf("expected premium rejection, got %v", err)
	}
	price := fixedpoint.MulBps(fixedpoint.One, 11000) // 1.10
	order, err := service.ListSurplus(ctx, "alice", 500, price)
	if err != nil {
		t.Fatalf("list surplus: %v", err)
	}
	if order.ID == 0 || !order.Active || order.KWhRemaining != 500 {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestBuyFromOrderPartialFills(t *testing.T) {
	service, ledger := newExchangeFixture(t)
	ctx := context.Background()
	seedPool(t, service)

	price := fixedpoint.MulBps(fixedpoint.One, 11000)
	order, err := service.ListSurplus(ctx, "alice", 500, price)
	if err != nil {
		t.Fatalf("list surplus: %v", err)
	}

	sellerBefore := ledger.BalanceOf("alice")
	filled, err := service.BuyFromOrder(ctx, "bob", order.ID, 200, fixedpoint.FromInt64(1000))
	if err != nil {
		t.Fatalf("fill order: %v", err)
	}
	if filled.KWhRemaining != 300 || !filled.Active {
		t.Fatalf("unexpected order after fill %+v", filled)
	}
	wantCost := fixedpoint.MulDiv(fixedpoint.FromInt64(200), fixedpoint.One, price)
	paid := new(big.Int).Sub(ledger.BalanceOf("alice"), sellerBefore)
	if paid.Cmp(wantCost) != 0 {
		t.Fatalf("seller received %s, want %s", paid, wantCost)
	}

	// Draining the remainder closes the order.
	filled, err = service.BuyFromOrder(ctx, "bob", order.ID, 300, nil)
	if err != nil {
		t.Fatalf("drain order: %v", err)
	}
	if filled.Active || filled.KWhRemaining != 0 {
		t.Fatalf("expected closed order, got %+v", filled)
	}
	if _, err := service.BuyFromOrder(ctx, "bob", order.ID, 1, nil); !errors.Is(err, exchange.ErrOrderInactive) {
		t.Fatalf("expected inactive order, got %v", err)
	}
}

func TestBuyFromOrderRespectsMaxTokensIn(t *testing.T) {
	service, ledger := newExchangeFixture(t)
	ctx := context.Background()
	seedPool(t, service)

	price := fixedpoint.MulBps(fixedpoint.One, 11000)
	order, err := service.ListSurplus(ctx, "alice", 500, price)
	if err != nil {
		t.Fatalf("list surplus: %v", err)
	}

	bobBefore := ledger.BalanceOf("bob")
	_, err = service.BuyFromOrder(ctx, "bob", order.ID, 200, fixedpoint.FromInt64(100))
	if !errors.Is(err, exchange.ErrCostExceedsMax) {
		t.Fatalf("expected slippage rejection, got %v", err)
	}
	if ledger.BalanceOf("bob").Cmp(bobBefore) != 0 {
		t.Fatal("rejected fill must not move tokens")
	}
	if _, err := service.BuyFromOrder(ctx, "bob", order.ID, 600, nil); !errors.Is(err, exchange.ErrInsufficientRemaining) {
		t.Fatalf("expected over-fill rejection, got %v", err)
	}
}

func TestCancelOrderSellerOnly(t *testing.T) {
	service, _ := newExchangeFixture(t)
	ctx := context.Background()
	seedPool(t, service)

	price := fixedpoint.MulBps(fixedpoint.One, 11000)
	order, err := service.ListSurplus(ctx, "alice", 500, price)
	if err != nil {
		t.Fatalf("list surplus: %v", err)
	}
	if err := service.CancelOrder(ctx, "bob", order.ID); !errors.Is(err, exchange.ErrNotSeller) {
		t.Fatalf("expected seller check, got %v", err)
	}
	if err := service.CancelOrder(ctx, "alice", order.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := service.CancelOrder(ctx, "alice", order.ID); !errors.Is(err, exchange.ErrOrderInactive) {
		t.Fatalf("expected double-cancel rejection, got %v", err)
	}
}

func TestSwapTokenForKwhMatchesQuote(t *testing.T) {
	service, ledger := newExchangeFixture(t)
	ctx := context.Background()

	if _, err := service.SwapTokenForKwh(ctx, "alice", fixedpoint.FromInt64(100), nil); !errors.Is(err, exchange.ErrPoolNotSeeded) {
		t.Fatalf("expected unseeded rejection, got %v", err)
	}
	seedPool(t, service)

	tokensIn := fixedpoint.FromInt64(100)
	quoted, err := service.PreviewQuoteTokenForKwh(tokensIn)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	productBefore := service.PoolSnapshot().Product()

	out, err := service.SwapTokenForKwh(ctx, "alice", tokensIn, quoted)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out.Cmp(quoted) != 0 {
		t.Fatalf("swap output %s differs from quote %s", out, quoted)
	}
	if service.KWhCredit("alice").Cmp(out) != 0 {
		t.Fatalf("kWh credit not booked: %s", service.KWhCredit("alice"))
	}
	if ledger.BalanceOf(poolAccount).Cmp(fixedpoint.FromInt64(5100)) != 0 {
		t.Fatalf("pool reserve mismatch: %s", ledger.BalanceOf(poolAccount))
	}
	// The fee keeps the invariant non-decreasing.
	if service.PoolSnapshot().Product().Cmp(productBefore) < 0 {
		t.Fatal("constant product decreased")
	}
}

func TestSwapKwhForTokenSpendsCredit(t *testing.T) {
	service, ledger := newExchangeFixture(t)
	ctx := context.Background()
	seedPool(t, service)

	_, err := service.SwapKwhForToken(ctx, "alice", fixedpoint.FromInt64(10), nil)
	if !errors.Is(err, exchange.ErrInsufficientKWhCredit) {
		t.Fatalf("expected credit check, got %v", err)
	}

	kWh, err := service.SwapTokenForKwh(ctx, "alice", fixedpoint.FromInt64(100), nil)
	if err != nil {
		t.Fatalf("acquire credit: %v", err)
	}

	aliceBefore := ledger.BalanceOf("alice")
	tokensOut, err := service.SwapKwhForToken(ctx, "alice", kWh, nil)
	if err != nil {
		t.Fatalf("swap back: %v", err)
	}
	if !fixedpoint.IsPositive(tokensOut) {
		t.Fatalf("expected positive output, got %s", tokensOut)
	}
	got := new(big.Int).Sub(ledger.BalanceOf("alice"), aliceBefore)
	if got.Cmp(tokensOut) != 0 {
		t.Fatalf("ledger moved %s, reported %s", got, tokensOut)
	}
	if !fixedpoint.IsZero(service.KWhCredit("alice")) {
		t.Fatalf("credit not consumed: %s", service.KWhCredit("alice"))
	}
	// Round-tripping through the fee loses value.
	if got.Cmp(fixedpoint.FromInt64(100)) >= 0 {
		t.Fatalf("round trip must not profit: %s", got)
	}
}

func TestSwapSlippageGuard(t *testing.T) {
	service, _ := newExchangeFixture(t)
	ctx := context.Background()
	seedPool(t, service)

	tokensIn := fixedpoint.FromInt64(100)
	quoted, err := service.PreviewQuoteTokenForKwh(tokensIn)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	tooMuch := new(big.Int).Add(quoted, big.NewInt(1))
	_, err = service.SwapTokenForKwh(ctx, "alice", tokensIn, tooMuch)
	if !errors.Is(err, exchange.ErrMinOutUnmet) {
		t.Fatalf("expected min-out rejection, got %v", err)
	}
}

func TestGrantKWhCredit(t *testing.T) {
	service, _ := newExchangeFixture(t)
	ctx := context.Background()

	if err := service.GrantKWhCredit(ctx, "alice", "bob", fixedpoint.FromInt64(50)); err == nil {
		t.Fatal("expected authorization failure")
	}
	if err := service.GrantKWhCredit(ctx, "ops-admin", "bob", fixedpoint.FromInt64(50)); err != nil {
		t.Fatalf("grant credit: %v", err)
	}
	if service.KWhCredit("bob").Cmp(fixedpoint.FromInt64(50)) != 0 {
		t.Fatalf("credit not granted: %s", service.KWhCredit("bob"))
	}
}
