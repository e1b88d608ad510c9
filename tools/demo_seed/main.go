// Command demo_seed runs a full scenario through the public module
// operations: mint, pack purchase, metered usage, settlement, exchange,
// a loan, and a governance vote, printing the resulting balances.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/big"
	"time"

	"ento-core/internal/access"
	"ento-core/internal/clock"
	"ento-core/internal/eventing"
	eventingmemory "ento-core/internal/eventing/infrastructure/memory"
	exchangeapp "ento-core/internal/exchange/application"
	exchangememory "ento-core/internal/exchange/infrastructure/memory"
	"ento-core/internal/fixedpoint"
	governanceapp "ento-core/internal/governance/application"
	governance "ento-core/internal/governance/domain"
	governancememory "ento-core/internal/governance/infrastructure/memory"
	lendingapp "ento-core/internal/lending/application"
	lendingmemory "ento-core/internal/lending/infrastructure/memory"
	packmarketapp "ento-core/internal/packmarket/application"
	packmarket "ento-core/internal/packmarket/domain"
	packmarketmemory "ento-core/internal/packmarket/infrastructure/memory"
	settlementapp "ento-core/internal/settlement/application"
	settlement "ento-core/internal/settlement/domain"
	settlementmemory "ento-core/internal/settlement/infrastructure/memory"
	tokenapp "ento-core/internal/token/application"
	token "ento-core/internal/token/domain"
)

const (
	admin    = "ops-admin"
	alice    = "alice"
	bob      = "bob"
	treasury = "sys.packmarket.treasury"
	module   = "sys.settlement.module"
	pool     = "sys.exchange.pool"
	funding  = "sys.lending.funding"
	vault    = "sys.governance.vault"
)

func main() {
	month := flag.String("month", "2026-09", "settlement month to seed")
	flag.Parse()

	ctx := context.Background()
	meterSecret := []byte("demo-meter-secret")
	clk := clock.NewManualClock(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))

	registry := access.NewRegistry()
	registry.Grant(admin, access.RoleAdmin)
	registry.Grant(admin, access.RoleMinter)
	registry.Grant(admin, access.RoleBurner)
	registry.Grant(admin, access.RoleExecutor)
	registry.Grant(module, access.RoleMinter)
	registry.Grant(module, access.RoleBurner)

	outbox := eventingmemory.NewOutboxStore()
	bus := eventing.NewInMemoryBus()
	eventRegistry := eventing.NewRegistry()
	dispatcher := eventing.NewDispatcher(bus, outbox, eventRegistry)

	ledger := token.NewLedger()
	ledgerService, err := tokenapp.NewLedgerService(ledger, registry, eventing.NewPublisher(outbox, dispatcher, "token"), clk)
	if err != nil {
		log.Fatalf("ledger service: %v", err)
	}

	genesis := fixedpoint.FromInt64(100000)
	must(ledgerService.Mint(ctx, admin, admin, genesis))
	must(ledgerService.Transfer(ctx, admin, alice, fixedpoint.FromInt64(20000)))
	must(ledgerService.Transfer(ctx, admin, bob, fixedpoint.FromInt64(20000)))
	must(ledgerService.Transfer(ctx, admin, funding, fixedpoint.FromInt64(20000)))

	curve, err := packmarket.NewBondingCurve(fixedpoint.One, fixedpoint.One, genesis)
	if err != nil {
		log.Fatalf("curve: %v", err)
	}

	packRepo := packmarketmemory.NewPackRepository()
	usageRepo := settlementmemory.NewUsageRepository()
	settlementService, err := settlementapp.NewSettlementService(
		usageRepo,
		settlementmemory.NewNonceStore(),
		settlementmemory.NewScoreStore(),
		packRepo,
		ledgerService,
		registry,
		settlement.NewHMACVerifier(meterSecret),
		module,
		eventing.NewPublisher(outbox, dispatcher, "settlement"),
		clk,
	)
	if err != nil {
		log.Fatalf("settlement service: %v", err)
	}

	marketService, err := packmarketapp.NewMarketService(
		packRepo, curve, ledger, ledger, treasury, settlementService, true,
		eventing.NewPublisher(outbox, dispatcher, "packmarket"), clk,
	)
	if err != nil {
		log.Fatalf("market service: %v", err)
	}

	exchangeService, err := exchangeapp.NewExchangeService(
		exchangememory.NewOrderRepository(), ledger, registry, pool, 30, 500,
		eventing.NewPublisher(outbox, dispatcher, "exchange"), clk,
	)
	if err != nil {
		log.Fatalf("exchange service: %v", err)
	}

	loanService, err := lendingapp.NewLoanService(
		lendingmemory.NewLoanRepository(), ledger, settlementService, funding,
		lendingapp.Params{
			MinCreditScore:          50,
			MinRateBps:              300,
			MaxRateBps:              1500,
			SafetyThresholdBps:      15000,
			LiquidationThresholdBps: 12000,
		},
		eventing.NewPublisher(outbox, dispatcher, "lending"), clk,
	)
	if err != nil {
		log.Fatalf("loan service: %v", err)
	}

	governanceService, err := governanceapp.NewGovernanceService(
		governancememory.NewStakeRepository(),
		governancememory.NewProposalRepository(),
		ledger, registry, vault,
		governanceapp.Params{
			VotingDelay:    time.Hour,
			VotingPeriod:   24 * time.Hour,
			ExecutionDelay: time.Hour,
			Cooldown:       48 * time.Hour,
			QuorumBps:      2000,
		},
		eventing.NewPublisher(outbox, dispatcher, "governance"), clk,
	)
	if err != nil {
		log.Fatalf("governance service: %v", err)
	}
	governanceService.RegisterParam("exchange.fee_bps", func(value string) error {
		return exchangeService.SetFeeBps(25)
	})

	// Packs and usage.
	pack, err := marketService.BuyPack(ctx, alice, *month, 2000)
	if err != nil {
		log.Fatalf("buy pack: %v", err)
	}
	fmt.Printf("alice pack: %d kWh for %s tokens at unit price %s\n",
		pack.KWhPurchased, pack.EnTokenPaid.String(), pack.LockedUnitPrice.String())

	payload := settlement.UsagePayload(alice, *month, 1200, "nonce-demo-1")
	sig := settlement.SignUsage(meterSecret, payload)
	must(settlementService.RecordSignedUsage(ctx, alice, *month, 1200, "nonce-demo-1", sig))

	clk.Advance(30 * 24 * time.Hour)
	result, err := settlementService.ClaimSavings(ctx, alice, *month)
	if err != nil {
		log.Fatalf("claim savings: %v", err)
	}
	fmt.Printf("alice settlement: surplus=%d kWh minted=%s burned=%s\n",
		result.SurplusKWh, result.Minted.String(), result.Burned.String())
	must(settlementService.SetCreditScore(ctx, admin, alice, 80))

	// Exchange.
	must(exchangeService.SeedAmmPool(ctx, admin, fixedpoint.FromInt64(5000), fixedpoint.FromInt64(5000)))
	order, err := exchangeService.ListSurplus(ctx, alice, 500, fixedpoint.MulBps(fixedpoint.One, 11000))
	if err != nil {
		log.Fatalf("list surplus: %v", err)
	}
	filled, err := exchangeService.BuyFromOrder(ctx, bob, order.ID, 200, fixedpoint.FromInt64(1000))
	if err != nil {
		log.Fatalf("fill order: %v", err)
	}
	fmt.Printf("order %d filled, %d kWh remaining\n", filled.ID, filled.KWhRemaining)

	out, err := exchangeService.SwapTokenForKwh(ctx, bob, fixedpoint.FromInt64(100), big.NewInt(0))
	if err != nil {
		log.Fatalf("swap: %v", err)
	}
	fmt.Printf("bob swapped 100 tokens for %s kWh credits\n", out.String())

	// Lending.
	loan, err := loanService.RequestLoan(ctx, alice, fixedpoint.FromInt64(1000), fixedpoint.FromInt64(2000))
	if err != nil {
		log.Fatalf("request loan: %v", err)
	}
	fmt.Printf("alice loan: principal=%s collateral=%s rate=%dbps\n",
		loan.Principal.String(), loan.Collateral.String(), loan.RateBps)

	// Governance.
	must(governanceService.Stake(ctx, alice, fixedpoint.FromInt64(1000)))
	must(governanceService.Stake(ctx, bob, fixedpoint.FromInt64(800)))
	proposal, err := governanceService.Propose(ctx, alice, "exchange.fee_bps", "25", "lower swap fee")
	if err != nil {
		log.Fatalf("propose: %v", err)
	}
	clk.Advance(2 * time.Hour)
	must(governanceService.CastVote(ctx, alice, proposal.ID, governance.VoteFor))
	must(governanceService.CastVote(ctx, bob, proposal.ID, governance.VoteAgainst))
	clk.Advance(24 * time.Hour)
	if _, err := governanceService.Queue(ctx, proposal.ID); err != nil {
		log.Fatalf("queue: %v", err)
	}
	clk.Advance(2 * time.Hour)
	must(governanceService.Execute(ctx, admin, proposal.ID))
	fmt.Printf("proposal %d executed\n", proposal.ID)

	for _, account := range []string{alice, bob, treasury, pool, funding, vault} {
		fmt.Printf("balance %-26s %s\n", account, ledger.BalanceOf(account).String())
	}
	fmt.Printf("total supply: %s\n", ledger.TotalSupply().String())
	fmt.Printf("events delivered: %d\n", outbox.SentCount())
}

func must(err error) {
	if err != nil {
		log.Fatalf("seed step failed: %v", err)
	}
}
