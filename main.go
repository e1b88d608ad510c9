package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"ento-core/internal/access"
	apihttp "ento-core/internal/api/http"
	"ento-core/internal/audit"
	"ento-core/internal/auth"
	"ento-core/internal/clock"
	"ento-core/internal/config"
	"ento-core/internal/eventing"
	eventingmemory "ento-core/internal/eventing/infrastructure/memory"
	eventingpostgres "ento-core/internal/eventing/infrastructure/postgres"
	exchangeapp "ento-core/internal/exchange/application"
	exchangememory "ento-core/internal/exchange/infrastructure/memory"
	"ento-core/internal/fixedpoint"
	governanceapp "ento-core/internal/governance/application"
	governancememory "ento-core/internal/governance/infrastructure/memory"
	lendingapp "ento-core/internal/lending/application"
	lendingmemory "ento-core/internal/lending/infrastructure/memory"
	"ento-core/internal/observability/metrics"
	packmarketapp "ento-core/internal/packmarket/application"
	packmarket "ento-core/internal/packmarket/domain"
	packmarketmemory "ento-core/internal/packmarket/infrastructure/memory"
	settlementapp "ento-core/internal/settlement/application"
	settlement "ento-core/internal/settlement/domain"
	settlementmemory "ento-core/internal/settlement/infrastructure/memory"
	tokenapp "ento-core/internal/token/application"
	token "ento-core/internal/token/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Module accounts. Each module moves value through its own ledger account
// so every token stays accounted for.
const (
	treasuryAccount   = "sys.packmarket.treasury"
	settlementAccount = "sys.settlement.module"
	poolAccount       = "sys.exchange.pool"
	fundingAccount    = "sys.lending.funding"
	vaultAccount      = "sys.governance.vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
	}

	metrics.Init(db, logger)

	registry := access.NewRegistry()
	registry.Grant(cfg.AdminAccount, access.RoleAdmin)
	registry.Grant(cfg.AdminAccount, access.RoleMinter)
	registry.Grant(cfg.AdminAccount, access.RoleBurner)
	registry.Grant(cfg.AdminAccount, access.RoleExecutor)
	registry.Grant(settlementAccount, access.RoleMinter)
	registry.Grant(settlementAccount, access.RoleBurner)

	eventRegistry := eventing.NewRegistry()
	eventRegistry.Register(tokenapp.TokensMinted{})
	eventRegistry.Register(tokenapp.TokensBurned{})
	eventRegistry.Register(tokenapp.TokensTransferred{})
	eventRegistry.Register(packmarketapp.PackPurchased{})
	eventRegistry.Register(settlementapp.UsageRecorded{})
	eventRegistry.Register(settlementapp.SavingsClaimed{})
	eventRegistry.Register(settlementapp.CreditScoreSet{})
	eventRegistry.Register(exchangeapp.OrderListed{})
	eventRegistry.Register(exchangeapp.OrderFilled{})
	eventRegistry.Register(exchangeapp.OrderCancelled{})
	eventRegistry.Register(exchangeapp.PoolSeeded{})
	eventRegistry.Register(exchangeapp.SwapExecuted{})
	eventRegistry.Register(lendingapp.LoanRequested{})
	eventRegistry.Register(lendingapp.LoanRepaid{})
	eventRegistry.Register(lendingapp.CollateralChanged{})
	eventRegistry.Register(lendingapp.LoanLiquidated{})
	eventRegistry.Register(governanceapp.Staked{})
	eventRegistry.Register(governanceapp.UnstakeRequested{})
	eventRegistry.Register(governanceapp.UnstakeWithdrawn{})
	eventRegistry.Register(governanceapp.ProposalCreated{})
	eventRegistry.Register(governanceapp.VoteCast{})
	eventRegistry.Register(governanceapp.ProposalQueued{})
	eventRegistry.Register(governanceapp.ProposalExecuted{})

	bus := eventing.NewInMemoryBus()
	var outboxStore eventing.OutboxStore
	var processedStore eventing.ProcessedStore
	if db != nil {
		outboxStore = eventingpostgres.NewOutboxStore(db)
		processedStore = eventingpostgres.NewProcessedStore(db)
	} else {
		outboxStore = eventingmemory.NewOutboxStore()
		processedStore = eventingmemory.NewProcessedStore()
	}
	dispatcher := eventing.NewDispatcher(bus, outboxStore, eventRegistry)

	sysClock := clock.SystemClock{}
	ledger := token.NewLedger()
	ledgerService, err := tokenapp.NewLedgerService(ledger, registry, eventing.NewPublisher(outboxStore, dispatcher, "token"), sysClock)
	if err != nil {
		logger.Fatalf("ledger service error: %v", err)
	}

	genesisSupply, err := fixedpoint.Parse(cfg.Curve.GenesisSupply)
	if err != nil {
		logger.Fatalf("genesis supply error: %v", err)
	}
	if err := ledgerService.Mint(context.Background(), cfg.AdminAccount, cfg.AdminAccount, genesisSupply); err != nil {
		logger.Fatalf("genesis mint error: %v", err)
	}

	floor, err := fixedpoint.Parse(cfg.Curve.FloorPrice)
	if err != nil {
		logger.Fatalf("curve floor error: %v", err)
	}
	slope, err := fixedpoint.Parse(cfg.Curve.Slope)
	if err != nil {
		logger.Fatalf("curve slope error: %v", err)
	}
	curve, err := packmarket.NewBondingCurve(floor, slope, genesisSupply)
	if err != nil {
		logger.Fatalf("bonding curve error: %v", err)
	}

	usageRepo := settlementmemory.NewUsageRepository()
	nonceStore := settlementmemory.NewNonceStore()
	scoreStore := settlementmemory.NewScoreStore()
	packRepo := packmarketmemory.NewPackRepository()
	verifier := settlement.NewHMACVerifier([]byte(cfg.MeterSecret))

	settlementService, err := settlementapp.NewSettlementService(
		usageRepo,
		nonceStore,
		scoreStore,
		packRepo,
		ledgerService,
		registry,
		verifier,
		settlementAccount,
		eventing.NewPublisher(outboxStore, dispatcher, "settlement"),
		sysClock,
	)
	if err != nil {
		logger.Fatalf("settlement service error: %v", err)
	}

	marketService, err := packmarketapp.NewMarketService(
		packRepo,
		curve,
		ledger,
		ledger,
		treasuryAccount,
		settlementService,
		cfg.SinglePurchase,
		eventing.NewPublisher(outboxStore, dispatcher, "packmarket"),
		sysClock,
	)
	if err != nil {
		logger.Fatalf("market service error: %v", err)
	}

	exchangeService, err := exchangeapp.NewExchangeService(
		exchangememory.NewOrderRepository(),
		ledger,
		registry,
		poolAccount,
		cfg.Exchange.FeeBps,
		cfg.Exchange.MinPremiumBps,
		eventing.NewPublisher(outboxStore, dispatcher, "exchange"),
		sysClock,
	)
	if err != nil {
		logger.Fatalf("exchange service error: %v", err)
	}

	loanService, err := lendingapp.NewLoanService(
		lendingmemory.NewLoanRepository(),
		ledger,
		settlementService,
		fundingAccount,
		lendingapp.Params{
			MinCreditScore:          cfg.Lending.MinCreditScore,
			MinRateBps:              cfg.Lending.MinRateBps,
			MaxRateBps:              cfg.Lending.MaxRateBps,
			SafetyThresholdBps:      cfg.Lending.SafetyThresholdBps,
			LiquidationThresholdBps: cfg.Lending.LiquidationThresholdBps,
		},
		eventing.NewPublisher(outboxStore, dispatcher, "lending"),
		sysClock,
	)
	if err != nil {
		logger.Fatalf("loan service error: %v", err)
	}

	governanceService, err := governanceapp.NewGovernanceService(
		governancememory.NewStakeRepository(),
		governancememory.NewProposalRepository(),
		ledger,
		registry,
		vaultAccount,
		governanceapp.Params{
			VotingDelay:    cfg.Governance.VotingDelay,
			VotingPeriod:   cfg.Governance.VotingPeriod,
			ExecutionDelay: cfg.Governance.ExecutionDelay,
			Cooldown:       cfg.Governance.Cooldown,
			QuorumBps:      cfg.Governance.QuorumBps,
		},
		eventing.NewPublisher(outboxStore, dispatcher, "governance"),
		sysClock,
	)
	if err != nil {
		logger.Fatalf("governance service error: %v", err)
	}

	registerGovernanceParams(governanceService, curve, exchangeService, loanService)

	eventing.Subscribe(bus, eventing.EventTypeOf[settlementapp.SavingsClaimed](), "settlement.log", func(ctx context.Context, event any) error {
		evt, ok := event.(settlementapp.SavingsClaimed)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		logger.Printf("savings claimed: account=%s month=%s surplus_kwh=%d", evt.Account, evt.Month, evt.SurplusKWh)
		return nil
	}, processedStore)
	eventing.Subscribe(bus, eventing.EventTypeOf[lendingapp.LoanLiquidated](), "lending.log", func(ctx context.Context, event any) error {
		evt, ok := event.(lendingapp.LoanLiquidated)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		logger.Printf("loan liquidated: borrower=%s seized=%s", evt.Borrower, evt.Seized)
		return nil
	}, processedStore)

	var auditor audit.Logger
	if repo := audit.NewRepository(db); repo != nil {
		auditor = repo
	} else {
		auditor = audit.NewMemoryLogger()
	}

	router := apihttp.NewRouter(apihttp.Handlers{
		Ledger:     apihttp.NewLedgerHandler(ledgerService),
		Packs:      apihttp.NewPacksHandler(marketService),
		Usage:      apihttp.NewUsageHandler(settlementService),
		Exchange:   apihttp.NewExchangeHandler(exchangeService),
		Loans:      apihttp.NewLoansHandler(loanService),
		Governance: apihttp.NewGovernanceHandler(governanceService),
		Statements: apihttp.NewStatementExportHandler(settlementService, marketService),
	}, auditor, logger)

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router)

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

// registerGovernanceParams binds the executable parameter set. Each
// applier parses its own value.
func registerGovernanceParams(
	governanceService *governanceapp.GovernanceService,
	curve *packmarket.BondingCurve,
	exchangeService *exchangeapp.ExchangeService,
	loanService *lendingapp.LoanService,
) {
	governanceService.RegisterParam("curve.slope", func(value string) error {
		slope, err := fixedpoint.Parse(value)
		if err != nil {
			return err
		}
		return curve.SetSlope(slope)
	})
	governanceService.RegisterParam("curve.floor", func(value string) error {
		floor, err := fixedpoint.Parse(value)
		if err != nil {
			return err
		}
		return curve.SetFloor(floor)
	})
	governanceService.RegisterParam("exchange.fee_bps", func(value string) error {
		bps, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		return exchangeService.SetFeeBps(bps)
	})
	governanceService.RegisterParam("exchange.min_premium_bps", func(value string) error {
		bps, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		return exchangeService.SetMinPremiumBps(bps)
	})
	governanceService.RegisterParam("lending.min_credit_score", func(value string) error {
		score, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		return loanService.SetMinCreditScore(score)
	})
	governanceService.RegisterParam("governance.voting_period", func(value string) error {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		return governanceService.SetVotingPeriod(d)
	})
	governanceService.RegisterParam("governance.cooldown", func(value string) error {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		return governanceService.SetCooldown(d)
	})
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
