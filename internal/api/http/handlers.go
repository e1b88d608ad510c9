// Package apihttp exposes the module operations over HTTP. Mutating
// endpoints resolve the acting account from the authenticated identity.
package apihttp

import (
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ento-core/internal/auth"
	exchangeapp "ento-core/internal/exchange/application"
	governanceapp "ento-core/internal/governance/application"
	governance "ento-core/internal/governance/domain"
	lendingapp "ento-core/internal/lending/application"
	"ento-core/internal/observability/metrics"
	packmarketapp "ento-core/internal/packmarket/application"
	settlementapp "ento-core/internal/settlement/application"
	settlementifaces "ento-core/internal/settlement/interfaces"
	tokenapp "ento-core/internal/token/application"
)

// LedgerHandler serves token ledger operations.
type LedgerHandler struct {
	ledger *tokenapp.LedgerService
}

// NewLedgerHandler constructs a LedgerHandler.
func NewLedgerHandler(ledger *tokenapp.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// ServeHTTP handles /api/v1/ledger/*.
func (h *LedgerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.ledger == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	switch {
	case r.URL.Path == "/api/v1/ledger/balances" && r.Method == http.MethodGet:
		account := r.URL.Query().Get("account")
		if account == "" {
			http.Error(w, "account is required", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"account": account,
			"balance": amountString(h.ledger.Ledger().BalanceOf(account)),
		})
	case r.URL.Path == "/api/v1/ledger/supply" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{
			"total_supply": amountString(h.ledger.Ledger().TotalSupply()),
		})
	case r.URL.Path == "/api/v1/ledger/mint" && r.Method == http.MethodPost:
		h.mutate(w, r, "mint")
	case r.URL.Path == "/api/v1/ledger/burn" && r.Method == http.MethodPost:
		h.mutate(w, r, "burn")
	case r.URL.Path == "/api/v1/ledger/transfer" && r.Method == http.MethodPost:
		h.mutate(w, r, "transfer")
	case r.URL.Path == "/api/v1/ledger/approve" && r.Method == http.MethodPost:
		h.mutate(w, r, "approve")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *LedgerHandler) mutate(w http.ResponseWriter, r *http.Request, kind string) {
	var body struct {
		Account string `json:"account"`
		Spender string `json:"spender"`
		Amount  string `json:"amount"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	actor := auth.AccountFromContext(r.Context())

	switch kind {
	case "mint":
		err = h.ledger.Mint(r.Context(), actor, body.Account, amount)
	case "burn":
		err = h.ledger.Burn(r.Context(), actor, body.Account, amount)
	case "transfer":
		err = h.ledger.Transfer(r.Context(), actor, body.Account, amount)
	case "approve":
		err = h.ledger.Approve(r.Context(), actor, body.Spender, amount)
	}
	if err != nil {
		metrics.IncLedgerOp(kind, metrics.ResultError)
		writeError(w, err)
		return
	}
	metrics.IncLedgerOp(kind, metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PacksHandler serves usage pack purchases and queries.
type PacksHandler struct {
	market *packmarketapp.MarketService
}

// NewPacksHandler constructs a PacksHandler.
func NewPacksHandler(market *packmarketapp.MarketService) *PacksHandler {
	return &PacksHandler{market: market}
}

// ServeHTTP handles /api/v1/packs and /api/v1/packs/price.
func (h *PacksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.market == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	switch {
	case r.URL.Path == "/api/v1/packs/price" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{
			"unit_price": amountString(h.market.PreviewUnitPrice()),
		})
	case r.URL.Path == "/api/v1/packs" && r.Method == http.MethodGet:
		h.query(w, r)
	case r.URL.Path == "/api/v1/packs" && r.Method == http.MethodPost:
		h.buy(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *PacksHandler) query(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		http.Error(w, "month is required", http.StatusBadRequest)
		return
	}
	if account := r.URL.Query().Get("account"); account != "" {
		pack, err := h.market.FindPack(r.Context(), month, account)
		if err != nil {
			writeError(w, err)
			return
		}
		if pack == nil {
			http.Error(w, "pack not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, pack)
		return
	}
	packs, err := h.market.ListPacksByMonth(r.Context(), month)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, packs)
}

func (h *PacksHandler) buy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Month string `json:"month"`
		KWh   int64  `json:"kwh"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	buyer := auth.AccountFromContext(r.Context())
	started := time.Now()
	pack, err := h.market.BuyPack(r.Context(), buyer, body.Month, body.KWh)
	if err != nil {
		metrics.ObservePackPurchase(metrics.ResultError, time.Since(started))
		writeError(w, err)
		return
	}
	metrics.ObservePackPurchase(metrics.ResultSuccess, time.Since(started))
	writeJSON(w, http.StatusCreated, pack)
}

// UsageHandler serves signed readings, claims and credit scores.
type UsageHandler struct {
	settlement *settlementapp.SettlementService
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(settlement *settlementapp.SettlementService) *UsageHandler {
	return &UsageHandler{settlement: settlement}
}

// ServeHTTP handles /api/v1/usage/*.
func (h *UsageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.settlement == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	switch {
	case r.URL.Path == "/api/v1/usage" && r.Method == http.MethodGet:
		h.query(w, r)
	case r.URL.Path == "/api/v1/usage/readings" && r.Method == http.MethodPost:
		h.record(w, r)
	case r.URL.Path == "/api/v1/usage/claims" && r.Method == http.MethodPost:
		h.claim(w, r)
	case r.URL.Path == "/api/v1/usage/scores" && r.Method == http.MethodGet:
		h.score(w, r)
	case r.URL.Path == "/api/v1/usage/scores" && r.Method == http.MethodPost:
		h.setScore(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *UsageHandler) query(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		http.Error(w, "month is required", http.StatusBadRequest)
		return
	}
	if account := r.URL.Query().Get("account"); account != "" {
		usage, err := h.settlement.Usage(r.Context(), month, account)
		if err != nil {
			writeError(w, err)
			return
		}
		if usage == nil {
			http.Error(w, "usage not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, usage)
		return
	}
	rows, err := h.settlement.ListMonth(r.Context(), month)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *UsageHandler) record(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Account   string `json:"account"`
		Month     string `json:"month"`
		KWh       int64  `json:"kwh"`
		Nonce     string `json:"nonce"`
		Signature string `json:"signature"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err := h.settlement.RecordSignedUsage(r.Context(), body.Account, body.Month, body.KWh, body.Nonce, body.Signature)
	if err != nil {
		metrics.IncUsageReading(metrics.ResultError)
		metrics.IncUsageReadingError(reasonOf(err))
		writeError(w, err)
		return
	}
	metrics.IncUsageReading(metrics.ResultSuccess)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (h *UsageHandler) claim(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Month string `json:"month"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	account := auth.AccountFromContext(r.Context())
	started := time.Now()
	result, err := h.settlement.ClaimSavings(r.Context(), account, body.Month)
	if err != nil {
		metrics.ObserveClaim(metrics.ResultError, time.Since(started))
		writeError(w, err)
		return
	}
	metrics.ObserveClaim(metrics.ResultSuccess, time.Since(started))
	writeJSON(w, http.StatusOK, map[string]any{
		"surplus_kwh": result.SurplusKWh,
		"minted":      amountString(result.Minted),
		"burned":      amountString(result.Burned),
	})
}

func (h *UsageHandler) score(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		http.Error(w, "account is required", http.StatusBadRequest)
		return
	}
	score, err := h.settlement.CreditScore(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": account, "score": score})
}

func (h *UsageHandler) setScore(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Account string `json:"account"`
		Score   int    `json:"score"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	admin := auth.AccountFromContext(r.Context())
	if err := h.settlement.SetCreditScore(r.Context(), admin, body.Account, body.Score); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ExchangeHandler serves order book and pool operations.
type ExchangeHandler struct {
	exchange *exchangeapp.ExchangeService
}

// NewExchangeHandler constructs an ExchangeHandler.
func NewExchangeHandler(exchange *exchangeapp.ExchangeService) *ExchangeHandler {
	return &ExchangeHandler{exchange: exchange}
}

// ServeHTTP handles /api/v1/exchange/*.
func (h *ExchangeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.exchange == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	switch {
	case r.URL.Path == "/api/v1/exchange/orders" && r.Method == http.MethodGet:
		orders, err := h.exchange.Orders(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	case r.URL.Path == "/api/v1/exchange/orders" && r.Method == http.MethodPost:
		h.listOrder(w, r)
	case r.URL.Path == "/api/v1/exchange/orders/fill" && r.Method == http.MethodPost:
		h.fill(w, r)
	case r.URL.Path == "/api/v1/exchange/orders/cancel" && r.Method == http.MethodPost:
		h.cancel(w, r)
	case r.URL.Path == "/api/v1/exchange/pool" && r.Method == http.MethodGet:
		pool := h.exchange.PoolSnapshot()
		writeJSON(w, http.StatusOK, map[string]string{
			"token_reserve": amountString(pool.TokenReserve),
			"kwh_reserve":   amountString(pool.KWhReserve),
		})
	case r.URL.Path == "/api/v1/exchange/pool/seed" && r.Method == http.MethodPost:
		h.seed(w, r)
	case r.URL.Path == "/api/v1/exchange/quote" && r.Method == http.MethodGet:
		h.quote(w, r)
	case r.URL.Path == "/api/v1/exchange/swaps" && r.Method == http.MethodPost:
		h.swap(w, r)
	case r.URL.Path == "/api/v1/exchange/credits" && r.Method == http.MethodGet:
		account := r.URL.Query().Get("account")
		if account == "" {
			http.Error(w, "account is required", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"account": account,
			"kwh":     amountString(h.exchange.KWhCredit(account)),
		})
	case r.URL.Path == "/api/v1/exchange/credits/grant" && r.Method == http.MethodPost:
		h.grant(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *ExchangeHandler) listOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		KWh   int64  `json:"kwh"`
		Price string `json:"price"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	price, err := parseAmount(body.Price)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	seller := auth.AccountFromContext(r.Context())
	order, err := h.exchange.ListSurplus(r.Context(), seller, body.KWh, price)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *ExchangeHandler) fill(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderID     int64  `json:"order_id"`
		KWh         int64  `json:"kwh"`
		MaxTokensIn string `json:"max_tokens_in"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	maxIn, err := parseAmount(body.MaxTokensIn)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	buyer := auth.AccountFromContext(r.Context())
	order, err := h.exchange.BuyFromOrder(r.Context(), buyer, body.OrderID, body.KWh, maxIn)
	if err != nil {
		metrics.IncExchangeFill(metrics.ResultError)
		writeError(w, err)
		return
	}
	metrics.IncExchangeFill(metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, order)
}

func (h *ExchangeHandler) cancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderID int64 `json:"order_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	seller := auth.AccountFromContext(r.Context())
	if err := h.exchange.CancelOrder(r.Context(), seller, body.OrderID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *ExchangeHandler) seed(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TokenAmount string `json:"token_amount"`
		KWhAmount   string `json:"kwh_amount"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tokens, err := parseAmount(body.TokenAmount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kWh, err := parseAmount(body.KWhAmount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	admin := auth.AccountFromContext(r.Context())
	if err := h.exchange.SeedAmmPool(r.Context(), admin, tokens, kWh); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "seeded"})
}

func (h *ExchangeHandler) quote(w http.ResponseWriter, r *http.Request) {
	amountIn, err := parseAmount(r.URL.Query().Get("amount_in"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var out *big.Int
	switch r.URL.Query().Get("direction") {
	case "token_for_kwh":
		out, err = h.exchange.PreviewQuoteTokenForKwh(amountIn)
	case "kwh_for_token":
		out, err = h.exchange.PreviewQuoteKwhForToken(amountIn)
	default:
		http.Error(w, "direction must be token_for_kwh or kwh_for_token", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	spot, err := h.exchange.PreviewRefPrice()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"amount_out": amountString(out),
		"spot_price": amountString(spot),
	})
}

func (h *ExchangeHandler) swap(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Side     string `json:"side"`
		AmountIn string `json:"amount_in"`
		MinOut   string `json:"min_out"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	amountIn, err := parseAmount(body.AmountIn)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	minOut, err := parseAmount(body.MinOut)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	account := auth.AccountFromContext(r.Context())

	switch body.Side {
	case "token_for_kwh":
		got, swapErr := h.exchange.SwapTokenForKwh(r.Context(), account, amountIn, minOut)
		if swapErr != nil {
			metrics.IncExchangeSwap(body.Side, metrics.ResultError)
			writeError(w, swapErr)
			return
		}
		metrics.IncExchangeSwap(body.Side, metrics.ResultSuccess)
		writeJSON(w, http.StatusOK, map[string]string{"out": amountString(got)})
	case "kwh_for_token":
		got, swapErr := h.exchange.SwapKwhForToken(r.Context(), account, amountIn, minOut)
		if swapErr != nil {
			metrics.IncExchangeSwap(body.Side, metrics.ResultError)
			writeError(w, swapErr)
			return
		}
		metrics.IncExchangeSwap(body.Side, metrics.ResultSuccess)
		writeJSON(w, http.StatusOK, map[string]string{"out": amountString(got)})
	default:
		http.Error(w, "side must be token_for_kwh or kwh_for_token", http.StatusBadRequest)
	}
}

func (h *ExchangeHandler) grant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Account string `json:"account"`
		KWh     string `json:"kwh"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kWh, err := parseAmount(body.KWh)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	admin := auth.AccountFromContext(r.Context())
	if err := h.exchange.GrantKWhCredit(r.Context(), admin, body.Account, kWh); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LoansHandler serves collateralized loan operations.
type LoansHandler struct {
	loans *lendingapp.LoanService
}

// NewLoansHandler constructs a LoansHandler.
func NewLoansHandler(loans *lendingapp.LoanService) *LoansHandler {
	return &LoansHandler{loans: loans}
}

// ServeHTTP handles /api/v1/loans/*.
func (h *LoansHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.loans == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	switch {
	case r.URL.Path == "/api/v1/loans" && r.Method == http.MethodGet:
		h.query(w, r)
	case r.URL.Path == "/api/v1/loans" && r.Method == http.MethodPost:
		h.request(w, r)
	case r.URL.Path == "/api/v1/loans/interest" && r.Method == http.MethodGet:
		h.interest(w, r)
	case r.URL.Path == "/api/v1/loans/collateral" && r.Method == http.MethodPost:
		h.collateral(w, r)
	case r.URL.Path == "/api/v1/loans/repay" && r.Method == http.MethodPost:
		h.repay(w, r)
	case r.URL.Path == "/api/v1/loans/liquidate" && r.Method == http.MethodPost:
		h.liquidate(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *LoansHandler) query(w http.ResponseWriter, r *http.Request) {
	if borrower := r.URL.Query().Get("borrower"); borrower != "" {
		loan, err := h.loans.Loan(r.Context(), borrower)
		if err != nil {
			writeError(w, err)
			return
		}
		if loan == nil {
			http.Error(w, "loan not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, loan)
		return
	}
	loans, err := h.loans.ActiveLoans(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (h *LoansHandler) interest(w http.ResponseWriter, r *http.Request) {
	borrower := r.URL.Query().Get("borrower")
	if borrower == "" {
		borrower = auth.AccountFromContext(r.Context())
	}
	accrued, err := h.loans.PreviewAccruedInterest(r.Context(), borrower)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"borrower": borrower,
		"accrued":  amountString(accrued),
	})
}

func (h *LoansHandler) request(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount     string `json:"amount"`
		Collateral string `json:"collateral"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	collateral, err := parseAmount(body.Collateral)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	borrower := auth.AccountFromContext(r.Context())
	loan, err := h.loans.RequestLoan(r.Context(), borrower, amount, collateral)
	if err != nil {
		metrics.IncLoanOp("request", metrics.ResultError)
		writeError(w, err)
		return
	}
	metrics.IncLoanOp("request", metrics.ResultSuccess)
	writeJSON(w, http.StatusCreated, loan)
}

func (h *LoansHandler) collateral(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Direction string `json:"direction"`
		Amount    string `json:"amount"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	borrower := auth.AccountFromContext(r.Context())
	switch body.Direction {
	case "deposit":
		err = h.loans.DepositCollateral(r.Context(), borrower, amount)
	case "withdraw":
		err = h.loans.WithdrawCollateral(r.Context(), borrower, amount)
	default:
		http.Error(w, "direction must be deposit or withdraw", http.StatusBadRequest)
		return
	}
	if err != nil {
		metrics.IncLoanOp(body.Direction, metrics.ResultError)
		writeError(w, err)
		return
	}
	metrics.IncLoanOp(body.Direction, metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *LoansHandler) repay(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount string `json:"amount"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	borrower := auth.AccountFromContext(r.Context())
	if err := h.loans.Repay(r.Context(), borrower, amount); err != nil {
		metrics.IncLoanOp("repay", metrics.ResultError)
		writeError(w, err)
		return
	}
	metrics.IncLoanOp("repay", metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *LoansHandler) liquidate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Borrower string `json:"borrower"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	caller := auth.AccountFromContext(r.Context())
	if err := h.loans.Liquidate(r.Context(), caller, body.Borrower); err != nil {
		metrics.IncLoanOp("liquidate", metrics.ResultError)
		writeError(w, err)
		return
	}
	metrics.IncLoanOp("liquidate", metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, map[string]string{"status": "liquidated"})
}

// GovernanceHandler serves staking and proposal operations.
type GovernanceHandler struct {
	governance *governanceapp.GovernanceService
}

// NewGovernanceHandler constructs a GovernanceHandler.
func NewGovernanceHandler(governance *governanceapp.GovernanceService) *GovernanceHandler {
	return &GovernanceHandler{governance: governance}
}

// ServeHTTP handles /api/v1/governance/*.
func (h *GovernanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.governance == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	switch {
	case r.URL.Path == "/api/v1/governance/stakes" && r.Method == http.MethodGet:
		positions, err := h.governance.Positions(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, positions)
	case r.URL.Path == "/api/v1/governance/stake" && r.Method == http.MethodPost:
		h.stake(w, r)
	case r.URL.Path == "/api/v1/governance/unstake" && r.Method == http.MethodPost:
		h.unstake(w, r)
	case r.URL.Path == "/api/v1/governance/withdraw" && r.Method == http.MethodPost:
		h.withdraw(w, r)
	case r.URL.Path == "/api/v1/governance/proposals" && r.Method == http.MethodGet:
		h.proposals(w, r)
	case r.URL.Path == "/api/v1/governance/proposals" && r.Method == http.MethodPost:
		h.propose(w, r)
	case r.URL.Path == "/api/v1/governance/votes" && r.Method == http.MethodPost:
		h.vote(w, r)
	case r.URL.Path == "/api/v1/governance/queue" && r.Method == http.MethodPost:
		h.queue(w, r)
	case r.URL.Path == "/api/v1/governance/execute" && r.Method == http.MethodPost:
		h.execute(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *GovernanceHandler) stake(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount string `json:"amount"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	account := auth.AccountFromContext(r.Context())
	if err := h.governance.Stake(r.Context(), account, amount); err != nil {
		metrics.IncGovernanceOp("stake", metrics.ResultError)
		writeError(w, err)
		return
	}
	metrics.IncGovernanceOp("stake", metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, map[string]string{"status": "staked"})
}

func (h *GovernanceHandler) unstake(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount string `json:"amount"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	account := auth.AccountFromContext(r.Context())
	cooldownEnd, err := h.governance.RequestUnstake(r.Context(), account, amount)
	if err != nil {
		metrics.IncGovernanceOp("unstake", metrics.ResultError)
		writeError(w, err)
		return
	}
	metrics.IncGovernanceOp("unstake", metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "cooling_down",
		"cooldown_end": cooldownEnd.Format(time.RFC3339),
	})
}

func (h *GovernanceHandler) withdraw(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	amount, err := h.governance.WithdrawUnstaked(r.Context(), account)
	if err != nil {
		metrics.IncGovernanceOp("withdraw", metrics.ResultError)
		writeError(w, err)
		return
	}
	metrics.IncGovernanceOp("withdraw", metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, map[string]string{"withdrawn": amountString(amount)})
}

func (h *GovernanceHandler) proposals(w http.ResponseWriter, r *http.Request) {
	if idValue := r.URL.Query().Get("id"); idValue != "" {
		id, err := strconv.ParseInt(idValue, 10, 64)
		if err != nil {
			http.Error(w, "id must be an integer", http.StatusBadRequest)
			return
		}
		proposal, err := h.governance.Proposal(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if proposal == nil {
			http.Error(w, "proposal not found", http.StatusNotFound)
			return
		}
		state, err := h.governance.ProposalState(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"proposal": proposal, "state": state})
		return
	}
	proposals, err := h.governance.Proposals(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proposals)
}

func (h *GovernanceHandler) propose(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Param       string `json:"param"`
		Value       string `json:"value"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	proposer := auth.AccountFromContext(r.Context())
	proposal, err := h.governance.Propose(r.Context(), proposer, body.Param, body.Value, body.Description)
	if err != nil {
		metrics.IncGovernanceOp("propose", metrics.ResultError)
		writeError(w, err)
		return
	}
	metrics.IncGovernanceOp("propose", metrics.ResultSuccess)
	writeJSON(w, http.StatusCreated, proposal)
}

func (h *GovernanceHandler) vote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProposalID int64  `json:"proposal_id"`
		Choice     string `json:"choice"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	choice, err := governance.ParseVoteChoice(body.Choice)
	if err != nil {
		writeError(w, err)
		return
	}
	voter := auth.AccountFromContext(r.Context())
	if err := h.governance.CastVote(r.Context(), voter, body.ProposalID, choice); err != nil {
		metrics.IncGovernanceOp("vote", metrics.ResultError)
		writeError(w, err)
		return
	}
	metrics.IncGovernanceOp("vote", metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, map[string]string{"status": "voted"})
}

func (h *GovernanceHandler) queue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProposalID int64 `json:"proposal_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	eta, err := h.governance.Queue(r.Context(), body.ProposalID)
	if err != nil {
		metrics.IncGovernanceOp("queue", metrics.ResultError)
		writeError(w, err)
		return
	}
	metrics.IncGovernanceOp("queue", metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "queued",
		"eta":    eta.Format(time.RFC3339),
	})
}

func (h *GovernanceHandler) execute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProposalID int64 `json:"proposal_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	actor := auth.AccountFromContext(r.Context())
	if err := h.governance.Execute(r.Context(), actor, body.ProposalID); err != nil {
		metrics.IncGovernanceOp("execute", metrics.ResultError)
		writeError(w, err)
		return
	}
	metrics.IncGovernanceOp("execute", metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, map[string]string{"status": "executed"})
}

// StatementExportHandler serves monthly statement exports.
type StatementExportHandler struct {
	settlement *settlementapp.SettlementService
	market     *packmarketapp.MarketService
}

// NewStatementExportHandler constructs a StatementExportHandler.
func NewStatementExportHandler(settlement *settlementapp.SettlementService, market *packmarketapp.MarketService) *StatementExportHandler {
	return &StatementExportHandler{settlement: settlement, market: market}
}

// ServeHTTP handles GET /api/v1/statements/{month}/export.{pdf|xlsx}.
func (h *StatementExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.settlement == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/statements/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	month := parts[0]
	format := strings.TrimPrefix(parts[1], "export.")
	if format != "pdf" && format != "xlsx" {
		http.Error(w, "format must be pdf or xlsx", http.StatusBadRequest)
		return
	}

	started := time.Now()
	rows, err := h.buildRows(r, month)
	if err != nil {
		metrics.ObserveStatementExport(format, metrics.ResultError, time.Since(started))
		writeError(w, err)
		return
	}

	var data []byte
	switch format {
	case "pdf":
		data, err = settlementifaces.BuildMonthStatementPDF(month, time.Now().UTC(), rows)
		w.Header().Set("Content-Type", "application/pdf")
	case "xlsx":
		data, err = settlementifaces.BuildMonthStatementXLSX(month, time.Now().UTC(), rows)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	}
	if err != nil {
		metrics.ObserveStatementExport(format, metrics.ResultError, time.Since(started))
		http.Error(w, "statement render error", http.StatusInternalServerError)
		return
	}
	metrics.ObserveStatementExport(format, metrics.ResultSuccess, time.Since(started))
	w.Header().Set("Content-Disposition", `attachment; filename="statement-`+month+`.`+format+`"`)
	_, _ = w.Write(data)
}

func (h *StatementExportHandler) buildRows(r *http.Request, month string) ([]settlementifaces.StatementRow, error) {
	usages, err := h.settlement.ListMonth(r.Context(), month)
	if err != nil {
		return nil, err
	}
	rows := make([]settlementifaces.StatementRow, 0, len(usages))
	for _, usage := range usages {
		row := settlementifaces.StatementRow{
			Account:      usage.Account,
			KWhPurchased: usage.KWhPurchased,
			KWhConsumed:  usage.KWhConsumed,
			SurplusKWh:   usage.KWhPurchased - usage.KWhConsumed,
			Settled:      usage.Settled,
		}
		if h.market != nil {
			if pack, packErr := h.market.FindPack(r.Context(), month, usage.Account); packErr == nil && pack != nil {
				row.TokensPaid = amountString(pack.EnTokenPaid)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// HealthzHandler reports liveness.
type HealthzHandler struct{}

// ServeHTTP handles GET /healthz.
func (HealthzHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func reasonOf(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ":"); idx > 0 {
		return strings.TrimSpace(msg[:idx])
	}
	return "unknown"
}
