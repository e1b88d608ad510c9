// Package application implements the trade exchange use cases: the
// premium-gated order book layered over the constant-product pool.
package application

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"ento-core/internal/access"
	"ento-core/internal/clock"
	exchange "ento-core/internal/exchange/domain"
	"ento-core/internal/fixedpoint"
	token "ento-core/internal/token/domain"
)

// OrderListed is emitted when a surplus listing is accepted.
type OrderListed struct {
	OrderID    int64     `json:"order_id"`
	Seller     string    `json:"seller"`
	KWh        int64     `json:"kwh"`
	Price      string    `json:"price"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OrderFilled is emitted on a successful fill.
type OrderFilled struct {
	OrderID      int64     `json:"order_id"`
	Buyer        string    `json:"buyer"`
	Seller       string    `json:"seller"`
	KWh          int64     `json:"kwh"`
	TokensPaid   string    `json:"tokens_paid"`
	KWhRemaining int64     `json:"kwh_remaining"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// OrderCancelled is emitted when a seller withdraws a listing.
type OrderCancelled struct {
	OrderID    int64     `json:"order_id"`
	Seller     string    `json:"seller"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PoolSeeded is emitted on pool initialization.
type PoolSeeded struct {
	Account      string    `json:"account"`
	TokenReserve string    `json:"token_reserve"`
	KWhReserve   string    `json:"kwh_reserve"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// SwapExecuted is emitted after a constant-product swap.
type SwapExecuted struct {
	Account    string    `json:"account"`
	Side       string    `json:"side"`
	AmountIn   string    `json:"amount_in"`
	AmountOut  string    `json:"amount_out"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	// SideTokenForKwh sells tokens into the pool for kWh credit.
	SideTokenForKwh = "token_for_kwh"
	// SideKwhForToken sells kWh credit into the pool for tokens.
	SideKwhForToken = "kwh_for_token"
)

// Publisher emits exchange events.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// ExchangeService runs the order book and the AMM pool. kWh in the pool is
// a virtual credit tracked per account by the exchange itself; tokens move
// on the shared ledger through the pool account.
type ExchangeService struct {
	mu sync.Mutex

	orders      exchange.Repository
	pool        *exchange.Pool
	ledger      *token.Ledger
	registry    *access.Registry
	poolAccount string

	feeBps        int64
	minPremiumBps int64

	kwhCredits map[string]*big.Int

	publisher Publisher
	clock     clock.Clock
}

// NewExchangeService constructs the service.
func NewExchangeService(
	orders exchange.Repository,
	ledger *token.Ledger,
	registry *access.Registry,
	poolAccount string,
	feeBps, minPremiumBps int64,
	publisher Publisher,
	clk clock.Clock,
) (*ExchangeService, error) {
	if orders == nil {
		return nil, errors.New("exchange service: nil order repository")
	}
	if ledger == nil {
		return nil, errors.New("exchange service: nil ledger")
	}
	if registry == nil {
		return nil, errors.New("exchange service: nil access registry")
	}
	if poolAccount == "" {
		return nil, errors.New("exchange service: empty pool account")
	}
	if feeBps < 0 || feeBps >= 10000 {
		return nil, errors.New("exchange service: fee bps out of range")
	}
	if minPremiumBps < 0 {
		return nil, errors.New("exchange service: negative premium bps")
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &ExchangeService{
		orders:        orders,
		pool:          exchange.NewPool(),
		ledger:        ledger,
		registry:      registry,
		poolAccount:   poolAccount,
		feeBps:        feeBps,
		minPremiumBps: minPremiumBps,
		kwhCredits:    make(map[string]*big.Int),
		publisher:     publisher,
		clock:         clk,
	}, nil
}

// SetFeeBps updates the swap fee (governance parameter).
func (s *ExchangeService) SetFeeBps(feeBps int64) error {
	if feeBps < 0 || feeBps >= 10000 {
		return exchange.ErrInvalidAmount
	}
	s.mu.Lock()
	s.feeBps = feeBps
	s.mu.Unlock()
	return nil
}

// SetMinPremiumBps updates the listing premium floor (governance parameter).
func (s *ExchangeService) SetMinPremiumBps(bps int64) error {
	if bps < 0 {
		return exchange.ErrInvalidAmount
	}
	s.mu.Lock()
	s.minPremiumBps = bps
	s.mu.Unlock()
	return nil
}

// SeedAmmPool initializes the reserves exactly once. Admin only. The token
// side is pulled from the admin's ledger balance; the kWh side is the
// virtual reserve backing meter-credit swaps.
func (s *ExchangeService) SeedAmmPool(ctx context.Context, admin string, tokenAmount, kWhAmount *big.Int) error {
	if err := s.registry.Require(admin, access.RoleAdmin); err != nil {
		return err
	}
	if !fixedpoint.IsPositive(tokenAmount) || !fixedpoint.IsPositive(kWhAmount) {
		return exchange.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool.Seeded() {
		return exchange.ErrPoolSeeded
	}
	if err := s.ledger.Transfer(admin, s.poolAccount, tokenAmount); err != nil {
		return err
	}
	s.pool.TokenReserve = fixedpoint.Clone(tokenAmount)
	s.pool.KWhReserve = fixedpoint.Clone(kWhAmount)

	s.publish(ctx, PoolSeeded{
		Account:      admin,
		TokenReserve: fixedpoint.String(tokenAmount),
		KWhReserve:   fixedpoint.String(kWhAmount),
		OccurredAt:   s.clock.Now(),
	})
	return nil
}

// PreviewRefPrice returns the AMM spot price (kWh per token). Pure read.
func (s *ExchangeService) PreviewRefPrice() (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.SpotPrice()
}

// PreviewQuoteTokenForKwh quotes kWh out for tokens in. Pure read.
func (s *ExchangeService) PreviewQuoteTokenForKwh(tokensIn *big.Int) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return exchange.QuoteOut(tokensIn, s.pool.TokenReserve, s.pool.KWhReserve, s.feeBps)
}

// PreviewQuoteKwhForToken quotes tokens out for kWh in. Pure read.
func (s *ExchangeService) PreviewQuoteKwhForToken(kWhIn *big.Int) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return exchange.QuoteOut(kWhIn, s.pool.KWhReserve, s.pool.TokenReserve, s.feeBps)
}

// ListSurplus creates a resting sell order. The price must clear the AMM
// spot by the premium floor: price >= ref*(10000+minPremiumBps)/10000.
func (s *ExchangeService) ListSurplus(ctx context.Context, seller string, kWh int64, price *big.Int) (*exchange.Order, error) {
	if seller == "" {
		return nil, exchange.ErrEmptyAccount
	}
	if kWh <= 0 || !fixedpoint.IsPositive(price) {
		return nil, exchange.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := s.pool.SpotPrice()
	if err != nil {
		return nil, err
	}
	floor := fixedpoint.MulDiv(ref, big.NewInt(10000+s.minPremiumBps), big.NewInt(10000))
	if price.Cmp(floor) < 0 {
		return nil, exchange.ErrPremiumTooLow
	}

	id, err := s.orders.NextID(ctx)
	if err != nil {
		return nil, err
	}
	order := &exchange.Order{
		ID:           id,
		Seller:       seller,
		KWhRemaining: kWh,
		Price:        fixedpoint.Clone(price),
		Active:       true,
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, err
	}

	s.publish(ctx, OrderListed{
		OrderID:    id,
		Seller:     seller,
		KWh:        kWh,
		Price:      fixedpoint.String(price),
		OccurredAt: s.clock.Now(),
	})
	return order.Clone(), nil
}

// BuyFromOrder fills part of a resting order. cost = kWh*1e18/price; the
// buyer cap is checked before the transfer leg runs.
func (s *ExchangeService) BuyFromOrder(ctx context.Context, buyer string, orderID, kWhWanted int64, maxTokensIn *big.Int) (*exchange.Order, error) {
	if buyer == "" {
		return nil, exchange.ErrEmptyAccount
	}
	if kWhWanted <= 0 {
		return nil, exchange.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.orders.Find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, exchange.ErrOrderNotFound
	}
	if !order.Active {
		return nil, exchange.ErrOrderInactive
	}
	if kWhWanted > order.KWhRemaining {
		return nil, exchange.ErrInsufficientRemaining
	}

	cost := fixedpoint.MulDiv(fixedpoint.FromInt64(kWhWanted), fixedpoint.One, order.Price)
	if maxTokensIn != nil && cost.Cmp(maxTokensIn) > 0 {
		return nil, exchange.ErrCostExceedsMax
	}

	if err := s.ledger.Transfer(buyer, order.Seller, cost); err != nil {
		return nil, err
	}
	if err := order.Fill(kWhWanted); err != nil {
		return nil, err
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, err
	}

	s.publish(ctx, OrderFilled{
		OrderID:      orderID,
		Buyer:        buyer,
		Seller:       order.Seller,
		KWh:          kWhWanted,
		TokensPaid:   fixedpoint.String(cost),
		KWhRemaining: order.KWhRemaining,
		OccurredAt:   s.clock.Now(),
	})
	return order.Clone(), nil
}

// CancelOrder deactivates a listing. Seller only.
func (s *ExchangeService) CancelOrder(ctx context.Context, seller string, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.orders.Find(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return exchange.ErrOrderNotFound
	}
	if order.Seller != seller {
		return exchange.ErrNotSeller
	}
	if !order.Active {
		return exchange.ErrOrderInactive
	}
	order.Active = false
	if err := s.orders.Save(ctx, order); err != nil {
		return err
	}

	s.publish(ctx, OrderCancelled{OrderID: orderID, Seller: seller, OccurredAt: s.clock.Now()})
	return nil
}

// SwapTokenForKwh sells tokens into the pool for virtual kWh credit.
func (s *ExchangeService) SwapTokenForKwh(ctx context.Context, account string, tokensIn, minKwhOut *big.Int) (*big.Int, error) {
	if account == "" {
		return nil, exchange.ErrEmptyAccount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pool.Seeded() {
		return nil, exchange.ErrPoolNotSeeded
	}
	kWhOut, err := exchange.QuoteOut(tokensIn, s.pool.TokenReserve, s.pool.KWhReserve, s.feeBps)
	if err != nil {
		return nil, err
	}
	if minKwhOut != nil && kWhOut.Cmp(minKwhOut) < 0 {
		return nil, exchange.ErrMinOutUnmet
	}

	if err := s.ledger.Transfer(account, s.poolAccount, tokensIn); err != nil {
		return nil, err
	}
	s.pool.TokenReserve.Add(s.pool.TokenReserve, tokensIn)
	s.pool.KWhReserve.Sub(s.pool.KWhReserve, kWhOut)
	s.creditKWh(account, kWhOut)

	s.publish(ctx, SwapExecuted{
		Account:    account,
		Side:       SideTokenForKwh,
		AmountIn:   fixedpoint.String(tokensIn),
		AmountOut:  fixedpoint.String(kWhOut),
		OccurredAt: s.clock.Now(),
	})
	return kWhOut, nil
}

// SwapKwhForToken sells virtual kWh credit into the pool for tokens.
func (s *ExchangeService) SwapKwhForToken(ctx context.Context, account string, kWhIn, minTokensOut *big.Int) (*big.Int, error) {
	if account == "" {
		return nil, exchange.ErrEmptyAccount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pool.Seeded() {
		return nil, exchange.ErrPoolNotSeeded
	}
	if !fixedpoint.IsPositive(kWhIn) {
		return nil, exchange.ErrInvalidAmount
	}
	credit := s.kwhCredits[account]
	if credit == nil || credit.Cmp(kWhIn) < 0 {
		return nil, exchange.ErrInsufficientKWhCredit
	}
	tokensOut, err := exchange.QuoteOut(kWhIn, s.pool.KWhReserve, s.pool.TokenReserve, s.feeBps)
	if err != nil {
		return nil, err
	}
	if minTokensOut != nil && tokensOut.Cmp(minTokensOut) < 0 {
		return nil, exchange.ErrMinOutUnmet
	}

	if err := s.ledger.Transfer(s.poolAccount, account, tokensOut); err != nil {
		return nil, err
	}
	credit.Sub(credit, kWhIn)
	s.pool.KWhReserve.Add(s.pool.KWhReserve, kWhIn)
	s.pool.TokenReserve.Sub(s.pool.TokenReserve, tokensOut)

	s.publish(ctx, SwapExecuted{
		Account:    account,
		Side:       SideKwhForToken,
		AmountIn:   fixedpoint.String(kWhIn),
		AmountOut:  fixedpoint.String(tokensOut),
		OccurredAt: s.clock.Now(),
	})
	return tokensOut, nil
}

// KWhCredit returns the virtual kWh balance held at the exchange.
func (s *ExchangeService) KWhCredit(account string) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fixedpoint.Clone(s.kwhCredits[account])
}

// GrantKWhCredit adds virtual kWh credit (settlement surplus intake).
// Admin only.
func (s *ExchangeService) GrantKWhCredit(ctx context.Context, admin, account string, kWh *big.Int) error {
	_ = ctx
	if err := s.registry.Require(admin, access.RoleAdmin); err != nil {
		return err
	}
	if !fixedpoint.IsPositive(kWh) {
		return exchange.ErrInvalidAmount
	}
	s.mu.Lock()
	s.creditKWh(account, kWh)
	s.mu.Unlock()
	return nil
}

// PoolSnapshot returns a copy of the reserves for read-only consumers.
func (s *ExchangeService) PoolSnapshot() *exchange.Pool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Clone()
}

// Orders returns active listings.
func (s *ExchangeService) Orders(ctx context.Context) ([]*exchange.Order, error) {
	return s.orders.ListActive(ctx)
}

// FindOrder loads an order by id; nil when absent.
func (s *ExchangeService) FindOrder(ctx context.Context, id int64) (*exchange.Order, error) {
	return s.orders.Find(ctx, id)
}

func (s *ExchangeService) creditKWh(account string, amount *big.Int) {
	v := s.kwhCredits[account]
	if v == nil {
		v = new(big.Int)
		s.kwhCredits[account] = v
	}
	v.Add(v, amount)
}

func (s *ExchangeService) publish(ctx context.Context, event any) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, event)
}
