// Package application implements the pack market use cases: bonding-curve
// pricing and monthly kWh pack purchases.
package application

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"ento-core/internal/clock"
	"ento-core/internal/fixedpoint"
	packmarket "ento-core/internal/packmarket/domain"
	token "ento-core/internal/token/domain"
)

// PackPurchased is emitted after a successful pack purchase.
type PackPurchased struct {
	Account      string    `json:"account"`
	Month        string    `json:"month"`
	KWh          int64     `json:"kwh"`
	TokensPaid   string    `json:"tokens_paid"`
	UnitPrice    string    `json:"unit_price"`
	KWhPurchased int64     `json:"kwh_purchased_total"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// SupplyReader exposes the circulating supply to the pricing curve.
type SupplyReader interface {
	TotalSupply() *big.Int
}

// UsageOpener mirrors pack purchases into the settlement module's month
// usage records.
type UsageOpener interface {
	OpenMonth(ctx context.Context, month, account string, kWhPurchased int64) error
}

// Publisher emits pack market events.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// MarketService sells monthly energy packs priced by the bonding curve.
type MarketService struct {
	mu sync.Mutex

	packs    packmarket.Repository
	curve    *packmarket.BondingCurve
	supply   SupplyReader
	ledger   *token.Ledger
	treasury string
	usage    UsageOpener

	singlePurchase bool

	publisher Publisher
	clock     clock.Clock
}

// NewMarketService constructs the service. treasury is the account that
// collects pack payments.
func NewMarketService(
	packs packmarket.Repository,
	curve *packmarket.BondingCurve,
	supply SupplyReader,
	ledger *token.Ledger,
	treasury string,
	usage UsageOpener,
	singlePurchase bool,
	publisher Publisher,
	clk clock.Clock,
) (*MarketService, error) {
	if packs == nil {
		return nil, errors.New("market service: nil pack repository")
	}
	if curve == nil {
		return nil, errors.New("market service: nil curve")
	}
	if supply == nil {
		return nil, errors.New("market service: nil supply reader")
	}
	if ledger == nil {
		return nil, errors.New("market service: nil ledger")
	}
	if treasury == "" {
		return nil, errors.New("market service: empty treasury account")
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &MarketService{
		packs:          packs,
		curve:          curve,
		supply:         supply,
		ledger:         ledger,
		treasury:       treasury,
		usage:          usage,
		singlePurchase: singlePurchase,
		publisher:      publisher,
		clock:          clk,
	}, nil
}

// PreviewUnitPrice returns the current kWh-per-token price. Pure read.
func (s *MarketService) PreviewUnitPrice() *big.Int {
	return s.curve.UnitPrice(s.supply.TotalSupply())
}

// Curve exposes the curve for governance parameter wiring.
func (s *MarketService) Curve() *packmarket.BondingCurve { return s.curve }

// SetSinglePurchase toggles the one-purchase-per-month rule.
func (s *MarketService) SetSinglePurchase(enabled bool) {
	s.mu.Lock()
	s.singlePurchase = enabled
	s.mu.Unlock()
}

// BuyPack purchases kWh for the given month at the price locked now.
// tokensRequired = kWh * 1e18 / price; the transfer leg runs before any
// store write so a funding failure leaves no partial state.
func (s *MarketService) BuyPack(ctx context.Context, buyer, month string, kWh int64) (*packmarket.EnergyPack, error) {
	if buyer == "" {
		return nil, packmarket.ErrEmptyAccount
	}
	if kWh <= 0 {
		return nil, packmarket.ErrInvalidKWh
	}
	monthKey, err := packmarket.NewMonthKey(month)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.packs.Find(ctx, monthKey, buyer)
	if err != nil {
		return nil, err
	}
	if existing != nil && s.singlePurchase {
		return nil, packmarket.ErrAlreadyPurchased
	}

	price := s.curve.UnitPrice(s.supply.TotalSupply())
	kWhWad := fixedpoint.FromInt64(kWh)
	tokensRequired := fixedpoint.MulDiv(kWhWad, fixedpoint.One, price)

	if err := s.ledger.Transfer(buyer, s.treasury, tokensRequired); err != nil {
		return nil, err
	}

	pack := existing
	if pack == nil {
		pack = &packmarket.EnergyPack{
			Month:           monthKey,
			Account:         buyer,
			KWhPurchased:    kWh,
			EnTokenPaid:     fixedpoint.Clone(tokensRequired),
			LockedUnitPrice: fixedpoint.Clone(price),
		}
	} else {
		pack.Accumulate(kWh, tokensRequired, price)
	}
	if err := s.packs.Save(ctx, pack); err != nil {
		return nil, err
	}

	if s.usage != nil {
		if err := s.usage.OpenMonth(ctx, monthKey.String(), buyer, kWh); err != nil {
			return nil, err
		}
	}

	s.publish(ctx, PackPurchased{
		Account:      buyer,
		Month:        monthKey.String(),
		KWh:          kWh,
		TokensPaid:   fixedpoint.String(tokensRequired),
		UnitPrice:    fixedpoint.String(price),
		KWhPurchased: pack.KWhPurchased,
		OccurredAt:   s.clock.Now(),
	})
	return pack.Clone(), nil
}

// FindPack returns the pack for (month, account); nil when absent.
func (s *MarketService) FindPack(ctx context.Context, month, account string) (*packmarket.EnergyPack, error) {
	monthKey, err := packmarket.NewMonthKey(month)
	if err != nil {
		return nil, err
	}
	return s.packs.Find(ctx, monthKey, account)
}

// ListPacksByMonth returns all packs purchased for a month.
func (s *MarketService) ListPacksByMonth(ctx context.Context, month string) ([]*packmarket.EnergyPack, error) {
	monthKey, err := packmarket.NewMonthKey(month)
	if err != nil {
		return nil, err
	}
	return s.packs.ListByMonth(ctx, monthKey)
}

func (s *MarketService) publish(ctx context.Context, event any) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, event)
}
