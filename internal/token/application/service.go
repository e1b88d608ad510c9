// Package application exposes the role-gated ledger entrypoints.
package application

import (
	"context"
	"errors"
	"math/big"
	"time"

	"ento-core/internal/access"
	"ento-core/internal/clock"
	"ento-core/internal/fixedpoint"
	token "ento-core/internal/token/domain"
)

// TokensMinted is emitted after a successful mint.
type TokensMinted struct {
	Account    string    `json:"account"`
	Amount     string    `json:"amount"`
	Supply     string    `json:"supply"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TokensBurned is emitted after a successful burn.
type TokensBurned struct {
	Account    string    `json:"account"`
	Amount     string    `json:"amount"`
	Supply     string    `json:"supply"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TokensTransferred is emitted after a successful transfer.
type TokensTransferred struct {
	From       string    `json:"from"`
	To         string    `json:"to"`
	Account    string    `json:"account"`
	Amount     string    `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits ledger change events.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// LedgerService guards ledger mutations with role checks.
type LedgerService struct {
	ledger    *token.Ledger
	registry  *access.Registry
	publisher Publisher
	clock     clock.Clock
}

// NewLedgerService constructs the service.
func NewLedgerService(ledger *token.Ledger, registry *access.Registry, publisher Publisher, clk clock.Clock) (*LedgerService, error) {
	if ledger == nil {
		return nil, errors.New("ledger service: nil ledger")
	}
	if registry == nil {
		return nil, errors.New("ledger service: nil access registry")
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &LedgerService{ledger: ledger, registry: registry, publisher: publisher, clock: clk}, nil
}

// Ledger exposes the underlying store to sibling modules for reads and
// batch application; role-gated entry stays here.
func (s *LedgerService) Ledger() *token.Ledger { return s.ledger }

// Mint credits an account. Caller must hold the minter role.
func (s *LedgerService) Mint(ctx context.Context, actor, to string, amount *big.Int) error {
	if err := s.registry.Require(actor, access.RoleMinter); err != nil {
		return err
	}
	if err := s.ledger.Mint(to, amount); err != nil {
		return err
	}
	s.publish(ctx, TokensMinted{
		Account:    to,
		Amount:     fixedpoint.String(amount),
		Supply:     fixedpoint.String(s.ledger.TotalSupply()),
		OccurredAt: s.clock.Now(),
	})
	return nil
}

// Burn debits an account. Caller must hold the burner role.
func (s *LedgerService) Burn(ctx context.Context, actor, from string, amount *big.Int) error {
	if err := s.registry.Require(actor, access.RoleBurner); err != nil {
		return err
	}
	if err := s.ledger.Burn(from, amount); err != nil {
		return err
	}
	s.publish(ctx, TokensBurned{
		Account:    from,
		Amount:     fixedpoint.String(amount),
		Supply:     fixedpoint.String(s.ledger.TotalSupply()),
		OccurredAt: s.clock.Now(),
	})
	return nil
}

// Transfer moves the caller's own tokens.
func (s *LedgerService) Transfer(ctx context.Context, from, to string, amount *big.Int) error {
	if err := s.ledger.Transfer(from, to, amount); err != nil {
		return err
	}
	s.publishTransfer(ctx, from, to, amount)
	return nil
}

// TransferFrom moves owner tokens within the spender's allowance.
func (s *LedgerService) TransferFrom(ctx context.Context, spender, from, to string, amount *big.Int) error {
	if err := s.ledger.TransferFrom(spender, from, to, amount); err != nil {
		return err
	}
	s.publishTransfer(ctx, from, to, amount)
	return nil
}

// Approve sets a spender allowance.
func (s *LedgerService) Approve(ctx context.Context, owner, spender string, amount *big.Int) error {
	_ = ctx
	return s.ledger.Approve(owner, spender, amount)
}

func (s *LedgerService) publishTransfer(ctx context.Context, from, to string, amount *big.Int) {
	s.publish(ctx, TokensTransferred{
		From:       from,
		To:         to,
		Account:    from,
		Amount:     fixedpoint.String(amount),
		OccurredAt: s.clock.Now(),
	})
}

func (s *LedgerService) publish(ctx context.Context, event any) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, event)
}
