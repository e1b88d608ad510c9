// Package token holds the fungible balance ledger. All amounts are
// fixed-point integers with 18 implied decimals; the ledger invariant is
// that the sum of all balances equals total supply at every commit point.
package token

import (
	"math/big"
	"sync"

	"ento-core/internal/fixedpoint"
)

// OpKind identifies a ledger operation inside a batch.
type OpKind int

const (
	OpTransfer OpKind = iota
	OpMint
	OpBurn
)

// Op is a single balance movement. A batch of ops is validated in full
// against current state before any of it is applied.
type Op struct {
	Kind   OpKind
	From   string
	To     string
	Amount *big.Int
}

// Ledger is the in-memory balance store.
type Ledger struct {
	mu          sync.RWMutex
	balances    map[string]*big.Int
	allowances  map[string]map[string]*big.Int
	totalSupply *big.Int
}

// NewLedger constructs an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances:    make(map[string]*big.Int),
		allowances:  make(map[string]map[string]*big.Int),
		totalSupply: new(big.Int),
	}
}

// BalanceOf returns a copy of the account balance.
func (l *Ledger) BalanceOf(account string) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fixedpoint.Clone(l.balances[account])
}

// TotalSupply returns a copy of the total supply.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fixedpoint.Clone(l.totalSupply)
}

// Allowance returns a copy of the spender allowance.
func (l *Ledger) Allowance(owner, spender string) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if set := l.allowances[owner]; set != nil {
		return fixedpoint.Clone(set[spender])
	}
	return new(big.Int)
}

// Approve sets the spender allowance for owner.
func (l *Ledger) Approve(owner, spender string, amount *big.Int) error {
	if owner == "" || spender == "" {
		return ErrEmptyAccount
	}
	if fixedpoint.IsNegative(amount) {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	set := l.allowances[owner]
	if set == nil {
		set = make(map[string]*big.Int)
		l.allowances[owner] = set
	}
	set[spender] = fixedpoint.Clone(amount)
	return nil
}

// Mint credits an account and grows supply.
func (l *Ledger) Mint(to string, amount *big.Int) error {
	return l.ApplyBatch([]Op{{Kind: OpMint, To: to, Amount: amount}})
}

// Burn debits an account and shrinks supply.
func (l *Ledger) Burn(from string, amount *big.Int) error {
	return l.ApplyBatch([]Op{{Kind: OpBurn, From: from, Amount: amount}})
}

// Transfer moves tokens between accounts.
func (l *Ledger) Transfer(from, to string, amount *big.Int) error {
	return l.ApplyBatch([]Op{{Kind: OpTransfer, From: from, To: to, Amount: amount}})
}

// TransferFrom moves tokens on behalf of owner, consuming allowance.
func (l *Ledger) TransferFrom(spender, from, to string, amount *big.Int) error {
	if spender == "" {
		return ErrEmptyAccount
	}
	if err := validateOp(Op{Kind: OpTransfer, From: from, To: to, Amount: amount}); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	allowance := new(big.Int)
	if set := l.allowances[from]; set != nil && set[spender] != nil {
		allowance = set[spender]
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.checkLocked([]Op{{Kind: OpTransfer, From: from, To: to, Amount: amount}}); err != nil {
		return err
	}
	l.applyLocked([]Op{{Kind: OpTransfer, From: from, To: to, Amount: amount}})
	l.allowances[from][spender] = new(big.Int).Sub(allowance, amount)
	return nil
}

// ApplyBatch validates every op against current state plus the batch's own
// preceding effects, then applies all of them. A failed check leaves the
// ledger untouched.
func (l *Ledger) ApplyBatch(ops []Op) error {
	for _, op := range ops {
		if err := validateOp(op); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkLocked(ops); err != nil {
		return err
	}
	l.applyLocked(ops)
	return nil
}

func validateOp(op Op) error {
	if !fixedpoint.IsPositive(op.Amount) {
		return ErrInvalidAmount
	}
	switch op.Kind {
	case OpTransfer:
		if op.From == "" || op.To == "" {
			return ErrEmptyAccount
		}
		if op.From == op.To {
			return ErrSelfTransfer
		}
	case OpMint:
		if op.To == "" {
			return ErrEmptyAccount
		}
	case OpBurn:
		if op.From == "" {
			return ErrEmptyAccount
		}
	}
	return nil
}

// checkLocked dry-runs the batch over a scratch view of touched balances.
func (l *Ledger) checkLocked(ops []Op) error {
	scratch := make(map[string]*big.Int)
	balance := func(account string) *big.Int {
		if v, ok := scratch[account]; ok {
			return v
		}
		v := fixedpoint.Clone(l.balances[account])
		scratch[account] = v
		return v
	}
	for _, op := range ops {
		switch op.Kind {
		case OpTransfer, OpBurn:
			from := balance(op.From)
			if from.Cmp(op.Amount) < 0 {
				return ErrInsufficientBalance
			}
			from.Sub(from, op.Amount)
			if op.Kind == OpTransfer {
				balance(op.To).Add(balance(op.To), op.Amount)
			}
		case OpMint:
			balance(op.To).Add(balance(op.To), op.Amount)
		}
	}
	return nil
}

func (l *Ledger) applyLocked(ops []Op) {
	credit := func(account string, amount *big.Int) {
		v := l.balances[account]
		if v == nil {
			v = new(big.Int)
			l.balances[account] = v
		}
		v.Add(v, amount)
	}
	debit := func(account string, amount *big.Int) {
		l.balances[account].Sub(l.balances[account], amount)
	}
	for _, op := range ops {
		switch op.Kind {
		case OpTransfer:
			debit(op.From, op.Amount)
			credit(op.To, op.Amount)
		case OpMint:
			credit(op.To, op.Amount)
			l.totalSupply.Add(l.totalSupply, op.Amount)
		case OpBurn:
			debit(op.From, op.Amount)
			l.totalSupply.Sub(l.totalSupply, op.Amount)
		}
	}
}

// Snapshot returns a copy of all balances for read-only consumers.
func (l *Ledger) Snapshot() map[string]*big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]*big.Int, len(l.balances))
	for account, balance := range l.balances {
		out[account] = fixedpoint.Clone(balance)
	}
	return out
}
