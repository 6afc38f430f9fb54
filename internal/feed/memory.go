package feed

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryPriceFeed implements PriceFeed with in-memory prices. Used for
// testing and development.
type MemoryPriceFeed struct {
	mu       sync.RWMutex
	prices   map[string]decimal.Decimal
	decimals map[string]uint8
}

// NewMemoryPriceFeed creates an empty in-memory price feed.
func NewMemoryPriceFeed() *MemoryPriceFeed {
	return &MemoryPriceFeed{
		prices:   make(map[string]decimal.Decimal),
		decimals: make(map[string]uint8),
	}
}

// SetPrice registers a token with a price and 18-decimal precision.
func (f *MemoryPriceFeed) SetPrice(token string, price decimal.Decimal) {
	f.SetToken(token, price, 18)
}

// SetToken registers a token with a price and explicit precision.
func (f *MemoryPriceFeed) SetToken(token string, price decimal.Decimal, decimals uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[token] = price
	f.decimals[token] = decimals
}

func (f *MemoryPriceFeed) Price(_ context.Context, token string) (decimal.Decimal, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	p, ok := f.prices[token]
	if !ok {
		return decimal.Zero, ErrUnsupportedToken
	}
	return p, nil
}

func (f *MemoryPriceFeed) Decimals(_ context.Context, token string) (uint8, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	d, ok := f.decimals[token]
	if !ok {
		return 0, ErrUnsupportedToken
	}
	return d, nil
}

func (f *MemoryPriceFeed) Supported(_ context.Context, token string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.prices[token]
	return ok
}

// MemoryLedger implements CollateralLedger with in-memory balances and
// prices a MemoryPriceFeed for USD valuation. Used for testing and
// development.
type MemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]map[string]decimal.Decimal // user -> token -> amount
	feed     *MemoryPriceFeed
}

// NewMemoryLedger creates an empty in-memory ledger valuing collateral
// against the given feed.
func NewMemoryLedger(feed *MemoryPriceFeed) *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]map[string]decimal.Decimal),
		feed:     feed,
	}
}

// Deposit credits collateral to a user.
func (l *MemoryLedger) Deposit(user, token string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[user] == nil {
		l.balances[user] = make(map[string]decimal.Decimal)
	}
	l.balances[user][token] = l.balances[user][token].Add(amount)
}

func (l *MemoryLedger) Balance(_ context.Context, user, token string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[user][token], nil
}

func (l *MemoryLedger) TotalValueUSD(ctx context.Context, user string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := decimal.Zero
	for token, amount := range l.balances[user] {
		price, err := l.feed.Price(ctx, token)
		if err != nil {
			continue // unpriced collateral contributes no value
		}
		total = total.Add(amount.Mul(price))
	}
	return total, nil
}

func (l *MemoryLedger) TransferOut(_ context.Context, user, token string, amount decimal.Decimal, recipient string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	have := l.balances[user][token]
	if have.LessThan(amount) {
		return ErrInsufficientBalance
	}
	l.balances[user][token] = have.Sub(amount)

	if l.balances[recipient] == nil {
		l.balances[recipient] = make(map[string]decimal.Decimal)
	}
	l.balances[recipient][token] = l.balances[recipient][token].Add(amount)
	return nil
}

// MemoryDebtAccount implements DebtAccount with in-memory debt totals.
type MemoryDebtAccount struct {
	mu    sync.RWMutex
	debts map[string]decimal.Decimal
}

// NewMemoryDebtAccount creates an empty in-memory debt account.
func NewMemoryDebtAccount() *MemoryDebtAccount {
	return &MemoryDebtAccount{debts: make(map[string]decimal.Decimal)}
}

// SetDebt assigns a user's outstanding debt.
func (d *MemoryDebtAccount) SetDebt(user string, amount decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.debts[user] = amount
}

func (d *MemoryDebtAccount) Debt(_ context.Context, user string) (decimal.Decimal, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.debts[user], nil
}

func (d *MemoryDebtAccount) OnSettled(_ context.Context, user string, debtAmount decimal.Decimal) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	remaining := d.debts[user].Sub(debtAmount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	d.debts[user] = remaining
	return nil
}
