// Package treasury tracks the engine's own native-currency pool: bid
// proceeds flow in, overpayment refunds and cleanup incentives flow out.
// The balance doubles as the input to the flash-loan heuristic: a sudden
// oversized balance is treated as hostile.
package treasury

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrInsufficientFunds is returned when a payout exceeds the pool.
var ErrInsufficientFunds = errors.New("treasury: insufficient funds")

// Treasury is a thread-safe native-currency pool.
type Treasury struct {
	mu      sync.RWMutex
	balance decimal.Decimal
}

// New creates a treasury seeded with the given opening balance.
func New(opening decimal.Decimal) *Treasury {
	return &Treasury{balance: opening}
}

// NativeBalance returns the current pool balance. Implements
// mevguard.BalanceSource.
func (t *Treasury) NativeBalance() decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balance
}

// Credit adds funds to the pool.
func (t *Treasury) Credit(amount decimal.Decimal) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balance = t.balance.Add(amount)
}

// Debit removes funds from the pool, failing if the balance would go
// negative.
func (t *Treasury) Debit(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	t.balance = t.balance.Sub(amount)
	return nil
}
