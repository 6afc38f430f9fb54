// Package feed defines the interfaces of the external collaborators the
// recovery engine consumes: the price-feed aggregator, the collateral
// custody ledger, and the debt-accounting ledger. The engine never
// implements these subsystems; it only specifies what it needs from them.
package feed

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnsupportedToken is returned for tokens the price feed does not
	// cover.
	ErrUnsupportedToken = errors.New("feed: unsupported token")

	// ErrStalePrice is returned when the aggregator cannot resolve a
	// fresh price.
	ErrStalePrice = errors.New("feed: stale price")

	// ErrInsufficientBalance is returned by TransferOut when the user's
	// ledger balance does not cover the requested amount.
	ErrInsufficientBalance = errors.New("feed: insufficient ledger balance")
)

// PriceFeed resolves token prices in the protocol's common unit.
type PriceFeed interface {
	// Price returns the current price, or an error on staleness. A zero
	// price with nil error must be treated the same as an error.
	Price(ctx context.Context, token string) (decimal.Decimal, error)

	// Decimals returns the token's own decimal precision. Kept on the
	// interface so per-token normalization can be introduced without an
	// interface change.
	Decimals(ctx context.Context, token string) (uint8, error)

	// Supported reports whether the feed covers the token.
	Supported(ctx context.Context, token string) bool
}

// CollateralLedger holds per-user, per-token collateral balances.
type CollateralLedger interface {
	// Balance returns the user's balance of one token.
	Balance(ctx context.Context, user, token string) (decimal.Decimal, error)

	// TotalValueUSD returns the USD value of all of the user's collateral.
	TotalValueUSD(ctx context.Context, user string) (decimal.Decimal, error)

	// TransferOut moves collateral from the user to the recipient. The
	// ledger authorizes the transfer; over-spends fail with
	// ErrInsufficientBalance.
	TransferOut(ctx context.Context, user, token string, amount decimal.Decimal, recipient string) error
}

// DebtAccount holds per-user debt and accepts settlement callbacks.
type DebtAccount interface {
	// Debt returns the user's outstanding debt.
	Debt(ctx context.Context, user string) (decimal.Decimal, error)

	// OnSettled reduces the user's debt after a recovery completes.
	OnSettled(ctx context.Context, user string, debtAmount decimal.Decimal) error
}
