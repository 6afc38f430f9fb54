// Package model defines the core domain types shared across the recovery
// engine. All monetary values use shopspring/decimal, never float64.
// Percentages are expressed in basis points (10000 bps = 100%).
package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// BpsDenominator is the basis-point scale: 10000 bps = 100%.
const BpsDenominator = 10000

var (
	// ErrInvalidLiquidationConfig is returned when a liquidation config
	// violates its invariants.
	ErrInvalidLiquidationConfig = errors.New("model: invalid liquidation config")

	// ErrInvalidAuctionConfig is returned when an auction config violates
	// its invariants.
	ErrInvalidAuctionConfig = errors.New("model: invalid auction config")
)

// LiquidationConfig holds the risk parameters for instant liquidation.
type LiquidationConfig struct {
	// MinRatioBps is the minimum healthy collateralization ratio,
	// e.g. 15000 = 150%.
	MinRatioBps int64 `json:"min_ratio_bps"`

	// LiquidationThresholdBps is the ratio below which a position becomes
	// liquidatable, e.g. 12000 = 120%. Always below MinRatioBps.
	LiquidationThresholdBps int64 `json:"liquidation_threshold_bps"`

	// BonusBps is the liquidator incentive on top of face value,
	// e.g. 1000 = 10%. Capped at 2000.
	BonusBps int64 `json:"bonus_bps"`
}

// Validate checks the config invariants: threshold < minRatio,
// bonus <= 2000, minRatio >= 11000.
func (c LiquidationConfig) Validate() error {
	if c.MinRatioBps < 11000 {
		return errors.Join(ErrInvalidLiquidationConfig, errors.New("min ratio below 11000 bps"))
	}
	if c.LiquidationThresholdBps <= 0 || c.LiquidationThresholdBps >= c.MinRatioBps {
		return errors.Join(ErrInvalidLiquidationConfig, errors.New("threshold must be positive and below min ratio"))
	}
	if c.BonusBps < 0 || c.BonusBps > 2000 {
		return errors.Join(ErrInvalidLiquidationConfig, errors.New("bonus exceeds 2000 bps"))
	}
	return nil
}

// AuctionConfig holds the parameters for Dutch auctions.
type AuctionConfig struct {
	// Duration is how long the price decays before the auction expires.
	Duration time.Duration `json:"duration"`

	// MinPriceFactorBps sets the floor price as a fraction of the start
	// price, e.g. 5000 = 50%.
	MinPriceFactorBps int64 `json:"min_price_factor_bps"`

	// LiquidationBonusBps is the bonus applied to auctioned recoveries.
	LiquidationBonusBps int64 `json:"liquidation_bonus_bps"`

	// CommitWindow is the minimum age of a commitment before it may be
	// revealed. Prevents commit-and-reveal inside one ordering window.
	CommitWindow time.Duration `json:"commit_window"`

	// RevealDeadline is the maximum age of a commitment at reveal time.
	RevealDeadline time.Duration `json:"reveal_deadline"`

	// CleanupIncentive is the fixed native-currency payout per expired
	// auction swept by a caller.
	CleanupIncentive decimal.Decimal `json:"cleanup_incentive"`
}

// Validate checks the config invariants: all parameters positive,
// MinPriceFactorBps <= 10000, reveal window opening after the commit window.
func (c AuctionConfig) Validate() error {
	if c.Duration <= 0 {
		return errors.Join(ErrInvalidAuctionConfig, errors.New("duration must be positive"))
	}
	if c.MinPriceFactorBps <= 0 || c.MinPriceFactorBps > BpsDenominator {
		return errors.Join(ErrInvalidAuctionConfig, errors.New("min price factor must be in (0, 10000]"))
	}
	if c.LiquidationBonusBps <= 0 {
		return errors.Join(ErrInvalidAuctionConfig, errors.New("liquidation bonus must be positive"))
	}
	if c.CommitWindow <= 0 || c.RevealDeadline <= c.CommitWindow {
		return errors.Join(ErrInvalidAuctionConfig, errors.New("reveal window must open after commit window"))
	}
	if c.CleanupIncentive.IsNegative() {
		return errors.Join(ErrInvalidAuctionConfig, errors.New("cleanup incentive cannot be negative"))
	}
	return nil
}

// DefaultAuctionConfig returns the auction parameters used when none are
// configured explicitly.
func DefaultAuctionConfig() AuctionConfig {
	return AuctionConfig{
		Duration:            time.Hour,
		MinPriceFactorBps:   5000,
		LiquidationBonusBps: 500,
		CommitWindow:        time.Minute,
		RevealDeadline:      10 * time.Minute,
		CleanupIncentive:    decimal.RequireFromString("0.01"),
	}
}

// DutchAuction is one collateral auction spawned by a liquidation event.
// The ID is the sole external handle; it is monotonic and starts at 1.
//
// Lifecycle: created Active=true; deactivated exactly once, either by a
// winning bid or by permissionless expiry cleanup. Never reactivated.
type DutchAuction struct {
	ID               uint64          `json:"id" db:"id"`
	User             string          `json:"user" db:"user_id"`
	Token            string          `json:"token" db:"token"`
	DebtAmount       decimal.Decimal `json:"debt_amount" db:"debt_amount"`
	CollateralAmount decimal.Decimal `json:"collateral_amount" db:"collateral_amount"` // full balance snapshot at creation
	StartPrice       decimal.Decimal `json:"start_price" db:"start_price"`             // oracle price at creation
	EndPrice         decimal.Decimal `json:"end_price" db:"end_price"`                 // startPrice * minPriceFactor / 10000
	StartTime        time.Time       `json:"start_time" db:"start_time"`
	Duration         time.Duration   `json:"duration" db:"duration"`
	Active           bool            `json:"active" db:"active"`
}

// Expired reports whether the auction is past its decay window at now.
func (a *DutchAuction) Expired(now time.Time) bool {
	return now.After(a.StartTime.Add(a.Duration))
}

// Commitment is a sealed bid in the commit-reveal protocol, keyed by
// (bidder, auction). A later commit from the same pair overwrites the
// earlier one and restarts the reveal window.
type Commitment struct {
	Bidder     string    `json:"bidder" db:"bidder"`
	AuctionID  uint64    `json:"auction_id" db:"auction_id"`
	Hash       string    `json:"hash" db:"hash"` // hex SHA3-256 of bidder|auction|maxPrice|nonce
	CommitTime time.Time `json:"commit_time" db:"commit_time"`
}

// SettlementRecord is an immutable record of a won auction.
// Once created, these are never modified or deleted.
type SettlementRecord struct {
	ID               string          `json:"id" db:"id"`
	AuctionID        uint64          `json:"auction_id" db:"auction_id"`
	Bidder           string          `json:"bidder" db:"bidder"`
	User             string          `json:"user" db:"user_id"`
	Token            string          `json:"token" db:"token"`
	CollateralAmount decimal.Decimal `json:"collateral_amount" db:"collateral_amount"`
	ClearingPrice    decimal.Decimal `json:"clearing_price" db:"clearing_price"`
	Cost             decimal.Decimal `json:"cost" db:"cost"`
	Refund           decimal.Decimal `json:"refund" db:"refund"`
	TokenPayment     bool            `json:"token_payment" db:"token_payment"` // true = pull-transfer path
	Timestamp        time.Time       `json:"timestamp" db:"timestamp"`
}

// LiquidationRecord is an immutable record of an instant liquidation.
type LiquidationRecord struct {
	ID               string          `json:"id" db:"id"`
	Liquidator       string          `json:"liquidator" db:"liquidator"`
	User             string          `json:"user" db:"user_id"`
	Token            string          `json:"token" db:"token"`
	DebtAmount       decimal.Decimal `json:"debt_amount" db:"debt_amount"`
	CollateralSeized decimal.Decimal `json:"collateral_seized" db:"collateral_seized"`
	Bonus            decimal.Decimal `json:"bonus" db:"bonus"`
	Direct           bool            `json:"direct" db:"direct"` // owner override path
	Timestamp        time.Time       `json:"timestamp" db:"timestamp"`
}
