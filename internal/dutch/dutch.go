// Package dutch implements the price schedule of a falling-price (Dutch)
// auction: the price starts at the oracle price, decays linearly to a
// configured floor over the auction duration, and is zero afterwards.
//
// All monetary values use shopspring/decimal, never float64.
// The schedule is stateless; auction parameters are passed as arguments,
// not stored.
package dutch

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidSchedule is returned when duration is non-positive or the
	// floor price exceeds the start price.
	ErrInvalidSchedule = errors.New("dutch: invalid price schedule")

	// PriceScale is the number of decimal places for price/cost rounding.
	PriceScale int32 = 18
)

// Schedule computes decaying prices for one auction. It is stateless and
// safe for concurrent use.
type Schedule struct {
	startPrice decimal.Decimal
	endPrice   decimal.Decimal
	startTime  time.Time
	duration   time.Duration
}

// NewSchedule creates a price schedule decaying from startPrice to
// endPrice over duration, beginning at startTime.
func NewSchedule(startPrice, endPrice decimal.Decimal, startTime time.Time, duration time.Duration) (*Schedule, error) {
	if duration <= 0 {
		return nil, ErrInvalidSchedule
	}
	if startPrice.LessThanOrEqual(decimal.Zero) || endPrice.IsNegative() {
		return nil, ErrInvalidSchedule
	}
	if endPrice.GreaterThan(startPrice) {
		return nil, ErrInvalidSchedule
	}
	return &Schedule{
		startPrice: startPrice,
		endPrice:   endPrice,
		startTime:  startTime,
		duration:   duration,
	}, nil
}

// FloorPrice derives the auction floor from a start price and a
// basis-point factor: floor = startPrice * factorBps / 10000.
func FloorPrice(startPrice decimal.Decimal, factorBps int64) decimal.Decimal {
	return startPrice.
		Mul(decimal.NewFromInt(factorBps)).
		Div(decimal.NewFromInt(10000)).
		Round(PriceScale)
}

// PriceAt returns the auction price at the given instant:
//
//	price = startPrice - (startPrice - endPrice) * elapsed / duration
//
// The price equals startPrice at elapsed=0, exactly endPrice at
// elapsed=duration, and zero once the auction has expired. Instants
// before startTime are clamped to elapsed=0.
func (s *Schedule) PriceAt(now time.Time) decimal.Decimal {
	elapsed := now.Sub(s.startTime)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > s.duration {
		return decimal.Zero
	}
	if elapsed == s.duration {
		return s.endPrice
	}

	span := s.startPrice.Sub(s.endPrice)
	drop := span.
		Mul(decimal.NewFromInt(elapsed.Nanoseconds())).
		Div(decimal.NewFromInt(s.duration.Nanoseconds()))
	return s.startPrice.Sub(drop).Round(PriceScale)
}

// Expired reports whether the schedule is past its decay window.
func (s *Schedule) Expired(now time.Time) bool {
	return now.Sub(s.startTime) > s.duration
}

// Cost returns the total payment required to win the auctioned collateral
// at the given unit price: cost = price * quantity.
func Cost(price, quantity decimal.Decimal) decimal.Decimal {
	return price.Mul(quantity).Round(PriceScale)
}
