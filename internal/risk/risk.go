// Package risk implements the collateralization formula that decides when
// a position may be liquidated, and the closed-form math for how much
// collateral a liquidator receives.
//
// All monetary values use shopspring/decimal, never float64.
// Ratios are compared in basis points to avoid division: a position is
// unsafe at threshold t iff collateralValue * 10000 < debtValue * t.
package risk

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/stablemint/recovery-engine/internal/model"
)

var (
	// ErrInvalidPrice is returned when the oracle reports a zero or
	// negative price for the collateral token.
	ErrInvalidPrice = errors.New("risk: invalid oracle price")

	// ErrNoCollateral is returned when a user holds no supported
	// collateral to seize.
	ErrNoCollateral = errors.New("risk: user has no collateral")
)

var bpsDen = decimal.NewFromInt(model.BpsDenominator)

// Amounts is the outcome of the liquidation formula.
type Amounts struct {
	// Collateral is the total collateral transferred to the liquidator,
	// bonus included.
	Collateral decimal.Decimal `json:"collateral"`

	// Bonus is the incentive portion of Collateral.
	Bonus decimal.Decimal `json:"bonus"`
}

// UnsafeAt reports whether a position is below the given ratio threshold:
//
//	collateralValue * 10000 < debtValue * thresholdBps
//
// Zero debt value is never unsafe.
func UnsafeAt(collateralValue, debtValue decimal.Decimal, thresholdBps int64) bool {
	if debtValue.LessThanOrEqual(decimal.Zero) {
		return false
	}
	lhs := collateralValue.Mul(bpsDen)
	rhs := debtValue.Mul(decimal.NewFromInt(thresholdBps))
	return lhs.LessThan(rhs)
}

// LiquidationAmounts computes the collateral owed for recovering
// debtAmount at the given oracle price with the given bonus:
//
//	collateral = debtAmount * (10000 + bonusBps) / (10000 * price)
//	bonus      = collateral * bonusBps / 10000
//
// The output is expressed in the ledger's canonical unit regardless of
// the collateral token's own decimal precision.
func LiquidationAmounts(price, debtAmount decimal.Decimal, bonusBps int64) (Amounts, error) {
	if price.LessThanOrEqual(decimal.Zero) {
		return Amounts{}, ErrInvalidPrice
	}

	numer := debtAmount.Mul(bpsDen.Add(decimal.NewFromInt(bonusBps)))
	denom := bpsDen.Mul(price)
	collateral := numer.DivRound(denom, 18)

	bonus := collateral.
		Mul(decimal.NewFromInt(bonusBps)).
		Div(bpsDen).
		Round(18)

	return Amounts{Collateral: collateral, Bonus: bonus}, nil
}

// CollateralRatioBps returns the collateralization ratio in basis points,
// or zero when the debt value is zero.
func CollateralRatioBps(collateralValue, debtValue decimal.Decimal) decimal.Decimal {
	if debtValue.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return collateralValue.Mul(bpsDen).DivRound(debtValue, 2)
}
