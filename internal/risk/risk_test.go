package risk_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stablemint/recovery-engine/internal/risk"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestUnsafeAt(t *testing.T) {
	cases := []struct {
		name            string
		collateralValue string
		debtValue       string
		thresholdBps    int64
		unsafe          bool
	}{
		{"well collateralized", "2000", "1000", 12000, false},
		{"exactly at threshold", "1200", "1000", 12000, false},
		{"just below threshold", "1199.99", "1000", 12000, true},
		{"deeply underwater", "500", "1000", 12000, true},
		{"zero debt never unsafe", "0", "0", 12000, false},
		{"zero collateral with debt", "0", "1", 12000, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := risk.UnsafeAt(d(tc.collateralValue), d(tc.debtValue), tc.thresholdBps)
			if got != tc.unsafe {
				t.Errorf("UnsafeAt(%s, %s, %d) = %v, want %v",
					tc.collateralValue, tc.debtValue, tc.thresholdBps, got, tc.unsafe)
			}
		})
	}
}

// Recovering 1000 of debt at price 2000 with a 10% bonus seizes
// 1000 * 1.1 / 2000 = 0.55 collateral, of which 0.055 is the bonus.
func TestLiquidationAmounts_Exact(t *testing.T) {
	amt, err := risk.LiquidationAmounts(d("2000"), d("1000"), 1000)
	if err != nil {
		t.Fatalf("LiquidationAmounts failed: %v", err)
	}
	if !amt.Collateral.Equal(d("0.55")) {
		t.Errorf("collateral: expected 0.55, got %s", amt.Collateral)
	}
	if !amt.Bonus.Equal(d("0.055")) {
		t.Errorf("bonus: expected 0.055, got %s", amt.Bonus)
	}
}

func TestLiquidationAmounts_ZeroBonus(t *testing.T) {
	amt, err := risk.LiquidationAmounts(d("2000"), d("1000"), 0)
	if err != nil {
		t.Fatalf("LiquidationAmounts failed: %v", err)
	}
	if !amt.Collateral.Equal(d("0.5")) {
		t.Errorf("collateral: expected 0.5, got %s", amt.Collateral)
	}
	if !amt.Bonus.IsZero() {
		t.Errorf("bonus: expected 0, got %s", amt.Bonus)
	}
}

func TestLiquidationAmounts_InvalidPrice(t *testing.T) {
	if _, err := risk.LiquidationAmounts(decimal.Zero, d("1000"), 500); err != risk.ErrInvalidPrice {
		t.Errorf("zero price: expected ErrInvalidPrice, got %v", err)
	}
	if _, err := risk.LiquidationAmounts(d("-1"), d("1000"), 500); err != risk.ErrInvalidPrice {
		t.Errorf("negative price: expected ErrInvalidPrice, got %v", err)
	}
}

// The bonus portion must stay strictly below the total across the whole
// permitted bonus range.
func TestLiquidationAmounts_BonusBelowCollateral(t *testing.T) {
	for bonusBps := int64(0); bonusBps <= 2000; bonusBps += 100 {
		amt, err := risk.LiquidationAmounts(d("1777.77"), d("923.45"), bonusBps)
		if err != nil {
			t.Fatalf("bonus=%d: %v", bonusBps, err)
		}
		if amt.Bonus.GreaterThanOrEqual(amt.Collateral) && bonusBps < 10000 {
			t.Errorf("bonus=%d: bonus %s >= collateral %s", bonusBps, amt.Bonus, amt.Collateral)
		}
		if amt.Bonus.IsNegative() {
			t.Errorf("bonus=%d: negative bonus %s", bonusBps, amt.Bonus)
		}
	}
}

func TestCollateralRatioBps(t *testing.T) {
	if got := risk.CollateralRatioBps(d("1500"), d("1000")); !got.Equal(d("15000")) {
		t.Errorf("expected 15000, got %s", got)
	}
	if got := risk.CollateralRatioBps(d("1500"), decimal.Zero); !got.IsZero() {
		t.Errorf("zero debt: expected 0, got %s", got)
	}
}
