package feed_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stablemint/recovery-engine/internal/feed"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMemoryPriceFeed(t *testing.T) {
	f := feed.NewMemoryPriceFeed()
	f.SetPrice("WETH", d("2000"))
	f.SetToken("WBTC", d("60000"), 8)
	ctx := context.Background()

	if !f.Supported(ctx, "WETH") || f.Supported(ctx, "DOGE") {
		t.Error("support lookup mismatch")
	}

	p, err := f.Price(ctx, "WETH")
	if err != nil || !p.Equal(d("2000")) {
		t.Errorf("expected 2000, got %s (%v)", p, err)
	}
	if _, err := f.Price(ctx, "DOGE"); !errors.Is(err, feed.ErrUnsupportedToken) {
		t.Errorf("expected ErrUnsupportedToken, got %v", err)
	}

	dec, err := f.Decimals(ctx, "WBTC")
	if err != nil || dec != 8 {
		t.Errorf("expected 8 decimals, got %d (%v)", dec, err)
	}
}

func TestMemoryLedger_TransferOut(t *testing.T) {
	f := feed.NewMemoryPriceFeed()
	l := feed.NewMemoryLedger(f)
	ctx := context.Background()

	l.Deposit("dana", "WETH", d("5"))

	if err := l.TransferOut(ctx, "dana", "WETH", d("2"), "bob"); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if got, _ := l.Balance(ctx, "dana", "WETH"); !got.Equal(d("3")) {
		t.Errorf("sender balance: expected 3, got %s", got)
	}
	if got, _ := l.Balance(ctx, "bob", "WETH"); !got.Equal(d("2")) {
		t.Errorf("recipient balance: expected 2, got %s", got)
	}

	if err := l.TransferOut(ctx, "dana", "WETH", d("4"), "bob"); !errors.Is(err, feed.ErrInsufficientBalance) {
		t.Errorf("overdraw: expected ErrInsufficientBalance, got %v", err)
	}
}

func TestMemoryLedger_TotalValueUSD(t *testing.T) {
	f := feed.NewMemoryPriceFeed()
	f.SetPrice("WETH", d("2000"))
	f.SetPrice("USDC", d("1"))
	l := feed.NewMemoryLedger(f)
	ctx := context.Background()

	l.Deposit("dana", "WETH", d("1.5"))
	l.Deposit("dana", "USDC", d("500"))
	l.Deposit("dana", "DOGE", d("1000000")) // unpriced, contributes nothing

	got, err := l.TotalValueUSD(ctx, "dana")
	if err != nil {
		t.Fatalf("valuation failed: %v", err)
	}
	if !got.Equal(d("3500")) {
		t.Errorf("expected 3500, got %s", got)
	}
}

func TestMemoryDebtAccount(t *testing.T) {
	a := feed.NewMemoryDebtAccount()
	ctx := context.Background()

	a.SetDebt("dana", d("1000"))
	if err := a.OnSettled(ctx, "dana", d("300")); err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if got, _ := a.Debt(ctx, "dana"); !got.Equal(d("700")) {
		t.Errorf("expected 700, got %s", got)
	}

	// Over-settlement floors at zero instead of going negative.
	if err := a.OnSettled(ctx, "dana", d("5000")); err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if got, _ := a.Debt(ctx, "dana"); !got.IsZero() {
		t.Errorf("expected 0, got %s", got)
	}
}
