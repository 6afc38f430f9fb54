package treasury_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stablemint/recovery-engine/internal/treasury"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCreditDebit(t *testing.T) {
	pool := treasury.New(d("10"))

	pool.Credit(d("5"))
	if got := pool.NativeBalance(); !got.Equal(d("15")) {
		t.Errorf("after credit: expected 15, got %s", got)
	}

	if err := pool.Debit(d("14.5")); err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if got := pool.NativeBalance(); !got.Equal(d("0.5")) {
		t.Errorf("after debit: expected 0.5, got %s", got)
	}
}

func TestDebit_Insufficient(t *testing.T) {
	pool := treasury.New(d("1"))

	if err := pool.Debit(d("1.01")); !errors.Is(err, treasury.ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := pool.NativeBalance(); !got.Equal(d("1")) {
		t.Errorf("failed debit must not change the balance, got %s", got)
	}
}

func TestNonPositiveAmountsIgnored(t *testing.T) {
	pool := treasury.New(d("1"))

	pool.Credit(d("-5"))
	if err := pool.Debit(d("-5")); err != nil {
		t.Errorf("negative debit: expected nil, got %v", err)
	}
	if err := pool.Debit(decimal.Zero); err != nil {
		t.Errorf("zero debit: expected nil, got %v", err)
	}
	if got := pool.NativeBalance(); !got.Equal(d("1")) {
		t.Errorf("balance must be unchanged, got %s", got)
	}
}
