package mevguard_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stablemint/recovery-engine/internal/mevguard"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeBalance struct {
	v decimal.Decimal
}

func (b *fakeBalance) NativeBalance() decimal.Decimal { return b.v }

func testConfig() mevguard.Config {
	return mevguard.Config{
		MinDelay:              10 * time.Second,
		MaxPerBlock:           3,
		BlockInterval:         time.Second,
		LargeBalanceThreshold: decimal.NewFromInt(1_000_000),
		ProtectionBlocks:      5,
	}
}

func newGuard(t *testing.T) (*mevguard.Guard, *fakeClock, *fakeBalance) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	balance := &fakeBalance{v: decimal.NewFromInt(10)}
	return mevguard.New(testConfig(), balance, clock.Now), clock, balance
}

func TestRateLimit(t *testing.T) {
	g, clock, _ := newGuard(t)

	if err := g.Check("alice"); err != nil {
		t.Fatalf("first action should pass: %v", err)
	}
	g.RecordSuccess("alice")

	clock.Advance(time.Second)
	if err := g.Check("alice"); !errors.Is(err, mevguard.ErrRateLimited) {
		t.Fatalf("action within MinDelay: expected ErrRateLimited, got %v", err)
	}

	// Another actor is not affected.
	if err := g.Check("bob"); err != nil {
		t.Fatalf("unrelated actor should pass: %v", err)
	}

	clock.Advance(9 * time.Second) // exactly MinDelay since alice's action
	if err := g.Check("alice"); err != nil {
		t.Fatalf("action at MinDelay boundary should pass: %v", err)
	}
}

func TestBlockCap(t *testing.T) {
	g, clock, _ := newGuard(t)

	for i := 0; i < 3; i++ {
		actor := fmt.Sprintf("actor-%d", i)
		if err := g.Check(actor); err != nil {
			t.Fatalf("action %d should pass: %v", i, err)
		}
		g.RecordSuccess(actor)
	}

	if err := g.Check("actor-3"); !errors.Is(err, mevguard.ErrBlockCapExceeded) {
		t.Fatalf("fourth action in block: expected ErrBlockCapExceeded, got %v", err)
	}

	// Next block resets the counter.
	clock.Advance(time.Second)
	if err := g.Check("actor-3"); err != nil {
		t.Fatalf("action in next block should pass: %v", err)
	}
}

func TestFlashloanProtection(t *testing.T) {
	g, clock, balance := newGuard(t)

	if err := g.Check("alice"); err != nil {
		t.Fatalf("normal balance should pass: %v", err)
	}
	g.RecordSuccess("alice")

	balance.v = decimal.NewFromInt(2_000_000)
	clock.Advance(time.Minute)
	if err := g.Check("alice"); !errors.Is(err, mevguard.ErrFlashloanProtection) {
		t.Fatalf("inflated balance: expected ErrFlashloanProtection, got %v", err)
	}

	// The cooldown persists even after the balance returns to normal.
	balance.v = decimal.NewFromInt(10)
	clock.Advance(3 * time.Second)
	if err := g.Check("bob"); !errors.Is(err, mevguard.ErrFlashloanProtection) {
		t.Fatalf("within cooldown: expected ErrFlashloanProtection, got %v", err)
	}

	clock.Advance(10 * time.Second) // past ProtectionBlocks
	if err := g.Check("bob"); err != nil {
		t.Fatalf("after cooldown should pass: %v", err)
	}
}

func TestReputation(t *testing.T) {
	g, clock, _ := newGuard(t)

	g.Check("alice")
	g.RecordSuccess("alice")
	if got := g.Reputation("alice"); got != 0 {
		t.Fatalf("first action grants nothing, got %d", got)
	}

	// Well-spaced activity (> 2x MinDelay) earns reputation.
	clock.Advance(21 * time.Second)
	g.Check("alice")
	g.RecordSuccess("alice")
	if got := g.Reputation("alice"); got != 1 {
		t.Fatalf("well-spaced action: expected reputation 1, got %d", got)
	}

	// A rapid repeat fails and costs a point.
	clock.Advance(time.Second)
	if err := g.Check("alice"); !errors.Is(err, mevguard.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if got := g.Reputation("alice"); got != 0 {
		t.Fatalf("rapid repeat: expected reputation 0, got %d", got)
	}

	// Reputation is floored at zero.
	if err := g.Check("alice"); !errors.Is(err, mevguard.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if got := g.Reputation("alice"); got != 0 {
		t.Fatalf("reputation must not go negative, got %d", got)
	}
}

func TestHeight(t *testing.T) {
	g, clock, _ := newGuard(t)

	h := g.Height()
	clock.Advance(time.Second)
	if got := g.Height(); got != h+1 {
		t.Fatalf("expected height %d, got %d", h+1, got)
	}
	clock.Advance(500 * time.Millisecond)
	if got := g.Height(); got != h+1 {
		t.Fatalf("mid-block: expected height %d, got %d", h+1, got)
	}
}
