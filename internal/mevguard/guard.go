// Package mevguard implements the ordering-abuse defenses shared by the
// liquidation and auction engines: per-actor rate limiting, a per-block
// action cap, a flash-loan balance heuristic, and actor reputation.
//
// The guard cannot prevent an external block producer from reordering
// transactions; it only bounds the economic effect of reordering via
// per-actor, per-period, and per-balance heuristics. Every decision is
// keyed off the injected clock and the derived block height, never
// thread-local state.
package mevguard

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrRateLimited is returned when an actor acts again before the
	// minimum delay has elapsed.
	ErrRateLimited = errors.New("mevguard: rate limited")

	// ErrBlockCapExceeded is returned when the per-block action cap is
	// already reached.
	ErrBlockCapExceeded = errors.New("mevguard: per-block action cap exceeded")

	// ErrFlashloanProtection is returned while the flash-loan cooldown is
	// active.
	ErrFlashloanProtection = errors.New("mevguard: flash-loan protection active")
)

// BalanceSource reports the engine's own native-currency balance. A
// sudden large balance is the flash-loan tell: an attacker inflating the
// pool within one atomic transaction to trip value-dependent logic.
type BalanceSource interface {
	NativeBalance() decimal.Decimal
}

// Config holds the guard tuning parameters.
type Config struct {
	// MinDelay is the minimum spacing between two actions by one actor.
	MinDelay time.Duration

	// MaxPerBlock caps state-changing actions per block across all actors.
	MaxPerBlock int

	// BlockInterval is the width of one derived block. Off-chain there is
	// no host block number, so height = unix-nanos / BlockInterval.
	BlockInterval time.Duration

	// LargeBalanceThreshold trips the flash-loan heuristic when the
	// engine's native balance exceeds it.
	LargeBalanceThreshold decimal.Decimal

	// ProtectionBlocks is how many blocks actions stay rejected after a
	// flash-loan trip.
	ProtectionBlocks uint64
}

// DefaultConfig returns conservative guard parameters.
func DefaultConfig() Config {
	return Config{
		MinDelay:              10 * time.Second,
		MaxPerBlock:           8,
		BlockInterval:         time.Second,
		LargeBalanceThreshold: decimal.NewFromInt(1_000_000),
		ProtectionBlocks:      5,
	}
}

// Guard tracks per-actor and per-block state. One instance is embedded in
// each engine; owner-path calls bypass it entirely.
type Guard struct {
	cfg     Config
	balance BalanceSource
	now     func() time.Time

	mu              sync.Mutex
	lastAction      map[string]time.Time
	reputation      map[string]int64
	blockHeight     uint64
	blockActions    int
	flashloanHeight uint64
	flashloanSeen   bool
}

// New creates a guard. balance may be nil, disabling the flash-loan
// heuristic. nowFn may be nil, defaulting to time.Now.
func New(cfg Config, balance BalanceSource, nowFn func() time.Time) *Guard {
	if nowFn == nil {
		nowFn = time.Now
	}
	if cfg.BlockInterval <= 0 {
		cfg.BlockInterval = time.Second
	}
	return &Guard{
		cfg:        cfg,
		balance:    balance,
		now:        nowFn,
		lastAction: make(map[string]time.Time),
		reputation: make(map[string]int64),
	}
}

// Height returns the derived block height at now.
func (g *Guard) Height() uint64 {
	return uint64(g.now().UnixNano()) / uint64(g.cfg.BlockInterval.Nanoseconds())
}

// Check validates an actor's attempt to perform a state-changing action.
// It must be called before any effects; on success the caller performs
// the action and then calls RecordSuccess. A rapid repeat both fails and
// costs the actor reputation.
func (g *Guard) Check(actor string) error {
	now := g.now()
	height := uint64(now.UnixNano()) / uint64(g.cfg.BlockInterval.Nanoseconds())

	g.mu.Lock()
	defer g.mu.Unlock()

	// Flash-loan heuristic: record the trip height, then reject while the
	// protection window is open.
	if g.balance != nil && g.balance.NativeBalance().GreaterThan(g.cfg.LargeBalanceThreshold) {
		g.flashloanHeight = height
		g.flashloanSeen = true
	}
	if g.flashloanSeen && height <= g.flashloanHeight+g.cfg.ProtectionBlocks {
		return ErrFlashloanProtection
	}

	// Per-actor rate limit.
	if last, ok := g.lastAction[actor]; ok {
		if now.Before(last.Add(g.cfg.MinDelay)) {
			if g.reputation[actor] > 0 {
				g.reputation[actor]--
			}
			return ErrRateLimited
		}
	}

	// Per-block cap.
	if height != g.blockHeight {
		g.blockHeight = height
		g.blockActions = 0
	}
	if g.blockActions >= g.cfg.MaxPerBlock {
		return ErrBlockCapExceeded
	}

	return nil
}

// RecordSuccess updates guard state after a successful action: it counts
// the action against the current block and grants reputation for
// well-spaced activity (gap > 2x MinDelay).
func (g *Guard) RecordSuccess(actor string) {
	now := g.now()
	height := uint64(now.UnixNano()) / uint64(g.cfg.BlockInterval.Nanoseconds())

	g.mu.Lock()
	defer g.mu.Unlock()

	if height != g.blockHeight {
		g.blockHeight = height
		g.blockActions = 0
	}
	g.blockActions++

	if last, ok := g.lastAction[actor]; ok {
		if now.Sub(last) > 2*g.cfg.MinDelay {
			g.reputation[actor]++
		}
	}
	g.lastAction[actor] = now
}

// Reputation returns the actor's current reputation score.
func (g *Guard) Reputation(actor string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reputation[actor]
}
