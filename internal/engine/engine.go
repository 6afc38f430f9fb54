// Package engine implements the two recovery paths of the protocol: the
// LiquidationEngine (instant settlement of unsafe positions) and the
// AuctionEngine (falling-price auctions with commit-reveal bidding).
//
// Both engines share the same discipline: an explicit reentrancy guard at
// the entry of every mutating operation, MEV defenses checked before any
// effect, and effects ordered before external interactions. The store's
// atomic Deactivate is the settlement commit point.
package engine

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/stablemint/recovery-engine/internal/feed"
	"github.com/stablemint/recovery-engine/internal/mevguard"
	"github.com/stablemint/recovery-engine/internal/model"
	"github.com/stablemint/recovery-engine/internal/risk"
	"github.com/stablemint/recovery-engine/internal/store"
	"github.com/stablemint/recovery-engine/internal/treasury"
)

// EngineAccount is the ledger account name under which the engine holds
// pulled payments and seized custody.
const EngineAccount = "recovery-engine"

var (
	// ErrNotAuthorized is returned when the caller lacks the required role.
	ErrNotAuthorized = errors.New("engine: not authorized")

	// ErrReentrant is returned when a mutating operation is entered while
	// another one still holds the guard.
	ErrReentrant = errors.New("engine: reentrant call")

	// ErrInvalidParameter is returned for zero users/amounts and other
	// never-valid inputs.
	ErrInvalidParameter = errors.New("engine: invalid parameter")

	// ErrInsufficientPayment is returned when a bid's payment does not
	// cover the current cost.
	ErrInsufficientPayment = errors.New("engine: payment below cost")

	// ErrAuctionNotActive is returned for bids on settled or cleaned
	// auctions.
	ErrAuctionNotActive = errors.New("engine: auction not active")

	// ErrAuctionExpired is returned for bids past the decay window.
	ErrAuctionExpired = errors.New("engine: auction expired")

	// ErrAuctionNotExpired is returned for cleanup of a still-live auction.
	ErrAuctionNotExpired = errors.New("engine: auction not yet expired")

	// ErrPriceAboveMax is returned when the current price exceeds the
	// bidder's slippage cap.
	ErrPriceAboveMax = errors.New("engine: current price above max acceptable price")

	// ErrInvalidReveal is returned when a reveal does not match the stored
	// commitment.
	ErrInvalidReveal = errors.New("engine: invalid reveal")

	// ErrRevealWindow is returned when a reveal arrives before the commit
	// window opens or after the reveal deadline.
	ErrRevealWindow = errors.New("engine: reveal outside allowed window")

	// ErrPositionSafe is returned when liquidation is attempted on a
	// position above the threshold.
	ErrPositionSafe = errors.New("engine: position is not liquidatable")
)

// Auth holds the bearer keys gating privileged entry points. The keeper
// key authorizes liquidation/auction triggers; the owner key additionally
// authorizes config updates and the direct liquidation override.
type Auth struct {
	KeeperKey string
	OwnerKey  string
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

// Keeper reports whether the request carries the keeper or owner key.
func (a Auth) Keeper(r *http.Request) bool {
	tok := bearerToken(r)
	return tok != "" && (tok == a.KeeperKey || tok == a.OwnerKey)
}

// Owner reports whether the request carries the owner key.
func (a Auth) Owner(r *http.Request) bool {
	tok := bearerToken(r)
	return tok != "" && tok == a.OwnerKey
}

// reentryGuard is a non-blocking mutual-exclusion guard. A mutating
// operation that finds the guard held fails with ErrReentrant instead of
// queueing: a callback from a ledger or debt-account implementation must
// never re-enter the engine mid-settlement.
type reentryGuard struct {
	mu sync.Mutex
}

func (g *reentryGuard) enter() error {
	if !g.mu.TryLock() {
		return ErrReentrant
	}
	return nil
}

func (g *reentryGuard) exit() {
	g.mu.Unlock()
}

// httpStatus maps engine error identity to a stable status code so
// callers can distinguish retry-later (429), never-succeeds (400/404),
// and attack-detected (409/429) failures.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidParameter),
		errors.Is(err, model.ErrInvalidAuctionConfig),
		errors.Is(err, model.ErrInvalidLiquidationConfig),
		errors.Is(err, risk.ErrInvalidPrice),
		errors.Is(err, risk.ErrNoCollateral),
		errors.Is(err, feed.ErrUnsupportedToken):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientPayment),
		errors.Is(err, treasury.ErrInsufficientFunds),
		errors.Is(err, feed.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, mevguard.ErrRateLimited),
		errors.Is(err, mevguard.ErrBlockCapExceeded),
		errors.Is(err, mevguard.ErrFlashloanProtection):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrReentrant),
		errors.Is(err, ErrAuctionNotActive),
		errors.Is(err, ErrAuctionExpired),
		errors.Is(err, ErrAuctionNotExpired),
		errors.Is(err, ErrPriceAboveMax),
		errors.Is(err, ErrInvalidReveal),
		errors.Is(err, ErrRevealWindow),
		errors.Is(err, ErrPositionSafe):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeEngineError maps err to a status and writes it.
func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, err.Error(), httpStatus(err))
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// mevReason labels a guard rejection for metrics and events.
func mevReason(err error) string {
	switch {
	case errors.Is(err, mevguard.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, mevguard.ErrBlockCapExceeded):
		return "block_cap"
	case errors.Is(err, mevguard.ErrFlashloanProtection):
		return "flashloan"
	default:
		return "unknown"
	}
}
