package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stablemint/recovery-engine/internal/feed"
	"github.com/stablemint/recovery-engine/internal/metrics"
	"github.com/stablemint/recovery-engine/internal/mevguard"
	"github.com/stablemint/recovery-engine/internal/model"
	"github.com/stablemint/recovery-engine/internal/risk"
	"github.com/stablemint/recovery-engine/internal/store"
)

// LiquidationEngine performs instant (non-auctioned) recovery of
// undercollateralized positions: the caller repays debt and receives the
// equivalent collateral plus a bonus.
type LiquidationEngine struct {
	st     store.Store
	prices feed.PriceFeed
	ledger feed.CollateralLedger
	debt   feed.DebtAccount
	guard  *mevguard.Guard
	hub    *WSHub
	auth   Auth

	// tokens is the supported-collateral scan order for FindOptimalToken.
	tokens []string

	cfgMu sync.RWMutex
	cfg   model.LiquidationConfig

	entry reentryGuard
	now   func() time.Time
}

// NewLiquidationEngine creates a liquidation engine. hub may be nil;
// nowFn may be nil, defaulting to time.Now.
func NewLiquidationEngine(
	st store.Store,
	prices feed.PriceFeed,
	ledger feed.CollateralLedger,
	debt feed.DebtAccount,
	guard *mevguard.Guard,
	hub *WSHub,
	auth Auth,
	tokens []string,
	cfg model.LiquidationConfig,
	nowFn func() time.Time,
) (*LiquidationEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &LiquidationEngine{
		st:     st,
		prices: prices,
		ledger: ledger,
		debt:   debt,
		guard:  guard,
		hub:    hub,
		auth:   auth,
		tokens: tokens,
		cfg:    cfg,
		now:    nowFn,
	}, nil
}

// Config returns the current liquidation configuration.
func (e *LiquidationEngine) Config() model.LiquidationConfig {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// UpdateConfig replaces the liquidation configuration. Owner-only at the
// HTTP layer.
func (e *LiquidationEngine) UpdateConfig(cfg model.LiquidationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfgMu.Lock()
	e.cfg = cfg
	e.cfgMu.Unlock()

	e.hub.Broadcast(WSMessage{Type: EventConfigUpdated, Engine: "liquidation"})
	slog.Info("liquidation config updated",
		"min_ratio_bps", cfg.MinRatioBps,
		"threshold_bps", cfg.LiquidationThresholdBps,
		"bonus_bps", cfg.BonusBps,
	)
	return nil
}

// IsLiquidatable reports whether the user's position is below the
// liquidation threshold. Unknown users and zero-debt positions are safe.
func (e *LiquidationEngine) IsLiquidatable(ctx context.Context, user string) (bool, error) {
	if user == "" {
		return false, nil
	}
	debtValue, err := e.debt.Debt(ctx, user)
	if err != nil {
		return false, err
	}
	if debtValue.LessThanOrEqual(decimal.Zero) {
		return false, nil
	}
	collateralValue, err := e.ledger.TotalValueUSD(ctx, user)
	if err != nil {
		return false, err
	}
	return risk.UnsafeAt(collateralValue, debtValue, e.Config().LiquidationThresholdBps), nil
}

// FindOptimalToken returns the supported token in which the user holds
// the highest USD-equivalent collateral. Ties resolve to scan order.
func (e *LiquidationEngine) FindOptimalToken(ctx context.Context, user string) (string, error) {
	best := ""
	bestValue := decimal.Zero

	for _, token := range e.tokens {
		if !e.prices.Supported(ctx, token) {
			continue
		}
		balance, err := e.ledger.Balance(ctx, user, token)
		if err != nil || balance.LessThanOrEqual(decimal.Zero) {
			continue
		}
		price, err := e.prices.Price(ctx, token)
		if err != nil || price.LessThanOrEqual(decimal.Zero) {
			continue
		}
		value := balance.Mul(price)
		if value.GreaterThan(bestValue) {
			best = token
			bestValue = value
		}
	}

	if best == "" {
		return "", risk.ErrNoCollateral
	}
	return best, nil
}

// CalculateLiquidationAmounts returns the collateral and bonus owed for
// recovering debtAmount against the token at its current oracle price.
func (e *LiquidationEngine) CalculateLiquidationAmounts(ctx context.Context, token string, debtAmount decimal.Decimal) (risk.Amounts, error) {
	price, err := e.prices.Price(ctx, token)
	if err != nil {
		return risk.Amounts{}, err
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return risk.Amounts{}, risk.ErrInvalidPrice
	}
	return risk.LiquidationAmounts(price, debtAmount, e.Config().BonusBps)
}

// Liquidate executes an instant liquidation on behalf of liquidator.
// MevGuard-checked; the optional token is auto-selected when empty.
func (e *LiquidationEngine) Liquidate(ctx context.Context, liquidator, user, token string, debtAmount decimal.Decimal) (*model.LiquidationRecord, error) {
	return e.liquidate(ctx, liquidator, user, token, debtAmount, false)
}

// LiquidateDirect is the owner-only administrative override: the same
// computation as Liquidate, bypassing the MEV guard entirely.
func (e *LiquidationEngine) LiquidateDirect(ctx context.Context, liquidator, user, token string, debtAmount decimal.Decimal) (*model.LiquidationRecord, error) {
	return e.liquidate(ctx, liquidator, user, token, debtAmount, true)
}

func (e *LiquidationEngine) liquidate(ctx context.Context, liquidator, user, token string, debtAmount decimal.Decimal, direct bool) (*model.LiquidationRecord, error) {
	if liquidator == "" || user == "" {
		return nil, fmt.Errorf("%w: liquidator and user are required", ErrInvalidParameter)
	}
	if debtAmount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: debt amount must be positive", ErrInvalidParameter)
	}

	if err := e.entry.enter(); err != nil {
		return nil, err
	}
	defer e.entry.exit()

	if !direct {
		if err := e.guard.Check(liquidator); err != nil {
			reason := mevReason(err)
			metrics.MevRejections.WithLabelValues("liquidation", reason).Inc()
			e.hub.Broadcast(WSMessage{Type: EventMevDefense, Engine: "liquidation", Actor: liquidator, Reason: reason})
			slog.Warn("liquidation rejected by mev guard", "actor", liquidator, "reason", reason)
			return nil, err
		}
	}

	if token == "" {
		selected, err := e.FindOptimalToken(ctx, user)
		if err != nil {
			return nil, err
		}
		token = selected
	}

	balance, err := e.ledger.Balance(ctx, user, token)
	if err != nil {
		return nil, err
	}
	if balance.LessThanOrEqual(decimal.Zero) {
		return nil, risk.ErrNoCollateral
	}

	unsafe, err := e.IsLiquidatable(ctx, user)
	if err != nil {
		return nil, err
	}
	if !unsafe {
		return nil, ErrPositionSafe
	}

	amounts, err := e.CalculateLiquidationAmounts(ctx, token, debtAmount)
	if err != nil {
		return nil, err
	}

	// Interactions: seize collateral, then notify the debt ledger. The
	// ledger authorizes the transfer, enforcing the custody invariant.
	if err := e.ledger.TransferOut(ctx, user, token, amounts.Collateral, liquidator); err != nil {
		return nil, err
	}
	if err := e.debt.OnSettled(ctx, user, debtAmount); err != nil {
		slog.Error("debt settlement callback failed", "user", user, "err", err)
		return nil, fmt.Errorf("debt settlement: %w", err)
	}

	rec := &model.LiquidationRecord{
		ID:               uuid.New().String(),
		Liquidator:       liquidator,
		User:             user,
		Token:            token,
		DebtAmount:       debtAmount,
		CollateralSeized: amounts.Collateral,
		Bonus:            amounts.Bonus,
		Direct:           direct,
		Timestamp:        e.now().UTC(),
	}
	if err := e.st.InsertLiquidation(ctx, rec); err != nil {
		slog.Error("failed to persist liquidation record", "user", user, "err", err)
	}

	if !direct {
		e.guard.RecordSuccess(liquidator)
	}

	path := "guarded"
	if direct {
		path = "direct"
	}
	metrics.Liquidations.WithLabelValues(path).Inc()

	slog.Info("liquidation executed",
		"liquidator", liquidator,
		"user", user,
		"token", token,
		"debt", debtAmount.String(),
		"seized", amounts.Collateral.String(),
		"bonus", amounts.Bonus.String(),
		"direct", direct,
	)
	e.hub.Broadcast(WSMessage{
		Type:   EventLiquidationExecuted,
		User:   user,
		Token:  token,
		Actor:  liquidator,
		Amount: amounts.Collateral.String(),
		Bonus:  amounts.Bonus.String(),
	})
	return rec, nil
}

// --- HTTP surface ---

// LiquidateRequest is the JSON body for POST /liquidations. Token is
// optional; when empty the engine picks the highest-value collateral.
type LiquidateRequest struct {
	Liquidator string          `json:"liquidator"`
	User       string          `json:"user"`
	Token      string          `json:"token,omitempty"`
	DebtAmount decimal.Decimal `json:"debt_amount"`
}

// Routes mounts the liquidation endpoints on the router.
func (e *LiquidationEngine) Routes(r chi.Router) {
	r.Post("/liquidations", e.handleLiquidate)
	r.Post("/liquidations/direct", e.handleLiquidateDirect)
	r.Get("/liquidations/check/{userID}", e.handleCheck)
	r.Get("/liquidations/quote", e.handleQuote)
	r.Get("/liquidations/config", e.handleGetConfig)
	r.Put("/liquidations/config", e.handleUpdateConfig)
	r.Get("/liquidations/history/{userID}", e.handleHistory)
}

func (e *LiquidationEngine) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	if !e.auth.Keeper(r) {
		writeEngineError(w, ErrNotAuthorized)
		return
	}

	var req LiquidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := e.Liquidate(r.Context(), req.Liquidator, req.User, req.Token, req.DebtAmount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (e *LiquidationEngine) handleLiquidateDirect(w http.ResponseWriter, r *http.Request) {
	if !e.auth.Owner(r) {
		writeEngineError(w, ErrNotAuthorized)
		return
	}

	var req LiquidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := e.LiquidateDirect(r.Context(), req.Liquidator, req.User, req.Token, req.DebtAmount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (e *LiquidationEngine) handleCheck(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "userID")
	liquidatable, err := e.IsLiquidatable(r.Context(), user)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"liquidatable": liquidatable})
}

func (e *LiquidationEngine) handleQuote(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	debtRaw := r.URL.Query().Get("debt_amount")
	if token == "" || debtRaw == "" {
		writeError(w, "token and debt_amount are required", http.StatusBadRequest)
		return
	}
	debtAmount, err := decimal.NewFromString(debtRaw)
	if err != nil || debtAmount.LessThanOrEqual(decimal.Zero) {
		writeError(w, "debt_amount must be a positive decimal", http.StatusBadRequest)
		return
	}

	amounts, err := e.CalculateLiquidationAmounts(r.Context(), token, debtAmount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amounts)
}

func (e *LiquidationEngine) handleHistory(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "userID")
	recs, err := e.st.ListLiquidationsByUser(r.Context(), user)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if recs == nil {
		recs = []model.LiquidationRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (e *LiquidationEngine) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, e.Config())
}

func (e *LiquidationEngine) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if !e.auth.Owner(r) {
		writeEngineError(w, ErrNotAuthorized)
		return
	}

	var cfg model.LiquidationConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := e.UpdateConfig(cfg); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
