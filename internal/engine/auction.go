package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stablemint/recovery-engine/internal/dutch"
	"github.com/stablemint/recovery-engine/internal/feed"
	"github.com/stablemint/recovery-engine/internal/metrics"
	"github.com/stablemint/recovery-engine/internal/mevguard"
	"github.com/stablemint/recovery-engine/internal/model"
	"github.com/stablemint/recovery-engine/internal/store"
	"github.com/stablemint/recovery-engine/internal/treasury"
)

// AuctionEngine runs falling-price collateral auctions: creation by
// authorized keepers, open and commit-reveal bidding, and permissionless
// cleanup of expired auctions.
type AuctionEngine struct {
	st     store.Store
	prices feed.PriceFeed
	ledger feed.CollateralLedger
	debt   feed.DebtAccount
	pool   *treasury.Treasury
	guard  *mevguard.Guard
	hub    *WSHub
	auth   Auth

	// quoteToken is the ledger token pulled on the token payment path.
	quoteToken string

	cfgMu sync.RWMutex
	cfg   model.AuctionConfig

	entry reentryGuard
	now   func() time.Time
}

// NewAuctionEngine creates an auction engine. hub may be nil; nowFn may
// be nil, defaulting to time.Now.
func NewAuctionEngine(
	st store.Store,
	prices feed.PriceFeed,
	ledger feed.CollateralLedger,
	debt feed.DebtAccount,
	pool *treasury.Treasury,
	guard *mevguard.Guard,
	hub *WSHub,
	auth Auth,
	quoteToken string,
	cfg model.AuctionConfig,
	nowFn func() time.Time,
) (*AuctionEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &AuctionEngine{
		st:         st,
		prices:     prices,
		ledger:     ledger,
		debt:       debt,
		pool:       pool,
		guard:      guard,
		hub:        hub,
		auth:       auth,
		quoteToken: quoteToken,
		cfg:        cfg,
		now:        nowFn,
	}, nil
}

// Config returns the current auction configuration.
func (e *AuctionEngine) Config() model.AuctionConfig {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// UpdateConfig replaces the auction configuration. Owner-only at the
// HTTP layer; running auctions keep their creation-time parameters.
func (e *AuctionEngine) UpdateConfig(cfg model.AuctionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfgMu.Lock()
	e.cfg = cfg
	e.cfgMu.Unlock()

	e.hub.Broadcast(WSMessage{Type: EventConfigUpdated, Engine: "auction"})
	slog.Info("auction config updated",
		"duration", cfg.Duration,
		"min_price_factor_bps", cfg.MinPriceFactorBps,
		"bonus_bps", cfg.LiquidationBonusBps,
	)
	return nil
}

// checkGuard runs the MEV defenses for an actor, recording trips.
func (e *AuctionEngine) checkGuard(actor string) error {
	if err := e.guard.Check(actor); err != nil {
		reason := mevReason(err)
		metrics.MevRejections.WithLabelValues("auction", reason).Inc()
		e.hub.Broadcast(WSMessage{Type: EventMevDefense, Engine: "auction", Actor: actor, Reason: reason})
		slog.Warn("auction action rejected by mev guard", "actor", actor, "reason", reason)
		return err
	}
	return nil
}

// StartAuction snapshots the user's full balance of token and opens a
// decaying-price auction against it.
func (e *AuctionEngine) StartAuction(ctx context.Context, caller, user, token string, debtAmount decimal.Decimal) (*model.DutchAuction, error) {
	if caller == "" || user == "" || token == "" {
		return nil, fmt.Errorf("%w: caller, user and token are required", ErrInvalidParameter)
	}
	if debtAmount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: debt amount must be positive", ErrInvalidParameter)
	}

	if err := e.entry.enter(); err != nil {
		return nil, err
	}
	defer e.entry.exit()

	if err := e.checkGuard(caller); err != nil {
		return nil, err
	}

	if !e.prices.Supported(ctx, token) {
		return nil, feed.ErrUnsupportedToken
	}
	price, err := e.prices.Price(ctx, token)
	if err != nil {
		return nil, err
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: zero oracle price for %s", ErrInvalidParameter, token)
	}

	balance, err := e.ledger.Balance(ctx, user, token)
	if err != nil {
		return nil, err
	}
	if balance.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: user holds no %s collateral", ErrInvalidParameter, token)
	}

	cfg := e.Config()
	a := &model.DutchAuction{
		User:             user,
		Token:            token,
		DebtAmount:       debtAmount,
		CollateralAmount: balance,
		StartPrice:       price,
		EndPrice:         dutch.FloorPrice(price, cfg.MinPriceFactorBps),
		StartTime:        e.now().UTC(),
		Duration:         cfg.Duration,
		Active:           true,
	}
	if err := e.st.CreateAuction(ctx, a); err != nil {
		return nil, err
	}

	e.guard.RecordSuccess(caller)
	metrics.AuctionsStarted.Inc()
	metrics.ActiveAuctions.Inc()

	slog.Info("auction started",
		"id", a.ID,
		"user", user,
		"token", token,
		"debt", debtAmount.String(),
		"collateral", balance.String(),
		"start_price", price.String(),
		"end_price", a.EndPrice.String(),
	)
	e.hub.Broadcast(WSMessage{
		Type:      EventAuctionCreated,
		AuctionID: a.ID,
		User:      user,
		Token:     token,
		Price:     price.String(),
		Amount:    balance.String(),
	})
	return a, nil
}

// GetAuction returns the auction record for an id.
func (e *AuctionEngine) GetAuction(ctx context.Context, id uint64) (*model.DutchAuction, error) {
	return e.st.GetAuction(ctx, id)
}

// CurrentPrice returns the decayed price for an auction, or zero for an
// unknown id or an auction past its duration.
func (e *AuctionEngine) CurrentPrice(ctx context.Context, id uint64) decimal.Decimal {
	a, err := e.st.GetAuction(ctx, id)
	if err != nil {
		return decimal.Zero
	}
	return e.priceOf(a)
}

func (e *AuctionEngine) priceOf(a *model.DutchAuction) decimal.Decimal {
	sched, err := dutch.NewSchedule(a.StartPrice, a.EndPrice, a.StartTime, a.Duration)
	if err != nil {
		return decimal.Zero
	}
	return sched.PriceAt(e.now())
}

// BidResult reports the outcome of a winning bid.
type BidResult struct {
	Record *model.SettlementRecord
	Refund decimal.Decimal
}

// Bid attempts to win an auction at its current price. The bidder's
// maxAcceptablePrice is a slippage cap; payment is the escrowed native
// amount (ignored on the token path, where exactly cost is pulled from
// the bidder's quote-token ledger balance).
func (e *AuctionEngine) Bid(ctx context.Context, bidder string, id uint64, maxAcceptablePrice, payment decimal.Decimal, tokenPayment bool) (*BidResult, error) {
	if bidder == "" {
		return nil, fmt.Errorf("%w: bidder is required", ErrInvalidParameter)
	}
	if maxAcceptablePrice.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: max acceptable price must be positive", ErrInvalidParameter)
	}

	if err := e.entry.enter(); err != nil {
		return nil, err
	}
	defer e.entry.exit()

	if err := e.checkGuard(bidder); err != nil {
		return nil, err
	}

	return e.settle(ctx, bidder, id, maxAcceptablePrice, payment, tokenPayment, "open")
}

// settle executes the shared settlement path for Bid and RevealAndBid.
// Callers hold the reentrancy guard and have passed the MEV guard.
func (e *AuctionEngine) settle(ctx context.Context, bidder string, id uint64, maxPrice, payment decimal.Decimal, tokenPayment bool, mode string) (*BidResult, error) {
	started := e.now()

	a, err := e.st.GetAuction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Active {
		return nil, ErrAuctionNotActive
	}
	now := e.now()
	if a.Expired(now) {
		return nil, ErrAuctionExpired
	}

	price := e.priceOf(a)
	if price.GreaterThan(maxPrice) {
		return nil, fmt.Errorf("%w: current %s > max %s", ErrPriceAboveMax, price.String(), maxPrice.String())
	}
	cost := dutch.Cost(price, a.CollateralAmount)

	// Payment precondition. The token path pulls before the commit point;
	// a lost deactivation race below refunds the pull.
	if tokenPayment {
		if err := e.ledger.TransferOut(ctx, bidder, e.quoteToken, cost, EngineAccount); err != nil {
			return nil, err
		}
	} else if payment.LessThan(cost) {
		return nil, fmt.Errorf("%w: cost %s, payment %s", ErrInsufficientPayment, cost.String(), payment.String())
	}

	// Commit point: atomic deactivation. Exactly one bid per auction ever
	// gets past this line.
	flipped, err := e.st.Deactivate(ctx, id)
	if err != nil {
		return nil, err
	}
	if !flipped {
		if tokenPayment {
			if rerr := e.ledger.TransferOut(ctx, EngineAccount, e.quoteToken, cost, bidder); rerr != nil {
				slog.Error("failed to refund losing pull-transfer", "bidder", bidder, "auction", id, "err", rerr)
			}
		}
		return nil, ErrAuctionNotActive
	}
	metrics.ActiveAuctions.Dec()

	refund := decimal.Zero
	if !tokenPayment {
		e.pool.Credit(cost)
		refund = payment.Sub(cost)
	}

	// Interactions after effects: collateral to bidder, then notify the
	// debt ledger.
	if err := e.ledger.TransferOut(ctx, a.User, a.Token, a.CollateralAmount, bidder); err != nil {
		slog.Error("collateral transfer failed after settlement commit",
			"auction", id, "user", a.User, "bidder", bidder, "err", err)
		return nil, fmt.Errorf("collateral transfer: %w", err)
	}
	if err := e.debt.OnSettled(ctx, a.User, a.DebtAmount); err != nil {
		slog.Error("debt settlement callback failed", "auction", id, "user", a.User, "err", err)
		return nil, fmt.Errorf("debt settlement: %w", err)
	}

	rec := &model.SettlementRecord{
		ID:               uuid.New().String(),
		AuctionID:        a.ID,
		Bidder:           bidder,
		User:             a.User,
		Token:            a.Token,
		CollateralAmount: a.CollateralAmount,
		ClearingPrice:    price,
		Cost:             cost,
		Refund:           refund,
		TokenPayment:     tokenPayment,
		Timestamp:        now.UTC(),
	}
	if err := e.st.InsertSettlement(ctx, rec); err != nil {
		slog.Error("failed to persist settlement record", "auction", id, "err", err)
	}

	e.guard.RecordSuccess(bidder)
	metrics.AuctionsSettled.WithLabelValues(mode).Inc()
	metrics.SettlementLatency.Observe(e.now().Sub(started).Seconds())

	slog.Info("auction settled",
		"id", a.ID,
		"bidder", bidder,
		"mode", mode,
		"price", price.String(),
		"cost", cost.String(),
		"refund", refund.String(),
	)
	e.hub.Broadcast(WSMessage{
		Type:      EventAuctionSettled,
		AuctionID: a.ID,
		User:      a.User,
		Token:     a.Token,
		Actor:     bidder,
		Price:     price.String(),
		Amount:    a.CollateralAmount.String(),
	})
	return &BidResult{Record: rec, Refund: refund}, nil
}

// Commit stores a sealed bid hash for (bidder, auction). A repeat commit
// overwrites the previous one and restarts the reveal window.
func (e *AuctionEngine) Commit(ctx context.Context, bidder string, auctionID uint64, hash string) (*model.Commitment, error) {
	if bidder == "" || hash == "" {
		return nil, fmt.Errorf("%w: bidder and hash are required", ErrInvalidParameter)
	}

	if err := e.entry.enter(); err != nil {
		return nil, err
	}
	defer e.entry.exit()

	if err := e.checkGuard(bidder); err != nil {
		return nil, err
	}

	if _, err := e.st.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}

	c := &model.Commitment{
		Bidder:     bidder,
		AuctionID:  auctionID,
		Hash:       hash,
		CommitTime: e.now().UTC(),
	}
	if err := e.st.PutCommitment(ctx, c); err != nil {
		return nil, err
	}

	e.guard.RecordSuccess(bidder)
	slog.Info("bid committed", "auction", auctionID, "bidder", bidder)
	e.hub.Broadcast(WSMessage{Type: EventBidCommitted, AuctionID: auctionID, Actor: bidder})
	return c, nil
}

// RevealAndBid opens a commitment and, if it verifies and the reveal
// window is open, settles the auction with the revealed maxPrice as the
// slippage cap. The commitment is consumed on success.
func (e *AuctionEngine) RevealAndBid(ctx context.Context, bidder, commitID string, auctionID uint64, maxPrice decimal.Decimal, nonce string, payment decimal.Decimal, tokenPayment bool) (*BidResult, error) {
	if bidder == "" || commitID == "" {
		return nil, fmt.Errorf("%w: bidder and commit id are required", ErrInvalidParameter)
	}
	if maxPrice.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: max price must be positive", ErrInvalidParameter)
	}

	if err := e.entry.enter(); err != nil {
		return nil, err
	}
	defer e.entry.exit()

	if err := e.checkGuard(bidder); err != nil {
		return nil, err
	}

	c, err := e.st.GetCommitment(ctx, bidder, auctionID)
	if err != nil {
		return nil, ErrInvalidReveal
	}

	expectedHash := CommitmentHash(bidder, auctionID, maxPrice, nonce)
	expectedCommitID := CommitID(bidder, auctionID, c.CommitTime)
	if commitID != expectedCommitID || expectedHash != c.Hash {
		return nil, ErrInvalidReveal
	}

	cfg := e.Config()
	now := e.now()
	if now.Before(c.CommitTime.Add(cfg.CommitWindow)) || now.After(c.CommitTime.Add(cfg.RevealDeadline)) {
		return nil, ErrRevealWindow
	}

	res, err := e.settle(ctx, bidder, auctionID, maxPrice, payment, tokenPayment, "reveal")
	if err != nil {
		return nil, err
	}

	if err := e.st.DeleteCommitment(ctx, bidder, auctionID); err != nil {
		slog.Error("failed to delete consumed commitment", "auction", auctionID, "bidder", bidder, "err", err)
	}
	return res, nil
}

// CleanResult reports the outcome of an expiry sweep.
type CleanResult struct {
	Cleaned        int             `json:"cleaned"`
	TotalIncentive decimal.Decimal `json:"total_incentive"`
}

// CancelExpiredAuction deactivates one expired auction and pays the
// caller the fixed cleanup incentive. Permissionless.
func (e *AuctionEngine) CancelExpiredAuction(ctx context.Context, caller string, id uint64) (*CleanResult, error) {
	if caller == "" {
		return nil, fmt.Errorf("%w: caller is required", ErrInvalidParameter)
	}

	if err := e.entry.enter(); err != nil {
		return nil, err
	}
	defer e.entry.exit()

	if err := e.checkGuard(caller); err != nil {
		return nil, err
	}

	a, err := e.st.GetAuction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Active {
		return nil, ErrAuctionNotActive
	}
	if !a.Expired(e.now()) {
		return nil, ErrAuctionNotExpired
	}

	res, err := e.sweep(ctx, caller, []model.DutchAuction{*a})
	if err != nil {
		return nil, err
	}
	e.guard.RecordSuccess(caller)
	return res, nil
}

// CleanExpiredAuctions deactivates every listed auction that is both
// expired and still active, paying the caller the per-auction incentive
// for each. Non-qualifying ids are skipped with zero incentive.
func (e *AuctionEngine) CleanExpiredAuctions(ctx context.Context, caller string, ids []uint64) (*CleanResult, error) {
	if caller == "" {
		return nil, fmt.Errorf("%w: caller is required", ErrInvalidParameter)
	}

	if err := e.entry.enter(); err != nil {
		return nil, err
	}
	defer e.entry.exit()

	if err := e.checkGuard(caller); err != nil {
		return nil, err
	}

	now := e.now()
	var eligible []model.DutchAuction
	for _, id := range ids {
		a, err := e.st.GetAuction(ctx, id)
		if err != nil {
			continue // unknown ids are a no-op
		}
		if !a.Active || !a.Expired(now) {
			continue
		}
		eligible = append(eligible, *a)
	}

	res, err := e.sweep(ctx, caller, eligible)
	if err != nil {
		return nil, err
	}
	e.guard.RecordSuccess(caller)
	return res, nil
}

// sweep deactivates the given auctions and pays out incentives. The
// treasury balance is checked before each flip so a drained pool stops
// the sweep before, not after, a deactivation it cannot pay for.
func (e *AuctionEngine) sweep(ctx context.Context, caller string, auctions []model.DutchAuction) (*CleanResult, error) {
	incentive := e.Config().CleanupIncentive
	res := &CleanResult{TotalIncentive: decimal.Zero}

	for i := range auctions {
		a := &auctions[i]
		if e.pool.NativeBalance().LessThan(incentive) {
			return nil, treasury.ErrInsufficientFunds
		}

		flipped, err := e.st.Deactivate(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if !flipped {
			continue // raced with a bid or another cleaner
		}
		metrics.ActiveAuctions.Dec()
		metrics.AuctionsCleaned.Inc()

		if err := e.pool.Debit(incentive); err != nil {
			return nil, err
		}
		res.Cleaned++
		res.TotalIncentive = res.TotalIncentive.Add(incentive)
		slog.Info("expired auction cleaned", "id", a.ID, "caller", caller)
	}

	if res.Cleaned > 0 {
		e.hub.Broadcast(WSMessage{
			Type:           EventAuctionCleaned,
			Actor:          caller,
			CleanedCount:   res.Cleaned,
			TotalIncentive: res.TotalIncentive.String(),
		})
	}
	return res, nil
}

// --- HTTP surface ---

// StartAuctionRequest is the JSON body for POST /auctions.
type StartAuctionRequest struct {
	Caller     string          `json:"caller"`
	User       string          `json:"user"`
	Token      string          `json:"token"`
	DebtAmount decimal.Decimal `json:"debt_amount"`
}

// BidRequest is the JSON body for POST /auctions/{id}/bids.
type BidRequest struct {
	Bidder             string          `json:"bidder"`
	MaxAcceptablePrice decimal.Decimal `json:"max_acceptable_price"`
	Payment            decimal.Decimal `json:"payment"`
	TokenPayment       bool            `json:"token_payment"`
}

// CommitRequest is the JSON body for POST /auctions/{id}/commitments.
type CommitRequest struct {
	Bidder string `json:"bidder"`
	Hash   string `json:"hash"`
}

// CommitResponse returns the handle needed at reveal time.
type CommitResponse struct {
	CommitID   string    `json:"commit_id"`
	AuctionID  uint64    `json:"auction_id"`
	CommitTime time.Time `json:"commit_time"`
}

// RevealRequest is the JSON body for POST /auctions/{id}/reveals.
type RevealRequest struct {
	Bidder       string          `json:"bidder"`
	CommitID     string          `json:"commit_id"`
	MaxPrice     decimal.Decimal `json:"max_price"`
	Nonce        string          `json:"nonce"`
	Payment      decimal.Decimal `json:"payment"`
	TokenPayment bool            `json:"token_payment"`
}

// BidResponse is the JSON body returned from a winning bid or reveal.
type BidResponse struct {
	Settlement *model.SettlementRecord `json:"settlement"`
	Refund     decimal.Decimal         `json:"refund"`
}

// CleanupRequest is the JSON body for cancel and bulk cleanup.
type CleanupRequest struct {
	Caller string   `json:"caller"`
	IDs    []uint64 `json:"ids,omitempty"`
}

// Routes mounts the auction endpoints on the router.
func (e *AuctionEngine) Routes(r chi.Router) {
	r.Post("/auctions", e.handleStart)
	r.Post("/auctions/cleanup", e.handleCleanup)
	r.Get("/auctions/config", e.handleGetConfig)
	r.Put("/auctions/config", e.handleUpdateConfig)
	r.Get("/auctions/{auctionID}", e.handleGet)
	r.Get("/auctions/{auctionID}/price", e.handlePrice)
	r.Post("/auctions/{auctionID}/bids", e.handleBid)
	r.Post("/auctions/{auctionID}/commitments", e.handleCommit)
	r.Post("/auctions/{auctionID}/reveals", e.handleReveal)
	r.Post("/auctions/{auctionID}/cancel", e.handleCancel)
}

func auctionIDParam(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "auctionID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad auction id %q", ErrInvalidParameter, raw)
	}
	return id, nil
}

func (e *AuctionEngine) handleStart(w http.ResponseWriter, r *http.Request) {
	if !e.auth.Keeper(r) {
		writeEngineError(w, ErrNotAuthorized)
		return
	}

	var req StartAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	a, err := e.StartAuction(r.Context(), req.Caller, req.User, req.Token, req.DebtAmount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (e *AuctionEngine) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := auctionIDParam(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	a, err := e.GetAuction(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (e *AuctionEngine) handlePrice(w http.ResponseWriter, r *http.Request) {
	id, err := auctionIDParam(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	price := e.CurrentPrice(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"price": price})
}

func (e *AuctionEngine) handleBid(w http.ResponseWriter, r *http.Request) {
	id, err := auctionIDParam(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var req BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := e.Bid(r.Context(), req.Bidder, id, req.MaxAcceptablePrice, req.Payment, req.TokenPayment)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BidResponse{Settlement: res.Record, Refund: res.Refund})
}

func (e *AuctionEngine) handleCommit(w http.ResponseWriter, r *http.Request) {
	id, err := auctionIDParam(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var req CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	c, err := e.Commit(r.Context(), req.Bidder, id, req.Hash)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CommitResponse{
		CommitID:   CommitID(c.Bidder, c.AuctionID, c.CommitTime),
		AuctionID:  c.AuctionID,
		CommitTime: c.CommitTime,
	})
}

func (e *AuctionEngine) handleReveal(w http.ResponseWriter, r *http.Request) {
	id, err := auctionIDParam(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var req RevealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := e.RevealAndBid(r.Context(), req.Bidder, req.CommitID, id, req.MaxPrice, req.Nonce, req.Payment, req.TokenPayment)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BidResponse{Settlement: res.Record, Refund: res.Refund})
}

func (e *AuctionEngine) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := auctionIDParam(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var req CleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := e.CancelExpiredAuction(r.Context(), req.Caller, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (e *AuctionEngine) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := e.CleanExpiredAuctions(r.Context(), req.Caller, req.IDs)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (e *AuctionEngine) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, e.Config())
}

func (e *AuctionEngine) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if !e.auth.Owner(r) {
		writeEngineError(w, ErrNotAuthorized)
		return
	}

	var cfg model.AuctionConfig
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
