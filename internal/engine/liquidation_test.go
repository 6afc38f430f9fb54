package engine_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stablemint/recovery-engine/internal/engine"
	"github.com/stablemint/recovery-engine/internal/model"
)

// seedUnsafe puts dana underwater: 1 WETH at 2000 against 1800 of debt is
// a 111% ratio, below the 120% threshold.
func seedUnsafe(e *env) {
	e.ledger.Deposit("dana", "WETH", d("1"))
	e.debts.SetDebt("dana", d("1800"))
}

func TestIsLiquidatable(t *testing.T) {
	e := newTestEnv(t)
	seedUnsafe(e)

	// Healthy: 1 WETH against 1000 of debt is 200%.
	e.ledger.Deposit("henry", "WETH", d("1"))
	e.debts.SetDebt("henry", d("1000"))

	check := func(user string) bool {
		w := e.do(t, http.MethodGet, "/liquidations/check/"+user, "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("check %s: expected 200, got %d", user, w.Code)
		}
		var body struct {
			Liquidatable bool `json:"liquidatable"`
		}
		decodeBody(t, w, &body)
		return body.Liquidatable
	}

	if !check("dana") {
		t.Error("underwater position should be liquidatable")
	}
	if check("henry") {
		t.Error("healthy position should not be liquidatable")
	}
	if check("nobody") {
		t.Error("unknown user should not be liquidatable")
	}
}

func TestLiquidate(t *testing.T) {
	e := newTestEnv(t)
	seedUnsafe(e)

	// Auto-selected token, 100 of debt at price 2000 with 10% bonus:
	// seized = 100 * 1.1 / 2000 = 0.055, bonus = 0.0055.
	w := e.do(t, http.MethodPost, "/liquidations", keeperKey, engine.LiquidateRequest{
		Liquidator: "liq-1",
		User:       "dana",
		DebtAmount: d("100"),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("liquidate: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var rec model.LiquidationRecord
	decodeBody(t, w, &rec)

	if rec.Token != "WETH" {
		t.Errorf("auto token selection: expected WETH, got %s", rec.Token)
	}
	if !rec.CollateralSeized.Equal(d("0.055")) {
		t.Errorf("seized: expected 0.055, got %s", rec.CollateralSeized)
	}
	if !rec.Bonus.Equal(d("0.0055")) {
		t.Errorf("bonus: expected 0.0055, got %s", rec.Bonus)
	}
	if rec.Direct {
		t.Error("guarded path must not be marked direct")
	}

	if got, _ := e.ledger.Balance(context.Background(), "liq-1", "WETH"); !got.Equal(d("0.055")) {
		t.Errorf("liquidator collateral: expected 0.055, got %s", got)
	}
	if got, _ := e.ledger.Balance(context.Background(), "dana", "WETH"); !got.Equal(d("0.945")) {
		t.Errorf("remaining collateral: expected 0.945, got %s", got)
	}
	if got, _ := e.debts.Debt(context.Background(), "dana"); !got.Equal(d("1700")) {
		t.Errorf("remaining debt: expected 1700, got %s", got)
	}

	// The record shows up in history.
	w = e.do(t, http.MethodGet, "/liquidations/history/dana", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", w.Code)
	}
	var recs []model.LiquidationRecord
	decodeBody(t, w, &recs)
	if len(recs) != 1 || recs[0].ID != rec.ID {
		t.Errorf("history: expected the one record, got %+v", recs)
	}
}

func TestLiquidate_AuthRequired(t *testing.T) {
	e := newTestEnv(t)
	seedUnsafe(e)

	req := engine.LiquidateRequest{Liquidator: "liq-1", User: "dana", DebtAmount: d("100")}
	if w := e.do(t, http.MethodPost, "/liquidations", "", req); w.Code != http.StatusForbidden {
		t.Errorf("no token: expected 403, got %d", w.Code)
	}
}

func TestLiquidate_PositionSafe(t *testing.T) {
	e := newTestEnv(t)
	e.ledger.Deposit("henry", "WETH", d("1"))
	e.debts.SetDebt("henry", d("1000"))

	w := e.do(t, http.MethodPost, "/liquidations", keeperKey, engine.LiquidateRequest{
		Liquidator: "liq-1",
		User:       "henry",
		DebtAmount: d("100"),
	})
	if w.Code != http.StatusConflict {
		t.Errorf("safe position: expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLiquidate_NoCollateral(t *testing.T) {
	e := newTestEnv(t)
	e.debts.SetDebt("ghost", d("1000"))

	w := e.do(t, http.MethodPost, "/liquidations", keeperKey, engine.LiquidateRequest{
		Liquidator: "liq-1",
		User:       "ghost",
		DebtAmount: d("100"),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("no collateral: expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLiquidate_RateLimited(t *testing.T) {
	e := newTestEnv(t)
	seedUnsafe(e)

	req := engine.LiquidateRequest{Liquidator: "liq-1", User: "dana", DebtAmount: d("100")}

	if w := e.do(t, http.MethodPost, "/liquidations", keeperKey, req); w.Code != http.StatusOK {
		t.Fatalf("first liquidation: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	e.clock.Advance(time.Second)
	if w := e.do(t, http.MethodPost, "/liquidations", keeperKey, req); w.Code != http.StatusTooManyRequests {
		t.Errorf("within min delay: expected 429, got %d: %s", w.Code, w.Body.String())
	}

	e.clock.Advance(10 * time.Second)
	if w := e.do(t, http.MethodPost, "/liquidations", keeperKey, req); w.Code != http.StatusOK {
		t.Errorf("after min delay: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLiquidateDirect(t *testing.T) {
	e := newTestEnv(t)
	seedUnsafe(e)

	req := engine.LiquidateRequest{Liquidator: "liq-1", User: "dana", Token: "WETH", DebtAmount: d("100")}

	// Owner-only.
	if w := e.do(t, http.MethodPost, "/liquidations/direct", keeperKey, req); w.Code != http.StatusForbidden {
		t.Errorf("keeper key on direct: expected 403, got %d", w.Code)
	}

	// The direct path skips the rate limit entirely: two back-to-back calls.
	if w := e.do(t, http.MethodPost, "/liquidations/direct", ownerKey, req); w.Code != http.StatusOK {
		t.Fatalf("direct: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w := e.do(t, http.MethodPost, "/liquidations/direct", ownerKey, req)
	if w.Code != http.StatusOK {
		t.Fatalf("second direct: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var rec model.LiquidationRecord
	decodeBody(t, w, &rec)
	if !rec.Direct {
		t.Error("direct path must be marked direct")
	}
}

func TestFindOptimalToken(t *testing.T) {
	e := newTestEnv(t)

	// 1 WETH = 2000 USD vs 5000 USDC = 5000 USD.
	e.ledger.Deposit("dana", "WETH", d("1"))
	e.ledger.Deposit("dana", "USDC", d("5000"))

	token, err := e.liquidations.FindOptimalToken(context.Background(), "dana")
	if err != nil {
		t.Fatalf("FindOptimalToken failed: %v", err)
	}
	if token != "USDC" {
		t.Errorf("expected USDC (highest value), got %s", token)
	}

	if _, err := e.liquidations.FindOptimalToken(context.Background(), "nobody"); err == nil {
		t.Error("user without collateral: expected error, got nil")
	}
}

func TestLiquidationQuote(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/liquidations/quote?token=WETH&debt_amount=1000", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("quote: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var amounts struct {
		Collateral string `json:"collateral"`
		Bonus      string `json:"bonus"`
	}
	decodeBody(t, w, &amounts)
	if !d(amounts.Collateral).Equal(d("0.55")) {
		t.Errorf("collateral: expected 0.55, got %s", amounts.Collateral)
	}
	if !d(amounts.Bonus).Equal(d("0.055")) {
		t.Errorf("bonus: expected 0.055, got %s", amounts.Bonus)
	}

	if w := e.do(t, http.MethodGet, "/liquidations/quote?token=WETH", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing debt_amount: expected 400, got %d", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/liquidations/quote?token=DOGE&debt_amount=1", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("unsupported token: expected 400, got %d", w.Code)
	}
}

func TestLiquidationConfig_Update(t *testing.T) {
	e := newTestEnv(t)

	cfg := testLiquidationConfig()
	cfg.BonusBps = 500

	if w := e.do(t, http.MethodPut, "/liquidations/config", keeperKey, cfg); w.Code != http.StatusForbidden {
		t.Errorf("keeper key on config: expected 403, got %d", w.Code)
	}

	w := e.do(t, http.MethodPut, "/liquidations/config", ownerKey, cfg)
	if w.Code != http.StatusOK {
		t.Fatalf("owner config update: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := e.liquidations.Config().BonusBps; got != 500 {
		t.Errorf("bonus: expected 500 bps, got %d", got)
	}

	// Threshold at or above the min ratio is rejected.
	bad := testLiquidationConfig()
	bad.LiquidationThresholdBps = bad.MinRatioBps
	if w := e.do(t, http.MethodPut, "/liquidations/config", ownerKey, bad); w.Code != http.StatusBadRequest {
		t.Errorf("invalid config: expected 400, got %d", w.Code)
	}
}
