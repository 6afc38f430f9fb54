package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/stablemint/recovery-engine/internal/engine"
	"github.com/stablemint/recovery-engine/internal/feed"
	"github.com/stablemint/recovery-engine/internal/metrics"
	"github.com/stablemint/recovery-engine/internal/mevguard"
	"github.com/stablemint/recovery-engine/internal/model"
	"github.com/stablemint/recovery-engine/internal/store"
	"github.com/stablemint/recovery-engine/internal/treasury"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Collaborators ---
	// Without collaborator endpoints configured, the engine runs against
	// in-memory fixtures. Production deployments replace these with the
	// ledger, debt-account, and price-feed clients.
	prices := feed.NewMemoryPriceFeed()
	ledger := feed.NewMemoryLedger(prices)
	debt := feed.NewMemoryDebtAccount()

	tokens := strings.Split(envOr("SUPPORTED_TOKENS", "WETH,WBTC,USDC"), ",")
	quoteToken := envOr("QUOTE_TOKEN", "USDC")

	// Fixture prices so the dev server is exercisable without an oracle.
	devPrices := map[string]string{"WETH": "2000", "WBTC": "60000", "USDC": "1"}
	for _, token := range tokens {
		if p, ok := devPrices[token]; ok {
			prices.SetPrice(token, decimal.RequireFromString(p))
		}
	}
	slog.Warn("using in-memory collaborators with fixture prices", "tokens", tokens)

	// --- Treasury + MEV guard ---
	opening, err := decimal.NewFromString(envOr("TREASURY_OPENING_BALANCE", "10"))
	if err != nil {
		slog.Error("invalid TREASURY_OPENING_BALANCE", "err", err)
		os.Exit(1)
	}
	pool := treasury.New(opening)
	auctionGuard := mevguard.New(mevguard.DefaultConfig(), pool, nil)
	liqGuard := mevguard.New(mevguard.DefaultConfig(), pool, nil)

	auth := engine.Auth{
		KeeperKey: os.Getenv("KEEPER_KEY"),
		OwnerKey:  os.Getenv("OWNER_KEY"),
	}
	if auth.KeeperKey == "" || auth.OwnerKey == "" {
		slog.Warn("KEEPER_KEY/OWNER_KEY not set, privileged endpoints are unreachable")
	}

	// --- WebSocket hub ---
	wsHub := engine.NewWSHub()
	go wsHub.Run()

	// --- Engines ---
	auctionEng, err := engine.NewAuctionEngine(
		st, prices, ledger, debt, pool, auctionGuard, wsHub, auth,
		quoteToken, model.DefaultAuctionConfig(), nil,
	)
	if err != nil {
		slog.Error("invalid auction config", "err", err)
		os.Exit(1)
	}

	liqCfg := model.LiquidationConfig{
		MinRatioBps:             15000,
		LiquidationThresholdBps: 12000,
		BonusBps:                1000,
	}
	liqEng, err := engine.NewLiquidationEngine(
		st, prices, ledger, debt, liqGuard, wsHub, auth,
		tokens, liqCfg, nil,
	)
	if err != nil {
		slog.Error("invalid liquidation config", "err", err)
		os.Exit(1)
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"recovery-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for recovery events.
		r.Get("/ws", wsHub.HandleWS)

		auctionEng.Routes(r)
		liqEng.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("recovery-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down recovery-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("recovery-engine stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
