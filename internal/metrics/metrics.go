// Package metrics provides Prometheus instrumentation for the recovery
// engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AuctionsStarted counts Dutch auctions created.
	AuctionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recovery_auctions_started_total",
		Help: "Total number of Dutch auctions started",
	})

	// AuctionsSettled counts auctions won by a bid, partitioned by how
	// the bid arrived.
	AuctionsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recovery_auctions_settled_total",
		Help: "Total number of auctions settled by a winning bid",
	}, []string{"mode"}) // "open" or "reveal"

	// AuctionsCleaned counts expired auctions swept by cleanup callers.
	AuctionsCleaned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recovery_auctions_cleaned_total",
		Help: "Total number of expired auctions cleaned",
	})

	// ActiveAuctions tracks the number of currently active auctions.
	ActiveAuctions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recovery_active_auctions",
		Help: "Number of currently active auctions",
	})

	// Liquidations counts instant liquidations, partitioned by path.
	Liquidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recovery_liquidations_total",
		Help: "Total number of instant liquidations executed",
	}, []string{"path"}) // "guarded" or "direct"

	// MevRejections counts actions rejected by the MEV guard, by reason.
	MevRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recovery_mev_rejections_total",
		Help: "Actions rejected by MEV defenses",
	}, []string{"engine", "reason"}) // reason: rate_limited, block_cap, flashloan

	// SettlementLatency tracks bid settlement latency.
	SettlementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recovery_settlement_latency_seconds",
		Help:    "Bid settlement latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recovery_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recovery_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recovery_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
