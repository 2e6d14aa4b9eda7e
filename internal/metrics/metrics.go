// Package metrics provides Prometheus instrumentation for the trading engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts trades executed, partitioned by action.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradequest_trades_total",
		Help: "Total number of trades executed",
	}, []string{"action"})

	// TradeLatency tracks trade execution latency.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradequest_trade_latency_seconds",
		Help:    "Trade execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	// TradeRejections counts rejected trades by error kind.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradequest_trade_rejections_total",
		Help: "Trades rejected, by error kind",
	}, []string{"kind"})

	// TradeRecordFailures counts committed trades whose history append failed.
	TradeRecordFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradequest_trade_record_failures_total",
		Help: "Trade history appends that failed after the account was committed",
	})

	// TradeVolume tracks cumulative traded quantity per symbol.
	TradeVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradequest_trade_volume_total",
		Help: "Cumulative traded quantity",
	}, []string{"symbol", "action"})

	// BatchesPublished counts simulated batches published to the feed.
	BatchesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradequest_batches_published_total",
		Help: "Simulated batches published",
	})

	// BatchAssets reports the outcome of the last batch per asset state.
	BatchAssets = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradequest_batch_assets",
		Help: "Assets in the current batch, by state (simulated|null)",
	}, []string{"state"})

	// StaleLookups counts feed lookups served from a stale batch.
	StaleLookups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradequest_stale_price_lookups_total",
		Help: "Price lookups served past the batch horizon",
	})

	// HistoryReady is 1 when enough symbols hold a full window to simulate.
	HistoryReady = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradequest_history_ready",
		Help: "1 when history readiness is reached",
	})

	// HistoryFullWindows tracks symbols holding a full window.
	HistoryFullWindows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradequest_history_full_windows",
		Help: "Tracked symbols with a full history window",
	})

	// QuoteFetchFailures counts failed quote fetches per symbol.
	QuoteFetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradequest_quote_fetch_failures_total",
		Help: "Failed quote fetches",
	}, []string{"symbol"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradequest_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradequest_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradequest_http_request_duration_seconds",
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

		// Route pattern, not raw path, to keep user ids out of labels.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
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
