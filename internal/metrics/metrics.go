// Package metrics provides Prometheus instrumentation for the market engine.
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
	// TradesTotal counts settled trades, partitioned by type.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "laughstock_trades_total",
		Help: "Total number of trades settled",
	}, []string{"type"})

	// TradesRejected counts trades rejected during validation, by reason.
	TradesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "laughstock_trades_rejected_total",
		Help: "Trades rejected before settlement",
	}, []string{"reason"})

	// SettlementLatency is the settlement pipeline duration by trade type.
	SettlementLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "laughstock_settlement_latency_seconds",
		Help:    "Trade settlement latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	// PriceHistoryAppendFailures counts best-effort history appends that
	// failed and were swallowed.
	PriceHistoryAppendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "laughstock_price_history_append_failures_total",
		Help: "Price history appends that failed after settlement",
	})

	// NetVolumeReadFailures counts net-volume reads that degraded to zero.
	NetVolumeReadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "laughstock_net_volume_read_failures_total",
		Help: "Net volume reads that failed and defaulted to zero",
	})

	// TradeVolume tracks cumulative settled quantity per asset and type.
	TradeVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "laughstock_trade_volume_total",
		Help: "Cumulative settled trade volume in units",
	}, []string{"asset_id", "type"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "laughstock_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "laughstock_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "laughstock_http_request_duration_seconds",
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

		// Use the raw path for the label; route cardinality is low.
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
