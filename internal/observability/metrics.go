// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Upstream metrics
	UpstreamRequests     *prometheus.CounterVec
	UpstreamLatency      *prometheus.HistogramVec
	CredentialRefreshes  *prometheus.CounterVec
	ActiveStreams        prometheus.Gauge
	FramesReceived       *prometheus.CounterVec
	SupervisorRebuilds   *prometheus.CounterVec
	SupervisorState      *prometheus.GaugeVec
	RelayFramesForwarded *prometheus.CounterVec
	LastFrameReceived    prometheus.Gauge

	// Pipeline metrics
	EventsReceived  prometheus.Counter
	EventsDropped   *prometheus.CounterVec
	SignalsScored   *prometheus.CounterVec
	ProcessDuration prometheus.Histogram
	HistoryPages    prometheus.Histogram
	Notifications   *prometheus.CounterVec
	TradesPlaced    *prometheus.CounterVec
	FollowedWallets *prometheus.GaugeVec
	SOLPriceUSD     prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "wallet_signal"
	}

	return &Metrics{
		UpstreamRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total number of upstream REST requests by endpoint and status",
		}, []string{"endpoint", "status"}),
		UpstreamLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_latency_seconds",
			Help:      "Upstream REST request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		CredentialRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "credential_refreshes_total",
			Help:      "Total number of credential refreshes by reason and result",
		}, []string{"reason", "result"}),
		ActiveStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "active_streams",
			Help:      "Number of subscribed upstream activity streams",
		}),
		FramesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "frames_received_total",
			Help:      "Total number of inbound stream frames by kind",
		}, []string{"kind"}),
		SupervisorRebuilds: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "rebuilds_total",
			Help:      "Total number of connection set rebuilds by cause",
		}, []string{"cause"}),
		SupervisorState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "state",
			Help:      "Current supervisor state (1 for the active state)",
		}, []string{"state"}),
		RelayFramesForwarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "frames_forwarded_total",
			Help:      "Total number of frames forwarded through the relay by direction",
		}, []string{"direction"}),
		LastFrameReceived: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_frame_received_timestamp",
			Help:      "Unix timestamp of the last inbound activity frame",
		}),

		EventsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_received_total",
			Help:      "Total number of activity events received",
		}),
		EventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_dropped_total",
			Help:      "Total number of activity events dropped before scoring by reason",
		}, []string{"reason"}),
		SignalsScored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "signals_scored_total",
			Help:      "Total number of scored events by strategy and verdict",
		}, []string{"strategy", "verdict"}),
		ProcessDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "process_duration_seconds",
			Help:      "Time from event receipt to scoring verdict in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		HistoryPages: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "history_pages",
			Help:      "Number of trade history pages fetched per aggregation",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		}),
		Notifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "messages_total",
			Help:      "Total number of notification deliveries by result",
		}, []string{"result"}),
		TradesPlaced: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "orders_total",
			Help:      "Total number of trade orders by mode and result",
		}, []string{"mode", "result"}),
		FollowedWallets: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "follow",
			Name:      "wallets",
			Help:      "Number of followed wallets per tracked account",
		}, []string{"account"}),
		SOLPriceUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "sol_price_usd",
			Help:      "Last known SOL/USD price",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordUpstreamRequest records one upstream REST call.
func RecordUpstreamRequest(endpoint, status string, seconds float64) {
	DefaultMetrics.UpstreamRequests.WithLabelValues(endpoint, status).Inc()
	DefaultMetrics.UpstreamLatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordCredentialRefresh records a credential refresh attempt.
func RecordCredentialRefresh(reason string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	DefaultMetrics.CredentialRefreshes.WithLabelValues(reason, result).Inc()
}

// RecordFrame records an inbound stream frame.
func RecordFrame(kind string, unixSeconds int64) {
	DefaultMetrics.FramesReceived.WithLabelValues(kind).Inc()
	if kind == "data" {
		DefaultMetrics.LastFrameReceived.Set(float64(unixSeconds))
	}
}

// SetActiveStreams updates the subscribed stream gauge.
func SetActiveStreams(n int) {
	DefaultMetrics.ActiveStreams.Set(float64(n))
}

// RecordRebuild records a supervisor rebuild cycle.
func RecordRebuild(cause string) {
	DefaultMetrics.SupervisorRebuilds.WithLabelValues(cause).Inc()
}

// SetSupervisorState marks state as the active supervisor state.
func SetSupervisorState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		DefaultMetrics.SupervisorState.WithLabelValues(s).Set(v)
	}
}

// RecordRelayFrame records a frame forwarded through the relay.
func RecordRelayFrame(direction string) {
	DefaultMetrics.RelayFramesForwarded.WithLabelValues(direction).Inc()
}

// RecordEventReceived increments the received events counter.
func RecordEventReceived() {
	DefaultMetrics.EventsReceived.Inc()
}

// RecordEventDropped records an event dropped before scoring.
func RecordEventDropped(reason string) {
	DefaultMetrics.EventsDropped.WithLabelValues(reason).Inc()
}

// RecordSignalScored records a scoring verdict and its end-to-end latency.
func RecordSignalScored(strategy string, pass bool, seconds float64) {
	verdict := "fail"
	if pass {
		verdict = "pass"
	}
	DefaultMetrics.SignalsScored.WithLabelValues(strategy, verdict).Inc()
	DefaultMetrics.ProcessDuration.Observe(seconds)
}

// RecordHistoryPages records the number of history pages fetched for one aggregation.
func RecordHistoryPages(pages int) {
	DefaultMetrics.HistoryPages.Observe(float64(pages))
}

// RecordNotification records a notification delivery result.
func RecordNotification(result string) {
	DefaultMetrics.Notifications.WithLabelValues(result).Inc()
}

// RecordTrade records a trade order result.
func RecordTrade(mode string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	DefaultMetrics.TradesPlaced.WithLabelValues(mode, result).Inc()
}

// SetFollowedWallets updates the followed wallet gauge for an account.
func SetFollowedWallets(account string, n int) {
	DefaultMetrics.FollowedWallets.WithLabelValues(account).Set(float64(n))
}

// SetSOLPrice updates the SOL/USD gauge.
func SetSOLPrice(price float64) {
	DefaultMetrics.SOLPriceUSD.Set(price)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
