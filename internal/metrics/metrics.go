package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tracks quote fetches per venue and outcome (success, unavailable, error).
	QuoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_quote_requests_total",
			Help: "Total number of venue quote requests (by venue and outcome).",
		},
		[]string{"venue", "outcome"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "router_quote_duration_seconds",
			Help:    "Duration of venue quote requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"venue"},
	)

	// Counts routing outcomes. platform is the selected venue, or "none"
	// when neither venue had liquidity.
	RoutingDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_routing_decisions_total",
			Help: "Routing decisions by strategy and selected platform.",
		},
		[]string{"strategy", "platform"},
	)

	TradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_trades_total",
			Help: "Trade executions by venue and outcome.",
		},
		[]string{"venue", "outcome"},
	)

	TradeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "router_trade_duration_seconds",
			Help:    "End-to-end trade execution duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15), // 10ms → ~163s
		},
		[]string{"venue"},
	)

	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_fallbacks_total",
			Help: "Fallback executions after a primary venue failure.",
		},
		[]string{"from", "to"},
	)

	// Funds reached escrow but the order was never submitted. Any nonzero
	// value needs manual reconciliation.
	EscrowIncidentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "router_escrow_incidents_total",
			Help: "Escrow transfers that were not followed by an accepted order.",
		},
	)

	NATSPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_publish_errors_total",
			Help: "Number of NATS publish failures",
		},
		[]string{"subject"},
	)
)

// ObserveDuration records the time taken since start against the given histogram.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// silently ignore counters; they're not meant for duration tracking
	}
}

func IncQuoteRequest(venue, outcome string) {
	QuoteRequestsTotal.WithLabelValues(venue, outcome).Inc()
}

func IncTrade(venue, outcome string) {
	TradesTotal.WithLabelValues(venue, outcome).Inc()
}

func StartServer(addr string) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		http.ListenAndServe(addr, nil) //nolint:errcheck
	}()
}
