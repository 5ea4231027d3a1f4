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
	// Scan metrics
	ScanRunsTotal    *prometheus.CounterVec
	ScanDuration     prometheus.Histogram
	ListingsSeen     prometheus.Counter
	ListingsRejected prometheus.Counter
	DealsKept        prometheus.Counter
	DealsPruned      prometheus.Counter

	// Upstream API metrics
	APICallsTotal   prometheus.Counter
	APICallErrors   *prometheus.CounterVec
	BudgetRemaining prometheus.Gauge

	// Valuation metrics
	EstimatesComputed     prometheus.Counter
	EstimatesInsufficient prometheus.Counter
	CompSamplesRecorded   prometheus.Counter

	// Health metrics
	LastSuccessfulScan prometheus.Gauge
	ActiveDeals        prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "card_deal_scanner"
	}

	return &Metrics{
		ScanRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "runs_total",
			Help:      "Total number of scan runs by outcome",
		}, []string{"status"}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Duration of a full scan run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		ListingsSeen: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "listings_seen_total",
			Help:      "Total number of raw listings returned by searches",
		}),
		ListingsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "listings_rejected_total",
			Help:      "Total number of listings rejected by normalization",
		}),
		DealsKept: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "deals_kept_total",
			Help:      "Total number of qualifying deals upserted",
		}),
		DealsPruned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "deals_pruned_total",
			Help:      "Total number of stale deals pruned",
		}),

		APICallsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "calls_total",
			Help:      "Total number of upstream API calls issued",
		}),
		APICallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "call_errors_total",
			Help:      "Total number of upstream API call errors by type",
		}, []string{"error_type"}),
		BudgetRemaining: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "budget_remaining",
			Help:      "API calls remaining in the current run budget",
		}),

		EstimatesComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "estimates_computed_total",
			Help:      "Total number of market value estimates computed",
		}),
		EstimatesInsufficient: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "estimates_insufficient_total",
			Help:      "Total number of estimates discarded for insufficient comps",
		}),
		CompSamplesRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "comp_samples_recorded_total",
			Help:      "Total number of comparable price samples recorded",
		}),

		LastSuccessfulScan: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_scan_timestamp",
			Help:      "Unix timestamp of the last successful scan run",
		}),
		ActiveDeals: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "active_deals",
			Help:      "Number of active deals after the last scan run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
