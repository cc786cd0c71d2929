package publish

import (
	"newsqueue/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus metrics for the Publisher Worker, embedding
// the standard config.ConfigMetrics for configuration fallback monitoring.
type Metrics struct {
	*config.ConfigMetrics

	// ItemsPublishedTotal counts successful dispatches.
	ItemsPublishedTotal prometheus.Counter

	// ItemsFailedTotal counts failed dispatches by classification
	// (transient, permanent).
	ItemsFailedTotal *prometheus.CounterVec

	// BatchSize observes the size of each claimed batch (0 included, so idle
	// iterations are visible too).
	BatchSize prometheus.Histogram

	// BatchDurationSeconds observes the wall-clock time of one iteration.
	BatchDurationSeconds prometheus.Histogram

	// ItemsRetriedTotal counts items moved FAILED -> PENDING by retry().
	ItemsRetriedTotal prometheus.Counter

	// ItemsCleanedTotal counts COMPLETED rows deleted by clean().
	ItemsCleanedTotal prometheus.Counter

	// StuckClaimsSweptTotal counts PROCESSING rows swept back to PENDING.
	StuckClaimsSweptTotal prometheus.Counter
}

// NewMetrics creates a Metrics instance with all metrics registered via
// promauto. Call NewMetrics once per process; tests share a package-level
// instance to avoid duplicate registration panics.
func NewMetrics() *Metrics {
	return &Metrics{
		ConfigMetrics: config.NewConfigMetrics("publish"),

		ItemsPublishedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "publish_items_published_total",
			Help: "Total number of queue items successfully dispatched to the chat target",
		}),

		ItemsFailedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "publish_items_failed_total",
			Help: "Total number of queue items that failed dispatch, by classification",
		}, []string{"classification"}),

		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "publish_batch_size",
			Help:    "Number of items claimed per publisher iteration",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
		}),

		BatchDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "publish_batch_duration_seconds",
			Help:    "Duration of one publisher iteration",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60},
		}),

		ItemsRetriedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "publish_items_retried_total",
			Help: "Total number of items moved from FAILED back to PENDING",
		}),

		ItemsCleanedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "publish_items_cleaned_total",
			Help: "Total number of COMPLETED items deleted by the cleanup sweep",
		}),

		StuckClaimsSweptTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "publish_stuck_claims_swept_total",
			Help: "Total number of PROCESSING items swept back to PENDING after exceeding stuck_threshold",
		}),
	}
}

func (m *Metrics) recordSuccess() {
	m.ItemsPublishedTotal.Inc()
}

func (m *Metrics) recordFailure(classification string) {
	m.ItemsFailedTotal.WithLabelValues(classification).Inc()
}
