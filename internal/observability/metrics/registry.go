// Package metrics provides centralized Prometheus metrics for the crawl path.
// Per-component operational metrics (queue depth, publish outcomes, config
// fallbacks) live next to the component that owns them instead
// (internal/usecase/publish, internal/infra/worker, internal/pkg/config);
// this package is for the cross-source crawl metrics with no single owner.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ArticlesFetchedTotal counts candidate articles returned by each source.
	ArticlesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "articles_fetched_total",
			Help: "Total number of candidate articles fetched from a source",
		},
		[]string{"source"},
	)

	// FeedCrawlDuration measures time to crawl a single source.
	FeedCrawlDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_crawl_duration_seconds",
			Help:    "Time taken to crawl a single source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"source"},
	)

	// FeedCrawlErrors counts crawl failures by source.
	FeedCrawlErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_crawl_errors_total",
			Help: "Total number of source crawl failures",
		},
		[]string{"source"},
	)
)
