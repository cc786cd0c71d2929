// Package metrics provides the Prometheus metrics recorded during a crawl
// pass: per-source crawl duration, crawl errors, and articles fetched. All
// three are vectors keyed by source name and registered with the default
// registry, exposed via each binary's own /metrics endpoint.
//
// Example usage:
//
//	start := time.Now()
//	articles, err := adapter.Fetch(ctx)
//	metrics.FeedCrawlDuration.WithLabelValues(adapter.Name()).Observe(time.Since(start).Seconds())
//	if err != nil {
//	    metrics.FeedCrawlErrors.WithLabelValues(adapter.Name()).Inc()
//	}
package metrics
