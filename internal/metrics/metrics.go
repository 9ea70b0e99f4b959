// Package metrics holds the Prometheus collectors shared by the HTTP layer and
// the upstream client.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebox_http_requests_total",
			Help: "Inbound API requests by route template and status code",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moviebox_http_request_duration_seconds",
			Help:    "Inbound API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebox_upstream_requests_total",
			Help: "Calls made to the metadata provider by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moviebox_upstream_request_duration_seconds",
			Help:    "Latency of calls to the metadata provider",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	WatchlistUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "moviebox_watchlist_users",
		Help: "Number of users holding an in-memory watchlist",
	})
)

// RecordUpstream records one upstream call. endpoint must be a low-cardinality
// label such as "search/movie" or "{kind}/{id}/videos".
func RecordUpstream(endpoint string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	UpstreamRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	UpstreamRequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}
