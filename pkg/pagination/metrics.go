package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PageFetchesTotal counts completed page fetches by operation and result
	// (items, empty, error, stale).
	PageFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_page_fetches_total",
			Help: "Total number of completed page fetches",
		},
		[]string{"op", "result"},
	)

	// PageFetchDuration observes page fetch latency by operation.
	PageFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_page_fetch_duration_seconds",
			Help:    "Page fetch duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"op"},
	)

	// LoadsSkippedTotal counts LoadNextPage calls that did not fetch.
	LoadsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_loads_skipped_total",
			Help: "Total number of load requests skipped by the pagination guard",
		},
		[]string{"reason"}, // "no_session", "loading", "exhausted"
	)

	// StaleResponsesTotal counts responses discarded because their session was replaced.
	StaleResponsesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_stale_responses_total",
			Help: "Total number of page responses discarded as stale",
		},
	)

	// SessionStartsTotal counts accepted searches.
	SessionStartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_session_starts_total",
			Help: "Total number of search sessions started",
		},
	)
)
