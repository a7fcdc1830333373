package listview

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_search_runs_total",
			Help: "Aggregating search runs by outcome (ok, error, canceled).",
		},
		[]string{"outcome"},
	)

	searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_search_duration_seconds",
			Help:    "Duration of aggregating search runs.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	searchPagesScanned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "console_search_pages_scanned",
			Help:    "Source pages read by completed search runs.",
			Buckets: []float64{1, 2, 3, 4, 6, 8},
		},
	)

	serverFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_list_server_fetches_total",
			Help: "Server-paginated list loads by outcome.",
		},
		[]string{"outcome"},
	)
)
