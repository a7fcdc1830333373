package querycache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_query_cache_requests_total",
			Help: "Query cache reads by root and result (hit, miss).",
		},
		[]string{"root", "result"},
	)

	cacheFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_query_cache_fetch_errors_total",
			Help: "Failed fetches behind cache misses by root.",
		},
		[]string{"root"},
	)

	cacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_query_cache_invalidations_total",
			Help: "Root invalidations.",
		},
		[]string{"root"},
	)
)
