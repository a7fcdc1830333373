package lookup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "console_product_lookups_total",
		Help: "By-id product lookups by outcome (cached, found, not_found, error, canceled).",
	},
	[]string{"outcome"},
)
