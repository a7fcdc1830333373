package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
)

var (
	auditEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "console",
		Subsystem: "audit",
		Name:      "events_total",
		Help:      "Audit events handed to Kafka, by topic, event type and outcome.",
	}, []string{"topic", "event_type", "outcome"})

	auditPublishSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "console",
		Subsystem: "audit",
		Name:      "publish_duration_seconds",
		Help:      "Time spent writing one audit event to Kafka.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"topic"})
)

func observePublish(topic, eventType string, took time.Duration, err error) {
	auditPublishSeconds.WithLabelValues(topic).Observe(took.Seconds())
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeFailed
	}
	auditEvents.WithLabelValues(topic, eventType, outcome).Inc()
}
