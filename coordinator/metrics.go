package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fedledger"

// Metrics are the domain counters exposed next to the per-method
// request metrics.
type Metrics struct {
	roundsOpened     prometheus.Counter
	roundsClosed     *prometheus.CounterVec
	contributions    *prometheus.CounterVec
	suspicious       prometheus.Counter
	aggregation      prometheus.Histogram
	eventsDropped    prometheus.Counter
	eventQueueLength prometheus.Gauge
}

// NewMetrics registers on reg. A nil reg keeps the metrics off the
// default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		roundsOpened: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "opened_total",
			Help:      "Rounds opened.",
		}),
		roundsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "closed_total",
			Help:      "Rounds that reached a terminal status.",
		}, []string{"status"}),
		contributions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contributions",
			Name:      "total",
			Help:      "Contribution submissions by outcome.",
		}, []string{"outcome"}),
		suspicious: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contributions",
			Name:      "suspicious_total",
			Help:      "Accepted contributions flagged by the detector.",
		}),
		aggregation: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "aggregation_seconds",
			Help:      "Time spent aggregating a round.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		eventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Round events dropped because the queue was full.",
		}),
		eventQueueLength: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "queue_length",
			Help:      "Round events waiting to be published.",
		}),
	}
}
