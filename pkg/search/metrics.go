package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dbseek",
		Subsystem: "search",
		Name:      "batch_duration_seconds",
		Help:      "Time spent scoring one batch",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	queriesScored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dbseek",
		Subsystem: "search",
		Name:      "queries_scored_total",
		Help:      "Queries returned by the scorer",
	})
)
