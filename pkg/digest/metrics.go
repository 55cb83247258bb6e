package digest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	candidatesDigested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dbseek",
		Subsystem: "digest",
		Name:      "candidates_total",
		Help:      "Candidate peptides produced by digestion, before deduplication",
	})

	duplicatesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dbseek",
		Subsystem: "digest",
		Name:      "duplicates_dropped_total",
		Help:      "Candidates removed because an equal sequence was already kept",
	})
)
