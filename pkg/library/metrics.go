package library

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dbseek",
		Subsystem: "library",
		Name:      "entries_loaded_total",
		Help:      "Library entries loaded",
	})

	malformedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dbseek",
		Subsystem: "library",
		Name:      "malformed_records_skipped_total",
		Help:      "Malformed library records skipped",
	})

	entriesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dbseek",
		Subsystem: "library",
		Name:      "entries_written_total",
		Help:      "Library entries written",
	})
)
