package convert

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dbseek",
		Subsystem: "convert",
		Name:      "queries_total",
		Help:      "Scoring queries emitted by the converter",
	})

	conversionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dbseek",
		Subsystem: "convert",
		Name:      "failures_total",
		Help:      "Sequences skipped because they could not be converted",
	})

	spectraConverted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dbseek",
		Subsystem: "convert",
		Name:      "spectra_total",
		Help:      "Library spectra handled by FromSpectrum, by outcome",
	}, []string{"outcome"})
)
