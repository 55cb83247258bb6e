package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Labels: source (digest, library), kind (Target, Decoy, Mixed)
	batchesProduced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dbseek",
		Subsystem: "batch",
		Name:      "produced_total",
		Help:      "Batches materialized by a source",
	}, []string{"source", "kind"})

	decoyCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dbseek",
		Subsystem: "batch",
		Name:      "decoy_collisions_total",
		Help:      "Decoys dropped because they equal a target sequence",
	})

	batchesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dbseek",
		Subsystem: "batch",
		Name:      "skipped_total",
		Help:      "Empty batches skipped under the skip policy",
	})
)
