// Package search drives a scoring engine over batches of queries.
//
// The engine itself lives outside this module; it is reached through the
// Scorer interface and must return one Stats per query, in order.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ChrisMcGann/DBSeek/pkg/batch"
	"github.com/ChrisMcGann/DBSeek/pkg/core"
)

// Bounds is a (below, above) pair of tolerances.
type Bounds struct {
	Lower float64 `mapstructure:"lower" yaml:"lower"`
	Upper float64 `mapstructure:"upper" yaml:"upper"`
}

// Tolerance is passed through to the scorer. A zero RT bound means no RT
// restriction.
type Tolerance struct {
	MZPPM        Bounds `mapstructure:"mz_ppm" yaml:"mz_ppm"`
	MobilityPct  Bounds `mapstructure:"mobility_pct" yaml:"mobility_pct"`
	QuadAbsolute Bounds `mapstructure:"quad_absolute" yaml:"quad_absolute"`
	RTSeconds    Bounds `mapstructure:"rt_seconds" yaml:"rt_seconds"`
}

// DefaultTolerance is 15 ppm, 10% mobility, 0.1 Th quad, no RT window.
func DefaultTolerance() Tolerance {
	return Tolerance{
		MZPPM:        Bounds{15, 15},
		MobilityPct:  Bounds{10, 10},
		QuadAbsolute: Bounds{0.1, 0.1},
	}
}

// Validate rejects negative tolerances.
func (t Tolerance) Validate() error {
	for field, b := range map[string]Bounds{
		"tolerance.mz_ppm":        t.MZPPM,
		"tolerance.mobility_pct":  t.MobilityPct,
		"tolerance.quad_absolute": t.QuadAbsolute,
		"tolerance.rt_seconds":    t.RTSeconds,
	} {
		if b.Lower < 0 || b.Upper < 0 {
			return &core.ConfigurationError{Field: field, Message: fmt.Sprintf("bounds must be non-negative, got (%g, %g)", b.Lower, b.Upper)}
		}
	}
	return nil
}

// Stats is the apex summary the scorer reports for one query.
type Stats struct {
	MainScore        float64
	Lazyerscore      float64
	CosineSimilarity float64
	NPeaks           int
	SummedIntensity  float64
	ApexRTSeconds    float64
}

// Scorer scores queries against acquired data.
type Scorer interface {
	Score(ctx context.Context, queries []core.ScoringQuery, tol Tolerance) ([]Stats, error)
}

// Result pairs a scored query with its source.
type Result struct {
	RunID       uuid.UUID
	Sequence    string
	Label       string
	Charge      uint8
	PrecursorMZ float64
	Mobility    float64
	RTSeconds   float64
	Stats       Stats
}

// Runner feeds a batch source to a Scorer.
type Runner struct {
	scorer  Scorer
	tol     Tolerance
	onEmpty core.Policy
	logger  *slog.Logger
	runID   uuid.UUID
}

// NewRunner returns a Runner with a fresh run ID.
func NewRunner(scorer Scorer, tol Tolerance, onEmpty core.Policy, logger *slog.Logger) (*Runner, error) {
	if err := tol.Validate(); err != nil {
		return nil, err
	}
	if err := onEmpty.Validate("policy.on_empty_batch"); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New()
	return &Runner{
		scorer:  scorer,
		tol:     tol,
		onEmpty: onEmpty,
		logger:  logger.With("run_id", id.String()),
		runID:   id,
	}, nil
}

// RunID identifies the run in logs and results.
func (r *Runner) RunID() uuid.UUID {
	return r.runID
}

// Run scores every batch of src and passes each batch's results to emit.
func (r *Runner) Run(ctx context.Context, src batch.Source, emit func([]Result) error) (batch.Progress, error) {
	total := src.Len()
	r.logger.Info("starting search", "steps", total)

	progress, err := batch.Drain(ctx, src, r.onEmpty, r.logger, func(b *batch.Batch) error {
		results, err := r.scoreBatch(ctx, b)
		if err != nil {
			return err
		}
		return emit(results)
	})
	if err != nil {
		return progress, fmt.Errorf("search %s: %w", r.runID, err)
	}
	r.logger.Info("search finished", "batches", progress.Batches, "skipped", progress.Skipped, "queries", progress.Queries)
	return progress, nil
}

func (r *Runner) scoreBatch(ctx context.Context, b *batch.Batch) ([]Result, error) {
	start := time.Now()
	stats, err := r.scorer.Score(ctx, b.Queries, r.tol)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("scoring batch %s: %w", b.Window, err)
	}
	if len(stats) != b.Len() {
		return nil, fmt.Errorf("scoring batch %s: scorer returned %d results for %d queries", b.Window, len(stats), b.Len())
	}
	batchDuration.Observe(elapsed.Seconds())

	results := make([]Result, b.Len())
	mainScores := 0.0
	for i, q := range b.Queries {
		src := b.Sources[i]
		results[i] = Result{
			RunID:       r.runID,
			Sequence:    src.String(),
			Label:       src.Marking().Label(),
			Charge:      b.Charges[i],
			PrecursorMZ: q.MonoisotopicMZ(),
			Mobility:    q.Mobility,
			RTSeconds:   q.RTSeconds,
			Stats:       stats[i],
		}
		mainScores += stats[i].MainScore
	}
	queriesScored.Add(float64(b.Len()))

	r.logger.Debug("scored batch",
		"window", b.Window.String(),
		"queries", b.Len(),
		"elapsed", elapsed,
		"avg_main_score", mainScores/float64(b.Len()))
	return results, nil
}
