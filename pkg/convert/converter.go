// Package convert turns peptide sequences and annotated library spectra
// into scoring queries.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/DBSeek/pkg/core"
	"github.com/ChrisMcGann/DBSeek/pkg/digest"
)

// Chemistry resolves peptide strings to masses. core.Calculator is the
// built-in implementation.
type Chemistry interface {
	NeutralMassAndFormula(sequence string) (float64, core.Formula, error)
	FragmentMZs(sequence string, charge int, model core.IonModel) ([]core.FragmentIon, error)
}

// Config holds the conversion parameters.
type Config struct {
	MinCharge int           `mapstructure:"min_charge" yaml:"min_charge"`
	MaxCharge int           `mapstructure:"max_charge" yaml:"max_charge"`
	Precursor core.MZWindow `mapstructure:"precursor_mz" yaml:"precursor_mz"`
	Fragment  core.MZWindow `mapstructure:"fragment_mz" yaml:"fragment_mz"`
	IonModel  core.IonModel `mapstructure:"ion_model" yaml:"ion_model"`

	// Workers bounds ConvertMany parallelism; 0 means runtime.NumCPU().
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// DefaultConfig returns charges 2-3, precursors 400-1000, fragments
// 200-2000 and b/y ions.
func DefaultConfig() Config {
	return Config{
		MinCharge: 2,
		MaxCharge: 3,
		Precursor: core.MZWindow{Min: 400, Max: 1000},
		Fragment:  core.MZWindow{Min: 200, Max: 2000},
		IonModel:  core.DefaultIonModel(),
	}
}

// Validate checks the conversion parameters.
func (c Config) Validate() error {
	if c.MinCharge < 1 || c.MinCharge > 255 {
		return &core.ConfigurationError{Field: "conversion.min_charge", Message: "must be between 1 and 255"}
	}
	if c.MaxCharge < c.MinCharge || c.MaxCharge > 255 {
		return &core.ConfigurationError{
			Field:   "conversion.max_charge",
			Message: fmt.Sprintf("must be between min_charge (%d) and 255, got %d", c.MinCharge, c.MaxCharge),
		}
	}
	if err := c.Precursor.Validate("conversion.precursor_mz"); err != nil {
		return err
	}
	if err := c.Fragment.Validate("conversion.fragment_mz"); err != nil {
		return err
	}
	if c.Workers < 0 {
		return &core.ConfigurationError{Field: "conversion.workers", Message: "must not be negative"}
	}
	return c.IonModel.Validate()
}

// NumCharges returns the size of the charge range.
func (c Config) NumCharges() int {
	return c.MaxCharge - c.MinCharge + 1
}

// Converter builds scoring queries. It holds no mutable state and is safe
// for concurrent use.
type Converter struct {
	chem   Chemistry
	cfg    Config
	logger *slog.Logger
}

// NewConverter validates cfg. A nil logger means slog.Default().
func NewConverter(chem Chemistry, cfg Config, logger *slog.Logger) (*Converter, error) {
	if chem == nil {
		return nil, &core.ConfigurationError{Field: "conversion", Message: "no chemistry backend"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{chem: chem, cfg: cfg, logger: logger}, nil
}

// Config returns the converter parameters.
func (c *Converter) Config() Config {
	return c.cfg
}

// QueryID derives the id of the query for one charge state of the
// candidate with the given base id. Ids are unique across base ids.
func (c *Converter) QueryID(baseID uint64, charge int) uint64 {
	return baseID*uint64(c.cfg.NumCharges()) + uint64(charge-c.cfg.MinCharge)
}

// seriesIntensity is the expected relative intensity prior of a series.
func seriesIntensity(series byte) float64 {
	switch series {
	case 'y':
		return 1.0
	case 'b':
		return 0.5
	default:
		return 0.01
	}
}

// Convert emits one query per charge whose precursor m/z falls in the
// precursor window, with the charges in ascending order. A sequence whose
// every charge is out of range yields no queries and no error.
func (c *Converter) Convert(sequence string, baseID uint64) ([]core.ScoringQuery, []uint8, error) {
	mass, formula, err := c.chem.NeutralMassAndFormula(sequence)
	if err != nil {
		return nil, nil, err
	}
	precursorIntensity := core.ExpectedPrecursorIntensities(formula)

	var queries []core.ScoringQuery
	var charges []uint8
	for charge := c.cfg.MinCharge; charge <= c.cfg.MaxCharge; charge++ {
		precursorMZ := core.MZ(mass, charge)
		if !c.cfg.Precursor.Contains(precursorMZ) {
			continue
		}

		ions, err := c.chem.FragmentMZs(sequence, charge, c.cfg.IonModel)
		if err != nil {
			return nil, nil, err
		}

		fragmentMZs := make(map[core.FragmentKey]float64, len(ions))
		fragmentIntensity := make(map[core.FragmentKey]float64, len(ions))
		for _, ion := range ions {
			if ion.Key.IsPrecursor() || !c.cfg.Fragment.ContainsOpen(ion.MZ) {
				continue
			}
			fragmentMZs[ion.Key] = ion.MZ
			fragmentIntensity[ion.Key] = seriesIntensity(ion.Key.Series)
		}

		queries = append(queries, core.ScoringQuery{
			ID:                         c.QueryID(baseID, charge),
			Charge:                     uint8(charge),
			PrecursorMZs:               core.IsotopeEnvelope(precursorMZ, charge),
			FragmentMZs:                fragmentMZs,
			ExpectedPrecursorIntensity: precursorIntensity,
			ExpectedFragmentIntensity:  fragmentIntensity,
			Mobility:                   core.PredictMobility(precursorMZ, charge),
		})
		charges = append(charges, uint8(charge))
	}

	queriesEmitted.Add(float64(len(queries)))
	return queries, charges, nil
}

// Converted is the output of ConvertMany: three parallel slices, one
// element per emitted query.
type Converted struct {
	Sources []digest.CandidateSlice
	Queries []core.ScoringQuery
	Charges []uint8
}

// Len returns the number of queries.
func (c *Converted) Len() int {
	return len(c.Queries)
}

type convertResult struct {
	queries []core.ScoringQuery
	charges []uint8
}

// ConvertMany converts candidates in parallel. Candidate i is materialized
// (decoys are reversed here) and converted with base id baseID+i. Failed
// candidates are logged and dropped; the only error is ctx cancellation.
// Queries of one candidate are contiguous and share its source slice.
func (c *Converter) ConvertMany(ctx context.Context, candidates []digest.CandidateSlice, baseID uint64) (*Converted, error) {
	workers := c.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]convertResult, len(candidates))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			id := baseID + uint64(i)
			sequence := cand.String()
			queries, charges, err := c.Convert(sequence, id)
			if err != nil {
				conversionFailures.Inc()
				c.logger.Warn("skipping sequence",
					"sequence", sequence,
					"id", id,
					"marking", cand.Marking().String(),
					"err", err,
				)
				return nil
			}
			results[i] = convertResult{queries: queries, charges: charges}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("converting %d candidates: %w", len(candidates), err)
	}

	total := 0
	for _, r := range results {
		total += len(r.queries)
	}
	out := &Converted{
		Sources: make([]digest.CandidateSlice, 0, total),
		Queries: make([]core.ScoringQuery, 0, total),
		Charges: make([]uint8, 0, total),
	}
	for i, r := range results {
		for range r.queries {
			out.Sources = append(out.Sources, candidates[i])
		}
		out.Queries = append(out.Queries, r.queries...)
		out.Charges = append(out.Charges, r.charges...)
	}
	return out, nil
}
