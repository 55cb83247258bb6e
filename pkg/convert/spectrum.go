package convert

import (
	"errors"
	"fmt"

	"github.com/ChrisMcGann/DBSeek/pkg/core"
)

var (
	// ErrNoFragments is returned when no annotated peak survives filtering.
	ErrNoFragments = errors.New("no usable fragment peaks")

	// ErrOutsideWindow is returned when the precursor m/z is outside the
	// configured precursor window.
	ErrOutsideWindow = errors.New("precursor outside m/z window")
)

// FromSpectrum builds a scoring query from an annotated library spectrum.
// Fragment keys come from the peak annotations; unannotated peaks are
// dropped and the remaining intensities are scaled to the base peak. The
// precursor m/z, mobility and isotope intensities are predicted when the
// spectrum does not carry them.
func (c *Converter) FromSpectrum(spec *core.Spectrum, id uint64) (core.ScoringQuery, error) {
	q, err := c.fromSpectrum(spec, id)
	if err != nil {
		spectraConverted.WithLabelValues("skipped").Inc()
		return core.ScoringQuery{}, fmt.Errorf("spectrum %s: %w", spec.Name(), err)
	}
	spectraConverted.WithLabelValues("converted").Inc()
	return q, nil
}

func (c *Converter) fromSpectrum(spec *core.Spectrum, id uint64) (core.ScoringQuery, error) {
	if err := spec.Validate(); err != nil {
		return core.ScoringQuery{}, err
	}
	if spec.Charge > 255 {
		return core.ScoringQuery{}, fmt.Errorf("charge %d out of range", spec.Charge)
	}

	mass, formula, err := c.chem.NeutralMassAndFormula(spec.Peptide().ProForma())
	if err != nil {
		return core.ScoringQuery{}, err
	}

	precursorMZ := spec.PrecursorMZ
	if precursorMZ <= 0 {
		precursorMZ = core.MZ(mass, spec.Charge)
	}
	if !c.cfg.Precursor.Contains(precursorMZ) {
		return core.ScoringQuery{}, fmt.Errorf("%w: %.4f", ErrOutsideWindow, precursorMZ)
	}

	fragmentMZs := make(map[core.FragmentKey]float64)
	intensities := make(map[core.FragmentKey]float64)
	for _, peak := range spec.Peaks {
		key, err := peak.Key()
		if err != nil || !c.cfg.Fragment.ContainsOpen(peak.MZ) {
			continue
		}
		if prev, ok := intensities[key]; ok && prev >= peak.Intensity {
			continue
		}
		fragmentMZs[key] = peak.MZ
		intensities[key] = peak.Intensity
	}
	if len(fragmentMZs) == 0 {
		return core.ScoringQuery{}, ErrNoFragments
	}

	base := 0.0
	for _, v := range intensities {
		base = max(base, v)
	}
	if base > 0 {
		for k, v := range intensities {
			intensities[k] = v / base
		}
	}

	q := core.ScoringQuery{
		ID:                         id,
		Charge:                     uint8(spec.Charge),
		PrecursorMZs:               core.IsotopeEnvelope(precursorMZ, spec.Charge),
		FragmentMZs:                fragmentMZs,
		ExpectedPrecursorIntensity: core.ExpectedPrecursorIntensities(formula),
		ExpectedFragmentIntensity:  intensities,
		Mobility:                   core.PredictMobility(precursorMZ, spec.Charge),
	}
	if spec.IonMobility != nil {
		q.Mobility = *spec.IonMobility
	}
	if spec.RetentionTime != nil {
		q.RTSeconds = *spec.RetentionTime
	}
	return q, nil
}
