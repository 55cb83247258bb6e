package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Spectrum is an annotated library spectrum, the intermediate form between a
// spectral-library reader and the query converter.
type Spectrum struct {
	Sequence    string
	Charge      int
	PrecursorMZ float64
	Peaks       []Peak

	RetentionTime   *float64
	CollisionEnergy *float64
	IonMobility     *float64
	Modifications   []Modification
	Decoy           bool

	SourceFormat string // msp, sptxt
}

// Peak is one m/z, intensity pair with its fragment annotation.
type Peak struct {
	MZ         float64
	Intensity  float64
	Annotation string // "y3", "b2^2", "?"
}

// Key parses the peak annotation into a fragment key.
func (p Peak) Key() (FragmentKey, error) {
	return ParseAnnotation(p.Annotation)
}

// Modification is a positional mass shift.
type Modification struct {
	Mass     float64
	Position int    // 0-based; -1 for N-term, len(seq) for C-term
	Name     string // "Carbamidomethyl", "Oxidation"
}

// ValidationError reports a record that fails structural checks.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that a spectrum can be turned into a scoring query.
func (s *Spectrum) Validate() error {
	var errs []string

	if s.Sequence == "" {
		errs = append(errs, "sequence is required")
	}
	if s.Charge <= 0 {
		errs = append(errs, "charge must be positive")
	}
	if s.PrecursorMZ < 0 {
		errs = append(errs, "precursor m/z must not be negative")
	}
	if len(s.Peaks) == 0 {
		errs = append(errs, "at least one peak is required")
	}

	for i, peak := range s.Peaks {
		if math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if math.IsNaN(peak.Intensity) || math.IsInf(peak.Intensity, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
		if peak.MZ <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d m/z must be positive", i))
		}
		if peak.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("peak %d intensity must be non-negative", i))
		}
	}

	if !s.ArePeaksSorted() {
		errs = append(errs, "peaks must be sorted by m/z")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Spectrum",
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

// ArePeaksSorted reports whether peaks are in ascending m/z order.
func (s *Spectrum) ArePeaksSorted() bool {
	for i := 1; i < len(s.Peaks); i++ {
		if s.Peaks[i].MZ < s.Peaks[i-1].MZ {
			return false
		}
	}
	return true
}

// SortPeaks sorts peaks by ascending m/z.
func (s *Spectrum) SortPeaks() {
	sort.Slice(s.Peaks, func(i, j int) bool {
		return s.Peaks[i].MZ < s.Peaks[j].MZ
	})
}

// BasePeakIntensity returns the largest peak intensity, or 0.
func (s *Spectrum) BasePeakIntensity() float64 {
	maxIntensity := 0.0
	for _, peak := range s.Peaks {
		if peak.Intensity > maxIntensity {
			maxIntensity = peak.Intensity
		}
	}
	return maxIntensity
}

// Peptide combines the sequence with its positional modifications.
func (s *Spectrum) Peptide() Peptide {
	return NewPeptide(s.Sequence, s.Modifications)
}

// ModString renders modifications as "mass@pos;mass@pos" with 1-based
// positions and -1 for the N-terminus, the form ParseModString reads.
func (s *Spectrum) ModString() string {
	if len(s.Modifications) == 0 {
		return ""
	}

	parts := make([]string, 0, len(s.Modifications))
	for _, mod := range s.Modifications {
		pos := mod.Position + 1
		if mod.Position < 0 {
			pos = -1
		}
		parts = append(parts, fmt.Sprintf("%.6f@%d", mod.Mass, pos))
	}
	return strings.Join(parts, ";")
}

// Name returns "Sequence/Charge".
func (s *Spectrum) Name() string {
	return fmt.Sprintf("%s/%d", s.Sequence, s.Charge)
}
