package core

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// SeriesPrecursor marks precursor pseudo-fragments.
const SeriesPrecursor byte = 0

// FragmentKey identifies a fragment ion: series letter, ordinal and charge.
type FragmentKey struct {
	Series  byte
	Ordinal uint16
	Charge  uint8
}

// IsPrecursor reports whether the key is a precursor pseudo-fragment.
func (k FragmentKey) IsPrecursor() bool {
	return k.Series == SeriesPrecursor
}

// String renders "y3" for singly charged fragments and "b12^3" otherwise.
func (k FragmentKey) String() string {
	if k.IsPrecursor() {
		return fmt.Sprintf("precursor^%d", k.Charge)
	}
	if k.Charge <= 1 {
		return fmt.Sprintf("%c%d", k.Series, k.Ordinal)
	}
	return fmt.Sprintf("%c%d^%d", k.Series, k.Ordinal, k.Charge)
}

// Less orders keys by series, ordinal, then charge.
func (k FragmentKey) Less(o FragmentKey) bool {
	if k.Series != o.Series {
		return k.Series < o.Series
	}
	if k.Ordinal != o.Ordinal {
		return k.Ordinal < o.Ordinal
	}
	return k.Charge < o.Charge
}

// MarshalText implements encoding.TextMarshaler so keys work as JSON map keys.
func (k FragmentKey) MarshalText() ([]byte, error) {
	if k.IsPrecursor() {
		return nil, fmt.Errorf("precursor pseudo-fragments have no text form")
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *FragmentKey) UnmarshalText(text []byte) error {
	parsed, err := ParseFragmentKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// annotationPattern matches (ion type)(number)[^(charge)] at the start of an
// annotation, e.g. "y3", "b2^2", "y10^3/0.5ppm".
var annotationPattern = regexp.MustCompile(`^([abcxyz])(\d+)(?:\^(\d+))?`)

// ParseFragmentKey parses "b12^3" (charge 3) or "b13" (charge 1).
func ParseFragmentKey(s string) (FragmentKey, error) {
	s = strings.TrimSpace(s)
	matches := annotationPattern.FindStringSubmatch(s)
	if matches == nil || len(matches[0]) != len(s) {
		return FragmentKey{}, fmt.Errorf("invalid fragment key %q", s)
	}
	return keyFromMatches(s, matches)
}

// ParseAnnotation parses the leading fragment key of a library peak
// annotation. Neutral losses and isotope suffixes ("y3-18", "b4i") are not
// plain backbone ions and are rejected.
func ParseAnnotation(annotation string) (FragmentKey, error) {
	annotation = strings.Trim(strings.TrimSpace(annotation), "\"")
	if idx := strings.IndexAny(annotation, "/,"); idx > 0 {
		annotation = annotation[:idx]
	}
	return ParseFragmentKey(annotation)
}

func keyFromMatches(s string, matches []string) (FragmentKey, error) {
	ordinal, err := strconv.ParseUint(matches[2], 10, 16)
	if err != nil {
		return FragmentKey{}, fmt.Errorf("invalid ordinal in %q: %w", s, err)
	}
	key := FragmentKey{Series: matches[1][0], Ordinal: uint16(ordinal), Charge: 1}
	if matches[3] != "" {
		charge, err := strconv.ParseUint(matches[3], 10, 8)
		if err != nil {
			return FragmentKey{}, fmt.Errorf("invalid charge in %q: %w", s, err)
		}
		key.Charge = uint8(charge)
	}
	return key, nil
}

// MZWindow is an m/z acceptance range.
type MZWindow struct {
	Min float64 `mapstructure:"min" yaml:"min"`
	Max float64 `mapstructure:"max" yaml:"max"`
}

// Contains reports whether Min <= mz <= Max.
func (w MZWindow) Contains(mz float64) bool {
	return mz >= w.Min && mz <= w.Max
}

// ContainsOpen reports whether Min < mz < Max.
func (w MZWindow) ContainsOpen(mz float64) bool {
	return mz > w.Min && mz < w.Max
}

// Validate checks that the window is a positive, non-empty range.
func (w MZWindow) Validate(field string) error {
	if w.Min < 0 || w.Max <= w.Min {
		return &ConfigurationError{Field: field, Message: fmt.Sprintf("invalid m/z window [%g, %g]", w.Min, w.Max)}
	}
	return nil
}

// ScoringQuery is one elution group: everything the scoring engine needs to
// extract and score a precursor at one charge state.
type ScoringQuery struct {
	ID                         uint64
	Charge                     uint8
	PrecursorMZs               [IsotopeSlots]float64
	FragmentMZs                map[FragmentKey]float64
	ExpectedPrecursorIntensity [IsotopeSlots]float64
	ExpectedFragmentIntensity  map[FragmentKey]float64
	Mobility                   float64
	RTSeconds                  float64
}

// MonoisotopicMZ returns the m/z of the monoisotopic precursor peak.
func (q *ScoringQuery) MonoisotopicMZ() float64 {
	return q.PrecursorMZs[1]
}

// FragmentKeys returns the fragment keys in a stable order.
func (q *ScoringQuery) FragmentKeys() []FragmentKey {
	keys := make([]FragmentKey, 0, len(q.FragmentMZs))
	for k := range q.FragmentMZs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Validate checks the query for values the scoring engine cannot use.
func (q *ScoringQuery) Validate() error {
	var errs []string

	if q.Charge == 0 {
		errs = append(errs, "charge must be positive")
	}
	for i, mz := range q.PrecursorMZs {
		if math.IsNaN(mz) || math.IsInf(mz, 0) || mz <= 0 {
			errs = append(errs, fmt.Sprintf("precursor isotope %d has invalid m/z", i-1))
		}
	}
	if len(q.FragmentMZs) == 0 {
		errs = append(errs, "at least one fragment is required")
	}
	for k, mz := range q.FragmentMZs {
		if k.IsPrecursor() {
			errs = append(errs, "precursor pseudo-fragment in fragment map")
		}
		if math.IsNaN(mz) || math.IsInf(mz, 0) || mz <= 0 {
			errs = append(errs, fmt.Sprintf("fragment %s has invalid m/z", k))
		}
	}
	for k := range q.ExpectedFragmentIntensity {
		if _, ok := q.FragmentMZs[k]; !ok {
			errs = append(errs, fmt.Sprintf("intensity for unknown fragment %s", k))
		}
	}
	if math.IsNaN(q.Mobility) || math.IsInf(q.Mobility, 0) {
		errs = append(errs, "mobility is not finite")
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return &ValidationError{
			Field:   "ScoringQuery",
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

// WithinWindows reports whether the monoisotopic precursor and every
// fragment lie inside the given windows.
func (q *ScoringQuery) WithinWindows(precursor, fragment MZWindow) bool {
	if !precursor.Contains(q.MonoisotopicMZ()) {
		return false
	}
	for _, mz := range q.FragmentMZs {
		if !fragment.Contains(mz) {
			return false
		}
	}
	return true
}
