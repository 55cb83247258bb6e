// Package filter trims library spectra before they are converted to
// scoring queries.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ChrisMcGann/DBSeek/pkg/core"
)

// Config holds filtering configuration. Zero values disable a filter.
type Config struct {
	// TopN keeps only the N most intense peaks.
	TopN int `mapstructure:"top_n" yaml:"top_n"`

	// IntensityCutoff keeps peaks at or above this percentage of the base peak.
	IntensityCutoff float64 `mapstructure:"intensity_cutoff" yaml:"intensity_cutoff"`

	// IonTypes keeps peaks whose annotation names one of these series
	// letters, e.g. "by". Unannotated peaks are dropped when set.
	IonTypes string `mapstructure:"ion_types" yaml:"ion_types"`

	// Window keeps peaks inside [Min, Max]. A zero window is ignored.
	Window core.MZWindow `mapstructure:"mz_window" yaml:"mz_window"`
}

// Validate checks the filter settings.
func (c Config) Validate() error {
	if c.TopN < 0 {
		return &core.ConfigurationError{Field: "filter.top_n", Message: "must not be negative"}
	}
	if c.IntensityCutoff < 0 || c.IntensityCutoff > 100 {
		return &core.ConfigurationError{Field: "filter.intensity_cutoff", Message: fmt.Sprintf("must be a percentage, got %g", c.IntensityCutoff)}
	}
	for i := 0; i < len(c.IonTypes); i++ {
		if !strings.ContainsRune("abcxyz", rune(c.IonTypes[i])) {
			return &core.ConfigurationError{Field: "filter.ion_types", Message: fmt.Sprintf("unsupported series %q", c.IonTypes[i])}
		}
	}
	if c.Window != (core.MZWindow{}) {
		return c.Window.Validate("filter.mz_window")
	}
	return nil
}

// Apply applies all configured filters to a spectrum and leaves its peaks
// sorted by m/z.
func (c Config) Apply(spec *core.Spectrum) {
	RemoveZeroIntensityPeaks(spec)

	if c.IonTypes != "" {
		c.filterByIonType(spec)
	}
	if c.Window != (core.MZWindow{}) {
		c.filterByWindow(spec)
	}
	if c.IntensityCutoff > 0 {
		c.filterByIntensity(spec)
	}
	if c.TopN > 0 {
		c.filterTopN(spec)
	}

	spec.SortPeaks()
}

func (c Config) filterByIonType(spec *core.Spectrum) {
	keep(spec, func(p core.Peak) bool {
		key, err := p.Key()
		if err != nil {
			return false
		}
		return strings.IndexByte(c.IonTypes, key.Series) >= 0
	})
}

func (c Config) filterByWindow(spec *core.Spectrum) {
	keep(spec, func(p core.Peak) bool { return c.Window.Contains(p.MZ) })
}

// filterByIntensity removes peaks below the cutoff percentage of the base peak.
func (c Config) filterByIntensity(spec *core.Spectrum) {
	threshold := c.IntensityCutoff / 100.0 * spec.BasePeakIntensity()
	keep(spec, func(p core.Peak) bool { return p.Intensity >= threshold })
}

// filterTopN keeps only the N most intense peaks
func (c Config) filterTopN(spec *core.Spectrum) {
	if len(spec.Peaks) <= c.TopN {
		return
	}

	peaks := make([]core.Peak, len(spec.Peaks))
	copy(peaks, spec.Peaks)
	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Intensity > peaks[j].Intensity
	})
	spec.Peaks = peaks[:c.TopN]
}

// RemoveZeroIntensityPeaks removes peaks with zero or negative intensity
func RemoveZeroIntensityPeaks(spec *core.Spectrum) {
	keep(spec, func(p core.Peak) bool { return p.Intensity > 0 })
}

func keep(spec *core.Spectrum, pred func(core.Peak) bool) {
	filtered := spec.Peaks[:0]
	for _, peak := range spec.Peaks {
		if pred(peak) {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}
