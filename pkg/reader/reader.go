// Package reader holds what the spectral-library readers share: the
// streaming interface, format detection and the common field parsers.
package reader

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/DBSeek/pkg/core"
)

// SpectrumReader streams spectra. Next advances and reports whether a
// spectrum is available; Err reports the error that stopped iteration.
type SpectrumReader interface {
	Next() bool
	Spectrum() *core.Spectrum
	Err() error
}

// Format names a spectral-library format.
type Format string

const (
	FormatMSP   Format = "msp"
	FormatSPTXT Format = "sptxt"
)

// DetectFormat infers the format from a file name, ignoring a trailing ".gz".
func DetectFormat(path string) (Format, error) {
	path = strings.TrimSuffix(strings.ToLower(path), ".gz")
	switch filepath.Ext(path) {
	case ".msp":
		return FormatMSP, nil
	case ".sptxt":
		return FormatSPTXT, nil
	}
	return "", fmt.Errorf("cannot infer library format from %q (want .msp or .sptxt)", path)
}

// ParsePeak parses "mz intensity [annotation ...]". Quotes and anything
// after the first '/' are stripped from the annotation.
func ParsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("invalid peak format, expected at least 2 fields")
	}

	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid m/z value: %w", err)
	}
	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid intensity value: %w", err)
	}

	peak := core.Peak{MZ: mz, Intensity: intensity}
	if len(fields) >= 3 {
		annotation := strings.Trim(fields[2], "\"")
		if idx := strings.Index(annotation, "/"); idx > 0 {
			annotation = annotation[:idx]
		}
		peak.Annotation = annotation
	}
	return peak, nil
}

// ParseModsField parses the "Mods=" comment field shared by MSP and SPTXT:
// "2/0,C,Carbamidomethyl/5,M,Oxidation". Positions are 0-based with -1 for
// the N-terminus. "0" means no modifications.
func ParseModsField(db *core.ModDatabase, value string) ([]core.Modification, error) {
	parts := strings.Split(value, "/")
	count, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid modification count in %q: %w", value, err)
	}
	if count != len(parts)-1 {
		return nil, fmt.Errorf("modification count %d does not match %d entries in %q", count, len(parts)-1, value)
	}

	mods := make([]core.Modification, 0, count)
	for _, entry := range parts[1:] {
		fields := strings.Split(entry, ",")
		if len(fields) != 3 {
			return nil, fmt.Errorf("invalid modification %q, expected position,residue,name", entry)
		}
		pos, err := strconv.Atoi(fields[0])
		if err != nil || pos < -1 {
			return nil, fmt.Errorf("invalid modification position %q", fields[0])
		}
		name := fields[2]
		mass, ok := db.GetMass(name)
		if !ok {
			return nil, fmt.Errorf("unknown modification %q", name)
		}
		mods = append(mods, core.Modification{Mass: mass, Position: pos, Name: name})
	}
	return mods, nil
}

// ParseComment splits "key=value key=value" into a map. Tokens without
// '=' are ignored.
func ParseComment(comment string) map[string]string {
	out := make(map[string]string)
	for _, field := range strings.Fields(comment) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		out[key] = value
	}
	return out
}

// ParseFloatField parses the first comma-separated value of a field.
func ParseFloatField(value string) (*float64, bool) {
	first, _, _ := strings.Cut(value, ",")
	v, err := strconv.ParseFloat(first, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}

// IsDecoyTag reports whether a protein or remark value marks a decoy.
func IsDecoyTag(value string) bool {
	v := strings.ToUpper(strings.Trim(value, "\""))
	return strings.HasPrefix(v, "DECOY") || strings.HasPrefix(v, "1/DECOY") || strings.HasPrefix(v, "REV_")
}

// NewScanner returns a line scanner that accepts long peak lists.
func NewScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return sc
}
