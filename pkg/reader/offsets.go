package reader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/DBSeek/pkg/core"
)

// MassOffsets maps a bare sequence to an extra N-terminal mass, e.g. a label
// that the library spectra carry but their annotations do not.
type MassOffsets map[string]float64

// LoadMassOffsets reads a "Sequence,massOffset" CSV. The first row is a
// header. Blank lines are ignored.
func LoadMassOffsets(r io.Reader) (MassOffsets, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	out := make(MassOffsets)
	header := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		if header {
			header = false
			continue
		}
		line, _ := cr.FieldPos(0)
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: expected 2 fields (Sequence,massOffset), got %d", line, len(rec))
		}
		seq := strings.TrimSpace(rec[0])
		offset, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid mass offset value '%s': %w", line, rec[1], err)
		}
		out[seq] = offset
	}
}

// Apply adds the offset for spec's sequence as an N-terminal modification
// and reports whether one was found.
func (m MassOffsets) Apply(spec *core.Spectrum) bool {
	offset, ok := m[spec.Sequence]
	if !ok || offset == 0 {
		return false
	}
	spec.Modifications = append(spec.Modifications, core.Modification{
		Mass:     offset,
		Position: -1,
		Name:     strconv.FormatFloat(offset, 'f', 4, 64),
	})
	return true
}
