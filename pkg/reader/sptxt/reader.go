// Package sptxt provides streaming readers for SPTXT (SpectraST) format spectral libraries
package sptxt

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/DBSeek/pkg/core"
	"github.com/ChrisMcGann/DBSeek/pkg/reader"
)

// snapTolerance is how far an inline residue mass may sit from a named
// modification and still be resolved to it.
const snapTolerance = 0.1

var inlineMod = regexp.MustCompile(`([A-Za-z])\[(\d+(?:\.\d+)?)\]`)

// Reader provides streaming access to SPTXT format files
type Reader struct {
	scanner     *bufio.Scanner
	modDB       *core.ModDatabase
	lineNum     int
	currentSpec *core.Spectrum
	err         error
}

var _ reader.SpectrumReader = (*Reader)(nil)

// NewReader creates a new SPTXT reader
func NewReader(r io.Reader, modDB *core.ModDatabase) *Reader {
	if modDB == nil {
		modDB = core.DefaultModDatabase()
	}

	return &Reader{
		scanner: reader.NewScanner(r),
		modDB:   modDB,
	}
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil

	spec, err := r.readSpectrum()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.currentSpec = spec
	return true
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *core.Spectrum {
	return r.currentSpec
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) readSpectrum() (*core.Spectrum, error) {
	spec := &core.Spectrum{
		SourceFormat: string(reader.FormatSPTXT),
		Peaks:        []core.Peak{},
	}

	var numPeaks int
	inPeaks := false
	peaksRead := 0

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		if line == "" || strings.HasPrefix(line, "###") {
			continue
		}

		if !inPeaks {
			key, value, _ := strings.Cut(line, ": ")
			switch key {
			case "Name":
				if err := r.parseName(spec, value); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
			case "PrecursorMZ":
				if v, ok := reader.ParseFloatField(value); ok {
					spec.PrecursorMZ = *v
				}
			case "Comment":
				if err := r.parseComment(spec, value); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
			case "NumPeaks":
				n, err := strconv.Atoi(value)
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid num peaks: %w", r.lineNum, err)
				}
				numPeaks = n
				inPeaks = true
				if numPeaks == 0 {
					return spec, nil
				}
			}
			continue
		}

		peak, err := reader.ParsePeak(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		spec.Peaks = append(spec.Peaks, peak)
		peaksRead++
		if peaksRead >= numPeaks {
			return spec, nil
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	if spec.Sequence != "" {
		return spec, nil
	}

	return nil, io.EOF
}

// parseName extracts sequence, charge, and modifications from Name field
// Format: "n[43]AAAAQDEITGDGTTTVVC[160]LVGELLR/3"
func (r *Reader) parseName(spec *core.Spectrum, name string) error {
	rawSeq, chargeStr, ok := strings.Cut(name, "/")
	if !ok || strings.Contains(chargeStr, "/") {
		return fmt.Errorf("invalid name format '%s', expected 'SEQUENCE/CHARGE'", name)
	}

	charge, err := strconv.Atoi(chargeStr)
	if err != nil {
		return fmt.Errorf("invalid charge in name '%s': %w", name, err)
	}
	spec.Charge = charge

	sequence, mods, err := r.parseInlineModifications(rawSeq)
	if err != nil {
		return fmt.Errorf("failed to parse modifications from sequence: %w", err)
	}
	spec.Sequence = sequence
	spec.Modifications = mods
	return nil
}

// parseInlineModifications strips "X[mass]" tags from a SpectraST sequence.
// The bracketed mass is the total residue mass ("n" is the N-terminal
// hydrogen), so the shift is the bracket minus the unmodified mass.
func (r *Reader) parseInlineModifications(rawSeq string) (string, []core.Modification, error) {
	var sequence strings.Builder
	var mods []core.Modification

	lastIdx := 0
	for _, match := range inlineMod.FindAllStringSubmatchIndex(rawSeq, -1) {
		sequence.WriteString(rawSeq[lastIdx:match[0]])

		aa := rawSeq[match[2]]
		total, err := strconv.ParseFloat(rawSeq[match[4]:match[5]], 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid modification mass '%s': %w", rawSeq[match[4]:match[5]], err)
		}

		switch {
		case aa == 'n':
			mods = append(mods, r.resolve(total-core.MassH, -1))
		case aa == 'c':
			mods = append(mods, r.resolve(total-core.MassH-core.MassO, sequence.Len()))
		default:
			comp, ok := core.ResidueCompositions[aa]
			if !ok {
				return "", nil, fmt.Errorf("unknown residue '%c' in %s", aa, rawSeq)
			}
			pos := sequence.Len()
			sequence.WriteByte(aa)
			mods = append(mods, r.resolve(total-comp.Mass(), pos))
		}
		lastIdx = match[1]
	}
	sequence.WriteString(rawSeq[lastIdx:])

	return sequence.String(), mods, nil
}

// resolve snaps a nominal shift to the nearest named modification.
func (r *Reader) resolve(delta float64, pos int) core.Modification {
	best, bestDiff := "", 0.0
	for _, name := range r.modDB.Names() {
		mass, _ := r.modDB.GetMass(name)
		diff := math.Abs(mass - delta)
		if diff <= snapTolerance && (best == "" || diff < bestDiff) {
			best, bestDiff = name, diff
		}
	}
	if best == "" {
		return core.Modification{Mass: delta, Position: pos, Name: strconv.FormatFloat(delta, 'f', 4, 64)}
	}
	mass, _ := r.modDB.GetMass(best)
	return core.Modification{Mass: mass, Position: pos, Name: best}
}

// parseComment reads Comment metadata. A Mods= field replaces the
// modifications taken from the name.
func (r *Reader) parseComment(spec *core.Spectrum, comment string) error {
	fields := reader.ParseComment(comment)

	if spec.PrecursorMZ == 0 {
		if v, ok := reader.ParseFloatField(fields["Parent"]); ok {
			spec.PrecursorMZ = *v
		}
	}
	if v, ok := reader.ParseFloatField(fields["CollisionEnergy"]); ok {
		spec.CollisionEnergy = v
	}
	if v, ok := reader.ParseFloatField(fields["RetentionTime"]); ok {
		spec.RetentionTime = v
	}
	if v, ok := reader.ParseFloatField(fields["IonMobility"]); ok {
		spec.IonMobility = v
	}
	if reader.IsDecoyTag(fields["Protein"]) || reader.IsDecoyTag(fields["Remark"]) {
		spec.Decoy = true
	}

	if value, ok := fields["Mods"]; ok {
		mods, err := reader.ParseModsField(r.modDB, value)
		if err != nil {
			return err
		}
		spec.Modifications = mods
	}
	return nil
}
