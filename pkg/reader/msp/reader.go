// Package msp provides streaming readers for MSP (Prosit) format spectral libraries
package msp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/DBSeek/pkg/core"
	"github.com/ChrisMcGann/DBSeek/pkg/reader"
)

// Reader provides streaming access to MSP format files
type Reader struct {
	scanner     *bufio.Scanner
	modDB       *core.ModDatabase
	lineNum     int
	currentSpec *core.Spectrum
	err         error
}

var _ reader.SpectrumReader = (*Reader)(nil)

// NewReader creates a new MSP reader
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

// readSpectrum reads one entry, from "Name:" through its last peak line.
func (r *Reader) readSpectrum() (*core.Spectrum, error) {
	spec := &core.Spectrum{
		SourceFormat: string(reader.FormatMSP),
		Peaks:        []core.Peak{},
	}

	var numPeaks int
	inPeaks := false
	peaksRead := 0

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		if line == "" {
			continue
		}

		if !inPeaks {
			key, value, _ := strings.Cut(line, ": ")
			switch key {
			case "Name":
				if err := parseName(spec, value); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
			case "Comment":
				if err := r.parseComment(spec, value); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
			case "Num peaks":
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
			// MW is recomputed from the sequence
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

	// truncated final entry
	if spec.Sequence != "" {
		return spec, nil
	}

	return nil, io.EOF
}

// parseName extracts sequence and charge from Name field (format: "SEQUENCE/CHARGE")
func parseName(spec *core.Spectrum, name string) error {
	seq, chargeStr, ok := strings.Cut(name, "/")
	if !ok || strings.Contains(chargeStr, "/") {
		return fmt.Errorf("invalid name format '%s', expected 'SEQUENCE/CHARGE'", name)
	}

	charge, err := strconv.Atoi(chargeStr)
	if err != nil {
		return fmt.Errorf("invalid charge in name '%s': %w", name, err)
	}
	spec.Sequence = seq
	spec.Charge = charge
	return nil
}

// parseComment extracts metadata from the Comment field, e.g.
//
//	Parent=414.71 Collision_energy=35 Mods=1/-1,R,TMT_Pro ModString=EIESAGDITFNR//TMT_Pro@R-1/4 iRT=61.01
//
// Mods= takes precedence over ModString= when both are present.
func (r *Reader) parseComment(spec *core.Spectrum, comment string) error {
	fields := reader.ParseComment(comment)

	if v, ok := reader.ParseFloatField(fields["Parent"]); ok {
		spec.PrecursorMZ = *v
	}
	for _, key := range []string{"Collision_energy", "CollisionEnergy"} {
		if v, ok := reader.ParseFloatField(fields[key]); ok {
			spec.CollisionEnergy = v
		}
	}
	for _, key := range []string{"iRT", "RetentionTime"} {
		if v, ok := reader.ParseFloatField(fields[key]); ok {
			spec.RetentionTime = v
		}
	}
	if v, ok := reader.ParseFloatField(fields["IonMobility"]); ok {
		spec.IonMobility = v
	}
	if reader.IsDecoyTag(fields["Protein"]) || fields["Decoy"] == "1" {
		spec.Decoy = true
	}

	if value, ok := fields["Mods"]; ok {
		mods, err := reader.ParseModsField(r.modDB, value)
		if err != nil {
			return err
		}
		spec.Modifications = mods
		return nil
	}
	if value, ok := fields["ModString"]; ok {
		mods, err := parseModString(r.modDB, value)
		if err != nil {
			return err
		}
		spec.Modifications = mods
	}
	return nil
}

// parseModString reads "SEQUENCE//Mod@Pos;Mod@Pos/Charge" with 1-based
// positions.
func parseModString(db *core.ModDatabase, modString string) ([]core.Modification, error) {
	_, modPart, ok := strings.Cut(modString, "//")
	if !ok {
		return nil, nil
	}
	modPart, _, _ = strings.Cut(modPart, "/")
	return db.ParseModString(modPart)
}
