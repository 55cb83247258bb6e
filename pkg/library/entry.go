// Package library reads and writes precomputed query libraries.
//
// A library is a sequence of entries, each pairing a precursor description
// with a ready-to-score elution group. Files are either a JSON array of
// entries or newline-delimited JSON with one entry per line.
package library

import (
	"errors"
	"fmt"

	"github.com/ChrisMcGann/DBSeek/pkg/core"
	"github.com/ChrisMcGann/DBSeek/pkg/digest"
)

// Precursor describes the peptide behind an entry.
type Precursor struct {
	Sequence string `json:"sequence"`
	Charge   uint8  `json:"charge"`
	Decoy    bool   `json:"decoy"`
}

// ElutionGroup is the serialized form of a core.ScoringQuery.
type ElutionGroup struct {
	ID                         uint64                       `json:"id"`
	PrecursorMZs               []float64                    `json:"precursor_mzs"`
	FragmentMZs                map[core.FragmentKey]float64 `json:"fragment_mzs"`
	PrecursorCharge            uint8                        `json:"precursor_charge"`
	Mobility                   float64                      `json:"mobility"`
	RTSeconds                  float64                      `json:"rt_seconds"`
	Decoy                      bool                         `json:"decoy"`
	ExpectedPrecursorIntensity []float64                    `json:"expected_precursor_intensity,omitempty"`
	ExpectedFragmentIntensity  map[core.FragmentKey]float64 `json:"expected_fragment_intensity,omitempty"`
}

// Entry is one library record.
type Entry struct {
	Precursor    Precursor    `json:"precursor"`
	ElutionGroup ElutionGroup `json:"elution_group"`
}

// ErrInvalidEntry is wrapped by every conversion failure of a decoded entry.
var ErrInvalidEntry = errors.New("invalid library entry")

// NewEntry serializes a converted query together with its source candidate.
// Decoy candidates are written already reversed.
func NewEntry(src digest.CandidateSlice, q core.ScoringQuery) Entry {
	decoy := src.Marking().IsDecoy()
	eg := ElutionGroup{
		ID:                         q.ID,
		PrecursorMZs:               q.PrecursorMZs[:],
		FragmentMZs:                q.FragmentMZs,
		PrecursorCharge:            q.Charge,
		Mobility:                   q.Mobility,
		RTSeconds:                  q.RTSeconds,
		Decoy:                      decoy,
		ExpectedPrecursorIntensity: q.ExpectedPrecursorIntensity[:],
		ExpectedFragmentIntensity:  q.ExpectedFragmentIntensity,
	}
	return Entry{
		Precursor:    Precursor{Sequence: src.String(), Charge: q.Charge, Decoy: decoy},
		ElutionGroup: eg,
	}
}

// Candidate returns the entry's sequence as a candidate. Decoy entries are
// stored reversed, so they are marked ReversedDecoy and never re-reversed.
func (e Entry) Candidate() (digest.CandidateSlice, error) {
	marking := digest.Target
	if e.Precursor.Decoy {
		marking = digest.ReversedDecoy
	}
	c, err := digest.WholeSequence(e.Precursor.Sequence, marking)
	if err != nil {
		return digest.CandidateSlice{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return c, nil
}

// Query rebuilds the scoring query. Envelopes with other than four m/z
// values are rebuilt from their first element, taken as monoisotopic.
// Short intensity vectors fill from slot 0 and pad with the isotope floor.
// Missing fragment intensities default to 1.
func (e Entry) Query() (core.ScoringQuery, error) {
	eg := e.ElutionGroup
	charge := e.Precursor.Charge
	if charge == 0 {
		return core.ScoringQuery{}, fmt.Errorf("%w: precursor charge is zero", ErrInvalidEntry)
	}
	if eg.PrecursorCharge != 0 && eg.PrecursorCharge != charge {
		return core.ScoringQuery{}, fmt.Errorf("%w: precursor charge %d disagrees with elution group charge %d",
			ErrInvalidEntry, charge, eg.PrecursorCharge)
	}

	q := core.ScoringQuery{
		ID:        eg.ID,
		Charge:    charge,
		Mobility:  eg.Mobility,
		RTSeconds: eg.RTSeconds,
	}

	switch len(eg.PrecursorMZs) {
	case 0:
		return core.ScoringQuery{}, fmt.Errorf("%w: no precursor m/z", ErrInvalidEntry)
	case core.IsotopeSlots:
		copy(q.PrecursorMZs[:], eg.PrecursorMZs)
	default:
		q.PrecursorMZs = core.IsotopeEnvelope(eg.PrecursorMZs[0], int(charge))
	}

	for i := range q.ExpectedPrecursorIntensity {
		q.ExpectedPrecursorIntensity[i] = core.IsotopeFloor
	}
	copy(q.ExpectedPrecursorIntensity[:], eg.ExpectedPrecursorIntensity)

	q.FragmentMZs = make(map[core.FragmentKey]float64, len(eg.FragmentMZs))
	q.ExpectedFragmentIntensity = make(map[core.FragmentKey]float64, len(eg.FragmentMZs))
	for k, mz := range eg.FragmentMZs {
		q.FragmentMZs[k] = mz
		q.ExpectedFragmentIntensity[k] = 1.0
	}
	for k, v := range eg.ExpectedFragmentIntensity {
		q.ExpectedFragmentIntensity[k] = v
	}

	if err := q.Validate(); err != nil {
		return core.ScoringQuery{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return q, nil
}
