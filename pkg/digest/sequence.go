// Package digest implements in-silico protease digestion, candidate
// deduplication and lazy decoy synthesis over shared protein buffers.
package digest

import (
	"fmt"
	"strings"
)

// Marking tags a candidate as a target or one of the decoy kinds.
type Marking uint8

const (
	Target Marking = iota
	// Decoy is materialized by reversing the interior of the target slice.
	Decoy
	// ReversedDecoy is already reversed and is materialized as stored.
	ReversedDecoy
)

func (m Marking) String() string {
	switch m {
	case Target:
		return "target"
	case Decoy:
		return "decoy"
	case ReversedDecoy:
		return "reversed_decoy"
	default:
		return fmt.Sprintf("marking(%d)", uint8(m))
	}
}

// Label is the report label: "Target" or "Decoy".
func (m Marking) Label() string {
	if m.IsDecoy() {
		return "Decoy"
	}
	return "Target"
}

// IsDecoy reports whether m is either decoy kind.
func (m Marking) IsDecoy() bool {
	return m == Decoy || m == ReversedDecoy
}

// Sequence is an immutable residue buffer shared by every candidate cut
// from it.
type Sequence struct {
	residues string
}

// NewSequence wraps residues in a shared buffer.
func NewSequence(residues string) *Sequence {
	return &Sequence{residues: residues}
}

// Len returns the number of residues.
func (s *Sequence) Len() int {
	return len(s.residues)
}

func (s *Sequence) String() string {
	return s.residues
}

// Range is a half-open index interval [Start, End).
type Range struct {
	Start, End int
}

// Len returns End - Start.
func (r Range) Len() int {
	return r.End - r.Start
}

// CandidateSlice is a zero-copy view of a candidate peptide: a shared
// buffer, a non-empty range inside it and a marking.
type CandidateSlice struct {
	seq     *Sequence
	rng     Range
	marking Marking
}

// NewCandidateSlice checks the range against the buffer.
func NewCandidateSlice(seq *Sequence, rng Range, marking Marking) (CandidateSlice, error) {
	if seq == nil {
		return CandidateSlice{}, fmt.Errorf("candidate slice: nil sequence")
	}
	if rng.Start < 0 || rng.End > seq.Len() || rng.Start >= rng.End {
		return CandidateSlice{}, fmt.Errorf("candidate slice: range [%d,%d) invalid for sequence of length %d", rng.Start, rng.End, seq.Len())
	}
	return CandidateSlice{seq: seq, rng: rng, marking: marking}, nil
}

// WholeSequence returns a candidate spanning all of residues in a fresh
// buffer. Used for precomputed peptides that were never digested.
func WholeSequence(residues string, marking Marking) (CandidateSlice, error) {
	return NewCandidateSlice(NewSequence(residues), Range{0, len(residues)}, marking)
}

// Sequence returns the shared buffer.
func (c CandidateSlice) Sequence() *Sequence { return c.seq }

// Range returns the index interval inside the buffer.
func (c CandidateSlice) Range() Range { return c.rng }

// Marking returns the target/decoy tag.
func (c CandidateSlice) Marking() Marking { return c.marking }

// Len returns the candidate length in residues.
func (c CandidateSlice) Len() int { return c.rng.Len() }

// Raw returns the underlying residues without any decoy transform.
func (c CandidateSlice) Raw() string {
	return c.seq.residues[c.rng.Start:c.rng.End]
}

// AsDecoy returns the decoy view of a target: same buffer and range,
// marking set to Decoy. Decoys are returned unchanged.
func (c CandidateSlice) AsDecoy() CandidateSlice {
	if c.marking.IsDecoy() {
		return c
	}
	c.marking = Decoy
	return c
}

// String materializes the candidate. Targets and reversed decoys come back
// verbatim; decoys have every residue except the first and last reversed.
func (c CandidateSlice) String() string {
	raw := c.Raw()
	if c.marking != Decoy {
		return raw
	}
	return DecoyString(raw)
}

// DecoyString reverses all residues of s except the first and the last.
func DecoyString(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	b.WriteByte(s[0])
	for i := len(s) - 2; i >= 1; i-- {
		b.WriteByte(s[i])
	}
	b.WriteByte(s[len(s)-1])
	return b.String()
}
