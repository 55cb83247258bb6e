package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMultipleFormulas is returned when a peptide resolves to more than one
	// elemental formula, e.g. it contains the ambiguous residues B or Z.
	ErrMultipleFormulas = errors.New("peptide contains more than one formula")

	// ErrUnknownResidue is returned for residues without a known composition.
	ErrUnknownResidue = errors.New("unknown residue")

	// ErrMalformedPeptide is returned when a peptide string cannot be parsed.
	ErrMalformedPeptide = errors.New("malformed peptide")
)

// ConfigurationError reports a malformed parameter set. It is fatal at startup.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Field, e.Message)
}

// ChemistryError reports a peptide that cannot be turned into masses.
// Callers skip the sequence and keep going.
type ChemistryError struct {
	Sequence string
	Err      error
}

func (e *ChemistryError) Error() string {
	return fmt.Sprintf("chemistry error for %q: %v", e.Sequence, e.Err)
}

func (e *ChemistryError) Unwrap() error {
	return e.Err
}

func chemistryErrorf(sequence string, sentinel error, format string, args ...any) error {
	return &ChemistryError{
		Sequence: sequence,
		Err:      fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...),
	}
}
