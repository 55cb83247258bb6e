package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeptideMZ(t *testing.T) {
	calc := NewCalculator(nil)

	tests := []struct {
		name     string
		peptide  Peptide
		charge   int
		wantMass float64
		wantMZ   float64
	}{
		{"tripeptide", NewPeptide("AAA", nil), 1, 231.12191, 232.1292},
		{"tripeptide doubly charged", NewPeptide("AAA", nil), 2, 231.12191, 116.5682},
		{"modified residue", NewPeptide("AAA", []Modification{{Mass: 57.021464, Position: 0}}), 1, 288.14337, 289.1506},
		{"modified proline", NewPeptide("PEPTIDE", []Modification{{Mass: 57.021464, Position: 0}}), 2, 856.38146, 429.1980},
		{"sulfur containing", NewPeptide("SAMPLER", nil), 2, 802.40072, 402.2076},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mass, _, err := calc.NeutralMassAndFormula(tt.peptide.ProForma())
			require.NoError(t, err)
			assert.InDelta(t, tt.wantMass, mass, 1e-3)
			assert.InDelta(t, tt.wantMZ, MZ(mass, tt.charge), 1e-3)
		})
	}
}

func TestNeutralMassAndFormula(t *testing.T) {
	calc := NewCalculator(nil)

	mass, form, err := calc.NeutralMassAndFormula("PEPTIDEPINK")
	require.NoError(t, err)
	assert.InDelta(t, 1251.63468, mass, 1e-4)
	assert.Equal(t, Composition{C: 55, H: 89, N: 13, O: 20, S: 0}, form.Composition)
	assert.Zero(t, form.Shift)

	mass, form, err = calc.NeutralMassAndFormula("SAMPLER")
	require.NoError(t, err)
	assert.InDelta(t, 802.40072, mass, 1e-4)
	assert.Equal(t, 1, form.S)
}

func TestNeutralMassAndFormulaModified(t *testing.T) {
	calc := NewCalculator(nil)

	tests := []struct {
		name     string
		sequence string
		want     float64
	}{
		{name: "named residue mod", sequence: "PEPTM[Oxidation]", want: 589.24176},
		{name: "numeric residue mod", sequence: "PEPTM[+15.994915]", want: 589.24176},
		{name: "n-terminal mod", sequence: "[Acetyl]-PEPTIDE", want: 841.37053},
		{name: "charge suffix ignored", sequence: "PEPTIDE/2", want: 799.35996},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mass, _, err := calc.NeutralMassAndFormula(tt.sequence)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, mass, 1e-4)
		})
	}
}

func TestNeutralMassAndFormulaErrors(t *testing.T) {
	calc := NewCalculator(nil)

	tests := []struct {
		name     string
		sequence string
		sentinel error
	}{
		{name: "ambiguous B", sequence: "PEPBIDE", sentinel: ErrMultipleFormulas},
		{name: "ambiguous Z", sequence: "ZPEPTIDE", sentinel: ErrMultipleFormulas},
		{name: "unknown residue", sequence: "PEPXIDE", sentinel: ErrUnknownResidue},
		{name: "unknown modification", sequence: "PEPT[Nope]IDE", sentinel: ErrMalformedPeptide},
		{name: "unterminated bracket", sequence: "PEPT[+15.99", sentinel: ErrMalformedPeptide},
		{name: "lower case", sequence: "peptide", sentinel: ErrMalformedPeptide},
		{name: "empty", sequence: "", sentinel: ErrMalformedPeptide},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := calc.NeutralMassAndFormula(tt.sequence)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)

			var chemErr *ChemistryError
			require.True(t, errors.As(err, &chemErr))
			assert.Equal(t, tt.sequence, chemErr.Sequence)
		})
	}
}

func TestAmbiguousJResolves(t *testing.T) {
	calc := NewCalculator(nil)

	withJ, _, err := calc.NeutralMassAndFormula("PEPTJDE")
	require.NoError(t, err)
	withI, _, err := calc.NeutralMassAndFormula("PEPTIDE")
	require.NoError(t, err)
	assert.InDelta(t, withI, withJ, 1e-9)
}
