// Package core provides peptide chemistry, the scoring query model and the
// annotated spectrum IR shared by every DBSeek package.
package core

// Atomic masses (monoisotopic)
const (
	MassH = 1.0078250321
	MassC = 12.0000000000
	MassN = 14.0030740052
	MassO = 15.9949146221
	MassS = 31.9720706900
	MassP = 30.9737615100

	// Proton mass for charge calculations
	ProtonMass = 1.00727646688

	// NeutronMass is the isotope spacing used for precursor envelopes.
	NeutronMass = 1.008664916

	MassWater   = 2*MassH + MassO
	MassAmmonia = MassN + 3*MassH
	MassCO      = MassC + MassO
)

// Composition stores elemental composition
type Composition struct {
	C, H, N, O, S int
}

// Add returns the element-wise sum of two compositions.
func (c Composition) Add(o Composition) Composition {
	return Composition{
		C: c.C + o.C,
		H: c.H + o.H,
		N: c.N + o.N,
		O: c.O + o.O,
		S: c.S + o.S,
	}
}

// Mass returns the monoisotopic mass of the composition.
func (c Composition) Mass() float64 {
	return float64(c.C)*MassC +
		float64(c.H)*MassH +
		float64(c.N)*MassN +
		float64(c.O)*MassO +
		float64(c.S)*MassS
}

var water = Composition{H: 2, O: 1}

// ResidueCompositions maps amino acid one-letter codes to residue composition
var ResidueCompositions = map[byte]Composition{
	'A': {C: 3, H: 5, N: 1, O: 1, S: 0},
	'R': {C: 6, H: 12, N: 4, O: 1, S: 0},
	'N': {C: 4, H: 6, N: 2, O: 2, S: 0},
	'D': {C: 4, H: 5, N: 1, O: 3, S: 0},
	'C': {C: 3, H: 5, N: 1, O: 1, S: 1},
	'E': {C: 5, H: 7, N: 1, O: 3, S: 0},
	'Q': {C: 5, H: 8, N: 2, O: 2, S: 0},
	'G': {C: 2, H: 3, N: 1, O: 1, S: 0},
	'H': {C: 6, H: 7, N: 3, O: 1, S: 0},
	'I': {C: 6, H: 11, N: 1, O: 1, S: 0},
	'L': {C: 6, H: 11, N: 1, O: 1, S: 0},
	'K': {C: 6, H: 12, N: 2, O: 1, S: 0},
	'M': {C: 5, H: 9, N: 1, O: 1, S: 1},
	'F': {C: 9, H: 9, N: 1, O: 1, S: 0},
	'P': {C: 5, H: 7, N: 1, O: 1, S: 0},
	'S': {C: 3, H: 5, N: 1, O: 2, S: 0},
	'T': {C: 4, H: 7, N: 1, O: 2, S: 0},
	'W': {C: 11, H: 10, N: 2, O: 1, S: 0},
	'Y': {C: 9, H: 9, N: 1, O: 2, S: 0},
	'V': {C: 5, H: 9, N: 1, O: 1, S: 0},
}

// ambiguousResidues lists the residues a one-letter ambiguity code may stand for.
var ambiguousResidues = map[byte][]byte{
	'B': {'D', 'N'},
	'Z': {'E', 'Q'},
	'J': {'I', 'L'},
}

// residueComposition resolves a residue code to a single composition.
// Ambiguity codes whose options share a composition (J) resolve cleanly.
func residueComposition(aa byte) (Composition, error) {
	if comp, ok := ResidueCompositions[aa]; ok {
		return comp, nil
	}
	options, ok := ambiguousResidues[aa]
	if !ok {
		return Composition{}, ErrUnknownResidue
	}
	first := ResidueCompositions[options[0]]
	for _, o := range options[1:] {
		if ResidueCompositions[o] != first {
			return Composition{}, ErrMultipleFormulas
		}
	}
	return first, nil
}

// Formula is an elemental composition plus the mass shift of any
// modifications that carry no elemental information.
type Formula struct {
	Composition
	Shift float64
}

// MonoisotopicMass returns the neutral monoisotopic mass of the formula.
func (f Formula) MonoisotopicMass() float64 {
	return f.Composition.Mass() + f.Shift
}

// Formula resolves the peptide to exactly one elemental formula.
func (p Peptide) Formula() (Formula, error) {
	form := Formula{Composition: water, Shift: p.NTerm + p.CTerm}
	for i, aa := range p.Residues {
		comp, err := residueComposition(aa)
		if err != nil {
			return Formula{}, err
		}
		form.Composition = form.Composition.Add(comp)
		form.Shift += p.Mods[i]
	}
	return form, nil
}

// MZ converts a neutral mass to m/z: (mass + charge * proton) / charge
func MZ(neutralMass float64, charge int) float64 {
	return (neutralMass + float64(charge)*ProtonMass) / float64(charge)
}

// Calculator is the built-in chemistry backend. It resolves ProForma-style
// peptide strings against a modification database.
type Calculator struct {
	mods *ModDatabase
}

// NewCalculator creates a calculator; a nil database means the defaults.
func NewCalculator(mods *ModDatabase) *Calculator {
	if mods == nil {
		mods = DefaultModDatabase()
	}
	return &Calculator{mods: mods}
}

// NeutralMassAndFormula returns the monoisotopic neutral mass and the
// single elemental formula of a peptide.
func (c *Calculator) NeutralMassAndFormula(sequence string) (float64, Formula, error) {
	pep, err := c.mods.ParsePeptide(sequence)
	if err != nil {
		return 0, Formula{}, err
	}
	form, err := pep.Formula()
	if err != nil {
		return 0, Formula{}, &ChemistryError{Sequence: sequence, Err: err}
	}
	return form.MonoisotopicMass(), form, nil
}
