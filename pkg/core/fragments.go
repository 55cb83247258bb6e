package core

import (
	"fmt"
	"strings"
)

// nTermSeries are the series that carry the N-terminus.
const nTermSeries = "abc"

// IonModel selects which fragment series are generated and how.
type IonModel struct {
	// Series holds the enabled series letters, a subset of "abcxyz".
	Series string `mapstructure:"series" yaml:"series"`

	// SkipN and SkipC drop the cleavage positions closest to each terminus.
	SkipN int `mapstructure:"skip_n" yaml:"skip_n"`
	SkipC int `mapstructure:"skip_c" yaml:"skip_c"`

	// MaxCharge caps the fragment charge; it never exceeds the precursor charge.
	MaxCharge int `mapstructure:"max_charge" yaml:"max_charge"`
}

// DefaultIonModel returns b and y ions, skipping two positions at each end,
// up to fragment charge 2.
func DefaultIonModel() IonModel {
	return IonModel{Series: "by", SkipN: 2, SkipC: 2, MaxCharge: 2}
}

// Validate checks the ion model.
func (m IonModel) Validate() error {
	if m.Series == "" {
		return &ConfigurationError{Field: "ion_model.series", Message: "at least one series is required"}
	}
	for i := 0; i < len(m.Series); i++ {
		if !strings.ContainsRune("abcxyz", rune(m.Series[i])) {
			return &ConfigurationError{Field: "ion_model.series", Message: fmt.Sprintf("unsupported series %q", m.Series[i])}
		}
	}
	if m.SkipN < 0 || m.SkipC < 0 {
		return &ConfigurationError{Field: "ion_model.skip", Message: "skip counts must be non-negative"}
	}
	if m.MaxCharge < 1 {
		return &ConfigurationError{Field: "ion_model.max_charge", Message: "must be at least 1"}
	}
	return nil
}

// FragmentIon is a theoretical fragment with its m/z.
type FragmentIon struct {
	Key FragmentKey
	MZ  float64
}

// FragmentMZs returns the theoretical fragment m/z values of a peptide at the
// given precursor charge. The list starts with one precursor pseudo-fragment
// per fragment charge; consumers that only want backbone ions drop them.
func (c *Calculator) FragmentMZs(sequence string, charge int, model IonModel) ([]FragmentIon, error) {
	pep, err := c.mods.ParsePeptide(sequence)
	if err != nil {
		return nil, err
	}

	n := pep.Len()
	masses := make([]float64, n)
	total := pep.NTerm + pep.CTerm + MassWater
	for i, aa := range pep.Residues {
		comp, err := residueComposition(aa)
		if err != nil {
			return nil, &ChemistryError{Sequence: sequence, Err: err}
		}
		masses[i] = comp.Mass() + pep.Mods[i]
		total += masses[i]
	}

	// prefix[p] is the N-terminal fragment residue mass for cleavage after p residues.
	prefix := make([]float64, n+1)
	prefix[0] = pep.NTerm
	for i := 0; i < n; i++ {
		prefix[i+1] = prefix[i] + masses[i]
	}

	maxCharge := model.MaxCharge
	if charge < maxCharge {
		maxCharge = charge
	}

	var out []FragmentIon
	for z := 1; z <= maxCharge; z++ {
		out = append(out, FragmentIon{
			Key: FragmentKey{Series: SeriesPrecursor, Charge: uint8(z)},
			MZ:  MZ(total, z),
		})
	}

	for s := 0; s < len(model.Series); s++ {
		series := model.Series[s]
		for p := 1; p < n; p++ {
			if p <= model.SkipN || p >= n-model.SkipC {
				continue
			}

			var ordinal int
			var neutral float64
			if strings.IndexByte(nTermSeries, series) >= 0 {
				ordinal = p
				neutral = prefix[p]
			} else {
				ordinal = n - p
				neutral = total - prefix[p]
			}

			switch series {
			case 'a':
				neutral -= MassCO
			case 'c':
				neutral += MassAmmonia
			case 'x':
				neutral += MassCO - 2*MassH
			case 'z':
				neutral -= MassAmmonia - MassH
			}

			for z := 1; z <= maxCharge; z++ {
				out = append(out, FragmentIon{
					Key: FragmentKey{Series: series, Ordinal: uint16(ordinal), Charge: uint8(z)},
					MZ:  MZ(neutral, z),
				})
			}
		}
	}
	return out, nil
}
