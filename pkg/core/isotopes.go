package core

import "math"

// IsotopeSlots is the size of a precursor isotope vector: [-1, 0, +1, +2].
const IsotopeSlots = 4

// IsotopeFloor is the expected intensity given to slots without a model value.
const IsotopeFloor = 1e-3

// Natural abundance rates per atom used by the isotope model.
const (
	carbon13Rate = 0.011
	sulfur33Rate = 0.0076
	sulfur34Rate = 0.044
)

var factorials = [IsotopeSlots]float64{1, 1, 2, 6}

// convolve4 convolves two 4-slot distributions, truncated to 4 slots.
func convolve4(a, b [IsotopeSlots]float64) [IsotopeSlots]float64 {
	return [IsotopeSlots]float64{
		a[0] * b[0],
		a[0]*b[1] + a[1]*b[0],
		a[0]*b[2] + a[1]*b[1] + a[2]*b[0],
		a[0]*b[3] + a[1]*b[2] + a[2]*b[1] + a[3]*b[0],
	}
}

func poisson4(lambda float64) [IsotopeSlots]float64 {
	var out [IsotopeSlots]float64
	for k := range out {
		out[k] = math.Pow(lambda, float64(k)) * math.Exp(-lambda) / factorials[k]
	}
	return out
}

func carbonIsotopes(count int) [IsotopeSlots]float64 {
	return poisson4(float64(count) * carbon13Rate)
}

// sulfurIsotopes combines the +1 (33S) and +2 (34S) contributions.
func sulfurIsotopes(count int) [IsotopeSlots]float64 {
	s33 := poisson4(float64(count) * sulfur33Rate)
	lambda34 := float64(count) * sulfur34Rate
	s34 := [IsotopeSlots]float64{
		math.Exp(-lambda34),
		0,
		lambda34 * math.Exp(-lambda34),
		0,
	}
	return convolve4(s33, s34)
}

// PeptideIsotopes predicts the relative intensities of the monoisotopic,
// +1 and +2 peaks from carbon and sulphur counts, normalized to the most
// intense of the three.
func PeptideIsotopes(carbons, sulfurs int) [3]float64 {
	dist := convolve4(carbonIsotopes(carbons), sulfurIsotopes(sulfurs))
	maxVal := math.Max(dist[0], math.Max(dist[1], dist[2]))

	var out [3]float64
	for i := range out {
		out[i] = dist[i] / maxVal
	}
	return out
}

// ExpectedPrecursorIntensities fills the 4-slot vector: slot 0 (the -1
// isotope) keeps the floor value, slots 1..3 take the isotope model.
func ExpectedPrecursorIntensities(f Formula) [IsotopeSlots]float64 {
	out := [IsotopeSlots]float64{IsotopeFloor, IsotopeFloor, IsotopeFloor, IsotopeFloor}
	if f.C == 0 {
		return out
	}
	for i, v := range PeptideIsotopes(f.C, f.S) {
		out[i+1] = v
	}
	return out
}

// IsotopeEnvelope returns [mono-s, mono, mono+s, mono+2s] with s = NeutronMass/charge.
func IsotopeEnvelope(monoMZ float64, charge int) [IsotopeSlots]float64 {
	spacing := NeutronMass / float64(charge)
	return [IsotopeSlots]float64{
		monoMZ - spacing,
		monoMZ,
		monoMZ + spacing,
		monoMZ + 2*spacing,
	}
}
