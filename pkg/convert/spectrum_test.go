package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/DBSeek/pkg/core"
)

func librarySpectrum() *core.Spectrum {
	rt := 12.5
	return &core.Spectrum{
		Sequence: "PEPTIDE",
		Charge:   2,
		Peaks: []core.Peak{
			{MZ: 150.0, Intensity: 900, Annotation: "b1"},
			{MZ: 324.155, Intensity: 500, Annotation: "b3"},
			{MZ: 400.0, Intensity: 1000, Annotation: "y3"},
			{MZ: 401.0, Intensity: 200, Annotation: "?"},
			{MZ: 500.0, Intensity: 250, Annotation: "y4^2/1.2ppm"},
		},
		RetentionTime: &rt,
	}
}

func TestFromSpectrum(t *testing.T) {
	c := newConverter(t, core.NewCalculator(nil), nil)

	q, err := c.FromSpectrum(librarySpectrum(), 42)
	require.NoError(t, err)

	assert.Equal(t, uint64(42), q.ID)
	assert.Equal(t, uint8(2), q.Charge)
	assert.InDelta(t, 400.6873, q.MonoisotopicMZ(), 1e-3)
	assert.Equal(t, 12.5, q.RTSeconds)
	assert.InDelta(t, core.PredictMobility(q.MonoisotopicMZ(), 2), q.Mobility, 1e-12)

	y3 := core.FragmentKey{Series: 'y', Ordinal: 3, Charge: 1}
	b3 := core.FragmentKey{Series: 'b', Ordinal: 3, Charge: 1}
	y4 := core.FragmentKey{Series: 'y', Ordinal: 4, Charge: 2}
	assert.Equal(t, map[core.FragmentKey]float64{y3: 400.0, b3: 324.155, y4: 500.0}, q.FragmentMZs)
	assert.Equal(t, map[core.FragmentKey]float64{y3: 1.0, b3: 0.5, y4: 0.25}, q.ExpectedFragmentIntensity)
	require.NoError(t, q.Validate())
}

func TestFromSpectrumKeepsLibraryValues(t *testing.T) {
	c := newConverter(t, core.NewCalculator(nil), nil)

	spec := librarySpectrum()
	spec.PrecursorMZ = 400.69
	mobility := 0.85
	spec.IonMobility = &mobility

	q, err := c.FromSpectrum(spec, 1)
	require.NoError(t, err)
	assert.Equal(t, 400.69, q.MonoisotopicMZ())
	assert.Equal(t, 0.85, q.Mobility)
}

func TestFromSpectrumModified(t *testing.T) {
	c := newConverter(t, core.NewCalculator(nil), nil)

	spec := librarySpectrum()
	spec.Modifications = []core.Modification{{Mass: 57.021464, Position: 0, Name: "Carbamidomethyl"}}

	q, err := c.FromSpectrum(spec, 1)
	require.NoError(t, err)
	assert.InDelta(t, 429.1980, q.MonoisotopicMZ(), 1e-3)
}

func TestFromSpectrumErrors(t *testing.T) {
	c := newConverter(t, core.NewCalculator(nil), nil)

	noAnnotations := librarySpectrum()
	for i := range noAnnotations.Peaks {
		noAnnotations.Peaks[i].Annotation = "?"
	}
	_, err := c.FromSpectrum(noAnnotations, 1)
	assert.ErrorIs(t, err, ErrNoFragments)

	outside := librarySpectrum()
	outside.PrecursorMZ = 1500
	_, err = c.FromSpectrum(outside, 1)
	assert.ErrorIs(t, err, ErrOutsideWindow)

	unknown := librarySpectrum()
	unknown.Sequence = "PEPXIDE"
	_, err = c.FromSpectrum(unknown, 1)
	assert.ErrorIs(t, err, core.ErrUnknownResidue)

	invalid := librarySpectrum()
	invalid.Charge = 0
	_, err = c.FromSpectrum(invalid, 1)
	var vErr *core.ValidationError
	assert.ErrorAs(t, err, &vErr)
}
