package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ionsByKey(ions []FragmentIon) map[FragmentKey]float64 {
	out := make(map[FragmentKey]float64, len(ions))
	for _, ion := range ions {
		out[ion.Key] = ion.MZ
	}
	return out
}

func TestFragmentMZsDefaultModel(t *testing.T) {
	calc := NewCalculator(nil)

	ions, err := calc.FragmentMZs("PEPTIK", 2, DefaultIonModel())
	require.NoError(t, err)
	require.Len(t, ions, 6)

	// precursor pseudo-fragments come first
	assert.True(t, ions[0].Key.IsPrecursor())
	assert.True(t, ions[1].Key.IsPrecursor())
	assert.InDelta(t, 684.39267, ions[0].MZ, 1e-4)
	assert.InDelta(t, 342.69997, ions[1].MZ, 1e-4)

	byKey := ionsByKey(ions)
	assert.InDelta(t, 324.15540, byKey[FragmentKey{Series: 'b', Ordinal: 3, Charge: 1}], 1e-4)
	assert.InDelta(t, 162.58134, byKey[FragmentKey{Series: 'b', Ordinal: 3, Charge: 2}], 1e-4)
	assert.InDelta(t, 361.24455, byKey[FragmentKey{Series: 'y', Ordinal: 3, Charge: 1}], 1e-4)
	assert.InDelta(t, 181.12591, byKey[FragmentKey{Series: 'y', Ordinal: 3, Charge: 2}], 1e-4)
}

func TestFragmentMZsChargeCap(t *testing.T) {
	calc := NewCalculator(nil)

	ions, err := calc.FragmentMZs("PEPTIK", 1, DefaultIonModel())
	require.NoError(t, err)
	require.Len(t, ions, 3)
	for _, ion := range ions {
		assert.Equal(t, uint8(1), ion.Key.Charge)
	}
}

func TestFragmentMZsAllSeries(t *testing.T) {
	calc := NewCalculator(nil)
	model := IonModel{Series: "abcxyz", MaxCharge: 1}

	ions, err := calc.FragmentMZs("PEPTIK", 3, model)
	require.NoError(t, err)
	assert.Len(t, ions, 1+6*5)

	byKey := ionsByKey(ions)
	assert.InDelta(t, 296.16048, byKey[FragmentKey{Series: 'a', Ordinal: 3, Charge: 1}], 1e-4)

	// c ions are b + NH3, z ions are y - NH2
	b2 := byKey[FragmentKey{Series: 'b', Ordinal: 2, Charge: 1}]
	c2 := byKey[FragmentKey{Series: 'c', Ordinal: 2, Charge: 1}]
	assert.InDelta(t, MassAmmonia, c2-b2, 1e-9)

	y2 := byKey[FragmentKey{Series: 'y', Ordinal: 2, Charge: 1}]
	z2 := byKey[FragmentKey{Series: 'z', Ordinal: 2, Charge: 1}]
	assert.InDelta(t, MassAmmonia-MassH, y2-z2, 1e-9)

	for _, series := range []byte("abcxyz") {
		for ordinal := uint16(1); ordinal <= 5; ordinal++ {
			_, ok := byKey[FragmentKey{Series: series, Ordinal: ordinal, Charge: 1}]
			assert.True(t, ok, "missing %c%d", series, ordinal)
		}
	}
}

func TestFragmentMZsErrors(t *testing.T) {
	calc := NewCalculator(nil)

	_, err := calc.FragmentMZs("PEPXIK", 2, DefaultIonModel())
	assert.ErrorIs(t, err, ErrUnknownResidue)

	_, err = calc.FragmentMZs("PEP[", 2, DefaultIonModel())
	assert.ErrorIs(t, err, ErrMalformedPeptide)
}

func TestIonModelValidate(t *testing.T) {
	tests := []struct {
		name    string
		model   IonModel
		wantErr bool
	}{
		{name: "default", model: DefaultIonModel()},
		{name: "empty series", model: IonModel{MaxCharge: 1}, wantErr: true},
		{name: "unknown series", model: IonModel{Series: "bq", MaxCharge: 1}, wantErr: true},
		{name: "negative skip", model: IonModel{Series: "y", SkipN: -1, MaxCharge: 1}, wantErr: true},
		{name: "zero charge", model: IonModel{Series: "y"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.model.Validate()
			if tt.wantErr {
				var cfgErr *ConfigurationError
				assert.ErrorAs(t, err, &cfgErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
