package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromCSV(t *testing.T) {
	csvData := `name,mass,aa
Custom,100.5,K
 Other , -12.25
`
	db := NewModDatabase()
	require.NoError(t, db.LoadFromCSV(strings.NewReader(csvData)))
	assert.Equal(t, 2, db.Len())

	mass, ok := db.GetMass("Custom")
	require.True(t, ok)
	assert.Equal(t, 100.5, mass)

	mass, ok = db.GetMass("Other")
	require.True(t, ok)
	assert.Equal(t, -12.25, mass)
}

func TestLoadFromCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "single field", data: "name,mass\nBroken\n"},
		{name: "bad mass", data: "name,mass\nBroken,abc\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModDatabase().LoadFromCSV(strings.NewReader(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestParseModString(t *testing.T) {
	db := DefaultModDatabase()

	tests := []struct {
		name    string
		modStr  string
		want    []Modification
		wantErr bool
	}{
		{name: "empty", modStr: "", want: nil},
		{
			name:   "numeric",
			modStr: "57.021464@2;15.994915@8",
			want: []Modification{
				{Mass: 57.021464, Position: 1, Name: "57.021464"},
				{Mass: 15.994915, Position: 7, Name: "15.994915"},
			},
		},
		{
			name:   "named with residue",
			modStr: "Carbamidomethyl@C2",
			want:   []Modification{{Mass: 57.021464, Position: 1, Name: "Carbamidomethyl"}},
		},
		{
			name:   "n-terminal",
			modStr: "TMT_Pro@R-1",
			want:   []Modification{{Mass: 304.207146, Position: -1, Name: "TMT_Pro"}},
		},
		{name: "missing at", modStr: "Oxidation", wantErr: true},
		{name: "unknown name", modStr: "Nope@3", wantErr: true},
		{name: "bad position", modStr: "Oxidation@M", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ParseModString(tt.modStr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePeptideRoundTrip(t *testing.T) {
	db := DefaultModDatabase()

	pep, err := db.ParsePeptide("[Acetyl]-PEPTM[Oxidation]IDEK-[Amidated]")
	require.NoError(t, err)
	assert.Equal(t, "PEPTMIDEK", pep.Stripped())
	assert.InDelta(t, 42.010565, pep.NTerm, 1e-9)
	assert.InDelta(t, -0.984016, pep.CTerm, 1e-9)
	assert.InDelta(t, 15.994915, pep.Mods[4], 1e-9)

	again, err := db.ParsePeptide(pep.ProForma())
	require.NoError(t, err)
	assert.Equal(t, pep.Residues, again.Residues)
	assert.InDelta(t, pep.NTerm, again.NTerm, 1e-4)
	assert.InDelta(t, pep.CTerm, again.CTerm, 1e-4)
	assert.InDelta(t, pep.Mods[4], again.Mods[4], 1e-4)
}

func TestParsePeptideMalformed(t *testing.T) {
	db := DefaultModDatabase()

	for _, seq := range []string{
		"[Acetyl]PEPTIDE",
		"[+1.0]",
		"PEP-[Amidated]TIDE",
		"PEP TIDE",
	} {
		t.Run(seq, func(t *testing.T) {
			_, err := db.ParsePeptide(seq)
			assert.ErrorIs(t, err, ErrMalformedPeptide)
		})
	}
}

func TestModDatabaseNames(t *testing.T) {
	db := NewModDatabase()
	db.Add("Zeta", 1)
	db.Add("Alpha", 2)
	assert.Equal(t, []string{"Alpha", "Zeta"}, db.Names())
}
