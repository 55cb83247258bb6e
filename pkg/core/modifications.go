package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ModDatabase maps modification names to mass shifts. Safe for concurrent reads.
type ModDatabase struct {
	mu   sync.RWMutex
	mods map[string]float64
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{
		mods: make(map[string]float64),
	}
}

// LoadFromCSV loads modifications from CSV (header line, then name,massshift[,aa])
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	lineNum := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading CSV: %w", err)
		}
		lineNum++
		if lineNum == 1 {
			continue
		}
		if len(rec) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", lineNum)
		}

		name := strings.TrimSpace(rec[0])
		massStr := strings.TrimSpace(rec[1])
		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}
		db.Add(name, mass)
	}
}

// GetMass returns the mass shift for a modification name
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	mass, ok := db.mods[name]
	return mass, ok
}

// Add adds or updates a modification
func (db *ModDatabase) Add(name string, mass float64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.mods[name] = mass
}

// Len returns the number of known modifications.
func (db *ModDatabase) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.mods)
}

// resolve turns the text inside a bracket into a mass shift. Signed or
// unsigned numbers are taken literally, anything else is looked up by name.
func (db *ModDatabase) resolve(token string) (float64, error) {
	token = strings.TrimSpace(token)
	if mass, err := strconv.ParseFloat(token, 64); err == nil {
		return mass, nil
	}
	if mass, ok := db.GetMass(token); ok {
		return mass, nil
	}
	return 0, fmt.Errorf("unknown modification '%s'", token)
}

// ParseModString parses "57.021464@2;15.994915@8" or "Carbamidomethyl@C2;Oxidation@M8"
func (db *ModDatabase) ParseModString(modStr string) ([]Modification, error) {
	if modStr == "" {
		return nil, nil
	}

	var mods []Modification
	for _, part := range strings.Split(modStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		nameOrMass, posStr, ok := strings.Cut(part, "@")
		if !ok {
			return nil, fmt.Errorf("invalid modification format '%s', expected 'name@position' or 'mass@position'", part)
		}
		mass, err := db.resolve(nameOrMass)
		if err != nil {
			return nil, err
		}
		position, err := parsePosition(posStr)
		if err != nil {
			return nil, fmt.Errorf("invalid position '%s': %w", posStr, err)
		}

		mods = append(mods, Modification{
			Mass:     mass,
			Position: position,
			Name:     strings.TrimSpace(nameOrMass),
		})
	}
	return mods, nil
}

// parsePosition parses "2", "C2" (1-based) or "-1"/"R-1" (N-terminal).
func parsePosition(posStr string) (int, error) {
	posStr = strings.TrimSpace(posStr)
	if strings.HasSuffix(posStr, "-1") {
		return -1, nil
	}

	posStr = strings.TrimLeft(posStr, "ACDEFGHIKLMNPQRSTVWY")
	pos, err := strconv.Atoi(posStr)
	if err != nil {
		return 0, fmt.Errorf("invalid position number: %w", err)
	}
	if pos > 0 {
		pos--
	}
	return pos, nil
}

// Peptide is a parsed, possibly modified, peptide.
type Peptide struct {
	Residues []byte
	Mods     []float64 // per-residue mass shift, same length as Residues
	NTerm    float64
	CTerm    float64
}

// NewPeptide builds a peptide from a bare sequence and positional modifications.
// Position -1 is the N-terminus; positions at or past the end the C-terminus.
func NewPeptide(sequence string, modifications []Modification) Peptide {
	p := Peptide{
		Residues: []byte(sequence),
		Mods:     make([]float64, len(sequence)),
	}
	for _, mod := range modifications {
		switch {
		case mod.Position < 0:
			p.NTerm += mod.Mass
		case mod.Position >= len(sequence):
			p.CTerm += mod.Mass
		default:
			p.Mods[mod.Position] += mod.Mass
		}
	}
	return p
}

// Len returns the number of residues.
func (p Peptide) Len() int {
	return len(p.Residues)
}

// Stripped returns the residues without modifications.
func (p Peptide) Stripped() string {
	return string(p.Residues)
}

// ProForma renders the peptide with mass-delta brackets, e.g.
// "[+42.0106]-PEPTM[+15.9949]IDE". ParsePeptide reads it back.
func (p Peptide) ProForma() string {
	var b strings.Builder
	if p.NTerm != 0 {
		fmt.Fprintf(&b, "[%+.4f]-", p.NTerm)
	}
	for i, aa := range p.Residues {
		b.WriteByte(aa)
		if p.Mods[i] != 0 {
			fmt.Fprintf(&b, "[%+.4f]", p.Mods[i])
		}
	}
	if p.CTerm != 0 {
		fmt.Fprintf(&b, "-[%+.4f]", p.CTerm)
	}
	return b.String()
}

// ParsePeptide parses a ProForma-style peptide: upper-case residues,
// bracketed modifications after a residue ("M[Oxidation]", "C[+57.0215]"),
// an N-terminal "[Acetyl]-" prefix, a C-terminal "-[Amidated]" suffix and an
// optional "/charge" suffix, which is ignored.
func (db *ModDatabase) ParsePeptide(sequence string) (Peptide, error) {
	raw := sequence
	if idx := strings.LastIndexByte(raw, '/'); idx >= 0 {
		raw = raw[:idx]
	}

	var p Peptide
	i := 0
	readBracket := func() (float64, error) {
		end := strings.IndexByte(raw[i:], ']')
		if end < 0 {
			return 0, chemistryErrorf(sequence, ErrMalformedPeptide, "unterminated modification at %d", i)
		}
		mass, err := db.resolve(raw[i+1 : i+end])
		if err != nil {
			return 0, chemistryErrorf(sequence, ErrMalformedPeptide, "%v", err)
		}
		i += end + 1
		return mass, nil
	}

	if strings.HasPrefix(raw, "[") {
		mass, err := readBracket()
		if err != nil {
			return Peptide{}, err
		}
		if i >= len(raw) || raw[i] != '-' {
			return Peptide{}, chemistryErrorf(sequence, ErrMalformedPeptide, "N-terminal modification must be followed by '-'")
		}
		i++
		p.NTerm = mass
	}

	for i < len(raw) {
		ch := raw[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
			p.Residues = append(p.Residues, ch)
			p.Mods = append(p.Mods, 0)
			i++
		case ch == '[':
			if len(p.Residues) == 0 {
				return Peptide{}, chemistryErrorf(sequence, ErrMalformedPeptide, "modification before first residue")
			}
			mass, err := readBracket()
			if err != nil {
				return Peptide{}, err
			}
			p.Mods[len(p.Mods)-1] += mass
		case ch == '-' && i+1 < len(raw) && raw[i+1] == '[':
			i++
			mass, err := readBracket()
			if err != nil {
				return Peptide{}, err
			}
			if i != len(raw) {
				return Peptide{}, chemistryErrorf(sequence, ErrMalformedPeptide, "C-terminal modification must end the sequence")
			}
			p.CTerm = mass
		default:
			return Peptide{}, chemistryErrorf(sequence, ErrMalformedPeptide, "unexpected character %q at %d", ch, i)
		}
	}

	if len(p.Residues) == 0 {
		return Peptide{}, chemistryErrorf(sequence, ErrMalformedPeptide, "no residues")
	}
	return p, nil
}

// Names returns the known modification names in sorted order.
func (db *ModDatabase) Names() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	names := make([]string, 0, len(db.mods))
	for name := range db.mods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultModDatabase returns a ModDatabase pre-loaded with common modifications
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()

	// Common modifications from unimod
	db.Add("Acetyl", 42.010565)
	db.Add("Amidated", -0.984016)
	db.Add("Biotin", 226.077598)
	db.Add("Carbamidomethyl", 57.021464)
	db.Add("Carbamyl", 43.005814)
	db.Add("Carboxymethyl", 58.005479)
	db.Add("Deamidated", 0.984016)
	db.Add("Met->Hse", -29.992806)
	db.Add("Met->Hsl", -48.003371)
	db.Add("NIPCAM", 99.068414)
	db.Add("Phospho", 79.966331)
	db.Add("Dehydrated", -18.010565)
	db.Add("Propionamide", 71.037114)
	db.Add("Pyro-carbamidomethyl", 39.994915)
	db.Add("Glu->pyro-Glu", -18.010565)
	db.Add("Gln->pyro-Glu", -17.026549)
	db.Add("Cation:Na", 21.981943)
	db.Add("Methyl", 14.01565)
	db.Add("Oxidation", 15.994915)
	db.Add("Dimethyl", 28.0313)
	db.Add("Trimethyl", 42.04695)
	db.Add("Methylthio", 45.987721)
	db.Add("Sulfo", 79.956815)
	db.Add("Hex", 162.052824)
	db.Add("Lipoyl", 188.032956)
	db.Add("HexNAc", 203.079373)
	db.Add("Farnesyl", 204.187801)
	db.Add("Myristoyl", 210.198366)
	db.Add("PyridoxalPhosphate", 229.014009)
	db.Add("Palmitoyl", 238.229666)
	db.Add("GeranylGeranyl", 272.250401)
	db.Add("Phosphopantetheine", 340.085794)
	db.Add("FAD", 783.141486)
	db.Add("Guanidinyl", 42.021798)
	db.Add("HNE", 156.11503)
	db.Add("Glucuronyl", 176.032088)
	db.Add("Glutathione", 305.068156)
	db.Add("Propionyl", 56.026215)
	db.Add("TMT", 229.162932)
	db.Add("TMTPro", 304.207146)
	db.Add("TMT_Pro", 304.207146)
	db.Add("TMT6plex", 229.162932)
	db.Add("TMT10plex", 229.162932)
	db.Add("TMT11plex", 229.162932)
	db.Add("TMT16plex", 304.207146)
	db.Add("iTRAQ4plex", 144.102063)
	db.Add("iTRAQ8plex", 304.205360)

	return db
}
