package library

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/DBSeek/pkg/batch"
	"github.com/ChrisMcGann/DBSeek/pkg/core"
	"github.com/ChrisMcGann/DBSeek/pkg/digest"
)

const sampleArray = `[
    {
        "precursor": {
            "sequence": "PEPTIDEPINK",
            "charge": 2,
            "decoy": false
        },
        "elution_group": {
            "id": 0,
            "precursor_mzs": [1810.917339999999, 1810.917339999999],
            "fragment_mzs": {"a1": 123.0, "b1": 123.0, "c1^2": 123.0},
            "precursor_charge": 2,
            "mobility": 0.8,
            "rt_seconds": 0.0,
            "decoy": false,
            "expected_precursor_intensity": [1.0, 1.0],
            "expected_fragment_intensity": {"a1": 1.0, "b1": 1.0, "c1^2": 1.0}
        }
    }
]`

func ndjsonRecord(seq string, charge int, decoy bool, id int) string {
	d := "false"
	if decoy {
		d = "true"
	}
	return `{"precursor":{"sequence":"` + seq + `","charge":` + strconv.Itoa(charge) + `,"decoy":` + d + `},` +
		`"elution_group":{"id":` + strconv.Itoa(id) + `,"precursor_mzs":[499.5,500.0,500.5,501.0],` +
		`"fragment_mzs":{"y3":400.2,"b2^2":300.1},"precursor_charge":` + strconv.Itoa(charge) +
		`,"mobility":0.9,"rt_seconds":0.0,"decoy":` + d + `}}`
}

func TestLoadArraySample(t *testing.T) {
	lib, err := Load(strings.NewReader(sampleArray), LoadOptions{})
	require.NoError(t, err)

	require.Equal(t, 1, lib.Len())
	require.Len(t, lib.Sources, 1)
	require.Len(t, lib.Charges, 1)

	assert.Equal(t, digest.Target, lib.Sources[0].Marking())
	assert.Equal(t, 11, lib.Sources[0].Len())
	assert.Equal(t, uint8(2), lib.Charges[0])

	q := lib.Queries[0]
	assert.Len(t, q.FragmentMZs, 3)
	assert.InDelta(t, 1810.91734, q.MonoisotopicMZ(), 1e-6)
	assert.InDelta(t, 1810.91734-core.NeutronMass/2, q.PrecursorMZs[0], 1e-9)
	assert.Equal(t, [core.IsotopeSlots]float64{1, 1, core.IsotopeFloor, core.IsotopeFloor}, q.ExpectedPrecursorIntensity)
	assert.Equal(t, 1.0, q.ExpectedFragmentIntensity[core.FragmentKey{Series: 'c', Ordinal: 1, Charge: 2}])
}

func TestLoadNDJSON(t *testing.T) {
	input := ndjsonRecord("PEPTIDEK", 2, false, 0) + "\n\n" + ndjsonRecord("PEDITPEK", 3, true, 1) + "\n"
	lib, err := Load(strings.NewReader(input), LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, lib.Len())

	assert.Equal(t, digest.Target, lib.Sources[0].Marking())
	assert.Equal(t, digest.ReversedDecoy, lib.Sources[1].Marking())
	// stored decoys are already reversed
	assert.Equal(t, "PEDITPEK", lib.Sources[1].String())
	assert.Equal(t, []uint8{2, 3}, lib.Charges)
	assert.Equal(t, 500.0, lib.Queries[0].MonoisotopicMZ())

	// missing intensities default to 1
	for _, v := range lib.Queries[1].ExpectedFragmentIntensity {
		assert.Equal(t, 1.0, v)
	}
}

func TestLoadMalformedFails(t *testing.T) {
	input := ndjsonRecord("PEPTIDEK", 2, false, 0) + "\n\n{\"precursor\": oops\n"
	_, err := Load(strings.NewReader(input), LoadOptions{OnMalformed: core.PolicyFail})

	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, 3, lerr.Line)
	assert.Equal(t, 2, lerr.Record)
	assert.Contains(t, err.Error(), "line 3")
}

func TestLoadMalformedSkips(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	input := strings.Join([]string{
		ndjsonRecord("PEPTIDEK", 2, false, 0),
		"not json",
		ndjsonRecord("PEPTIDEK", 0, false, 1),
		ndjsonRecord("PEDITPEK", 2, false, 2),
	}, "\n")
	lib, err := Load(strings.NewReader(input), LoadOptions{OnMalformed: core.PolicySkip, Logger: logger})
	require.NoError(t, err)

	assert.Equal(t, 2, lib.Len())
	assert.Equal(t, 2, lib.Skipped)
	assert.Contains(t, logs.String(), "skipping malformed library record")
	assert.Contains(t, logs.String(), "line=3")
}

func TestLoadArraySyntaxErrorIsFatal(t *testing.T) {
	input := "[" + ndjsonRecord("PEPTIDEK", 2, false, 0) + ", {oops}]"
	_, err := Load(strings.NewReader(input), LoadOptions{OnMalformed: core.PolicySkip})
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, 2, lerr.Record)
}

func TestLoadEmpty(t *testing.T) {
	for _, input := range []string{"", "   \n\n", "[]", "[\n]"} {
		_, err := Load(strings.NewReader(input), LoadOptions{})
		assert.ErrorIs(t, err, ErrEmptyLibrary, "input %q", input)
	}

	// everything skipped is still empty
	_, err := Load(strings.NewReader("nope\n"), LoadOptions{OnMalformed: core.PolicySkip})
	assert.ErrorIs(t, err, ErrEmptyLibrary)
}

func TestLoadFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.ndjson")
	require.NoError(t, os.WriteFile(path, []byte("\n  \n"), 0o644))

	_, err := LoadFile(path, LoadOptions{})
	assert.NotErrorIs(t, err, io.EOF)
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, path, lerr.Path)
	assert.ErrorIs(t, err, ErrEmptyLibrary)
}

func TestEntryQueryErrors(t *testing.T) {
	base := func() Entry {
		return Entry{
			Precursor: Precursor{Sequence: "PEPTIDEK", Charge: 2},
			ElutionGroup: ElutionGroup{
				PrecursorMZs: []float64{500},
				FragmentMZs:  map[core.FragmentKey]float64{{Series: 'y', Ordinal: 3, Charge: 1}: 400},
			},
		}
	}

	_, err := base().Query()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Entry)
	}{
		{"zero charge", func(e *Entry) { e.Precursor.Charge = 0 }},
		{"charge mismatch", func(e *Entry) { e.ElutionGroup.PrecursorCharge = 3 }},
		{"no precursor mzs", func(e *Entry) { e.ElutionGroup.PrecursorMZs = nil }},
		{"no fragments", func(e *Entry) { e.ElutionGroup.FragmentMZs = nil }},
		{"negative fragment", func(e *Entry) {
			e.ElutionGroup.FragmentMZs[core.FragmentKey{Series: 'b', Ordinal: 2, Charge: 1}] = -1
		}},
		{"orphan intensity", func(e *Entry) {
			e.ElutionGroup.ExpectedFragmentIntensity = map[core.FragmentKey]float64{{Series: 'b', Ordinal: 9, Charge: 1}: 1}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base()
			tt.mutate(&e)
			_, err := e.Query()
			assert.ErrorIs(t, err, ErrInvalidEntry)
		})
	}

	e := base()
	e.Precursor.Sequence = ""
	_, err = e.Candidate()
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func sampleQuery(id uint64, charge uint8) core.ScoringQuery {
	y3 := core.FragmentKey{Series: 'y', Ordinal: 3, Charge: 1}
	b4 := core.FragmentKey{Series: 'b', Ordinal: 4, Charge: 1}
	a2 := core.FragmentKey{Series: 'a', Ordinal: 2, Charge: 1}
	y5 := core.FragmentKey{Series: 'y', Ordinal: 5, Charge: 2}
	return core.ScoringQuery{
		ID:                         id,
		Charge:                     charge,
		PrecursorMZs:               core.IsotopeEnvelope(612.3, int(charge)),
		FragmentMZs:                map[core.FragmentKey]float64{y3: 361.2, b4: 425.2, a2: 199.1, y5: 301.6},
		ExpectedPrecursorIntensity: [core.IsotopeSlots]float64{core.IsotopeFloor, 1, 0.55, 0.18},
		ExpectedFragmentIntensity:  map[core.FragmentKey]float64{y3: 1, b4: 0.5, a2: 0.01, y5: 1},
		Mobility:                   0.91,
	}
}

func TestWriterRoundTrip(t *testing.T) {
	target, err := digest.WholeSequence("PEPTIDEPINK", digest.Target)
	require.NoError(t, err)
	decoy := target.AsDecoy()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(NewEntry(target, sampleQuery(0, 2))))
	require.NoError(t, w.Write(NewEntry(decoy, sampleQuery(1, 3))))
	require.NoError(t, w.Flush())
	assert.Equal(t, 2, w.Count())
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), `"b4":425.2`)

	lib, err := Load(&buf, LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, lib.Len())

	assert.Equal(t, sampleQuery(0, 2), lib.Queries[0])
	assert.Equal(t, sampleQuery(1, 3), lib.Queries[1])
	assert.Equal(t, "PEPTIDEPINK", lib.Sources[0].String())
	assert.Equal(t, "PNIPEDITPEK", lib.Sources[1].String())
	assert.Equal(t, digest.ReversedDecoy, lib.Sources[1].Marking())
}

func TestWriteArrayLoads(t *testing.T) {
	lib, err := Load(strings.NewReader(ndjsonRecord("PEPTIDEK", 2, false, 7)), LoadOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteArray(&buf, lib.Entries()))
	assert.True(t, strings.HasPrefix(buf.String(), "["))

	again, err := Load(&buf, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, lib.Queries, again.Queries)
}

func TestPrune(t *testing.T) {
	opts := DefaultBuildOptions()
	require.NoError(t, opts.Validate())

	q := sampleQuery(0, 2)
	pruned, ok := opts.Prune(q)
	require.True(t, ok)
	assert.Len(t, pruned.FragmentMZs, 3)
	assert.NotContains(t, pruned.FragmentMZs, core.FragmentKey{Series: 'a', Ordinal: 2, Charge: 1})
	// input untouched
	assert.Len(t, q.FragmentMZs, 4)

	strict := BuildOptions{MinFragments: 4, MinRelativeIntensity: 0.02}
	_, ok = strict.Prune(q)
	assert.False(t, ok)

	assert.Error(t, BuildOptions{MinFragments: 0}.Validate())
	assert.Error(t, BuildOptions{MinFragments: 3, MinRelativeIntensity: 1}.Validate())
}

func TestWriteBatch(t *testing.T) {
	a, _ := digest.WholeSequence("PEPTIDEK", digest.Target)
	b, _ := digest.WholeSequence("PEDITPEK", digest.Target)
	sparse := sampleQuery(1, 2)
	sparse.FragmentMZs = map[core.FragmentKey]float64{{Series: 'y', Ordinal: 3, Charge: 1}: 361.2}
	sparse.ExpectedFragmentIntensity = map[core.FragmentKey]float64{{Series: 'y', Ordinal: 3, Charge: 1}: 1}

	bt := &batch.Batch{
		Sources: []digest.CandidateSlice{a, b},
		Charges: []uint8{2, 2},
		Queries: []core.ScoringQuery{sampleQuery(0, 2), sparse},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	n, err := w.WriteBatch(bt, DefaultBuildOptions())
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	assert.Equal(t, 1, n)
	assert.Contains(t, buf.String(), "PEPTIDEK")
	assert.NotContains(t, buf.String(), "PEDITPEK")
}

func TestLibrarySource(t *testing.T) {
	var lines []string
	for i := 0; i < 7; i++ {
		lines = append(lines, ndjsonRecord("PEPTIDEK", 2, i%2 == 1, i))
	}
	lib, err := Load(strings.NewReader(strings.Join(lines, "\n")), LoadOptions{})
	require.NoError(t, err)

	src, err := lib.Source(3)
	require.NoError(t, err)
	assert.Equal(t, 3, src.Len())

	total := 0
	for {
		b, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		total += b.Len()
	}
	assert.Equal(t, 7, total)
}

func TestSummarize(t *testing.T) {
	input := strings.Join([]string{
		ndjsonRecord("PEPTIDEK", 2, false, 0),
		ndjsonRecord("PEDITPEK", 2, true, 1),
		ndjsonRecord("PEPTIDEK", 3, false, 1),
	}, "\n")
	lib, err := Load(strings.NewReader(input), LoadOptions{})
	require.NoError(t, err)

	s := Summarize(lib, core.MZWindow{Min: 400, Max: 1000}, core.MZWindow{Min: 350, Max: 2000})
	assert.Equal(t, 3, s.Entries)
	assert.Equal(t, 2, s.Targets)
	assert.Equal(t, 1, s.Decoys)
	assert.Equal(t, map[uint8]int{2: 2, 3: 1}, s.Charges)
	assert.Equal(t, 6, s.Fragments)
	assert.Equal(t, 2.0, s.MeanFragments())
	assert.Equal(t, Range{Min: 500, Max: 500}, s.PrecursorMZ)
	assert.Equal(t, Range{Min: 300.1, Max: 400.2}, s.FragmentMZ)
	// b2^2 at 300.1 is below the fragment window
	assert.Equal(t, 3, s.OutsideWindows)
	assert.Equal(t, 1, s.DuplicateIDs)

	var out bytes.Buffer
	require.NoError(t, s.Write(&out))
	assert.Contains(t, out.String(), "3 (2 targets, 1 decoys)")
	assert.Contains(t, out.String(), "charge 3")
}

func TestCollector(t *testing.T) {
	target, err := digest.WholeSequence("PEPTIDEK", digest.Target)
	require.NoError(t, err)
	good := NewEntry(target, sampleQuery(0, 2))
	bad := good
	bad.Precursor.Charge = 0

	var logs bytes.Buffer
	c := NewCollector(LoadOptions{OnMalformed: core.PolicySkip, Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	require.NoError(t, c.Add(1, good))
	require.NoError(t, c.Add(2, bad))
	require.NoError(t, c.Reject(3, 0, errors.New("unreadable row")))

	lib, err := c.Library()
	require.NoError(t, err)
	assert.Equal(t, 1, lib.Len())
	assert.Equal(t, 2, lib.Skipped)
	assert.Contains(t, logs.String(), "unreadable row")

	strict := NewCollector(LoadOptions{})
	err = strict.Add(4, bad)
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, 4, lerr.Record)
	assert.ErrorIs(t, err, ErrInvalidEntry)

	_, err = NewCollector(LoadOptions{}).Library()
	assert.ErrorIs(t, err, ErrEmptyLibrary)
}
