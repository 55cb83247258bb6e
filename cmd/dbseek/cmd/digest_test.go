package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/DBSeek/pkg/digest"
	"github.com/ChrisMcGann/DBSeek/pkg/fasta"
	"github.com/ChrisMcGann/DBSeek/pkg/protein"
)

func peptideTable(t *testing.T, withDecoys bool) []string {
	t.Helper()
	index, err := protein.NewNmerIndex(4, []fasta.Protein{
		{ID: 0, Description: "sp|P00001|ONE", Sequence: "MKPEPTIDEPINKR"},
		{ID: 1, Description: "sp|P00002|TWO", Sequence: "PEPTIDEPINKAAK"},
	})
	require.NoError(t, err)
	pep, err := digest.WholeSequence("PEPTIDEPINK", digest.Target)
	require.NoError(t, err)

	var buf bytes.Buffer
	rows, err := writePeptideTable(context.Background(), &buf, []digest.CandidateSlice{pep}, index, withDecoys)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, rows+1)
	return lines
}

func TestWritePeptideTable(t *testing.T) {
	lines := peptideTable(t, false)
	assert.Equal(t, []string{
		"peptide\tlength\tlabel\tproteins",
		"PEPTIDEPINK\t11\tTarget\tP00001;P00002",
	}, lines)
}

func TestWritePeptideTableDecoysListNoProteins(t *testing.T) {
	lines := peptideTable(t, true)
	require.Len(t, lines, 3)
	assert.Equal(t, "PEPTIDEPINK\t11\tTarget\tP00001;P00002", lines[1])
	assert.Equal(t, "PNIPEDITPEK\t11\tDecoy\t", lines[2])
}

func TestWritePeptideTableCancelled(t *testing.T) {
	index, err := protein.NewNmerIndex(4, []fasta.Protein{{Description: "P1", Sequence: "PEPTIDEK"}})
	require.NoError(t, err)
	pep, err := digest.WholeSequence("PEPTIDEK", digest.Target)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = writePeptideTable(ctx, &bytes.Buffer{}, []digest.CandidateSlice{pep}, index, false)
	assert.ErrorIs(t, err, context.Canceled)
}
