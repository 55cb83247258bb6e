package protein

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/DBSeek/pkg/fasta"
)

func proteins() []fasta.Protein {
	return []fasta.Protein{
		{ID: 0, Description: "sp|P00001|ONE", Sequence: "PEPTIDEPINKPEPTIDEPINK"},
		{ID: 1, Description: "sp|P00002|TWO", Sequence: "FOOOPKPEPTIDEPLNK"},
		{ID: 2, Description: "THREE", Sequence: "FOPPEPTIDEPINK"},
	}
}

func TestLookup(t *testing.T) {
	idx, err := NewNmerIndex(3, proteins())
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	assert.Equal(t, []int{0, 2}, idx.Lookup("PEPTIDEPINK"))
	assert.Equal(t, []int{1}, idx.Lookup("PEPTIDEPLNK"))
	assert.Equal(t, []int{0, 1, 2}, idx.Lookup("PEPTIDE"))
	assert.Nil(t, idx.Lookup("NOTTHERE"))
	assert.Nil(t, idx.Lookup("PE"))
}

func TestLookupRequiresFullMatch(t *testing.T) {
	idx, err := NewNmerIndex(2, []fasta.Protein{
		{Sequence: "FOP"},
		{Sequence: "FOOPP"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, idx.Lookup("FOOP"))
	// FOP shares every 2-mer with FOOPP but is only contained in the first
	assert.Equal(t, []int{0}, idx.Lookup("FOP"))
}

func TestPostingsHaveNoRepeats(t *testing.T) {
	idx, err := NewNmerIndex(3, proteins())
	require.NoError(t, err)
	for key, ids := range idx.index {
		for i := 1; i < len(ids); i++ {
			assert.Less(t, ids[i-1], ids[i], "posting for %s", key)
		}
	}
}

func TestAccessions(t *testing.T) {
	idx, err := NewNmerIndex(4, proteins())
	require.NoError(t, err)
	assert.Equal(t, []string{"P00001", "THREE"}, idx.Accessions("PEPTIDEPINK"))
	assert.Empty(t, idx.Accessions("WWWW"))
	assert.Equal(t, "P00002", idx.Protein(1).Accession())
}

func TestNewNmerIndexInvalid(t *testing.T) {
	_, err := NewNmerIndex(0, nil)
	assert.Error(t, err)
}
