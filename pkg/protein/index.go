// Package protein maps peptides back to the proteins that contain them.
package protein

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ChrisMcGann/DBSeek/pkg/fasta"
)

// DefaultNmerSize is the window length used by the digest command.
const DefaultNmerSize = 4

// NmerIndex indexes every n-residue window of a protein set.
type NmerIndex struct {
	n        int
	index    map[string][]int
	proteins []fasta.Protein
}

// NewNmerIndex builds an index over proteins. Posting lists hold positions
// in proteins, ascending and without repeats.
func NewNmerIndex(n int, proteins []fasta.Protein) (*NmerIndex, error) {
	if n < 1 {
		return nil, fmt.Errorf("n-mer size must be at least 1, got %d", n)
	}
	start := time.Now()

	idx := &NmerIndex{n: n, index: make(map[string][]int), proteins: proteins}
	for i, p := range proteins {
		seq := p.Sequence
		for j := 0; j+n <= len(seq); j++ {
			key := seq[j : j+n]
			ids := idx.index[key]
			if len(ids) > 0 && ids[len(ids)-1] == i {
				continue
			}
			idx.index[key] = append(ids, i)
		}
	}

	slog.Debug("built n-mer index", "proteins", len(proteins), "nmers", len(idx.index), "elapsed", time.Since(start))
	return idx, nil
}

// Len returns the number of indexed proteins.
func (x *NmerIndex) Len() int {
	return len(x.proteins)
}

// Protein returns the protein at position i.
func (x *NmerIndex) Protein(i int) fasta.Protein {
	return x.proteins[i]
}

// Lookup returns the positions of the proteins containing peptide, in
// ascending order. Peptides shorter than the n-mer size match nothing.
func (x *NmerIndex) Lookup(peptide string) []int {
	if len(peptide) < x.n {
		return nil
	}
	candidates := slices.Clone(x.index[peptide[:x.n]])
	for j := 1; j+x.n <= len(peptide) && len(candidates) > 0; j++ {
		posting, ok := x.index[peptide[j:j+x.n]]
		if !ok {
			return nil
		}
		candidates = intersect(candidates, posting)
	}

	// shared n-mers do not imply the whole peptide is present
	out := candidates[:0]
	for _, id := range candidates {
		if strings.Contains(x.proteins[id].Sequence, peptide) {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Accessions returns the accessions of the proteins containing peptide.
func (x *NmerIndex) Accessions(peptide string) []string {
	ids := x.Lookup(peptide)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = x.proteins[id].Accession()
	}
	return out
}

// intersect keeps the elements of a that are in b. Both are sorted.
func intersect(a, b []int) []int {
	out := a[:0]
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
