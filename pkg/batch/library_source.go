package batch

import (
	"context"
	"fmt"
	"io"

	"github.com/ChrisMcGann/DBSeek/pkg/core"
	"github.com/ChrisMcGann/DBSeek/pkg/digest"
)

// LibrarySource slices precomputed (source, charge, query) triples into
// fixed windows. There is no conversion step and no decoy synthesis.
type LibrarySource struct {
	sources   []digest.CandidateSlice
	charges   []uint8
	queries   []core.ScoringQuery
	chunkSize int

	step  int
	total int
}

// NewLibrarySource checks that the three slices line up.
func NewLibrarySource(sources []digest.CandidateSlice, charges []uint8, queries []core.ScoringQuery, chunkSize int) (*LibrarySource, error) {
	if err := validateChunkSize(chunkSize); err != nil {
		return nil, err
	}
	if len(sources) != len(queries) || len(charges) != len(queries) {
		return nil, fmt.Errorf("library source: mismatched lengths sources=%d charges=%d queries=%d",
			len(sources), len(charges), len(queries))
	}
	return &LibrarySource{
		sources:   sources,
		charges:   charges,
		queries:   queries,
		chunkSize: chunkSize,
		total:     numWindows(len(queries), chunkSize),
	}, nil
}

// Len returns the number of remaining steps.
func (s *LibrarySource) Len() int {
	return s.total - s.step
}

// Next returns the next window, or io.EOF.
func (s *LibrarySource) Next(ctx context.Context) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.step >= s.total {
		return nil, io.EOF
	}
	start := s.step * s.chunkSize
	end := min(start+s.chunkSize, len(s.queries))
	w := Window{Step: s.step, Start: start, End: end, Marking: digest.Target}
	s.step++

	batchesProduced.WithLabelValues("library", "Mixed").Inc()
	return &Batch{
		Window:  w,
		Sources: s.sources[start:end],
		Charges: s.charges[start:end],
		Queries: s.queries[start:end],
	}, nil
}
