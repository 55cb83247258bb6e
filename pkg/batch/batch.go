// Package batch streams scoring queries in bounded, exact-count chunks.
//
// Two producers implement Source: DigestSource converts digested
// candidates on demand, LibrarySource slices a precomputed library.
// Consumers should depend only on Source.
package batch

import (
	"context"
	"fmt"

	"github.com/ChrisMcGann/DBSeek/pkg/core"
	"github.com/ChrisMcGann/DBSeek/pkg/digest"
)

// Source yields batches until it returns io.EOF. Len is the exact number
// of remaining Next calls before io.EOF, including steps that fail with
// *EmptyBatchError. A Source is single-pass and not safe for concurrent use.
type Source interface {
	Len() int
	Next(ctx context.Context) (*Batch, error)
}

// Window identifies the slice of the source a batch was built from.
// Library windows are marked Target even though they may hold decoys.
type Window struct {
	Step    int
	Start   int
	End     int
	Marking digest.Marking
}

// Len returns the number of source elements in the window.
func (w Window) Len() int {
	return w.End - w.Start
}

func (w Window) String() string {
	return fmt.Sprintf("step %d [%d,%d) %s", w.Step, w.Start, w.End, w.Marking)
}

// Batch holds parallel slices: Sources[i] produced Queries[i] at Charges[i].
type Batch struct {
	Window  Window
	Sources []digest.CandidateSlice
	Charges []uint8
	Queries []core.ScoringQuery
}

// Len returns the number of queries.
func (b *Batch) Len() int {
	return len(b.Queries)
}

// Validate checks that the three slices line up.
func (b *Batch) Validate() error {
	if len(b.Sources) != len(b.Queries) || len(b.Charges) != len(b.Queries) {
		return fmt.Errorf("batch %s: mismatched lengths sources=%d charges=%d queries=%d",
			b.Window, len(b.Sources), len(b.Charges), len(b.Queries))
	}
	for i, q := range b.Queries {
		if q.Charge != b.Charges[i] {
			return fmt.Errorf("batch %s: query %d has charge %d, expected %d", b.Window, i, q.Charge, b.Charges[i])
		}
	}
	return nil
}

// EmptyBatchError reports a window that converted to zero queries. The
// step is consumed; the caller decides whether to stop or continue.
type EmptyBatchError struct {
	Window Window
}

func (e *EmptyBatchError) Error() string {
	return fmt.Sprintf("batch %s produced no queries", e.Window)
}

func numWindows(n, chunkSize int) int {
	return (n + chunkSize - 1) / chunkSize
}

func validateChunkSize(chunkSize int) error {
	if chunkSize < 1 {
		return &core.ConfigurationError{Field: "batching.chunk_size", Message: fmt.Sprintf("must be at least 1, got %d", chunkSize)}
	}
	return nil
}
