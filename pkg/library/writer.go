package library

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"maps"

	"github.com/ChrisMcGann/DBSeek/pkg/batch"
	"github.com/ChrisMcGann/DBSeek/pkg/core"
)

// BuildOptions prunes queries before they are written.
type BuildOptions struct {
	// MinFragments drops queries left with fewer fragments.
	MinFragments int `mapstructure:"min_fragments" yaml:"min_fragments"`
	// MinRelativeIntensity drops fragments whose expected intensity is at
	// or below this fraction of the query's most intense fragment.
	MinRelativeIntensity float64 `mapstructure:"min_relative_intensity" yaml:"min_relative_intensity"`
}

// DefaultBuildOptions keeps queries with at least 3 fragments above 2% of
// the base fragment.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{MinFragments: 3, MinRelativeIntensity: 0.02}
}

// Validate checks the options.
func (o BuildOptions) Validate() error {
	if o.MinFragments < 1 {
		return &core.ConfigurationError{Field: "build.min_fragments", Message: fmt.Sprintf("must be at least 1, got %d", o.MinFragments)}
	}
	if o.MinRelativeIntensity < 0 || o.MinRelativeIntensity >= 1 {
		return &core.ConfigurationError{Field: "build.min_relative_intensity", Message: fmt.Sprintf("must be in [0, 1), got %g", o.MinRelativeIntensity)}
	}
	return nil
}

// Prune returns a copy of q without weak fragments, and false if too few
// fragments remain. The input query is not modified.
func (o BuildOptions) Prune(q core.ScoringQuery) (core.ScoringQuery, bool) {
	maxIntensity := 0.0
	for k := range q.FragmentMZs {
		maxIntensity = max(maxIntensity, q.ExpectedFragmentIntensity[k])
	}
	cutoff := maxIntensity * o.MinRelativeIntensity

	out := q
	out.FragmentMZs = make(map[core.FragmentKey]float64, len(q.FragmentMZs))
	out.ExpectedFragmentIntensity = make(map[core.FragmentKey]float64, len(q.FragmentMZs))
	for k, mz := range q.FragmentMZs {
		intensity := q.ExpectedFragmentIntensity[k]
		if intensity <= cutoff {
			continue
		}
		out.FragmentMZs[k] = mz
		out.ExpectedFragmentIntensity[k] = intensity
	}
	return out, len(out.FragmentMZs) >= o.MinFragments
}

// Sink receives library entries. Writer and the SQLite store implement it.
type Sink interface {
	Write(e Entry) error
}

// WriteBatch writes the queries of b that survive opts to s and returns
// how many were written.
func WriteBatch(s Sink, b *batch.Batch, opts BuildOptions) (int, error) {
	written := 0
	for i, q := range b.Queries {
		pruned, ok := opts.Prune(q)
		if !ok {
			continue
		}
		if err := s.Write(NewEntry(b.Sources[i], pruned)); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// Writer writes entries as newline-delimited JSON.
type Writer struct {
	bw    *bufio.Writer
	enc   *json.Encoder
	count int
}

// NewWriter returns a Writer on w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	bw := bufio.NewWriterSize(w, 256*1024)
	return &Writer{bw: bw, enc: json.NewEncoder(bw)}
}

// Write appends one entry.
func (w *Writer) Write(e Entry) error {
	if err := w.enc.Encode(e); err != nil {
		return fmt.Errorf("failed to write entry %d: %w", e.ElutionGroup.ID, err)
	}
	w.count++
	entriesWritten.Inc()
	return nil
}

// WriteBatch writes the queries of b that survive opts and returns how
// many were written.
func (w *Writer) WriteBatch(b *batch.Batch, opts BuildOptions) (int, error) {
	return WriteBatch(w, b, opts)
}

// Count returns the number of entries written so far.
func (w *Writer) Count() int {
	return w.count
}

// Flush flushes buffered entries.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// WriteArray writes entries as an indented JSON array, the format used for
// human inspection.
func WriteArray(w io.Writer, entries []Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if entries == nil {
		entries = []Entry{}
	}
	return enc.Encode(entries)
}

// Entries re-serializes a loaded library.
func (l *Library) Entries() []Entry {
	out := make([]Entry, l.Len())
	for i, q := range l.Queries {
		q.FragmentMZs = maps.Clone(q.FragmentMZs)
		q.ExpectedFragmentIntensity = maps.Clone(q.ExpectedFragmentIntensity)
		out[i] = NewEntry(l.Sources[i], q)
	}
	return out
}
