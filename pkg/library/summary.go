package library

import (
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/ChrisMcGann/DBSeek/pkg/core"
)

// Range tracks the extremes of a value.
type Range struct {
	Min float64
	Max float64
}

func newRange() Range {
	return Range{Min: math.Inf(1), Max: math.Inf(-1)}
}

func (r *Range) observe(v float64) {
	r.Min = min(r.Min, v)
	r.Max = max(r.Max, v)
}

func (r Range) String() string {
	if r.Min > r.Max {
		return "-"
	}
	return fmt.Sprintf("%.4f - %.4f", r.Min, r.Max)
}

// Summary describes a loaded library.
type Summary struct {
	Entries   int
	Targets   int
	Decoys    int
	Skipped   int
	Charges   map[uint8]int
	Fragments int

	PrecursorMZ Range
	FragmentMZ  Range
	Mobility    Range

	// OutsideWindows counts queries with a precursor or fragment outside
	// the windows passed to Summarize.
	OutsideWindows int
	DuplicateIDs   int
}

// Summarize computes statistics over l, checking queries against the
// given windows.
func Summarize(l *Library, precursor, fragment core.MZWindow) Summary {
	s := Summary{
		Entries:     l.Len(),
		Skipped:     l.Skipped,
		Charges:     make(map[uint8]int),
		PrecursorMZ: newRange(),
		FragmentMZ:  newRange(),
		Mobility:    newRange(),
	}
	ids := make(map[uint64]struct{}, l.Len())

	for i := range l.Queries {
		q := &l.Queries[i]
		if l.Sources[i].Marking().IsDecoy() {
			s.Decoys++
		} else {
			s.Targets++
		}
		s.Charges[q.Charge]++
		s.Fragments += len(q.FragmentMZs)

		s.PrecursorMZ.observe(q.MonoisotopicMZ())
		s.Mobility.observe(q.Mobility)
		for _, mz := range q.FragmentMZs {
			s.FragmentMZ.observe(mz)
		}

		if !q.WithinWindows(precursor, fragment) {
			s.OutsideWindows++
		}
		if _, dup := ids[q.ID]; dup {
			s.DuplicateIDs++
		}
		ids[q.ID] = struct{}{}
	}
	return s
}

// MeanFragments returns the average number of fragments per entry.
func (s Summary) MeanFragments() float64 {
	if s.Entries == 0 {
		return 0
	}
	return float64(s.Fragments) / float64(s.Entries)
}

// Write prints a human-readable report.
func (s Summary) Write(w io.Writer) error {
	charges := make([]uint8, 0, len(s.Charges))
	for z := range s.Charges {
		charges = append(charges, z)
	}
	slices.Sort(charges)

	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}
	printf("Entries:            %d (%d targets, %d decoys)\n", s.Entries, s.Targets, s.Decoys)
	if s.Skipped > 0 {
		printf("Skipped records:    %d\n", s.Skipped)
	}
	for _, z := range charges {
		printf("  charge %d:         %d\n", z, s.Charges[z])
	}
	printf("Precursor m/z:      %s\n", s.PrecursorMZ)
	printf("Fragment m/z:       %s\n", s.FragmentMZ)
	printf("Mobility:           %s\n", s.Mobility)
	printf("Fragments/entry:    %.2f\n", s.MeanFragments())
	printf("Outside windows:    %d\n", s.OutsideWindows)
	printf("Duplicate IDs:      %d\n", s.DuplicateIDs)
	return err
}
