package batch

import (
	"context"
	"io"

	"github.com/ChrisMcGann/DBSeek/pkg/convert"
	"github.com/ChrisMcGann/DBSeek/pkg/digest"
)

// Options configures a DigestSource.
type Options struct {
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size"`

	// Decoys interleaves a decoy batch after every target batch.
	Decoys bool `mapstructure:"decoys" yaml:"decoys"`

	// FilterDecoyCollisions drops decoys whose sequence equals a target.
	FilterDecoyCollisions bool `mapstructure:"filter_decoy_collisions" yaml:"filter_decoy_collisions"`
}

// DefaultOptions returns chunks of 5000 with decoys and no collision filter.
func DefaultOptions() Options {
	return Options{ChunkSize: 5000, Decoys: true}
}

// Validate checks the options.
func (o Options) Validate() error {
	return validateChunkSize(o.ChunkSize)
}

// DigestSource converts fixed windows of deduplicated candidates on
// demand. With decoys, step 2k is the target batch of window k and step
// 2k+1 the decoy batch of the same window.
type DigestSource struct {
	candidates []digest.CandidateSlice
	conv       *convert.Converter
	opts       Options

	targets map[string]struct{}
	step    int
	total   int
}

// NewDigestSource builds a source over candidates, which should already be
// deduplicated targets.
func NewDigestSource(candidates []digest.CandidateSlice, conv *convert.Converter, opts Options) (*DigestSource, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &DigestSource{
		candidates: candidates,
		conv:       conv,
		opts:       opts,
		total:      numWindows(len(candidates), opts.ChunkSize),
	}
	if opts.Decoys {
		s.total *= 2
	}
	return s, nil
}

// WithTargets supplies the materialized target strings used by the decoy
// collision filter, typically the set returned by
// digest.DeduplicateWithSeen. Without it the set is built from the
// candidates on the first decoy window.
func (s *DigestSource) WithTargets(targets map[string]struct{}) *DigestSource {
	s.targets = targets
	return s
}

// Len returns the number of remaining steps.
func (s *DigestSource) Len() int {
	return s.total - s.step
}

// window returns the source range and marking of a step.
func (s *DigestSource) window(step int) Window {
	k, marking := step, digest.Target
	if s.opts.Decoys {
		k = step / 2
		if step%2 == 1 {
			marking = digest.Decoy
		}
	}
	start := k * s.opts.ChunkSize
	end := min(start+s.opts.ChunkSize, len(s.candidates))
	return Window{Step: step, Start: start, End: end, Marking: marking}
}

// Next converts the next window. It returns io.EOF when exhausted and
// *EmptyBatchError when the window converted to nothing.
func (s *DigestSource) Next(ctx context.Context) (*Batch, error) {
	if s.step >= s.total {
		return nil, io.EOF
	}
	w := s.window(s.step)
	s.step++

	window := s.candidates[w.Start:w.End]
	baseID := uint64(w.Start)
	if w.Marking == digest.Decoy {
		baseID += uint64(len(s.candidates))
		window = s.decoyWindow(window)
	}

	converted, err := s.conv.ConvertMany(ctx, window, baseID)
	if err != nil {
		return nil, err
	}
	if converted.Len() == 0 {
		return nil, &EmptyBatchError{Window: w}
	}
	batchesProduced.WithLabelValues("digest", w.Marking.Label()).Inc()
	return &Batch{
		Window:  w,
		Sources: converted.Sources,
		Charges: converted.Charges,
		Queries: converted.Queries,
	}, nil
}

func (s *DigestSource) decoyWindow(targets []digest.CandidateSlice) []digest.CandidateSlice {
	filter := s.opts.FilterDecoyCollisions
	if filter && s.targets == nil {
		s.targets = make(map[string]struct{}, len(s.candidates))
		for _, c := range s.candidates {
			s.targets[c.String()] = struct{}{}
		}
	}

	out := make([]digest.CandidateSlice, 0, len(targets))
	for _, t := range targets {
		d := t.AsDecoy()
		if filter {
			if _, collides := s.targets[d.String()]; collides {
				decoyCollisions.Inc()
				continue
			}
		}
		out = append(out, d)
	}
	return out
}
