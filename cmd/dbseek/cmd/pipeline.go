package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/ChrisMcGann/DBSeek/pkg/convert"
	"github.com/ChrisMcGann/DBSeek/pkg/core"
	"github.com/ChrisMcGann/DBSeek/pkg/digest"
	"github.com/ChrisMcGann/DBSeek/pkg/fasta"
	"github.com/ChrisMcGann/DBSeek/pkg/fileio"
	"github.com/ChrisMcGann/DBSeek/pkg/library"
	"github.com/ChrisMcGann/DBSeek/pkg/writer/sqlite"
)

// addDigestionFlags registers the digestion overrides shared by digest and
// build. Defaults mirror config.Default.
func addDigestionFlags(fs *pflag.FlagSet) {
	d := digest.DefaultParameters()
	fs.String("enzyme", d.Enzyme, "Protease: "+strings.Join(digest.EnzymeNames(), ", "))
	fs.Int("min-length", d.MinLength, "Minimum peptide length")
	fs.Int("max-length", d.MaxLength, "Maximum peptide length")
	fs.Int("missed-cleavages", d.MaxMissedCleavages, "Maximum missed cleavages")
	fs.Int("workers", 0, "Worker goroutines (0 = number of CPUs)")
}

// digestProteome reads a FASTA file and returns its proteins with the
// deduplicated target candidates cut from them and the set of their
// materialized strings.
func digestProteome(ctx context.Context, path string) ([]fasta.Protein, []digest.CandidateSlice, map[string]struct{}, error) {
	proteins, err := fasta.ReadFile(ctx, path)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info("read proteins", "path", path, "count", len(proteins))

	d, err := digest.NewDigester(cfg.Digestion)
	if err != nil {
		return nil, nil, nil, err
	}

	seqs := make([]*digest.Sequence, len(proteins))
	for i, p := range proteins {
		seqs[i] = digest.NewSequence(p.Sequence)
	}
	all, err := d.DigestAll(ctx, seqs, cfg.Conversion.Workers)
	if err != nil {
		return nil, nil, nil, err
	}
	unique, seen := digest.DeduplicateWithSeen(all)
	logger.Info("digested proteome", "candidates", len(all), "unique", len(unique))
	return proteins, unique, seen, nil
}

// newConverter builds the query converter on the built-in chemistry.
func newConverter() (*convert.Converter, error) {
	mods, err := modDatabase()
	if err != nil {
		return nil, err
	}
	return convert.NewConverter(core.NewCalculator(mods), cfg.Conversion, logger)
}

// progressf prints a progress line to stderr when it is a terminal.
func progressf(format string, args ...any) {
	fd := os.Stderr.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// isDatabase reports whether path names a SQLite library.
func isDatabase(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// loadLibrary loads an NDJSON/JSON or SQLite library under the configured
// malformed-record policy.
func loadLibrary(path string) (*library.Library, error) {
	opts := library.LoadOptions{OnMalformed: cfg.Policy.OnMalformedRecord, Logger: logger}
	if isDatabase(path) {
		return sqlite.Load(path, opts)
	}
	return library.LoadFile(path, opts)
}

// librarySinks fans entries out to every configured output.
type librarySinks struct {
	sinks   []library.Sink
	closers []func() error
	aborts  []func() error
}

// openSinks opens the NDJSON output at out (may be "-" or end in .gz) and
// the SQLite output at db. At least one must be set.
func openSinks(out, db, description string) (*librarySinks, error) {
	if out == "" && db == "" {
		return nil, fmt.Errorf("no output: set --out and/or --db")
	}

	s := &librarySinks{}
	if out != "" {
		wc, err := fileio.Create(out)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file: %w", err)
		}
		w := library.NewWriter(wc)
		s.sinks = append(s.sinks, w)
		s.closers = append(s.closers, func() error {
			if err := w.Flush(); err != nil {
				wc.Close()
				return err
			}
			return wc.Close()
		})
		s.aborts = append(s.aborts, wc.Close)
	}
	if db != "" {
		w, err := sqlite.NewWriter(db, description)
		if err != nil {
			s.abort()
			return nil, fmt.Errorf("failed to create output database: %w", err)
		}
		logger.Debug("opened library database", "path", db, "library_id", w.LibraryID())
		s.sinks = append(s.sinks, w)
		s.closers = append(s.closers, w.Finalize)
		s.aborts = append(s.aborts, w.Abort)
	}
	return s, nil
}

// Write implements library.Sink.
func (s *librarySinks) Write(e library.Entry) error {
	for _, sink := range s.sinks {
		if err := sink.Write(e); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and finalizes every output.
func (s *librarySinks) Close() error {
	for _, c := range s.closers {
		if err := c(); err != nil {
			return err
		}
	}
	return nil
}

func (s *librarySinks) abort() {
	for _, a := range s.aborts {
		a()
	}
}
