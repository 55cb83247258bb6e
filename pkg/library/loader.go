package library

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ChrisMcGann/DBSeek/pkg/batch"
	"github.com/ChrisMcGann/DBSeek/pkg/core"
	"github.com/ChrisMcGann/DBSeek/pkg/digest"
	"github.com/ChrisMcGann/DBSeek/pkg/fileio"
)

// maxLine bounds a single NDJSON record.
const maxLine = 64 * 1024 * 1024

// ErrEmptyLibrary is returned when a load yields no usable entries.
var ErrEmptyLibrary = errors.New("library contains no entries")

// LoadError reports a malformed record or an I/O failure. Line is set for
// NDJSON input, Record (1-based) for both formats.
type LoadError struct {
	Path   string
	Record int
	Line   int
	Err    error
}

func (e *LoadError) Error() string {
	where := "library"
	if e.Path != "" {
		where += " " + e.Path
	}
	switch {
	case e.Line > 0:
		return fmt.Sprintf("%s: line %d: %v", where, e.Line, e.Err)
	case e.Record > 0:
		return fmt.Sprintf("%s: record %d: %v", where, e.Record, e.Err)
	}
	return fmt.Sprintf("%s: %v", where, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadOptions controls malformed-record handling.
type LoadOptions struct {
	OnMalformed core.Policy
	Logger      *slog.Logger
}

// Library holds loaded entries as parallel slices, ready for a
// batch.LibrarySource.
type Library struct {
	Sources []digest.CandidateSlice
	Charges []uint8
	Queries []core.ScoringQuery

	// Skipped counts malformed records dropped under PolicySkip.
	Skipped int
}

// Len returns the number of entries.
func (l *Library) Len() int {
	return len(l.Queries)
}

// Source returns a batch source over the library.
func (l *Library) Source(chunkSize int) (*batch.LibrarySource, error) {
	return batch.NewLibrarySource(l.Sources, l.Charges, l.Queries, chunkSize)
}

// Collector accumulates entries into a Library under a malformed-record
// policy. Load uses it for JSON input; other stores feed it directly.
type Collector struct {
	opts LoadOptions
	lib  *Library
}

// NewCollector returns an empty Collector.
func NewCollector(opts LoadOptions) *Collector {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Collector{opts: opts, lib: &Library{}}
}

// Add converts e and appends it. A conversion failure is returned under
// PolicyFail and counted as skipped under PolicySkip.
func (c *Collector) Add(record int, e Entry) error {
	return c.collect(record, 0, e)
}

// Reject applies the policy to a record that could not be decoded.
func (c *Collector) Reject(record, line int, err error) error {
	lerr := &LoadError{Record: record, Line: line, Err: err}
	if !c.opts.OnMalformed.Skips() {
		return lerr
	}
	c.opts.Logger.Warn("skipping malformed library record", "record", record, "line", line, "err", err)
	malformedRecords.Inc()
	c.lib.Skipped++
	return nil
}

// Library returns what was collected. An empty result is an error.
func (c *Collector) Library() (*Library, error) {
	if c.lib.Len() == 0 {
		return nil, &LoadError{Err: ErrEmptyLibrary}
	}
	entriesLoaded.Add(float64(c.lib.Len()))
	return c.lib, nil
}

// LoadFile loads a library from path, which may be gzip-compressed.
func LoadFile(path string, opts LoadOptions) (*Library, error) {
	rc, err := fileio.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer rc.Close()

	lib, err := Load(rc, opts)
	if err != nil {
		var lerr *LoadError
		if errors.As(err, &lerr) {
			lerr.Path = path
		}
		return nil, err
	}
	return lib, nil
}

// Load reads a JSON array or NDJSON library from r. The format is chosen
// by the first non-space byte. An empty result is an error.
func Load(r io.Reader, opts LoadOptions) (*Library, error) {
	c := NewCollector(opts)

	br := bufio.NewReaderSize(r, 64*1024)
	first, err := firstNonSpace(br)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{Err: err}
	}

	switch {
	case errors.Is(err, io.EOF):
		err = nil
	case first == '[':
		err = c.loadArray(br)
	default:
		err = c.loadLines(br)
	}
	if err != nil {
		return nil, err
	}
	return c.Library()
}

func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

func (c *Collector) loadArray(r io.Reader) error {
	dec := json.NewDecoder(r)
	if _, err := dec.Token(); err != nil {
		return &LoadError{Err: err}
	}
	record := 0
	for dec.More() {
		record++
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			// the stream cannot be resynchronized after a syntax error
			return &LoadError{Record: record, Err: err}
		}
		if err := c.add(raw, record, 0); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return &LoadError{Record: record, Err: err}
	}
	return nil
}

func (c *Collector) loadLines(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	line, record := 0, 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		record++
		if err := c.add(text, record, line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return &LoadError{Line: line + 1, Err: err}
	}
	return nil
}

func (c *Collector) add(raw []byte, record, line int) error {
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return c.Reject(record, line, err)
	}
	return c.collect(record, line, e)
}

func (c *Collector) collect(record, line int, e Entry) error {
	src, q, err := resolve(e)
	if err != nil {
		return c.Reject(record, line, err)
	}
	c.lib.Sources = append(c.lib.Sources, src)
	c.lib.Charges = append(c.lib.Charges, q.Charge)
	c.lib.Queries = append(c.lib.Queries, q)
	return nil
}

func resolve(e Entry) (digest.CandidateSlice, core.ScoringQuery, error) {
	src, err := e.Candidate()
	if err != nil {
		return digest.CandidateSlice{}, core.ScoringQuery{}, err
	}
	q, err := e.Query()
	if err != nil {
		return digest.CandidateSlice{}, core.ScoringQuery{}, err
	}
	return src, q, nil
}
