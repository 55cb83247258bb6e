// Package sqlite stores query libraries in SQLite database files
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/DBSeek/pkg/batch"
	"github.com/ChrisMcGann/DBSeek/pkg/core"
	"github.com/ChrisMcGann/DBSeek/pkg/library"
)

const (
	// SchemaVersion is written to HeaderTable.version.
	SchemaVersion = 1

	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// Date format for MaintenanceTable
	maintenanceDateFormat = "2006 01 02"
)

const schema = `
CREATE TABLE IF NOT EXISTS EntryTable (
	EntryId INTEGER PRIMARY KEY,
	QueryId INTEGER NOT NULL,
	Sequence TEXT NOT NULL,
	Charge INTEGER NOT NULL,
	Decoy BOOL NOT NULL,
	PrecursorMZ DOUBLE NOT NULL,
	Mobility DOUBLE,
	RetentionTime DOUBLE,
	blobPrecursorMass BLOB,
	blobPrecursorIntensity BLOB,
	FragmentKeys TEXT,
	blobFragmentMass BLOB,
	blobFragmentIntensity BLOB
);

CREATE INDEX IF NOT EXISTS EntryPrecursorIndex ON EntryTable (PrecursorMZ);

CREATE TABLE IF NOT EXISTS HeaderTable (
	version INTEGER NOT NULL DEFAULT 0,
	LibraryId TEXT NOT NULL,
	CreationDate TEXT,
	LastModifiedDate TEXT,
	Description TEXT,
	Entries INTEGER
);

CREATE TABLE IF NOT EXISTS MaintenanceTable (
	CreationDate TEXT,
	NoofEntriesModified INTEGER,
	Description TEXT
);
`

// Writer writes library entries to a SQLite database file inside a single
// transaction that Finalize commits.
type Writer struct {
	db          *sql.DB
	tx          *sql.Tx
	entryStmt   *sql.Stmt
	outputPath  string
	libraryID   uuid.UUID
	description string
	entryID     int
}

var _ library.Sink = (*Writer)(nil)

// NewWriter creates a new SQLite writer
func NewWriter(outputPath, description string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:          db,
		outputPath:  outputPath,
		libraryID:   uuid.New(),
		description: description,
		entryID:     1,
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

func (w *Writer) prepareStatements() error {
	var err error

	w.tx, err = w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	w.entryStmt, err = w.tx.Prepare(`
		INSERT INTO EntryTable (
			EntryId, QueryId, Sequence, Charge, Decoy, PrecursorMZ,
			Mobility, RetentionTime, blobPrecursorMass, blobPrecursorIntensity,
			FragmentKeys, blobFragmentMass, blobFragmentIntensity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		w.tx.Rollback()
		return fmt.Errorf("failed to prepare entry statement: %w", err)
	}

	return nil
}

// LibraryID returns the identifier written to HeaderTable.
func (w *Writer) LibraryID() uuid.UUID {
	return w.libraryID
}

// Count returns the number of entries written so far.
func (w *Writer) Count() int {
	return w.entryID - 1
}

// Write writes a single entry to the database
func (w *Writer) Write(e library.Entry) error {
	eg := e.ElutionGroup
	if len(eg.PrecursorMZs) == 0 {
		return fmt.Errorf("entry %d: %w: no precursor m/z", eg.ID, library.ErrInvalidEntry)
	}

	keys := make([]core.FragmentKey, 0, len(eg.FragmentMZs))
	for k := range eg.FragmentMZs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	names := make([]string, len(keys))
	mzs := make([]float64, len(keys))
	var intensities []float64
	if eg.ExpectedFragmentIntensity != nil {
		intensities = make([]float64, len(keys))
	}
	for i, k := range keys {
		names[i] = k.String()
		mzs[i] = eg.FragmentMZs[k]
		if intensities != nil {
			intensities[i] = eg.ExpectedFragmentIntensity[k]
		}
	}

	_, err := w.entryStmt.Exec(
		w.entryID,                                     // EntryId
		eg.ID,                                         // QueryId
		e.Precursor.Sequence,                          // Sequence
		e.Precursor.Charge,                            // Charge
		e.Precursor.Decoy,                             // Decoy
		eg.PrecursorMZs[0],                            // PrecursorMZ
		eg.Mobility,                                   // Mobility
		eg.RTSeconds,                                  // RetentionTime
		encodeFloat64s(eg.PrecursorMZs),               // blobPrecursorMass
		encodeFloat64s(eg.ExpectedPrecursorIntensity), // blobPrecursorIntensity
		strings.Join(names, ","),                      // FragmentKeys
		encodeFloat64s(mzs),                           // blobFragmentMass
		encodeFloat64s(intensities),                   // blobFragmentIntensity
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry %d: %w", eg.ID, err)
	}

	w.entryID++
	return nil
}

// WriteBatch writes the queries of b that survive opts.
func (w *Writer) WriteBatch(b *batch.Batch, opts library.BuildOptions) (int, error) {
	return library.WriteBatch(w, b, opts)
}

// encodeFloat64s encodes values as a little-endian float64 blob. A nil
// slice encodes as NULL.
func encodeFloat64s(values []float64) []byte {
	if values == nil {
		return nil
	}
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeFloat64s reverses encodeFloat64s.
func decodeFloat64s(buf []byte) ([]float64, error) {
	if buf == nil {
		return nil, nil
	}
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(buf))
	}
	out := make([]float64, len(buf)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return out, nil
}

// Finalize writes the header and maintenance tables, commits and closes
// the database
func (w *Writer) Finalize() error {
	now := time.Now()

	_, err := w.tx.Exec(`
		INSERT INTO HeaderTable (version, LibraryId, CreationDate, LastModifiedDate, Description, Entries)
		VALUES (?, ?, ?, ?, ?, ?)
	`, SchemaVersion, w.libraryID.String(), now.Format(headerDateFormat), now.Format(headerDateFormat), w.description, w.Count())
	if err != nil {
		w.abort()
		return fmt.Errorf("failed to insert header: %w", err)
	}

	_, err = w.tx.Exec(`
		INSERT INTO MaintenanceTable (CreationDate, NoofEntriesModified, Description)
		VALUES (?, ?, ?)
	`, now.Format(maintenanceDateFormat), w.Count(), "created")
	if err != nil {
		w.abort()
		return fmt.Errorf("failed to insert maintenance: %w", err)
	}

	w.entryStmt.Close()
	if err := w.tx.Commit(); err != nil {
		w.db.Close()
		return fmt.Errorf("failed to commit library: %w", err)
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Abort discards everything written and closes the database.
func (w *Writer) Abort() error {
	return w.abort()
}

func (w *Writer) abort() error {
	w.entryStmt.Close()
	w.tx.Rollback()
	return w.db.Close()
}
