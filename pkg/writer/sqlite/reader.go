package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/ChrisMcGann/DBSeek/pkg/core"
	"github.com/ChrisMcGann/DBSeek/pkg/library"
)

// Header is the HeaderTable row of a library database.
type Header struct {
	Version      int
	LibraryID    uuid.UUID
	CreationDate string
	Description  string
	Entries      int
}

// ReadHeader returns the header of the library at path.
func ReadHeader(path string) (Header, error) {
	db, err := open(path)
	if err != nil {
		return Header{}, err
	}
	defer db.Close()

	var h Header
	var id string
	var description sql.NullString
	err = db.QueryRow(`SELECT version, LibraryId, CreationDate, Description, Entries FROM HeaderTable LIMIT 1`).
		Scan(&h.Version, &id, &h.CreationDate, &description, &h.Entries)
	if errors.Is(err, sql.ErrNoRows) {
		return Header{}, fmt.Errorf("%s: library was not finalized", path)
	}
	if err != nil {
		return Header{}, fmt.Errorf("failed to read header: %w", err)
	}
	if h.LibraryID, err = uuid.Parse(id); err != nil {
		return Header{}, fmt.Errorf("invalid library id %q: %w", id, err)
	}
	h.Description = description.String
	return h, nil
}

// Load reads every entry of the library at path under the malformed-record
// policy in opts.
func Load(path string, opts library.LoadOptions) (*library.Library, error) {
	db, err := open(path)
	if err != nil {
		return nil, &library.LoadError{Path: path, Err: err}
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT QueryId, Sequence, Charge, Decoy, Mobility, RetentionTime,
			blobPrecursorMass, blobPrecursorIntensity,
			FragmentKeys, blobFragmentMass, blobFragmentIntensity
		FROM EntryTable ORDER BY EntryId
	`)
	if err != nil {
		return nil, &library.LoadError{Path: path, Err: fmt.Errorf("failed to query entries: %w", err)}
	}
	defer rows.Close()

	c := library.NewCollector(opts)
	record := 0
	for rows.Next() {
		record++
		e, err := scanEntry(rows)
		if err != nil {
			err = c.Reject(record, 0, err)
		} else {
			err = c.Add(record, e)
		}
		if err != nil {
			return nil, withPath(err, path)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &library.LoadError{Path: path, Record: record, Err: err}
	}

	lib, err := c.Library()
	if err != nil {
		return nil, withPath(err, path)
	}
	return lib, nil
}

func open(path string) (*sql.DB, error) {
	// sql.Open would create a missing file
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func withPath(err error, path string) error {
	var lerr *library.LoadError
	if errors.As(err, &lerr) {
		lerr.Path = path
	}
	return err
}

func scanEntry(rows *sql.Rows) (library.Entry, error) {
	var (
		e                       library.Entry
		mobility, rt            sql.NullFloat64
		keyList                 sql.NullString
		precMass, precIntensity []byte
		fragMass, fragIntensity []byte
	)
	eg := &e.ElutionGroup
	err := rows.Scan(&eg.ID, &e.Precursor.Sequence, &e.Precursor.Charge, &e.Precursor.Decoy,
		&mobility, &rt, &precMass, &precIntensity, &keyList, &fragMass, &fragIntensity)
	if err != nil {
		return library.Entry{}, err
	}
	eg.PrecursorCharge = e.Precursor.Charge
	eg.Decoy = e.Precursor.Decoy
	eg.Mobility = mobility.Float64
	eg.RTSeconds = rt.Float64

	if eg.PrecursorMZs, err = decodeFloat64s(precMass); err != nil {
		return library.Entry{}, fmt.Errorf("precursor m/z: %w", err)
	}
	if eg.ExpectedPrecursorIntensity, err = decodeFloat64s(precIntensity); err != nil {
		return library.Entry{}, fmt.Errorf("precursor intensity: %w", err)
	}

	mzs, err := decodeFloat64s(fragMass)
	if err != nil {
		return library.Entry{}, fmt.Errorf("fragment m/z: %w", err)
	}
	intensities, err := decodeFloat64s(fragIntensity)
	if err != nil {
		return library.Entry{}, fmt.Errorf("fragment intensity: %w", err)
	}

	var names []string
	if keyList.String != "" {
		names = strings.Split(keyList.String, ",")
	}
	if len(names) != len(mzs) || (intensities != nil && len(intensities) != len(mzs)) {
		return library.Entry{}, fmt.Errorf("fragment columns disagree: %d keys, %d m/z, %d intensities",
			len(names), len(mzs), len(intensities))
	}

	eg.FragmentMZs = make(map[core.FragmentKey]float64, len(names))
	if intensities != nil {
		eg.ExpectedFragmentIntensity = make(map[core.FragmentKey]float64, len(names))
	}
	for i, name := range names {
		k, err := core.ParseFragmentKey(name)
		if err != nil {
			return library.Entry{}, err
		}
		eg.FragmentMZs[k] = mzs[i]
		if intensities != nil {
			eg.ExpectedFragmentIntensity[k] = intensities[i]
		}
	}
	return e, nil
}
