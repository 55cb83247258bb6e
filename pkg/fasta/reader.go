// Package fasta reads protein sequences from FASTA files.
package fasta

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ChrisMcGann/DBSeek/pkg/fileio"
)

// Protein is one FASTA record. ID is the 0-based record index.
type Protein struct {
	ID          int
	Description string
	Sequence    string
}

// Accession returns the first word of the description, or the middle
// field of UniProt-style "sp|P12345|NAME_HUMAN" headers.
func (p Protein) Accession() string {
	word, _, _ := strings.Cut(p.Description, " ")
	parts := strings.Split(word, "|")
	if len(parts) >= 3 && parts[1] != "" {
		return parts[1]
	}
	return word
}

// Read parses FASTA from r and calls emit for each record in file order.
// Sequence lines are concatenated with whitespace removed and residues
// upper-cased. Records without residues are skipped.
func Read(ctx context.Context, r io.Reader, emit func(Protein) error) error {
	sc := bufio.NewScanner(r)
	const maxLine = 64 * 1024 * 1024
	sc.Buffer(make([]byte, 64*1024), maxLine)

	var (
		id          int
		description string
		seq         = make([]byte, 0, 4096)
	)

	flush := func() error {
		if len(seq) == 0 {
			return nil
		}
		p := Protein{ID: id, Description: description, Sequence: string(bytes.ToUpper(seq))}
		id++
		return emit(p)
	}

	for sc.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == ';' {
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return err
			}
			seq = seq[:0]
			description = string(bytes.TrimSpace(line[1:]))
			continue
		}
		for _, b := range line {
			if b != ' ' && b != '\t' {
				seq = append(seq, b)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("fasta scan: %w", err)
	}
	return flush()
}

// ReadAll collects every record of r.
func ReadAll(ctx context.Context, r io.Reader) ([]Protein, error) {
	var out []Protein
	err := Read(ctx, r, func(p Protein) error {
		out = append(out, p)
		return nil
	})
	return out, err
}

// ReadFile reads a FASTA file, which may be gzip-compressed. "-" is stdin.
func ReadFile(ctx context.Context, path string) ([]Protein, error) {
	rc, err := fileio.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	proteins, err := ReadAll(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return proteins, nil
}
