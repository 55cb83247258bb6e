package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/DBSeek/pkg/digest"
	"github.com/ChrisMcGann/DBSeek/pkg/fileio"
	"github.com/ChrisMcGann/DBSeek/pkg/protein"
)

var (
	// Flags for digest command
	digestFasta  string
	digestOut    string
	digestDecoys bool
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Digest a proteome into unique peptides",
	Long: `Digest every protein of a FASTA file, deduplicate the peptides and write
them as a tab-separated table with the accessions of the proteins that
contain each peptide.

Examples:
  # Tryptic peptides, up to two missed cleavages
  dbseek digest --fasta human.fasta.gz --out peptides.tsv --missed-cleavages 2

  # Include the decoy of every peptide
  dbseek digest --fasta human.fasta --out - --with-decoys`,
	RunE: runDigest,
}

func init() {
	digestCmd.Flags().StringVarP(&digestFasta, "fasta", "i", "", "Input FASTA file, optionally gzip-compressed (required)")
	digestCmd.Flags().StringVarP(&digestOut, "out", "o", "-", "Output TSV file ('-' for stdout, .gz to compress)")
	digestCmd.Flags().BoolVar(&digestDecoys, "with-decoys", false, "Also write the decoy of every peptide")
	digestCmd.Flags().Int("nmer-size", protein.DefaultNmerSize, "Window length of the protein index")
	addDigestionFlags(digestCmd.Flags())

	digestCmd.MarkFlagRequired("fasta")
}

func runDigest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	proteins, peptides, _, err := digestProteome(ctx, digestFasta)
	if err != nil {
		return err
	}

	index, err := protein.NewNmerIndex(cfg.NmerSize, proteins)
	if err != nil {
		return err
	}

	out, err := fileio.Create(digestOut)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	rows, err := writePeptideTable(ctx, out, peptides, index, digestDecoys)
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	logger.Info("digest complete", "proteins", len(proteins), "peptides", len(peptides), "rows", rows)
	return nil
}

// writePeptideTable writes one TSV row per peptide with the accessions of
// the proteins containing it. Decoy rows, when requested, follow their
// target and list no proteins.
func writePeptideTable(ctx context.Context, out io.Writer, peptides []digest.CandidateSlice, index *protein.NmerIndex, withDecoys bool) (int, error) {
	w := csv.NewWriter(out)
	w.Comma = '\t'
	if err := w.Write([]string{"peptide", "length", "label", "proteins"}); err != nil {
		return 0, err
	}

	rows := 0
	writeRow := func(c digest.CandidateSlice, proteins []string) error {
		rows++
		return w.Write([]string{c.String(), strconv.Itoa(c.Len()), c.Marking().Label(), strings.Join(proteins, ";")})
	}
	for _, p := range peptides {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		if err := writeRow(p, index.Accessions(p.String())); err != nil {
			return rows, err
		}
		if withDecoys {
			if err := writeRow(p.AsDecoy(), nil); err != nil {
				return rows, err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return rows, fmt.Errorf("failed to write peptides: %w", err)
	}
	return rows, nil
}
