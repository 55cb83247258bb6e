package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/DBSeek/pkg/convert"
	"github.com/ChrisMcGann/DBSeek/pkg/core"
	"github.com/ChrisMcGann/DBSeek/pkg/digest"
	"github.com/ChrisMcGann/DBSeek/pkg/fileio"
	"github.com/ChrisMcGann/DBSeek/pkg/library"
	"github.com/ChrisMcGann/DBSeek/pkg/reader"
	"github.com/ChrisMcGann/DBSeek/pkg/reader/msp"
	"github.com/ChrisMcGann/DBSeek/pkg/reader/sptxt"
)

var (
	// Flags for convert command
	convertIn          string
	convertFrom        string
	convertOut         string
	convertDB          string
	convertDescription string
	massOffsetCSV      string
	keepPrecursor      bool
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert an MSP or SPTXT spectral library into a query library",
	Long: `Read an annotated spectral library, filter its peaks and turn every
spectrum into a scoring query keyed by fragment annotation.

Supported input formats:
- MSP (NIST, Prosit and similar)
- SPTXT (SpectraST)

Precursor m/z values are recomputed from the sequence and its modifications
unless --keep-precursor is given.

Examples:
  # MSP to NDJSON, keeping the 12 most intense b/y peaks
  dbseek convert --in predicted.msp --out library.ndjson --top-n 12 --ion-types by

  # SPTXT to SQLite with a peak intensity cutoff of 5% of the base peak
  dbseek convert --in consensus.sptxt.gz --db library.db --cutoff 5

  # Add TMTpro to the N-terminus of listed sequences
  dbseek convert --in predicted.msp --db library.db --mass-offset tmt.csv`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertIn, "in", "i", "", "Input spectral library (required)")
	convertCmd.Flags().StringVarP(&convertFrom, "from", "f", "", "Input format: msp or sptxt (default: from the file extension)")
	convertCmd.Flags().StringVarP(&convertOut, "out", "o", "", "Output NDJSON library ('-' for stdout, .gz to compress)")
	convertCmd.Flags().StringVar(&convertDB, "db", "", "Output SQLite library")
	convertCmd.Flags().StringVar(&convertDescription, "description", "", "Description stored in the SQLite header")
	convertCmd.Flags().StringVar(&massOffsetCSV, "mass-offset", "", "CSV of Sequence,massOffset added as an N-terminal modification")
	convertCmd.Flags().BoolVar(&keepPrecursor, "keep-precursor", false, "Keep the precursor m/z read from the library")

	convertCmd.Flags().Int("top-n", 0, "Keep only the N most intense peaks (0 = all)")
	convertCmd.Flags().Float64("cutoff", 0, "Drop peaks below this percentage of the base peak")
	convertCmd.Flags().String("ion-types", "", "Keep only these fragment series, e.g. by")
	convertCmd.Flags().String("on-malformed-record", "fail", "What to do with a spectrum that cannot be converted: fail or skip")

	convertCmd.MarkFlagRequired("in")
}

func newSpectrumReader(format reader.Format, in io.Reader, mods *core.ModDatabase) (reader.SpectrumReader, error) {
	switch format {
	case reader.FormatMSP:
		return msp.NewReader(in, mods), nil
	case reader.FormatSPTXT:
		return sptxt.NewReader(in, mods), nil
	}
	return nil, fmt.Errorf("unsupported format %q (want msp or sptxt)", format)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format := reader.Format(convertFrom)
	if format == "" {
		var err error
		if format, err = reader.DetectFormat(convertIn); err != nil {
			return err
		}
	}

	mods, err := modDatabase()
	if err != nil {
		return err
	}
	conv, err := convert.NewConverter(core.NewCalculator(mods), cfg.Conversion, logger)
	if err != nil {
		return err
	}

	offsets := reader.MassOffsets{}
	if massOffsetCSV != "" {
		f, err := fileio.Open(massOffsetCSV)
		if err != nil {
			return fmt.Errorf("failed to open mass offset CSV: %w", err)
		}
		offsets, err = reader.LoadMassOffsets(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to load mass offset CSV: %w", err)
		}
		logger.Info("loaded mass offsets", "count", len(offsets))
	}

	in, err := fileio.Open(convertIn)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer in.Close()

	rd, err := newSpectrumReader(format, in, mods)
	if err != nil {
		return err
	}

	sinks, err := openSinks(convertOut, convertDB, convertDescription)
	if err != nil {
		return err
	}

	count, written, skipped, err := convertSpectra(ctx, rd, conv, offsets, sinks)
	if err != nil {
		sinks.abort()
		return err
	}
	if err := sinks.Close(); err != nil {
		return fmt.Errorf("failed to finalize library: %w", err)
	}

	logger.Info("conversion complete",
		"format", string(format),
		"spectra", count,
		"written", written,
		"skipped", skipped)
	if written == 0 {
		return fmt.Errorf("no spectrum in %s could be converted", convertIn)
	}
	return nil
}

// convertSpectra filters and converts every spectrum of rd. Spectra outside
// the precursor window or without usable fragments are always skipped;
// other conversion failures follow the malformed-record policy.
func convertSpectra(ctx context.Context, rd reader.SpectrumReader, conv *convert.Converter, offsets reader.MassOffsets, sink library.Sink) (count, written, skipped int, err error) {
	for rd.Next() {
		if err := ctx.Err(); err != nil {
			return count, written, skipped, err
		}
		spec := rd.Spectrum()
		count++

		if offsets.Apply(spec) || !keepPrecursor {
			spec.PrecursorMZ = 0
		}
		cfg.Filter.Apply(spec)

		q, err := conv.FromSpectrum(spec, uint64(count-1))
		if err != nil {
			if !errors.Is(err, convert.ErrOutsideWindow) && !errors.Is(err, convert.ErrNoFragments) && !cfg.Policy.OnMalformedRecord.Skips() {
				return count, written, skipped, err
			}
			logger.Warn("skipping spectrum", "spectrum", spec.Name(), "err", err)
			skipped++
			continue
		}

		marking := digest.Target
		if spec.Decoy {
			marking = digest.ReversedDecoy
		}
		src, err := digest.WholeSequence(spec.Sequence, marking)
		if err != nil {
			return count, written, skipped, fmt.Errorf("spectrum %s: %w", spec.Name(), err)
		}
		if err := sink.Write(library.NewEntry(src, q)); err != nil {
			return count, written, skipped, fmt.Errorf("failed to write spectrum %s: %w", spec.Name(), err)
		}
		written++
		if count%1000 == 0 {
			progressf("Processed %d spectra...\n", count)
		}
	}
	if err := rd.Err(); err != nil {
		return count, written, skipped, fmt.Errorf("error reading input file: %w", err)
	}
	return count, written, skipped, nil
}
