package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/DBSeek/pkg/batch"
	"github.com/ChrisMcGann/DBSeek/pkg/convert"
	"github.com/ChrisMcGann/DBSeek/pkg/library"
)

var (
	// Flags for build command
	buildFasta       string
	buildOut         string
	buildDB          string
	buildDescription string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a query library from a FASTA proteome",
	Long: `Digest a FASTA proteome, add reversed decoys and convert every candidate
into scoring queries for each precursor charge. Queries are produced in
fixed-size batches and written as NDJSON, to a SQLite library, or both.

Examples:
  # NDJSON library with decoys, 4096 targets per batch
  dbseek build --fasta human.fasta.gz --out human.ndjson.gz --chunk-size 4096

  # SQLite library, charges 2 to 4, skipping batches that convert to nothing
  dbseek build --fasta human.fasta --db human.db --min-charge 2 --max-charge 4 --on-empty-batch skip`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildFasta, "fasta", "i", "", "Input FASTA file, optionally gzip-compressed (required)")
	buildCmd.Flags().StringVarP(&buildOut, "out", "o", "", "Output NDJSON library ('-' for stdout, .gz to compress)")
	buildCmd.Flags().StringVar(&buildDB, "db", "", "Output SQLite library")
	buildCmd.Flags().StringVar(&buildDescription, "description", "", "Description stored in the SQLite header")

	buildCmd.Flags().Int("chunk-size", batch.DefaultOptions().ChunkSize, "Target candidates per batch")
	buildCmd.Flags().Bool("decoys", true, "Add the reversed decoy of every target")
	buildCmd.Flags().Bool("filter-collisions", false, "Drop decoys whose sequence is also a target")
	buildCmd.Flags().Int("min-charge", convert.DefaultConfig().MinCharge, "Lowest precursor charge")
	buildCmd.Flags().Int("max-charge", convert.DefaultConfig().MaxCharge, "Highest precursor charge")
	buildCmd.Flags().Int("min-fragments", library.DefaultBuildOptions().MinFragments, "Drop queries with fewer fragments in range")
	buildCmd.Flags().String("on-empty-batch", "fail", "What to do with a batch that converts to nothing: fail or skip")
	addDigestionFlags(buildCmd.Flags())

	buildCmd.MarkFlagRequired("fasta")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	_, candidates, seen, err := digestProteome(ctx, buildFasta)
	if err != nil {
		return err
	}

	conv, err := newConverter()
	if err != nil {
		return err
	}
	src, err := batch.NewDigestSource(candidates, conv, cfg.Batching)
	if err != nil {
		return err
	}
	src.WithTargets(seen)

	sinks, err := openSinks(buildOut, buildDB, buildDescription)
	if err != nil {
		return err
	}

	total := src.Len()
	written := 0
	progress, err := batch.Drain(ctx, src, cfg.Policy.OnEmptyBatch, logger, func(b *batch.Batch) error {
		n, err := library.WriteBatch(sinks, b, cfg.Build)
		if err != nil {
			return err
		}
		written += n
		logger.Debug("wrote batch", "window", b.Window.String(), "queries", b.Len(), "written", n)
		if done := total - src.Len(); done%10 == 0 {
			progressf("Processed %d/%d batches...\n", done, total)
		}
		return nil
	})
	if err != nil {
		sinks.abort()
		return err
	}
	if err := sinks.Close(); err != nil {
		return fmt.Errorf("failed to finalize library: %w", err)
	}

	logger.Info("build complete",
		"batches", progress.Batches,
		"skipped_batches", progress.Skipped,
		"queries", progress.Queries,
		"written", written,
		"pruned", progress.Queries-written)
	return nil
}
