package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/DBSeek/pkg/batch"
)

var validateCmd = &cobra.Command{
	Use:   "validate <library>",
	Short: "Check a query library before searching it",
	Long: `Load an NDJSON, JSON or SQLite query library and replay it in batches,
checking every query for values the scoring engine cannot use. Queries whose
precursor or fragments fall outside the configured m/z windows are reported
as warnings.

Examples:
  dbseek validate human.ndjson.gz
  dbseek validate human.db --on-malformed-record skip`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().Int("chunk-size", batch.DefaultOptions().ChunkSize, "Queries per batch")
	validateCmd.Flags().String("on-malformed-record", "fail", "What to do with a record that cannot be decoded: fail or skip")
}

func runValidate(cmd *cobra.Command, args []string) error {
	lib, err := loadLibrary(args[0])
	if err != nil {
		return err
	}
	src, err := lib.Source(cfg.Batching.ChunkSize)
	if err != nil {
		return err
	}

	invalid, outside := 0, 0
	ids := make(map[uint64]struct{}, lib.Len())
	duplicates := 0
	progress, err := batch.Drain(cmd.Context(), src, cfg.Policy.OnEmptyBatch, logger, func(b *batch.Batch) error {
		if err := b.Validate(); err != nil {
			return err
		}
		for i := range b.Queries {
			q := &b.Queries[i]
			if err := q.Validate(); err != nil {
				logger.Warn("invalid query", "id", q.ID, "sequence", b.Sources[i].String(), "err", err)
				invalid++
				continue
			}
			if !q.WithinWindows(cfg.Conversion.Precursor, cfg.Conversion.Fragment) {
				logger.Debug("query outside windows", "id", q.ID, "precursor_mz", q.MonoisotopicMZ())
				outside++
			}
			if _, dup := ids[q.ID]; dup {
				logger.Warn("duplicate query id", "id", q.ID)
				duplicates++
			}
			ids[q.ID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Entries:          %d\n", lib.Len())
	if lib.Skipped > 0 {
		fmt.Fprintf(out, "Skipped records:  %d\n", lib.Skipped)
	}
	fmt.Fprintf(out, "Batches:          %d\n", progress.Batches)
	fmt.Fprintf(out, "Invalid queries:  %d\n", invalid)
	fmt.Fprintf(out, "Outside windows:  %d\n", outside)
	fmt.Fprintf(out, "Duplicate IDs:    %d\n", duplicates)

	if invalid > 0 || duplicates > 0 {
		return fmt.Errorf("%s: %d invalid queries, %d duplicate ids", args[0], invalid, duplicates)
	}
	return nil
}
