package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/DBSeek/pkg/library"
	"github.com/ChrisMcGann/DBSeek/pkg/writer/sqlite"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <library>",
	Short: "Print statistics about a query library",
	Long: `Print entry counts, charge states and m/z ranges of an NDJSON, JSON or
SQLite query library. For SQLite libraries the header is printed too.

Examples:
  dbseek summarize human.ndjson.gz
  dbseek summarize human.db`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().String("on-malformed-record", "fail", "What to do with a record that cannot be decoded: fail or skip")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	path := args[0]
	out := cmd.OutOrStdout()

	if isDatabase(path) {
		h, err := sqlite.ReadHeader(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Library ID:         %s\n", h.LibraryID)
		fmt.Fprintf(out, "Schema version:     %d\n", h.Version)
		fmt.Fprintf(out, "Created:            %s\n", h.CreationDate)
		if h.Description != "" {
			fmt.Fprintf(out, "Description:        %s\n", h.Description)
		}
	}

	lib, err := loadLibrary(path)
	if err != nil {
		return err
	}
	return library.Summarize(lib, cfg.Conversion.Precursor, cfg.Conversion.Fragment).Write(out)
}
