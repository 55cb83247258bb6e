// Package cmd provides CLI command implementations
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ChrisMcGann/DBSeek/pkg/config"
	"github.com/ChrisMcGann/DBSeek/pkg/core"
)

// customModsFile is picked up from the working directory when no
// modifications file is configured.
const customModsFile = "unimod_custom.csv"

var (
	// Global flags
	settingsFile string
	verbose      bool
	metricsAddr  string

	// Set by loadSettings before any command runs
	cfg    *config.Config
	logger *slog.Logger
)

// flagKeys maps command-line flags to the settings they override. Flags are
// bound for the command being run only, so several commands may share a key.
var flagKeys = map[string]string{
	"enzyme":              "digestion.enzyme",
	"min-length":          "digestion.min_length",
	"max-length":          "digestion.max_length",
	"missed-cleavages":    "digestion.max_missed_cleavages",
	"min-charge":          "conversion.min_charge",
	"max-charge":          "conversion.max_charge",
	"workers":             "conversion.workers",
	"chunk-size":          "batching.chunk_size",
	"decoys":              "batching.decoys",
	"filter-collisions":   "batching.filter_decoy_collisions",
	"min-fragments":       "build.min_fragments",
	"top-n":               "filter.top_n",
	"cutoff":              "filter.intensity_cutoff",
	"ion-types":           "filter.ion_types",
	"on-empty-batch":      "policy.on_empty_batch",
	"on-malformed-record": "policy.on_malformed_record",
	"nmer-size":           "nmer_size",
	"modifications":       "modifications",
}

var rootCmd = &cobra.Command{
	Use:   "dbseek",
	Short: "DBSeek - peptide candidate generation and query libraries",
	Long: `DBSeek digests a proteome into deduplicated, decoy-augmented peptide
candidates and converts them into scoring queries, streamed in fixed-size
batches.

It also builds, converts, validates and summarizes precomputed query
libraries:
- In-silico digestion with missed cleavages
- Reversed decoys with fixed termini
- Precursor isotope envelopes, fragment m/z and mobility prediction
- NDJSON and SQLite query libraries, MSP/SPTXT import`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

// Execute runs the CLI. An interrupt cancels the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "YAML settings file (DBSEEK_* environment variables and flags override it)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	rootCmd.PersistentFlags().String("modifications", "", "CSV of extra named modifications (name,mass)")

	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(configCmd)
}

// loadSettings installs the logger, resolves settings and starts the
// metrics endpoint.
func loadSettings(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	v := viper.New()
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
			bindErr = v.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	var err error
	cfg, err = config.Load(v, settingsFile)
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		go serveMetrics(metricsAddr)
	}
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", "err", err)
	}
}

// modDatabase returns the default modifications plus the configured CSV,
// or unimod_custom.csv from the working directory if present.
func modDatabase() (*core.ModDatabase, error) {
	db := core.DefaultModDatabase()

	path := cfg.Modifications
	if path == "" {
		if _, err := os.Stat(customModsFile); err != nil {
			return db, nil
		}
		path = customModsFile
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open modifications: %w", err)
	}
	defer f.Close()

	before := db.Len()
	if err := db.LoadFromCSV(f); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	logger.Debug("loaded modifications", "path", path, "added", db.Len()-before)
	return db, nil
}
