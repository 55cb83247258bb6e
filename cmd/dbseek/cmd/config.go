package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/DBSeek/pkg/config"
	"github.com/ChrisMcGann/DBSeek/pkg/fileio"
)

var configOut string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create settings files",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default settings as YAML",
	Long: `Write the default settings as YAML, ready to edit and pass back with
--settings.

Examples:
  dbseek config init --out dbseek.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := fileio.Create(configOut)
		if err != nil {
			return fmt.Errorf("failed to create settings file: %w", err)
		}
		if err := config.Write(w, config.Default()); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Long: `Print the settings after the settings file, DBSEEK_* environment
variables and flags have been applied.

Examples:
  DBSEEK_BATCHING_CHUNK_SIZE=1000 dbseek config show --settings dbseek.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.Write(cmd.OutOrStdout(), *cfg)
	},
}

func init() {
	configInitCmd.Flags().StringVarP(&configOut, "out", "o", "-", "Output file ('-' for stdout)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
