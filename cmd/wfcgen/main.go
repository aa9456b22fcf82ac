// Command wfcgen generates tile grids from sample images with Wave Function Collapse.
package main

import (
	"fmt"
	"os"

	"github.com/lawnchairsociety/wfcgen/internal/config"
	"github.com/lawnchairsociety/wfcgen/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	// cfg is loaded once in PersistentPreRunE and shared by every subcommand
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "wfcgen",
	Short: "Generate tile grids from a sample with Wave Function Collapse",
	Long: `wfcgen learns tile frequencies and adjacency rules from a small sample grid
and generates larger grids that only place tiles next to each other the way
the sample does.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logCfg, err := logger.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			logCfg.Level = logLevel
		}
		if err := logger.Initialize(logCfg); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "wfcgen.yaml", "Path to config file (missing file uses defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
