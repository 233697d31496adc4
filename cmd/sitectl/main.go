// Package main provides sitectl, the command line entry point for the site API
// server, the offline edge cache and the pricing tools.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/santoscsolutions/site/internal/config"
	"github.com/santoscsolutions/site/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool

	// Set by the root pre-run for every subcommand.
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "sitectl",
	Short:         "Santos Cleaning Solutions site tools",
	Long:          "sitectl runs the site API, the offline edge cache in front of the static site, and the pricing calculator from the command line.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return setup()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// setup loads configuration (file, then environment, then defaults) and
// builds the logger.
func setup() error {
	loaded := &config.Config{}
	if configPath != "" {
		var err error
		if loaded, err = config.LoadConfig(configPath); err != nil {
			return err
		}
	}
	if err := loaded.ApplyEnv(); err != nil {
		return err
	}
	cfg = loaded.MergeWithDefaults(config.Config{})
	if err := cfg.Validate(); err != nil {
		return err
	}

	var err error
	logger, err = logging.New(verbose || cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	return nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
