package main

import (
	"fmt"
	"os"

	"clinicprobe/internal/config"
	"clinicprobe/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "clinicprobe",
	Short: "Browser-driven end-to-end checks for ClinicLite",
	Long: `clinicprobe drives a real Chrome against a running ClinicLite build the way
a person would: randomized pauses, hover before click, typed text. It uploads
generated CSV fixtures, toggles the network and viewport, and reports every
scenario as pass, fail or inconclusive.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		logger, err = logging.Initialize(logging.Options{
			Level:   cfg.Logging.Level,
			Format:  cfg.Logging.Format,
			File:    cfg.Logging.File,
			Verbose: verbose,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.Get(logging.CategoryBoot).Debug("configuration loaded",
			zap.String("path", configPath),
			zap.String("base_url", cfg.BaseURL),
			zap.Int("workers", cfg.Workers))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logging.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "clinicprobe.yaml", "Configuration file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(fixtureCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
