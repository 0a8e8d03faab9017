package main

import (
	"context"
	"errors"
	"sync"

	"clinicprobe/internal/config"
	"clinicprobe/internal/watch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the selection whenever the config file changes",
	Long: `Runs the selected scenarios once, then again every time the configuration
file (or the --suite file) is saved. Both are re-read between runs, never
during one.`,
	RunE: watchSuite,
}

func init() {
	watchCmd.Flags().StringSliceVar(&runScenarios, "scenario", nil, "Scenario ID to run (repeatable)")
	watchCmd.Flags().StringVar(&runGroup, "group", "", "Only run scenarios in this group")
	watchCmd.Flags().StringSliceVar(&runTags, "tag", nil, "Only run scenarios carrying every tag")
	watchCmd.Flags().StringVar(&runSuiteFile, "suite", "", "YAML suite file naming the scenarios to run")
}

func watchSuite(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	pick := currentPicker()
	files := []string{configPath}
	if runSuiteFile != "" {
		files = append(files, runSuiteFile)
	}
	// The initial run and triggered runs share one browser slot.
	var mu sync.Mutex
	rerun := func(ctx context.Context, changed []string) error {
		mu.Lock()
		defer mu.Unlock()

		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		summary, err := runSuite(ctx, c, pick, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if len(changed) > 0 {
			logger.Info("re-ran after change", zap.Strings("changed", changed))
		}
		if !summary.OK() {
			logger.Warn("run failed",
				zap.Int("failed", summary.Failed),
				zap.Int("suite_defects", summary.SuiteDefects))
		}
		return nil
	}

	w, err := watch.New(rerun, watch.DefaultDebounce, files...)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return err
	}
	defer w.Stop()

	if err := rerun(ctx, nil); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("initial run", zap.Error(err))
	}

	logger.Info("watching for changes", zap.String("config", configPath))
	select {
	case <-ctx.Done():
	case <-w.Done():
	}
	return nil
}
