package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"clinicprobe/internal/clinic"
	"clinicprobe/internal/config"
	"clinicprobe/internal/driver"
	"clinicprobe/internal/scenario"
	"clinicprobe/internal/suite"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errSuiteFailed makes the process exit non-zero after the report has
// already been printed.
var errSuiteFailed = errors.New("suite failed")

var (
	runScenarios []string
	runGroup     string
	runTags      []string
	runWorkers   int
	runRetries   int
	runFormat    string
	runSeed      uint64
	runSuiteFile string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ClinicLite scenario catalogue",
	Long: `Runs the selected scenarios against the configured ClinicLite build.

Exits non-zero when any scenario fails or cleanup could not restore the
browser environment. Inconclusive scenarios do not fail the run.

Example:
  clinicprobe run --group upload --workers 4
  clinicprobe run --scenario app-loads --scenario offline-indicator
  clinicprobe run --suite suites/smoke.yaml`,
	RunE: runSuiteCmd,
}

func init() {
	runCmd.Flags().StringSliceVar(&runScenarios, "scenario", nil, "Scenario ID to run (repeatable)")
	runCmd.Flags().StringVar(&runGroup, "group", "", "Only run scenarios in this group")
	runCmd.Flags().StringSliceVar(&runTags, "tag", nil, "Only run scenarios carrying every tag")
	runCmd.Flags().StringVar(&runSuiteFile, "suite", "", "YAML suite file naming the scenarios to run")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Scenarios run in parallel (default from config)")
	runCmd.Flags().IntVar(&runRetries, "retries", -1, "Retries for failing scenarios (default from config)")
	runCmd.Flags().StringVar(&runFormat, "format", "", "Report format: console or json (default from config)")
	runCmd.Flags().Uint64Var(&runSeed, "seed", 0, "Seed for delays and fixtures (0 keeps the configured seed)")
}

// applyRunFlags overlays command-line flags on the loaded configuration.
func applyRunFlags(c *config.Config) {
	if runWorkers > 0 {
		c.Workers = runWorkers
	}
	if runRetries >= 0 {
		c.Retries = runRetries
	}
	if runFormat != "" {
		c.Report.Format = runFormat
	}
	if runSeed != 0 {
		c.Human.Seed = runSeed
	}
}

func selection() scenario.Filter {
	return scenario.Filter{IDs: runScenarios, Group: runGroup, Tags: runTags}
}

// picker chooses the scenarios to run from a populated harness.
type picker func(h *scenario.Harness) ([]*scenario.Scenario, error)

func byFilter(f scenario.Filter) picker {
	return func(h *scenario.Harness) ([]*scenario.Scenario, error) {
		return h.Select(f)
	}
}

// bySuite re-reads the suite file on every call.
func bySuite(path string) picker {
	return func(h *scenario.Harness) ([]*scenario.Scenario, error) {
		s, err := suite.Load(path)
		if err != nil {
			return nil, err
		}
		return s.Resolve(h)
	}
}

// currentPicker prefers --suite over the individual selection flags.
func currentPicker() picker {
	if runSuiteFile != "" {
		return bySuite(runSuiteFile)
	}
	return byFilter(selection())
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runSuiteCmd(cmd *cobra.Command, args []string) error {
	applyRunFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	summary, err := runSuite(ctx, cfg, currentPicker(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if !summary.OK() {
		return errSuiteFailed
	}
	return nil
}

func driverConfig(c *config.Config) driver.Config {
	return driver.Config{
		DebuggerURL: c.Browser.DebuggerURL,
		Bin:         c.Browser.Bin,
		Flags:       c.Browser.Flags,
		Headless:    c.Browser.Headless,
		Viewport: driver.Viewport{
			Name:   "default",
			Width:  c.Viewport.Width,
			Height: c.Viewport.Height,
		},
		NavigationTimeout: c.GetNavigationTimeout(),
	}
}

// runSuite selects scenarios, launches the browser, runs them and writes
// the report. A driver failure is returned as an error; scenario failures
// are only reflected in the summary.
func runSuite(ctx context.Context, c *config.Config, pick picker, out io.Writer) (scenario.Summary, error) {
	h := scenario.NewHarness(c.Workers, c.Retries)
	if err := h.Register(clinic.Catalogue(clinic.BudgetsFromConfig(c))...); err != nil {
		return scenario.Summary{}, err
	}
	selected, err := pick(h)
	if err != nil {
		return scenario.Summary{}, err
	}
	if len(selected) == 0 {
		return scenario.Summary{}, fmt.Errorf("no scenarios match the selection")
	}

	browser, err := driver.Launch(ctx, driverConfig(c))
	if err != nil {
		return scenario.Summary{}, err
	}
	defer func() {
		if err := browser.Close(); err != nil {
			logger.Warn("close browser", zap.Error(err))
		}
	}()

	opts := scenario.OptionsFromConfig(c)
	runner := scenario.NewRunner(browser, opts)
	logger.Info("suite starting",
		zap.String("run_id", runner.RunID()),
		zap.Uint64("seed", opts.Seed),
		zap.Int("scenarios", len(selected)),
		zap.Int("workers", c.Workers))

	results, runErr := h.RunAll(ctx, runner, selected)

	reporter := scenario.NewReporter(out, c.Report.Format)
	for _, res := range results {
		if err := reporter.Report(res); err != nil {
			return scenario.Summary{}, err
		}
	}
	if err := reporter.ReportSummary(results); err != nil {
		return scenario.Summary{}, err
	}
	if _, err := scenario.WriteResults(c.Report.Dir, results); err != nil {
		logger.Error("write results", zap.Error(err))
	}

	return scenario.Summarize(results), runErr
}
