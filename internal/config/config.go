package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all clinicprobe configuration. It is read once when a suite
// starts and never re-evaluated while scenarios are running.
type Config struct {
	// Application under test
	BaseURL string `yaml:"base_url"`
	APIURL  string `yaml:"api_url"`

	Browser  BrowserConfig  `yaml:"browser"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
	Human    HumanConfig    `yaml:"human"`
	Viewport ViewportConfig `yaml:"viewport"`
	Budgets  BudgetConfig   `yaml:"budgets"`
	Fixtures FixtureConfig  `yaml:"fixtures"`
	Report   ReportConfig   `yaml:"report"`
	Logging  LoggingConfig  `yaml:"logging"`

	// Retries is how many times a failing scenario is re-executed.
	Retries int `yaml:"retries"`
	// Workers bounds how many scenarios run in parallel, one page each.
	Workers int `yaml:"workers"`
}

// BrowserConfig configures how Chrome is launched or attached.
type BrowserConfig struct {
	Headless    bool     `yaml:"headless"`
	Bin         string   `yaml:"bin"`
	DebuggerURL string   `yaml:"debugger_url"`
	Flags       []string `yaml:"flags"`
}

// TimeoutConfig holds every bounded wait the harness performs.
type TimeoutConfig struct {
	Scenario   string `yaml:"scenario"`
	Navigation string `yaml:"navigation"`
	Locator    string `yaml:"locator"`
	Signal     string `yaml:"signal"`
	Bulk       string `yaml:"bulk"`
}

// HumanConfig configures the interaction simulator pacing.
type HumanConfig struct {
	MinDelay    string `yaml:"min_delay"`
	MaxDelay    string `yaml:"max_delay"`
	TypingDelay string `yaml:"typing_delay"`
	RapidDelay  string `yaml:"rapid_delay"`
	KeyDelay    string `yaml:"key_delay"`
	// Seed drives every random choice; 0 means seed from the clock.
	Seed uint64 `yaml:"seed"`
}

// ViewportConfig is the suite default viewport that every scenario is
// restored to.
type ViewportConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// BudgetConfig holds performance budgets.
type BudgetConfig struct {
	BulkUpload string `yaml:"bulk_upload"`
	PageLoad   string `yaml:"page_load"`
}

// FixtureConfig configures where fixture files are materialized.
type FixtureConfig struct {
	Dir string `yaml:"dir"`
}

// ReportConfig configures the report sink.
type ReportConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"` // console, json
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "http://localhost:3001",
		APIURL:  "http://localhost:8000",

		Browser: BrowserConfig{
			Headless: true,
		},

		Timeouts: TimeoutConfig{
			Scenario:   "30s",
			Navigation: "30s",
			Locator:    "5s",
			Signal:     "10s",
			Bulk:       "30s",
		},

		Human: HumanConfig{
			MinDelay:    "100ms",
			MaxDelay:    "500ms",
			TypingDelay: "50ms",
			RapidDelay:  "50ms",
			KeyDelay:    "100ms",
		},

		Viewport: ViewportConfig{
			Width:  1280,
			Height: 720,
		},

		Budgets: BudgetConfig{
			BulkUpload: "2s",
			PageLoad:   "10s",
		},

		Report: ReportConfig{
			Dir:    filepath.Join("workspace", "reports"),
			Format: "console",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},

		Retries: 0,
		Workers: 1,
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("CLINICPROBE_BASE_URL"); url != "" {
		c.BaseURL = url
	}
	if url := os.Getenv("CLINICPROBE_API_URL"); url != "" {
		c.APIURL = url
	}
	if url := os.Getenv("CLINICPROBE_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}

	// Only an explicit "false" turns headless off.
	if v := os.Getenv("CLINICPROBE_HEADLESS"); v != "" {
		c.Browser.Headless = v != "false"
	}

	if v := os.Getenv("CLINICPROBE_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Human.Seed = seed
		}
	}
	if v := os.Getenv("CLINICPROBE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// GetScenarioTimeout returns the per-scenario deadline.
func (c *Config) GetScenarioTimeout() time.Duration {
	return parseDuration(c.Timeouts.Scenario, 30*time.Second)
}

// GetNavigationTimeout returns the navigation timeout.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Timeouts.Navigation, 30*time.Second)
}

// GetLocatorTimeout returns the default locator resolution timeout.
func (c *Config) GetLocatorTimeout() time.Duration {
	return parseDuration(c.Timeouts.Locator, 5*time.Second)
}

// GetSignalTimeout returns how long to wait for an upload outcome signal.
func (c *Config) GetSignalTimeout() time.Duration {
	return parseDuration(c.Timeouts.Signal, 10*time.Second)
}

// GetBulkTimeout returns the wait used for bulk uploads.
func (c *Config) GetBulkTimeout() time.Duration {
	return parseDuration(c.Timeouts.Bulk, 30*time.Second)
}

func (c *Config) GetMinDelay() time.Duration {
	return parseDuration(c.Human.MinDelay, 100*time.Millisecond)
}

func (c *Config) GetMaxDelay() time.Duration {
	return parseDuration(c.Human.MaxDelay, 500*time.Millisecond)
}

func (c *Config) GetTypingDelay() time.Duration {
	return parseDuration(c.Human.TypingDelay, 50*time.Millisecond)
}

func (c *Config) GetRapidDelay() time.Duration {
	return parseDuration(c.Human.RapidDelay, 50*time.Millisecond)
}

func (c *Config) GetKeyDelay() time.Duration {
	return parseDuration(c.Human.KeyDelay, 100*time.Millisecond)
}

// GetBulkUploadBudget returns the performance budget for bulk uploads.
func (c *Config) GetBulkUploadBudget() time.Duration {
	return parseDuration(c.Budgets.BulkUpload, 2*time.Second)
}

// GetPageLoadBudget returns the performance budget for an initial page load.
func (c *Config) GetPageLoadBudget() time.Duration {
	return parseDuration(c.Budgets.PageLoad, 10*time.Second)
}

// FixtureDir returns the directory fixtures are written to.
func (c *Config) FixtureDir() string {
	if c.Fixtures.Dir == "" {
		return os.TempDir()
	}
	return c.Fixtures.Dir
}

// ScreenshotDir returns the directory screenshots are written to.
func (c *Config) ScreenshotDir() string {
	return filepath.Join(c.Report.Dir, "screenshots")
}

// ValidFormats lists the supported report formats.
var ValidFormats = []string{"console", "json"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url not configured (set CLINICPROBE_BASE_URL)")
	}
	if c.APIURL == "" {
		return fmt.Errorf("api_url not configured (set CLINICPROBE_API_URL)")
	}
	if c.GetMinDelay() > c.GetMaxDelay() {
		return fmt.Errorf("human.min_delay %s exceeds human.max_delay %s", c.GetMinDelay(), c.GetMaxDelay())
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return fmt.Errorf("invalid viewport %dx%d", c.Viewport.Width, c.Viewport.Height)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	}

	validFormat := false
	for _, f := range ValidFormats {
		if c.Report.Format == f {
			validFormat = true
			break
		}
	}
	if !validFormat {
		return fmt.Errorf("invalid report format: %s (valid: %v)", c.Report.Format, ValidFormats)
	}

	return nil
}
