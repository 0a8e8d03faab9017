// Package logging provides categorized zap loggers for clinicprobe.
// Every category is a named child of a single root logger; until Initialize
// runs, all categories log to a no-op core.
package logging

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot        Category = "boot"        // Startup, config resolution
	CategoryBrowser     Category = "browser"     // Chrome launch, pages, CDP events
	CategoryHuman       Category = "human"       // Interaction simulator
	CategoryFixture     Category = "fixture"     // Fixture generation and release
	CategoryEnvironment Category = "environment" // Network, viewport, dialogs
	CategoryScenario    Category = "scenario"    // Phase transitions and outcomes
	CategoryReport      Category = "report"      // Report sink
	CategoryWatch       Category = "watch"       // File watcher re-runs
)

// Options configures the root logger.
type Options struct {
	Level   string // debug, info, warn, error
	Format  string // json, console
	File    string // optional extra output path
	Verbose bool   // forces debug level

	// Disabled lists categories that should be silenced.
	Disabled []Category
}

var (
	mu       sync.RWMutex
	root     = zap.NewNop()
	disabled = map[Category]bool{}
	loggers  = map[Category]*zap.Logger{}
)

// Build constructs a zap logger from options without installing it.
func Build(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(opts.Format, "console") {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	if opts.File != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, opts.File)
	}

	return cfg.Build()
}

// Initialize builds the root logger and installs it.
func Initialize(opts Options) (*zap.Logger, error) {
	logger, err := Build(opts)
	if err != nil {
		return nil, err
	}
	SetRoot(logger, opts.Disabled...)
	return logger, nil
}

// SetRoot installs logger as the parent of every category logger.
func SetRoot(logger *zap.Logger, silenced ...Category) {
	mu.Lock()
	defer mu.Unlock()

	if logger == nil {
		logger = zap.NewNop()
	}
	root = logger
	disabled = make(map[Category]bool, len(silenced))
	for _, c := range silenced {
		disabled[c] = true
	}
	loggers = make(map[Category]*zap.Logger)
}

// Get returns (or creates) a logger for the given category.
func Get(category Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	var l *zap.Logger
	if disabled[category] {
		l = zap.NewNop()
	} else {
		l = root.Named(string(category))
	}
	loggers[category] = l
	return l
}

// Sync flushes the root logger.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

// Convenience helpers for the busiest categories.

func Browser() *zap.Logger  { return Get(CategoryBrowser) }
func Scenario() *zap.Logger { return Get(CategoryScenario) }
func Fixture() *zap.Logger  { return Get(CategoryFixture) }
