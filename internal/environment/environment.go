// Package environment mutates the conditions a page runs under (network,
// viewport, dialogs) and guarantees those conditions are put back.
//
// Every mutation returns a Restore. RestoreAll runs whatever is still
// outstanding in reverse order and then forces the page online at the
// suite default viewport, so a scenario never leaks conditions into the
// next one even when it failed half way.
package environment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"clinicprobe/internal/driver"
	"clinicprobe/internal/logging"

	"go.uber.org/zap"
)

var (
	// ErrRestore marks a failure to put the environment back. It is a
	// suite defect, not a scenario failure.
	ErrRestore = errors.New("environment restore failed")

	// ErrBudgetExceeded is returned by Within when an operation is slower
	// than its budget.
	ErrBudgetExceeded = errors.New("performance budget exceeded")
)

// Viewport presets.
var (
	Desktop = driver.Viewport{Name: "desktop", Width: 1280, Height: 720}
	Tablet  = driver.Viewport{Name: "tablet", Width: 768, Height: 1024, Mobile: true}
	Mobile  = driver.Viewport{Name: "mobile", Width: 375, Height: 667, Mobile: true}
)

// ParsePreset resolves a preset name or an arbitrary WIDTHxHEIGHT size.
func ParsePreset(name string) (driver.Viewport, error) {
	switch strings.ToLower(name) {
	case "desktop":
		return Desktop, nil
	case "tablet":
		return Tablet, nil
	case "mobile":
		return Mobile, nil
	}

	w, h, ok := strings.Cut(strings.ToLower(name), "x")
	if ok {
		width, werr := strconv.Atoi(w)
		height, herr := strconv.Atoi(h)
		if werr == nil && herr == nil && width > 0 && height > 0 {
			return driver.Viewport{Name: name, Width: width, Height: height}, nil
		}
	}
	return driver.Viewport{}, fmt.Errorf("unknown viewport %q (want desktop, tablet, mobile or WIDTHxHEIGHT)", name)
}

// Restore undoes one mutation. Calling it more than once is harmless.
type Restore func(ctx context.Context) error

type pending struct {
	name string
	done bool
	fn   func(ctx context.Context) error
}

// Controller owns the environment of one page.
type Controller struct {
	page     driver.Page
	defaults driver.Viewport
	log      *zap.Logger

	mu       sync.Mutex
	pending  []*pending
	offline  bool
	viewport driver.Viewport
	dialogs  []*DialogRecorder
	consoles []*ConsoleRecorder
}

// New returns a controller for page. defaults is the viewport every scenario
// is restored to.
func New(page driver.Page, defaults driver.Viewport) *Controller {
	return &Controller{
		page:     page,
		defaults: defaults,
		viewport: defaults,
		log:      logging.Get(logging.CategoryEnvironment),
	}
}

// Defaults returns the suite default viewport.
func (c *Controller) Defaults() driver.Viewport { return c.defaults }

func (c *Controller) push(name string, fn func(ctx context.Context) error) Restore {
	p := &pending{name: name, fn: fn}
	c.mu.Lock()
	c.pending = append(c.pending, p)
	c.mu.Unlock()

	return func(ctx context.Context) error {
		c.mu.Lock()
		if p.done {
			c.mu.Unlock()
			return nil
		}
		p.done = true
		c.mu.Unlock()
		return p.fn(ctx)
	}
}

// SetNetwork switches the page online or offline.
func (c *Controller) SetNetwork(ctx context.Context, online bool) (Restore, error) {
	c.mu.Lock()
	prev := c.offline
	c.mu.Unlock()

	if err := c.page.SetOffline(ctx, !online); err != nil {
		return nil, fmt.Errorf("set network online=%t: %w", online, err)
	}
	c.mu.Lock()
	c.offline = !online
	c.mu.Unlock()
	c.log.Debug("network changed", zap.Bool("online", online))

	return c.push("network", func(ctx context.Context) error {
		if err := c.page.SetOffline(ctx, prev); err != nil {
			return fmt.Errorf("restore network: %w", err)
		}
		c.mu.Lock()
		c.offline = prev
		c.mu.Unlock()
		return nil
	}), nil
}

// SetViewport resizes the page.
func (c *Controller) SetViewport(ctx context.Context, vp driver.Viewport) (Restore, error) {
	if vp.Width <= 0 || vp.Height <= 0 {
		return nil, fmt.Errorf("invalid viewport %dx%d", vp.Width, vp.Height)
	}

	c.mu.Lock()
	prev := c.viewport
	c.mu.Unlock()

	if err := c.page.SetViewport(ctx, vp); err != nil {
		return nil, fmt.Errorf("set viewport %dx%d: %w", vp.Width, vp.Height, err)
	}
	c.mu.Lock()
	c.viewport = vp
	c.mu.Unlock()
	c.log.Debug("viewport changed", zap.Int("width", vp.Width), zap.Int("height", vp.Height))

	return c.push("viewport", func(ctx context.Context) error {
		if err := c.page.SetViewport(ctx, prev); err != nil {
			return fmt.Errorf("restore viewport: %w", err)
		}
		c.mu.Lock()
		c.viewport = prev
		c.mu.Unlock()
		return nil
	}), nil
}

// Online reports the current network state.
func (c *Controller) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.offline
}

// Viewport reports the current viewport.
func (c *Controller) Viewport() driver.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

// InterceptDialogs starts dismissing every native dialog and recording it.
// Interception lasts until the recorder is stopped or RestoreAll runs.
func (c *Controller) InterceptDialogs() *DialogRecorder {
	rec := &DialogRecorder{}
	rec.stop = c.page.OnDialog(rec.record)
	c.mu.Lock()
	c.dialogs = append(c.dialogs, rec)
	c.mu.Unlock()
	return rec
}

// CaptureConsole starts recording console messages.
func (c *Controller) CaptureConsole() *ConsoleRecorder {
	rec := &ConsoleRecorder{}
	rec.stop = c.page.OnConsole(rec.record)
	c.mu.Lock()
	c.consoles = append(c.consoles, rec)
	c.mu.Unlock()
	return rec
}

// RestoreAll runs outstanding restores newest first, then forces the page
// online at the default viewport and stops every recorder. Any failure is
// wrapped in ErrRestore.
func (c *Controller) RestoreAll(ctx context.Context) error {
	c.mu.Lock()
	todo := c.pending
	c.pending = nil
	dialogs := c.dialogs
	c.dialogs = nil
	consoles := c.consoles
	c.consoles = nil
	c.mu.Unlock()

	var errs []error
	for i := len(todo) - 1; i >= 0; i-- {
		p := todo[i]
		c.mu.Lock()
		done := p.done
		p.done = true
		c.mu.Unlock()
		if done {
			continue
		}
		if err := p.fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := c.page.SetOffline(ctx, false); err != nil {
		errs = append(errs, fmt.Errorf("force online: %w", err))
	} else {
		c.mu.Lock()
		c.offline = false
		c.mu.Unlock()
	}
	if err := c.page.SetViewport(ctx, c.defaults); err != nil {
		errs = append(errs, fmt.Errorf("force default viewport: %w", err))
	} else {
		c.mu.Lock()
		c.viewport = c.defaults
		c.mu.Unlock()
	}

	for _, rec := range dialogs {
		rec.Stop()
	}
	for _, rec := range consoles {
		rec.Stop()
	}

	if len(errs) == 0 {
		return nil
	}
	err := fmt.Errorf("%w: %w", ErrRestore, errors.Join(errs...))
	c.log.Error("environment restore failed", zap.Bool("suite_defect", true), zap.Error(err))
	return err
}

// DialogRecorder records dialogs that were dismissed.
type DialogRecorder struct {
	mu      sync.Mutex
	dialogs []driver.Dialog
	stop    func()
	once    sync.Once
}

func (r *DialogRecorder) record(d driver.Dialog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialogs = append(r.dialogs, d)
}

// Dialogs returns every recorded dialog.
func (r *DialogRecorder) Dialogs() []driver.Dialog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]driver.Dialog(nil), r.dialogs...)
}

// Count returns how many dialogs were recorded.
func (r *DialogRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.dialogs)
}

// Stop ends interception. Safe to call more than once.
func (r *DialogRecorder) Stop() {
	r.once.Do(func() {
		if r.stop != nil {
			r.stop()
		}
	})
}

// ConsoleRecorder records console messages.
type ConsoleRecorder struct {
	mu       sync.Mutex
	messages []driver.ConsoleMessage
	stop     func()
	once     sync.Once
}

func (r *ConsoleRecorder) record(m driver.ConsoleMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

// Messages returns every recorded message.
func (r *ConsoleRecorder) Messages() []driver.ConsoleMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]driver.ConsoleMessage(nil), r.messages...)
}

// Errors returns messages logged at error level.
func (r *ConsoleRecorder) Errors() []driver.ConsoleMessage {
	var out []driver.ConsoleMessage
	for _, m := range r.Messages() {
		if m.Level == "error" {
			out = append(out, m)
		}
	}
	return out
}

// Stop ends capture. Safe to call more than once.
func (r *ConsoleRecorder) Stop() {
	r.once.Do(func() {
		if r.stop != nil {
			r.stop()
		}
	})
}

// Measure times fn.
func Measure(fn func() error) (time.Duration, error) {
	start := time.Now()
	err := fn()
	return time.Since(start), err
}

// BudgetError reports an operation that ran past its budget.
type BudgetError struct {
	Label   string
	Budget  time.Duration
	Elapsed time.Duration
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("%s took %s, budget %s", e.Label, e.Elapsed.Round(time.Millisecond), e.Budget)
}

func (e *BudgetError) Unwrap() error { return ErrBudgetExceeded }

// Within times fn and fails with a *BudgetError when it finishes later than
// budget. An error from fn takes precedence.
func Within(budget time.Duration, label string, fn func() error) (time.Duration, error) {
	return WithinSince(time.Now(), budget, label, fn)
}

// WithinSince is Within for an operation that was set off at start, before
// fn began waiting for its outcome.
func WithinSince(start time.Time, budget time.Duration, label string, fn func() error) (time.Duration, error) {
	err := fn()
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, err
	}
	if budget > 0 && elapsed > budget {
		return elapsed, &BudgetError{Label: label, Budget: budget, Elapsed: elapsed}
	}
	return elapsed, nil
}
