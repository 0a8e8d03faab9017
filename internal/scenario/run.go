package scenario

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"clinicprobe/internal/driver"
	"clinicprobe/internal/environment"
	"clinicprobe/internal/fixture"
	"clinicprobe/internal/humanize"

	"go.uber.org/zap"
)

// Run is what a scenario body sees: the page it exclusively owns and the
// components bound to it.
type Run struct {
	Scenario *Scenario
	Page     driver.Page
	Human    *humanize.Simulator
	Env      *environment.Controller
	Gen      *fixture.Generator
	Log      *zap.Logger

	opts     Options
	fixtures *fixture.Set
	dialogs  *environment.DialogRecorder

	mu     sync.Mutex
	result *Result
	shots  int
	marks  map[string]time.Time
}

// BaseURL returns the application URL.
func (r *Run) BaseURL() string { return r.opts.BaseURL }

// APIURL returns the backend URL.
func (r *Run) APIURL() string { return r.opts.APIURL }

// URL joins path onto the application URL.
func (r *Run) URL(path string) string {
	return strings.TrimRight(r.opts.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// Open navigates to path on the application and records the load time.
func (r *Run) Open(ctx context.Context, path string) error {
	_, err := r.Measure("load "+path, func() error {
		return r.Page.Navigate(ctx, r.URL(path))
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	return nil
}

// SignalTimeout is how long an upload may take to show any terminal signal.
func (r *Run) SignalTimeout() time.Duration { return r.opts.SignalTimeout }

// LocatorTimeout bounds element resolution.
func (r *Run) LocatorTimeout() time.Duration { return r.opts.LocatorTimeout }

// BulkTimeout bounds bulk fixture processing.
func (r *Run) BulkTimeout() time.Duration { return r.opts.BulkTimeout }

// Fixture writes f and ties its file to this scenario; cleanup deletes it.
func (r *Run) Fixture(f *fixture.Fixture) (*fixture.Handle, error) {
	h, err := r.fixtures.Write(f)
	if err != nil {
		return nil, err
	}
	r.Log.Debug("fixture acquired", zap.String("path", h.Path), zap.String("class", string(h.Class)))
	return h, nil
}

// Handles returns the fixtures this run has written, oldest first.
func (r *Run) Handles() []*fixture.Handle { return r.fixtures.Handles() }

// Probe is the result of a presence check on an optional element.
type Probe struct {
	Selector string
	Element  driver.Element
}

// Present reports whether the element exists.
func (p Probe) Present() bool { return p.Element != nil }

// Probe checks whether selector exists right now without waiting for it.
func (r *Run) Probe(ctx context.Context, selector string) (Probe, error) {
	el, ok, err := r.Page.Query(ctx, selector)
	if err != nil {
		return Probe{Selector: selector}, fmt.Errorf("probe %s: %w", selector, err)
	}
	if !ok {
		return Probe{Selector: selector}, nil
	}
	return Probe{Selector: selector, Element: el}, nil
}

// ProbeWithin waits up to timeout for selector to attach.
func (r *Run) ProbeWithin(ctx context.Context, selector string, timeout time.Duration) (Probe, error) {
	el, err := r.Page.WaitFor(ctx, selector, driver.StateAttached, timeout)
	if errors.Is(err, driver.ErrLocatorTimeout) {
		return Probe{Selector: selector}, nil
	}
	if err != nil {
		return Probe{Selector: selector}, fmt.Errorf("probe %s: %w", selector, err)
	}
	return Probe{Selector: selector, Element: el}, nil
}

// RequireOptional turns an absent probe into an inconclusive outcome.
func (r *Run) RequireOptional(p Probe) error {
	if p.Present() {
		return nil
	}
	return &Failure{Kind: KindOptionalAbsent, Locator: p.Selector, Err: ErrOptionalAbsent}
}

// RequireSignal waits for any of selectors to become visible within the
// signal timeout and returns the one that appeared. No signal at all is a
// failure: an upload is never allowed to pass silently.
func (r *Run) RequireSignal(ctx context.Context, selectors ...string) (string, error) {
	return r.RequireSignalWithin(ctx, r.opts.SignalTimeout, selectors...)
}

// RequireSignalWithin is RequireSignal with an explicit timeout, for bulk
// processing.
func (r *Run) RequireSignalWithin(ctx context.Context, timeout time.Duration, selectors ...string) (string, error) {
	if len(selectors) == 0 {
		return "", errors.New("require signal: no selectors")
	}
	joined := strings.Join(selectors, ", ")
	if _, err := r.Page.WaitFor(ctx, joined, driver.StateVisible, timeout); err != nil {
		if errors.Is(err, driver.ErrLocatorTimeout) {
			return "", &Failure{
				Kind:    KindAssertion,
				Locator: joined,
				Err:     fmt.Errorf("%w: no terminal signal within %s", ErrAssertion, timeout),
			}
		}
		return "", err
	}

	for _, sel := range selectors {
		el, ok, err := r.Page.Query(ctx, sel)
		if err != nil || !ok {
			continue
		}
		if visible, _ := el.Visible(ctx); visible {
			r.Note("signal %s", sel)
			return sel, nil
		}
	}
	return joined, nil
}

// Expect fails with an assertion error when cond is false.
func (r *Run) Expect(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return Failf(format, args...)
}

// ExpectText locates selector and checks that its text contains want.
func (r *Run) ExpectText(ctx context.Context, selector, want string) error {
	el, err := r.Page.Locate(ctx, selector, r.opts.LocatorTimeout)
	if err != nil {
		return err
	}
	got, err := el.Text(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", selector, err)
	}
	if !strings.Contains(got, want) {
		return &Failure{
			Kind:    KindAssertion,
			Locator: selector,
			Err:     fmt.Errorf("%w: text %q does not contain %q", ErrAssertion, strings.TrimSpace(got), want),
		}
	}
	return nil
}

// WaitText polls selector until its text contains want.
func (r *Run) WaitText(ctx context.Context, selector, want string, timeout time.Duration) error {
	var last string
	ok := r.poll(ctx, timeout, func() bool {
		el, found, err := r.Page.Query(ctx, selector)
		if err != nil || !found {
			return false
		}
		text, err := el.Text(ctx)
		if err != nil {
			return false
		}
		last = strings.TrimSpace(text)
		return strings.Contains(text, want)
	})
	if ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return &Failure{
		Kind:    KindAssertion,
		Locator: selector,
		Err:     fmt.Errorf("%w: text %q after %s, want %q", ErrAssertion, last, timeout, want),
	}
}

// WaitClass polls selector until its class list contains class.
func (r *Run) WaitClass(ctx context.Context, selector, class string, timeout time.Duration) error {
	var last string
	ok := r.poll(ctx, timeout, func() bool {
		el, found, err := r.Page.Query(ctx, selector)
		if err != nil || !found {
			return false
		}
		attr, _, err := el.Attribute(ctx, "class")
		if err != nil {
			return false
		}
		last = attr
		return slices.Contains(strings.Fields(attr), class)
	})
	if ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return &Failure{
		Kind:    KindAssertion,
		Locator: selector,
		Err:     fmt.Errorf("%w: class %q after %s, want %q", ErrAssertion, last, timeout, class),
	}
}

func (r *Run) poll(ctx context.Context, timeout time.Duration, done func() bool) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if done() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// Count returns how many elements match selector right now.
func (r *Run) Count(ctx context.Context, selector string) (int, error) {
	els, err := r.Page.QueryAll(ctx, selector)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", selector, err)
	}
	return len(els), nil
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Screenshot captures a checkpoint image under the screenshot directory.
func (r *Run) Screenshot(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	r.shots++
	n := r.shots
	r.mu.Unlock()

	file := fmt.Sprintf("%s-%02d-%s-%s.png", r.Scenario.ID, n, unsafeName.ReplaceAllString(name, "_"), short(r.result.RunID))
	path := filepath.Join(r.opts.ScreenshotDir, file)
	if err := r.Page.Screenshot(ctx, path); err != nil {
		return "", fmt.Errorf("screenshot %s: %w", name, err)
	}

	r.mu.Lock()
	r.result.Screenshots = append(r.result.Screenshots, path)
	r.mu.Unlock()
	return path, nil
}

// Measure times fn and records the measurement.
func (r *Run) Measure(label string, fn func() error) (time.Duration, error) {
	elapsed, err := environment.Measure(fn)
	r.record(Measurement{Label: label, Elapsed: elapsed})
	return elapsed, err
}

// Within times fn against budget, or the scenario budget when budget is
// zero, and records the measurement.
func (r *Run) Within(label string, budget time.Duration, fn func() error) (time.Duration, error) {
	if budget <= 0 {
		budget = r.Scenario.Budget
	}
	elapsed, err := environment.Within(budget, label, fn)
	r.record(Measurement{Label: label, Elapsed: elapsed, Budget: budget})
	return elapsed, err
}

// WithinSince is Within for an operation set off at start, typically a
// Mark taken when an earlier phase triggered it.
func (r *Run) WithinSince(label string, start time.Time, budget time.Duration, fn func() error) (time.Duration, error) {
	if budget <= 0 {
		budget = r.Scenario.Budget
	}
	elapsed, err := environment.WithinSince(start, budget, label, fn)
	r.record(Measurement{Label: label, Elapsed: elapsed, Budget: budget})
	return elapsed, err
}

// Mark records a named instant so a later phase can measure from it.
func (r *Run) Mark(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.marks == nil {
		r.marks = make(map[string]time.Time)
	}
	r.marks[name] = at
}

// MarkedAt returns the instant recorded under name.
func (r *Run) MarkedAt(name string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.marks[name]
	return at, ok
}

func (r *Run) record(m Measurement) {
	r.mu.Lock()
	r.result.Measurements = append(r.result.Measurements, m)
	r.mu.Unlock()
	r.Log.Debug("measured", zap.String("label", m.Label), zap.Duration("elapsed", m.Elapsed))
}

// Note adds a free-form line to the result.
func (r *Run) Note(format string, args ...any) {
	r.mu.Lock()
	r.result.Notes = append(r.result.Notes, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

// DialogCount reports dialogs seen so far. It is always zero outside
// adversarial scenarios.
func (r *Run) DialogCount() int {
	if r.dialogs == nil {
		return 0
	}
	return r.dialogs.Count()
}
