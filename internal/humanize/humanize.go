// Package humanize drives pages the way a person would: every action is
// preceded by a hover, separated by randomized pauses, and typed text is
// entered one character at a time.
package humanize

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"clinicprobe/internal/driver"
	"clinicprobe/internal/logging"

	"go.uber.org/zap"
)

// ErrOptionalAbsent is returned when an optional target is not present.
var ErrOptionalAbsent = errors.New("optional element absent")

// Timing controls simulator pacing.
type Timing struct {
	MinDelay       time.Duration
	MaxDelay       time.Duration
	TypingDelay    time.Duration
	RapidDelay     time.Duration
	KeyDelay       time.Duration
	LocatorTimeout time.Duration
}

// DefaultTiming returns the stock human pacing.
func DefaultTiming() Timing {
	return Timing{
		MinDelay:       100 * time.Millisecond,
		MaxDelay:       500 * time.Millisecond,
		TypingDelay:    50 * time.Millisecond,
		RapidDelay:     50 * time.Millisecond,
		KeyDelay:       100 * time.Millisecond,
		LocatorTimeout: 5 * time.Second,
	}
}

// Sleeper suspends the caller. Every implementation must return early with
// ctx.Err() when ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleepFunc adapts a function to Sleeper.
type SleepFunc func(ctx context.Context, d time.Duration) error

func (f SleepFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// ContextSleeper is the real, context-aware sleeper.
var ContextSleeper Sleeper = SleepFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
})

// Target names an element to act on.
type Target struct {
	Selector string
	// Optional targets yield ErrOptionalAbsent instead of a locator timeout.
	Optional bool
	// Timeout overrides the simulator's locator timeout when non-zero.
	Timeout time.Duration
}

// Required returns a mandatory target.
func Required(selector string) Target { return Target{Selector: selector} }

// Optional returns a target whose absence is not a failure.
func Optional(selector string) Target { return Target{Selector: selector, Optional: true} }

func (t Target) String() string { return t.Selector }

// Action acts on a resolved element.
type Action func(ctx context.Context, el driver.Element) error

var (
	ClickAction       Action = func(ctx context.Context, el driver.Element) error { return el.Click(ctx) }
	DoubleClickAction Action = func(ctx context.Context, el driver.Element) error { return el.DoubleClick(ctx) }
	FocusAction       Action = func(ctx context.Context, el driver.Element) error { return el.Focus(ctx) }
)

// Simulator performs human-paced interactions against one page. It is not
// safe for concurrent use; a scenario owns exactly one.
type Simulator struct {
	page    driver.Page
	timing  Timing
	sleeper Sleeper
	log     *zap.Logger

	shared *state
}

// state is shared between a simulator and the per-step views Perform
// derives from it, so pacing overrides draw from the same seeded stream.
type state struct {
	mu     sync.Mutex
	rng    *rand.Rand
	landed time.Time
}

func (st *state) int64N(n int64) int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.rng.Int64N(n)
}

func (st *state) touch() {
	st.mu.Lock()
	st.landed = time.Now()
	st.mu.Unlock()
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithSleeper replaces the real sleeper, mostly for tests.
func WithSleeper(s Sleeper) Option { return func(sim *Simulator) { sim.sleeper = s } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(sim *Simulator) { sim.log = l } }

// New returns a simulator for page. The same seed yields the same delays.
func New(page driver.Page, timing Timing, seed uint64, opts ...Option) *Simulator {
	if timing.MaxDelay < timing.MinDelay {
		timing.MaxDelay = timing.MinDelay
	}
	if timing.LocatorTimeout <= 0 {
		timing.LocatorTimeout = DefaultTiming().LocatorTimeout
	}
	sim := &Simulator{
		page:    page,
		timing:  timing,
		sleeper: ContextSleeper,
		log:     logging.Get(logging.CategoryHuman),
		shared:  &state{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))},
	}
	for _, opt := range opts {
		opt(sim)
	}
	return sim
}

// Timing returns the simulator's pacing.
func (s *Simulator) Timing() Timing { return s.timing }

// Delay draws a pause uniformly from [MinDelay, MaxDelay].
func (s *Simulator) Delay() time.Duration {
	span := s.timing.MaxDelay - s.timing.MinDelay
	if span <= 0 {
		return s.timing.MinDelay
	}
	return s.timing.MinDelay + time.Duration(s.shared.int64N(int64(span)+1))
}

// LastAction reports when the most recent click, selection, typed text or
// file attachment reached the page, ahead of the trailing pause. It is the
// zero time before any action.
func (s *Simulator) LastAction() time.Time {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	return s.shared.landed
}

// Pause sleeps for one randomized human delay.
func (s *Simulator) Pause(ctx context.Context) error {
	return s.sleeper.Sleep(ctx, s.Delay())
}

func (s *Simulator) resolve(ctx context.Context, target Target) (driver.Element, error) {
	timeout := target.Timeout
	if timeout <= 0 {
		timeout = s.timing.LocatorTimeout
	}

	el, err := s.page.Locate(ctx, target.Selector, timeout)
	if err == nil {
		actx, cancel := context.WithTimeout(ctx, timeout)
		err = el.WaitActionable(actx)
		cancel()
		if err != nil && ctx.Err() == nil && !errors.Is(err, driver.ErrLocatorTimeout) {
			err = fmt.Errorf("%w: %s not actionable: %w", driver.ErrLocatorTimeout, target.Selector, err)
		}
	}
	if err == nil {
		return el, nil
	}

	if target.Optional && errors.Is(err, driver.ErrLocatorTimeout) {
		s.log.Debug("optional target absent", zap.String("selector", target.Selector))
		return nil, fmt.Errorf("%w: %s", ErrOptionalAbsent, target.Selector)
	}
	return nil, err
}

// HoverThenAct hovers the target, pauses, runs act, and pauses again.
func (s *Simulator) HoverThenAct(ctx context.Context, target Target, act Action) error {
	el, err := s.resolve(ctx, target)
	if err != nil {
		return err
	}
	if err := el.Hover(ctx); err != nil {
		return fmt.Errorf("hover %s: %w", target, err)
	}
	if err := s.Pause(ctx); err != nil {
		return err
	}
	if err := act(ctx, el); err != nil {
		return fmt.Errorf("act on %s: %w", target, err)
	}
	s.shared.touch()
	return s.Pause(ctx)
}

// Click hovers then clicks.
func (s *Simulator) Click(ctx context.Context, target Target) error {
	return s.HoverThenAct(ctx, target, ClickAction)
}

// DoubleClick hovers then double-clicks.
func (s *Simulator) DoubleClick(ctx context.Context, target Target) error {
	return s.HoverThenAct(ctx, target, DoubleClickAction)
}

// Select hovers a <select> then picks the option with value.
func (s *Simulator) Select(ctx context.Context, target Target, value string) error {
	return s.HoverThenAct(ctx, target, func(ctx context.Context, el driver.Element) error {
		return el.SelectOption(ctx, value)
	})
}

// TypeText hovers and clicks the target, then enters text one character
// per input event, TypingDelay apart.
func (s *Simulator) TypeText(ctx context.Context, target Target, text string) error {
	el, err := s.resolve(ctx, target)
	if err != nil {
		return err
	}
	if err := el.Hover(ctx); err != nil {
		return fmt.Errorf("hover %s: %w", target, err)
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("click %s: %w", target, err)
	}
	if err := s.Pause(ctx); err != nil {
		return err
	}

	first := true
	for _, r := range text {
		if !first {
			if err := s.sleeper.Sleep(ctx, s.timing.TypingDelay); err != nil {
				return err
			}
		}
		first = false
		if err := el.InsertText(ctx, string(r)); err != nil {
			return fmt.Errorf("type into %s: %w", target, err)
		}
	}
	s.shared.touch()
	s.log.Debug("typed text", zap.String("selector", target.Selector), zap.Int("runes", len([]rune(text))))

	return s.Pause(ctx)
}

// ClearAndType empties the target before typing into it.
func (s *Simulator) ClearAndType(ctx context.Context, target Target, text string) error {
	el, err := s.resolve(ctx, target)
	if err != nil {
		return err
	}
	if err := el.Clear(ctx); err != nil {
		return fmt.Errorf("clear %s: %w", target, err)
	}
	return s.TypeText(ctx, target, text)
}

// RepeatReport summarizes a rapid-repeat burst.
type RepeatReport struct {
	Selector string        `json:"selector"`
	Attempts int           `json:"attempts"`
	Failures int           `json:"failures"`
	Errors   []string      `json:"errors,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// RapidRepeat resolves target once and applies act n times with the minimal
// RapidDelay between attempts. Individual attempt errors are counted, not
// returned; responsiveness is checked separately with Responsive.
func (s *Simulator) RapidRepeat(ctx context.Context, target Target, n int, act Action) (RepeatReport, error) {
	el, err := s.resolve(ctx, target)
	if err != nil {
		return RepeatReport{Selector: target.Selector}, err
	}
	return s.RapidRepeatOn(ctx, el, target.Selector, n, act)
}

// RapidRepeatOn is RapidRepeat for an element that is already resolved,
// such as one returned by QueryAll. label names it in the report.
func (s *Simulator) RapidRepeatOn(ctx context.Context, el driver.Element, label string, n int, act Action) (RepeatReport, error) {
	report := RepeatReport{Selector: label}
	start := time.Now()
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := s.sleeper.Sleep(ctx, s.timing.RapidDelay); err != nil {
				report.Elapsed = time.Since(start)
				return report, err
			}
		}
		report.Attempts++
		if err := act(ctx, el); err != nil {
			if ctx.Err() != nil {
				report.Elapsed = time.Since(start)
				return report, ctx.Err()
			}
			report.Failures++
			report.Errors = append(report.Errors, err.Error())
		}
	}
	report.Elapsed = time.Since(start)

	s.log.Debug("rapid repeat finished",
		zap.String("selector", label),
		zap.Int("attempts", report.Attempts),
		zap.Int("failures", report.Failures))
	return report, nil
}

// Responsive reports whether the page still answers a title query within
// the locator timeout.
func (s *Simulator) Responsive(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timing.LocatorTimeout)
	defer cancel()
	if _, err := s.page.Title(ctx); err != nil {
		return fmt.Errorf("page unresponsive: %w", err)
	}
	return nil
}

// KeyboardWalk presses keys in order, KeyDelay apart.
func (s *Simulator) KeyboardWalk(ctx context.Context, keys ...driver.Key) error {
	for _, k := range keys {
		if err := s.page.Press(ctx, k); err != nil {
			return fmt.Errorf("press %s: %w", k, err)
		}
		if err := s.sleeper.Sleep(ctx, s.timing.KeyDelay); err != nil {
			return err
		}
	}
	return nil
}

// Repeat returns key n times, for walks like ten Tabs.
func Repeat(key driver.Key, n int) []driver.Key {
	keys := make([]driver.Key, n)
	for i := range keys {
		keys[i] = key
	}
	return keys
}

// ScrollTo scrolls the target into view and pauses.
func (s *Simulator) ScrollTo(ctx context.Context, target Target) error {
	el, err := s.resolve(ctx, target)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(ctx); err != nil {
		return fmt.Errorf("scroll %s: %w", target, err)
	}
	return s.Pause(ctx)
}

// Upload attaches files to a file input. File inputs are frequently hidden
// behind a styled drop area, so only attachment is required.
func (s *Simulator) Upload(ctx context.Context, target Target, paths ...string) error {
	timeout := target.Timeout
	if timeout <= 0 {
		timeout = s.timing.LocatorTimeout
	}
	el, err := s.page.WaitFor(ctx, target.Selector, driver.StateAttached, timeout)
	if err != nil {
		if target.Optional && errors.Is(err, driver.ErrLocatorTimeout) {
			return fmt.Errorf("%w: %s", ErrOptionalAbsent, target.Selector)
		}
		return err
	}
	if err := el.SetFiles(ctx, paths...); err != nil {
		return fmt.Errorf("attach files to %s: %w", target, err)
	}
	s.shared.touch()
	return s.Pause(ctx)
}
