package scenario

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"time"

	"clinicprobe/internal/config"
	"clinicprobe/internal/driver"
	"clinicprobe/internal/environment"
	"clinicprobe/internal/fixture"
	"clinicprobe/internal/humanize"
	"clinicprobe/internal/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configure a Runner.
type Options struct {
	BaseURL string
	APIURL  string

	Timing humanize.Timing
	// Seed drives delays and fixture values. Each scenario derives its own
	// stream from Seed and its ID, so parallel runs stay reproducible.
	Seed uint64

	ScenarioTimeout time.Duration
	LocatorTimeout  time.Duration
	SignalTimeout   time.Duration
	BulkTimeout     time.Duration
	CleanupTimeout  time.Duration

	Viewport      driver.Viewport
	FixtureDir    string
	ScreenshotDir string

	// Sleeper replaces real pauses in tests.
	Sleeper humanize.Sleeper
}

// OptionsFromConfig maps loaded configuration onto runner options.
// A zero seed is replaced by a time-derived one.
func OptionsFromConfig(cfg *config.Config) Options {
	seed := cfg.Human.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return Options{
		BaseURL: cfg.BaseURL,
		APIURL:  cfg.APIURL,
		Timing: humanize.Timing{
			MinDelay:       cfg.GetMinDelay(),
			MaxDelay:       cfg.GetMaxDelay(),
			TypingDelay:    cfg.GetTypingDelay(),
			RapidDelay:     cfg.GetRapidDelay(),
			KeyDelay:       cfg.GetKeyDelay(),
			LocatorTimeout: cfg.GetLocatorTimeout(),
		},
		Seed:            seed,
		ScenarioTimeout: cfg.GetScenarioTimeout(),
		LocatorTimeout:  cfg.GetLocatorTimeout(),
		SignalTimeout:   cfg.GetSignalTimeout(),
		BulkTimeout:     cfg.GetBulkTimeout(),
		Viewport: driver.Viewport{
			Name:   "default",
			Width:  cfg.Viewport.Width,
			Height: cfg.Viewport.Height,
		},
		FixtureDir:    cfg.FixtureDir(),
		ScreenshotDir: cfg.ScreenshotDir(),
	}
}

func (o Options) withDefaults() Options {
	if o.ScenarioTimeout <= 0 {
		o.ScenarioTimeout = 30 * time.Second
	}
	if o.LocatorTimeout <= 0 {
		o.LocatorTimeout = 5 * time.Second
	}
	if o.SignalTimeout <= 0 {
		o.SignalTimeout = 10 * time.Second
	}
	if o.BulkTimeout <= 0 {
		o.BulkTimeout = 30 * time.Second
	}
	if o.CleanupTimeout <= 0 {
		o.CleanupTimeout = 10 * time.Second
	}
	if o.Viewport.Width <= 0 || o.Viewport.Height <= 0 {
		o.Viewport = environment.Desktop
	}
	if o.FixtureDir == "" {
		o.FixtureDir = os.TempDir()
	}
	if o.Timing.LocatorTimeout <= 0 {
		o.Timing.LocatorTimeout = o.LocatorTimeout
	}
	return o
}

// Runner executes one scenario at a time on a fresh page of its browser.
// It is safe to call Execute from several goroutines; each call owns its
// own page.
type Runner struct {
	browser driver.Browser
	opts    Options
	runID   string
	log     *zap.Logger
}

// NewRunner returns a runner bound to browser.
func NewRunner(browser driver.Browser, opts Options) *Runner {
	return &Runner{
		browser: browser,
		opts:    opts.withDefaults(),
		runID:   uuid.NewString(),
		log:     logging.Scenario(),
	}
}

// RunID identifies this suite run in reports and screenshot names.
func (rn *Runner) RunID() string { return rn.runID }

// machine enforces the strictly sequential phase order.
type machine struct {
	phase       Phase
	transitions []Transition
}

var phaseOrder = map[Phase][]Phase{
	PhaseInit:    {PhaseArrange, PhaseCleanup},
	PhaseArrange: {PhaseAct, PhaseCleanup},
	PhaseAct:     {PhaseAssert, PhaseCleanup},
	PhaseAssert:  {PhaseCleanup},
	PhaseCleanup: {PhaseReported},
}

func (m *machine) enter(to Phase) {
	for _, allowed := range phaseOrder[m.phase] {
		if allowed == to {
			m.transitions = append(m.transitions, Transition{From: m.phase, To: to, At: time.Now()})
			m.phase = to
			return
		}
	}
	panic(fmt.Sprintf("scenario: illegal phase transition %s -> %s", m.phase, to))
}

func seedFor(base uint64, id string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return base ^ h.Sum64()
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Execute runs sc through Init, Arrange, Act, Assert, Cleanup and Reported
// and always returns exactly one result. Cleanup runs on every path,
// including panics in scenario bodies.
func (rn *Runner) Execute(ctx context.Context, sc *Scenario) *Result {
	res := &Result{
		RunID:      rn.runID,
		ScenarioID: sc.ID,
		Title:      sc.Title,
		Group:      sc.Group,
		Attempts:   1,
		StartedAt:  time.Now(),
	}
	m := &machine{phase: PhaseInit}
	log := rn.log.With(zap.String("scenario", sc.ID))

	page, err := rn.browser.NewPage(ctx)
	if err != nil {
		f := Classify(PhaseInit, err)
		if !errors.Is(err, driver.ErrUnavailable) {
			f.Kind = KindDriverUnavailable
			f.Err = fmt.Errorf("%w: %w", driver.ErrUnavailable, err)
		}
		m.enter(PhaseCleanup)
		m.enter(PhaseReported)
		rn.finish(res, m, f, log)
		return res
	}

	timeout := sc.Timeout
	if timeout <= 0 {
		timeout = rn.opts.ScenarioTimeout
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	seed := seedFor(rn.opts.Seed, sc.ID)
	var simOpts []humanize.Option
	if rn.opts.Sleeper != nil {
		simOpts = append(simOpts, humanize.WithSleeper(rn.opts.Sleeper))
	}
	run := &Run{
		Scenario: sc,
		Page:     page,
		Human:    humanize.New(page, rn.opts.Timing, seed, simOpts...),
		Env:      environment.New(page, rn.opts.Viewport),
		Gen:      fixture.NewGenerator(seed),
		Log:      log,
		opts:     rn.opts,
		fixtures: fixture.NewSet(rn.opts.FixtureDir),
		result:   res,
	}
	console := run.Env.CaptureConsole()

	var failure *Failure
	func() {
		defer func() {
			if p := recover(); p != nil {
				failure = &Failure{Kind: KindPanic, Phase: m.phase, Err: fmt.Errorf("panic: %v", p)}
			}
		}()
		defer rn.cleanup(ctx, run, m, &failure, console)

		if sc.Adversarial {
			run.dialogs = run.Env.InterceptDialogs()
		}

		for _, step := range []struct {
			phase Phase
			body  Body
		}{
			{PhaseArrange, sc.Arrange},
			{PhaseAct, sc.Act},
			{PhaseAssert, sc.Assert},
		} {
			m.enter(step.phase)
			if step.body == nil {
				continue
			}
			log.Debug("phase", zap.String("phase", string(step.phase)))
			if err := rn.call(sctx, step.phase, step.body, run); err != nil {
				failure = err
				if sctx.Err() != nil && ctx.Err() == nil && failure.Kind != KindDialogTriggered {
					failure.Kind = KindTimeout
				}
				break
			}
		}

		if sc.Adversarial {
			f := rn.checkSurvived(ctx, run, m.phase)
			switch {
			case f == nil:
			case f.Kind == KindDialogTriggered:
				failure = f
			case failure == nil || failure.Kind == KindOptionalAbsent:
				failure = f
			}
		}
	}()

	m.enter(PhaseReported)
	rn.finish(res, m, failure, log)
	return res
}

func (rn *Runner) call(ctx context.Context, phase Phase, body Body, run *Run) (failure *Failure) {
	defer func() {
		if p := recover(); p != nil {
			failure = &Failure{Kind: KindPanic, Phase: phase, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return Classify(phase, body(ctx, run))
}

// checkSurvived enforces the adversarial properties: no dialog fired and
// the page still has a title.
func (rn *Runner) checkSurvived(ctx context.Context, run *Run, phase Phase) *Failure {
	if n := run.dialogs.Count(); n > 0 {
		d := run.dialogs.Dialogs()[0]
		return &Failure{
			Kind:  KindDialogTriggered,
			Phase: phase,
			Err:   fmt.Errorf("%w: %d dialog(s), first %s %q", ErrDialogTriggered, n, d.Kind, d.Message),
		}
	}

	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rn.opts.LocatorTimeout)
	defer cancel()
	title, err := run.Page.Title(tctx)
	if err != nil {
		return &Failure{Kind: KindAssertion, Phase: phase, Err: fmt.Errorf("%w: page did not survive payloads: %w", ErrAssertion, err)}
	}
	if title == "" {
		return &Failure{Kind: KindAssertion, Phase: phase, Err: fmt.Errorf("%w: page title empty after payloads", ErrAssertion)}
	}
	return nil
}

// cleanup captures a failure screenshot, releases fixtures, stops dialog
// interception, restores the environment and closes the page. It runs on a
// context detached from scenario cancellation so a timed out scenario is
// still cleaned up.
func (rn *Runner) cleanup(ctx context.Context, run *Run, m *machine, failure **Failure, console *environment.ConsoleRecorder) {
	m.enter(PhaseCleanup)
	res := run.result

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rn.opts.CleanupTimeout)
	defer cancel()

	if f := *failure; f != nil && f.Kind != KindOptionalAbsent && rn.opts.ScreenshotDir != "" {
		if _, err := run.Screenshot(cctx, "failure"); err != nil {
			run.Log.Warn("failure screenshot", zap.Error(err))
		}
	}

	if err := run.fixtures.ReleaseAll(); err != nil {
		res.SuiteDefect = true
		res.CleanupErrors = append(res.CleanupErrors, err.Error())
		run.Log.Error("fixture release failed", zap.Bool("suite_defect", true), zap.Error(err))
	}

	if run.dialogs != nil {
		run.dialogs.Stop()
		res.Dialogs = run.dialogs.Dialogs()
	}
	for _, msg := range console.Errors() {
		res.ConsoleErrors = append(res.ConsoleErrors, msg.Text)
	}

	if err := run.Env.RestoreAll(cctx); err != nil {
		res.SuiteDefect = true
		res.CleanupErrors = append(res.CleanupErrors, err.Error())
	}

	if err := run.Page.Close(); err != nil {
		run.Log.Warn("close page", zap.Error(err))
	}
}

func (rn *Runner) finish(res *Result, m *machine, f *Failure, log *zap.Logger) {
	res.Phases = m.transitions
	res.Duration = time.Since(res.StartedAt)
	res.Failure = f

	switch {
	case f == nil:
		res.Outcome = OutcomePass
	case f.Kind == KindOptionalAbsent:
		res.Outcome = OutcomeInconclusive
		res.Kind = f.Kind
		res.Reason = f.Error()
	default:
		res.Outcome = OutcomeFail
		res.Kind = f.Kind
		res.Reason = f.Error()
	}

	fields := []zap.Field{
		zap.String("outcome", string(res.Outcome)),
		zap.Duration("duration", res.Duration),
	}
	if f != nil {
		fields = append(fields, zap.String("kind", string(f.Kind)), zap.String("reason", res.Reason))
	}
	if res.SuiteDefect {
		fields = append(fields, zap.Bool("suite_defect", true))
	}
	log.Info("scenario reported", fields...)
}
