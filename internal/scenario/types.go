package scenario

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"clinicprobe/internal/driver"
	"clinicprobe/internal/environment"
	"clinicprobe/internal/humanize"
)

// Phase is one state of the per-scenario machine.
type Phase string

const (
	PhaseInit     Phase = "init"
	PhaseArrange  Phase = "arrange"
	PhaseAct      Phase = "act"
	PhaseAssert   Phase = "assert"
	PhaseCleanup  Phase = "cleanup"
	PhaseReported Phase = "reported"
)

// Outcome is the single terminal verdict of a scenario.
type Outcome string

const (
	OutcomePass         Outcome = "pass"
	OutcomeFail         Outcome = "fail"
	OutcomeInconclusive Outcome = "inconclusive"
)

// FailureKind classifies why a scenario did not pass.
type FailureKind string

const (
	KindLocatorTimeout    FailureKind = "locator-timeout"
	KindOptionalAbsent    FailureKind = "optional-element-absent"
	KindDialogTriggered   FailureKind = "dialog-triggered"
	KindBudgetExceeded    FailureKind = "performance-budget-exceeded"
	KindRestoreFailure    FailureKind = "environment-restore-failure"
	KindDriverUnavailable FailureKind = "driver-unavailable"
	KindAssertion         FailureKind = "assertion"
	KindTimeout           FailureKind = "scenario-timeout"
	KindPanic             FailureKind = "panic"
	KindError             FailureKind = "error"
)

var (
	// ErrOptionalAbsent marks a feature-gated element missing from the build.
	ErrOptionalAbsent = humanize.ErrOptionalAbsent

	// ErrDialogTriggered marks a native dialog opened during an adversarial
	// scenario.
	ErrDialogTriggered = errors.New("native dialog triggered")

	// ErrBudgetExceeded marks a measured operation slower than its budget.
	ErrBudgetExceeded = environment.ErrBudgetExceeded

	// ErrAssertion marks an unmet oracle.
	ErrAssertion = errors.New("assertion failed")
)

// Failure is the typed error a scenario ends with.
type Failure struct {
	Kind    FailureKind
	Phase   Phase
	Locator string
	Err     error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s in %s", f.Kind, f.Phase)
	if f.Locator != "" {
		msg += " (" + f.Locator + ")"
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// Failf returns an assertion failure.
func Failf(format string, args ...any) error {
	return &Failure{Kind: KindAssertion, Err: fmt.Errorf("%w: "+format, append([]any{ErrAssertion}, args...)...)}
}

// Classify maps err onto the failure taxonomy. An existing *Failure keeps
// its kind and only gains a phase if it has none.
func Classify(phase Phase, err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		if f.Phase == "" {
			f.Phase = phase
		}
		return f
	}

	kind := KindError
	switch {
	case errors.Is(err, driver.ErrUnavailable):
		kind = KindDriverUnavailable
	case errors.Is(err, ErrDialogTriggered):
		kind = KindDialogTriggered
	case errors.Is(err, ErrOptionalAbsent):
		kind = KindOptionalAbsent
	case errors.Is(err, driver.ErrLocatorTimeout):
		kind = KindLocatorTimeout
	case errors.Is(err, ErrBudgetExceeded):
		kind = KindBudgetExceeded
	case errors.Is(err, environment.ErrRestore):
		kind = KindRestoreFailure
	case errors.Is(err, ErrAssertion):
		kind = KindAssertion
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	}
	return &Failure{Kind: kind, Phase: phase, Err: err}
}

// Body is one phase of a scenario.
type Body func(ctx context.Context, r *Run) error

// Scenario is a named unit of test intent.
type Scenario struct {
	ID    string
	Title string
	Group string
	Tags  []string

	// Adversarial scenarios feed hostile payloads to the page. Dialogs are
	// intercepted before Arrange and any dialog fails the scenario.
	Adversarial bool

	// Budget is the default budget for Run.Within.
	Budget time.Duration
	// Timeout bounds the whole scenario. Zero uses the runner default.
	Timeout time.Duration

	Arrange Body
	Act     Body
	Assert  Body
}

// HasTag reports whether the scenario carries tag.
func (s *Scenario) HasTag(tag string) bool {
	return slices.Contains(s.Tags, tag)
}

// Filter selects scenarios. Empty fields match everything.
type Filter struct {
	IDs   []string
	Group string
	Tags  []string
}

// Match reports whether s passes the filter.
func (f Filter) Match(s *Scenario) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, s.ID) {
		return false
	}
	if f.Group != "" && f.Group != s.Group {
		return false
	}
	for _, tag := range f.Tags {
		if !s.HasTag(tag) {
			return false
		}
	}
	return true
}

// Transition records one phase change.
type Transition struct {
	From Phase     `json:"from"`
	To   Phase     `json:"to"`
	At   time.Time `json:"at"`
}

// Measurement is one timed operation.
type Measurement struct {
	Label   string        `json:"label"`
	Elapsed time.Duration `json:"elapsed"`
	Budget  time.Duration `json:"budget,omitempty"`
}

// Result is everything the report sink receives for one scenario.
type Result struct {
	RunID      string        `json:"run_id"`
	ScenarioID string        `json:"scenario_id"`
	Title      string        `json:"title"`
	Group      string        `json:"group"`
	Outcome    Outcome       `json:"outcome"`
	Kind       FailureKind   `json:"kind,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Attempts   int           `json:"attempts"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`

	Phases        []Transition    `json:"phases"`
	Measurements  []Measurement   `json:"measurements,omitempty"`
	Screenshots   []string        `json:"screenshots,omitempty"`
	Notes         []string        `json:"notes,omitempty"`
	Dialogs       []driver.Dialog `json:"dialogs,omitempty"`
	ConsoleErrors []string        `json:"console_errors,omitempty"`

	// SuiteDefect is set when cleanup could not put the world back.
	SuiteDefect   bool     `json:"suite_defect,omitempty"`
	CleanupErrors []string `json:"cleanup_errors,omitempty"`

	Failure *Failure `json:"-"`
}

// Passed reports a passing outcome.
func (r *Result) Passed() bool { return r.Outcome == OutcomePass }
