package humanize

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clinicprobe/internal/driver"
	"clinicprobe/internal/driver/drivertest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleeper records requested durations without sleeping.
type recordingSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.slept = append(r.slept, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleeper) count(d time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.slept {
		if s == d {
			n++
		}
	}
	return n
}

func newTestSim(t *testing.T, page *drivertest.Page) (*Simulator, *recordingSleeper) {
	t.Helper()
	sleeper := &recordingSleeper{}
	timing := DefaultTiming()
	timing.LocatorTimeout = 30 * time.Millisecond
	return New(page, timing, 7, WithSleeper(sleeper)), sleeper
}

func kinds(actions []drivertest.Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Kind)
	}
	return out
}

func TestDelay_BoundedAndSeeded(t *testing.T) {
	page := drivertest.NewPage("t")
	a := New(page, DefaultTiming(), 42)
	b := New(page, DefaultTiming(), 42)

	for i := 0; i < 200; i++ {
		da, db := a.Delay(), b.Delay()
		assert.Equal(t, da, db, "same seed must give the same delays")
		assert.GreaterOrEqual(t, da, 100*time.Millisecond)
		assert.LessOrEqual(t, da, 500*time.Millisecond)
	}
}

func TestDelay_DegenerateRange(t *testing.T) {
	timing := DefaultTiming()
	timing.MinDelay = 80 * time.Millisecond
	timing.MaxDelay = 10 * time.Millisecond

	sim := New(drivertest.NewPage("t"), timing, 1)
	assert.Equal(t, 80*time.Millisecond, sim.Delay())
}

func TestClick_HoversBeforeActing(t *testing.T) {
	page := drivertest.NewPage("t")
	page.Add("#save")
	sim, sleeper := newTestSim(t, page)

	require.NoError(t, sim.Click(context.Background(), Required("#save")))

	want := []string{"locate", "hover", "click"}
	if diff := cmp.Diff(want, kinds(page.Actions())); diff != "" {
		t.Fatalf("action order mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, sleeper.slept, 2, "one pause after hover and one after the action")
	for _, d := range sleeper.slept {
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 500*time.Millisecond)
	}
}

func TestTypeText_OneEventPerCharacter(t *testing.T) {
	page := drivertest.NewPage("t")
	field := page.Add("#name")
	sim, sleeper := newTestSim(t, page)

	require.NoError(t, sim.TypeText(context.Background(), Required("#name"), "José 李"))

	inserts := page.ActionsOf("insert")
	require.Len(t, inserts, 6)
	got := make([]string, 0, len(inserts))
	for _, a := range inserts {
		got = append(got, a.Value)
	}
	assert.Equal(t, []string{"J", "o", "s", "é", " ", "李"}, got)
	assert.Equal(t, "José 李", field.Value())
	assert.Equal(t, 5, sleeper.count(50*time.Millisecond), "typing delay sits between characters only")

	want := []string{"locate", "hover", "click", "insert", "insert", "insert", "insert", "insert", "insert"}
	assert.Equal(t, want, kinds(page.Actions()))
}

func TestTypeText_LongFieldIsNotTruncated(t *testing.T) {
	page := drivertest.NewPage("t")
	field := page.Add("#notes")
	sim, _ := newTestSim(t, page)

	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'A'
	}
	require.NoError(t, sim.TypeText(context.Background(), Required("#notes"), string(long)))
	assert.Len(t, field.Value(), 2000)
}

func TestResolve_MissingTargetIsLocatorTimeout(t *testing.T) {
	page := drivertest.NewPage("t")
	sim, _ := newTestSim(t, page)

	err := sim.Click(context.Background(), Required("#missing"))
	require.ErrorIs(t, err, driver.ErrLocatorTimeout)
	assert.NotErrorIs(t, err, ErrOptionalAbsent)
	assert.Empty(t, page.ActionsOf("click"))
}

func TestResolve_OptionalTargetIsAbsent(t *testing.T) {
	page := drivertest.NewPage("t")
	sim, _ := newTestSim(t, page)

	err := sim.TypeText(context.Background(), Optional(`input[type="search"]`), "x")
	require.ErrorIs(t, err, ErrOptionalAbsent)
	assert.NotErrorIs(t, err, driver.ErrLocatorTimeout)
}

func TestResolve_DisabledTargetTimesOut(t *testing.T) {
	page := drivertest.NewPage("t")
	page.Add("#upload-btn", drivertest.Disabled())
	sim, _ := newTestSim(t, page)

	err := sim.Click(context.Background(), Required("#upload-btn"))
	require.ErrorIs(t, err, driver.ErrLocatorTimeout)
	assert.Empty(t, page.ActionsOf("click"))
}

func TestResolve_HonorsTargetTimeout(t *testing.T) {
	page := drivertest.NewPage("t")
	sim, _ := newTestSim(t, page)

	go func() {
		time.Sleep(20 * time.Millisecond)
		page.Add("#late")
	}()

	target := Target{Selector: "#late", Timeout: 2 * time.Second}
	require.NoError(t, sim.Click(context.Background(), target))
}

func TestRapidRepeat_CountsFailuresWithoutAborting(t *testing.T) {
	page := drivertest.NewPage("t")
	page.Add("#flaky", drivertest.FailClick(errors.New("detached")))
	sim, sleeper := newTestSim(t, page)

	report, err := sim.RapidRepeat(context.Background(), Required("#flaky"), 10, ClickAction)
	require.NoError(t, err)

	assert.Equal(t, 10, report.Attempts)
	assert.Equal(t, 10, report.Failures)
	assert.Len(t, report.Errors, 10)
	assert.Equal(t, 9, sleeper.count(50*time.Millisecond))
	assert.Len(t, page.ActionsOf("locate"), 1, "target resolves once per burst")
}

func TestRapidRepeat_ThenResponsive(t *testing.T) {
	clicks := 0
	page := drivertest.NewPage("ClinicLite Botswana - Dashboard")
	page.Add("#nav", drivertest.OnClick(func(*drivertest.Page) { clicks++ }))
	sim, _ := newTestSim(t, page)

	report, err := sim.RapidRepeat(context.Background(), Required("#nav"), 10, ClickAction)
	require.NoError(t, err)
	assert.Zero(t, report.Failures)
	assert.Equal(t, 10, clicks)
	require.NoError(t, sim.Responsive(context.Background()))
}

func TestResponsive_BlockedPage(t *testing.T) {
	page := drivertest.NewPage("t")
	page.FireDialog(driver.DialogAlert, "XSS")
	sim, _ := newTestSim(t, page)

	require.Error(t, sim.Responsive(context.Background()))
}

func TestKeyboardWalk_PressesInOrder(t *testing.T) {
	page := drivertest.NewPage("t")
	sim, sleeper := newTestSim(t, page)

	keys := append(Repeat(driver.KeyTab, 3), driver.KeyEnter, driver.KeyEscape)
	require.NoError(t, sim.KeyboardWalk(context.Background(), keys...))

	presses := page.ActionsOf("press")
	require.Len(t, presses, 5)
	assert.Equal(t, "Tab", presses[0].Value)
	assert.Equal(t, "Enter", presses[3].Value)
	assert.Equal(t, "Escape", presses[4].Value)
	assert.Equal(t, 5, sleeper.count(100*time.Millisecond))
}

func TestUpload_AcceptsHiddenInput(t *testing.T) {
	page := drivertest.NewPage("t")
	input := page.Add(`input[type="file"]`, drivertest.Hidden())
	sim, _ := newTestSim(t, page)

	require.NoError(t, sim.Upload(context.Background(), Required(`input[type="file"]`), "/tmp/a.csv"))
	assert.Equal(t, []string{"/tmp/a.csv"}, input.Files())
}

func TestContextSleeper_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- ContextSleeper.Sleep(ctx, time.Hour)
	}()

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("sleep did not return after cancellation")
	}
}

func TestTypeText_CancelledMidway(t *testing.T) {
	page := drivertest.NewPage("t")
	page.Add("#name")
	timing := DefaultTiming()
	timing.MinDelay, timing.MaxDelay = 0, 0
	timing.TypingDelay = time.Hour
	sim := New(page, timing, 1)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- sim.TypeText(ctx, Required("#name"), "slow")
	}()

	require.Eventually(t, func() bool { return len(page.ActionsOf("insert")) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("typing did not stop after cancellation")
	}
	assert.Len(t, page.ActionsOf("insert"), 1)
}

func TestReplay_StopsAtFirstError(t *testing.T) {
	page := drivertest.NewPage("t")
	page.Add("#a")
	sim, _ := newTestSim(t, page)

	steps := []Step{
		{Kind: KindClick, Target: Required("#a")},
		{Kind: KindKeys, Keys: []driver.Key{driver.KeyTab}},
		{Kind: KindClick, Target: Required("#missing")},
		{Kind: KindClick, Target: Required("#a")},
	}

	err := sim.Replay(context.Background(), steps)
	require.ErrorIs(t, err, driver.ErrLocatorTimeout)
	assert.Contains(t, err.Error(), "step 3")
	assert.Len(t, page.ActionsOf("click"), 1)
}

func TestPerform_UnknownKind(t *testing.T) {
	sim, _ := newTestSim(t, drivertest.NewPage("t"))
	require.Error(t, sim.Perform(context.Background(), Step{Kind: "teleport"}))
}

func TestPerform_StepPacingOverridesTiming(t *testing.T) {
	page := drivertest.NewPage("t")
	page.Add("#a")
	page.Add("#b")
	sim, sleeper := newTestSim(t, page)

	steps := []Step{
		{Kind: KindHover, Target: Required("#a"), Pacing: &Pacing{MinDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond}},
		{Kind: KindHover, Target: Required("#b"), Pacing: &Pacing{MinDelay: 300 * time.Millisecond, MaxDelay: 400 * time.Millisecond}},
		{Kind: KindHover, Target: Required("#a")},
	}
	require.NoError(t, sim.Replay(context.Background(), steps))

	require.Len(t, sleeper.slept, 6, "two pauses per hover step")
	bounds := [][2]time.Duration{
		{10 * time.Millisecond, 20 * time.Millisecond},
		{300 * time.Millisecond, 400 * time.Millisecond},
		{100 * time.Millisecond, 500 * time.Millisecond},
	}
	for i, d := range sleeper.slept {
		b := bounds[i/2]
		assert.GreaterOrEqual(t, d, b[0], "pause %d", i)
		assert.LessOrEqual(t, d, b[1], "pause %d", i)
	}
	assert.Equal(t, DefaultTiming().MinDelay, sim.Timing().MinDelay, "override does not leak into the simulator")
}

func TestPerform_StepPacingIsSeeded(t *testing.T) {
	run := func() []time.Duration {
		page := drivertest.NewPage("t")
		page.Add("#a")
		sim, sleeper := newTestSim(t, page)
		step := Step{Kind: KindClick, Target: Required("#a"), Pacing: &Pacing{MinDelay: time.Millisecond, MaxDelay: time.Second}}
		require.NoError(t, sim.Replay(context.Background(), []Step{step, step}))
		return sleeper.slept
	}
	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Fatalf("same seed gave different paced delays (-first +second):\n%s", diff)
	}
}

func TestPerform_StepTypingDelay(t *testing.T) {
	page := drivertest.NewPage("t")
	page.Add("#name")
	sim, sleeper := newTestSim(t, page)

	step := Step{Kind: KindType, Target: Required("#name"), Text: "Mpho", Pacing: &Pacing{TypingDelay: 7 * time.Millisecond}}
	require.NoError(t, sim.Perform(context.Background(), step))

	assert.Equal(t, 3, sleeper.count(7*time.Millisecond))
	assert.Zero(t, sleeper.count(DefaultTiming().TypingDelay))
}

func TestLastAction_StampedBeforeTrailingPause(t *testing.T) {
	page := drivertest.NewPage("t")
	page.Add("#save")
	var clicked time.Time
	sleeper := SleepFunc(func(ctx context.Context, d time.Duration) error {
		time.Sleep(20 * time.Millisecond)
		return ctx.Err()
	})
	timing := DefaultTiming()
	timing.LocatorTimeout = 30 * time.Millisecond
	sim := New(page, timing, 3, WithSleeper(sleeper))
	assert.True(t, sim.LastAction().IsZero())

	require.NoError(t, sim.HoverThenAct(context.Background(), Required("#save"), func(ctx context.Context, el driver.Element) error {
		clicked = time.Now()
		return el.Click(ctx)
	}))
	done := time.Now()

	landed := sim.LastAction()
	assert.False(t, landed.Before(clicked))
	assert.GreaterOrEqual(t, done.Sub(landed), 20*time.Millisecond, "the trailing pause comes after the stamp")
}
