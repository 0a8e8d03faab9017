package clinic

import (
	"context"
	"testing"
	"time"

	"clinicprobe/internal/driver/drivertest"
	"clinicprobe/internal/environment"
	"clinicprobe/internal/humanize"
	"clinicprobe/internal/scenario"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testBudgets = Budgets{BulkUpload: 2 * time.Second, PageLoad: 2 * time.Second}

func testOptions(t *testing.T) scenario.Options {
	t.Helper()
	return scenario.Options{
		BaseURL:         "http://clinic.test",
		APIURL:          "http://api.clinic.test",
		Timing:          humanize.Timing{LocatorTimeout: 50 * time.Millisecond},
		Seed:            11,
		ScenarioTimeout: 5 * time.Second,
		LocatorTimeout:  50 * time.Millisecond,
		SignalTimeout:   50 * time.Millisecond,
		BulkTimeout:     time.Second,
		Viewport:        environment.Desktop,
		FixtureDir:      t.TempDir(),
		ScreenshotDir:   t.TempDir(),
		Sleeper: humanize.SleepFunc(func(ctx context.Context, _ time.Duration) error {
			return ctx.Err()
		}),
	}
}

func byID(t *testing.T, id string) *scenario.Scenario {
	t.Helper()
	for _, sc := range Catalogue(testBudgets) {
		if sc.ID == id {
			return sc
		}
	}
	t.Fatalf("no scenario %q", id)
	return nil
}

func execute(t *testing.T, b fakeBuild, id string) (*scenario.Result, *drivertest.Page) {
	t.Helper()
	browser := drivertest.NewBrowser(func() *drivertest.Page { return fakeClinic(b) })
	runner := scenario.NewRunner(browser, testOptions(t))
	res := runner.Execute(context.Background(), byID(t, id))
	pages := browser.Pages()
	require.Len(t, pages, 1)
	return res, pages[0]
}

func TestCatalogueIsWellFormed(t *testing.T) {
	cat := Catalogue(testBudgets)
	h := scenario.NewHarness(1, 0)
	require.NoError(t, h.Register(cat...), "IDs are unique")

	groups := map[string]int{}
	for _, sc := range cat {
		assert.NotEmpty(t, sc.Title, sc.ID)
		assert.True(t, sc.Arrange != nil || sc.Act != nil || sc.Assert != nil, sc.ID)
		groups[sc.Group]++
		if sc.Group == GroupSecurity {
			assert.True(t, sc.Adversarial, "%s runs with dialog interception", sc.ID)
		}
	}
	for _, g := range []string{
		GroupApplication, GroupUpload, GroupSecurity, GroupInteraction,
		GroupReminders, GroupStock, GroupNetwork, GroupResponsive,
	} {
		assert.Positive(t, groups[g], g)
	}

	assert.Equal(t, testBudgets.BulkUpload, byID(t, "upload-bulk").Budget)
	assert.Equal(t, testBudgets.PageLoad, byID(t, "page-load-budget").Budget)
}

func TestCatalogueAgainstHealthyBuild(t *testing.T) {
	browser := drivertest.NewBrowser(func() *drivertest.Page { return fakeClinic(fakeBuild{}) })
	runner := scenario.NewRunner(browser, testOptions(t))
	h := scenario.NewHarness(4, 0)

	results, err := h.RunAll(context.Background(), runner, Catalogue(testBudgets))
	require.NoError(t, err)

	for _, res := range results {
		assert.Equal(t, scenario.OutcomePass, res.Outcome, "%s: %s", res.ScenarioID, res.Reason)
		assert.False(t, res.SuiteDefect, res.ScenarioID)
	}
	for _, p := range browser.Pages() {
		assert.True(t, p.Closed())
		assert.False(t, p.Offline())
		assert.Equal(t, environment.Desktop, p.Viewport())
	}
}

func TestAppLoads(t *testing.T) {
	res, p := execute(t, fakeBuild{}, "app-loads")
	assert.Equal(t, scenario.OutcomePass, res.Outcome, res.Reason)
	require.Len(t, res.Screenshots, 1)
	assert.Contains(t, res.Screenshots[0], "dashboard")
	assert.Equal(t, "http://clinic.test/", p.ActionsOf("navigate")[0].Value)
}

func TestWrongHeadersNeedsValidationError(t *testing.T) {
	res, p := execute(t, fakeBuild{}, "upload-wrong-headers")
	assert.Equal(t, scenario.OutcomePass, res.Outcome, res.Reason)
	assert.Contains(t, res.Notes, "signal .validation-error")

	selects := p.ActionsOf("select")
	require.Len(t, selects, 1)
	assert.Equal(t, "patients", selects[0].Value)

	res, _ = execute(t, fakeBuild{acceptAll: true}, "upload-wrong-headers")
	assert.Equal(t, scenario.OutcomeFail, res.Outcome)
	assert.Contains(t, res.Reason, "no terminal signal")
}

func TestSilentUploadFails(t *testing.T) {
	res, _ := execute(t, fakeBuild{silent: true}, "upload-unicode")
	assert.Equal(t, scenario.OutcomeFail, res.Outcome)
	assert.Equal(t, scenario.KindAssertion, res.Kind)
	assert.Contains(t, res.Reason, "no terminal signal")
	assert.NotEmpty(t, res.Screenshots, "failure screenshot")
}

func TestUploadWithoutEntryPointIsInconclusive(t *testing.T) {
	res, _ := execute(t, fakeBuild{noUploadNav: true}, "upload-edge-dates")
	assert.Equal(t, scenario.OutcomeInconclusive, res.Outcome, res.Reason)
	assert.Equal(t, scenario.KindOptionalAbsent, res.Kind)
}

func TestUploadButtonGating(t *testing.T) {
	res, p := execute(t, fakeBuild{}, "upload-button-gating")
	assert.Equal(t, scenario.OutcomePass, res.Outcome, res.Reason)
	assert.Len(t, p.ActionsOf("files"), 1)
	assert.Empty(t, p.ActionsOf("click")[1:], "nothing but the nav is clicked")
}

func TestBulkUploadRecordsBudget(t *testing.T) {
	res, _ := execute(t, fakeBuild{}, "upload-bulk")
	assert.Equal(t, scenario.OutcomePass, res.Outcome, res.Reason)

	var found bool
	for _, m := range res.Measurements {
		if m.Label == "bulk upload" {
			found = true
			assert.Equal(t, testBudgets.BulkUpload, m.Budget)
		}
	}
	assert.True(t, found)
}

func TestBulkBudgetCountsProcessingFromTheClick(t *testing.T) {
	pause := humanize.SleepFunc(func(ctx context.Context, _ time.Duration) error {
		select {
		case <-time.After(200 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	budgets := Budgets{BulkUpload: 300 * time.Millisecond, PageLoad: 2 * time.Second}
	var bulk *scenario.Scenario
	for _, sc := range Catalogue(budgets) {
		if sc.ID == "upload-bulk" {
			bulk = sc
		}
	}
	require.NotNil(t, bulk)

	run := func(processing time.Duration) *scenario.Result {
		opts := testOptions(t)
		opts.Sleeper = pause
		opts.ScenarioTimeout = 20 * time.Second
		browser := drivertest.NewBrowser(func() *drivertest.Page {
			return fakeClinic(fakeBuild{processing: processing})
		})
		return scenario.NewRunner(browser, opts).Execute(context.Background(), bulk)
	}
	elapsedOf := func(res *scenario.Result) time.Duration {
		for _, m := range res.Measurements {
			if m.Label == "bulk upload" {
				return m.Elapsed
			}
		}
		t.Fatal("no bulk upload measurement")
		return 0
	}

	// Processing outlasts the budget but not budget plus the trailing pause.
	slow := run(450 * time.Millisecond)
	assert.Equal(t, scenario.OutcomeFail, slow.Outcome)
	assert.Equal(t, scenario.KindBudgetExceeded, slow.Kind)
	assert.GreaterOrEqual(t, elapsedOf(slow), 450*time.Millisecond)

	fast := run(20 * time.Millisecond)
	assert.Equal(t, scenario.OutcomePass, fast.Outcome, fast.Reason)
	assert.Less(t, elapsedOf(fast), 300*time.Millisecond)
}

func TestMarkupUploadDialog(t *testing.T) {
	res, p := execute(t, fakeBuild{rendersXSS: true}, "security-markup-csv")
	assert.Equal(t, scenario.OutcomeFail, res.Outcome)
	assert.Equal(t, scenario.KindDialogTriggered, res.Kind)
	require.NotEmpty(t, res.Dialogs)
	assert.Equal(t, "XSS", res.Dialogs[0].Message)
	assert.Zero(t, p.DialogHandlers(), "interception stopped in cleanup")

	res, _ = execute(t, fakeBuild{}, "security-markup-csv")
	assert.Equal(t, scenario.OutcomePass, res.Outcome, res.Reason)
	assert.Empty(t, res.Dialogs)
}

func TestSearchInjection(t *testing.T) {
	res, _ := execute(t, fakeBuild{noSearch: true}, "security-sql-search")
	assert.Equal(t, scenario.OutcomeInconclusive, res.Outcome, res.Reason)
	assert.Empty(t, res.Screenshots, "absence is not a failure")

	res, p := execute(t, fakeBuild{}, "security-sql-search")
	assert.Equal(t, scenario.OutcomePass, res.Outcome, res.Reason)
	assert.Len(t, p.ActionsOf("press"), 5, "one Enter per payload")
	assert.Len(t, p.ActionsOf("clear"), 5)
}

func TestOfflineIndicator(t *testing.T) {
	res, p := execute(t, fakeBuild{}, "offline-indicator")
	assert.Equal(t, scenario.OutcomePass, res.Outcome, res.Reason)
	assert.False(t, p.Offline())

	var network []string
	for _, a := range p.ActionsOf("network") {
		network = append(network, a.Value)
	}
	assert.Equal(t, []string{"offline=true", "offline=false", "offline=false"}, network,
		"explicit restore, then the forced restore in cleanup")
	assert.Len(t, p.ActionsOf("reload"), 1)
}

func TestOfflineBadgeOptional(t *testing.T) {
	res, p := execute(t, fakeBuild{noBadge: true}, "offline-badge")
	assert.Equal(t, scenario.OutcomeInconclusive, res.Outcome, res.Reason)
	assert.False(t, p.Offline(), "network restored even when inconclusive")
}

func TestResponsiveRestoresViewport(t *testing.T) {
	res, p := execute(t, fakeBuild{}, "responsive-mobile")
	assert.Equal(t, scenario.OutcomePass, res.Outcome, res.Reason)
	assert.Equal(t, environment.Desktop, p.Viewport())

	var sizes []string
	for _, a := range p.ActionsOf("viewport") {
		sizes = append(sizes, a.Value)
	}
	assert.Equal(t, "375x667", sizes[0])
	assert.Equal(t, "1280x720", sizes[len(sizes)-1])
}

func TestRapidClickStaysResponsive(t *testing.T) {
	res, p := execute(t, fakeBuild{}, "rapid-click")
	assert.Equal(t, scenario.OutcomePass, res.Outcome, res.Reason)
	assert.Len(t, p.ActionsOf("click"), rapidButtons*rapidClicks)
}

func TestLanguageToggle(t *testing.T) {
	res, p := execute(t, fakeBuild{}, "reminders-language")
	assert.Equal(t, scenario.OutcomePass, res.Outcome, res.Reason)

	el := p.Element(LangEN)
	class, _, err := el.Attribute(context.Background(), "class")
	require.NoError(t, err)
	assert.Contains(t, class, Active)
}
