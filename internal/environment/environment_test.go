package environment

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinicprobe/internal/driver"
	"clinicprobe/internal/driver/drivertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParsePreset(t *testing.T) {
	tests := []struct {
		name    string
		want    driver.Viewport
		wantErr bool
	}{
		{name: "desktop", want: Desktop},
		{name: "Mobile", want: Mobile},
		{name: "tablet", want: Tablet},
		{name: "1024x768", want: driver.Viewport{Name: "1024x768", Width: 1024, Height: 768}},
		{name: "0x768", wantErr: true},
		{name: "wide", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePreset(tt.name)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNetworkRestore(t *testing.T) {
	ctx := context.Background()
	page := drivertest.NewPage("ClinicLite")
	c := New(page, Desktop)

	restore, err := c.SetNetwork(ctx, false)
	require.NoError(t, err)
	assert.True(t, page.Offline())
	assert.False(t, c.Online())

	require.NoError(t, restore(ctx))
	assert.False(t, page.Offline())
	assert.True(t, c.Online())

	require.NoError(t, restore(ctx), "restore is idempotent")
	assert.Len(t, page.ActionsOf("network"), 2)
}

func TestRestoreAllRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	page := drivertest.NewPage("ClinicLite")
	c := New(page, Desktop)

	_, err := c.SetViewport(ctx, Tablet)
	require.NoError(t, err)
	_, err = c.SetViewport(ctx, Mobile)
	require.NoError(t, err)
	_, err = c.SetNetwork(ctx, false)
	require.NoError(t, err)

	require.NoError(t, c.RestoreAll(ctx))

	var got []string
	for _, a := range page.Actions() {
		got = append(got, a.Kind+" "+a.Value)
	}
	assert.Equal(t, []string{
		"viewport 768x1024",
		"viewport 375x667",
		"network offline=true",
		// outstanding restores, newest first
		"network offline=false",
		"viewport 768x1024",
		"viewport 1280x720",
		// forced baseline
		"network offline=false",
		"viewport 1280x720",
	}, got)
	assert.False(t, page.Offline())
	assert.Equal(t, Desktop, page.Viewport())
	assert.Equal(t, Desktop, c.Viewport())
}

func TestRestoreAllSkipsRestoredMutations(t *testing.T) {
	ctx := context.Background()
	page := drivertest.NewPage("ClinicLite")
	c := New(page, Desktop)

	restore, err := c.SetNetwork(ctx, false)
	require.NoError(t, err)
	require.NoError(t, restore(ctx))

	require.NoError(t, c.RestoreAll(ctx))
	// offline, manual restore, forced online
	assert.Len(t, page.ActionsOf("network"), 3)
}

func TestRestoreAllReportsFailures(t *testing.T) {
	ctx := context.Background()
	page := drivertest.NewPage("ClinicLite")
	c := New(page, Desktop)

	_, err := c.SetNetwork(ctx, false)
	require.NoError(t, err)

	page.OnOffline = func(_ *drivertest.Page, offline bool) error {
		if !offline {
			return errors.New("cdp connection reset")
		}
		return nil
	}

	err = c.RestoreAll(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRestore)
	assert.Contains(t, err.Error(), "cdp connection reset")
	assert.Equal(t, Desktop, page.Viewport(), "viewport still forced after network failure")
}

func TestSetViewportRejectsEmpty(t *testing.T) {
	c := New(drivertest.NewPage("ClinicLite"), Desktop)
	_, err := c.SetViewport(context.Background(), driver.Viewport{})
	require.Error(t, err)
}

func TestDialogInterception(t *testing.T) {
	ctx := context.Background()
	page := drivertest.NewPage("ClinicLite")
	c := New(page, Desktop)

	rec := c.InterceptDialogs()
	assert.Equal(t, 1, page.DialogHandlers())

	page.FireDialog(driver.DialogAlert, "XSS")
	page.FireDialog(driver.DialogConfirm, "sure?")

	assert.Equal(t, 2, rec.Count())
	assert.Equal(t, "XSS", rec.Dialogs()[0].Message)
	assert.Empty(t, page.Unhandled())

	title, err := page.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ClinicLite", title)

	require.NoError(t, c.RestoreAll(ctx))
	assert.Equal(t, 0, page.DialogHandlers())
	rec.Stop()
}

func TestConsoleCapture(t *testing.T) {
	page := drivertest.NewPage("ClinicLite")
	c := New(page, Desktop)

	rec := c.CaptureConsole()
	page.Log("log", "loaded")
	page.Log("error", "Uncaught TypeError")

	assert.Len(t, rec.Messages(), 2)
	require.Len(t, rec.Errors(), 1)
	assert.Equal(t, "Uncaught TypeError", rec.Errors()[0].Text)

	rec.Stop()
	page.Log("error", "after stop")
	assert.Len(t, rec.Messages(), 2)
}

func TestWithin(t *testing.T) {
	elapsed, err := Within(time.Second, "fast", func() error { return nil })
	require.NoError(t, err)
	assert.Less(t, elapsed, time.Second)

	_, err = Within(time.Millisecond, "bulk upload", func() error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBudgetExceeded)

	var be *BudgetError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "bulk upload", be.Label)
	assert.GreaterOrEqual(t, be.Elapsed, 10*time.Millisecond)

	boom := errors.New("boom")
	_, err = Within(time.Millisecond, "failing", func() error {
		time.Sleep(5 * time.Millisecond)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrBudgetExceeded)
}

func TestWithinSinceCountsTimeBeforeWaiting(t *testing.T) {
	start := time.Now().Add(-40 * time.Millisecond)

	elapsed, err := WithinSince(start, 30*time.Millisecond, "bulk upload", func() error { return nil })
	require.ErrorIs(t, err, ErrBudgetExceeded)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)

	_, err = WithinSince(time.Now(), time.Second, "bulk upload", func() error { return nil })
	assert.NoError(t, err)
}
