//go:build integration

package driver_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"clinicprobe/internal/driver"

	"github.com/stretchr/testify/require"
)

const fixturePage = `
<html>
<head><title>Probe Page</title></head>
<body>
	<button id="btn1" onclick="document.getElementById('out').textContent = 'clicked'">Click Me</button>
	<button id="alert" onclick="alert('hi')">Alert</button>
	<button id="off" disabled>Off</button>
	<input id="inp1" type="text" />
	<input id="file" type="file" onchange="document.getElementById('out').textContent = this.files[0].name" />
	<select id="kind"><option value="clinics">Clinics</option><option value="stock">Stock</option></select>
	<div id="out"></div>
	<div id="ghost" style="display:none">ghost</div>
</body>
</html>`

func launch(t *testing.T) (driver.Page, string) {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintln(w, fixturePage)
	}))
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	cfg := driver.DefaultConfig()
	cfg.NavigationTimeout = 10 * time.Second

	b, err := driver.Launch(ctx, cfg)
	require.NoError(t, err, "Failed to start browser")
	t.Cleanup(func() {
		if err := b.Close(); err != nil {
			t.Logf("Shutdown error: %v", err)
		}
	})

	page, err := b.NewPage(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = page.Close() })

	require.NoError(t, page.Navigate(ctx, ts.URL))
	return page, ts.URL
}

func TestRodPage_Interaction_Integration(t *testing.T) {
	page, _ := launch(t)
	ctx := context.Background()

	title, err := page.Title(ctx)
	require.NoError(t, err)
	require.Equal(t, "Probe Page", title)

	btn, err := page.Locate(ctx, "#btn1", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, btn.Hover(ctx))
	require.NoError(t, btn.Click(ctx))

	out, err := page.Locate(ctx, "#out", 5*time.Second)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		text, _ := out.Text(ctx)
		return text == "clicked"
	}, 5*time.Second, 50*time.Millisecond)

	inp, err := page.Locate(ctx, "#inp1", 5*time.Second)
	require.NoError(t, err)
	for _, r := range "héllo" {
		require.NoError(t, inp.InsertText(ctx, string(r)))
	}
	raw, err := page.Evaluate(ctx, `() => document.getElementById('inp1').value`)
	require.NoError(t, err)
	require.JSONEq(t, `"héllo"`, string(raw))

	off, _, err := page.Query(ctx, "#off")
	require.NoError(t, err)
	enabled, err := off.Enabled(ctx)
	require.NoError(t, err)
	require.False(t, enabled)

	sel, err := page.Locate(ctx, "#kind", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, sel.SelectOption(ctx, "stock"))
}

func TestRodPage_LocatorTimeout_Integration(t *testing.T) {
	page, _ := launch(t)

	_, err := page.Locate(context.Background(), "#missing", 300*time.Millisecond)
	require.ErrorIs(t, err, driver.ErrLocatorTimeout)

	_, err = page.Locate(context.Background(), "#ghost", 300*time.Millisecond)
	require.ErrorIs(t, err, driver.ErrLocatorTimeout)

	_, err = page.WaitFor(context.Background(), "#ghost", driver.StateHidden, time.Second)
	require.NoError(t, err)
}

func TestRodPage_DialogsAndFiles_Integration(t *testing.T) {
	page, _ := launch(t)
	ctx := context.Background()

	var mu sync.Mutex
	var dialogs []driver.Dialog
	stop := page.OnDialog(func(d driver.Dialog) {
		mu.Lock()
		defer mu.Unlock()
		dialogs = append(dialogs, d)
	})
	defer stop()

	btn, err := page.Locate(ctx, "#alert", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, btn.Click(ctx))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dialogs) == 1 && dialogs[0].Kind == driver.DialogAlert && dialogs[0].Message == "hi"
	}, 5*time.Second, 50*time.Millisecond)

	// The page must still respond once the dialog is dismissed.
	require.Eventually(t, func() bool {
		title, err := page.Title(ctx)
		return err == nil && title == "Probe Page"
	}, 5*time.Second, 50*time.Millisecond)

	path := filepath.Join(t.TempDir(), "clinics.csv")
	require.NoError(t, os.WriteFile(path, []byte("clinic_id,name\nC001,Gaborone\n"), 0644))

	input, _, err := page.Query(ctx, "#file")
	require.NoError(t, err)
	require.NoError(t, input.SetFiles(ctx, path))

	out, err := page.Locate(ctx, "#out", 5*time.Second)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		text, _ := out.Text(ctx)
		return text == "clinics.csv"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestRodPage_Environment_Integration(t *testing.T) {
	page, url := launch(t)
	ctx := context.Background()

	require.NoError(t, page.SetViewport(ctx, driver.Viewport{Width: 375, Height: 667, Mobile: true}))
	raw, err := page.Evaluate(ctx, `() => window.innerWidth`)
	require.NoError(t, err)
	require.JSONEq(t, `375`, string(raw))

	require.NoError(t, page.SetOffline(ctx, true))
	raw, err = page.Evaluate(ctx, `() => navigator.onLine`)
	require.NoError(t, err)
	require.JSONEq(t, `false`, string(raw))
	require.Error(t, page.Navigate(ctx, url+"/other"))

	require.NoError(t, page.SetOffline(ctx, false))
	require.NoError(t, page.Navigate(ctx, url))

	shot := filepath.Join(t.TempDir(), "shots", "page.png")
	require.NoError(t, page.Screenshot(ctx, shot))
	info, err := os.Stat(shot)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}
