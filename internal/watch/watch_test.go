package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (r *recorder) trigger(_ context.Context, changed []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, changed)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, 0, "clinicprobe.yaml")
	require.Error(t, err)

	rec := &recorder{}
	_, err = New(rec.trigger, 0)
	require.Error(t, err)

	w, err := New(rec.trigger, 0, "clinicprobe.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.debounce)
	w.Stop()
}

func TestBurstTriggersOneRun(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "clinicprobe.yaml")
	writeFile(t, cfg, "workers: 1\n")

	rec := &recorder{}
	w, err := New(rec.trigger, 50*time.Millisecond, cfg)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	for i := 0; i < 5; i++ {
		writeFile(t, cfg, "workers: 2\n")
	}

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, rec.count(), "burst is debounced into a single run")

	rec.mu.Lock()
	assert.Equal(t, []string{cfg}, rec.calls[0])
	rec.mu.Unlock()

	stats := w.Stats()
	assert.GreaterOrEqual(t, stats.Events, 1)
	assert.Equal(t, 1, stats.Runs)
	assert.Equal(t, cfg, stats.LastEventPath)
}

func TestIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "clinicprobe.yaml")
	writeFile(t, cfg, "workers: 1\n")

	rec := &recorder{}
	w, err := New(rec.trigger, 20*time.Millisecond, cfg)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "notes.txt"), "unrelated")
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, rec.count())
	assert.Zero(t, w.Stats().Events)
}

func TestTriggerErrorsAreCounted(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "clinicprobe.yaml")
	writeFile(t, cfg, "workers: 1\n")

	rec := &recorder{err: errors.New("suite failed")}
	w, err := New(rec.trigger, 20*time.Millisecond, cfg)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	writeFile(t, cfg, "workers: 3\n")
	require.Eventually(t, func() bool { return w.Stats().Errors == 1 }, 2*time.Second, 10*time.Millisecond)

	writeFile(t, cfg, "workers: 4\n")
	require.Eventually(t, func() bool { return rec.count() == 2 }, 2*time.Second, 10*time.Millisecond, "keeps watching after a failed run")
}

func TestContextCancelStopsLoop(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "clinicprobe.yaml")
	writeFile(t, cfg, "workers: 1\n")

	rec := &recorder{}
	w, err := New(rec.trigger, 20*time.Millisecond, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("event loop did not exit")
	}
	w.Stop()
}

func TestStopWithoutStartClosesDone(t *testing.T) {
	rec := &recorder{}
	w, err := New(rec.trigger, 0, "clinicprobe.yaml")
	require.NoError(t, err)

	w.Stop()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("Done stayed open after Stop")
	}

	// A second Stop is a no-op and a stopped watcher refuses to start.
	w.Stop()
	assert.Error(t, w.Start(context.Background()))
}
