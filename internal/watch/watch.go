// Package watch re-runs a scenario selection whenever a watched file
// settles after a change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"clinicprobe/internal/logging"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce batches the bursts of events editors produce on save.
const DefaultDebounce = 500 * time.Millisecond

// Trigger is called once per settled batch with the paths that changed.
type Trigger func(ctx context.Context, changed []string) error

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Runs          int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
	LastEventType string
}

// Watcher watches a set of files. It watches their parent directories and
// filters by name, so files replaced by rename keep being seen.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	files    map[string]bool
	dirs     []string
	pending  map[string]time.Time
	debounce time.Duration
	trigger  Trigger
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	stopped  bool
	stopOnce sync.Once
	doneOnce sync.Once
	stats    Stats
	log      *zap.Logger
}

// New creates a watcher for files. Nothing is watched until Start.
func New(trigger Trigger, debounce time.Duration, files ...string) (*Watcher, error) {
	if trigger == nil {
		return nil, fmt.Errorf("watch: nil trigger")
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("watch: no files")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]bool, len(files)),
		pending:  make(map[string]time.Time),
		debounce: debounce,
		trigger:  trigger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		log:      logging.Get(logging.CategoryWatch),
	}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch: %w", err)
		}
		w.files[abs] = true
		if dir := filepath.Dir(abs); !slices.Contains(w.dirs, dir) {
			w.dirs = append(w.dirs, dir)
		}
	}
	return w, nil
}

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("watch: already stopped")
	}
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.log.Info("watching directory", zap.String("dir", dir))
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit. Done is
// closed once Stop returns, whether or not Start ever ran. A stopped
// watcher cannot be restarted.
func (w *Watcher) Stop() {
	w.stopOnce.Do(w.stop)
}

func (w *Watcher) stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.stopped = true
	w.mu.Unlock()

	close(w.stopCh)
	if running {
		<-w.doneCh
	} else {
		w.finish()
	}

	if err := w.watcher.Close(); err != nil {
		w.log.Error("close watcher", zap.Error(err))
	}
	w.log.Info("watcher stopped")
}

// Done is closed when the event loop has exited.
func (w *Watcher) Done() <-chan struct{} { return w.doneCh }

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) finish() {
	w.doneOnce.Do(func() { close(w.doneCh) })
}

func (w *Watcher) run(ctx context.Context) {
	defer w.finish()

	tick := 100 * time.Millisecond
	if w.debounce < tick {
		tick = w.debounce
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name, err := filepath.Abs(event.Name)
	if err != nil || !w.files[name] {
		return
	}

	var kind string
	switch {
	case event.Op&fsnotify.Create != 0:
		kind = "create"
	case event.Op&fsnotify.Write != 0:
		kind = "modify"
	case event.Op&fsnotify.Remove != 0:
		kind = "delete"
	case event.Op&fsnotify.Rename != 0:
		kind = "rename"
	default:
		return
	}
	w.log.Debug("file event", zap.String("path", name), zap.String("op", kind))

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = name
	w.stats.LastEventType = kind
	w.pending[name] = time.Now()
	w.mu.Unlock()
}

// flush triggers one run for every path that has been quiet for the
// debounce window.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	if len(settled) == 0 {
		return
	}
	slices.Sort(settled)

	w.log.Info("change settled, re-running", zap.Strings("paths", settled))
	err := w.trigger(ctx, settled)

	w.mu.Lock()
	w.stats.Runs++
	if err != nil {
		w.stats.Errors++
	}
	w.mu.Unlock()
	if err != nil {
		w.log.Error("triggered run failed", zap.Error(err))
	}
}
