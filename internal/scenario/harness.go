package scenario

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"clinicprobe/internal/driver"
	"clinicprobe/internal/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Executor runs one scenario. *Runner implements it.
type Executor interface {
	Execute(ctx context.Context, sc *Scenario) *Result
}

// Harness is the scenario registry and suite orchestrator.
type Harness struct {
	scenarios map[string]*Scenario
	order     []string

	workers int
	retries int
	log     *zap.Logger
}

// NewHarness creates a harness that runs up to workers scenarios at once
// and re-executes failures up to retries times.
func NewHarness(workers, retries int) *Harness {
	if workers < 1 {
		workers = 1
	}
	if retries < 0 {
		retries = 0
	}
	return &Harness{
		scenarios: make(map[string]*Scenario),
		workers:   workers,
		retries:   retries,
		log:       logging.Scenario(),
	}
}

// Register adds scenarios. IDs must be unique.
func (h *Harness) Register(scenarios ...*Scenario) error {
	for _, sc := range scenarios {
		if sc.ID == "" {
			return errors.New("scenario without id")
		}
		if _, dup := h.scenarios[sc.ID]; dup {
			return fmt.Errorf("duplicate scenario id: %s", sc.ID)
		}
		h.scenarios[sc.ID] = sc
		h.order = append(h.order, sc.ID)
	}
	return nil
}

// Get returns the scenario with id.
func (h *Harness) Get(id string) (*Scenario, bool) {
	sc, ok := h.scenarios[id]
	return sc, ok
}

// Select returns the registered scenarios matching f in registration
// order. Unknown IDs are an error.
func (h *Harness) Select(f Filter) ([]*Scenario, error) {
	for _, id := range f.IDs {
		if _, ok := h.scenarios[id]; !ok {
			return nil, fmt.Errorf("unknown scenario: %s", id)
		}
	}
	var out []*Scenario
	for _, id := range h.order {
		if sc := h.scenarios[id]; f.Match(sc) {
			out = append(out, sc)
		}
	}
	return out, nil
}

// List returns every scenario sorted by group, then ID.
func (h *Harness) List() []*Scenario {
	out := make([]*Scenario, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.scenarios[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// RunAll executes scenarios on the worker pool and returns results in the
// order of scenarios. Scenario failures never stop siblings; an unavailable
// driver aborts the run and is returned wrapping driver.ErrUnavailable,
// along with whatever results completed.
func (h *Harness) RunAll(ctx context.Context, exec Executor, scenarios []*Scenario) ([]*Result, error) {
	results := make([]*Result, len(scenarios))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)

	var mu sync.Mutex
	for i, sc := range scenarios {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := h.runWithRetries(gctx, exec, sc)
			mu.Lock()
			results[i] = res
			mu.Unlock()

			if res.Kind == KindDriverUnavailable {
				return fmt.Errorf("scenario %s: %w", sc.ID, res.Failure)
			}
			return nil
		})
	}
	err := g.Wait()

	done := results[:0]
	for _, res := range results {
		if res != nil {
			done = append(done, res)
		}
	}
	if err != nil {
		h.log.Error("suite aborted", zap.Error(err), zap.Int("completed", len(done)), zap.Int("selected", len(scenarios)))
		if !errors.Is(err, driver.ErrUnavailable) {
			err = fmt.Errorf("%w: %w", driver.ErrUnavailable, err)
		}
		return done, err
	}
	return done, nil
}

func (h *Harness) runWithRetries(ctx context.Context, exec Executor, sc *Scenario) *Result {
	res := exec.Execute(ctx, sc)
	for attempt := 2; attempt <= h.retries+1; attempt++ {
		if res.Outcome != OutcomeFail || res.Kind == KindDriverUnavailable || ctx.Err() != nil {
			break
		}
		h.log.Info("retrying scenario",
			zap.String("scenario", sc.ID),
			zap.Int("attempt", attempt),
			zap.String("kind", string(res.Kind)))
		suiteDefect := res.SuiteDefect
		cleanupErrors := res.CleanupErrors

		res = exec.Execute(ctx, sc)
		res.Attempts = attempt
		res.SuiteDefect = res.SuiteDefect || suiteDefect
		res.CleanupErrors = append(cleanupErrors, res.CleanupErrors...)
	}
	return res
}
