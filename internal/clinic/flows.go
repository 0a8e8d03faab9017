package clinic

import (
	"context"
	"fmt"
	"strings"

	"clinicprobe/internal/driver"
	"clinicprobe/internal/fixture"
	"clinicprobe/internal/humanize"
	"clinicprobe/internal/scenario"
)

// build produces the fixtures a scenario uploads, from the run's seeded
// generator.
type build func(g *fixture.Generator) ([]*fixture.Fixture, error)

func one(f func(g *fixture.Generator) *fixture.Fixture) build {
	return func(g *fixture.Generator) ([]*fixture.Fixture, error) {
		return []*fixture.Fixture{f(g)}, nil
	}
}

func oneErr(f func(g *fixture.Generator) (*fixture.Fixture, error)) build {
	return func(g *fixture.Generator) ([]*fixture.Fixture, error) {
		fx, err := f(g)
		if err != nil {
			return nil, err
		}
		return []*fixture.Fixture{fx}, nil
	}
}

// openDashboard loads the application root and waits for the header.
func openDashboard(ctx context.Context, r *scenario.Run) error {
	if err := r.Open(ctx, "/"); err != nil {
		return err
	}
	_, err := r.Page.Locate(ctx, Header, r.LocatorTimeout())
	return err
}

// openView clicks a navigation button and waits for its view.
func openView(ctx context.Context, r *scenario.Run, nav, view string) error {
	if err := r.Human.Click(ctx, humanize.Required(nav)); err != nil {
		return err
	}
	_, err := r.Page.WaitFor(ctx, view, driver.StateVisible, r.LocatorTimeout())
	return err
}

// openUpload loads the application and switches to the upload view. A
// build without an upload entry point makes the scenario inconclusive.
func openUpload(ctx context.Context, r *scenario.Run) error {
	if err := openDashboard(ctx, r); err != nil {
		return err
	}
	return r.Human.Click(ctx, humanize.Optional(UploadTab))
}

// stage writes every fixture produced by b for this run and opens the
// upload view.
func stage(b build) scenario.Body {
	return func(ctx context.Context, r *scenario.Run) error {
		fixtures, err := b(r.Gen)
		if err != nil {
			return fmt.Errorf("generate fixture: %w", err)
		}
		for _, f := range fixtures {
			if _, err := r.Fixture(f); err != nil {
				return err
			}
		}
		return openUpload(ctx, r)
	}
}

// submit picks the upload type, attaches the fixture file, and presses the
// upload button when the build has one.
func submit(ctx context.Context, r *scenario.Run, h *fixture.Handle) error {
	kind, err := r.Probe(ctx, FileType)
	if err != nil {
		return err
	}
	if kind.Present() {
		if err := r.Human.Select(ctx, humanize.Required(FileType), h.Target.UploadType()); err != nil {
			return err
		}
	}

	if err := r.Human.Upload(ctx, humanize.Optional(FileInput), h.Path); err != nil {
		return err
	}

	btn, err := r.Probe(ctx, UploadButton)
	if err != nil {
		return err
	}
	if !btn.Present() {
		// Upload on attach.
		return nil
	}
	enabled, err := btn.Element.Enabled(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", UploadButton, err)
	}
	if !enabled {
		r.Note("upload button still disabled after attaching %s", h.Class)
		return nil
	}
	return r.Human.Click(ctx, humanize.Required(UploadButton))
}

// markSubmitted is the instant the last upload reached the page: the
// upload click, or the file attachment when the build uploads on attach.
const markSubmitted = "upload submitted"

// submitAll uploads every staged fixture in the order it was written.
func submitAll(ctx context.Context, r *scenario.Run) error {
	handles := r.Handles()
	if len(handles) == 0 {
		return scenario.Failf("no fixture staged")
	}
	for _, h := range handles {
		if err := submit(ctx, r, h); err != nil {
			return err
		}
		r.Mark(markSubmitted, r.Human.LastAction())
	}
	return nil
}

// expectSignal asserts that the upload ended in one of signals.
func expectSignal(signals ...string) scenario.Body {
	return func(ctx context.Context, r *scenario.Run) error {
		_, err := r.RequireSignal(ctx, signals...)
		return err
	}
}

// expectAlive checks that the page still answers and has a title.
func expectAlive(ctx context.Context, r *scenario.Run) error {
	if err := r.Human.Responsive(ctx); err != nil {
		return scenario.Failf("%v", err)
	}
	title, err := r.Page.Title(ctx)
	if err != nil {
		return err
	}
	return r.Expect(strings.TrimSpace(title) != "", "page title empty")
}

// expectVisible waits for every selector to be visible.
func expectVisible(ctx context.Context, r *scenario.Run, selectors ...string) error {
	for _, sel := range selectors {
		if _, err := r.Page.WaitFor(ctx, sel, driver.StateVisible, r.LocatorTimeout()); err != nil {
			return err
		}
	}
	return nil
}

// expectCount checks that selector matches exactly want elements.
func expectCount(ctx context.Context, r *scenario.Run, selector string, want int) error {
	n, err := r.Count(ctx, selector)
	if err != nil {
		return err
	}
	return r.Expect(n == want, "%s matched %d elements, want %d", selector, n, want)
}

// expectTexts checks the nth element of selector contains want[n].
func expectTexts(ctx context.Context, r *scenario.Run, selector string, want []string) error {
	els, err := r.Page.QueryAll(ctx, selector)
	if err != nil {
		return err
	}
	if err := r.Expect(len(els) == len(want), "%s matched %d elements, want %d", selector, len(els), len(want)); err != nil {
		return err
	}
	for i, el := range els {
		text, err := el.Text(ctx)
		if err != nil {
			return fmt.Errorf("read %s[%d]: %w", selector, i, err)
		}
		if err := r.Expect(strings.Contains(text, want[i]), "%s[%d] is %q, want %q", selector, i, strings.TrimSpace(text), want[i]); err != nil {
			return err
		}
	}
	return nil
}

// findByText returns the first element of selector whose text contains
// text, or nil.
func findByText(ctx context.Context, r *scenario.Run, selector, text string) (driver.Element, error) {
	els, err := r.Page.QueryAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		got, err := el.Text(ctx)
		if err != nil {
			continue
		}
		if strings.Contains(got, text) {
			return el, nil
		}
	}
	return nil, nil
}

// expectDisabled checks the element is present and disabled.
func expectDisabled(ctx context.Context, r *scenario.Run, selector string) error {
	el, err := r.Page.WaitFor(ctx, selector, driver.StateAttached, r.LocatorTimeout())
	if err != nil {
		return err
	}
	enabled, err := el.Enabled(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", selector, err)
	}
	return r.Expect(!enabled, "%s is enabled", selector)
}

// checkpoint takes a named screenshot; failures are noted, not fatal.
func checkpoint(ctx context.Context, r *scenario.Run, name string) {
	if _, err := r.Screenshot(ctx, name); err != nil {
		r.Note("checkpoint %s: %v", name, err)
	}
}

// steps runs bodies in order and stops at the first error.
func steps(bodies ...scenario.Body) scenario.Body {
	return func(ctx context.Context, r *scenario.Run) error {
		for _, b := range bodies {
			if err := b(ctx, r); err != nil {
				return err
			}
		}
		return nil
	}
}
