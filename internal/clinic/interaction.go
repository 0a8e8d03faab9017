package clinic

import (
	"context"
	"fmt"

	"clinicprobe/internal/driver"
	"clinicprobe/internal/humanize"
	"clinicprobe/internal/scenario"
)

const (
	rapidButtons = 5
	rapidClicks  = 10
	doubleLinks  = 3
)

func interactionScenarios() []*scenario.Scenario {
	return []*scenario.Scenario{
		{
			ID:      "rapid-click",
			Title:   "ten rapid clicks on each of the first five buttons",
			Group:   GroupInteraction,
			Tags:    []string{"stress"},
			Arrange: openDashboard,
			Act: func(ctx context.Context, r *scenario.Run) error {
				buttons, err := r.Page.QueryAll(ctx, "button")
				if err != nil {
					return err
				}
				if len(buttons) > rapidButtons {
					buttons = buttons[:rapidButtons]
				}
				failures := 0
				for i, b := range buttons {
					report, err := r.Human.RapidRepeatOn(ctx, b, fmt.Sprintf("button[%d]", i), rapidClicks, humanize.ClickAction)
					if err != nil {
						return err
					}
					failures += report.Failures
					if err := r.Human.Pause(ctx); err != nil {
						return err
					}
				}
				r.Note("%d buttons, %d failed clicks", len(buttons), failures)
				return nil
			},
			Assert: func(ctx context.Context, r *scenario.Run) error {
				if err := expectAlive(ctx, r); err != nil {
					return err
				}
				checkpoint(ctx, r, "rapid click")
				return nil
			},
		},
		{
			ID:      "rapid-view-switch",
			Title:   "repeated clicks on upload navigation leave one upload view",
			Group:   GroupInteraction,
			Tags:    []string{"stress"},
			Arrange: openDashboard,
			Act: func(ctx context.Context, r *scenario.Run) error {
				report, err := r.Human.RapidRepeat(ctx, humanize.Required(NavUpload), rapidClicks, humanize.ClickAction)
				if err != nil {
					return err
				}
				return r.Expect(report.Failures == 0, "%d of %d clicks failed", report.Failures, report.Attempts)
			},
			Assert: func(ctx context.Context, r *scenario.Run) error {
				if err := expectVisible(ctx, r, UploadView); err != nil {
					return err
				}
				return expectCount(ctx, r, UploadView, 1)
			},
		},
		{
			ID:      "double-click-links",
			Title:   "double-clicking the first three links",
			Group:   GroupInteraction,
			Arrange: openDashboard,
			Act: func(ctx context.Context, r *scenario.Run) error {
				links, err := r.Page.QueryAll(ctx, "a")
				if err != nil {
					return err
				}
				if len(links) > doubleLinks {
					links = links[:doubleLinks]
				}
				for i, l := range links {
					if err := humanize.DoubleClickAction(ctx, l); err != nil {
						r.Note("double-click link %d: %v", i, err)
					}
					if err := r.Human.Pause(ctx); err != nil {
						return err
					}
				}
				return nil
			},
			Assert: expectAlive,
		},
		{
			ID:      "keyboard-walk",
			Title:   "tab, enter, escape and arrow keys",
			Group:   GroupInteraction,
			Tags:    []string{"accessibility"},
			Arrange: openDashboard,
			Act: func(ctx context.Context, r *scenario.Run) error {
				if err := r.Human.KeyboardWalk(ctx, humanize.Repeat(driver.KeyTab, 10)...); err != nil {
					return err
				}
				for _, k := range []driver.Key{driver.KeyEnter, driver.KeyEscape} {
					if err := r.Human.KeyboardWalk(ctx, k); err != nil {
						return err
					}
					if err := r.Human.Pause(ctx); err != nil {
						return err
					}
				}
				return r.Human.KeyboardWalk(ctx, driver.KeyArrowDown, driver.KeyArrowUp, driver.KeyArrowLeft, driver.KeyArrowRight)
			},
			Assert: func(ctx context.Context, r *scenario.Run) error {
				if err := expectAlive(ctx, r); err != nil {
					return err
				}
				checkpoint(ctx, r, "keyboard walk")
				return nil
			},
		},
		{
			ID:      "history-navigation",
			Title:   "back, forward and reload",
			Group:   GroupInteraction,
			Arrange: openDashboard,
			Act: func(ctx context.Context, r *scenario.Run) error {
				for _, tab := range []string{DashboardTab, UploadTab} {
					p, err := r.Probe(ctx, tab)
					if err != nil {
						return err
					}
					if !p.Present() {
						continue
					}
					if err := r.Human.Click(ctx, humanize.Required(tab)); err != nil {
						return err
					}
				}
				moves := []func(context.Context) error{r.Page.GoBack, r.Page.GoForward, r.Page.Reload}
				for _, move := range moves {
					if err := move(ctx); err != nil {
						return err
					}
					if err := r.Human.Pause(ctx); err != nil {
						return err
					}
				}
				return nil
			},
			Assert: expectAlive,
		},
	}
}
