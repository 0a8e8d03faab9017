package clinic

import (
	"context"

	"clinicprobe/internal/driver"
	"clinicprobe/internal/environment"
	"clinicprobe/internal/humanize"
	"clinicprobe/internal/scenario"
)

func networkScenarios(b Budgets) []*scenario.Scenario {
	return []*scenario.Scenario{
		{
			ID:      "offline-indicator",
			Title:   "connection status follows the network and recovers after reload",
			Group:   GroupNetwork,
			Tags:    []string{"offline"},
			Arrange: openDashboard,
			Act: func(ctx context.Context, r *scenario.Run) error {
				if err := r.WaitText(ctx, ConnectionStatus, "Online", r.LocatorTimeout()); err != nil {
					return err
				}
				restore, err := r.Env.SetNetwork(ctx, false)
				if err != nil {
					return err
				}
				if err := r.WaitText(ctx, ConnectionStatus, "Offline", r.SignalTimeout()); err != nil {
					return err
				}
				if err := restore(ctx); err != nil {
					return err
				}
				return r.Page.Reload(ctx)
			},
			Assert: func(ctx context.Context, r *scenario.Run) error {
				if err := r.WaitText(ctx, ConnectionStatus, "Online", r.SignalTimeout()); err != nil {
					return err
				}
				checkpoint(ctx, r, "back online")
				return nil
			},
		},
		{
			ID:      "offline-navigation",
			Title:   "views still switch while offline",
			Group:   GroupNetwork,
			Tags:    []string{"offline"},
			Arrange: openDashboard,
			Act: func(ctx context.Context, r *scenario.Run) error {
				if _, err := r.Env.SetNetwork(ctx, false); err != nil {
					return err
				}
				if err := openView(ctx, r, NavUpload, UploadView); err != nil {
					return err
				}
				return openView(ctx, r, NavReminders, RemindersView)
			},
			Assert: func(ctx context.Context, r *scenario.Run) error {
				return expectVisible(ctx, r, RemindersView)
			},
		},
		{
			ID:      "offline-badge",
			Title:   "offline badge appears when the network drops",
			Group:   GroupNetwork,
			Tags:    []string{"offline"},
			Arrange: openDashboard,
			Act: func(ctx context.Context, r *scenario.Run) error {
				restore, err := r.Env.SetNetwork(ctx, false)
				if err != nil {
					return err
				}
				buttons, err := r.Page.QueryAll(ctx, "button")
				if err != nil {
					return err
				}
				if len(buttons) > 0 {
					if err := humanize.ClickAction(ctx, buttons[0]); err != nil {
						r.Note("click while offline: %v", err)
					}
				}
				if err := r.Human.Pause(ctx); err != nil {
					return err
				}

				badge, err := r.ProbeWithin(ctx, OfflineBadge, r.SignalTimeout())
				if err != nil {
					return err
				}
				if err := r.RequireOptional(badge); err != nil {
					return err
				}
				visible, err := badge.Element.Visible(ctx)
				if err != nil {
					return err
				}
				if err := r.Expect(visible, "offline badge attached but hidden"); err != nil {
					return err
				}

				if err := restore(ctx); err != nil {
					return err
				}
				return r.Page.Reload(ctx)
			},
			Assert: expectAlive,
		},
		{
			ID:     "page-load-budget",
			Title:  "first load completes within the page-load budget",
			Group:  GroupNetwork,
			Tags:   []string{"performance"},
			Budget: b.PageLoad,
			Act: func(ctx context.Context, r *scenario.Run) error {
				_, err := r.Within("page load", 0, func() error {
					if err := r.Page.Navigate(ctx, r.URL("/")); err != nil {
						return err
					}
					_, err := r.Page.WaitFor(ctx, Header, driver.StateVisible, b.PageLoad)
					return err
				})
				return err
			},
			Assert: expectAlive,
		},
	}
}

func responsive(vp driver.Viewport) *scenario.Scenario {
	return &scenario.Scenario{
		ID:    "responsive-" + vp.Name,
		Title: "dashboard renders three cards on " + vp.Name,
		Group: GroupResponsive,
		Tags:  []string{"viewport"},
		Arrange: func(ctx context.Context, r *scenario.Run) error {
			if _, err := r.Env.SetViewport(ctx, vp); err != nil {
				return err
			}
			return openDashboard(ctx, r)
		},
		Assert: func(ctx context.Context, r *scenario.Run) error {
			if err := expectCount(ctx, r, DashboardCard, len(CardTitles)); err != nil {
				return err
			}
			checkpoint(ctx, r, vp.Name)
			return nil
		},
	}
}

func responsiveScenarios() []*scenario.Scenario {
	return []*scenario.Scenario{
		responsive(environment.Mobile),
		responsive(environment.Tablet),
	}
}
