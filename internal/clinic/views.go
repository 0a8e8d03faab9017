package clinic

import (
	"context"

	"clinicprobe/internal/humanize"
	"clinicprobe/internal/scenario"
)

func openRemindersView(ctx context.Context, r *scenario.Run) error {
	if err := openDashboard(ctx, r); err != nil {
		return err
	}
	return openView(ctx, r, NavReminders, RemindersView)
}

func openStockView(ctx context.Context, r *scenario.Run) error {
	if err := openDashboard(ctx, r); err != nil {
		return err
	}
	return openView(ctx, r, NavStock, StockView)
}

// toggle clicks each selector in turn and waits for it to become active.
func toggle(selectors ...string) scenario.Body {
	return func(ctx context.Context, r *scenario.Run) error {
		for _, sel := range selectors {
			if err := r.Human.Click(ctx, humanize.Required(sel)); err != nil {
				return err
			}
			if err := r.WaitClass(ctx, sel, Active, r.LocatorTimeout()); err != nil {
				return err
			}
		}
		return nil
	}
}

func reminderScenarios() []*scenario.Scenario {
	return []*scenario.Scenario{
		{
			ID:      "reminders-view",
			Title:   "reminders view shows the language toggle",
			Group:   GroupReminders,
			Tags:    []string{"smoke"},
			Arrange: openRemindersView,
			Assert: func(ctx context.Context, r *scenario.Run) error {
				return expectVisible(ctx, r, LanguageToggle, LangEN, LangTSW)
			},
		},
		{
			ID:      "reminders-language",
			Title:   "language toggle switches between English and Setswana",
			Group:   GroupReminders,
			Arrange: openRemindersView,
			Act:     toggle(LangEN, LangTSW, LangEN),
		},
		{
			ID:      "reminders-tabs",
			Title:   "patient tabs switch between upcoming and missed",
			Group:   GroupReminders,
			Arrange: openRemindersView,
			Act:     toggle(TabUpcoming, TabMissed),
		},
	}
}

func stockScenarios() []*scenario.Scenario {
	return []*scenario.Scenario{
		{
			ID:      "stock-view",
			Title:   "stock view shows the table and clinic filter",
			Group:   GroupStock,
			Tags:    []string{"smoke"},
			Arrange: openStockView,
			Assert: func(ctx context.Context, r *scenario.Run) error {
				if err := expectVisible(ctx, r, StockTable, ClinicFilter); err != nil {
					return err
				}
				checkpoint(ctx, r, "stock view")
				return nil
			},
		},
		{
			ID:      "stock-headers",
			Title:   "stock table has the six expected columns",
			Group:   GroupStock,
			Arrange: openStockView,
			Assert: func(ctx context.Context, r *scenario.Run) error {
				return expectTexts(ctx, r, StockHeaders, StockColumns)
			},
		},
		{
			ID:      "stock-reorder-draft",
			Title:   "reorder draft button is visible",
			Group:   GroupStock,
			Arrange: openStockView,
			Assert: func(ctx context.Context, r *scenario.Run) error {
				btn, err := findByText(ctx, r, "button", ReorderDraft)
				if err != nil {
					return err
				}
				if btn == nil {
					return scenario.Failf("no button labelled %q", ReorderDraft)
				}
				visible, err := btn.Visible(ctx)
				if err != nil {
					return err
				}
				return r.Expect(visible, "%q button hidden", ReorderDraft)
			},
		},
	}
}
