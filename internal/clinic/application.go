package clinic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"clinicprobe/internal/scenario"
)

// fetchStatus asks the page to fetch a URL and report the status or the
// network error.
const fetchStatus = `async (url) => {
	try {
		const res = await fetch(url);
		return { status: res.status };
	} catch (error) {
		return { error: error.message };
	}
}`

type fetchResult struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

func applicationScenarios() []*scenario.Scenario {
	return []*scenario.Scenario{
		{
			ID:      "app-loads",
			Title:   "application loads with title, header and navigation",
			Group:   GroupApplication,
			Tags:    []string{"smoke"},
			Arrange: openDashboard,
			Assert: func(ctx context.Context, r *scenario.Run) error {
				title, err := r.Page.Title(ctx)
				if err != nil {
					return err
				}
				if err := r.Expect(title == Title, "title is %q, want %q", title, Title); err != nil {
					return err
				}
				if err := r.ExpectText(ctx, Header, "ClinicLite Botswana"); err != nil {
					return err
				}
				if err := expectVisible(ctx, r, NavDashboard, NavUpload, NavReminders, NavStock); err != nil {
					return err
				}
				checkpoint(ctx, r, "dashboard")
				return nil
			},
		},
		{
			ID:      "connection-online",
			Title:   "connection status shows Online",
			Group:   GroupApplication,
			Tags:    []string{"smoke"},
			Arrange: openDashboard,
			Assert: func(ctx context.Context, r *scenario.Run) error {
				if err := expectVisible(ctx, r, ConnectionStatus); err != nil {
					return err
				}
				if err := r.WaitClass(ctx, ConnectionStatus, StatusOnline, r.LocatorTimeout()); err != nil {
					return err
				}
				return r.ExpectText(ctx, ConnectionStatus, "Online")
			},
		},
		{
			ID:      "api-unknown-route",
			Title:   "unknown API route answers 404",
			Group:   GroupApplication,
			Arrange: openDashboard,
			Assert: func(ctx context.Context, r *scenario.Run) error {
				url := strings.TrimRight(r.APIURL(), "/") + "/api/nonexistent"
				raw, err := r.Page.Evaluate(ctx, fetchStatus, url)
				if err != nil {
					return fmt.Errorf("fetch %s: %w", url, err)
				}
				var res fetchResult
				if err := json.Unmarshal(raw, &res); err != nil {
					return fmt.Errorf("decode fetch result: %w", err)
				}
				if res.Error != "" {
					return scenario.Failf("fetch %s failed: %s", url, res.Error)
				}
				return r.Expect(res.Status == http.StatusNotFound, "%s answered %d, want 404", url, res.Status)
			},
		},
		{
			ID:      "dashboard-cards",
			Title:   "dashboard shows three cards with badges",
			Group:   GroupApplication,
			Arrange: openDashboard,
			Assert: func(ctx context.Context, r *scenario.Run) error {
				if err := expectCount(ctx, r, DashboardCard, len(CardTitles)); err != nil {
					return err
				}
				if err := expectTexts(ctx, r, CardHeadings, CardTitles); err != nil {
					return err
				}
				badges, err := r.Page.QueryAll(ctx, CardBadges)
				if err != nil {
					return err
				}
				if err := r.Expect(len(badges) == len(CardTitles), "%d card badges, want %d", len(badges), len(CardTitles)); err != nil {
					return err
				}
				for i, b := range badges {
					visible, err := b.Visible(ctx)
					if err != nil {
						return err
					}
					if err := r.Expect(visible, "badge on card %d hidden", i); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			ID:      "stats-bar",
			Title:   "statistics bar shows clinic and patient totals",
			Group:   GroupApplication,
			Arrange: openDashboard,
			Assert: func(ctx context.Context, r *scenario.Run) error {
				return expectVisible(ctx, r, StatsBar, TotalClinics, TotalPatients)
			},
		},
	}
}
