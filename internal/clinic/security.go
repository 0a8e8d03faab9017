package clinic

import (
	"context"

	"clinicprobe/internal/driver"
	"clinicprobe/internal/fixture"
	"clinicprobe/internal/humanize"
	"clinicprobe/internal/scenario"
)

// Adversarial scenarios run with dialog interception; the runner fails them
// if any dialog fires or the page loses its title.

func injectionUpload(id, title string, b build) *scenario.Scenario {
	return &scenario.Scenario{
		ID:          id,
		Title:       title,
		Group:       GroupSecurity,
		Tags:        []string{"csv", "injection"},
		Adversarial: true,
		Arrange:     stage(b),
		Act:         submitAll,
		Assert: func(ctx context.Context, r *scenario.Run) error {
			if _, err := r.RequireSignal(ctx, TerminalSignals()...); err != nil {
				return err
			}
			// Give injected handlers a chance to run before the dialog check.
			return r.Human.Pause(ctx)
		},
	}
}

func searchInjection(id, title string, payloads []string) *scenario.Scenario {
	return &scenario.Scenario{
		ID:          id,
		Title:       title,
		Group:       GroupSecurity,
		Tags:        []string{"search", "injection"},
		Adversarial: true,
		Arrange: func(ctx context.Context, r *scenario.Run) error {
			if err := openDashboard(ctx, r); err != nil {
				return err
			}
			probe, err := r.ProbeWithin(ctx, SearchInput, r.LocatorTimeout())
			if err != nil {
				return err
			}
			return r.RequireOptional(probe)
		},
		Act: func(ctx context.Context, r *scenario.Run) error {
			for _, p := range payloads {
				if err := r.Human.ClearAndType(ctx, humanize.Required(SearchInput), p); err != nil {
					return err
				}
				if err := r.Human.KeyboardWalk(ctx, driver.KeyEnter); err != nil {
					return err
				}
				if err := r.Human.Pause(ctx); err != nil {
					return err
				}
				if err := expectAlive(ctx, r); err != nil {
					return err
				}
			}
			r.Note("%d payloads submitted", len(payloads))
			return nil
		},
		Assert: expectAlive,
	}
}

func securityScenarios() []*scenario.Scenario {
	contacts := fixture.PatientContacts
	return []*scenario.Scenario{
		injectionUpload("security-markup-csv", "markup payloads in a CSV open no dialog",
			oneErr(func(g *fixture.Generator) (*fixture.Fixture, error) { return g.MarkupInjection(contacts) })),
		injectionUpload("security-sql-csv", "SQL payloads in a CSV leave the page intact",
			oneErr(func(g *fixture.Generator) (*fixture.Fixture, error) { return g.SQLInjection(contacts) })),
		injectionUpload("security-command-csv", "shell payloads in a CSV leave the page intact",
			oneErr(func(g *fixture.Generator) (*fixture.Fixture, error) {
				return g.Injection(contacts, fixture.ClassInjectionCommand, fixture.CommandPayloads)
			})),
		searchInjection("security-sql-search", "SQL payloads typed into search", fixture.SQLPayloads),
		searchInjection("security-markup-search", "markup payloads typed into search", fixture.MarkupPayloads),
	}
}
