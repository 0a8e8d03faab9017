package clinic

import (
	"context"

	"clinicprobe/internal/fixture"
	"clinicprobe/internal/humanize"
	"clinicprobe/internal/scenario"
)

// uploadScenario stages the fixtures from b, submits them all, and expects
// one of signals.
func uploadScenario(id, title string, b build, signals []string, tags ...string) *scenario.Scenario {
	return &scenario.Scenario{
		ID:      id,
		Title:   title,
		Group:   GroupUpload,
		Tags:    append([]string{"csv"}, tags...),
		Arrange: stage(b),
		Act:     submitAll,
		Assert:  expectSignal(signals...),
	}
}

func uploadScenarios(b Budgets) []*scenario.Scenario {
	contacts := fixture.PatientContacts

	return []*scenario.Scenario{
		{
			ID:    "upload-view",
			Title: "upload view shows type selector, drop area and button",
			Group: GroupUpload,
			Tags:  []string{"smoke"},
			Arrange: func(ctx context.Context, r *scenario.Run) error {
				if err := openDashboard(ctx, r); err != nil {
					return err
				}
				return openView(ctx, r, NavUpload, UploadView)
			},
			Assert: func(ctx context.Context, r *scenario.Run) error {
				if err := expectVisible(ctx, r, FileType, UploadArea, UploadButton); err != nil {
					return err
				}
				checkpoint(ctx, r, "upload view")
				return nil
			},
		},
		{
			ID:    "upload-button-gating",
			Title: "upload button stays disabled until type and file are chosen",
			Group: GroupUpload,
			Arrange: func(ctx context.Context, r *scenario.Run) error {
				if _, err := r.Fixture(r.Gen.Valid(fixture.Clinics, 1)); err != nil {
					return err
				}
				if err := openDashboard(ctx, r); err != nil {
					return err
				}
				return openView(ctx, r, NavUpload, UploadView)
			},
			Act: func(ctx context.Context, r *scenario.Run) error {
				if err := expectDisabled(ctx, r, UploadButton); err != nil {
					return err
				}
				if err := r.Human.Select(ctx, humanize.Required(FileType), fixture.Clinics.UploadType()); err != nil {
					return err
				}
				if err := expectDisabled(ctx, r, UploadButton); err != nil {
					return err
				}
				return r.Human.Upload(ctx, humanize.Required(FileInput), r.Handles()[0].Path)
			},
			Assert: func(ctx context.Context, r *scenario.Run) error {
				btn, err := r.Page.Locate(ctx, UploadButton, r.LocatorTimeout())
				if err != nil {
					return err
				}
				enabled, err := btn.Enabled(ctx)
				if err != nil {
					return err
				}
				return r.Expect(enabled, "%s disabled with type and file chosen", UploadButton)
			},
		},
		uploadScenario("upload-empty-no-header", "file with no header and no rows is rejected",
			one(func(g *fixture.Generator) *fixture.Fixture { return g.Empty(contacts, false) }),
			ErrorSignals, "malformed"),
		uploadScenario("upload-empty-header-only", "header-only file ends with a signal",
			one(func(g *fixture.Generator) *fixture.Fixture { return g.Empty(contacts, true) }),
			TerminalSignals(), "malformed"),
		uploadScenario("upload-wrong-headers", "unknown headers are rejected",
			one(func(g *fixture.Generator) *fixture.Fixture { return g.WrongSchema(contacts, fixture.WrongHeaders) }),
			ErrorSignals, "malformed"),
		uploadScenario("upload-missing-columns", "missing columns are rejected",
			one(func(g *fixture.Generator) *fixture.Fixture { return g.WrongSchema(contacts, fixture.MissingColumns) }),
			ErrorSignals, "malformed"),
		uploadScenario("upload-extra-columns", "extra columns end with a signal",
			one(func(g *fixture.Generator) *fixture.Fixture { return g.WrongSchema(contacts, fixture.ExtraColumns) }),
			TerminalSignals(), "malformed"),
		{
			ID:      "upload-bulk",
			Title:   "1500-row upload succeeds within the bulk budget",
			Group:   GroupUpload,
			Tags:    []string{"csv", "performance"},
			Budget:  b.BulkUpload,
			Arrange: stage(one(func(g *fixture.Generator) *fixture.Fixture { return g.OversizedRows(contacts, 1500) })),
			Act:     submitAll,
			Assert: func(ctx context.Context, r *scenario.Run) error {
				start, ok := r.MarkedAt(markSubmitted)
				if !ok {
					return scenario.Failf("bulk upload was never submitted")
				}
				_, err := r.WithinSince("bulk upload", start, 0, func() error {
					_, err := r.RequireSignalWithin(ctx, r.BulkTimeout(), SuccessSignals...)
					return err
				})
				if err != nil {
					return err
				}
				checkpoint(ctx, r, "bulk upload")
				return nil
			},
		},
		uploadScenario("upload-unicode", "accented names, emoji and right-to-left text end with a signal",
			oneErr(func(g *fixture.Generator) (*fixture.Fixture, error) { return g.UnicodeStress(contacts) }),
			TerminalSignals(), "boundary"),
		uploadScenario("upload-long-field", "15000-character field ends with a signal",
			oneErr(func(g *fixture.Generator) (*fixture.Fixture, error) { return g.OversizedField(contacts, 15000) }),
			TerminalSignals(), "boundary"),
		uploadScenario("upload-edge-dates", "boundary appointment dates end with a signal",
			oneErr(func(g *fixture.Generator) (*fixture.Fixture, error) { return g.BoundaryDates(fixture.AppointmentSlots) }),
			TerminalSignals(), "boundary"),
		uploadScenario("upload-phone-formats", "phone number variants end with a signal",
			oneErr(func(g *fixture.Generator) (*fixture.Fixture, error) { return g.BoundaryPhones(contacts) }),
			TerminalSignals(), "boundary"),
		uploadScenario("upload-ragged", "rows with the wrong field count end with a signal",
			one(func(g *fixture.Generator) *fixture.Fixture { return g.Ragged(contacts) }),
			TerminalSignals(), "malformed"),
		uploadScenario("upload-duplicate-ids", "duplicate identifiers end with a signal",
			one(func(g *fixture.Generator) *fixture.Fixture { return g.Duplicates(contacts, 5) }),
			TerminalSignals(), "malformed"),
		{
			ID:      "upload-multiple",
			Title:   "three uploads in quick succession",
			Group:   GroupUpload,
			Tags:    []string{"csv", "concurrency"},
			Arrange: stage(func(g *fixture.Generator) ([]*fixture.Fixture, error) { return g.Batch(contacts, 3, 20), nil }),
			Act:     submitAll,
			Assert: steps(
				expectSignal(TerminalSignals()...),
				expectAlive,
			),
		},
		{
			ID:      "upload-refresh-midway",
			Title:   "page recovers from a reload during upload",
			Group:   GroupUpload,
			Tags:    []string{"csv", "concurrency"},
			Arrange: stage(one(func(g *fixture.Generator) *fixture.Fixture { return g.Valid(contacts, 100) })),
			Act: func(ctx context.Context, r *scenario.Run) error {
				if err := r.Human.Upload(ctx, humanize.Optional(FileInput), r.Handles()[0].Path); err != nil {
					return err
				}
				if err := r.Page.Reload(ctx); err != nil {
					return err
				}
				return r.Human.Pause(ctx)
			},
			Assert: func(ctx context.Context, r *scenario.Run) error {
				if err := expectAlive(ctx, r); err != nil {
					return err
				}
				_, err := r.Page.Locate(ctx, Header, r.LocatorTimeout())
				return err
			},
		},
	}
}
