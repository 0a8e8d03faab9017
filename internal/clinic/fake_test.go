package clinic

import (
	"encoding/json"
	"os"
	"slices"
	"strings"
	"time"

	"clinicprobe/internal/driver"
	"clinicprobe/internal/driver/drivertest"
	"clinicprobe/internal/fixture"
)

// build flags for the fake ClinicLite page.
type fakeBuild struct {
	noSearch    bool
	noBadge     bool
	noUploadNav bool
	silent      bool // uploads never show a result
	acceptAll   bool // every upload succeeds, whatever the header
	rendersXSS  bool // uploaded markup executes

	processing time.Duration // delay before an accepted upload reports success
}

// fakeClinic builds a scripted page that behaves like a healthy ClinicLite
// dashboard unless flags say otherwise.
func fakeClinic(b fakeBuild) *drivertest.Page {
	p := drivertest.NewPage(Title)
	p.Add(Header, drivertest.WithText("ClinicLite Botswana"))

	views := map[string]string{
		NavDashboard: DashboardView,
		NavUpload:    UploadView,
		NavReminders: RemindersView,
		NavStock:     StockView,
	}
	for _, view := range views {
		p.Add(view, drivertest.Hidden())
	}
	p.Element(DashboardView).SetVisible(true)

	show := func(target string) func(p *drivertest.Page) {
		return func(p *drivertest.Page) {
			for _, view := range views {
				p.Element(view).SetVisible(view == target)
			}
		}
	}
	for _, nav := range []string{NavDashboard, NavUpload, NavReminders, NavStock} {
		if nav == NavUpload && b.noUploadNav {
			continue
		}
		p.Add(nav, drivertest.InGroup("button"), drivertest.OnClick(show(views[nav])))
	}

	status := p.Add(ConnectionStatus, drivertest.WithText("Online"), drivertest.WithAttr("class", "status "+StatusOnline))
	var badge *drivertest.Element
	if !b.noBadge {
		badge = p.Add(".offline-indicator", drivertest.Hidden(), drivertest.WithText("Offline mode"))
	}
	p.OnOffline = func(_ *drivertest.Page, offline bool) error {
		if offline {
			status.SetText("Offline")
			status.SetAttr("class", "status status-offline")
		} else {
			status.SetText("Online")
			status.SetAttr("class", "status "+StatusOnline)
		}
		if badge != nil {
			badge.SetVisible(offline)
		}
		return nil
	}
	p.OnReload = func(p *drivertest.Page) error {
		show(DashboardView)(p)
		return nil
	}
	p.OnEvaluate = func(_ *drivertest.Page, js string, args []any) (json.RawMessage, error) {
		if strings.Contains(js, "fetch") && len(args) == 1 {
			return json.RawMessage(`{"status":404}`), nil
		}
		return json.RawMessage("null"), nil
	}

	for i, title := range CardTitles {
		p.Add(DashboardCard+"-"+title, drivertest.InGroup(DashboardCard))
		p.Add(CardHeadings+"-"+title, drivertest.InGroup(CardHeadings), drivertest.WithText(title))
		p.Add(CardBadges+"-"+title, drivertest.InGroup(CardBadges), drivertest.WithText(strings.Repeat("1", i+1)))
	}
	p.Add(StatsBar)
	p.Add(TotalClinics, drivertest.WithText("5"))
	p.Add(TotalPatients, drivertest.WithText("120"))
	p.Add("a.help", drivertest.InGroup("a"), drivertest.WithText("Help"))

	fakeUpload(p, b)

	p.Add(LanguageToggle)
	activate := func(on, off, class string) func(p *drivertest.Page) {
		return func(p *drivertest.Page) {
			p.Element(on).SetAttr("class", class+" "+Active)
			p.Element(off).SetAttr("class", class)
		}
	}
	p.Add(LangEN, drivertest.WithAttr("class", "lang "+Active), drivertest.OnClick(activate(LangEN, LangTSW, "lang")))
	p.Add(LangTSW, drivertest.WithAttr("class", "lang"), drivertest.OnClick(activate(LangTSW, LangEN, "lang")))
	p.Add(TabUpcoming, drivertest.WithAttr("class", "tab "+Active), drivertest.OnClick(activate(TabUpcoming, TabMissed, "tab")))
	p.Add(TabMissed, drivertest.WithAttr("class", "tab"), drivertest.OnClick(activate(TabMissed, TabUpcoming, "tab")))

	p.Add(StockTable)
	p.Add(ClinicFilter)
	for _, col := range StockColumns {
		p.Add(StockHeaders+"-"+col, drivertest.InGroup(StockHeaders), drivertest.WithText(col))
	}
	p.Add("#reorder-draft", drivertest.InGroup("button"), drivertest.WithText(ReorderDraft))

	if !b.noSearch {
		p.Add(`input[type="search"]`)
	}
	return p
}

// fakeUpload wires the upload form: the button enables once a type and a
// file are chosen, and submitting validates the header.
func fakeUpload(p *drivertest.Page, b fakeBuild) {
	var kind string
	btn := p.Add(UploadButton, drivertest.Disabled(), drivertest.OnClick(func(p *drivertest.Page) {
		processUpload(p, b)
	}))
	p.Add(FileType, drivertest.OnSelect(func(_ *drivertest.Page, value string) {
		kind = value
	}))
	p.Add(UploadArea)
	p.Add("#file-input", drivertest.Hidden(), drivertest.OnFiles(func(_ *drivertest.Page, paths []string) {
		btn.SetEnabled(kind != "" && len(paths) > 0)
	}))
}

func processUpload(p *drivertest.Page, b fakeBuild) {
	files := p.Element("#file-input").Files()
	if b.silent || len(files) == 0 {
		return
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		p.Add(".error-message", drivertest.WithText(err.Error()))
		return
	}
	content := string(data)
	if b.rendersXSS && strings.Contains(content, "<script>") {
		p.FireDialog(driver.DialogAlert, "XSS")
	}

	header, _, _ := strings.Cut(content, "\n")
	header = strings.TrimSuffix(header, "\r")
	if b.acceptAll || knownHeader(header) {
		succeed := func() { p.Add(".upload-success", drivertest.WithText("Upload complete")) }
		if b.processing > 0 {
			time.AfterFunc(b.processing, succeed)
			return
		}
		succeed()
		return
	}
	p.Add(".validation-error", drivertest.WithText("Unrecognised columns"))
}

func knownHeader(header string) bool {
	if header == "" {
		return false
	}
	return slices.ContainsFunc(fixture.Schemas(), func(s fixture.Schema) bool {
		return strings.Join(s.Columns, ",") == header
	})
}
