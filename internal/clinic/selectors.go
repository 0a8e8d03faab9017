// Package clinic holds the ClinicLite selectors and the scenario catalogue
// exercised against a running ClinicLite build.
package clinic

// Title is the dashboard document title.
const Title = "ClinicLite Botswana - Dashboard"

// Application shell.
const (
	Header           = "h1"
	ConnectionStatus = "#connection-status"
	StatusOnline     = "status-online"

	NavDashboard = `[data-view="dashboard"]`
	NavUpload    = `[data-view="upload"]`
	NavReminders = `[data-view="reminders"]`
	NavStock     = `[data-view="stock"]`
)

// Dashboard.
const (
	DashboardView = "#dashboard-view"
	DashboardCard = ".dashboard-card"
	CardHeadings  = ".dashboard-card h2"
	CardBadges    = ".dashboard-card .badge"
	StatsBar      = ".stats-bar"
	TotalClinics  = "#total-clinics"
	TotalPatients = "#total-patients"
	UpcomingCount = "#upcoming-count"
	MissedCount   = "#missed-count"
	LowStockCount = "#low-stock-count"
)

// Upload view.
const (
	UploadView   = "#upload-view"
	FileType     = "#file-type"
	UploadArea   = "#upload-area"
	FileInput    = `#file-input, input[type="file"]`
	UploadButton = "#upload-btn"
	UploadResult = "#upload-result"

	// UploadTab is how older builds expose the upload view.
	UploadTab = `[data-testid="csv-upload-tab"], #csv-upload-tab, [data-view="upload"]`
)

// Reminders view.
const (
	RemindersView  = "#reminders-view"
	LanguageToggle = ".language-toggle"
	LangEN         = `[data-lang="EN"]`
	LangTSW        = `[data-lang="TSW"]`
	TabUpcoming    = `[data-tab="upcoming"]`
	TabMissed      = `[data-tab="missed"]`
	Active         = "active"
)

// Stock view.
const (
	StockView    = "#stock-view"
	StockTable   = ".stock-table"
	StockHeaders = ".stock-table thead th"
	ClinicFilter = "#clinic-filter"
	ReorderDraft = "Generate Reorder Draft CSV"
)

// Feature-gated elements that not every build ships.
const (
	SearchInput  = `input[type="search"], input[placeholder*="Search"], input[name="search"]`
	OfflineBadge = `.offline-indicator, [data-testid="offline-badge"], .offline-mode`
	DashboardTab = `[data-testid="dashboard-tab"], #dashboard-tab`
)

// StockColumns are the stock table headings in order.
var StockColumns = []string{"Item Name", "On Hand", "Reorder Level", "Deficit", "Unit", "Status"}

// CardTitles are the dashboard card headings in order.
var CardTitles = []string{"Upcoming Visits", "Missed Visits", "Low Stock Items"}

// SuccessSignals mark an accepted upload.
var SuccessSignals = []string{".upload-success", ".success-message"}

// ErrorSignals mark a rejected or partially accepted upload.
var ErrorSignals = []string{
	".validation-error",
	".error-message",
	".alert-danger",
	".validation-warning",
	".file-too-large-error",
}

// TerminalSignals is every element that ends an upload, accepted or not.
func TerminalSignals() []string {
	out := make([]string, 0, len(SuccessSignals)+len(ErrorSignals))
	out = append(out, SuccessSignals...)
	return append(out, ErrorSignals...)
}
