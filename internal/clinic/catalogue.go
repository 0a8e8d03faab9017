package clinic

import (
	"time"

	"clinicprobe/internal/config"
	"clinicprobe/internal/scenario"
)

// Scenario groups.
const (
	GroupApplication = "application"
	GroupUpload      = "upload"
	GroupSecurity    = "security"
	GroupInteraction = "interaction"
	GroupReminders   = "reminders"
	GroupStock       = "stock"
	GroupNetwork     = "network"
	GroupResponsive  = "responsive"
)

// Budgets are the performance limits scenarios are measured against.
type Budgets struct {
	BulkUpload time.Duration
	PageLoad   time.Duration
}

// BudgetsFromConfig reads budgets from the configuration.
func BudgetsFromConfig(cfg *config.Config) Budgets {
	return Budgets{
		BulkUpload: cfg.GetBulkUploadBudget(),
		PageLoad:   cfg.GetPageLoadBudget(),
	}
}

// Catalogue returns every ClinicLite scenario.
func Catalogue(b Budgets) []*scenario.Scenario {
	var out []*scenario.Scenario
	out = append(out, applicationScenarios()...)
	out = append(out, uploadScenarios(b)...)
	out = append(out, securityScenarios()...)
	out = append(out, interactionScenarios()...)
	out = append(out, reminderScenarios()...)
	out = append(out, stockScenarios()...)
	out = append(out, networkScenarios(b)...)
	out = append(out, responsiveScenarios()...)
	return out
}
