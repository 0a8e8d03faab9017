package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clinicprobe/internal/logging"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
)

var (
	passStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true)
	failStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
	inconclusiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107")).Bold(true)
	dimStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("#9E9E9E"))
)

// Reporter formats results for the console or as JSON.
type Reporter struct {
	writer io.Writer
	format string // "console" or "json"
	log    *zap.Logger
}

// NewReporter creates a new reporter.
func NewReporter(writer io.Writer, format string) *Reporter {
	return &Reporter{
		writer: writer,
		format: format,
		log:    logging.Get(logging.CategoryReport),
	}
}

// Report outputs one result as soon as it is known.
func (r *Reporter) Report(result *Result) error {
	if r.format == "json" {
		encoder := json.NewEncoder(r.writer)
		return encoder.Encode(result)
	}
	return r.reportConsole(result)
}

func badge(o Outcome) string {
	switch o {
	case OutcomePass:
		return passStyle.Render("PASS")
	case OutcomeInconclusive:
		return inconclusiveStyle.Render("INCONCLUSIVE")
	default:
		return failStyle.Render("FAIL")
	}
}

func (r *Reporter) reportConsole(result *Result) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s  %s  %s\n", badge(result.Outcome), result.ScenarioID,
		dimStyle.Render(fmt.Sprintf("(%s, %s)", result.Group, result.Duration.Round(time.Millisecond)))))

	if result.Reason != "" {
		sb.WriteString(fmt.Sprintf("    %s\n", result.Reason))
	}
	for _, m := range result.Measurements {
		if m.Budget > 0 {
			sb.WriteString(fmt.Sprintf("    %s: %s (budget %s)\n", m.Label, m.Elapsed.Round(time.Millisecond), m.Budget))
		}
	}
	for _, path := range result.Screenshots {
		sb.WriteString(dimStyle.Render("    screenshot "+path) + "\n")
	}
	for _, msg := range result.CleanupErrors {
		sb.WriteString(failStyle.Render("    suite defect: ") + msg + "\n")
	}

	_, err := io.WriteString(r.writer, sb.String())
	return err
}

// Summary counts outcomes.
type Summary struct {
	Total        int `json:"total"`
	Passed       int `json:"passed"`
	Failed       int `json:"failed"`
	Inconclusive int `json:"inconclusive"`
	SuiteDefects int `json:"suite_defects"`
}

// Summarize counts outcomes across results.
func Summarize(results []*Result) Summary {
	var s Summary
	for _, res := range results {
		s.Total++
		switch res.Outcome {
		case OutcomePass:
			s.Passed++
		case OutcomeInconclusive:
			s.Inconclusive++
		default:
			s.Failed++
		}
		if res.SuiteDefect {
			s.SuiteDefects++
		}
	}
	return s
}

// OK reports whether the run should exit zero.
func (s Summary) OK() bool { return s.Failed == 0 && s.SuiteDefects == 0 }

// SummaryLine is the one line printed per suite run.
func SummaryLine(results []*Result) string {
	s := Summarize(results)
	line := fmt.Sprintf("%d scenarios: %d passed, %d failed, %d inconclusive", s.Total, s.Passed, s.Failed, s.Inconclusive)
	if s.SuiteDefects > 0 {
		line += fmt.Sprintf(" (%d suite defects)", s.SuiteDefects)
	}
	return line
}

// ReportSummary outputs the summary table and line.
func (r *Reporter) ReportSummary(results []*Result) error {
	r.log.Info("suite finished", zap.String("summary", SummaryLine(results)))

	if r.format == "json" {
		encoder := json.NewEncoder(r.writer)
		return encoder.Encode(struct {
			Summary Summary `json:"summary"`
			Line    string  `json:"line"`
		}{Summarize(results), SummaryLine(results)})
	}

	table := tablewriter.NewWriter(r.writer)
	table.SetHeader([]string{"Scenario", "Group", "Outcome", "Kind", "Duration", "Attempts"})
	table.SetAutoWrapText(false)
	for _, res := range results {
		table.Append([]string{
			res.ScenarioID,
			res.Group,
			string(res.Outcome),
			string(res.Kind),
			res.Duration.Round(time.Millisecond).String(),
			fmt.Sprint(res.Attempts),
		})
	}
	fmt.Fprintln(r.writer)
	table.Render()

	line := SummaryLine(results)
	style := passStyle
	switch s := Summarize(results); {
	case !s.OK():
		style = failStyle
	case s.Inconclusive > 0:
		style = inconclusiveStyle
	}
	_, err := fmt.Fprintln(r.writer, style.Render(line))
	return err
}

// WriteResults writes results.json into dir and returns its path.
func WriteResults(dir string, results []*Result) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	doc := struct {
		GeneratedAt time.Time `json:"generated_at"`
		Summary     Summary   `json:"summary"`
		Results     []*Result `json:"results"`
	}{time.Now(), Summarize(results), results}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}
	path := filepath.Join(dir, "results.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write results: %w", err)
	}
	logging.Get(logging.CategoryReport).Info("results written", zap.String("path", path), zap.Int("results", len(results)))
	return path, nil
}
