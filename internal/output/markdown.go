package output

import (
	"fmt"
	"strings"

	"github.com/stocklens/stocklens/internal/core"
)

// MarkdownFormatter renders views as Markdown.
type MarkdownFormatter struct{}

// FormatReport renders a probe report as a Markdown section.
func (f *MarkdownFormatter) FormatReport(report *core.CheckReport) (string, error) {
	if report == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Probe: %s\n\n", escapeMarkdownCell(report.URL)))
	if report.Retailer != "" {
		sb.WriteString(fmt.Sprintf("- Retailer: %s\n", escapeMarkdownCell(report.Retailer)))
	}
	sb.WriteString(fmt.Sprintf("- Status: %s\n", report.Status))
	if report.StatusCode > 0 {
		sb.WriteString(fmt.Sprintf("- HTTP: %d\n", report.StatusCode))
	}
	sb.WriteString(fmt.Sprintf("- Reason: %s\n", escapeMarkdownCell(report.Reason)))
	if report.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf("- Error: %s\n", escapeMarkdownCell(report.ErrorMessage)))
	}
	sb.WriteString(fmt.Sprintf("- Evidence: %s\n", evidenceSummary(report.Evidence)))
	sb.WriteString(fmt.Sprintf("- Rendered: %s\n", yesNo(report.Rendered)))
	if report.Blocked {
		sb.WriteString("- Blocked: yes\n")
	}
	sb.WriteString(fmt.Sprintf("- Latency: %dms\n", report.LatencyMS))

	return sb.String(), nil
}

// FormatPoll renders a batch summary as a Markdown table.
func (f *MarkdownFormatter) FormatPoll(view *PollView) (string, error) {
	if view == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("## Polling pass\n\n")
	sb.WriteString("| Retailer | Requests | Live | Valid | Invalid | Blocked | Errors |\n")
	sb.WriteString("|----------|----------|------|-------|---------|---------|--------|\n")

	for _, slug := range counterSlugs(view.Counters) {
		c := view.Counters[slug]
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %d | %d |\n",
			escapeMarkdownCell(slug), c.Requests, c.Live, c.Valid, c.Invalid, c.Blocked, c.Errors))
	}

	sb.WriteString(fmt.Sprintf("\n**Summary**: %d checked, %d live\n",
		view.Summary.Checked, view.Summary.LiveFound))

	return sb.String(), nil
}

// FormatCandidates renders a candidate listing as a Markdown table.
func (f *MarkdownFormatter) FormatCandidates(view *CandidateView) (string, error) {
	if view == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("## Candidates\n\n")
	sb.WriteString("| ID | Product | Retailer | URL | Status | Score | Reason | Checked |\n")
	sb.WriteString("|----|---------|----------|-----|--------|-------|--------|--------|\n")

	for _, c := range view.Candidates {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s | %s | %s |\n",
			c.ID,
			escapeMarkdownCell(c.ProductID),
			escapeMarkdownCell(view.retailerLabel(c.RetailerID)),
			escapeMarkdownCell(c.URL),
			c.Status,
			formatScore(c.Score),
			escapeMarkdownCell(c.Reason),
			formatTimePtr(c.LastCheckedAt),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Summary**: %s\n", candidateSummary(view.Candidates)))

	return sb.String(), nil
}

// FormatRetailers renders the registry as a Markdown table.
func (f *MarkdownFormatter) FormatRetailers(view *RetailerView) (string, error) {
	if view == nil {
		return "", nil
	}

	withHealth := len(view.Health) > 0

	var sb strings.Builder
	sb.WriteString("## Retailers\n\n")
	if withHealth {
		sb.WriteString("| Slug | Name | Type | Req/min | Timeout | Active | Circuit |\n")
		sb.WriteString("|------|------|------|---------|---------|--------|--------|\n")
	} else {
		sb.WriteString("| Slug | Name | Type | Req/min | Timeout | Active |\n")
		sb.WriteString("|------|------|------|---------|---------|--------|\n")
	}

	for _, r := range view.Retailers {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %s | %s |",
			escapeMarkdownCell(r.Slug),
			escapeMarkdownCell(r.DisplayName),
			r.Integration,
			r.RequestsPerMinute,
			r.Timeout(),
			yesNo(r.Active),
		))
		if withHealth {
			state := "-"
			if health, ok := view.Health[r.Slug]; ok && health.State != "" {
				state = string(health.State)
			}
			sb.WriteString(fmt.Sprintf(" %s |", state))
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// FormatBudgets renders budget windows as a Markdown table.
func (f *MarkdownFormatter) FormatBudgets(view *BudgetView) (string, error) {
	if view == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("## Budget windows\n\n")
	sb.WriteString("| Retailer | Used | Limit | Remaining | Window Start | Updated |\n")
	sb.WriteString("|----------|------|-------|-----------|--------------|--------|\n")

	for _, w := range view.Windows {
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %s | %s |\n",
			escapeMarkdownCell(w.Slug),
			w.RequestCount,
			w.Limit,
			w.Remaining(),
			formatTime(w.WindowStart),
			formatTime(w.UpdatedAt),
		))
	}

	return sb.String(), nil
}

// FormatSignals renders availability signals as a Markdown table.
func (f *MarkdownFormatter) FormatSignals(view *SignalView) (string, error) {
	if view == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("## Availability signals\n\n")
	sb.WriteString("| Created | Product | Retailer ID | Type | Confidence | URL |\n")
	sb.WriteString("|---------|---------|-------------|------|------------|-----|\n")

	for _, s := range view.Signals {
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %s | %s |\n",
			formatTime(s.CreatedAt),
			escapeMarkdownCell(s.ProductID),
			s.RetailerID,
			escapeMarkdownCell(s.SignalType),
			formatScore(s.Confidence),
			escapeMarkdownCell(s.Value),
		))
	}

	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
