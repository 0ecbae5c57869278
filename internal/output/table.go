package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/stocklens/stocklens/internal/core"
)

// TableFormatter renders views as ASCII tables.
type TableFormatter struct{}

// FormatReport renders a probe report as a field/value table.
func (f *TableFormatter) FormatReport(report *core.CheckReport) (string, error) {
	if report == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"URL", report.URL})
	if report.Retailer != "" {
		t.AppendRow(table.Row{"Retailer", report.Retailer})
	}
	t.AppendRow(table.Row{"Status", string(report.Status)})
	if report.StatusCode > 0 {
		t.AppendRow(table.Row{"HTTP", report.StatusCode})
	}
	t.AppendRow(table.Row{"Reason", report.Reason})
	if report.ErrorMessage != "" {
		t.AppendRow(table.Row{"Error", report.ErrorMessage})
	}
	t.AppendRow(table.Row{"Evidence", evidenceSummary(report.Evidence)})
	t.AppendRow(table.Row{"Rendered", yesNo(report.Rendered)})
	if report.Blocked {
		t.AppendRow(table.Row{"Blocked", "yes"})
	}
	t.AppendRow(table.Row{"Latency", fmt.Sprintf("%dms", report.LatencyMS)})

	return t.Render(), nil
}

// FormatPoll renders a batch summary with its per-retailer counters.
func (f *TableFormatter) FormatPoll(view *PollView) (string, error) {
	if view == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Retailer", "Requests", "Live", "Valid", "Invalid", "Blocked", "Errors"})

	for _, slug := range counterSlugs(view.Counters) {
		c := view.Counters[slug]
		t.AppendRow(table.Row{slug, c.Requests, c.Live, c.Valid, c.Invalid, c.Blocked, c.Errors})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d checked", view.Summary.Checked),
		"",
		fmt.Sprintf("%d live", view.Summary.LiveFound),
		"", "", "", "",
	})

	return t.Render(), nil
}

// FormatCandidates renders a candidate listing.
func (f *TableFormatter) FormatCandidates(view *CandidateView) (string, error) {
	if view == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Product", "Retailer", "URL", "Status", "Score", "Reason", "Checked"})

	for _, c := range view.Candidates {
		t.AppendRow(table.Row{
			c.ID,
			c.ProductID,
			view.retailerLabel(c.RetailerID),
			c.URL,
			string(c.Status),
			formatScore(c.Score),
			c.Reason,
			formatTimePtr(c.LastCheckedAt),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", candidateSummary(view.Candidates), "", "", ""})

	return t.Render(), nil
}

// FormatRetailers renders the registry, with circuit state when health
// snapshots are present.
func (f *TableFormatter) FormatRetailers(view *RetailerView) (string, error) {
	if view == nil {
		return "", nil
	}

	withHealth := len(view.Health) > 0

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	if withHealth {
		t.AppendHeader(table.Row{"Slug", "Name", "Type", "Req/min", "Timeout", "Active", "Circuit"})
	} else {
		t.AppendHeader(table.Row{"Slug", "Name", "Type", "Req/min", "Timeout", "Active"})
	}

	for _, r := range view.Retailers {
		row := table.Row{
			r.Slug,
			r.DisplayName,
			string(r.Integration),
			r.RequestsPerMinute,
			r.Timeout().String(),
			yesNo(r.Active),
		}
		if withHealth {
			state := "-"
			if health, ok := view.Health[r.Slug]; ok && health.State != "" {
				state = string(health.State)
			}
			row = append(row, state)
		}
		t.AppendRow(row)
	}

	return t.Render(), nil
}

// FormatBudgets renders stored budget windows with their effective limits.
func (f *TableFormatter) FormatBudgets(view *BudgetView) (string, error) {
	if view == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Retailer", "Used", "Limit", "Remaining", "Window Start", "Updated"})

	for _, w := range view.Windows {
		t.AppendRow(table.Row{
			w.Slug,
			w.RequestCount,
			w.Limit,
			w.Remaining(),
			formatTime(w.WindowStart),
			formatTime(w.UpdatedAt),
		})
	}

	return t.Render(), nil
}

// FormatSignals renders an availability signal listing, newest first as
// listed.
func (f *TableFormatter) FormatSignals(view *SignalView) (string, error) {
	if view == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Created", "Product", "Retailer ID", "Type", "Confidence", "URL"})

	for _, s := range view.Signals {
		t.AppendRow(table.Row{
			formatTime(s.CreatedAt),
			s.ProductID,
			s.RetailerID,
			s.SignalType,
			formatScore(s.Confidence),
			s.Value,
		})
	}

	return t.Render(), nil
}
