package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stocklens/stocklens/internal/core"
)

// PollView is the outcome of one polling pass: the batch summary plus the
// per-retailer counters accumulated while it ran.
type PollView struct {
	Summary  core.BatchSummary                `json:"summary"`
	Counters map[string]core.RetailerCounters `json:"counters,omitempty"`
}

// CandidateView is a candidate listing with retailer slugs resolved for
// display. JSON output keeps the raw retailer ids from the rows.
type CandidateView struct {
	Candidates []core.Candidate `json:"candidates"`
	Retailers  map[int64]string `json:"-"`
}

func (v *CandidateView) retailerLabel(id int64) string {
	if v != nil {
		if slug, ok := v.Retailers[id]; ok && slug != "" {
			return slug
		}
	}
	return fmt.Sprintf("#%d", id)
}

// RetailerView is a registry listing, optionally annotated with live
// adapter health keyed by slug.
type RetailerView struct {
	Retailers []core.RetailerProfile         `json:"retailers"`
	Health    map[string]core.AdapterMetrics `json:"health,omitempty"`
}

// BudgetRow pairs one stored budget window with its effective limit.
type BudgetRow struct {
	core.BudgetWindow
	Limit int `json:"limit"`
}

// Remaining is the slots left in the window, never negative.
func (r BudgetRow) Remaining() int {
	remaining := r.Limit - r.RequestCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// BudgetView is the budget window listing.
type BudgetView struct {
	Windows []BudgetRow `json:"budget_windows"`
}

// SignalView is an availability signal listing.
type SignalView struct {
	Signals []core.Signal `json:"signals"`
}

func evidenceSummary(e core.Evidence) string {
	parts := make([]string, 0, 4)
	if e.ProductPage {
		parts = append(parts, "product page")
	}
	if e.CTA {
		parts = append(parts, "cart button")
	}
	if e.Price {
		parts = append(parts, "price")
	}
	if e.JSONLD {
		parts = append(parts, "offer data")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func formatScore(score float64) string {
	return fmt.Sprintf("%.2f", score)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func candidateSummary(candidates []core.Candidate) string {
	var live, valid int
	for _, c := range candidates {
		switch c.Status {
		case core.StatusLive:
			live++
		case core.StatusValid:
			valid++
		}
	}
	return fmt.Sprintf("%d live, %d valid of %d", live, valid, len(candidates))
}

// counterSlugs keeps counter rows in a stable order.
func counterSlugs(counters map[string]core.RetailerCounters) []string {
	slugs := make([]string, 0, len(counters))
	for slug := range counters {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}
