package output

import (
	"fmt"
	"strings"

	"github.com/stocklens/stocklens/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders engine views for one output format.
type Formatter interface {
	FormatReport(report *core.CheckReport) (string, error)
	FormatPoll(view *PollView) (string, error)
	FormatCandidates(view *CandidateView) (string, error)
	FormatRetailers(view *RetailerView) (string, error)
	FormatBudgets(view *BudgetView) (string, error)
	FormatSignals(view *SignalView) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown):
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}
