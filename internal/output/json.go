package output

import (
	"encoding/json"

	"github.com/stocklens/stocklens/internal/core"
)

// JSONFormatter renders views as JSON.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) marshal(view any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(view, "", "  ")
	} else {
		data, err = json.Marshal(view)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// FormatReport renders a probe report as JSON.
func (f *JSONFormatter) FormatReport(report *core.CheckReport) (string, error) {
	if report == nil {
		return "", nil
	}
	return f.marshal(report)
}

// FormatPoll renders a batch summary as JSON.
func (f *JSONFormatter) FormatPoll(view *PollView) (string, error) {
	if view == nil {
		return "", nil
	}
	return f.marshal(view)
}

// FormatCandidates renders a candidate listing as JSON.
func (f *JSONFormatter) FormatCandidates(view *CandidateView) (string, error) {
	if view == nil {
		return "", nil
	}
	return f.marshal(view)
}

// FormatRetailers renders the registry as JSON.
func (f *JSONFormatter) FormatRetailers(view *RetailerView) (string, error) {
	if view == nil {
		return "", nil
	}
	return f.marshal(view)
}

// FormatBudgets renders budget windows as JSON.
func (f *JSONFormatter) FormatBudgets(view *BudgetView) (string, error) {
	if view == nil {
		return "", nil
	}
	return f.marshal(view)
}

// FormatSignals renders availability signals as JSON.
func (f *JSONFormatter) FormatSignals(view *SignalView) (string, error) {
	if view == nil {
		return "", nil
	}
	return f.marshal(view)
}
