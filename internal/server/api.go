package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/stocklens/stocklens/internal/core"
	apperrors "github.com/stocklens/stocklens/internal/errors"
	"github.com/stocklens/stocklens/internal/observability"
	"github.com/stocklens/stocklens/internal/output"
)

// CountersResponse wraps the per-retailer checker counters.
type CountersResponse struct {
	Counters map[string]core.RetailerCounters `json:"counters"`
}

// retailersHandler lists registry entries with each adapter's circuit
// snapshot overlaid. Retailers without a constructed adapter (scraping-only
// deployments, missing credentials) appear without health.
func (s *Server) retailersHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		HandleError(w, r, apperrors.NewInternalError("Candidate store not configured"))
		return
	}

	retailers, err := s.deps.Store.ListRetailers(r.Context())
	if err != nil {
		if logger := observability.ServerLogger; logger != nil {
			logger.Error("Failed to list retailers", zap.Error(err))
		}
		HandleError(w, r, apperrors.NewDatabaseError("Failed to list retailers"))
		return
	}

	view := &output.RetailerView{Retailers: retailers}
	if len(s.deps.Adapters) > 0 {
		view.Health = make(map[string]core.AdapterMetrics, len(s.deps.Adapters))
		for slug, ad := range s.deps.Adapters {
			view.Health[slug] = ad.HealthStatus()
		}
	}

	writeJSON(w, r, http.StatusOK, view)
}

// countersHandler reports the running checker's per-retailer counters.
func (s *Server) countersHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Checker == nil {
		HandleError(w, r, apperrors.NewInternalError("Candidate checker not configured"))
		return
	}

	writeJSON(w, r, http.StatusOK, CountersResponse{Counters: s.deps.Checker.Counters()})
}

// pollHandler runs one checker batch on demand and reports its summary.
// The batch honors the same budgets and politeness delays as the daemon
// loop, so a poll request can take a while on a full queue.
func (s *Server) pollHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Checker == nil {
		HandleError(w, r, apperrors.NewInternalError("Candidate checker not configured"))
		return
	}

	summary, err := s.deps.Checker.RunBatch(r.Context())
	if err != nil {
		if logger := observability.ServerLogger; logger != nil {
			logger.Error("Poll batch failed", zap.Error(err))
		}
		HandleError(w, r, apperrors.NewInternalError("Poll batch failed"))
		return
	}

	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Poll batch complete",
			zap.Int("checked", summary.Checked),
			zap.Int("live_found", summary.LiveFound))
	}

	writeJSON(w, r, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		if logger := observability.ServerLogger; logger != nil {
			logger.Warn("Failed to write response body",
				zap.String("path", r.URL.Path),
				zap.Error(err))
		}
	}
}
