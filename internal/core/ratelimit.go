package core

import "time"

// BudgetWindow captures the shared per-retailer request budget state.
type BudgetWindow struct {
	Slug         string    `json:"slug"`
	WindowStart  time.Time `json:"window_start"`
	RequestCount int       `json:"request_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CircuitState is the breaker position for one adapter.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// AdapterMetrics is a point-in-time snapshot of one adapter's health.
type AdapterMetrics struct {
	TotalRequests   int64        `json:"total_requests"`
	SuccessCount    int64        `json:"success_count"`
	FailureCount    int64        `json:"failure_count"`
	AvgResponseMS   float64      `json:"avg_response_ms"`
	RateLimitHits   int64        `json:"rate_limit_hits"`
	CircuitTrips    int64        `json:"circuit_trips"`
	LastRequestAt   *time.Time   `json:"last_request_at,omitempty"`
	State           CircuitState `json:"circuit_state"`
	SuccessRate     float64      `json:"success_rate"`
	WindowRemaining int          `json:"window_remaining"`
}
