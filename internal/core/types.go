package core

import (
	"fmt"
	"strings"
	"time"
)

// IntegrationType identifies how a retailer is reached.
type IntegrationType string

const (
	IntegrationAPI       IntegrationType = "api"
	IntegrationAffiliate IntegrationType = "affiliate"
	IntegrationScraping  IntegrationType = "scraping"
)

// IsAPI reports whether the integration requires an API credential.
func (t IntegrationType) IsAPI() bool {
	return t == IntegrationAPI || t == IntegrationAffiliate
}

// CandidateStatus is the lifecycle state of a URL candidate.
type CandidateStatus string

const (
	StatusUnknown CandidateStatus = "unknown"
	StatusValid   CandidateStatus = "valid"
	StatusLive    CandidateStatus = "live"
	StatusInvalid CandidateStatus = "invalid"
)

// ParseCandidateStatus normalizes a user-supplied status filter.
func ParseCandidateStatus(s string) (CandidateStatus, error) {
	switch CandidateStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusUnknown:
		return StatusUnknown, nil
	case StatusValid:
		return StatusValid, nil
	case StatusLive:
		return StatusLive, nil
	case StatusInvalid:
		return StatusInvalid, nil
	default:
		return "", fmt.Errorf("unknown candidate status %q (want unknown|valid|live|invalid)", s)
	}
}

// RenderBehavior controls when a candidate is re-fetched in render mode.
type RenderBehavior string

const (
	RenderAlways  RenderBehavior = "always"
	RenderOnBlock RenderBehavior = "on_block"
	RenderNever   RenderBehavior = "never"
)

// ParseRenderBehavior maps a config string onto a RenderBehavior.
// Unrecognized values fall back to the default on_block.
func ParseRenderBehavior(s string) RenderBehavior {
	switch RenderBehavior(strings.ToLower(strings.TrimSpace(s))) {
	case RenderAlways:
		return RenderAlways
	case RenderNever:
		return RenderNever
	default:
		return RenderOnBlock
	}
}

// Evidence is the set of page signals the evaluator extracts from a body.
type Evidence struct {
	ProductPage bool `json:"product_page"`
	CTA         bool `json:"cta"`
	Price       bool `json:"price"`
	JSONLD      bool `json:"jsonld"`
}

// Encode renders evidence in the canonical reason form,
// e.g. "live:pg=1,cta=1,price=1,jsonld=0".
func (e Evidence) Encode(prefix string) string {
	return fmt.Sprintf("%s:pg=%s,cta=%s,price=%s,jsonld=%s",
		prefix, bit(e.ProductPage), bit(e.CTA), bit(e.Price), bit(e.JSONLD))
}

// Confidence derives a signal confidence from the evidence present.
func (e Evidence) Confidence() float64 {
	c := 0.75
	if e.ProductPage {
		c += 0.05
	}
	if e.CTA {
		c += 0.05
	}
	if e.Price {
		c += 0.05
	}
	if e.JSONLD {
		c += 0.10
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}

func bit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// ClampScore bounds a candidate score to [0, 1].
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Candidate is a persisted product URL awaiting or carrying a verdict.
type Candidate struct {
	ID            int64           `json:"id"`
	ProductID     string          `json:"product_id"`
	RetailerID    int64           `json:"retailer_id"`
	URL           string          `json:"url"`
	Status        CandidateStatus `json:"status"`
	Score         float64         `json:"score"`
	Reason        string          `json:"reason,omitempty"`
	LastCheckedAt *time.Time      `json:"last_checked_at,omitempty"`
	FirstLiveAt   *time.Time      `json:"first_live_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Signal is an availability event handed to the downstream pipeline.
type Signal struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	RetailerID int64     `json:"retailer_id"`
	SignalType string    `json:"signal_type"`
	Value      string    `json:"signal_value"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

// SignalTypeURLLive marks a candidate's transition into the live state.
const SignalTypeURLLive = "url_live"

// BatchSummary reports the outcome of one checker pass.
type BatchSummary struct {
	Checked   int `json:"checked"`
	LiveFound int `json:"live_found"`
}

// RetailerCounters accumulates per-retailer outcomes across a batch.
type RetailerCounters struct {
	Requests int `json:"requests"`
	Blocked  int `json:"blocked"`
	Valid    int `json:"valid"`
	Live     int `json:"live"`
	Invalid  int `json:"invalid"`
	Errors   int `json:"errors"`
}

// CheckReport is the result of an ad-hoc single-URL probe.
type CheckReport struct {
	URL          string          `json:"url"`
	Retailer     string          `json:"retailer,omitempty"`
	StatusCode   int             `json:"status_code,omitempty"`
	Rendered     bool            `json:"rendered"`
	Blocked      bool            `json:"blocked"`
	Evidence     Evidence        `json:"evidence"`
	Status       CandidateStatus `json:"status"`
	Reason       string          `json:"reason"`
	LatencyMS    int64           `json:"latency_ms"`
	FetchedAt    time.Time       `json:"fetched_at"`
	ErrorMessage string          `json:"error,omitempty"`
}
