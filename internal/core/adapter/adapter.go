// Package adapter implements per-retailer integrations behind one contract.
// Each adapter composes the shared Base (client, auth, guard) with its own
// endpoint selection and response parsing; callers never see retailer API
// differences, only Availability results and the uniform error taxonomy.
package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stocklens/stocklens/internal/core"
	"github.com/stocklens/stocklens/internal/core/evaluate"
)

// CheckRequest identifies the product to check with one retailer. API
// adapters key on SKU, scraping adapters on URL; both are carried so the
// caller does not need to know which kind it is talking to.
type CheckRequest struct {
	ProductID string
	SKU       string
	URL       string
}

// Availability is one retailer's answer about one product.
type Availability struct {
	Retailer   string    `json:"retailer"`
	ProductID  string    `json:"product_id,omitempty"`
	SKU        string    `json:"sku,omitempty"`
	URL        string    `json:"url,omitempty"`
	InStock    bool      `json:"in_stock"`
	Price      string    `json:"price,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Product is one search hit.
type Product struct {
	SKU     string `json:"sku,omitempty"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	Price   string `json:"price,omitempty"`
	InStock bool   `json:"in_stock"`
}

// RetailerAdapter is the contract every retailer integration satisfies.
type RetailerAdapter interface {
	Slug() string
	CheckAvailability(ctx context.Context, req CheckRequest) (*Availability, error)
	SearchProducts(ctx context.Context, query string) ([]Product, error)
	HealthStatus() core.AdapterMetrics
}

// Credentials holds the API secrets adapters may need. Which fields are
// required depends on the retailer; scraping adapters need none.
type Credentials struct {
	BestBuyAPIKey     string
	WalmartConsumerID string
	WalmartKeyVersion string
	TCGPlayerToken    string
}

// Deps are the shared collaborators injected into adapters.
type Deps struct {
	Client    *http.Client
	Evaluator *evaluate.Evaluator
	Filter    *Filter
	Clock     func() time.Time
}

// ForProfile constructs the adapter for a retailer profile. API-type
// retailers fail construction without their credential; unknown API
// retailers are an error, while any scraping retailer gets the generic
// storefront adapter.
func ForProfile(profile core.RetailerProfile, creds Credentials, deps Deps) (RetailerAdapter, error) {
	switch strings.ToLower(profile.Slug) {
	case "bestbuy":
		return NewBestBuy(profile, creds.BestBuyAPIKey, deps)
	case "walmart":
		return NewWalmart(profile, creds.WalmartConsumerID, creds.WalmartKeyVersion, deps)
	case "tcgplayer":
		return NewTCGPlayer(profile, creds.TCGPlayerToken, deps)
	default:
		if profile.Integration == core.IntegrationScraping {
			return NewStorefront(profile, deps), nil
		}
		return nil, fmt.Errorf("no adapter for %s retailer %q", profile.Integration, profile.Slug)
	}
}

func newGuard(profile core.RetailerProfile, clock func() time.Time) *Guard {
	return &Guard{
		Retailer: profile.Slug,
		Config:   GuardConfigFor(profile),
		Clock:    clock,
	}
}

func formatPrice(value float64) string {
	if value <= 0 {
		return ""
	}
	return strconv.FormatFloat(value, 'f', 2, 64)
}
