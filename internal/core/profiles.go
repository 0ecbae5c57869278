package core

import (
	"strings"
	"time"
)

// RetailerProfile describes one retailer the engine polls.
type RetailerProfile struct {
	ID                int64           `json:"id"`
	Slug              string          `json:"slug"`
	DisplayName       string          `json:"display_name"`
	Integration       IntegrationType `json:"integration_type"`
	BaseURL           string          `json:"base_url"`
	RequestsPerMinute int             `json:"requests_per_minute"`
	RequestsPerHour   int             `json:"requests_per_hour"`
	TimeoutMS         int             `json:"timeout_ms"`
	MaxRetries        int             `json:"max_retries"`
	RetryBaseDelayMS  int             `json:"retry_base_delay_ms"`
	Active            bool            `json:"active"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Timeout returns the per-request timeout as a duration.
func (p RetailerProfile) Timeout() time.Duration {
	if p.TimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

// RetryBaseDelay returns the base backoff delay as a duration.
func (p RetailerProfile) RetryBaseDelay() time.Duration {
	if p.RetryBaseDelayMS <= 0 {
		return time.Second
	}
	return time.Duration(p.RetryBaseDelayMS) * time.Millisecond
}

// BuiltInRetailers provides the default registry bundled with StockLens.
var BuiltInRetailers = []RetailerProfile{
	{
		Slug:              "bestbuy",
		DisplayName:       "Best Buy",
		Integration:       IntegrationAPI,
		BaseURL:           "https://api.bestbuy.com/v1",
		RequestsPerMinute: 30,
		RequestsPerHour:   1000,
		TimeoutMS:         8000,
		MaxRetries:        3,
		RetryBaseDelayMS:  500,
		Active:            true,
	},
	{
		Slug:              "walmart",
		DisplayName:       "Walmart",
		Integration:       IntegrationAffiliate,
		BaseURL:           "https://developer.api.walmart.com/api-proxy/service/affil/product/v2",
		RequestsPerMinute: 20,
		RequestsPerHour:   500,
		TimeoutMS:         8000,
		MaxRetries:        3,
		RetryBaseDelayMS:  1000,
		Active:            true,
	},
	{
		Slug:              "tcgplayer",
		DisplayName:       "TCGplayer",
		Integration:       IntegrationAPI,
		BaseURL:           "https://api.tcgplayer.com",
		RequestsPerMinute: 60,
		RequestsPerHour:   3000,
		TimeoutMS:         8000,
		MaxRetries:        3,
		RetryBaseDelayMS:  500,
		Active:            true,
	},
	{
		Slug:              "target",
		DisplayName:       "Target",
		Integration:       IntegrationScraping,
		BaseURL:           "https://www.target.com",
		RequestsPerMinute: 6,
		RequestsPerHour:   120,
		TimeoutMS:         15000,
		MaxRetries:        2,
		RetryBaseDelayMS:  2000,
		Active:            true,
	},
	{
		Slug:              "gamestop",
		DisplayName:       "GameStop",
		Integration:       IntegrationScraping,
		BaseURL:           "https://www.gamestop.com",
		RequestsPerMinute: 6,
		RequestsPerHour:   120,
		TimeoutMS:         15000,
		MaxRetries:        2,
		RetryBaseDelayMS:  2000,
		Active:            true,
	},
	{
		Slug:              "pokemoncenter",
		DisplayName:       "Pokemon Center",
		Integration:       IntegrationScraping,
		BaseURL:           "https://www.pokemoncenter.com",
		RequestsPerMinute: 4,
		RequestsPerHour:   60,
		TimeoutMS:         15000,
		MaxRetries:        2,
		RetryBaseDelayMS:  3000,
		Active:            true,
	},
}

// FindBuiltInRetailer looks up a bundled retailer profile by slug.
func FindBuiltInRetailer(slug string) (*RetailerProfile, bool) {
	needle := strings.TrimSpace(strings.ToLower(slug))
	if needle == "" {
		return nil, false
	}

	for _, profile := range BuiltInRetailers {
		if strings.EqualFold(profile.Slug, needle) {
			copied := profile
			return &copied, true
		}
	}

	return nil, false
}
