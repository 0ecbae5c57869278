package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/stocklens/stocklens/internal/core"
)

// TCGPlayer talks to the TCGplayer catalog and pricing API. Authentication
// is a bearer token.
type TCGPlayer struct {
	Base
	filter *Filter
}

// NewTCGPlayer builds the adapter. The bearer token is mandatory.
func NewTCGPlayer(profile core.RetailerProfile, token string, deps Deps) (*TCGPlayer, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("tcgplayer adapter requires a bearer token")
	}

	return &TCGPlayer{
		Base: Base{
			Profile: profile,
			Client:  deps.Client,
			Auth:    BearerAuth{Token: strings.TrimSpace(token)},
			Guard:   newGuard(profile, deps.Clock),
			Clock:   deps.Clock,
		},
		filter: deps.Filter,
	}, nil
}

var tcgplayerProductIDRe = regexp.MustCompile(`/product/(\d+)`)

// CheckAvailability reads the pricing endpoint for one product id. A
// product with any listed market price is purchasable on the marketplace.
func (a *TCGPlayer) CheckAvailability(ctx context.Context, req CheckRequest) (*Availability, error) {
	productID := strings.TrimSpace(req.SKU)
	if productID == "" {
		if match := tcgplayerProductIDRe.FindStringSubmatch(req.URL); len(match) == 2 {
			productID = match[1]
		}
	}
	if productID == "" {
		return nil, errors.New("tcgplayer check requires a product id or product url")
	}

	endpoint := fmt.Sprintf("%s/pricing/product/%s",
		strings.TrimRight(a.Profile.BaseURL, "/"), url.PathEscape(productID))
	httpReq, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build tcgplayer request: %w", err)
	}

	status, body, err := a.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	var page struct {
		Results []struct {
			ProductID   int64    `json:"productId"`
			SubTypeName string   `json:"subTypeName"`
			MarketPrice *float64 `json:"marketPrice"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode tcgplayer pricing: %w", err)
	}

	var (
		inStock bool
		price   string
	)
	for _, result := range page.Results {
		if result.MarketPrice != nil && *result.MarketPrice > 0 {
			inStock = true
			if price == "" {
				price = formatPrice(*result.MarketPrice)
			}
		}
	}

	return &Availability{
		Retailer:   a.Profile.Slug,
		ProductID:  req.ProductID,
		SKU:        productID,
		URL:        req.URL,
		InStock:    inStock,
		Price:      price,
		StatusCode: status,
		CheckedAt:  a.now(),
	}, nil
}

// SearchProducts queries the catalog by product name.
func (a *TCGPlayer) SearchProducts(ctx context.Context, query string) ([]Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}

	endpoint := fmt.Sprintf("%s/catalog/products?productName=%s&limit=20",
		strings.TrimRight(a.Profile.BaseURL, "/"), url.QueryEscape(query))
	httpReq, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build tcgplayer request: %w", err)
	}

	_, body, err := a.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	var page struct {
		Results []struct {
			ProductID int64  `json:"productId"`
			Name      string `json:"name"`
			URL       string `json:"url"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode tcgplayer search: %w", err)
	}

	products := make([]Product, 0, len(page.Results))
	for _, hit := range page.Results {
		products = append(products, Product{
			SKU:  strconv.FormatInt(hit.ProductID, 10),
			Name: hit.Name,
			URL:  hit.URL,
		})
	}

	return a.filter.Apply(products), nil
}
