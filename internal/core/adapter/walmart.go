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

// Walmart talks to the affiliate product API. Authentication is a pair of
// custom headers carrying the consumer id and key version.
type Walmart struct {
	Base
	filter *Filter
}

// NewWalmart builds the adapter. The consumer id is mandatory; the key
// version defaults to "1" when unset.
func NewWalmart(profile core.RetailerProfile, consumerID, keyVersion string, deps Deps) (*Walmart, error) {
	if strings.TrimSpace(consumerID) == "" {
		return nil, errors.New("walmart adapter requires a consumer id")
	}
	if strings.TrimSpace(keyVersion) == "" {
		keyVersion = "1"
	}

	return &Walmart{
		Base: Base{
			Profile: profile,
			Client:  deps.Client,
			Auth: HeaderAuth{Headers: map[string]string{
				"WM_CONSUMER.ID":     strings.TrimSpace(consumerID),
				"WM_SEC.KEY_VERSION": strings.TrimSpace(keyVersion),
			}},
			Guard: newGuard(profile, deps.Clock),
			Clock: deps.Clock,
		},
		filter: deps.Filter,
	}, nil
}

type walmartItem struct {
	ItemID     int64   `json:"itemId"`
	Name       string  `json:"name"`
	SalePrice  float64 `json:"salePrice"`
	Stock      string  `json:"stock"`
	ProductURL string  `json:"productTrackingUrl"`
}

var walmartItemIDRe = regexp.MustCompile(`/ip/.+/(\d+)`)

// CheckAvailability looks one item up by id, accepting either an explicit
// SKU or a product URL to pull the id from.
func (a *Walmart) CheckAvailability(ctx context.Context, req CheckRequest) (*Availability, error) {
	itemID := strings.TrimSpace(req.SKU)
	if itemID == "" {
		if match := walmartItemIDRe.FindStringSubmatch(req.URL); len(match) == 2 {
			itemID = match[1]
		}
	}
	if itemID == "" {
		return nil, errors.New("walmart check requires an item id or product url")
	}

	endpoint := fmt.Sprintf("%s/items/%s?format=json",
		strings.TrimRight(a.Profile.BaseURL, "/"), url.PathEscape(itemID))
	httpReq, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build walmart request: %w", err)
	}

	status, body, err := a.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	var item walmartItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("decode walmart item: %w", err)
	}

	return &Availability{
		Retailer:   a.Profile.Slug,
		ProductID:  req.ProductID,
		SKU:        itemID,
		URL:        firstNonEmpty(item.ProductURL, req.URL),
		InStock:    strings.EqualFold(item.Stock, "Available"),
		Price:      formatPrice(item.SalePrice),
		StatusCode: status,
		CheckedAt:  a.now(),
	}, nil
}

// SearchProducts runs a keyword search against the affiliate search
// endpoint.
func (a *Walmart) SearchProducts(ctx context.Context, query string) ([]Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}

	endpoint := fmt.Sprintf("%s/search?query=%s&format=json&numItems=20",
		strings.TrimRight(a.Profile.BaseURL, "/"), url.QueryEscape(query))
	httpReq, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build walmart request: %w", err)
	}

	_, body, err := a.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	var page struct {
		Items []walmartItem `json:"items"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode walmart search: %w", err)
	}

	products := make([]Product, 0, len(page.Items))
	for _, item := range page.Items {
		products = append(products, Product{
			SKU:     strconv.FormatInt(item.ItemID, 10),
			Name:    item.Name,
			URL:     item.ProductURL,
			Price:   formatPrice(item.SalePrice),
			InStock: strings.EqualFold(item.Stock, "Available"),
		})
	}

	return a.filter.Apply(products), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
