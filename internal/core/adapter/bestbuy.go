package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/stocklens/stocklens/internal/core"
)

// BestBuy talks to the official Best Buy products API. Authentication is a
// query-parameter key on every request.
type BestBuy struct {
	Base
	filter *Filter
}

// NewBestBuy builds the adapter. The API key is mandatory; a keyless
// adapter would burn requests on guaranteed 403s.
func NewBestBuy(profile core.RetailerProfile, apiKey string, deps Deps) (*BestBuy, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("bestbuy adapter requires an API key")
	}

	return &BestBuy{
		Base: Base{
			Profile: profile,
			Client:  deps.Client,
			Auth:    QueryKeyAuth{Param: "apiKey", Key: strings.TrimSpace(apiKey)},
			Guard:   newGuard(profile, deps.Clock),
			Clock:   deps.Clock,
		},
		filter: deps.Filter,
	}, nil
}

type bestbuyProduct struct {
	SKU                int     `json:"sku"`
	Name               string  `json:"name"`
	SalePrice          float64 `json:"salePrice"`
	OnlineAvailability bool    `json:"onlineAvailability"`
	URL                string  `json:"url"`
}

// CheckAvailability looks one SKU up by its product endpoint.
func (a *BestBuy) CheckAvailability(ctx context.Context, req CheckRequest) (*Availability, error) {
	sku := strings.TrimSpace(req.SKU)
	if sku == "" {
		return nil, errors.New("bestbuy check requires a sku")
	}

	endpoint := fmt.Sprintf("%s/products/%s.json?show=sku,name,salePrice,onlineAvailability,url",
		strings.TrimRight(a.Profile.BaseURL, "/"), url.PathEscape(sku))
	httpReq, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build bestbuy request: %w", err)
	}

	status, body, err := a.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	var product bestbuyProduct
	if err := json.Unmarshal(body, &product); err != nil {
		return nil, fmt.Errorf("decode bestbuy product: %w", err)
	}

	return &Availability{
		Retailer:   a.Profile.Slug,
		ProductID:  req.ProductID,
		SKU:        sku,
		URL:        product.URL,
		InStock:    product.OnlineAvailability,
		Price:      formatPrice(product.SalePrice),
		StatusCode: status,
		CheckedAt:  a.now(),
	}, nil
}

// SearchProducts runs a keyword search and filters the hits down to the
// tracked product family.
func (a *BestBuy) SearchProducts(ctx context.Context, query string) ([]Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}

	endpoint := fmt.Sprintf("%s/products(search=%s)?format=json&show=sku,name,salePrice,onlineAvailability,url&pageSize=20",
		strings.TrimRight(a.Profile.BaseURL, "/"), url.QueryEscape(query))
	httpReq, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build bestbuy request: %w", err)
	}

	_, body, err := a.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	var page struct {
		Products []bestbuyProduct `json:"products"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode bestbuy search: %w", err)
	}

	products := make([]Product, 0, len(page.Products))
	for _, hit := range page.Products {
		products = append(products, Product{
			SKU:     strconv.Itoa(hit.SKU),
			Name:    hit.Name,
			URL:     hit.URL,
			Price:   formatPrice(hit.SalePrice),
			InStock: hit.OnlineAvailability,
		})
	}

	return a.filter.Apply(products), nil
}
