package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/stocklens/stocklens/internal/core"
	"github.com/stocklens/stocklens/internal/core/evaluate"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Storefront scrapes retailers without an API. One implementation serves
// every scraping profile; the evaluator's URL-shape table and live rule
// carry the per-retailer differences.
type Storefront struct {
	Base
	Evaluator *evaluate.Evaluator
	filter    *Filter
}

// NewStorefront builds the scraping adapter. No credentials are involved,
// so construction cannot fail.
func NewStorefront(profile core.RetailerProfile, deps Deps) *Storefront {
	evaluator := deps.Evaluator
	if evaluator == nil {
		evaluator = evaluate.New()
	}

	return &Storefront{
		Base: Base{
			Profile: profile,
			Client:  deps.Client,
			Guard:   newGuard(profile, deps.Clock),
			Clock:   deps.Clock,
		},
		Evaluator: evaluator,
		filter:    deps.Filter,
	}
}

func browserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

// CheckAvailability fetches the product page and classifies it with the
// evaluator.
func (a *Storefront) CheckAvailability(ctx context.Context, req CheckRequest) (*Availability, error) {
	pageURL := strings.TrimSpace(req.URL)
	if pageURL == "" {
		return nil, fmt.Errorf("%s check requires a product url", a.Profile.Slug)
	}

	httpReq, err := http.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", a.Profile.Slug, err)
	}
	browserHeaders(httpReq)

	status, body, err := a.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	page := string(body)
	evidence := a.Evaluator.Evaluate(pageURL, page)

	return &Availability{
		Retailer:   a.Profile.Slug,
		ProductID:  req.ProductID,
		SKU:        req.SKU,
		URL:        pageURL,
		InStock:    a.Evaluator.IsLive(a.Profile.Slug, evidence),
		Price:      evaluate.ExtractPrice(page),
		StatusCode: status,
		CheckedAt:  a.now(),
	}, nil
}

// searchPath maps a retailer to its storefront search URL format.
func searchPath(slug, query string) string {
	escaped := url.QueryEscape(query)
	switch slug {
	case "target":
		return "/s?searchTerm=" + escaped
	case "gamestop":
		return "/search/?q=" + escaped
	default:
		return "/search?q=" + escaped
	}
}

// SearchProducts scrapes the storefront search page and keeps the links
// that look like product pages.
func (a *Storefront) SearchProducts(ctx context.Context, query string) ([]Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}

	base, err := url.Parse(a.Profile.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("%s has no usable base url", a.Profile.Slug)
	}

	endpoint := strings.TrimRight(a.Profile.BaseURL, "/") + searchPath(a.Profile.Slug, query)
	httpReq, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", a.Profile.Slug, err)
	}
	browserHeaders(httpReq)

	_, body, err := a.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s search page: %w", a.Profile.Slug, err)
	}

	seen := make(map[string]bool)
	var products []Product
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		absolute := base.ResolveReference(ref)
		absolute.Fragment = ""
		link := absolute.String()

		if seen[link] || !a.Evaluator.IsProductURL(link) {
			return
		}

		name := strings.Join(strings.Fields(sel.Text()), " ")
		if name == "" || !a.filter.Match(name) {
			return
		}

		seen[link] = true
		products = append(products, Product{Name: name, URL: link})
	})

	return products, nil
}
