// Package evaluate classifies fetched retailer pages. The evaluator is a
// pure function over (URL, body): no clock, no network, no stored state, so
// identical inputs always produce identical evidence.
package evaluate

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/stocklens/stocklens/internal/core"
)

// ctaPhrases mark purchasable product pages. Matching is case-insensitive
// against button-like elements only, so navigation chrome ("cart") does not
// count.
var ctaPhrases = []string{
	"add to cart",
	"add to bag",
	"add to basket",
	"buy now",
	"ship it",
	"pick it up",
	"preorder now",
	"pre-order now",
}

// oosPhrases veto a CTA match anywhere in the visible page text.
var oosPhrases = []string{
	"out of stock",
	"sold out",
	"currently unavailable",
	"temporarily out of stock",
	"coming soon",
	"not available",
	"no longer available",
}

var priceRe = regexp.MustCompile(`[$£€]\s?\d{1,3}(?:,\d{3})*(?:\.\d{2})?`)

// Evaluator extracts availability evidence from retailer pages.
type Evaluator struct {
	shapes    map[string]*regexp.Regexp
	jsonldCTA map[string]bool
}

// New returns an evaluator loaded with the built-in URL-shape table and the
// default set of retailers whose structured data substitutes for a CTA.
func New() *Evaluator {
	return &Evaluator{
		shapes:    defaultShapes(),
		jsonldCTA: map[string]bool{"target": true, "pokemoncenter": true},
	}
}

// Evaluate inspects a fetched page body and reports the evidence found.
// Hosts absent from the shape table fall back to structured data for the
// product-page signal.
func (e *Evaluator) Evaluate(rawURL string, body string) core.Evidence {
	var ev core.Evidence

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		// Unparseable bodies carry no evidence.
		return ev
	}

	ev.JSONLD = hasProductJSONLD(doc)

	host := hostOf(rawURL)
	if shape, ok := e.shapeFor(host); ok {
		ev.ProductPage = shape.MatchString(pathOf(rawURL))
	} else {
		ev.ProductPage = ev.JSONLD
	}

	text := strings.ToLower(doc.Text())

	outOfStock := false
	for _, phrase := range oosPhrases {
		if strings.Contains(text, phrase) {
			outOfStock = true
			break
		}
	}

	if !outOfStock {
		doc.Find("button, a, input[type='submit'], input[type='button']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			label := strings.ToLower(strings.TrimSpace(sel.Text()))
			if label == "" {
				if v, ok := sel.Attr("value"); ok {
					label = strings.ToLower(v)
				}
			}
			if label == "" {
				if v, ok := sel.Attr("aria-label"); ok {
					label = strings.ToLower(v)
				}
			}
			for _, phrase := range ctaPhrases {
				if strings.Contains(label, phrase) {
					ev.CTA = true
					return false
				}
			}
			return true
		})
	}

	ev.Price = priceRe.MatchString(doc.Text())

	return ev
}

// IsLive applies the per-retailer live rule to the evidence. The default
// rule requires product page, CTA, and price together; for retailers that
// render purchase controls client-side, structured data stands in for the
// CTA.
func (e *Evaluator) IsLive(slug string, ev core.Evidence) bool {
	if !ev.ProductPage || !ev.Price {
		return false
	}
	if ev.CTA {
		return true
	}
	return e.jsonldCTA[slug] && ev.JSONLD
}

// IsPlausible reports whether the page looks like a real product page even
// though it is not purchasable, which keeps the candidate worth re-checking.
func (e *Evaluator) IsPlausible(ev core.Evidence) bool {
	return ev.ProductPage || ev.JSONLD
}

func (e *Evaluator) shapeFor(host string) (*regexp.Regexp, bool) {
	shape, ok := e.shapes[host]
	return shape, ok
}

// IsProductURL reports whether a URL matches its host's product shape.
// Hosts absent from the table never match; this is a link filter, not a
// page classifier.
func (e *Evaluator) IsProductURL(rawURL string) bool {
	shape, ok := e.shapeFor(hostOf(rawURL))
	if !ok {
		return false
	}
	return shape.MatchString(pathOf(rawURL))
}

// ExtractPrice returns the first visible price in the body, or "".
func ExtractPrice(body string) string {
	return priceRe.FindString(body)
}
