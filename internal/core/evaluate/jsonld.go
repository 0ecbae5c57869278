package evaluate

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// hasProductJSONLD reports whether the document embeds schema.org structured
// data describing a purchasable product. Retailers publish this in several
// layouts (single node, node array, @graph), all of which are walked.
func hasProductJSONLD(doc *goquery.Document) bool {
	found := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var node any
		if err := json.Unmarshal([]byte(sel.Text()), &node); err != nil {
			return true
		}
		if containsProduct(node) {
			found = true
			return false
		}
		return true
	})
	return found
}

func containsProduct(node any) bool {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			if containsProduct(item) {
				return true
			}
		}
	case map[string]any:
		if isProductNode(v) {
			return true
		}
		if graph, ok := v["@graph"]; ok {
			return containsProduct(graph)
		}
	}
	return false
}

// isProductNode accepts a Product node only when it carries a purchasable
// identity: an offer with a price, or a sku/gtin.
func isProductNode(m map[string]any) bool {
	if !typeIsProduct(m["@type"]) {
		return false
	}
	if hasOfferPrice(m["offers"]) {
		return true
	}
	for _, key := range []string{"sku", "gtin", "gtin8", "gtin12", "gtin13", "gtin14"} {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

func typeIsProduct(t any) bool {
	switch v := t.(type) {
	case string:
		return strings.EqualFold(v, "Product")
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.EqualFold(s, "Product") {
				return true
			}
		}
	}
	return false
}

func hasOfferPrice(offers any) bool {
	switch v := offers.(type) {
	case map[string]any:
		if p, ok := v["price"]; ok && p != nil {
			if s, isString := p.(string); isString {
				return strings.TrimSpace(s) != ""
			}
			return true
		}
		if lp, ok := v["lowPrice"]; ok && lp != nil {
			return true
		}
		if nested, ok := v["offers"]; ok {
			return hasOfferPrice(nested)
		}
	case []any:
		for _, item := range v {
			if hasOfferPrice(item) {
				return true
			}
		}
	}
	return false
}
