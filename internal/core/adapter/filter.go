package adapter

import "strings"

// Filter narrows search results to the product family being tracked.
// A name matches when it contains at least one include term and no exclude
// terms; a nil filter matches everything.
type Filter struct {
	Include []string
	Exclude []string
}

// DefaultTCGFilter targets Pokemon trading card products and drops the
// merchandise that shares their search keywords.
func DefaultTCGFilter() *Filter {
	return &Filter{
		Include: []string{
			"pokemon",
			"pokémon",
			"trading card",
			"tcg",
			"booster",
			"elite trainer",
		},
		Exclude: []string{
			"plush",
			"figure",
			"figurine",
			"funko",
			"t-shirt",
			"shirt",
			"hoodie",
			"mug",
			"backpack",
			"keychain",
			"sticker",
		},
	}
}

// Match reports whether a product name passes the filter.
func (f *Filter) Match(name string) bool {
	if f == nil {
		return true
	}

	lowered := strings.ToLower(name)

	for _, term := range f.Exclude {
		if term != "" && strings.Contains(lowered, term) {
			return false
		}
	}

	if len(f.Include) == 0 {
		return true
	}
	for _, term := range f.Include {
		if term != "" && strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}

// Apply filters search hits in place, keeping order.
func (f *Filter) Apply(products []Product) []Product {
	if f == nil {
		return products
	}

	kept := products[:0]
	for _, product := range products {
		if f.Match(product.Name) {
			kept = append(kept, product)
		}
	}
	return kept
}
