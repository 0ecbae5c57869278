package evaluate

import (
	"net/url"
	"regexp"
	"strings"
)

// defaultShapes maps a hostname (www-stripped, lowercase) to the path shape
// of that retailer's canonical product URLs. A match means the URL points at
// a single product rather than a listing, search, or category page.
func defaultShapes() map[string]*regexp.Regexp {
	return map[string]*regexp.Regexp{
		"bestbuy.com":       regexp.MustCompile(`^/site/.+/\d+\.p$`),
		"target.com":        regexp.MustCompile(`^/p/.+/-/A-\d+`),
		"walmart.com":       regexp.MustCompile(`^/ip/.+/\d+$`),
		"gamestop.com":      regexp.MustCompile(`^/products/.+/\d+\.html`),
		"pokemoncenter.com": regexp.MustCompile(`^/product/`),
		"tcgplayer.com":     regexp.MustCompile(`^/product/\d+`),
		"amazon.com":        regexp.MustCompile(`/dp/[A-Z0-9]{10}(?:[/?]|$)`),
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}
