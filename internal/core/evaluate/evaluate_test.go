package evaluate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const bestbuyLivePage = `<!DOCTYPE html>
<html><head><title>Pokemon TCG: Prismatic Evolutions Booster Bundle</title>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Product","name":"Prismatic Evolutions Booster Bundle","sku":"6418599","offers":{"@type":"Offer","price":"26.99","priceCurrency":"USD","availability":"https://schema.org/InStock"}}
</script>
</head><body>
<h1>Pokemon TCG: Prismatic Evolutions Booster Bundle</h1>
<div class="priceView"><span>$26.99</span></div>
<button class="add-to-cart-button">Add to Cart</button>
</body></html>`

const bestbuySoldOutPage = `<!DOCTYPE html>
<html><head><title>Pokemon TCG: Prismatic Evolutions Booster Bundle</title></head><body>
<h1>Pokemon TCG: Prismatic Evolutions Booster Bundle</h1>
<div class="priceView"><span>$26.99</span></div>
<button class="add-to-cart-button" disabled>Sold Out</button>
</body></html>`

const targetNoButtonPage = `<!DOCTYPE html>
<html><head>
<script type="application/ld+json">
{"@graph":[{"@type":"Organization","name":"Target"},{"@type":["Product","IndividualProduct"],"name":"Booster Box","gtin13":"0820650859816","offers":[{"@type":"Offer","price":146.99}]}]}
</script>
</head><body>
<h1>Pokemon TCG Booster Box</h1>
<span data-test="product-price">$146.99</span>
<div id="root"></div>
</body></html>`

func TestEvaluateLiveProductPage(t *testing.T) {
	e := New()

	ev := e.Evaluate("https://www.bestbuy.com/site/pokemon-prismatic-evolutions/6418599.p", bestbuyLivePage)
	require.True(t, ev.ProductPage)
	require.True(t, ev.CTA)
	require.True(t, ev.Price)
	require.True(t, ev.JSONLD)
	require.True(t, e.IsLive("bestbuy", ev))
	require.Equal(t, "live:pg=1,cta=1,price=1,jsonld=1", ev.Encode("live"))
}

func TestEvaluateSoldOutVetoesCTA(t *testing.T) {
	e := New()

	ev := e.Evaluate("https://www.bestbuy.com/site/pokemon-prismatic-evolutions/6418599.p", bestbuySoldOutPage)
	require.True(t, ev.ProductPage)
	require.False(t, ev.CTA)
	require.True(t, ev.Price)
	require.False(t, e.IsLive("bestbuy", ev))
	require.True(t, e.IsPlausible(ev))
}

func TestEvaluateSearchURLIsNotProductPage(t *testing.T) {
	e := New()

	ev := e.Evaluate("https://www.bestbuy.com/site/searchpage.jsp?st=pokemon", bestbuyLivePage)
	require.False(t, ev.ProductPage)
	require.False(t, e.IsLive("bestbuy", ev))
}

func TestEvaluateJSONLDSubstitutesForCTA(t *testing.T) {
	e := New()

	ev := e.Evaluate("https://www.target.com/p/pokemon-booster-box/-/A-93954435", targetNoButtonPage)
	require.True(t, ev.ProductPage)
	require.False(t, ev.CTA)
	require.True(t, ev.Price)
	require.True(t, ev.JSONLD)

	// Structured data counts as the purchase signal for Target, but the
	// same evidence on a default-rule retailer stays short of live.
	require.True(t, e.IsLive("target", ev))
	require.False(t, e.IsLive("walmart", ev))
}

func TestEvaluateUnknownHostFallsBackToStructuredData(t *testing.T) {
	e := New()

	withJSONLD := e.Evaluate("https://shop.example.com/items/12345", targetNoButtonPage)
	require.True(t, withJSONLD.ProductPage)

	withoutJSONLD := e.Evaluate("https://shop.example.com/items/12345", bestbuySoldOutPage)
	require.False(t, withoutJSONLD.ProductPage)
}

func TestEvaluateDeterministic(t *testing.T) {
	e := New()

	url := "https://www.target.com/p/pokemon-booster-box/-/A-93954435"
	first := e.Evaluate(url, targetNoButtonPage)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, e.Evaluate(url, targetNoButtonPage))
	}
}

func TestEvaluateURLShapes(t *testing.T) {
	e := New()

	cases := []struct {
		url  string
		want bool
	}{
		{"https://www.bestbuy.com/site/pokemon-scarlet-violet/6418599.p", true},
		{"https://www.bestbuy.com/site/brands/pokemon", false},
		{"https://www.target.com/p/booster-bundle/-/A-93954435", true},
		{"https://www.target.com/c/trading-cards/-/N-5xt9v", false},
		{"https://www.walmart.com/ip/Pokemon-Booster-Box/5253812735", true},
		{"https://www.walmart.com/browse/toys/pokemon/4171_8372", false},
		{"https://www.gamestop.com/products/pokemon-elite-trainer-box/414759.html", true},
		{"https://www.pokemoncenter.com/product/290-85688/booster-display", true},
		{"https://www.tcgplayer.com/product/610236/pokemon-prismatic", true},
		{"https://www.amazon.com/dp/B0DJYYZ99Q", true},
		{"https://www.amazon.com/s?k=pokemon+cards", false},
	}

	for _, tc := range cases {
		ev := e.Evaluate(tc.url, bestbuyLivePage)
		require.Equalf(t, tc.want, ev.ProductPage, "url %s", tc.url)
	}
}

func TestEvidenceConfidence(t *testing.T) {
	e := New()

	ev := e.Evaluate("https://www.bestbuy.com/site/pokemon-prismatic-evolutions/6418599.p", bestbuyLivePage)
	require.InDelta(t, 1.0, ev.Confidence(), 0.0001)

	partial := e.Evaluate("https://www.bestbuy.com/site/pokemon-prismatic-evolutions/6418599.p", bestbuySoldOutPage)
	require.InDelta(t, 0.85, partial.Confidence(), 0.0001)
}
