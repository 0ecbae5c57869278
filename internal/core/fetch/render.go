package fetch

import (
	"context"
	"fmt"
	"io"
	"time"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

const renderUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"

// tlsRenderClient is the render-mode fetcher: a real Chrome TLS
// fingerprint, full browser header set, longer deadline. Heavier than the
// plain client but still a single GET.
type tlsRenderClient struct{}

// NewTLSRenderClient builds the default render client.
func NewTLSRenderClient() RenderClient {
	return &tlsRenderClient{}
}

// Fetch issues one render-mode GET. The client is rebuilt per call with a
// fresh cookie jar so a retry never reuses the session that just got
// challenged.
func (c *tlsRenderClient) Fetch(ctx context.Context, rawURL string, timeout time.Duration) (int, string, error) {
	secs := int(timeout / time.Second)
	if secs < 1 {
		secs = 1
	}

	jar := tls_client.NewCookieJar()
	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(secs),
		tls_client.WithClientProfile(profiles.Chrome_133),
		tls_client.WithNotFollowRedirects(),
		tls_client.WithCookieJar(jar),
	}
	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return 0, "", fmt.Errorf("build render client: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, "", fmt.Errorf("build render request: %w", err)
	}
	req.Header = http.Header{
		"Accept":                    {"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"},
		"Accept-Language":           {"en-US,en;q=0.9"},
		"Cache-Control":             {"no-cache"},
		"Pragma":                    {"no-cache"},
		"Sec-Fetch-Dest":            {"document"},
		"Sec-Fetch-Mode":            {"navigate"},
		"Sec-Fetch-Site":            {"none"},
		"Sec-Fetch-User":            {"?1"},
		"Upgrade-Insecure-Requests": {"1"},
		"User-Agent":                {renderUserAgent},
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, "", fmt.Errorf("read render body: %w", err)
	}

	return resp.StatusCode, string(body), nil
}
