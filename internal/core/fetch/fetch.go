// Package fetch retrieves candidate product pages. It owns the fetch
// pipeline (plain GET, block detection, single render-mode re-fetch) and
// hands classified responses to callers; HTML interpretation lives in
// the evaluate package.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"

	"github.com/stocklens/stocklens/internal/core"
)

// Fetch bounds. The render floor guarantees the heavier re-fetch gets at
// least as much time as the plain attempt it replaces.
const (
	DefaultTimeout       = 10 * time.Second
	DefaultRenderTimeout = 30 * time.Second

	maxBodyBytes = 4 << 20
)

const plainUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Policy is the resolved fetch policy for one candidate: render behavior,
// session handling, and the two timeout classes.
type Policy struct {
	Behavior      core.RenderBehavior
	SessionReuse  bool
	Timeout       time.Duration
	RenderTimeout time.Duration
}

// DefaultPolicy mirrors the documented fallbacks: render on block, session
// reuse enabled, default timeouts.
func DefaultPolicy() Policy {
	return Policy{
		Behavior:      core.RenderOnBlock,
		SessionReuse:  true,
		Timeout:       DefaultTimeout,
		RenderTimeout: DefaultRenderTimeout,
	}
}

func (p Policy) withDefaults() Policy {
	if p.Behavior == "" {
		p.Behavior = core.RenderOnBlock
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.RenderTimeout <= 0 {
		p.RenderTimeout = DefaultRenderTimeout
	}
	if p.RenderTimeout < p.Timeout {
		p.RenderTimeout = p.Timeout
	}
	return p
}

// Result is the terminal state of one pipeline run.
type Result struct {
	URL        string
	StatusCode int
	Body       string
	Rendered   bool // final response came from the render client
	Blocked    bool // final response still looks like an anti-bot wall
	Retried    bool // a block triggered the single render re-fetch
}

// RenderClient is the heavier fetch strategy used when a plain GET runs
// into anti-bot defenses. Implementations impersonate a real browser at
// the TLS layer; nothing executes the page.
type RenderClient interface {
	Fetch(ctx context.Context, rawURL string, timeout time.Duration) (status int, body string, err error)
}

// Fetcher walks one candidate URL through the pipeline
// (Fetched -> blocked? -> Refetch -> Classified). With session reuse on,
// the plain client and its cookie jar persist per host across candidates.
type Fetcher struct {
	render RenderClient

	mu       sync.Mutex
	sessions map[string]*resty.Client
}

// New builds a Fetcher. A nil render client gets the TLS-impersonation
// implementation.
func New(render RenderClient) *Fetcher {
	if render == nil {
		render = NewTLSRenderClient()
	}
	return &Fetcher{
		render:   render,
		sessions: make(map[string]*resty.Client),
	}
}

type pipelineState int

const (
	stateFetch pipelineState = iota
	stateBlockCheck
	stateRefetch
	stateClassified
)

// Do runs the pipeline for one URL. A non-nil error means no usable
// response exists and the caller maps it onto the network taxonomy;
// blocked responses come back as a Result so their status code stays
// visible in the reason string.
func (f *Fetcher) Do(ctx context.Context, rawURL string, policy Policy) (*Result, error) {
	policy = policy.withDefaults()

	target, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse candidate url: %w", err)
	}
	if (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, fmt.Errorf("unsupported candidate url %q", rawURL)
	}

	var res *Result
	state := stateFetch
	for {
		switch state {
		case stateFetch:
			if policy.Behavior == core.RenderAlways {
				res, err = f.renderFetch(ctx, target.String(), policy.RenderTimeout)
			} else {
				res, err = f.plainFetch(ctx, target, policy)
			}
			if err != nil {
				return nil, err
			}
			state = stateBlockCheck

		case stateBlockCheck:
			res.Blocked = Blocked(res.StatusCode, res.Body)
			if res.Blocked && !res.Rendered && policy.Behavior == core.RenderOnBlock {
				state = stateRefetch
			} else {
				state = stateClassified
			}

		case stateRefetch:
			retry, rerr := f.renderFetch(ctx, target.String(), policy.RenderTimeout)
			if rerr != nil {
				// render failed; the blocked plain response stays the outcome
				res.Retried = true
				state = stateClassified
				break
			}
			retry.Blocked = Blocked(retry.StatusCode, retry.Body)
			retry.Retried = true
			res = retry
			state = stateClassified

		case stateClassified:
			return res, nil
		}
	}
}

func (f *Fetcher) plainFetch(ctx context.Context, target *url.URL, policy Policy) (*Result, error) {
	client := f.session(target, policy.SessionReuse)

	ctx, cancel := context.WithTimeout(ctx, policy.Timeout)
	defer cancel()

	resp, err := client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(target.String())
	if err != nil {
		return nil, err
	}
	raw := resp.RawBody()
	defer raw.Close()

	body, err := io.ReadAll(io.LimitReader(raw, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Result{
		URL:        target.String(),
		StatusCode: resp.StatusCode(),
		Body:       string(body),
	}, nil
}

func (f *Fetcher) renderFetch(ctx context.Context, rawURL string, timeout time.Duration) (*Result, error) {
	status, body, err := f.render.Fetch(ctx, rawURL, timeout)
	if err != nil {
		return nil, err
	}
	return &Result{
		URL:        rawURL,
		StatusCode: status,
		Body:       body,
		Rendered:   true,
	}, nil
}

// session hands out the plain client for a host. With reuse enabled the
// client and its cookie jar survive across candidates of the same
// retailer; without it every fetch starts a clean session.
func (f *Fetcher) session(target *url.URL, reuse bool) *resty.Client {
	if !reuse {
		return newPlainClient(target)
	}

	key := strings.ToLower(target.Host)
	f.mu.Lock()
	defer f.mu.Unlock()
	if client, ok := f.sessions[key]; ok {
		return client
	}
	client := newPlainClient(target)
	f.sessions[key] = client
	return client
}

func newPlainClient(target *url.URL) *resty.Client {
	client := resty.New()
	jar, _ := cookiejar.New(nil)
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("User-Agent", plainUserAgent)
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	client.SetHeader("Accept-Language", "en-US,en;q=0.9")
	client.SetRedirectPolicy(
		resty.FlexibleRedirectPolicy(5),
		resty.DomainCheckRedirectPolicy(redirectAllowlist(target.Hostname())...),
	)
	return client
}

// redirectAllowlist keeps redirects on the retailer's own hostname, with
// and without the www prefix. Anything else (login walls, interstitial
// hosts) surfaces as a fetch error.
func redirectAllowlist(hostname string) []string {
	hostname = strings.ToLower(hostname)
	bare := strings.TrimPrefix(hostname, "www.")
	if bare == hostname {
		return []string{hostname, "www." + hostname}
	}
	return []string{hostname, bare}
}
