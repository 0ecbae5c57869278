package adapter

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/stocklens/stocklens/internal/core"
)

// maxBodyBytes caps response reads. Retail product pages run large but a
// body past this size is not a product page.
const maxBodyBytes = 4 << 20

// Base carries the pieces every adapter composes: the retailer profile, an
// HTTP client, credential injection, the guard, and a clock. Adapters embed
// it and add endpoint selection plus response parsing.
type Base struct {
	Profile core.RetailerProfile
	Client  *http.Client
	Auth    Authenticator
	Guard   *Guard
	Clock   func() time.Time
}

func (b *Base) now() time.Time {
	if b != nil && b.Clock != nil {
		return b.Clock()
	}
	return time.Now().UTC()
}

// Slug returns the retailer identifier this adapter serves.
func (b *Base) Slug() string {
	return b.Profile.Slug
}

// HealthStatus reports the guard's metrics snapshot.
func (b *Base) HealthStatus() core.AdapterMetrics {
	if b == nil || b.Guard == nil {
		return core.AdapterMetrics{State: core.CircuitClosed}
	}
	return b.Guard.Snapshot()
}

func (b *Base) client() *http.Client {
	if b != nil && b.Client != nil {
		return b.Client
	}
	return http.DefaultClient
}

// Do runs one guarded, authenticated request and returns the response body.
// The guard sees the outcome of every attempt before this returns: an open
// breaker refuses up front, transport failures and push-back statuses count
// against the breaker, and ordinary responses (including 404, which is a
// valid negative answer) count for it.
func (b *Base) Do(ctx context.Context, req *http.Request) (int, []byte, error) {
	if err := b.Guard.Admit(); err != nil {
		return 0, nil, err
	}

	if b.Auth != nil {
		b.Auth.Apply(req)
	}
	req = req.WithContext(ctx)

	start := b.now()
	resp, err := b.client().Do(req)
	latency := b.now().Sub(start)
	if err != nil {
		b.Guard.Record(false, latency)
		return 0, nil, NetworkError(b.Profile.Slug, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if readErr != nil {
		b.Guard.Record(false, latency)
		return resp.StatusCode, nil, NetworkError(b.Profile.Slug, readErr)
	}

	b.Guard.Record(requestSucceeded(resp.StatusCode), latency)

	if statusErr := FromStatus(b.Profile.Slug, resp.StatusCode); statusErr != nil {
		return resp.StatusCode, body, statusErr
	}

	return resp.StatusCode, body, nil
}

// requestSucceeded decides what counts as a healthy round trip for the
// breaker. Not-found answers are real answers; blocks, rate limits, and
// server errors are not.
func requestSucceeded(statusCode int) bool {
	switch {
	case statusCode < 400:
		return true
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return true
	default:
		return false
	}
}
