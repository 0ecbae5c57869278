package checker

import (
	"context"
	"errors"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stocklens/stocklens/internal/core"
	"github.com/stocklens/stocklens/internal/core/fetch"
)

func TestClassifyResponseStatusTable(t *testing.T) {
	cases := []struct {
		name    string
		res     fetch.Result
		status  core.CandidateStatus
		score   float64
		reason  string
	}{
		{
			name:   "not found is terminal",
			res:    fetch.Result{StatusCode: 404, Body: "nope"},
			status: core.StatusInvalid,
			score:  0.20,
			reason: "http_404",
		},
		{
			name:   "gone is terminal",
			res:    fetch.Result{StatusCode: 410, Body: "gone"},
			status: core.StatusInvalid,
			score:  0.20,
			reason: "http_410",
		},
		{
			name:   "server error is transient",
			res:    fetch.Result{StatusCode: 503, Body: "maintenance"},
			status: core.StatusUnknown,
			score:  0.45,
			reason: "http_503",
		},
		{
			name:   "redirect without target is transient",
			res:    fetch.Result{StatusCode: 301, Body: ""},
			status: core.StatusUnknown,
			score:  0.45,
			reason: "http_301",
		},
		{
			name:   "blocked forbidden keeps the status reason",
			res:    fetch.Result{StatusCode: 403, Body: "captcha", Blocked: true},
			status: core.StatusUnknown,
			score:  0.45,
			reason: "http_403",
		},
		{
			name:   "blocked with a clean status gets the marker reason",
			res:    fetch.Result{StatusCode: 200, Body: "checking your browser", Blocked: true},
			status: core.StatusUnknown,
			score:  0.45,
			reason: "blocked",
		},
	}

	c := testChecker(&stubStore{}, &stubFetcher{})
	candidate := core.Candidate{Score: 0.5}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := tc.res
			v := c.classifyResponse("target", candidate, &res)
			require.Equal(t, tc.status, v.status)
			require.InDelta(t, tc.score, v.score, 1e-9)
			require.Equal(t, tc.reason, v.reason)
			require.False(t, v.hasEvidence)
		})
	}
}

// Blocked responses never reach the evaluator, even when the body would
// evaluate as live.
func TestClassifyResponseBlockedSkipsEvaluation(t *testing.T) {
	c := testChecker(&stubStore{}, &stubFetcher{})
	res := &fetch.Result{
		URL:        "https://www.target.com/p/x/-/A-93954435",
		StatusCode: 200,
		Body:       targetLiveBody,
		Blocked:    true,
	}

	v := c.classifyResponse("target", core.Candidate{Score: 0.5}, res)
	require.Equal(t, core.StatusUnknown, v.status)
	require.Equal(t, "blocked", v.reason)
	require.False(t, v.hasEvidence)
}

func TestNetworkReasonUnwrapsURLErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		reason string
		class  networkClass
	}{
		{
			name:   "dns not found inside url.Error",
			err:    &url.Error{Op: "Get", URL: "https://shop.example/p/1", Err: &net.DNSError{Err: "no such host", Name: "shop.example", IsNotFound: true}},
			reason: "ENOTFOUND",
			class:  networkNotFound,
		},
		{
			name:   "deadline exceeded",
			err:    &url.Error{Op: "Get", URL: "https://shop.example/p/1", Err: context.DeadlineExceeded},
			reason: "ETIMEDOUT",
			class:  networkBlocked,
		},
		{
			name:   "os timeout",
			err:    &url.Error{Op: "Get", URL: "https://shop.example/p/1", Err: os.ErrDeadlineExceeded},
			reason: "ETIMEDOUT",
			class:  networkBlocked,
		},
		{
			name:   "connection reset through op error",
			err:    &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET},
			reason: "ECONNRESET",
			class:  networkBlocked,
		},
		{
			name:   "connection refused through op error",
			err:    &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
			reason: "ECONNREFUSED",
			class:  networkOther,
		},
		{
			name:   "anything else",
			err:    errors.New("remote error: tls: handshake failure"),
			reason: "network_error",
			class:  networkOther,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reason, class := networkReason(tc.err)
			require.Equal(t, tc.reason, reason)
			require.Equal(t, tc.class, class)
		})
	}
}

func TestClassifyFetchErrorPenalties(t *testing.T) {
	candidate := core.Candidate{Score: 0.5}

	v := classifyFetchError(candidate, &net.DNSError{Err: "no such host", Name: "x", IsNotFound: true})
	require.InDelta(t, 0.20, v.score, 1e-9)

	v = classifyFetchError(candidate, context.DeadlineExceeded)
	require.InDelta(t, 0.45, v.score, 1e-9)

	v = classifyFetchError(candidate, errors.New("mystery"))
	require.InDelta(t, 0.48, v.score, 1e-9)
	require.Equal(t, core.StatusUnknown, v.status)
}
