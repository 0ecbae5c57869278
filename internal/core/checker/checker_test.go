package checker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stocklens/stocklens/internal/core"
	"github.com/stocklens/stocklens/internal/core/configres"
	"github.com/stocklens/stocklens/internal/core/fetch"
)

type updateCall struct {
	id          int64
	status      core.CandidateStatus
	score       float64
	reason      string
	checkedAt   time.Time
	firstLiveAt *time.Time
}

type stubStore struct {
	pending   []core.Candidate
	listErr   error
	updateErr error
	signalErr error
	updates   []updateCall
	signals   []core.Signal
}

func (s *stubStore) ListPendingCandidates(_ context.Context, limit int) ([]core.Candidate, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if len(s.pending) > limit {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *stubStore) UpdateCandidateResult(_ context.Context, id int64, status core.CandidateStatus, score float64, reason string, checkedAt time.Time, firstLiveAt *time.Time) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, updateCall{
		id: id, status: status, score: score, reason: reason,
		checkedAt: checkedAt, firstLiveAt: firstLiveAt,
	})
	return nil
}

func (s *stubStore) PublishSignal(_ context.Context, signal core.Signal) error {
	if s.signalErr != nil {
		return s.signalErr
	}
	s.signals = append(s.signals, signal)
	return nil
}

type stubRetailers struct {
	profiles map[int64]core.RetailerProfile
}

func (s *stubRetailers) ByID(_ context.Context, id int64) (*core.RetailerProfile, error) {
	profile, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("retailer id %d not found", id)
	}
	copied := profile
	return &copied, nil
}

func (s *stubRetailers) BySlug(_ context.Context, slug string) (*core.RetailerProfile, error) {
	for _, profile := range s.profiles {
		if profile.Slug == slug {
			copied := profile
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("retailer %q not found", slug)
}

type stubBudget struct {
	denied map[string]bool
	err    error
	calls  []string
}

func (b *stubBudget) Allow(_ context.Context, slug string) (bool, int, error) {
	b.calls = append(b.calls, slug)
	if b.err != nil {
		return true, 0, b.err
	}
	if b.denied[slug] {
		return false, 0, nil
	}
	return true, 3, nil
}

type stubFetcher struct {
	results  map[string]*fetch.Result
	errs     map[string]error
	order    []string
	policies []fetch.Policy
}

func (f *stubFetcher) Do(_ context.Context, rawURL string, policy fetch.Policy) (*fetch.Result, error) {
	f.order = append(f.order, rawURL)
	f.policies = append(f.policies, policy)
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	if res, ok := f.results[rawURL]; ok {
		copied := *res
		copied.URL = rawURL
		return &copied, nil
	}
	return &fetch.Result{URL: rawURL, StatusCode: http.StatusOK, Body: "<html></html>"}, nil
}

const (
	targetLiveBody = `<html><body><h1>Pokemon TCG Prismatic Evolutions Booster Bundle</h1>
<span>$39.99</span><button>Add to cart</button></body></html>`

	targetOOSBody = `<html><body><h1>Pokemon TCG Prismatic Evolutions Booster Bundle</h1>
<span>$39.99</span><p>Out of stock</p></body></html>`
)

func testChecker(store *stubStore, fetcher PageFetcher) *CandidateChecker {
	return &CandidateChecker{
		Store: store,
		Retailers: &stubRetailers{profiles: map[int64]core.RetailerProfile{
			4: {ID: 4, Slug: "target", Integration: core.IntegrationScraping, TimeoutMS: 1000, Active: true},
			5: {ID: 5, Slug: "gamestop", Integration: core.IntegrationScraping, TimeoutMS: 1000, Active: true},
		}},
		Budget:       &stubBudget{},
		Fetcher:      fetcher,
		SessionReuse: true,
		Delay:        time.Millisecond,
		Clock:        func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) },
	}
}

func pendingCandidate(id, retailerID int64, url string, score float64) core.Candidate {
	return core.Candidate{
		ID:         id,
		ProductID:  "ptcg-prismatic-evolutions",
		RetailerID: retailerID,
		URL:        url,
		Status:     core.StatusUnknown,
		Score:      score,
	}
}

func TestRunBatchLiveTransitionEmitsOneSignal(t *testing.T) {
	url := "https://www.target.com/p/pokemon-tcg-prismatic-evolutions-booster-bundle/-/A-93954435"
	store := &stubStore{pending: []core.Candidate{pendingCandidate(1, 4, url, 0.5)}}
	fetcher := &stubFetcher{results: map[string]*fetch.Result{
		url: {StatusCode: http.StatusOK, Body: targetLiveBody},
	}}
	c := testChecker(store, fetcher)

	summary, err := c.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, core.BatchSummary{Checked: 1, LiveFound: 1}, summary)

	require.Len(t, store.updates, 1)
	update := store.updates[0]
	require.Equal(t, core.StatusLive, update.status)
	require.InDelta(t, 0.75, update.score, 1e-9)
	require.Equal(t, "live:pg=1,cta=1,price=1,jsonld=0", update.reason)
	require.NotNil(t, update.firstLiveAt)

	require.Len(t, store.signals, 1)
	signal := store.signals[0]
	require.Equal(t, core.SignalTypeURLLive, signal.SignalType)
	require.Equal(t, "ptcg-prismatic-evolutions", signal.ProductID)
	require.Equal(t, int64(4), signal.RetailerID)
	require.Equal(t, url, signal.Value)
	require.Equal(t, SignalSource, signal.Source)
	require.NotEmpty(t, signal.ID)
	require.InDelta(t, 0.90, signal.Confidence, 1e-9)

	counters := c.Counters()
	require.Equal(t, 1, counters["target"].Requests)
	require.Equal(t, 1, counters["target"].Live)
}

func TestRunBatchNotFoundMarksInvalid(t *testing.T) {
	first := "https://www.target.com/p/gone/-/A-11111111"
	second := "https://www.target.com/p/also-gone/-/A-22222222"
	store := &stubStore{pending: []core.Candidate{
		pendingCandidate(1, 4, first, 0.5),
		pendingCandidate(2, 4, second, 0.1),
	}}
	fetcher := &stubFetcher{results: map[string]*fetch.Result{
		first:  {StatusCode: http.StatusNotFound, Body: "not found"},
		second: {StatusCode: http.StatusGone, Body: "gone"},
	}}
	c := testChecker(store, fetcher)

	summary, err := c.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, core.BatchSummary{Checked: 2}, summary)
	require.Empty(t, store.signals)

	require.Len(t, store.updates, 2)
	require.Equal(t, core.StatusInvalid, store.updates[0].status)
	require.InDelta(t, 0.2, store.updates[0].score, 1e-9)
	require.Equal(t, "http_404", store.updates[0].reason)
	require.Nil(t, store.updates[0].firstLiveAt)

	// the floor clamps at zero
	require.Equal(t, "http_410", store.updates[1].reason)
	require.InDelta(t, 0.0, store.updates[1].score, 1e-9)

	require.Equal(t, 2, c.Counters()["target"].Invalid)
}

type render403 struct{ calls int }

func (r *render403) Fetch(_ context.Context, _ string, _ time.Duration) (int, string, error) {
	r.calls++
	return http.StatusForbidden, "captcha", nil
}

// A 403 captcha wall under on_block gets exactly one render re-fetch; when
// that also comes back blocked the candidate stays unknown with a small
// penalty and an auditable status reason.
func TestRunBatchBlockedAfterRenderRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "<html><body>captcha</body></html>")
	}))
	defer srv.Close()

	store := &stubStore{pending: []core.Candidate{
		pendingCandidate(7, 4, srv.URL+"/p/blocked/-/A-42", 0.5),
	}}
	render := &render403{}
	c := testChecker(store, fetch.New(render))

	summary, err := c.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, core.BatchSummary{Checked: 1}, summary)
	require.Equal(t, 1, render.calls)

	require.Len(t, store.updates, 1)
	update := store.updates[0]
	require.Equal(t, core.StatusUnknown, update.status)
	require.InDelta(t, 0.45, update.score, 1e-9)
	require.Equal(t, "http_403", update.reason)

	require.Equal(t, 1, c.Counters()["target"].Blocked)
	require.Empty(t, store.signals)
}

func TestRunBatchBudgetDenialDefersCandidate(t *testing.T) {
	url := "https://www.target.com/p/deferred/-/A-2"
	store := &stubStore{pending: []core.Candidate{pendingCandidate(2, 4, url, 0.5)}}
	fetcher := &stubFetcher{}
	c := testChecker(store, fetcher)
	c.Budget = &stubBudget{denied: map[string]bool{"target": true}}

	summary, err := c.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, core.BatchSummary{}, summary)
	require.Empty(t, fetcher.order, "no request is spent on a denied candidate")
	require.Empty(t, store.updates)
	require.Empty(t, c.Counters())
}

func TestRunBatchBudgetErrorFailsOpen(t *testing.T) {
	url := "https://www.target.com/p/open/-/A-3"
	store := &stubStore{pending: []core.Candidate{pendingCandidate(3, 4, url, 0.5)}}
	fetcher := &stubFetcher{results: map[string]*fetch.Result{
		url: {StatusCode: http.StatusOK, Body: targetLiveBody},
	}}
	c := testChecker(store, fetcher)
	c.Budget = &stubBudget{err: errors.New("budget store offline")}

	summary, err := c.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Checked)
	require.Len(t, fetcher.order, 1)
}

func TestRunBatchNetworkErrorScoring(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		reason string
		score  float64
	}{
		{"timeout", context.DeadlineExceeded, "ETIMEDOUT", 0.45},
		{"dns not found", &net.DNSError{Err: "no such host", Name: "shop.example", IsNotFound: true}, "ENOTFOUND", 0.20},
		{"connection reset", syscall.ECONNRESET, "ECONNRESET", 0.45},
		{"connection refused", syscall.ECONNREFUSED, "ECONNREFUSED", 0.48},
		{"unclassified", errors.New("tls handshake broke"), "network_error", 0.48},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			url := "https://www.target.com/p/flaky/-/A-5"
			store := &stubStore{pending: []core.Candidate{pendingCandidate(5, 4, url, 0.5)}}
			fetcher := &stubFetcher{errs: map[string]error{url: tc.err}}
			c := testChecker(store, fetcher)

			summary, err := c.RunBatch(context.Background())
			require.NoError(t, err)
			require.Equal(t, 1, summary.Checked)

			require.Len(t, store.updates, 1)
			update := store.updates[0]
			require.Equal(t, core.StatusUnknown, update.status)
			require.Equal(t, tc.reason, update.reason)
			require.InDelta(t, tc.score, update.score, 1e-9)

			require.Equal(t, 1, c.Counters()["target"].Errors)
		})
	}
}

func TestRunBatchValidAndPageOutcomes(t *testing.T) {
	oosURL := "https://www.target.com/p/oos/-/A-93954435"
	searchURL := "https://www.target.com/search?q=pokemon"
	store := &stubStore{pending: []core.Candidate{
		pendingCandidate(1, 4, oosURL, 0.5),
		pendingCandidate(2, 4, searchURL, 0.5),
	}}
	fetcher := &stubFetcher{results: map[string]*fetch.Result{
		oosURL:    {StatusCode: http.StatusOK, Body: targetOOSBody},
		searchURL: {StatusCode: http.StatusOK, Body: "<html><body><p>search results</p></body></html>"},
	}}
	c := testChecker(store, fetcher)

	summary, err := c.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, core.BatchSummary{Checked: 2}, summary)

	require.Len(t, store.updates, 2)
	require.Equal(t, core.StatusValid, store.updates[0].status)
	require.InDelta(t, 0.55, store.updates[0].score, 1e-9)
	require.Equal(t, "valid:pg=1,cta=0,price=1,jsonld=0", store.updates[0].reason)

	require.Equal(t, core.StatusUnknown, store.updates[1].status)
	require.InDelta(t, 0.45, store.updates[1].score, 1e-9)
	require.Equal(t, "page:pg=0,cta=0,price=0,jsonld=0", store.updates[1].reason)

	require.Equal(t, 1, c.Counters()["target"].Valid)
}

// Target substitutes structured data for a client-side rendered CTA;
// GameStop does not, so the identical evidence stays valid there.
func TestRunBatchJSONLDSubstituteRule(t *testing.T) {
	jsonldBody := `<html><head><script type="application/ld+json">
{"@type":"Product","name":"Prismatic Evolutions Super Premium Collection","offers":{"price":"99.99"}}
</script></head><body><span>$99.99</span></body></html>`

	targetURL := "https://www.target.com/p/super-premium/-/A-94300072"
	gamestopURL := "https://www.gamestop.com/products/super-premium/412399.html"
	store := &stubStore{pending: []core.Candidate{
		pendingCandidate(1, 4, targetURL, 0.5),
		pendingCandidate(2, 5, gamestopURL, 0.5),
	}}
	fetcher := &stubFetcher{results: map[string]*fetch.Result{
		targetURL:   {StatusCode: http.StatusOK, Body: jsonldBody},
		gamestopURL: {StatusCode: http.StatusOK, Body: jsonldBody},
	}}
	c := testChecker(store, fetcher)

	summary, err := c.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, core.BatchSummary{Checked: 2, LiveFound: 1}, summary)

	require.Equal(t, core.StatusLive, store.updates[0].status)
	require.Equal(t, "live:pg=1,cta=0,price=1,jsonld=1", store.updates[0].reason)

	require.Equal(t, core.StatusValid, store.updates[1].status)
	require.Equal(t, "valid:pg=1,cta=0,price=1,jsonld=1", store.updates[1].reason)
}

func TestRunBatchAlreadyLiveDoesNotResignal(t *testing.T) {
	url := "https://www.target.com/p/still-live/-/A-93954435"
	candidate := pendingCandidate(9, 4, url, 0.9)
	candidate.Status = core.StatusLive
	store := &stubStore{pending: []core.Candidate{candidate}}
	fetcher := &stubFetcher{results: map[string]*fetch.Result{
		url: {StatusCode: http.StatusOK, Body: targetLiveBody},
	}}
	c := testChecker(store, fetcher)

	summary, err := c.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, core.BatchSummary{Checked: 1}, summary)
	require.Empty(t, store.signals)

	require.Len(t, store.updates, 1)
	require.Equal(t, core.StatusLive, store.updates[0].status)
	// the ceiling clamps at one
	require.InDelta(t, 1.0, store.updates[0].score, 1e-9)
}

func TestRunBatchPersistFailureDoesNotAbort(t *testing.T) {
	first := "https://www.target.com/p/one/-/A-1"
	second := "https://www.target.com/p/two/-/A-2"
	store := &stubStore{
		pending: []core.Candidate{
			pendingCandidate(1, 4, first, 0.5),
			pendingCandidate(2, 4, second, 0.5),
		},
		updateErr: errors.New("disk full"),
	}
	fetcher := &stubFetcher{results: map[string]*fetch.Result{
		first:  {StatusCode: http.StatusOK, Body: targetLiveBody},
		second: {StatusCode: http.StatusOK, Body: targetLiveBody},
	}}
	c := testChecker(store, fetcher)

	summary, err := c.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, core.BatchSummary{Checked: 2}, summary)
	require.Len(t, fetcher.order, 2)
	require.Empty(t, store.signals, "no signal without a recorded transition")
}

func TestRunBatchSkipsUnknownRetailer(t *testing.T) {
	store := &stubStore{pending: []core.Candidate{
		pendingCandidate(1, 99, "https://shop.example/p/1", 0.5),
	}}
	fetcher := &stubFetcher{}
	c := testChecker(store, fetcher)

	summary, err := c.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, core.BatchSummary{}, summary)
	require.Empty(t, fetcher.order)
	require.Empty(t, store.updates)
}

func TestRunBatchProcessesInListedOrder(t *testing.T) {
	urls := []string{
		"https://www.target.com/p/a/-/A-1",
		"https://www.target.com/p/b/-/A-2",
		"https://www.target.com/p/c/-/A-3",
	}
	store := &stubStore{pending: []core.Candidate{
		pendingCandidate(1, 4, urls[0], 0.5),
		pendingCandidate(2, 4, urls[1], 0.5),
		pendingCandidate(3, 4, urls[2], 0.5),
	}}
	fetcher := &stubFetcher{}
	c := testChecker(store, fetcher)

	_, err := c.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, urls, fetcher.order)
}

func TestRunBatchHonorsBatchSize(t *testing.T) {
	store := &stubStore{pending: []core.Candidate{
		pendingCandidate(1, 4, "https://www.target.com/p/a/-/A-1", 0.5),
		pendingCandidate(2, 4, "https://www.target.com/p/b/-/A-2", 0.5),
	}}
	fetcher := &stubFetcher{}
	c := testChecker(store, fetcher)
	c.BatchSize = 1

	summary, err := c.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Checked)
}

func TestRunBatchListErrorPropagates(t *testing.T) {
	store := &stubStore{listErr: errors.New("database is locked")}
	_, err := testChecker(store, &stubFetcher{}).RunBatch(context.Background())
	require.Error(t, err)
}

func TestRunBatchRequiresConfiguration(t *testing.T) {
	var unset *CandidateChecker
	_, err := unset.RunBatch(context.Background())
	require.Error(t, err)

	_, err = (&CandidateChecker{}).RunBatch(context.Background())
	require.Error(t, err)
}

func TestPolicyForHonorsOverrides(t *testing.T) {
	c := testChecker(&stubStore{}, &stubFetcher{})
	c.RenderTimeout = 45 * time.Second
	c.Settings = &configres.Resolver{Providers: []configres.Provider{
		&configres.StaticProvider{PerRetailer: map[string]map[string]string{
			configres.SettingRenderBehavior: {"target": "never"},
			configres.SettingSessionReuse:   {"target": "false"},
		}},
	}}

	policy := c.policyFor(context.Background(), core.RetailerProfile{Slug: "target", TimeoutMS: 12000})
	require.Equal(t, core.RenderNever, policy.Behavior)
	require.False(t, policy.SessionReuse)
	require.Equal(t, 12*time.Second, policy.Timeout)
	require.Equal(t, 45*time.Second, policy.RenderTimeout)

	policy = c.policyFor(context.Background(), core.RetailerProfile{Slug: "gamestop"})
	require.Equal(t, core.RenderOnBlock, policy.Behavior)
	require.True(t, policy.SessionReuse)
}

func TestProbeReportsWithoutPersisting(t *testing.T) {
	url := "https://www.target.com/p/probe/-/A-93954435"
	store := &stubStore{}
	fetcher := &stubFetcher{results: map[string]*fetch.Result{
		url: {StatusCode: http.StatusOK, Body: targetLiveBody},
	}}
	c := testChecker(store, fetcher)

	report := c.Probe(context.Background(), url, "target", false)
	require.Equal(t, core.StatusLive, report.Status)
	require.Equal(t, "live:pg=1,cta=1,price=1,jsonld=0", report.Reason)
	require.Equal(t, http.StatusOK, report.StatusCode)
	require.True(t, report.Evidence.CTA)
	require.Empty(t, report.ErrorMessage)

	require.Empty(t, store.updates)
	require.Empty(t, store.signals)
}

func TestProbeForceRender(t *testing.T) {
	url := "https://www.target.com/p/probe/-/A-93954435"
	fetcher := &stubFetcher{results: map[string]*fetch.Result{
		url: {StatusCode: http.StatusOK, Body: targetLiveBody, Rendered: true},
	}}
	c := testChecker(&stubStore{}, fetcher)

	report := c.Probe(context.Background(), url, "target", true)
	require.True(t, report.Rendered)
	require.Len(t, fetcher.policies, 1)
	require.Equal(t, core.RenderAlways, fetcher.policies[0].Behavior)
}

func TestProbeFetchError(t *testing.T) {
	url := "https://www.target.com/p/probe/-/A-93954435"
	fetcher := &stubFetcher{errs: map[string]error{url: context.DeadlineExceeded}}
	c := testChecker(&stubStore{}, fetcher)

	report := c.Probe(context.Background(), url, "target", false)
	require.Equal(t, core.StatusUnknown, report.Status)
	require.Equal(t, "ETIMEDOUT", report.Reason)
	require.NotEmpty(t, report.ErrorMessage)
}
