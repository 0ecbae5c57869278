// Package checker drives the polling loop over persisted URL candidates.
// One RunBatch pass walks pending candidates strictly sequentially: budget
// admission, fetch, classification, score update, persistence, and signal
// emission on a live transition. Retailer fan-out happens by running
// independent passes, never by parallelizing inside one.
package checker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/stocklens/stocklens/internal/core"
	"github.com/stocklens/stocklens/internal/core/configres"
	"github.com/stocklens/stocklens/internal/core/evaluate"
	"github.com/stocklens/stocklens/internal/core/fetch"
	"github.com/stocklens/stocklens/internal/metrics"
)

// Batch defaults when the config leaves them unset.
const (
	DefaultBatchSize = 20
	DefaultDelay     = 1500 * time.Millisecond
)

// SignalSource identifies this subsystem on emitted signals.
const SignalSource = "url_candidate_checker"

// CandidateStore is the slice of the store the checker drives.
type CandidateStore interface {
	ListPendingCandidates(ctx context.Context, limit int) ([]core.Candidate, error)
	UpdateCandidateResult(ctx context.Context, id int64, status core.CandidateStatus, score float64, reason string, checkedAt time.Time, firstLiveAt *time.Time) error
	PublishSignal(ctx context.Context, signal core.Signal) error
}

// RetailerSource resolves retailer profiles for candidates and probes.
type RetailerSource interface {
	ByID(ctx context.Context, id int64) (*core.RetailerProfile, error)
	BySlug(ctx context.Context, slug string) (*core.RetailerProfile, error)
}

// BudgetGate admits or defers one outbound request per candidate.
type BudgetGate interface {
	Allow(ctx context.Context, slug string) (bool, int, error)
}

// PageFetcher runs the fetch pipeline for one URL.
type PageFetcher interface {
	Do(ctx context.Context, rawURL string, policy fetch.Policy) (*fetch.Result, error)
}

// CandidateChecker is the orchestrating polling loop. Zero-value fields
// fall back to defaults; Store, Retailers, and Fetcher are required for
// RunBatch.
type CandidateChecker struct {
	Store     CandidateStore
	Retailers RetailerSource
	Budget    BudgetGate
	Fetcher   PageFetcher
	Evaluator *evaluate.Evaluator

	// Settings resolves per-retailer render_behavior and session_reuse
	// overrides (dynamic config first, then environment).
	Settings *configres.Resolver

	BatchSize     int
	Delay         time.Duration
	RenderTimeout time.Duration
	RenderDefault core.RenderBehavior
	SessionReuse  bool

	Logger *logging.Logger
	Clock  func() time.Time

	mu       sync.Mutex
	counters map[string]*core.RetailerCounters
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeChecked
	outcomeWentLive
)

// RunBatch checks up to BatchSize pending candidates and reports how many
// were checked and how many transitioned to live. Per-candidate failures
// are folded into that candidate's own state; only context cancellation
// and the initial listing abort the pass.
func (c *CandidateChecker) RunBatch(ctx context.Context) (core.BatchSummary, error) {
	var summary core.BatchSummary

	if c == nil || c.Store == nil || c.Retailers == nil || c.Fetcher == nil {
		return summary, fmt.Errorf("candidate checker is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	limit := c.BatchSize
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	candidates, err := c.Store.ListPendingCandidates(ctx, limit)
	if err != nil {
		return summary, fmt.Errorf("list pending candidates: %w", err)
	}

	pace := rate.NewLimiter(rate.Every(c.delay()), 1)

	for _, candidate := range candidates {
		if err := pace.Wait(ctx); err != nil {
			return summary, err
		}

		switch c.checkOne(ctx, candidate) {
		case outcomeChecked:
			summary.Checked++
		case outcomeWentLive:
			summary.Checked++
			summary.LiveFound++
		}
	}

	return summary, nil
}

func (c *CandidateChecker) checkOne(ctx context.Context, candidate core.Candidate) outcome {
	profile, err := c.Retailers.ByID(ctx, candidate.RetailerID)
	if err != nil {
		c.logWarn("Skipping candidate with unknown retailer",
			zap.Int64("candidate_id", candidate.ID),
			zap.Int64("retailer_id", candidate.RetailerID),
			zap.Error(err))
		return outcomeSkipped
	}

	if c.Budget != nil {
		allowed, remaining, err := c.Budget.Allow(ctx, profile.Slug)
		if err != nil {
			c.logWarn("Budget store unreachable, admitting request",
				zap.String("retailer", profile.Slug),
				zap.Error(err))
		}
		if !allowed {
			metrics.RecordBudgetDenial(profile.Slug)
			c.logDebug("Budget exhausted, deferring candidate",
				zap.String("retailer", profile.Slug),
				zap.Int64("candidate_id", candidate.ID),
				zap.Int("remaining", remaining))
			return outcomeSkipped
		}
	}

	c.bump(profile.Slug, func(ct *core.RetailerCounters) { ct.Requests++ })

	checkedAt := c.now()
	policy := c.policyFor(ctx, *profile)

	res, err := c.Fetcher.Do(ctx, candidate.URL, policy)
	if err != nil {
		v := classifyFetchError(candidate, err)
		c.bump(profile.Slug, func(ct *core.RetailerCounters) { ct.Errors++ })
		metrics.RecordOperationError("candidate_check", v.reason)
		c.logWarn("Candidate fetch failed",
			zap.Int64("candidate_id", candidate.ID),
			zap.String("retailer", profile.Slug),
			zap.String("reason", v.reason),
			zap.Error(err))
		c.persist(ctx, candidate, v, checkedAt, nil)
		metrics.RecordCandidateCheck(profile.Slug, string(v.status))
		return outcomeChecked
	}

	if res.Retried {
		metrics.RecordRenderRetry(profile.Slug)
	}
	if res.Blocked || res.Retried {
		c.bump(profile.Slug, func(ct *core.RetailerCounters) { ct.Blocked++ })
	}

	v := c.classifyResponse(profile.Slug, candidate, res)

	wentLive := v.status == core.StatusLive && candidate.Status != core.StatusLive
	var firstLiveAt *time.Time
	if v.status == core.StatusLive {
		// the store only writes this when the column is still empty
		firstLiveAt = &checkedAt
	}

	if !c.persist(ctx, candidate, v, checkedAt, firstLiveAt) {
		return outcomeChecked
	}

	c.bump(profile.Slug, func(ct *core.RetailerCounters) {
		switch v.status {
		case core.StatusLive:
			ct.Live++
		case core.StatusValid:
			ct.Valid++
		case core.StatusInvalid:
			ct.Invalid++
		}
	})
	metrics.RecordCandidateCheck(profile.Slug, string(v.status))

	if !wentLive {
		return outcomeChecked
	}

	signal := core.Signal{
		ID:         uuid.NewString(),
		ProductID:  candidate.ProductID,
		RetailerID: candidate.RetailerID,
		SignalType: core.SignalTypeURLLive,
		Value:      candidate.URL,
		Confidence: v.evidence.Confidence(),
		Source:     SignalSource,
		CreatedAt:  checkedAt,
	}
	if err := c.Store.PublishSignal(ctx, signal); err != nil {
		c.logError("Publishing live signal failed",
			zap.String("product_id", candidate.ProductID),
			zap.String("retailer", profile.Slug),
			zap.Error(err))
	} else {
		metrics.RecordLiveSignal(profile.Slug)
		c.logInfo("Candidate went live",
			zap.String("retailer", profile.Slug),
			zap.String("product_id", candidate.ProductID),
			zap.String("url", candidate.URL),
			zap.Float64("confidence", signal.Confidence))
	}

	return outcomeWentLive
}

// persist writes one check outcome. A write failure leaves last_checked_at
// untouched, so the candidate re-enters the next batch.
func (c *CandidateChecker) persist(ctx context.Context, candidate core.Candidate, v verdict, checkedAt time.Time, firstLiveAt *time.Time) bool {
	err := c.Store.UpdateCandidateResult(ctx, candidate.ID, v.status, core.ClampScore(v.score), v.reason, checkedAt, firstLiveAt)
	if err != nil {
		c.logError("Persisting candidate result failed",
			zap.Int64("candidate_id", candidate.ID),
			zap.String("status", string(v.status)),
			zap.Error(err))
		return false
	}
	return true
}

// policyFor resolves the fetch policy for one retailer: dynamic config,
// then environment, then the configured defaults.
func (c *CandidateChecker) policyFor(ctx context.Context, profile core.RetailerProfile) fetch.Policy {
	policy := fetch.Policy{
		Behavior:      c.renderDefault(),
		SessionReuse:  c.SessionReuse,
		Timeout:       profile.Timeout(),
		RenderTimeout: c.RenderTimeout,
	}

	if c.Settings != nil {
		raw := c.Settings.Resolve(ctx, configres.SettingRenderBehavior, profile.Slug, string(policy.Behavior))
		policy.Behavior = core.ParseRenderBehavior(raw)
		policy.SessionReuse = c.Settings.ResolveBool(ctx, configres.SettingSessionReuse, profile.Slug, policy.SessionReuse)
	}

	return policy
}

// Counters returns a copy of the per-retailer counters accumulated since
// construction.
func (c *CandidateChecker) Counters() map[string]core.RetailerCounters {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make(map[string]core.RetailerCounters, len(c.counters))
	for slug, entry := range c.counters {
		snapshot[slug] = *entry
	}
	return snapshot
}

func (c *CandidateChecker) bump(slug string, fn func(*core.RetailerCounters)) {
	slug = strings.ToLower(slug)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counters == nil {
		c.counters = make(map[string]*core.RetailerCounters)
	}
	entry, ok := c.counters[slug]
	if !ok {
		entry = &core.RetailerCounters{}
		c.counters[slug] = entry
	}
	fn(entry)
}

func (c *CandidateChecker) renderDefault() core.RenderBehavior {
	if c.RenderDefault == "" {
		return core.RenderOnBlock
	}
	return c.RenderDefault
}

func (c *CandidateChecker) delay() time.Duration {
	if c.Delay <= 0 {
		return DefaultDelay
	}
	return c.Delay
}

func (c *CandidateChecker) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

func (c *CandidateChecker) logDebug(msg string, fields ...zap.Field) {
	if c.Logger != nil {
		c.Logger.Debug(msg, fields...)
	}
}

func (c *CandidateChecker) logInfo(msg string, fields ...zap.Field) {
	if c.Logger != nil {
		c.Logger.Info(msg, fields...)
	}
}

func (c *CandidateChecker) logWarn(msg string, fields ...zap.Field) {
	if c.Logger != nil {
		c.Logger.Warn(msg, fields...)
	}
}

func (c *CandidateChecker) logError(msg string, fields ...zap.Field) {
	if c.Logger != nil {
		c.Logger.Error(msg, fields...)
	}
}
