package checker

import (
	"context"
	"strings"

	"github.com/stocklens/stocklens/internal/core"
	"github.com/stocklens/stocklens/internal/metrics"
)

// Probe runs the fetch-and-evaluate pipeline against one URL without
// touching candidate state. The slug selects the retailer's timeout and
// live rule; forceRender overrides the resolved render behavior with
// always. Used by the ad-hoc check command.
func (c *CandidateChecker) Probe(ctx context.Context, rawURL, slug string, forceRender bool) core.CheckReport {
	if ctx == nil {
		ctx = context.Background()
	}

	slug = strings.ToLower(strings.TrimSpace(slug))
	start := c.now()
	report := core.CheckReport{
		URL:       strings.TrimSpace(rawURL),
		Retailer:  slug,
		Status:    core.StatusUnknown,
		FetchedAt: start,
	}

	profile := c.probeProfile(ctx, slug)
	policy := c.policyFor(ctx, profile)
	if forceRender {
		policy.Behavior = core.RenderAlways
	}

	res, err := c.Fetcher.Do(ctx, report.URL, policy)
	report.LatencyMS = c.now().Sub(start).Milliseconds()
	if err != nil {
		reason, _ := networkReason(err)
		report.Reason = reason
		report.ErrorMessage = err.Error()
		metrics.RecordOperation("url_probe", false)
		return report
	}

	v := c.classifyResponse(slug, core.Candidate{}, res)

	report.StatusCode = res.StatusCode
	report.Rendered = res.Rendered
	report.Blocked = res.Blocked
	report.Status = v.status
	report.Reason = v.reason
	if v.hasEvidence {
		report.Evidence = v.evidence
	}

	metrics.RecordOperation("url_probe", true)
	return report
}

// probeProfile resolves the profile for a probe: the live registry when
// available, the built-in table otherwise, and a scraping-shaped default
// when the slug is unknown or empty.
func (c *CandidateChecker) probeProfile(ctx context.Context, slug string) core.RetailerProfile {
	if slug == "" {
		return core.RetailerProfile{Slug: "", Integration: core.IntegrationScraping}
	}

	if c.Retailers != nil {
		if profile, err := c.Retailers.BySlug(ctx, slug); err == nil {
			return *profile
		}
	}
	if profile, ok := core.FindBuiltInRetailer(slug); ok {
		return *profile
	}

	return core.RetailerProfile{Slug: slug, Integration: core.IntegrationScraping}
}
