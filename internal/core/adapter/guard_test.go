package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stocklens/stocklens/internal/core"
)

type stubClock struct {
	t time.Time
}

func (c *stubClock) Now() time.Time {
	return c.t
}

func (c *stubClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestGuard(clock *stubClock, cfg GuardConfig) *Guard {
	return &Guard{Retailer: "target", Config: cfg, Clock: clock.Now}
}

func TestGuardWindowExhaustionAndSlide(t *testing.T) {
	clock := &stubClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	g := newTestGuard(clock, GuardConfig{RequestsPerMinute: 2})

	require.NoError(t, g.Admit())
	require.NoError(t, g.Admit())

	err := g.Admit()
	require.Error(t, err)
	require.True(t, IsCode(err, CodeRateLimit))

	// Denials do not hold slots; once the first admission ages out a new
	// one fits.
	clock.Advance(61 * time.Second)
	require.NoError(t, g.Admit())

	metrics := g.Snapshot()
	require.Equal(t, int64(1), metrics.RateLimitHits)
}

func TestGuardTripsOnSuccessRate(t *testing.T) {
	clock := &stubClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	g := newTestGuard(clock, GuardConfig{
		RequestsPerMinute: 100,
		SuccessThreshold:  0.90,
		LatencyThreshold:  5 * time.Second,
		MinSamples:        10,
		SampleWindow:      20,
	})

	// 8 of 10 is below the 90% threshold.
	for i := 0; i < 10; i++ {
		require.NoError(t, g.Admit())
		g.Record(i < 8, 100*time.Millisecond)
	}

	require.Equal(t, core.CircuitOpen, g.State())
	require.Equal(t, int64(1), g.Snapshot().CircuitTrips)

	err := g.Admit()
	require.Error(t, err)
	require.True(t, IsCode(err, CodeRateLimit))
}

func TestGuardTripsOnLatency(t *testing.T) {
	clock := &stubClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	g := newTestGuard(clock, GuardConfig{
		RequestsPerMinute: 100,
		SuccessThreshold:  0.90,
		LatencyThreshold:  5 * time.Second,
		MinSamples:        10,
	})

	// All successes, but far too slow.
	for i := 0; i < 10; i++ {
		require.NoError(t, g.Admit())
		g.Record(true, 8*time.Second)
	}

	require.Equal(t, core.CircuitOpen, g.State())
}

func TestGuardBelowMinSamplesNeverTrips(t *testing.T) {
	clock := &stubClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	g := newTestGuard(clock, GuardConfig{
		RequestsPerMinute: 100,
		SuccessThreshold:  0.90,
		MinSamples:        10,
	})

	for i := 0; i < 9; i++ {
		require.NoError(t, g.Admit())
		g.Record(false, 100*time.Millisecond)
	}

	require.Equal(t, core.CircuitClosed, g.State())
}

func TestGuardHalfOpenProbeRecovers(t *testing.T) {
	clock := &stubClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	g := newTestGuard(clock, GuardConfig{
		RequestsPerMinute: 100,
		SuccessThreshold:  0.90,
		LatencyThreshold:  5 * time.Second,
		MinSamples:        10,
		Cooldown:          30 * time.Second,
	})

	for i := 0; i < 10; i++ {
		require.NoError(t, g.Admit())
		g.Record(false, 100*time.Millisecond)
	}
	require.Equal(t, core.CircuitOpen, g.State())

	// Still cooling down.
	require.Error(t, g.Admit())

	clock.Advance(31 * time.Second)

	// One probe is admitted, a second concurrent attempt is not.
	require.NoError(t, g.Admit())
	require.Equal(t, core.CircuitHalfOpen, g.State())
	require.Error(t, g.Admit())

	g.Record(true, 100*time.Millisecond)
	require.Equal(t, core.CircuitClosed, g.State())

	// The old failure samples were discarded; the next success does not
	// re-trip.
	require.NoError(t, g.Admit())
	g.Record(true, 100*time.Millisecond)
	require.Equal(t, core.CircuitClosed, g.State())
}

func TestGuardHalfOpenProbeFailureReopens(t *testing.T) {
	clock := &stubClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	g := newTestGuard(clock, GuardConfig{
		RequestsPerMinute: 100,
		SuccessThreshold:  0.90,
		LatencyThreshold:  5 * time.Second,
		MinSamples:        10,
		Cooldown:          30 * time.Second,
	})

	for i := 0; i < 10; i++ {
		require.NoError(t, g.Admit())
		g.Record(false, 100*time.Millisecond)
	}

	clock.Advance(31 * time.Second)
	require.NoError(t, g.Admit())
	g.Record(false, 100*time.Millisecond)

	require.Equal(t, core.CircuitOpen, g.State())
	require.Equal(t, int64(2), g.Snapshot().CircuitTrips)

	// The fresh open state starts a new cooldown from the failed probe.
	require.Error(t, g.Admit())
	clock.Advance(31 * time.Second)
	require.NoError(t, g.Admit())
}

func TestGuardConfigForIntegrationTypes(t *testing.T) {
	api := GuardConfigFor(core.RetailerProfile{Integration: core.IntegrationAPI, RequestsPerMinute: 30})
	require.InDelta(t, 0.90, api.SuccessThreshold, 0.0001)
	require.Equal(t, 5*time.Second, api.LatencyThreshold)
	require.Equal(t, 30, api.RequestsPerMinute)

	scraping := GuardConfigFor(core.RetailerProfile{Integration: core.IntegrationScraping, RequestsPerMinute: 6})
	require.InDelta(t, 0.80, scraping.SuccessThreshold, 0.0001)
	require.Equal(t, 10*time.Second, scraping.LatencyThreshold)
}

func TestGuardSnapshotMetrics(t *testing.T) {
	clock := &stubClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	g := newTestGuard(clock, GuardConfig{RequestsPerMinute: 10})

	require.NoError(t, g.Admit())
	g.Record(true, 200*time.Millisecond)
	require.NoError(t, g.Admit())
	g.Record(false, 400*time.Millisecond)

	metrics := g.Snapshot()
	require.Equal(t, int64(2), metrics.TotalRequests)
	require.Equal(t, int64(1), metrics.SuccessCount)
	require.Equal(t, int64(1), metrics.FailureCount)
	require.InDelta(t, 0.5, metrics.SuccessRate, 0.0001)
	require.InDelta(t, 300, metrics.AvgResponseMS, 0.0001)
	require.Equal(t, 8, metrics.WindowRemaining)
	require.NotNil(t, metrics.LastRequestAt)
	require.Equal(t, core.CircuitClosed, metrics.State)
}
