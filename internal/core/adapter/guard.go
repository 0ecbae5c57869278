package adapter

import (
	"sync"
	"time"

	"github.com/stocklens/stocklens/internal/core"
)

// GuardConfig sets the local window and breaker thresholds for one adapter.
type GuardConfig struct {
	RequestsPerMinute int
	SuccessThreshold  float64
	LatencyThreshold  time.Duration
	MinSamples        int
	SampleWindow      int
	Cooldown          time.Duration
}

// GuardConfigFor derives guard thresholds from a retailer profile. Scraping
// targets run flakier than official APIs, so their breaker tolerates a
// lower success rate and higher latency before opening.
func GuardConfigFor(profile core.RetailerProfile) GuardConfig {
	cfg := GuardConfig{
		RequestsPerMinute: profile.RequestsPerMinute,
		SuccessThreshold:  0.90,
		LatencyThreshold:  5 * time.Second,
		MinSamples:        10,
		SampleWindow:      20,
		Cooldown:          30 * time.Second,
	}
	if profile.Integration == core.IntegrationScraping {
		cfg.SuccessThreshold = 0.80
		cfg.LatencyThreshold = 10 * time.Second
	}
	return cfg
}

type sample struct {
	ok      bool
	latency time.Duration
}

// Guard wraps every adapter request with a local sliding window and a
// three-state circuit breaker. The window is adapter-local (one process);
// the shared cross-process budget is the budget package's concern.
type Guard struct {
	Retailer string
	Config   GuardConfig
	Clock    func() time.Time

	mu            sync.Mutex
	admitted      []time.Time
	samples       []sample
	state         core.CircuitState
	openedAt      time.Time
	probeInFlight bool

	totalRequests int64
	successCount  int64
	failureCount  int64
	rateLimitHits int64
	circuitTrips  int64
	lastRequestAt *time.Time
}

func (g *Guard) now() time.Time {
	if g != nil && g.Clock != nil {
		return g.Clock()
	}
	return time.Now().UTC()
}

func (g *Guard) limit() int {
	if g.Config.RequestsPerMinute > 0 {
		return g.Config.RequestsPerMinute
	}
	return 6
}

func (g *Guard) cooldown() time.Duration {
	if g.Config.Cooldown > 0 {
		return g.Config.Cooldown
	}
	return 30 * time.Second
}

func (g *Guard) minSamples() int {
	if g.Config.MinSamples > 0 {
		return g.Config.MinSamples
	}
	return 10
}

func (g *Guard) sampleWindow() int {
	if g.Config.SampleWindow > 0 {
		return g.Config.SampleWindow
	}
	return 20
}

// Admit reserves one request slot. The breaker is consulted before the
// window: an open circuit refuses without consuming a slot, so recovery
// probes start with the full window available.
func (g *Guard) Admit() error {
	if g == nil {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if g.state == "" {
		g.state = core.CircuitClosed
	}

	if g.state == core.CircuitOpen {
		if now.Sub(g.openedAt) < g.cooldown() {
			g.rateLimitHits++
			return RateLimitError(g.Retailer, 0)
		}
		g.state = core.CircuitHalfOpen
		g.probeInFlight = false
	}

	if g.state == core.CircuitHalfOpen && g.probeInFlight {
		g.rateLimitHits++
		return RateLimitError(g.Retailer, 0)
	}

	g.pruneWindow(now)
	if len(g.admitted) >= g.limit() {
		g.rateLimitHits++
		return RateLimitError(g.Retailer, 0)
	}

	g.admitted = append(g.admitted, now)
	if g.state == core.CircuitHalfOpen {
		g.probeInFlight = true
	}

	return nil
}

// Record logs the outcome of an admitted request. Every attempt lands here
// before the adapter returns, success or not.
func (g *Guard) Record(ok bool, latency time.Duration) {
	if g == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.totalRequests++
	g.lastRequestAt = &now
	if ok {
		g.successCount++
	} else {
		g.failureCount++
	}

	g.samples = append(g.samples, sample{ok: ok, latency: latency})
	if over := len(g.samples) - g.sampleWindow(); over > 0 {
		g.samples = g.samples[over:]
	}

	switch g.state {
	case core.CircuitHalfOpen:
		g.probeInFlight = false
		if ok {
			// Recovered. Start the sample window fresh so the failures
			// that tripped the breaker cannot trip it again.
			g.state = core.CircuitClosed
			g.samples = nil
		} else {
			g.state = core.CircuitOpen
			g.openedAt = now
			g.circuitTrips++
		}
	case core.CircuitClosed, "":
		if g.shouldTrip() {
			g.state = core.CircuitOpen
			g.openedAt = now
			g.circuitTrips++
		}
	}
}

// shouldTrip evaluates the trailing sample window. Callers hold g.mu.
func (g *Guard) shouldTrip() bool {
	if len(g.samples) < g.minSamples() {
		return false
	}

	var (
		successes int
		total     time.Duration
	)
	for _, s := range g.samples {
		if s.ok {
			successes++
		}
		total += s.latency
	}

	successRate := float64(successes) / float64(len(g.samples))
	avgLatency := total / time.Duration(len(g.samples))

	return successRate < g.Config.SuccessThreshold || avgLatency > g.Config.LatencyThreshold
}

// pruneWindow drops admissions older than one minute. Callers hold g.mu.
func (g *Guard) pruneWindow(now time.Time) {
	cutoff := now.Add(-time.Minute)
	keep := g.admitted[:0]
	for _, stamp := range g.admitted {
		if stamp.After(cutoff) {
			keep = append(keep, stamp)
		}
	}
	g.admitted = keep
}

// State returns the current breaker position.
func (g *Guard) State() core.CircuitState {
	if g == nil {
		return core.CircuitClosed
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == "" {
		return core.CircuitClosed
	}
	return g.state
}

// Snapshot returns a copy of the guard's metrics.
func (g *Guard) Snapshot() core.AdapterMetrics {
	if g == nil {
		return core.AdapterMetrics{State: core.CircuitClosed}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	metrics := core.AdapterMetrics{
		TotalRequests: g.totalRequests,
		SuccessCount:  g.successCount,
		FailureCount:  g.failureCount,
		RateLimitHits: g.rateLimitHits,
		CircuitTrips:  g.circuitTrips,
		State:         g.state,
	}
	if metrics.State == "" {
		metrics.State = core.CircuitClosed
	}
	if g.lastRequestAt != nil {
		value := *g.lastRequestAt
		metrics.LastRequestAt = &value
	}
	if g.totalRequests > 0 {
		metrics.SuccessRate = float64(g.successCount) / float64(g.totalRequests)
	}
	if len(g.samples) > 0 {
		var total time.Duration
		for _, s := range g.samples {
			total += s.latency
		}
		metrics.AvgResponseMS = float64((total / time.Duration(len(g.samples))).Milliseconds())
	}

	g.pruneWindow(g.now())
	metrics.WindowRemaining = g.limit() - len(g.admitted)
	if metrics.WindowRemaining < 0 {
		metrics.WindowRemaining = 0
	}

	return metrics
}
