// Package budget admits candidate checks against per-retailer request
// budgets. The counter lives in the shared store, so every process polling
// the same database draws from one window. This is a politeness control,
// separate from the adapter circuit breaker: a denial here means "we chose
// not to ask", not "the retailer pushed back".
package budget

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/stocklens/stocklens/internal/core/configres"
)

// DefaultRequestsPerMinute is the hard floor when no override resolves.
const DefaultRequestsPerMinute = 6

// Store is the slice of the store the controller consumes windows through.
type Store interface {
	ConsumeBudget(ctx context.Context, slug string, limit int, now time.Time) (bool, int, error)
}

// Controller resolves each retailer's effective budget and takes one window
// slot per admitted request.
type Controller struct {
	Store Store

	// Dynamic and Env are the override layers, checked in order:
	// dynamic budget, dynamic burst, environment budget, hard default.
	Dynamic configres.Provider
	Env     configres.Provider

	Clock func() time.Time
}

// EffectiveLimit resolves the requests-per-minute budget for a retailer.
// Overrides that are zero, negative, or unparsable are skipped so a bad
// value degrades to the next layer instead of halting checks.
func (c *Controller) EffectiveLimit(ctx context.Context, slug string) int {
	if c == nil {
		return DefaultRequestsPerMinute
	}

	layers := []struct {
		provider configres.Provider
		setting  string
	}{
		{c.Dynamic, configres.SettingBudget},
		{c.Dynamic, configres.SettingBurst},
		{c.Env, configres.SettingBudget},
	}

	for _, layer := range layers {
		if layer.provider == nil {
			continue
		}
		raw, ok := layer.provider.Lookup(ctx, layer.setting, slug)
		if !ok {
			continue
		}
		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || value <= 0 {
			continue
		}
		return value
	}

	return DefaultRequestsPerMinute
}

// Allow consumes one slot from the retailer's shared window. When the store
// is unreachable the request is admitted anyway and the error is returned
// for the caller to log; a missed politeness delay is cheaper than a stalled
// polling pipeline.
func (c *Controller) Allow(ctx context.Context, slug string) (bool, int, error) {
	if c == nil || c.Store == nil {
		return true, 0, nil
	}

	limit := c.EffectiveLimit(ctx, slug)

	allowed, remaining, err := c.Store.ConsumeBudget(ctx, slug, limit, c.now())
	if err != nil {
		return true, 0, err
	}

	return allowed, remaining, nil
}

func (c *Controller) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}
