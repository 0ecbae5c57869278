package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryBudgetStore struct {
	windows map[string]*windowState
	err     error
}

type windowState struct {
	start time.Time
	count int
}

func (s *memoryBudgetStore) ConsumeBudget(ctx context.Context, slug string, limit int, now time.Time) (bool, int, error) {
	if s.err != nil {
		return false, 0, s.err
	}
	if s.windows == nil {
		s.windows = make(map[string]*windowState)
	}

	w, ok := s.windows[slug]
	if !ok || now.Sub(w.start) >= time.Minute {
		w = &windowState{start: now}
		s.windows[slug] = w
	}
	if w.count >= limit {
		return false, 0, nil
	}
	w.count++
	return true, limit - w.count, nil
}

type mapProvider map[string]string

func (p mapProvider) Lookup(ctx context.Context, setting, slug string) (string, bool) {
	v, ok := p[setting+"/"+slug]
	return v, ok
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestEffectiveLimitOverrideChain(t *testing.T) {
	ctx := context.Background()

	c := &Controller{
		Dynamic: mapProvider{
			"budget/target": "12",
			"burst/target":  "40",
			"burst/walmart": "20",
		},
		Env: mapProvider{
			"budget/target":   "8",
			"budget/walmart":  "8",
			"budget/gamestop": "9",
		},
	}

	// Dynamic budget wins over burst and env.
	require.Equal(t, 12, c.EffectiveLimit(ctx, "target"))
	// No dynamic budget: burst wins over env.
	require.Equal(t, 20, c.EffectiveLimit(ctx, "walmart"))
	// Env only.
	require.Equal(t, 9, c.EffectiveLimit(ctx, "gamestop"))
	// Nothing configured: hard default.
	require.Equal(t, DefaultRequestsPerMinute, c.EffectiveLimit(ctx, "bestbuy"))
}

func TestEffectiveLimitSkipsZeroAndUnparsable(t *testing.T) {
	ctx := context.Background()

	c := &Controller{
		Dynamic: mapProvider{
			"budget/target":  "0",
			"budget/walmart": "many",
		},
		Env: mapProvider{
			"budget/target": "8",
		},
	}

	// Zero falls through to env, unparsable falls through to the default.
	require.Equal(t, 8, c.EffectiveLimit(ctx, "target"))
	require.Equal(t, DefaultRequestsPerMinute, c.EffectiveLimit(ctx, "walmart"))
}

func TestAllowConsumesSharedWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := &memoryBudgetStore{}
	c := &Controller{
		Store:   store,
		Dynamic: mapProvider{"budget/target": "2"},
		Clock:   fixedClock(now),
	}

	allowed, remaining, err := c.Allow(ctx, "target")
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 1, remaining)

	allowed, _, err = c.Allow(ctx, "target")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = c.Allow(ctx, "target")
	require.NoError(t, err)
	require.False(t, allowed)

	// New window after 60 seconds.
	c.Clock = fixedClock(now.Add(time.Minute + time.Second))
	allowed, _, err = c.Allow(ctx, "target")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestAllowFailsOpenOnStoreError(t *testing.T) {
	store := &memoryBudgetStore{err: errors.New("store offline")}
	c := &Controller{Store: store}

	allowed, _, err := c.Allow(context.Background(), "target")
	require.Error(t, err)
	require.True(t, allowed)
}

func TestAllowWithoutStoreAdmits(t *testing.T) {
	c := &Controller{}
	allowed, _, err := c.Allow(context.Background(), "target")
	require.NoError(t, err)
	require.True(t, allowed)
}
