//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/stocklens/stocklens/internal/core"
)

func TestPublishAndListSignals(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i, productID := range []string{"p1", "p1", "p2"} {
		signal := core.Signal{
			ID:         uuid.NewString(),
			ProductID:  productID,
			RetailerID: int64(i%2 + 1),
			SignalType: core.SignalTypeURLLive,
			Value:      "https://www.target.com/p/a/-/A-1",
			Confidence: 0.9,
			Source:     "url_candidate_checker",
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.PublishSignal(ctx, signal))
	}

	all, err := s.ListSignals(ctx, SignalQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	// Newest first.
	require.Equal(t, "p2", all[0].ProductID)

	byProduct, err := s.ListSignals(ctx, SignalQuery{ProductID: "p1"})
	require.NoError(t, err)
	require.Len(t, byProduct, 2)

	byRetailer, err := s.ListSignals(ctx, SignalQuery{RetailerID: 2})
	require.NoError(t, err)
	require.Len(t, byRetailer, 1)

	require.Error(t, s.PublishSignal(ctx, core.Signal{ProductID: "p3"}))
}
