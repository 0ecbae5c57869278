package cmd

import (
	"context"
	"fmt"

	"github.com/stocklens/stocklens/internal/config"
	"github.com/stocklens/stocklens/internal/core/store"
)

// openStore loads configuration, opens the candidate store, and makes sure the
// schema and built-in retailer rows exist. Callers own the returned store.
func openStore(ctx context.Context) (*config.Config, *store.Store, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	if err := db.SeedBuiltInRetailers(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return cfg, db, nil
}
