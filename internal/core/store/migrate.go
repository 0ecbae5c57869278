package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS retailers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		integration_type TEXT NOT NULL,
		base_url TEXT,
		requests_per_minute INTEGER NOT NULL DEFAULT 6,
		requests_per_hour INTEGER NOT NULL DEFAULT 120,
		timeout_ms INTEGER NOT NULL DEFAULT 10000,
		max_retries INTEGER NOT NULL DEFAULT 2,
		retry_base_delay_ms INTEGER NOT NULL DEFAULT 1000,
		active INTEGER NOT NULL DEFAULT 1,
		updated_at INTEGER
	);`,
	`CREATE TABLE IF NOT EXISTS url_candidates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id TEXT NOT NULL,
		retailer_id INTEGER NOT NULL,
		url TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'unknown',
		score REAL NOT NULL DEFAULT 0.5,
		reason TEXT,
		last_checked_at INTEGER,
		created_at INTEGER NOT NULL,
		UNIQUE(product_id, retailer_id, url)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_url_candidates_pending ON url_candidates(status, last_checked_at);`,
	`CREATE INDEX IF NOT EXISTS idx_url_candidates_retailer ON url_candidates(retailer_id);`,
	`CREATE TABLE IF NOT EXISTS budget_windows (
		slug TEXT PRIMARY KEY,
		window_start INTEGER NOT NULL,
		request_count INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER
	);`,
	`CREATE TABLE IF NOT EXISTS dynamic_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER
	);`,
	`CREATE TABLE IF NOT EXISTS availability_signals (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		retailer_id INTEGER NOT NULL,
		signal_type TEXT NOT NULL,
		signal_value TEXT NOT NULL,
		confidence REAL NOT NULL,
		source TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_availability_signals_product ON availability_signals(product_id, created_at);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	// first_live_at postdates the original url_candidates schema.
	if err := s.ensureColumn(ctx, "url_candidates", "first_live_at", "INTEGER"); err != nil {
		return err
	}

	return nil
}

func (s *Store) ensureColumn(ctx context.Context, table, column, columnDef string) error {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("inspect %s schema: %w", table, err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("inspect %s columns: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect %s columns: %w", table, err)
	}

	if _, err := s.DB.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, columnDef)); err != nil {
		return fmt.Errorf("add %s.%s column: %w", table, column, err)
	}

	return nil
}
