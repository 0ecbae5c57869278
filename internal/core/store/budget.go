package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stocklens/stocklens/internal/core"
)

// budgetWindowLength is the sliding-window size for shared request budgets.
const budgetWindowLength = time.Minute

// ConsumeBudget takes one slot from the retailer's shared request window.
// The read-check-increment runs inside a single write transaction, so
// concurrent pollers sharing the store cannot overshoot the limit. A denial
// does not consume a slot. The second return value is the count remaining
// in the window after this call.
func (s *Store) ConsumeBudget(ctx context.Context, slug string, limit int, now time.Time) (bool, int, error) {
	if s == nil || s.DB == nil {
		return false, 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	slug = strings.TrimSpace(slug)
	if slug == "" {
		return false, 0, errors.New("retailer slug is required")
	}
	if limit <= 0 {
		return false, 0, fmt.Errorf("budget limit must be positive, got %d", limit)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("begin budget transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	var (
		windowStart  int64
		requestCount int
	)
	err = tx.QueryRowContext(ctx, `
		SELECT window_start, request_count FROM budget_windows WHERE slug = ?
	`, slug).Scan(&windowStart, &requestCount)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		windowStart = now.UTC().Unix()
		requestCount = 0
	case err != nil:
		return false, 0, fmt.Errorf("read budget window: %w", err)
	}

	if now.UTC().Sub(time.Unix(windowStart, 0)) >= budgetWindowLength {
		windowStart = now.UTC().Unix()
		requestCount = 0
	}

	if requestCount >= limit {
		if err := tx.Commit(); err != nil {
			return false, 0, fmt.Errorf("commit budget window: %w", err)
		}
		return false, 0, nil
	}

	requestCount++
	_, err = tx.ExecContext(ctx, `
		INSERT INTO budget_windows (slug, window_start, request_count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			window_start = excluded.window_start,
			request_count = excluded.request_count,
			updated_at = excluded.updated_at
	`, slug, windowStart, requestCount, now.UTC().Unix())
	if err != nil {
		return false, 0, fmt.Errorf("store budget window: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("commit budget window: %w", err)
	}

	return true, limit - requestCount, nil
}

// GetBudgetWindow returns the stored window for a retailer, or nil when the
// retailer has not consumed budget yet.
func (s *Store) GetBudgetWindow(ctx context.Context, slug string) (*core.BudgetWindow, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, errors.New("retailer slug is required")
	}

	var (
		window      core.BudgetWindow
		windowStart int64
		updatedAt   sql.NullInt64
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT slug, window_start, request_count, updated_at
		FROM budget_windows
		WHERE slug = ?
	`, slug).Scan(&window.Slug, &windowStart, &window.RequestCount, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch budget window: %w", err)
	}

	window.WindowStart = time.Unix(windowStart, 0).UTC()
	if updatedAt.Valid {
		window.UpdatedAt = time.Unix(updatedAt.Int64, 0).UTC()
	}

	return &window, nil
}
