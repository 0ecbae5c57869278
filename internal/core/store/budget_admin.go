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

// BudgetQuery selects budget windows for the admin commands.
type BudgetQuery struct {
	All    bool
	Slug   string
	Prefix string
}

func (q BudgetQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Slug) != "" {
		return nil
	}
	if strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --slug, or --prefix")
}

func (q BudgetQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if slug := strings.TrimSpace(q.Slug); slug != "" {
		return "WHERE slug = ?", []any{slug}, nil
	}
	prefix := strings.TrimSpace(q.Prefix)
	if prefix == "" {
		return "", nil, errors.New("prefix is required")
	}
	return "WHERE slug LIKE ?", []any{prefix + "%"}, nil
}

// ListBudgetWindows returns budget windows matching the query.
func (s *Store) ListBudgetWindows(ctx context.Context, q BudgetQuery) ([]core.BudgetWindow, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT slug, window_start, request_count, updated_at
		FROM budget_windows
		%s
		ORDER BY slug
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list budget windows: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	windows := []core.BudgetWindow{}
	for rows.Next() {
		var (
			window      core.BudgetWindow
			windowStart int64
			updatedAt   sql.NullInt64
		)
		if err := rows.Scan(&window.Slug, &windowStart, &window.RequestCount, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan budget windows: %w", err)
		}

		window.WindowStart = time.Unix(windowStart, 0).UTC()
		if updatedAt.Valid {
			window.UpdatedAt = time.Unix(updatedAt.Int64, 0).UTC()
		}

		windows = append(windows, window)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list budget windows: %w", err)
	}

	return windows, nil
}

// CountBudgetWindows counts budget windows matching the query.
func (s *Store) CountBudgetWindows(ctx context.Context, q BudgetQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM budget_windows
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count budget windows: %w", err)
	}
	return count, nil
}

// ResetBudgetWindows deletes budget windows matching the query and returns
// the number of rows removed. A deleted window restarts full on its next
// consume.
func (s *Store) ResetBudgetWindows(ctx context.Context, q BudgetQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM budget_windows
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset budget windows: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset budget windows: %w", err)
	}
	return affected, nil
}
