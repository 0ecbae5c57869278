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

// SeedBuiltInRetailers ensures the bundled retailer profiles exist in the
// store. Existing rows are updated in place so operator edits to `active`
// survive a reseed.
func (s *Store) SeedBuiltInRetailers(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	for _, profile := range core.BuiltInRetailers {
		if err := s.upsertRetailerDefaults(ctx, profile, time.Now().UTC()); err != nil {
			return err
		}
	}

	return nil
}

// upsertRetailerDefaults inserts a built-in profile, or refreshes its
// defaults without touching the operator-owned active flag.
func (s *Store) upsertRetailerDefaults(ctx context.Context, profile core.RetailerProfile, updatedAt time.Time) error {
	if ctx == nil {
		ctx = context.Background()
	}

	slug := strings.TrimSpace(profile.Slug)
	if slug == "" {
		return errors.New("retailer slug is required")
	}

	active := 0
	if profile.Active {
		active = 1
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO retailers (slug, display_name, integration_type, base_url,
			requests_per_minute, requests_per_hour, timeout_ms, max_retries,
			retry_base_delay_ms, active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			display_name = excluded.display_name,
			integration_type = excluded.integration_type,
			base_url = excluded.base_url,
			requests_per_minute = excluded.requests_per_minute,
			requests_per_hour = excluded.requests_per_hour,
			timeout_ms = excluded.timeout_ms,
			max_retries = excluded.max_retries,
			retry_base_delay_ms = excluded.retry_base_delay_ms,
			updated_at = excluded.updated_at
	`, slug, profile.DisplayName, string(profile.Integration), profile.BaseURL,
		profile.RequestsPerMinute, profile.RequestsPerHour, profile.TimeoutMS,
		profile.MaxRetries, profile.RetryBaseDelayMS, active, updatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store retailer: %w", err)
	}

	return nil
}

const retailerColumns = `id, slug, display_name, integration_type, base_url,
	requests_per_minute, requests_per_hour, timeout_ms, max_retries,
	retry_base_delay_ms, active, updated_at`

func scanRetailer(row interface{ Scan(...any) error }) (*core.RetailerProfile, error) {
	var (
		profile   core.RetailerProfile
		baseURL   sql.NullString
		active    int
		updatedAt sql.NullInt64
	)

	err := row.Scan(&profile.ID, &profile.Slug, &profile.DisplayName,
		(*string)(&profile.Integration), &baseURL, &profile.RequestsPerMinute,
		&profile.RequestsPerHour, &profile.TimeoutMS, &profile.MaxRetries,
		&profile.RetryBaseDelayMS, &active, &updatedAt)
	if err != nil {
		return nil, err
	}

	profile.BaseURL = baseURL.String
	profile.Active = active == 1
	if updatedAt.Valid {
		profile.UpdatedAt = time.Unix(updatedAt.Int64, 0).UTC()
	}

	return &profile, nil
}

// GetRetailerBySlug returns one retailer profile, or nil when absent.
func (s *Store) GetRetailerBySlug(ctx context.Context, slug string) (*core.RetailerProfile, error) {
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

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM retailers WHERE slug = ?
	`, retailerColumns), slug)

	profile, err := scanRetailer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch retailer: %w", err)
	}

	return profile, nil
}

// GetRetailerByID returns one retailer profile, or nil when absent.
func (s *Store) GetRetailerByID(ctx context.Context, id int64) (*core.RetailerProfile, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if id <= 0 {
		return nil, errors.New("retailer id is required")
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM retailers WHERE id = ?
	`, retailerColumns), id)

	profile, err := scanRetailer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch retailer: %w", err)
	}

	return profile, nil
}

// ListRetailers returns all retailer profiles ordered by slug.
func (s *Store) ListRetailers(ctx context.Context) ([]core.RetailerProfile, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM retailers ORDER BY slug
	`, retailerColumns))
	if err != nil {
		return nil, fmt.Errorf("list retailers: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var profiles []core.RetailerProfile
	for rows.Next() {
		profile, err := scanRetailer(rows)
		if err != nil {
			return nil, fmt.Errorf("list retailers: %w", err)
		}
		profiles = append(profiles, *profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list retailers: %w", err)
	}

	return profiles, nil
}

// SetRetailerActive flips a retailer's active flag.
func (s *Store) SetRetailerActive(ctx context.Context, slug string, active bool) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	slug = strings.TrimSpace(slug)
	if slug == "" {
		return errors.New("retailer slug is required")
	}

	value := 0
	if active {
		value = 1
	}

	result, err := s.DB.ExecContext(ctx, `
		UPDATE retailers SET active = ?, updated_at = ? WHERE slug = ?
	`, value, time.Now().UTC().Unix(), slug)
	if err != nil {
		return fmt.Errorf("update retailer: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update retailer: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("retailer %q not found", slug)
	}

	return nil
}
