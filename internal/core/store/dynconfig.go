package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DynamicConfigEntry is one key/value pair from the dynamic config store.
type DynamicConfigEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetDynamicConfig returns the value for a key. The second return value
// reports whether the key exists.
func (s *Store) GetDynamicConfig(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.DB == nil {
		return "", false, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, errors.New("config key is required")
	}

	var value string
	err := s.DB.QueryRowContext(ctx, `
		SELECT value FROM dynamic_config WHERE key = ?
	`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("fetch dynamic config: %w", err)
	}

	return value, true, nil
}

// SetDynamicConfig writes a key/value pair, replacing any previous value.
func (s *Store) SetDynamicConfig(ctx context.Context, key, value string, now time.Time) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("config key is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO dynamic_config (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, now.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store dynamic config: %w", err)
	}

	return nil
}

// DeleteDynamicConfig removes a key. Deleting an absent key is not an error.
func (s *Store) DeleteDynamicConfig(ctx context.Context, key string) (bool, error) {
	if s == nil || s.DB == nil {
		return false, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return false, errors.New("config key is required")
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM dynamic_config WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete dynamic config: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete dynamic config: %w", err)
	}
	return affected > 0, nil
}

// ListDynamicConfig returns entries whose key starts with prefix, ordered
// by key. An empty prefix lists everything.
func (s *Store) ListDynamicConfig(ctx context.Context, prefix string) ([]DynamicConfigEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where := ""
	var args []any
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		where = "WHERE key LIKE ?"
		args = append(args, prefix+"%")
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT key, value, updated_at
		FROM dynamic_config
		%s
		ORDER BY key
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list dynamic config: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []DynamicConfigEntry{}
	for rows.Next() {
		var (
			entry     DynamicConfigEntry
			updatedAt sql.NullInt64
		)
		if err := rows.Scan(&entry.Key, &entry.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan dynamic config: %w", err)
		}
		if updatedAt.Valid {
			entry.UpdatedAt = time.Unix(updatedAt.Int64, 0).UTC()
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list dynamic config: %w", err)
	}

	return entries, nil
}
