package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stocklens/stocklens/internal/core"
)

// PublishSignal appends an availability signal. The store doubles as the
// downstream pipeline's inbox, so rows are immutable once written.
func (s *Store) PublishSignal(ctx context.Context, signal core.Signal) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(signal.ID) == "" {
		return errors.New("signal id is required")
	}
	if strings.TrimSpace(signal.ProductID) == "" {
		return errors.New("signal product id is required")
	}
	if strings.TrimSpace(signal.SignalType) == "" {
		return errors.New("signal type is required")
	}

	createdAt := signal.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO availability_signals (id, product_id, retailer_id, signal_type,
			signal_value, confidence, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, signal.ID, signal.ProductID, signal.RetailerID, signal.SignalType,
		signal.Value, signal.Confidence, signal.Source, createdAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store signal: %w", err)
	}

	return nil
}

// SignalQuery filters ListSignals.
type SignalQuery struct {
	ProductID  string
	RetailerID int64
	SignalType string
	Limit      int
}

// ListSignals returns signals matching the query, newest first.
func (s *Store) ListSignals(ctx context.Context, q SignalQuery) ([]core.Signal, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		clauses []string
		args    []any
	)
	if productID := strings.TrimSpace(q.ProductID); productID != "" {
		clauses = append(clauses, "product_id = ?")
		args = append(args, productID)
	}
	if q.RetailerID > 0 {
		clauses = append(clauses, "retailer_id = ?")
		args = append(args, q.RetailerID)
	}
	if signalType := strings.TrimSpace(q.SignalType); signalType != "" {
		clauses = append(clauses, "signal_type = ?")
		args = append(args, signalType)
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, product_id, retailer_id, signal_type, signal_value,
			confidence, source, created_at
		FROM availability_signals
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	var signals []core.Signal
	for rows.Next() {
		var (
			signal    core.Signal
			createdAt int64
		)
		if err := rows.Scan(&signal.ID, &signal.ProductID, &signal.RetailerID,
			&signal.SignalType, &signal.Value, &signal.Confidence,
			&signal.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scan signals: %w", err)
		}
		signal.CreatedAt = time.Unix(createdAt, 0).UTC()
		signals = append(signals, signal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}

	return signals, nil
}
