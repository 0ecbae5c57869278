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

const candidateColumns = `id, product_id, retailer_id, url, status, score,
	reason, last_checked_at, first_live_at, created_at`

func scanCandidate(row interface{ Scan(...any) error }) (*core.Candidate, error) {
	var (
		candidate     core.Candidate
		reason        sql.NullString
		lastCheckedAt sql.NullInt64
		firstLiveAt   sql.NullInt64
		createdAt     int64
	)

	err := row.Scan(&candidate.ID, &candidate.ProductID, &candidate.RetailerID,
		&candidate.URL, (*string)(&candidate.Status), &candidate.Score,
		&reason, &lastCheckedAt, &firstLiveAt, &createdAt)
	if err != nil {
		return nil, err
	}

	candidate.Reason = reason.String
	if lastCheckedAt.Valid {
		value := time.Unix(lastCheckedAt.Int64, 0).UTC()
		candidate.LastCheckedAt = &value
	}
	if firstLiveAt.Valid {
		value := time.Unix(firstLiveAt.Int64, 0).UTC()
		candidate.FirstLiveAt = &value
	}
	candidate.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &candidate, nil
}

// AddCandidate records a discovered product URL. Re-adding an existing
// (product, retailer, url) triple is a no-op so discovery runs stay
// idempotent; the return value reports whether a new row was created.
func (s *Store) AddCandidate(ctx context.Context, productID string, retailerID int64, rawURL string, now time.Time) (bool, error) {
	if s == nil || s.DB == nil {
		return false, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	productID = strings.TrimSpace(productID)
	rawURL = strings.TrimSpace(rawURL)
	if productID == "" {
		return false, errors.New("product id is required")
	}
	if retailerID <= 0 {
		return false, errors.New("retailer id is required")
	}
	if rawURL == "" {
		return false, errors.New("url is required")
	}

	result, err := s.DB.ExecContext(ctx, `
		INSERT INTO url_candidates (product_id, retailer_id, url, status, score, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id, retailer_id, url) DO NOTHING
	`, productID, retailerID, rawURL, string(core.StatusUnknown), 0.5, now.UTC().Unix())
	if err != nil {
		return false, fmt.Errorf("store candidate: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store candidate: %w", err)
	}
	return affected > 0, nil
}

// GetCandidateByID returns one candidate, or nil when absent.
func (s *Store) GetCandidateByID(ctx context.Context, id int64) (*core.Candidate, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM url_candidates WHERE id = ?
	`, candidateColumns), id)

	candidate, err := scanCandidate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch candidate: %w", err)
	}

	return candidate, nil
}

// ListPendingCandidates selects the next batch to check: unknown and valid
// candidates of active retailers, least-recently-checked first. Invalid and
// live rows are excluded; an invalid candidate only re-enters through a
// fresh discovery insert.
func (s *Store) ListPendingCandidates(ctx context.Context, limit int) ([]core.Candidate, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM url_candidates
		WHERE status IN (?, ?)
			AND retailer_id IN (SELECT id FROM retailers WHERE active = 1)
		ORDER BY COALESCE(last_checked_at, 0) ASC, id ASC
		LIMIT ?
	`, candidateColumns), string(core.StatusUnknown), string(core.StatusValid), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending candidates: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var candidates []core.Candidate
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("list pending candidates: %w", err)
		}
		candidates = append(candidates, *candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending candidates: %w", err)
	}

	return candidates, nil
}

// CandidateQuery filters ListCandidates.
type CandidateQuery struct {
	RetailerID int64
	Status     core.CandidateStatus
	ProductID  string
	Limit      int
}

// ListCandidates returns candidates matching the query, newest first.
func (s *Store) ListCandidates(ctx context.Context, q CandidateQuery) ([]core.Candidate, error) {
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
	if q.RetailerID > 0 {
		clauses = append(clauses, "retailer_id = ?")
		args = append(args, q.RetailerID)
	}
	if q.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(q.Status))
	}
	if productID := strings.TrimSpace(q.ProductID); productID != "" {
		clauses = append(clauses, "product_id = ?")
		args = append(args, productID)
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
		SELECT %s FROM url_candidates
		%s
		ORDER BY id DESC
		LIMIT ?
	`, candidateColumns, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var candidates []core.Candidate
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("list candidates: %w", err)
		}
		candidates = append(candidates, *candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	return candidates, nil
}

// UpdateCandidateResult persists one check outcome. firstLiveAt is only
// written when the column is still empty, preserving the first-seen time
// across later transitions.
func (s *Store) UpdateCandidateResult(ctx context.Context, id int64, status core.CandidateStatus, score float64, reason string, checkedAt time.Time, firstLiveAt *time.Time) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if id <= 0 {
		return errors.New("candidate id is required")
	}

	var firstLive sql.NullInt64
	if firstLiveAt != nil {
		firstLive = sql.NullInt64{Int64: firstLiveAt.UTC().Unix(), Valid: true}
	}

	result, err := s.DB.ExecContext(ctx, `
		UPDATE url_candidates
		SET status = ?, score = ?, reason = ?, last_checked_at = ?,
			first_live_at = COALESCE(first_live_at, ?)
		WHERE id = ?
	`, string(status), core.ClampScore(score), reason, checkedAt.UTC().Unix(), firstLive, id)
	if err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("candidate %d not found", id)
	}

	return nil
}
