package mysql

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	domain "github.com/bryanwahyu/threatlens/internal/domain/analyst"
)

type AnalystRepository struct{ db *sql.DB }

func NewAnalystRepository(db *sql.DB) *AnalystRepository { return &AnalystRepository{db: db} }

// Save inserts an analysis record
func (r *AnalystRepository) Save(ctx context.Context, a *domain.Analysis) error {
	const q = `
INSERT INTO scan_analyses (id, scan_id, model, result_json, created_at)
VALUES (?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  scan_id = VALUES(scan_id),
  model = VALUES(model),
  result_json = VALUES(result_json)`
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, string(a.ID), a.ScanID, a.Model, jsonOrEmpty(a.Result), createdAt.UTC())
	return err
}

// Paginate returns a page of analysis records ordered by created_at desc
func (r *AnalystRepository) Paginate(ctx context.Context, page, pageSize int) ([]*domain.Analysis, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if page-1 > math.MaxInt32/pageSize {
		return []*domain.Analysis{}, nil
	}
	const q = `
SELECT id, scan_id, model, result_json, created_at
FROM scan_analyses
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LatestByScan returns nil, nil when the scan has no analysis.
func (r *AnalystRepository) LatestByScan(ctx context.Context, scanID string) (*domain.Analysis, error) {
	const q = `
SELECT id, scan_id, model, result_json, created_at
FROM scan_analyses
WHERE scan_id = ?
ORDER BY created_at DESC, id DESC
LIMIT 1`
	a, err := scanAnalysis(r.db.QueryRowContext(ctx, q, scanID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// result_json comes back as []byte from the JSON column.
func scanAnalysis(row rowScanner) (*domain.Analysis, error) {
	var (
		a   domain.Analysis
		raw []byte
	)
	if err := row.Scan(&a.ID, &a.ScanID, &a.Model, &raw, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Result = string(raw)
	return &a, nil
}
