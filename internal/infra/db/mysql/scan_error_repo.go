package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/threatlens/internal/domain/scanerrors"
)

type ScanErrorRepository struct{ db *sql.DB }

func NewScanErrorRepository(db *sql.DB) *ScanErrorRepository { return &ScanErrorRepository{db: db} }

// Save inserts e and sets its generated id.
func (r *ScanErrorRepository) Save(ctx context.Context, e *domain.ScanError) error {
	const q = `
INSERT INTO scan_errors
  (handle, target, target_type, mode, phase, message, details_json, created_at)
VALUES (?,?,?,?,?,?,?,?)`
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := r.db.ExecContext(ctx, q,
		e.Handle, stringOrDash(e.Target), stringOrDash(e.TargetType), stringOrDash(e.Mode), stringOrDash(e.Phase),
		stringOrDash(e.Message), jsonOrEmpty(e.DetailsJSON), created.UTC(),
	)
	if err != nil {
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}

func (r *ScanErrorRepository) Recent(ctx context.Context, limit int) ([]*domain.ScanError, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, handle, target, target_type, mode, phase, message, details_json, created_at
FROM scan_errors
ORDER BY created_at DESC, id DESC
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.ScanError{}
	for rows.Next() {
		var (
			e       domain.ScanError
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.Handle, &e.Target, &e.TargetType, &e.Mode, &e.Phase, &e.Message, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.DetailsJSON = string(details)
		out = append(out, &e)
	}
	return out, rows.Err()
}
