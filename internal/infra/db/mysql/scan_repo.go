package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
)

type ScanRepository struct{ db *sql.DB }

func NewScanRepository(db *sql.DB) *ScanRepository { return &ScanRepository{db: db} }

const scanColumns = `id, target_name, target_type, target_url, verdict, risk_score, confidence,
       threat_types, recommendations, created_at, scan_mode, vt_report_id,
       is_test_data, degraded, partial, engines, harmless, malicious, suspicious, undetected,
       sha256, sample_url, ai_summary`

// Save upserts a ScanResult. Identity columns never change once written.
func (r *ScanRepository) Save(ctx context.Context, s *domain.ScanResult) error {
	const q = `
INSERT INTO scan_results
(` + scanColumns + `)
VALUES (?,?,?,?,?,?,?,
        ?,?,?,?,?,
        ?,?,?,?,?,?,?,?,
        ?,?,?)
ON DUPLICATE KEY UPDATE
 verdict = VALUES(verdict),
 risk_score = VALUES(risk_score),
 confidence = VALUES(confidence),
 threat_types = VALUES(threat_types),
 recommendations = VALUES(recommendations),
 degraded = VALUES(degraded),
 partial = VALUES(partial),
 engines = VALUES(engines),
 harmless = VALUES(harmless),
 malicious = VALUES(malicious),
 suspicious = VALUES(suspicious),
 undetected = VALUES(undetected),
 sample_url = VALUES(sample_url),
 ai_summary = VALUES(ai_summary)`

	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		string(s.ID), s.TargetName, string(s.TargetType), s.TargetURL, string(s.Verdict), s.RiskScore, s.Confidence,
		encodeList(s.ThreatTypes), encodeList(s.Recommendations), created.UTC(), string(s.ScanMode), s.VTReportID,
		s.IsTestData, s.Degraded, s.Partial, s.Engines,
		s.Stats.Harmless, s.Stats.Malicious, s.Stats.Suspicious, s.Stats.Undetected,
		s.SHA256, s.SampleURL, s.AISummary,
	)
	return err
}

func (r *ScanRepository) Delete(ctx context.Context, id domain.ScanID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scan_results WHERE id = ?`, string(id))
	return err
}

func (r *ScanRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scan_results`)
	return err
}

// Latest returns up to limit results, newest first
func (r *ScanRepository) Latest(ctx context.Context, limit int) ([]*domain.ScanResult, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + scanColumns + ` FROM scan_results ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.ScanResult{}
	for rows.Next() {
		var (
			s              domain.ScanResult
			threats, recos []byte
		)
		if err := rows.Scan(
			&s.ID, &s.TargetName, &s.TargetType, &s.TargetURL, &s.Verdict, &s.RiskScore, &s.Confidence,
			&threats, &recos, &s.CreatedAt, &s.ScanMode, &s.VTReportID,
			&s.IsTestData, &s.Degraded, &s.Partial, &s.Engines,
			&s.Stats.Harmless, &s.Stats.Malicious, &s.Stats.Suspicious, &s.Stats.Undetected,
			&s.SHA256, &s.SampleURL, &s.AISummary,
		); err != nil {
			return nil, err
		}
		if s.ThreatTypes, err = decodeList(threats); err != nil {
			return nil, fmt.Errorf("scan %s threat_types: %w", s.ID, err)
		}
		if s.Recommendations, err = decodeList(recos); err != nil {
			return nil, fmt.Errorf("scan %s recommendations: %w", s.ID, err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
