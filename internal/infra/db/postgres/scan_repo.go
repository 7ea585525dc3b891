package postgres

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

// Save insert/update ScanResult record
func (r *ScanRepository) Save(ctx context.Context, s *domain.ScanResult) error {
	const q = `
INSERT INTO scan_results
(` + scanColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,
        $8::jsonb,$9::jsonb,$10,$11,$12,
        $13,$14,$15,$16,$17,$18,$19,$20,
        $21,$22,$23)
ON CONFLICT (id) DO UPDATE SET
 verdict = EXCLUDED.verdict,
 risk_score = EXCLUDED.risk_score,
 confidence = EXCLUDED.confidence,
 threat_types = EXCLUDED.threat_types,
 recommendations = EXCLUDED.recommendations,
 degraded = EXCLUDED.degraded,
 partial = EXCLUDED.partial,
 engines = EXCLUDED.engines,
 harmless = EXCLUDED.harmless,
 malicious = EXCLUDED.malicious,
 suspicious = EXCLUDED.suspicious,
 undetected = EXCLUDED.undetected,
 sample_url = EXCLUDED.sample_url,
 ai_summary = EXCLUDED.ai_summary;`

	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.TargetName, s.TargetType, s.TargetURL, s.Verdict, s.RiskScore, s.Confidence,
		encodeList(s.ThreatTypes), encodeList(s.Recommendations), created, s.ScanMode, s.VTReportID,
		s.IsTestData, s.Degraded, s.Partial, s.Engines,
		s.Stats.Harmless, s.Stats.Malicious, s.Stats.Suspicious, s.Stats.Undetected,
		s.SHA256, s.SampleURL, s.AISummary,
	)
	return err
}

func (r *ScanRepository) Delete(ctx context.Context, id domain.ScanID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scan_results WHERE id = $1`, id)
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
	q := `SELECT ` + scanColumns + ` FROM scan_results ORDER BY created_at DESC, id DESC LIMIT $1`
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
