package scans

import (
	"io"
	"time"
)

// ID tipe untuk ScanResult
type ScanID string

// TargetType enum
type TargetType string

const (
	TargetFile TargetType = "file"
	TargetURL  TargetType = "url"
)

// Mode enum: timing policy used while waiting for the provider.
type Mode string

const (
	ModeExpress       Mode = "express"
	ModeComprehensive Mode = "comprehensive"
)

// ParseMode accepts an empty string as express.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeExpress:
		return ModeExpress, nil
	case ModeComprehensive:
		return ModeComprehensive, nil
	default:
		return "", &ValidationError{Field: "mode", Reason: "must be express or comprehensive"}
	}
}

// Verdict enum
type Verdict string

const (
	VerdictHarmless   Verdict = "harmless"
	VerdictSuspicious Verdict = "suspicious"
	VerdictMalicious  Verdict = "malicious"
	VerdictUnknown    Verdict = "unknown"
)

// IsThreat reports whether the verdict counts towards the threat total.
func (v Verdict) IsThreat() bool {
	return v == VerdictMalicious || v == VerdictSuspicious
}

// Submission describes one thing to scan. Content is read once by the
// transport; URL is only set for TargetURL.
type Submission struct {
	TargetType TargetType
	Name       string
	Content    io.Reader
	URL        string
	Mode       Mode
}

// AnalysisHandle is the opaque id the provider returns after a submission.
type AnalysisHandle string

// Aggregate Root: ScanResult
type ScanResult struct {
	ID              ScanID         `json:"id"`
	TargetName      string         `json:"target_name"`
	TargetType      TargetType     `json:"target_type"`
	TargetURL       string         `json:"target_url,omitempty"`
	Verdict         Verdict        `json:"verdict"`
	RiskScore       int            `json:"risk_score"`
	Confidence      int            `json:"confidence"`
	ThreatTypes     []string       `json:"threat_types"`
	Recommendations []string       `json:"recommendations"`
	CreatedAt       time.Time      `json:"created_at"`
	ScanMode        Mode           `json:"scan_mode"`
	VTReportID      string         `json:"vt_report_id,omitempty"`
	IsTestData      bool           `json:"is_test_data,omitempty"`
	Degraded        bool           `json:"degraded,omitempty"`
	Partial         bool           `json:"partial,omitempty"` // report fetched before the analysis completed
	Engines         int            `json:"engines"`
	Stats           DetectionStats `json:"stats"`
	SHA256          string         `json:"sha256,omitempty"`
	SampleURL       string         `json:"sample_url,omitempty"`
	AISummary       string         `json:"ai_summary,omitempty"`
}
