package analyst

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/bryanwahyu/threatlens/internal/domain/scans"
)

// Explanation is the JSON shape the explain prompt asks for.
type Explanation struct {
	Summary   string   `json:"summary"`
	RiskLevel string   `json:"risk_level"`
	Details   string   `json:"details"`
	NextSteps []string `json:"next_steps"`
}

// ErrEmptyExplanation is returned when the model answered without a summary.
var ErrEmptyExplanation = errors.New("explanation has no summary")

// ParseExplanation decodes raw model output. Code fences are tolerated.
func ParseExplanation(raw string) (Explanation, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var e Explanation
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &e); err != nil {
		return Explanation{}, err
	}
	if strings.TrimSpace(e.Summary) == "" {
		return Explanation{}, ErrEmptyExplanation
	}
	return e, nil
}

// ScanInput is the subset of a scan result sent to the model.
type ScanInput struct {
	Target          string         `json:"target"`
	TargetType      string         `json:"target_type"`
	Verdict         string         `json:"verdict"`
	RiskScore       int            `json:"risk_score"`
	Confidence      int            `json:"confidence"`
	ThreatTypes     []string       `json:"threat_types"`
	Engines         int            `json:"engines"`
	Stats           map[string]int `json:"stats"`
	Degraded        bool           `json:"degraded"`
	Partial         bool           `json:"partial,omitempty"`
	Recommendations []string       `json:"recommendations"`
}

// NewScanInput drops ids, timestamps and storage details from r.
func NewScanInput(r scans.ScanResult) ScanInput {
	return ScanInput{
		Target:      r.TargetName,
		TargetType:  string(r.TargetType),
		Verdict:     string(r.Verdict),
		RiskScore:   r.RiskScore,
		Confidence:  r.Confidence,
		ThreatTypes: r.ThreatTypes,
		Engines:     r.Engines,
		Stats: map[string]int{
			"harmless":   r.Stats.Harmless,
			"malicious":  r.Stats.Malicious,
			"suspicious": r.Stats.Suspicious,
			"undetected": r.Stats.Undetected,
		},
		Degraded:        r.Degraded,
		Partial:         r.Partial,
		Recommendations: r.Recommendations,
	}
}
