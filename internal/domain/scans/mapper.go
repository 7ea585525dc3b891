package scans

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Target identifies what was scanned.
type Target struct {
	Name string
	Type TargetType
	URL  string
}

// threatKeywords is scanned in this order; the label is what ends up in ThreatTypes.
var threatKeywords = []struct {
	keyword string
	label   string
}{
	{"trojan", "Trojan"},
	{"virus", "Virus"},
	{"malware", "Malware"},
	{"adware", "Adware"},
	{"spyware", "Spyware"},
	{"ransomware", "Ransomware"},
	{"phishing", "Phishing"},
	{"suspicious", "Suspicious"},
}

var baseRecommendations = map[Verdict][]string{
	VerdictMalicious: {
		"Do not open, run or visit this target",
		"Delete the file or block the URL immediately",
		"Run a full system scan with an up-to-date antivirus",
		"Update your operating system and applications",
	},
	VerdictSuspicious: {
		"Proceed with caution before opening or visiting this target",
		"Re-scan later once more engines have reported",
		"Do not use this target in production environments",
		"Escalate to your security team for manual review",
	},
	VerdictHarmless: {
		"No security engine flagged this target",
		"Keep monitoring for unusual behavior",
	},
	VerdictUnknown: {
		"The safety of this target could not be determined, proceed with caution",
		"Scan again later for a complete result",
	},
}

// threatRecommendations are appended after the base list when the label is present.
var threatRecommendations = map[string]string{
	"Trojan":     "Change passwords used on this device from a clean machine",
	"Spyware":    "Review recent account activity for unauthorized access",
	"Adware":     "Remove unknown browser extensions and reset browser settings",
	"Ransomware": "Verify your backups are intact and stored offline",
	"Phishing":   "Verify the sender before entering credentials or clicking links",
}

const pendingRecommendation = "Analysis did not finish in time, treat this result as provisional"

// MapReport turns a provider report into a ScanResult. It is pure: at is
// used as CreatedAt and nothing outside the arguments is read.
func MapReport(r RawDetectionReport, target Target, mode Mode, at time.Time) ScanResult {
	total := len(r.Engines)
	verdict := DetermineVerdict(r.Stats)
	threats := ExtractThreatTypes(r.Engines)

	res := ScanResult{
		TargetName:      target.Name,
		TargetType:      target.Type,
		TargetURL:       target.URL,
		Verdict:         verdict,
		RiskScore:       RiskScore(r.Stats, total),
		Confidence:      Confidence(r.Stats, total),
		ThreatTypes:     threats,
		Recommendations: Recommendations(verdict, threats),
		CreatedAt:       at,
		ScanMode:        mode,
		VTReportID:      r.ID,
		Engines:         total,
		Stats:           r.Stats,
	}
	if r.ID != "" && !r.Pending {
		res.ID = ScanID(fmt.Sprintf("%s-%d", r.ID, at.UnixMilli()))
	}
	if r.Pending {
		res.Degraded = true
		res.Verdict = VerdictUnknown
		res.RiskScore = 0
		res.Confidence = 0
		res.ThreatTypes = []string{}
		res.Recommendations = append(Recommendations(VerdictUnknown, nil), pendingRecommendation)
	}
	return res
}

// DetermineVerdict: malicious > suspicious > harmless/undetected > unknown.
func DetermineVerdict(s DetectionStats) Verdict {
	switch {
	case s.Malicious > 0:
		return VerdictMalicious
	case s.Suspicious > 0:
		return VerdictSuspicious
	case s.Harmless > 0 || s.Undetected > 0:
		return VerdictHarmless
	default:
		return VerdictUnknown
	}
}

// RiskScore weighs malicious detections double. Zero engines means no data, score 0.
func RiskScore(s DetectionStats, totalEngines int) int {
	if totalEngines <= 0 {
		return 0
	}
	score := float64(s.Malicious*2+s.Suspicious) / float64(totalEngines*2) * 100
	return clampPercent(score)
}

// Confidence is the share of engines that flagged anything.
func Confidence(s DetectionStats, totalEngines int) int {
	if totalEngines <= 0 {
		return 0
	}
	return clampPercent(float64(s.Malicious+s.Suspicious) / float64(totalEngines) * 100)
}

func clampPercent(v float64) int {
	n := int(math.Round(v))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// ExtractThreatTypes returns the deduplicated threat labels found in engine
// result strings, in keyword order. Clean and Undetected results are skipped.
func ExtractThreatTypes(engines map[string]EngineResult) []string {
	found := make(map[string]bool, len(threatKeywords))
	for _, e := range engines {
		res := strings.ToLower(strings.TrimSpace(e.Result))
		if res == "" || res == "clean" || res == "undetected" {
			continue
		}
		for _, k := range threatKeywords {
			if strings.Contains(res, k.keyword) {
				found[k.label] = true
			}
		}
	}

	out := make([]string, 0, len(found))
	for _, k := range threatKeywords {
		if found[k.label] {
			out = append(out, k.label)
		}
	}
	return out
}

// Recommendations: verdict base list first, then threat-specific tips in keyword order.
func Recommendations(v Verdict, threats []string) []string {
	base, ok := baseRecommendations[v]
	if !ok {
		base = baseRecommendations[VerdictUnknown]
	}
	out := make([]string, 0, len(base)+len(threats))
	out = append(out, base...)

	has := make(map[string]bool, len(threats))
	for _, t := range threats {
		has[t] = true
	}
	for _, k := range threatKeywords {
		if tip, ok := threatRecommendations[k.label]; ok && has[k.label] {
			out = append(out, tip)
		}
	}
	return out
}
