package scans

import "math"

// TrendWindow is how many recent risk scores the trend series carries.
const TrendWindow = 7

// Metrics is a derived view over the stored scans, recomputed on every call.
type Metrics struct {
	TotalScans        int                `json:"total_scans"`
	ThreatsDetected   int                `json:"threats_detected"`
	ThreatRate        int                `json:"threat_rate"`
	AverageRiskScore  int                `json:"average_risk_score"`
	AverageConfidence int                `json:"average_confidence"`
	ByTargetType      map[TargetType]int `json:"by_target_type"`
	ByVerdict         map[Verdict]int    `json:"by_verdict"`
	ThreatTypeCounts  map[string]int     `json:"threat_type_counts"`
	RiskTrend         []int              `json:"risk_trend"`
	DegradedScans     int                `json:"degraded_scans"`
	TestDataScans     int                `json:"test_data_scans"`
}

// ComputeMetrics expects scans newest first, as the store keeps them.
func ComputeMetrics(list []ScanResult) Metrics {
	m := Metrics{
		ByTargetType:     map[TargetType]int{TargetFile: 0, TargetURL: 0},
		ByVerdict:        map[Verdict]int{},
		ThreatTypeCounts: map[string]int{},
		RiskTrend:        []int{},
	}
	if len(list) == 0 {
		return m
	}

	var riskSum, confSum int
	for _, s := range list {
		m.TotalScans++
		if s.Verdict.IsThreat() {
			m.ThreatsDetected++
		}
		if s.Degraded {
			m.DegradedScans++
		}
		if s.IsTestData {
			m.TestDataScans++
		}
		riskSum += s.RiskScore
		confSum += s.Confidence
		m.ByTargetType[s.TargetType]++
		m.ByVerdict[s.Verdict]++
		for _, t := range s.ThreatTypes {
			m.ThreatTypeCounts[t]++
		}
	}

	n := float64(m.TotalScans)
	m.AverageRiskScore = int(math.Round(float64(riskSum) / n))
	m.AverageConfidence = int(math.Round(float64(confSum) / n))
	m.ThreatRate = int(math.Round(float64(m.ThreatsDetected) / n * 100))

	// oldest first
	k := min(TrendWindow, len(list))
	for i := k - 1; i >= 0; i-- {
		m.RiskTrend = append(m.RiskTrend, list[i].RiskScore)
	}
	return m
}
