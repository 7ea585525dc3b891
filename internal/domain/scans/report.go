package scans

// DetectionStats value object: aggregate engine counts reported by the provider.
type DetectionStats struct {
	Harmless   int `json:"harmless"`
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Undetected int `json:"undetected"`
}

// Total returns the sum of all counts.
func (s DetectionStats) Total() int {
	return s.Harmless + s.Malicious + s.Suspicious + s.Undetected
}

// EngineResult is one engine's verdict on the resource.
type EngineResult struct {
	Category string `json:"category"`
	Result   string `json:"result"`
}

// RawDetectionReport is the per-engine detection data of a finished analysis.
// It is transient: only the mapped ScanResult is kept.
type RawDetectionReport struct {
	ID         string                  `json:"id"`
	Stats      DetectionStats          `json:"stats"`
	Engines    map[string]EngineResult `json:"engines"`
	Reputation int                     `json:"reputation"`

	// Pending marks a report synthesized because the analysis never
	// finished; it carries no engine data.
	Pending bool `json:"pending,omitempty"`
}

// PendingReport is the placeholder used when express mode gives up waiting.
func PendingReport(id string) RawDetectionReport {
	return RawDetectionReport{ID: id, Engines: map[string]EngineResult{}, Pending: true}
}

// AnalysisStatus is the provider's answer to a status poll.
type AnalysisStatus struct {
	Status     string `json:"status"`
	ResourceID string `json:"resource_id,omitempty"`
}

// StatusCompleted is the only provider status trusted as "ready".
const StatusCompleted = "completed"

// Completed reports whether the provider explicitly said the analysis is done.
func (s AnalysisStatus) Completed() bool {
	return s.Status == StatusCompleted
}
