package scanerrors

import "time"

// ScanError represents a persisted scan failure entry
type ScanError struct {
	ID          int64     `json:"id"`
	Handle      string    `json:"handle,omitempty"` // provider analysis id, empty when submit failed
	Target      string    `json:"target"`
	TargetType  string    `json:"target_type"`
	Mode        string    `json:"mode"`
	Phase       string    `json:"phase"` // validate | submit | poll | fetch | store
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
