package scans

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a scan id is not in the store.
var ErrNotFound = errors.New("scan not found")

// RetryHintMessage is attached to every user-facing scan failure.
const RetryHintMessage = "please try again later or submit a new scan"

// SubmissionError: the provider rejected the upload or URL, or the request
// never reached it.
type SubmissionError struct {
	TargetType TargetType
	StatusCode int    // HTTP status, 0 on transport failure
	Code       string // provider error code, if any
	Err        error
}

func (e *SubmissionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "submit %s", e.TargetType)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ReportUnavailableError: the analysis finished but neither report shape
// could be fetched.
type ReportUnavailableError struct {
	ResourceID string
	Causes     []error
}

func (e *ReportUnavailableError) Error() string {
	return fmt.Sprintf("report unavailable for %s: %v", e.ResourceID, errors.Join(e.Causes...))
}

func (e *ReportUnavailableError) Unwrap() []error { return e.Causes }

// TimeoutError: the poll budget ran out without a completed status.
type TimeoutError struct {
	Handle   AnalysisHandle
	Mode     Mode
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("analysis %s not completed after %d %s polls", e.Handle, e.Attempts, e.Mode)
}

// ValidationError: input rejected before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Phase names the pipeline step an error belongs to.
func Phase(err error) string {
	var (
		sub *SubmissionError
		rep *ReportUnavailableError
		tmo *TimeoutError
		val *ValidationError
	)
	switch {
	case errors.As(err, &val):
		return "validate"
	case errors.As(err, &sub):
		return "submit"
	case errors.As(err, &tmo):
		return "poll"
	case errors.As(err, &rep):
		return "fetch"
	default:
		return "other"
	}
}

// IsUserFacing reports whether err belongs to the scan error taxonomy.
func IsUserFacing(err error) bool {
	return Phase(err) != "other"
}

// RetryHint returns the message shown next to a failed scan, or "" when err
// is not a scan failure.
func RetryHint(err error) string {
	var sub *SubmissionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &sub) && sub.StatusCode == 401:
		return "check the provider API key, then " + RetryHintMessage
	case Phase(err) == "validate":
		return "fix the input and submit again"
	case IsUserFacing(err):
		return RetryHintMessage
	default:
		return ""
	}
}
