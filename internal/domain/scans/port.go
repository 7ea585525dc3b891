package scans

import (
	"context"
	"io"
)

// Repository port (interface untuk persistence ScanResult)
type Repository interface {
	Save(ctx context.Context, s *ScanResult) error
	Delete(ctx context.Context, id ScanID) error
	Clear(ctx context.Context) error
	Latest(ctx context.Context, limit int) ([]*ScanResult, error)
}

// Submitter port: sends a file or URL to the provider. One network call per
// submission, never retried.
type Submitter interface {
	SubmitFile(ctx context.Context, name string, content []byte) (AnalysisHandle, error)
	SubmitURL(ctx context.Context, rawURL string) (AnalysisHandle, error)
}

// StatusChecker port: one status poll per call, no caching.
type StatusChecker interface {
	AnalysisStatus(ctx context.Context, h AnalysisHandle) (AnalysisStatus, error)
}

// ReportFetcher port: full detection report for a resource id.
type ReportFetcher interface {
	FetchReport(ctx context.Context, resourceID string) (RawDetectionReport, error)
}

// ArtifactStore port (penyimpanan sample file yang disubmit)
type ArtifactStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}
