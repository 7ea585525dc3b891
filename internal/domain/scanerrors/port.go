package scanerrors

import "context"

// Repository keeps the failure log, newest first on Recent.
type Repository interface {
	Save(ctx context.Context, e *ScanError) error
	Recent(ctx context.Context, limit int) ([]*ScanError, error)
}
