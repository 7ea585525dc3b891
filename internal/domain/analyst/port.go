package analyst

import "context"

// Repository stores AI explanations. LatestByScan returns nil, nil when the scan has none.
type Repository interface {
	Save(ctx context.Context, a *Analysis) error
	Paginate(ctx context.Context, page, pageSize int) ([]*Analysis, error)
	LatestByScan(ctx context.Context, scanID string) (*Analysis, error)
}
