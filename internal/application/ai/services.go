package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/threatlens/internal/application"
	"github.com/bryanwahyu/threatlens/internal/domain/ai"
	"github.com/bryanwahyu/threatlens/internal/domain/analyst"
	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
)

// ResultStore is what the explain flow needs from the result store.
type ResultStore interface {
	Get(id domain.ScanID) (domain.ScanResult, bool)
	Update(ctx context.Context, id domain.ScanID, fn func(*domain.ScanResult)) (domain.ScanResult, error)
}

type Service struct {
	client   ai.Client
	store    ResultStore
	analyses analyst.Repository // optional
	model    string
	clock    application.Clock
	log      *slog.Logger
}

func NewService(client ai.Client, store ResultStore, analyses analyst.Repository, model string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		client:   client,
		store:    store,
		analyses: analyses,
		model:    model,
		clock:    application.SystemClock{},
		log:      logger.With("area", "ai"),
	}
}

// WithClock overrides the clock, for tests.
func (s *Service) WithClock(c application.Clock) *Service {
	s.clock = c
	return s
}

// Explain asks the model about a stored scan, keeps the raw answer and
// copies its summary onto the scan.
func (s *Service) Explain(ctx context.Context, id domain.ScanID) (*analyst.Analysis, domain.ScanResult, error) {
	res, ok := s.store.Get(id)
	if !ok {
		return nil, domain.ScanResult{}, domain.ErrNotFound
	}

	input, err := json.Marshal(analyst.NewScanInput(res))
	if err != nil {
		return nil, domain.ScanResult{}, fmt.Errorf("encode scan input: %w", err)
	}

	start := time.Now()
	raw, err := s.client.Explain(ctx, string(input))
	if err != nil {
		s.log.Error("explain failed", "scan_id", id, "err", err)
		return nil, domain.ScanResult{}, err
	}
	exp, err := analyst.ParseExplanation(raw)
	if err != nil {
		return nil, domain.ScanResult{}, fmt.Errorf("parse explanation: %w", err)
	}

	a := &analyst.Analysis{
		ID:        analyst.AnalysisID(uuid.NewString()),
		ScanID:    string(id),
		Model:     s.model,
		Result:    raw,
		CreatedAt: s.clock.Now(),
	}
	if s.analyses != nil {
		if err := s.analyses.Save(ctx, a); err != nil {
			return nil, domain.ScanResult{}, fmt.Errorf("save analysis: %w", err)
		}
	}

	updated, err := s.store.Update(ctx, id, func(r *domain.ScanResult) {
		r.AISummary = exp.Summary
	})
	if err != nil {
		return nil, domain.ScanResult{}, err
	}
	s.log.Info("scan explained", "scan_id", id, "model", s.model, "took", time.Since(start))
	return a, updated, nil
}

// Latest returns the newest stored explanation for a scan.
func (s *Service) Latest(ctx context.Context, id domain.ScanID) (*analyst.Analysis, error) {
	if s.analyses == nil {
		return nil, domain.ErrNotFound
	}
	a, err := s.analyses.LatestByScan(ctx, string(id))
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

// History pages through all explanations, newest first.
func (s *Service) History(ctx context.Context, page, pageSize int) ([]*analyst.Analysis, error) {
	if s.analyses == nil {
		return []*analyst.Analysis{}, nil
	}
	return s.analyses.Paginate(ctx, page, pageSize)
}
