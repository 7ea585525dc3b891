// Package results owns the list of stored scan results. All mutation goes
// through Store, which serializes writers and mirrors changes to an optional
// Repository.
package results

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
)

// DefaultMaxScans is the retention cap.
const DefaultMaxScans = 50

type Store struct {
	mu    sync.RWMutex
	scans []domain.ScanResult // newest first
	max   int
	repo  domain.Repository
	log   *slog.Logger
}

// New creates an empty store. repo may be nil for a memory-only store.
func New(repo domain.Repository, maxScans int, logger *slog.Logger) *Store {
	if maxScans <= 0 {
		maxScans = DefaultMaxScans
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{max: maxScans, repo: repo, log: logger.With("area", "results")}
}

// Load replaces the in-memory list with the newest results from the repository.
func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.repo.Latest(ctx, s.max)
	if err != nil {
		return fmt.Errorf("loading scans: %w", err)
	}
	s.scans = s.scans[:0]
	for _, r := range list {
		if r != nil {
			s.scans = append(s.scans, *r)
		}
	}
	s.log.Info("loaded scans", "count", len(s.scans))
	return nil
}

// Add prepends r and drops the oldest entries beyond the cap.
func (s *Store) Add(ctx context.Context, r domain.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Save(ctx, &r); err != nil {
			return fmt.Errorf("saving scan %s: %w", r.ID, err)
		}
	}
	s.scans = slices.Insert(s.scans, 0, cloneResult(r))
	if len(s.scans) > s.max {
		evicted := s.scans[s.max:]
		s.scans = slices.Clip(s.scans[:s.max])
		s.evict(ctx, evicted)
	}
	return nil
}

// evict drops retention victims from the repository. Failures only leave
// stale rows behind, Load never reads past the cap.
func (s *Store) evict(ctx context.Context, victims []domain.ScanResult) {
	if s.repo == nil {
		return
	}
	for _, v := range victims {
		if err := s.repo.Delete(ctx, v.ID); err != nil {
			s.log.Warn("failed to evict scan", "id", v.ID, "err", err)
		}
	}
}

// Update applies fn to the stored copy of id. The id itself cannot change.
func (s *Store) Update(ctx context.Context, id domain.ScanID, fn func(*domain.ScanResult)) (domain.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return domain.ScanResult{}, domain.ErrNotFound
	}
	updated := cloneResult(s.scans[i])
	fn(&updated)
	updated.ID = id

	if s.repo != nil {
		if err := s.repo.Save(ctx, &updated); err != nil {
			return domain.ScanResult{}, fmt.Errorf("updating scan %s: %w", id, err)
		}
	}
	s.scans[i] = updated
	return cloneResult(updated), nil
}

// Remove deletes id. Removing an unknown id returns ErrNotFound.
func (s *Store) Remove(ctx context.Context, id domain.ScanID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return domain.ErrNotFound
	}
	if s.repo != nil {
		if err := s.repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("deleting scan %s: %w", id, err)
		}
	}
	s.scans = slices.Delete(s.scans, i, i+1)
	return nil
}

// Clear drops every stored scan.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Clear(ctx); err != nil {
			return fmt.Errorf("clearing scans: %w", err)
		}
	}
	s.scans = nil
	return nil
}

// Recent returns up to limit scans, newest first. limit <= 0 returns all.
func (s *Store) Recent(limit int) []domain.ScanResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.scans)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.ScanResult, n)
	for i := range n {
		out[i] = cloneResult(s.scans[i])
	}
	return out
}

// Get looks a scan up by id.
func (s *Store) Get(id domain.ScanID) (domain.ScanResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return domain.ScanResult{}, false
	}
	return cloneResult(s.scans[i]), true
}

// Metrics recomputes the derived view from the current list.
func (s *Store) Metrics() domain.Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ComputeMetrics(s.scans)
}

// Len returns the number of stored scans.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scans)
}

func (s *Store) indexOf(id domain.ScanID) int {
	return slices.IndexFunc(s.scans, func(r domain.ScanResult) bool { return r.ID == id })
}

// cloneResult copies the slices so callers never share backing arrays with the store.
func cloneResult(r domain.ScanResult) domain.ScanResult {
	r.ThreatTypes = slices.Clone(r.ThreatTypes)
	r.Recommendations = slices.Clone(r.Recommendations)
	return r
}
