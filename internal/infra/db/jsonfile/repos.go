package jsonfile

import (
	"context"
	"slices"

	"github.com/bryanwahyu/threatlens/internal/domain/analyst"
	"github.com/bryanwahyu/threatlens/internal/domain/scanerrors"
	"github.com/bryanwahyu/threatlens/internal/domain/scans"
)

// ScanRepository implements scans.Repository.
type ScanRepository struct{ f *File }

func (r *ScanRepository) Save(_ context.Context, s *scans.ScanResult) error {
	c := *s
	return r.f.mutate(func(d *document) {
		if i := slices.IndexFunc(d.Scans, func(x *scans.ScanResult) bool { return x.ID == s.ID }); i >= 0 {
			d.Scans[i] = &c
			return
		}
		d.Scans = slices.Insert(d.Scans, 0, &c)
	})
}

func (r *ScanRepository) Delete(_ context.Context, id scans.ScanID) error {
	return r.f.mutate(func(d *document) {
		d.Scans = slices.DeleteFunc(d.Scans, func(x *scans.ScanResult) bool { return x.ID == id })
	})
}

func (r *ScanRepository) Clear(context.Context) error {
	return r.f.mutate(func(d *document) { d.Scans = nil })
}

func (r *ScanRepository) Latest(_ context.Context, limit int) ([]*scans.ScanResult, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	n := len(r.f.doc.Scans)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*scans.ScanResult, 0, n)
	for _, s := range r.f.doc.Scans[:n] {
		c := *s
		out = append(out, &c)
	}
	return out, nil
}

// ErrorRepository implements scanerrors.Repository.
type ErrorRepository struct{ f *File }

func (r *ErrorRepository) Save(_ context.Context, e *scanerrors.ScanError) error {
	return r.f.mutate(func(d *document) {
		d.NextErr++
		e.ID = d.NextErr
		c := *e
		d.Errors = slices.Insert(d.Errors, 0, &c)
		if len(d.Errors) > maxErrors {
			d.Errors = d.Errors[:maxErrors]
		}
	})
}

func (r *ErrorRepository) Recent(_ context.Context, limit int) ([]*scanerrors.ScanError, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	n := len(r.f.doc.Errors)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*scanerrors.ScanError, 0, n)
	for _, e := range r.f.doc.Errors[:n] {
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

// AnalystRepository implements analyst.Repository.
type AnalystRepository struct{ f *File }

func (r *AnalystRepository) Save(_ context.Context, a *analyst.Analysis) error {
	c := *a
	return r.f.mutate(func(d *document) {
		d.Analyses = slices.DeleteFunc(d.Analyses, func(x *analyst.Analysis) bool { return x.ID == a.ID })
		d.Analyses = slices.Insert(d.Analyses, 0, &c)
	})
}

func (r *AnalystRepository) Paginate(_ context.Context, page, pageSize int) ([]*analyst.Analysis, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	total := len(r.f.doc.Analyses)
	if page-1 >= (total+pageSize-1)/pageSize {
		return []*analyst.Analysis{}, nil
	}
	start := (page - 1) * pageSize
	end := min(start+pageSize, total)
	out := make([]*analyst.Analysis, 0, end-start)
	for _, a := range r.f.doc.Analyses[start:end] {
		c := *a
		out = append(out, &c)
	}
	return out, nil
}

func (r *AnalystRepository) LatestByScan(_ context.Context, scanID string) (*analyst.Analysis, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, a := range r.f.doc.Analyses {
		if a.ScanID == scanID {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}
