package scans_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/bryanwahyu/threatlens/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
)

// scriptedStatus answers status polls from a script; the last entry repeats.
type scriptedStatus struct {
	mu      sync.Mutex
	script  []statusStep
	calls   int
	handles []domain.AnalysisHandle
	onCall  func(n int)
}

type statusStep struct {
	status domain.AnalysisStatus
	err    error
}

func pending() statusStep { return statusStep{status: domain.AnalysisStatus{Status: "queued"}} }

func done(resourceID string) statusStep {
	return statusStep{status: domain.AnalysisStatus{Status: domain.StatusCompleted, ResourceID: resourceID}}
}

func (s *scriptedStatus) AnalysisStatus(_ context.Context, h domain.AnalysisHandle) (domain.AnalysisStatus, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.handles = append(s.handles, h)
	step := s.script[min(n, len(s.script))-1]
	hook := s.onCall
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return step.status, step.err
}

func (s *scriptedStatus) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeReports struct {
	mu     sync.Mutex
	report domain.RawDetectionReport
	err    error
	asked  []string
}

func (f *fakeReports) FetchReport(_ context.Context, id string) (domain.RawDetectionReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, id)
	if f.err != nil {
		return domain.RawDetectionReport{}, f.err
	}
	return f.report, nil
}

// sleepRecorder never actually waits.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	if d > 0 {
		s.waits = append(s.waits, d)
	}
	s.mu.Unlock()
	return ctx.Err()
}

type fakeSubmitter struct {
	mu     sync.Mutex
	handle domain.AnalysisHandle
	err    error
	files  map[string][]byte
	urls   []string
	calls  int
}

func (f *fakeSubmitter) SubmitFile(_ context.Context, name string, content []byte) (domain.AnalysisHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.files == nil {
		f.files = map[string][]byte{}
	}
	f.files[name] = content
	return f.handle, f.err
}

func (f *fakeSubmitter) SubmitURL(_ context.Context, rawURL string) (domain.AnalysisHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.urls = append(f.urls, rawURL)
	return f.handle, f.err
}

type fakeArtifacts struct {
	keys []string
	body []byte
	err  error
}

func (f *fakeArtifacts) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	f.body, _ = io.ReadAll(r)
	return "s3://samples/" + key, nil
}

type memErrors struct {
	mu      sync.Mutex
	entries []*scanerrors.ScanError
}

func (m *memErrors) Save(_ context.Context, e *scanerrors.ScanError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memErrors) Recent(_ context.Context, limit int) ([]*scanerrors.ScanError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*scanerrors.ScanError, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}


var errBoom = errors.New("boom")

func sampleReport(id string) domain.RawDetectionReport {
	return domain.RawDetectionReport{
		ID:    id,
		Stats: domain.DetectionStats{Malicious: 2, Harmless: 1, Undetected: 1},
		Engines: map[string]domain.EngineResult{
			"A": {Category: "malicious", Result: "Trojan.Agent"},
			"B": {Category: "malicious", Result: "Win32.Virus"},
			"C": {Category: "harmless", Result: "clean"},
			"D": {Category: "undetected"},
		},
	}
}
