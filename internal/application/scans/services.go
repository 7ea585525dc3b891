package scans

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/threatlens/internal/application"
	"github.com/bryanwahyu/threatlens/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
)

// DefaultMaxFileSize is the provider's upload limit for the plain /files endpoint.
const DefaultMaxFileSize int64 = 32 << 20

// ResultStore is the part of the result store the service writes to.
type ResultStore interface {
	Add(ctx context.Context, r domain.ScanResult) error
}

// Service implements the scan use-cases: submit, poll, map, store.
// Service is safe for concurrent use; each scan keeps its own state.
type Service struct {
	Provider    domain.Submitter
	Poller      *Poller
	Polling     PollConfig
	Store       ResultStore
	Errors      scanerrors.Repository // optional
	Artifacts   domain.ArtifactStore  // optional
	Clock       application.Clock
	Logger      *slog.Logger
	MaxFileSize int64

	// TestMode synthesizes results without touching the network.
	TestMode  bool
	Synthetic *Synthetic
}

//
// ==== USE CASES ====
//

func (s *Service) ScanFileExpress(ctx context.Context, content io.Reader, name string) (domain.ScanResult, error) {
	return s.ScanFile(ctx, content, name, domain.ModeExpress)
}

func (s *Service) ScanFileComprehensive(ctx context.Context, content io.Reader, name string) (domain.ScanResult, error) {
	return s.ScanFile(ctx, content, name, domain.ModeComprehensive)
}

func (s *Service) ScanURLExpress(ctx context.Context, rawURL string) (domain.ScanResult, error) {
	return s.ScanURL(ctx, rawURL, domain.ModeExpress)
}

func (s *Service) ScanURLComprehensive(ctx context.Context, rawURL string) (domain.ScanResult, error) {
	return s.ScanURL(ctx, rawURL, domain.ModeComprehensive)
}

// ScanFile reads content fully (bounded by MaxFileSize) and runs one scan.
func (s *Service) ScanFile(ctx context.Context, content io.Reader, name string, mode domain.Mode) (domain.ScanResult, error) {
	return s.Scan(ctx, domain.Submission{TargetType: domain.TargetFile, Name: name, Content: content, Mode: mode})
}

// ScanURL validates rawURL and runs one scan.
func (s *Service) ScanURL(ctx context.Context, rawURL string, mode domain.Mode) (domain.ScanResult, error) {
	return s.Scan(ctx, domain.Submission{TargetType: domain.TargetURL, Name: rawURL, URL: rawURL, Mode: mode})
}

// Scan runs the pipeline for one submission. Nothing is stored when ctx is
// cancelled before the result is ready.
func (s *Service) Scan(ctx context.Context, sub domain.Submission) (domain.ScanResult, error) {
	in, err := s.prepare(sub)
	if err != nil {
		return domain.ScanResult{}, err
	}
	log := s.logger().With("target", in.target.Name, "kind", in.target.Type, "mode", sub.Mode)

	if s.TestMode {
		res := s.synthetic().Result(in.target, sub.Mode, s.now())
		res.SHA256 = in.sha256
		log.Info("test mode scan", "verdict", res.Verdict, "id", res.ID)
		return s.store(ctx, sub, "", res)
	}

	// kirim ke provider, sekali saja tanpa retry
	var handle domain.AnalysisHandle
	if in.target.Type == domain.TargetFile {
		handle, err = s.Provider.SubmitFile(ctx, in.target.Name, in.content)
	} else {
		handle, err = s.Provider.SubmitURL(ctx, in.target.URL)
	}
	if err != nil {
		if ctx.Err() == nil {
			s.recordFailure(ctx, "submit", sub, in.target, "", err)
		}
		return domain.ScanResult{}, err
	}
	log = log.With("handle", handle)
	log.Info("submitted")

	sampleURL := s.archive(ctx, in, log)

	out, err := s.Poller.Poll(ctx, handle, s.Polling.Policy(sub.Mode, in.target.Type))
	if err != nil {
		if ctx.Err() == nil {
			phase := "poll"
			if out.State == StateFailed {
				phase = "fetch"
			}
			s.recordFailure(ctx, phase, sub, in.target, handle, err)
		}
		return domain.ScanResult{}, err
	}

	res := domain.MapReport(out.Report, in.target, sub.Mode, s.now())
	if res.ID == "" {
		res.ID = domain.ScanID(uuid.NewString())
	}
	res.SHA256 = in.sha256
	res.SampleURL = sampleURL
	res.Partial = out.State == StatePartialFallback && !res.Degraded
	switch {
	case res.Degraded:
		log.Warn("degraded result", "state", out.State, "attempts", out.Attempts)
	case res.Partial:
		log.Warn("partial result, analysis had not completed", "verdict", res.Verdict, "attempts", out.Attempts)
	default:
		log.Info("scan finished", "verdict", res.Verdict, "risk", res.RiskScore, "attempts", out.Attempts)
	}
	return s.store(ctx, sub, handle, res)
}

type prepared struct {
	target  domain.Target
	content []byte
	sha256  string
}

func (s *Service) prepare(sub domain.Submission) (prepared, error) {
	if sub.Mode != domain.ModeExpress && sub.Mode != domain.ModeComprehensive {
		return prepared{}, &domain.ValidationError{Field: "mode", Reason: fmt.Sprintf("unsupported mode %q", sub.Mode)}
	}

	switch sub.TargetType {
	case domain.TargetURL:
		u, err := domain.ValidateURL(sub.URL)
		if err != nil {
			return prepared{}, err
		}
		return prepared{target: domain.Target{Name: u, Type: domain.TargetURL, URL: u}}, nil

	case domain.TargetFile:
		name, err := domain.ValidateFileName(sub.Name)
		if err != nil {
			return prepared{}, err
		}
		if sub.Content == nil {
			return prepared{}, &domain.ValidationError{Field: "content", Reason: "missing file content"}
		}
		limit := s.MaxFileSize
		if limit <= 0 {
			limit = DefaultMaxFileSize
		}
		data, err := io.ReadAll(io.LimitReader(sub.Content, limit+1))
		if err != nil {
			return prepared{}, &domain.ValidationError{Field: "content", Reason: err.Error()}
		}
		if err := domain.ValidateContent(data, limit); err != nil {
			return prepared{}, err
		}
		sum := sha256.Sum256(data)
		return prepared{
			target:  domain.Target{Name: name, Type: domain.TargetFile},
			content: data,
			sha256:  hex.EncodeToString(sum[:]),
		}, nil

	default:
		return prepared{}, &domain.ValidationError{Field: "target_type", Reason: fmt.Sprintf("unsupported target type %q", sub.TargetType)}
	}
}

func (s *Service) store(ctx context.Context, sub domain.Submission, handle domain.AnalysisHandle, res domain.ScanResult) (domain.ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ScanResult{}, err
	}
	if s.Store == nil {
		return res, nil
	}
	if err := s.Store.Add(ctx, res); err != nil {
		s.recordFailure(ctx, "store", sub, domain.Target{Name: res.TargetName, Type: res.TargetType}, handle, err)
		return domain.ScanResult{}, fmt.Errorf("storing result: %w", err)
	}
	return res, nil
}

// archive uploads file samples when an artifact store is configured.
// Failures are logged and never fail the scan.
func (s *Service) archive(ctx context.Context, in prepared, log *slog.Logger) string {
	if s.Artifacts == nil || in.target.Type != domain.TargetFile {
		return ""
	}
	key := fmt.Sprintf("samples/%s/%s", in.sha256, in.target.Name)
	url, err := s.Artifacts.Upload(ctx, key, bytes.NewReader(in.content), int64(len(in.content)), http.DetectContentType(in.content))
	if err != nil {
		log.Warn("sample archive failed", "key", key, "err", err)
		return ""
	}
	return url
}

// recordFailure logs err and appends it to the failure log. phase is the
// pipeline step that failed: submit, poll, fetch or store.
func (s *Service) recordFailure(ctx context.Context, phase string, sub domain.Submission, target domain.Target, handle domain.AnalysisHandle, err error) {
	s.logger().Error("scan failed", "target", target.Name, "phase", phase, "handle", handle, "err", err)
	if s.Errors == nil {
		return
	}

	details := map[string]any{}
	var (
		serr *domain.SubmissionError
		terr *domain.TimeoutError
		rerr *domain.ReportUnavailableError
	)
	switch {
	case errors.As(err, &serr):
		details["status_code"] = serr.StatusCode
		details["code"] = serr.Code
	case errors.As(err, &terr):
		details["attempts"] = terr.Attempts
	case errors.As(err, &rerr):
		details["resource_id"] = rerr.ResourceID
	}
	raw, _ := json.Marshal(details)

	name := target.Name
	if name == "" {
		name = sub.Name
	}
	entry := &scanerrors.ScanError{
		Handle:      string(handle),
		Target:      name,
		TargetType:  string(sub.TargetType),
		Mode:        string(sub.Mode),
		Phase:       phase,
		Message:     err.Error(),
		DetailsJSON: string(raw),
		CreatedAt:   s.now(),
	}
	if saveErr := s.Errors.Save(context.WithoutCancel(ctx), entry); saveErr != nil {
		s.logger().Warn("failed to record scan error", "err", saveErr)
	}
}

// Failures lists the most recent recorded scan failures.
func (s *Service) Failures(ctx context.Context, limit int) ([]*scanerrors.ScanError, error) {
	if s.Errors == nil {
		return []*scanerrors.ScanError{}, nil
	}
	return s.Errors.Recent(ctx, limit)
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return application.SystemClock{}.Now()
	}
	return s.Clock.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

func (s *Service) synthetic() *Synthetic {
	if s.Synthetic == nil {
		return defaultSynthetic
	}
	return s.Synthetic
}
