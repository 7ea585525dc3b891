package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appai "github.com/bryanwahyu/threatlens/internal/application/ai"
	"github.com/bryanwahyu/threatlens/internal/application/results"
	appscans "github.com/bryanwahyu/threatlens/internal/application/scans"
	domai "github.com/bryanwahyu/threatlens/internal/domain/ai"
	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
	"github.com/bryanwahyu/threatlens/internal/middleware"
)

// multipart overhead allowed on top of the file size limit
const uploadSlack = 1 << 20

// Deps is everything the router serves. AI, Limiter, Health and Ready are optional.
type Deps struct {
	Scans            *appscans.Service
	Results          *results.Store
	AI               *appai.Service
	Metrics          *middleware.Metrics
	Limiter          *middleware.RateLimiter
	APIKeys          map[string]string
	CORSOrigins      []string
	BlockPrivateURLs bool
	Health           map[string]middleware.HealthChecker
	Ready            func() bool
	Logger           *slog.Logger
}

type Router struct {
	scansSvc     *appscans.Service
	results      *results.Store
	aiSvc        *appai.Service
	metrics      *middleware.Metrics
	blockPrivate bool
	log          *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.Metrics == nil {
		d.Metrics = middleware.NewMetrics()
	}
	r := &Router{
		scansSvc:     d.Scans,
		results:      d.Results,
		aiSvc:        d.AI,
		metrics:      d.Metrics,
		blockPrivate: d.BlockPrivateURLs,
		log:          d.Logger.With("area", "http"),
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Logging(d.Logger))
	mux.Use(d.Metrics.Middleware)
	if len(d.CORSOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}
	if len(d.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(d.APIKeys))
	}
	if d.Limiter != nil {
		mux.Use(d.Limiter.Middleware)
	}

	mux.Get("/health", middleware.HealthHandler(d.Health))
	mux.Get("/ready", middleware.ReadinessHandler(d.Ready))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", d.Metrics.Handler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/scans/file", r.wrap(r.handleScanFile))
		rt.Post("/scans/url", r.wrap(r.handleScanURL))
		rt.Get("/scans", r.wrap(r.handleList))
		rt.Delete("/scans", r.wrap(r.handleClear))
		rt.Get("/scans/{id}", r.wrap(r.handleGet))
		rt.Delete("/scans/{id}", r.wrap(r.handleDelete))
		rt.Post("/scans/{id}/explain", r.wrap(r.handleExplain))
		rt.Get("/scans/{id}/explain", r.wrap(r.handleLatestExplain))
		rt.Get("/analyses", r.wrap(r.handleAnalyses))
		rt.Get("/metrics", r.wrap(r.handleMetrics))
		rt.Get("/failures", r.wrap(r.handleFailures))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest is a request-shape error raised by the handlers themselves.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

var errAIDisabled = errors.New("ai explanations are not configured")

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var (
			val *domain.ValidationError
			sub *domain.SubmissionError
			rep *domain.ReportUnavailableError
			tmo *domain.TimeoutError
			big *http.MaxBytesError
			bad badRequest
		)
		switch {
		case errors.As(err, &val):
			writeError(w, http.StatusBadRequest, "validation_error", err.Error(), domain.RetryHint(err))
		case errors.As(err, &big):
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", "upload exceeds the size limit", "")
		case errors.As(err, &bad):
			writeError(w, http.StatusBadRequest, "bad_request", err.Error(), "")
		case errors.As(err, &sub):
			writeError(w, http.StatusBadGateway, "submission_failed", err.Error(), domain.RetryHint(err))
		case errors.As(err, &rep):
			writeError(w, http.StatusBadGateway, "report_unavailable", err.Error(), domain.RetryHint(err))
		case errors.As(err, &tmo):
			writeError(w, http.StatusGatewayTimeout, "analysis_timeout", err.Error(), domain.RetryHint(err))
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", err.Error(), "")
		case errors.Is(err, domai.ErrQuotaExceeded):
			writeError(w, http.StatusTooManyRequests, "ai_quota_exceeded", "ai quota exceeded", "try again later")
		case errors.Is(err, errAIDisabled):
			writeError(w, http.StatusServiceUnavailable, "ai_disabled", err.Error(), "")
		case errors.Is(err, context.Canceled):
			// client pergi, tidak ada yang dibalas
			r.log.Info("request cancelled", "path", req.URL.Path)
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusGatewayTimeout, "timeout", "request timed out", domain.RetryHintMessage)
		default:
			r.log.Error("request failed", "path", req.URL.Path, "err", err)
			writeError(w, http.StatusInternalServerError, "internal", "internal server error", "")
		}
	}
}

type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RetryHint string `json:"retry_hint,omitempty"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, msg, hint string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = msg
	body.Error.RetryHint = hint
	_ = writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func scanMode(req *http.Request) domain.Mode {
	if m := req.URL.Query().Get("mode"); m != "" {
		return domain.Mode(m)
	}
	return domain.ModeExpress
}

func queryInt(req *http.Request, key string) int {
	n, _ := strconv.Atoi(req.URL.Query().Get(key))
	return n
}

// scan runs one scan and feeds the process counters.
func (r *Router) scan(w http.ResponseWriter, run func() (domain.ScanResult, error)) error {
	done := r.metrics.ScanStarted()
	res, err := run()
	done(res.Degraded, err)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, res)
}

// POST /v1/scans/file?mode=express|comprehensive
// multipart form, field "file"
func (r *Router) handleScanFile(w http.ResponseWriter, req *http.Request) error {
	limit := r.scansSvc.MaxFileSize
	if limit <= 0 {
		limit = appscans.DefaultMaxFileSize
	}
	req.Body = http.MaxBytesReader(w, req.Body, limit+uploadSlack)

	file, hdr, err := req.FormFile("file")
	if err != nil {
		var big *http.MaxBytesError
		if errors.As(err, &big) {
			return err
		}
		return badRequest{msg: "multipart field \"file\" is required"}
	}
	defer file.Close()

	name := middleware.SanitizeString(hdr.Filename)
	return r.scan(w, func() (domain.ScanResult, error) {
		return r.scansSvc.ScanFile(req.Context(), file, name, scanMode(req))
	})
}

// POST /v1/scans/url?mode=express|comprehensive
// Body: {"url": "https://..."}
func (r *Router) handleScanURL(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(io.LimitReader(req.Body, 64<<10)).Decode(&body); err != nil {
		return badRequest{msg: "body must be JSON: {\"url\": \"...\"}"}
	}
	if r.blockPrivate {
		if err := middleware.ValidatePublicURL(body.URL); err != nil {
			return &domain.ValidationError{Field: "url", Reason: err.Error()}
		}
	}

	return r.scan(w, func() (domain.ScanResult, error) {
		return r.scansSvc.ScanURL(req.Context(), body.URL, scanMode(req))
	})
}

// GET /v1/scans?page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	page := middleware.ValidatePage(queryInt(req, "page"))
	size := middleware.ValidateLimit(queryInt(req, "page_size"))
	return writeJSON(w, http.StatusOK, domain.Paginate(r.results.Recent(0), page, size))
}

func scanID(req *http.Request) (domain.ScanID, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateScanID(id); err != nil {
		return "", &domain.ValidationError{Field: "id", Reason: err.Error()}
	}
	return domain.ScanID(id), nil
}

// GET /v1/scans/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := scanID(req)
	if err != nil {
		return err
	}
	res, ok := r.results.Get(id)
	if !ok {
		return domain.ErrNotFound
	}
	return writeJSON(w, http.StatusOK, res)
}

// DELETE /v1/scans/{id}
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) error {
	id, err := scanID(req)
	if err != nil {
		return err
	}
	if err := r.results.Remove(req.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// DELETE /v1/scans
func (r *Router) handleClear(w http.ResponseWriter, req *http.Request) error {
	if err := r.results.Clear(req.Context()); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /v1/metrics
func (r *Router) handleMetrics(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.results.Metrics())
}

// GET /v1/failures?limit=
func (r *Router) handleFailures(w http.ResponseWriter, req *http.Request) error {
	list, err := r.scansSvc.Failures(req.Context(), middleware.ValidateLimit(queryInt(req, "limit")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// POST /v1/scans/{id}/explain
func (r *Router) handleExplain(w http.ResponseWriter, req *http.Request) error {
	if r.aiSvc == nil {
		return errAIDisabled
	}
	id, err := scanID(req)
	if err != nil {
		return err
	}
	a, res, err := r.aiSvc.Explain(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"analysis": a, "scan": res})
}

// GET /v1/scans/{id}/explain
func (r *Router) handleLatestExplain(w http.ResponseWriter, req *http.Request) error {
	if r.aiSvc == nil {
		return errAIDisabled
	}
	id, err := scanID(req)
	if err != nil {
		return err
	}
	a, err := r.aiSvc.Latest(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
}

// GET /v1/analyses?page=&page_size=
func (r *Router) handleAnalyses(w http.ResponseWriter, req *http.Request) error {
	if r.aiSvc == nil {
		return errAIDisabled
	}
	page := middleware.ValidatePage(queryInt(req, "page"))
	size := middleware.ValidateLimit(queryInt(req, "page_size"))
	list, err := r.aiSvc.History(req.Context(), page, size)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}
