package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appai "github.com/bryanwahyu/threatlens/internal/application/ai"
	"github.com/bryanwahyu/threatlens/internal/application/results"
	appscans "github.com/bryanwahyu/threatlens/internal/application/scans"
	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
	"github.com/bryanwahyu/threatlens/internal/infra/ai/prompt"
	"github.com/bryanwahyu/threatlens/internal/infra/httpserver"
	"github.com/bryanwahyu/threatlens/internal/middleware"
)

type apiError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RetryHint string `json:"retry_hint"`
	} `json:"error"`
}

func testModeDeps() httpserver.Deps {
	store := results.New(nil, 0, nil)
	return httpserver.Deps{
		Scans:   &appscans.Service{Store: store, TestMode: true, Synthetic: appscans.NewSynthetic(7)},
		Results: store,
		Metrics: middleware.NewMetrics(),
	}
}

func do(t *testing.T, h http.Handler, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postURL(t *testing.T, h http.Handler, mode, rawURL string) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(map[string]string{"url": rawURL})
	require.NoError(t, err)
	return do(t, h, http.MethodPost, "/v1/scans/url?mode="+mode, bytes.NewBuffer(b), "application/json")
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var e apiError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
	return e
}

func TestScanLifecycle(t *testing.T) {
	deps := testModeDeps()
	h := httpserver.NewRouter(deps)

	rec := postURL(t, h, "express", "https://example.com")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res domain.ScanResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.True(t, res.IsTestData)
	assert.Equal(t, domain.ModeExpress, res.ScanMode)

	rec = do(t, h, http.MethodGet, "/v1/scans?page=1&page_size=10", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page domain.PaginatedResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, res.ID, page.Data[0].ID)

	rec = do(t, h, http.MethodGet, "/v1/scans/"+string(res.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var m domain.Metrics
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&m))
	assert.Equal(t, 1, m.TotalScans)
	assert.Equal(t, 1, m.TestDataScans)

	rec = do(t, h, http.MethodDelete, "/v1/scans/"+string(res.ID), nil, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/scans/"+string(res.ID), nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Error.Code)

	assert.EqualValues(t, 1, deps.Metrics.ScansTotal.Load())
	assert.EqualValues(t, 0, deps.Metrics.ScansRunning.Load())
}

func TestListHugePage(t *testing.T) {
	deps := testModeDeps()
	deps.AI = appai.NewService(prompt.Offline{}, deps.Results, nil, "offline", nil)
	h := httpserver.NewRouter(deps)
	require.Equal(t, http.StatusCreated, postURL(t, h, "express", "https://example.com").Code)

	rec := do(t, h, http.MethodGet, "/v1/scans?page=9223372036854775807", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page domain.PaginatedResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Empty(t, page.Data)
	assert.Equal(t, middleware.MaxPage, page.Page)

	rec = do(t, h, http.MethodGet, "/v1/analyses?page=9223372036854775807", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScanFileUpload(t *testing.T) {
	h := httpserver.NewRouter(testModeDeps())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "invoice.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4 test"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := do(t, h, http.MethodPost, "/v1/scans/file?mode=comprehensive", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res domain.ScanResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "invoice.pdf", res.TargetName)
	assert.Equal(t, domain.TargetFile, res.TargetType)
	assert.Equal(t, domain.ModeComprehensive, res.ScanMode)
	assert.Len(t, res.SHA256, 64)
}

func TestScanFileNameSanitized(t *testing.T) {
	h := httpserver.NewRouter(testModeDeps())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	// RFC 2231 encoding lets control bytes through the header parser
	hdr.Set("Content-Disposition", `form-data; name="file"; filename*=UTF-8''inv%01oice%07.pdf`)
	hdr.Set("Content-Type", "application/octet-stream")
	fw, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = fw.Write([]byte("MZ"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := do(t, h, http.MethodPost, "/v1/scans/file", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res domain.ScanResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "invoice.pdf", res.TargetName)
}

func TestScanFileRequiresField(t *testing.T) {
	h := httpserver.NewRouter(testModeDeps())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	rec := do(t, h, http.MethodPost, "/v1/scans/file", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decodeError(t, rec).Error.Code)
}

func TestValidationErrors(t *testing.T) {
	deps := testModeDeps()
	deps.BlockPrivateURLs = true
	h := httpserver.NewRouter(deps)

	cases := []struct {
		name, mode, url string
	}{
		{"scheme", "express", "ftp://example.com"},
		{"mode", "turbo", "https://example.com"},
		{"private", "express", "http://127.0.0.1/admin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postURL(t, h, tc.mode, tc.url)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			e := decodeError(t, rec)
			assert.Equal(t, "validation_error", e.Error.Code)
			assert.Equal(t, "fix the input and submit again", e.Error.RetryHint)
		})
	}

	rec := do(t, h, http.MethodPost, "/v1/scans/url", bytes.NewBufferString("not json"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, deps.Results.Len())
}

type failingSubmitter struct{ err error }

func (f failingSubmitter) SubmitFile(context.Context, string, []byte) (domain.AnalysisHandle, error) {
	return "", f.err
}

func (f failingSubmitter) SubmitURL(context.Context, string) (domain.AnalysisHandle, error) {
	return "", f.err
}

type stuckSubmitter struct{}

func (stuckSubmitter) SubmitFile(context.Context, string, []byte) (domain.AnalysisHandle, error) {
	return "an-1", nil
}

func (stuckSubmitter) SubmitURL(context.Context, string) (domain.AnalysisHandle, error) {
	return "an-1", nil
}

type queuedStatus struct{}

func (queuedStatus) AnalysisStatus(context.Context, domain.AnalysisHandle) (domain.AnalysisStatus, error) {
	return domain.AnalysisStatus{Status: "queued"}, nil
}

type noReports struct{}

func (noReports) FetchReport(_ context.Context, id string) (domain.RawDetectionReport, error) {
	return domain.RawDetectionReport{}, &domain.ReportUnavailableError{ResourceID: id}
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestScanErrorsMapToStatus(t *testing.T) {
	store := results.New(nil, 0, nil)
	svc := &appscans.Service{
		Provider: failingSubmitter{err: &domain.SubmissionError{TargetType: domain.TargetURL, StatusCode: 401, Code: "WrongCredentialsError"}},
		Poller:   &appscans.Poller{Status: queuedStatus{}, Reports: noReports{}, Sleep: noSleep},
		Polling:  appscans.DefaultPollConfig(),
		Store:    store,
	}
	metrics := middleware.NewMetrics()
	h := httpserver.NewRouter(httpserver.Deps{Scans: svc, Results: store, Metrics: metrics})

	rec := postURL(t, h, "express", "https://example.com")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "submission_failed", e.Error.Code)
	assert.True(t, strings.HasPrefix(e.Error.RetryHint, "check the provider API key"))

	svc.Provider = stuckSubmitter{}
	rec = postURL(t, h, "comprehensive", "https://example.com")
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	e = decodeError(t, rec)
	assert.Equal(t, "analysis_timeout", e.Error.Code)
	assert.Equal(t, domain.RetryHintMessage, e.Error.RetryHint)

	rec = postURL(t, h, "express", "https://example.com")
	require.Equal(t, http.StatusCreated, rec.Code)
	var res domain.ScanResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.True(t, res.Degraded)

	assert.EqualValues(t, 3, metrics.ScansTotal.Load())
	assert.EqualValues(t, 2, metrics.ScansFailed.Load())
	assert.EqualValues(t, 1, metrics.ScansDegraded.Load())
	assert.Equal(t, 1, store.Len())
}

func TestExplain(t *testing.T) {
	deps := testModeDeps()
	h := httpserver.NewRouter(deps)

	rec := postURL(t, h, "express", "https://example.com")
	require.Equal(t, http.StatusCreated, rec.Code)
	var res domain.ScanResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))

	rec = do(t, h, http.MethodPost, "/v1/scans/"+string(res.ID)+"/explain", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "ai_disabled", decodeError(t, rec).Error.Code)

	deps.AI = appai.NewService(prompt.Offline{}, deps.Results, nil, "offline", nil)
	h = httpserver.NewRouter(deps)

	rec = do(t, h, http.MethodPost, "/v1/scans/"+string(res.ID)+"/explain", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Scan domain.ScanResult `json:"scan"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.NotEmpty(t, out.Scan.AISummary)

	stored, ok := deps.Results.Get(res.ID)
	require.True(t, ok)
	assert.Equal(t, out.Scan.AISummary, stored.AISummary)

	rec = do(t, h, http.MethodPost, "/v1/scans/missing/explain", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthAndHealth(t *testing.T) {
	deps := testModeDeps()
	deps.APIKeys = map[string]string{"ci": "secret"}
	h := httpserver.NewRouter(deps)

	rec := do(t, h, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/scans", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/scans", nil)
	req.Header.Set("X-API-Key", "secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
