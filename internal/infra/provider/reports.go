package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
)

type reportEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Stats               *domain.DetectionStats         `json:"stats"`
			LastAnalysisStats   *domain.DetectionStats         `json:"last_analysis_stats"`
			LastAnalysisResults map[string]domain.EngineResult `json:"last_analysis_results"`
			Reputation          int                            `json:"reputation"`
		} `json:"attributes"`
	} `json:"data"`
}

func (env reportEnvelope) report() domain.RawDetectionReport {
	attrs := env.Data.Attributes
	r := domain.RawDetectionReport{
		ID:         env.Data.ID,
		Engines:    attrs.LastAnalysisResults,
		Reputation: attrs.Reputation,
	}
	switch {
	case attrs.Stats != nil:
		r.Stats = *attrs.Stats
	case attrs.LastAnalysisStats != nil:
		r.Stats = *attrs.LastAnalysisStats
	}
	if r.Engines == nil {
		r.Engines = map[string]domain.EngineResult{}
	}
	return r
}

// resourceReports fetches one report shape: GET /{collection}/{id}.
type resourceReports struct {
	c          *Client
	collection string
}

// FileReports reads GET /files/{id}.
func (c *Client) FileReports() domain.ReportFetcher {
	return resourceReports{c: c, collection: "files"}
}

// URLReports reads GET /urls/{id}.
func (c *Client) URLReports() domain.ReportFetcher {
	return resourceReports{c: c, collection: "urls"}
}

func (r resourceReports) FetchReport(ctx context.Context, resourceID string) (domain.RawDetectionReport, error) {
	var env reportEnvelope
	path := "/" + r.collection + "/" + url.PathEscape(resourceID)
	if err := r.c.do(ctx, http.MethodGet, path, nil, "", &env); err != nil {
		return domain.RawDetectionReport{}, fmt.Errorf("%s report: %w", r.collection, err)
	}
	return env.report(), nil
}

// ProbeFetcher tries each strategy in order and returns the first report
// that could be fetched.
type ProbeFetcher struct {
	Strategies []domain.ReportFetcher
}

// Reports is the file-then-url probe used by the poller.
func (c *Client) Reports() *ProbeFetcher {
	return &ProbeFetcher{Strategies: []domain.ReportFetcher{c.FileReports(), c.URLReports()}}
}

func (p *ProbeFetcher) FetchReport(ctx context.Context, resourceID string) (domain.RawDetectionReport, error) {
	var causes []error
	for _, s := range p.Strategies {
		rep, err := s.FetchReport(ctx, resourceID)
		if err == nil {
			return rep, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return domain.RawDetectionReport{}, err
		}
		causes = append(causes, err)
	}
	return domain.RawDetectionReport{}, &domain.ReportUnavailableError{ResourceID: resourceID, Causes: causes}
}
