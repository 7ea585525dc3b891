package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
)

type analysisEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Status     string `json:"status"`
			ResourceID string `json:"resource_id"`
		} `json:"attributes"`
	} `json:"data"`
	Meta struct {
		FileInfo struct {
			SHA256 string `json:"sha256"`
		} `json:"file_info"`
		URLInfo struct {
			ID string `json:"id"`
		} `json:"url_info"`
	} `json:"meta"`
}

// AnalysisStatus issues one GET /analyses/{id}. The resource id comes from
// attributes.resource_id, or from the meta block when the provider puts it there.
func (c *Client) AnalysisStatus(ctx context.Context, h domain.AnalysisHandle) (domain.AnalysisStatus, error) {
	var env analysisEnvelope
	if err := c.do(ctx, http.MethodGet, "/analyses/"+url.PathEscape(string(h)), nil, "", &env); err != nil {
		return domain.AnalysisStatus{}, fmt.Errorf("analysis %s: %w", h, err)
	}

	st := domain.AnalysisStatus{
		Status:     env.Data.Attributes.Status,
		ResourceID: env.Data.Attributes.ResourceID,
	}
	if st.ResourceID == "" {
		st.ResourceID = env.Meta.FileInfo.SHA256
	}
	if st.ResourceID == "" {
		st.ResourceID = env.Meta.URLInfo.ID
	}
	return st, nil
}
