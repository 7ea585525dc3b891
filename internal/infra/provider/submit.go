package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
)

type idEnvelope struct {
	Data struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"data"`
}

// SubmitFile uploads content as multipart field "file" to POST /files.
func (c *Client) SubmitFile(ctx context.Context, name string, content []byte) (domain.AnalysisHandle, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", &domain.SubmissionError{TargetType: domain.TargetFile, Err: err}
	}
	if _, err := part.Write(content); err != nil {
		return "", &domain.SubmissionError{TargetType: domain.TargetFile, Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &domain.SubmissionError{TargetType: domain.TargetFile, Err: err}
	}

	var env idEnvelope
	err = c.do(ctx, http.MethodPost, "/files", &buf, mw.FormDataContentType(), &env)
	return c.handle(domain.TargetFile, env, err)
}

// SubmitURL posts url=<rawURL> form-encoded to POST /urls.
func (c *Client) SubmitURL(ctx context.Context, rawURL string) (domain.AnalysisHandle, error) {
	form := url.Values{"url": {rawURL}}
	var env idEnvelope
	err := c.do(ctx, http.MethodPost, "/urls", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &env)
	return c.handle(domain.TargetURL, env, err)
}

func (c *Client) handle(kind domain.TargetType, env idEnvelope, err error) (domain.AnalysisHandle, error) {
	if err != nil {
		serr := &domain.SubmissionError{TargetType: kind, Err: err}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			serr.StatusCode = apiErr.StatusCode
			serr.Code = apiErr.Code
		}
		return "", serr
	}
	if env.Data.ID == "" {
		return "", &domain.SubmissionError{TargetType: kind, Err: fmt.Errorf("provider returned no analysis id")}
	}
	c.logger.Info("submitted", "kind", kind, "handle", env.Data.ID)
	return domain.AnalysisHandle(env.Data.ID), nil
}
