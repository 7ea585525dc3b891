package scans

import (
	"net/url"
	"path/filepath"
	"strings"
)

// ValidateURL accepts absolute http/https URLs with a host.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &ValidationError{Field: "url", Reason: "cannot be empty"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", &ValidationError{Field: "url", Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &ValidationError{Field: "url", Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return "", &ValidationError{Field: "url", Reason: "missing host"}
	}
	return u.String(), nil
}

// ValidateFileName strips directories and rejects empty names.
func ValidateFileName(name string) (string, error) {
	name = strings.TrimSpace(filepath.Base(filepath.Clean("/" + name)))
	if name == "" || name == "/" || name == "." {
		return "", &ValidationError{Field: "name", Reason: "cannot be empty"}
	}
	return name, nil
}

// ValidateContent checks a file payload against the size limit.
func ValidateContent(content []byte, maxSize int64) error {
	if len(content) == 0 {
		return &ValidationError{Field: "content", Reason: "file is empty"}
	}
	if maxSize > 0 && int64(len(content)) > maxSize {
		return &ValidationError{Field: "content", Reason: "file exceeds maximum upload size"}
	}
	return nil
}
