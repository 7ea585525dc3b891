package middleware

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var scanIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:=-]{1,200}$`)

// ValidateScanID checks the shape of a scan id: provider report ids
// (sha256 or base64url) with a millisecond suffix, or a UUID.
func ValidateScanID(scanID string) error {
	if scanID == "" {
		return fmt.Errorf("scan ID cannot be empty")
	}
	if !scanIDPattern.MatchString(scanID) {
		return fmt.Errorf("invalid scan ID format")
	}
	return nil
}

// ValidatePublicURL rejects URLs that point at loopback, private or
// link-local addresses. Used when the API is exposed to untrusted callers.
func ValidatePublicURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("URL has no host")
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("localhost/internal IPs are not allowed")
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsUnspecified() {
			return fmt.Errorf("localhost/internal IPs are not allowed")
		}
		if ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return fmt.Errorf("private IP ranges are not allowed")
		}
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// MaxPage bounds the page query parameter.
const MaxPage = 1 << 20

// ValidatePage clamps the page number to [1, MaxPage].
func ValidatePage(page int) int {
	if page <= 0 {
		return 1
	}
	return min(page, MaxPage)
}
