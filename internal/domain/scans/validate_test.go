package scans_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/threatlens/internal/domain/scans"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want string
	}{
		{"https://example.com", true, "https://example.com"},
		{"  http://example.com/path?q=1 ", true, "http://example.com/path?q=1"},
		{"", false, ""},
		{"ftp://example.com", false, ""},
		{"javascript:alert(1)", false, ""},
		{"https://", false, ""},
		{"example.com", false, ""},
		{"http://[::1", false, ""},
	}
	for _, tt := range tests {
		got, err := scans.ValidateURL(tt.in)
		if !tt.ok {
			var verr *scans.ValidationError
			require.True(t, errors.As(err, &verr), "input %q", tt.in)
			require.Equal(t, "url", verr.Field)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		require.Equal(t, tt.want, got)
	}
}

func TestValidateFileName(t *testing.T) {
	name, err := scans.ValidateFileName("../../etc/evil.exe")
	require.NoError(t, err)
	require.Equal(t, "evil.exe", name)

	_, err = scans.ValidateFileName("")
	require.Error(t, err)
}

func TestValidateContent(t *testing.T) {
	require.Error(t, scans.ValidateContent(nil, 10))
	require.Error(t, scans.ValidateContent(make([]byte, 11), 10))
	require.NoError(t, scans.ValidateContent(make([]byte, 10), 10))
	require.NoError(t, scans.ValidateContent(make([]byte, 10), 0))
}

func TestParseMode(t *testing.T) {
	m, err := scans.ParseMode("")
	require.NoError(t, err)
	require.Equal(t, scans.ModeExpress, m)

	m, err = scans.ParseMode("comprehensive")
	require.NoError(t, err)
	require.Equal(t, scans.ModeComprehensive, m)

	_, err = scans.ParseMode("turbo")
	require.Equal(t, "validate", scans.Phase(err))
}

func TestPhase(t *testing.T) {
	require.Equal(t, "submit", scans.Phase(&scans.SubmissionError{TargetType: scans.TargetURL, StatusCode: 400}))
	require.Equal(t, "poll", scans.Phase(&scans.TimeoutError{Handle: "h", Mode: scans.ModeComprehensive}))
	require.Equal(t, "fetch", scans.Phase(&scans.ReportUnavailableError{ResourceID: "r"}))
	require.Equal(t, "other", scans.Phase(errors.New("boom")))
	require.False(t, scans.IsUserFacing(errors.New("boom")))
}

func TestRetryHint(t *testing.T) {
	require.Equal(t, scans.RetryHintMessage, scans.RetryHint(&scans.TimeoutError{Handle: "h"}))
	require.Equal(t, scans.RetryHintMessage, scans.RetryHint(fmt.Errorf("wrapped: %w", &scans.ReportUnavailableError{ResourceID: "r"})))
	require.Contains(t, scans.RetryHint(&scans.SubmissionError{StatusCode: 401}), "API key")
	require.Equal(t, "fix the input and submit again", scans.RetryHint(&scans.ValidationError{Field: "url"}))
	require.Empty(t, scans.RetryHint(errors.New("boom")))
	require.Empty(t, scans.RetryHint(nil))
}
