package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
)

// setup resets the package flags and points the results file at a temp dir.
func setup(t *testing.T) string {
	t.Helper()
	t.Setenv("VT_API_KEY", "")
	t.Setenv("THREATLENS_TEST_MODE", "")
	t.Setenv("OPENAI_API_KEY", "")
	flagConfig = ""
	flagStore = ""
	flagTestMode = false
	flagJSON = false
	flagVerbose = false
	flagMode = string(domain.ModeExpress)
	flagHistoryLimit = 0
	flagFailuresLimit = 20
	return filepath.Join(t.TempDir(), "results.json")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	defer rootCmd.SetOut(nil)
	defer rootCmd.SetErr(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func scanURL(t *testing.T, store string) domain.ScanResult {
	t.Helper()
	flagJSON = false
	out, err := run(t, "scan", "url", "https://example.com", "--test-mode", "--json", "--store", store)
	require.NoError(t, err)
	var res domain.ScanResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	flagJSON = false
	return res
}

func TestScanHistoryShowRemove(t *testing.T) {
	store := setup(t)

	res := scanURL(t, store)
	require.True(t, res.IsTestData)
	require.Equal(t, domain.ModeExpress, res.ScanMode)

	out, err := run(t, "history", "--json", "--store", store)
	require.NoError(t, err)
	var list []domain.ScanResult
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	require.Equal(t, res.ID, list[0].ID)
	flagJSON = false

	out, err = run(t, "show", string(res.ID), "--store", store)
	require.NoError(t, err)
	require.Contains(t, out, "Verdict:")
	require.Contains(t, out, "[test data]")

	out, err = run(t, "rm", string(res.ID), "--store", store)
	require.NoError(t, err)
	require.Contains(t, out, "Deleted "+string(res.ID))

	_, err = run(t, "show", string(res.ID), "--store", store)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScanFileComprehensive(t *testing.T) {
	store := setup(t)
	sample := filepath.Join(t.TempDir(), "sample.bin")
	require.NoError(t, os.WriteFile(sample, []byte("MZ not really"), 0o600))

	out, err := run(t, "scan", "file", sample, "--mode", "comprehensive", "--test-mode", "--store", store)
	require.NoError(t, err)
	require.Contains(t, out, "Target:      sample.bin (file)")
	require.Contains(t, out, "Mode:        comprehensive")
	require.Contains(t, out, "SHA-256:")
}

func TestScanRejectsDirectory(t *testing.T) {
	store := setup(t)
	_, err := run(t, "scan", "file", t.TempDir(), "--test-mode", "--store", store)
	require.ErrorContains(t, err, "is a directory")
}

func TestScanNeedsAPIKeyOutsideTestMode(t *testing.T) {
	store := setup(t)
	_, err := run(t, "scan", "url", "https://example.com", "--store", store)
	require.ErrorContains(t, err, "provider.apiKey")
}

func TestMetricsAndClear(t *testing.T) {
	store := setup(t)
	scanURL(t, store)
	scanURL(t, store)

	out, err := run(t, "metrics", "--json", "--store", store)
	require.NoError(t, err)
	var m domain.Metrics
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	require.Equal(t, 2, m.TotalScans)
	require.Equal(t, 2, m.TestDataScans)
	flagJSON = false

	out, err = run(t, "clear", "--store", store)
	require.NoError(t, err)
	require.Contains(t, out, "Deleted 2 scans")

	out, err = run(t, "history", "--store", store)
	require.NoError(t, err)
	require.Contains(t, out, "No scans stored.")
}

func TestExplainOffline(t *testing.T) {
	store := setup(t)
	res := scanURL(t, store)

	out, err := run(t, "explain", string(res.ID), "--store", store)
	require.NoError(t, err)
	require.Contains(t, out, "Risk level:")

	out, err = run(t, "show", string(res.ID), "--json", "--store", store)
	require.NoError(t, err)
	var stored domain.ScanResult
	require.NoError(t, json.Unmarshal([]byte(out), &stored))
	require.NotEmpty(t, stored.AISummary)
}

func TestFailuresEmpty(t *testing.T) {
	store := setup(t)
	out, err := run(t, "failures", "--store", store)
	require.NoError(t, err)
	require.Contains(t, out, "No failures recorded.")
}
