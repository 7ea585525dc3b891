package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, r domain.ScanResult) error {
	if flagJSON {
		return printJSON(w, r)
	}
	fmt.Fprintf(w, "ID:          %s\n", r.ID)
	fmt.Fprintf(w, "Target:      %s (%s)\n", r.TargetName, r.TargetType)
	fmt.Fprintf(w, "Mode:        %s\n", r.ScanMode)
	fmt.Fprintf(w, "Verdict:     %s\n", verdictLabel(r))
	fmt.Fprintf(w, "Risk:        %d/100 (confidence %d%%)\n", r.RiskScore, r.Confidence)
	fmt.Fprintf(w, "Engines:     %d (malicious %d, suspicious %d, harmless %d, undetected %d)\n",
		r.Engines, r.Stats.Malicious, r.Stats.Suspicious, r.Stats.Harmless, r.Stats.Undetected)
	if len(r.ThreatTypes) > 0 {
		fmt.Fprintf(w, "Threats:     %s\n", strings.Join(r.ThreatTypes, ", "))
	}
	if r.SHA256 != "" {
		fmt.Fprintf(w, "SHA-256:     %s\n", r.SHA256)
	}
	if r.AISummary != "" {
		fmt.Fprintf(w, "\n%s\n", r.AISummary)
	}
	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}
	return nil
}

func verdictLabel(r domain.ScanResult) string {
	label := string(r.Verdict)
	if r.Degraded {
		label += " (analysis still running, result is provisional)"
	}
	if r.Partial {
		label += " (partial report, analysis had not completed)"
	}
	if r.IsTestData {
		label += " [test data]"
	}
	return label
}

func printTable(w io.Writer, list []domain.ScanResult) error {
	if flagJSON {
		return printJSON(w, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No scans stored.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTYPE\tMODE\tVERDICT\tRISK\tTARGET")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.TargetType, r.ScanMode, r.Verdict, r.RiskScore, r.TargetName)
	}
	return tw.Flush()
}
