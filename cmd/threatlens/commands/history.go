package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
)

var (
	flagHistoryLimit  int
	flagFailuresLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored scans, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		return printTable(cmd.OutOrStdout(), e.store.Recent(flagHistoryLimit))
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one stored scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		res, ok := e.store.Get(domain.ScanID(args[0]))
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, args[0])
		}
		return printResult(cmd.OutOrStdout(), res)
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete one stored scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		if err := e.store.Remove(cmd.Context(), domain.ScanID(args[0])); err != nil {
			return fmt.Errorf("%w: %s", err, args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored scan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		n := e.store.Len()
		if err := e.store.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d scans\n", n)
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Summarize stored scans",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		m := e.store.Metrics()
		w := cmd.OutOrStdout()
		if flagJSON {
			return printJSON(w, m)
		}
		fmt.Fprintf(w, "Total scans:        %d\n", m.TotalScans)
		fmt.Fprintf(w, "Threats detected:   %d (%d%%)\n", m.ThreatsDetected, m.ThreatRate)
		fmt.Fprintf(w, "Average risk:       %d\n", m.AverageRiskScore)
		fmt.Fprintf(w, "Average confidence: %d\n", m.AverageConfidence)
		fmt.Fprintf(w, "Provisional:        %d\n", m.DegradedScans)
		fmt.Fprintf(w, "Test data:          %d\n", m.TestDataScans)
		for _, v := range []domain.Verdict{domain.VerdictMalicious, domain.VerdictSuspicious, domain.VerdictHarmless, domain.VerdictUnknown} {
			fmt.Fprintf(w, "  %-11s %d\n", v, m.ByVerdict[v])
		}
		return nil
	},
}

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "List recent scan failures",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		list, err := e.backend.Errors.Recent(cmd.Context(), flagFailuresLimit)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if flagJSON {
			return printJSON(w, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(w, "No failures recorded.")
			return nil
		}
		for _, f := range list {
			fmt.Fprintf(w, "%s  %-8s %-6s %s: %s\n", f.CreatedAt.Local().Format("2006-01-02 15:04"), f.Mode, f.Phase, f.Target, f.Message)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 0, "Show at most n scans (default: all)")
	failuresCmd.Flags().IntVarP(&flagFailuresLimit, "limit", "n", 20, "Show at most n failures")
	rootCmd.AddCommand(historyCmd, showCmd, rmCmd, clearCmd, metricsCmd, failuresCmd)
}
