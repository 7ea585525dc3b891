package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/threatlens/internal/bootstrap"
	"github.com/bryanwahyu/threatlens/internal/domain/analyst"
	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
)

var explainCmd = &cobra.Command{
	Use:   "explain <id>",
	Short: "Explain a stored scan in plain language",
	Long:  "Uses OpenAI when OPENAI_API_KEY is set, a built-in summary otherwise. The summary is saved on the scan.",
	Args:  cobra.ExactArgs(1),
	RunE:  runExplain,
}

func init() {
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	svc := bootstrap.AIService(e.cfg, e.backend, e.store, e.log)
	a, _, err := svc.Explain(cmd.Context(), domain.ScanID(args[0]))
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if flagJSON {
		return printJSON(w, json.RawMessage(a.Result))
	}
	exp, err := analyst.ParseExplanation(a.Result)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n\nRisk level: %s\n", exp.Summary, exp.RiskLevel)
	if exp.Details != "" {
		fmt.Fprintf(w, "%s\n", exp.Details)
	}
	if len(exp.NextSteps) > 0 {
		fmt.Fprintf(w, "\nNext steps:\n  - %s\n", strings.Join(exp.NextSteps, "\n  - "))
	}
	return nil
}
