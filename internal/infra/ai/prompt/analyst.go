package prompt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bryanwahyu/threatlens/internal/domain/analyst"
)

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a senior malware analyst explaining antivirus scan results to a non-expert. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- risk_level is one of: high, medium, low, unknown.
- Base every statement on the scan result provided. Do not invent engine names or detections.
- If "degraded" is true the analysis did not finish; say so and keep risk_level "unknown".
- If "partial" is true some engines had not reported yet; mention that the verdict may change.
- next_steps is an ordered array of short imperative sentences.

Schema (example with empty values):
{
  "summary": "<one or two sentences>",
  "risk_level": "<high|medium|low|unknown>",
  "details": "<string>",
  "next_steps": ["<string>"]
}`
}

// GetUserPrompt wraps the encoded scan result.
func GetUserPrompt(input string) string {
	return fmt.Sprintf("Explain this scan result and respond with the JSON per schema.\n\nScan result:\n%s", input)
}

// Offline answers without calling a model. Used in test mode and when no
// API key is configured.
type Offline struct{}

func (Offline) Explain(_ context.Context, input string) (string, error) {
	var in analyst.ScanInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("failed to decode scan input: %w", err)
	}

	out := analyst.Explanation{RiskLevel: riskLevel(in), NextSteps: in.Recommendations}
	switch {
	case in.Degraded:
		out.Summary = fmt.Sprintf("The analysis of %s did not finish in time, so its safety is still unknown.", in.Target)
	case in.Verdict == "malicious":
		out.Summary = fmt.Sprintf("%s was flagged as malicious by %d of %d engines.", in.Target, in.Stats["malicious"], in.Engines)
	case in.Verdict == "suspicious":
		out.Summary = fmt.Sprintf("%s looks suspicious to %d of %d engines.", in.Target, in.Stats["suspicious"], in.Engines)
	case in.Verdict == "harmless":
		out.Summary = fmt.Sprintf("No engine flagged %s.", in.Target)
	default:
		out.Summary = fmt.Sprintf("There is not enough data to judge %s.", in.Target)
	}
	out.Details = fmt.Sprintf("Risk score %d/100 with %d%% confidence.", in.RiskScore, in.Confidence)
	if len(in.ThreatTypes) > 0 {
		out.Details += fmt.Sprintf(" Detected threat types: %v.", in.ThreatTypes)
	}
	if in.Partial {
		out.Details += " Some engines had not reported yet, so this verdict may change on a re-scan."
	}
	if out.NextSteps == nil {
		out.NextSteps = []string{}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to marshal explanation: %w", err)
	}
	return string(b), nil
}

func riskLevel(in analyst.ScanInput) string {
	switch {
	case in.Degraded:
		return "unknown"
	case in.RiskScore >= 50 || in.Verdict == "malicious":
		return "high"
	case in.RiskScore >= 10 || in.Verdict == "suspicious":
		return "medium"
	case in.Verdict == "harmless":
		return "low"
	default:
		return "unknown"
	}
}
