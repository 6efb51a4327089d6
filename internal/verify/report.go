package verify

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

const bannerWidth = 70

// PrintBanner writes the run title block.
func PrintBanner(w io.Writer, title string) {
	rule := strings.Repeat("=", bannerWidth)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, rule)
}

func printCategoryHeader(w io.Writer, cat Category) {
	rule := strings.Repeat("=", bannerWidth)
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "  %s\n", cat.Title)
	fmt.Fprintf(w, "  %s\n", cat.Description)
	fmt.Fprintln(w, rule)
}

func printProbeResult(w io.Writer, result ProbeResult) {
	fmt.Fprintf(w, "\n[TEST] %s\n", result.Name)
	if result.Description != "" {
		fmt.Fprintf(w, "       %s\n", result.Description)
	}
	fmt.Fprintf(w, "       Command: %s\n", truncate(result.Command, 60))
	if result.Error != "" {
		fmt.Fprintf(w, "       Error: %s\n", result.Error)
	} else {
		output := result.Output
		if output == "" {
			output = "(no output)"
		}
		fmt.Fprintf(w, "       Output: %s\n", output)
		fmt.Fprintf(w, "       Exit code: %d\n", result.ExitStatus)
	}
	fmt.Fprintf(w, "       Result: [%s]\n", strings.ToUpper(string(result.Verdict)))
}

func printSummary(w io.Writer, s RunSummary) {
	rule := strings.Repeat("=", bannerWidth)
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintln(w, "  SUMMARY")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "\n    Tests passed: %d\n", s.Passed)
	fmt.Fprintf(w, "    Tests failed: %d\n", s.Failed)
	fmt.Fprintf(w, "    Errors:       %d\n", s.Errored)
	fmt.Fprint(w, summaryNarrative)
}

// summaryNarrative is the fixed recap of the policy areas a full run
// exercises. It is informational only; the counts above are the verdict.
const summaryNarrative = `
    Security features demonstrated:

    AI AGENT PROTECTION:
      - Recursive delete (rm -rf) blocked
      - Reverse shell attempts blocked
      - Data exfiltration to evil.com blocked

    CLOUD INFRASTRUCTURE:
      - AWS/GCP metadata service blocked (SSRF prevention)
      - Internal network access blocked (lateral movement prevention)
      - Kubernetes API blocked

    MULTI-TENANT ISOLATION:
      - sudo/su blocked (privilege escalation prevention)
      - nsenter blocked (container escape prevention)
      - docker command blocked (DinD abuse prevention)
      - kill command blocked (system stability)

    HOW IT WORKS:
      1. /bin/bash replaced with agentsh-shell-shim
      2. All commands routed through agentsh policy engine
      3. HTTPS_PROXY set to agentsh proxy for network filtering
      4. Policy rules (default.yaml) enforce allow/deny/approve decisions
`

// WriteReportFile writes the report as indented JSON.
func WriteReportFile(path string, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// EncodeReport writes the report as indented JSON to w.
func EncodeReport(w io.Writer, report Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
