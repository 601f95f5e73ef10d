package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a run report as Markdown.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	status := "FAILED"
	if r.Run.Passed {
		status = "PASSED"
	}

	sb.WriteString(fmt.Sprintf("# Scenario Run %s\n\n", r.Run.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Status | %s |\n", status))
	sb.WriteString(fmt.Sprintf("| Token | %s |\n", r.Run.Token))
	sb.WriteString(fmt.Sprintf("| Account | %s |\n", r.Run.Account))
	sb.WriteString(fmt.Sprintf("| Started | %s |\n", formatMs(r.Run.StartedAt)))
	sb.WriteString(fmt.Sprintf("| Finished | %s |\n", formatMs(r.Run.FinishedAt)))
	sb.WriteString(fmt.Sprintf("| Initial Market Cap | %s |\n", orDash(r.Run.InitialMcap)))
	sb.WriteString(fmt.Sprintf("| Last Step | %s |\n", orDash(r.Run.LastStep)))
	if r.Run.FailedStep != "" {
		sb.WriteString(fmt.Sprintf("| Failed Step | %s |\n", r.Run.FailedStep))
	}
	sb.WriteString("\n")

	sb.WriteString("## Steps\n\n")
	if len(r.Steps) > 0 {
		sb.WriteString("| Step | Status | Kind | Duration (ms) | Error |\n")
		sb.WriteString("|------|--------|------|---------------|-------|\n")
		for _, s := range r.Steps {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %s |\n",
				s.Step, s.Status, orDash(s.ErrorKind), s.DurationMs, escapeCell(orDash(s.Error))))
		}
	} else {
		sb.WriteString("No steps recorded.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Market Cap Samples\n\n")
	if len(r.Samples) > 0 {
		sb.WriteString("| Step | Phase | On-chain | Reference | Deviation % | Within 1% | Token Balance | Native Balance | Feed Price |\n")
		sb.WriteString("|------|-------|----------|-----------|-------------|-----------|---------------|----------------|------------|\n")
		for _, m := range r.Samples {
			within := "NO"
			if m.WithinTolerance {
				within = "YES"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %.4f | %s | %s | %s | %s |\n",
				m.Step, m.Phase, m.OnChainMcap, m.ReferenceMcap, m.DeviationPct, within,
				m.TokenBalance, m.NativeBalance, m.FeedPrice))
		}
	} else {
		sb.WriteString("No samples recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderIndexMarkdown renders a table of run summaries.
func RenderIndexMarkdown(runs []RunSummary, generatedAt time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Scenario Runs\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s | Runs: %d\n\n", generatedAt.Format(time.RFC3339), len(runs)))

	if len(runs) == 0 {
		sb.WriteString("No runs recorded.\n")
		return sb.String()
	}

	sb.WriteString("| Run | Token | Started | Status | Last Step | Failed Step | Initial Market Cap |\n")
	sb.WriteString("|-----|-------|---------|--------|-----------|-------------|--------------------|\n")
	for _, r := range runs {
		status := "FAILED"
		if r.Passed {
			status = "PASSED"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s |\n",
			shortID(r.RunID), r.Token, formatMs(r.StartedAt), status,
			orDash(r.LastStep), orDash(r.FailedStep), orDash(r.InitialMcap)))
	}

	return sb.String()
}

func formatMs(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// escapeCell keeps error text from breaking the table.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
