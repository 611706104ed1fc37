// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/jeranaias/phoenixlens/internal/analyzer"
)

// MarkdownExporter renders a human-readable analysis report: run
// metadata, one section per comparison group with its advisory, and
// the flat call listing as a table.
type MarkdownExporter struct{}

// Export implements Exporter.
func (e *MarkdownExporter) Export(r *analyzer.Result) ([]byte, error) {
	var sb strings.Builder

	sb.WriteString("# Phoenix LLM Call Analysis\n\n")
	fmt.Fprintf(&sb, "- **Run:** `%s`\n", r.RunID)
	fmt.Fprintf(&sb, "- **Time:** %s UTC\n", formatTime(r.RunTime))
	fmt.Fprintf(&sb, "- **Project:** %s (%s)\n", r.Project, r.Endpoint)
	fmt.Fprintf(&sb, "- **Window:** last %d minutes\n", r.WindowMinutes)
	fmt.Fprintf(&sb, "- **LLM calls:** %d (%d in comparison groups, %d singletons)\n\n",
		len(r.Calls), len(r.Calls)-r.SingletonCount, r.SingletonCount)

	if len(r.Groups) == 0 {
		sb.WriteString("No comparison groups found in this window.\n")
	}

	for i, g := range r.Groups {
		fmt.Fprintf(&sb, "## Group %d at %s UTC (%d calls)\n\n", i+1, formatTime(g.StartTime), len(g.Members))
		sb.WriteString("| Model | Prompt | Completion | Total | Duration (s) | Temp |\n")
		sb.WriteString("|---|---:|---:|---:|---:|---:|\n")
		for _, m := range g.Members {
			fmt.Fprintf(&sb, "| %s | %d | %d | %d | %s | %s |\n",
				m.Model, m.Tokens.Prompt, m.Tokens.Completion, m.Tokens.Total,
				formatDuration(m.Duration), formatTemperature(m.Temperature))
		}
		sb.WriteString("\n")

		if i < len(r.Advisories) {
			a := r.Advisories[i]
			switch {
			case a.Unavailable:
				fmt.Fprintf(&sb, "_Advisory unavailable: %s_\n\n", a.Err)
			case a.Text != "":
				sb.WriteString("### Efficiency advisory\n\n")
				sb.WriteString(a.Text)
				sb.WriteString("\n\n")
			}
		}
	}

	if len(r.Calls) > 0 {
		sb.WriteString("## All LLM calls\n\n")
		sb.WriteString("| Start (UTC) | Model | Name | Total tokens | Duration (s) | Group |\n")
		sb.WriteString("|---|---|---|---:|---:|---:|\n")
		groups := groupIndexes(r)
		for _, c := range r.Calls {
			group := ""
			if n, ok := groups[c.SpanID]; ok {
				group = fmt.Sprintf("%d", n)
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %d | %s | %s |\n",
				formatTime(c.StartTime), c.Model, escapePipes(c.Name),
				c.Tokens.Total, formatDuration(c.Duration), group)
		}
		sb.WriteString("\n")
	}

	if cost := r.AdvisoryCost(); cost > 0 {
		fmt.Fprintf(&sb, "---\n\nAdvisory cost: %d tokens ($%.6f)\n", r.AdvisoryTokens(), cost)
	}
	return []byte(sb.String()), nil
}

// escapePipes keeps span names from breaking table cells.
func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// FileExtension implements Exporter.
func (e *MarkdownExporter) FileExtension() string { return "md" }

// MimeType implements Exporter.
func (e *MarkdownExporter) MimeType() string { return "text/markdown" }
