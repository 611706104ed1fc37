// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jeranaias/phoenixlens/internal/analyzer"
)

// ============================================================================
// STYLES
// ============================================================================

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	groupStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// numPrinter formats token counts with thousands separators.
var numPrinter = message.NewPrinter(language.English)

// ============================================================================
// RENDERING
// ============================================================================

// Options controls report rendering.
type Options struct {
	// Width is the terminal width; markdown advisories wrap to it.
	Width int

	// MaxRecent caps the recent-calls section; zero hides it.
	MaxRecent int

	// Verbose includes span IDs and payload previews.
	Verbose bool
}

// Render produces the full terminal report for a result.
func Render(r *analyzer.Result, opts Options) string {
	if opts.Width <= 0 {
		opts.Width = 80
	}

	var sb strings.Builder
	renderHeader(&sb, r)
	renderGroups(&sb, r, opts)
	renderRecent(&sb, r, opts)
	renderFooter(&sb, r)
	return sb.String()
}

func renderHeader(sb *strings.Builder, r *analyzer.Result) {
	sb.WriteString(titleStyle.Render("Phoenix LLM Call Analysis"))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "%s %s (%s)\n", labelStyle.Render("Project:"), r.Project, r.Endpoint)
	fmt.Fprintf(sb, "%s last %d minutes, analyzed %s\n",
		labelStyle.Render("Window:"), r.WindowMinutes, r.RunTime.Format("2006-01-02 15:04:05 UTC"))
	source := "backend"
	if r.FromCache {
		source = "cache"
	}
	fmt.Fprintf(sb, "%s %d LLM calls (%s), %d comparison groups, %d singletons\n\n",
		labelStyle.Render("Found:"), len(r.Calls), source, len(r.Groups), r.SingletonCount)

	if r.Skipped > 0 {
		sb.WriteString(warnStyle.Render(fmt.Sprintf("Skipped %d malformed spans", r.Skipped)))
		sb.WriteString("\n\n")
	}
}

func renderGroups(sb *strings.Builder, r *analyzer.Result, opts Options) {
	if len(r.Groups) == 0 {
		sb.WriteString(dimStyle.Render("No comparison groups in this window."))
		sb.WriteString("\n")
		return
	}

	for i, g := range r.Groups {
		header := fmt.Sprintf("Group %d  %s  (%d calls)",
			i+1, g.StartTime.Format("15:04:05"), len(g.Members))
		sb.WriteString(groupStyle.Render(header))
		sb.WriteString("\n")
		renderMemberTable(sb, g.Members, opts)

		if i < len(r.Advisories) {
			renderAdvisory(sb, r.Advisories[i], opts)
		}
		sb.WriteString("\n")
	}
}

// memberColumns defines the group member table layout.
var memberColumns = []struct {
	name  string
	width int
}{
	{"", 3}, // variant letter
	{"Model", 24},
	{"Tokens", 18},
	{"Duration", 10},
	{"Temp", 6},
}

func renderMemberTable(sb *strings.Builder, members []analyzer.CallRecord, opts Options) {
	var head strings.Builder
	for _, col := range memberColumns {
		head.WriteString(pad(col.name, col.width))
	}
	sb.WriteString(dimStyle.Render(strings.TrimRight(head.String(), " ")))
	sb.WriteString("\n")

	for i, m := range members {
		cells := []string{
			string(rune('A' + i%26)),
			m.Model,
			numPrinter.Sprintf("%d", m.Tokens.Total),
			formatDuration(m.Duration),
			formatTemp(m.Temperature),
		}
		for j, cell := range cells {
			sb.WriteString(pad(cell, memberColumns[j].width))
		}
		sb.WriteString("\n")
		if opts.Verbose {
			if m.OutputPreview != "" {
				sb.WriteString(dimStyle.Render("   └ " + m.OutputPreview))
				sb.WriteString("\n")
			}
		}
	}
}

func renderAdvisory(sb *strings.Builder, a analyzer.Advisory, opts Options) {
	if a.Unavailable {
		sb.WriteString(warnStyle.Render("Advisory unavailable: " + a.Err))
		sb.WriteString("\n")
		return
	}
	if a.Text == "" {
		return
	}
	sb.WriteString(renderMarkdown(a.Text, opts.Width))
}

// renderMarkdown renders advisory markdown for the terminal, degrading
// to plain text when the renderer fails.
func renderMarkdown(md string, width int) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md + "\n"
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md + "\n"
	}
	return out
}

func renderRecent(sb *strings.Builder, r *analyzer.Result, opts Options) {
	recent := r.RecentCalls(opts.MaxRecent)
	if len(recent) == 0 {
		return
	}

	sb.WriteString(groupStyle.Render(fmt.Sprintf("Recent calls (%d)", len(recent))))
	sb.WriteString("\n")
	for _, c := range recent {
		line := fmt.Sprintf("%s  %s  %s tokens",
			c.StartTime.Format("15:04:05"),
			pad(c.Model, 24),
			numPrinter.Sprintf("%d", c.Tokens.Total))
		if opts.Verbose {
			line += dimStyle.Render("  " + c.SpanID)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func renderFooter(sb *strings.Builder, r *analyzer.Result) {
	if cost := r.AdvisoryCost(); cost > 0 {
		fmt.Fprintf(sb, "%s %s tokens ($%.6f) with %d advisories\n",
			labelStyle.Render("Advisory spend:"),
			numPrinter.Sprintf("%d", r.AdvisoryTokens()), cost, len(r.Advisories))
	}
}

// ============================================================================
// HELPERS
// ============================================================================

// pad right-pads s to width display cells, truncating when oversized.
// Width-aware so CJK model or project names keep columns aligned.
func pad(s string, width int) string {
	if runewidth.StringWidth(s) > width-1 {
		s = runewidth.Truncate(s, width-1, "…")
	}
	return runewidth.FillRight(s, width)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func formatTemp(t float64) string {
	if t < 0 {
		return "-"
	}
	return fmt.Sprintf("%g", t)
}
