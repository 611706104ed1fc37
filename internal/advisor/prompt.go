// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package advisor

import (
	"fmt"
	"strings"

	"github.com/jeranaias/phoenixlens/internal/analyzer"
)

// systemPrompt frames the advisor role for every comparison request.
const systemPrompt = "You are an LLM efficiency analyst. You compare parallel " +
	"model invocations and give concise, practical recommendations about " +
	"which configuration is most efficient and why."

// variantLabel names group members A, B, C, ... AA, AB for overflow.
func variantLabel(i int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	if i < len(letters) {
		return string(letters[i])
	}
	return variantLabel(i/len(letters)-1) + variantLabel(i%len(letters))
}

// buildComparisonPrompt renders one comparison group as the user
// message sent to the advisor model.
func buildComparisonPrompt(g *analyzer.ComparisonGroup) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Compare these %d LLM calls that were fired simultaneously at %s:\n\n",
		len(g.Members), g.StartTime.Format("2006-01-02 15:04:05 UTC"))

	for i, m := range g.Members {
		fmt.Fprintf(&sb, "Variant %s:\n", variantLabel(i))
		fmt.Fprintf(&sb, "  Model: %s\n", m.Model)
		fmt.Fprintf(&sb, "  Tokens: %d prompt / %d completion / %d total\n",
			m.Tokens.Prompt, m.Tokens.Completion, m.Tokens.Total)
		if m.Duration > 0 {
			fmt.Fprintf(&sb, "  Duration: %.2fs\n", m.Duration.Seconds())
		}
		if m.Temperature >= 0 {
			fmt.Fprintf(&sb, "  Temperature: %g\n", m.Temperature)
		}
		if m.MaxTokens > 0 {
			fmt.Fprintf(&sb, "  Max tokens: %d\n", m.MaxTokens)
		}
		if m.OutputPreview != "" {
			fmt.Fprintf(&sb, "  Output preview: %s\n", m.OutputPreview)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Analyze the efficiency trade-offs between the variants: token " +
		"usage, latency, and output quality as far as the previews allow. " +
		"Recommend which variant is the most efficient choice and state the " +
		"single biggest saving available. Keep it under 200 words.")
	return sb.String()
}
