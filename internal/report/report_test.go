// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/phoenixlens/internal/analyzer"
)

func sampleResult() *analyzer.Result {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := analyzer.CallRecord{
		SpanID: "span-a", Model: "gpt-4o", StartTime: base,
		Duration: 2 * time.Second, Temperature: 0.7,
		Tokens:    analyzer.TokenCounts{Total: 1500},
		IsLLMCall: true, OutputPreview: "the answer",
	}
	b := a
	b.SpanID = "span-b"
	b.Model = "gpt-4o-mini"
	b.Temperature = -1

	return &analyzer.Result{
		RunID: "run-1", RunTime: base.Add(time.Minute),
		Endpoint: "http://localhost:6006", Project: "default", WindowMinutes: 60,
		Calls:          []analyzer.CallRecord{a, b},
		Groups:         []analyzer.ComparisonGroup{{StartTime: base, Members: []analyzer.CallRecord{a, b}}},
		Advisories:     []analyzer.Advisory{{Text: "Use the mini model.", Tokens: 300, Cost: 0.0006}},
		SingletonCount: 0,
	}
}

func TestRenderIncludesSections(t *testing.T) {
	out := Render(sampleResult(), Options{Width: 80, MaxRecent: 10})

	assert.Contains(t, out, "Phoenix LLM Call Analysis")
	assert.Contains(t, out, "default")
	assert.Contains(t, out, "Group 1")
	assert.Contains(t, out, "gpt-4o")
	assert.Contains(t, out, "gpt-4o-mini")
	assert.Contains(t, out, "Use the mini model.")
	assert.Contains(t, out, "Recent calls (2)")
	assert.Contains(t, out, "1,500", "token counts use thousands separators")
	assert.Contains(t, out, "$0.000600")
}

func TestRenderNoGroups(t *testing.T) {
	r := sampleResult()
	r.Groups = nil
	r.Advisories = nil

	out := Render(r, Options{Width: 80})
	assert.Contains(t, out, "No comparison groups")
}

func TestRenderAdvisoryUnavailable(t *testing.T) {
	r := sampleResult()
	r.Advisories = []analyzer.Advisory{{Unavailable: true, Err: "no OpenAI API key configured"}}

	out := Render(r, Options{Width: 80})
	assert.Contains(t, out, "Advisory unavailable: no OpenAI API key configured")
}

func TestRenderVerbosePreviews(t *testing.T) {
	r := sampleResult()

	terse := Render(r, Options{Width: 80})
	verbose := Render(r, Options{Width: 80, Verbose: true})
	assert.NotContains(t, terse, "the answer")
	assert.Contains(t, verbose, "the answer")
}

func TestRenderSkippedWarning(t *testing.T) {
	r := sampleResult()
	r.Skipped = 3
	out := Render(r, Options{Width: 80})
	assert.Contains(t, out, "Skipped 3 malformed spans")
}

func TestRenderCacheSource(t *testing.T) {
	r := sampleResult()
	r.FromCache = true
	out := Render(r, Options{Width: 80})
	assert.Contains(t, out, "(cache)")
}

func TestPad(t *testing.T) {
	assert.Equal(t, "abc   ", pad("abc", 6))
	// Oversized cells are truncated with an ellipsis and keep width.
	got := pad("abcdefghij", 6)
	assert.True(t, strings.Contains(got, "…"))
}
