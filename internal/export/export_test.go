// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jeranaias/phoenixlens/internal/analyzer"
)

// sampleResult builds a result with one comparison group of two calls
// plus one singleton.
func sampleResult() *analyzer.Result {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := analyzer.CallRecord{
		SpanID: "span-a", TraceID: "trace-1", Name: "openai.chat", Model: "gpt-4o",
		Provider: "openai", StartTime: base, EndTime: base.Add(2 * time.Second),
		Duration: 2 * time.Second,
		Tokens:   analyzer.TokenCounts{Prompt: 100, Completion: 60, Total: 160},
		Temperature: 0.7, MaxTokens: 512, Status: "OK", IsLLMCall: true,
		InputPreview: "what is 2+2", OutputPreview: "4",
	}
	b := a
	b.SpanID = "span-b"
	b.Model = "gpt-4o-mini"
	b.StartTime = base.Add(300 * time.Millisecond)
	b.Temperature = -1
	lone := a
	lone.SpanID = "span-c"
	lone.StartTime = base.Add(time.Minute)

	return &analyzer.Result{
		RunID:         "run-42",
		RunTime:       base.Add(5 * time.Minute),
		Endpoint:      "http://localhost:6006",
		Project:       "my project",
		WindowMinutes: 60,
		Calls:         []analyzer.CallRecord{a, b, lone},
		Groups: []analyzer.ComparisonGroup{
			{StartTime: base, Members: []analyzer.CallRecord{a, b}},
		},
		Advisories: []analyzer.Advisory{
			{Text: "Variant B uses fewer tokens.", Model: "gpt-4o-mini", Tokens: 500, Cost: 0.001},
		},
		SingletonCount: 1,
	}
}

func TestCSVExport(t *testing.T) {
	data, err := (&CSVExporter{}).Export(sampleResult())
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4, "header plus three calls")
	assert.Equal(t, csvHeader, rows[0])

	// First grouped call.
	row := rows[1]
	assert.Equal(t, "span-a", row[0])
	assert.Equal(t, "gpt-4o", row[3])
	assert.Equal(t, "2025-06-01 12:00:00", row[5])
	assert.Equal(t, "2.000", row[7])
	assert.Equal(t, "160", row[10])
	assert.Equal(t, "0.7", row[11])
	assert.Equal(t, "1", row[14], "comparison group number")

	// Unreported temperature renders empty.
	assert.Equal(t, "", rows[2][11])
	// Singleton has no group.
	assert.Equal(t, "", rows[3][14])
}

func TestJSONExportRoundTrip(t *testing.T) {
	orig := sampleResult()
	data, err := (&JSONExporter{}).Export(orig)
	require.NoError(t, err)

	var got analyzer.Result
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, orig.RunID, got.RunID)
	assert.Len(t, got.Calls, 3)
	require.Len(t, got.Groups, 1)
	assert.Len(t, got.Groups[0].Members, 2)
	assert.Equal(t, "Variant B uses fewer tokens.", got.Advisories[0].Text)
}

func TestMarkdownExport(t *testing.T) {
	data, err := (&MarkdownExporter{}).Export(sampleResult())
	require.NoError(t, err)
	md := string(data)

	assert.Contains(t, md, "# Phoenix LLM Call Analysis")
	assert.Contains(t, md, "**Project:** my project")
	assert.Contains(t, md, "## Group 1 at 2025-06-01 12:00:00 UTC (2 calls)")
	assert.Contains(t, md, "| gpt-4o | 100 | 60 | 160 |")
	assert.Contains(t, md, "### Efficiency advisory")
	assert.Contains(t, md, "Variant B uses fewer tokens.")
	assert.Contains(t, md, "## All LLM calls")
	assert.Contains(t, md, "Advisory cost: 500 tokens ($0.001000)")
}

func TestMarkdownExportNoGroups(t *testing.T) {
	r := sampleResult()
	r.Groups = nil
	r.Advisories = nil

	data, err := (&MarkdownExporter{}).Export(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), "No comparison groups found")
}

func TestMarkdownAdvisoryUnavailable(t *testing.T) {
	r := sampleResult()
	r.Advisories = []analyzer.Advisory{{Unavailable: true, Err: "rate limited"}}

	data, err := (&MarkdownExporter{}).Export(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), "_Advisory unavailable: rate limited_")
}

func TestExcelExport(t *testing.T) {
	data, err := (&ExcelExporter{}).Export(sampleResult())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{summarySheet, detailSheet}, f.GetSheetList())

	// Summary metadata.
	val, err := f.GetCellValue(summarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "run-42", val)

	// Detail header and first row.
	got, err := f.GetCellValue(detailSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "span_id", got)
	got, err = f.GetCellValue(detailSheet, "D2")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", got)
}

func TestForFormat(t *testing.T) {
	for _, name := range []string{"csv", "json", "md", "markdown", "xlsx", "excel"} {
		exp, err := ForFormat(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, exp.FileExtension())
		assert.NotEmpty(t, exp.MimeType())
	}
	_, err := ForFormat("pdf")
	assert.Error(t, err)
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	r := sampleResult()

	path, err := ExportToFile(r, &CSVExporter{}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "phoenixlens_my_project_20250601_120500.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "span_id,"))
}

func TestFilenameSanitizesProject(t *testing.T) {
	r := sampleResult()
	r.Project = "weird/../project name"
	name := Filename(r, &JSONExporter{})
	assert.NotContains(t, name, "/")
	assert.NotContains(t, name, " ")
	assert.True(t, strings.HasSuffix(name, ".json"))
}
