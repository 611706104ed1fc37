// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/jeranaias/phoenixlens/internal/analyzer"
)

// csvHeader is the flat call-listing column set.
var csvHeader = []string{
	"span_id", "trace_id", "name", "model", "provider",
	"start_time", "end_time", "duration_s",
	"prompt_tokens", "completion_tokens", "total_tokens",
	"temperature", "max_tokens", "status", "comparison_group",
	"input_preview", "output_preview",
}

// CSVExporter renders the flat call listing as CSV, one row per LLM
// call with its comparison group number (empty for singletons).
type CSVExporter struct{}

// Export implements Exporter.
func (e *CSVExporter) Export(r *analyzer.Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}

	groups := groupIndexes(r)
	for _, c := range r.Calls {
		group := ""
		if n, ok := groups[c.SpanID]; ok {
			group = strconv.Itoa(n)
		}
		row := []string{
			c.SpanID,
			c.TraceID,
			c.Name,
			c.Model,
			c.Provider,
			formatTime(c.StartTime),
			formatTime(c.EndTime),
			formatDuration(c.Duration),
			strconv.Itoa(c.Tokens.Prompt),
			strconv.Itoa(c.Tokens.Completion),
			strconv.Itoa(c.Tokens.Total),
			formatTemperature(c.Temperature),
			strconv.Itoa(c.MaxTokens),
			c.Status,
			group,
			c.InputPreview,
			c.OutputPreview,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// FileExtension implements Exporter.
func (e *CSVExporter) FileExtension() string { return "csv" }

// MimeType implements Exporter.
func (e *CSVExporter) MimeType() string { return "text/csv" }
