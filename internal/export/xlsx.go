// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jeranaias/phoenixlens/internal/analyzer"
)

const (
	summarySheet = "Summary"
	detailSheet  = "Detailed Data"
)

// ExcelExporter renders a two-sheet workbook: a Summary sheet with run
// metadata and per-group rollups, and a Detailed Data sheet with one
// row per LLM call (same columns as the CSV export).
type ExcelExporter struct{}

// Export implements Exporter.
func (e *ExcelExporter) Export(r *analyzer.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(detailSheet); err != nil {
		return nil, fmt.Errorf("creating detail sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	if err := e.writeSummary(f, r, bold); err != nil {
		return nil, err
	}
	if err := e.writeDetail(f, r, bold); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serializing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *ExcelExporter) writeSummary(f *excelize.File, r *analyzer.Result, bold int) error {
	kv := [][2]any{
		{"Run ID", r.RunID},
		{"Run time (UTC)", formatTime(r.RunTime)},
		{"Endpoint", r.Endpoint},
		{"Project", r.Project},
		{"Window (minutes)", r.WindowMinutes},
		{"LLM calls", len(r.Calls)},
		{"Comparison groups", len(r.Groups)},
		{"Singleton calls", r.SingletonCount},
		{"Total tokens", r.TotalTokens()},
		{"Advisory tokens", r.AdvisoryTokens()},
		{"Advisory cost (USD)", r.AdvisoryCost()},
	}
	for i, pair := range kv {
		keyCell, _ := excelize.CoordinatesToCellName(1, i+1)
		valCell, _ := excelize.CoordinatesToCellName(2, i+1)
		if err := f.SetCellValue(summarySheet, keyCell, pair[0]); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
		if err := f.SetCellValue(summarySheet, valCell, pair[1]); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}
	endKey, _ := excelize.CoordinatesToCellName(1, len(kv))
	f.SetCellStyle(summarySheet, "A1", endKey, bold)

	// Per-group rollup below the metadata.
	row := len(kv) + 2
	headers := []string{"Group", "Start (UTC)", "Calls", "Models", "Total tokens", "Advisory"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		if err := f.SetCellValue(summarySheet, cell, h); err != nil {
			return fmt.Errorf("writing group header: %w", err)
		}
		f.SetCellStyle(summarySheet, cell, cell, bold)
	}
	for i, g := range r.Groups {
		row++
		advisory := ""
		if i < len(r.Advisories) {
			if a := r.Advisories[i]; a.Unavailable {
				advisory = "unavailable: " + a.Err
			} else {
				advisory = a.Text
			}
		}
		values := []any{
			i + 1,
			formatTime(g.StartTime),
			len(g.Members),
			joinModels(g.Models()),
			g.TotalTokens(),
			advisory,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(summarySheet, cell, v); err != nil {
				return fmt.Errorf("writing group row: %w", err)
			}
		}
	}

	f.SetColWidth(summarySheet, "A", "B", 24)
	f.SetColWidth(summarySheet, "D", "D", 32)
	f.SetColWidth(summarySheet, "F", "F", 60)
	return nil
}

func (e *ExcelExporter) writeDetail(f *excelize.File, r *analyzer.Result, bold int) error {
	for col, h := range csvHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(detailSheet, cell, h); err != nil {
			return fmt.Errorf("writing detail header: %w", err)
		}
		f.SetCellStyle(detailSheet, cell, cell, bold)
	}

	groups := groupIndexes(r)
	for i, c := range r.Calls {
		var group any
		if n, ok := groups[c.SpanID]; ok {
			group = n
		} else {
			group = ""
		}
		var temp any
		if c.Temperature >= 0 {
			temp = c.Temperature
		} else {
			temp = ""
		}
		values := []any{
			c.SpanID, c.TraceID, c.Name, c.Model, c.Provider,
			formatTime(c.StartTime), formatTime(c.EndTime), c.Duration.Seconds(),
			c.Tokens.Prompt, c.Tokens.Completion, c.Tokens.Total,
			temp, c.MaxTokens, c.Status, group,
			c.InputPreview, c.OutputPreview,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(detailSheet, cell, v); err != nil {
				return fmt.Errorf("writing detail row: %w", err)
			}
		}
	}

	f.SetColWidth(detailSheet, "A", "B", 18)
	f.SetColWidth(detailSheet, "F", "G", 20)
	f.SetColWidth(detailSheet, "P", "Q", 40)
	return nil
}

// joinModels renders a model list for a single cell.
func joinModels(models []string) string {
	return strings.Join(models, ", ")
}

// FileExtension implements Exporter.
func (e *ExcelExporter) FileExtension() string { return "xlsx" }

// MimeType implements Exporter.
func (e *ExcelExporter) MimeType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
