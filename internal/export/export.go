// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/phoenixlens/internal/analyzer"
	"github.com/jeranaias/phoenixlens/internal/util"
)

// ============================================================================
// EXPORTER INTERFACE
// ============================================================================

// Exporter renders an analysis result to bytes in one format.
type Exporter interface {
	// Export renders the result.
	Export(r *analyzer.Result) ([]byte, error)

	// FileExtension returns the extension without the dot, e.g. "csv".
	FileExtension() string

	// MimeType returns the format's MIME type.
	MimeType() string
}

// ForFormat returns the exporter for a format name.
func ForFormat(name string) (Exporter, error) {
	switch name {
	case "csv":
		return &CSVExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "xlsx", "excel":
		return &ExcelExporter{}, nil
	}
	return nil, fmt.Errorf("unknown export format %q", name)
}

// ============================================================================
// FILE EXPORT
// ============================================================================

// Filename derives the export file name for a result:
// phoenixlens_<project>_<timestamp>.<ext>.
func Filename(r *analyzer.Result, exp Exporter) string {
	stamp := r.RunTime.Format("20060102_150405")
	return fmt.Sprintf("phoenixlens_%s_%s.%s", util.SanitizeFilename(r.Project), stamp, exp.FileExtension())
}

// ExportToFile renders the result with exp and writes it under dir,
// returning the path written. The write is atomic, so a failed render
// never leaves a truncated file behind.
func ExportToFile(r *analyzer.Result, exp Exporter, dir string) (string, error) {
	data, err := exp.Export(r)
	if err != nil {
		return "", fmt.Errorf("rendering %s export: %w", exp.FileExtension(), err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	path := filepath.Join(dir, Filename(r, exp))
	if err := util.AtomicWriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s export: %w", exp.FileExtension(), err)
	}
	return path, nil
}

// ============================================================================
// SHARED FORMATTING
// ============================================================================

// formatTime renders a timestamp for human-readable exports.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

// formatDuration renders a duration in seconds with millisecond
// precision, empty when unmeasured.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return fmt.Sprintf("%.3f", d.Seconds())
}

// formatTemperature renders a temperature, empty for the unreported
// sentinel.
func formatTemperature(temp float64) string {
	if temp < 0 {
		return ""
	}
	return fmt.Sprintf("%g", temp)
}

// groupIndexes maps span IDs to 1-based comparison group numbers, so
// flat call listings can show group membership.
func groupIndexes(r *analyzer.Result) map[string]int {
	idx := make(map[string]int)
	for i, g := range r.Groups {
		for _, m := range g.Members {
			idx[m.SpanID] = i + 1
		}
	}
	return idx
}
