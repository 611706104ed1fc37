// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"

	"github.com/jeranaias/phoenixlens/internal/analyzer"
)

// JSONExporter renders the complete result snapshot as indented JSON.
// This is the lossless format: everything the run knew is present, so
// a stored export can be reloaded or diffed later.
type JSONExporter struct{}

// Export implements Exporter.
func (e *JSONExporter) Export(r *analyzer.Result) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return append(data, '\n'), nil
}

// FileExtension implements Exporter.
func (e *JSONExporter) FileExtension() string { return "json" }

// MimeType implements Exporter.
func (e *JSONExporter) MimeType() string { return "application/json" }
