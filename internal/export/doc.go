// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders analysis results to files. Each format
// implements the Exporter interface; ExportToFile handles naming and
// atomic writing so every format behaves the same on disk.
//
// Supported formats: CSV, JSON, Markdown, and Excel (xlsx).
package export
