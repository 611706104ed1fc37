// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package report renders analysis results for the terminal: comparison
// groups as aligned tables, advisories as rendered markdown, and a
// recent-calls summary.
package report
