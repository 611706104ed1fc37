// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists analysis run snapshots as JSON files under
// the data directory, so past runs can be listed and re-exported
// without hitting the tracing backend again.
package storage
