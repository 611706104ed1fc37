// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pipeline wires an analysis run end to end: fetch spans
// (through the cache when fresh), normalize and filter them, group
// simultaneous calls, and attach advisories. The pipeline depends on
// small interfaces so tests can run it without a live backend.
package pipeline
