// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package analyzer implements the core analysis pipeline over traced
// LLM calls: filtering invocation spans out of a trace window, grouping
// calls that share a start timestamp into comparison groups, and
// assembling the immutable result snapshot that display, export, and
// persistence all consume.
package analyzer
