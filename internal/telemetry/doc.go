// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry tracks what the OpenAI advisor costs. Each analysis
// run that produced advisories is recorded as a small JSON file under
// the data directory, and the costs command aggregates them.
package telemetry
