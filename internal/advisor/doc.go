// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package advisor generates natural-language efficiency comparisons
// for comparison groups by calling the OpenAI chat completions API.
// Advisory generation is best-effort: each group is analyzed in
// isolation, and a failed advisory never fails the analysis run.
package advisor
