// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements argument parsing, command dispatch, and the
// command handlers for the phoenixlens binary. Handlers always return
// errors; main maps them to exit codes with GetExitCode.
package cli
