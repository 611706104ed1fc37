// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package phoenix is a read-only client for the Phoenix tracing
// backend's REST API. It fetches spans for a project over a lookback
// window, handles cursor pagination and transient-failure retries, and
// normalizes raw spans into analyzer call records.
package phoenix
