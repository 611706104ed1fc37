// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache is a local SQLite cache for fetched spans. Repeated
// analyze runs against the same project within the TTL are served from
// disk instead of re-querying the tracing backend.
package cache
