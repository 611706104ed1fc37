// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// phoenixlens.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and whole-config validation.
//
// # Configuration Precedence
//
// Settings are resolved from (in order of precedence):
//   - Environment variables (PHOENIXLENS_*, OPENAI_API_KEY)
//   - The file given with --config, or ~/.phoenixlens/config.toml
//   - A named preset (dev, prod, extended)
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.LoadOrDefault("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	endpoint := cfg.Phoenix.Endpoint
//	window := cfg.Analysis.MinutesBack
package config
