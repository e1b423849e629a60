// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for folio-chat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, .env files, validation and hot reload.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - EndpointConfig: Remote assistant URL, timeout and headers
//   - GuardConfig: Rapid-repeat and ban thresholds
//   - StoreConfig: Persistent store backend selection
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (FOLIO_*), including those from ./.env
//   - ~/.folio-chat/config.toml
//   - ~/.folio-chat/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	timeout := cfg.Endpoint.Timeout()
package config
