// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for hopla.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, validation and live reload.
//
// Configuration file locations (in order of precedence):
//   - ~/.hopla/config.toml
//   - ~/.hopla/config.json
//   - Built-in defaults
//
// HOPLA_HOME replaces ~/.hopla.
//
// # Providers
//
// Each [providers.<TYPE>] table mirrors one block of the settings panel:
// enabled, api_key, model and endpoint, plus optional per-purpose
// overrides for completion and quick actions. An api_key starting with
// "ENC:" is decrypted with HOPLA_CONFIG_PASSPHRASE; see EncryptSecret.
//
// # Example
//
//	external_ai = true
//	default_chat_provider = "ANTHROPIC"
//
//	[providers.ANTHROPIC]
//	enabled = true
//	api_key = "ENC:..."
//	model = "claude-3-5-sonnet-20241022"
//	endpoint = "https://api.anthropic.com/v1/messages"
package config
