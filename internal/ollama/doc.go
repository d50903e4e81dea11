// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama implements the llm.Provider contract for the Ollama API.
//
// Ollama streams newline-delimited JSON. Chat replies carry their text in
// message.content (/api/chat); instruct and autocomplete use /api/generate
// and carry it in response. Every stream ends with a line whose done field
// is true.
//
// # Requests
//
//   - Chat: POST chat endpoint, stream=true, keep_alive=60m
//   - Instruct: POST quick action endpoint, stream=true, optional system
//   - AutoComplete: POST completion endpoint, stream=false, raw=true
//
// Non-empty parameter maps are sent as options; stop sequences are merged
// into options under "stop".
package ollama
