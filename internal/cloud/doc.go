// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud implements the llm.Provider contract for OpenAI-compatible
// chat completion APIs (OpenAI, OpenRouter, vLLM and similar gateways).
//
// Streaming replies arrive as Server-Sent Events whose data lines hold
// chat.completion.chunk objects; the text is choices[0].delta.content and
// the stream ends with the literal data line [DONE].
//
// Parameters are merged into the top level of the request body and stop
// sequences are sent as "stop". The API key, when set, is sent as a bearer
// token.
package cloud
