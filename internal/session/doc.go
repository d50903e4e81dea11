// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives a chat conversation on top of a provider.
//
// A Controller owns the chat collection and its store. Send appends the
// user's message, streams the assistant reply into a placeholder message and
// generates a title once the reply completes; every durable change is
// persisted. Listeners registered with OnUpdate are told when to redraw,
// at most once per RefreshInterval while text is streaming.
//
// # Key Types
//
//   - Controller: chat list, selection, send and cancel
//   - RequestResponse: the traffic substituted for @request@ and @response@
//   - Completer: the autocomplete gate in front of a provider
//
// # Titles
//
// GenerateTitle asks the chat provider for a short title built from the
// last six messages. When external AI is off, the request fails or the
// answer is blank, the sanitized last user message (or "New Chat") is used.
package session
