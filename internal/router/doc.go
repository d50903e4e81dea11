// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router resolves the configured provider for each purpose.
//
// The router turns config.ProviderSettings into llm.ProviderConfig values,
// builds one adapter per provider type and hands out the adapter selected
// for chat, completion or quick actions:
//
//	r := router.New(cfg, transport)
//	p, err := r.ChatProvider()
//	if err != nil {
//	    // router.ErrNoProvider: unknown name or disabled provider
//	}
//	stream, err := p.Chat(ctx, chat)
//
// # Selection Rules
//
//   - When external_ai is false, OLLAMA is used for every purpose.
//   - Otherwise the default provider name of the purpose is used.
//   - An unknown or disabled provider resolves to ErrNoProvider.
//
// Adapters are built once and reused, so in-flight tracking (and with it
// CancelCurrentChatRequest) spans calls. Reload replaces them.
package router
